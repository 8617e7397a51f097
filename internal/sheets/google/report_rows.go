package google

import (
	"fmt"
	"strings"

	"budgetwatch/internal/core"
)

// reportSheetName is the tab that holds one user's overall report.
func reportSheetName(prefix string, userID int64) string {
	return fmt.Sprintf("%s %d", prefix, userID)
}

// quoteSheetName quotes a tab name for use in A1 notation.
func quoteSheetName(name string) string {
	return "'" + strings.ReplaceAll(name, "'", "''") + "'"
}

// buildReportRows lays out an overall report as a values matrix: a header
// block, the category breakdown and the exceeded budgets, separated by blank
// rows. Amounts are written as numbers.
func buildReportRows(r core.OverallReport) [][]any {
	rows := [][]any{
		{"User", r.User.Name},
		{"Email", r.User.Email},
		{"Total", r.Total.Float()},
		{},
		{"Category", "Total"},
	}
	for _, c := range r.ByCategory {
		rows = append(rows, []any{c.Name, c.Amount.Float()})
	}

	rows = append(rows, []any{}, []any{"Exceeded budgets"})
	if len(r.Exceeded) == 0 {
		rows = append(rows, []any{"None"})
		return rows
	}
	rows = append(rows, []any{"Category", "Month", "Year", "Spent", "Budget"})
	for _, e := range r.Exceeded {
		rows = append(rows, []any{e.Category, e.Period.Month, e.Period.Year, e.Spent.Float(), e.Budget.Float()})
	}
	return rows
}

// lastColumn returns the letter of the widest row's last column.
func lastColumn(rows [][]any) string {
	width := 1
	for _, r := range rows {
		if len(r) > width {
			width = len(r)
		}
	}
	return string(rune('A' + width - 1))
}
