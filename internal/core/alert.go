package core

// AlertLevel is the outcome of comparing month-to-date spend with a budget.
type AlertLevel string

const (
	AlertNone    AlertLevel = ""
	AlertWarning AlertLevel = "warning"
	AlertDanger  AlertLevel = "danger"
)

// Alert describes the budget state of one composite key after an expense.
type Alert struct {
	Level  AlertLevel
	Key    BudgetKey
	Spent  Money
	Budget Money
}

// EvaluateBudget applies the threshold rule: above the budget is danger, at or
// above 90% of it is warning. The 90% comparison is done on integer cents.
func EvaluateBudget(spent, budget Money) AlertLevel {
	switch {
	case spent.Cents > budget.Cents:
		return AlertDanger
	case spent.Cents*10 >= budget.Cents*9:
		return AlertWarning
	default:
		return AlertNone
	}
}

// ShouldNotify reports whether the alert triggers an email.
func (a Alert) ShouldNotify() bool {
	return a.Level == AlertDanger
}

// Message is the user-facing flash text for the alert.
func (a Alert) Message() string {
	switch a.Level {
	case AlertDanger:
		return "⚠️ Exceeded budget for " + shortCategory(a.Key.Category) + "!"
	case AlertWarning:
		return "⚠️ 90% budget used for " + shortCategory(a.Key.Category)
	default:
		return ""
	}
}

// maxMessageCategory caps how much of a category is echoed back in a flash.
const maxMessageCategory = 64

func shortCategory(c string) string {
	r := []rune(c)
	if len(r) <= maxMessageCategory {
		return c
	}
	return string(r[:maxMessageCategory]) + "…"
}

func (a Alert) EmailSubject() string {
	return "Budget Exceeded"
}

func (a Alert) EmailBody() string {
	return "Budget exceeded for " + a.Key.Category
}
