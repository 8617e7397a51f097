package sheets

import (
	"context"

	"budgetwatch/internal/core"
)

// Ports for outbound adapters.
type (
	// ReportExporter writes an overall report to an external spreadsheet and
	// returns a reference to where it landed.
	ReportExporter interface {
		ExportOverallReport(ctx context.Context, r core.OverallReport) (ref string, err error)
	}
)
