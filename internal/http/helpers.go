package http

import (
	"errors"
	"html/template"
	"net/http"
	"time"

	"budgetwatch/internal/core"
	"budgetwatch/internal/services"
)

// templateFuncs are available to every page template.
var templateFuncs = template.FuncMap{
	"money": func(m core.Money) string { return m.String() },
	"monthName": func(month int) string {
		if month < 1 || month > 12 {
			return ""
		}
		return time.Month(month).String()
	},
	"period": func(p core.Period) string { return p.String() },
}

// statusFor maps a service error onto an HTTP status and a message that is
// safe to show. Anything unclassified is a 500 with a generic message.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, core.ErrValidation):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound, "Not found"
	case errors.Is(err, core.ErrConflict):
		return http.StatusConflict, err.Error()
	case errors.Is(err, services.ErrExportDisabled):
		return http.StatusServiceUnavailable, "Report export is not configured"
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}

// flashForAlert turns a budget alert into the message shown after adding an
// expense.
func flashForAlert(a core.Alert) (Flash, bool) {
	switch a.Level {
	case core.AlertDanger:
		return Flash{Category: string(NotificationDanger), Message: a.Message()}, true
	case core.AlertWarning:
		return Flash{Category: string(NotificationWarning), Message: a.Message()}, true
	default:
		return Flash{}, false
	}
}
