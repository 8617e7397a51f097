package http

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"time"

	"budgetwatch/internal/core"
	"budgetwatch/internal/log"
	"budgetwatch/internal/services"
)

// page is the data every template receives.
type page struct {
	Title   string
	Flashes []Flash
	Data    any
}

// render executes a template into a buffer first so a failing template never
// leaves a half-written page.
func (s *Server) render(w http.ResponseWriter, r *http.Request, name, title string, data any) {
	var buf bytes.Buffer
	p := page{Title: title, Flashes: popFlashes(w, r), Data: data}
	if err := s.templates.ExecuteTemplate(&buf, name, p); err != nil {
		log.FromContext(r.Context()).WithComponent(log.ComponentTemplate).ErrorContext(r.Context(), "Template execution failed",
			log.FieldError, err,
			"template", name)
		InternalServerError("Internal server error").Write(w)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

// fail answers with the status mapped from err. Only 5xx details are logged;
// the client never sees them.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	status, msg := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Request failed",
			log.FieldOperation, op,
			log.FieldError, err)
	}
	ErrorResponse(status, msg).Write(w)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	users, err := s.deps.Users.ListUsers(r.Context())
	if err != nil {
		s.fail(w, r, log.OpList, err)
		return
	}
	now := time.Now()
	s.render(w, r, "index.html", "Users", struct {
		Users []core.User
		Year  int
		Month int
	}{Users: users, Year: now.Year(), Month: int(now.Month())})
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		BadRequestError("Invalid request format").Write(w)
		return
	}

	_, err := s.deps.Users.CreateUser(r.Context(), r.PostForm.Get("name"), r.PostForm.Get("email"))
	switch {
	case errors.Is(err, core.ErrConflict):
		setFlashes(w, Flash{Category: string(NotificationDanger), Message: "A user with this email already exists."})
		redirect(w, r, "/", nil)
		return
	case err != nil:
		s.fail(w, r, log.OpCreate, err)
		return
	}

	setFlashes(w, Flash{Category: string(NotificationSuccess), Message: "User created successfully!"})
	redirect(w, r, "/", nil)
}

type expenseFormData struct {
	UserID   int64
	UserName string
	Today    string
}

func (s *Server) handleAddExpenseForm(w http.ResponseWriter, r *http.Request) {
	userID, err := pathInt64(r, "userID")
	if err != nil {
		s.fail(w, r, log.OpRead, err)
		return
	}

	data := expenseFormData{UserID: userID, Today: time.Now().Format(core.DateLayout)}
	// The form works for unknown ids too; the name is only a label.
	if u, err := s.deps.Users.GetUser(r.Context(), userID); err == nil {
		data.UserName = u.Name
	}
	s.render(w, r, "add_expense.html", "Add expense", data)
}

func (s *Server) handleAddExpense(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		BadRequestError("Invalid request format").Write(w)
		return
	}
	e, err := ParseExpenseForm(r.PostForm)
	if err != nil {
		s.fail(w, r, log.OpCreate, err)
		return
	}

	res, err := s.deps.Expenses.RecordExpense(r.Context(), e)
	if err != nil {
		s.fail(w, r, log.OpCreate, err)
		return
	}

	b := NewHTMXResponse().TriggerExpenseCreated(e.UserID, e.Date.Period())
	if f, ok := flashForAlert(res.Alert); ok {
		setFlashes(w, f)
		b.TriggerBudgetAlert(res.Alert)
	} else {
		setFlashes(w, Flash{Category: string(NotificationSuccess), Message: "Expense added!"})
	}
	redirect(w, r, "/", b)
}

type budgetFormData struct {
	UserID   int64
	UserName string
	Year     int
	Month    int
}

func (s *Server) handleBudgetForm(w http.ResponseWriter, r *http.Request) {
	userID, err := pathInt64(r, "userID")
	if err != nil {
		s.fail(w, r, log.OpRead, err)
		return
	}

	now := time.Now()
	data := budgetFormData{UserID: userID, Year: now.Year(), Month: int(now.Month())}
	if u, err := s.deps.Users.GetUser(r.Context(), userID); err == nil {
		data.UserName = u.Name
	}
	s.render(w, r, "budget.html", "Set budget", data)
}

func (s *Server) handleSetBudget(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		BadRequestError("Invalid request format").Write(w)
		return
	}
	b, err := ParseBudgetForm(r.PostForm)
	if err != nil {
		s.fail(w, r, log.OpUpsert, err)
		return
	}

	if _, err := s.deps.Budgets.SetBudget(r.Context(), b); err != nil {
		s.fail(w, r, log.OpUpsert, err)
		return
	}

	setFlashes(w, Flash{Category: string(NotificationSuccess), Message: "Budget saved!"})
	redirect(w, r, "/", NewHTMXResponse().TriggerBudgetSaved(b.UserID, b.Period))
}

func (s *Server) handleMonthlyReport(w http.ResponseWriter, r *http.Request) {
	userID, err := pathInt64(r, "userID")
	if err != nil {
		s.fail(w, r, log.OpReport, err)
		return
	}
	year, err := pathInt(r, "year")
	if err != nil {
		s.fail(w, r, log.OpReport, err)
		return
	}
	month, err := pathInt(r, "month")
	if err != nil {
		s.fail(w, r, log.OpReport, err)
		return
	}

	report, err := s.deps.Reports.MonthlyReport(r.Context(), userID, core.Period{Year: year, Month: month})
	if err != nil {
		s.fail(w, r, log.OpReport, err)
		return
	}
	s.render(w, r, "reports.html", "Monthly report", report)
}

type overallReportData struct {
	Report        core.OverallReport
	ExportEnabled bool
}

func (s *Server) handleOverallReport(w http.ResponseWriter, r *http.Request) {
	userID, err := pathInt64(r, "userID")
	if err != nil {
		s.fail(w, r, log.OpReport, err)
		return
	}

	report, err := s.deps.Reports.OverallReport(r.Context(), userID)
	if errors.Is(err, core.ErrNotFound) {
		setFlashes(w, Flash{Category: string(NotificationDanger), Message: "User not found!"})
		redirect(w, r, "/", nil)
		return
	}
	if err != nil {
		s.fail(w, r, log.OpReport, err)
		return
	}
	s.render(w, r, "overall_report.html", "Overall report", overallReportData{
		Report:        report,
		ExportEnabled: s.deps.Reports.ExportEnabled(),
	})
}

func (s *Server) handleExportOverallReport(w http.ResponseWriter, r *http.Request) {
	userID, err := pathInt64(r, "userID")
	if err != nil {
		s.fail(w, r, log.OpExport, err)
		return
	}
	back := fmt.Sprintf("/overall_report/%d", userID)

	ref, err := s.deps.Reports.ExportOverallReport(r.Context(), userID)
	switch {
	case errors.Is(err, services.ErrExportDisabled):
		setFlashes(w, Flash{Category: string(NotificationWarning), Message: "Report export is not configured."})
	case errors.Is(err, core.ErrNotFound):
		setFlashes(w, Flash{Category: string(NotificationDanger), Message: "User not found!"})
		back = "/"
	case err != nil:
		log.FromContext(r.Context()).WithComponent(log.ComponentSheets).ErrorContext(r.Context(), "Overall report export failed",
			log.FieldUserID, userID,
			log.FieldError, err)
		setFlashes(w, Flash{Category: string(NotificationDanger), Message: "Export failed, please try again later."})
	default:
		setFlashes(w, Flash{Category: string(NotificationSuccess), Message: "Report exported to " + ref})
	}
	redirect(w, r, back, nil)
}
