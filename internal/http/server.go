package http

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"budgetwatch/internal/core"
	"budgetwatch/internal/log"
	"budgetwatch/internal/middleware/ratelimit"
	"budgetwatch/internal/middleware/security"
	"budgetwatch/internal/middleware/trace"
	"budgetwatch/internal/services"
	appweb "budgetwatch/web"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// UserManager creates and lists users.
type UserManager interface {
	CreateUser(ctx context.Context, name, email string) (core.User, error)
	ListUsers(ctx context.Context) ([]core.User, error)
	GetUser(ctx context.Context, id int64) (core.User, error)
}

// ExpenseRecorder stores expenses and reports the resulting budget alert.
type ExpenseRecorder interface {
	RecordExpense(ctx context.Context, e core.Expense) (services.ExpenseResult, error)
}

// BudgetSetter upserts monthly budgets.
type BudgetSetter interface {
	SetBudget(ctx context.Context, b core.Budget) (core.Budget, error)
}

// Reporter builds and exports spend reports.
type Reporter interface {
	MonthlyReport(ctx context.Context, userID int64, period core.Period) (core.MonthlyReport, error)
	OverallReport(ctx context.Context, userID int64) (core.OverallReport, error)
	ExportOverallReport(ctx context.Context, userID int64) (string, error)
	ExportEnabled() bool
}

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Dependencies are the services the handlers delegate to.
type Dependencies struct {
	Users    UserManager
	Expenses ExpenseRecorder
	Budgets  BudgetSetter
	Reports  Reporter
	// Ready is checked by /readyz; nil means always ready.
	Ready Pinger
}

// Config holds the HTTP server settings.
type Config struct {
	Addr               string
	RateLimitPerMinute int
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	IdleTimeout        time.Duration
	Logger             *log.Logger
}

type Server struct {
	http.Server
	templates   *template.Template
	deps        Dependencies
	logger      *log.Logger
	rateLimiter *ratelimit.Limiter
	tracer      *trace.Middleware

	shutdownOnce sync.Once
}

// NewServer parses the embedded templates and wires routes and middleware.
func NewServer(cfg Config, deps Dependencies) (*Server, error) {
	if deps.Users == nil || deps.Expenses == nil || deps.Budgets == nil || deps.Reports == nil {
		return nil, errors.New("http server: missing service dependency")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	logger = logger.WithComponent(log.ComponentHTTP)

	t, err := template.New("pages").Funcs(templateFuncs).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	ipResolver, err := security.NewClientIPResolver()
	if err != nil {
		return nil, err
	}

	s := &Server{
		Server: http.Server{
			Addr:              cfg.Addr,
			ReadTimeout:       durationOr(cfg.ReadTimeout, 15*time.Second),
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      durationOr(cfg.WriteTimeout, 15*time.Second),
			IdleTimeout:       durationOr(cfg.IdleTimeout, 60*time.Second),
		},
		templates:   t,
		deps:        deps,
		logger:      logger,
		rateLimiter: ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: cfg.RateLimitPerMinute}),
		tracer:      trace.NewMiddleware(log.NewStructuredLogger(logger), ipResolver.ClientIP),
	}

	s.Handler = s.routes(ipResolver)
	return s, nil
}

func durationOr(d, def time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return def
}

func (s *Server) routes(ipResolver *security.ClientIPResolver) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(log.Middleware(s.logger))
	r.Use(log.RequestIDMiddleware(chimw.GetReqID))
	r.Use(s.tracer.Middleware)
	r.Use(chimw.Recoverer)
	r.Use(security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware)
	r.Use(s.rateLimiter.Middleware(ipResolver.ClientIP, s.handleRateLimited, http.MethodPost))

	r.Get("/healthz", handleHealth)
	r.Get("/readyz", s.handleReady)

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		r.With(security.StaticAssetMiddleware(3600)).Handle("/static/*", static)
	} else {
		s.logger.Warn("Failed to mount embedded static FS", log.FieldError, err)
	}

	r.Get("/", s.handleIndex)
	r.Post("/create_user", s.handleCreateUser)
	r.Get("/add_expense_form/{userID:[0-9]+}", s.handleAddExpenseForm)
	r.Post("/add_expense", s.handleAddExpense)
	r.Get("/budget_form/{userID:[0-9]+}", s.handleBudgetForm)
	r.Post("/set_budget", s.handleSetBudget)
	r.Get("/reports/{userID:[0-9]+}/{year:[0-9]+}/{month:[0-9]+}", s.handleMonthlyReport)
	r.Get("/overall_report/{userID:[0-9]+}", s.handleOverallReport)
	r.Post("/overall_report/{userID:[0-9]+}/export", s.handleExportOverallReport)

	return r
}

// Shutdown stops the rate limiter and gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func (s *Server) handleRateLimited(w http.ResponseWriter, r *http.Request) {
	log.FromContext(r.Context()).WithComponent(log.ComponentRateLimit).WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldMethod, r.Method,
		log.FieldPath, r.URL.Path)
	ErrorResponse(http.StatusTooManyRequests, "Rate limit exceeded. Please try again later.").Write(w)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.Ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.deps.Ready.Ping(ctx); err != nil {
			log.FromContext(r.Context()).WithComponent(log.ComponentStorage).ErrorContext(r.Context(), "Readiness check failed",
				log.FieldError, err)
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
