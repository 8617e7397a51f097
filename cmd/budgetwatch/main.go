package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"budgetwatch/internal/backend"
	"budgetwatch/internal/cache"
	"budgetwatch/internal/config"
	apphttp "budgetwatch/internal/http"
	"budgetwatch/internal/log"
	"budgetwatch/internal/notify"
	"budgetwatch/internal/services"
	"budgetwatch/internal/sheets"
	gsheet "budgetwatch/internal/sheets/google"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	cfg := config.Load()

	logger := log.New(log.Config{
		Level:     log.ParseLevel(cfg.LogLevel),
		Format:    cfg.LogFormat,
		Component: log.ComponentApp,
	})
	log.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("Server error", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}

func run(cfg *config.Config, logger *log.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return err
	}
	res, err := backend.NewFactory(logger.Logger.With(log.FieldComponent, log.ComponentBackend)).CreateBackend(ctx, backendCfg)
	if err != nil {
		return fmt.Errorf("create backend: %w", err)
	}
	defer func() {
		if err := res.Cleanup(); err != nil {
			logger.Error("Backend cleanup failed", log.FieldError, err)
		}
	}()

	var exporter sheets.ReportExporter
	if cfg.ExportEnabled() {
		client, err := gsheet.New(ctx, gsheet.Config{
			SpreadsheetID:      cfg.GoogleSpreadsheetID,
			ServiceAccountJSON: cfg.GoogleServiceAccountJSON,
			ServiceAccountFile: cfg.GoogleServiceAccountFile,
			SheetPrefix:        cfg.GoogleReportSheetPrefix,
		})
		if err != nil {
			return fmt.Errorf("init Google Sheets exporter: %w", err)
		}
		exporter = client
		logger.Info("Report export enabled", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	}

	mailer := notify.NewMailer(notify.Config{
		Host:     cfg.MailServer,
		Port:     cfg.MailPort,
		Username: cfg.MailUsername,
		Password: cfg.MailPassword,
		From:     cfg.MailFrom,
		Timeout:  cfg.MailTimeout,
	}, logger.Logger)

	var dispatcher interface {
		services.AlertDispatcher
		Wait(ctx context.Context) error
	}
	if res.Queue != nil {
		dispatcher = services.NewQueueDispatcher(res.Queue, cfg.AlertDeliveryTimeout, logger)
		logger.Info("Budget alerts are published to the queue", "queue", cfg.AMQPQueue)
	} else {
		dispatcher = services.NewInlineDispatcher(mailer, cfg.AlertDeliveryTimeout, logger)
		if !mailer.Enabled() {
			logger.Warn("MAIL_SERVER not set, budget alert emails will be skipped")
		}
	}

	// Other instances write to a shared database without invalidating this
	// process's cache.
	cacheTTL := cfg.ReportCacheTTL
	if backendCfg.Type == backend.PostgresBackend && cacheTTL > 0 {
		logger.Info("Monthly report cache disabled for the shared postgres backend")
		cacheTTL = 0
	}
	reports := services.NewReportService(res.Store, cfg.ReportCacheSize, cacheTTL, exporter, logger)
	deps := apphttp.Dependencies{
		Users: services.NewUserService(res.Store, logger),
		Expenses: services.NewExpenseService(res.Store, dispatcher, logger,
			services.WithReportInvalidator(reports),
			services.WithRecipientOverride(cfg.AlertRecipientOverride)),
		Budgets: services.NewBudgetService(res.Store, reports, logger),
		Reports: reports,
		Ready:   res.Store,
	}

	srv, err := apphttp.NewServer(apphttp.Config{
		Addr:               ":" + cfg.Port,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		ReadTimeout:        10 * time.Second,
		WriteTimeout:       30 * time.Second,
		IdleTimeout:        60 * time.Second,
		Logger:             logger,
	}, deps)
	if err != nil {
		return err
	}
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	caches := cache.NewManager()
	caches.Register("monthly_reports", reports.Cache())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting budgetwatch server", "port", cfg.Port, "backend", cfg.DataBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen on port %s: %w", cfg.Port, err)
		}
		return nil
	})
	g.Go(func() error {
		return caches.Run(gctx, time.Minute)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutdown signal received", log.FieldOperation, log.OpShutdown)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		if err := dispatcher.Wait(shutdownCtx); err != nil {
			logger.Warn("Pending budget alerts abandoned", log.FieldError, err)
		}
		return nil
	})

	return g.Wait()
}
