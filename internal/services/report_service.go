package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"budgetwatch/internal/cache"
	"budgetwatch/internal/core"
	"budgetwatch/internal/log"
	"budgetwatch/internal/sheets"
	"budgetwatch/internal/storage"
)

// ErrExportDisabled is returned when no spreadsheet is configured.
var ErrExportDisabled = errors.New("report export is not configured")

// ReportService builds monthly and overall spend reports. Monthly reports
// are cached until a write touches their (user, month). A cacheTTL of zero
// disables the cache.
type ReportService struct {
	store    storage.Store
	monthly  *cache.LRUCache[core.MonthlyReport]
	caching  bool
	exporter sheets.ReportExporter
	logger   *log.Logger

	// generation counts invalidations. A report computed while it moved
	// may predate a write and is not cached.
	genMu      sync.Mutex
	generation uint64
}

func NewReportService(store storage.Store, cacheSize int, cacheTTL time.Duration, exporter sheets.ReportExporter, logger *log.Logger) *ReportService {
	return &ReportService{
		store:    store,
		monthly:  cache.NewLRUCache[core.MonthlyReport](cacheSize, cacheTTL),
		caching:  cacheTTL > 0,
		exporter: exporter,
		logger:   logger.WithComponent(log.ComponentReport),
	}
}

var _ ReportInvalidator = (*ReportService)(nil)

// Cache exposes the monthly report cache so it can be swept periodically.
func (s *ReportService) Cache() *cache.LRUCache[core.MonthlyReport] {
	return s.monthly
}

func monthlyKey(userID int64, p core.Period) string {
	return fmt.Sprintf("%d:%s", userID, p)
}

func (s *ReportService) Invalidate(userID int64, period core.Period) {
	s.genMu.Lock()
	defer s.genMu.Unlock()
	s.generation++
	s.monthly.Delete(monthlyKey(userID, period))
}

func (s *ReportService) currentGeneration() uint64 {
	s.genMu.Lock()
	defer s.genMu.Unlock()
	return s.generation
}

// storeIfCurrent caches r unless an invalidation happened after gen was read.
func (s *ReportService) storeIfCurrent(key string, gen uint64, r core.MonthlyReport) bool {
	s.genMu.Lock()
	defer s.genMu.Unlock()
	if s.generation != gen {
		return false
	}
	s.monthly.Set(key, r)
	return true
}

// ExportEnabled reports whether ExportOverallReport can succeed.
func (s *ReportService) ExportEnabled() bool {
	return s.exporter != nil
}

// MonthlyReport returns the month's total, per-category subtotals sorted by
// category and the budget rows for that month. Missing data yields zeros.
func (s *ReportService) MonthlyReport(ctx context.Context, userID int64, period core.Period) (core.MonthlyReport, error) {
	if err := period.Validate(); err != nil {
		return core.MonthlyReport{}, err
	}

	key := monthlyKey(userID, period)
	if s.caching {
		if r, ok := s.monthly.Get(key); ok {
			s.logger.DebugContext(ctx, "Monthly report served from cache", log.FieldUserID, userID, "period", period.String())
			return r, nil
		}
	}
	gen := s.currentGeneration()

	report := core.MonthlyReport{UserID: userID, Period: period}
	filter := storage.ExpenseFilter{UserID: userID, Period: period}
	err := s.store.WithinTx(ctx, func(tx storage.Tx) error {
		var err error
		if report.Total, err = tx.SumExpenses(ctx, filter); err != nil {
			return fmt.Errorf("sum expenses: %w", err)
		}
		if report.ByCategory, err = tx.SumExpensesByCategory(ctx, filter); err != nil {
			return fmt.Errorf("sum by category: %w", err)
		}
		if report.Budgets, err = tx.ListBudgets(ctx, storage.BudgetFilter{UserID: userID, Period: period}); err != nil {
			return fmt.Errorf("list budgets: %w", err)
		}
		return nil
	})
	if err != nil {
		return core.MonthlyReport{}, fmt.Errorf("monthly report: %w", err)
	}

	if s.caching && !s.storeIfCurrent(key, gen, report) {
		s.logger.DebugContext(ctx, "Monthly report not cached, data changed while it was built", log.FieldUserID, userID, "period", period.String())
	}
	return report, nil
}

// OverallReport returns all-time totals for the user and every budget whose
// month ended up over its amount. A missing user is core.ErrNotFound and
// nothing else is computed.
func (s *ReportService) OverallReport(ctx context.Context, userID int64) (core.OverallReport, error) {
	var report core.OverallReport
	err := s.store.WithinTx(ctx, func(tx storage.Tx) error {
		user, err := tx.GetUser(ctx, userID)
		if err != nil {
			return err
		}
		report.User = user

		all := storage.ExpenseFilter{UserID: userID}
		if report.Total, err = tx.SumExpenses(ctx, all); err != nil {
			return fmt.Errorf("sum expenses: %w", err)
		}
		if report.ByCategory, err = tx.SumExpensesByCategory(ctx, all); err != nil {
			return fmt.Errorf("sum by category: %w", err)
		}

		budgets, err := tx.ListBudgets(ctx, storage.BudgetFilter{UserID: userID})
		if err != nil {
			return fmt.Errorf("list budgets: %w", err)
		}
		for _, b := range budgets {
			spent, err := tx.SumExpenses(ctx, storage.ExpenseFilter{
				UserID:   userID,
				Category: b.Category,
				Period:   b.Period,
			})
			if err != nil {
				return fmt.Errorf("sum budget month: %w", err)
			}
			if spent.Cents > b.Amount.Cents {
				report.Exceeded = append(report.Exceeded, core.ExceededBudget{
					Category: b.Category,
					Period:   b.Period,
					Spent:    spent,
					Budget:   b.Amount,
				})
			}
		}
		return nil
	})
	if err != nil {
		return core.OverallReport{}, fmt.Errorf("overall report: %w", err)
	}
	return report, nil
}

// ExportOverallReport builds the overall report and writes it to the
// configured spreadsheet.
func (s *ReportService) ExportOverallReport(ctx context.Context, userID int64) (string, error) {
	if s.exporter == nil {
		return "", ErrExportDisabled
	}
	report, err := s.OverallReport(ctx, userID)
	if err != nil {
		return "", err
	}
	ref, err := s.exporter.ExportOverallReport(ctx, report)
	if err != nil {
		return "", fmt.Errorf("%w: export overall report: %v", core.ErrTransport, err)
	}
	s.logger.InfoContext(ctx, "Overall report exported", log.FieldUserID, userID, log.FieldOperation, log.OpExport, "ref", ref)
	return ref, nil
}
