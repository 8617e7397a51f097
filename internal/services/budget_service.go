package services

import (
	"context"
	"fmt"

	"budgetwatch/internal/core"
	"budgetwatch/internal/log"
	"budgetwatch/internal/storage"
)

type BudgetService struct {
	store   storage.Store
	reports ReportInvalidator
	logger  *log.Logger
}

func NewBudgetService(store storage.Store, reports ReportInvalidator, logger *log.Logger) *BudgetService {
	return &BudgetService{store: store, reports: reports, logger: logger.WithComponent(log.ComponentBudget)}
}

// SetBudget creates the budget for its (user, category, month, year) key or
// overwrites the amount of the existing one.
func (s *BudgetService) SetBudget(ctx context.Context, b core.Budget) (core.Budget, error) {
	if err := b.Validate(); err != nil {
		return core.Budget{}, err
	}

	var saved core.Budget
	err := s.store.WithinTx(ctx, func(tx storage.Tx) error {
		var err error
		saved, err = tx.UpsertBudget(ctx, b)
		return err
	})
	if err != nil {
		return core.Budget{}, fmt.Errorf("set budget: %w", err)
	}

	if s.reports != nil {
		s.reports.Invalidate(b.UserID, b.Period)
	}

	fields := log.NewFields().
		WithBudgetKey(b.UserID, b.Category, b.Period.Year, b.Period.Month).
		WithOperation(log.OpUpsert)
	fields[log.FieldAmountCents] = b.Amount.Cents
	s.logger.InfoContext(ctx, "Budget saved", fields.ToSlice()...)

	return saved, nil
}
