package services

import (
	"context"
	"errors"
	"fmt"

	"budgetwatch/internal/core"
	"budgetwatch/internal/log"
	"budgetwatch/internal/storage"
)

// ReportInvalidator drops cached reports affected by a write.
type ReportInvalidator interface {
	Invalidate(userID int64, period core.Period)
}

// ExpenseResult is a stored expense together with the budget state it produced.
type ExpenseResult struct {
	Expense core.Expense
	Alert   core.Alert
}

// ExpenseService records expenses and raises budget alerts.
type ExpenseService struct {
	store             storage.Store
	dispatcher        AlertDispatcher
	reports           ReportInvalidator
	recipientOverride string
	logger            *log.Logger
	structured        *log.StructuredLogger
}

// ExpenseServiceOption customises an ExpenseService.
type ExpenseServiceOption func(*ExpenseService)

// WithRecipientOverride sends every alert to one fixed address instead of
// the user's own email.
func WithRecipientOverride(addr string) ExpenseServiceOption {
	return func(s *ExpenseService) { s.recipientOverride = addr }
}

func WithReportInvalidator(r ReportInvalidator) ExpenseServiceOption {
	return func(s *ExpenseService) { s.reports = r }
}

func NewExpenseService(store storage.Store, dispatcher AlertDispatcher, logger *log.Logger, opts ...ExpenseServiceOption) *ExpenseService {
	s := &ExpenseService{
		store:      store,
		dispatcher: dispatcher,
		logger:     logger.WithComponent(log.ComponentExpense),
		structured: log.NewStructuredLogger(logger),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RecordExpense stores the expense and compares the month-to-date spend of its
// category with the matching budget. A danger alert is dispatched for email
// after the transaction commits; dispatch problems never fail the call.
func (s *ExpenseService) RecordExpense(ctx context.Context, e core.Expense) (ExpenseResult, error) {
	if err := e.Validate(); err != nil {
		return ExpenseResult{}, err
	}

	key := e.Key()
	var (
		result    ExpenseResult
		recipient string
	)
	err := s.store.WithinTx(ctx, func(tx storage.Tx) error {
		saved, err := tx.InsertExpense(ctx, e)
		if err != nil {
			return fmt.Errorf("insert expense: %w", err)
		}
		result.Expense = saved

		spent, err := tx.SumExpenses(ctx, storage.ExpenseFilter{
			UserID:   key.UserID,
			Category: key.Category,
			Period:   key.Period,
		})
		if err != nil {
			return fmt.Errorf("sum expenses: %w", err)
		}

		budget, err := tx.GetBudget(ctx, key)
		if errors.Is(err, core.ErrNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("get budget: %w", err)
		}

		result.Alert = core.Alert{
			Level:  core.EvaluateBudget(spent, budget.Amount),
			Key:    key,
			Spent:  spent,
			Budget: budget.Amount,
		}
		if result.Alert.ShouldNotify() {
			recipient, err = s.resolveRecipient(ctx, tx, key.UserID)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return ExpenseResult{}, fmt.Errorf("record expense: %w", err)
	}

	if s.reports != nil {
		s.reports.Invalidate(key.UserID, key.Period)
	}

	s.structured.LogExpenseRecorded(ctx, result.Expense.ID, key.UserID, key.Category,
		key.Period.Year, key.Period.Month, e.Amount.Cents, string(result.Alert.Level))

	if result.Alert.ShouldNotify() {
		s.notify(ctx, result.Alert, recipient)
	}
	return result, nil
}

func (s *ExpenseService) resolveRecipient(ctx context.Context, tx storage.Tx, userID int64) (string, error) {
	if s.recipientOverride != "" {
		return s.recipientOverride, nil
	}
	u, err := tx.GetUser(ctx, userID)
	if errors.Is(err, core.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get alert recipient: %w", err)
	}
	return u.Email, nil
}

func (s *ExpenseService) notify(ctx context.Context, alert core.Alert, recipient string) {
	fields := log.NewFields().
		WithBudgetKey(alert.Key.UserID, alert.Key.Category, alert.Key.Period.Year, alert.Key.Period.Month).
		WithAlert(string(alert.Level), alert.Spent.Cents, alert.Budget.Cents)

	if recipient == "" {
		s.logger.WarnContext(ctx, "Budget exceeded but user has no email on record, alert not sent", fields.ToSlice()...)
		return
	}
	if s.dispatcher == nil {
		s.logger.WarnContext(ctx, "No alert dispatcher configured, alert not sent", fields.ToSlice()...)
		return
	}
	s.dispatcher.Dispatch(ctx, alert, recipient)
}
