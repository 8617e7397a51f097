package storage

import (
	"context"

	"budgetwatch/internal/core"
)

// ExpenseFilter narrows aggregate queries. An empty Category means every
// category, a zero Period means all time.
type ExpenseFilter struct {
	UserID   int64
	Category string
	Period   core.Period
}

// BudgetFilter narrows budget listings. A zero Period means every month.
type BudgetFilter struct {
	UserID int64
	Period core.Period
}

// Tx is the set of operations available inside a transaction.
type Tx interface {
	CreateUser(ctx context.Context, u core.User) (core.User, error)
	GetUser(ctx context.Context, id int64) (core.User, error)
	ListUsers(ctx context.Context) ([]core.User, error)

	InsertExpense(ctx context.Context, e core.Expense) (core.Expense, error)
	SumExpenses(ctx context.Context, f ExpenseFilter) (core.Money, error)
	SumExpensesByCategory(ctx context.Context, f ExpenseFilter) ([]core.CategoryAmount, error)

	GetBudget(ctx context.Context, key core.BudgetKey) (core.Budget, error)
	UpsertBudget(ctx context.Context, b core.Budget) (core.Budget, error)
	ListBudgets(ctx context.Context, f BudgetFilter) ([]core.Budget, error)
}

// Store is a durable record store. WithinTx commits when fn returns nil and
// rolls back when it returns an error or panics.
type Store interface {
	WithinTx(ctx context.Context, fn func(Tx) error) error
	Ping(ctx context.Context) error
	Close() error
}
