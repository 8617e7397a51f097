package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"budgetwatch/internal/core"
	"budgetwatch/internal/storage"
)

const uniqueViolation = "23505"

// queries runs the storage operations against one open transaction.
type queries struct {
	db pgx.Tx
}

var _ storage.Tx = (*queries)(nil)

const createUser = `
INSERT INTO users (name, email) VALUES ($1, $2)
RETURNING id, name, email`

func (q *queries) CreateUser(ctx context.Context, u core.User) (core.User, error) {
	var out core.User
	err := q.db.QueryRow(ctx, createUser, u.Name, u.Email).Scan(&out.ID, &out.Name, &out.Email)
	if err != nil {
		if isUniqueViolation(err) {
			return core.User{}, fmt.Errorf("%w: email %q already registered", core.ErrConflict, u.Email)
		}
		return core.User{}, err
	}
	return out, nil
}

func (q *queries) GetUser(ctx context.Context, id int64) (core.User, error) {
	var u core.User
	err := q.db.QueryRow(ctx, `SELECT id, name, email FROM users WHERE id = $1`, id).
		Scan(&u.ID, &u.Name, &u.Email)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.User{}, fmt.Errorf("user %d: %w", id, core.ErrNotFound)
	}
	return u, err
}

func (q *queries) ListUsers(ctx context.Context) ([]core.User, error) {
	rows, err := q.db.Query(ctx, `SELECT id, name, email FROM users ORDER BY id`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (core.User, error) {
		var u core.User
		err := row.Scan(&u.ID, &u.Name, &u.Email)
		return u, err
	})
}

const insertExpense = `
INSERT INTO expenses (user_id, category, amount_cents, spent_on, year, month)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id`

func (q *queries) InsertExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	p := e.Date.Period()
	err := q.db.QueryRow(ctx, insertExpense,
		e.UserID, e.Category, e.Amount.Cents, e.Date.Time, p.Year, p.Month,
	).Scan(&e.ID)
	if err != nil {
		return core.Expense{}, err
	}
	return e, nil
}

// An empty category or a zero year disables that predicate.
const expenseFilterWhere = `
WHERE user_id = $1
  AND ($2::text = '' OR category = $2)
  AND ($3::int = 0 OR (year = $3 AND month = $4))`

func expenseFilterArgs(f storage.ExpenseFilter) []any {
	return []any{f.UserID, f.Category, f.Period.Year, f.Period.Month}
}

func (q *queries) SumExpenses(ctx context.Context, f storage.ExpenseFilter) (core.Money, error) {
	var cents int64
	err := q.db.QueryRow(ctx,
		`SELECT COALESCE(SUM(amount_cents), 0)::bigint FROM expenses`+expenseFilterWhere,
		expenseFilterArgs(f)...,
	).Scan(&cents)
	if err != nil {
		return core.Money{}, err
	}
	return core.Money{Cents: cents}, nil
}

const sumExpensesByCategory = `
SELECT category, COALESCE(SUM(amount_cents), 0)::bigint FROM expenses` + expenseFilterWhere + `
GROUP BY category
ORDER BY category`

func (q *queries) SumExpensesByCategory(ctx context.Context, f storage.ExpenseFilter) ([]core.CategoryAmount, error) {
	rows, err := q.db.Query(ctx, sumExpensesByCategory, expenseFilterArgs(f)...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (core.CategoryAmount, error) {
		var ca core.CategoryAmount
		err := row.Scan(&ca.Name, &ca.Amount.Cents)
		return ca, err
	})
}

const budgetColumns = `id, user_id, category, month, year, amount_cents`

func (q *queries) GetBudget(ctx context.Context, key core.BudgetKey) (core.Budget, error) {
	row := q.db.QueryRow(ctx, `
SELECT `+budgetColumns+` FROM budgets
WHERE user_id = $1 AND category = $2 AND month = $3 AND year = $4`,
		key.UserID, key.Category, key.Period.Month, key.Period.Year)
	b, err := scanBudget(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Budget{}, fmt.Errorf("budget %s/%s for user %d: %w", key.Category, key.Period, key.UserID, core.ErrNotFound)
	}
	return b, err
}

const upsertBudget = `
INSERT INTO budgets (user_id, category, month, year, amount_cents)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (user_id, category, month, year)
DO UPDATE SET amount_cents = EXCLUDED.amount_cents, updated_at = now()
RETURNING ` + budgetColumns

func (q *queries) UpsertBudget(ctx context.Context, b core.Budget) (core.Budget, error) {
	row := q.db.QueryRow(ctx, upsertBudget,
		b.UserID, b.Category, b.Period.Month, b.Period.Year, b.Amount.Cents)
	return scanBudget(row)
}

const listBudgets = `
SELECT ` + budgetColumns + ` FROM budgets
WHERE user_id = $1
  AND ($2::int = 0 OR (year = $2 AND month = $3))
ORDER BY year, month, category, id`

func (q *queries) ListBudgets(ctx context.Context, f storage.BudgetFilter) ([]core.Budget, error) {
	rows, err := q.db.Query(ctx, listBudgets, f.UserID, f.Period.Year, f.Period.Month)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (core.Budget, error) {
		return scanBudget(row)
	})
}

func scanBudget(row pgx.Row) (core.Budget, error) {
	var b core.Budget
	err := row.Scan(&b.ID, &b.UserID, &b.Category, &b.Period.Month, &b.Period.Year, &b.Amount.Cents)
	return b, err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
