package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"budgetwatch/internal/core"
)

var _ Tx = (*Queries)(nil)

const createUser = `
INSERT INTO users (name, email) VALUES (?, ?)
RETURNING id, name, email`

func (q *Queries) CreateUser(ctx context.Context, u core.User) (core.User, error) {
	var out core.User
	err := q.db.QueryRowContext(ctx, createUser, u.Name, u.Email).Scan(&out.ID, &out.Name, &out.Email)
	if err != nil {
		if isUniqueViolation(err) {
			return core.User{}, fmt.Errorf("%w: email %q already registered", core.ErrConflict, u.Email)
		}
		return core.User{}, err
	}
	return out, nil
}

const getUser = `SELECT id, name, email FROM users WHERE id = ?`

func (q *Queries) GetUser(ctx context.Context, id int64) (core.User, error) {
	var u core.User
	err := q.db.QueryRowContext(ctx, getUser, id).Scan(&u.ID, &u.Name, &u.Email)
	if errors.Is(err, sql.ErrNoRows) {
		return core.User{}, fmt.Errorf("user %d: %w", id, core.ErrNotFound)
	}
	return u, err
}

const listUsers = `SELECT id, name, email FROM users ORDER BY id`

func (q *Queries) ListUsers(ctx context.Context) ([]core.User, error) {
	rows, err := q.db.QueryContext(ctx, listUsers)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []core.User
	for rows.Next() {
		var u core.User
		if err := rows.Scan(&u.ID, &u.Name, &u.Email); err != nil {
			return nil, err
		}
		items = append(items, u)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const insertExpense = `
INSERT INTO expenses (user_id, category, amount_cents, spent_on, year, month)
VALUES (?, ?, ?, ?, ?, ?)
RETURNING id`

func (q *Queries) InsertExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	p := e.Date.Period()
	err := q.db.QueryRowContext(ctx, insertExpense,
		e.UserID, e.Category, e.Amount.Cents, e.Date.String(), p.Year, p.Month,
	).Scan(&e.ID)
	if err != nil {
		return core.Expense{}, err
	}
	return e, nil
}

// The filter columns are optional: an empty category or a zero year/month
// disables that predicate.
const expenseFilterWhere = `
WHERE user_id = ?
  AND (? = '' OR category = ?)
  AND (? = 0 OR (year = ? AND month = ?))`

const sumExpenses = `SELECT COALESCE(SUM(amount_cents), 0) FROM expenses` + expenseFilterWhere

func (q *Queries) SumExpenses(ctx context.Context, f ExpenseFilter) (core.Money, error) {
	var cents int64
	if err := q.db.QueryRowContext(ctx, sumExpenses, expenseFilterArgs(f)...).Scan(&cents); err != nil {
		return core.Money{}, err
	}
	return core.Money{Cents: cents}, nil
}

const sumExpensesByCategory = `
SELECT category, COALESCE(SUM(amount_cents), 0) FROM expenses` + expenseFilterWhere + `
GROUP BY category
ORDER BY category`

func (q *Queries) SumExpensesByCategory(ctx context.Context, f ExpenseFilter) ([]core.CategoryAmount, error) {
	rows, err := q.db.QueryContext(ctx, sumExpensesByCategory, expenseFilterArgs(f)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []core.CategoryAmount
	for rows.Next() {
		var ca core.CategoryAmount
		if err := rows.Scan(&ca.Name, &ca.Amount.Cents); err != nil {
			return nil, err
		}
		items = append(items, ca)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func expenseFilterArgs(f ExpenseFilter) []any {
	return []any{
		f.UserID,
		f.Category, f.Category,
		f.Period.Year, f.Period.Year, f.Period.Month,
	}
}

const budgetColumns = `id, user_id, category, month, year, amount_cents`

const getBudget = `
SELECT ` + budgetColumns + ` FROM budgets
WHERE user_id = ? AND category = ? AND month = ? AND year = ?`

func (q *Queries) GetBudget(ctx context.Context, key core.BudgetKey) (core.Budget, error) {
	row := q.db.QueryRowContext(ctx, getBudget, key.UserID, key.Category, key.Period.Month, key.Period.Year)
	b, err := scanBudget(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Budget{}, fmt.Errorf("budget %s/%s for user %d: %w", key.Category, key.Period, key.UserID, core.ErrNotFound)
	}
	return b, err
}

const upsertBudget = `
INSERT INTO budgets (user_id, category, month, year, amount_cents)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (user_id, category, month, year)
DO UPDATE SET amount_cents = excluded.amount_cents, updated_at = CURRENT_TIMESTAMP
RETURNING ` + budgetColumns

func (q *Queries) UpsertBudget(ctx context.Context, b core.Budget) (core.Budget, error) {
	row := q.db.QueryRowContext(ctx, upsertBudget,
		b.UserID, b.Category, b.Period.Month, b.Period.Year, b.Amount.Cents)
	return scanBudget(row)
}

const listBudgets = `
SELECT ` + budgetColumns + ` FROM budgets
WHERE user_id = ?
  AND (? = 0 OR (year = ? AND month = ?))
ORDER BY year, month, category, id`

func (q *Queries) ListBudgets(ctx context.Context, f BudgetFilter) ([]core.Budget, error) {
	rows, err := q.db.QueryContext(ctx, listBudgets, f.UserID, f.Period.Year, f.Period.Year, f.Period.Month)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []core.Budget
	for rows.Next() {
		b, err := scanBudget(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, b)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanBudget(s scanner) (core.Budget, error) {
	var b core.Budget
	err := s.Scan(&b.ID, &b.UserID, &b.Category, &b.Period.Month, &b.Period.Year, &b.Amount.Cents)
	return b, err
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
