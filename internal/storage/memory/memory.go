package memory

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"budgetwatch/internal/core"
	"budgetwatch/internal/storage"
)

// Store keeps every record in process memory. Transactions are serialised by
// a mutex and run against a copy of the state that replaces the live one only
// when the callback succeeds.
type Store struct {
	mu    sync.Mutex
	state state
}

type state struct {
	users    []core.User
	expenses []core.Expense
	budgets  []core.Budget

	nextUserID    int64
	nextExpenseID int64
	nextBudgetID  int64
}

var _ storage.Store = (*Store)(nil)

func New() *Store {
	return &Store{}
}

// NewFromFile seeds users from a file of "name,email" lines. Blank lines,
// comments, lines without an email and repeated emails are skipped. A missing file yields an empty store.
func NewFromFile(path string) (*Store, error) {
	s := New()
	for _, line := range readLines(path) {
		name, email, ok := strings.Cut(line, ",")
		if !ok {
			email, name = name, ""
		}
		u := core.User{Name: strings.TrimSpace(name), Email: strings.TrimSpace(email)}
		if u.Validate() != nil {
			continue
		}
		err := s.WithinTx(context.Background(), func(tx storage.Tx) error {
			_, err := tx.CreateUser(context.Background(), u)
			return err
		})
		if err != nil && !errors.Is(err, core.ErrConflict) {
			return nil, fmt.Errorf("seed user %q: %w", line, err)
		}
	}
	return s, nil
}

func (s *Store) WithinTx(ctx context.Context, fn func(storage.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	staged := s.state.clone()
	if err := fn(&tx{st: &staged}); err != nil {
		return err
	}
	s.state = staged
	return nil
}

func (s *Store) Ping(ctx context.Context) error { return ctx.Err() }

func (s *Store) Close() error { return nil }

func (st state) clone() state {
	out := st
	out.users = append([]core.User(nil), st.users...)
	out.expenses = append([]core.Expense(nil), st.expenses...)
	out.budgets = append([]core.Budget(nil), st.budgets...)
	return out
}

type tx struct {
	st *state
}

func (t *tx) CreateUser(_ context.Context, u core.User) (core.User, error) {
	for _, existing := range t.st.users {
		if existing.Email == u.Email {
			return core.User{}, fmt.Errorf("%w: email %q already registered", core.ErrConflict, u.Email)
		}
	}
	t.st.nextUserID++
	u.ID = t.st.nextUserID
	t.st.users = append(t.st.users, u)
	return u, nil
}

func (t *tx) GetUser(_ context.Context, id int64) (core.User, error) {
	for _, u := range t.st.users {
		if u.ID == id {
			return u, nil
		}
	}
	return core.User{}, fmt.Errorf("user %d: %w", id, core.ErrNotFound)
}

func (t *tx) ListUsers(_ context.Context) ([]core.User, error) {
	return append([]core.User(nil), t.st.users...), nil
}

func (t *tx) InsertExpense(_ context.Context, e core.Expense) (core.Expense, error) {
	t.st.nextExpenseID++
	e.ID = t.st.nextExpenseID
	t.st.expenses = append(t.st.expenses, e)
	return e, nil
}

func (t *tx) SumExpenses(_ context.Context, f storage.ExpenseFilter) (core.Money, error) {
	var total core.Money
	for _, e := range t.st.expenses {
		if matches(e, f) {
			total = total.Add(e.Amount)
		}
	}
	return total, nil
}

func (t *tx) SumExpensesByCategory(_ context.Context, f storage.ExpenseFilter) ([]core.CategoryAmount, error) {
	sums := map[string]core.Money{}
	for _, e := range t.st.expenses {
		if matches(e, f) {
			sums[e.Category] = sums[e.Category].Add(e.Amount)
		}
	}
	out := make([]core.CategoryAmount, 0, len(sums))
	for name, amount := range sums {
		out = append(out, core.CategoryAmount{Name: name, Amount: amount})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func matches(e core.Expense, f storage.ExpenseFilter) bool {
	if e.UserID != f.UserID {
		return false
	}
	if f.Category != "" && e.Category != f.Category {
		return false
	}
	if !f.Period.IsZero() && e.Date.Period() != f.Period {
		return false
	}
	return true
}

func (t *tx) GetBudget(_ context.Context, key core.BudgetKey) (core.Budget, error) {
	for _, b := range t.st.budgets {
		if b.Key() == key {
			return b, nil
		}
	}
	return core.Budget{}, fmt.Errorf("budget %s/%s for user %d: %w", key.Category, key.Period, key.UserID, core.ErrNotFound)
}

func (t *tx) UpsertBudget(_ context.Context, b core.Budget) (core.Budget, error) {
	for i, existing := range t.st.budgets {
		if existing.Key() == b.Key() {
			t.st.budgets[i].Amount = b.Amount
			return t.st.budgets[i], nil
		}
	}
	t.st.nextBudgetID++
	b.ID = t.st.nextBudgetID
	t.st.budgets = append(t.st.budgets, b)
	return b, nil
}

func (t *tx) ListBudgets(_ context.Context, f storage.BudgetFilter) ([]core.Budget, error) {
	var out []core.Budget
	for _, b := range t.st.budgets {
		if b.UserID != f.UserID {
			continue
		}
		if !f.Period.IsZero() && b.Period != f.Period {
			continue
		}
		out = append(out, b)
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Period.Year != b.Period.Year {
			return a.Period.Year < b.Period.Year
		}
		if a.Period.Month != b.Period.Month {
			return a.Period.Month < b.Period.Month
		}
		if a.Category != b.Category {
			return a.Category < b.Category
		}
		return a.ID < b.ID
	})
	return out, nil
}

func readLines(path string) []string {
	if path == "" {
		return nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out
}
