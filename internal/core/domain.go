package core

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the wire format for expense dates in forms and storage.
const DateLayout = "2006-01-02"

type (
	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	// Period identifies one calendar month.
	Period struct {
		Year  int
		Month int // 1-12
	}

	User struct {
		ID    int64
		Name  string
		Email string
	}

	Expense struct {
		ID       int64
		UserID   int64
		Category string
		Amount   Money
		Date     Date
	}

	Budget struct {
		ID       int64
		UserID   int64
		Category string
		Period   Period
		Amount   Money
	}

	// BudgetKey is the composite identity of a budget row.
	BudgetKey struct {
		UserID   int64
		Category string
		Period   Period
	}
)

var (
	ErrInvalidDate   = fmt.Errorf("%w: invalid date", ErrValidation)
	ErrInvalidMonth  = fmt.Errorf("%w: invalid month", ErrValidation)
	ErrInvalidYear   = fmt.Errorf("%w: invalid year", ErrValidation)
	ErrInvalidAmount = fmt.Errorf("%w: invalid amount", ErrValidation)
	ErrInvalidUserID = fmt.Errorf("%w: invalid user id", ErrValidation)
	ErrEmptyEmail    = fmt.Errorf("%w: email is required", ErrValidation)
)

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// dateInputLayout accepts month and day with or without a leading zero.
const dateInputLayout = "2006-1-2"

// ParseDate parses a YYYY-MM-DD string; 2024-1-5 is read as 2024-01-05.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateInputLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return Date{Time: t}, nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// Period returns the calendar month the date falls in.
func (d Date) Period() Period {
	return Period{Year: d.Year(), Month: int(d.Month())}
}

func (d Date) String() string {
	return d.Format(DateLayout)
}

func (p Period) Validate() error {
	if p.Month < 1 || p.Month > 12 {
		return ErrInvalidMonth
	}
	if p.Year < 1 || p.Year > 9999 {
		return ErrInvalidYear
	}
	return nil
}

// IsZero reports whether the period is unset, meaning "all time" in filters.
func (p Period) IsZero() bool {
	return p.Year == 0 && p.Month == 0
}

func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, p.Month)
}

func (m Money) Validate() error {
	if m.Cents < 0 || m.Cents > MaxAmountCents {
		return ErrInvalidAmount
	}
	return nil
}

func (u User) Validate() error {
	if strings.TrimSpace(u.Email) == "" {
		return ErrEmptyEmail
	}
	return nil
}

func (e Expense) Validate() error {
	if e.UserID <= 0 {
		return ErrInvalidUserID
	}
	if err := e.Date.Validate(); err != nil {
		return err
	}
	return e.Amount.Validate()
}

// Key returns the composite key of the budget this expense counts against.
func (e Expense) Key() BudgetKey {
	return BudgetKey{UserID: e.UserID, Category: e.Category, Period: e.Date.Period()}
}

func (b Budget) Validate() error {
	if b.UserID <= 0 {
		return ErrInvalidUserID
	}
	if err := b.Period.Validate(); err != nil {
		return err
	}
	return b.Amount.Validate()
}

func (b Budget) Key() BudgetKey {
	return BudgetKey{UserID: b.UserID, Category: b.Category, Period: b.Period}
}
