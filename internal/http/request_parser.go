// Package http provides HTTP server and handler implementations.
//
// This file turns form values and path parameters into domain values.
// Malformed input is reported as core.ErrValidation so handlers can answer
// with 400.

package http

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"budgetwatch/internal/core"

	"github.com/go-chi/chi/v5"
)

// errBadPathParam marks a path parameter that is not a usable integer.
// Routes only match digits, so this only fires on overflow.
var errBadPathParam = fmt.Errorf("%w: bad path parameter", core.ErrNotFound)

// pathInt64 reads a numeric route parameter.
func pathInt64(r *http.Request, name string) (int64, error) {
	v, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil {
		return 0, errBadPathParam
	}
	return v, nil
}

func pathInt(r *http.Request, name string) (int, error) {
	v, err := strconv.Atoi(chi.URLParam(r, name))
	if err != nil {
		return 0, errBadPathParam
	}
	return v, nil
}

// formValue returns the trimmed, sanitized field or a validation error when
// the field is missing or blank.
func formValue(form url.Values, name string) (string, error) {
	v := sanitizeInput(form.Get(name))
	if v == "" {
		return "", fmt.Errorf("%w: %s is required", core.ErrValidation, name)
	}
	return v, nil
}

func formInt64(form url.Values, name string) (int64, error) {
	v, err := formValue(form, name)
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", core.ErrValidation, name)
	}
	return n, nil
}

func formInt(form url.Values, name string) (int, error) {
	n, err := formInt64(form, name)
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func formMoney(form url.Values, name string) (core.Money, error) {
	v, err := formValue(form, name)
	if err != nil {
		return core.Money{}, err
	}
	m, err := core.ParseMoney(v)
	if err != nil {
		return core.Money{}, fmt.Errorf("%s: %w", name, err)
	}
	return m, nil
}

// ParseExpenseForm reads user_id, category, amount and date.
func ParseExpenseForm(form url.Values) (core.Expense, error) {
	userID, err := formInt64(form, "user_id")
	if err != nil {
		return core.Expense{}, err
	}
	category, err := formValue(form, "category")
	if err != nil {
		return core.Expense{}, err
	}
	amount, err := formMoney(form, "amount")
	if err != nil {
		return core.Expense{}, err
	}
	rawDate, err := formValue(form, "date")
	if err != nil {
		return core.Expense{}, err
	}
	date, err := core.ParseDate(rawDate)
	if err != nil {
		return core.Expense{}, err
	}

	e := core.Expense{UserID: userID, Category: category, Amount: amount, Date: date}
	return e, e.Validate()
}

// ParseBudgetForm reads user_id, category, month, year and amount.
func ParseBudgetForm(form url.Values) (core.Budget, error) {
	userID, err := formInt64(form, "user_id")
	if err != nil {
		return core.Budget{}, err
	}
	category, err := formValue(form, "category")
	if err != nil {
		return core.Budget{}, err
	}
	month, err := formInt(form, "month")
	if err != nil {
		return core.Budget{}, err
	}
	year, err := formInt(form, "year")
	if err != nil {
		return core.Budget{}, err
	}
	amount, err := formMoney(form, "amount")
	if err != nil {
		return core.Budget{}, err
	}

	b := core.Budget{
		UserID:   userID,
		Category: category,
		Period:   core.Period{Year: year, Month: month},
		Amount:   amount,
	}
	return b, b.Validate()
}

// sanitizeInput removes control characters except tab, newline and carriage
// return, then trims whitespace.
func sanitizeInput(s string) string {
	s = strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
	return strings.TrimSpace(s)
}
