package core

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type (
	// Expense is one user-submitted outlay. It is never updated in place.
	Expense struct {
		ID          int64
		UserID      int64
		Amount      decimal.Decimal
		Category    string
		Description string
		CreatedAt   time.Time // UTC
	}

	// Totals is the aggregate over all of a user's expenses.
	Totals struct {
		Sum   decimal.Decimal
		Count int64
	}

	// Clock returns the current time. Inject a fixed one in tests.
	Clock func() time.Time
)

var (
	ErrNotFound      = errors.New("expense not found")
	ErrInvalidAmount = errors.New("invalid amount")
	ErrEmptyCategory = errors.New("empty category")
	ErrInvalidUser   = errors.New("invalid user id")
)

// SystemClock is the wall clock in UTC.
func SystemClock() time.Time {
	return time.Now().UTC()
}

// NewExpense builds an expense stamped with the clock's current time.
// The description mirrors the category.
func NewExpense(userID int64, amount decimal.Decimal, category string, now Clock) Expense {
	return Expense{
		UserID:      userID,
		Amount:      amount,
		Category:    category,
		Description: category,
		CreatedAt:   now().UTC(),
	}
}

func (e Expense) Validate() error {
	if e.UserID == 0 {
		return ErrInvalidUser
	}
	if !e.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if strings.TrimSpace(e.Category) == "" {
		return ErrEmptyCategory
	}
	return nil
}

// IsEmpty reports whether the totals cover no expenses at all.
func (t Totals) IsEmpty() bool {
	return t.Count == 0
}
