package core

import (
	"context"
	"time"
)

// Ports for outbound storage adapters.
type (
	// ExpenseStore is the durable record store behind the ledger.
	// Implementations must be safe for concurrent use and must never reuse ids.
	ExpenseStore interface {
		// Create persists e and returns the id assigned to it.
		Create(ctx context.Context, e Expense) (int64, error)

		// ListByUser returns at most limit expenses, most recent first.
		ListByUser(ctx context.Context, userID int64, limit int) ([]Expense, error)

		// ListByUserInRange returns expenses created within [start, end], most recent first.
		ListByUserInRange(ctx context.Context, userID int64, start, end time.Time) ([]Expense, error)

		// FindByIDAndUser returns ErrNotFound unless id exists and belongs to userID.
		FindByIDAndUser(ctx context.Context, id, userID int64) (Expense, error)

		// Delete removes an expense whose ownership was already checked.
		Delete(ctx context.Context, id int64) error

		// SumAndCountByUser aggregates all of a user's expenses; zero totals for none.
		SumAndCountByUser(ctx context.Context, userID int64) (Totals, error)
	}

	// Pinger is implemented by stores that can report readiness.
	Pinger interface {
		Ping(ctx context.Context) error
	}
)
