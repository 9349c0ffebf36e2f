// Package ledger executes parsed commands against the expense store.
package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"xarajat/internal/core"
	applog "xarajat/internal/log"
)

// ListLimit caps how many recent expenses /list shows.
const ListLimit = 10

// Publisher receives ledger change events. It is optional.
type Publisher interface {
	PublishExpenseCreated(ctx context.Context, e core.Expense) error
	PublishExpenseDeleted(ctx context.Context, e core.Expense) error
}

// Service is stateless apart from its injected collaborators.
type Service struct {
	store     core.ExpenseStore
	now       core.Clock
	publisher Publisher
}

func NewService(store core.ExpenseStore, now core.Clock, publisher Publisher) *Service {
	if now == nil {
		now = core.SystemClock
	}
	return &Service{store: store, now: now, publisher: publisher}
}

// Add records a new expense for userID.
func (s *Service) Add(ctx context.Context, userID int64, amount decimal.Decimal, category string) (core.Expense, error) {
	e := core.NewExpense(userID, amount, category, s.now)
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}

	id, err := s.store.Create(ctx, e)
	if err != nil {
		return core.Expense{}, fmt.Errorf("add expense: %w", err)
	}
	e.ID = id

	if s.publisher != nil {
		if err := s.publisher.PublishExpenseCreated(ctx, e); err != nil {
			// The expense is stored; the event stream is best effort
			applog.FromContext(ctx).WarnContext(ctx, "Failed to publish expense created event",
				applog.FieldExpenseID, id, applog.FieldError, err)
		}
	}
	return e, nil
}

// List returns up to ListLimit of the user's most recent expenses.
func (s *Service) List(ctx context.Context, userID int64) ([]core.Expense, error) {
	expenses, err := s.store.ListByUser(ctx, userID, ListLimit)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	return expenses, nil
}

// Total aggregates every expense of the user. An empty ledger yields
// Totals with Count zero rather than an error.
func (s *Service) Total(ctx context.Context, userID int64) (core.Totals, error) {
	totals, err := s.store.SumAndCountByUser(ctx, userID)
	if err != nil {
		return core.Totals{}, fmt.Errorf("total expenses: %w", err)
	}
	return totals, nil
}

// Delete removes the expense if userID owns it. Missing and foreign ids both
// return core.ErrNotFound so other users' ids are not disclosed.
func (s *Service) Delete(ctx context.Context, userID, id int64) (core.Expense, error) {
	e, err := s.store.FindByIDAndUser(ctx, id, userID)
	if errors.Is(err, core.ErrNotFound) {
		return core.Expense{}, core.ErrNotFound
	}
	if err != nil {
		return core.Expense{}, fmt.Errorf("find expense: %w", err)
	}

	if err := s.store.Delete(ctx, e.ID); err != nil {
		return core.Expense{}, fmt.Errorf("delete expense: %w", err)
	}

	if s.publisher != nil {
		if err := s.publisher.PublishExpenseDeleted(ctx, e); err != nil {
			applog.FromContext(ctx).WarnContext(ctx, "Failed to publish expense deleted event",
				applog.FieldExpenseID, e.ID, applog.FieldError, err)
		}
	}
	return e, nil
}
