// Package memory is an in-process core.ExpenseStore used for local runs and tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"xarajat/internal/core"
)

type Store struct {
	mu     sync.RWMutex
	nextID atomic.Int64
	items  map[int64]core.Expense
}

var _ core.ExpenseStore = (*Store)(nil)

func New() *Store {
	return &Store{items: make(map[int64]core.Expense)}
}

// Create stores the expense under the next id. Ids are never reused.
func (s *Store) Create(_ context.Context, e core.Expense) (int64, error) {
	if err := e.Validate(); err != nil {
		return 0, err
	}
	e.ID = s.nextID.Add(1)
	e.CreatedAt = e.CreatedAt.UTC()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[e.ID] = e
	return e.ID, nil
}

func (s *Store) ListByUser(_ context.Context, userID int64, limit int) ([]core.Expense, error) {
	if limit <= 0 {
		return nil, nil
	}
	out := s.collect(func(e core.Expense) bool { return e.UserID == userID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) ListByUserInRange(_ context.Context, userID int64, start, end time.Time) ([]core.Expense, error) {
	return s.collect(func(e core.Expense) bool {
		return e.UserID == userID && !e.CreatedAt.Before(start) && !e.CreatedAt.After(end)
	}), nil
}

func (s *Store) FindByIDAndUser(_ context.Context, id, userID int64) (core.Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.items[id]
	if !ok || e.UserID != userID {
		return core.Expense{}, core.ErrNotFound
	}
	return e, nil
}

func (s *Store) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, id)
	return nil
}

func (s *Store) SumAndCountByUser(_ context.Context, userID int64) (core.Totals, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	totals := core.Totals{Sum: decimal.Zero}
	for _, e := range s.items {
		if e.UserID == userID {
			totals.Sum = totals.Sum.Add(e.Amount)
			totals.Count++
		}
	}
	return totals, nil
}

func (s *Store) Ping(context.Context) error { return nil }

// collect returns matching expenses, most recent first.
func (s *Store) collect(match func(core.Expense) bool) []core.Expense {
	s.mu.RLock()
	out := make([]core.Expense, 0)
	for _, e := range s.items {
		if match(e) {
			out = append(out, e)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}
