package storage

import (
	"context"

	"xarajat/internal/cache"
	"xarajat/internal/core"
)

// CachedStore memoizes per-user totals in front of another store.
// Writes invalidate: Create drops the writer's entry, Delete drops all entries
// because the owner of an id is not known at that point.
type CachedStore struct {
	core.ExpenseStore
	totals cache.Cache[int64, core.Totals]
}

func NewCachedStore(next core.ExpenseStore, totals cache.Cache[int64, core.Totals]) *CachedStore {
	return &CachedStore{ExpenseStore: next, totals: totals}
}

func (s *CachedStore) Create(ctx context.Context, e core.Expense) (int64, error) {
	id, err := s.ExpenseStore.Create(ctx, e)
	if err != nil {
		return 0, err
	}
	s.totals.Delete(e.UserID)
	return id, nil
}

func (s *CachedStore) Delete(ctx context.Context, id int64) error {
	if err := s.ExpenseStore.Delete(ctx, id); err != nil {
		return err
	}
	s.totals.Purge()
	return nil
}

func (s *CachedStore) SumAndCountByUser(ctx context.Context, userID int64) (core.Totals, error) {
	if t, ok := s.totals.Get(userID); ok {
		return t, nil
	}
	t, err := s.ExpenseStore.SumAndCountByUser(ctx, userID)
	if err != nil {
		return core.Totals{}, err
	}
	s.totals.Set(userID, t)
	return t, nil
}

// Ping forwards to the wrapped store when it supports readiness checks.
func (s *CachedStore) Ping(ctx context.Context) error {
	if p, ok := s.ExpenseStore.(core.Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}
