package storage

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"xarajat/internal/cache"
	"xarajat/internal/core"
	"xarajat/internal/storage/memory"
)

type countingStore struct {
	core.ExpenseStore
	sums int
}

func (s *countingStore) SumAndCountByUser(ctx context.Context, userID int64) (core.Totals, error) {
	s.sums++
	return s.ExpenseStore.SumAndCountByUser(ctx, userID)
}

func TestCachedStore(t *testing.T) {
	inner := &countingStore{ExpenseStore: memory.New()}
	store := NewCachedStore(inner, cache.NewLRUCache[int64, core.Totals](16, time.Minute))
	ctx := context.Background()

	add := func(user int64, amount int64) int64 {
		id, err := store.Create(ctx, core.Expense{UserID: user, Amount: decimal.NewFromInt(amount), Category: "x", CreatedAt: time.Now()})
		if err != nil {
			t.Fatal(err)
		}
		return id
	}

	add(1, 10)
	first, _ := store.SumAndCountByUser(ctx, 1)
	again, _ := store.SumAndCountByUser(ctx, 1)
	if inner.sums != 1 {
		t.Fatalf("expected one backend sum, got %d", inner.sums)
	}
	if !first.Sum.Equal(again.Sum) || again.Count != 1 {
		t.Fatalf("cached totals mismatch: %+v vs %+v", first, again)
	}

	id := add(1, 5)
	totals, _ := store.SumAndCountByUser(ctx, 1)
	if totals.Count != 2 || !totals.Sum.Equal(decimal.NewFromInt(15)) {
		t.Fatalf("create did not invalidate: %+v", totals)
	}

	if err := store.Delete(ctx, id); err != nil {
		t.Fatal(err)
	}
	totals, _ = store.SumAndCountByUser(ctx, 1)
	if totals.Count != 1 {
		t.Fatalf("delete did not invalidate: %+v", totals)
	}
	if err := store.Ping(ctx); err != nil {
		t.Fatalf("ping: %v", err)
	}
}
