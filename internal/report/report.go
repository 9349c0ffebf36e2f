// Package report computes read-only aggregations over a user's ledger.
package report

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"xarajat/internal/core"
)

// Daily covers one UTC calendar day.
type Daily struct {
	Date    time.Time
	Total   decimal.Decimal
	Count   int
	Entries []core.Expense // most recent first
}

// Monthly covers one calendar month of the current year.
type Monthly struct {
	Year       int
	Month      time.Month
	Start      time.Time
	End        time.Time
	Total      decimal.Decimal
	Count      int
	Categories []CategoryShare // subtotal descending
}

// CategoryShare is one category's slice of a period total.
type CategoryShare struct {
	Category string
	Subtotal decimal.Decimal
	Percent  decimal.Decimal // rounded to one decimal place
}

func (d Daily) IsEmpty() bool   { return d.Count == 0 }
func (m Monthly) IsEmpty() bool { return m.Count == 0 }

// Generator builds reports from a store.
type Generator struct {
	store core.ExpenseStore
	now   core.Clock
}

func NewGenerator(store core.ExpenseStore, now core.Clock) *Generator {
	if now == nil {
		now = core.SystemClock
	}
	return &Generator{store: store, now: now}
}

// Daily returns the report for today's UTC calendar day.
func (g *Generator) Daily(ctx context.Context, userID int64) (Daily, error) {
	start, end := core.DayBounds(g.now())
	expenses, err := g.store.ListByUserInRange(ctx, userID, start, end)
	if err != nil {
		return Daily{}, fmt.Errorf("daily report: %w", err)
	}

	total, _ := Summarize(expenses)
	return Daily{
		Date:    start,
		Total:   total,
		Count:   len(expenses),
		Entries: expenses,
	}, nil
}

// Monthly returns the report for month of the current year. A zero month
// means the current month.
func (g *Generator) Monthly(ctx context.Context, userID int64, month time.Month) (Monthly, error) {
	now := g.now().UTC()
	if month < time.January || month > time.December {
		month = now.Month()
	}
	start, end := core.MonthBounds(now.Year(), month)

	expenses, err := g.store.ListByUserInRange(ctx, userID, start, end)
	if err != nil {
		return Monthly{}, fmt.Errorf("monthly report: %w", err)
	}

	total, shares := Summarize(expenses)
	return Monthly{
		Year:       now.Year(),
		Month:      month,
		Start:      start,
		End:        end,
		Total:      total,
		Count:      len(expenses),
		Categories: shares,
	}, nil
}

var hundred = decimal.NewFromInt(100)

// Summarize totals expenses and splits the total by category. Categories are
// grouped verbatim and ordered by subtotal descending, then by name.
func Summarize(expenses []core.Expense) (decimal.Decimal, []CategoryShare) {
	total := decimal.Zero
	subtotals := make(map[string]decimal.Decimal)
	for _, e := range expenses {
		total = total.Add(e.Amount)
		subtotals[e.Category] = subtotals[e.Category].Add(e.Amount)
	}
	if len(subtotals) == 0 {
		return total, nil
	}

	shares := make([]CategoryShare, 0, len(subtotals))
	for category, sub := range subtotals {
		share := CategoryShare{Category: category, Subtotal: sub, Percent: decimal.Zero}
		if total.IsPositive() {
			share.Percent = sub.Mul(hundred).Div(total).Round(1)
		}
		shares = append(shares, share)
	}
	sort.Slice(shares, func(i, j int) bool {
		if c := shares[i].Subtotal.Cmp(shares[j].Subtotal); c != 0 {
			return c > 0
		}
		return shares[i].Category < shares[j].Category
	})
	return total, shares
}
