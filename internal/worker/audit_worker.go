// Package worker consumes ledger events off the broker.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"xarajat/internal/amqp"
	"xarajat/internal/cache"
	applog "xarajat/internal/log"
)

// AuditRecord is one line of the audit log.
type AuditRecord struct {
	ReceivedAt time.Time   `json:"received_at"`
	Event      *amqp.Event `json:"event"`
}

// Stats summarizes what the worker has seen since it started.
type Stats struct {
	Created    int64
	Deleted    int64
	Duplicates int64
	Rejected   int64
	// Net is the sum of created amounts minus deleted amounts.
	Net decimal.Decimal
}

// AuditWorker appends every ledger event to an audit log as JSON lines.
// Broker redeliveries are recognized by event type and expense id and skipped.
type AuditWorker struct {
	mu    sync.Mutex
	enc   *json.Encoder
	seen  cache.Cache[string, struct{}]
	stats Stats
	now   func() time.Time
}

func NewAuditWorker(out io.Writer, seen cache.Cache[string, struct{}]) *AuditWorker {
	return &AuditWorker{
		enc:   json.NewEncoder(out),
		seen:  seen,
		stats: Stats{Net: decimal.Zero},
		now:   time.Now,
	}
}

// HandleEvent processes one event. It returns an error only when the record
// could not be written, so the broker redelivers it.
func (w *AuditWorker) HandleEvent(ctx context.Context, ev *amqp.Event) error {
	logger := applog.FromContext(ctx)

	expense, err := ev.Expense()
	if err != nil {
		logger.ErrorContext(ctx, "Dropping malformed event",
			applog.FieldEventType, ev.Type, applog.FieldExpenseID, ev.ID, applog.FieldError, err)
		w.mu.Lock()
		w.stats.Rejected++
		w.mu.Unlock()
		return nil
	}

	key := fmt.Sprintf("%s:%d", ev.Type, ev.ID)

	w.mu.Lock()
	defer w.mu.Unlock()

	if _, dup := w.seen.Get(key); dup {
		w.stats.Duplicates++
		logger.DebugContext(ctx, "Skipping redelivered event", applog.FieldEventType, ev.Type, applog.FieldExpenseID, ev.ID)
		return nil
	}

	if err := w.enc.Encode(AuditRecord{ReceivedAt: w.now().UTC(), Event: ev}); err != nil {
		return fmt.Errorf("write audit record: %w", err)
	}
	w.seen.Set(key, struct{}{})

	switch ev.Type {
	case amqp.EventExpenseCreated:
		w.stats.Created++
		w.stats.Net = w.stats.Net.Add(expense.Amount)
	case amqp.EventExpenseDeleted:
		w.stats.Deleted++
		w.stats.Net = w.stats.Net.Sub(expense.Amount)
	}

	logger.InfoContext(ctx, "Audited ledger event",
		applog.FieldEventType, ev.Type,
		applog.FieldExpenseID, ev.ID,
		applog.FieldUserID, ev.UserID,
		applog.FieldAmount, ev.Amount)
	return nil
}

func (w *AuditWorker) Stats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}

// ReportStats logs Stats every interval until ctx is cancelled.
func (w *AuditWorker) ReportStats(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger := applog.FromContext(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s := w.Stats()
			logger.InfoContext(ctx, "Audit worker stats",
				"created", s.Created,
				"deleted", s.Deleted,
				"duplicates", s.Duplicates,
				"rejected", s.Rejected,
				"net", s.Net.String())
		}
	}
}
