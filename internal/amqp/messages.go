package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"xarajat/internal/core"
)

type EventType string

const (
	EventExpenseCreated EventType = "expense.created"
	EventExpenseDeleted EventType = "expense.deleted"
)

// Event is the JSON body of every ledger message. Amount travels as a decimal
// string so no precision is lost between processes.
type Event struct {
	Type      EventType `json:"type"`
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Amount    string    `json:"amount"`
	Category  string    `json:"category"`
	CreatedAt time.Time `json:"created_at"`
	Timestamp time.Time `json:"timestamp"`
}

// NewEvent snapshots e as an event of type t stamped with the current time.
func NewEvent(t EventType, e core.Expense) *Event {
	return &Event{
		Type:      t,
		ID:        e.ID,
		UserID:    e.UserID,
		Amount:    e.Amount.String(),
		Category:  e.Category,
		CreatedAt: e.CreatedAt.UTC(),
		Timestamp: time.Now().UTC(),
	}
}

func (m *Event) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// Expense rebuilds the expense carried by the event.
func (m *Event) Expense() (core.Expense, error) {
	amount, err := decimal.NewFromString(m.Amount)
	if err != nil {
		return core.Expense{}, fmt.Errorf("event amount %q: %w", m.Amount, err)
	}
	return core.Expense{
		ID:          m.ID,
		UserID:      m.UserID,
		Amount:      amount,
		Category:    m.Category,
		Description: m.Category,
		CreatedAt:   m.CreatedAt,
	}, nil
}

// EventFromJSON decodes an event and rejects unknown types.
func EventFromJSON(data []byte) (*Event, error) {
	var msg Event
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	switch msg.Type {
	case EventExpenseCreated, EventExpenseDeleted:
	default:
		return nil, fmt.Errorf("unknown event type %q", msg.Type)
	}
	if msg.ID <= 0 {
		return nil, fmt.Errorf("event without expense id")
	}
	return &msg, nil
}
