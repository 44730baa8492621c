package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"reina/internal/core"
)

// EventKind names the change an ExpenseEvent reports.
type EventKind string

const (
	ExpenseCreated EventKind = "expense.created"
	ExpenseUpdated EventKind = "expense.updated"
	ExpenseDeleted EventKind = "expense.deleted"
	IncomeUpdated  EventKind = "income.updated"
)

func (k EventKind) valid() bool {
	switch k {
	case ExpenseCreated, ExpenseUpdated, ExpenseDeleted, IncomeUpdated:
		return true
	}
	return false
}

// ExpenseEvent tells the alert worker that spending or income changed.
// It carries only what is needed for logging; the worker re-reads totals
// from the API.
type ExpenseEvent struct {
	Kind        EventKind `json:"kind"`
	ExpenseID   int64     `json:"expense_id,omitempty"`
	AmountCents int64     `json:"amount_cents"`
	Category    string    `json:"category,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// NewExpenseEvent builds an event for a change to e.
func NewExpenseEvent(kind EventKind, e core.Expense) *ExpenseEvent {
	return &ExpenseEvent{
		Kind:        kind,
		ExpenseID:   e.ID,
		AmountCents: e.Amount.Cents,
		Category:    string(e.Category),
		Timestamp:   time.Now().UTC(),
	}
}

// NewIncomeEvent builds an event for a change of net income.
func NewIncomeEvent(income core.Money) *ExpenseEvent {
	return &ExpenseEvent{
		Kind:        IncomeUpdated,
		AmountCents: income.Cents,
		Timestamp:   time.Now().UTC(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *ExpenseEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ExpenseEventFromJSON decodes and checks an event body.
func ExpenseEventFromJSON(data []byte) (*ExpenseEvent, error) {
	var msg ExpenseEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if !msg.Kind.valid() {
		return nil, fmt.Errorf("unknown event kind %q", msg.Kind)
	}
	return &msg, nil
}
