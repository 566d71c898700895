// internal/events/types.go
package events

import (
	"time"
)

// EventType represents the type of event.
type EventType string

const (
	// Trade lifecycle
	TradeSubmitted EventType = "trade.submitted"
	TradeSettled   EventType = "trade.settled"

	// Skim transfer
	SkimCompleted EventType = "skim.completed"
	SkimFailed    EventType = "skim.failed"

	// Human readable messages for delivery channels
	NotificationRequested EventType = "notification.requested"
)

// Event is the base interface for all events.
type Event interface {
	Type() EventType
	Timestamp() time.Time
}

// BaseEvent provides common fields for all events.
type BaseEvent struct {
	EventType EventType
	EventTime time.Time
}

// NewBase stamps an event of type t with the current time.
func NewBase(t EventType) BaseEvent {
	return BaseEvent{EventType: t, EventTime: time.Now().UTC()}
}

func (e BaseEvent) Type() EventType { return e.EventType }

func (e BaseEvent) Timestamp() time.Time { return e.EventTime }

// TradeSubmittedEvent is emitted after a swap was accepted and recorded.
type TradeSubmittedEvent struct {
	BaseEvent
	Side   string
	Asset  string
	Symbol string
	Handle string
	Amount uint64
}

// TradeSettledEvent is emitted when reconciliation moves a trade to a
// terminal status.
type TradeSettledEvent struct {
	BaseEvent
	TradeID uint
	Side    string
	Asset   string
	Handle  string
	Status  string
}

// SkimEvent reports the outcome of a skim transfer.
type SkimEvent struct {
	BaseEvent
	Asset     string
	Recipient string
	Amount    uint64
	Signature string
	Attempts  int
	Err       error
}

// Link is an attachment rendered by delivery channels.
type Link struct {
	Text string `json:"text"`
	URL  string `json:"url"`
}

// NotificationEvent carries a message to every delivery channel.
type NotificationEvent struct {
	BaseEvent
	Audience string `json:"audience"`
	Message  string `json:"message"`
	Links    []Link `json:"links,omitempty"`
}
