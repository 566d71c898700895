// internal/notify/notify.go
package notify

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/rovshanmuradov/memetrader/internal/events"
	"github.com/rovshanmuradov/memetrader/internal/lock"
)

// Audience routes a message to the channels that care about it.
type Audience string

const (
	AudienceInfo  Audience = "info"
	AudienceTrade Audience = "trade"
	AudienceError Audience = "error"
)

// Link is re-exported so callers do not import events for it.
type Link = events.Link

// Notification is a human readable message. When LockKey and TTL are both
// set, repeats of the same key inside TTL are dropped.
type Notification struct {
	Audience Audience
	Message  string
	Links    []Link
	LockKey  string
	TTL      time.Duration
}

// Notifier is what the controller depends on.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// Channel delivers a notification to one destination.
type Channel interface {
	Name() string
	Send(ctx context.Context, n events.NotificationEvent) error
}

// Publisher is the subset of events.Bus used by the hub.
type Publisher interface {
	Publish(event events.Event) error
	SubscribeFunc(eventType events.EventType, fn func(context.Context, events.Event) error) events.Subscription
}

// Hub fans notifications out to channels through the event bus so callers
// never wait on slow destinations.
type Hub struct {
	bus    Publisher
	locks  lock.Service
	logger *zap.Logger
	subs   []events.Subscription
}

var _ Notifier = (*Hub)(nil)

// NewHub subscribes every channel to notification events. locks may be nil,
// which disables throttling.
func NewHub(bus Publisher, locks lock.Service, logger *zap.Logger, channels ...Channel) *Hub {
	h := &Hub{bus: bus, locks: locks, logger: logger.Named("notify")}
	for _, ch := range channels {
		ch := ch
		sub := bus.SubscribeFunc(events.NotificationRequested, func(ctx context.Context, e events.Event) error {
			n, ok := e.(events.NotificationEvent)
			if !ok {
				return nil
			}
			if err := ch.Send(ctx, n); err != nil {
				return fmt.Errorf("%s: %w", ch.Name(), err)
			}
			return nil
		})
		h.subs = append(h.subs, sub)
		h.logger.Debug("Channel registered", zap.String("channel", ch.Name()))
	}
	return h
}

// Notify queues n for delivery.
func (h *Hub) Notify(ctx context.Context, n Notification) error {
	if n.LockKey != "" && n.TTL > 0 && h.locks != nil {
		ok, err := h.locks.Acquire(ctx, "notify:"+n.LockKey, n.TTL)
		if err != nil {
			// Throttling is best effort, deliver anyway
			h.logger.Warn("Notification lock failed", zap.String("key", n.LockKey), zap.Error(err))
		} else if !ok {
			h.logger.Debug("Notification suppressed", zap.String("key", n.LockKey))
			return nil
		}
	}

	if n.Audience == "" {
		n.Audience = AudienceInfo
	}
	err := h.bus.Publish(events.NotificationEvent{
		BaseEvent: events.NewBase(events.NotificationRequested),
		Audience:  string(n.Audience),
		Message:   n.Message,
		Links:     n.Links,
	})
	if err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}
	return nil
}

// Close detaches the channels from the bus.
func (h *Hub) Close() error {
	for _, s := range h.subs {
		s.Unsubscribe()
	}
	h.subs = nil
	return nil
}

// Nop discards everything.
type Nop struct{}

func (Nop) Notify(context.Context, Notification) error { return nil }
