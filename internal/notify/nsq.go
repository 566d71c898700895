// internal/notify/nsq.go
package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nsqio/go-nsq"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/memetrader/internal/events"
)

// Producer is the part of *nsq.Producer the channel uses.
type Producer interface {
	Publish(topic string, body []byte) error
	Stop()
}

var _ Producer = (*nsq.Producer)(nil)

type nsqMessage struct {
	Audience string        `json:"audience"`
	Message  string        `json:"message"`
	Links    []events.Link `json:"links,omitempty"`
	Time     int64         `json:"time"`
}

// NSQ publishes notifications as JSON to a topic for downstream consumers.
type NSQ struct {
	topic    string
	producer Producer
	logger   *zap.Logger
}

// NewNSQ connects a producer to nsqd at addr.
func NewNSQ(addr, topic string, logger *zap.Logger) (*NSQ, error) {
	producer, err := nsq.NewProducer(addr, nsq.NewConfig())
	if err != nil {
		return nil, fmt.Errorf("init nsq producer %s: %w", addr, err)
	}
	return NewNSQWithProducer(producer, topic, logger), nil
}

// NewNSQWithProducer wraps an existing producer.
func NewNSQWithProducer(p Producer, topic string, logger *zap.Logger) *NSQ {
	return &NSQ{topic: topic, producer: p, logger: logger.Named("nsq")}
}

func (s *NSQ) Name() string { return "nsq" }

func (s *NSQ) Send(_ context.Context, n events.NotificationEvent) error {
	buffer, err := json.Marshal(nsqMessage{
		Audience: n.Audience,
		Message:  n.Message,
		Links:    n.Links,
		Time:     n.Timestamp().Unix(),
	})
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	if err := s.producer.Publish(s.topic, buffer); err != nil {
		return fmt.Errorf("publish to %s: %w", s.topic, err)
	}

	s.logger.Debug("Notification published", zap.String("topic", s.topic))
	return nil
}

// Close stops the producer.
func (s *NSQ) Close() error {
	if s.producer != nil {
		s.producer.Stop()
	}
	return nil
}
