// internal/notify/log.go
package notify

import (
	"context"

	"go.uber.org/zap"

	"github.com/rovshanmuradov/memetrader/internal/events"
)

// Log writes notifications to the application log. Always registered.
type Log struct {
	logger *zap.Logger
}

func NewLog(logger *zap.Logger) *Log {
	return &Log{logger: logger.Named("notification")}
}

func (l *Log) Name() string { return "log" }

func (l *Log) Send(_ context.Context, n events.NotificationEvent) error {
	fields := []zap.Field{zap.String("audience", n.Audience), zap.String("message", n.Message)}
	for _, link := range n.Links {
		fields = append(fields, zap.String("link_"+link.Text, link.URL))
	}
	if n.Audience == string(AudienceError) {
		l.logger.Error("Notification", fields...)
		return nil
	}
	l.logger.Info("Notification", fields...)
	return nil
}
