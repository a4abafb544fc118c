// Package notify delivers fire-and-forget notification requests about ticket
// and payment lifecycle changes. Delivery mechanics (email, push) live in
// downstream consumers.
package notify

import (
	"context"

	"go.uber.org/zap"
)

const (
	TicketPurchased  = "ticket.purchased"
	TicketCheckedIn  = "ticket.checked_in"
	TicketCancelled  = "ticket.cancelled"
	TicketExpired    = "ticket.expired"
	PaymentCompleted = "payment.completed"
	PaymentFailed    = "payment.failed"
)

// Sink accepts notification requests. Implementations never block the caller
// on delivery and never report delivery errors back.
type Sink interface {
	Notify(ctx context.Context, eventType string, payload any)
}

type nopSink struct{}

func Nop() Sink { return nopSink{} }

func (nopSink) Notify(context.Context, string, any) {}

// LogSink writes notifications to the log. Used when no broker is configured.
type LogSink struct {
	l *zap.Logger
}

func NewLogSink(l *zap.Logger) *LogSink {
	return &LogSink{l: l}
}

func (s *LogSink) Notify(_ context.Context, eventType string, payload any) {
	s.l.Info("notification", zap.String("type", eventType), zap.Any("payload", payload))
}
