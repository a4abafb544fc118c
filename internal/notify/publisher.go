package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"go.uber.org/zap"
)

const (
	TopicPrefix      = "notifications."
	defaultQueueSize = 1024
)

// Envelope is the JSON body of every published notification.
type Envelope struct {
	Type       string    `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	Payload    any       `json:"payload"`
}

type pending struct {
	topic string
	msg   *message.Message
}

// PublisherSink publishes notifications to a watermill publisher (Redis
// streams in production) from a background worker. Notify only enqueues; when
// the queue is full the notification is dropped and logged.
type PublisherSink struct {
	pub   message.Publisher
	queue chan pending
	l     *zap.Logger
}

func NewPublisherSink(pub message.Publisher, l *zap.Logger, queueSize int) *PublisherSink {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}

	return &PublisherSink{
		pub:   pub,
		queue: make(chan pending, queueSize),
		l:     l,
	}
}

func (s *PublisherSink) Notify(_ context.Context, eventType string, payload any) {
	b, err := json.Marshal(Envelope{
		Type:       eventType,
		OccurredAt: time.Now().UTC(),
		Payload:    payload,
	})
	if err != nil {
		s.l.Error("marshal notification", zap.String("type", eventType), zap.Error(err))
		return
	}

	msg := message.NewMessage(watermill.NewUUID(), b)
	msg.Metadata.Set("type", eventType)

	select {
	case s.queue <- pending{topic: TopicPrefix + eventType, msg: msg}:
	default:
		s.l.Warn("notification queue full, dropping", zap.String("type", eventType))
	}
}

// Run publishes queued notifications until ctx is done, then drains what is
// already queued.
func (s *PublisherSink) Run(ctx context.Context) error {
	for {
		select {
		case p := <-s.queue:
			s.publish(p)
		case <-ctx.Done():
			for {
				select {
				case p := <-s.queue:
					s.publish(p)
				default:
					return nil
				}
			}
		}
	}
}

func (s *PublisherSink) publish(p pending) {
	if err := s.pub.Publish(p.topic, p.msg); err != nil {
		s.l.Error("publish notification",
			zap.String("topic", p.topic),
			zap.String("message_uuid", p.msg.UUID),
			zap.Error(err),
		)
	}
}
