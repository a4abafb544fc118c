package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	redisx "github.com/kirinyoku/ticketcore/internal/redis"
	"github.com/redis/go-redis/v9"
)

// InventoryPubSub broadcasts ticket type changes so other instances can drop
// their cached availability.
type InventoryPubSub struct {
	rdb     *redis.Client
	channel string
}

func NewInventoryPubSub(rdb *redis.Client) *InventoryPubSub {
	return &InventoryPubSub{
		rdb:     rdb,
		channel: redisx.ChannelTicketTypesChanged(),
	}
}

type ticketTypeChangedMsg struct {
	Type         string    `json:"type"`
	EventID      uuid.UUID `json:"event_id"`
	TicketTypeID uuid.UUID `json:"ticket_type_id"`
	TsUnix       int64     `json:"ts_unix"`
}

func (p *InventoryPubSub) PublishTicketTypeChanged(ctx context.Context, eventID, ticketTypeID uuid.UUID) error {
	msg := ticketTypeChangedMsg{
		Type:         "ticket_type_changed",
		EventID:      eventID,
		TicketTypeID: ticketTypeID,
		TsUnix:       time.Now().Unix(),
	}

	b, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	return p.rdb.Publish(ctx, p.channel, b).Err()
}

// Subscribe blocks until ctx is done, calling handler for every change.
func (p *InventoryPubSub) Subscribe(
	ctx context.Context,
	handler func(ctx context.Context, eventID, ticketTypeID uuid.UUID),
) error {
	sub := p.rdb.Subscribe(ctx, p.channel)
	defer sub.Close()

	ch := sub.Channel(redis.WithChannelSize(256))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case m, ok := <-ch:
			if !ok {
				return nil
			}
			var ev ticketTypeChangedMsg
			if err := json.Unmarshal([]byte(m.Payload), &ev); err == nil &&
				ev.TicketTypeID != uuid.Nil {
				handler(ctx, ev.EventID, ev.TicketTypeID)
			}
		}
	}
}
