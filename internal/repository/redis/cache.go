package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	redisx "github.com/kirinyoku/ticketcore/internal/redis"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// Cache is a read-through JSON cache in front of catalog reads. Entries are
// advisory: Postgres stays authoritative for availability, so an unreachable
// or corrupt entry is treated as a miss rather than failing the read.
type Cache struct {
	rdb    *redis.Client
	flight singleflight.Group
}

func New(client *redis.Client) *Cache {
	return &Cache{rdb: client}
}

var errMiss = errors.New("cache miss")

// decode fills dst from key. Any failure to produce a value is errMiss
// wrapped around the cause, if there was one.
func (c *Cache) decode(ctx context.Context, key string, dst any) error {
	raw, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return errMiss
	case err != nil:
		return fmt.Errorf("%w: %w", errMiss, err)
	}

	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("%w: decode %s: %w", errMiss, key, err)
	}

	return nil
}

func (c *Cache) encode(ctx context.Context, key string, v any, ttl time.Duration) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}

	return c.rdb.Set(ctx, key, string(b), ttl).Err()
}

// GetOrSetJSON serves key from the cache, running loader on a miss and
// storing its result for ttl. Concurrent misses on one key share a single
// loader call. Loader errors are returned unchanged and never cached.
func GetOrSetJSON[T any](
	ctx context.Context,
	c *Cache,
	key string,
	ttl time.Duration,
	loader func(ctx context.Context) (T, error),
) (T, error) {
	var hit T
	if err := c.decode(ctx, key, &hit); err == nil {
		return hit, nil
	}

	v, err, _ := c.flight.Do(key, func() (any, error) {
		// another caller may have filled the key while this one waited
		var filled T
		if err := c.decode(ctx, key, &filled); err == nil {
			return filled, nil
		}

		loaded, err := loader(ctx)
		if err != nil {
			return nil, err
		}
		_ = c.encode(ctx, key, loaded, ttl)

		return loaded, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}

	out, _ := v.(T)

	return out, nil
}

// InvalidateTicketTypes drops the cached ticket types and the event listing
// they belong to.
func (c *Cache) InvalidateTicketTypes(ctx context.Context, eventID uuid.UUID, ids ...uuid.UUID) error {
	keys := make([]string, 0, len(ids)+1)
	keys = append(keys, redisx.KeyEventTicketTypes(eventID))
	for _, id := range ids {
		keys = append(keys, redisx.KeyTicketType(id))
	}

	return c.rdb.Del(ctx, keys...).Err()
}
