package redis

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	redisx "github.com/kirinyoku/ticketcore/internal/redis"
	"github.com/redis/go-redis/v9"
)

// admitScript keeps one sorted-set member per admitted call, scored by its
// time in ms. Denied calls are not recorded, so a client that keeps retrying
// while over the limit is readmitted once its oldest call leaves the window.
//
// KEYS[1] bucket; ARGV now_ms, window_ms, limit, member.
// Returns {admitted, calls_in_window, retry_after_ms}.
var admitScript = redis.NewScript(`
local bucket = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])

redis.call('ZREMRANGEBYSCORE', bucket, '-inf', now - window)
local calls = redis.call('ZCARD', bucket)

if calls >= limit then
  local oldest = redis.call('ZRANGE', bucket, 0, 0, 'WITHSCORES')
  local wait = 0
  if oldest[2] then
    wait = tonumber(oldest[2]) + window - now
  end
  return {0, calls, math.max(wait, 0)}
end

redis.call('ZADD', bucket, now, ARGV[4])
redis.call('PEXPIRE', bucket, window)
return {1, calls + 1, 0}
`)

// SlidingWindowLimiter caps calls per id within a rolling window. State
// lives in Redis so limits hold across instances and restarts.
type SlidingWindowLimiter struct {
	rdb    *redis.Client
	scope  string
	limit  int
	window time.Duration
	script *redis.Script

	now    func() time.Time
	member func() string
}

func NewSlidingWindowLimiter(rdb *redis.Client, scope string, limit int, window time.Duration) *SlidingWindowLimiter {
	return &SlidingWindowLimiter{
		rdb:    rdb,
		scope:  scope,
		limit:  limit,
		window: window,
		script: admitScript,
		now:    time.Now,
		member: newMember,
	}
}

// Allow records a call for id if the window has room. When it does not,
// retryAfter is how long until the oldest admitted call expires.
func (l *SlidingWindowLimiter) Allow(ctx context.Context, id string) (bool, int64, time.Duration, error) {
	bucket := redisx.KeyRateLimit(l.scope, id)

	out, err := l.script.Run(ctx, l.rdb, []string{bucket},
		l.now().UnixMilli(), l.window.Milliseconds(), l.limit, l.member(),
	).Int64Slice()
	if err != nil {
		return false, 0, 0, fmt.Errorf("rate limit %s: %w", bucket, err)
	}
	if len(out) != 3 {
		return false, 0, 0, fmt.Errorf("rate limit %s: unexpected reply %v", bucket, out)
	}

	return out[0] == 1, out[1], time.Duration(out[2]) * time.Millisecond, nil
}

// newMember keeps two calls in the same millisecond from collapsing into
// one sorted-set entry.
func newMember() string {
	b := make([]byte, 12)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
