package events

import (
	"context"
	"errors"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// DefaultStream is the Redis stream payment events are appended to.
const DefaultStream = "paystack:events"

// RedisStream stores events in a capped Redis stream for host consumers.
type RedisStream struct {
	R      *redis.Client
	Stream string
	MaxLen int64
}

// Append adds the event with XADD and returns the stream entry id.
func (s RedisStream) Append(ctx context.Context, ev Event) (string, error) {
	if s.R == nil {
		return "", errors.New("events: redis client not configured")
	}
	stream := s.Stream
	if stream == "" {
		stream = DefaultStream
	}
	args := &redis.XAddArgs{
		Stream: stream,
		Values: map[string]any{
			"id":           ev.ID,
			"topic":        ev.Topic,
			"aggregate_id": ev.AggregateID,
			"payload":      string(ev.Payload),
			"occurred_at":  ev.OccurredAt.Format(time.RFC3339Nano),
		},
	}
	if s.MaxLen > 0 {
		args.MaxLen = s.MaxLen
		args.Approx = true
	}
	return s.R.XAdd(ctx, args).Result()
}
