package events

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// StreamAdder is the subset of the go-redis client used by the relay.
type StreamAdder interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
}

// RedisRelay forwards events to a Redis stream so processes outside this one
// (dashboards, counters) can consume them.
type RedisRelay struct {
	client StreamAdder
	stream string
	maxLen int64
	logger *zap.Logger
}

// NewRedisRelay builds a relay writing to stream, trimmed to roughly maxLen entries when maxLen > 0.
func NewRedisRelay(client StreamAdder, stream string, maxLen int64, logger *zap.Logger) *RedisRelay {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisRelay{client: client, stream: stream, maxLen: maxLen, logger: logger}
}

// Stream returns the target stream name.
func (r *RedisRelay) Stream() string {
	return r.stream
}

// Handle is an EventHandler.
func (r *RedisRelay) Handle(ctx context.Context, event Event) error {
	fields := map[string]any{
		"event_id":         event.ID,
		"event_type":       string(event.Type),
		"origin":           string(event.Origin),
		"category":         string(Classify(event)),
		"entity_id":        event.EntityID,
		"kind":             string(event.Kind),
		"owner_department": event.OwnerDepartment,
		"priority":         string(event.Priority),
		"timestamp":        event.Timestamp.UTC().Format(time.RFC3339Nano),
	}
	if event.FromState != "" {
		fields["from_state"] = string(event.FromState)
	}
	if event.ToState != "" {
		fields["to_state"] = string(event.ToState)
	}
	if event.Actor != "" {
		fields["actor"] = event.Actor
	}
	if event.Comment != "" {
		fields["comment"] = event.Comment
	}

	args := &redis.XAddArgs{
		Stream: r.stream,
		Values: fields,
	}
	if r.maxLen > 0 {
		args.MaxLen = r.maxLen
		args.Approx = true
	}
	id, err := r.client.XAdd(ctx, args).Result()
	if err != nil {
		return fmt.Errorf("relay event: %w", err)
	}

	r.logger.Debug("relayed event", zap.String("stream", r.stream), zap.String("stream_id", id),
		zap.String("event_type", string(event.Type)), zap.String("entity_id", event.EntityID))
	return nil
}
