package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/permit-lifecycle/internal/domain"
)

type fakeStream struct {
	args []*redis.XAddArgs
	err  error
}

func (f *fakeStream) XAdd(_ context.Context, a *redis.XAddArgs) *redis.StringCmd {
	f.args = append(f.args, a)
	if f.err != nil {
		return redis.NewStringResult("", f.err)
	}
	return redis.NewStringResult("1-0", nil)
}

func TestRedisRelayWritesEventFields(t *testing.T) {
	stream := &fakeStream{}
	relay := NewRedisRelay(stream, "lifecycle:events", 500, nil)
	assert.Equal(t, "lifecycle:events", relay.Stream())

	event := complaintEvent(domain.PriorityCritical)
	event.Timestamp = time.Date(2024, 5, 6, 8, 0, 0, 0, time.UTC)
	require.NoError(t, relay.Handle(context.Background(), event))

	require.Len(t, stream.args, 1)
	args := stream.args[0]
	assert.Equal(t, "lifecycle:events", args.Stream)
	assert.Equal(t, int64(500), args.MaxLen)
	assert.True(t, args.Approx)

	values, ok := args.Values.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "ev-1", values["event_id"])
	assert.Equal(t, "TRANSITIONED", values["event_type"])
	assert.Equal(t, "CIRCULAR", values["category"])
	assert.Equal(t, "COMPLAINT", values["kind"])
	assert.Equal(t, "OPEN", values["from_state"])
	assert.Equal(t, "IN_PROGRESS", values["to_state"])
	assert.Equal(t, "2024-05-06T08:00:00Z", values["timestamp"])
	assert.NotContains(t, values, "comment")
}

func TestRedisRelayUnboundedStream(t *testing.T) {
	stream := &fakeStream{}
	relay := NewRedisRelay(stream, "s", 0, nil)
	require.NoError(t, relay.Handle(context.Background(), complaintEvent(domain.PriorityLow)))
	assert.Zero(t, stream.args[0].MaxLen)
	assert.False(t, stream.args[0].Approx)
}

func TestRedisRelayReturnsWriteErrors(t *testing.T) {
	down := errors.New("connection refused")
	relay := NewRedisRelay(&fakeStream{err: down}, "s", 0, nil)
	err := relay.Handle(context.Background(), complaintEvent(domain.PriorityLow))
	assert.ErrorIs(t, err, down)
}
