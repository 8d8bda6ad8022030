package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/permit-lifecycle/internal/events"
)

func TestOutboxSingleDrainer(t *testing.T) {
	box := newOutbox()
	log := zap.NewNop()

	assert.False(t, box.claim("e1"), "nothing queued")

	box.enqueue("e1", log, events.Event{ID: "a", EntityID: "e1"})
	require.True(t, box.claim("e1"))
	assert.False(t, box.claim("e1"), "second drainer is turned away")

	first, ok := box.next("e1")
	require.True(t, ok)
	assert.Equal(t, "a", first.event.ID)

	box.enqueue("e1", log, events.Event{ID: "b", EntityID: "e1"})
	box.enqueue("e1", log, events.Event{ID: "c", EntityID: "e1"})
	assert.False(t, box.claim("e1"))

	var order []string
	for {
		queued, ok := box.next("e1")
		if !ok {
			break
		}
		order = append(order, queued.event.ID)
	}
	assert.Equal(t, []string{"b", "c"}, order)
	assert.Zero(t, box.size())

	box.enqueue("e1", log, events.Event{ID: "d", EntityID: "e1"})
	assert.True(t, box.claim("e1"), "a finished drain frees the entity")
}

func TestOutboxKeepsEntitiesApart(t *testing.T) {
	box := newOutbox()
	log := zap.NewNop()

	box.enqueue("e1", log, events.Event{ID: "a", EntityID: "e1"})
	box.enqueue("e2", log, events.Event{ID: "b", EntityID: "e2"})
	require.True(t, box.claim("e1"))
	assert.True(t, box.claim("e2"))
	assert.Equal(t, 2, box.size())
}
