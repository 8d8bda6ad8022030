package service

import (
	"sync"

	"go.uber.org/zap"

	"github.com/spec-kit/permit-lifecycle/internal/events"
)

// outbox queues events per entity. Producers append while holding the entity
// lock, so queue order is commit order. Delivery happens after the lock is
// released and only one caller drains a given entity at a time; a handler
// that calls back into the service for the same entity just appends, and the
// drainer already running delivers those events once the current one has
// reached every subscriber.
type outbox struct {
	mu     sync.Mutex
	queues map[string]*entityQueue
}

type entityQueue struct {
	pending  []queuedEvent
	draining bool
}

type queuedEvent struct {
	event events.Event
	log   *zap.Logger
}

func newOutbox() *outbox {
	return &outbox{queues: make(map[string]*entityQueue)}
}

func (o *outbox) enqueue(id string, log *zap.Logger, event events.Event) {
	o.mu.Lock()
	defer o.mu.Unlock()
	q, ok := o.queues[id]
	if !ok {
		q = &entityQueue{}
		o.queues[id] = q
	}
	q.pending = append(q.pending, queuedEvent{event: event, log: log})
}

// claim makes the caller the drainer for id. It returns false when there is
// nothing queued or another caller is already draining.
func (o *outbox) claim(id string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	q, ok := o.queues[id]
	if !ok || q.draining {
		return false
	}
	q.draining = true
	return true
}

// next pops the oldest queued event. When the queue is empty the entry is
// removed, which also ends the caller's drain.
func (o *outbox) next(id string) (queuedEvent, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	q, ok := o.queues[id]
	if !ok {
		return queuedEvent{}, false
	}
	if len(q.pending) == 0 {
		delete(o.queues, id)
		return queuedEvent{}, false
	}
	head := q.pending[0]
	q.pending[0] = queuedEvent{}
	q.pending = q.pending[1:]
	return head, true
}

// size returns the number of entities with queued or in-flight events.
func (o *outbox) size() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.queues)
}
