package events

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/permit-lifecycle/internal/domain"
)

// EventHandler handles a published event.
type EventHandler func(context.Context, Event) error

// SubscriptionID identifies a registered handler.
type SubscriptionID string

// Pattern filters events. Empty Kind and Department match anything; an empty
// or unrecognised MinPriority means LOW; empty Categories accepts every
// category.
type Pattern struct {
	Kind        domain.Kind
	Department  string
	MinPriority domain.Priority
	Categories  []Category
}

// Matches reports whether event passes the pattern.
func (p Pattern) Matches(event Event) bool {
	if p.Kind != "" && p.Kind != event.Kind {
		return false
	}
	if p.Department != "" && p.Department != event.OwnerDepartment {
		return false
	}
	if p.MinPriority != "" {
		if floor, _ := p.minPriority(); !event.Priority.AtLeast(floor) {
			return false
		}
	}
	if len(p.Categories) > 0 {
		category := Classify(event)
		for _, c := range p.Categories {
			if c == category {
				return true
			}
		}
		return false
	}
	return true
}

// minPriority reads MinPriority leniently. ok is false when a non-empty value
// is not a known priority.
func (p Pattern) minPriority() (domain.Priority, bool) {
	if strings.TrimSpace(string(p.MinPriority)) == "" {
		return domain.PriorityLow, true
	}
	floor, ok := domain.ParsePriority(string(p.MinPriority))
	if !ok {
		return domain.PriorityLow, false
	}
	return floor, true
}

// Dispatcher allows event publication and subscription.
type Dispatcher interface {
	Publish(ctx context.Context, event Event) error
	Subscribe(pattern Pattern, handler EventHandler) SubscriptionID
	Unsubscribe(id SubscriptionID) bool
}

type subscription struct {
	id      SubscriptionID
	pattern Pattern
	handler EventHandler
}

// Router is a synchronous in-memory dispatcher. Subscriptions are delivered in
// registration order; a failing or panicking handler does not stop the others.
type Router struct {
	mu     sync.RWMutex
	subs   []subscription
	logger *zap.Logger
}

// NewRouter creates a router. A nil logger discards delivery failures.
func NewRouter(logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{logger: logger}
}

// Subscribe registers handler for events matching pattern.
func (r *Router) Subscribe(pattern Pattern, handler EventHandler) SubscriptionID {
	id := SubscriptionID(uuid.NewString())
	if pattern.MinPriority != "" {
		floor, ok := pattern.minPriority()
		if !ok {
			r.logger.Warn("unknown minimum priority; subscribing at LOW",
				zap.String("subscription_id", string(id)),
				zap.String("min_priority", string(pattern.MinPriority)))
		}
		pattern.MinPriority = floor
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subs = append(r.subs, subscription{id: id, pattern: pattern, handler: handler})
	return id
}

// Unsubscribe removes a subscription. It reports whether the id was registered.
func (r *Router) Unsubscribe(id SubscriptionID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, sub := range r.subs {
		if sub.id == id {
			r.subs = append(r.subs[:i:i], r.subs[i+1:]...)
			return true
		}
	}
	return false
}

// Len returns the number of active subscriptions.
func (r *Router) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subs)
}

// Publish synchronously invokes every matching handler and returns the joined
// handler failures, if any.
func (r *Router) Publish(ctx context.Context, event Event) error {
	r.mu.RLock()
	matched := make([]subscription, 0, len(r.subs))
	for _, sub := range r.subs {
		if sub.pattern.Matches(event) {
			matched = append(matched, sub)
		}
	}
	r.mu.RUnlock()

	var failures []error
	for _, sub := range matched {
		if err := deliver(ctx, sub, event); err != nil {
			r.logger.Warn("event delivery failed",
				zap.String("subscription_id", string(sub.id)),
				zap.String("event_type", string(event.Type)),
				zap.String("entity_id", event.EntityID),
				zap.Error(err))
			failures = append(failures, err)
		}
	}
	return errors.Join(failures...)
}

func deliver(ctx context.Context, sub subscription, event Event) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("subscription %s panicked: %v", sub.id, rec)
		}
	}()
	if err := sub.handler(ctx, event); err != nil {
		return fmt.Errorf("subscription %s: %w", sub.id, err)
	}
	return nil
}

func equalFold(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
