package events

import (
	"time"

	"github.com/spec-kit/permit-lifecycle/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventCreated         EventType = "CREATED"
	EventTransitioned    EventType = "TRANSITIONED"
	EventEscalated       EventType = "ESCALATED"
	EventPriorityChanged EventType = "PRIORITY_CHANGED"
)

// Origin tells whether a person or the engine itself produced the event.
type Origin string

const (
	OriginUser   Origin = "USER"
	OriginSystem Origin = "SYSTEM"
)

// Category is the delivery class used by subscribers to filter noise.
type Category string

const (
	CategorySystem   Category = "SYSTEM"
	CategoryUser     Category = "USER"
	CategoryCircular Category = "CIRCULAR"
)

// Event represents a lifecycle change emitted by the workflow service.
type Event struct {
	ID              string          `json:"id"`
	Type            EventType       `json:"type"`
	Origin          Origin          `json:"origin"`
	EntityID        string          `json:"entity_id"`
	Kind            domain.Kind     `json:"kind"`
	OwnerDepartment string          `json:"owner_department"`
	Priority        domain.Priority `json:"priority"`
	FromState       domain.State    `json:"from_state,omitempty"`
	ToState         domain.State    `json:"to_state,omitempty"`
	Actor           string          `json:"actor,omitempty"`
	Comment         string          `json:"comment,omitempty"`
	Timestamp       time.Time       `json:"timestamp"`
}

// Classify assigns the event to a delivery category.
func Classify(event Event) Category {
	if event.Origin == OriginSystem || event.Type == EventEscalated {
		return CategorySystem
	}
	if event.Priority == domain.PriorityCritical {
		return CategoryCircular
	}
	return CategoryUser
}

// ParseCategory accepts SYSTEM, user, Circular and so on.
func ParseCategory(raw string) (Category, bool) {
	for _, c := range []Category{CategorySystem, CategoryUser, CategoryCircular} {
		if equalFold(string(c), raw) {
			return c, true
		}
	}
	return "", false
}
