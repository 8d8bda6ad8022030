// Package sla computes deadlines and overdue status for workflow entities.
package sla

import (
	"time"

	"github.com/spec-kit/permit-lifecycle/internal/domain"
)

const day = 24 * time.Hour

// Policy maps kind and priority to the maximum time an entity may stay non-terminal.
type Policy map[domain.Kind]map[domain.Priority]time.Duration

// DefaultPolicy returns the standard deadline table.
func DefaultPolicy() Policy {
	renewal := 30 * day
	return Policy{
		domain.KindApplication: {
			domain.PriorityCritical: 3 * day,
			domain.PriorityHigh:     7 * day,
			domain.PriorityMedium:   14 * day,
			domain.PriorityLow:      21 * day,
		},
		domain.KindComplaint: {
			domain.PriorityCritical: 4 * time.Hour,
			domain.PriorityHigh:     24 * time.Hour,
			domain.PriorityMedium:   72 * time.Hour,
			domain.PriorityLow:      7 * day,
		},
		domain.KindRenewal: {
			domain.PriorityCritical: renewal,
			domain.PriorityHigh:     renewal,
			domain.PriorityMedium:   renewal,
			domain.PriorityLow:      renewal,
		},
	}
}

// Window returns the allowed duration for kind and priority.
func (p Policy) Window(kind domain.Kind, priority domain.Priority) (time.Duration, bool) {
	byPriority, ok := p[kind]
	if !ok {
		return 0, false
	}
	d, ok := byPriority[priority]
	return d, ok
}

// Status is the SLA view of an entity at a point in time.
type Status struct {
	Deadline  time.Time     `json:"deadline"`
	Elapsed   time.Duration `json:"elapsed"`
	Remaining time.Duration `json:"remaining"`
	Overdue   bool          `json:"overdue"`
}

// TerminalFunc reports whether a state is terminal for a kind.
type TerminalFunc func(kind domain.Kind, state domain.State) bool

// Tracker evaluates SLA status. It holds no mutable state.
type Tracker struct {
	policy   Policy
	terminal TerminalFunc
}

// NewTracker builds a tracker. A nil policy selects DefaultPolicy.
func NewTracker(policy Policy, terminal TerminalFunc) *Tracker {
	if policy == nil {
		policy = DefaultPolicy()
	}
	if terminal == nil {
		terminal = func(domain.Kind, domain.State) bool { return false }
	}
	return &Tracker{policy: policy, terminal: terminal}
}

// Evaluate is a pure function of its arguments. A terminal entity is never overdue.
// Kinds or priorities missing from the policy get a zero window.
func (t *Tracker) Evaluate(kind domain.Kind, priority domain.Priority, createdAt time.Time, state domain.State, now time.Time) Status {
	window, _ := t.policy.Window(kind, priority)
	elapsed := now.Sub(createdAt)
	remaining := window - elapsed
	return Status{
		Deadline:  createdAt.Add(window),
		Elapsed:   elapsed,
		Remaining: remaining,
		Overdue:   remaining < 0 && !t.terminal(kind, state),
	}
}

// EvaluateEntity evaluates e at now.
func (t *Tracker) EvaluateEntity(e *domain.Entity, now time.Time) Status {
	return t.Evaluate(e.Kind, e.Priority, e.CreatedAt, e.State, now)
}
