package domain

import (
	"strings"
	"time"
)

// Kind fixes which lifecycle table applies to an entity.
type Kind string

const (
	KindApplication Kind = "APPLICATION"
	KindComplaint   Kind = "COMPLAINT"
	KindRenewal     Kind = "RENEWAL"
)

// Kinds lists every supported kind.
var Kinds = []Kind{KindApplication, KindComplaint, KindRenewal}

// Noun returns the lower-case display noun for the kind.
func (k Kind) Noun() string {
	switch k {
	case KindApplication:
		return "application"
	case KindComplaint:
		return "complaint"
	case KindRenewal:
		return "renewal request"
	default:
		return strings.ToLower(string(k))
	}
}

// ParseKind accepts APPLICATION, application, Application and similar spellings.
func ParseKind(raw string) (Kind, bool) {
	key := normalize(raw)
	for _, k := range Kinds {
		if normalize(string(k)) == key {
			return k, true
		}
	}
	return "", false
}

// State is a lifecycle state. The set of valid states depends on the kind.
type State string

const (
	StatePending          State = "PENDING"
	StateInReview         State = "IN_REVIEW"
	StateDocumentRequired State = "DOCUMENT_REQUIRED"
	StateApproved         State = "APPROVED"
	StateRejected         State = "REJECTED"
	StateOpen             State = "OPEN"
	StateInProgress       State = "IN_PROGRESS"
	StateResolved         State = "RESOLVED"
	StateClosed           State = "CLOSED"
	StateIssued           State = "ISSUED"
	StateExpired          State = "EXPIRED"
)

var allStates = []State{
	StatePending, StateInReview, StateDocumentRequired, StateApproved, StateRejected,
	StateOpen, StateInProgress, StateResolved, StateClosed, StateIssued, StateExpired,
}

// ParseState accepts IN_REVIEW, InReview, in review and similar spellings.
func ParseState(raw string) (State, bool) {
	key := normalize(raw)
	for _, s := range allStates {
		if normalize(string(s)) == key {
			return s, true
		}
	}
	return "", false
}

// Label returns the lower-case display form, e.g. "in review".
func (s State) Label() string {
	return strings.ToLower(strings.ReplaceAll(string(s), "_", " "))
}

// Priority enumerates SLA urgency. Ordering is Low < Medium < High < Critical.
type Priority string

const (
	PriorityLow      Priority = "LOW"
	PriorityMedium   Priority = "MEDIUM"
	PriorityHigh     Priority = "HIGH"
	PriorityCritical Priority = "CRITICAL"
)

// Priorities lists priorities in ascending order.
var Priorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical}

// Rank returns the ordinal of the priority, or -1 when unknown.
func (p Priority) Rank() int {
	for i, candidate := range Priorities {
		if candidate == p {
			return i
		}
	}
	return -1
}

// AtLeast reports whether p is the same as or more urgent than min.
func (p Priority) AtLeast(min Priority) bool {
	return p.Rank() >= min.Rank()
}

// ParsePriority accepts LOW, low, Low and similar spellings.
func ParsePriority(raw string) (Priority, bool) {
	key := normalize(raw)
	for _, p := range Priorities {
		if normalize(string(p)) == key {
			return p, true
		}
	}
	return "", false
}

// HistoryEntry is one applied transition. Entries are never modified.
type HistoryEntry struct {
	FromState State     `json:"from_state"`
	ToState   State     `json:"to_state"`
	Actor     string    `json:"actor"`
	Comment   string    `json:"comment,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Entity is an application, complaint, or renewal request tracked by the workflow engine.
type Entity struct {
	ID                    string
	Kind                  Kind
	State                 State
	Priority              Priority
	OwnerDepartment       string
	CreatedBy             string
	CreatedAt             time.Time
	UpdatedAt             time.Time
	History               []HistoryEntry
	LastOverdueNotifiedAt *time.Time
}

// Clone returns a deep copy so callers cannot mutate stored state.
func (e *Entity) Clone() *Entity {
	if e == nil {
		return nil
	}
	cp := *e
	cp.History = append([]HistoryEntry(nil), e.History...)
	if e.LastOverdueNotifiedAt != nil {
		ts := *e.LastOverdueNotifiedAt
		cp.LastOverdueNotifiedAt = &ts
	}
	return &cp
}

func normalize(raw string) string {
	r := strings.NewReplacer("_", "", "-", "", " ", "")
	return strings.ToLower(r.Replace(strings.TrimSpace(raw)))
}
