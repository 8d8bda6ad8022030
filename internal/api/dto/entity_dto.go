package dto

import (
	"time"

	"github.com/spec-kit/permit-lifecycle/internal/domain"
)

// SubmitEntityRequest payload. OwnerDepartment defaults to the caller's department.
type SubmitEntityRequest struct {
	Kind            string `json:"kind"`
	Priority        string `json:"priority"`
	OwnerDepartment string `json:"owner_department"`
}

// TransitionRequest payload.
type TransitionRequest struct {
	Event   string `json:"event"`
	Comment string `json:"comment"`
}

// ChangePriorityRequest payload.
type ChangePriorityRequest struct {
	Priority string `json:"priority"`
}

// EntityResponse is the summary view of an entity.
type EntityResponse struct {
	ID                    string          `json:"id"`
	Kind                  domain.Kind     `json:"kind"`
	State                 domain.State    `json:"state"`
	Priority              domain.Priority `json:"priority"`
	OwnerDepartment       string          `json:"owner_department"`
	CreatedBy             string          `json:"created_by"`
	CreatedAt             time.Time       `json:"created_at"`
	UpdatedAt             time.Time       `json:"updated_at"`
	LastOverdueNotifiedAt *time.Time      `json:"last_overdue_notified_at,omitempty"`
}

// EntityDetailResponse adds SLA status, allowed events, and history.
type EntityDetailResponse struct {
	EntityResponse
	Sla           SlaResponse            `json:"sla"`
	AllowedEvents []domain.State         `json:"allowed_events"`
	History       []HistoryEntryResponse `json:"history"`
}

// SlaResponse renders sla.Status with durations in seconds.
type SlaResponse struct {
	Deadline         time.Time `json:"deadline"`
	ElapsedSeconds   int64     `json:"elapsed_seconds"`
	RemainingSeconds int64     `json:"remaining_seconds"`
	Overdue          bool      `json:"overdue"`
}

// HistoryEntryResponse is one audit trail row.
type HistoryEntryResponse struct {
	FromState domain.State `json:"from_state"`
	ToState   domain.State `json:"to_state"`
	Actor     string       `json:"actor"`
	Comment   string       `json:"comment,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
}
