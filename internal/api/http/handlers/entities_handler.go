package handlers

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/permit-lifecycle/internal/api/dto"
	"github.com/spec-kit/permit-lifecycle/internal/auth"
	"github.com/spec-kit/permit-lifecycle/internal/domain"
	"github.com/spec-kit/permit-lifecycle/internal/service"
	"github.com/spec-kit/permit-lifecycle/internal/sla"
	apperrors "github.com/spec-kit/permit-lifecycle/pkg/util"
)

// EntitiesHandler exposes Submit, Query, Transition, and ChangePriority.
type EntitiesHandler struct {
	workflow *service.WorkflowService
}

// NewEntitiesHandler constructs handler.
func NewEntitiesHandler(workflow *service.WorkflowService) *EntitiesHandler {
	return &EntitiesHandler{workflow: workflow}
}

// Submit POST /entities.
func (h *EntitiesHandler) Submit(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	var req dto.SubmitEntityRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	department := strings.TrimSpace(req.OwnerDepartment)
	if department == "" {
		department = principal.Department
	}
	entity, err := h.workflow.Submit(c.UserContext(), domain.Kind(req.Kind), domain.Priority(req.Priority), department, principal.Actor)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": entityResponse(entity)})
}

// Get GET /entities/:id.
func (h *EntitiesHandler) Get(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	entity, status, err := h.workflow.Query(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": entityDetail(entity, status, h.workflow.AllowedEvents(entity, principal.Actor))})
}

// History GET /entities/:id/history.
func (h *EntitiesHandler) History(c *fiber.Ctx) error {
	entity, _, err := h.workflow.Query(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": historyResponses(entity.History)})
}

// Transition POST /entities/:id/transitions.
func (h *EntitiesHandler) Transition(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	var req dto.TransitionRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	// Unknown events still go to the service so a missing or terminal entity
	// reports NOT_FOUND or TERMINAL_STATE first.
	event, ok := domain.ParseState(req.Event)
	if !ok {
		event = domain.State(strings.TrimSpace(req.Event))
	}
	entity, err := h.workflow.Transition(c.UserContext(), c.Params("id"), event, principal.Actor, req.Comment)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": entityResponse(entity)})
}

// ChangePriority POST /entities/:id/priority.
func (h *EntitiesHandler) ChangePriority(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	var req dto.ChangePriorityRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	entity, err := h.workflow.ChangePriority(c.UserContext(), c.Params("id"), domain.Priority(req.Priority), principal.Actor)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": entityResponse(entity)})
}

func requirePrincipal(c *fiber.Ctx) (*auth.Principal, error) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	return principal, nil
}

func entityResponse(entity *domain.Entity) dto.EntityResponse {
	return dto.EntityResponse{
		ID:                    entity.ID,
		Kind:                  entity.Kind,
		State:                 entity.State,
		Priority:              entity.Priority,
		OwnerDepartment:       entity.OwnerDepartment,
		CreatedBy:             entity.CreatedBy,
		CreatedAt:             entity.CreatedAt,
		UpdatedAt:             entity.UpdatedAt,
		LastOverdueNotifiedAt: entity.LastOverdueNotifiedAt,
	}
}

func entityDetail(entity *domain.Entity, status sla.Status, allowed []domain.State) dto.EntityDetailResponse {
	return dto.EntityDetailResponse{
		EntityResponse: entityResponse(entity),
		Sla: dto.SlaResponse{
			Deadline:         status.Deadline,
			ElapsedSeconds:   int64(status.Elapsed.Seconds()),
			RemainingSeconds: int64(status.Remaining.Seconds()),
			Overdue:          status.Overdue,
		},
		AllowedEvents: allowed,
		History:       historyResponses(entity.History),
	}
}

func historyResponses(entries []domain.HistoryEntry) []dto.HistoryEntryResponse {
	resp := make([]dto.HistoryEntryResponse, 0, len(entries))
	for _, entry := range entries {
		resp = append(resp, dto.HistoryEntryResponse{
			FromState: entry.FromState,
			ToState:   entry.ToState,
			Actor:     entry.Actor,
			Comment:   entry.Comment,
			Timestamp: entry.Timestamp,
		})
	}
	return resp
}
