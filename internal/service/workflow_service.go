package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/permit-lifecycle/internal/clock"
	"github.com/spec-kit/permit-lifecycle/internal/domain"
	"github.com/spec-kit/permit-lifecycle/internal/events"
	"github.com/spec-kit/permit-lifecycle/internal/lifecycle"
	"github.com/spec-kit/permit-lifecycle/internal/repository"
	"github.com/spec-kit/permit-lifecycle/internal/sla"
	apperrors "github.com/spec-kit/permit-lifecycle/pkg/util"
)

// SystemActor is recorded for transitions the engine fires on its own.
const SystemActor = "system"

type phase string

const (
	phaseValidating phase = "VALIDATING"
	phasePersisting phase = "PERSISTING"
	phaseNotifying  phase = "NOTIFYING"
	phaseDone       phase = "DONE"
	phaseFailed     phase = "FAILED"
)

// Recorder receives workflow counters.
type Recorder interface {
	RecordTransition(kind domain.Kind, from, to domain.State)
	RecordEscalation(kind domain.Kind)
}

type nopRecorder struct{}

func (nopRecorder) RecordTransition(domain.Kind, domain.State, domain.State) {}
func (nopRecorder) RecordEscalation(domain.Kind)                             {}

// WorkflowService is the single entry point for lifecycle changes.
type WorkflowService struct {
	store   repository.Store
	machine *lifecycle.Machine
	tracker *sla.Tracker
	router  events.Dispatcher
	clock   clock.Clock
	metrics Recorder
	logger  *zap.Logger
	locks   *entityLocks
	outbox  *outbox
}

// WorkflowDependencies bundles collaborators. Only Store is required.
type WorkflowDependencies struct {
	Store   repository.Store
	Machine *lifecycle.Machine
	Tracker *sla.Tracker
	Router  events.Dispatcher
	Clock   clock.Clock
	Metrics Recorder
	Logger  *zap.Logger
}

// NewWorkflowService constructs the service, filling defaults for optional dependencies.
func NewWorkflowService(deps WorkflowDependencies) *WorkflowService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	machine := deps.Machine
	if machine == nil {
		machine = lifecycle.New()
	}
	tracker := deps.Tracker
	if tracker == nil {
		tracker = sla.NewTracker(nil, machine.IsTerminal)
	}
	router := deps.Router
	if router == nil {
		router = events.NewRouter(logger)
	}
	clk := deps.Clock
	if clk == nil {
		clk = clock.System{}
	}
	var metrics Recorder = nopRecorder{}
	if deps.Metrics != nil {
		metrics = deps.Metrics
	}
	store := deps.Store
	if store == nil {
		store = repository.NewMemoryStore(machine.IsTerminal)
	}
	return &WorkflowService{
		store:   store,
		machine: machine,
		tracker: tracker,
		router:  router,
		clock:   clk,
		metrics: metrics,
		logger:  logger,
		locks:   newEntityLocks(),
		outbox:  newOutbox(),
	}
}

// Machine exposes the transition tables for read-only use.
func (s *WorkflowService) Machine() *lifecycle.Machine {
	return s.machine
}

// Submit creates a new entity in its kind's initial state.
func (s *WorkflowService) Submit(ctx context.Context, kind domain.Kind, priority domain.Priority, ownerDepartment, actor string) (*domain.Entity, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.NewCancelled(err)
	}
	parsedKind, ok := domain.ParseKind(string(kind))
	if !ok {
		return nil, apperrors.NewInvalidKind(string(kind))
	}
	parsedPriority := domain.PriorityMedium
	if strings.TrimSpace(string(priority)) != "" {
		if parsedPriority, ok = domain.ParsePriority(string(priority)); !ok {
			return nil, apperrors.NewInvalidPriority(string(priority))
		}
	}
	actor = strings.TrimSpace(actor)
	if actor == "" {
		return nil, apperrors.NewEmptyActor()
	}
	ownerDepartment = strings.TrimSpace(ownerDepartment)
	if ownerDepartment == "" {
		return nil, apperrors.NewValidationError("owner department required", nil)
	}
	initial, err := s.machine.InitialState(parsedKind)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	entity := &domain.Entity{
		ID:              uuid.NewString(),
		Kind:            parsedKind,
		State:           initial,
		Priority:        parsedPriority,
		OwnerDepartment: ownerDepartment,
		CreatedBy:       actor,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	log := s.logger.With(zap.String("entity_id", entity.ID), zap.String("kind", string(entity.Kind)))

	release, err := s.locks.acquire(ctx, entity.ID)
	if err != nil {
		return nil, s.fail(log, phaseValidating, apperrors.NewCancelled(err))
	}
	defer s.flush(ctx, entity.ID)
	defer release()

	if err := s.store.Save(context.WithoutCancel(ctx), entity); err != nil {
		return nil, s.fail(log, phasePersisting, err)
	}
	s.stage(log, events.Event{
		Type:            events.EventCreated,
		Origin:          originFor(actor),
		EntityID:        entity.ID,
		Kind:            entity.Kind,
		OwnerDepartment: entity.OwnerDepartment,
		Priority:        entity.Priority,
		ToState:         entity.State,
		Actor:           actor,
		Timestamp:       now,
	})
	log.Info("entity submitted", zap.String("phase", string(phaseDone)), zap.String("priority", string(entity.Priority)))
	return entity.Clone(), nil
}

// Transition moves an entity to event. Either the state, history, and
// notifications all change, or nothing does. Events are delivered after the
// entity lock is released, so a handler may itself call Transition; such a
// nested call returns before its own event reaches subscribers.
func (s *WorkflowService) Transition(ctx context.Context, entityID string, event domain.State, actor, comment string) (*domain.Entity, error) {
	log := s.logger.With(
		zap.String("entity_id", entityID),
		zap.String("event", string(event)),
		zap.String("actor", actor),
	)

	release, err := s.locks.acquire(ctx, entityID)
	if err != nil {
		return nil, s.fail(log, phaseValidating, apperrors.NewCancelled(err))
	}
	defer s.flush(ctx, entityID)
	defer release()

	entity, err := s.store.Load(ctx, entityID)
	if err != nil {
		return nil, s.fail(log, phaseValidating, err)
	}
	actor = strings.TrimSpace(actor)
	next, err := s.validate(entity, event, actor, comment)
	if err != nil {
		return nil, s.fail(log, phaseValidating, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, s.fail(log, phaseValidating, apperrors.NewCancelled(err))
	}

	now := s.clock.Now()
	from := entity.State
	entity.State = next
	entity.UpdatedAt = now
	entity.History = append(entity.History, domain.HistoryEntry{
		FromState: from,
		ToState:   next,
		Actor:     actor,
		Comment:   strings.TrimSpace(comment),
		Timestamp: now,
	})
	status := s.tracker.EvaluateEntity(entity, now)
	escalate := markOverdue(entity, status, now)

	if err := s.store.Save(context.WithoutCancel(ctx), entity); err != nil {
		return nil, s.fail(log, phasePersisting, err)
	}
	s.metrics.RecordTransition(entity.Kind, from, next)

	if ctx.Err() != nil {
		log.Debug("caller went away after persistence; notification skipped", zap.String("phase", string(phaseNotifying)))
		return entity.Clone(), nil
	}
	s.stage(log, events.Event{
		Type:            events.EventTransitioned,
		Origin:          originFor(actor),
		EntityID:        entity.ID,
		Kind:            entity.Kind,
		OwnerDepartment: entity.OwnerDepartment,
		Priority:        entity.Priority,
		FromState:       from,
		ToState:         next,
		Actor:           actor,
		Comment:         strings.TrimSpace(comment),
		Timestamp:       now,
	})
	if escalate {
		s.stageEscalation(log, entity, now)
	}
	log.Info("entity transitioned",
		zap.String("phase", string(phaseDone)),
		zap.String("from", string(from)),
		zap.String("to", string(next)))
	return entity.Clone(), nil
}

// Query returns the entity with a freshly computed SLA status. The first time
// an entity is seen overdue an Escalated event is published.
func (s *WorkflowService) Query(ctx context.Context, entityID string) (*domain.Entity, sla.Status, error) {
	entity, status, _, err := s.query(ctx, entityID)
	return entity, status, err
}

func (s *WorkflowService) query(ctx context.Context, entityID string) (*domain.Entity, sla.Status, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, sla.Status{}, false, apperrors.NewCancelled(err)
	}
	entity, err := s.store.Load(ctx, entityID)
	if err != nil {
		return nil, sla.Status{}, false, apperrors.MapError(err)
	}
	status := s.tracker.EvaluateEntity(entity, s.clock.Now())
	if !status.Overdue || entity.LastOverdueNotifiedAt != nil {
		return entity, status, false, nil
	}
	return s.escalate(ctx, entityID)
}

// escalate re-checks the overdue flag under the entity lock so that
// concurrent readers publish at most one Escalated event.
func (s *WorkflowService) escalate(ctx context.Context, entityID string) (*domain.Entity, sla.Status, bool, error) {
	log := s.logger.With(zap.String("entity_id", entityID))

	release, err := s.locks.acquire(ctx, entityID)
	if err != nil {
		return nil, sla.Status{}, false, s.fail(log, phaseValidating, apperrors.NewCancelled(err))
	}
	defer s.flush(ctx, entityID)
	defer release()

	entity, err := s.store.Load(ctx, entityID)
	if err != nil {
		return nil, sla.Status{}, false, s.fail(log, phaseValidating, err)
	}
	now := s.clock.Now()
	status := s.tracker.EvaluateEntity(entity, now)
	if !markOverdue(entity, status, now) {
		return entity, status, false, nil
	}
	if err := s.store.Save(context.WithoutCancel(ctx), entity); err != nil {
		return nil, sla.Status{}, false, s.fail(log, phasePersisting, err)
	}
	if ctx.Err() != nil {
		log.Debug("caller went away after persistence; escalation skipped", zap.String("phase", string(phaseNotifying)))
		return entity.Clone(), status, false, nil
	}
	s.stageEscalation(log, entity, now)
	return entity.Clone(), status, true, nil
}

// ChangePriority raises the priority of a non-terminal entity. The SLA is
// re-evaluated so a tighter deadline can trigger escalation immediately.
func (s *WorkflowService) ChangePriority(ctx context.Context, entityID string, priority domain.Priority, actor string) (*domain.Entity, error) {
	log := s.logger.With(zap.String("entity_id", entityID), zap.String("actor", actor))

	release, err := s.locks.acquire(ctx, entityID)
	if err != nil {
		return nil, s.fail(log, phaseValidating, apperrors.NewCancelled(err))
	}
	defer s.flush(ctx, entityID)
	defer release()

	entity, err := s.store.Load(ctx, entityID)
	if err != nil {
		return nil, s.fail(log, phaseValidating, err)
	}
	if s.machine.IsTerminal(entity.Kind, entity.State) {
		return nil, s.fail(log, phaseValidating, apperrors.NewTerminalState(
			fmt.Sprintf("%s is already %s", entity.Kind.Noun(), entity.State.Label()), nil))
	}
	actor = strings.TrimSpace(actor)
	if actor == "" {
		return nil, s.fail(log, phaseValidating, apperrors.NewEmptyActor())
	}
	next, ok := domain.ParsePriority(string(priority))
	if !ok {
		return nil, s.fail(log, phaseValidating, apperrors.NewInvalidPriority(string(priority)))
	}
	if next.Rank() <= entity.Priority.Rank() {
		return nil, s.fail(log, phaseValidating, apperrors.NewValidationError("priority can only be escalated",
			map[string]any{"current": entity.Priority, "requested": next}))
	}

	now := s.clock.Now()
	previous := entity.Priority
	entity.Priority = next
	entity.UpdatedAt = now
	status := s.tracker.EvaluateEntity(entity, now)
	escalate := markOverdue(entity, status, now)

	if err := s.store.Save(context.WithoutCancel(ctx), entity); err != nil {
		return nil, s.fail(log, phasePersisting, err)
	}
	if ctx.Err() != nil {
		return entity.Clone(), nil
	}
	s.stage(log, events.Event{
		Type:            events.EventPriorityChanged,
		Origin:          originFor(actor),
		EntityID:        entity.ID,
		Kind:            entity.Kind,
		OwnerDepartment: entity.OwnerDepartment,
		Priority:        entity.Priority,
		FromState:       entity.State,
		ToState:         entity.State,
		Actor:           actor,
		Comment:         fmt.Sprintf("priority %s -> %s", previous, next),
		Timestamp:       now,
	})
	if escalate {
		s.stageEscalation(log, entity, now)
	}
	return entity.Clone(), nil
}

// AllowedEvents lists the events actor may request from the entity's current state.
func (s *WorkflowService) AllowedEvents(entity *domain.Entity, actor string) []domain.State {
	allowed := s.machine.AllowedEvents(entity.Kind, entity.State)
	result := make([]domain.State, 0, len(allowed))
	for _, event := range allowed {
		if event == domain.StateExpired && actor != SystemActor {
			continue
		}
		result = append(result, event)
	}
	return result
}

// Subscribe registers a handler with the notification router.
func (s *WorkflowService) Subscribe(pattern events.Pattern, handler events.EventHandler) events.SubscriptionID {
	return s.router.Subscribe(pattern, handler)
}

// Unsubscribe removes a handler from the notification router.
func (s *WorkflowService) Unsubscribe(id events.SubscriptionID) bool {
	return s.router.Unsubscribe(id)
}

func (s *WorkflowService) validate(entity *domain.Entity, event domain.State, actor, comment string) (domain.State, error) {
	if s.machine.IsTerminal(entity.Kind, entity.State) {
		return s.machine.Apply(entity, event, actor)
	}
	if actor == "" {
		return "", apperrors.NewEmptyActor()
	}
	if event == domain.StateExpired && actor != SystemActor {
		return "", apperrors.NewInvalidTransition(
			fmt.Sprintf("%s expiry is system-generated", entity.Kind.Noun()),
			map[string]any{"kind": entity.Kind, "from": entity.State, "event": event})
	}
	if s.machine.CanTransition(entity.Kind, entity.State, event) && requiresComment(entity.Kind, event) && strings.TrimSpace(comment) == "" {
		verb := "approve"
		if event == domain.StateRejected {
			verb = "reject"
		}
		return "", apperrors.NewMissingComment(fmt.Sprintf("a comment is required to %s %s", verb, entity.Kind.Noun()))
	}
	return s.machine.Apply(entity, event, actor)
}

func requiresComment(kind domain.Kind, event domain.State) bool {
	if kind != domain.KindApplication && kind != domain.KindRenewal {
		return false
	}
	return event == domain.StateApproved || event == domain.StateRejected
}

func markOverdue(entity *domain.Entity, status sla.Status, now time.Time) bool {
	if !status.Overdue || entity.LastOverdueNotifiedAt != nil {
		return false
	}
	ts := now
	entity.LastOverdueNotifiedAt = &ts
	return true
}

func (s *WorkflowService) stageEscalation(log *zap.Logger, entity *domain.Entity, now time.Time) {
	s.metrics.RecordEscalation(entity.Kind)
	s.stage(log, events.Event{
		Type:            events.EventEscalated,
		Origin:          events.OriginSystem,
		EntityID:        entity.ID,
		Kind:            entity.Kind,
		OwnerDepartment: entity.OwnerDepartment,
		Priority:        entity.Priority,
		FromState:       entity.State,
		ToState:         entity.State,
		Actor:           SystemActor,
		Timestamp:       now,
	})
	log.Info("entity escalated", zap.String("kind", string(entity.Kind)), zap.String("priority", string(entity.Priority)))
}

// stage queues event for delivery once the entity lock is released. Callers
// must hold the lock for event.EntityID.
func (s *WorkflowService) stage(log *zap.Logger, event events.Event) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.clock.Now()
	}
	s.outbox.enqueue(event.EntityID, log, event)
}

// flush delivers the events queued for entityID. It must run after the
// entity lock is released so handlers may call back into the service; a
// nested flush for the same entity returns at once and the outer one
// delivers what the handler queued.
func (s *WorkflowService) flush(ctx context.Context, entityID string) {
	if !s.outbox.claim(entityID) {
		return
	}
	ctx = context.WithoutCancel(ctx)
	for {
		queued, ok := s.outbox.next(entityID)
		if !ok {
			return
		}
		if err := s.router.Publish(ctx, queued.event); err != nil {
			queued.log.Warn("notification delivery incomplete",
				zap.String("phase", string(phaseNotifying)),
				zap.String("event_type", string(queued.event.Type)),
				zap.Error(err))
		}
	}
}

// fail logs err at a level matching who should care about it and returns it as a DomainError.
func (s *WorkflowService) fail(log *zap.Logger, at phase, err error) error {
	domainErr := apperrors.ToDomainError(err)
	fields := []zap.Field{
		zap.String("phase", string(phaseFailed)),
		zap.String("failed_in", string(at)),
		zap.String("code", domainErr.Code),
	}
	switch {
	case apperrors.IsCancelled(err):
		log.Debug("workflow call cancelled", fields...)
	case domainErr.HTTPStatus >= 500:
		log.Error("workflow call failed", append(fields, zap.Error(err))...)
	default:
		log.Info("workflow call rejected", append(fields, zap.String("reason", domainErr.Message))...)
	}
	return domainErr
}

func originFor(actor string) events.Origin {
	if actor == SystemActor {
		return events.OriginSystem
	}
	return events.OriginUser
}
