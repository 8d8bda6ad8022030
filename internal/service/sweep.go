package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/spec-kit/permit-lifecycle/internal/domain"
	apperrors "github.com/spec-kit/permit-lifecycle/pkg/util"
)

// SweepReport summarizes one pass over the non-terminal entities.
type SweepReport struct {
	Scanned   int
	Escalated int
	Expired   int
}

// Sweep queries every non-terminal entity so that SLA breaches caused purely by
// the passage of time are escalated. It never changes entity state.
func (s *WorkflowService) Sweep(ctx context.Context) (SweepReport, error) {
	var report SweepReport
	for _, kind := range domain.Kinds {
		entities, err := s.store.ListNonTerminal(ctx, kind)
		if err != nil {
			return report, apperrors.MapError(err)
		}
		for i := range entities {
			if err := ctx.Err(); err != nil {
				return report, apperrors.NewCancelled(err)
			}
			report.Scanned++
			_, _, escalated, err := s.query(ctx, entities[i].ID)
			if err != nil {
				if apperrors.IsCancelled(err) {
					return report, err
				}
				s.logger.Warn("sweep query failed", zap.String("entity_id", entities[i].ID), zap.Error(err))
				continue
			}
			if escalated {
				report.Escalated++
			}
		}
	}
	return report, nil
}

// ExpireLapsedRenewals moves pending renewals whose window has lapsed to EXPIRED.
// Entities that changed state between listing and locking are skipped.
func (s *WorkflowService) ExpireLapsedRenewals(ctx context.Context) (int, error) {
	entities, err := s.store.ListNonTerminal(ctx, domain.KindRenewal)
	if err != nil {
		return 0, apperrors.MapError(err)
	}
	now := s.clock.Now()
	expired := 0
	for i := range entities {
		entity := &entities[i]
		if entity.State != domain.StatePending {
			continue
		}
		if !s.tracker.EvaluateEntity(entity, now).Overdue {
			continue
		}
		_, err := s.Transition(ctx, entity.ID, domain.StateExpired, SystemActor, "renewal window lapsed")
		switch {
		case err == nil:
			expired++
		case errors.Is(err, apperrors.ErrInvalidTransition), errors.Is(err, apperrors.ErrTerminalState):
			continue
		case apperrors.IsCancelled(err):
			return expired, err
		default:
			s.logger.Warn("renewal expiry failed", zap.String("entity_id", entity.ID), zap.Error(err))
		}
	}
	return expired, nil
}
