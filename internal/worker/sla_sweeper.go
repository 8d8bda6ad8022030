package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/permit-lifecycle/internal/service"
	apperrors "github.com/spec-kit/permit-lifecycle/pkg/util"
)

// Sweeper is the part of the workflow service the periodic sweep drives.
type Sweeper interface {
	Sweep(ctx context.Context) (service.SweepReport, error)
	ExpireLapsedRenewals(ctx context.Context) (int, error)
}

// SLASweeper periodically escalates entities that became overdue without
// anyone touching them and, optionally, expires lapsed renewals.
type SLASweeper struct {
	workflow       Sweeper
	interval       time.Duration
	expireRenewals bool
	logger         *zap.Logger
}

// NewSLASweeper builds a sweeper.
func NewSLASweeper(workflow Sweeper, interval time.Duration, expireRenewals bool, logger *zap.Logger) *SLASweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SLASweeper{workflow: workflow, interval: interval, expireRenewals: expireRenewals, logger: logger}
}

// Run blocks until ctx is done. A non-positive interval returns immediately.
func (s *SLASweeper) Run(ctx context.Context) {
	if s.interval <= 0 {
		s.logger.Info("sla sweeper disabled")
		return
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("sla sweeper started", zap.Duration("interval", s.interval))
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("sla sweeper stopped")
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single sweep pass.
func (s *SLASweeper) RunOnce(ctx context.Context) service.SweepReport {
	report, err := s.workflow.Sweep(ctx)
	if err != nil && !apperrors.IsCancelled(err) {
		s.logger.Error("sla sweep failed", zap.Error(err))
	}
	if s.expireRenewals && ctx.Err() == nil {
		expired, err := s.workflow.ExpireLapsedRenewals(ctx)
		if err != nil && !apperrors.IsCancelled(err) {
			s.logger.Error("renewal expiry failed", zap.Error(err))
		}
		report.Expired = expired
	}
	s.logger.Debug("sla sweep complete",
		zap.Int("scanned", report.Scanned),
		zap.Int("escalated", report.Escalated),
		zap.Int("expired", report.Expired))
	return report
}
