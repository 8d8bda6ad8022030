package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/permit-lifecycle/internal/domain"
	"github.com/spec-kit/permit-lifecycle/internal/events"
)

func TestSweepEscalatesEachBreachOnce(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	overdue := f.submit(t, domain.KindComplaint, domain.PriorityCritical)
	fresh := f.submit(t, domain.KindApplication, domain.PriorityLow)
	done := f.submit(t, domain.KindComplaint, domain.PriorityCritical)
	_, err := f.svc.Transition(ctx, done.ID, domain.StateInProgress, "officer1", "")
	require.NoError(t, err)
	_, err = f.svc.Transition(ctx, done.ID, domain.StateResolved, "officer1", "")
	require.NoError(t, err)
	_, err = f.svc.Transition(ctx, done.ID, domain.StateClosed, "officer1", "")
	require.NoError(t, err)

	f.clock.Set(t0.Add(5 * time.Hour))
	report, err := f.svc.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Scanned)
	assert.Equal(t, 1, report.Escalated)

	escalated := f.sink.ofType(events.EventEscalated)
	require.Len(t, escalated, 1)
	assert.Equal(t, overdue.ID, escalated[0].EntityID)

	report, err = f.svc.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, report.Escalated)
	assert.Len(t, f.sink.ofType(events.EventEscalated), 1)

	assert.Equal(t, domain.StateOpen, f.load(t, overdue.ID).State, "sweep never changes state")
	assert.Equal(t, domain.StatePending, f.load(t, fresh.ID).State)
}

func TestSweepStopsOnCancellation(t *testing.T) {
	f := newFixture(t, nil)
	f.submit(t, domain.KindComplaint, domain.PriorityCritical)
	f.clock.Set(t0.Add(5 * time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.svc.Sweep(ctx)
	assert.Error(t, err)
	assert.Empty(t, f.sink.ofType(events.EventEscalated))
}

func TestExpireLapsedRenewals(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	lapsed := f.submit(t, domain.KindRenewal, domain.PriorityMedium)
	approved := f.submit(t, domain.KindRenewal, domain.PriorityMedium)
	_, err := f.svc.Transition(ctx, approved.ID, domain.StateApproved, "officer1", "paid")
	require.NoError(t, err)

	f.clock.Set(t0.Add(10 * 24 * time.Hour))
	count, err := f.svc.ExpireLapsedRenewals(ctx)
	require.NoError(t, err)
	assert.Zero(t, count, "window not yet lapsed")

	f.clock.Set(t0.Add(31 * 24 * time.Hour))
	count, err = f.svc.ExpireLapsedRenewals(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	stored := f.load(t, lapsed.ID)
	assert.Equal(t, domain.StateExpired, stored.State)
	require.Len(t, stored.History, 1)
	assert.Equal(t, SystemActor, stored.History[0].Actor)
	assert.Equal(t, domain.StateApproved, f.load(t, approved.ID).State)

	count, err = f.svc.ExpireLapsedRenewals(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}
