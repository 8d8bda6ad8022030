package repository

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/permit-lifecycle/internal/domain"
	"github.com/spec-kit/permit-lifecycle/internal/lifecycle"
	apperrors "github.com/spec-kit/permit-lifecycle/pkg/util"
)

// postgresPool connects to LIFECYCLE_TEST_POSTGRES_DSN and applies the schema.
// The test is skipped when the variable is unset.
func postgresPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("LIFECYCLE_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("LIFECYCLE_TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	schema, err := os.ReadFile("../../migrations/001_entities.sql")
	require.NoError(t, err)
	_, err = pool.Exec(ctx, string(schema))
	require.NoError(t, err)
	return pool
}

func TestPostgresStoreRoundTrip(t *testing.T) {
	pool := postgresPool(t)
	ctx := context.Background()
	machine := lifecycle.New()
	store := NewPostgresStore(pool, machine.NonTerminalStates)

	now := time.Now().UTC().Truncate(time.Microsecond)
	entity := newEntity(uuid.NewString(), domain.KindRenewal, domain.StatePending, now)
	require.NoError(t, store.Save(ctx, entity))

	entity.State = domain.StateApproved
	entity.History = append(entity.History, domain.HistoryEntry{
		FromState: domain.StatePending,
		ToState:   domain.StateApproved,
		Actor:     "officer1",
		Comment:   "documents verified",
		Timestamp: now.Add(time.Minute),
	})
	notified := now.Add(2 * time.Minute)
	entity.LastOverdueNotifiedAt = &notified
	require.NoError(t, store.Save(ctx, entity))

	loaded, err := store.Load(ctx, entity.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateApproved, loaded.State)
	require.Len(t, loaded.History, 1)
	assert.Equal(t, "documents verified", loaded.History[0].Comment)
	require.NotNil(t, loaded.LastOverdueNotifiedAt)
	assert.True(t, notified.Equal(*loaded.LastOverdueNotifiedAt))

	list, err := store.ListNonTerminal(ctx, domain.KindRenewal)
	require.NoError(t, err)
	found := false
	for _, e := range list {
		if e.ID == entity.ID {
			found = true
			assert.Len(t, e.History, 1)
		}
	}
	assert.True(t, found, "approved renewal is still awaiting issue")

	entity.History = nil
	assert.True(t, errors.Is(store.Save(ctx, entity), apperrors.ErrConflict))

	_, err = store.Load(ctx, uuid.NewString())
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}

func TestPostgresListNonTerminalGroupsHistory(t *testing.T) {
	pool := postgresPool(t)
	ctx := context.Background()
	machine := lifecycle.New()
	store := NewPostgresStore(pool, machine.NonTerminalStates)

	now := time.Now().UTC().Truncate(time.Microsecond)
	steps := map[string][]domain.State{}
	for i, path := range [][]domain.State{
		{domain.StateInProgress},
		{domain.StateInProgress, domain.StateOpen, domain.StateInProgress},
		{},
	} {
		entity := newEntity(uuid.NewString(), domain.KindComplaint, domain.StateOpen, now.Add(time.Duration(i)*time.Second))
		for j, next := range path {
			entity.History = append(entity.History, domain.HistoryEntry{
				FromState: entity.State,
				ToState:   next,
				Actor:     "officer1",
				Timestamp: now.Add(time.Duration(j+1) * time.Minute),
			})
			entity.State = next
		}
		require.NoError(t, store.Save(ctx, entity))
		steps[entity.ID] = path
	}

	list, err := store.ListNonTerminal(ctx, domain.KindComplaint)
	require.NoError(t, err)
	seen := 0
	for _, e := range list {
		path, ok := steps[e.ID]
		if !ok {
			continue
		}
		seen++
		require.Len(t, e.History, len(path), e.ID)
		for j, entry := range e.History {
			assert.Equal(t, path[j], entry.ToState, e.ID)
		}
		state, err := machine.Replay(domain.KindComplaint, e.History)
		require.NoError(t, err)
		assert.Equal(t, e.State, state)
	}
	assert.Equal(t, len(steps), seen)
}
