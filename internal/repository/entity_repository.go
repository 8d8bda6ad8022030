package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/permit-lifecycle/internal/domain"
	apperrors "github.com/spec-kit/permit-lifecycle/pkg/util"
)

// NonTerminalFunc lists the states of a kind that still have outgoing edges.
type NonTerminalFunc func(kind domain.Kind) []domain.State

type postgresStore struct {
	pool        *pgxpool.Pool
	nonTerminal NonTerminalFunc
}

// NewPostgresStore returns a Store backed by the entities and entity_history tables.
func NewPostgresStore(pool *pgxpool.Pool, nonTerminal NonTerminalFunc) Store {
	return &postgresStore{pool: pool, nonTerminal: nonTerminal}
}

const entityColumns = `id, kind, state, priority, owner_department, created_by, created_at, updated_at, last_overdue_notified_at`

func (r *postgresStore) Load(ctx context.Context, id string) (*domain.Entity, error) {
	query := `SELECT ` + entityColumns + ` FROM entities WHERE id=$1`
	entity, err := scanEntity(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("entity", map[string]any{"id": id})
		}
		return nil, err
	}
	histories, err := r.loadHistories(ctx, []string{id})
	if err != nil {
		return nil, err
	}
	entity.History = histories[id]
	return entity, nil
}

func (r *postgresStore) Save(ctx context.Context, entity *domain.Entity) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin save: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	const upsert = `
        INSERT INTO entities (id, kind, state, priority, owner_department, created_by, created_at, updated_at, last_overdue_notified_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
        ON CONFLICT (id) DO UPDATE SET state=EXCLUDED.state, priority=EXCLUDED.priority,
            owner_department=EXCLUDED.owner_department, updated_at=EXCLUDED.updated_at,
            last_overdue_notified_at=EXCLUDED.last_overdue_notified_at`
	if _, err := tx.Exec(ctx, upsert,
		entity.ID,
		entity.Kind,
		entity.State,
		entity.Priority,
		entity.OwnerDepartment,
		entity.CreatedBy,
		entity.CreatedAt,
		entity.UpdatedAt,
		entity.LastOverdueNotifiedAt,
	); err != nil {
		return fmt.Errorf("upsert entity: %w", err)
	}

	var stored int
	if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM entity_history WHERE entity_id=$1`, entity.ID).Scan(&stored); err != nil {
		return fmt.Errorf("count history: %w", err)
	}
	if len(entity.History) < stored {
		return apperrors.NewConflict("history is append-only", map[string]any{"id": entity.ID})
	}

	if pending := entity.History[stored:]; len(pending) > 0 {
		const insert = `
            INSERT INTO entity_history (entity_id, seq, from_state, to_state, actor, comment, created_at)
            VALUES ($1,$2,$3,$4,$5,$6,$7)`
		batch := &pgx.Batch{}
		for i, entry := range pending {
			batch.Queue(insert, entity.ID, stored+i, entry.FromState, entry.ToState, entry.Actor, entry.Comment, entry.Timestamp)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("append history: %w", err)
		}
	}

	return tx.Commit(ctx)
}

func (r *postgresStore) ListNonTerminal(ctx context.Context, kind domain.Kind) ([]domain.Entity, error) {
	states := r.nonTerminal(kind)
	if len(states) == 0 {
		return []domain.Entity{}, nil
	}
	names := make([]string, len(states))
	for i, s := range states {
		names[i] = string(s)
	}

	query := `SELECT ` + entityColumns + ` FROM entities WHERE kind=$1 AND state = ANY($2) ORDER BY created_at ASC, id ASC`
	rows, err := r.pool.Query(ctx, query, kind, names)
	if err != nil {
		return nil, err
	}
	var (
		result []domain.Entity
		ids    []string
	)
	for rows.Next() {
		entity, err := scanEntity(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		result = append(result, *entity)
		ids = append(ids, entity.ID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(ids) == 0 {
		return []domain.Entity{}, nil
	}

	histories, err := r.loadHistories(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range result {
		result[i].History = histories[result[i].ID]
	}
	return result, nil
}

// loadHistories fetches the history of every id in one round trip, keyed by
// entity id and ordered by seq.
func (r *postgresStore) loadHistories(ctx context.Context, ids []string) (map[string][]domain.HistoryEntry, error) {
	const query = `
        SELECT entity_id, from_state, to_state, actor, comment, created_at
        FROM entity_history WHERE entity_id = ANY($1) ORDER BY entity_id, seq ASC`
	rows, err := r.pool.Query(ctx, query, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[string][]domain.HistoryEntry, len(ids))
	for rows.Next() {
		var (
			entityID string
			entry    domain.HistoryEntry
		)
		if err := rows.Scan(
			&entityID,
			&entry.FromState,
			&entry.ToState,
			&entry.Actor,
			&entry.Comment,
			&entry.Timestamp,
		); err != nil {
			return nil, err
		}
		result[entityID] = append(result[entityID], entry)
	}
	return result, rows.Err()
}

func scanEntity(row pgx.Row) (*domain.Entity, error) {
	var entity domain.Entity
	if err := row.Scan(
		&entity.ID,
		&entity.Kind,
		&entity.State,
		&entity.Priority,
		&entity.OwnerDepartment,
		&entity.CreatedBy,
		&entity.CreatedAt,
		&entity.UpdatedAt,
		&entity.LastOverdueNotifiedAt,
	); err != nil {
		return nil, err
	}
	return &entity, nil
}
