package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/spec-kit/permit-lifecycle/internal/domain"
	apperrors "github.com/spec-kit/permit-lifecycle/pkg/util"
)

// MemoryStore keeps entities in a map. Values are copied on the way in and out.
type MemoryStore struct {
	mu       sync.RWMutex
	entities map[string]*domain.Entity
	terminal TerminalFunc
}

// NewMemoryStore creates an empty store.
func NewMemoryStore(terminal TerminalFunc) *MemoryStore {
	return &MemoryStore{
		entities: make(map[string]*domain.Entity),
		terminal: terminal,
	}
}

func (s *MemoryStore) Load(ctx context.Context, id string) (*domain.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entity, ok := s.entities[id]
	if !ok {
		return nil, apperrors.NewNotFound("entity", map[string]any{"id": id})
	}
	return entity.Clone(), nil
}

func (s *MemoryStore) Save(ctx context.Context, entity *domain.Entity) error {
	if entity == nil || entity.ID == "" {
		return apperrors.NewValidationError("entity id required", nil)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.entities[entity.ID]; ok && len(entity.History) < len(existing.History) {
		return apperrors.NewConflict("history is append-only", map[string]any{"id": entity.ID})
	}
	s.entities[entity.ID] = entity.Clone()
	return nil
}

// ListNonTerminal returns entities of kind ordered by creation time.
func (s *MemoryStore) ListNonTerminal(ctx context.Context, kind domain.Kind) ([]domain.Entity, error) {
	s.mu.RLock()
	result := make([]domain.Entity, 0)
	for _, entity := range s.entities {
		if entity.Kind != kind {
			continue
		}
		if s.terminal != nil && s.terminal(entity.Kind, entity.State) {
			continue
		}
		result = append(result, *entity.Clone())
	}
	s.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}
