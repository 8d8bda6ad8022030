package repository

import (
	"context"

	"github.com/spec-kit/permit-lifecycle/internal/domain"
)

// Store persists workflow entities. Load returns a NOT_FOUND DomainError for unknown ids.
type Store interface {
	Load(ctx context.Context, id string) (*domain.Entity, error)
	Save(ctx context.Context, entity *domain.Entity) error
	ListNonTerminal(ctx context.Context, kind domain.Kind) ([]domain.Entity, error)
}

// TerminalFunc reports whether a state is terminal for a kind.
type TerminalFunc func(kind domain.Kind, state domain.State) bool
