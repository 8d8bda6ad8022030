package lifecycle

import (
	"errors"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/spec-kit/permit-lifecycle/internal/domain"
	apperrors "github.com/spec-kit/permit-lifecycle/pkg/util"
)

var allEvents = []domain.State{
	domain.StatePending, domain.StateInReview, domain.StateDocumentRequired, domain.StateApproved,
	domain.StateRejected, domain.StateOpen, domain.StateInProgress, domain.StateResolved,
	domain.StateClosed, domain.StateIssued, domain.StateExpired,
}

// walk drives an entity through picks, choosing one allowed edge per step,
// and returns the history it produced and the state it ended in.
func walk(m *Machine, kind domain.Kind, picks []int) ([]domain.HistoryEntry, domain.State) {
	current, _ := m.InitialState(kind)
	var history []domain.HistoryEntry
	for _, pick := range picks {
		next := m.AllowedEvents(kind, current)
		if len(next) == 0 {
			break
		}
		to := next[pick%len(next)]
		history = append(history, domain.HistoryEntry{FromState: current, ToState: to, Actor: "walker"})
		current = to
	}
	return history, current
}

func TestReplayReproducesState(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)
	m := New()

	properties.Property("replaying history reproduces the final state", prop.ForAll(
		func(kindIdx int, picks []int) bool {
			kind := domain.Kinds[kindIdx]
			history, want := walk(m, kind, picks)
			got, err := m.Replay(kind, history)
			return err == nil && got == want
		},
		gen.IntRange(0, len(domain.Kinds)-1),
		gen.SliceOf(gen.IntRange(0, 16)),
	))

	properties.TestingRun(t)
}

func TestApplyRejectsEveryMissingEdge(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)
	m := New()

	properties.Property("events outside the edge set fail without changing state", prop.ForAll(
		func(kindIdx int, picks []int, eventIdx int) bool {
			kind := domain.Kinds[kindIdx]
			_, current := walk(m, kind, picks)
			event := allEvents[eventIdx]
			entity := &domain.Entity{Kind: kind, State: current}

			_, err := m.Apply(entity, event, "prop")
			switch {
			case m.IsTerminal(kind, current):
				return errors.Is(err, apperrors.ErrTerminalState) && entity.State == current
			case m.CanTransition(kind, current, event):
				return err == nil && entity.State == current
			default:
				return errors.Is(err, apperrors.ErrInvalidTransition) && entity.State == current
			}
		},
		gen.IntRange(0, len(domain.Kinds)-1),
		gen.SliceOf(gen.IntRange(0, 16)),
		gen.IntRange(0, len(allEvents)-1),
	))

	properties.TestingRun(t)
}
