// Package lifecycle holds the fixed transition tables for applications,
// complaints, and renewal requests. Everything here is pure: callers apply the
// returned state and append history themselves.
package lifecycle

import (
	"fmt"
	"strings"

	"github.com/spec-kit/permit-lifecycle/internal/domain"
	apperrors "github.com/spec-kit/permit-lifecycle/pkg/util"
)

// Table maps a state to the states reachable from it. Terminal states map to an empty slice.
type Table map[domain.State][]domain.State

type shape struct {
	initial domain.State
	table   Table
}

// Machine validates transitions against the per-kind tables.
type Machine struct {
	shapes map[domain.Kind]shape
}

// New returns a Machine loaded with the canonical tables.
func New() *Machine {
	return &Machine{
		shapes: map[domain.Kind]shape{
			domain.KindApplication: {
				initial: domain.StatePending,
				table: Table{
					domain.StatePending:          {domain.StateInReview, domain.StateDocumentRequired},
					domain.StateInReview:         {domain.StateApproved, domain.StateRejected, domain.StateDocumentRequired},
					domain.StateDocumentRequired: {domain.StateInReview},
					domain.StateApproved:         {},
					domain.StateRejected:         {},
				},
			},
			domain.KindComplaint: {
				initial: domain.StateOpen,
				table: Table{
					domain.StateOpen:       {domain.StateInProgress},
					domain.StateInProgress: {domain.StateResolved, domain.StateOpen},
					domain.StateResolved:   {domain.StateClosed},
					domain.StateClosed:     {},
				},
			},
			domain.KindRenewal: {
				initial: domain.StatePending,
				table: Table{
					domain.StatePending:  {domain.StateApproved, domain.StateRejected, domain.StateExpired},
					domain.StateApproved: {domain.StateIssued},
					domain.StateRejected: {},
					domain.StateIssued:   {},
					domain.StateExpired:  {},
				},
			},
		},
	}
}

// InitialState returns the state new entities of kind start in.
func (m *Machine) InitialState(kind domain.Kind) (domain.State, error) {
	sh, ok := m.shapes[kind]
	if !ok {
		return "", apperrors.NewInvalidKind(string(kind))
	}
	return sh.initial, nil
}

// States returns every state known for kind.
func (m *Machine) States(kind domain.Kind) []domain.State {
	sh, ok := m.shapes[kind]
	if !ok {
		return nil
	}
	states := make([]domain.State, 0, len(sh.table))
	for state := range sh.table {
		states = append(states, state)
	}
	return states
}

// NonTerminalStates returns the states of kind that still have outgoing edges.
func (m *Machine) NonTerminalStates(kind domain.Kind) []domain.State {
	var result []domain.State
	for _, state := range m.States(kind) {
		if !m.IsTerminal(kind, state) {
			result = append(result, state)
		}
	}
	return result
}

// IsTerminal reports whether state has no outgoing edges for kind.
// Unknown states are not terminal; Apply rejects them as invalid instead.
func (m *Machine) IsTerminal(kind domain.Kind, state domain.State) bool {
	next, ok := m.shapes[kind].table[state]
	return ok && len(next) == 0
}

// AllowedEvents returns the states reachable from state, in table order.
func (m *Machine) AllowedEvents(kind domain.Kind, state domain.State) []domain.State {
	next := m.shapes[kind].table[state]
	return append([]domain.State(nil), next...)
}

// CanTransition reports whether from -> to is an edge of kind's table.
func (m *Machine) CanTransition(kind domain.Kind, from, to domain.State) bool {
	for _, candidate := range m.shapes[kind].table[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

// Apply validates moving entity to event and returns the resulting state.
func (m *Machine) Apply(entity *domain.Entity, event domain.State, actor string) (domain.State, error) {
	return m.step(entity.Kind, entity.State, event, actor)
}

func (m *Machine) step(kind domain.Kind, from, to domain.State, actor string) (domain.State, error) {
	sh, ok := m.shapes[kind]
	if !ok {
		return "", apperrors.NewInvalidKind(string(kind))
	}
	next, known := sh.table[from]
	if !known {
		return "", apperrors.NewInvalidTransition(
			fmt.Sprintf("state %s is not defined for %s", from, kind.Noun()),
			transitionDetails(kind, from, to),
		)
	}
	if len(next) == 0 {
		return "", apperrors.NewTerminalState(
			fmt.Sprintf("%s is already %s", kind.Noun(), from.Label()),
			transitionDetails(kind, from, to),
		)
	}
	if strings.TrimSpace(actor) == "" {
		return "", apperrors.NewEmptyActor()
	}
	if !m.CanTransition(kind, from, to) {
		return "", apperrors.NewInvalidTransition(
			describeRejection(kind, from, to),
			transitionDetails(kind, from, to),
		)
	}
	return to, nil
}

// Replay re-applies history from the initial state of kind and returns the
// reconstructed state. Any entry that does not continue from the previous
// state, or that is not an edge of the table, fails the replay.
func (m *Machine) Replay(kind domain.Kind, history []domain.HistoryEntry) (domain.State, error) {
	current, err := m.InitialState(kind)
	if err != nil {
		return "", err
	}
	for i, entry := range history {
		if entry.FromState != current {
			return "", apperrors.NewInvalidTransition(
				fmt.Sprintf("history entry %d starts from %s but replay is at %s", i, entry.FromState, current),
				transitionDetails(kind, entry.FromState, entry.ToState),
			)
		}
		next, err := m.step(kind, current, entry.ToState, entry.Actor)
		if err != nil {
			return "", err
		}
		current = next
	}
	return current, nil
}

var eventVerbs = map[domain.State]string{
	domain.StateInReview:         "review",
	domain.StateDocumentRequired: "request documents for",
	domain.StateApproved:         "approve",
	domain.StateRejected:         "reject",
	domain.StateOpen:             "reopen",
	domain.StateInProgress:       "start work on",
	domain.StateResolved:         "resolve",
	domain.StateClosed:           "close",
	domain.StateIssued:           "issue",
	domain.StateExpired:          "expire",
	domain.StatePending:          "return to pending",
}

// describeRejection renders e.g. "cannot approve a resolved complaint".
func describeRejection(kind domain.Kind, from, to domain.State) string {
	verb, ok := eventVerbs[to]
	if !ok {
		verb = "move to " + to.Label()
	}
	phrase := from.Label() + " " + kind.Noun()
	return fmt.Sprintf("cannot %s %s %s", verb, article(phrase), phrase)
}

func article(phrase string) string {
	if phrase == "" {
		return "a"
	}
	switch phrase[0] {
	case 'a', 'e', 'i', 'o', 'u':
		return "an"
	}
	return "a"
}

func transitionDetails(kind domain.Kind, from, to domain.State) map[string]any {
	return map[string]any{
		"kind":  kind,
		"from":  from,
		"event": to,
	}
}
