// Package statemachine implements the State Machine (C6): the petition
// lifecycle's fixed transition matrix and terminal-state immutability
// rule.
//
// Grounded on the original's PetitionState enum and STATE_TRANSITION_MATRIX
// (src/domain/models/petition_submission.py), re-expressed as a Go
// type with a package-level matrix rather than per-instance builder
// methods — per spec.md §9's instruction to stop caching mutable value
// copies and let the Petition Store remain the sole source of truth.
package statemachine

import "github.com/archon-governance/three-fates/pkg/petitionerr"

// State is one of the seven petition lifecycle states.
type State string

const (
	StateReceived     State = "RECEIVED"
	StateDeliberating State = "DELIBERATING"
	StateAcknowledged State = "ACKNOWLEDGED"
	StateReferred     State = "REFERRED"
	StateEscalated    State = "ESCALATED"
	StateDeferred     State = "DEFERRED"
	StateNoResponse   State = "NO_RESPONSE"
)

// transitionMatrix mirrors spec.md §4.3 exactly.
var transitionMatrix = map[State][]State{
	StateReceived:     {StateDeliberating, StateAcknowledged, StateEscalated},
	StateDeliberating: {StateAcknowledged, StateReferred, StateEscalated, StateDeferred, StateNoResponse},
	StateAcknowledged: {},
	StateReferred:     {},
	StateEscalated:    {},
	StateDeferred:     {},
	StateNoResponse:   {},
}

var terminalStates = map[State]bool{
	StateAcknowledged: true,
	StateReferred:     true,
	StateEscalated:    true,
	StateDeferred:     true,
	StateNoResponse:   true,
}

// IsTerminal reports whether s is one of the five terminal fates.
func IsTerminal(s State) bool {
	return terminalStates[s]
}

// AllowedTransitions returns the set of states reachable from s in one
// step. The returned slice must not be mutated by callers.
func AllowedTransitions(s State) []State {
	return transitionMatrix[s]
}

// Validate checks whether from -> to is an allowed transition, returning a
// classified *petitionerr.Error if not:
//   - KindAlreadyFated if from is terminal (a terminal petition can never
//     move again, regardless of what to is).
//   - KindInvalidTransition if to is not among from's allowed targets.
func Validate(from, to State) error {
	if IsTerminal(from) {
		return petitionerr.New(petitionerr.KindAlreadyFated, "petition has already reached a terminal state")
	}
	for _, allowed := range transitionMatrix[from] {
		if allowed == to {
			return nil
		}
	}
	return petitionerr.New(petitionerr.KindInvalidTransition,
		"transition "+string(from)+" -> "+string(to)+" is not permitted")
}
