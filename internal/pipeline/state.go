// Package pipeline drives a requirement story through analysis,
// clarification, technical design, planning and code generation.
//
// A Session owns every live artifact. The Orchestrator runs one transition
// at a time against a session and clears whatever an upstream change makes
// stale.
package pipeline

import (
	"errors"
	"fmt"
	"strings"
)

// State is a pipeline state.
type State string

const (
	StateEmpty          State = "empty"
	StateStoryLoaded    State = "story_loaded"
	StateClarifying     State = "clarifying"
	StateOverviewReady  State = "overview_ready"
	StateTechnicalReady State = "technical_ready"
	StatePlanReady      State = "plan_ready"
	StateFilesGenerated State = "files_generated"
)

// StateOrder lists the states from earliest to latest.
var StateOrder = []State{
	StateEmpty,
	StateStoryLoaded,
	StateClarifying,
	StateOverviewReady,
	StateTechnicalReady,
	StatePlanReady,
	StateFilesGenerated,
}

// ErrWrongState is returned when an operation is not legal in the current
// state.
var ErrWrongState = errors.New("wrong pipeline state")

// StateIndex returns the position of s in StateOrder, or -1.
func StateIndex(s State) int {
	for i, st := range StateOrder {
		if st == s {
			return i
		}
	}
	return -1
}

// AtLeast reports whether s is min or a later state. Clarifying is not
// "at least" OverviewReady.
func AtLeast(s, min State) bool {
	i := StateIndex(s)
	return i >= 0 && i >= StateIndex(min)
}

// RequireState returns ErrWrongState unless the session is in one of the
// allowed states.
func RequireState(sess *Session, allowed ...State) error {
	for _, a := range allowed {
		if sess.State == a {
			return nil
		}
	}
	names := make([]string, len(allowed))
	for i, a := range allowed {
		names[i] = string(a)
	}
	return fmt.Errorf("%w: session is %q, operation needs %s",
		ErrWrongState, sess.State, strings.Join(names, " or "))
}

// statesFrom returns min and every later state.
func statesFrom(min State) []State {
	i := StateIndex(min)
	if i < 0 {
		return nil
	}
	return StateOrder[i:]
}

// NextStep describes what the user can do in state s.
func NextStep(s State) string {
	switch s {
	case StateEmpty:
		return "Load a requirement story (paste it, or fetch it by ticket id)."
	case StateStoryLoaded:
		return "Analyze the story."
	case StateClarifying:
		return "Answer every clarification question."
	case StateOverviewReady:
		return "Review the solution overview, then generate the technical design."
	case StateTechnicalReady:
		return "Review or edit the technical solution, then build the file plan."
	case StatePlanReady:
		return "Generate the planned files."
	case StateFilesGenerated:
		return "Review the generated files, or publish the design to the ticket."
	default:
		return "Reset the session."
	}
}
