// Package planning models a guided planning session: a state machine that
// walks a one-line prompt through clarifying questions, plan synthesis, user
// confirmation and execution tracking. It performs no I/O; analyzers,
// planners and executors live elsewhere and only report results through the
// Session operations.
package planning

import (
	"fmt"
	"strings"
)

// State is a lifecycle state of a planning session.
type State string

const (
	StateAnalyzing    State = "analyzing"
	StateInterviewing State = "interviewing"
	StatePlanning     State = "planning"
	StateConfirming   State = "confirming"
	StateExecuting    State = "executing"
	StateCancelled    State = "cancelled"
	StateCompleted    State = "completed"
)

// AllStates lists every state in lifecycle order.
var AllStates = []State{
	StateAnalyzing,
	StateInterviewing,
	StatePlanning,
	StateConfirming,
	StateExecuting,
	StateCancelled,
	StateCompleted,
}

// validTransitions is the complete transition graph. Anything not listed
// here is illegal, including self-loops.
var validTransitions = map[State][]State{
	StateAnalyzing:    {StateInterviewing, StatePlanning},
	StateInterviewing: {StatePlanning},
	StatePlanning:     {StateConfirming},
	StateConfirming:   {StateExecuting, StatePlanning, StateCancelled},
	StateExecuting:    {StateCompleted},
	StateCancelled:    {},
	StateCompleted:    {},
}

// CanTransition reports whether the graph allows moving from one state to another.
func CanTransition(from, to State) bool {
	targets, ok := validTransitions[from]
	if !ok {
		return false
	}
	for _, t := range targets {
		if t == to {
			return true
		}
	}
	return false
}

// Valid reports whether s is one of the known states.
func (s State) Valid() bool {
	_, ok := validTransitions[s]
	return ok
}

// IsTerminal reports whether no transition leaves s.
func (s State) IsTerminal() bool {
	return s == StateCancelled || s == StateCompleted
}

// String returns the wire value of the state.
func (s State) String() string {
	return string(s)
}

// ParseState converts a case-insensitive state name into a State.
func ParseState(name string) (State, error) {
	s := State(strings.ToLower(strings.TrimSpace(name)))
	if !s.Valid() {
		return "", fmt.Errorf("unknown planning state %q", name)
	}
	return s, nil
}
