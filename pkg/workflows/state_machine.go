package workflows

import (
	"errors"
	"fmt"
	"sort"
)

// ErrInvalidTransition is returned when an event is not allowed from the
// current state.
var ErrInvalidTransition = errors.New("invalid status transition")

// Transition is one whitelisted edge: firing Event while in From moves to To.
type Transition struct {
	From  string
	Event string
	To    string
}

// StateMachine enforces status transitions against a fixed whitelist
type StateMachine struct {
	allowedTransitions map[string]map[string]string
	terminal           map[string]bool
}

// NewStateMachine creates a new state machine with allowed transitions.
// States named in terminal accept no events at all.
func NewStateMachine(transitions []Transition, terminal ...string) *StateMachine {
	sm := &StateMachine{
		allowedTransitions: make(map[string]map[string]string),
		terminal:           make(map[string]bool, len(terminal)),
	}
	for _, t := range transitions {
		if sm.allowedTransitions[t.From] == nil {
			sm.allowedTransitions[t.From] = make(map[string]string)
		}
		sm.allowedTransitions[t.From][t.Event] = t.To
	}
	for _, s := range terminal {
		sm.terminal[s] = true
	}
	return sm
}

// Fire returns the state reached by applying event in state from.
func (sm *StateMachine) Fire(from, event string) (string, error) {
	if sm.terminal[from] {
		return "", fmt.Errorf("%w: %s is terminal", ErrInvalidTransition, from)
	}
	to, ok := sm.allowedTransitions[from][event]
	if !ok {
		return "", fmt.Errorf("%w: cannot %s from %s", ErrInvalidTransition, event, from)
	}
	return to, nil
}

// CanTransition checks if a status transition is allowed by any event
func (sm *StateMachine) CanTransition(from, to string) bool {
	if sm.terminal[from] {
		return false
	}
	for _, allowedTo := range sm.allowedTransitions[from] {
		if allowedTo == to {
			return true
		}
	}
	return false
}

// GetAllowedEvents returns the events accepted in the given state, sorted.
func (sm *StateMachine) GetAllowedEvents(from string) []string {
	if sm.terminal[from] {
		return []string{}
	}
	events := make([]string, 0, len(sm.allowedTransitions[from]))
	for event := range sm.allowedTransitions[from] {
		events = append(events, event)
	}
	sort.Strings(events)
	return events
}

// IsTerminal reports whether the state accepts no further events.
func (sm *StateMachine) IsTerminal(state string) bool {
	return sm.terminal[state]
}
