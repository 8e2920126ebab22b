package workflow

import (
	"context"
	"fmt"
	"sort"
)

// StateMachine tracks the state of one approval instance and applies triggers
// against a transition table produced by a StateMachineBuilder
type StateMachine interface {
	State() State

	// CanFire reports whether a transition is configured for the trigger; guards are not evaluated
	CanFire(trigger Trigger) bool

	// Fire moves to the target state of the first transition whose guard passes.
	// An unconfigured trigger is ErrInvalidTransition, all guards failing is ErrGuardFailed.
	Fire(ctx context.Context, trigger Trigger) error

	// PermittedTriggers lists the configured triggers of the current state, sorted
	PermittedTriggers() []Trigger
}

type stateMachine struct {
	currentState State
	table        transitionTable
}

func (m *stateMachine) State() State {
	return m.currentState
}

func (m *stateMachine) CanFire(trigger Trigger) bool {
	return len(m.table[m.currentState][trigger]) > 0
}

func (m *stateMachine) Fire(ctx context.Context, trigger Trigger) error {
	if m.currentState.IsTerminal() {
		return fmt.Errorf("%w: %s is terminal, cannot fire %s", ErrInvalidTransition, m.currentState, trigger)
	}
	transitions := m.table[m.currentState][trigger]
	if len(transitions) == 0 {
		return fmt.Errorf("%w: cannot fire trigger %s from state %s", ErrInvalidTransition, trigger, m.currentState)
	}

	for _, t := range transitions {
		if t.guard == nil || t.guard(ctx) {
			m.currentState = t.toState
			return nil
		}
	}

	return fmt.Errorf("%w: trigger %s from state %s", ErrGuardFailed, trigger, m.currentState)
}

func (m *stateMachine) PermittedTriggers() []Trigger {
	triggers := make([]Trigger, 0, len(m.table[m.currentState]))
	for trigger, transitions := range m.table[m.currentState] {
		if len(transitions) > 0 {
			triggers = append(triggers, trigger)
		}
	}
	sort.Slice(triggers, func(i, j int) bool { return triggers[i] < triggers[j] })
	return triggers
}
