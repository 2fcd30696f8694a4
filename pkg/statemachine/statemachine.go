package statemachine

import (
	"context"
	"fmt"
)

// Guard reports whether a transition may proceed.
type Guard[S, E comparable, D any] func(ctx context.Context, from S, event E, data D) bool

// Action runs a side effect while transitioning.
type Action[S, E comparable, D any] func(ctx context.Context, from, to S, event E, data D) error

// Transition is a single edge of the table.
type Transition[S, E comparable, D any] struct {
	From    S
	To      S
	Event   E
	Guards  []Guard[S, E, D]  // all must pass
	Actions []Action[S, E, D] // executed in order
}

// Table is an immutable set of transitions keyed by source state and event.
type Table[S, E comparable, D any] struct {
	transitions map[S]map[E][]Transition[S, E, D]
}

// Option configures a Table during construction.
type Option[S, E comparable, D any] func(*Table[S, E, D]) error

// New builds a table from options.
func New[S, E comparable, D any](opts ...Option[S, E, D]) (*Table[S, E, D], error) {
	t := &Table[S, E, D]{transitions: make(map[S]map[E][]Transition[S, E, D])}
	for _, opt := range opts {
		if err := opt(t); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// MustNew is like New but panics on error. Use for package-level tables.
func MustNew[S, E comparable, D any](opts ...Option[S, E, D]) *Table[S, E, D] {
	t, err := New(opts...)
	if err != nil {
		panic(fmt.Sprintf("failed to create state machine: %v", err))
	}
	return t
}

func (t *Table[S, E, D]) add(tr Transition[S, E, D]) {
	if _, ok := t.transitions[tr.From]; !ok {
		t.transitions[tr.From] = make(map[E][]Transition[S, E, D])
	}
	t.transitions[tr.From][tr.Event] = append(t.transitions[tr.From][tr.Event], tr)
}

// Fire evaluates event against the current state and returns the next state.
// The current state is returned unchanged together with the error on failure.
func (t *Table[S, E, D]) Fire(ctx context.Context, current S, event E, data D) (S, error) {
	tr, err := t.match(ctx, current, event, data)
	if err != nil {
		return current, err
	}
	for _, action := range tr.Actions {
		if err := action(ctx, current, tr.To, event, data); err != nil {
			return current, fmt.Errorf("action failed: %w", err)
		}
	}
	return tr.To, nil
}

// CanFire reports whether event would be accepted in the current state.
func (t *Table[S, E, D]) CanFire(ctx context.Context, current S, event E, data D) bool {
	_, err := t.match(ctx, current, event, data)
	return err == nil
}

// Events lists the events defined for a state, regardless of guards.
func (t *Table[S, E, D]) Events(current S) []E {
	byEvent := t.transitions[current]
	out := make([]E, 0, len(byEvent))
	for e := range byEvent {
		out = append(out, e)
	}
	return out
}

func (t *Table[S, E, D]) match(ctx context.Context, current S, event E, data D) (*Transition[S, E, D], error) {
	candidates := t.transitions[current][event]
	if len(candidates) == 0 {
		return nil, NewErrNoTransitionAvailable(fmt.Sprint(current), fmt.Sprint(event))
	}
	for i := range candidates {
		if passes(ctx, &candidates[i], current, event, data) {
			return &candidates[i], nil
		}
	}
	return nil, NewErrTransitionRejected(fmt.Sprint(current), fmt.Sprint(event))
}

func passes[S, E comparable, D any](ctx context.Context, tr *Transition[S, E, D], from S, event E, data D) bool {
	for _, g := range tr.Guards {
		if !g(ctx, from, event, data) {
			return false
		}
	}
	return true
}
