package statemachine

// TransitionOption configures a single transition.
type TransitionOption[S, E comparable, D any] func(*Transition[S, E, D])

// WithTransition adds an edge from -> to triggered by event.
func WithTransition[S, E comparable, D any](from, to S, event E, opts ...TransitionOption[S, E, D]) Option[S, E, D] {
	return func(t *Table[S, E, D]) error {
		tr := Transition[S, E, D]{From: from, To: to, Event: event}
		for _, opt := range opts {
			opt(&tr)
		}
		t.add(tr)
		return nil
	}
}

// WithGuard attaches a guard; nil guards are ignored.
func WithGuard[S, E comparable, D any](g Guard[S, E, D]) TransitionOption[S, E, D] {
	return func(tr *Transition[S, E, D]) {
		if g != nil {
			tr.Guards = append(tr.Guards, g)
		}
	}
}

// WithAction attaches an action; nil actions are ignored.
func WithAction[S, E comparable, D any](a Action[S, E, D]) TransitionOption[S, E, D] {
	return func(tr *Transition[S, E, D]) {
		if a != nil {
			tr.Actions = append(tr.Actions, a)
		}
	}
}
