// Package statemachine provides a small, type-safe transition table for
// records whose state is persisted elsewhere (database rows, API payloads).
//
// Unlike an in-memory FSM that owns its current state, a Table is immutable
// after construction and stateless: callers pass the current state in and get
// the next state back. This makes a single Table safe to share across
// goroutines and to apply to any number of records.
//
// # Usage
//
//	type Status string
//	type Event string
//
//	table := statemachine.MustNew[Status, Event, *Order](
//	    statemachine.WithTransition[Status, Event, *Order]("pending", "paid", "pay"),
//	    statemachine.WithTransition[Status, Event, *Order]("pending", "rejected", "reject"),
//	)
//
//	next, err := table.Fire(ctx, order.Status, "pay", order)
//
// # Guards and Actions
//
// Guards veto a transition based on runtime data. When several transitions
// share the same source state and event, the first one whose guards all pass
// wins. Actions run in order after the guards and before the new state is
// returned; an action error aborts the transition.
//
// # Error Handling
//
//	if statemachine.IsNoTransitionAvailableError(err) { /* event not defined for state */ }
//	if statemachine.IsTransitionRejectedError(err)   { /* guards vetoed */ }
package statemachine
