package store

import (
	"maps"
	"slices"

	"github.com/tailored-agentic-units/statebox/deferred"
)

// Change assigns Value to Property in a subtree's state.
type Change struct {
	Property string
	Value    any
}

// Changes is an ordered list of assignments applied shallowly to a subtree.
// Assignments run in slice order, so a later duplicate property wins.
//
// A nil Changes means "no changes"; an empty non-nil Changes is still
// present and notifies listeners.
type Changes []Change

// Set appends an assignment and returns the extended list.
//
//	changes := store.Changes{}.Set("loading", false).Set("user", user)
func (c Changes) Set(property string, value any) Changes {
	return append(c, Change{Property: property, Value: value})
}

// Map collapses the list into the final value per property.
func (c Changes) Map() map[string]any {
	m := make(map[string]any, len(c))
	for _, change := range c {
		m[change.Property] = change.Value
	}
	return m
}

// ChangesFrom builds Changes from a map, ordered by property name.
// A nil map yields nil Changes.
func ChangesFrom(m map[string]any) Changes {
	if m == nil {
		return nil
	}
	changes := make(Changes, 0, len(m))
	for _, k := range slices.Sorted(maps.Keys(m)) {
		changes = append(changes, Change{Property: k, Value: m[k]})
	}
	return changes
}

// ActionFunc computes an ActionResult from the current subtree state and a
// caller-supplied parameter. It must not block or mutate state: asynchrony
// is described through ActionResult.Async.
type ActionFunc func(state SubtreeState, param any) (ActionResult, error)

// SuccessFunc computes the next result from the subtree state at settlement
// time and the side effect's value.
type SuccessFunc func(state SubtreeState, value any) (ActionResult, error)

// FailureFunc computes the next result from the subtree state at settlement
// time and the side effect's error.
type FailureFunc func(state SubtreeState, err error) (ActionResult, error)

// SideEffect starts asynchronous work and returns its outcome. It is called
// while the store processes a result and must return promptly.
type SideEffect func() *deferred.Future[any]

// Async describes a continuation: run SideEffect, then process whichever of
// Success or Failure matches its outcome.
type Async struct {
	SideEffect SideEffect
	Success    SuccessFunc
	Failure    FailureFunc
}

// ActionResult is what an action did: synchronous Changes and an optional
// Async continuation. A result without Async ends its dispatch chain.
type ActionResult struct {
	Changes Changes
	Async   *Async
}

// Terminal reports whether processing this result ends the chain.
func (r ActionResult) Terminal() bool {
	return r.Async == nil
}
