package store

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownSubtree is returned by Dispatch for a subtree with no Mutator.
	ErrUnknownSubtree = errors.New("unknown subtree")

	// ErrUnknownAction is returned by Dispatch for an action the subtree does not declare.
	ErrUnknownAction = errors.New("unknown action")

	// ErrNilInitialState is returned by New when a Mutator has no InitialState.
	ErrNilInitialState = errors.New("mutator has no initial state")

	// ErrNilAction is returned by New when an action function is nil.
	ErrNilAction = errors.New("action function is nil")

	// ErrIncompleteAsync reports an Async missing its side effect or a handler.
	ErrIncompleteAsync = errors.New("async requires side effect, success and failure")

	// ErrNilOutcome reports a side effect that returned no future.
	ErrNilOutcome = errors.New("side effect returned nil outcome")
)

// ActionError wraps an error returned by an action function during dispatch.
type ActionError struct {
	Subtree string
	Action  string
	Err     error
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("action %s.%s failed: %v", e.Subtree, e.Action, e.Err)
}

func (e *ActionError) Unwrap() error {
	return e.Err
}

// ListenerError wraps an error returned by a listener. Index is the
// listener's position in subscription order.
type ListenerError struct {
	Index int
	Err   error
}

func (e *ListenerError) Error() string {
	return fmt.Sprintf("listener %d failed: %v", e.Index, e.Err)
}

func (e *ListenerError) Unwrap() error {
	return e.Err
}

// ContinuationError is a failure raised after a side effect settled: by the
// Success or Failure handler, by processing its result, or by the done
// callback. These are never returned to a caller; the store escapes them.
type ContinuationError struct {
	ChainID string
	Subtree string
	Action  string
	Branch  string
	Err     error
}

func (e *ContinuationError) Error() string {
	return fmt.Sprintf("continuation %s of %s.%s (chain %s) failed: %v",
		e.Branch, e.Subtree, e.Action, e.ChainID, e.Err)
}

func (e *ContinuationError) Unwrap() error {
	return e.Err
}
