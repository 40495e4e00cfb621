package store

// SubtreeState is the state owned by one subtree. The store creates each
// subtree map once and mutates it in place for its whole lifetime.
type SubtreeState map[string]any

// State maps subtree names to their state.
type State map[string]SubtreeState

// Mutator declares a subtree: how to build its initial state and which
// actions operate on it.
type Mutator struct {
	InitialState func() SubtreeState
	Actions      map[string]ActionFunc
}

// Mutators maps subtree names to their Mutator.
type Mutators map[string]Mutator

// Listener observes every applied change. It receives the full state and the
// result that triggered the change. The state is only valid for the duration
// of the call; use Store.Snapshot to keep a copy. Returning an error stops
// the remaining listeners.
//
// Listeners run while the store holds its turn lock, which is not reentrant.
// Calling Dispatch, Subscribe or Snapshot from inside a listener deadlocks.
// Start that work on another goroutine, or from a done callback, which runs
// after the lock is released.
type Listener func(state State, result ActionResult) error

// Dispatch runs a bound action with param. done, when non-nil, fires exactly
// once when the chain reaches a result without Async.
type Dispatch func(param any, done func()) error

// Bindings holds the Dispatch for every subtree and action, built once at
// construction.
type Bindings map[string]map[string]Dispatch
