package store

import "github.com/tailored-agentic-units/statebox/observability"

// Store event types.
const (
	EventStoreCreate        observability.EventType = "store.create"
	EventDispatch           observability.EventType = "store.dispatch"
	EventChangesApply       observability.EventType = "store.changes.apply"
	EventAsyncStart         observability.EventType = "store.async.start"
	EventAsyncSettle        observability.EventType = "store.async.settle"
	EventChainComplete      observability.EventType = "store.chain.complete"
	EventContinuationEscape observability.EventType = "store.continuation.escape"
)

// Continuation branches reported in events and ContinuationError.
const (
	BranchSuccess = "success"
	BranchFailure = "failure"
)
