package observability

import "context"

// NoOpObserver drops every event. It is what Resolve returns when no
// observer names are configured, and the fallback for stores and services
// built without one.
type NoOpObserver struct{}

// OnEvent discards event.
func (NoOpObserver) OnEvent(context.Context, Event) {}
