package observability

import "context"

// MultiObserver fans out events to multiple observers in order.
type MultiObserver struct {
	observers []Observer
}

// NewMultiObserver combines observers into one. Nil and NoOpObserver entries
// are dropped and nested MultiObservers are flattened, so a store configured
// with "noop" alongside real sinks pays nothing for it.
func NewMultiObserver(observers ...Observer) *MultiObserver {
	m := &MultiObserver{observers: make([]Observer, 0, len(observers))}
	for _, obs := range observers {
		m.add(obs)
	}
	return m
}

func (m *MultiObserver) add(obs Observer) {
	switch o := obs.(type) {
	case nil, NoOpObserver, *NoOpObserver:
	case *MultiObserver:
		if o != nil {
			m.observers = append(m.observers, o.observers...)
		}
	default:
		m.observers = append(m.observers, obs)
	}
}

// Len reports how many observers receive events.
func (m *MultiObserver) Len() int {
	return len(m.observers)
}

// OnEvent forwards event to every observer in order.
func (m *MultiObserver) OnEvent(ctx context.Context, event Event) {
	for _, obs := range m.observers {
		obs.OnEvent(ctx, event)
	}
}
