package observability

import (
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
)

var (
	observers = map[string]Observer{
		"noop": NoOpObserver{},
		"slog": NewSlogObserver(slog.Default()),
	}
	mutex sync.RWMutex
)

// GetObserver returns a registered observer by name.
// Pre-registered observers: "noop" (NoOpObserver) and "slog" (default logger).
func GetObserver(name string) (Observer, error) {
	mutex.RLock()
	defer mutex.RUnlock()

	obs, exists := observers[name]
	if !exists {
		return nil, fmt.Errorf("unknown observer: %s", name)
	}
	return obs, nil
}

// RegisterObserver adds or replaces a named observer in the global registry.
func RegisterObserver(name string, observer Observer) {
	mutex.Lock()
	defer mutex.Unlock()

	observers[name] = observer
}

// Names lists the registered observer names in sorted order.
func Names() []string {
	mutex.RLock()
	defer mutex.RUnlock()

	return slices.Sorted(maps.Keys(observers))
}

// Resolve looks up every named observer and combines them. Repeated names
// resolve once. A single remaining observer is returned directly; none
// returns NoOpObserver.
func Resolve(names ...string) (Observer, error) {
	resolved := make([]Observer, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		if seen[name] {
			continue
		}
		seen[name] = true

		obs, err := GetObserver(name)
		if err != nil {
			return nil, err
		}
		resolved = append(resolved, obs)
	}

	multi := NewMultiObserver(resolved...)
	switch multi.Len() {
	case 0:
		return NoOpObserver{}, nil
	case 1:
		return multi.observers[0], nil
	default:
		return multi, nil
	}
}
