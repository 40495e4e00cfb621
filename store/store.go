// Package store is an in-process state container. Named subtrees of state
// are bound to named actions; dispatching an action applies the changes it
// returns, notifies listeners, and, when the result carries an Async
// continuation, runs the side effect and feeds its outcome back through the
// same pipeline until a result without Async ends the chain.
//
//	s, err := store.New(nil, store.Mutators{
//	    "counter": {
//	        InitialState: func() store.SubtreeState { return store.SubtreeState{"value": 0} },
//	        Actions: map[string]store.ActionFunc{
//	            "increment": func(st store.SubtreeState, _ any) (store.ActionResult, error) {
//	                return store.ActionResult{
//	                    Changes: store.Changes{}.Set("value", st["value"].(int)+1),
//	                }, nil
//	            },
//	        },
//	    },
//	})
//	err = s.Dispatch("counter", "increment", nil, nil)
//
// Every dispatch and every continuation runs as one turn under the store's
// lock, so changes and listener notifications of a turn are atomic with
// respect to other turns. Chains started independently interleave in the
// order their side effects settle. Actions, handlers and listeners run
// inside a turn and must not dispatch, subscribe or snapshot synchronously;
// the done callback runs after the turn and may.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tailored-agentic-units/statebox/observability"
)

// Option configures a Store after config-driven initialization.
type Option func(*Store)

// WithObserver overrides the config-resolved observer.
func WithObserver(o observability.Observer) Option {
	return func(s *Store) { s.observer = o }
}

// WithEscapeHandler overrides the config-selected escape handler.
func WithEscapeHandler(fn EscapeFunc) Option {
	return func(s *Store) { s.escape = fn }
}

// WithLogger sets the logger used by the "log" escape mode.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// Store holds the state of every subtree, the bound actions, and the
// listener registry.
type Store struct {
	mu        sync.Mutex
	state     State
	listeners []Listener
	mutate    Bindings

	observer observability.Observer
	escape   EscapeFunc
	logger   *slog.Logger

	inflight inflight
}

// New builds a Store from configuration and the subtree declarations.
// A nil cfg uses DefaultConfig. Subtrees are fixed for the store's lifetime.
func New(cfg *Config, mutators Mutators, opts ...Option) (*Store, error) {
	if cfg == nil {
		defaults := DefaultConfig()
		cfg = &defaults
	}

	observer, err := cfg.observer()
	if err != nil {
		return nil, err
	}

	s := &Store{
		state:    make(State, len(mutators)),
		mutate:   make(Bindings, len(mutators)),
		observer: observer,
		logger:   slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.observer == nil {
		s.observer = observability.NoOpObserver{}
	}
	if s.escape == nil {
		if s.escape, err = cfg.escape(s.logger); err != nil {
			return nil, err
		}
	}

	actions := 0
	for _, subtree := range slices.Sorted(maps.Keys(mutators)) {
		mutator := mutators[subtree]
		if mutator.InitialState == nil {
			return nil, fmt.Errorf("subtree %q: %w", subtree, ErrNilInitialState)
		}

		initial := mutator.InitialState()
		if initial == nil {
			initial = make(SubtreeState)
		}
		s.state[subtree] = initial

		bound := make(map[string]Dispatch, len(mutator.Actions))
		for _, name := range slices.Sorted(maps.Keys(mutator.Actions)) {
			fn := mutator.Actions[name]
			if fn == nil {
				return nil, fmt.Errorf("action %s.%s: %w", subtree, name, ErrNilAction)
			}
			bound[name] = s.bind(subtree, name, fn)
			actions++
		}
		s.mutate[subtree] = bound
	}

	s.observer.OnEvent(context.Background(), observability.Event{
		Type:      EventStoreCreate,
		Level:     observability.LevelInfo,
		Timestamp: time.Now(),
		Source:    "store.New",
		Data: map[string]any{
			"subtrees": len(s.state),
			"actions":  actions,
		},
	})

	return s, nil
}

// Mutate returns the bound actions, indexed by subtree then action name.
// The returned map must not be modified.
func (s *Store) Mutate() Bindings {
	return s.mutate
}

// Dispatch runs the named action of subtree with param. It returns
// ErrUnknownSubtree or ErrUnknownAction for names that were never declared,
// and otherwise whatever the bound Dispatch returns.
func (s *Store) Dispatch(subtree, action string, param any, done func()) error {
	actions, ok := s.mutate[subtree]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSubtree, subtree)
	}
	dispatch, ok := actions[action]
	if !ok {
		return fmt.Errorf("%w: %s.%s", ErrUnknownAction, subtree, action)
	}
	return dispatch(param, done)
}

// Subscribe appends listener to the registry. Registering the same listener
// twice makes it run twice per change. There is no unsubscribe.
func (s *Store) Subscribe(listener Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, listener)
}

// Snapshot returns a copy of the current state. Subtree maps are cloned
// shallowly; values themselves are shared.
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := make(State, len(s.state))
	for subtree, st := range s.state {
		snapshot[subtree] = maps.Clone(st)
	}
	return snapshot
}

// Subtrees lists the declared subtree names in sorted order.
func (s *Store) Subtrees() []string {
	return slices.Sorted(maps.Keys(s.mutate))
}

// Actions lists the actions declared for subtree in sorted order.
func (s *Store) Actions(subtree string) []string {
	return slices.Sorted(maps.Keys(s.mutate[subtree]))
}

// Wait blocks until no side effect started by this store is in flight, or
// until ctx is done. A side effect that never settles keeps Wait blocked.
func (s *Store) Wait(ctx context.Context) error {
	select {
	case <-s.inflight.idleChan():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Store) bind(subtree, action string, fn ActionFunc) Dispatch {
	return func(param any, done func()) error {
		c := &chain{
			id:      uuid.Must(uuid.NewV7()).String(),
			subtree: subtree,
			action:  action,
			done:    done,
		}

		terminal, err := s.turn(func() (bool, error) {
			s.emit(EventDispatch, observability.LevelVerbose, "store.Dispatch", c, nil)

			result, err := fn(s.state[subtree], param)
			if err != nil {
				return false, &ActionError{Subtree: subtree, Action: action, Err: err}
			}
			return s.process(c, result)
		})
		if err != nil {
			return err
		}

		if terminal {
			s.complete(c)
		}
		return nil
	}
}

// turn runs step under the store lock. Panics propagate after the lock is
// released.
func (s *Store) turn(step func() (bool, error)) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return step()
}

func (s *Store) emit(eventType observability.EventType, level observability.Level, source string, c *chain, data map[string]any) {
	if data == nil {
		data = make(map[string]any, 3)
	}
	data["chain_id"] = c.id
	data["subtree"] = c.subtree
	data["action"] = c.action

	s.observer.OnEvent(context.Background(), observability.Event{
		Type:      eventType,
		Level:     level,
		Timestamp: time.Now(),
		Source:    source,
		Data:      data,
	})
}

// inflight counts side effects that have started but whose continuation has
// not finished yet.
type inflight struct {
	mu    sync.Mutex
	count int
	idle  chan struct{}
}

var closedChan = func() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}()

func (f *inflight) add(delta int) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.count == 0 && delta > 0 {
		f.idle = make(chan struct{})
	}
	f.count += delta
	if f.count == 0 && f.idle != nil {
		close(f.idle)
		f.idle = nil
	}
}

func (f *inflight) idleChan() <-chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.count == 0 {
		return closedChan
	}
	return f.idle
}
