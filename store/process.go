package store

import (
	"context"
	"sync"
	"time"

	"github.com/tailored-agentic-units/statebox/deferred"
	"github.com/tailored-agentic-units/statebox/observability"
)

// chain is one dispatch and every continuation that follows from it.
type chain struct {
	id      string
	subtree string
	action  string
	done    func()
	once    sync.Once
}

// process applies result to the chain's subtree. It must run inside a turn.
// terminal reports that result has no Async and the chain is over; the
// caller completes the chain once the turn lock is released.
func (s *Store) process(c *chain, result ActionResult) (terminal bool, err error) {
	if result.Changes != nil {
		st := s.state[c.subtree]
		for _, change := range result.Changes {
			st[change.Property] = change.Value
		}

		s.emit(EventChangesApply, observability.LevelVerbose, "store.process", c, map[string]any{
			"changes":   len(result.Changes),
			"listeners": len(s.listeners),
		})

		for i, listener := range s.listeners {
			if err := listener(s.state, result); err != nil {
				return false, &ListenerError{Index: i, Err: err}
			}
		}
	}

	if result.Async == nil {
		return true, nil
	}

	async := result.Async
	if async.SideEffect == nil || async.Success == nil || async.Failure == nil {
		return false, ErrIncompleteAsync
	}

	outcome := async.SideEffect()
	if outcome == nil {
		return false, ErrNilOutcome
	}

	s.inflight.add(1)
	s.emit(EventAsyncStart, observability.LevelVerbose, "store.process", c, nil)

	outcome.Then(
		func(value any) {
			s.settle(c, BranchSuccess, func(st SubtreeState) (ActionResult, error) {
				return async.Success(st, value)
			})
		},
		func(err error) {
			s.settle(c, BranchFailure, func(st SubtreeState) (ActionResult, error) {
				return async.Failure(st, err)
			})
		},
	)

	return false, nil
}

// settle runs on the goroutine the outcome delivers its continuation on.
// Whatever goes wrong from here on has no caller to return to and is handed
// to the escape handler once the turn is over.
func (s *Store) settle(c *chain, branch string, next func(SubtreeState) (ActionResult, error)) {
	defer s.inflight.add(-1)

	terminal, err := s.resume(c, branch, next)
	if err == nil && terminal {
		err = s.completeRecovering(c)
	}
	if err != nil {
		s.escapeError(&ContinuationError{
			ChainID: c.id,
			Subtree: c.subtree,
			Action:  c.action,
			Branch:  branch,
			Err:     err,
		})
	}
}

func (s *Store) resume(c *chain, branch string, next func(SubtreeState) (ActionResult, error)) (terminal bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			terminal, err = false, deferred.Recovered(r)
		}
	}()

	s.emit(EventAsyncSettle, observability.LevelVerbose, "store.settle", c, map[string]any{
		"branch": branch,
	})

	result, err := next(s.state[c.subtree])
	if err != nil {
		return false, err
	}
	return s.process(c, result)
}

func (s *Store) complete(c *chain) {
	c.once.Do(func() {
		s.mu.Lock()
		s.emit(EventChainComplete, observability.LevelVerbose, "store.complete", c, nil)
		s.mu.Unlock()

		if c.done != nil {
			c.done()
		}
	})
}

func (s *Store) completeRecovering(c *chain) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = deferred.Recovered(r)
		}
	}()
	s.complete(c)
	return nil
}

func (s *Store) escapeError(err *ContinuationError) {
	s.mu.Lock()
	s.observer.OnEvent(context.Background(), observability.Event{
		Type:      EventContinuationEscape,
		Level:     observability.LevelError,
		Timestamp: time.Now(),
		Source:    "store.settle",
		Data: map[string]any{
			"chain_id": err.ChainID,
			"subtree":  err.Subtree,
			"action":   err.Action,
			"branch":   err.Branch,
			"error":    err.Err.Error(),
		},
	})
	s.mu.Unlock()

	s.escape(err)
}
