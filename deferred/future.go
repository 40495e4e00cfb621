// Package deferred provides a settle-once outcome with two resolution
// channels, a value or an error, and continuations that always run on a
// later scheduling turn.
//
// Side effects hand a Future back to whoever started them and settle it
// from any goroutine:
//
//	f := deferred.Go(func() (any, error) {
//	    return client.FetchUser(ctx, id)
//	})
//	f.Then(
//	    func(v any) { fmt.Println("user", v) },
//	    func(err error) { fmt.Println("failed", err) },
//	)
package deferred

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
)

// ErrRejected is the rejection reason recorded when Reject is given a nil error.
var ErrRejected = errors.New("future rejected")

// PanicError carries a value recovered from a panic together with the stack
// at the point of recovery.
type PanicError struct {
	Value any
	Stack []byte
}

// Recovered wraps a recovered panic value. Call it from the deferred
// function that recovered so the captured stack includes the panic site.
func Recovered(value any) *PanicError {
	return &PanicError{Value: value, Stack: debug.Stack()}
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Unwrap exposes the panic value when it was itself an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

type continuation[T any] struct {
	onValue func(T)
	onError func(error)
}

// Future is an outcome that settles exactly once, with either a value or an
// error. The zero value is not usable; create futures with New, Go, Resolved
// or Rejected.
type Future[T any] struct {
	mu            sync.Mutex
	settled       bool
	value         T
	err           error
	done          chan struct{}
	continuations []continuation[T]
}

// New creates an unsettled Future.
func New[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// Resolved creates a Future already settled with value.
func Resolved[T any](value T) *Future[T] {
	f := New[T]()
	f.Resolve(value)
	return f
}

// Rejected creates a Future already settled with err.
func Rejected[T any](err error) *Future[T] {
	f := New[T]()
	f.Reject(err)
	return f
}

// Go runs fn on its own goroutine and settles the returned Future with its
// result. A panic inside fn rejects the Future with a *PanicError.
func Go[T any](fn func() (T, error)) *Future[T] {
	f := New[T]()
	go func() {
		defer func() {
			if r := recover(); r != nil {
				f.Reject(Recovered(r))
			}
		}()

		value, err := fn()
		if err != nil {
			f.Reject(err)
			return
		}
		f.Resolve(value)
	}()
	return f
}

// Resolve settles the Future with value. It reports false if the Future had
// already settled, in which case value is discarded.
func (f *Future[T]) Resolve(value T) bool {
	return f.settle(value, nil)
}

// Reject settles the Future with err. It reports false if the Future had
// already settled.
func (f *Future[T]) Reject(err error) bool {
	if err == nil {
		err = ErrRejected
	}
	var zero T
	return f.settle(zero, err)
}

func (f *Future[T]) settle(value T, err error) bool {
	f.mu.Lock()
	if f.settled {
		f.mu.Unlock()
		return false
	}
	f.settled = true
	f.value = value
	f.err = err
	pending := f.continuations
	f.continuations = nil
	close(f.done)
	f.mu.Unlock()

	for _, c := range pending {
		f.deliver(c)
	}
	return true
}

// Then attaches a continuation pair. Once the Future settles exactly one of
// onValue or onError runs, on a goroutine of its own, never on the stack
// that called Then or settled the Future. Either callback may be nil.
func (f *Future[T]) Then(onValue func(T), onError func(error)) {
	c := continuation[T]{onValue: onValue, onError: onError}

	f.mu.Lock()
	if !f.settled {
		f.continuations = append(f.continuations, c)
		f.mu.Unlock()
		return
	}
	f.mu.Unlock()

	f.deliver(c)
}

// deliver must only be called after settlement; value and err are immutable
// from then on.
func (f *Future[T]) deliver(c continuation[T]) {
	value, err := f.value, f.err
	go func() {
		if err != nil {
			if c.onError != nil {
				c.onError(err)
			}
			return
		}
		if c.onValue != nil {
			c.onValue(value)
		}
	}()
}

// Done returns a channel that is closed once the Future settles.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Settled reports whether the Future has a value or an error.
func (f *Future[T]) Settled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.settled
}

// Await blocks until the Future settles or ctx is done.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
