// Package future provides a single-assignment Promise/Future pair. A
// Promise is fulfilled at most once; every Future reading from it observes
// that one value.
package future

import (
	"context"
	"sync"
)

type shared[T any] struct {
	once  sync.Once
	done  chan struct{}
	value T
}

// Promise is the write side of a future value.
type Promise[T any] struct {
	s *shared[T]
}

// Future is the read side of a future value.
type Future[T any] struct {
	s *shared[T]
}

// Create returns a connected Promise/Future pair.
func Create[T any]() (Promise[T], Future[T]) {
	s := &shared[T]{done: make(chan struct{})}
	return Promise[T]{s: s}, Future[T]{s: s}
}

// Immediate returns a Future that is already resolved to value.
func Immediate[T any](value T) Future[T] {
	promise, future := Create[T]()
	promise.Fulfill(value)
	return future
}

// Fulfill resolves the promise. Only the first call has an effect; it
// reports whether this call was the one that resolved the promise.
func (p Promise[T]) Fulfill(value T) bool {
	fulfilled := false
	p.s.once.Do(func() {
		p.s.value = value
		close(p.s.done)
		fulfilled = true
	})
	return fulfilled
}

// Done returns a channel that is closed once the value is available.
func (f Future[T]) Done() <-chan struct{} {
	return f.s.done
}

// Await blocks until the value is available and returns it.
func (f Future[T]) Await() T {
	<-f.s.done
	return f.s.value
}

// AwaitContext waits for the value or for ctx to end, whichever comes
// first. Abandoning the wait leaves the future untouched.
func (f Future[T]) AwaitContext(ctx context.Context) (T, error) {
	select {
	case <-f.s.done:
		return f.s.value, nil
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Then returns a Future resolving to fn applied to the value of f. fn runs
// on its own goroutine once f is resolved, so Then never blocks the caller.
func Then[A, B any](f Future[A], fn func(A) B) Future[B] {
	promise, next := Create[B]()
	go func() {
		promise.Fulfill(fn(f.Await()))
	}()
	return next
}
