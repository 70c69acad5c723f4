package bridge

import (
	"context"
	"fmt"
	"sync"
)

// Future is the single-shot result of a native call. It is completed on the
// main thread, so OnComplete handlers run during Pump alongside every other
// callback.
type Future[T any] struct {
	mu        sync.Mutex
	done      chan struct{}
	completed bool
	value     T
	err       error
	handlers  []func(T, error)

	// cancel withdraws the pending call; post completes on the main thread.
	cancel func() bool
	post   func(func()) error

	// abandoned is closed when nothing will pump queued completions.
	abandoned <-chan struct{}
}

func newFuture[T any](post func(func()) error) *Future[T] {
	return &Future[T]{done: make(chan struct{}), post: post}
}

// failedFuture returns a Future that is already completed with err.
func failedFuture[T any](err error) *Future[T] {
	f := newFuture[T](nil)
	var zero T
	f.complete(zero, err)
	return f
}

func (f *Future[T]) setCancel(cancel func() bool) {
	f.mu.Lock()
	f.cancel = cancel
	f.mu.Unlock()
}

// complete settles the future. Only the first call has any effect.
func (f *Future[T]) complete(v T, err error) bool {
	f.mu.Lock()
	if f.completed {
		f.mu.Unlock()
		return false
	}
	f.completed = true
	f.value, f.err = v, err
	handlers := f.handlers
	f.handlers = nil
	f.mu.Unlock()

	close(f.done)
	for _, h := range handlers {
		h(v, err)
	}
	return true
}

// OnComplete registers fn to run when the future completes. If it already
// has, fn runs immediately on the calling goroutine.
func (f *Future[T]) OnComplete(fn func(T, error)) {
	if fn == nil {
		return
	}
	f.mu.Lock()
	if !f.completed {
		f.handlers = append(f.handlers, fn)
		f.mu.Unlock()
		return
	}
	v, err := f.value, f.err
	f.mu.Unlock()
	fn(v, err)
}

// Done is closed once the future has completed.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

func (f *Future[T]) outcome() (T, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.value, f.err
}

// Await blocks until the future completes or ctx ends. When ctx ends while
// the call is still pending, the call is cancelled, a late callback is
// dropped and the future completes with ErrCancelled. When the response was
// already taken, Await waits for its queued completion instead, so Await and
// OnComplete always report the same outcome. Await must not be called from
// the main thread: completion needs Pump to run.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.outcome()
	case <-ctx.Done():
	}

	f.mu.Lock()
	cancel, post, abandoned := f.cancel, f.post, f.abandoned
	f.mu.Unlock()

	var zero T
	err := fmt.Errorf("%w: %w", ErrCancelled, ctx.Err())
	if cancel == nil {
		return zero, err
	}
	if cancel() {
		if post == nil || post(func() { f.complete(zero, err) }) != nil {
			f.complete(zero, err)
		}
		return zero, err
	}

	select {
	case <-f.done:
	case <-abandoned:
		f.complete(zero, err)
	}
	return f.outcome()
}
