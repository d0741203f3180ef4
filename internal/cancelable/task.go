// Package cancelable wraps asynchronous work so that a newer request can
// invalidate an older one. Cancellation is logical: the wrapped function
// sees its context canceled but may still run to completion; its result is
// discarded either way.
package cancelable

import (
	"context"
	"errors"
	"sync"

	"github.com/fd1az/dexswap/internal/apperror"
)

var (
	// ErrCanceled is returned by Wait once a task has been canceled.
	ErrCanceled = errors.New("cancelable: task canceled")
	// ErrPending is returned by Result for a task that has not finished.
	ErrPending = errors.New("cancelable: task still pending")
)

func init() {
	apperror.MarkCanceled(ErrCanceled)
}

// IsCanceled reports whether err marks a superseded task.
func IsCanceled(err error) bool {
	return errors.Is(err, ErrCanceled)
}

// Task is a single in-flight call whose outcome can be invalidated.
type Task[T any] struct {
	done   chan struct{}
	cancel context.CancelFunc

	mu       sync.Mutex
	canceled bool
	value    T
	err      error
}

// Start runs fn in its own goroutine and returns the task wrapping it.
// The context handed to fn is canceled by Cancel.
func Start[T any](ctx context.Context, fn func(context.Context) (T, error)) *Task[T] {
	ctx, cancel := context.WithCancel(ctx)
	t := &Task[T]{
		done:   make(chan struct{}),
		cancel: cancel,
	}

	go func() {
		defer cancel()
		v, err := fn(ctx)

		t.mu.Lock()
		t.value, t.err = v, err
		t.mu.Unlock()
		close(t.done)
	}()

	return t
}

// Cancel invalidates the task. It is safe to call more than once and
// after the task finished.
func (t *Task[T]) Cancel() {
	t.mu.Lock()
	t.canceled = true
	t.mu.Unlock()
	t.cancel()
}

// Canceled reports whether Cancel has been called.
func (t *Task[T]) Canceled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.canceled
}

// Done is closed when the wrapped function returns.
func (t *Task[T]) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the wrapped function returns or ctx ends. A canceled
// task always yields ErrCanceled, even when the function already produced
// a value.
func (t *Task[T]) Wait(ctx context.Context) (T, error) {
	var zero T

	select {
	case <-t.done:
	case <-ctx.Done():
		if t.Canceled() {
			return zero, ErrCanceled
		}
		return zero, ctx.Err()
	}

	return t.Result()
}

// Result returns the outcome of a finished task. Before the function
// returns it reports ErrCanceled if canceled, otherwise a zero value and
// ErrPending.
func (t *Task[T]) Result() (T, error) {
	var zero T

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.canceled {
		return zero, ErrCanceled
	}
	select {
	case <-t.done:
		return t.value, t.err
	default:
		return zero, ErrPending
	}
}
