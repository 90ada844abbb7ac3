package ble

import (
	"context"
	"sync"
	"time"
)

// future is a single-assignment result cell. The first resolve or fail wins;
// later calls are ignored.
type future[T any] struct {
	once sync.Once
	done chan struct{}
	val  T
	err  error
}

func newFuture[T any]() *future[T] {
	return &future[T]{done: make(chan struct{})}
}

// complete stores the result and wakes the waiter. Reports whether this call
// was the one that completed the future.
func (f *future[T]) complete(val T, err error) bool {
	completed := false
	f.once.Do(func() {
		f.val, f.err = val, err
		close(f.done)
		completed = true
	})
	return completed
}

func (f *future[T]) resolve(val T) bool {
	return f.complete(val, nil)
}

func (f *future[T]) fail(err error) bool {
	var zero T
	return f.complete(zero, err)
}

// wait blocks until the future completes, timeout elapses (ErrTimeout) or
// ctx is done.
func (f *future[T]) wait(ctx context.Context, timeout time.Duration) (T, error) {
	var zero T
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-f.done:
		return f.val, f.err
	case <-timer.C:
		return zero, ErrTimeout
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}
