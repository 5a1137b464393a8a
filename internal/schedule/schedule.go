// Package schedule runs cancellable periodic tasks.
package schedule

import (
	"context"
	"sync"
	"time"
)

// Handle controls a running periodic task
type Handle struct {
	cancel context.CancelFunc
	done   chan struct{}

	mu      sync.Mutex
	stopped bool
}

type options struct {
	immediate bool
}

// Option configures a periodic task
type Option func(*options)

// Immediate runs the task once right away, before the first tick
func Immediate() Option {
	return func(o *options) {
		o.immediate = true
	}
}

// Every calls fn every interval until the handle is cancelled or ctx is done.
// Ticks are never queued: if fn is still running when a tick fires, that tick is dropped.
// fn receives a context that is cancelled together with the handle.
func Every(ctx context.Context, interval time.Duration, fn func(ctx context.Context), opts ...Option) *Handle {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	runCtx, cancel := context.WithCancel(ctx)
	h := &Handle{
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go h.run(runCtx, interval, fn, o)
	return h
}

// run is the main loop of the task
func (h *Handle) run(ctx context.Context, interval time.Duration, fn func(ctx context.Context), o options) {
	defer close(h.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	if o.immediate && h.active(ctx) {
		fn(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !h.active(ctx) {
				return
			}
			fn(ctx)
		}
	}
}

func (h *Handle) active(ctx context.Context) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return !h.stopped && ctx.Err() == nil
}

// Cancel stops the task and prevents any further invocation of fn.
// An invocation that has already begun runs to completion with a cancelled context.
// Safe to call any number of times, from any goroutine, including from inside fn.
func (h *Handle) Cancel() {
	if h == nil {
		return
	}
	h.mu.Lock()
	h.stopped = true
	h.mu.Unlock()
	h.cancel()
}

// Done is closed once the task loop has exited
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Stopped reports whether the task was cancelled or its parent context ended
func (h *Handle) Stopped() bool {
	select {
	case <-h.done:
		return true
	default:
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stopped
}
