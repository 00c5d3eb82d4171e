// Package task provides a cancellable repeating task driven by a clockz.Clock.
package task

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/zoobzio/clockz"
)

// ErrAlreadyStarted is returned when Start is called twice.
var ErrAlreadyStarted = errors.New("task already started")

// StopReason explains why a Repeating task ended.
type StopReason string

const (
	StopNone      StopReason = ""
	StopCompleted StopReason = "completed"
	StopExhausted StopReason = "exhausted"
	StopCancelled StopReason = "cancelled"
)

// Func is the tick body. tick starts at 1. Returning true ends the task.
type Func func(ctx context.Context, tick int) (done bool)

// Option customizes a Repeating task.
type Option func(*Repeating)

// WithMaxTicks caps the number of ticks; zero means unbounded.
func WithMaxTicks(n int) Option {
	return func(r *Repeating) {
		if n >= 0 {
			r.maxTicks = n
		}
	}
}

// WithClock swaps the time source; tests pass a clockz.FakeClock.
func WithClock(clock clockz.Clock) Option {
	return func(r *Repeating) {
		if clock != nil {
			r.clock = clock
		}
	}
}

// WithOnExhausted runs fn inside the task goroutine when the tick cap is hit.
func WithOnExhausted(fn func(ctx context.Context)) Option {
	return func(r *Repeating) {
		r.onExhausted = fn
	}
}

// Repeating runs a Func on a fixed interval. Tick bodies execute sequentially on a
// single goroutine, so they never overlap.
type Repeating struct {
	interval    time.Duration
	maxTicks    int
	fn          Func
	onExhausted func(ctx context.Context)
	clock       clockz.Clock

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	done    chan struct{}
	reason  StopReason
	ticks   int
}

// NewRepeating builds a task. It does nothing until Start.
func NewRepeating(interval time.Duration, fn Func, opts ...Option) *Repeating {
	r := &Repeating{
		interval: interval,
		fn:       fn,
		clock:    clockz.RealClock,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start launches the loop. The task stops when fn returns true, the tick cap is
// reached, Cancel is called, or ctx is done.
func (r *Repeating) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if r.fn == nil {
		return errors.New("task func required")
	}
	if r.interval <= 0 {
		return errors.New("task interval must be positive")
	}

	r.mu.Lock()
	if r.started {
		r.mu.Unlock()
		return ErrAlreadyStarted
	}
	r.started = true
	runCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	ticker := r.clock.NewTicker(r.interval)
	r.mu.Unlock()

	go r.loop(runCtx, ticker)
	return nil
}

func (r *Repeating) loop(ctx context.Context, ticker clockz.Ticker) {
	defer close(r.done)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.finish(StopCancelled)
			return
		case <-ticker.C():
			if ctx.Err() != nil {
				r.finish(StopCancelled)
				return
			}
			tick := r.incr()
			if r.fn(ctx, tick) {
				r.finish(StopCompleted)
				return
			}
			if r.maxTicks > 0 && tick >= r.maxTicks {
				if r.onExhausted != nil {
					r.onExhausted(ctx)
				}
				r.finish(StopExhausted)
				return
			}
		}
	}
}

func (r *Repeating) incr() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ticks++
	return r.ticks
}

func (r *Repeating) finish(reason StopReason) {
	r.mu.Lock()
	r.reason = reason
	cancel := r.cancel
	r.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Cancel stops the task without running the exhausted hook. Safe to call repeatedly
// and before Start.
func (r *Repeating) Cancel() {
	r.mu.Lock()
	cancel := r.cancel
	started := r.started
	if !started {
		r.started = true
		r.reason = StopCancelled
		close(r.done)
	}
	r.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Done is closed after the loop exits.
func (r *Repeating) Done() <-chan struct{} {
	return r.done
}

// Reason reports why the task stopped; StopNone while still running.
func (r *Repeating) Reason() StopReason {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reason
}

// Ticks returns the number of tick bodies started so far.
func (r *Repeating) Ticks() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ticks
}
