package timectrl

import (
	"context"
	"sync"
	"time"
)

// Clock is the time source the P2P engine schedules against. Tests drive a
// TimeController by hand; the daemon lets it follow the wall clock.
type Clock interface {
	// Now returns the current engine time.
	Now() time.Time
}

// Mode describes how the TimeController advances engine time.
type Mode int

const (
	// RealTime snaps engine time to the wall clock on every tick.
	RealTime Mode = iota
	// Accelerated advances engine time by Tick on every tick, regardless
	// of how much wall time elapsed.
	Accelerated
)

// TimeController drives engine time and notifies registered listeners.
// It implements Clock.
type TimeController struct {
	mu        sync.RWMutex
	StartTime time.Time
	Tick      time.Duration
	Mode      Mode

	currentTime time.Time

	listeners []func(time.Time)
}

// NewTimeController constructs a controller.
func NewTimeController(start time.Time, tick time.Duration, mode Mode) *TimeController {
	return &TimeController{
		StartTime:   start,
		Tick:        tick,
		Mode:        mode,
		currentTime: start,
	}
}

// Now returns the current engine time. Implements Clock.
func (tc *TimeController) Now() time.Time {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return tc.currentTime
}

// SetTime moves engine time to t without notifying listeners.
func (tc *TimeController) SetTime(t time.Time) {
	tc.mu.Lock()
	tc.currentTime = t
	tc.mu.Unlock()
}

// Advance moves engine time forward by d and notifies listeners with the
// new time. It is the manual counterpart of a Run tick.
func (tc *TimeController) Advance(d time.Duration) time.Time {
	tc.mu.Lock()
	tc.currentTime = tc.currentTime.Add(d)
	now := tc.currentTime
	listeners := append([]func(time.Time){}, tc.listeners...)
	tc.mu.Unlock()

	for _, fn := range listeners {
		fn(now)
	}
	return now
}

// AddListener registers a callback invoked on every tick.
func (tc *TimeController) AddListener(fn func(time.Time)) {
	tc.mu.Lock()
	tc.listeners = append(tc.listeners, fn)
	tc.mu.Unlock()
}

// Run ticks until ctx is cancelled, advancing engine time according to
// Mode and notifying listeners after each step.
func (tc *TimeController) Run(ctx context.Context) {
	tick := tc.Tick
	if tick <= 0 {
		tick = 100 * time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case wall := <-ticker.C:
			if tc.Mode == RealTime {
				tc.mu.Lock()
				delta := wall.Sub(tc.currentTime)
				tc.mu.Unlock()
				if delta < 0 {
					delta = 0
				}
				tc.Advance(delta)
				continue
			}
			tc.Advance(tick)
		}
	}
}

// Start runs the controller for the specified duration in a separate
// goroutine. It returns a channel that is closed when the controller
// finishes. A zero duration runs until ctx is cancelled.
func (tc *TimeController) Start(ctx context.Context, duration time.Duration) <-chan struct{} {
	done := make(chan struct{})
	runCtx, cancel := ctx, context.CancelFunc(func() {})
	if duration > 0 {
		runCtx, cancel = context.WithTimeout(ctx, duration)
	}
	go func() {
		defer close(done)
		defer cancel()
		tc.Run(runCtx)
	}()
	return done
}
