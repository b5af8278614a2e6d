package timectrl

import (
	"context"
	"sync"
	"time"
)

// SimClock is an interface for accessing simulation time. Components depend
// on it rather than on time.Now so tests can drive time explicitly.
type SimClock interface {
	// Now returns the current simulation time.
	Now() time.Time
}

// Scheduler is the host primitive the simulation core runs on.
type Scheduler interface {
	SimClock

	// Every invokes fn once per period until the returned stop function is
	// called. fn receives the scheduled time of the occurrence.
	Every(period time.Duration, fn func(now time.Time)) (stop func())

	// NextFrame invokes fn exactly once, on the next display frame, with
	// that frame's timestamp.
	NextFrame(fn func(now time.Time))
}

// Mode describes how the TimeController advances simulation time.
type Mode int

const (
	// RealTime advances according to wall-clock time.
	RealTime Mode = iota
	// Accelerated advances as quickly as the loop can run while still stepping by Tick.
	Accelerated
)

func (m Mode) String() string {
	switch m {
	case RealTime:
		return "realtime"
	case Accelerated:
		return "accelerated"
	default:
		return "unknown"
	}
}

// DefaultFrameRate is the frame rate used when none is configured.
const DefaultFrameRate = 60

// FrameInterval converts a frame rate into the per-frame tick.
func FrameInterval(fps int) time.Duration {
	if fps <= 0 {
		fps = DefaultFrameRate
	}
	return time.Second / time.Duration(fps)
}

// TimeController drives simulation time one frame at a time. Every frame it
// fires due periodic timers, then pending frame callbacks, then listeners,
// all on the goroutine running the controller.
type TimeController struct {
	mu        sync.RWMutex
	StartTime time.Time
	Tick      time.Duration
	Mode      Mode

	// currentTime tracks the current simulation time. It is updated
	// as the controller advances time.
	currentTime time.Time

	listeners []func(time.Time)

	queue callbackQueue
}

// NewTimeController constructs a controller.
func NewTimeController(start time.Time, tick time.Duration, mode Mode) *TimeController {
	if tick <= 0 {
		tick = FrameInterval(DefaultFrameRate)
	}
	return &TimeController{
		StartTime:   start,
		Tick:        tick,
		Mode:        mode,
		currentTime: start,
	}
}

// Now returns the current simulation time. Implements SimClock.
func (tc *TimeController) Now() time.Time {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return tc.currentTime
}

// SetTime jumps the simulation clock. Timers already due fire on the next step.
func (tc *TimeController) SetTime(t time.Time) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.currentTime = t
}

// Every implements Scheduler.
func (tc *TimeController) Every(period time.Duration, fn func(time.Time)) (stop func()) {
	return tc.queue.every(tc.Now(), period, fn)
}

// NextFrame implements Scheduler.
func (tc *TimeController) NextFrame(fn func(time.Time)) {
	tc.queue.nextFrame(fn)
}

// AddListener registers a callback invoked on every frame, after timers and
// frame callbacks.
func (tc *TimeController) AddListener(fn func(time.Time)) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.listeners = append(tc.listeners, fn)
}

// Step advances simulation time by one Tick and runs everything that became
// due. It returns the new simulation time.
func (tc *TimeController) Step() time.Time {
	tc.mu.Lock()
	tc.currentTime = tc.currentTime.Add(tc.Tick)
	now := tc.currentTime
	listeners := append([]func(time.Time){}, tc.listeners...)
	tc.mu.Unlock()

	tc.queue.runTimers(now)
	tc.queue.runFrame(now)
	for _, fn := range listeners {
		fn(now)
	}
	return now
}

// Run steps the controller until duration of simulation time has elapsed
// (forever when duration <= 0) or ctx is cancelled. In RealTime mode each
// step waits for the wall-clock tick; Accelerated steps back to back.
func (tc *TimeController) Run(ctx context.Context, duration time.Duration) error {
	tc.mu.Lock()
	tc.currentTime = tc.StartTime
	tc.mu.Unlock()

	var tick <-chan time.Time
	if tc.Mode == RealTime {
		ticker := time.NewTicker(tc.Tick)
		defer ticker.Stop()
		tick = ticker.C
	}

	elapsed := time.Duration(0)
	for {
		if duration > 0 && elapsed >= duration {
			return nil
		}

		if tick != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-tick:
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}

		tc.Step()
		elapsed += tc.Tick
	}
}

// Start runs the controller for the specified duration in a separate goroutine.
// It returns a channel that is closed when the controller finishes.
func (tc *TimeController) Start(duration time.Duration) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = tc.Run(context.Background(), duration)
	}()
	return done
}
