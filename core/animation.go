package core

import (
	"iter"
	"sync"
	"time"

	"github.com/signalsfoundry/schoolbus-tracker/model"
)

// Animation moves one position from Start to Target over Duration of
// wall-clock time. It is a polled state machine: every Sample call yields
// one position, and once a sample reaches the target (or the animation is
// cancelled) it is over for good.
type Animation struct {
	BusID     string
	Start     model.Position
	Target    model.Position
	StartTime time.Time
	Duration  time.Duration

	mu        sync.Mutex
	last      model.Position
	samples   int
	done      bool
	cancelled bool
}

// NewAnimation prepares an animation starting at startTime. A zero or
// negative duration finishes on the first sample.
func NewAnimation(start, target model.Position, startTime time.Time, duration time.Duration) *Animation {
	return &Animation{
		Start:     start,
		Target:    target,
		StartTime: startTime,
		Duration:  duration,
		last:      start,
	}
}

// Progress returns clamp((now-StartTime)/Duration, 0, 1).
func (a *Animation) Progress(now time.Time) float64 {
	if a.Duration <= 0 {
		return 1
	}
	p := float64(now.Sub(a.StartTime)) / float64(a.Duration)
	switch {
	case p < 0:
		return 0
	case p > 1:
		return 1
	}
	return p
}

// Sample produces the position for now. done is true when this sample
// reached the target, and for every call after the animation ended; such
// calls return the last produced position without advancing.
func (a *Animation) Sample(now time.Time) (pos model.Position, done bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.done || a.cancelled {
		return a.last, true
	}

	progress := a.Progress(now)
	a.last = Interpolate(a.Start, a.Target, progress)
	a.samples++
	if progress >= 1 {
		a.done = true
	}
	return a.last, a.done
}

// Samples is the lazy sequence view of the animation: one position per
// timestamp pulled from frames, ending after the sample that reaches the
// target. The sequence cannot be restarted; ranging over it again after it
// finished yields nothing.
func (a *Animation) Samples(frames iter.Seq[time.Time]) iter.Seq[model.Position] {
	return func(yield func(model.Position) bool) {
		for now := range frames {
			if a.Finished() {
				return
			}
			pos, done := a.Sample(now)
			if !yield(pos) || done {
				return
			}
		}
	}
}

// Cancel stops the animation. It reports whether the animation was still live.
func (a *Animation) Cancel() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.done || a.cancelled {
		return false
	}
	a.cancelled = true
	return true
}

// Cancelled reports whether Cancel stopped the animation.
func (a *Animation) Cancelled() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cancelled
}

// Done reports whether the animation reached its target.
func (a *Animation) Done() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.done
}

// Finished reports whether no further samples will be produced.
func (a *Animation) Finished() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.done || a.cancelled
}

// SampleCount returns how many samples have been produced.
func (a *Animation) SampleCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.samples
}

// Last returns the most recently produced position (Start before the first sample).
func (a *Animation) Last() model.Position {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.last
}
