package core

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/signalsfoundry/schoolbus-tracker/internal/logging"
	"github.com/signalsfoundry/schoolbus-tracker/model"
)

// FrameScheduler is the part of timectrl.Scheduler the animator needs.
type FrameScheduler interface {
	Now() time.Time
	NextFrame(fn func(now time.Time))
}

// PositionSink receives every animation sample. Returning an error wrapping
// ErrUnknownEntity stops the animation quietly.
type PositionSink func(busID string, pos model.Position) error

// Animator owns at most one live Animation per bus and drives each one with
// a chain of frame callbacks: every frame yields one sample and schedules
// the next frame until the target is reached.
type Animator struct {
	frames FrameScheduler
	sink   PositionSink

	mu     sync.Mutex
	active map[string]*Animation

	onSample func(busID string, pos model.Position, done bool)
	metrics  Recorder
	log      logging.Logger
}

// AnimatorOption customises Animator construction.
type AnimatorOption func(*Animator)

// WithSampleHook registers a callback run after every successful sample.
func WithSampleHook(fn func(busID string, pos model.Position, done bool)) AnimatorOption {
	return func(a *Animator) {
		a.onSample = fn
	}
}

// WithAnimatorRecorder attaches a metrics recorder.
func WithAnimatorRecorder(r Recorder) AnimatorOption {
	return func(a *Animator) {
		if r != nil {
			a.metrics = r
		}
	}
}

// WithAnimatorLogger attaches a logger.
func WithAnimatorLogger(l logging.Logger) AnimatorOption {
	return func(a *Animator) {
		if l != nil {
			a.log = l
		}
	}
}

// NewAnimator builds an animator that writes samples to sink.
func NewAnimator(frames FrameScheduler, sink PositionSink, opts ...AnimatorOption) *Animator {
	a := &Animator{
		frames:  frames,
		sink:    sink,
		active:  make(map[string]*Animation),
		metrics: noopRecorder{},
		log:     logging.Noop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Animate starts moving busID from start to target over duration. Any
// animation already running for busID is cancelled first and produces no
// further samples. The first sample is taken on the next frame.
func (a *Animator) Animate(busID string, start, target model.Position, duration time.Duration) *Animation {
	anim := NewAnimation(start, target, a.frames.Now(), duration)
	anim.BusID = busID

	a.mu.Lock()
	superseded := false
	if prev, ok := a.active[busID]; ok {
		superseded = prev.Cancel()
	}
	a.active[busID] = anim
	active := len(a.active)
	a.mu.Unlock()

	a.metrics.AnimationStarted(superseded)
	a.metrics.SetActiveAnimations(active)

	a.frames.NextFrame(func(now time.Time) { a.step(anim, now) })
	return anim
}

func (a *Animator) step(anim *Animation, now time.Time) {
	if anim.Finished() {
		return
	}

	pos, done := anim.Sample(now)
	if a.sink != nil {
		if err := a.sink(anim.BusID, pos); err != nil {
			if errors.Is(err, ErrUnknownEntity) {
				a.log.Debug(context.Background(), "dropping animation for unknown bus",
					logging.String("bus_id", anim.BusID))
			} else {
				a.log.Warn(context.Background(), "animation sample rejected",
					logging.String("bus_id", anim.BusID),
					logging.Err(err),
				)
			}
			anim.Cancel()
			a.release(anim)
			return
		}
	}
	a.metrics.AnimationFrame()

	if a.onSample != nil {
		a.onSample(anim.BusID, pos, done)
	}

	if done {
		a.metrics.AnimationFinished()
		a.release(anim)
		return
	}
	a.frames.NextFrame(func(now time.Time) { a.step(anim, now) })
}

// release forgets anim if it is still the bus's current animation.
func (a *Animator) release(anim *Animation) {
	a.mu.Lock()
	if a.active[anim.BusID] == anim {
		delete(a.active, anim.BusID)
	}
	active := len(a.active)
	a.mu.Unlock()
	a.metrics.SetActiveAnimations(active)
}

// Cancel stops the live animation for busID, if any.
func (a *Animator) Cancel(busID string) bool {
	a.mu.Lock()
	anim, ok := a.active[busID]
	if ok {
		delete(a.active, busID)
	}
	active := len(a.active)
	a.mu.Unlock()

	if !ok {
		return false
	}
	a.metrics.SetActiveAnimations(active)
	return anim.Cancel()
}

// Get returns the live animation for busID.
func (a *Animator) Get(busID string) (*Animation, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	anim, ok := a.active[busID]
	return anim, ok
}

// Active reports how many animations are in flight.
func (a *Animator) Active() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.active)
}
