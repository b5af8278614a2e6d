package timectrl

import (
	"sync"
	"time"
)

// FakeScheduler is a deterministic Scheduler for tests. Time only moves when
// the test calls Advance or Frame, and every callback runs synchronously on
// the calling goroutine.
type FakeScheduler struct {
	mu  sync.Mutex
	now time.Time

	queue callbackQueue
}

// NewFakeScheduler creates a fake scheduler starting at the given time.
func NewFakeScheduler(start time.Time) *FakeScheduler {
	return &FakeScheduler{now: start}
}

// Now returns the current fake time.
func (s *FakeScheduler) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

// Every implements Scheduler.
func (s *FakeScheduler) Every(period time.Duration, fn func(time.Time)) (stop func()) {
	return s.queue.every(s.Now(), period, fn)
}

// NextFrame implements Scheduler.
func (s *FakeScheduler) NextFrame(fn func(time.Time)) {
	s.queue.nextFrame(fn)
}

// Advance moves fake time forward by d and fires the periodic timers that
// became due. Frame callbacks are left pending. Negative durations are ignored.
func (s *FakeScheduler) Advance(d time.Duration) int {
	now := s.advance(d)
	return s.queue.runTimers(now)
}

// Frame moves fake time forward by d, fires due timers, and then runs the
// frame callbacks that were pending. It returns how many frame callbacks ran.
func (s *FakeScheduler) Frame(d time.Duration) int {
	now := s.advance(d)
	s.queue.runTimers(now)
	return s.queue.runFrame(now)
}

// RunFrames runs up to n frames spaced by interval, stopping early once no
// frame callbacks are pending. It returns the number of frames that ran
// callbacks.
func (s *FakeScheduler) RunFrames(n int, interval time.Duration) int {
	ran := 0
	for i := 0; i < n; i++ {
		if s.queue.pendingFrames() == 0 {
			return ran
		}
		s.Frame(interval)
		ran++
	}
	return ran
}

// PendingFrames reports how many frame callbacks wait for the next frame.
func (s *FakeScheduler) PendingFrames() int {
	return s.queue.pendingFrames()
}

// ActiveTimers reports how many periodic timers are registered.
func (s *FakeScheduler) ActiveTimers() int {
	return s.queue.activeTimers()
}

func (s *FakeScheduler) advance(d time.Duration) time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d > 0 {
		s.now = s.now.Add(d)
	}
	return s.now
}
