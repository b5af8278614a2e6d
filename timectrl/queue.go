package timectrl

import (
	"sync"
	"time"
)

// periodicTimer is a repeating callback registered through Every.
type periodicTimer struct {
	id      uint64
	period  time.Duration
	next    time.Time
	fn      func(time.Time)
	stopped bool
}

// callbackQueue holds the repeating timers and pending frame callbacks shared
// by TimeController and FakeScheduler. Callbacks always run outside the lock
// so they may register further timers or frames.
type callbackQueue struct {
	mu      sync.Mutex
	counter uint64
	timers  []*periodicTimer
	frames  []func(time.Time)
}

func (q *callbackQueue) every(now time.Time, period time.Duration, fn func(time.Time)) (stop func()) {
	if period <= 0 || fn == nil {
		return func() {}
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	q.counter++
	pt := &periodicTimer{
		id:     q.counter,
		period: period,
		next:   now.Add(period),
		fn:     fn,
	}
	q.timers = append(q.timers, pt)

	return func() {
		q.mu.Lock()
		defer q.mu.Unlock()
		pt.stopped = true
		for i, t := range q.timers {
			if t == pt {
				q.timers = append(q.timers[:i], q.timers[i+1:]...)
				break
			}
		}
	}
}

func (q *callbackQueue) nextFrame(fn func(time.Time)) {
	if fn == nil {
		return
	}
	q.mu.Lock()
	q.frames = append(q.frames, fn)
	q.mu.Unlock()
}

// runTimers fires every timer occurrence scheduled at or before now, in
// time order, passing each callback its scheduled time. It returns the
// number of callbacks invoked.
func (q *callbackQueue) runTimers(now time.Time) int {
	fired := 0
	for {
		q.mu.Lock()
		var due *periodicTimer
		for _, t := range q.timers {
			if t.stopped || t.next.After(now) {
				continue
			}
			if due == nil || t.next.Before(due.next) || (t.next.Equal(due.next) && t.id < due.id) {
				due = t
			}
		}
		if due == nil {
			q.mu.Unlock()
			return fired
		}
		at := due.next
		due.next = due.next.Add(due.period)
		fn := due.fn
		q.mu.Unlock()

		fn(at)
		fired++
	}
}

// runFrame invokes the frame callbacks that were pending when it was called.
// Callbacks registered while it runs wait for the next frame.
func (q *callbackQueue) runFrame(now time.Time) int {
	q.mu.Lock()
	pending := q.frames
	q.frames = nil
	q.mu.Unlock()

	for _, fn := range pending {
		fn(now)
	}
	return len(pending)
}

func (q *callbackQueue) pendingFrames() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.frames)
}

func (q *callbackQueue) activeTimers() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.timers)
}

