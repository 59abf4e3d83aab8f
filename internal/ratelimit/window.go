// Package ratelimit provides a sliding-window admission gate shared by
// all concurrent runs in front of the plan-decomposition API.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Window admits at most limit calls per interval. Wait blocks the caller
// until the window admits it or the context is cancelled. Admission
// decisions are serialized; callers that are already admitted never block
// each other.
type Window struct {
	limit    int
	interval time.Duration
	now      func() time.Time

	mu        sync.Mutex
	admission []time.Time
}

// New creates a window admitting limit calls per interval
func New(limit int, interval time.Duration) *Window {
	return &Window{
		limit:    limit,
		interval: interval,
		now:      time.Now,
	}
}

// Wait blocks until the sliding window admits one more call
func (w *Window) Wait(ctx context.Context) error {
	for {
		wait := w.tryAdmit()
		if wait == 0 {
			return nil
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// tryAdmit records an admission if the window has room, otherwise returns
// how long until the oldest admission ages out.
func (w *Window) tryAdmit() time.Duration {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	cutoff := now.Add(-w.interval)

	kept := w.admission[:0]
	for _, t := range w.admission {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	w.admission = kept

	if len(w.admission) < w.limit {
		w.admission = append(w.admission, now)
		return 0
	}

	return w.admission[0].Sub(cutoff)
}

// Pending returns the number of admissions currently inside the window
func (w *Window) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()

	cutoff := w.now().Add(-w.interval)
	n := 0
	for _, t := range w.admission {
		if t.After(cutoff) {
			n++
		}
	}
	return n
}
