package queue

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Throttle enforces a minimum interval between dequeues.
type Throttle struct {
	mu       sync.Mutex
	limiter  *rate.Limiter
	interval time.Duration
}

// NewThrottle allows one dequeue per interval. A non-positive interval
// disables throttling.
func NewThrottle(interval time.Duration) *Throttle {
	t := &Throttle{interval: interval}
	if interval > 0 {
		t.limiter = rate.NewLimiter(rate.Every(interval), 1)
	}
	return t
}

// Interval returns the configured minimum interval.
func (t *Throttle) Interval() time.Duration {
	return t.interval
}

// Wait consumes the slot and returns 0 if a dequeue may happen at now.
// Otherwise it leaves the slot untouched and returns how long to defer.
func (t *Throttle) Wait(now time.Time) time.Duration {
	if t.limiter == nil {
		return 0
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	r := t.limiter.ReserveN(now, 1)
	if !r.OK() {
		return t.interval
	}
	if d := r.DelayFrom(now); d > 0 {
		r.CancelAt(now)
		return d
	}
	return 0
}
