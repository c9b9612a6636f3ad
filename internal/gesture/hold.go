package gesture

import "time"

// HoldTimer measures how long a predicate has been continuously true. Any
// false frame resets it to zero; reaching the threshold fires once and
// restarts the measurement. Paused spans do not count.
type HoldTimer struct {
	threshold time.Duration
	start     time.Time
	last      time.Time
	active    bool
}

// NewHoldTimer creates a timer firing after threshold.
func NewHoldTimer(threshold time.Duration) *HoldTimer {
	return &HoldTimer{threshold: threshold}
}

// Update records the predicate value observed at now. progress is the held
// fraction of the threshold in [0,1]; fired is true on the frame the
// threshold is crossed.
func (h *HoldTimer) Update(cond bool, now time.Time) (progress float64, fired bool) {
	if !cond {
		h.active = false
		return 0, false
	}
	if !h.active {
		h.active = true
		h.start = now
	}
	h.last = now

	held := now.Sub(h.start)
	if held >= h.threshold {
		h.start = now
		return 1, true
	}
	return float64(held) / float64(h.threshold), false
}

// Pause excludes the time since the last update from an active hold
// without resetting it.
func (h *HoldTimer) Pause(now time.Time) {
	if !h.active {
		return
	}
	if gap := now.Sub(h.last); gap > 0 {
		h.start = h.start.Add(gap)
	}
	h.last = now
}

// Held returns the continuous duration accumulated as of now.
func (h *HoldTimer) Held(now time.Time) time.Duration {
	if !h.active {
		return 0
	}
	return now.Sub(h.start)
}

// Reset clears the timer.
func (h *HoldTimer) Reset() {
	h.active = false
}
