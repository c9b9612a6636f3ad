package tracking

import (
	"context"
	"log/slog"
	"sync"

	"github.com/sova-tungnv/web-ai/internal/detector"
	"github.com/sova-tungnv/web-ai/internal/logger"
)

// Snapshot is the tracked state after one detection cycle.
type Snapshot struct {
	Timestamp int64 `json:"timestamp"`
	// Landmarks are the raw landmarks of the result in use.
	Landmarks []detector.Landmark `json:"landmarks,omitempty"`
	// Smoothed is the exponentially smoothed landmark set.
	Smoothed []detector.Landmark `json:"smoothed,omitempty"`
	// Stale is set when the landmarks come from a cached result.
	Stale bool `json:"stale"`
	// Mask is passed through from segmentation models.
	Mask []byte `json:"mask,omitempty"`
}

// Listener receives tracker output.
type Listener interface {
	OnSnapshot(Snapshot)
	OnLost()
}

// Tracker combines a Smoother and a MissBridge for consumers that only need
// stabilized landmarks, such as face tracking. It is safe for concurrent use.
type Tracker struct {
	name     string
	listener Listener
	log      *slog.Logger

	mu       sync.Mutex
	smoother *Smoother
	bridge   *MissBridge
	last     Snapshot
	hasLast  bool
	failures int
}

// NewTracker creates a tracker. listener may be nil.
func NewTracker(name string, alpha float64, maxMisses int, listener Listener) *Tracker {
	return &Tracker{
		name:     name,
		listener: listener,
		log:      logger.For("tracking").With("tracker", name),
		smoother: NewSmoother(alpha),
		bridge:   NewMissBridge(maxMisses),
	}
}

// Update feeds one detection result and returns the resulting snapshot. ok is
// false when no subject is tracked.
func (t *Tracker) Update(res *detector.Result) (snap Snapshot, ok bool) {
	t.mu.Lock()

	var ts int64
	var mask []byte
	if res != nil {
		ts, mask = res.Timestamp, res.Mask
	}

	used, verdict := t.bridge.Observe(res)
	switch verdict {
	case Fresh:
		snap = Snapshot{
			Timestamp: ts,
			Landmarks: used.Subject.Landmarks,
			Smoothed:  t.smoother.Update(used.Subject.Landmarks),
			Mask:      mask,
		}
	case Stale:
		snap = Snapshot{
			Timestamp: ts,
			Landmarks: used.Subject.Landmarks,
			Smoothed:  t.smoother.Current(),
			Stale:     true,
			Mask:      mask,
		}
	case Lost:
		t.smoother.Reset()
		t.hasLast = false
		t.mu.Unlock()
		t.log.Debug("subject lost")
		if t.listener != nil {
			t.listener.OnLost()
		}
		return Snapshot{}, false
	default:
		t.mu.Unlock()
		if len(mask) > 0 && t.listener != nil {
			t.listener.OnSnapshot(Snapshot{Timestamp: ts, Mask: mask})
		}
		return Snapshot{}, false
	}

	t.last, t.hasLast = snap, true
	t.mu.Unlock()

	if t.listener != nil {
		t.listener.OnSnapshot(snap)
	}
	return snap, true
}

// Last returns the most recent snapshot while a subject is tracked.
func (t *Tracker) Last() (Snapshot, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.last, t.hasLast
}

// Failures returns how many per-frame failures were reported.
func (t *Tracker) Failures() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.failures
}

// Reset drops all tracked state without notifying the listener.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.smoother.Reset()
	t.bridge.Reset()
	t.hasLast = false
}

// HandleResult lets a Tracker consume pipeline results directly.
func (t *Tracker) HandleResult(_ context.Context, res *detector.Result) {
	t.Update(res)
}

// HandleFailure records a per-frame detection failure. Tracking state is kept.
func (t *Tracker) HandleFailure(err error) {
	t.mu.Lock()
	t.failures++
	t.mu.Unlock()
	t.log.Debug("detection failed", "error", err)
}
