package capture

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sova-tungnv/web-ai/internal/frame"
	"github.com/sova-tungnv/web-ai/internal/logger"
	"github.com/sova-tungnv/web-ai/internal/metrics"
	"github.com/sova-tungnv/web-ai/internal/queue"
)

// FrameSink takes ownership of frames. Pipelines implement it.
type FrameSink interface {
	Submit(f *frame.Frame) queue.Outcome
}

// Activity configures the adaptive capture rate. While no motion is seen for
// IdleAfter the stream drops to IdleFPS; motion restores the requested rate.
type Activity struct {
	Enabled   bool          `yaml:"enabled" json:"enabled"`
	Threshold float64       `yaml:"threshold" json:"threshold"`
	IdleFPS   int           `yaml:"idle_fps" json:"idle_fps"`
	IdleAfter time.Duration `yaml:"idle_after" json:"idle_after"`
}

// DefaultActivity returns the adaptive rate settings: 1% changed pixels,
// 5 fps after 2s without motion. It is disabled by default.
func DefaultActivity() Activity {
	return Activity{
		Threshold: 1.0,
		IdleFPS:   5,
		IdleAfter: 2 * time.Second,
	}
}

// HubStats is a snapshot of hub counters.
type HubStats struct {
	Open        bool      `json:"open"`
	Frames      uint64    `json:"frames"`
	ReadErrors  uint64    `json:"read_errors"`
	Subscribers int       `json:"subscribers"`
	FPS         int       `json:"fps"`
	Idle        bool      `json:"idle"`
	LastFrameAt time.Time `json:"last_frame_at,omitzero"`
}

// Hub is the single camera stream of a session. It reads frames at the
// configured rate and hands every subscriber its own copy, stamped with
// strictly increasing millisecond timestamps.
type Hub struct {
	constraints Constraints
	activity    Activity
	log         *slog.Logger
	metrics     *metrics.Metrics

	camMu sync.Mutex
	cam   Camera

	mu      sync.RWMutex
	subs    map[int]subscriber
	nextID  int
	lastTs  int64
	hasTs   bool
	lastAt  time.Time
	openAt  time.Time
	motion  *MotionDetector
	idle    bool
	movedAt time.Time

	frames     atomic.Uint64
	readErrors atomic.Uint64
	open       atomic.Bool

	stopOnce sync.Once
	stopCh   chan struct{}
	resetCh  chan time.Duration
}

type subscriber struct {
	name string
	sink FrameSink
}

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithActivity enables the adaptive capture rate.
func WithActivity(a Activity) HubOption {
	return func(h *Hub) { h.activity = a }
}

// WithHubMetrics counts camera frames into m.
func WithHubMetrics(m *metrics.Metrics) HubOption {
	return func(h *Hub) { h.metrics = m }
}

// NewHub creates a hub over cam. The stream is acquired by Start.
func NewHub(cam Camera, c Constraints, opts ...HubOption) *Hub {
	h := &Hub{
		constraints: c,
		activity:    DefaultActivity(),
		log:         logger.For("capture"),
		cam:         cam,
		subs:        make(map[int]subscriber),
		stopCh:      make(chan struct{}),
		resetCh:     make(chan time.Duration, 1),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.activity.Enabled {
		h.motion = NewMotionDetector(h.activity.Threshold)
	}
	return h
}

// Subscribe registers a sink for every subsequent frame. The returned
// function unsubscribes it.
func (h *Hub) Subscribe(name string, sink FrameSink) (unsubscribe func()) {
	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.subs[id] = subscriber{name: name, sink: sink}
	h.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
		})
	}
}

// Start acquires the stream.
func (h *Hub) Start(ctx context.Context) error {
	h.camMu.Lock()
	defer h.camMu.Unlock()

	h.cam.SetFPS(h.constraints.FPS)
	if err := OpenStream(ctx, h.cam); err != nil {
		return err
	}
	h.open.Store(true)
	h.mu.Lock()
	h.openAt = time.Now()
	h.mu.Unlock()
	h.log.Info("camera stream opened",
		"device", h.constraints.DeviceID,
		"width", h.constraints.Width,
		"height", h.constraints.Height,
		"fps", h.constraints.FPS,
	)
	return nil
}

// Restart closes and reacquires the stream.
func (h *Hub) Restart(ctx context.Context) error {
	h.camMu.Lock()
	defer h.camMu.Unlock()

	if err := h.cam.Close(); err != nil {
		h.log.Warn("close camera for restart", "error", err)
	}
	h.open.Store(false)
	if err := OpenStream(ctx, h.cam); err != nil {
		return err
	}
	h.open.Store(true)

	h.mu.Lock()
	h.lastAt = time.Time{}
	h.openAt = time.Now()
	h.mu.Unlock()
	if h.motion != nil {
		h.motion.Reset()
	}
	h.log.Info("camera stream restarted")
	return nil
}

// Run reads and fans out frames until ctx is done or Stop is called.
func (h *Hub) Run(ctx context.Context) error {
	interval := h.constraints.Interval()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-h.stopCh:
			return nil
		case d := <-h.resetCh:
			ticker.Reset(d)
		case now := <-ticker.C:
			if err := h.Step(now); err != nil && !errors.Is(err, ErrCameraNotOpen) {
				h.log.Debug("read frame", "error", err)
			}
		}
	}
}

// Step reads one frame and delivers it to every subscriber.
func (h *Hub) Step(now time.Time) error {
	h.camMu.Lock()
	f, err := h.cam.ReadFrame()
	h.camMu.Unlock()
	if err != nil {
		h.readErrors.Add(1)
		return err
	}
	defer f.Release()

	h.frames.Add(1)
	h.metrics.CameraFrame()

	if h.motion != nil {
		h.trackActivity(f, now)
	}

	h.mu.Lock()
	ts := f.Timestamp
	if h.hasTs && ts <= h.lastTs {
		ts = h.lastTs + 1
	}
	h.lastTs, h.hasTs = ts, true
	h.lastAt = now
	subs := make([]subscriber, 0, len(h.subs))
	for _, s := range h.subs {
		subs = append(subs, s)
	}
	h.mu.Unlock()

	for _, s := range subs {
		clone, err := f.Clone(ts)
		if err != nil {
			h.log.Warn("clone frame", "subscriber", s.name, "error", err)
			continue
		}
		s.sink.Submit(clone)
	}
	return nil
}

// trackActivity switches between the requested and idle capture rates.
func (h *Hub) trackActivity(f *frame.Frame, now time.Time) {
	moving := h.motion.Moving(f)

	h.mu.Lock()
	defer h.mu.Unlock()

	if moving || h.movedAt.IsZero() {
		h.movedAt = now
	}

	switch {
	case moving && h.idle:
		h.idle = false
		h.setRateLocked(h.constraints.FPS)
		h.log.Info("motion detected, switched to active rate", "fps", h.constraints.FPS)
	case !moving && !h.idle && now.Sub(h.movedAt) > h.activity.IdleAfter:
		h.idle = true
		h.setRateLocked(h.activity.IdleFPS)
		h.log.Info("scene idle, switched to idle rate", "fps", h.activity.IdleFPS)
	}
}

func (h *Hub) setRateLocked(fps int) {
	if fps <= 0 {
		return
	}
	h.cam.SetFPS(fps)
	select {
	case h.resetCh <- time.Second / time.Duration(fps):
	default:
	}
}

// LastFrameAt returns when the last frame was delivered, zero if none was
// since the stream was (re)opened.
func (h *Hub) LastFrameAt() time.Time {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.lastAt
}

// OpenedAt returns when the stream was last (re)acquired.
func (h *Hub) OpenedAt() time.Time {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.openAt
}

// Stats returns a snapshot of hub counters.
func (h *Hub) Stats() HubStats {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return HubStats{
		Open:        h.open.Load(),
		Frames:      h.frames.Load(),
		ReadErrors:  h.readErrors.Load(),
		Subscribers: len(h.subs),
		FPS:         h.cam.FPS(),
		Idle:        h.idle,
		LastFrameAt: h.lastAt,
	}
}

// Stop ends Run and releases the camera. It is idempotent.
func (h *Hub) Stop() error {
	var err error
	h.stopOnce.Do(func() {
		close(h.stopCh)

		h.camMu.Lock()
		err = h.cam.Close()
		h.camMu.Unlock()
		h.open.Store(false)

		if h.motion != nil {
			h.motion.Close()
		}
		h.log.Info("camera stream stopped")
	})
	return err
}
