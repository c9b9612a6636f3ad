package detector

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sova-tungnv/web-ai/internal/frame"
	"github.com/sova-tungnv/web-ai/internal/logger"
)

// State describes the adapter's model lifecycle.
type State string

const (
	StateUninitialized State = "uninitialized"
	StateActive        State = "active"
	StateInactive      State = "inactive"
	StateReleased      State = "released"
	StateClosed        State = "closed"
)

// Adapter owns one model handle. It loads the model lazily on first use,
// enforces single-flight and non-decreasing timestamps, and releases the
// model after a period of inactivity.
type Adapter struct {
	cfg  Config
	load Loader
	log  *slog.Logger

	inflight atomic.Bool

	mu            sync.Mutex
	model         Model
	state         State
	lastTimestamp int64
	hasTimestamp  bool
	generation    uint64
	inactiveTimer *time.Timer
	releaseTimer  *time.Timer
	loads         int
}

// NewAdapter creates an adapter that initializes its model with load.
func NewAdapter(cfg Config, load Loader) *Adapter {
	return &Adapter{
		cfg:   cfg,
		load:  load,
		log:   logger.For("detector").With("kind", string(cfg.Kind)),
		state: StateUninitialized,
	}
}

// Config returns the adapter configuration.
func (a *Adapter) Config() Config {
	return a.cfg
}

// State returns the current lifecycle state.
func (a *Adapter) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Loads returns how many times the model has been initialized.
func (a *Adapter) Loads() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.loads
}

// Busy reports whether a detection is in flight.
func (a *Adapter) Busy() bool {
	return a.inflight.Load()
}

// Detect runs the model on f. It never takes ownership of f.
func (a *Adapter) Detect(ctx context.Context, f *frame.Frame) (res *Result, err error) {
	if !a.inflight.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}
	defer a.inflight.Store(false)

	if !f.Valid() {
		return nil, ErrInvalidFrame
	}

	model, err := a.acquire(ctx, f.Timestamp)
	if err != nil {
		return nil, err
	}
	defer a.touch()

	defer func() {
		if r := recover(); r != nil {
			res = nil
			err = fmt.Errorf("%w: panic: %v", ErrDetection, r)
		}
	}()

	res, err = model.Detect(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDetection, err)
	}
	if res == nil {
		res = &Result{}
	}
	res.Timestamp = f.Timestamp
	return res, nil
}

// acquire returns a loaded model, loading it if needed, after checking the
// timestamp ordering for the handle.
func (a *Adapter) acquire(ctx context.Context, ts int64) (Model, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state == StateClosed {
		return nil, ErrClosed
	}

	a.stopTimersLocked()

	if a.model == nil {
		if a.load == nil {
			return nil, ErrNotInitialized
		}
		start := time.Now()
		model, err := a.load(ctx, a.cfg)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrModelLoad, err)
		}
		if model == nil {
			return nil, fmt.Errorf("%w: loader returned no model", ErrModelLoad)
		}
		a.model = model
		a.hasTimestamp = false
		a.loads++
		a.log.Info("model initialized", "delegate", string(a.cfg.Delegate), "took", time.Since(start))
	}

	if a.hasTimestamp && ts < a.lastTimestamp {
		return nil, fmt.Errorf("%w: %d < %d", ErrTimestampRegressed, ts, a.lastTimestamp)
	}
	a.lastTimestamp = ts
	a.hasTimestamp = true
	a.state = StateActive
	return a.model, nil
}

// touch restarts the idle timers after a detection.
func (a *Adapter) touch() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state == StateClosed {
		return
	}

	a.stopTimersLocked()
	gen := a.generation

	if a.cfg.InactiveAfter > 0 {
		a.inactiveTimer = time.AfterFunc(a.cfg.InactiveAfter, func() {
			a.mu.Lock()
			defer a.mu.Unlock()
			if gen == a.generation && a.state == StateActive {
				a.state = StateInactive
				a.log.Debug("model inactive")
			}
		})
	}
	if a.cfg.ReleaseAfter > 0 {
		a.releaseTimer = time.AfterFunc(a.cfg.ReleaseAfter, func() {
			a.mu.Lock()
			defer a.mu.Unlock()
			if gen != a.generation || a.inflight.Load() || a.model == nil {
				return
			}
			if err := a.model.Close(); err != nil {
				a.log.Warn("release idle model", "error", err)
			}
			a.model = nil
			a.state = StateReleased
			a.log.Info("model released after idle window", "idle", a.cfg.ReleaseAfter)
		})
	}
}

func (a *Adapter) stopTimersLocked() {
	a.generation++
	if a.inactiveTimer != nil {
		a.inactiveTimer.Stop()
		a.inactiveTimer = nil
	}
	if a.releaseTimer != nil {
		a.releaseTimer.Stop()
		a.releaseTimer = nil
	}
}

// Close disposes the model. It does not wait for an in-flight detection and
// is safe to call more than once.
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state == StateClosed {
		return nil
	}
	a.stopTimersLocked()
	a.state = StateClosed

	if a.model == nil {
		return nil
	}
	err := a.model.Close()
	a.model = nil
	return err
}
