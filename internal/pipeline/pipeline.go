// Package pipeline drives one detector from a stream of frames: it queues
// and throttles frames, dispatches at most one detection at a time and hands
// results to a consumer.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/sova-tungnv/web-ai/internal/detector"
	"github.com/sova-tungnv/web-ai/internal/frame"
	"github.com/sova-tungnv/web-ai/internal/logger"
	"github.com/sova-tungnv/web-ai/internal/metrics"
	"github.com/sova-tungnv/web-ai/internal/queue"
)

// Consumer receives the outcome of each detection, in completion order.
// Calls never overlap for one pipeline.
type Consumer interface {
	HandleResult(ctx context.Context, res *detector.Result)
	// HandleFailure is told about per-frame failures. They are never fatal.
	HandleFailure(err error)
}

// ErrorReporter receives session-level errors that stop a pipeline.
type ErrorReporter interface {
	ReportError(source string, err error)
}

// Decision is the outcome of one scheduler step.
type Decision struct {
	// Delay is how long to wait before the next Tick. Zero means now.
	Delay time.Duration
	// Stop is set once the pipeline is closed.
	Stop bool
}

// Stats is a snapshot of pipeline counters.
type Stats struct {
	Name       string      `json:"name"`
	Queue      queue.Stats `json:"queue"`
	Dispatched uint64      `json:"dispatched"`
	Skipped    uint64      `json:"skipped"`
	Results    uint64      `json:"results"`
	Failures   uint64      `json:"failures"`
	Late       uint64      `json:"late"`
	Busy       bool        `json:"busy"`
	Closed     bool        `json:"closed"`
	Model      string      `json:"model"`
}

// Pipeline owns the queue, throttle, single-flight guard and detector
// adapter of one model kind.
type Pipeline struct {
	cfg      Config
	log      *slog.Logger
	queue    *queue.Queue
	throttle *queue.Throttle
	guard    *semaphore.Weighted
	adapter  *detector.Adapter
	consumer Consumer
	reporter ErrorReporter
	metrics  *metrics.Metrics

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	inflight atomic.Bool
	closed   atomic.Bool
	once     sync.Once
	closeErr error

	mu            sync.Mutex
	lastTimestamp int64
	hasTimestamp  bool

	dispatched atomic.Uint64
	skipped    atomic.Uint64
	results    atomic.Uint64
	failures   atomic.Uint64
	late       atomic.Uint64
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithReporter sets the session error reporter.
func WithReporter(r ErrorReporter) Option {
	return func(p *Pipeline) { p.reporter = r }
}

// WithMetrics records pipeline metrics into m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// New creates a pipeline. The model is loaded lazily by the first detection.
func New(cfg Config, load detector.Loader, consumer Consumer, opts ...Option) *Pipeline {
	if cfg.Name == "" {
		cfg.Name = string(cfg.Detector.Kind)
	}
	if cfg.IdleDelay <= 0 {
		cfg.IdleDelay = 16 * time.Millisecond
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Pipeline{
		cfg:      cfg,
		log:      logger.For("pipeline").With("pipeline", cfg.Name),
		queue:    queue.New(cfg.QueueSize, cfg.Policy),
		throttle: queue.NewThrottle(cfg.Interval),
		guard:    semaphore.NewWeighted(1),
		adapter:  detector.NewAdapter(cfg.Detector, load),
		consumer: consumer,
		ctx:      ctx,
		cancel:   cancel,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name returns the pipeline name.
func (p *Pipeline) Name() string {
	return p.cfg.Name
}

// Config returns the pipeline configuration.
func (p *Pipeline) Config() Config {
	return p.cfg
}

// Busy reports whether a detection is in flight.
func (p *Pipeline) Busy() bool {
	return p.inflight.Load()
}

// Closed reports whether the pipeline has been torn down.
func (p *Pipeline) Closed() bool {
	return p.closed.Load()
}

// Submit hands a frame to the pipeline, which takes ownership of it. Invalid
// frames and frames submitted after Close are released and rejected.
func (p *Pipeline) Submit(f *frame.Frame) queue.Outcome {
	outcome := p.queue.Enqueue(f, p.Busy())
	p.metrics.FrameSubmitted(p.cfg.Name, outcome.String())
	p.metrics.QueueDepth(p.cfg.Name, p.queue.Len())
	return outcome
}

// Tick runs one scheduler step at now. It never blocks on detection: a busy
// detector or an empty queue only reschedules.
func (p *Pipeline) Tick(now time.Time) Decision {
	if p.closed.Load() {
		return Decision{Stop: true}
	}
	if !p.guard.TryAcquire(1) {
		return Decision{Delay: p.busyDelay()}
	}
	if p.queue.Len() == 0 {
		p.guard.Release(1)
		return Decision{Delay: p.cfg.IdleDelay}
	}
	if wait := p.throttle.Wait(now); wait > 0 {
		p.guard.Release(1)
		return Decision{Delay: wait}
	}

	f := p.queue.DequeueLatest()
	p.metrics.QueueDepth(p.cfg.Name, p.queue.Len())
	if f == nil {
		p.guard.Release(1)
		return Decision{Delay: p.cfg.IdleDelay}
	}

	if !p.advance(f.Timestamp) {
		f.Release()
		p.guard.Release(1)
		p.skipped.Add(1)
		p.metrics.FrameSkipped(p.cfg.Name, "stale_timestamp")
		p.log.Debug("dropped frame with non-increasing timestamp", "timestamp", f.Timestamp)
		return Decision{}
	}

	p.inflight.Store(true)
	p.dispatched.Add(1)
	p.wg.Add(1)
	go p.detect(f)

	return Decision{Delay: p.busyDelay()}
}

// advance records ts as the last dispatched timestamp if it increases.
func (p *Pipeline) advance(ts int64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.hasTimestamp && ts <= p.lastTimestamp {
		return false
	}
	p.lastTimestamp, p.hasTimestamp = ts, true
	return true
}

func (p *Pipeline) busyDelay() time.Duration {
	if p.cfg.Interval > 0 {
		return p.cfg.Interval
	}
	return p.cfg.IdleDelay
}

func (p *Pipeline) detect(f *frame.Frame) {
	defer p.wg.Done()
	defer p.guard.Release(1)
	defer p.inflight.Store(false)
	defer f.Release()

	start := time.Now()
	res, err := p.adapter.Detect(p.ctx, f)
	took := time.Since(start)

	if p.closed.Load() {
		p.late.Add(1)
		p.log.Debug("ignoring result after teardown", "timestamp", f.Timestamp)
		return
	}

	if err != nil {
		p.metrics.Detection(p.cfg.Name, metrics.DetectionError, took)
		p.fail(err)
		return
	}

	outcome := metrics.DetectionSubject
	if res.Empty() {
		outcome = metrics.DetectionEmpty
	}
	p.metrics.Detection(p.cfg.Name, outcome, took)
	p.results.Add(1)
	if p.consumer != nil {
		p.consumer.HandleResult(p.ctx, res)
	}
}

// fail classifies a detection error. Model load failures are session-level:
// they are reported and stop the pipeline. Everything else is per-frame.
func (p *Pipeline) fail(err error) {
	switch {
	case errors.Is(err, detector.ErrModelLoad), errors.Is(err, detector.ErrNotInitialized):
		p.log.Error("model unavailable, stopping pipeline", "error", err)
		p.metrics.SessionError("model")
		if p.reporter != nil {
			p.reporter.ReportError(p.cfg.Name, err)
		}
		p.Close()
	case errors.Is(err, detector.ErrClosed), errors.Is(err, context.Canceled):
		p.late.Add(1)
	default:
		p.failures.Add(1)
		p.log.Warn("detection failed", "error", err)
		if p.consumer != nil {
			p.consumer.HandleFailure(err)
		}
	}
}

// Run drives Tick with a timer until ctx is done or the pipeline is closed.
func (p *Pipeline) Run(ctx context.Context) error {
	p.log.Info("pipeline started",
		"policy", p.cfg.Policy.String(),
		"interval", p.cfg.Interval,
		"queue_size", p.cfg.QueueSize,
	)
	defer p.log.Info("pipeline stopped")

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-p.ctx.Done():
			return nil
		case now := <-timer.C:
			d := p.Tick(now)
			if d.Stop {
				return nil
			}
			timer.Reset(d.Delay)
		}
	}
}

// Close tears the pipeline down: the scheduler stops, queued frames are
// released and the model is disposed even while a detection is in flight.
// The result of that detection is ignored. Close is idempotent.
func (p *Pipeline) Close() error {
	p.once.Do(func() {
		p.closed.Store(true)
		p.cancel()
		p.queue.Close()
		p.metrics.QueueDepth(p.cfg.Name, 0)
		p.closeErr = p.adapter.Close()
	})
	return p.closeErr
}

// Wait blocks until in-flight detections have returned.
func (p *Pipeline) Wait() {
	p.wg.Wait()
}

// Stats returns a snapshot of the pipeline counters.
func (p *Pipeline) Stats() Stats {
	return Stats{
		Name:       p.cfg.Name,
		Queue:      p.queue.Stats(),
		Dispatched: p.dispatched.Load(),
		Skipped:    p.skipped.Load(),
		Results:    p.results.Load(),
		Failures:   p.failures.Load(),
		Late:       p.late.Load(),
		Busy:       p.Busy(),
		Closed:     p.Closed(),
		Model:      string(p.adapter.State()),
	}
}
