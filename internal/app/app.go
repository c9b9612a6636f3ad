// Package app orchestrates a handpipe session: the camera hub, the hand
// pipeline feeding the gesture interpreter, the optional face pipeline
// feeding a tracker, and the sinks that observe them.
package app

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/sova-tungnv/web-ai/internal/capture"
	"github.com/sova-tungnv/web-ai/internal/detector"
	"github.com/sova-tungnv/web-ai/internal/gesture"
	"github.com/sova-tungnv/web-ai/internal/logger"
	"github.com/sova-tungnv/web-ai/internal/metrics"
	"github.com/sova-tungnv/web-ai/internal/pipeline"
	"github.com/sova-tungnv/web-ai/internal/store"
	"github.com/sova-tungnv/web-ai/internal/tracking"
)

// Error sources reported in Status.
const (
	SourceCamera = "camera"
	SourceStream = "stream"
)

// maxSessionErrors bounds the error history kept for Status.
const maxSessionErrors = 20

// Config holds the session configuration.
type Config struct {
	Camera   capture.Constraints
	Activity capture.Activity
	Watchdog capture.WatchdogConfig

	Hand        pipeline.Config
	FaceEnabled bool
	Face        pipeline.Config

	Gesture gesture.Thresholds
}

// SessionError is a session-level failure: the camera, a model load or a
// stalled stream.
type SessionError struct {
	Source string    `json:"source"`
	Error  string    `json:"error"`
	At     time.Time `json:"at"`
}

// Status is the state served to the UI.
type Status struct {
	Running      bool             `json:"running"`
	StartedAt    time.Time        `json:"started_at,omitzero"`
	Camera       capture.HubStats `json:"camera"`
	Pipelines    []pipeline.Stats `json:"pipelines"`
	Gesture      gesture.State    `json:"gesture"`
	ModeSwitches int              `json:"mode_switches"`
	Targets      int              `json:"targets"`
	Errors       []SessionError   `json:"errors"`
}

// App is the main application that orchestrates a detection session.
type App struct {
	config   Config
	camera   capture.Camera
	loader   detector.Loader
	store    *store.Store
	metrics  *metrics.Metrics
	sinks    []gesture.Sink
	face     tracking.Listener
	reporter pipeline.ErrorReporter
	registry *gesture.Registry
	journal  *store.Journal
	log      *slog.Logger

	mu        sync.RWMutex
	session   *session
	startedAt time.Time
	errs      []SessionError
}

// Option configures an App.
type Option func(*App)

// WithCamera replaces the gocv camera built from Config.Camera.
func WithCamera(c capture.Camera) Option {
	return func(a *App) { a.camera = c }
}

// WithLoader sets how detector models are loaded.
func WithLoader(l detector.Loader) Option {
	return func(a *App) { a.loader = l }
}

// WithStore enables the drag journal and target persistence.
func WithStore(s *store.Store) Option {
	return func(a *App) { a.store = s }
}

// WithMetrics records session metrics into m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithSink adds a receiver of interpreter events.
func WithSink(s gesture.Sink) Option {
	return func(a *App) { a.sinks = append(a.sinks, s) }
}

// WithFaceListener receives face tracker snapshots.
func WithFaceListener(l tracking.Listener) Option {
	return func(a *App) { a.face = l }
}

// WithReporter forwards session-level errors, for example to the UI.
func WithReporter(r pipeline.ErrorReporter) Option {
	return func(a *App) { a.reporter = r }
}

// New creates a new App. Stored targets are loaded into the registry.
func New(config Config, opts ...Option) (*App, error) {
	a := &App{
		config: config,
		log:    logger.For("app"),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.camera == nil {
		a.camera = capture.NewCamera(config.Camera)
	}
	a.registry = gesture.NewRegistry(config.Gesture.TemplateCaptureRadius, config.Gesture.InstanceCaptureRadius)

	if a.store != nil {
		n, err := a.store.Targets().LoadInto(a.registry)
		if err != nil {
			return nil, err
		}
		a.journal = store.NewJournal(a.store, a.registry)
		a.log.Info("targets loaded", "count", n)
	}
	return a, nil
}

// Registry returns the drag target registry shared by every session.
func (a *App) Registry() *gesture.Registry {
	return a.registry
}

// Running reports whether a session is active.
func (a *App) Running() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.session != nil
}

// Start acquires the camera and starts the pipelines. Starting a running
// app is a no-op. A camera failure is recorded in Status and returned.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.session != nil {
		a.mu.Unlock()
		return nil
	}

	s := a.newSession()
	if err := s.hub.Start(ctx); err != nil {
		a.mu.Unlock()
		s.close()
		a.metrics.SessionError(SourceCamera)
		a.ReportError(SourceCamera, err)
		return err
	}
	s.run(ctx, a.sessionEnded)

	a.session = s
	a.startedAt = time.Now()
	a.mu.Unlock()

	a.log.Info("session started", "face", a.config.FaceEnabled)
	return nil
}

// Ready blocks until the camera delivered its first frame.
func (a *App) Ready(ctx context.Context) error {
	a.mu.RLock()
	s := a.session
	a.mu.RUnlock()
	if s == nil {
		return errors.New("session not running")
	}
	return s.watchdog.WaitReady(ctx)
}

// Wait blocks until the running session ends and returns its error.
func (a *App) Wait() error {
	a.mu.RLock()
	s := a.session
	a.mu.RUnlock()
	if s == nil {
		return nil
	}
	return s.wait()
}

// Stop ends the session: the stream stops, pipelines close with their
// queued frames released, and an active drag ends. Stop is idempotent.
func (a *App) Stop() {
	a.mu.Lock()
	s := a.session
	a.session = nil
	a.mu.Unlock()

	if s == nil {
		return
	}
	s.close()
	if err := s.wait(); err != nil && !errors.Is(err, context.Canceled) {
		a.log.Warn("session ended with error", "error", err)
	}
	a.log.Info("session stopped")
}

// sessionEnded drops s once its loops have returned on their own, so a
// stalled stream leaves the app stopped and ready for another Start.
func (a *App) sessionEnded(s *session, err error) {
	a.mu.Lock()
	current := a.session == s
	if current {
		a.session = nil
	}
	a.mu.Unlock()

	if current {
		a.log.Warn("session ended", "error", err)
	}
}

// ReportError records a session-level error. It implements
// pipeline.ErrorReporter.
func (a *App) ReportError(source string, err error) {
	a.mu.Lock()
	a.recordLocked(source, err)
	a.mu.Unlock()

	if a.reporter != nil {
		a.reporter.ReportError(source, err)
	}
}

func (a *App) recordLocked(source string, err error) {
	a.errs = append(a.errs, SessionError{Source: source, Error: err.Error(), At: time.Now()})
	if len(a.errs) > maxSessionErrors {
		a.errs = a.errs[len(a.errs)-maxSessionErrors:]
	}
	a.log.Error("session error", "source", source, "error", err)
}

// Errors returns the recorded session errors, oldest first.
func (a *App) Errors() []SessionError {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return append([]SessionError(nil), a.errs...)
}

// Status returns a snapshot of the session.
func (a *App) Status() Status {
	a.mu.RLock()
	s := a.session
	st := Status{
		Running:   s != nil,
		Errors:    append([]SessionError{}, a.errs...),
		Targets:   len(a.registry.List()),
		Pipelines: []pipeline.Stats{},
	}
	if s != nil {
		st.StartedAt = a.startedAt
	}
	a.mu.RUnlock()

	if s == nil {
		st.Gesture = gesture.State{Kind: gesture.KindNoSubject, Pose: gesture.PoseNone}
		return st
	}
	st.Camera = s.hub.Stats()
	for _, p := range s.pipelines() {
		st.Pipelines = append(st.Pipelines, p.Stats())
	}
	st.Gesture = s.interpreter.State()
	st.Gesture.Smoothed = nil
	st.ModeSwitches = s.interpreter.ModeSwitches()
	return st
}

// State returns the interpreter state of the running session.
func (a *App) State() (gesture.State, bool) {
	a.mu.RLock()
	s := a.session
	a.mu.RUnlock()
	if s == nil {
		return gesture.State{}, false
	}
	return s.interpreter.State(), true
}

// Step reads one camera frame and fans it out. It is used to drive a
// session manually in tests and replays.
func (a *App) Step(now time.Time) error {
	a.mu.RLock()
	s := a.session
	a.mu.RUnlock()
	if s == nil {
		return errors.New("session not running")
	}
	return s.hub.Step(now)
}
