package app

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/sova-tungnv/web-ai/internal/capture"
	"github.com/sova-tungnv/web-ai/internal/detector"
	"github.com/sova-tungnv/web-ai/internal/gesture"
	"github.com/sova-tungnv/web-ai/internal/metrics"
	"github.com/sova-tungnv/web-ai/internal/pipeline"
	"github.com/sova-tungnv/web-ai/internal/tracking"
)

// session is one camera acquisition with its pipelines. Hubs, pipelines
// and interpreters cannot be restarted once closed, so every Start builds a
// new session around the shared camera and registry.
//
// Frame flow:
//  1. the hub reads the camera and hands each subscriber its own clone
//  2. each pipeline keeps the freshest frame and detects on it off-thread
//  3. hand results drive the interpreter, face results drive the tracker
//  4. the watchdog restarts a stalled stream once, then reports it
type session struct {
	hub         *capture.Hub
	watchdog    *capture.Watchdog
	hand        *pipeline.Pipeline
	face        *pipeline.Pipeline
	interpreter *gesture.Interpreter
	tracker     *tracking.Tracker

	unsubscribe []func()
	cancel      context.CancelFunc
	closeOnce   sync.Once

	done chan struct{}
	err  error
}

func (a *App) newSession() *session {
	s := &session{}

	sinks := gesture.Sinks{metrics.NewListener(a.metrics)}
	if a.journal != nil {
		sinks = append(sinks, a.journal)
	}
	sinks = append(sinks, a.sinks...)
	s.interpreter = gesture.NewInterpreter(a.config.Gesture, a.registry, sinks)

	hubOpts := []capture.HubOption{capture.WithHubMetrics(a.metrics)}
	if a.config.Activity.Enabled {
		hubOpts = append(hubOpts, capture.WithActivity(a.config.Activity))
	}
	s.hub = capture.NewHub(a.camera, a.config.Camera, hubOpts...)

	opts := []pipeline.Option{pipeline.WithReporter(a), pipeline.WithMetrics(a.metrics)}
	s.hand = pipeline.New(a.config.Hand, a.loader, s.interpreter, opts...)
	s.unsubscribe = append(s.unsubscribe, s.hub.Subscribe(s.hand.Name(), s.hand))

	if a.config.FaceEnabled {
		s.tracker = tracking.NewTracker(string(detector.KindFace), a.config.Gesture.Alpha, a.config.Gesture.MaxMisses, a.face)
		s.face = pipeline.New(a.config.Face, a.loader, s.tracker, opts...)
		s.unsubscribe = append(s.unsubscribe, s.hub.Subscribe(s.face.Name(), s.face))
	}

	s.watchdog = capture.NewWatchdog(s.hub, a.config.Watchdog, func(err error) {
		a.metrics.SessionError(SourceStream)
		a.ReportError(SourceStream, err)
	})
	return s
}

func (s *session) pipelines() []*pipeline.Pipeline {
	if s.face == nil {
		return []*pipeline.Pipeline{s.hand}
	}
	return []*pipeline.Pipeline{s.hand, s.face}
}

// run starts the stream, scheduler and watchdog loops. A persistent stream
// stall ends all of them. Once every loop has returned the session closes
// itself and ended is called with the first loop error.
func (s *session) run(ctx context.Context, ended func(*session, error)) {
	ctx, s.cancel = context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(ctx)
	s.done = make(chan struct{})

	g.Go(func() error { return s.hub.Run(gctx) })
	for _, p := range s.pipelines() {
		g.Go(func() error { return p.Run(gctx) })
	}
	g.Go(func() error { return s.watchdog.Run(gctx) })

	go func() {
		err := g.Wait()
		s.close()
		for _, p := range s.pipelines() {
			p.Wait()
		}
		s.err = err
		close(s.done)
		if ended != nil {
			ended(s, err)
		}
	}()
}

// close stops the stream before the pipelines so no frame is submitted to a
// closed queue, and closes the interpreter last so an active drag ends.
func (s *session) close() {
	s.closeOnce.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}
		for _, unsubscribe := range s.unsubscribe {
			unsubscribe()
		}
		s.hub.Stop()
		for _, p := range s.pipelines() {
			p.Close()
		}
		s.interpreter.Close()
		if s.tracker != nil {
			s.tracker.Reset()
		}
	})
}

// wait returns once every loop and in-flight detection has finished.
func (s *session) wait() error {
	if s.done == nil {
		return nil
	}
	<-s.done
	return s.err
}
