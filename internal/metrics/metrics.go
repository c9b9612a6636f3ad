// Package metrics exposes Prometheus collectors for the frame pipelines and
// the gesture interpreter.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "handpipe"

// Detection outcome labels.
const (
	DetectionSubject = "subject"
	DetectionEmpty   = "empty"
	DetectionError   = "error"
)

// Metrics holds the collectors of one process. Each instance owns its
// registry. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	framesSubmitted   *prometheus.CounterVec
	framesSkipped     *prometheus.CounterVec
	detections        *prometheus.CounterVec
	detectionDuration *prometheus.HistogramVec
	queueDepth        *prometheus.GaugeVec
	gestureEvents     *prometheus.CounterVec
	sessionErrors     *prometheus.CounterVec
	cameraFrames      prometheus.Counter
}

// New creates the collectors and registers them with a fresh registry,
// together with the Go runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		framesSubmitted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "frames_submitted_total",
				Help:      "Frames offered to a pipeline queue, by outcome",
			},
			[]string{"pipeline", "outcome"}, // outcome: queued, evicted, dropped, rejected
		),
		framesSkipped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "frames_skipped_total",
				Help:      "Dequeued frames discarded before detection",
			},
			[]string{"pipeline", "reason"},
		),
		detections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "detections_total",
				Help:      "Detection calls, by outcome",
			},
			[]string{"pipeline", "outcome"}, // outcome: subject, empty, error
		),
		detectionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "detection_duration_seconds",
				Help:      "Duration of detection calls in seconds",
				Buckets:   []float64{.005, .01, .02, .033, .05, .1, .25, .5, 1, 5},
			},
			[]string{"pipeline"},
		),
		queueDepth: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "queue_depth",
				Help:      "Frames waiting in a pipeline queue",
			},
			[]string{"pipeline"},
		),
		gestureEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "gesture_events_total",
				Help:      "Events emitted by the gesture interpreter",
			},
			[]string{"type", "kind"},
		),
		sessionErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "session_errors_total",
				Help:      "Session-level errors surfaced to the user",
			},
			[]string{"source"},
		),
		cameraFrames: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "camera_frames_total",
				Help:      "Frames read from the camera",
			},
		),
	}

	m.registry.MustRegister(
		m.framesSubmitted,
		m.framesSkipped,
		m.detections,
		m.detectionDuration,
		m.queueDepth,
		m.gestureEvents,
		m.sessionErrors,
		m.cameraFrames,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// FrameSubmitted counts a queue outcome.
func (m *Metrics) FrameSubmitted(pipeline, outcome string) {
	if m == nil {
		return
	}
	m.framesSubmitted.WithLabelValues(pipeline, outcome).Inc()
}

// FrameSkipped counts a dequeued frame that was not dispatched.
func (m *Metrics) FrameSkipped(pipeline, reason string) {
	if m == nil {
		return
	}
	m.framesSkipped.WithLabelValues(pipeline, reason).Inc()
}

// Detection records one detection call.
func (m *Metrics) Detection(pipeline, outcome string, took time.Duration) {
	if m == nil {
		return
	}
	m.detections.WithLabelValues(pipeline, outcome).Inc()
	m.detectionDuration.WithLabelValues(pipeline).Observe(took.Seconds())
}

// QueueDepth sets the current queue length.
func (m *Metrics) QueueDepth(pipeline string, n int) {
	if m == nil {
		return
	}
	m.queueDepth.WithLabelValues(pipeline).Set(float64(n))
}

// SessionError counts a session-level error.
func (m *Metrics) SessionError(source string) {
	if m == nil {
		return
	}
	m.sessionErrors.WithLabelValues(source).Inc()
}

// CameraFrame counts a frame read from the camera.
func (m *Metrics) CameraFrame() {
	if m == nil {
		return
	}
	m.cameraFrames.Inc()
}
