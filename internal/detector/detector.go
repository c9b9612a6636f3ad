// Package detector wraps external vision models (MediaPipe hand, face and
// pose landmarkers, hair segmenter) behind a uniform detection contract.
package detector

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sova-tungnv/web-ai/internal/frame"
)

var (
	// ErrNotInitialized is returned when the model handle is unusable.
	ErrNotInitialized = errors.New("model not initialized")
	// ErrModelLoad wraps failures to initialize the underlying model.
	ErrModelLoad = errors.New("model load failed")
	// ErrDetection wraps failures raised by the model during a detection call.
	ErrDetection = errors.New("detection failed")
	// ErrBusy is returned when a detection is already in flight on the handle.
	ErrBusy = errors.New("detector busy")
	// ErrTimestampRegressed is returned when a frame timestamp goes backwards.
	ErrTimestampRegressed = errors.New("timestamp regressed")
	// ErrClosed is returned after the detector has been disposed.
	ErrClosed = errors.New("detector closed")
	// ErrInvalidFrame is returned for frames that cannot be detected on.
	ErrInvalidFrame = frame.ErrInvalidFrame
)

// ModelKind names the vision model behind a detector.
type ModelKind string

const (
	KindHand             ModelKind = "hand"
	KindFace             ModelKind = "face"
	KindPose             ModelKind = "pose"
	KindHairSegmentation ModelKind = "hairSegmentation"
)

// ParseModelKind validates a model kind name.
func ParseModelKind(s string) (ModelKind, error) {
	switch k := ModelKind(strings.TrimSpace(s)); k {
	case KindHand, KindFace, KindPose, KindHairSegmentation:
		return k, nil
	default:
		return "", fmt.Errorf("unknown model kind %q", s)
	}
}

// Delegate is the hardware preference for inference.
type Delegate string

const (
	DelegateGPU Delegate = "GPU"
	DelegateCPU Delegate = "CPU"
)

// Detector analyzes frames. Implementations are not reentrant.
type Detector interface {
	// Detect returns the detection result for f. A frame with no subject
	// yields an empty result, not an error.
	Detect(ctx context.Context, f *frame.Frame) (*Result, error)

	// Close releases any resources held by the detector.
	Close() error
}

// Model is a loaded model handle from the vision library.
type Model = Detector

// Loader initializes a model handle for cfg.
type Loader func(ctx context.Context, cfg Config) (Model, error)

// Config holds configuration options for a detector.
type Config struct {
	Kind     ModelKind `yaml:"kind" json:"kind"`
	Delegate Delegate  `yaml:"delegate" json:"delegate"`

	// MaxSubjects is forwarded to the model; results keep at most one subject.
	MaxSubjects int `yaml:"max_subjects" json:"max_subjects"`

	// MinDetectionConfidence is the minimum detection confidence threshold (0.0-1.0).
	MinDetectionConfidence float64 `yaml:"min_detection_confidence" json:"min_detection_confidence"`
	// MinPresenceConfidence is the minimum presence confidence threshold (0.0-1.0).
	MinPresenceConfidence float64 `yaml:"min_presence_confidence" json:"min_presence_confidence"`
	// MinTrackingConfidence is the minimum tracking confidence threshold (0.0-1.0).
	MinTrackingConfidence float64 `yaml:"min_tracking_confidence" json:"min_tracking_confidence"`

	// InactiveAfter marks the model inactive after this long without use.
	InactiveAfter time.Duration `yaml:"inactive_after" json:"inactive_after"`
	// ReleaseAfter closes the model after this long without use. It is
	// reloaded transparently on the next detection.
	ReleaseAfter time.Duration `yaml:"release_after" json:"release_after"`
}

// DefaultConfig returns a Config with sensible default values for kind.
func DefaultConfig(kind ModelKind) Config {
	cfg := Config{
		Kind:                   kind,
		Delegate:               DelegateGPU,
		MaxSubjects:            1,
		MinDetectionConfidence: 0.5,
		MinPresenceConfidence:  0.5,
		MinTrackingConfidence:  0.5,
		InactiveAfter:          10 * time.Second,
		ReleaseAfter:           60 * time.Second,
	}
	if kind == KindFace {
		cfg.MinDetectionConfidence = 0.3
		cfg.MinTrackingConfidence = 0.3
	}
	return cfg
}

// Validate checks confidence ranges and the delegate name.
func (c Config) Validate() error {
	if _, err := ParseModelKind(string(c.Kind)); err != nil {
		return err
	}
	if c.Delegate != DelegateGPU && c.Delegate != DelegateCPU {
		return fmt.Errorf("unknown delegate %q", c.Delegate)
	}
	for name, v := range map[string]float64{
		"min_detection_confidence": c.MinDetectionConfidence,
		"min_presence_confidence":  c.MinPresenceConfidence,
		"min_tracking_confidence":  c.MinTrackingConfidence,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("%s must be within [0,1], got %v", name, v)
		}
	}
	if c.ReleaseAfter > 0 && c.InactiveAfter > c.ReleaseAfter {
		return fmt.Errorf("inactive_after (%s) exceeds release_after (%s)", c.InactiveAfter, c.ReleaseAfter)
	}
	return nil
}
