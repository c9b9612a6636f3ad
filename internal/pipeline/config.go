package pipeline

import (
	"fmt"
	"time"

	"github.com/sova-tungnv/web-ai/internal/detector"
	"github.com/sova-tungnv/web-ai/internal/queue"
)

// Config parameterizes a pipeline for one model kind.
type Config struct {
	// Name labels logs and metrics. It defaults to the model kind.
	Name string `yaml:"name" json:"name"`

	Detector detector.Config `yaml:"detector" json:"detector"`

	// QueueSize bounds the frames waiting for detection.
	QueueSize int `yaml:"queue_size" json:"queue_size"`
	// Policy decides which frame loses when the queue is under pressure.
	Policy queue.Policy `yaml:"policy" json:"policy"`
	// Interval is the minimum time between two dispatched detections.
	Interval time.Duration `yaml:"interval" json:"interval"`
	// IdleDelay is how long the scheduler sleeps when there is nothing to do.
	IdleDelay time.Duration `yaml:"idle_delay" json:"idle_delay"`
}

// HandConfig returns the hand landmarker profile: freshest frame wins,
// detection roughly every display frame.
func HandConfig() Config {
	return Config{
		Name:      string(detector.KindHand),
		Detector:  detector.DefaultConfig(detector.KindHand),
		QueueSize: 1,
		Policy:    queue.ReplaceOldest,
		Interval:  16 * time.Millisecond,
		IdleDelay: 16 * time.Millisecond,
	}
}

// FaceConfig returns the face landmarker profile: about three detections per
// second, incoming frames dropped while busy.
func FaceConfig() Config {
	return Config{
		Name:      string(detector.KindFace),
		Detector:  detector.DefaultConfig(detector.KindFace),
		QueueSize: 1,
		Policy:    queue.DropIncoming,
		Interval:  333 * time.Millisecond,
		IdleDelay: 33 * time.Millisecond,
	}
}

// PoseConfig returns the pose landmarker profile.
func PoseConfig() Config {
	cfg := HandConfig()
	cfg.Name = string(detector.KindPose)
	cfg.Detector = detector.DefaultConfig(detector.KindPose)
	cfg.Interval = 33 * time.Millisecond
	return cfg
}

// HairConfig returns the hair segmentation profile.
func HairConfig() Config {
	cfg := FaceConfig()
	cfg.Name = string(detector.KindHairSegmentation)
	cfg.Detector = detector.DefaultConfig(detector.KindHairSegmentation)
	return cfg
}

// ConfigFor returns the profile of kind.
func ConfigFor(kind detector.ModelKind) (Config, error) {
	switch kind {
	case detector.KindHand:
		return HandConfig(), nil
	case detector.KindFace:
		return FaceConfig(), nil
	case detector.KindPose:
		return PoseConfig(), nil
	case detector.KindHairSegmentation:
		return HairConfig(), nil
	default:
		return Config{}, fmt.Errorf("unknown model kind %q", kind)
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if err := c.Detector.Validate(); err != nil {
		return fmt.Errorf("detector: %w", err)
	}
	if c.QueueSize < 1 {
		return fmt.Errorf("queue_size must be at least 1, got %d", c.QueueSize)
	}
	if c.Interval < 0 {
		return fmt.Errorf("interval must not be negative, got %s", c.Interval)
	}
	if c.IdleDelay <= 0 {
		return fmt.Errorf("idle_delay must be positive, got %s", c.IdleDelay)
	}
	return nil
}
