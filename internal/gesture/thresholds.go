// Package gesture turns per-frame hand landmarks into discrete, debounced
// interaction events: cursor moves, pose changes, timed holds and pinch drags
// bound to registered targets.
package gesture

import (
	"fmt"
	"time"

	"github.com/sova-tungnv/web-ai/internal/detector"
	"github.com/sova-tungnv/web-ai/internal/tracking"
)

// Thresholds is the tuning table of the interpreter. Every entry is an
// empirically tuned constant; units are given per field.
type Thresholds struct {
	// ExtendedMargin is how far (normalized Y) a fingertip must sit above its
	// MCP joint for the finger to count as extended.
	ExtendedMargin float64 `yaml:"extended_margin" json:"extended_margin"`

	// PinchDistance is the thumb tip to index tip distance, in viewport
	// pixels, below which the hand is pinching.
	PinchDistance float64 `yaml:"pinch_distance" json:"pinch_distance"`

	// PinchConfirmFrames is how many consecutive pinching frames are needed
	// before a drag may start.
	PinchConfirmFrames int `yaml:"pinch_confirm_frames" json:"pinch_confirm_frames"`

	// DragCooldown suppresses a new drag after one ends.
	DragCooldown time.Duration `yaml:"drag_cooldown" json:"drag_cooldown"`

	// HoldDuration is how long the two-finger pose must be held to fire a
	// mode switch.
	HoldDuration time.Duration `yaml:"hold_duration" json:"hold_duration"`

	// CursorMinMove is the minimum cursor displacement, in pixels, that is
	// propagated to sinks.
	CursorMinMove float64 `yaml:"cursor_min_move" json:"cursor_min_move"`

	// CursorWindow is the number of recent positions averaged for the cursor.
	CursorWindow int `yaml:"cursor_window" json:"cursor_window"`

	// MaxMisses is how many consecutive empty detections replay the last
	// good result before the subject is reported lost.
	MaxMisses int `yaml:"max_misses" json:"max_misses"`

	// TemplateCaptureRadius and InstanceCaptureRadius bound target
	// resolution, in pixels, for the template and instance pools.
	TemplateCaptureRadius float64 `yaml:"template_capture_radius" json:"template_capture_radius"`
	InstanceCaptureRadius float64 `yaml:"instance_capture_radius" json:"instance_capture_radius"`

	// ViewportWidth and ViewportHeight project normalized landmarks to pixels.
	ViewportWidth  float64 `yaml:"viewport_width" json:"viewport_width"`
	ViewportHeight float64 `yaml:"viewport_height" json:"viewport_height"`

	// MirrorX flips the X axis to match a mirrored selfie view.
	MirrorX bool `yaml:"mirror_x" json:"mirror_x"`

	// Alpha is the landmark smoothing factor.
	Alpha float64 `yaml:"alpha" json:"alpha"`
}

// DefaultThresholds returns the observed tuning values.
func DefaultThresholds() Thresholds {
	return Thresholds{
		ExtendedMargin:        0.035,
		PinchDistance:         60,
		PinchConfirmFrames:    2,
		DragCooldown:          500 * time.Millisecond,
		HoldDuration:          2000 * time.Millisecond,
		CursorMinMove:         5,
		CursorWindow:          5,
		MaxMisses:             tracking.DefaultMaxMisses,
		TemplateCaptureRadius: 300,
		InstanceCaptureRadius: 500,
		ViewportWidth:         640,
		ViewportHeight:        480,
		MirrorX:               true,
		Alpha:                 tracking.DefaultAlpha,
	}
}

// Validate reports the first out-of-range entry.
func (t Thresholds) Validate() error {
	switch {
	case t.ExtendedMargin < 0 || t.ExtendedMargin >= 1:
		return fmt.Errorf("extended_margin must be within [0,1), got %v", t.ExtendedMargin)
	case t.PinchDistance <= 0:
		return fmt.Errorf("pinch_distance must be positive, got %v", t.PinchDistance)
	case t.PinchConfirmFrames < 1:
		return fmt.Errorf("pinch_confirm_frames must be at least 1, got %d", t.PinchConfirmFrames)
	case t.DragCooldown < 0:
		return fmt.Errorf("drag_cooldown must not be negative, got %s", t.DragCooldown)
	case t.HoldDuration <= 0:
		return fmt.Errorf("hold_duration must be positive, got %s", t.HoldDuration)
	case t.CursorMinMove < 0:
		return fmt.Errorf("cursor_min_move must not be negative, got %v", t.CursorMinMove)
	case t.CursorWindow < 1:
		return fmt.Errorf("cursor_window must be at least 1, got %d", t.CursorWindow)
	case t.MaxMisses < 0:
		return fmt.Errorf("max_misses must not be negative, got %d", t.MaxMisses)
	case t.TemplateCaptureRadius <= 0 || t.InstanceCaptureRadius <= 0:
		return fmt.Errorf("capture radii must be positive")
	case t.ViewportWidth <= 0 || t.ViewportHeight <= 0:
		return fmt.Errorf("viewport must be positive, got %vx%v", t.ViewportWidth, t.ViewportHeight)
	case t.Alpha < 0 || t.Alpha >= 1:
		return fmt.Errorf("alpha must be within [0,1), got %v", t.Alpha)
	}
	return nil
}

// Point is a position in viewport pixels.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Project maps a normalized landmark into viewport pixels.
func (t Thresholds) Project(l detector.Landmark) Point {
	x := l.X
	if t.MirrorX {
		x = 1 - x
	}
	return Point{X: x * t.ViewportWidth, Y: l.Y * t.ViewportHeight}
}
