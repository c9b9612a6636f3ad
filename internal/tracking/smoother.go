// Package tracking stabilizes per-frame landmark detections across frames:
// exponential smoothing of positions and short-lived bridging of detection
// misses.
package tracking

import "github.com/sova-tungnv/web-ai/internal/detector"

// DefaultAlpha is the weight given to the previous smoothed position.
const DefaultAlpha = 0.8

// Smoother blends each landmark set with the previous smoothed one:
//
//	s[i] = alpha*prev[i] + (1-alpha)*cur[i]
//
// The first set after construction or Reset seeds the state unchanged.
// Visibility and presence are taken from the current set, never smoothed.
type Smoother struct {
	alpha float64
	prev  []detector.Landmark
}

// NewSmoother creates a smoother. alpha outside [0,1) falls back to
// DefaultAlpha.
func NewSmoother(alpha float64) *Smoother {
	if alpha < 0 || alpha >= 1 {
		alpha = DefaultAlpha
	}
	return &Smoother{alpha: alpha}
}

// Alpha returns the smoothing factor.
func (s *Smoother) Alpha() float64 {
	return s.alpha
}

// Update folds cur into the smoothed state and returns a copy of it.
// A set with a different landmark count reseeds the state.
func (s *Smoother) Update(cur []detector.Landmark) []detector.Landmark {
	if len(cur) == 0 {
		return nil
	}
	if len(s.prev) != len(cur) {
		s.prev = append(s.prev[:0], cur...)
		return s.Current()
	}

	a := s.alpha
	for i, c := range cur {
		p := s.prev[i]
		s.prev[i] = detector.Landmark{
			X:          a*p.X + (1-a)*c.X,
			Y:          a*p.Y + (1-a)*c.Y,
			Z:          a*p.Z + (1-a)*c.Z,
			Visibility: c.Visibility,
			Presence:   c.Presence,
		}
	}
	return s.Current()
}

// Current returns a copy of the smoothed set, or nil before the first update.
func (s *Smoother) Current() []detector.Landmark {
	if len(s.prev) == 0 {
		return nil
	}
	return append([]detector.Landmark(nil), s.prev...)
}

// Reset discards the smoothed state.
func (s *Smoother) Reset() {
	s.prev = s.prev[:0]
}
