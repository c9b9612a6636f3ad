package gesture

import (
	"math"

	"github.com/sova-tungnv/web-ai/internal/detector"
)

// Pose is the per-frame classification of a hand.
type Pose string

const (
	PoseNone         Pose = "none"
	PoseFist         Pose = "fist"
	PoseOpenHand     Pose = "open_hand"
	PoseOneFingerUp  Pose = "one_finger_up"
	PoseTwoFingersUp Pose = "two_fingers_up"
	PoseOther        Pose = "other"
)

// FingerExtended reports whether tip sits above base by more than margin.
// Image Y grows downward.
func FingerExtended(tip, base detector.Landmark, margin float64) bool {
	return tip.Y < base.Y-margin
}

// Fingers records which of the four long fingers are extended.
type Fingers struct {
	Index, Middle, Ring, Pinky bool
}

// Count returns the number of extended fingers.
func (f Fingers) Count() int {
	n := 0
	for _, v := range []bool{f.Index, f.Middle, f.Ring, f.Pinky} {
		if v {
			n++
		}
	}
	return n
}

// ExtendedFingers evaluates the finger predicates on a hand, comparing each
// tip with its MCP joint.
func ExtendedFingers(hand *detector.Subject, margin float64) (Fingers, bool) {
	if hand == nil || len(hand.Landmarks) < detector.HandLandmarks {
		return Fingers{}, false
	}
	l := hand.Landmarks
	return Fingers{
		Index:  FingerExtended(l[detector.IndexTip], l[detector.IndexMCP], margin),
		Middle: FingerExtended(l[detector.MiddleTip], l[detector.MiddleMCP], margin),
		Ring:   FingerExtended(l[detector.RingTip], l[detector.RingMCP], margin),
		Pinky:  FingerExtended(l[detector.PinkyTip], l[detector.PinkyMCP], margin),
	}, true
}

// Classify maps a hand to a Pose using only the current landmarks.
func Classify(hand *detector.Subject, margin float64) Pose {
	f, ok := ExtendedFingers(hand, margin)
	if !ok {
		return PoseNone
	}
	switch {
	case f.Count() == 0:
		return PoseFist
	case f.Count() == 4:
		return PoseOpenHand
	case f.Index && f.Count() == 1:
		return PoseOneFingerUp
	case f.Index && f.Middle && f.Count() == 2:
		return PoseTwoFingersUp
	default:
		return PoseOther
	}
}

// PinchDistance returns the thumb tip to index tip distance in viewport pixels.
func PinchDistance(hand *detector.Subject, t Thresholds) (float64, bool) {
	thumb, ok1 := hand.At(detector.ThumbTip)
	index, ok2 := hand.At(detector.IndexTip)
	if !ok1 || !ok2 {
		return 0, false
	}
	return distance(t.Project(thumb), t.Project(index)), true
}

// PinchAnchor returns the midpoint of the thumb and index tips in viewport
// pixels.
func PinchAnchor(hand *detector.Subject, t Thresholds) (Point, bool) {
	thumb, ok1 := hand.At(detector.ThumbTip)
	index, ok2 := hand.At(detector.IndexTip)
	if !ok1 || !ok2 {
		return Point{}, false
	}
	a, b := t.Project(thumb), t.Project(index)
	return Point{X: (a.X + b.X) / 2, Y: (a.Y + b.Y) / 2}, true
}

func distance(a, b Point) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}
