package detector

import "math"

// Hand landmark indices following MediaPipe convention.
// See: https://developers.google.com/mediapipe/solutions/vision/hand_landmarker
const (
	Wrist         = 0
	ThumbCMC      = 1
	ThumbMCP      = 2
	ThumbIP       = 3
	ThumbTip      = 4
	IndexMCP      = 5
	IndexPIP      = 6
	IndexDIP      = 7
	IndexTip      = 8
	MiddleMCP     = 9
	MiddlePIP     = 10
	MiddleDIP     = 11
	MiddleTip     = 12
	RingMCP       = 13
	RingPIP       = 14
	RingDIP       = 15
	RingTip       = 16
	PinkyMCP      = 17
	PinkyPIP      = 18
	PinkyDIP      = 19
	PinkyTip      = 20
	HandLandmarks = 21
)

// Face mesh anchor indices used by the face tracker.
const (
	FaceForehead      = 10
	FaceNoseTip       = 1
	FaceUpperLip      = 13
	FaceLowerLip      = 14
	FaceLeftEyeOuter  = 33
	FaceChin          = 152
	FaceNoseBridge    = 168
	FaceRightEyeOuter = 263
	FaceLandmarks     = 478
)

// Pose landmark indices.
const (
	PoseNose          = 0
	PoseLeftShoulder  = 11
	PoseRightShoulder = 12
	PoseLeftWrist     = 15
	PoseRightWrist    = 16
	PoseLeftHip       = 23
	PoseRightHip      = 24
	PoseLandmarks     = 33
)

// Landmark is a normalized keypoint. X and Y are in [0,1] relative to the
// frame; Z is relative depth. Visibility and Presence are passed through from
// the model unmodified and are zero when the model does not report them.
type Landmark struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Z          float64 `json:"z"`
	Visibility float64 `json:"visibility,omitempty"`
	Presence   float64 `json:"presence,omitempty"`
}

// Distance2D returns the Euclidean distance between a and b in the image plane.
func Distance2D(a, b Landmark) float64 {
	dx := a.X - b.X
	dy := a.Y - b.Y
	return math.Sqrt(dx*dx + dy*dy)
}

// Subject is one detected hand, face or body.
type Subject struct {
	Landmarks  []Landmark `json:"landmarks"`
	Handedness string     `json:"handedness,omitempty"`
	Score      float64    `json:"score"`
}

// At returns the landmark at index i and whether it exists.
func (s *Subject) At(i int) (Landmark, bool) {
	if s == nil || i < 0 || i >= len(s.Landmarks) {
		return Landmark{}, false
	}
	return s.Landmarks[i], true
}

// Result is the output of one detection call. It holds zero or one subject.
// Results are never mutated after being returned.
type Result struct {
	Timestamp int64    `json:"timestamp"`
	Subject   *Subject `json:"subject,omitempty"`
	// Mask is the category mask returned by segmentation models.
	Mask []byte `json:"mask,omitempty"`
}

// Empty reports whether no subject was found.
func (r *Result) Empty() bool {
	return r == nil || r.Subject == nil || len(r.Subject.Landmarks) == 0
}
