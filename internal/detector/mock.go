package detector

import (
	"context"
	"sync"
	"time"

	"github.com/sova-tungnv/web-ai/internal/frame"
)

// MockDetector is a test implementation of Model.
// It allows tests to control the detection results.
type MockDetector struct {
	mu            sync.Mutex
	script        []*Subject
	subject       *Subject
	err           error
	panicValue    any
	delay         time.Duration
	gate          chan struct{}
	calls         int
	concurrent    int
	maxConcurrent int
	timestamps    []int64
	closed        int
}

// NewMockDetector creates a new MockDetector that finds nothing.
func NewMockDetector() *MockDetector {
	return &MockDetector{}
}

// SetSubject sets the subject returned by every Detect call. nil means no subject.
func (m *MockDetector) SetSubject(s *Subject) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subject = s
}

// Script queues subjects returned by successive calls before falling back
// to the subject set with SetSubject. nil entries are misses.
func (m *MockDetector) Script(subjects ...*Subject) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = append(m.script, subjects...)
}

// SetError sets the error that will be returned by Detect.
func (m *MockDetector) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// SetPanic makes Detect panic with v.
func (m *MockDetector) SetPanic(v any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.panicValue = v
}

// SetDelay makes every call take at least d.
func (m *MockDetector) SetDelay(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
}

// Hold makes calls block until the returned function is called.
func (m *MockDetector) Hold() (release func()) {
	gate := make(chan struct{})
	m.mu.Lock()
	m.gate = gate
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			if m.gate == gate {
				m.gate = nil
			}
			m.mu.Unlock()
			close(gate)
		})
	}
}

// Detect returns the pre-configured subject or error.
func (m *MockDetector) Detect(ctx context.Context, f *frame.Frame) (*Result, error) {
	m.mu.Lock()
	m.calls++
	m.concurrent++
	if m.concurrent > m.maxConcurrent {
		m.maxConcurrent = m.concurrent
	}
	if f != nil {
		m.timestamps = append(m.timestamps, f.Timestamp)
	}
	gate, delay, err, pv := m.gate, m.delay, m.err, m.panicValue
	subject := m.subject
	if len(m.script) > 0 {
		subject = m.script[0]
		m.script = m.script[1:]
	}
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.concurrent--
		m.mu.Unlock()
	}()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if delay > 0 {
		time.Sleep(delay)
	}
	if pv != nil {
		panic(pv)
	}
	if err != nil {
		return nil, err
	}

	res := &Result{}
	if f != nil {
		res.Timestamp = f.Timestamp
	}
	res.Subject = subject
	return res, nil
}

// Close records the dispose call.
func (m *MockDetector) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed++
	return nil
}

// Calls returns the number of Detect calls.
func (m *MockDetector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// MaxConcurrent returns the highest number of overlapping Detect calls seen.
func (m *MockDetector) MaxConcurrent() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.maxConcurrent
}

// Timestamps returns the frame timestamps seen, in call order.
func (m *MockDetector) Timestamps() []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int64(nil), m.timestamps...)
}

// Closed returns the number of Close calls.
func (m *MockDetector) Closed() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Loader returns a Loader handing out m.
func (m *MockDetector) Loader() Loader {
	return func(ctx context.Context, cfg Config) (Model, error) {
		return m, nil
	}
}

// FailingLoader returns a Loader that always fails with err.
func FailingLoader(err error) Loader {
	return func(ctx context.Context, cfg Config) (Model, error) {
		return nil, err
	}
}

// HandShape describes a synthetic hand pose for tests and demos.
type HandShape struct {
	Index, Middle, Ring, Pinky bool

	// PinchGap places the thumb tip this far (normalized X) from the index
	// tip. Zero keeps the thumb extended away from the palm.
	PinchGap float64

	// OffsetX and OffsetY translate the whole hand.
	OffsetX, OffsetY float64
}

// Finger tip and MCP heights used by HandShape. An extended finger's tip is
// 0.25 above its MCP; a curled one sits 0.02 below it.
const (
	shapeMCPY      = 0.60
	shapeExtendedY = 0.35
	shapeCurledY   = 0.62
)

// Subject builds a right hand in the given shape.
func (s HandShape) Subject() *Subject {
	pts := make([]Landmark, HandLandmarks)

	pts[Wrist] = Landmark{X: 0.50, Y: 0.80}

	fingers := []struct {
		mcp      int
		x        float64
		extended bool
	}{
		{IndexMCP, 0.56, s.Index},
		{MiddleMCP, 0.50, s.Middle},
		{RingMCP, 0.44, s.Ring},
		{PinkyMCP, 0.38, s.Pinky},
	}
	for _, f := range fingers {
		tipY := shapeCurledY
		if f.extended {
			tipY = shapeExtendedY
		}
		pts[f.mcp] = Landmark{X: f.x, Y: shapeMCPY}
		pts[f.mcp+1] = Landmark{X: f.x, Y: shapeMCPY + (tipY-shapeMCPY)*0.4}
		pts[f.mcp+2] = Landmark{X: f.x, Y: shapeMCPY + (tipY-shapeMCPY)*0.7}
		pts[f.mcp+3] = Landmark{X: f.x, Y: tipY}
	}

	pts[ThumbCMC] = Landmark{X: 0.58, Y: 0.76}
	pts[ThumbMCP] = Landmark{X: 0.64, Y: 0.70}
	pts[ThumbIP] = Landmark{X: 0.70, Y: 0.66}
	pts[ThumbTip] = Landmark{X: 0.78, Y: 0.62}
	if s.PinchGap > 0 {
		tip := pts[IndexTip]
		pts[ThumbTip] = Landmark{X: tip.X + s.PinchGap, Y: tip.Y}
	}

	for i := range pts {
		pts[i].X += s.OffsetX
		pts[i].Y += s.OffsetY
		pts[i].Visibility = 0.99
		pts[i].Presence = 0.99
	}

	return &Subject{Landmarks: pts, Handedness: "Right", Score: 0.95}
}

// OpenPalm returns a hand with every finger extended.
func OpenPalm() *Subject {
	return HandShape{Index: true, Middle: true, Ring: true, Pinky: true}.Subject()
}

// Fist returns a hand with every finger curled.
func Fist() *Subject {
	return HandShape{}.Subject()
}

// Pointing returns a hand with only the index finger extended.
func Pointing() *Subject {
	return HandShape{Index: true}.Subject()
}

// TwoFingers returns a hand with index and middle fingers extended.
func TwoFingers() *Subject {
	return HandShape{Index: true, Middle: true}.Subject()
}

// Pinch returns a pointing hand with the thumb tip touching the index tip.
func Pinch() *Subject {
	return HandShape{Index: true, PinchGap: 0.01}.Subject()
}

// Face returns a synthetic face mesh centered in the frame.
func Face() *Subject {
	pts := make([]Landmark, FaceLandmarks)
	for i := range pts {
		pts[i] = Landmark{X: 0.5, Y: 0.5}
	}
	pts[FaceForehead] = Landmark{X: 0.5, Y: 0.30}
	pts[FaceNoseBridge] = Landmark{X: 0.5, Y: 0.45}
	pts[FaceNoseTip] = Landmark{X: 0.5, Y: 0.52}
	pts[FaceUpperLip] = Landmark{X: 0.5, Y: 0.60}
	pts[FaceLowerLip] = Landmark{X: 0.5, Y: 0.63}
	pts[FaceChin] = Landmark{X: 0.5, Y: 0.72}
	pts[FaceLeftEyeOuter] = Landmark{X: 0.40, Y: 0.44}
	pts[FaceRightEyeOuter] = Landmark{X: 0.60, Y: 0.44}
	return &Subject{Landmarks: pts, Score: 0.9}
}
