package capture

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/sova-tungnv/web-ai/internal/frame"
)

// ErrNoMoreFrames is returned by a non-looping MockCamera after its last frame.
var ErrNoMoreFrames = errors.New("no more frames")

// MockCamera plays back encoded frames for testing. Frames are stamped with a
// counter so timestamps are deterministic.
type MockCamera struct {
	width, height int
	payloads      [][]byte
	loop          bool

	mu         sync.Mutex
	index      int
	running    bool
	fps        int
	openErr    error
	stalled    bool
	broken     bool
	opens      int
	clock      int64
	stepMillis int64

	released atomic.Int32
}

// NewMockCamera creates a camera replaying payloads as width x height frames.
func NewMockCamera(width, height int, payloads [][]byte, loop bool) *MockCamera {
	return &MockCamera{
		width:      width,
		height:     height,
		payloads:   payloads,
		loop:       loop,
		fps:        DefaultFPS,
		stepMillis: 33,
	}
}

func (c *MockCamera) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.opens++
	if c.openErr != nil {
		return c.openErr
	}
	c.running = true
	c.stalled = c.broken
	c.index = 0
	return nil
}

func (c *MockCamera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.running = false
	return nil
}

func (c *MockCamera) ReadFrame() (*frame.Frame, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		return nil, ErrCameraNotOpen
	}
	if c.stalled {
		return nil, fmt.Errorf("device stopped delivering frames")
	}
	if len(c.payloads) == 0 {
		return nil, fmt.Errorf("no frames available")
	}

	if c.index >= len(c.payloads) {
		if !c.loop {
			return nil, ErrNoMoreFrames
		}
		c.index = 0
	}

	data := c.payloads[c.index]
	c.index++
	c.clock += c.stepMillis

	return frame.New(c.width, c.height, c.clock, frame.NewRawBuffer(data, &c.released))
}

func (c *MockCamera) SetFPS(fps int) {
	if fps <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fps = fps
}

func (c *MockCamera) FPS() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fps
}

func (c *MockCamera) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// FailOpen makes subsequent Open calls fail with err. nil clears it.
func (c *MockCamera) FailOpen(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.openErr = err
}

// Stall makes reads fail until the camera is reopened.
func (c *MockCamera) Stall() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stalled = true
}

// Break makes reads fail for good. Reopening does not help.
func (c *MockCamera) Break() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stalled = true
	c.broken = true
}

// SetStep sets the timestamp increment between frames. Zero or negative
// steps produce repeated or regressing timestamps.
func (c *MockCamera) SetStep(ms int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stepMillis = ms
}

// Opens returns how many times Open was called.
func (c *MockCamera) Opens() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.opens
}

// Released returns how many frame buffers produced by the camera were freed.
func (c *MockCamera) Released() int {
	return int(c.released.Load())
}
