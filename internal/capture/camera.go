// Package capture acquires webcam frames using GoCV (OpenCV) and shares the
// stream between detectors.
package capture

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"github.com/sova-tungnv/web-ai/internal/frame"
)

// Default camera settings
const (
	DefaultFPS    = 30
	DefaultWidth  = 640
	DefaultHeight = 480
)

var (
	// ErrCameraNotOpen is returned when trying to read from a camera that is not open.
	ErrCameraNotOpen = errors.New("camera is not open")
	// ErrCameraUnavailable wraps acquisition failures: no device, permission
	// denied or a device that cannot be opened. It is a session-level error.
	ErrCameraUnavailable = errors.New("camera unavailable")
	// ErrStreamStalled is returned once a stalled stream could not be
	// restarted.
	ErrStreamStalled = errors.New("video stream stalled")
)

// Constraints request a video stream. Audio is never captured.
type Constraints struct {
	DeviceID int `yaml:"device_id" json:"device_id"`
	Width    int `yaml:"width" json:"width"`
	Height   int `yaml:"height" json:"height"`
	FPS      int `yaml:"fps" json:"fps"`
}

// DefaultConstraints returns 640x480 at 30 fps on the first device.
func DefaultConstraints() Constraints {
	return Constraints{
		DeviceID: 0,
		Width:    DefaultWidth,
		Height:   DefaultHeight,
		FPS:      DefaultFPS,
	}
}

// Validate checks the requested geometry and rate.
func (c Constraints) Validate() error {
	if c.DeviceID < 0 {
		return fmt.Errorf("device_id must not be negative, got %d", c.DeviceID)
	}
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("invalid resolution %dx%d", c.Width, c.Height)
	}
	if c.FPS <= 0 {
		return fmt.Errorf("fps must be positive, got %d", c.FPS)
	}
	return nil
}

// Interval returns the time between two frames at the requested rate.
func (c Constraints) Interval() time.Duration {
	if c.FPS <= 0 {
		return time.Second / DefaultFPS
	}
	return time.Second / time.Duration(c.FPS)
}

// Camera defines the interface for camera capture implementations.
type Camera interface {
	Open() error
	Close() error
	// ReadFrame returns the next frame. The caller owns it.
	ReadFrame() (*frame.Frame, error)
	SetFPS(fps int)
	FPS() int
	IsOpen() bool
}

// OpenStream acquires the video stream of cam. Failures are wrapped in
// ErrCameraUnavailable.
func OpenStream(ctx context.Context, cam Camera) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := cam.Open(); err != nil {
		return fmt.Errorf("%w: %w", ErrCameraUnavailable, err)
	}
	return nil
}

// cameraImpl manages video capture from a camera device using GoCV.
type cameraImpl struct {
	constraints Constraints
	capture     *gocv.VideoCapture
	mu          sync.Mutex
	running     bool
	fps         int
}

// NewCamera creates a Camera honoring c.
func NewCamera(c Constraints) Camera {
	if c.FPS <= 0 {
		c.FPS = DefaultFPS
	}
	return &cameraImpl{
		constraints: c,
		fps:         c.FPS,
	}
}

// Open opens the camera for capturing frames at the requested resolution.
func (c *cameraImpl) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return nil
	}

	capture, err := gocv.OpenVideoCapture(c.constraints.DeviceID)
	if err != nil {
		return err
	}
	if !capture.IsOpened() {
		capture.Close()
		return fmt.Errorf("device %d could not be opened", c.constraints.DeviceID)
	}

	capture.Set(gocv.VideoCaptureFrameWidth, float64(c.constraints.Width))
	capture.Set(gocv.VideoCaptureFrameHeight, float64(c.constraints.Height))
	capture.Set(gocv.VideoCaptureFPS, float64(c.fps))

	c.capture = capture
	c.running = true

	return nil
}

// Close closes the camera and releases resources.
func (c *cameraImpl) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running || c.capture == nil {
		c.running = false
		return nil
	}

	err := c.capture.Close()
	c.capture = nil
	c.running = false

	return err
}

// ReadFrame reads a single frame from the camera, stamped with the wall
// clock in milliseconds.
func (c *cameraImpl) ReadFrame() (*frame.Frame, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running || c.capture == nil {
		return nil, ErrCameraNotOpen
	}

	mat := gocv.NewMat()
	if ok := c.capture.Read(&mat); !ok {
		mat.Close()
		return nil, errors.New("failed to read frame from camera")
	}

	return frame.FromMat(mat, time.Now().UnixMilli())
}

// SetFPS sets the frames per second for capture.
// Values less than or equal to 0 are ignored.
func (c *cameraImpl) SetFPS(fps int) {
	if fps <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.fps = fps

	if c.capture != nil {
		c.capture.Set(gocv.VideoCaptureFPS, float64(fps))
	}
}

// FPS returns the current frames per second setting.
func (c *cameraImpl) FPS() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.fps
}

// IsOpen returns true if the camera is currently open and running.
func (c *cameraImpl) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.running
}
