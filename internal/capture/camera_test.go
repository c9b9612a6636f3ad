package capture

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestNewCamera(t *testing.T) {
	tests := []struct {
		name    string
		c       Constraints
		wantFPS int
	}{
		{"defaults", DefaultConstraints(), DefaultFPS},
		{"device 1 at 15 fps", Constraints{DeviceID: 1, Width: 320, Height: 240, FPS: 15}, 15},
		{"zero fps falls back", Constraints{Width: 640, Height: 480}, DefaultFPS},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cam := NewCamera(tt.c)
			if cam == nil {
				t.Fatal("NewCamera returned nil")
			}
			if got := cam.FPS(); got != tt.wantFPS {
				t.Errorf("FPS() = %d, want %d", got, tt.wantFPS)
			}
			if cam.IsOpen() {
				t.Error("camera should not be running initially")
			}
		})
	}
}

func TestCamera_SetFPS(t *testing.T) {
	cam := NewCamera(DefaultConstraints())

	tests := []struct {
		name    string
		fps     int
		wantFPS int
	}{
		{"set to 10", 10, 10},
		{"set to 1", 1, 1},
		{"zero keeps previous", 0, 1},
		{"negative keeps previous", -5, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cam.SetFPS(tt.fps)
			if got := cam.FPS(); got != tt.wantFPS {
				t.Errorf("FPS() = %d, want %d", got, tt.wantFPS)
			}
		})
	}
}

func TestCamera_ReadBeforeOpen(t *testing.T) {
	cam := NewCamera(DefaultConstraints())
	if _, err := cam.ReadFrame(); !errors.Is(err, ErrCameraNotOpen) {
		t.Errorf("expected ErrCameraNotOpen, got %v", err)
	}
	if err := cam.Close(); err != nil {
		t.Errorf("Close() on unopened camera: %v", err)
	}
}

func TestConstraints_Validate(t *testing.T) {
	tests := []struct {
		name    string
		c       Constraints
		wantErr bool
	}{
		{"defaults", DefaultConstraints(), false},
		{"negative device", Constraints{DeviceID: -1, Width: 640, Height: 480, FPS: 30}, true},
		{"zero width", Constraints{Width: 0, Height: 480, FPS: 30}, true},
		{"zero fps", Constraints{Width: 640, Height: 480}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.c.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConstraints_Interval(t *testing.T) {
	if got := (Constraints{FPS: 30}).Interval(); got != time.Second/30 {
		t.Errorf("Interval() = %s", got)
	}
	if got := (Constraints{}).Interval(); got != time.Second/DefaultFPS {
		t.Errorf("Interval() without fps = %s", got)
	}
}

func TestOpenStream_WrapsFailure(t *testing.T) {
	cam := NewMockCamera(4, 4, [][]byte{{1}}, true)
	cam.FailOpen(errors.New("permission denied"))

	err := OpenStream(context.Background(), cam)
	if !errors.Is(err, ErrCameraUnavailable) {
		t.Errorf("expected ErrCameraUnavailable, got %v", err)
	}
}

func TestOpenStream_CanceledContext(t *testing.T) {
	cam := NewMockCamera(4, 4, [][]byte{{1}}, true)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := OpenStream(ctx, cam); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if cam.Opens() != 0 {
		t.Error("camera should not be opened with a canceled context")
	}
}

func TestCamera_OpenClose_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	cam := NewCamera(DefaultConstraints())
	if err := cam.Open(); err != nil {
		t.Skipf("skipping test - camera not available: %v", err)
	}
	defer cam.Close()

	if !cam.IsOpen() {
		t.Error("IsOpen() should return true after Open()")
	}

	f, err := cam.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame() failed: %v", err)
	}
	defer f.Release()

	if f.Width != DefaultWidth || f.Height != DefaultHeight {
		t.Logf("frame dimensions %dx%d, camera may not support 640x480", f.Width, f.Height)
	}
	if f.Timestamp <= 0 {
		t.Errorf("expected wall clock timestamp, got %d", f.Timestamp)
	}
}
