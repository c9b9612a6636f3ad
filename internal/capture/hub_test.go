package capture

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sova-tungnv/web-ai/internal/frame"
	"github.com/sova-tungnv/web-ai/internal/queue"
)

// collector is a FrameSink that keeps the frames it receives.
type collector struct {
	mu     sync.Mutex
	frames []*frame.Frame
}

func (c *collector) Submit(f *frame.Frame) queue.Outcome {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = append(c.frames, f)
	return queue.Queued
}

func (c *collector) timestamps() []int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]int64, len(c.frames))
	for i, f := range c.frames {
		out[i] = f.Timestamp
	}
	return out
}

func (c *collector) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.frames)
}

func (c *collector) releaseAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, f := range c.frames {
		f.Release()
	}
}

func startedHub(t *testing.T, cam *MockCamera) *Hub {
	t.Helper()
	hub := NewHub(cam, DefaultConstraints())
	require.NoError(t, hub.Start(context.Background()))
	t.Cleanup(func() { hub.Stop() })
	return hub
}

func TestHub_FanOutClonesPerSubscriber(t *testing.T) {
	cam := NewMockCamera(640, 480, payloads(4), true)
	hub := startedHub(t, cam)

	hand, face := &collector{}, &collector{}
	hub.Subscribe("hand", hand)
	hub.Subscribe("face", face)

	now := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, hub.Step(now.Add(time.Duration(i)*33*time.Millisecond)))
	}

	require.Equal(t, 3, hand.count())
	require.Equal(t, 3, face.count())
	assert.Equal(t, hand.timestamps(), face.timestamps())

	// Originals are released after fan-out; clones stay with the subscribers.
	assert.Equal(t, 3, cam.Released())
	for i := range hand.frames {
		assert.NotSame(t, hand.frames[i], face.frames[i])
		assert.True(t, hand.frames[i].Valid())
	}

	hand.releaseAll()
	face.releaseAll()
	assert.Equal(t, 9, cam.Released())
}

func TestHub_TimestampsStrictlyIncrease(t *testing.T) {
	cam := NewMockCamera(4, 4, payloads(1), true)
	cam.SetStep(0)
	hub := startedHub(t, cam)

	sink := &collector{}
	hub.Subscribe("hand", sink)
	defer sink.releaseAll()

	for i := 0; i < 4; i++ {
		require.NoError(t, hub.Step(time.Now()))
	}

	ts := sink.timestamps()
	for i := 1; i < len(ts); i++ {
		assert.Greater(t, ts[i], ts[i-1], "timestamps %v", ts)
	}
}

func TestHub_Unsubscribe(t *testing.T) {
	cam := NewMockCamera(4, 4, payloads(1), true)
	hub := startedHub(t, cam)

	sink := &collector{}
	unsubscribe := hub.Subscribe("hand", sink)
	defer sink.releaseAll()

	require.NoError(t, hub.Step(time.Now()))
	unsubscribe()
	unsubscribe()
	require.NoError(t, hub.Step(time.Now()))

	assert.Equal(t, 1, sink.count())
	assert.Equal(t, 0, hub.Stats().Subscribers)
}

func TestHub_ReadErrorsAreCounted(t *testing.T) {
	cam := NewMockCamera(4, 4, payloads(1), true)
	hub := startedHub(t, cam)
	cam.Stall()

	assert.Error(t, hub.Step(time.Now()))
	assert.Equal(t, uint64(1), hub.Stats().ReadErrors)
	assert.True(t, hub.LastFrameAt().IsZero())
}

func TestHub_StartFailure(t *testing.T) {
	cam := NewMockCamera(4, 4, payloads(1), true)
	cam.FailOpen(errors.New("permission denied"))
	hub := NewHub(cam, DefaultConstraints())

	err := hub.Start(context.Background())
	assert.ErrorIs(t, err, ErrCameraUnavailable)
	assert.False(t, hub.Stats().Open)
}

func TestHub_StopIsIdempotent(t *testing.T) {
	cam := NewMockCamera(4, 4, payloads(1), true)
	hub := NewHub(cam, DefaultConstraints())
	require.NoError(t, hub.Start(context.Background()))

	assert.NoError(t, hub.Stop())
	assert.NoError(t, hub.Stop())
	assert.False(t, cam.IsOpen())
	assert.ErrorIs(t, hub.Step(time.Now()), ErrCameraNotOpen)
}

func TestHub_RunDeliversFrames(t *testing.T) {
	cam := NewMockCamera(4, 4, payloads(2), true)
	hub := NewHub(cam, Constraints{Width: 4, Height: 4, FPS: 200})
	require.NoError(t, hub.Start(context.Background()))

	sink := &collector{}
	hub.Subscribe("hand", sink)
	defer sink.releaseAll()

	done := make(chan error, 1)
	go func() { done <- hub.Run(context.Background()) }()

	require.Eventually(t, func() bool { return sink.count() >= 3 }, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, hub.Stop())

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after Stop")
	}
	assert.False(t, hub.LastFrameAt().IsZero())
}

func TestHub_RestartResetsLastFrame(t *testing.T) {
	cam := NewMockCamera(4, 4, payloads(1), true)
	hub := startedHub(t, cam)

	require.NoError(t, hub.Step(time.Now()))
	require.False(t, hub.LastFrameAt().IsZero())

	require.NoError(t, hub.Restart(context.Background()))
	assert.True(t, hub.LastFrameAt().IsZero())
	assert.Equal(t, 2, cam.Opens())
	assert.False(t, hub.OpenedAt().IsZero())
}

func TestWatchdog_WaitReady(t *testing.T) {
	cfg := WatchdogConfig{StallAfter: time.Second, Retries: 3, Backoff: 5 * time.Millisecond}

	t.Run("ready after first frame", func(t *testing.T) {
		cam := NewMockCamera(4, 4, payloads(1), true)
		hub := startedHub(t, cam)
		require.NoError(t, hub.Step(time.Now()))

		assert.NoError(t, NewWatchdog(hub, cfg, nil).WaitReady(context.Background()))
	})

	t.Run("gives up after retries", func(t *testing.T) {
		cam := NewMockCamera(4, 4, payloads(1), true)
		hub := startedHub(t, cam)

		err := NewWatchdog(hub, cfg, nil).WaitReady(context.Background())
		assert.ErrorIs(t, err, ErrStreamStalled)
	})

	t.Run("canceled", func(t *testing.T) {
		cam := NewMockCamera(4, 4, payloads(1), true)
		hub := startedHub(t, cam)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := NewWatchdog(hub, WatchdogConfig{StallAfter: time.Second, Retries: 5, Backoff: time.Hour}, nil).WaitReady(ctx)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestWatchdog_RestartsThenReports(t *testing.T) {
	cam := NewMockCamera(4, 4, payloads(1), true)
	hub := startedHub(t, cam)
	require.NoError(t, hub.Step(time.Now()))

	var (
		mu       sync.Mutex
		reported []error
	)
	wd := NewWatchdog(hub, WatchdogConfig{StallAfter: 20 * time.Millisecond, Retries: 1, Backoff: 10 * time.Millisecond}, func(err error) {
		mu.Lock()
		reported = append(reported, err)
		mu.Unlock()
	})

	// No frames are stepped, so the restart cannot help.
	err := wd.Run(context.Background())
	assert.ErrorIs(t, err, ErrStreamStalled)
	assert.Equal(t, 2, cam.Opens(), "stream should be restarted exactly once")

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, reported, 1)
	assert.ErrorIs(t, reported[0], ErrStreamStalled)
}

func TestWatchdog_RestartFailureReported(t *testing.T) {
	cam := NewMockCamera(4, 4, payloads(1), true)
	hub := startedHub(t, cam)
	require.NoError(t, hub.Step(time.Now()))
	cam.FailOpen(errors.New("device gone"))

	var got error
	wd := NewWatchdog(hub, WatchdogConfig{StallAfter: 10 * time.Millisecond, Retries: 1, Backoff: 5 * time.Millisecond}, func(err error) { got = err })

	err := wd.Run(context.Background())
	assert.ErrorIs(t, err, ErrCameraUnavailable)
	assert.ErrorIs(t, got, ErrCameraUnavailable)
}

func TestWatchdogConfig_Validate(t *testing.T) {
	assert.NoError(t, DefaultWatchdogConfig().Validate())
	assert.Error(t, WatchdogConfig{StallAfter: 0, Backoff: time.Second}.Validate())
	assert.Error(t, WatchdogConfig{StallAfter: time.Second}.Validate())
	assert.Error(t, WatchdogConfig{StallAfter: time.Second, Backoff: time.Second, Retries: -1}.Validate())
}
