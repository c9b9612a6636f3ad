package pipeline

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sova-tungnv/web-ai/internal/detector"
	"github.com/sova-tungnv/web-ai/internal/frame"
	"github.com/sova-tungnv/web-ai/internal/metrics"
	"github.com/sova-tungnv/web-ai/internal/queue"
)

type recordingConsumer struct {
	mu       sync.Mutex
	results  []*detector.Result
	failures []error
}

func (c *recordingConsumer) HandleResult(_ context.Context, res *detector.Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results = append(c.results, res)
}

func (c *recordingConsumer) HandleFailure(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures = append(c.failures, err)
}

func (c *recordingConsumer) timestamps() []int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	var ts []int64
	for _, r := range c.results {
		ts = append(ts, r.Timestamp)
	}
	return ts
}

func (c *recordingConsumer) failureCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.failures)
}

type recordingReporter struct {
	mu     sync.Mutex
	errs   []error
	source string
}

func (r *recordingReporter) ReportError(source string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.source = source
	r.errs = append(r.errs, err)
}

func testConfig() Config {
	cfg := HandConfig()
	cfg.Interval = 0
	cfg.IdleDelay = time.Millisecond
	cfg.QueueSize = 3
	return cfg
}

func rawFrame(t *testing.T, ts int64, closes *atomic.Int32) *frame.Frame {
	t.Helper()
	f, err := frame.New(640, 480, ts, frame.NewRawBuffer([]byte{1}, closes))
	require.NoError(t, err)
	return f
}

func TestPipeline_DispatchesFreshestFrame(t *testing.T) {
	mock := detector.NewMockDetector()
	consumer := &recordingConsumer{}
	p := New(testConfig(), mock.Loader(), consumer)
	defer p.Close()

	var closes atomic.Int32
	for ts := int64(1); ts <= 3; ts++ {
		p.Submit(rawFrame(t, ts, &closes))
	}

	d := p.Tick(time.Now())
	assert.False(t, d.Stop)
	p.Wait()

	assert.Equal(t, []int64{3}, mock.Timestamps())
	assert.Equal(t, []int64{3}, consumer.timestamps())
	assert.Equal(t, int32(3), closes.Load(), "superseded and processed frames are released")
}

func TestPipeline_SingleFlight(t *testing.T) {
	mock := detector.NewMockDetector()
	release := mock.Hold()
	p := New(testConfig(), mock.Loader(), &recordingConsumer{})
	defer p.Close()

	var closes atomic.Int32
	p.Submit(rawFrame(t, 1, &closes))
	p.Tick(time.Now())
	require.Eventually(t, p.Busy, time.Second, time.Millisecond)

	p.Submit(rawFrame(t, 2, &closes))
	d := p.Tick(time.Now())
	assert.Greater(t, d.Delay, time.Duration(0), "busy detector reschedules")
	assert.Equal(t, 1, mock.Calls(), "frame arriving mid-detection is not dispatched")

	release()
	p.Wait()

	p.Tick(time.Now())
	p.Wait()

	assert.Equal(t, 2, mock.Calls())
	assert.Equal(t, 1, mock.MaxConcurrent())
	assert.Equal(t, int32(2), closes.Load())
}

func TestPipeline_DropIncomingWhileBusy(t *testing.T) {
	mock := detector.NewMockDetector()
	release := mock.Hold()
	cfg := FaceConfig()
	cfg.Interval = 0
	p := New(cfg, mock.Loader(), &recordingConsumer{})
	defer p.Close()

	var closes atomic.Int32
	p.Submit(rawFrame(t, 1, &closes))
	p.Tick(time.Now())
	require.Eventually(t, p.Busy, time.Second, time.Millisecond)

	assert.Equal(t, queue.Queued, p.Submit(rawFrame(t, 2, &closes)))
	assert.Equal(t, queue.Dropped, p.Submit(rawFrame(t, 3, &closes)))
	assert.Equal(t, int32(1), closes.Load())

	release()
	p.Wait()
}

func TestPipeline_SkipsNonIncreasingTimestamps(t *testing.T) {
	mock := detector.NewMockDetector()
	p := New(testConfig(), mock.Loader(), &recordingConsumer{})
	defer p.Close()

	var closes atomic.Int32
	p.Submit(rawFrame(t, 10, &closes))
	p.Tick(time.Now())
	p.Wait()

	p.Submit(rawFrame(t, 10, &closes))
	d := p.Tick(time.Now())
	assert.Equal(t, time.Duration(0), d.Delay, "skipped frame reschedules immediately")

	p.Submit(rawFrame(t, 9, &closes))
	p.Tick(time.Now())
	p.Wait()

	assert.Equal(t, []int64{10}, mock.Timestamps())
	assert.Equal(t, uint64(2), p.Stats().Skipped)
	assert.Equal(t, int32(3), closes.Load())
}

func TestPipeline_Throttle(t *testing.T) {
	mock := detector.NewMockDetector()
	cfg := testConfig()
	cfg.Interval = 100 * time.Millisecond
	p := New(cfg, mock.Loader(), &recordingConsumer{})
	defer p.Close()

	now := time.Now()
	p.Submit(rawFrame(t, 1, nil))
	p.Tick(now)
	p.Wait()

	p.Submit(rawFrame(t, 2, nil))
	d := p.Tick(now.Add(10 * time.Millisecond))
	assert.Greater(t, d.Delay, time.Duration(0))
	assert.Equal(t, 1, mock.Calls())

	p.Tick(now.Add(150 * time.Millisecond))
	p.Wait()
	assert.Equal(t, 2, mock.Calls())
}

func TestPipeline_PerFrameErrorsAreNotFatal(t *testing.T) {
	mock := detector.NewMockDetector()
	mock.SetError(errors.New("gpu hiccup"))
	consumer := &recordingConsumer{}
	p := New(testConfig(), mock.Loader(), consumer)
	defer p.Close()

	var closes atomic.Int32
	p.Submit(rawFrame(t, 1, &closes))
	p.Tick(time.Now())
	p.Wait()

	assert.Equal(t, 1, consumer.failureCount())
	assert.Equal(t, int32(1), closes.Load(), "frame released on error")
	assert.False(t, p.Closed())

	mock.SetError(nil)
	mock.SetSubject(detector.OpenPalm())
	p.Submit(rawFrame(t, 2, &closes))
	p.Tick(time.Now())
	p.Wait()
	assert.Equal(t, []int64{2}, consumer.timestamps())
}

func TestPipeline_ModelLoadFailureIsReported(t *testing.T) {
	reporter := &recordingReporter{}
	m := metrics.New()
	p := New(testConfig(), detector.FailingLoader(errors.New("no gpu")), &recordingConsumer{},
		WithReporter(reporter), WithMetrics(m))

	var closes atomic.Int32
	p.Submit(rawFrame(t, 1, &closes))
	p.Submit(rawFrame(t, 2, &closes))
	p.Tick(time.Now())
	p.Wait()

	require.Len(t, reporter.errs, 1)
	assert.True(t, errors.Is(reporter.errs[0], detector.ErrModelLoad))
	assert.Equal(t, "hand", reporter.source)
	assert.True(t, p.Closed())
	assert.True(t, p.Tick(time.Now()).Stop)
	assert.Equal(t, int32(2), closes.Load())
}

func TestPipeline_CloseWithDetectionInFlight(t *testing.T) {
	mock := detector.NewMockDetector()
	mock.Hold()
	consumer := &recordingConsumer{}
	p := New(testConfig(), mock.Loader(), consumer)

	var closes atomic.Int32
	p.Submit(rawFrame(t, 1, &closes))
	p.Tick(time.Now())
	require.Eventually(t, p.Busy, time.Second, time.Millisecond)
	p.Submit(rawFrame(t, 2, &closes))

	require.NoError(t, p.Close())
	require.NoError(t, p.Close())
	p.Wait()

	assert.Empty(t, consumer.timestamps(), "late result is ignored")
	assert.Equal(t, 0, consumer.failureCount())
	assert.Equal(t, 1, mock.Closed())
	assert.Equal(t, int32(2), closes.Load())
	assert.Equal(t, uint64(1), p.Stats().Late)

	assert.Equal(t, queue.Rejected, p.Submit(rawFrame(t, 3, &closes)))
	assert.Equal(t, int32(3), closes.Load())
	assert.True(t, p.Tick(time.Now()).Stop)
}

func TestPipeline_Run(t *testing.T) {
	mock := detector.NewMockDetector()
	mock.SetSubject(detector.Pointing())
	consumer := &recordingConsumer{}
	p := New(testConfig(), mock.Loader(), consumer)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	for ts := int64(1); ts <= 5; ts++ {
		p.Submit(rawFrame(t, ts, nil))
		time.Sleep(5 * time.Millisecond)
	}

	require.Eventually(t, func() bool {
		ts := consumer.timestamps()
		return len(ts) > 0 && ts[len(ts)-1] == 5
	}, 2*time.Second, 5*time.Millisecond)

	ts := consumer.timestamps()
	for i := 1; i < len(ts); i++ {
		assert.Greater(t, ts[i], ts[i-1], "dispatched timestamps increase")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
	require.NoError(t, p.Close())
}

func TestPipeline_RunStopsOnClose(t *testing.T) {
	p := New(testConfig(), detector.NewMockDetector().Loader(), nil)

	done := make(chan error, 1)
	go func() { done <- p.Run(context.Background()) }()

	time.Sleep(10 * time.Millisecond)
	p.Close()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after Close")
	}
}

func TestConfig_Profiles(t *testing.T) {
	for _, kind := range []detector.ModelKind{detector.KindHand, detector.KindFace, detector.KindPose, detector.KindHairSegmentation} {
		cfg, err := ConfigFor(kind)
		require.NoError(t, err)
		assert.NoError(t, cfg.Validate(), kind)
		assert.Equal(t, kind, cfg.Detector.Kind)
	}

	assert.Equal(t, queue.ReplaceOldest, HandConfig().Policy)
	assert.Equal(t, 16*time.Millisecond, HandConfig().Interval)
	assert.Equal(t, queue.DropIncoming, FaceConfig().Policy)
	assert.Equal(t, 333*time.Millisecond, FaceConfig().Interval)

	_, err := ConfigFor("iris")
	assert.Error(t, err)

	bad := HandConfig()
	bad.QueueSize = 0
	assert.Error(t, bad.Validate())
}
