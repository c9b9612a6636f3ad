package tracking

import (
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sova-tungnv/web-ai/internal/detector"
)

func point(x, y float64) []detector.Landmark {
	return []detector.Landmark{{X: x, Y: y, Visibility: 0.9}}
}

func result(ts int64, s *detector.Subject) *detector.Result {
	return &detector.Result{Timestamp: ts, Subject: s}
}

func TestSmoother_SeedsOnFirstSet(t *testing.T) {
	s := NewSmoother(DefaultAlpha)
	assert.Nil(t, s.Current())

	out := s.Update(point(0.3, 0.7))
	require.Len(t, out, 1)
	assert.Equal(t, 0.3, out[0].X)
	assert.Equal(t, 0.7, out[0].Y)
}

func TestSmoother_Convergence(t *testing.T) {
	for _, m := range []int{1, 2, 5, 10, 30} {
		s := NewSmoother(DefaultAlpha)
		s.Update(point(0, 0))

		initial := 1.0
		prevErr := initial
		var out []detector.Landmark
		for i := 0; i < m; i++ {
			out = s.Update(point(1, 1))
			errNow := 1 - out[0].X
			assert.Less(t, errNow, prevErr, "error must shrink monotonically")
			prevErr = errNow
		}

		want := math.Pow(DefaultAlpha, float64(m)) * initial
		assert.InDelta(t, want, 1-out[0].X, 1e-9, "M=%d", m)
		assert.InDelta(t, want, 1-out[0].Y, 1e-9, "M=%d", m)
	}
}

func TestSmoother_ConfidencePassesThrough(t *testing.T) {
	s := NewSmoother(DefaultAlpha)
	s.Update([]detector.Landmark{{X: 0, Visibility: 0.2}})
	out := s.Update([]detector.Landmark{{X: 1, Visibility: 0.9}})
	assert.Equal(t, 0.9, out[0].Visibility)
}

func TestSmoother_ReseedOnShapeChangeAndReset(t *testing.T) {
	s := NewSmoother(DefaultAlpha)
	s.Update(point(0, 0))
	out := s.Update([]detector.Landmark{{X: 0.5}, {X: 0.6}})
	assert.Equal(t, 0.5, out[0].X)

	s.Reset()
	assert.Nil(t, s.Current())
	out = s.Update(point(0.9, 0.9))
	assert.Equal(t, 0.9, out[0].X)
}

func TestSmoother_ReturnsCopies(t *testing.T) {
	s := NewSmoother(DefaultAlpha)
	out := s.Update(point(0.2, 0.2))
	out[0].X = 42
	assert.Equal(t, 0.2, s.Current()[0].X)
}

func TestNewSmoother_InvalidAlpha(t *testing.T) {
	assert.Equal(t, DefaultAlpha, NewSmoother(-1).Alpha())
	assert.Equal(t, DefaultAlpha, NewSmoother(1).Alpha())
	assert.Equal(t, 0.5, NewSmoother(0.5).Alpha())
}

func TestMissBridge(t *testing.T) {
	hand := detector.OpenPalm()
	b := NewMissBridge(2)

	_, v := b.Observe(result(1, nil))
	assert.Equal(t, Absent, v)

	good := result(2, hand)
	used, v := b.Observe(good)
	assert.Equal(t, Fresh, v)
	assert.Same(t, good, used)

	used, v = b.Observe(result(3, nil))
	assert.Equal(t, Stale, v)
	assert.Same(t, good, used)

	used, v = b.Observe(result(4, nil))
	assert.Equal(t, Stale, v)
	assert.Same(t, good, used)

	used, v = b.Observe(result(5, nil))
	assert.Equal(t, Lost, v)
	assert.Nil(t, used)

	_, v = b.Observe(result(6, nil))
	assert.Equal(t, Absent, v, "loss is reported once")
}

func TestMissBridge_FreshResetsMissCount(t *testing.T) {
	b := NewMissBridge(2)
	b.Observe(result(1, detector.Fist()))
	b.Observe(result(2, nil))
	b.Observe(result(3, nil))
	assert.Equal(t, 2, b.Misses())

	_, v := b.Observe(result(4, detector.Fist()))
	assert.Equal(t, Fresh, v)
	assert.Equal(t, 0, b.Misses())

	_, v = b.Observe(result(5, nil))
	assert.Equal(t, Stale, v)
}

func TestMissBridge_ZeroBudget(t *testing.T) {
	b := NewMissBridge(0)
	b.Observe(result(1, detector.Fist()))
	_, v := b.Observe(result(2, nil))
	assert.Equal(t, Lost, v)
}

type recordingListener struct {
	mu        sync.Mutex
	snapshots []Snapshot
	lost      int
}

func (l *recordingListener) OnSnapshot(s Snapshot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.snapshots = append(l.snapshots, s)
}

func (l *recordingListener) OnLost() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lost++
}

func TestTracker_StaleThenLost(t *testing.T) {
	l := &recordingListener{}
	tr := NewTracker("face", DefaultAlpha, 2, l)

	snap, ok := tr.Update(result(10, detector.Face()))
	require.True(t, ok)
	assert.False(t, snap.Stale)
	assert.Len(t, snap.Smoothed, detector.FaceLandmarks)

	snap, ok = tr.Update(result(20, nil))
	require.True(t, ok)
	assert.True(t, snap.Stale)
	assert.Equal(t, int64(20), snap.Timestamp)

	tr.Update(result(30, nil))
	_, ok = tr.Update(result(40, nil))
	assert.False(t, ok)

	_, ok = tr.Last()
	assert.False(t, ok)

	assert.Len(t, l.snapshots, 3)
	assert.Equal(t, 1, l.lost)
}

func TestTracker_StaleDoesNotAdvanceSmoothing(t *testing.T) {
	tr := NewTracker("hand", DefaultAlpha, 2, nil)
	first, _ := tr.Update(result(1, detector.OpenPalm()))
	stale, _ := tr.Update(result(2, nil))
	assert.Equal(t, first.Smoothed, stale.Smoothed)
}

func TestTracker_MaskWithoutSubject(t *testing.T) {
	l := &recordingListener{}
	tr := NewTracker("hair", DefaultAlpha, 2, l)
	_, ok := tr.Update(&detector.Result{Timestamp: 5, Mask: []byte{1, 0, 1}})
	assert.False(t, ok)
	require.Len(t, l.snapshots, 1)
	assert.Equal(t, []byte{1, 0, 1}, l.snapshots[0].Mask)
}

func TestTracker_HandleFailureKeepsState(t *testing.T) {
	tr := NewTracker("face", DefaultAlpha, 2, nil)
	tr.Update(result(1, detector.Face()))
	tr.HandleFailure(assert.AnError)

	_, ok := tr.Last()
	assert.True(t, ok)
	assert.Equal(t, 1, tr.Failures())
}
