package capture

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"github.com/sova-tungnv/web-ai/internal/frame"
)

func solid(t *testing.T, level float64) gocv.Mat {
	t.Helper()
	m := gocv.NewMatWithSize(120, 160, gocv.MatTypeCV8UC3)
	if level > 0 {
		m.SetTo(gocv.NewScalar(level, level, level, 0))
	}
	t.Cleanup(func() { m.Close() })
	return m
}

func TestMotionDetector_Score(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	tests := []struct {
		name     string
		from, to float64
		min, max float64
	}{
		{"still scene", 0, 0, 0, 0},
		{"small grey shift", 100, 110, 0, 0},
		{"black to white", 0, 255, 50, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			md := NewMotionDetector(1.0)
			defer md.Close()

			assert.Zero(t, md.Score(solid(t, tt.from)), "first image only sets the baseline")
			score := md.Score(solid(t, tt.to))
			assert.GreaterOrEqual(t, score, tt.min)
			assert.LessOrEqual(t, score, tt.max)
		})
	}
}

func TestMotionDetector_ResetStartsOver(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	md := NewMotionDetector(1.0)
	defer md.Close()

	md.Score(solid(t, 0))
	md.Reset()
	assert.Zero(t, md.Score(solid(t, 255)), "first image after Reset is a new baseline")
	assert.Zero(t, md.Score(solid(t, 255)))
}

func TestMotionDetector_EmptyImage(t *testing.T) {
	md := NewMotionDetector(1.0)
	defer md.Close()

	empty := gocv.NewMat()
	defer empty.Close()
	assert.Zero(t, md.Score(empty))
}

func TestMotionDetector_CloseIsRepeatable(t *testing.T) {
	md := NewMotionDetector(1.0)
	md.Close()
	md.Close()
}

func TestMotionDetector_Moving(t *testing.T) {
	t.Run("raw frames always count as motion", func(t *testing.T) {
		md := NewMotionDetector(1.0)
		defer md.Close()

		f, err := frame.New(4, 4, 1, frame.NewRawBuffer([]byte{1}, nil))
		require.NoError(t, err)
		defer f.Release()
		assert.True(t, md.Moving(f))
	})

	t.Run("released frame", func(t *testing.T) {
		md := NewMotionDetector(1.0)
		defer md.Close()

		f, err := frame.New(4, 4, 1, frame.NewRawBuffer([]byte{1}, nil))
		require.NoError(t, err)
		f.Release()
		assert.True(t, md.Moving(f), "released frames never idle the stream")
	})

	t.Run("matrix frames compare against the baseline", func(t *testing.T) {
		if testing.Short() {
			t.Skip("skipping test that requires GoCV Mat creation")
		}
		md := NewMotionDetector(1.0)
		defer md.Close()

		for i, level := range []float64{0, 0, 255} {
			mat := gocv.NewMatWithSize(120, 160, gocv.MatTypeCV8UC3)
			if level > 0 {
				mat.SetTo(gocv.NewScalar(level, level, level, 0))
			}
			f, err := frame.FromMat(mat, int64(i+1))
			require.NoError(t, err)
			moving := md.Moving(f)
			f.Release()

			assert.Equal(t, i == 2, moving, "frame %d", i)
		}
	})
}
