package capture

import (
	"image"
	"sync"

	"gocv.io/x/gocv"

	"github.com/sova-tungnv/web-ai/internal/frame"
)

const (
	motionBlurKernel = 21
	// motionPixelDelta is the grey level change that marks a pixel as changed.
	motionPixelDelta = 25
)

// MotionDetector scores how much of the scene changed between consecutive
// frames by differencing blurred greyscale images. The hub uses it to drop to
// an idle capture rate while the scene is still.
type MotionDetector struct {
	// threshold is the percentage of changed pixels that counts as motion.
	threshold float64

	mu          sync.Mutex
	baseline    gocv.Mat
	hasBaseline bool
}

// NewMotionDetector creates a detector reporting motion once more than
// thresholdPercent of the pixels changed.
func NewMotionDetector(thresholdPercent float64) *MotionDetector {
	return &MotionDetector{
		threshold: thresholdPercent,
		baseline:  gocv.NewMat(),
	}
}

// Score returns the percentage of pixels that changed since the previous
// scored image. The first image after a reset only becomes the baseline and
// scores 0.
func (m *MotionDetector) Score(img gocv.Mat) float64 {
	if img.Empty() {
		return 0
	}

	gray := gocv.NewMat()
	defer gray.Close()
	if img.Channels() > 1 {
		gocv.CvtColor(img, &gray, gocv.ColorBGRToGray)
	} else {
		img.CopyTo(&gray)
	}

	blurred := gocv.NewMat()
	gocv.GaussianBlur(gray, &blurred, image.Point{X: motionBlurKernel, Y: motionBlurKernel}, 0, 0, gocv.BorderDefault)

	m.mu.Lock()
	defer m.mu.Unlock()

	previous := m.baseline
	m.baseline = blurred
	if !m.hasBaseline {
		m.hasBaseline = true
		previous.Close()
		return 0
	}
	defer previous.Close()

	diff := gocv.NewMat()
	defer diff.Close()
	gocv.AbsDiff(blurred, previous, &diff)
	gocv.Threshold(diff, &diff, motionPixelDelta, 255, gocv.ThresholdBinary)

	total := diff.Rows() * diff.Cols()
	if total == 0 {
		return 0
	}
	return float64(gocv.CountNonZero(diff)) / float64(total) * 100
}

// Moving reports whether f changed more than the threshold since the
// previous frame. Frames that carry no matrix, including released ones,
// count as moving so they never idle the stream.
func (m *MotionDetector) Moving(f *frame.Frame) bool {
	mb, ok := f.Buffer().(*frame.MatBuffer)
	if !ok {
		return true
	}
	mat := mb.Mat()
	if mat == nil {
		return true
	}
	return m.Score(*mat) > m.threshold
}

// Reset drops the baseline; the next frame starts a new comparison.
func (m *MotionDetector) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.baseline.Close()
	m.baseline = gocv.NewMat()
	m.hasBaseline = false
}

// Close releases the baseline. The detector stays usable and starts over.
func (m *MotionDetector) Close() {
	m.Reset()
}
