package frame

import (
	"fmt"
	"sync/atomic"

	"gocv.io/x/gocv"
)

// MatBuffer is a Buffer backed by an OpenCV matrix, as produced by the camera.
type MatBuffer struct {
	mat gocv.Mat
}

// NewMatBuffer takes ownership of mat.
func NewMatBuffer(mat gocv.Mat) *MatBuffer {
	return &MatBuffer{mat: mat}
}

// FromMat wraps mat into a frame using the matrix dimensions.
func FromMat(mat gocv.Mat, timestamp int64) (*Frame, error) {
	if mat.Empty() {
		mat.Close()
		return nil, fmt.Errorf("%w: empty matrix", ErrInvalidFrame)
	}
	return New(mat.Cols(), mat.Rows(), timestamp, NewMatBuffer(mat))
}

// Encode returns the matrix as JPEG bytes.
func (b *MatBuffer) Encode() ([]byte, error) {
	buf, err := gocv.IMEncode(".jpg", b.mat)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	defer buf.Close()

	data := buf.GetBytes()
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// Clone copies the matrix.
func (b *MatBuffer) Clone() (Buffer, error) {
	return &MatBuffer{mat: b.mat.Clone()}, nil
}

// Mat returns the wrapped matrix. The buffer keeps ownership.
func (b *MatBuffer) Mat() *gocv.Mat {
	return &b.mat
}

// Close frees the matrix.
func (b *MatBuffer) Close() error {
	return b.mat.Close()
}

// RawBuffer is a Buffer holding already-encoded image bytes. It is used for
// replayed recordings and tests.
type RawBuffer struct {
	data   []byte
	closes *atomic.Int32
}

// NewRawBuffer wraps data. If closes is non-nil it is incremented on every Close.
func NewRawBuffer(data []byte, closes *atomic.Int32) *RawBuffer {
	return &RawBuffer{data: data, closes: closes}
}

// Encode returns the stored bytes.
func (b *RawBuffer) Encode() ([]byte, error) {
	return b.data, nil
}

// Clone returns a copy sharing the close counter.
func (b *RawBuffer) Clone() (Buffer, error) {
	data := make([]byte, len(b.data))
	copy(data, b.data)
	return &RawBuffer{data: data, closes: b.closes}, nil
}

// Close records the release.
func (b *RawBuffer) Close() error {
	if b.closes != nil {
		b.closes.Add(1)
	}
	return nil
}
