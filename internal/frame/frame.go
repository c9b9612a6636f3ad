// Package frame defines the camera frame handed through the detection pipeline
// and its single-owner release semantics.
package frame

import (
	"errors"
	"fmt"
	"sync/atomic"
)

var (
	// ErrInvalidFrame is returned for frames with non-positive dimensions or no pixel data.
	ErrInvalidFrame = errors.New("invalid frame")
	// ErrReleased is returned when reading from a frame that has already been released.
	ErrReleased = errors.New("frame already released")
)

// Buffer is the pixel storage behind a frame.
type Buffer interface {
	// Encode returns the image as JPEG bytes.
	Encode() ([]byte, error)
	// Clone returns an independent copy that must be closed separately.
	Clone() (Buffer, error)
	// Close frees the backing memory.
	Close() error
}

// Frame is a single captured image with its capture timestamp in milliseconds.
//
// A frame has exactly one owner at a time. The owner must call Release once
// it is done with the frame, whether or not it was processed.
type Frame struct {
	Width     int
	Height    int
	Timestamp int64

	buf      Buffer
	released atomic.Bool
}

// New wraps buf into a frame. Frames with non-positive dimensions or a nil
// buffer are rejected and their buffer is closed immediately.
func New(width, height int, timestamp int64, buf Buffer) (*Frame, error) {
	if width <= 0 || height <= 0 || buf == nil {
		if buf != nil {
			buf.Close()
		}
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidFrame, width, height)
	}
	return &Frame{
		Width:     width,
		Height:    height,
		Timestamp: timestamp,
		buf:       buf,
	}, nil
}

// Valid reports whether the frame can still be handed to a detector.
func (f *Frame) Valid() bool {
	return f != nil && f.Width > 0 && f.Height > 0 && f.buf != nil && !f.released.Load()
}

// Encode returns the frame as JPEG bytes.
func (f *Frame) Encode() ([]byte, error) {
	if f == nil || f.buf == nil {
		return nil, ErrInvalidFrame
	}
	if f.released.Load() {
		return nil, ErrReleased
	}
	return f.buf.Encode()
}

// Buffer exposes the underlying buffer. It returns nil once the frame is released.
func (f *Frame) Buffer() Buffer {
	if f == nil || f.released.Load() {
		return nil
	}
	return f.buf
}

// Clone returns an independent frame stamped with timestamp.
func (f *Frame) Clone(timestamp int64) (*Frame, error) {
	if !f.Valid() {
		return nil, ErrInvalidFrame
	}
	buf, err := f.buf.Clone()
	if err != nil {
		return nil, fmt.Errorf("clone buffer: %w", err)
	}
	return New(f.Width, f.Height, timestamp, buf)
}

// Release frees the frame's buffer. Only the first call has an effect; it
// returns true when this call performed the release.
func (f *Frame) Release() bool {
	if f == nil {
		return false
	}
	if !f.released.CompareAndSwap(false, true) {
		return false
	}
	if f.buf != nil {
		f.buf.Close()
	}
	return true
}

// Released reports whether Release has been called.
func (f *Frame) Released() bool {
	return f != nil && f.released.Load()
}
