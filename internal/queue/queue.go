// Package queue bounds the frames waiting for detection and throttles how
// often the pipeline may pull from it.
package queue

import (
	"fmt"
	"strings"
	"sync"

	"github.com/sova-tungnv/web-ai/internal/frame"
)

// Policy selects what happens when a frame arrives under backpressure.
type Policy int

const (
	// ReplaceOldest evicts the oldest queued frame when the queue is full.
	// It favors freshness.
	ReplaceOldest Policy = iota
	// DropIncoming drops the arriving frame while a detection is in flight
	// and the queue already holds a frame. It favors fewer GPU context
	// switches under sustained overload. Otherwise it behaves like ReplaceOldest.
	DropIncoming
)

func (p Policy) String() string {
	switch p {
	case ReplaceOldest:
		return "replace-oldest"
	case DropIncoming:
		return "drop-incoming"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

// ParsePolicy parses the names produced by Policy.String.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "replace-oldest", "":
		return ReplaceOldest, nil
	case "drop-incoming":
		return DropIncoming, nil
	default:
		return 0, fmt.Errorf("unknown queue policy %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (p Policy) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Policy) UnmarshalText(text []byte) error {
	v, err := ParsePolicy(string(text))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// Outcome reports what Enqueue did with a frame.
type Outcome int

const (
	// Queued means the frame was stored.
	Queued Outcome = iota
	// Evicted means the frame was stored after the oldest one was released.
	Evicted
	// Dropped means the incoming frame was released without being stored.
	Dropped
	// Rejected means the frame was invalid or the queue is closed.
	Rejected
)

func (o Outcome) String() string {
	switch o {
	case Queued:
		return "queued"
	case Evicted:
		return "evicted"
	case Dropped:
		return "dropped"
	case Rejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Stats is a snapshot of queue counters.
type Stats struct {
	Enqueued   uint64 `json:"enqueued"`
	Evicted    uint64 `json:"evicted"`
	Dropped    uint64 `json:"dropped"`
	Rejected   uint64 `json:"rejected"`
	Superseded uint64 `json:"superseded"`
	Dispatched uint64 `json:"dispatched"`
	Len        int    `json:"len"`
}

// Queue holds frames waiting for detection. It owns every frame it stores
// and releases frames it evicts, drops or supersedes.
type Queue struct {
	mu      sync.Mutex
	frames  []*frame.Frame
	maxSize int
	policy  Policy
	closed  bool
	stats   Stats
}

// New creates a queue holding at most maxSize frames (minimum 1).
func New(maxSize int, policy Policy) *Queue {
	if maxSize < 1 {
		maxSize = 1
	}
	return &Queue{
		frames:  make([]*frame.Frame, 0, maxSize),
		maxSize: maxSize,
		policy:  policy,
	}
}

// Enqueue hands f to the queue. busy reports whether a detection is in
// flight. Ownership of f passes to the queue in every case.
func (q *Queue) Enqueue(f *frame.Frame, busy bool) Outcome {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed || !f.Valid() {
		f.Release()
		q.stats.Rejected++
		return Rejected
	}

	if q.policy == DropIncoming && busy && len(q.frames) > 0 {
		f.Release()
		q.stats.Dropped++
		return Dropped
	}

	outcome := Queued
	for len(q.frames) >= q.maxSize {
		oldest := q.frames[0]
		q.frames[0] = nil
		q.frames = q.frames[1:]
		oldest.Release()
		q.stats.Evicted++
		outcome = Evicted
	}

	q.frames = append(q.frames, f)
	q.stats.Enqueued++
	return outcome
}

// DequeueLatest removes and returns the most recently enqueued frame. All
// older frames are released without being processed. Returns nil when empty.
func (q *Queue) DequeueLatest() *frame.Frame {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := len(q.frames)
	if n == 0 {
		return nil
	}

	latest := q.frames[n-1]
	for i := 0; i < n-1; i++ {
		q.frames[i].Release()
		q.stats.Superseded++
	}
	clear(q.frames)
	q.frames = q.frames[:0]
	q.stats.Dispatched++
	return latest
}

// Len returns the number of queued frames.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.frames)
}

// MaxSize returns the queue bound.
func (q *Queue) MaxSize() int {
	return q.maxSize
}

// Policy returns the backpressure policy.
func (q *Queue) Policy() Policy {
	return q.policy
}

// Stats returns a snapshot of the counters.
func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	s := q.stats
	s.Len = len(q.frames)
	return s
}

// Close releases every queued frame. Further enqueues are rejected.
// Safe to call more than once.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	for _, f := range q.frames {
		f.Release()
	}
	clear(q.frames)
	q.frames = q.frames[:0]
}
