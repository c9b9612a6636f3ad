package tracking

import "github.com/sova-tungnv/web-ai/internal/detector"

// DefaultMaxMisses is how many consecutive misses are bridged with the last
// good result.
const DefaultMaxMisses = 2

// Verdict classifies one observation made by a MissBridge.
type Verdict int

const (
	// Absent means there is no subject and none was being tracked.
	Absent Verdict = iota
	// Fresh means the observation carried a subject.
	Fresh
	// Stale means the observation missed and the last good result is replayed.
	Stale
	// Lost means the miss budget ran out. It is reported once per loss.
	Lost
)

func (v Verdict) String() string {
	switch v {
	case Fresh:
		return "fresh"
	case Stale:
		return "stale"
	case Lost:
		return "lost"
	default:
		return "absent"
	}
}

// MissBridge replays the last good result across a bounded number of
// consecutive detection misses to ride out transient occlusion.
type MissBridge struct {
	maxMisses int
	last      *detector.Result
	misses    int
}

// NewMissBridge creates a bridge. A negative maxMisses is treated as zero.
func NewMissBridge(maxMisses int) *MissBridge {
	return &MissBridge{maxMisses: max(maxMisses, 0)}
}

// Observe classifies res and returns the result consumers should use: res
// itself when fresh, the cached result when stale, nil otherwise.
func (b *MissBridge) Observe(res *detector.Result) (*detector.Result, Verdict) {
	if !res.Empty() {
		b.last = res
		b.misses = 0
		return res, Fresh
	}
	if b.last == nil {
		return nil, Absent
	}

	b.misses++
	if b.misses <= b.maxMisses {
		return b.last, Stale
	}

	b.last = nil
	b.misses = 0
	return nil, Lost
}

// Misses returns the current run of consecutive misses.
func (b *MissBridge) Misses() int {
	return b.misses
}

// Reset forgets the cached result without reporting a loss.
func (b *MissBridge) Reset() {
	b.last = nil
	b.misses = 0
}
