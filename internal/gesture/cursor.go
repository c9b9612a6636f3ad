package gesture

import movingaverage "github.com/RobinUS2/golang-moving-average"

// CursorFilter stabilizes the fingertip cursor. Positions are averaged over a
// short rolling window and only propagated when they move more than a
// minimum distance. While frozen the last propagated position is held.
type CursorFilter struct {
	window  int
	minMove float64

	xs, ys *movingaverage.MovingAverage

	last    Point
	hasLast bool
	frozen  bool
}

// NewCursorFilter creates a filter averaging over window samples.
func NewCursorFilter(window int, minMove float64) *CursorFilter {
	c := &CursorFilter{window: max(window, 1), minMove: minMove}
	c.Reset()
	return c
}

// Update adds a raw position. It returns the cursor position and whether it
// should be propagated. freeze holds the cursor at its last position.
func (c *CursorFilter) Update(raw Point, freeze bool) (Point, bool) {
	c.frozen = freeze
	if freeze {
		return c.last, false
	}

	c.xs.Add(raw.X)
	c.ys.Add(raw.Y)
	avg := Point{X: c.xs.Avg(), Y: c.ys.Avg()}

	if c.hasLast && distance(avg, c.last) <= c.minMove {
		return c.last, false
	}
	c.last, c.hasLast = avg, true
	return avg, true
}

// Position returns the last propagated position.
func (c *CursorFilter) Position() (Point, bool) {
	return c.last, c.hasLast
}

// Frozen reports whether the last update froze the cursor.
func (c *CursorFilter) Frozen() bool {
	return c.frozen
}

// Reset drops the history and the last position.
func (c *CursorFilter) Reset() {
	c.xs = movingaverage.New(c.window)
	c.ys = movingaverage.New(c.window)
	c.last, c.hasLast, c.frozen = Point{}, false, false
}
