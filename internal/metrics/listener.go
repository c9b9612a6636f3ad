package metrics

import "github.com/sova-tungnv/web-ai/internal/gesture"

// Listener counts interpreter events. It implements gesture.Sink.
type Listener struct {
	m *Metrics
}

// NewListener creates a gesture sink recording into m.
func NewListener(m *Metrics) *Listener {
	return &Listener{m: m}
}

func (l *Listener) inc(t gesture.EventType, kind gesture.Kind) {
	if l.m == nil {
		return
	}
	l.m.gestureEvents.WithLabelValues(string(t), string(kind)).Inc()
}

func (l *Listener) OnCursorMoved(x, y float64) {
	l.inc(gesture.EventCursorMoved, "")
}

func (l *Listener) OnGestureChanged(kind gesture.Kind, progress float64) {
	l.inc(gesture.EventGestureChanged, kind)
}

func (l *Listener) OnDragStart(targetID string, x, y float64) {
	l.inc(gesture.EventDragStart, "")
}

func (l *Listener) OnDragMove(x, y float64) {
	l.inc(gesture.EventDragMove, "")
}

func (l *Listener) OnDragEnd(targetID string, x, y float64) {
	l.inc(gesture.EventDragEnd, "")
}

func (l *Listener) OnSubjectLost() {
	l.inc(gesture.EventSubjectLost, "")
}
