package gesture

import (
	"sync"
	"time"
)

// Kind is the interpreter state reported to sinks.
type Kind string

const (
	KindNoSubject       Kind = "no_subject"
	KindNeutral         Kind = "neutral"
	KindPinch           Kind = "pinch"
	KindFist            Kind = "fist"
	KindOpenHand        Kind = "open_hand"
	KindMultiFingerHold Kind = "multi_finger_hold"
	KindDragging        Kind = "dragging"
	// KindModeSwitch is only emitted as an event, when a hold completes.
	KindModeSwitch Kind = "mode_switch"
)

// Sink receives interpreter events. Calls are made from the goroutine that
// feeds the interpreter, in state order and never while the state lock is
// held.
type Sink interface {
	OnCursorMoved(x, y float64)
	OnGestureChanged(kind Kind, progress float64)
	OnDragStart(targetID string, x, y float64)
	OnDragMove(x, y float64)
	OnDragEnd(targetID string, x, y float64)
	OnSubjectLost()
}

// DragObserver is implemented by sinks that want the full session record when
// a drag finishes.
type DragObserver interface {
	OnDragFinished(DragSession)
}

// StaleObserver is implemented by sinks that want to know when results are
// being bridged from a cached detection, so they can hold rendering.
type StaleObserver interface {
	OnStale(stale bool)
}

// EndReason says why a drag session ended.
type EndReason string

const (
	EndReleased EndReason = "released"
	EndLost     EndReason = "lost"
	EndClosed   EndReason = "closed"
)

// DragSession is the record of one pinch drag. At most one exists at a time.
type DragSession struct {
	ID           string    `json:"id"`
	TargetID     string    `json:"target_id"`
	FromTemplate bool      `json:"from_template"`
	Start        Point     `json:"start"`
	Current      Point     `json:"current"`
	StartedAt    time.Time `json:"started_at"`
	EndedAt      time.Time `json:"ended_at,omitzero"`
	EndReason    EndReason `json:"end_reason,omitempty"`
	// InstanceID is the instance created when a template drag is dropped.
	InstanceID string `json:"instance_id,omitempty"`
}

// EventType names a Sink callback.
type EventType string

const (
	EventCursorMoved    EventType = "cursor_moved"
	EventGestureChanged EventType = "gesture_changed"
	EventDragStart      EventType = "drag_start"
	EventDragMove       EventType = "drag_move"
	EventDragEnd        EventType = "drag_end"
	EventSubjectLost    EventType = "subject_lost"
	// EventStale only reaches StaleObserver sinks.
	EventStale EventType = "stale"
)

// Event is a Sink callback captured as a value.
type Event struct {
	Type     EventType `json:"type"`
	Kind     Kind      `json:"kind,omitempty"`
	Progress float64   `json:"progress,omitempty"`
	TargetID string    `json:"target_id,omitempty"`
	X        float64   `json:"x"`
	Y        float64   `json:"y"`
	Stale    bool      `json:"stale,omitempty"`

	session *DragSession
}

// Apply replays the event on s.
func (e Event) Apply(s Sink) {
	switch e.Type {
	case EventCursorMoved:
		s.OnCursorMoved(e.X, e.Y)
	case EventGestureChanged:
		s.OnGestureChanged(e.Kind, e.Progress)
	case EventDragStart:
		s.OnDragStart(e.TargetID, e.X, e.Y)
	case EventDragMove:
		s.OnDragMove(e.X, e.Y)
	case EventDragEnd:
		s.OnDragEnd(e.TargetID, e.X, e.Y)
		if o, ok := s.(DragObserver); ok && e.session != nil {
			o.OnDragFinished(*e.session)
		}
	case EventSubjectLost:
		s.OnSubjectLost()
	case EventStale:
		if o, ok := s.(StaleObserver); ok {
			o.OnStale(e.Stale)
		}
	}
}

// Sinks fans events out to every member in order.
type Sinks []Sink

func (s Sinks) OnCursorMoved(x, y float64) {
	for _, sink := range s {
		sink.OnCursorMoved(x, y)
	}
}

func (s Sinks) OnGestureChanged(kind Kind, progress float64) {
	for _, sink := range s {
		sink.OnGestureChanged(kind, progress)
	}
}

func (s Sinks) OnDragStart(targetID string, x, y float64) {
	for _, sink := range s {
		sink.OnDragStart(targetID, x, y)
	}
}

func (s Sinks) OnDragMove(x, y float64) {
	for _, sink := range s {
		sink.OnDragMove(x, y)
	}
}

func (s Sinks) OnDragEnd(targetID string, x, y float64) {
	for _, sink := range s {
		sink.OnDragEnd(targetID, x, y)
	}
}

func (s Sinks) OnSubjectLost() {
	for _, sink := range s {
		sink.OnSubjectLost()
	}
}

// OnDragFinished forwards the session to members implementing DragObserver.
func (s Sinks) OnDragFinished(d DragSession) {
	for _, sink := range s {
		if o, ok := sink.(DragObserver); ok {
			o.OnDragFinished(d)
		}
	}
}

// OnStale forwards staleness to members implementing StaleObserver.
func (s Sinks) OnStale(stale bool) {
	for _, sink := range s {
		if o, ok := sink.(StaleObserver); ok {
			o.OnStale(stale)
		}
	}
}

// NopSink ignores every event. Embed it to implement part of Sink.
type NopSink struct{}

func (NopSink) OnCursorMoved(x, y float64)                   {}
func (NopSink) OnGestureChanged(kind Kind, progress float64) {}
func (NopSink) OnDragStart(targetID string, x, y float64)    {}
func (NopSink) OnDragMove(x, y float64)                      {}
func (NopSink) OnDragEnd(targetID string, x, y float64)      {}
func (NopSink) OnSubjectLost()                               {}

// Recorder is a Sink that keeps every event. It is safe for concurrent use.
type Recorder struct {
	mu       sync.Mutex
	events   []Event
	sessions []DragSession
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) add(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *Recorder) OnCursorMoved(x, y float64) {
	r.add(Event{Type: EventCursorMoved, X: x, Y: y})
}

func (r *Recorder) OnGestureChanged(kind Kind, progress float64) {
	r.add(Event{Type: EventGestureChanged, Kind: kind, Progress: progress})
}

func (r *Recorder) OnDragStart(targetID string, x, y float64) {
	r.add(Event{Type: EventDragStart, TargetID: targetID, X: x, Y: y})
}

func (r *Recorder) OnDragMove(x, y float64) {
	r.add(Event{Type: EventDragMove, X: x, Y: y})
}

func (r *Recorder) OnDragEnd(targetID string, x, y float64) {
	r.add(Event{Type: EventDragEnd, TargetID: targetID, X: x, Y: y})
}

func (r *Recorder) OnSubjectLost() {
	r.add(Event{Type: EventSubjectLost})
}

func (r *Recorder) OnStale(stale bool) {
	r.add(Event{Type: EventStale, Stale: stale})
}

// OnDragFinished records the finished session.
func (r *Recorder) OnDragFinished(d DragSession) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions = append(r.sessions, d)
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Filter returns the recorded events of type t.
func (r *Recorder) Filter(t EventType) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, e := range r.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// Sessions returns the finished drag sessions.
func (r *Recorder) Sessions() []DragSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]DragSession(nil), r.sessions...)
}

// Reset clears the recording.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
	r.sessions = nil
}
