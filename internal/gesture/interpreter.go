package gesture

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sova-tungnv/web-ai/internal/detector"
	"github.com/sova-tungnv/web-ai/internal/logger"
	"github.com/sova-tungnv/web-ai/internal/tracking"
)

// State is the interpreter output after one detection cycle.
type State struct {
	Kind      Kind  `json:"kind"`
	Pose      Pose  `json:"pose"`
	Timestamp int64 `json:"timestamp"`
	// Cursor is the last propagated cursor position.
	Cursor Point `json:"cursor"`
	// Progress is the hold progress in [0,1] for KindMultiFingerHold.
	Progress float64 `json:"progress,omitempty"`
	// Stale is set while a cached result bridges detection misses.
	Stale bool `json:"stale"`
	// PinchDistance is the raw thumb to index distance in pixels.
	PinchDistance float64 `json:"pinch_distance,omitempty"`
	// Smoothed is the smoothed landmark set of the tracked hand.
	Smoothed []detector.Landmark `json:"smoothed,omitempty"`
	// Drag is the active drag session, if any.
	Drag *DragSession `json:"drag,omitempty"`
}

// Interpreter is the gesture state machine. It consumes detection results in
// order and emits events to its Sink. Timing is derived from result
// timestamps (milliseconds), so replays are deterministic.
type Interpreter struct {
	th       Thresholds
	registry *Registry
	sink     Sink
	log      *slog.Logger

	// emitMu is taken before mu and held while events reach the sink.
	emitMu        sync.Mutex
	mu            sync.Mutex
	closed        bool
	bridge        *tracking.MissBridge
	smoother      *tracking.Smoother
	cursor        *CursorFilter
	hold          *HoldTimer
	state         State
	lastProgress  float64
	pinchFrames   int
	drag          *DragSession
	cooldownUntil time.Time
	now           time.Time
	modeSwitches  int
}

// NewInterpreter creates an interpreter resolving drag targets in registry.
// sink may be nil.
func NewInterpreter(th Thresholds, registry *Registry, sink Sink) *Interpreter {
	if registry == nil {
		registry = NewRegistry(th.TemplateCaptureRadius, th.InstanceCaptureRadius)
	}
	if sink == nil {
		sink = NopSink{}
	}
	return &Interpreter{
		th:       th,
		registry: registry,
		sink:     sink,
		log:      logger.For("gesture"),
		bridge:   tracking.NewMissBridge(th.MaxMisses),
		smoother: tracking.NewSmoother(th.Alpha),
		cursor:   NewCursorFilter(th.CursorWindow, th.CursorMinMove),
		hold:     NewHoldTimer(th.HoldDuration),
		state:    State{Kind: KindNoSubject, Pose: PoseNone},
	}
}

// Registry returns the target registry.
func (in *Interpreter) Registry() *Registry {
	return in.registry
}

// Thresholds returns the tuning table.
func (in *Interpreter) Thresholds() Thresholds {
	return in.th
}

// State returns a copy of the current state.
func (in *Interpreter) State() State {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.snapshotLocked()
}

// ModeSwitches returns how many timed holds have completed.
func (in *Interpreter) ModeSwitches() int {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.modeSwitches
}

// HandleResult processes a pipeline result.
func (in *Interpreter) HandleResult(_ context.Context, res *detector.Result) {
	in.Process(res)
}

// HandleFailure logs a per-frame detection failure. The state is untouched;
// the next result supersedes it.
func (in *Interpreter) HandleFailure(err error) {
	in.log.Debug("detection failed", "error", err)
}

// Process feeds one detection result and returns the new state. A nil or
// subject-less result counts as a miss. Results arriving after Close are
// ignored.
func (in *Interpreter) Process(res *detector.Result) State {
	in.emitMu.Lock()
	defer in.emitMu.Unlock()

	in.mu.Lock()
	if in.closed {
		st := in.snapshotLocked()
		in.mu.Unlock()
		return st
	}

	if res != nil {
		in.now = time.UnixMilli(res.Timestamp)
		in.state.Timestamp = res.Timestamp
	}

	var events []Event
	wasStale := in.state.Stale
	used, verdict := in.bridge.Observe(res)
	switch verdict {
	case tracking.Fresh:
		events = in.freshLocked(used.Subject)
		if wasStale {
			events = append([]Event{{Type: EventStale, Stale: false}}, events...)
		}
	case tracking.Stale:
		in.state.Stale = true
		in.hold.Pause(in.now)
		if !wasStale {
			events = append(events, Event{Type: EventStale, Stale: true})
		}
	case tracking.Lost:
		events = in.lostLocked()
	}

	st := in.snapshotLocked()
	in.mu.Unlock()

	for _, e := range events {
		e.Apply(in.sink)
	}
	return st
}

func (in *Interpreter) freshLocked(hand *detector.Subject) []Event {
	var events []Event
	now := in.now

	in.state.Stale = false
	in.state.Smoothed = in.smoother.Update(hand.Landmarks)

	pose := Classify(hand, in.th.ExtendedMargin)
	dist, ok := PinchDistance(hand, in.th)
	pinching := ok && dist < in.th.PinchDistance
	anchor, _ := PinchAnchor(hand, in.th)
	in.state.Pose = pose
	in.state.PinchDistance = dist

	if tip, ok := hand.At(detector.IndexTip); ok {
		freeze := pose == PoseFist && !pinching && in.drag == nil
		if p, moved := in.cursor.Update(in.th.Project(tip), freeze); moved {
			events = append(events, Event{Type: EventCursorMoved, X: p.X, Y: p.Y})
		}
	}
	in.state.Cursor, _ = in.cursor.Position()

	if in.drag != nil {
		if pinching {
			in.drag.Current = anchor
			if !in.drag.FromTemplate {
				if _, err := in.registry.MoveTo(in.drag.TargetID, anchor); err != nil {
					in.log.Debug("move dragged target", "error", err)
				}
			}
			events = append(events, Event{Type: EventDragMove, X: anchor.X, Y: anchor.Y})
		} else {
			in.drag.Current = anchor
			events = append(events, in.endDragLocked(EndReleased))
		}
	} else {
		if pinching {
			in.pinchFrames++
		} else {
			in.pinchFrames = 0
		}
		if pinching && in.pinchFrames >= in.th.PinchConfirmFrames && !now.Before(in.cooldownUntil) {
			if target, ok := in.registry.Resolve(anchor); ok {
				in.drag = &DragSession{
					ID:           uuid.New().String(),
					TargetID:     target.ID,
					FromTemplate: target.Pool == PoolTemplate,
					Start:        anchor,
					Current:      anchor,
					StartedAt:    now,
				}
				in.log.Debug("drag started", "target", target.ID, "pool", string(target.Pool))
				events = append(events, Event{Type: EventDragStart, TargetID: target.ID, X: anchor.X, Y: anchor.Y})
			}
		}
	}

	holding := pose == PoseTwoFingersUp && !pinching && in.drag == nil
	progress, fired := in.hold.Update(holding, now)
	if fired {
		in.modeSwitches++
		in.log.Info("mode switch", "held", in.th.HoldDuration)
		events = append(events, Event{Type: EventGestureChanged, Kind: KindModeSwitch, Progress: 1})
		progress = 0
	}

	kind := KindNeutral
	switch {
	case in.drag != nil:
		kind = KindDragging
	case pinching:
		kind = KindPinch
	case pose == PoseFist:
		kind = KindFist
	case pose == PoseOpenHand:
		kind = KindOpenHand
	case pose == PoseTwoFingersUp:
		kind = KindMultiFingerHold
	}
	if !holding {
		progress = 0
	}

	if kind != in.state.Kind || (kind == KindMultiFingerHold && progress != in.lastProgress) {
		events = append(events, Event{Type: EventGestureChanged, Kind: kind, Progress: progress})
	}
	in.state.Kind = kind
	in.state.Progress = progress
	in.lastProgress = progress
	return events
}

func (in *Interpreter) lostLocked() []Event {
	var events []Event
	if in.drag != nil {
		events = append(events, in.endDragLocked(EndLost))
	}
	in.resetLocked()
	in.log.Debug("subject lost")
	return append(events, Event{Type: EventSubjectLost})
}

// endDragLocked closes the active drag session and starts the cooldown. A
// released template drag registers a new instance at the drop point.
func (in *Interpreter) endDragLocked(reason EndReason) Event {
	d := in.drag
	in.drag = nil
	in.pinchFrames = 0
	in.cooldownUntil = in.now.Add(in.th.DragCooldown)

	d.EndedAt = in.now
	d.EndReason = reason
	if d.FromTemplate && reason == EndReleased {
		inst, err := in.registry.Instantiate(d.TargetID, d.Current)
		if err != nil {
			in.log.Warn("instantiate template", "template", d.TargetID, "error", err)
		} else {
			d.InstanceID = inst.ID
		}
	}
	in.log.Debug("drag ended", "target", d.TargetID, "reason", string(reason))

	return Event{Type: EventDragEnd, TargetID: d.TargetID, X: d.Current.X, Y: d.Current.Y, session: d}
}

func (in *Interpreter) resetLocked() {
	in.smoother.Reset()
	in.cursor.Reset()
	in.hold.Reset()
	in.pinchFrames = 0
	in.lastProgress = 0
	in.state = State{Kind: KindNoSubject, Pose: PoseNone, Timestamp: in.state.Timestamp}
}

func (in *Interpreter) snapshotLocked() State {
	st := in.state
	if in.drag != nil {
		d := *in.drag
		st.Drag = &d
	}
	if st.Smoothed != nil {
		st.Smoothed = append([]detector.Landmark(nil), st.Smoothed...)
	}
	return st
}

// Close tears the interpreter down. An active drag ends with EndClosed and
// later results are ignored. Close is safe to call more than once.
func (in *Interpreter) Close() error {
	in.emitMu.Lock()
	defer in.emitMu.Unlock()

	in.mu.Lock()
	if in.closed {
		in.mu.Unlock()
		return nil
	}
	in.closed = true
	var events []Event
	if in.drag != nil {
		events = append(events, in.endDragLocked(EndClosed))
	}
	in.mu.Unlock()

	for _, e := range events {
		e.Apply(in.sink)
	}
	return nil
}
