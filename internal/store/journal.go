package store

import (
	"log/slog"
	"sync/atomic"

	"github.com/sova-tungnv/web-ai/internal/gesture"
	"github.com/sova-tungnv/web-ai/internal/logger"
)

// Journal records finished drag sessions. It is a gesture sink; only the
// drag completion is persisted. When a registry is attached, the dropped
// target's new position (or the instance created from a template) is saved
// as well.
type Journal struct {
	sessions *SessionRepository
	targets  *TargetRepository
	registry *gesture.Registry
	log      *slog.Logger

	recorded atomic.Int64
	failed   atomic.Int64
}

// NewJournal creates a journal writing to s. registry may be nil.
func NewJournal(s *Store, registry *gesture.Registry) *Journal {
	return &Journal{
		sessions: s.Sessions(),
		targets:  s.Targets(),
		registry: registry,
		log:      logger.For("journal"),
	}
}

func (j *Journal) OnCursorMoved(x, y float64)                   {}
func (j *Journal) OnGestureChanged(kind gesture.Kind, p float64) {}
func (j *Journal) OnDragStart(targetID string, x, y float64)    {}
func (j *Journal) OnDragMove(x, y float64)                      {}
func (j *Journal) OnDragEnd(targetID string, x, y float64)      {}
func (j *Journal) OnSubjectLost()                               {}

// OnDragFinished stores the session and the affected target.
func (j *Journal) OnDragFinished(d gesture.DragSession) {
	if err := j.sessions.Create(d); err != nil {
		j.failed.Add(1)
		j.log.Error("record drag session", "session", d.ID, "error", err)
		return
	}
	j.recorded.Add(1)
	j.log.Debug("drag session recorded", "session", d.ID, "target", d.TargetID, "reason", string(d.EndReason))

	if j.registry == nil {
		return
	}
	id := d.TargetID
	if d.InstanceID != "" {
		id = d.InstanceID
	}
	t, ok := j.registry.Get(id)
	if !ok || t.Pool != gesture.PoolInstance {
		return
	}
	if err := j.targets.Save(t); err != nil {
		j.log.Warn("persist target", "target", t.ID, "error", err)
	}
}

// Recorded returns how many sessions were stored.
func (j *Journal) Recorded() int64 {
	return j.recorded.Load()
}

// Failed returns how many sessions could not be stored.
func (j *Journal) Failed() int64 {
	return j.failed.Load()
}
