package hook

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/sova-tungnv/web-ai/internal/gesture"
	"github.com/sova-tungnv/web-ai/internal/logger"
)

const (
	dispatchBacklog = 32
	// maxParallel bounds how many hooks run for one event.
	maxParallel = 4
)

// Dispatcher turns interpreter events into hook runs. It is a gesture sink:
// events are queued and executed by Run so a slow hook never stalls the
// interpreter. Events arriving while the queue is full are dropped. Cursor
// and drag move events are never dispatched.
type Dispatcher struct {
	manager  *Manager
	executor *Executor
	log      *slog.Logger
	queue    chan Request

	mu       sync.Mutex
	lastKind gesture.Kind

	executed atomic.Uint64
	failed   atomic.Uint64
	dropped  atomic.Uint64
}

// NewDispatcher creates a dispatcher running the hooks of manager.
func NewDispatcher(manager *Manager, executor *Executor) *Dispatcher {
	return &Dispatcher{
		manager:  manager,
		executor: executor,
		log:      logger.For("hook"),
		queue:    make(chan Request, dispatchBacklog),
	}
}

// Run executes queued events until ctx is done.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case req := <-d.queue:
			d.dispatch(ctx, req)
		}
	}
}

// dispatch runs every hook subscribed to req.Event and waits for them.
func (d *Dispatcher) dispatch(ctx context.Context, req Request) {
	var g errgroup.Group
	g.SetLimit(maxParallel)
	for _, h := range d.manager.For(req.Event) {
		g.Go(func() error {
			if _, err := d.executor.Execute(ctx, h, req); err != nil {
				d.failed.Add(1)
				d.log.Warn("hook failed", "hook", h.Manifest.Name, "event", req.Event, "error", err)
				return nil
			}
			d.executed.Add(1)
			d.log.Debug("hook executed", "hook", h.Manifest.Name, "event", req.Event)
			return nil
		})
	}
	g.Wait()
}

func (d *Dispatcher) enqueue(req Request) {
	if len(d.manager.For(req.Event)) == 0 {
		return
	}
	select {
	case d.queue <- req:
	default:
		d.dropped.Add(1)
	}
}

// Executed returns how many hook runs succeeded.
func (d *Dispatcher) Executed() uint64 { return d.executed.Load() }

// Failed returns how many hook runs failed.
func (d *Dispatcher) Failed() uint64 { return d.failed.Load() }

// Dropped returns how many events were lost to a full queue.
func (d *Dispatcher) Dropped() uint64 { return d.dropped.Load() }

func (d *Dispatcher) OnCursorMoved(x, y float64)               {}
func (d *Dispatcher) OnDragMove(x, y float64)                  {}
func (d *Dispatcher) OnDragEnd(targetID string, x, y float64) {}

// OnGestureChanged dispatches mode switches, and gesture changes once per
// new kind so hold progress updates do not repeat them.
func (d *Dispatcher) OnGestureChanged(kind gesture.Kind, progress float64) {
	if kind == gesture.KindModeSwitch {
		d.enqueue(Request{Event: EventModeSwitch, Kind: kind})
		return
	}

	d.mu.Lock()
	changed := kind != d.lastKind
	d.lastKind = kind
	d.mu.Unlock()
	if changed {
		d.enqueue(Request{Event: EventGestureChanged, Kind: kind})
	}
}

func (d *Dispatcher) OnDragStart(targetID string, x, y float64) {
	d.enqueue(Request{Event: EventDragStart, TargetID: targetID, X: x, Y: y})
}

func (d *Dispatcher) OnSubjectLost() {
	d.mu.Lock()
	d.lastKind = gesture.KindNoSubject
	d.mu.Unlock()
	d.enqueue(Request{Event: EventSubjectLost})
}

// OnDragFinished dispatches the finished session.
func (d *Dispatcher) OnDragFinished(s gesture.DragSession) {
	d.enqueue(Request{
		Event:    EventDragFinished,
		TargetID: s.TargetID,
		X:        s.Current.X,
		Y:        s.Current.Y,
		Session:  &s,
	})
}
