package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sova-tungnv/web-ai/internal/gesture"
	"github.com/sova-tungnv/web-ai/internal/logger"
	"github.com/sova-tungnv/web-ai/internal/tracking"
)

// Event stream settings.
const (
	writeWait      = 5 * time.Second
	pongWait       = 30 * time.Second
	pingPeriod     = pongWait * 9 / 10
	clientBacklog  = 64
	maxMessageSize = 4096
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// Message is one JSON frame on the event stream.
type Message struct {
	Source    string             `json:"source"`
	Type      string             `json:"type"`
	Kind      gesture.Kind       `json:"kind,omitempty"`
	Progress  float64            `json:"progress,omitempty"`
	TargetID  string             `json:"target_id,omitempty"`
	X         float64            `json:"x"`
	Y         float64            `json:"y"`
	Stale     *bool              `json:"stale,omitempty"`
	Snapshot  *tracking.Snapshot `json:"snapshot,omitempty"`
	Error     string             `json:"error,omitempty"`
	Timestamp int64              `json:"timestamp"`
}

// EventHub broadcasts interpreter events and tracker snapshots to websocket
// clients. It implements gesture.Sink for the hand source. Slow clients lose
// messages instead of blocking the pipeline.
type EventHub struct {
	log *slog.Logger

	mu      sync.RWMutex
	clients map[*client]struct{}

	sent    atomic.Uint64
	dropped atomic.Uint64
}

type client struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func (c *client) close() {
	c.once.Do(func() { close(c.send) })
}

// NewEventHub creates an empty hub.
func NewEventHub() *EventHub {
	return &EventHub{
		log:     logger.For("events"),
		clients: make(map[*client]struct{}),
	}
}

// ServeHTTP upgrades the request and streams events until the client leaves.
func (h *EventHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade", "error", err)
		return
	}

	c := &client{conn: conn, send: make(chan []byte, clientBacklog)}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	h.log.Debug("client connected", "remote", r.RemoteAddr)

	go h.writeLoop(c)
	h.readLoop(c)
}

// readLoop drains client messages to process pings and close frames.
func (h *EventHub) readLoop(c *client) {
	defer func() {
		h.remove(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *EventHub) writeLoop(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *EventHub) remove(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		c.close()
	}
	h.mu.Unlock()
}

// Broadcast sends m to every connected client.
func (h *EventHub) Broadcast(m Message) {
	if m.Timestamp == 0 {
		m.Timestamp = time.Now().UnixMilli()
	}
	data, err := json.Marshal(m)
	if err != nil {
		h.log.Error("encode event", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.send <- data:
			h.sent.Add(1)
		default:
			h.dropped.Add(1)
		}
	}
}

// Clients returns the number of connected clients.
func (h *EventHub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Dropped returns how many messages were discarded for slow clients.
func (h *EventHub) Dropped() uint64 {
	return h.dropped.Load()
}

// Close disconnects every client.
func (h *EventHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		c.close()
	}
}

const handSource = "hand"

func (h *EventHub) OnCursorMoved(x, y float64) {
	h.Broadcast(Message{Source: handSource, Type: string(gesture.EventCursorMoved), X: x, Y: y})
}

func (h *EventHub) OnGestureChanged(kind gesture.Kind, progress float64) {
	h.Broadcast(Message{Source: handSource, Type: string(gesture.EventGestureChanged), Kind: kind, Progress: progress})
}

func (h *EventHub) OnDragStart(targetID string, x, y float64) {
	h.Broadcast(Message{Source: handSource, Type: string(gesture.EventDragStart), TargetID: targetID, X: x, Y: y})
}

func (h *EventHub) OnDragMove(x, y float64) {
	h.Broadcast(Message{Source: handSource, Type: string(gesture.EventDragMove), X: x, Y: y})
}

func (h *EventHub) OnDragEnd(targetID string, x, y float64) {
	h.Broadcast(Message{Source: handSource, Type: string(gesture.EventDragEnd), TargetID: targetID, X: x, Y: y})
}

func (h *EventHub) OnSubjectLost() {
	h.Broadcast(Message{Source: handSource, Type: string(gesture.EventSubjectLost)})
}

// OnStale tells clients whether hand events are bridged from a cached
// detection.
func (h *EventHub) OnStale(stale bool) {
	h.Broadcast(Message{Source: handSource, Type: string(gesture.EventStale), Stale: &stale})
}

// Tracker returns a tracking.Listener that publishes snapshots of source.
func (h *EventHub) Tracker(source string) tracking.Listener {
	return trackerListener{hub: h, source: source}
}

type trackerListener struct {
	hub    *EventHub
	source string
}

func (l trackerListener) OnSnapshot(s tracking.Snapshot) {
	l.hub.Broadcast(Message{Source: l.source, Type: "snapshot", Snapshot: &s, Timestamp: s.Timestamp})
}

func (l trackerListener) OnLost() {
	l.hub.Broadcast(Message{Source: l.source, Type: string(gesture.EventSubjectLost)})
}

// ReportError publishes a session-level error to the UI.
func (h *EventHub) ReportError(source string, err error) {
	h.Broadcast(Message{Source: source, Type: "error", Error: err.Error()})
}
