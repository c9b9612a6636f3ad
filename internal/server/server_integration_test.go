package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sova-tungnv/web-ai/internal/gesture"
	"github.com/sova-tungnv/web-ai/internal/store"
	"github.com/sova-tungnv/web-ai/internal/tracking"
)

func TestAPI_TargetWorkflow(t *testing.T) {
	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	defer s.Close()

	reg := gesture.NewRegistry(300, 500)
	srv := New(Config{Store: s, Registry: reg})
	ts := httptest.NewServer(srv)
	defer ts.Close()

	client := ts.Client()

	// 1. Register a template
	body := `{"id": "card", "pool": "template", "label": "Card", "bounds": {"x": 0, "y": 0, "w": 100, "h": 60}}`
	resp, err := client.Post(ts.URL+"/api/targets", "application/json", bytes.NewBufferString(body))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	// 2. The registry resolves it
	target, ok := reg.Resolve(gesture.Point{X: 60, Y: 40})
	require.True(t, ok)
	assert.Equal(t, "card", target.ID)

	// 3. A finished drag reaches the journal and the sessions API
	j := store.NewJournal(s, reg)
	j.OnDragFinished(gesture.DragSession{
		ID:        "drag-1",
		TargetID:  "card",
		StartedAt: time.Now().Add(-time.Second),
		EndedAt:   time.Now(),
		EndReason: gesture.EndReleased,
	})

	resp, err = client.Get(ts.URL + "/api/sessions")
	require.NoError(t, err)
	var listed struct {
		Sessions []gesture.DragSession `json:"sessions"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&listed))
	resp.Body.Close()
	require.Len(t, listed.Sessions, 1)
	assert.Equal(t, "drag-1", listed.Sessions[0].ID)

	// 4. Delete the template
	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/api/targets/card", nil)
	resp, err = client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	_, ok = reg.Get("card")
	assert.False(t, ok)
}

func dialEvents(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/events"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var m Message
	require.NoError(t, conn.ReadJSON(&m))
	return m
}

func TestEventHub_StreamsSinkEvents(t *testing.T) {
	hub := NewEventHub()
	ts := httptest.NewServer(New(Config{Events: hub}))
	defer ts.Close()

	conn := dialEvents(t, ts)
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, 5*time.Millisecond)

	var sink gesture.Sink = hub
	sink.OnDragStart("card", 10, 20)
	sink.OnGestureChanged(gesture.KindMultiFingerHold, 0.5)
	hub.Tracker("face").OnSnapshot(tracking.Snapshot{Timestamp: 42, Stale: true})
	hub.ReportError("camera", errors.New("camera unavailable"))

	m := readMessage(t, conn)
	assert.Equal(t, "hand", m.Source)
	assert.Equal(t, string(gesture.EventDragStart), m.Type)
	assert.Equal(t, "card", m.TargetID)
	assert.Equal(t, 10.0, m.X)

	m = readMessage(t, conn)
	assert.Equal(t, gesture.KindMultiFingerHold, m.Kind)
	assert.Equal(t, 0.5, m.Progress)

	m = readMessage(t, conn)
	assert.Equal(t, "face", m.Source)
	require.NotNil(t, m.Snapshot)
	assert.True(t, m.Snapshot.Stale)
	assert.Equal(t, int64(42), m.Timestamp)

	m = readMessage(t, conn)
	assert.Equal(t, "error", m.Type)
	assert.Equal(t, "camera unavailable", m.Error)
}

func TestEventHub_ZeroCoordinatesAndStale(t *testing.T) {
	hub := NewEventHub()
	ts := httptest.NewServer(New(Config{Events: hub}))
	defer ts.Close()

	conn := dialEvents(t, ts)
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, 5*time.Millisecond)

	hub.OnCursorMoved(0, 0)
	hub.OnStale(true)
	hub.OnStale(false)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	var fields map[string]any
	require.NoError(t, json.Unmarshal(raw, &fields))
	assert.Equal(t, 0.0, fields["x"], "cursor at the left edge keeps its x")
	assert.Equal(t, 0.0, fields["y"])
	assert.NotContains(t, fields, "stale")

	m := readMessage(t, conn)
	assert.Equal(t, string(gesture.EventStale), m.Type)
	require.NotNil(t, m.Stale)
	assert.True(t, *m.Stale)

	m = readMessage(t, conn)
	require.NotNil(t, m.Stale)
	assert.False(t, *m.Stale)
}

func TestEventHub_DisconnectRemovesClient(t *testing.T) {
	hub := NewEventHub()
	ts := httptest.NewServer(New(Config{Events: hub}))
	defer ts.Close()

	conn := dialEvents(t, ts)
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, 5*time.Millisecond)

	conn.Close()
	require.Eventually(t, func() bool { return hub.Clients() == 0 }, 2*time.Second, 5*time.Millisecond)

	// Broadcasting with no clients is a no-op.
	hub.OnSubjectLost()
}

func TestServer_ListenAndServeStopsOnCancel(t *testing.T) {
	srv := New(Config{Events: NewEventHub()})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- srv.ListenAndServe(ctx, "127.0.0.1:0") }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(6 * time.Second):
		t.Fatal("ListenAndServe did not return after cancel")
	}
}
