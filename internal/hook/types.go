// Package hook runs external executables on gesture events. Each hook lives
// in its own directory with a hook.json manifest and receives one JSON
// request per event on stdin.
package hook

import (
	"encoding/json"
	"slices"

	"github.com/sova-tungnv/web-ai/internal/gesture"
)

// Event names a hook can subscribe to.
const (
	EventModeSwitch     = "mode_switch"
	EventGestureChanged = "gesture_changed"
	EventDragStart      = "drag_start"
	EventDragFinished   = "drag_finished"
	EventSubjectLost    = "subject_lost"
)

// Manifest describes a hook and the events it handles.
type Manifest struct {
	Name        string          `json:"name"`
	Version     string          `json:"version"`
	Description string          `json:"description"`
	Executable  string          `json:"executable"`
	Events      []string        `json:"events"`
	Config      json.RawMessage `json:"config,omitempty"`
}

// Request is written to the hook's stdin.
type Request struct {
	Event    string               `json:"event"`
	Kind     gesture.Kind         `json:"kind,omitempty"`
	TargetID string               `json:"target_id,omitempty"`
	X        float64              `json:"x,omitempty"`
	Y        float64              `json:"y,omitempty"`
	Session  *gesture.DragSession `json:"session,omitempty"`
	Config   json.RawMessage      `json:"config,omitempty"`
}

// Response is read from the hook's stdout.
type Response struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// Hook is a discovered hook with its manifest and location.
type Hook struct {
	Manifest   Manifest
	Path       string
	Executable string
}

// Handles reports whether the hook subscribed to event.
func (h *Hook) Handles(event string) bool {
	return slices.Contains(h.Manifest.Events, event)
}
