package websocket

import (
	"time"

	"github.com/stemsi/examdrill/internal/model"
)

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionPing Action = "ping"
)

// RequestEnvelope is used to peek at the action before full parsing.
type RequestEnvelope struct {
	Action Action `json:"action"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventError    Event = "error"
	EventSnapshot Event = "snapshot"
	EventUpdate   Event = "update"
	EventPong     Event = "pong"
)

// SessionEvent carries a session snapshot: the current one right after the
// connection opens, then one per mutation.
type SessionEvent struct {
	Event   Event               `json:"event"`
	Action  model.SessionAction `json:"action,omitempty"`
	Result  model.ExamResult    `json:"result,omitempty"`
	Session *model.ExamSession  `json:"session"`
	At      time.Time           `json:"at"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
