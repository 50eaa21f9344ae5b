package websocket

import "encoding/json"

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionAutosave Action = "autosave"
	ActionSubmit   Action = "submit"
	ActionPing     Action = "ping"
)

// RequestPayload is every client frame. QID and Answer are only read for
// autosave; Answer keeps the raw JSON so each question type decodes its own
// shape.
type RequestPayload struct {
	Action Action          `json:"action"`
	QID    string          `json:"q_id,omitempty"`
	Answer json.RawMessage `json:"ans,omitempty"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventError   Event = "error"
	EventSuccess Event = "success"
	EventGraded  Event = "graded"
	EventPending Event = "pending"
	EventPong    Event = "pong"
)

type AutosaveResponse struct {
	Event  Event  `json:"event"`
	Status string `json:"status"`
	QID    string `json:"q_id"`
}

// ResultResponse carries the finalized (graded) or pending attempt view.
type ResultResponse struct {
	Event  Event `json:"event"`
	Result any   `json:"result"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Code  string `json:"code,omitempty"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
