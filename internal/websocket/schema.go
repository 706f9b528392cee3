package websocket

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
	EventError Event = "error"
	EventState Event = "state"
	EventLive  Event = "live"
	EventPong  Event = "pong"
)

// StateResponse carries the full session snapshot sent on connect.
type StateResponse struct {
	Event    Event       `json:"event"`
	Attempts interface{} `json:"attempts"`
}

// LiveResponse wraps one monitor event relayed from the pub/sub channel.
type LiveResponse struct {
	Event   Event       `json:"event"`
	Payload interface{} `json:"payload"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
