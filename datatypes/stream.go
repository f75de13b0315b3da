package datatypes

// Stream event types emitted by the SSE chat endpoint.
const (
	StreamEventStatus    = "status"
	StreamEventSources   = "sources"
	StreamEventToken     = "token"
	StreamEventError     = "error"
	StreamEventDone      = "done"
	StreamEventKeepAlive = "keepalive"
)

// StreamEvent is a single server-sent event payload. Every event gets a
// fresh id and a millisecond timestamp when written, so clients can detect
// reordering or replay.
type StreamEvent struct {
	Id        string       `json:"id"`
	Type      string       `json:"type"`
	CreatedAt int64        `json:"created_at"`
	Content   string       `json:"content,omitempty"`
	Message   string       `json:"message,omitempty"`
	Error     string       `json:"error,omitempty"`
	RequestId string       `json:"request_id,omitempty"`
	Sources   []SourceInfo `json:"sources,omitempty"`
}
