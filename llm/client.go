// Package llm provides streaming chat-completion clients for the supported
// model backends.
package llm

import (
	"context"

	"github.com/campusrank/profadvisor/datatypes"
)

// GenerationParams carries optional decoding controls passed through to the
// backend. Nil fields fall back to the backend's defaults.
type GenerationParams struct {
	Temperature *float32 `json:"temperature"`
	TopP        *float32 `json:"top_p"`
	MaxTokens   *int     `json:"max_tokens"`
	Stop        []string `json:"stop"`
}

// StreamEventType identifies the kind of event a completion stream emits.
type StreamEventType string

const (
	// StreamEventToken carries an incremental text delta.
	StreamEventToken StreamEventType = "token"
)

// StreamEvent is a single incremental event from a completion backend.
type StreamEvent struct {
	Type    StreamEventType
	Content string
}

// StreamCallback receives stream events in arrival order. Returning a
// non-nil error aborts the stream; the client propagates that error back to
// the caller.
type StreamCallback func(event StreamEvent) error

// CompletionClient is the standard interface for any streaming LLM backend.
type CompletionClient interface {
	// ChatStream sends the messages with streaming enabled and invokes
	// callback once per non-empty text delta, in arrival order. A provider
	// error mid-stream is returned to the caller, never swallowed, so a
	// truncated response is always distinguishable from a complete one.
	ChatStream(ctx context.Context, messages []datatypes.Message, params GenerationParams, callback StreamCallback) error
}
