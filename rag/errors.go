package rag

import (
	"errors"
	"fmt"
)

// InvalidRequestError reports a malformed or empty inbound conversation.
// The pipeline fails with this error before making any outbound call.
type InvalidRequestError struct {
	Reason string
}

func (e *InvalidRequestError) Error() string {
	return "invalid request: " + e.Reason
}

// IsInvalidRequest reports whether err is an InvalidRequestError.
func IsInvalidRequest(err error) bool {
	var target *InvalidRequestError
	return errors.As(err, &target)
}

// UpstreamError wraps a failure from one of the external providers. The
// pipeline never retries or masks these; the caller decides how to surface
// them.
type UpstreamError struct {
	// Upstream names the failing provider: "embedding", "vectorstore", or
	// "completion".
	Upstream string
	Err      error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s upstream unavailable: %v", e.Upstream, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// IsUpstream reports whether err is an UpstreamError.
func IsUpstream(err error) bool {
	var target *UpstreamError
	return errors.As(err, &target)
}

// StreamInterruptedError reports a completion stream that died after one or
// more chunks were already relayed. Callers must surface it so clients can
// tell a truncated response from a complete one.
type StreamInterruptedError struct {
	// Chunks is how many deltas reached the callback before the failure.
	Chunks int
	Err    error
}

func (e *StreamInterruptedError) Error() string {
	return fmt.Sprintf("stream interrupted after %d chunks: %v", e.Chunks, e.Err)
}

func (e *StreamInterruptedError) Unwrap() error {
	return e.Err
}

// IsStreamInterrupted reports whether err is a StreamInterruptedError.
func IsStreamInterrupted(err error) bool {
	var target *StreamInterruptedError
	return errors.As(err, &target)
}
