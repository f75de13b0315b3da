// Package handlers implements the HTTP surfaces of the profadvisor service:
// a raw chunked-text relay, an SSE stream, and a WebSocket stream, all
// backed by the same retrieval-augmentation pipeline.
package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/campusrank/profadvisor/datatypes"
	"github.com/campusrank/profadvisor/llm"
	"github.com/campusrank/profadvisor/observability"
	"github.com/campusrank/profadvisor/rag"
)

var tracer = otel.Tracer("profadvisor.handlers")

// StreamErrorTrailer is the HTTP trailer that signals an abnormal end of
// the raw chat stream. It stays empty on a clean close and carries an error
// code when the upstream completion died mid-stream, so callers can tell a
// truncated body from a complete one.
const StreamErrorTrailer = "X-Stream-Error"

// bindConversation parses and validates the request body shared by the
// relay handlers. It writes the 400 response itself and reports whether the
// caller may proceed.
func bindConversation(c *gin.Context, endpoint observability.Endpoint) (datatypes.Conversation, bool) {
	var conv datatypes.Conversation
	if err := c.BindJSON(&conv); err != nil {
		slog.Error("Failed to parse chat request", "error", err)
		if m := observability.DefaultMetrics; m != nil {
			m.RecordError(endpoint, observability.ErrorCodeValidation)
		}
		// BindJSON already wrote the status; make the body explicit.
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return nil, false
	}
	if err := conv.Validate(); err != nil {
		slog.Warn("Chat request failed validation", "error", err)
		if m := observability.DefaultMetrics; m != nil {
			m.RecordError(endpoint, observability.ErrorCodeValidation)
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid conversation"})
		return nil, false
	}
	return conv, true
}

// retrieveOrFail runs retrieval and maps pipeline errors onto HTTP
// responses: InvalidRequestError becomes 400, provider failures become 503.
func retrieveOrFail(ctx context.Context, c *gin.Context, pipeline *rag.Pipeline,
	conv datatypes.Conversation, endpoint observability.Endpoint) ([]datatypes.RetrievedMatch, bool) {

	matches, err := pipeline.Retrieve(ctx, conv)
	if err == nil {
		return matches, true
	}

	if rag.IsInvalidRequest(err) {
		if m := observability.DefaultMetrics; m != nil {
			m.RecordError(endpoint, observability.ErrorCodeValidation)
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return nil, false
	}

	slog.Error("Context retrieval failed", "error", err)
	if m := observability.DefaultMetrics; m != nil {
		m.RecordError(endpoint, observability.ErrorCodeRetrieval)
	}
	c.JSON(http.StatusServiceUnavailable, gin.H{"error": "retrieval unavailable"})
	return nil, false
}

// HandleChat relays the completion as a raw chunked text stream: the
// response body is exactly the concatenated completion text, nothing else.
// A clean close leaves the X-Stream-Error trailer empty; a mid-stream
// upstream failure sets it, because the status line has already been sent.
func HandleChat(pipeline *rag.Pipeline) gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()
		endpoint := observability.EndpointChat
		ctx, span := tracer.Start(c.Request.Context(), "HandleChat")
		defer span.End()

		if m := observability.DefaultMetrics; m != nil {
			m.StreamStarted(endpoint)
			defer m.StreamEnded(endpoint)
		}
		success := false
		defer func() {
			if m := observability.DefaultMetrics; m != nil {
				m.RecordRequest(endpoint, success)
				m.RecordStreamDuration(endpoint, time.Since(startTime).Seconds(), success)
			}
		}()

		conv, ok := bindConversation(c, endpoint)
		if !ok {
			span.SetStatus(codes.Error, "validation failed")
			return
		}
		span.SetAttributes(attribute.Int("request.message_count", len(conv)))

		matches, ok := retrieveOrFail(ctx, c, pipeline, conv, endpoint)
		if !ok {
			span.SetStatus(codes.Error, "retrieval failed")
			return
		}

		// The 200 and the stream headers are committed on the first delta,
		// so a completion that dies before producing anything can still
		// answer with a real error status.
		tokenCount := 0
		var firstTokenTime time.Time
		streamErr := pipeline.Stream(ctx, conv, matches, llm.GenerationParams{}, func(ev llm.StreamEvent) error {
			if tokenCount == 0 {
				firstTokenTime = time.Now()
				c.Header("Content-Type", "text/plain; charset=utf-8")
				c.Header("Cache-Control", "no-cache")
				c.Header("Trailer", StreamErrorTrailer)
				c.Status(http.StatusOK)
			}
			if _, err := c.Writer.WriteString(ev.Content); err != nil {
				return err
			}
			c.Writer.Flush()
			tokenCount++
			return nil
		})

		if m := observability.DefaultMetrics; m != nil && !firstTokenTime.IsZero() {
			m.RecordTimeToFirstToken(endpoint, firstTokenTime.Sub(startTime).Seconds())
		}
		span.SetAttributes(attribute.Int("stream.tokens", tokenCount))

		if streamErr != nil {
			span.RecordError(streamErr)
			span.SetStatus(codes.Error, "stream failed")
			if errors.Is(streamErr, context.Canceled) {
				slog.Info("Client disconnected mid-stream", "tokens", tokenCount)
				if m := observability.DefaultMetrics; m != nil {
					m.RecordClientDisconnect(endpoint)
				}
			} else {
				slog.Error("Completion stream failed", "error", streamErr, "tokens", tokenCount)
				if m := observability.DefaultMetrics; m != nil {
					m.RecordError(endpoint, observability.ErrorCodeLLMError)
				}
			}
			if tokenCount == 0 {
				// Nothing was committed yet; fail the request properly.
				c.JSON(http.StatusServiceUnavailable, gin.H{"error": "completion unavailable"})
				return
			}
			// The status line is gone; the trailer is the only way to tell
			// the client the body is truncated.
			c.Writer.Header().Set(StreamErrorTrailer, "upstream_error")
			return
		}

		if tokenCount == 0 {
			// An empty but clean completion still gets a well-formed 200.
			c.Header("Content-Type", "text/plain; charset=utf-8")
			c.Status(http.StatusOK)
		}
		success = true
	}
}
