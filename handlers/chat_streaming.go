package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/campusrank/profadvisor/datatypes"
	"github.com/campusrank/profadvisor/llm"
	"github.com/campusrank/profadvisor/observability"
	"github.com/campusrank/profadvisor/rag"
)

// heartbeatInterval is how often SSE keepalive comments are sent. Chosen to
// stay under common load balancer idle timeouts (Nginx and AWS ALB default
// to 60s).
const heartbeatInterval = 15 * time.Second

// HandleChatStream relays the completion over Server-Sent Events. Event
// order on a successful stream: status, sources (when matches exist), one
// token event per delta, then done. On a mid-stream failure an error event
// replaces done.
func HandleChatStream(pipeline *rag.Pipeline) gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()
		endpoint := observability.EndpointChatStream
		ctx, span := tracer.Start(c.Request.Context(), "HandleChatStream")
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

		requestID := uuid.New().String()
		span.SetAttributes(
			attribute.String("request.id", requestID),
			attribute.Int("request.message_count", len(conv)),
		)

		matches, ok := retrieveOrFail(ctx, c, pipeline, conv, endpoint)
		if !ok {
			span.SetStatus(codes.Error, "retrieval failed")
			return
		}

		SetSSEHeaders(c.Writer)
		writer, err := NewSSEWriter(c.Writer)
		if err != nil {
			slog.Error("Streaming not supported by response writer", "error", err)
			if m := observability.DefaultMetrics; m != nil {
				m.RecordError(endpoint, observability.ErrorCodeInternal)
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "streaming not supported"})
			return
		}

		if err := writer.WriteStatus("Generating response..."); err != nil {
			slog.Info("Client disconnected before streaming began", "requestID", requestID)
			return
		}
		if len(matches) > 0 {
			if err := writer.WriteSources(datatypes.Sources(matches)); err != nil {
				return
			}
		}

		heartbeatDone := make(chan struct{})
		go runHeartbeat(ctx, writer, endpoint, heartbeatDone)

		tokenCount := 0
		var firstTokenTime time.Time
		streamErr := pipeline.Stream(ctx, conv, matches, llm.GenerationParams{}, func(ev llm.StreamEvent) error {
			if tokenCount == 0 {
				firstTokenTime = time.Now()
			}
			tokenCount++
			return writer.WriteToken(ev.Content)
		})
		close(heartbeatDone)

		if m := observability.DefaultMetrics; m != nil && !firstTokenTime.IsZero() {
			m.RecordTimeToFirstToken(endpoint, firstTokenTime.Sub(startTime).Seconds())
		}
		span.SetAttributes(attribute.Int("stream.tokens", tokenCount))

		if streamErr != nil {
			span.RecordError(streamErr)
			span.SetStatus(codes.Error, "stream failed")
			if errors.Is(streamErr, context.Canceled) {
				slog.Info("Client disconnected mid-stream", "requestID", requestID, "tokens", tokenCount)
				if m := observability.DefaultMetrics; m != nil {
					m.RecordClientDisconnect(endpoint)
				}
			} else {
				slog.Error("Completion stream failed", "error", streamErr, "requestID", requestID, "tokens", tokenCount)
				if m := observability.DefaultMetrics; m != nil {
					m.RecordError(endpoint, observability.ErrorCodeLLMError)
				}
			}
			_ = writer.WriteError("completion stream failed")
			return
		}

		if err := writer.WriteDone(requestID); err != nil {
			slog.Warn("Failed to write done event", "error", err, "requestID", requestID)
			return
		}
		success = true
	}
}

// runHeartbeat sends SSE keepalive comments until done closes, the request
// context is canceled, or a write fails.
func runHeartbeat(ctx context.Context, writer SSEWriter, endpoint observability.Endpoint, done <-chan struct{}) {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := writer.WriteKeepAlive(); err != nil {
				return
			}
			if m := observability.DefaultMetrics; m != nil {
				m.RecordKeepAlive(endpoint)
			}
		}
	}
}
