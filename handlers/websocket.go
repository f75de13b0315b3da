package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/campusrank/profadvisor/datatypes"
	"github.com/campusrank/profadvisor/llm"
	"github.com/campusrank/profadvisor/observability"
	"github.com/campusrank/profadvisor/rag"
)

// WSRequest is one inbound WebSocket message: a full conversation whose
// final element is the active query.
type WSRequest struct {
	Messages datatypes.Conversation `json:"messages"`
}

// WSFrame is one outbound WebSocket message. Type is one of "session",
// "sources", "token", "error", or "done".
type WSFrame struct {
	Type      string                 `json:"type"`
	Content   string                 `json:"content,omitempty"`
	Error     string                 `json:"error,omitempty"`
	Sources   []datatypes.SourceInfo `json:"sources,omitempty"`
	SessionId string                 `json:"session_id,omitempty"`
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  4 * 1024,
	WriteBufferSize: 4 * 1024,
}

func sendFrame(ws *websocket.Conn, frame WSFrame) error {
	err := ws.WriteJSON(frame)
	if err != nil {
		slog.Warn("Failed to write WebSocket frame", "error", err)
	}
	return err
}

// HandleChatWebSocket serves multi-turn chat over a WebSocket. Each inbound
// message runs the full pipeline; the answer streams back as token frames
// followed by a done frame. Errors on a single turn are reported in-band
// and the connection stays open for the next turn.
func HandleChatWebSocket(pipeline *rag.Pipeline) gin.HandlerFunc {
	return func(c *gin.Context) {
		endpoint := observability.EndpointChatWS

		ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			slog.Error("Failed to upgrade the websocket", "error", err)
			return
		}
		defer ws.Close()

		sessionID := uuid.New().String()
		slog.Info("New websocket session started", "sessionID", sessionID)

		if sendFrame(ws, WSFrame{Type: "session", SessionId: sessionID}) != nil {
			return
		}

		if m := observability.DefaultMetrics; m != nil {
			m.StreamStarted(endpoint)
			defer m.StreamEnded(endpoint)
		}

		for {
			var req WSRequest
			if err := ws.ReadJSON(&req); err != nil {
				slog.Info("Websocket client disconnected", "sessionID", sessionID, "error", err.Error())
				return
			}

			ctx := c.Request.Context()
			if err := req.Messages.Validate(); err != nil {
				if m := observability.DefaultMetrics; m != nil {
					m.RecordError(endpoint, observability.ErrorCodeValidation)
				}
				if sendFrame(ws, WSFrame{Type: "error", Error: "invalid conversation"}) != nil {
					return
				}
				continue
			}

			matches, err := pipeline.Retrieve(ctx, req.Messages)
			if err != nil {
				if m := observability.DefaultMetrics; m != nil {
					if rag.IsInvalidRequest(err) {
						m.RecordError(endpoint, observability.ErrorCodeValidation)
					} else {
						m.RecordError(endpoint, observability.ErrorCodeRetrieval)
					}
				}
				slog.Error("Websocket retrieval failed", "error", err, "sessionID", sessionID)
				if sendFrame(ws, WSFrame{Type: "error", Error: "retrieval unavailable"}) != nil {
					return
				}
				continue
			}

			if len(matches) > 0 {
				if sendFrame(ws, WSFrame{Type: "sources", Sources: datatypes.Sources(matches)}) != nil {
					return
				}
			}

			streamErr := pipeline.Stream(ctx, req.Messages, matches, llm.GenerationParams{}, func(ev llm.StreamEvent) error {
				return ws.WriteJSON(WSFrame{Type: "token", Content: ev.Content})
			})
			if streamErr != nil {
				if m := observability.DefaultMetrics; m != nil {
					m.RecordError(endpoint, observability.ErrorCodeLLMError)
				}
				slog.Error("Websocket completion stream failed", "error", streamErr, "sessionID", sessionID)
				if sendFrame(ws, WSFrame{Type: "error", Error: "completion stream failed"}) != nil {
					return
				}
				continue
			}

			if m := observability.DefaultMetrics; m != nil {
				m.RecordRequest(endpoint, true)
			}
			if sendFrame(ws, WSFrame{Type: "done", SessionId: sessionID}) != nil {
				return
			}
		}
	}
}
