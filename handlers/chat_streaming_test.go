package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusrank/profadvisor/datatypes"
	"github.com/campusrank/profadvisor/rag"
)

func newStreamRouter(pipeline *rag.Pipeline) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/v1/chat/stream", HandleChatStream(pipeline))
	return router
}

func postChatStream(t *testing.T, router *gin.Engine, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/stream", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)
	return recorder
}

// parseSSEEvents splits an SSE response body into its events, decoding each
// data payload. Keepalive comments are skipped.
func parseSSEEvents(t *testing.T, body string) []datatypes.StreamEvent {
	t.Helper()
	var events []datatypes.StreamEvent
	for _, block := range strings.Split(body, "\n\n") {
		block = strings.TrimSpace(block)
		if block == "" || strings.HasPrefix(block, ":") {
			continue
		}
		var event datatypes.StreamEvent
		for _, line := range strings.Split(block, "\n") {
			if data, ok := strings.CutPrefix(line, "data: "); ok {
				require.NoError(t, json.Unmarshal([]byte(data), &event))
			}
		}
		events = append(events, event)
	}
	return events
}

func eventTypes(events []datatypes.StreamEvent) []string {
	types := make([]string, len(events))
	for i, ev := range events {
		types[i] = ev.Type
	}
	return types
}

func TestHandleChatStream_EventOrder(t *testing.T) {
	completer := &mockCompleter{Tokens: []string{"Dr. Smith ", "is ", "great."}, FailAfter: -1}
	router := newStreamRouter(newTestPipeline(nil, nil, completer))

	recorder := postChatStream(t, router, `[{"role":"user","content":"who is best for intro bio?"}]`)

	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "text/event-stream", recorder.Header().Get("Content-Type"))
	assert.Equal(t, "no", recorder.Header().Get("X-Accel-Buffering"))

	events := parseSSEEvents(t, recorder.Body.String())
	assert.Equal(t, []string{
		datatypes.StreamEventStatus,
		datatypes.StreamEventSources,
		datatypes.StreamEventToken,
		datatypes.StreamEventToken,
		datatypes.StreamEventToken,
		datatypes.StreamEventDone,
	}, eventTypes(events))

	assert.Equal(t, "Generating response...", events[0].Message)
	assert.Equal(t, "Dr. Smith ", events[2].Content)
	assert.NotEmpty(t, events[len(events)-1].RequestId)
	for _, ev := range events {
		assert.NotEmpty(t, ev.Id)
		assert.NotZero(t, ev.CreatedAt)
	}
}

func TestHandleChatStream_SourcesCarryRetrievalOrder(t *testing.T) {
	router := newStreamRouter(newTestPipeline(nil, nil, nil))

	recorder := postChatStream(t, router, `[{"role":"user","content":"who is best?"}]`)

	events := parseSSEEvents(t, recorder.Body.String())
	require.GreaterOrEqual(t, len(events), 2)
	sources := events[1].Sources
	require.Len(t, sources, 2)
	assert.Equal(t, "Dr. Smith", sources[0].Source)
	assert.InDelta(t, 0.91, sources[0].Score, 1e-9)
	assert.Equal(t, "Dr. Jones", sources[1].Source)
}

func TestHandleChatStream_NoSourcesEventWhenNothingRetrieved(t *testing.T) {
	store := &mockStore{Matches: nil}
	completer := &mockCompleter{Tokens: []string{"No records found."}, FailAfter: -1}
	router := newStreamRouter(newTestPipeline(nil, store, completer))

	recorder := postChatStream(t, router, `[{"role":"user","content":"anyone for pottery?"}]`)

	events := parseSSEEvents(t, recorder.Body.String())
	assert.Equal(t, []string{
		datatypes.StreamEventStatus,
		datatypes.StreamEventToken,
		datatypes.StreamEventDone,
	}, eventTypes(events))
}

func TestHandleChatStream_MidStreamFailureEmitsErrorEvent(t *testing.T) {
	completer := &mockCompleter{
		Tokens:    []string{"Dr. ", "Smith"},
		FailAfter: 1,
		Err:       errors.New("upstream reset"),
	}
	router := newStreamRouter(newTestPipeline(nil, nil, completer))

	recorder := postChatStream(t, router, `[{"role":"user","content":"who is best?"}]`)

	require.Equal(t, http.StatusOK, recorder.Code)
	events := parseSSEEvents(t, recorder.Body.String())
	require.NotEmpty(t, events)

	last := events[len(events)-1]
	assert.Equal(t, datatypes.StreamEventError, last.Type)
	assert.Equal(t, "completion stream failed", last.Error)
	// The provider error text stays server-side.
	assert.NotContains(t, recorder.Body.String(), "upstream reset")
	assert.NotContains(t, eventTypes(events), datatypes.StreamEventDone)
}

func TestHandleChatStream_ValidationFailureIsPlainJSON(t *testing.T) {
	router := newStreamRouter(newTestPipeline(nil, nil, nil))

	recorder := postChatStream(t, router, `[{"content":"missing role"}]`)

	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	assert.NotEqual(t, "text/event-stream", recorder.Header().Get("Content-Type"))
}

func TestHandleChatStream_RetrievalFailureIsPlainJSON(t *testing.T) {
	store := &mockStore{Err: errors.New("index offline")}
	router := newStreamRouter(newTestPipeline(nil, store, nil))

	recorder := postChatStream(t, router, `[{"role":"user","content":"hello"}]`)

	assert.Equal(t, http.StatusServiceUnavailable, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "retrieval unavailable")
}
