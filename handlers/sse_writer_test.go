package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusrank/profadvisor/datatypes"
)

func TestSSEWriter_WireFormat(t *testing.T) {
	recorder := httptest.NewRecorder()
	writer, err := NewSSEWriter(recorder)
	require.NoError(t, err)

	require.NoError(t, writer.WriteToken("Dr. Smith "))

	body := recorder.Body.String()
	assert.True(t, strings.HasPrefix(body, "event: token\ndata: "))
	assert.True(t, strings.HasSuffix(body, "\n\n"))

	payload := strings.TrimPrefix(strings.TrimSuffix(body, "\n\n"), "event: token\ndata: ")
	var event datatypes.StreamEvent
	require.NoError(t, json.Unmarshal([]byte(payload), &event))
	assert.Equal(t, datatypes.StreamEventToken, event.Type)
	assert.Equal(t, "Dr. Smith ", event.Content)
	assert.NotEmpty(t, event.Id)
	assert.NotZero(t, event.CreatedAt)
}

func TestSSEWriter_AssignsUniqueEventIds(t *testing.T) {
	recorder := httptest.NewRecorder()
	writer, err := NewSSEWriter(recorder)
	require.NoError(t, err)

	require.NoError(t, writer.WriteToken("a"))
	require.NoError(t, writer.WriteToken("b"))

	events := parseSSEEvents(t, recorder.Body.String())
	require.Len(t, events, 2)
	assert.NotEqual(t, events[0].Id, events[1].Id)
}

func TestSSEWriter_KeepAliveIsComment(t *testing.T) {
	recorder := httptest.NewRecorder()
	writer, err := NewSSEWriter(recorder)
	require.NoError(t, err)

	require.NoError(t, writer.WriteKeepAlive())
	assert.Equal(t, ": ping\n\n", recorder.Body.String())

	// Comments must be invisible to the event parser.
	assert.Empty(t, parseSSEEvents(t, recorder.Body.String()))
}

// noFlushWriter is an http.ResponseWriter without http.Flusher.
type noFlushWriter struct{}

func (noFlushWriter) Header() http.Header       { return http.Header{} }
func (noFlushWriter) Write(p []byte) (int, error) { return len(p), nil }
func (noFlushWriter) WriteHeader(int)           {}

func TestNewSSEWriter_RequiresFlusher(t *testing.T) {
	_, err := NewSSEWriter(noFlushWriter{})
	assert.Error(t, err)
}
