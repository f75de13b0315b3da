package vectorstore

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
)

func newTestWeaviateStore(t *testing.T, serverURL string) *WeaviateStore {
	t.Helper()
	parsed, err := url.Parse(serverURL)
	require.NoError(t, err)
	client, err := weaviate.NewClient(weaviate.Config{
		Host:   parsed.Host,
		Scheme: parsed.Scheme,
	})
	require.NoError(t, err)
	return &WeaviateStore{client: client, className: "Professor"}
}

func newGraphQLServer(t *testing.T, response string, gotQuery *string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/graphql", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		if gotQuery != nil {
			var body struct {
				Query string `json:"query"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			*gotQuery = body.Query
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(response))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestWeaviateStore_Query(t *testing.T) {
	var gotQuery string
	server := newGraphQLServer(t, `{
		"data": {"Get": {"Professor": [
			{"name": "Dr. Smith", "subject": "Biology", "stars": 4.5,
			 "_additional": {"certainty": 0.91}},
			{"name": "Dr. Jones", "subject": "Chemistry", "stars": 3.9,
			 "_additional": {"certainty": 0.84}}
		]}}
	}`, &gotQuery)

	store := newTestWeaviateStore(t, server.URL)
	matches, err := store.Query(context.Background(), []float32{0.1, 0.2}, 3)

	require.NoError(t, err)
	assert.Contains(t, gotQuery, "Professor")
	assert.Contains(t, gotQuery, "nearVector")
	assert.Contains(t, gotQuery, "limit")
	assert.Contains(t, gotQuery, "certainty")

	require.Len(t, matches, 2)
	assert.Equal(t, "Dr. Smith", matches[0].Id)
	assert.Equal(t, 0.91, matches[0].Score)
	assert.Equal(t, "Biology", matches[0].Metadata["subject"])
	assert.Equal(t, 4.5, matches[0].Metadata["stars"])
	assert.Equal(t, "Dr. Jones", matches[1].Id)
	assert.Equal(t, 0.84, matches[1].Score)
}

func TestWeaviateStore_PreservesProviderOrder(t *testing.T) {
	// Deliberately not sorted by certainty; the provider's order wins.
	server := newGraphQLServer(t, `{
		"data": {"Get": {"Professor": [
			{"name": "first", "_additional": {"certainty": 0.2}},
			{"name": "second", "_additional": {"certainty": 0.9}},
			{"name": "third", "_additional": {"certainty": 0.5}}
		]}}
	}`, nil)

	store := newTestWeaviateStore(t, server.URL)
	matches, err := store.Query(context.Background(), []float32{0.1}, 3)

	require.NoError(t, err)
	require.Len(t, matches, 3)
	assert.Equal(t, "first", matches[0].Id)
	assert.Equal(t, "second", matches[1].Id)
	assert.Equal(t, "third", matches[2].Id)
}

func TestWeaviateStore_MissingOptionalFields(t *testing.T) {
	server := newGraphQLServer(t, `{
		"data": {"Get": {"Professor": [
			{"name": "Dr. Lee", "subject": "Physics", "stars": null,
			 "_additional": {"certainty": null}}
		]}}
	}`, nil)

	store := newTestWeaviateStore(t, server.URL)
	matches, err := store.Query(context.Background(), []float32{0.1}, 3)

	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "Dr. Lee", matches[0].Id)
	assert.Zero(t, matches[0].Score)
	assert.Equal(t, "Physics", matches[0].Metadata["subject"])
	assert.NotContains(t, matches[0].Metadata, "stars")
}

func TestWeaviateStore_EmptyResults(t *testing.T) {
	server := newGraphQLServer(t, `{"data": {"Get": {"Professor": []}}}`, nil)

	store := newTestWeaviateStore(t, server.URL)
	matches, err := store.Query(context.Background(), []float32{0.1}, 3)

	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestWeaviateStore_GraphQLError(t *testing.T) {
	server := newGraphQLServer(t, `{"errors": [{"message": "class Professor not found"}]}`, nil)

	store := newTestWeaviateStore(t, server.URL)
	_, err := store.Query(context.Background(), []float32{0.1}, 3)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "class Professor not found")
}

func TestWeaviateStore_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "internal error", http.StatusInternalServerError)
	}))
	t.Cleanup(server.Close)

	store := newTestWeaviateStore(t, server.URL)
	_, err := store.Query(context.Background(), []float32{0.1}, 3)

	assert.Error(t, err)
}
