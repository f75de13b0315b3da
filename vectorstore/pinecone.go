package vectorstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/campusrank/profadvisor/datatypes"
)

var tracer = otel.Tracer("profadvisor.vectorstore")

// PineconeStore queries a Pinecone serverless index over its REST API.
type PineconeStore struct {
	httpClient *http.Client
	indexHost  string
	namespace  string
	apiKey     string
}

// NewPineconeStore creates a store from the environment. PINECONE_INDEX_HOST
// (the full https:// host of the index) and PINECONE_API_KEY are required;
// PINECONE_NAMESPACE defaults to ns1.
func NewPineconeStore() (*PineconeStore, error) {
	indexHost := os.Getenv("PINECONE_INDEX_HOST")
	if indexHost == "" {
		return nil, fmt.Errorf("PINECONE_INDEX_HOST environment variable not set")
	}
	apiKey := os.Getenv("PINECONE_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("PINECONE_API_KEY environment variable not set")
	}
	namespace := os.Getenv("PINECONE_NAMESPACE")
	if namespace == "" {
		namespace = "ns1"
	}

	slog.Info("Initializing Pinecone store", "indexHost", indexHost, "namespace", namespace)
	return &PineconeStore{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		indexHost:  indexHost,
		namespace:  namespace,
		apiKey:     apiKey,
	}, nil
}

type pineconeQueryRequest struct {
	Vector          []float32 `json:"vector"`
	TopK            int       `json:"topK"`
	Namespace       string    `json:"namespace,omitempty"`
	IncludeMetadata bool      `json:"includeMetadata"`
}

type pineconeMatch struct {
	Id       string         `json:"id"`
	Score    float64        `json:"score"`
	Metadata map[string]any `json:"metadata"`
}

type pineconeQueryResponse struct {
	Matches []pineconeMatch `json:"matches"`
}

// Query implements the Store interface.
func (s *PineconeStore) Query(ctx context.Context, vector []float32, topK int) ([]datatypes.RetrievedMatch, error) {
	ctx, span := tracer.Start(ctx, "PineconeStore.Query")
	defer span.End()
	span.SetAttributes(
		attribute.Int("pinecone.top_k", topK),
		attribute.Int("pinecone.vector_dim", len(vector)),
		attribute.String("pinecone.namespace", s.namespace),
	)

	payload, err := json.Marshal(pineconeQueryRequest{
		Vector:          vector,
		TopK:            topK,
		Namespace:       s.namespace,
		IncludeMetadata: true,
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling pinecone query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.indexHost+"/query", bytes.NewBuffer(payload))
	if err != nil {
		return nil, fmt.Errorf("creating pinecone query request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Api-Key", s.apiKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "pinecone query failed")
		return nil, fmt.Errorf("pinecone query failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		err := fmt.Errorf("pinecone query returned status %d: %s", resp.StatusCode, string(body))
		span.RecordError(err)
		span.SetStatus(codes.Error, "pinecone query failed")
		return nil, err
	}

	var queryResp pineconeQueryResponse
	if err := json.NewDecoder(resp.Body).Decode(&queryResp); err != nil {
		return nil, fmt.Errorf("decoding pinecone response: %w", err)
	}

	matches := make([]datatypes.RetrievedMatch, 0, len(queryResp.Matches))
	for _, m := range queryResp.Matches {
		matches = append(matches, datatypes.RetrievedMatch{
			Id:       m.Id,
			Score:    m.Score,
			Metadata: m.Metadata,
		})
	}
	span.SetAttributes(attribute.Int("pinecone.matches", len(matches)))
	return matches, nil
}
