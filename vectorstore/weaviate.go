package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/campusrank/profadvisor/datatypes"
)

// WeaviateStore queries a Weaviate class holding professor review records.
// The class is expected to carry name, subject, and stars properties.
type WeaviateStore struct {
	client    *weaviate.Client
	className string
}

// NewWeaviateStore creates a store from the environment. WEAVIATE_SERVICE_URL
// is required (scheme included); WEAVIATE_CLASS defaults to Professor.
func NewWeaviateStore() (*WeaviateStore, error) {
	rawURL := strings.Trim(os.Getenv("WEAVIATE_SERVICE_URL"), "\"' ")
	if rawURL == "" {
		return nil, fmt.Errorf("WEAVIATE_SERVICE_URL environment variable not set")
	}
	parsedURL, err := url.Parse(rawURL)
	if err != nil || parsedURL.Scheme == "" || parsedURL.Host == "" {
		return nil, fmt.Errorf("WEAVIATE_SERVICE_URL is invalid: %q", rawURL)
	}

	className := os.Getenv("WEAVIATE_CLASS")
	if className == "" {
		className = "Professor"
	}

	client, err := weaviate.NewClient(weaviate.Config{
		Host:   parsedURL.Host,
		Scheme: parsedURL.Scheme,
	})
	if err != nil {
		return nil, fmt.Errorf("creating weaviate client: %w", err)
	}

	slog.Info("Initializing Weaviate store", "host", parsedURL.Host, "class", className)
	return &WeaviateStore{client: client, className: className}, nil
}

// professorResult mirrors one object in the GraphQL Get response.
type professorResult struct {
	Name       string   `json:"name"`
	Subject    string   `json:"subject"`
	Stars      *float64 `json:"stars"`
	Additional struct {
		Certainty *float64 `json:"certainty"`
	} `json:"_additional"`
}

// Query implements the Store interface. Certainty is reported as the match
// score because it is always in [0, 1] regardless of the index's distance
// metric.
func (s *WeaviateStore) Query(ctx context.Context, vector []float32, topK int) ([]datatypes.RetrievedMatch, error) {
	ctx, span := tracer.Start(ctx, "WeaviateStore.Query")
	defer span.End()
	span.SetAttributes(
		attribute.Int("weaviate.top_k", topK),
		attribute.String("weaviate.class", s.className),
	)

	nearVector := s.client.GraphQL().NearVectorArgBuilder().WithVector(vector)
	fields := []graphql.Field{
		{Name: "name"},
		{Name: "subject"},
		{Name: "stars"},
		{Name: "_additional", Fields: []graphql.Field{
			{Name: "certainty"},
		}},
	}

	result, err := s.client.GraphQL().Get().
		WithClassName(s.className).
		WithFields(fields...).
		WithNearVector(nearVector).
		WithLimit(topK).
		Do(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "weaviate query failed")
		return nil, fmt.Errorf("weaviate search failed: %w", err)
	}
	if len(result.Errors) > 0 {
		err := fmt.Errorf("weaviate graphql error: %s", result.Errors[0].Message)
		span.RecordError(err)
		span.SetStatus(codes.Error, "weaviate query failed")
		return nil, err
	}

	// Weaviate hands Data back as loosely typed JSON; round-trip it into the
	// shape we actually asked for.
	respBytes, err := json.Marshal(result.Data)
	if err != nil {
		return nil, fmt.Errorf("marshaling weaviate response data: %w", err)
	}
	var parsed struct {
		Get map[string][]professorResult `json:"Get"`
	}
	if err := json.Unmarshal(respBytes, &parsed); err != nil {
		return nil, fmt.Errorf("parsing weaviate response: %w", err)
	}

	records := parsed.Get[s.className]
	matches := make([]datatypes.RetrievedMatch, 0, len(records))
	for _, rec := range records {
		var score float64
		if rec.Additional.Certainty != nil {
			score = *rec.Additional.Certainty
		}
		metadata := map[string]any{"subject": rec.Subject}
		if rec.Stars != nil {
			metadata["stars"] = *rec.Stars
		}
		matches = append(matches, datatypes.RetrievedMatch{
			Id:       rec.Name,
			Score:    score,
			Metadata: metadata,
		})
	}
	span.SetAttributes(attribute.Int("weaviate.matches", len(matches)))
	return matches, nil
}
