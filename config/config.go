// Package config loads service-level configuration from the environment.
// Provider credentials (API keys, index hosts) are read by the individual
// clients at construction time.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds the service-level settings.
type Config struct {
	// Port is the TCP port the HTTP server listens on.
	Port string `env:"PROFADVISOR_PORT" envDefault:"12300"`

	// APIKey, when set, requires a matching bearer token on /v1 routes.
	APIKey string `env:"PROFADVISOR_API_KEY"`

	// EmbeddingBackend selects the embedder: "openai" or "ollama".
	EmbeddingBackend string `env:"EMBEDDING_BACKEND" envDefault:"openai"`

	// VectorBackend selects the vector store: "pinecone" or "weaviate".
	VectorBackend string `env:"VECTOR_BACKEND" envDefault:"pinecone"`

	// LLMBackend selects the completion client: "openai" or "ollama".
	LLMBackend string `env:"LLM_BACKEND" envDefault:"openai"`

	// TopK is how many professor records each query retrieves.
	TopK int `env:"RETRIEVAL_TOP_K" envDefault:"3"`

	// OTLPEndpoint is the gRPC endpoint of the OTLP trace collector.
	OTLPEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4317"`
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first when present; real environment variables win.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing environment config: %w", err)
	}
	if cfg.TopK <= 0 {
		return nil, fmt.Errorf("RETRIEVAL_TOP_K must be positive, got %d", cfg.TopK)
	}
	return cfg, nil
}
