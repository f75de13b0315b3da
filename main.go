package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"

	"github.com/campusrank/profadvisor/config"
	"github.com/campusrank/profadvisor/embedding"
	"github.com/campusrank/profadvisor/llm"
	"github.com/campusrank/profadvisor/observability"
	"github.com/campusrank/profadvisor/rag"
	"github.com/campusrank/profadvisor/routes"
	"github.com/campusrank/profadvisor/vectorstore"
)

func initTracer(otelEndpoint string) (func(context.Context), error) {
	ctx := context.Background()

	conn, err := grpc.NewClient(otelEndpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}
	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, err
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String("profadvisor-service")))
	if err != nil {
		return nil, err
	}
	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp))
	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.
		TraceContext{}, propagation.Baggage{}))

	return func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, time.Second*5)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown OTLP exporter", "error", err)
		}
	}, nil
}

func newEmbedder(backend string) (embedding.Embedder, error) {
	switch backend {
	case "openai":
		slog.Info("Using OpenAI embedding backend")
		return embedding.NewOpenAIEmbedder()
	case "ollama":
		slog.Info("Using Ollama embedding backend")
		return embedding.NewOllamaEmbedder()
	default:
		return nil, fmt.Errorf("unknown embedding backend %q", backend)
	}
}

func newStore(backend string) (vectorstore.Store, error) {
	switch backend {
	case "pinecone":
		slog.Info("Using Pinecone vector backend")
		return vectorstore.NewPineconeStore()
	case "weaviate":
		slog.Info("Using Weaviate vector backend")
		return vectorstore.NewWeaviateStore()
	default:
		return nil, fmt.Errorf("unknown vector backend %q", backend)
	}
}

func newCompleter(backend string) (llm.CompletionClient, error) {
	switch backend {
	case "openai":
		slog.Info("Using OpenAI LLM backend")
		return llm.NewOpenAIClient()
	case "ollama":
		slog.Info("Using Ollama LLM backend")
		return llm.NewOllamaClient()
	default:
		return nil, fmt.Errorf("unknown LLM backend %q", backend)
	}
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("FATAL: could not load configuration: %v", err)
	}

	cleanup, err := initTracer(cfg.OTLPEndpoint)
	if err != nil {
		log.Fatalf("failed to setup the OTLP tracer: %v", err)
	}
	defer cleanup(context.Background())

	embedder, err := newEmbedder(cfg.EmbeddingBackend)
	if err != nil {
		log.Fatalf("Failed to initialize embedding client: %v", err)
	}
	store, err := newStore(cfg.VectorBackend)
	if err != nil {
		log.Fatalf("Failed to initialize vector store: %v", err)
	}
	completer, err := newCompleter(cfg.LLMBackend)
	if err != nil {
		log.Fatalf("Failed to initialize LLM client: %v", err)
	}

	pipeline := rag.NewPipeline(embedder, store, completer)
	pipeline.TopK = cfg.TopK

	observability.InitMetrics()

	router := gin.Default()
	router.Use(otelgin.Middleware("profadvisor-service"))
	routes.SetupRoutes(router, pipeline, cfg.APIKey)

	log.Println("Starting the profadvisor server on port ", cfg.Port)
	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
