// Package rag implements the retrieval-augmentation pipeline: extract the
// active query from a conversation, embed it, search the vector store,
// format the matches into a context block, assemble the augmented prompt,
// and stream the completion.
package rag

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"unicode"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/campusrank/profadvisor/datatypes"
	"github.com/campusrank/profadvisor/embedding"
	"github.com/campusrank/profadvisor/llm"
	"github.com/campusrank/profadvisor/vectorstore"
)

var tracer = otel.Tracer("profadvisor.rag")

// LatestQuery returns the content of the conversation's final message, the
// query the pipeline answers. Earlier messages are context only and are
// never embedded.
func LatestQuery(conv datatypes.Conversation) (string, error) {
	if len(conv) == 0 {
		return "", &InvalidRequestError{Reason: "conversation is empty"}
	}
	last := conv[len(conv)-1]
	if strings.TrimSpace(last.Content) == "" {
		return "", &InvalidRequestError{Reason: "last message has no content"}
	}
	return last.Content, nil
}

// FormatMatches renders retrieved matches into the plain-text context block
// appended to the user's query. Pure presentation: the provider's match
// order is preserved and nothing is filtered. An empty match list yields an
// empty string.
func FormatMatches(matches []datatypes.RetrievedMatch) string {
	if len(matches) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("Returned results from vector db (done automatically):\n")
	for _, m := range matches {
		b.WriteString("\nProfessor: ")
		b.WriteString(m.Id)
		for _, key := range metadataKeys(m.Metadata) {
			fmt.Fprintf(&b, "\n%s: %v", titleKey(key), m.Metadata[key])
		}
		b.WriteString("\n")
	}
	return b.String()
}

// metadataKeys returns well-known professor fields first and any remaining
// keys sorted, so the block is deterministic across runs.
func metadataKeys(metadata map[string]any) []string {
	wellKnown := []string{"subject", "stars", "review"}
	keys := make([]string, 0, len(metadata))
	seen := make(map[string]bool, len(metadata))
	for _, key := range wellKnown {
		if _, ok := metadata[key]; ok {
			keys = append(keys, key)
			seen[key] = true
		}
	}
	rest := make([]string, 0, len(metadata))
	for key := range metadata {
		if !seen[key] {
			rest = append(rest, key)
		}
	}
	sort.Strings(rest)
	return append(keys, rest...)
}

func titleKey(key string) string {
	if key == "" {
		return key
	}
	runes := []rune(key)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

// BuildPrompt assembles the final message list sent to the completion
// backend: the system instruction first, the prior conversation unchanged,
// and the last user message with the formatted context appended. The input
// conversation is never mutated.
func BuildPrompt(conv datatypes.Conversation, contextBlock, systemPrompt string) []datatypes.Message {
	prompt := make([]datatypes.Message, 0, len(conv)+1)
	prompt = append(prompt, datatypes.Message{Role: datatypes.RoleSystem, Content: systemPrompt})
	prompt = append(prompt, conv[:len(conv)-1]...)

	content := conv[len(conv)-1].Content
	if contextBlock != "" {
		content = content + "\n" + contextBlock
	}
	prompt = append(prompt, datatypes.Message{Role: datatypes.RoleUser, Content: content})
	return prompt
}

// Pipeline wires an embedder, a vector store, and a completion client into
// the per-request retrieval-augmentation chain. A Pipeline holds no
// per-request state and is safe for concurrent use.
type Pipeline struct {
	Embedder  embedding.Embedder
	Store     vectorstore.Store
	Completer llm.CompletionClient

	// TopK is how many matches each query retrieves. Defaults to DefaultTopK.
	TopK int

	// SystemPrompt is the instruction message prepended to every completion
	// request. Defaults to DefaultSystemPrompt.
	SystemPrompt string
}

// NewPipeline creates a pipeline with default retrieval settings. All three
// dependencies are required.
func NewPipeline(embedder embedding.Embedder, store vectorstore.Store, completer llm.CompletionClient) *Pipeline {
	if embedder == nil {
		panic("rag.NewPipeline: embedder must not be nil")
	}
	if store == nil {
		panic("rag.NewPipeline: store must not be nil")
	}
	if completer == nil {
		panic("rag.NewPipeline: completer must not be nil")
	}
	return &Pipeline{
		Embedder:     embedder,
		Store:        store,
		Completer:    completer,
		TopK:         DefaultTopK,
		SystemPrompt: DefaultSystemPrompt,
	}
}

// Retrieve embeds the conversation's active query and returns its nearest
// matches in provider order. An unusable conversation fails with
// InvalidRequestError before any outbound call; provider failures come back
// as UpstreamError.
func (p *Pipeline) Retrieve(ctx context.Context, conv datatypes.Conversation) ([]datatypes.RetrievedMatch, error) {
	ctx, span := tracer.Start(ctx, "Pipeline.Retrieve")
	defer span.End()

	query, err := LatestQuery(conv)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid conversation")
		return nil, err
	}
	span.SetAttributes(attribute.Int("rag.top_k", p.TopK))

	vector, err := p.Embedder.Embed(ctx, query)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "embedding failed")
		slog.Error("Query embedding failed", "error", err)
		return nil, &UpstreamError{Upstream: "embedding", Err: err}
	}
	span.SetAttributes(attribute.Int("rag.vector_dim", len(vector)))

	matches, err := p.Store.Query(ctx, vector, p.TopK)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "vector search failed")
		slog.Error("Vector search failed", "error", err)
		return nil, &UpstreamError{Upstream: "vectorstore", Err: err}
	}
	span.SetAttributes(attribute.Int("rag.matches", len(matches)))
	slog.Debug("Retrieved context for query", "matches", len(matches))
	return matches, nil
}

// Stream assembles the augmented prompt and relays the completion's text
// deltas to callback in arrival order. A provider failure before the first
// delta is an UpstreamError; a failure after chunks were already delivered
// is a StreamInterruptedError carrying the chunk count.
func (p *Pipeline) Stream(ctx context.Context, conv datatypes.Conversation, matches []datatypes.RetrievedMatch,
	params llm.GenerationParams, callback llm.StreamCallback) error {

	ctx, span := tracer.Start(ctx, "Pipeline.Stream")
	defer span.End()

	prompt := BuildPrompt(conv, FormatMatches(matches), p.SystemPrompt)
	span.SetAttributes(attribute.Int("rag.prompt_messages", len(prompt)))

	chunks := 0
	err := p.Completer.ChatStream(ctx, prompt, params, func(event llm.StreamEvent) error {
		if event.Type != llm.StreamEventToken || event.Content == "" {
			return nil
		}
		chunks++
		return callback(event)
	})
	span.SetAttributes(attribute.Int("rag.chunks", chunks))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "completion stream failed")
		if chunks > 0 {
			return &StreamInterruptedError{Chunks: chunks, Err: err}
		}
		return &UpstreamError{Upstream: "completion", Err: err}
	}
	return nil
}

// Run executes the full chain: retrieve, then stream. The matches are
// returned alongside so callers can report sources with the relayed chunks.
func (p *Pipeline) Run(ctx context.Context, conv datatypes.Conversation,
	params llm.GenerationParams, callback llm.StreamCallback) ([]datatypes.RetrievedMatch, error) {

	matches, err := p.Retrieve(ctx, conv)
	if err != nil {
		return nil, err
	}
	return matches, p.Stream(ctx, conv, matches, params, callback)
}
