// Package embedding turns query text into fixed-length vectors using an
// external embedding provider.
package embedding

import "context"

// Embedder computes a vector embedding for a single piece of text. One
// blocking call per invocation; implementations do not cache or retry.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}
