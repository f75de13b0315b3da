// Package vectorstore retrieves nearest-neighbor professor records from an
// external vector database.
package vectorstore

import (
	"context"

	"github.com/campusrank/profadvisor/datatypes"
)

// Store performs a similarity search against a vector database and returns
// up to topK matches with their metadata, in the provider's
// descending-similarity order. Callers never re-sort the results.
type Store interface {
	Query(ctx context.Context, vector []float32, topK int) ([]datatypes.RetrievedMatch, error)
}
