package port

import (
	"context"

	"docchat/internal/domain"
)

// VectorIndex stores embedding vectors and serves similarity search.
type VectorIndex interface {
	// Upsert writes entries, replacing any that share an ID. It returns
	// the number of entries confirmed written, which may be less than
	// len(entries) when an error is also returned.
	Upsert(ctx context.Context, entries []domain.IndexEntry) (int, error)

	// Query returns up to topK entries ordered by descending similarity
	// to the given vector.
	Query(ctx context.Context, vector []float32, topK int) ([]domain.ScoredEntry, error)

	// Count returns the number of entries in the index.
	Count(ctx context.Context) (int, error)
}
