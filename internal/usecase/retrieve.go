package usecase

import (
	"context"
	"fmt"

	"docchat/internal/domain"
	"docchat/internal/port"
)

// Retriever embeds a query and searches the vector index. Results are
// ordered purely by similarity score; ties fall back to the index's
// insertion order, which is stable but carries no meaning.
type Retriever struct {
	embedder port.Embedder
	index    port.VectorIndex
	topK     int
}

func NewRetriever(embedder port.Embedder, index port.VectorIndex, topK int) *Retriever {
	return &Retriever{
		embedder: embedder,
		index:    index,
		topK:     topK,
	}
}

func (r *Retriever) Retrieve(ctx context.Context, query string) ([]domain.RetrievedChunk, error) {
	vector, err := r.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	results, err := r.index.Query(ctx, vector, r.topK)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}

	chunks := make([]domain.RetrievedChunk, 0, len(results))
	for _, result := range results {
		chunks = append(chunks, domain.RetrievedChunk{
			ID:     result.Entry.ID,
			Text:   result.Entry.Payload.Text,
			Source: result.Entry.Payload.Source,
			Score:  result.Score,
		})
	}
	return chunks, nil
}
