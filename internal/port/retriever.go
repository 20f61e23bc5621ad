package port

import (
	"context"

	"docchat/internal/domain"
)

// Retriever finds the chunks most relevant to a query.
type Retriever interface {
	Retrieve(ctx context.Context, query string) ([]domain.RetrievedChunk, error)
}
