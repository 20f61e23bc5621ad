package chunker

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"docchat/internal/domain"
)

// WindowChunker splits document text into overlapping fixed-size windows.
// Chunk IDs are derived from (document ID, start offset), so the same
// document always produces the same IDs.
type WindowChunker struct {
	size    int
	overlap int
}

func NewWindowChunker(size, overlap int) (*WindowChunker, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", size)
	}
	if overlap < 0 {
		return nil, fmt.Errorf("chunk overlap must not be negative, got %d", overlap)
	}
	if overlap >= size {
		return nil, fmt.Errorf("chunk overlap (%d) must be smaller than chunk size (%d)", overlap, size)
	}
	return &WindowChunker{size: size, overlap: overlap}, nil
}

func (c *WindowChunker) Chunk(doc domain.Document) ([]domain.Chunk, error) {
	runes := []rune(doc.Text)
	if len(runes) == 0 {
		return nil, nil
	}

	stride := c.size - c.overlap

	var chunks []domain.Chunk
	for start := 0; start < len(runes); start += stride {
		end := start + c.size
		if end > len(runes) {
			end = len(runes)
		}

		overlap := 0
		if start > 0 {
			overlap = c.overlap
		}

		chunks = append(chunks, domain.Chunk{
			ID:          generateChunkID(doc.ID, start),
			DocID:       doc.ID,
			Text:        string(runes[start:end]),
			StartOffset: start,
			Overlap:     overlap,
			Metadata:    copyMetadata(doc.Metadata),
		})

		if end == len(runes) {
			break
		}
	}

	return chunks, nil
}

func generateChunkID(docID string, startOffset int) string {
	data := fmt.Sprintf("%s:%d", docID, startOffset)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:8])
}

func copyMetadata(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
