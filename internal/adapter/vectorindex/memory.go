package vectorindex

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"docchat/internal/domain"
)

// MemoryIndex is a map-backed vector index used by tests and local runs.
// Ties in similarity are broken by insertion order, which is stable but not
// semantically meaningful.
type MemoryIndex struct {
	mu        sync.RWMutex
	dimension int
	entries   map[string]domain.IndexEntry
	seq       map[string]int
	nextSeq   int
}

func NewMemoryIndex(dimension int) *MemoryIndex {
	return &MemoryIndex{
		dimension: dimension,
		entries:   make(map[string]domain.IndexEntry),
		seq:       make(map[string]int),
	}
}

func (s *MemoryIndex) Upsert(ctx context.Context, entries []domain.IndexEntry) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	written := 0
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		if s.dimension == 0 {
			s.dimension = len(entry.Vector)
		}
		if len(entry.Vector) != s.dimension {
			return written, fmt.Errorf("expected %d, got %d: %w", s.dimension, len(entry.Vector), domain.ErrDimensionMismatch)
		}

		if _, exists := s.entries[entry.ID]; !exists {
			s.seq[entry.ID] = s.nextSeq
			s.nextSeq++
		}
		s.entries[entry.ID] = entry
		written++
	}

	return written, nil
}

func (s *MemoryIndex) Query(ctx context.Context, vector []float32, topK int) ([]domain.ScoredEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(vector) != s.dimension && s.dimension != 0 {
		return nil, fmt.Errorf("expected %d, got %d: %w", s.dimension, len(vector), domain.ErrDimensionMismatch)
	}

	scored := make([]domain.ScoredEntry, 0, len(s.entries))
	for _, entry := range s.entries {
		scored = append(scored, domain.ScoredEntry{
			Entry: entry,
			Score: cosineSimilarity(vector, entry.Vector),
		})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return s.seq[scored[i].Entry.ID] < s.seq[scored[j].Entry.ID]
	})

	if topK > 0 && len(scored) > topK {
		scored = scored[:topK]
	}
	return scored, nil
}

func (s *MemoryIndex) Count(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries), nil
}
