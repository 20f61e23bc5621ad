package vectorindex

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"go.etcd.io/bbolt"

	"docchat/internal/domain"
)

var bucketEntries = []byte("entries")

// BoltIndex is a bbolt-backed vector index for fully local runs. Vectors are
// kept in memory for brute-force cosine search and persisted for restarts.
type BoltIndex struct {
	db        *bbolt.DB
	dimension int

	mu      sync.RWMutex
	entries map[string]domain.IndexEntry
	seq     map[string]int
	nextSeq int
}

type storedEntry struct {
	Vector  []float32      `json:"v"`
	Payload domain.Payload `json:"p"`
	Seq     int            `json:"s"`
}

func NewBoltIndex(path string, dimension int) (*BoltIndex, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open index database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketEntries)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create entries bucket: %w", err)
	}

	s := &BoltIndex{
		db:        db,
		dimension: dimension,
		entries:   make(map[string]domain.IndexEntry),
		seq:       make(map[string]int),
	}
	if err := s.loadEntries(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to load entries: %w", err)
	}
	return s, nil
}

// loadEntries loads all persisted entries into memory.
func (s *BoltIndex) loadEntries() error {
	return s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketEntries)
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			var stored storedEntry
			if err := json.Unmarshal(v, &stored); err != nil {
				return nil // Skip corrupted entries
			}
			id := string(k)
			s.entries[id] = domain.IndexEntry{
				ID:      id,
				Vector:  stored.Vector,
				Payload: stored.Payload,
			}
			s.seq[id] = stored.Seq
			if stored.Seq >= s.nextSeq {
				s.nextSeq = stored.Seq + 1
			}
			return nil
		})
	})
}

func (s *BoltIndex) Upsert(ctx context.Context, entries []domain.IndexEntry) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, entry := range entries {
		if s.dimension == 0 {
			s.dimension = len(entry.Vector)
		}
		if len(entry.Vector) != s.dimension {
			return 0, fmt.Errorf("expected %d, got %d: %w", s.dimension, len(entry.Vector), domain.ErrDimensionMismatch)
		}
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketEntries)
		if b == nil {
			return fmt.Errorf("entries bucket not found")
		}
		for _, entry := range entries {
			seq, exists := s.seq[entry.ID]
			if !exists {
				seq = s.nextSeq
			}
			data, err := json.Marshal(storedEntry{
				Vector:  entry.Vector,
				Payload: entry.Payload,
				Seq:     seq,
			})
			if err != nil {
				return err
			}
			if err := b.Put([]byte(entry.ID), data); err != nil {
				return err
			}
			if !exists {
				s.seq[entry.ID] = seq
				s.nextSeq++
			}
			s.entries[entry.ID] = entry
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("upsert: %v: %w", err, domain.ErrIndexUnavailable)
	}
	return len(entries), nil
}

func (s *BoltIndex) Query(ctx context.Context, vector []float32, topK int) ([]domain.ScoredEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.dimension != 0 && len(vector) != s.dimension {
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

func (s *BoltIndex) Count(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries), nil
}

func (s *BoltIndex) Close() error {
	return s.db.Close()
}
