package vectorindex

import (
	"context"
	"path/filepath"
	"testing"

	"docchat/internal/domain"
)

func TestBoltIndex_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "index.db")

	idx, err := NewBoltIndex(path, 2)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := idx.Upsert(ctx, []domain.IndexEntry{
		entry("a", []float32{1, 0}),
		entry("b", []float32{0, 1}),
	}); err != nil {
		t.Fatal(err)
	}
	if err := idx.Close(); err != nil {
		t.Fatal(err)
	}

	reopened, err := NewBoltIndex(path, 2)
	if err != nil {
		t.Fatal(err)
	}
	defer reopened.Close()

	count, err := reopened.Count(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if count != 2 {
		t.Errorf("expected 2 entries after reopen, got %d", count)
	}

	results, err := reopened.Query(ctx, []float32{1, 0}, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].Entry.ID != "a" {
		t.Errorf("unexpected results after reopen: %+v", results)
	}
	if results[0].Entry.Payload.Text != "text for a" {
		t.Errorf("payload not persisted: %+v", results[0].Entry.Payload)
	}
}

func TestBoltIndex_UpsertIdempotent(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "index.db")

	idx, err := NewBoltIndex(path, 2)
	if err != nil {
		t.Fatal(err)
	}
	defer idx.Close()

	entries := []domain.IndexEntry{entry("a", []float32{1, 0})}
	for run := 0; run < 3; run++ {
		if _, err := idx.Upsert(ctx, entries); err != nil {
			t.Fatal(err)
		}
	}

	count, err := idx.Count(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("expected 1 entry after repeated upserts, got %d", count)
	}
}

func TestBoltIndex_DimensionMismatch(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "index.db")

	idx, err := NewBoltIndex(path, 2)
	if err != nil {
		t.Fatal(err)
	}
	defer idx.Close()

	if _, err := idx.Upsert(ctx, []domain.IndexEntry{entry("bad", []float32{1, 2, 3})}); err == nil {
		t.Error("expected dimension mismatch error")
	}
}
