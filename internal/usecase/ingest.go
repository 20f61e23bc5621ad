package usecase

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"docchat/internal/domain"
	"docchat/internal/port"
)

// IngestPipeline orchestrates chunk → embed → upsert for a document set.
// One failed batch does not abort the run: its chunk IDs are recorded and
// the remaining batches proceed. Structural errors (dimension mismatch,
// index unreachable) abort with a partial report. Re-running over the same
// documents converges because chunk IDs and upserts are idempotent.
type IngestPipeline struct {
	chunker   port.Chunker
	embedder  port.Embedder
	index     port.VectorIndex
	batchSize int
	workers   int
}

// ProgressFunc reports batches completed out of the total.
type ProgressFunc func(processed, total int)

func NewIngestPipeline(chunker port.Chunker, embedder port.Embedder, index port.VectorIndex, batchSize, workers int) *IngestPipeline {
	if batchSize <= 0 {
		batchSize = 100
	}
	if workers <= 0 {
		workers = 4
	}
	return &IngestPipeline{
		chunker:   chunker,
		embedder:  embedder,
		index:     index,
		batchSize: batchSize,
		workers:   workers,
	}
}

// Ingest processes the documents and reports what was written. The returned
// error is non-nil only for run-fatal conditions; per-batch failures are
// reflected in the report instead.
func (p *IngestPipeline) Ingest(ctx context.Context, docs []domain.Document, progress ProgressFunc) (domain.IngestionReport, error) {
	report := domain.IngestionReport{}

	// Chunking is cheap and pure; do it up front so batch boundaries never
	// span documents and each chunk ID is owned by exactly one batch.
	var batches [][]domain.Chunk
	for _, doc := range docs {
		chunks, err := p.chunker.Chunk(doc)
		if err != nil {
			slog.Warn("skipping document", "doc", doc.Source, "error", err)
			continue
		}
		report.DocumentsProcessed++
		for i := 0; i < len(chunks); i += p.batchSize {
			end := i + p.batchSize
			if end > len(chunks) {
				end = len(chunks)
			}
			batches = append(batches, chunks[i:end])
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobs := make(chan []domain.Chunk)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var fatal error
	processed := 0

	for w := 0; w < p.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for batch := range jobs {
				mu.Lock()
				aborted := fatal != nil
				mu.Unlock()

				var written int
				var err error
				if aborted {
					err = ctx.Err()
				} else {
					written, err = p.processBatch(ctx, batch)
				}

				mu.Lock()
				report.ChunksWritten += written
				if err != nil {
					for _, c := range batch[written:] {
						report.FailedChunkIDs = append(report.FailedChunkIDs, c.ID)
					}
					report.ChunksFailed += len(batch) - written
					if isRunFatal(err) && fatal == nil {
						fatal = err
						cancel()
					} else if !aborted {
						slog.Warn("batch failed", "chunks", len(batch), "error", err)
					}
				}
				processed++
				if progress != nil {
					progress(processed, len(batches))
				}
				mu.Unlock()
			}
		}()
	}

	for _, batch := range batches {
		jobs <- batch
	}
	close(jobs)
	wg.Wait()

	return report, fatal
}

// processBatch embeds one batch and writes it to the index. It returns how
// many chunks were confirmed written.
func (p *IngestPipeline) processBatch(ctx context.Context, batch []domain.Chunk) (int, error) {
	texts := make([]string, len(batch))
	for i, c := range batch {
		texts[i] = c.Text
	}

	vectors, err := p.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return 0, err
	}

	entries := make([]domain.IndexEntry, len(batch))
	for i, c := range batch {
		entries[i] = domain.IndexEntry{
			ID:     c.ID,
			Vector: vectors[i],
			Payload: domain.Payload{
				Text:     c.Text,
				Source:   c.Metadata["source"],
				DocID:    c.DocID,
				Metadata: c.Metadata,
			},
		}
	}

	return p.index.Upsert(ctx, entries)
}

// isRunFatal reports whether an error must abort the whole run rather than
// fail a single batch.
func isRunFatal(err error) bool {
	return errors.Is(err, domain.ErrDimensionMismatch) ||
		errors.Is(err, domain.ErrIndexUnavailable) ||
		errors.Is(err, domain.ErrIndexNotFound) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}
