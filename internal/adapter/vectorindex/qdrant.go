package vectorindex

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"

	"docchat/internal/domain"
)

const upsertBatchSize = 128

// QdrantIndex is a minimal REST client to Qdrant. The collection is created
// with cosine distance, fixed for its lifetime. Qdrant requires UUID point
// IDs, so chunk IDs are mapped to deterministic v5 UUIDs; the original chunk
// ID travels in the payload.
type QdrantIndex struct {
	url        string
	apiKey     string
	collection string
	client     *http.Client
}

// QdrantOptions configures a QdrantIndex.
type QdrantOptions struct {
	URL        string
	APIKeyEnv  string
	Collection string
	Timeout    time.Duration
}

func NewQdrantIndex(opts QdrantOptions) *QdrantIndex {
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &QdrantIndex{
		url:        opts.URL,
		apiKey:     os.Getenv(opts.APIKeyEnv),
		collection: opts.Collection,
		client:     &http.Client{Timeout: timeout},
	}
}

// EnsureCollection creates the collection if it does not exist. The cosine
// distance metric is set at creation and cannot change afterwards.
func (s *QdrantIndex) EnsureCollection(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return fmt.Errorf("invalid dimension %d", dimension)
	}

	status, _, err := s.do(ctx, http.MethodGet, s.collectionURL(""), nil)
	if err != nil {
		return fmt.Errorf("checking collection: %v: %w", err, domain.ErrIndexUnavailable)
	}
	if status == http.StatusOK {
		return nil
	}
	if status != http.StatusNotFound {
		return fmt.Errorf("checking collection: status %d: %w", status, domain.ErrIndexUnavailable)
	}

	body := map[string]any{
		"vectors": map[string]any{
			"size":     dimension,
			"distance": "Cosine",
		},
	}
	status, respBody, err := s.do(ctx, http.MethodPut, s.collectionURL(""), body)
	if err != nil {
		return fmt.Errorf("creating collection: %v: %w", err, domain.ErrIndexUnavailable)
	}
	if status >= 300 {
		return fmt.Errorf("creating collection: status %d: %s: %w", status, respBody, domain.ErrIndexUnavailable)
	}
	return nil
}

// Upsert writes entries in sub-batches, replacing points that share an ID.
// A failed sub-batch is retried once; on surfacing an error the returned
// count tells the caller how many entries were confirmed written.
func (s *QdrantIndex) Upsert(ctx context.Context, entries []domain.IndexEntry) (int, error) {
	written := 0
	for i := 0; i < len(entries); i += upsertBatchSize {
		end := i + upsertBatchSize
		if end > len(entries) {
			end = len(entries)
		}
		batch := entries[i:end]

		err := s.upsertBatch(ctx, batch)
		if err != nil {
			// One retry for the whole sub-batch; upserts are idempotent.
			err = s.upsertBatch(ctx, batch)
		}
		if err != nil {
			return written, err
		}
		written += len(batch)
	}
	return written, nil
}

func (s *QdrantIndex) upsertBatch(ctx context.Context, entries []domain.IndexEntry) error {
	points := make([]map[string]any, len(entries))
	for i, entry := range entries {
		points[i] = map[string]any{
			"id":     pointID(entry.ID),
			"vector": entry.Vector,
			"payload": map[string]any{
				"chunk_id": entry.ID,
				"text":     entry.Payload.Text,
				"source":   entry.Payload.Source,
				"doc_id":   entry.Payload.DocID,
				"metadata": entry.Payload.Metadata,
			},
		}
	}
	body := map[string]any{"points": points}

	status, respBody, err := s.do(ctx, http.MethodPut, s.collectionURL("/points?wait=true"), body)
	if err != nil {
		return fmt.Errorf("upsert: %v: %w", err, domain.ErrIndexUnavailable)
	}
	return s.classifyStatus("upsert", status, respBody)
}

// Query returns up to topK entries ordered by descending cosine similarity.
func (s *QdrantIndex) Query(ctx context.Context, vector []float32, topK int) ([]domain.ScoredEntry, error) {
	if topK <= 0 {
		topK = 5
	}
	body := map[string]any{
		"vector":       vector,
		"limit":        topK,
		"with_payload": true,
	}

	status, respBody, err := s.do(ctx, http.MethodPost, s.collectionURL("/points/search"), body)
	if err != nil {
		return nil, fmt.Errorf("search: %v: %w", err, domain.ErrIndexUnavailable)
	}
	if err := s.classifyStatus("search", status, respBody); err != nil {
		return nil, err
	}

	var resp struct {
		Result []struct {
			Score   float64        `json:"score"`
			Payload qdrantPayload  `json:"payload"`
		} `json:"result"`
	}
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("search: failed to parse response: %w", err)
	}

	results := make([]domain.ScoredEntry, 0, len(resp.Result))
	for _, r := range resp.Result {
		results = append(results, domain.ScoredEntry{
			Entry: domain.IndexEntry{
				ID: r.Payload.ChunkID,
				Payload: domain.Payload{
					Text:     r.Payload.Text,
					Source:   r.Payload.Source,
					DocID:    r.Payload.DocID,
					Metadata: r.Payload.Metadata,
				},
			},
			Score: r.Score,
		})
	}
	return results, nil
}

// Count returns the exact number of points in the collection.
func (s *QdrantIndex) Count(ctx context.Context) (int, error) {
	body := map[string]any{"exact": true}

	status, respBody, err := s.do(ctx, http.MethodPost, s.collectionURL("/points/count"), body)
	if err != nil {
		return 0, fmt.Errorf("count: %v: %w", err, domain.ErrIndexUnavailable)
	}
	if err := s.classifyStatus("count", status, respBody); err != nil {
		return 0, err
	}

	var resp struct {
		Result struct {
			Count int `json:"count"`
		} `json:"result"`
	}
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return 0, fmt.Errorf("count: failed to parse response: %w", err)
	}
	return resp.Result.Count, nil
}

type qdrantPayload struct {
	ChunkID  string            `json:"chunk_id"`
	Text     string            `json:"text"`
	Source   string            `json:"source"`
	DocID    string            `json:"doc_id"`
	Metadata map[string]string `json:"metadata"`
}

func (s *QdrantIndex) collectionURL(suffix string) string {
	return fmt.Sprintf("%s/collections/%s%s", s.url, s.collection, suffix)
}

func (s *QdrantIndex) classifyStatus(op string, status int, body []byte) error {
	switch {
	case status < 300:
		return nil
	case status == http.StatusNotFound:
		return fmt.Errorf("%s: collection %q: %w", op, s.collection, domain.ErrIndexNotFound)
	case status >= 500:
		return fmt.Errorf("%s: status %d: %s: %w", op, status, body, domain.ErrIndexUnavailable)
	default:
		return fmt.Errorf("%s: status %d: %s", op, status, body)
	}
}

func (s *QdrantIndex) do(ctx context.Context, method, url string, body any) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, nil, err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return 0, nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, respBody, nil
}

// pointID maps a chunk ID to a deterministic UUID accepted by Qdrant.
// The same chunk always maps to the same point, keeping upserts idempotent.
func pointID(chunkID string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(chunkID)).String()
}
