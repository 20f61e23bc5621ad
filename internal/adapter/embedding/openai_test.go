package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"docchat/internal/backoff"
	"docchat/internal/domain"
)

func testRetry(attempts int) *backoff.Policy {
	return &backoff.Policy{
		MaxAttempts: attempts,
		BaseDelay:   time.Millisecond,
		MaxDelay:    time.Millisecond,
		Sleep:       func(time.Duration) {},
		Jitter:      func() float64 { return 0 },
	}
}

func newTestEmbedder(t *testing.T, baseURL string, attempts int) *OpenAIEmbedder {
	t.Helper()
	t.Setenv("TEST_API_KEY", "test-key")
	e, err := NewOpenAIEmbedder(Options{
		APIKeyEnv: "TEST_API_KEY",
		Model:     "text-embedding-ada-002",
		BaseURL:   baseURL,
		BatchSize: 2,
	}, testRetry(attempts))
	if err != nil {
		t.Fatal(err)
	}
	return e
}

// serveEmbeddings returns vectors of the given dimension, deliberately in
// reverse order to exercise index-based reordering.
func serveEmbeddings(dimension int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req embeddingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		resp := embeddingResponse{}
		for i := len(req.Input) - 1; i >= 0; i-- {
			vec := make([]float32, dimension)
			vec[0] = float32(i + 1)
			resp.Data = append(resp.Data, embeddingData{Embedding: vec, Index: i})
		}
		json.NewEncoder(w).Encode(resp)
	}
}

func TestEmbedBatch_OrderPreserved(t *testing.T) {
	srv := httptest.NewServer(serveEmbeddings(4))
	defer srv.Close()

	e := newTestEmbedder(t, srv.URL, 1)
	got, err := e.EmbedBatch(context.Background(), []string{"one", "two"})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 vectors, got %d", len(got))
	}
	if got[0][0] != 1 || got[1][0] != 2 {
		t.Errorf("vectors not in input order: %v, %v", got[0][0], got[1][0])
	}
}

func TestEmbedBatch_SplitsIntoBatches(t *testing.T) {
	var requests int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		serveEmbeddings(4)(w, r)
	}))
	defer srv.Close()

	e := newTestEmbedder(t, srv.URL, 1) // batch size 2
	got, err := e.EmbedBatch(context.Background(), []string{"a", "b", "c", "d", "e"})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 5 {
		t.Fatalf("expected 5 vectors, got %d", len(got))
	}
	if n := atomic.LoadInt32(&requests); n != 3 {
		t.Errorf("expected 3 requests for 5 texts at batch size 2, got %d", n)
	}
}

func TestEmbedBatch_RetriesRateLimit(t *testing.T) {
	var requests int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&requests, 1) == 1 {
			http.Error(w, "rate limited", http.StatusTooManyRequests)
			return
		}
		serveEmbeddings(4)(w, r)
	}))
	defer srv.Close()

	e := newTestEmbedder(t, srv.URL, 3)
	if _, err := e.EmbedBatch(context.Background(), []string{"a"}); err != nil {
		t.Fatalf("expected success after retry, got %v", err)
	}
	if n := atomic.LoadInt32(&requests); n != 2 {
		t.Errorf("expected 2 requests, got %d", n)
	}
}

func TestEmbedBatch_ProviderUnavailableAfterRetries(t *testing.T) {
	var requests int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	e := newTestEmbedder(t, srv.URL, 3)
	_, err := e.EmbedBatch(context.Background(), []string{"a"})
	if !errors.Is(err, domain.ErrProviderUnavailable) {
		t.Fatalf("expected ErrProviderUnavailable, got %v", err)
	}
	if n := atomic.LoadInt32(&requests); n != 3 {
		t.Errorf("expected 3 attempts, got %d", n)
	}
}

func TestEmbedBatch_BadRequestNotRetried(t *testing.T) {
	var requests int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		http.Error(w, "bad input", http.StatusBadRequest)
	}))
	defer srv.Close()

	e := newTestEmbedder(t, srv.URL, 3)
	_, err := e.EmbedBatch(context.Background(), []string{"a"})
	if err == nil {
		t.Fatal("expected error")
	}
	if n := atomic.LoadInt32(&requests); n != 1 {
		t.Errorf("expected 1 attempt for 4xx, got %d", n)
	}
}

func TestEmbedBatch_DimensionMismatchFatal(t *testing.T) {
	var requests int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// First call returns dimension 4, second returns dimension 3.
		if atomic.AddInt32(&requests, 1) == 1 {
			serveEmbeddings(4)(w, r)
			return
		}
		serveEmbeddings(3)(w, r)
	}))
	defer srv.Close()

	e := newTestEmbedder(t, srv.URL, 3)
	if _, err := e.EmbedBatch(context.Background(), []string{"a"}); err != nil {
		t.Fatal(err)
	}
	if e.Dimension() != 4 {
		t.Fatalf("expected pinned dimension 4, got %d", e.Dimension())
	}

	_, err := e.EmbedBatch(context.Background(), []string{"b"})
	if !errors.Is(err, domain.ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
	if n := atomic.LoadInt32(&requests); n != 2 {
		t.Errorf("dimension mismatch must not be retried, got %d requests", n)
	}
}

func TestEmbedQuery_SingleVector(t *testing.T) {
	srv := httptest.NewServer(serveEmbeddings(4))
	defer srv.Close()

	e := newTestEmbedder(t, srv.URL, 1)
	vec, err := e.EmbedQuery(context.Background(), "what is a chain?")
	if err != nil {
		t.Fatal(err)
	}
	if len(vec) != 4 {
		t.Errorf("expected 4-dim vector, got %d", len(vec))
	}
}

func TestEmbedBatch_Empty(t *testing.T) {
	e := newTestEmbedder(t, "http://localhost:0", 1)
	got, err := e.EmbedBatch(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Errorf("expected nil for empty input, got %v", got)
	}
}
