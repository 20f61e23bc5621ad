package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"docchat/internal/backoff"
	"docchat/internal/domain"
)

// OpenAIEmbedder calls an OpenAI-compatible /embeddings endpoint.
// Transient failures (network, 429, 5xx) are retried with bounded backoff;
// exhaustion surfaces domain.ErrProviderUnavailable. The vector dimension is
// pinned on the first successful call and any later change is fatal.
type OpenAIEmbedder struct {
	apiKey    string
	model     string
	baseURL   string
	batchSize int
	client    *http.Client
	retry     *backoff.Policy
	limiter   *rate.Limiter

	mu        sync.Mutex
	dimension int
}

// Options configures an OpenAIEmbedder.
type Options struct {
	APIKeyEnv string
	Model     string
	BaseURL   string
	Dimension int // expected vector dimension; 0 pins from the first response
	BatchSize int
	RequestsPerMinute int // 0 disables rate limiting
}

type embeddingRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
}

type embeddingResponse struct {
	Data  []embeddingData `json:"data"`
	Error *apiError       `json:"error,omitempty"`
}

type embeddingData struct {
	Embedding []float32 `json:"embedding"`
	Index     int       `json:"index"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

func NewOpenAIEmbedder(opts Options, retry *backoff.Policy) (*OpenAIEmbedder, error) {
	apiKey := os.Getenv(opts.APIKeyEnv)
	if apiKey == "" {
		return nil, fmt.Errorf("API key not found in environment variable: %s", opts.APIKeyEnv)
	}

	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}

	var limiter *rate.Limiter
	if opts.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerMinute)/60, 1)
	}

	return &OpenAIEmbedder{
		apiKey:    apiKey,
		model:     opts.Model,
		baseURL:   baseURL,
		batchSize: batchSize,
		dimension: opts.Dimension,
		retry:     retry,
		limiter:   limiter,
		client: &http.Client{
			Timeout: 60 * time.Second,
		},
	}, nil
}

// EmbedBatch embeds texts in request batches of at most the configured size.
// The result preserves input order.
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	var all [][]float32
	for i := 0; i < len(texts); i += e.batchSize {
		end := i + e.batchSize
		if end > len(texts) {
			end = len(texts)
		}

		embeddings, err := e.embedBatch(ctx, texts[i:end])
		if err != nil {
			return nil, err
		}
		all = append(all, embeddings...)
	}

	return all, nil
}

// EmbedQuery embeds a single query string.
func (e *OpenAIEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(embeddings) != 1 {
		return nil, fmt.Errorf("expected 1 embedding, got %d: %w", len(embeddings), domain.ErrProviderUnavailable)
	}
	return embeddings[0], nil
}

func (e *OpenAIEmbedder) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	var embeddings [][]float32

	err := e.retry.Do(ctx, func() error {
		if e.limiter != nil {
			if err := e.limiter.Wait(ctx); err != nil {
				return backoff.Permanent(err)
			}
		}

		result, err := e.doRequest(ctx, texts)
		if err != nil {
			return err
		}
		embeddings = result
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrDimensionMismatch) ||
			errors.Is(err, context.Canceled) ||
			errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, fmt.Errorf("embedding request failed after retries: %v: %w", err, domain.ErrProviderUnavailable)
	}

	return embeddings, nil
}

func (e *OpenAIEmbedder) doRequest(ctx context.Context, texts []string) ([][]float32, error) {
	reqBody := embeddingRequest{
		Input: texts,
		Model: e.model,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("failed to marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/embeddings", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.apiKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return nil, fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(body))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, backoff.Permanent(fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(body)))
	}

	var embResp embeddingResponse
	if err := json.Unmarshal(body, &embResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if embResp.Error != nil {
		return nil, backoff.Permanent(fmt.Errorf("API error: %s", embResp.Error.Message))
	}
	if len(embResp.Data) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(embResp.Data))
	}

	// The API may return items out of order; restore input order by index.
	embeddings := make([][]float32, len(texts))
	for _, data := range embResp.Data {
		if data.Index < 0 || data.Index >= len(embeddings) {
			return nil, fmt.Errorf("embedding index %d out of range", data.Index)
		}
		embeddings[data.Index] = data.Embedding
	}
	for i, emb := range embeddings {
		if emb == nil {
			return nil, fmt.Errorf("missing embedding for input %d", i)
		}
		if err := e.checkDimension(len(emb)); err != nil {
			return nil, backoff.Permanent(err)
		}
	}

	return embeddings, nil
}

// checkDimension pins the dimension on first use and rejects any change.
func (e *OpenAIEmbedder) checkDimension(got int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.dimension == 0 {
		e.dimension = got
		return nil
	}
	if got != e.dimension {
		return fmt.Errorf("expected %d, got %d: %w", e.dimension, got, domain.ErrDimensionMismatch)
	}
	return nil
}

func (e *OpenAIEmbedder) Dimension() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dimension
}

func (e *OpenAIEmbedder) ModelName() string {
	return e.model
}
