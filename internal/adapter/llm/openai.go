package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"docchat/internal/backoff"
	"docchat/internal/domain"
	"docchat/internal/port"
)

// OpenAILLM calls an OpenAI-compatible /chat/completions endpoint.
// Failure semantics mirror the embedder: transient errors are retried,
// exhaustion surfaces domain.ErrProviderUnavailable.
type OpenAILLM struct {
	apiKey      string
	model       string
	baseURL     string
	temperature float64
	maxTokens   int
	client      *http.Client
	retry       *backoff.Policy
}

// Options configures an OpenAILLM.
type Options struct {
	APIKeyEnv   string
	Model       string
	BaseURL     string
	Temperature float64
	MaxTokens   int
}

type chatCompletionRequest struct {
	Model       string              `json:"model"`
	Messages    []chatCompletionMsg `json:"messages"`
	Temperature float64             `json:"temperature"`
	MaxTokens   int                 `json:"max_tokens,omitempty"`
}

type chatCompletionMsg struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

func NewOpenAILLM(opts Options, retry *backoff.Policy) (*OpenAILLM, error) {
	apiKey := os.Getenv(opts.APIKeyEnv)
	if apiKey == "" {
		return nil, fmt.Errorf("API key not found in environment variable: %s", opts.APIKeyEnv)
	}

	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}

	return &OpenAILLM{
		apiKey:      apiKey,
		model:       opts.Model,
		baseURL:     baseURL,
		temperature: opts.Temperature,
		maxTokens:   opts.MaxTokens,
		retry:       retry,
		client: &http.Client{
			Timeout: 120 * time.Second,
		},
	}, nil
}

// Complete generates a response for the given conversation.
func (l *OpenAILLM) Complete(ctx context.Context, messages []port.ChatMessage) (string, error) {
	msgs := make([]chatCompletionMsg, len(messages))
	for i, m := range messages {
		msgs[i] = chatCompletionMsg{Role: m.Role, Content: m.Content}
	}

	reqBody := chatCompletionRequest{
		Model:       l.model,
		Messages:    msgs,
		Temperature: l.temperature,
		MaxTokens:   l.maxTokens,
	}
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	var answer string
	err = l.retry.Do(ctx, func() error {
		result, err := l.doRequest(ctx, jsonData)
		if err != nil {
			return err
		}
		answer = result
		return nil
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return "", err
		}
		return "", fmt.Errorf("completion request failed after retries: %v: %w", err, domain.ErrProviderUnavailable)
	}

	return answer, nil
}

func (l *OpenAILLM) doRequest(ctx context.Context, jsonData []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.baseURL+"/chat/completions", bytes.NewReader(jsonData))
	if err != nil {
		return "", backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+l.apiKey)

	resp, err := l.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return "", fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(body))
	}
	if resp.StatusCode != http.StatusOK {
		return "", backoff.Permanent(fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(body)))
	}

	var chatResp chatCompletionResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if chatResp.Error != nil {
		return "", backoff.Permanent(fmt.Errorf("API error: %s", chatResp.Error.Message))
	}
	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("response contained no choices")
	}

	return chatResp.Choices[0].Message.Content, nil
}

func (l *OpenAILLM) ModelName() string {
	return l.model
}
