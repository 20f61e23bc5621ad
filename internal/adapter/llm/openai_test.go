package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"docchat/internal/backoff"
	"docchat/internal/domain"
	"docchat/internal/port"
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

func newTestLLM(t *testing.T, baseURL string, attempts int) *OpenAILLM {
	t.Helper()
	t.Setenv("TEST_API_KEY", "test-key")
	l, err := NewOpenAILLM(Options{
		APIKeyEnv: "TEST_API_KEY",
		Model:     "gpt-3.5-turbo",
		BaseURL:   baseURL,
	}, testRetry(attempts))
	if err != nil {
		t.Fatal(err)
	}
	return l
}

func TestComplete_Success(t *testing.T) {
	var gotReq chatCompletionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		resp := chatCompletionResponse{}
		resp.Choices = append(resp.Choices, struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		}{})
		resp.Choices[0].Message.Content = "A chain links calls together."
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	l := newTestLLM(t, srv.URL, 1)
	answer, err := l.Complete(context.Background(), []port.ChatMessage{
		{Role: "system", Content: "You are a documentation assistant."},
		{Role: "user", Content: "What is a chain?"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if answer != "A chain links calls together." {
		t.Errorf("unexpected answer: %q", answer)
	}
	if len(gotReq.Messages) != 2 {
		t.Errorf("expected 2 messages sent, got %d", len(gotReq.Messages))
	}
	if gotReq.Model != "gpt-3.5-turbo" {
		t.Errorf("unexpected model: %s", gotReq.Model)
	}
}

func TestComplete_ProviderUnavailableAfterRetries(t *testing.T) {
	var requests int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	l := newTestLLM(t, srv.URL, 3)
	_, err := l.Complete(context.Background(), []port.ChatMessage{{Role: "user", Content: "hi"}})
	if !errors.Is(err, domain.ErrProviderUnavailable) {
		t.Fatalf("expected ErrProviderUnavailable, got %v", err)
	}
	if n := atomic.LoadInt32(&requests); n != 3 {
		t.Errorf("expected 3 attempts, got %d", n)
	}
}

func TestComplete_Cancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Drain the body so the server detects the client disconnect;
		// otherwise r.Context() is never cancelled and Close hangs.
		io.Copy(io.Discard, r.Body)
		<-r.Context().Done()
	}))
	defer srv.Close()

	l := newTestLLM(t, srv.URL, 3)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := l.Complete(ctx, []port.ChatMessage{{Role: "user", Content: "hi"}})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestComplete_MissingKey(t *testing.T) {
	t.Setenv("EMPTY_KEY_ENV", "")
	if _, err := NewOpenAILLM(Options{APIKeyEnv: "EMPTY_KEY_ENV"}, testRetry(1)); err == nil {
		t.Error("expected error for missing API key")
	}
}
