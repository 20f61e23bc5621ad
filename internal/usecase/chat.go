package usecase

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"docchat/internal/domain"
	"docchat/internal/port"
	"docchat/internal/prompt"
)

// ChatEngine answers user turns with retrieval-augmented generation.
// Sessions are created on first use and live for the process lifetime.
// Turns within a session are serialized; a failed turn leaves the user
// message in history and appends no assistant message, so the caller can
// offer a retry without the user retyping.
type ChatEngine struct {
	retriever port.Retriever
	llm       port.LLM
	prompts   *prompt.Builder

	mu       sync.Mutex
	sessions map[string]*session
}

type session struct {
	mu   sync.Mutex
	data domain.ChatSession
}

func NewChatEngine(retriever port.Retriever, llm port.LLM, prompts *prompt.Builder) *ChatEngine {
	return &ChatEngine{
		retriever: retriever,
		llm:       llm,
		prompts:   prompts,
		sessions:  make(map[string]*session),
	}
}

// NewSession creates a session and returns its ID.
func (e *ChatEngine) NewSession() string {
	id := uuid.NewString()
	e.session(id)
	return id
}

// Chat runs one turn: retrieve context for the user text, call the model,
// and append both sides to the session history. On failure the user message
// is kept, no assistant message is appended, and a typed error is returned.
func (e *ChatEngine) Chat(ctx context.Context, sessionID, userText string) (string, error) {
	s := e.session(sessionID)

	// One in-flight turn per session; a new turn waits for the previous
	// one to reach success or reported failure.
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data.Messages = append(s.data.Messages, domain.Message{
		Role:    domain.RoleUser,
		Content: userText,
	})

	chunks, err := e.retriever.Retrieve(ctx, userText)
	if err != nil {
		return "", fmt.Errorf("retrieval failed: %w", err)
	}

	messages, err := e.prompts.Build(s.data.Messages, chunks)
	if err != nil {
		return "", fmt.Errorf("prompt assembly failed: %w", err)
	}

	answer, err := e.llm.Complete(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("generation failed: %w", err)
	}

	s.data.Messages = append(s.data.Messages, domain.Message{
		Role:    domain.RoleAssistant,
		Content: answer,
		Context: chunks,
	})
	return answer, nil
}

// History returns a copy of the session's messages.
func (e *ChatEngine) History(sessionID string) []domain.Message {
	s := e.session(sessionID)
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.Message, len(s.data.Messages))
	copy(out, s.data.Messages)
	return out
}

// session returns the session for the given ID, creating it if needed.
func (e *ChatEngine) session(id string) *session {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, ok := e.sessions[id]
	if !ok {
		s = &session{data: domain.ChatSession{ID: id}}
		e.sessions[id] = s
	}
	return s
}
