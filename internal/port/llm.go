package port

import "context"

// ChatMessage is a role/content pair in the wire format language model
// providers expect.
type ChatMessage struct {
	Role    string
	Content string
}

// LLM represents a language model for text generation.
type LLM interface {
	// Complete generates a response for the given conversation.
	Complete(ctx context.Context, messages []ChatMessage) (string, error)

	// ModelName returns the name of the model.
	ModelName() string
}
