package prompt

import (
	"strings"
	"testing"

	"docchat/internal/domain"
)

func TestBuild_ContextTaggedWithSources(t *testing.T) {
	b, err := NewBuilder(10, 3000)
	if err != nil {
		t.Fatal(err)
	}

	history := []domain.Message{
		{Role: domain.RoleUser, Content: "What is a chain?"},
	}
	chunks := []domain.RetrievedChunk{
		{ID: "c1", Text: "A chain links calls.", Source: "chains.html", Score: 0.92},
		{ID: "c2", Text: "Agents use tools.", Source: "agents.html", Score: 0.71},
	}

	messages, err := b.Build(history, chunks)
	if err != nil {
		t.Fatal(err)
	}
	if len(messages) != 2 {
		t.Fatalf("expected system + user message, got %d", len(messages))
	}
	if messages[0].Role != "system" {
		t.Errorf("expected system message first, got %s", messages[0].Role)
	}

	system := messages[0].Content
	if !strings.Contains(system, "chains.html") || !strings.Contains(system, "agents.html") {
		t.Errorf("sources not tagged in system prompt:\n%s", system)
	}
	// Higher-scored chunk must appear first.
	if strings.Index(system, "chains.html") > strings.Index(system, "agents.html") {
		t.Error("chunks not in descending similarity order")
	}
	if messages[1].Content != "What is a chain?" {
		t.Errorf("user message not forwarded: %q", messages[1].Content)
	}
}

func TestBuild_NoContextMarker(t *testing.T) {
	b, err := NewBuilder(10, 3000)
	if err != nil {
		t.Fatal(err)
	}

	history := []domain.Message{{Role: domain.RoleUser, Content: "hi"}}
	messages, err := b.Build(history, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(messages[0].Content, noContextMarker) {
		t.Errorf("expected no-context marker in system prompt:\n%s", messages[0].Content)
	}
}

func TestBuild_TurnBudgetDropsOldestFirst(t *testing.T) {
	b, err := NewBuilder(1, 0) // one user/assistant pair
	if err != nil {
		t.Fatal(err)
	}

	history := []domain.Message{
		{Role: domain.RoleUser, Content: "first question"},
		{Role: domain.RoleAssistant, Content: "first answer"},
		{Role: domain.RoleUser, Content: "second question"},
		{Role: domain.RoleAssistant, Content: "second answer"},
		{Role: domain.RoleUser, Content: "third question"},
	}

	messages, err := b.Build(history, nil)
	if err != nil {
		t.Fatal(err)
	}

	// system + at most 2 history messages
	if len(messages) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(messages))
	}
	if messages[1].Content != "second answer" || messages[2].Content != "third question" {
		t.Errorf("expected most recent messages kept, got %q, %q", messages[1].Content, messages[2].Content)
	}
}

func TestBuild_TokenBudget(t *testing.T) {
	b, err := NewBuilder(0, 6)
	if err != nil {
		t.Fatal(err)
	}

	history := []domain.Message{
		{Role: domain.RoleUser, Content: "one two three four five"},
		{Role: domain.RoleAssistant, Content: "six seven eight"},
		{Role: domain.RoleUser, Content: "nine ten"},
	}

	messages, err := b.Build(history, nil)
	if err != nil {
		t.Fatal(err)
	}

	// Latest user message (2 tokens) plus the assistant message (3 tokens)
	// fit in 6; the oldest message would exceed it.
	if len(messages) != 3 {
		t.Fatalf("expected system + 2 history messages, got %d", len(messages))
	}
	if messages[1].Content != "six seven eight" {
		t.Errorf("unexpected first history message: %q", messages[1].Content)
	}
}

func TestBuild_LatestMessageAlwaysKept(t *testing.T) {
	b, err := NewBuilder(0, 1) // budget smaller than the user message
	if err != nil {
		t.Fatal(err)
	}

	history := []domain.Message{
		{Role: domain.RoleUser, Content: "a very long question about chains"},
	}
	messages, err := b.Build(history, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(messages) != 2 {
		t.Fatalf("latest user message must survive trimming, got %d messages", len(messages))
	}
}
