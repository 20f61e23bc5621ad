package prompt

import (
	"bytes"
	"embed"
	"fmt"
	"strings"
	"text/template"

	"docchat/internal/domain"
	"docchat/internal/port"
)

//go:embed templates/system.txt
var templates embed.FS

// noContextMarker is injected when retrieval returned nothing, so the model
// answers best-effort instead of hallucinating sources.
const noContextMarker = "No relevant context was found in the documentation index."

// Builder assembles the message list sent to the language model: a system
// instruction carrying the retrieved context, followed by the conversation
// history trimmed to a turn and token budget, oldest turns dropped first.
type Builder struct {
	historyTurns int
	tokenBudget  int
	tmpl         *template.Template
}

func NewBuilder(historyTurns, tokenBudget int) (*Builder, error) {
	content, err := templates.ReadFile("templates/system.txt")
	if err != nil {
		return nil, fmt.Errorf("system template not found: %w", err)
	}
	tmpl, err := template.New("system").Parse(string(content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse system template: %w", err)
	}
	return &Builder{
		historyTurns: historyTurns,
		tokenBudget:  tokenBudget,
		tmpl:         tmpl,
	}, nil
}

// Build renders the prompt for the current turn. The history must already
// contain the latest user message as its final element.
func (b *Builder) Build(history []domain.Message, chunks []domain.RetrievedChunk) ([]port.ChatMessage, error) {
	var buf bytes.Buffer
	err := b.tmpl.Execute(&buf, struct{ Context string }{Context: formatContext(chunks)})
	if err != nil {
		return nil, fmt.Errorf("failed to render system template: %w", err)
	}

	trimmed := b.trimHistory(history)

	messages := make([]port.ChatMessage, 0, len(trimmed)+1)
	messages = append(messages, port.ChatMessage{Role: "system", Content: buf.String()})
	for _, m := range trimmed {
		messages = append(messages, port.ChatMessage{Role: m.Role, Content: m.Content})
	}
	return messages, nil
}

// formatContext renders retrieved chunks in descending similarity order,
// each tagged with its source page.
func formatContext(chunks []domain.RetrievedChunk) string {
	if len(chunks) == 0 {
		return noContextMarker
	}

	var sb strings.Builder
	sb.WriteString("Context:\n")
	for i, c := range chunks {
		sb.WriteString(fmt.Sprintf("### [%d] %s (score %.2f)\n", i+1, c.Source, c.Score))
		sb.WriteString(c.Text)
		sb.WriteString("\n\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

// trimHistory keeps the most recent messages within the turn and token
// budgets. The final message (the current user turn) is always kept.
func (b *Builder) trimHistory(history []domain.Message) []domain.Message {
	if len(history) == 0 {
		return nil
	}

	maxMessages := len(history)
	if b.historyTurns > 0 && b.historyTurns*2 < maxMessages {
		maxMessages = b.historyTurns * 2
	}

	start := len(history)
	tokens := 0
	for start > 0 {
		next := history[start-1]
		cost := countTokens(next.Content)
		if start < len(history) { // the latest message is kept unconditionally
			if len(history)-start+1 > maxMessages {
				break
			}
			if b.tokenBudget > 0 && tokens+cost > b.tokenBudget {
				break
			}
		}
		tokens += cost
		start--
	}

	return history[start:]
}

// countTokens approximates token usage by whitespace-separated words.
func countTokens(text string) int {
	return len(strings.Fields(text))
}
