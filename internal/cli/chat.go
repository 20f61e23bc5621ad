package cli

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"docchat/internal/prompt"
	"docchat/internal/tui"
	"docchat/internal/usecase"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with the indexed documentation",
	Long: `Start an interactive chat session. Each question is answered using the
most relevant chunks from the vector index as context. Run 'docchat ingest'
first to populate the index.`,
	RunE: runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	embedder, err := newEmbedder(cfg)
	if err != nil {
		return fmt.Errorf("failed to create embedder: %w", err)
	}

	ctx := cmd.Context()
	index, closeIndex, err := newIndex(ctx, cfg, embedder.Dimension())
	if err != nil {
		return err
	}
	defer closeIndex()

	count, err := index.Count(ctx)
	if err != nil {
		return fmt.Errorf("failed to reach index: %w", err)
	}
	if count == 0 {
		fmt.Println("Warning: the index is empty. Run 'docchat ingest <dir>' first.")
	}

	model, err := newLLM(cfg)
	if err != nil {
		return fmt.Errorf("failed to create model client: %w", err)
	}

	prompts, err := prompt.NewBuilder(cfg.Chat.HistoryTurns, cfg.Chat.TokenBudget)
	if err != nil {
		return fmt.Errorf("failed to load prompt template: %w", err)
	}

	retriever := usecase.NewRetriever(embedder, index, cfg.Retrieval.TopK)
	engine := usecase.NewChatEngine(retriever, model, prompts)
	sessionID := engine.NewSession()

	program := tea.NewProgram(tui.New(engine, sessionID), tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("chat UI failed: %w", err)
	}
	return nil
}
