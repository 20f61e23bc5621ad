package tui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"docchat/internal/domain"
)

// ChatPort is the TUI-facing subset of the chat engine.
type ChatPort interface {
	Chat(ctx context.Context, sessionID, userText string) (string, error)
	History(sessionID string) []domain.Message
}

const greeting = "Hi! Ask me anything about the indexed documentation."

// turnResultMsg carries the outcome of one chat turn back into Update.
type turnResultMsg struct {
	answer string
	err    error
}

// Model is the Bubble Tea model for the chat application.
type Model struct {
	engine    ChatPort
	sessionID string
	input     textinput.Model
	viewport  viewport.Model
	lines     []string
	status    string
	waiting   bool
	lastSent  string
	ready     bool
}

// New creates a new chat model bound to one session.
func New(engine ChatPort, sessionID string) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Type a question and press Enter"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	m := Model{
		engine:    engine,
		sessionID: sessionID,
		input:     ti,
		viewport:  vp,
		status:    "Ready.",
	}
	m.lines = append(m.lines, assistantStyle.Render("assistant: ")+greeting)
	return m
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key, window and turn-result events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, ch := chatBoxStyle.GetFrameSize()
		_, ih := inputBoxStyle.GetFrameSize()
		reserved := 1 + 1 + ih + 1 // header, status, input frame, spacer
		vh := msg.Height - reserved - ch
		if vh < 3 {
			vh = 3
		}
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = vh
		m.viewport.SetContent(strings.Join(m.lines, "\n\n"))
		m.viewport.GotoBottom()
		return m, nil

	case turnResultMsg:
		m.waiting = false
		if msg.err != nil {
			// The turn failed; the question stays in the input so the
			// user can press Enter to retry.
			m.status = errorStyle.Render("Error: " + msg.err.Error())
			m.input.SetValue(m.lastSent)
			return m, nil
		}
		m.lines = append(m.lines, assistantStyle.Render("assistant: ")+msg.answer)
		m.status = "Ready."
		m.viewport.SetContent(strings.Join(m.lines, "\n\n"))
		m.viewport.GotoBottom()
		return m, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		if msg.String() == "enter" && !m.waiting {
			q := strings.TrimSpace(m.input.Value())
			if q == "" {
				break
			}
			m.waiting = true
			m.lastSent = q
			m.status = "Thinking..."
			m.lines = append(m.lines, userStyle.Render("you: ")+q)
			m.input.SetValue("")
			m.viewport.SetContent(strings.Join(m.lines, "\n\n"))
			m.viewport.GotoBottom()
			return m, m.sendTurn(q)
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// sendTurn runs the chat turn off the UI loop.
func (m Model) sendTurn(text string) tea.Cmd {
	engine, sessionID := m.engine, m.sessionID
	return func() tea.Msg {
		answer, err := engine.Chat(context.Background(), sessionID, text)
		return turnResultMsg{answer: answer, err: err}
	}
}

// View renders the chat layout.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("docchat")
	chat := chatBoxStyle.Render(m.viewport.View())
	input := inputBoxStyle.Render(m.input.View())
	return header + "\n" + chat + "\n" + input + "\n" + m.status
}

var (
	chatBoxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	inputBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	userStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	assistantStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
