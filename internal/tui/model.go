// Package tui implements the interactive chat front end: a Bubble Tea
// program with a scrolling transcript, a question input, and a sources
// footer for the most recent answer. Each completed turn is persisted to
// the conversation store so sessions survive restarts.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tebatto/profilebot/internal/service"
	"github.com/tebatto/profilebot/internal/store"
)

// askTimeout bounds one question round trip, including a cold pipeline
// build on the first turn.
const askTimeout = 5 * time.Minute

// conversationTitleWords is how many words of the first question become
// the conversation name.
const conversationTitleWords = 6

// Asker answers a single question. *service.Lazy satisfies this.
type Asker interface {
	Ask(ctx context.Context, question string) (service.Answer, error)
}

// turn is one rendered question/answer exchange.
type turn struct {
	role    store.Role
	content string
}

// answerMsg carries a completed generation back into the update loop.
type answerMsg struct {
	question string
	answer   service.Answer
}

// askErrMsg carries a failed generation. The question is kept so the
// status line can reference it; the transcript is left untouched.
type askErrMsg struct {
	question string
	err      error
}

// Model is the Bubble Tea model for the chat session.
type Model struct {
	asker        Asker
	history      store.ConversationStore
	conversation string

	input    textinput.Model
	viewport viewport.Model
	turns    []turn
	sources  []service.Source
	status   string
	waiting  bool
	ready    bool
}

// New creates a chat model. The history store may be nil, in which case
// turns are not persisted. A non-empty conversation name resumes that
// conversation; an empty name starts a fresh one titled from the first
// question.
func New(asker Asker, history store.ConversationStore, conversation string) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask about the profile and press Enter"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	return Model{
		asker:        asker,
		history:      history,
		conversation: conversation,
		input:        ti,
		viewport:     vp,
		status:       "Ready. Ctrl+C to quit.",
	}
}

// Init loads any persisted transcript and starts the cursor blink.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.loadHistory())
}

// historyMsg carries the persisted transcript loaded at startup.
type historyMsg struct {
	turns []turn
}

func (m Model) loadHistory() tea.Cmd {
	if m.history == nil || m.conversation == "" {
		return nil
	}
	history, conversation := m.history, m.conversation
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		msgs, err := history.Recent(ctx, conversation, 100)
		if err != nil {
			return nil
		}
		turns := make([]turn, 0, len(msgs))
		for _, msg := range msgs {
			turns = append(turns, turn{role: msg.Role, content: msg.Content})
		}
		return historyMsg{turns: turns}
	}
}

// Update handles key, window, and answer events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, th := transcriptStyle.GetFrameSize()
		_, ih := inputBoxStyle.GetFrameSize()
		reserved := 1 + 1 + ih + th + 1 // header, status, input frame, transcript frame, spacer
		vh := msg.Height - reserved - m.sourcesHeight()
		if vh < 3 {
			vh = 3
		}
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = vh
		m.viewport.SetContent(m.renderTranscript())
		m.viewport.GotoBottom()
		return m, nil

	case historyMsg:
		m.turns = msg.turns
		if len(m.turns) > 0 {
			m.status = fmt.Sprintf("Resumed %q (%d messages).", m.conversation, len(m.turns))
		}
		m.viewport.SetContent(m.renderTranscript())
		m.viewport.GotoBottom()
		return m, nil

	case answerMsg:
		m.waiting = false
		m.turns = append(m.turns,
			turn{role: store.RoleUser, content: msg.question},
			turn{role: store.RoleAssistant, content: msg.answer.Text},
		)
		m.sources = msg.answer.Sources
		m.status = "Ready."
		m.viewport.SetContent(m.renderTranscript())
		m.viewport.GotoBottom()
		return m, m.persistTurn(msg.question, msg.answer.Text)

	case persistErrMsg:
		m.status = "History not saved: " + msg.err.Error()
		return m, nil

	case askErrMsg:
		// Failed generations never enter the transcript or the store.
		m.waiting = false
		m.status = "Error: " + msg.err.Error()
		return m, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		if msg.String() == "enter" && !m.waiting {
			q := strings.TrimSpace(m.input.Value())
			if q == "" {
				return m, nil
			}
			if m.conversation == "" {
				m.conversation = titleFromQuestion(q)
			}
			m.input.Reset()
			m.waiting = true
			m.status = "Thinking..."
			return m, m.ask(q)
		}
	}

	var cmds []tea.Cmd
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m Model) ask(question string) tea.Cmd {
	asker := m.asker
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), askTimeout)
		defer cancel()
		ans, err := asker.Ask(ctx, question)
		if err != nil {
			return askErrMsg{question: question, err: err}
		}
		return answerMsg{question: question, answer: ans}
	}
}

// persistTurn appends the exchange to the conversation store. Persistence
// failures only surface in the status line; the in-memory transcript is
// already updated.
func (m Model) persistTurn(question, answer string) tea.Cmd {
	if m.history == nil {
		return nil
	}
	history, conversation := m.history, m.conversation
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := history.Append(ctx, conversation, store.RoleUser, question); err != nil {
			return persistErrMsg{err: err}
		}
		if err := history.Append(ctx, conversation, store.RoleAssistant, answer); err != nil {
			return persistErrMsg{err: err}
		}
		return nil
	}
}

// persistErrMsg reports a history write failure.
type persistErrMsg struct {
	err error
}

// View renders header, transcript, sources footer, input, and status.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := headerStyle.Render("profilebot chat")
	if m.conversation != "" {
		header += dimStyle.Render("  [" + m.conversation + "]")
	}
	transcript := transcriptStyle.Render(m.viewport.View())
	input := inputBoxStyle.Render(m.input.View())
	status := statusStyle.Render(m.status)

	parts := []string{header, transcript}
	if footer := m.renderSources(); footer != "" {
		parts = append(parts, footer)
	}
	parts = append(parts, input, status)
	return strings.Join(parts, "\n")
}

func (m Model) renderTranscript() string {
	if len(m.turns) == 0 {
		return "No messages yet. Ask a question about the profile."
	}
	var b strings.Builder
	for i, t := range m.turns {
		if i > 0 {
			b.WriteString("\n\n")
		}
		switch t.role {
		case store.RoleUser:
			b.WriteString(userLabelStyle.Render("you") + "  " + t.content)
		default:
			b.WriteString(botLabelStyle.Render("bot") + "  " + t.content)
		}
	}
	return b.String()
}

func (m Model) renderSources() string {
	if len(m.sources) == 0 {
		return ""
	}
	lines := make([]string, 0, len(m.sources))
	for i, src := range m.sources {
		excerpt := src.Content
		if r := []rune(excerpt); len(r) > 80 {
			excerpt = string(r[:80]) + "…"
		}
		lines = append(lines, fmt.Sprintf("[%d] %s: %s", i+1, src.Source, excerpt))
	}
	return dimStyle.Render("Sources:\n" + strings.Join(lines, "\n"))
}

func (m Model) sourcesHeight() int {
	if len(m.sources) == 0 {
		return 0
	}
	return len(m.sources) + 1
}

// titleFromQuestion derives a conversation name from the opening words of
// the first question.
func titleFromQuestion(q string) string {
	words := strings.Fields(q)
	if len(words) > conversationTitleWords {
		words = words[:conversationTitleWords]
	}
	return strings.Join(words, " ")
}

var (
	headerStyle     = lipgloss.NewStyle().Bold(true)
	transcriptStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	inputBoxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	statusStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	dimStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	userLabelStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	botLabelStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("13"))
)
