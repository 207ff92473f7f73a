package tui

import (
	"context"
	"log"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"docchat/internal/domain"
	"docchat/internal/store"
)

// ChatPort is the TUI-facing subset of the engine.
type ChatPort interface {
	Answer(ctx context.Context, query string, userID int64, sessionID string, chatContext []domain.ChatTurn) domain.Answer
	SummarizeSession(ctx context.Context, sessionID string) (string, error)
}

// Model is the Bubble Tea model for the interactive chat session.
type Model struct {
	service ChatPort
	records store.Store
	session domain.ChatHistory
	userID  int64

	input    textinput.Model
	viewport viewport.Model
	turns    []domain.ChatTurn
	status   string
	waiting  bool
	ready    bool
}

// New creates a chat model bound to one session. Any turns already stored
// on the session are shown as scrollback.
func New(service ChatPort, records store.Store, userID int64, session domain.ChatHistory, history []domain.ChatTurn) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask about your documents and press Enter"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	return Model{
		service:  service,
		records:  records,
		session:  session,
		userID:   userID,
		input:    ti,
		viewport: vp,
		turns:    history,
		status:   "Ready. Type a question. Ctrl+S summarizes the session.",
	}
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

type answerMsg struct {
	query  string
	answer domain.Answer
}

type summaryMsg struct {
	summary string
	err     error
}

// Update handles key and window events and updates the view state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, ch := chatBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		reserved := 2 + qh + 1 // header, status, input frame, spacer
		vh := msg.Height - reserved - ch
		if vh < 3 {
			vh = 3
		}
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = vh
		m.viewport.SetContent(m.renderTranscript())
		m.viewport.GotoBottom()
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD || msg.Type == tea.KeyEsc {
			return m, tea.Quit
		}
		if msg.Type == tea.KeyCtrlS {
			if m.waiting {
				return m, nil
			}
			m.status = "Summarizing session..."
			return m, m.summarizeCmd()
		}
		switch msg.String() {
		case "enter":
			q := strings.TrimSpace(m.input.Value())
			if q == "" || m.waiting {
				return m, nil
			}
			m.input.Reset()
			m.turns = append(m.turns, domain.ChatTurn{Content: q, IsUser: true})
			m.waiting = true
			m.status = "Thinking..."
			m.viewport.SetContent(m.renderTranscript())
			m.viewport.GotoBottom()
			return m, m.askCmd(q)
		case "up":
			m.viewport.LineUp(1)
			return m, nil
		case "down":
			m.viewport.LineDown(1)
			return m, nil
		}
	case summaryMsg:
		if msg.err != nil {
			m.status = "Summary failed: " + msg.err.Error()
		} else {
			m.status = "Summary: " + msg.summary
		}
		return m, nil
	case answerMsg:
		m.waiting = false
		m.turns = append(m.turns, domain.ChatTurn{Content: msg.answer.Text, IsUser: false})
		if len(msg.answer.Sources) > 0 {
			m.status = "Sources: " + sourceLine(msg.answer.Sources)
		} else {
			m.status = "Answered without document sources."
		}
		m.viewport.SetContent(m.renderTranscript())
		m.viewport.GotoBottom()
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// summarizeCmd generates and stores the session summary off the update
// loop; the result lands in the status line.
func (m Model) summarizeCmd() tea.Cmd {
	service, sessionID := m.service, m.session.SessionID
	return func() tea.Msg {
		summary, err := service.SummarizeSession(context.Background(), sessionID)
		return summaryMsg{summary: summary, err: err}
	}
}

// askCmd runs the retrieval flow off the update loop. The history snapshot
// excludes the question just typed so it is not counted twice.
func (m Model) askCmd(query string) tea.Cmd {
	history := append([]domain.ChatTurn(nil), m.turns[:len(m.turns)-1]...)
	service, records, userID, session := m.service, m.records, m.userID, m.session
	return func() tea.Msg {
		ctx := context.Background()
		ans := service.Answer(ctx, query, userID, session.SessionID, history)
		persistExchange(ctx, records, session.ID, query, ans)
		return answerMsg{query: query, answer: ans}
	}
}

// persistExchange records both sides of the exchange. Storage failures are
// logged, not surfaced: the conversation on screen stays usable.
func persistExchange(ctx context.Context, records store.Store, historyID int64, query string, ans domain.Answer) {
	if records == nil {
		return
	}
	if err := records.AppendMessage(ctx, &domain.ChatMessage{
		ChatHistoryID: historyID, Content: query, IsUser: true,
	}); err != nil {
		log.Printf("tui: saving user message: %v", err)
	}
	var related []string
	for _, s := range ans.Sources {
		related = append(related, s.DocumentName)
	}
	if err := records.AppendMessage(ctx, &domain.ChatMessage{
		ChatHistoryID:    historyID,
		Content:          ans.Text,
		RelatedDocuments: strings.Join(related, ","),
	}); err != nil {
		log.Printf("tui: saving assistant message: %v", err)
	}
}

// View renders the TUI layout and current transcript.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("docchat  " + shortSession(m.session.SessionID))
	chat := chatBoxStyle.Render(m.viewport.View())
	input := queryBoxStyle.Render(m.input.View())
	status := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render(m.status)
	return header + "\n" + chat + "\n" + input + "\n" + status
}

func (m Model) renderTranscript() string {
	if len(m.turns) == 0 {
		return "No messages yet. Ask a question about your uploaded documents."
	}
	var b strings.Builder
	for i, t := range m.turns {
		if i > 0 {
			b.WriteString("\n\n")
		}
		if t.IsUser {
			b.WriteString(userStyle.Render("You: ") + t.Content)
		} else {
			b.WriteString(assistantStyle.Render("Assistant: ") + t.Content)
		}
	}
	if m.waiting {
		b.WriteString("\n\n" + assistantStyle.Render("Assistant: ") + "...")
	}
	return b.String()
}

func sourceLine(sources []domain.SourceRef) string {
	seen := make(map[string]bool)
	var names []string
	for _, s := range sources {
		if !seen[s.DocumentName] {
			seen[s.DocumentName] = true
			names = append(names, s.DocumentName)
		}
	}
	return strings.Join(names, ", ")
}

func shortSession(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

var (
	chatBoxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	userStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	assistantStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
)

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
