package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"pdfrag/internal/domain"
	"pdfrag/internal/session"
)

// SessionPort is the TUI-facing subset of a session.
type SessionPort interface {
	domain.Retriever
	Ask(ctx context.Context, question string) (session.Answer, error)
	Summarize(ctx context.Context) (string, error)
	DifficultTopics(ctx context.Context) (string, error)
	CanGenerate() bool
	ClearHistory()
	Document() (domain.Document, bool)
}

type mode int

const (
	modeSearch mode = iota
	modeAsk
)

func (m mode) String() string {
	if m == modeAsk {
		return "ask"
	}
	return "search"
}

// ReloadedMsg reports that the document was re-read from disk.
type ReloadedMsg struct {
	Result session.LoadResult
	Err    error
}

type generatedMsg struct {
	label string
	text  string
	err   error
}

type answerMsg struct {
	question string
	answer   session.Answer
	err      error
}

// Model is the Bubble Tea model for the TUI application.
type Model struct {
	ctx       context.Context
	service   SessionPort
	topK      int
	mode      mode
	input     textinput.Model
	viewport  viewport.Model
	results   []domain.SearchResult
	chat      []string
	summary   string
	status    string
	cursor    int
	ready     bool
	waiting   bool
	lastQuery string
}

// New creates a new TUI model instance.
func New(ctx context.Context, service SessionPort, summary string, topK int) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Type query and press Enter"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)

	status := "Loaded. Type to search."
	if doc, ok := service.Document(); ok {
		status = fmt.Sprintf("Loaded %s. Type to search.", doc.Name)
	}
	if service.CanGenerate() {
		status += " Tab switches to ask mode, Ctrl+T lists difficult topics."
	}
	status += " Ctrl+S summarizes."
	return Model{
		ctx:      ctx,
		service:  service,
		topK:     topK,
		input:    ti,
		viewport: vp,
		summary:  summary,
		status:   status,
	}
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key and window events and updates the view state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, rh := resultBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		reserved := 2 + 1 + qh + 1 // header+summary, status, spacer
		vh := msg.Height - reserved
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, vh-rh)
		m.refresh()
		return m, nil
	case answerMsg:
		m.waiting = false
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
		} else {
			m.chat = append(m.chat, "You: "+msg.question, "Assistant: "+msg.answer.Text)
			m.status = fmt.Sprintf("Answered using %d chunks", len(msg.answer.Context))
		}
		m.refresh()
		m.viewport.GotoBottom()
		return m, nil
	case generatedMsg:
		m.waiting = false
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
			return m, nil
		}
		m.chat = append(m.chat, msg.label+"\n"+msg.text)
		m.mode = modeAsk
		m.status = msg.label + " added to the transcript."
		m.refresh()
		m.viewport.GotoBottom()
		return m, nil
	case ReloadedMsg:
		if msg.Err != nil {
			m.status = "Reload failed: " + msg.Err.Error()
			return m, nil
		}
		m.summary = msg.Result.Summary
		m.results = nil
		m.cursor = 0
		m.status = fmt.Sprintf("Reloaded %s: %d chunks", msg.Result.Document.Name, msg.Result.Chunks)
		m.refresh()
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch msg.String() {
		case "tab":
			if m.mode == modeSearch && !m.service.CanGenerate() {
				m.status = "No language model configured; ask mode unavailable."
				return m, nil
			}
			if m.mode == modeSearch {
				m.mode = modeAsk
				m.input.Placeholder = "Ask a question and press Enter"
			} else {
				m.mode = modeSearch
				m.input.Placeholder = "Type query and press Enter"
			}
			m.status = "Mode: " + m.mode.String()
			m.refresh()
			return m, nil
		case "ctrl+l":
			m.service.ClearHistory()
			m.chat = nil
			m.status = "Chat history cleared."
			m.refresh()
			return m, nil
		case "ctrl+s", "ctrl+t":
			if m.waiting {
				return m, nil
			}
			m.waiting = true
			m.status = "Thinking..."
			if msg.String() == "ctrl+s" {
				return m, m.generate("PDF Summary:", m.service.Summarize)
			}
			return m, m.generate("Difficult Topics:", m.service.DifficultTopics)
		case "enter":
			q := strings.TrimSpace(m.input.Value())
			if q == "" || m.waiting {
				return m, nil
			}
			if m.mode == modeAsk {
				m.waiting = true
				m.input.SetValue("")
				m.status = "Thinking..."
				return m, m.ask(q)
			}
			m.search(q)
			return m, nil
		case "down":
			if m.mode == modeSearch && len(m.results) > 0 {
				m.cursor = (m.cursor + 1) % len(m.results)
				m.refresh()
				return m, nil
			}
		case "up":
			if m.mode == modeSearch && len(m.results) > 0 {
				m.cursor = (m.cursor - 1 + len(m.results)) % len(m.results)
				m.refresh()
				return m, nil
			}
		case "pgup", "pgdown":
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) search(q string) {
	res, err := m.service.Retrieve(q, m.topK)
	if err != nil {
		m.status = "Error: " + err.Error()
		m.results = nil
	} else {
		m.status = fmt.Sprintf("Results for %q", q)
		m.results = res
		m.cursor = 0
		m.lastQuery = q
	}
	m.refresh()
}

func (m Model) ask(q string) tea.Cmd {
	ctx, service := m.ctx, m.service
	return func() tea.Msg {
		ans, err := service.Ask(ctx, q)
		return answerMsg{question: q, answer: ans, err: err}
	}
}

func (m Model) generate(label string, fn func(context.Context) (string, error)) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		text, err := fn(ctx)
		return generatedMsg{label: label, text: text, err: err}
	}
}

// View renders the TUI layout and current result.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("pdfrag [" + m.mode.String() + "]")
	summary := lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render(m.summary)
	input := queryBoxStyle.Render(m.input.View())
	status := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render(m.status)
	results := resultBoxStyle.Render(m.viewport.View())
	return header + "\n" + summary + "\n" + results + "\n" + input + "\n" + status
}

func (m *Model) refresh() {
	if m.mode == modeAsk {
		m.viewport.SetContent(m.renderChat())
		return
	}
	m.viewport.SetContent(m.renderCurrentResult())
}

func (m Model) renderCurrentResult() string {
	if len(m.results) == 0 {
		return "No results yet."
	}
	r := m.results[m.cursor]
	title := fmt.Sprintf("Result %d/%d  chunk #%d  score=%.3f", m.cursor+1, len(m.results), r.Chunk.Index, r.Score)
	body := highlightTerms(r.Chunk.Text, m.lastQuery)
	return title + "\n\n" + lipgloss.NewStyle().Width(max(10, m.viewport.Width-4)).Render(body)
}

func (m Model) renderChat() string {
	if len(m.chat) == 0 {
		return "No questions yet."
	}
	return lipgloss.NewStyle().Width(max(10, m.viewport.Width-4)).Render(strings.Join(m.chat, "\n\n"))
}

var (
	resultBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	highlightStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
)

// highlightTerms marks every word of text that is also a query term. Matching
// is exact, the same way the index compares terms.
func highlightTerms(text, query string) string {
	terms := make(map[string]struct{})
	for _, t := range strings.Fields(query) {
		terms[t] = struct{}{}
	}
	words := strings.Fields(text)
	if len(terms) == 0 {
		return strings.Join(words, " ")
	}
	for i, w := range words {
		if _, ok := terms[w]; ok {
			words[i] = highlightStyle.Render(w)
		}
	}
	return strings.Join(words, " ")
}
