package tui

import (
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdfrag/internal/domain"
	"pdfrag/internal/session"
)

type fakePort struct {
	results   []domain.SearchResult
	err       error
	generate  bool
	cleared   bool
	lastTopK  int
	questions []string
}

func (f *fakePort) Retrieve(_ string, topK int) ([]domain.SearchResult, error) {
	f.lastTopK = topK
	return f.results, f.err
}

func (f *fakePort) Ask(_ context.Context, q string) (session.Answer, error) {
	f.questions = append(f.questions, q)
	return session.Answer{Text: "because", Context: f.results}, f.err
}

func (f *fakePort) Summarize(context.Context) (string, error) { return "short summary", nil }

func (f *fakePort) DifficultTopics(context.Context) (string, error) {
	if !f.generate {
		return "", session.ErrNoGenerator
	}
	return "entropy", nil
}

func (f *fakePort) CanGenerate() bool { return f.generate }
func (f *fakePort) ClearHistory()     { f.cleared = true }
func (f *fakePort) Document() (domain.Document, bool) {
	return domain.Document{Name: "notes.pdf"}, true
}

func sized(t *testing.T, port SessionPort) Model {
	t.Helper()
	m := New(context.Background(), port, "a summary", 3)
	updated, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 30})
	return updated.(Model)
}

func typeAndEnter(m Model, text string) (Model, tea.Cmd) {
	m.input.SetValue(text)
	updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	return updated.(Model), cmd
}

func TestNew_Status(t *testing.T) {
	m := New(context.Background(), &fakePort{generate: true}, "", 3)
	assert.Contains(t, m.status, "notes.pdf")
	assert.Contains(t, m.status, "Tab")
	assert.Equal(t, "Loading...", m.View())
}

func TestSearch_ShowsResults(t *testing.T) {
	port := &fakePort{results: []domain.SearchResult{
		{Chunk: domain.Chunk{Index: 2, Text: "the cat sat"}, Score: 0.9},
		{Chunk: domain.Chunk{Index: 0, Text: "a dog ran"}, Score: 0.1},
	}}
	m := sized(t, port)

	m, _ = typeAndEnter(m, "cat")
	assert.Equal(t, 3, port.lastTopK)
	require.Len(t, m.results, 2)
	assert.Contains(t, m.renderCurrentResult(), "Result 1/2")
	assert.Contains(t, m.renderCurrentResult(), "chunk #2")

	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyDown})
	m = updated.(Model)
	assert.Equal(t, 1, m.cursor)
	updated, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
	m = updated.(Model)
	assert.Equal(t, 0, m.cursor, "cursor wraps")
	updated, _ = m.Update(tea.KeyMsg{Type: tea.KeyUp})
	assert.Equal(t, 1, updated.(Model).cursor)
}

func TestSearch_Error(t *testing.T) {
	m := sized(t, &fakePort{err: errors.New("boom")})
	m, _ = typeAndEnter(m, "cat")
	assert.Equal(t, "Error: boom", m.status)
	assert.Empty(t, m.results)
}

func TestTab_WithoutGenerator(t *testing.T) {
	m := sized(t, &fakePort{})
	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyTab})
	m = updated.(Model)
	assert.Equal(t, modeSearch, m.mode)
	assert.Contains(t, m.status, "unavailable")
}

func TestAskMode(t *testing.T) {
	port := &fakePort{generate: true}
	m := sized(t, port)
	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyTab})
	m = updated.(Model)
	require.Equal(t, modeAsk, m.mode)

	m, cmd := typeAndEnter(m, "why?")
	require.NotNil(t, cmd)
	assert.True(t, m.waiting)
	assert.Empty(t, m.input.Value())

	updated, _ = m.Update(cmd())
	m = updated.(Model)
	assert.False(t, m.waiting)
	assert.Equal(t, []string{"why?"}, port.questions)
	assert.Equal(t, []string{"You: why?", "Assistant: because"}, m.chat)
	assert.Contains(t, m.View(), "[ask]")

	updated, _ = m.Update(tea.KeyMsg{Type: tea.KeyCtrlL})
	m = updated.(Model)
	assert.True(t, port.cleared)
	assert.Empty(t, m.chat)
}

func TestReloadedMsg(t *testing.T) {
	m := sized(t, &fakePort{})
	updated, _ := m.Update(ReloadedMsg{Result: session.LoadResult{
		Document: domain.Document{Name: "notes.pdf"},
		Chunks:   7,
		Summary:  "new summary",
	}})
	m = updated.(Model)
	assert.Equal(t, "new summary", m.summary)
	assert.Contains(t, m.status, "7 chunks")

	updated, _ = m.Update(ReloadedMsg{Err: errors.New("gone")})
	assert.Equal(t, "Reload failed: gone", updated.(Model).status)
}

func TestHighlightTerms(t *testing.T) {
	assert.Equal(t, "the cat sat", highlightTerms("the  cat\nsat", ""))
	out := highlightTerms("the cat sat on the Cat", "cat")
	assert.Equal(t, 1, strings.Count(out, highlightStyle.Render("cat")))
	assert.True(t, strings.HasSuffix(out, "Cat"))
}

func TestSummaryAndTopicsKeys(t *testing.T) {
	m := sized(t, &fakePort{generate: true})

	updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlS})
	m = updated.(Model)
	require.NotNil(t, cmd)
	assert.True(t, m.waiting)
	updated, _ = m.Update(cmd())
	m = updated.(Model)
	assert.False(t, m.waiting)
	assert.Equal(t, modeAsk, m.mode)
	assert.Equal(t, []string{"PDF Summary:\nshort summary"}, m.chat)

	updated, cmd = m.Update(tea.KeyMsg{Type: tea.KeyCtrlT})
	m = updated.(Model)
	updated, _ = m.Update(cmd())
	m = updated.(Model)
	assert.Equal(t, "Difficult Topics:\nentropy", m.chat[1])
}

func TestTopicsKey_WithoutGenerator(t *testing.T) {
	m := sized(t, &fakePort{})

	updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlT})
	m = updated.(Model)
	updated, _ = m.Update(cmd())
	m = updated.(Model)
	assert.Equal(t, "Error: no language model configured", m.status)
	assert.Empty(t, m.chat)
	assert.Equal(t, modeSearch, m.mode)

	// the extractive summary still works and the view can go back to search
	updated, cmd = m.Update(tea.KeyMsg{Type: tea.KeyCtrlS})
	updated, _ = updated.(Model).Update(cmd())
	m = updated.(Model)
	require.Equal(t, modeAsk, m.mode)
	updated, _ = m.Update(tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, modeSearch, updated.(Model).mode)
}
