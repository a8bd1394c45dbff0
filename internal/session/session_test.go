package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdfrag/internal/domain"
	"pdfrag/internal/metrics"
)

type fakeGenerator struct {
	mu    sync.Mutex
	calls [][]domain.Message
	reply string
	err   error
}

func (f *fakeGenerator) Chat(_ context.Context, messages []domain.Message) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, messages)
	return f.reply, f.err
}

func (f *fakeGenerator) last() []domain.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[len(f.calls)-1]
}

var testOptions = Options{ChunkSize: 3, Overlap: 0, TopK: 2, MaxContextChars: 20, SummarySentences: 2}

func newSession(t *testing.T, options ...Option) *Session {
	t.Helper()
	s, err := New(testOptions, options...)
	require.NoError(t, err)
	return s
}

func TestNew_InvalidOptions(t *testing.T) {
	_, err := New(Options{ChunkSize: 10, Overlap: 10, TopK: 1})
	assert.ErrorIs(t, err, domain.ErrInvalidChunking)

	_, err = New(Options{ChunkSize: 10, TopK: 0})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestLoadTextAndRetrieve(t *testing.T) {
	m := metrics.New()
	s := newSession(t, WithMetrics(m))
	assert.False(t, s.Loaded())

	res, err := s.LoadText("pets.txt", "the cat sat the dog ran cats and dogs")
	require.NoError(t, err)
	assert.Equal(t, 3, res.Chunks)
	assert.Equal(t, "pets.txt", res.Document.Name)
	assert.NotEmpty(t, res.Summary)
	assert.True(t, s.Loaded())
	assert.Equal(t, 3, s.ChunkCount())

	results, err := s.Retrieve("cat", 0)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "the cat sat", results[0].Chunk.Text)
	assert.Equal(t, 0, results[0].Chunk.Index)
	assert.Equal(t, res.Document.ID, results[0].Chunk.DocumentID)
	assert.Greater(t, results[0].Score, results[1].Score)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.IndexBuildsTotal.WithLabelValues("ok")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.IndexedChunks))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.QueriesTotal.WithLabelValues("hit")))
}

func TestRetrieve_BeforeLoad(t *testing.T) {
	s := newSession(t)
	_, err := s.Retrieve("cat", 3)
	assert.ErrorIs(t, err, ErrNoDocument)
	assert.ErrorIs(t, err, domain.ErrNotBuilt)
}

func TestLoad_FailureKeepsPreviousDocument(t *testing.T) {
	s := newSession(t)
	_, err := s.LoadText("first", "alpha beta gamma")
	require.NoError(t, err)

	_, err = s.LoadText("second", "   ")
	assert.ErrorIs(t, err, domain.ErrEmptyInput)

	doc, ok := s.Document()
	require.True(t, ok)
	assert.Equal(t, "first", doc.Name)
	results, err := s.Retrieve("beta", 1)
	require.NoError(t, err)
	assert.Positive(t, results[0].Score)
}

func TestLoad_ReplacesPreviousDocument(t *testing.T) {
	s := newSession(t)
	_, err := s.LoadText("first", "the cat sat")
	require.NoError(t, err)
	second, err := s.LoadText("second", "quantum field theory is hard")
	require.NoError(t, err)

	results, err := s.Retrieve("cat", 5)
	require.NoError(t, err)
	for _, r := range results {
		assert.Zero(t, r.Score)
		assert.Equal(t, second.Document.ID, r.Chunk.DocumentID)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.txt")
	require.NoError(t, os.WriteFile(path, []byte("one two three four five"), 0o644))
	s := newSession(t)

	res, err := s.LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Chunks)
	assert.Equal(t, path, res.Document.Path)

	_, err = s.LoadFile(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
	assert.True(t, s.Loaded())
}

func TestAsk_GroundedInDocument(t *testing.T) {
	gen := &fakeGenerator{reply: "It sat."}
	s := newSession(t, WithGenerator(gen))
	_, err := s.LoadText("pets", "the cat sat the dog ran")
	require.NoError(t, err)

	answer, err := s.Ask(context.Background(), "  what did the cat do? ")
	require.NoError(t, err)
	assert.Equal(t, "It sat.", answer.Text)
	require.NotEmpty(t, answer.Context)
	assert.Equal(t, "the cat sat", answer.Context[0].Chunk.Text)

	sent := gen.last()
	require.Len(t, sent, 3)
	assert.Equal(t, domain.RoleSystem, sent[0].Role)
	assert.Equal(t, domain.RoleSystem, sent[1].Role)
	assert.True(t, strings.HasPrefix(sent[1].Content, "Context from the document: the cat sat"))
	assert.Equal(t, domain.Message{Role: domain.RoleUser, Content: "what did the cat do?"}, sent[2])

	assert.Equal(t, []domain.Message{
		{Role: domain.RoleUser, Content: "what did the cat do?"},
		{Role: domain.RoleAssistant, Content: "It sat."},
	}, s.History())
}

func TestAsk_WithoutDocumentUsesHistory(t *testing.T) {
	gen := &fakeGenerator{reply: "hello"}
	s := newSession(t, WithGenerator(gen))

	_, err := s.Ask(context.Background(), "hi")
	require.NoError(t, err)
	answer, err := s.Ask(context.Background(), "again")
	require.NoError(t, err)
	assert.Empty(t, answer.Context)

	sent := gen.last()
	require.Len(t, sent, 3)
	assert.Equal(t, "hi", sent[0].Content)
	assert.Equal(t, domain.RoleAssistant, sent[1].Role)
	assert.Equal(t, "again", sent[2].Content)

	s.ClearHistory()
	assert.Empty(t, s.History())
}

func TestAsk_Errors(t *testing.T) {
	s := newSession(t)
	_, err := s.Ask(context.Background(), "hi")
	assert.ErrorIs(t, err, ErrNoGenerator)
	assert.False(t, s.CanGenerate())

	boom := errors.New("connection refused")
	gen := &fakeGenerator{err: boom}
	s = newSession(t, WithGenerator(gen))
	assert.True(t, s.CanGenerate())

	_, err = s.Ask(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrEmptyPrompt)

	_, err = s.Ask(context.Background(), "hi")
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, s.History())
}

func TestSummarize(t *testing.T) {
	s := newSession(t)
	_, err := s.Summarize(context.Background())
	assert.ErrorIs(t, err, ErrNoDocument)

	_, err = s.LoadText("doc", "First point here. Second point here. Third point.")
	require.NoError(t, err)
	summary, err := s.Summarize(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, summary)
	assert.Equal(t, []domain.Message{{Role: domain.RoleAssistant, Content: "PDF Summary:\n" + summary}}, s.History())

	gen := &fakeGenerator{reply: "a summary"}
	s = newSession(t, WithGenerator(gen))
	_, err = s.LoadText("doc", "First point here. Second point here. Third point.")
	require.NoError(t, err)
	summary, err = s.Summarize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "a summary", summary)

	sent := gen.last()
	require.Len(t, sent, 2)
	assert.Contains(t, sent[1].Content, "Text: First point here. Se")
	assert.NotContains(t, sent[1].Content, "Third")
	assert.Equal(t, []domain.Message{{Role: domain.RoleAssistant, Content: "PDF Summary:\na summary"}}, s.History())
}

func TestDifficultTopics(t *testing.T) {
	s := newSession(t)
	_, err := s.LoadText("doc", "entropy is subtle")
	require.NoError(t, err)
	_, err = s.DifficultTopics(context.Background())
	assert.ErrorIs(t, err, ErrNoGenerator)

	gen := &fakeGenerator{reply: "entropy"}
	s = newSession(t, WithGenerator(gen))
	_, err = s.DifficultTopics(context.Background())
	assert.ErrorIs(t, err, ErrNoDocument)

	_, err = s.LoadText("doc", "entropy is subtle")
	require.NoError(t, err)
	topics, err := s.DifficultTopics(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "entropy", topics)
	assert.Equal(t, topicsSystemPrompt, gen.last()[0].Content)
	assert.Equal(t, []domain.Message{{Role: domain.RoleAssistant, Content: "Difficult Topics:\nentropy"}}, s.History())
}

func TestSummaryAndTopicsBecomeChatContext(t *testing.T) {
	gen := &fakeGenerator{reply: "noted"}
	s := newSession(t, WithGenerator(gen))
	_, err := s.LoadText("doc", "entropy is subtle")
	require.NoError(t, err)

	_, err = s.Summarize(context.Background())
	require.NoError(t, err)
	_, err = s.DifficultTopics(context.Background())
	require.NoError(t, err)
	require.Len(t, s.History(), 2)

	_, err = s.Ask(context.Background(), "what next?")
	require.NoError(t, err)
	sent := gen.last()
	// system, context, two recorded replies, question
	require.Len(t, sent, 5)
	assert.Equal(t, "PDF Summary:\nnoted", sent[2].Content)
	assert.Equal(t, "Difficult Topics:\nnoted", sent[3].Content)
	assert.Len(t, s.History(), 4)
}

func TestSummarize_FailureNotRecorded(t *testing.T) {
	s := newSession(t, WithGenerator(&fakeGenerator{err: errors.New("down")}))
	_, err := s.LoadText("doc", "entropy is subtle")
	require.NoError(t, err)

	_, err = s.Summarize(context.Background())
	require.Error(t, err)
	_, err = s.DifficultTopics(context.Background())
	require.Error(t, err)
	assert.Empty(t, s.History())
}

func TestAsk_ConcurrentExchangesSeeEachOther(t *testing.T) {
	gen := &fakeGenerator{reply: "ok"}
	s := newSession(t, WithGenerator(gen))

	const n = 8
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Ask(context.Background(), fmt.Sprintf("question %d", i))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	history := s.History()
	require.Len(t, history, 2*n)
	seen := make(map[int]bool)
	for _, call := range gen.calls {
		// each call carries the full history of the exchanges before it
		seen[len(call)-1] = true
	}
	for i := range n {
		assert.True(t, seen[2*i], "no call saw %d prior messages", 2*i)
		assert.Equal(t, domain.RoleUser, history[2*i].Role)
		assert.Equal(t, domain.RoleAssistant, history[2*i+1].Role)
	}
}

func TestConcurrentRetrieveDuringReload(t *testing.T) {
	s := newSession(t)
	_, err := s.LoadText("a", "red green blue red green blue")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				results, err := s.Retrieve("red", 2)
				if assert.NoError(t, err) {
					doc, _ := s.Document()
					assert.NotEmpty(t, doc.ID)
					assert.Len(t, results, 2)
				}
			}
		}()
	}
	for i := 0; i < 20; i++ {
		_, err := s.LoadText("b", "red fish blue fish one fish two fish")
		require.NoError(t, err)
	}
	wg.Wait()
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 10))
	assert.Equal(t, "ab", truncate("abc", 2))
	assert.Equal(t, "abc", truncate("abc", 0))
	assert.Equal(t, "a", truncate("aé", 2))
}
