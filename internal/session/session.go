// Package session holds the state of one interactive session: the loaded
// document, its retrieval index and the chat transcript.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"pdfrag/internal/chunker"
	"pdfrag/internal/domain"
	"pdfrag/internal/index"
	"pdfrag/internal/loader"
	"pdfrag/internal/logger"
	"pdfrag/internal/metrics"
	"pdfrag/internal/summarizer"
)

var (
	ErrNoDocument  = fmt.Errorf("%w: no document loaded", domain.ErrNotBuilt)
	ErrNoGenerator = errors.New("no language model configured")
	ErrEmptyPrompt = fmt.Errorf("%w: question is empty", domain.ErrInvalidArgument)
)

// Options configures retrieval and prompting.
type Options struct {
	ChunkSize        int
	Overlap          int
	TopK             int
	MaxContextChars  int
	SummarySentences int
}

// Option customises a Session.
type Option func(*Session)

// WithGenerator enables Ask, Summarize and DifficultTopics through a model.
func WithGenerator(g domain.Generator) Option {
	return func(s *Session) { s.generator = g }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Session) { s.metrics = m }
}

func WithSummarizer(sum domain.Summarizer) Option {
	return func(s *Session) { s.summarizer = sum }
}

// LoadResult describes a successful load.
type LoadResult struct {
	Document domain.Document
	Chunks   int
	Terms    int
	Summary  string
}

// Answer is a model reply with the chunks it was grounded on.
type Answer struct {
	Text    string                `json:"text"`
	Context []domain.SearchResult `json:"context,omitempty"`
}

// Session is safe for concurrent use. Retrievals share a read lock; a load
// prepares its chunks outside the lock and then swaps the index and document
// together once in-flight retrievals have finished. Model exchanges are
// serialized so each one sees the history left by the previous one.
type Session struct {
	chunker    domain.Chunker
	index      *index.Index
	generator  domain.Generator
	summarizer domain.Summarizer
	metrics    *metrics.Metrics
	logger     *slog.Logger
	opts       Options

	loadMu  sync.Mutex
	chatMu  sync.Mutex
	mu      sync.RWMutex
	doc     *domain.Document
	chunks  []domain.Chunk
	history []domain.Message
}

func New(opts Options, options ...Option) (*Session, error) {
	ch, err := chunker.NewWindowChunker(opts.ChunkSize, opts.Overlap)
	if err != nil {
		return nil, err
	}
	if opts.TopK <= 0 {
		return nil, fmt.Errorf("%w: top_k %d must be positive", domain.ErrInvalidArgument, opts.TopK)
	}
	s := &Session{
		chunker:    ch,
		index:      index.New(),
		summarizer: summarizer.NewExtractive(),
		logger:     logger.WithComponent("session"),
		opts:       opts,
	}
	for _, o := range options {
		o(s)
	}
	return s, nil
}

// LoadFile reads, chunks and indexes the document at path, replacing the
// current one. On failure the previous document stays loaded.
func (s *Session) LoadFile(path string) (LoadResult, error) {
	doc, err := loader.Load(path)
	if err != nil {
		s.metrics.ObserveBuild(0, 0, 0, err)
		return LoadResult{}, err
	}
	return s.LoadDocument(doc)
}

// LoadText indexes text that was extracted elsewhere.
func (s *Session) LoadText(name, text string) (LoadResult, error) {
	doc, err := loader.FromText(name, text)
	if err != nil {
		s.metrics.ObserveBuild(0, 0, 0, err)
		return LoadResult{}, err
	}
	return s.LoadDocument(doc)
}

// LoadDocument chunks and indexes doc, replacing the current document.
func (s *Session) LoadDocument(doc domain.Document) (LoadResult, error) {
	s.loadMu.Lock()
	defer s.loadMu.Unlock()

	start := time.Now()
	chunks, err := s.chunker.Chunk(doc)
	if err != nil {
		s.metrics.ObserveBuild(0, 0, 0, err)
		return LoadResult{}, err
	}
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	s.mu.Lock()
	err = s.index.Build(texts)
	if err == nil {
		s.doc = &doc
		s.chunks = chunks
	}
	terms := s.index.VocabularySize()
	s.mu.Unlock()

	elapsed := time.Since(start)
	s.metrics.ObserveBuild(elapsed, len(chunks), terms, err)
	if err != nil {
		return LoadResult{}, err
	}
	s.logger.Info("document indexed",
		"document", doc.Name,
		"pages", doc.Pages,
		"chunks", len(chunks),
		"terms", terms,
		"elapsed_ms", elapsed.Milliseconds(),
	)

	summary, err := s.summarizer.Summarize(doc.Content, s.opts.SummarySentences)
	if err != nil {
		s.logger.Warn("summary failed", "document", doc.Name, "error", err)
	}
	return LoadResult{Document: doc, Chunks: len(chunks), Terms: terms, Summary: summary}, nil
}

// Retrieve returns the topK chunks most similar to query. A non-positive
// topK uses the configured default.
func (s *Session) Retrieve(query string, topK int) ([]domain.SearchResult, error) {
	if topK <= 0 {
		topK = s.opts.TopK
	}
	start := time.Now()
	results, err := s.retrieve(query, topK)
	top := 0.0
	if len(results) > 0 {
		top = results[0].Score
	}
	s.metrics.ObserveQuery(time.Since(start), top, err)
	return results, err
}

func (s *Session) retrieve(query string, topK int) ([]domain.SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.doc == nil {
		return nil, ErrNoDocument
	}
	matches, err := s.index.Query(query, topK)
	if err != nil {
		return nil, err
	}
	results := make([]domain.SearchResult, len(matches))
	for i, m := range matches {
		results[i] = domain.SearchResult{Chunk: s.chunks[m.Index], Score: m.Score}
	}
	return results, nil
}

// Ask answers question with the model. With a document loaded the best
// matching chunks are supplied as context; otherwise the question goes to the
// model with the chat history alone. The exchange is recorded on success.
func (s *Session) Ask(ctx context.Context, question string) (Answer, error) {
	if s.generator == nil {
		return Answer{}, ErrNoGenerator
	}
	question = strings.TrimSpace(question)
	if question == "" {
		return Answer{}, ErrEmptyPrompt
	}

	s.chatMu.Lock()
	defer s.chatMu.Unlock()

	var (
		grounding []domain.SearchResult
		messages  []domain.Message
	)
	if s.Loaded() {
		var err error
		grounding, err = s.Retrieve(question, s.opts.TopK)
		if err != nil {
			return Answer{}, err
		}
		messages = append(messages,
			domain.Message{Role: domain.RoleSystem, Content: groundedSystemPrompt},
			contextMessage(grounding),
		)
	}
	user := domain.Message{Role: domain.RoleUser, Content: question}
	messages = append(messages, s.History()...)
	messages = append(messages, user)

	reply, err := s.chat(ctx, "ask", messages)
	if err != nil {
		return Answer{}, err
	}

	s.record(user, domain.Message{Role: domain.RoleAssistant, Content: reply})
	return Answer{Text: reply, Context: grounding}, nil
}

// Summarize describes the loaded document. Without a model it falls back to
// an extractive summary. The summary is recorded in the chat history.
func (s *Session) Summarize(ctx context.Context) (string, error) {
	doc, ok := s.Document()
	if !ok {
		return "", ErrNoDocument
	}
	s.chatMu.Lock()
	defer s.chatMu.Unlock()

	var (
		summary string
		err     error
	)
	if s.generator == nil {
		summary, err = s.summarizer.Summarize(doc.Content, s.opts.SummarySentences)
	} else {
		summary, err = s.chat(ctx, "summary", []domain.Message{
			{Role: domain.RoleSystem, Content: summarySystemPrompt},
			{Role: domain.RoleUser, Content: summaryPrompt(truncate(doc.Content, s.opts.MaxContextChars))},
		})
	}
	if err != nil {
		return "", err
	}
	s.record(domain.Message{Role: domain.RoleAssistant, Content: summaryLabel + summary})
	return summary, nil
}

// DifficultTopics asks the model which parts of the document need explaining
// and records the reply in the chat history.
func (s *Session) DifficultTopics(ctx context.Context) (string, error) {
	doc, ok := s.Document()
	if !ok {
		return "", ErrNoDocument
	}
	if s.generator == nil {
		return "", ErrNoGenerator
	}
	s.chatMu.Lock()
	defer s.chatMu.Unlock()

	topics, err := s.chat(ctx, "topics", []domain.Message{
		{Role: domain.RoleSystem, Content: topicsSystemPrompt},
		{Role: domain.RoleUser, Content: topicsPrompt(truncate(doc.Content, s.opts.MaxContextChars))},
	})
	if err != nil {
		return "", err
	}
	s.record(domain.Message{Role: domain.RoleAssistant, Content: topicsLabel + topics})
	return topics, nil
}

func (s *Session) record(messages ...domain.Message) {
	s.mu.Lock()
	s.history = append(s.history, messages...)
	s.mu.Unlock()
}

func (s *Session) chat(ctx context.Context, kind string, messages []domain.Message) (string, error) {
	start := time.Now()
	reply, err := s.generator.Chat(ctx, messages)
	s.metrics.ObserveLLM(kind, time.Since(start), err)
	if err != nil {
		s.logger.Error("model request failed", "kind", kind, "error", err)
		return "", fmt.Errorf("%s: %w", kind, err)
	}
	return reply, nil
}

// CanGenerate reports whether a model is configured.
func (s *Session) CanGenerate() bool { return s.generator != nil }

// Loaded reports whether a document is indexed.
func (s *Session) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc != nil
}

// Document returns the loaded document.
func (s *Session) Document() (domain.Document, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.doc == nil {
		return domain.Document{}, false
	}
	return *s.doc, true
}

// ChunkCount returns the number of indexed chunks.
func (s *Session) ChunkCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks)
}

// History returns a copy of the chat transcript.
func (s *Session) History() []domain.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.history)
}

func (s *Session) ClearHistory() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = nil
}
