// Package server exposes a loaded session over a JSON HTTP API.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/time/rate"

	"pdfrag/internal/domain"
	"pdfrag/internal/loader"
	"pdfrag/internal/logger"
	"pdfrag/internal/metrics"
	"pdfrag/internal/session"
)

// Service is the subset of the session used by the API.
type Service interface {
	LoadDocument(doc domain.Document) (session.LoadResult, error)
	domain.Retriever
	Ask(ctx context.Context, question string) (session.Answer, error)
	Summarize(ctx context.Context) (string, error)
	DifficultTopics(ctx context.Context) (string, error)
	Document() (domain.Document, bool)
	ChunkCount() int
	History() []domain.Message
	ClearHistory()
}

// Options tunes request limits.
type Options struct {
	MaxTopK        int
	MaxUploadBytes int64
	AskRatePerSec  float64
	AskBurst       int
}

type Server struct {
	svc     Service
	metrics *metrics.Metrics
	limiter *rate.Limiter
	opts    Options
	logger  *slog.Logger
}

func New(svc Service, m *metrics.Metrics, opts Options) *Server {
	if opts.MaxTopK <= 0 {
		opts.MaxTopK = 50
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 32 << 20
	}
	limit := rate.Inf
	if opts.AskRatePerSec > 0 {
		limit = rate.Limit(opts.AskRatePerSec)
	}
	return &Server{
		svc:     svc,
		metrics: m,
		limiter: rate.NewLimiter(limit, max(opts.AskBurst, 1)),
		opts:    opts,
		logger:  logger.WithComponent("server"),
	}
}

// Handler returns the routed API with middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /documents", s.Upload)
	mux.HandleFunc("GET /document", s.Info)
	mux.HandleFunc("GET /query", s.Query)
	mux.HandleFunc("POST /ask", Limit(s.limiter, s.Ask))
	mux.HandleFunc("POST /summary", Limit(s.limiter, s.Summary))
	mux.HandleFunc("POST /topics", Limit(s.limiter, s.Topics))
	mux.HandleFunc("GET /history", s.History)
	mux.HandleFunc("DELETE /history", s.ClearHistory)
	mux.HandleFunc("GET /healthz", s.Health)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}

	var chain http.Handler = mux
	chain = Observe(s.metrics)(chain)
	chain = RequestID(chain)
	return chain
}

type matchJSON struct {
	Index int     `json:"index"`
	Score float64 `json:"score"`
	Text  string  `json:"text"`
}

type documentJSON struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Pages  int    `json:"pages"`
	Chunks int    `json:"chunks"`
}

// Upload accepts a multipart "file" field or a raw text body named by ?name=.
func (s *Server) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)

	var (
		doc domain.Document
		err error
	)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		doc, err = s.readMultipart(r)
	} else {
		doc, err = s.readBody(r)
	}
	if err != nil {
		s.fail(w, r, err, http.StatusBadRequest)
		return
	}

	res, err := s.svc.LoadDocument(doc)
	if err != nil {
		s.fail(w, r, err, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"document": documentJSON{ID: res.Document.ID, Name: res.Document.Name, Pages: res.Document.Pages, Chunks: res.Chunks},
		"terms":    res.Terms,
		"summary":  res.Summary,
	})
}

func (s *Server) readBody(r *http.Request) (domain.Document, error) {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		return domain.Document{}, fmt.Errorf("reading body: %w", err)
	}
	name := r.URL.Query().Get("name")
	if name == "" {
		name = "upload.txt"
	}
	return loader.FromText(name, string(data))
}

// readMultipart spools the upload to a temp file because the PDF reader
// needs random access.
func (s *Server) readMultipart(r *http.Request) (domain.Document, error) {
	file, header, err := r.FormFile("file")
	if err != nil {
		return domain.Document{}, fmt.Errorf("%w: missing file field", domain.ErrInvalidArgument)
	}
	defer file.Close()

	tmp, err := os.CreateTemp("", "pdfrag-upload-*"+strings.ToLower(filepath.Ext(header.Filename)))
	if err != nil {
		return domain.Document{}, err
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()
	if _, err := io.Copy(tmp, file); err != nil {
		return domain.Document{}, fmt.Errorf("saving upload: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return domain.Document{}, err
	}

	doc, err := loader.Load(tmp.Name())
	if err != nil {
		return domain.Document{}, err
	}
	doc.Name = header.Filename
	doc.Path = ""
	return doc, nil
}

func (s *Server) Info(w http.ResponseWriter, r *http.Request) {
	doc, ok := s.svc.Document()
	if !ok {
		s.fail(w, r, session.ErrNoDocument, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, documentJSON{ID: doc.ID, Name: doc.Name, Pages: doc.Pages, Chunks: s.svc.ChunkCount()})
}

func (s *Server) Query(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	topK := 0
	if v := r.URL.Query().Get("k"); v != "" {
		k, err := strconv.Atoi(v)
		if err != nil || k < 1 {
			writeError(w, http.StatusBadRequest, "k must be a positive integer")
			return
		}
		topK = min(k, s.opts.MaxTopK)
	}

	results, err := s.svc.Retrieve(q, topK)
	if err != nil {
		s.fail(w, r, err, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"query":   q,
		"results": toMatches(results),
	})
}

type askRequest struct {
	Question string `json:"question"`
}

func (s *Server) Ask(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	answer, err := s.svc.Ask(r.Context(), req.Question)
	if err != nil {
		s.fail(w, r, err, http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"answer":  answer.Text,
		"context": toMatches(answer.Context),
	})
}

func (s *Server) Summary(w http.ResponseWriter, r *http.Request) {
	text, err := s.svc.Summarize(r.Context())
	if err != nil {
		s.fail(w, r, err, http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"summary": text})
}

func (s *Server) Topics(w http.ResponseWriter, r *http.Request) {
	text, err := s.svc.DifficultTopics(r.Context())
	if err != nil {
		s.fail(w, r, err, http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"topics": text})
}

func (s *Server) History(w http.ResponseWriter, r *http.Request) {
	history := s.svc.History()
	if history == nil {
		history = []domain.Message{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": history})
}

func (s *Server) ClearHistory(w http.ResponseWriter, r *http.Request) {
	s.svc.ClearHistory()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	_, loaded := s.svc.Document()
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "loaded": loaded})
}

func toMatches(results []domain.SearchResult) []matchJSON {
	out := make([]matchJSON, len(results))
	for i, r := range results {
		out[i] = matchJSON{Index: r.Chunk.Index, Score: r.Score, Text: r.Chunk.Text}
	}
	return out
}

// fail maps err onto a status code, using fallback for unclassified errors.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error, fallback int) {
	status := StatusCode(err, fallback)
	log := logger.FromContext(r.Context())
	if status >= http.StatusInternalServerError {
		log.Error("request failed", "path", r.URL.Path, "error", err)
	} else {
		log.Debug("request rejected", "path", r.URL.Path, "status", status, "error", err)
	}
	writeError(w, status, err.Error())
}

// StatusCode classifies err for an HTTP response.
func StatusCode(err error, fallback int) int {
	var maxBytes *http.MaxBytesError
	switch {
	case errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, domain.ErrInvalidArgument),
		errors.Is(err, domain.ErrInvalidChunking),
		errors.Is(err, domain.ErrEmptyInput),
		errors.Is(err, loader.ErrUnsupportedFormat):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotBuilt):
		return http.StatusConflict
	case errors.Is(err, session.ErrNoGenerator):
		return http.StatusNotImplemented
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return fallback
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to write response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
