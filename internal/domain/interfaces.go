package domain

import "context"

// Document is the full text extracted from one source file. It is produced
// once per load and never mutated afterwards.
type Document struct {
	ID      string
	Path    string
	Name    string
	Content string
	Pages   int
}

// Chunk is an overlapping word window of a document.
type Chunk struct {
	DocumentID string `json:"document_id"`
	Index      int    `json:"index"`
	Text       string `json:"text"`
}

// SearchResult is a chunk together with its similarity to a query.
type SearchResult struct {
	Chunk Chunk   `json:"chunk"`
	Score float64 `json:"score"`
}

// Role identifies the author of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single entry of a chat transcript.
type Message struct {
	Role    Role   `json:"role" yaml:"role"`
	Content string `json:"content" yaml:"content"`
}

// Chunker splits documents into chunks suitable for retrieval indexing.
type Chunker interface {
	Chunk(document Document) ([]Chunk, error)
}

// Retriever answers top-K lexical queries over the currently loaded document.
type Retriever interface {
	Retrieve(query string, topK int) ([]SearchResult, error)
}

// Generator produces a chat reply for the given transcript.
type Generator interface {
	Chat(ctx context.Context, messages []Message) (string, error)
}

// Summarizer produces a brief summary of the provided text.
type Summarizer interface {
	Summarize(text string, maxSentences int) (string, error)
}
