package chunker

import (
	"fmt"
	"strings"

	"pdfrag/internal/domain"
)

// Split breaks text into windows of up to size whitespace-separated words.
// Consecutive windows start size-overlap words apart, so each shares overlap
// words with its predecessor. Text without words yields no windows.
func Split(text string, size, overlap int) ([]string, error) {
	if err := Validate(size, overlap); err != nil {
		return nil, err
	}
	words := strings.Fields(text)
	if len(words) == 0 {
		return []string{}, nil
	}
	stride := size - overlap
	windows := make([]string, 0, (len(words)+stride-1)/stride)
	for start := 0; start < len(words); start += stride {
		end := min(start+size, len(words))
		windows = append(windows, strings.Join(words[start:end], " "))
	}
	return windows, nil
}

// Validate checks that size and overlap describe a window that advances.
func Validate(size, overlap int) error {
	switch {
	case size <= 0:
		return fmt.Errorf("%w: chunk size %d must be positive", domain.ErrInvalidChunking, size)
	case overlap < 0:
		return fmt.Errorf("%w: overlap %d must not be negative", domain.ErrInvalidChunking, overlap)
	case overlap >= size:
		return fmt.Errorf("%w: overlap %d must be smaller than chunk size %d", domain.ErrInvalidChunking, overlap, size)
	}
	return nil
}

// WindowChunker splits documents into overlapping fixed-size word windows.
type WindowChunker struct {
	size    int
	overlap int
}

func NewWindowChunker(size, overlap int) (*WindowChunker, error) {
	if err := Validate(size, overlap); err != nil {
		return nil, err
	}
	return &WindowChunker{size: size, overlap: overlap}, nil
}

// Size returns the number of words per window.
func (c *WindowChunker) Size() int { return c.size }

// Overlap returns the number of words shared by adjacent windows.
func (c *WindowChunker) Overlap() int { return c.overlap }

func (c *WindowChunker) Chunk(document domain.Document) ([]domain.Chunk, error) {
	windows, err := Split(document.Content, c.size, c.overlap)
	if err != nil {
		return nil, err
	}
	if len(windows) == 0 {
		return nil, fmt.Errorf("%w: document %q has no words", domain.ErrEmptyInput, document.Name)
	}
	chunks := make([]domain.Chunk, len(windows))
	for i, text := range windows {
		chunks[i] = domain.Chunk{DocumentID: document.ID, Index: i, Text: text}
	}
	return chunks, nil
}
