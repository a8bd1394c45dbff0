// Package index implements a lexical TF-IDF index over the chunks of one
// document. Scores are cosine similarities between L2-normalised sparse
// vectors.
package index

import (
	"fmt"
	"slices"
	"sync/atomic"

	"pdfrag/internal/domain"
)

var (
	ErrEmptyCorpus = fmt.Errorf("%w: no chunks to index", domain.ErrEmptyInput)
	ErrInvalidTopK = fmt.Errorf("%w: top_k must be positive", domain.ErrInvalidArgument)
)

// Match is a chunk ranked against a query.
type Match struct {
	Index int     `json:"index"`
	Text  string  `json:"text"`
	Score float64 `json:"score"`
}

type snapshot struct {
	vocab   *Vocabulary
	chunks  []string
	vectors []Vector
}

// Index answers top-K queries over the chunks of the last successful Build.
//
// Build prepares a complete snapshot before publishing it, so readers never
// see a partially built vocabulary. A query keeps using the snapshot it
// started with even if a rebuild is published meanwhile.
type Index struct {
	current atomic.Pointer[snapshot]
}

// New returns an index in the empty state.
func New() *Index { return &Index{} }

// Build replaces the indexed corpus with chunks. On error the previous corpus
// stays in place.
func (ix *Index) Build(chunks []string) error {
	if len(chunks) == 0 {
		return ErrEmptyCorpus
	}
	tokens := make([][]string, len(chunks))
	for i, c := range chunks {
		tokens[i] = Tokenize(c)
	}
	vocab := newVocabulary(tokens)
	vectors := make([]Vector, len(chunks))
	for i := range tokens {
		vectors[i] = vocab.Vectorize(tokens[i])
	}
	ix.current.Store(&snapshot{
		vocab:   vocab,
		chunks:  slices.Clone(chunks),
		vectors: vectors,
	})
	return nil
}

// Query scores every chunk against text and returns the best topK, highest
// score first. Equal scores keep chunk order. A query sharing no term with
// the corpus scores 0 everywhere.
func (ix *Index) Query(text string, topK int) ([]Match, error) {
	if topK <= 0 {
		return nil, ErrInvalidTopK
	}
	snap := ix.current.Load()
	if snap == nil {
		return nil, domain.ErrNotBuilt
	}
	q := snap.vocab.Vectorize(Tokenize(text))
	matches := make([]Match, len(snap.chunks))
	for i, vec := range snap.vectors {
		matches[i] = Match{Index: i, Text: snap.chunks[i], Score: clamp(Dot(q, vec))}
	}
	slices.SortStableFunc(matches, func(a, b Match) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		}
		return a.Index - b.Index
	})
	return matches[:min(topK, len(matches))], nil
}

// Ready reports whether a Build has succeeded.
func (ix *Index) Ready() bool { return ix.current.Load() != nil }

// Len returns the number of indexed chunks.
func (ix *Index) Len() int {
	if snap := ix.current.Load(); snap != nil {
		return len(snap.chunks)
	}
	return 0
}

// VocabularySize returns the number of distinct indexed terms.
func (ix *Index) VocabularySize() int {
	if snap := ix.current.Load(); snap != nil {
		return snap.vocab.Len()
	}
	return 0
}

// Weight returns the IDF weight of term in the current vocabulary.
func (ix *Index) Weight(term string) (float64, bool) {
	snap := ix.current.Load()
	if snap == nil {
		return 0, false
	}
	return snap.vocab.IDF(term)
}

// rounding can push the dot product of two unit vectors slightly past 1
func clamp(score float64) float64 {
	switch {
	case score > 1:
		return 1
	case score < 0:
		return 0
	}
	return score
}
