package index

import (
	"math"
	"slices"
	"strings"
)

// Vocabulary maps every term seen at build time to a dimension and an
// inverse document frequency weight. It is never modified after creation.
type Vocabulary struct {
	dims  map[string]int
	terms []string
	idf   []float64
}

// Tokenize splits text on whitespace. Terms keep their case and punctuation.
func Tokenize(text string) []string {
	return strings.Fields(text)
}

func newVocabulary(docs [][]string) *Vocabulary {
	df := make(map[string]int)
	for _, tokens := range docs {
		seen := make(map[string]struct{}, len(tokens))
		for _, tok := range tokens {
			if _, ok := seen[tok]; ok {
				continue
			}
			seen[tok] = struct{}{}
			df[tok]++
		}
	}
	terms := make([]string, 0, len(df))
	for term := range df {
		terms = append(terms, term)
	}
	slices.Sort(terms)

	v := &Vocabulary{
		dims:  make(map[string]int, len(terms)),
		terms: terms,
		idf:   make([]float64, len(terms)),
	}
	n := float64(len(docs))
	for i, term := range terms {
		v.dims[term] = i
		v.idf[i] = math.Log((1+n)/(1+float64(df[term]))) + 1
	}
	return v
}

// Len returns the number of distinct terms.
func (v *Vocabulary) Len() int { return len(v.terms) }

// IDF returns the weight of term and whether it is part of the vocabulary.
func (v *Vocabulary) IDF(term string) (float64, bool) {
	dim, ok := v.dims[term]
	if !ok {
		return 0, false
	}
	return v.idf[dim], true
}

// Vectorize turns tokens into an L2-normalised TF-IDF vector. Tokens outside
// the vocabulary are ignored.
func (v *Vocabulary) Vectorize(tokens []string) Vector {
	counts := make(map[int]int, len(tokens))
	for _, tok := range tokens {
		if dim, ok := v.dims[tok]; ok {
			counts[dim]++
		}
	}
	vec := make(Vector, 0, len(counts))
	for dim, count := range counts {
		vec = append(vec, Entry{Dim: dim, Weight: float64(count) * v.idf[dim]})
	}
	slices.SortFunc(vec, func(a, b Entry) int { return a.Dim - b.Dim })
	return vec.Normalize()
}
