package summarizer

import (
	"math"
	"regexp"
	"slices"
	"strings"
)

var (
	sentenceRe = regexp.MustCompile(`[^.!?]+[.!?]*`)
	wordRe     = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`)
)

// Extractive picks the sentences whose words occur most often in the text.
// It needs no model and is used for the summary shown right after a load.
type Extractive struct {
	stopwords map[string]struct{}
}

func NewExtractive() *Extractive {
	return &Extractive{stopwords: defaultStopwords()}
}

// Summarize returns up to maxSentences sentences in their original order.
func (s *Extractive) Summarize(text string, maxSentences int) (string, error) {
	if maxSentences <= 0 {
		maxSentences = 5
	}
	sentences := splitSentences(text)
	if len(sentences) <= maxSentences {
		return strings.Join(sentences, " "), nil
	}

	freq := make(map[string]float64)
	tokens := make([][]string, len(sentences))
	for i, sent := range sentences {
		tokens[i] = s.words(sent)
		for _, w := range tokens[i] {
			freq[w]++
		}
	}
	peak := 0.0
	for _, f := range freq {
		peak = max(peak, f)
	}

	type scored struct {
		idx   int
		score float64
	}
	ranked := make([]scored, len(sentences))
	for i, words := range tokens {
		total := 0.0
		for _, w := range words {
			total += freq[w] / peak
		}
		if len(words) > 0 {
			total /= math.Sqrt(float64(len(words)))
		}
		ranked[i] = scored{i, total}
	}
	slices.SortStableFunc(ranked, func(a, b scored) int {
		switch {
		case a.score > b.score:
			return -1
		case a.score < b.score:
			return 1
		}
		return 0
	})

	keep := make([]int, maxSentences)
	for i := range keep {
		keep[i] = ranked[i].idx
	}
	slices.Sort(keep)
	out := make([]string, len(keep))
	for i, idx := range keep {
		out[i] = sentences[idx]
	}
	return strings.Join(out, " "), nil
}

func splitSentences(text string) []string {
	var out []string
	for _, raw := range sentenceRe.FindAllString(text, -1) {
		if sent := strings.Join(strings.Fields(raw), " "); sent != "" && sent != "." {
			out = append(out, sent)
		}
	}
	return out
}

func (s *Extractive) words(sentence string) []string {
	raw := wordRe.FindAllString(strings.ToLower(sentence), -1)
	out := raw[:0]
	for _, w := range raw {
		if _, stop := s.stopwords[w]; !stop {
			out = append(out, w)
		}
	}
	return out
}

func defaultStopwords() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on", "at", "by", "with", "as", "is", "are", "was", "were", "be", "been", "being", "it", "its", "this", "that", "these", "those", "from", "up", "down", "over", "under", "than", "so", "such", "into", "about", "between", "through", "during", "before", "after", "out", "off", "too", "very", "can", "will", "just", "should", "now", "not", "no", "we", "you", "they", "he", "she", "i",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
