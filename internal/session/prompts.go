package session

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"pdfrag/internal/domain"
)

const (
	groundedSystemPrompt = "You are a helpful assistant. Answer using the document context you are given, " +
		"quote it precisely where possible and explain it so a student can follow."
	summarySystemPrompt = "You are an expert summarizer who writes complete, well structured summaries."
	topicsSystemPrompt  = "You are an experienced educator who breaks complex topics down for students."

	summaryLabel = "PDF Summary:\n"
	topicsLabel  = "Difficult Topics:\n"
)

func contextMessage(matches []domain.SearchResult) domain.Message {
	parts := make([]string, len(matches))
	for i, m := range matches {
		parts[i] = m.Chunk.Text
	}
	return domain.Message{
		Role:    domain.RoleSystem,
		Content: "Context from the document: " + strings.Join(parts, " "),
	}
}

func summaryPrompt(excerpt string) string {
	return fmt.Sprintf(`Write a detailed summary of the text below. The summary should:
1. Capture the main themes and key ideas
2. Highlight the most important points
3. Give a structured overview of the content
4. Be suitable for academic or professional use

Text: %s`, excerpt)
}

func topicsPrompt(excerpt string) string {
	return fmt.Sprintf(`Identify the topics in the text below that students are likely to find difficult. For each topic give:
1. Why it is challenging
2. A simplified explanation
3. Study tips for understanding it
4. Common misconceptions

Text: %s`, excerpt)
}

// truncate cuts text to at most n bytes without splitting a UTF-8 sequence.
func truncate(text string, n int) string {
	if n <= 0 || len(text) <= n {
		return text
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut]
}
