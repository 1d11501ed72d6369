package questionnaire

import (
	"context"
	"strings"
)

// Summarizer condenses questionnaire answers into a short text for the
// doctor. Implementations may call an external text-generation service;
// failures are absorbed by the caller with a plain-text fallback.
type Summarizer interface {
	Summarize(ctx context.Context, answers map[string]string) (string, error)
}

// PlainTextSummarizer renders non-empty answers as "Label: value" lines in
// the standard question order. Deterministic, no external calls.
type PlainTextSummarizer struct{}

func (PlainTextSummarizer) Summarize(_ context.Context, answers map[string]string) (string, error) {
	var parts []string
	for _, q := range DefaultQuestions {
		if v := strings.TrimSpace(answers[q]); v != "" {
			parts = append(parts, questionLabel(q)+": "+v)
		}
	}
	if len(parts) == 0 {
		return "No summary available", nil
	}
	return strings.Join(parts, "\n"), nil
}

func questionLabel(key string) string {
	words := strings.Split(key, "_")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
