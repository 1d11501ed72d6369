package questionnaire

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GeminiSummarizer summarizes questionnaire answers with the Gemini API.
type GeminiSummarizer struct {
	client *genai.Client
	model  string
}

func NewGeminiSummarizer(ctx context.Context, apiKey string) (*GeminiSummarizer, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &GeminiSummarizer{
		client: client,
		model:  "gemini-2.5-flash",
	}, nil
}

func (g *GeminiSummarizer) Close() error {
	return g.client.Close()
}

func (g *GeminiSummarizer) Summarize(ctx context.Context, answers map[string]string) (string, error) {
	var sb strings.Builder
	for _, q := range DefaultQuestions {
		if v := strings.TrimSpace(answers[q]); v != "" {
			fmt.Fprintf(&sb, "%s: %s\n", questionLabel(q), v)
		}
	}
	if sb.Len() == 0 {
		return "No summary available", nil
	}

	prompt := fmt.Sprintf(`Summarize the following pre-visit medical questionnaire in a concise, professional format:

%s

Highlight the chief complaint, current symptoms, relevant medical history, current medications, and any urgent concerns. Keep the summary under 300 words.`, sb.String())

	model := g.client.GenerativeModel(g.model)
	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("gemini returned no candidates")
	}

	var out strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			out.WriteString(string(text))
		}
	}
	if out.Len() == 0 {
		return "", fmt.Errorf("gemini returned no text")
	}
	return out.String(), nil
}
