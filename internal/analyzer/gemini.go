package analyzer

import (
	"context"
	"fmt"
	"strings"

	"github.com/BerylCAtieno/forensic-docs-api/internal/utils"
	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const defaultGeminiModel = "gemini-2.0-flash"

type geminiAnalyzer struct {
	client *genai.Client
	model  string
	logger *utils.Logger
}

func NewGeminiAnalyzer(ctx context.Context, apiKey, model string, logger *utils.Logger) (Analyzer, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	if model == "" || model == "any-model" {
		model = defaultGeminiModel
	}
	return &geminiAnalyzer{client: client, model: model, logger: logger}, nil
}

func (a *geminiAnalyzer) Name() string { return "gemini" }

func (a *geminiAnalyzer) Analyze(ctx context.Context, text string) (string, error) {
	model := a.client.GenerativeModel(a.model)
	model.SetTemperature(0)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(systemPrompt)},
	}

	resp, err := model.GenerateContent(ctx, genai.Text(buildPrompt(text)))
	if err != nil {
		return "", fmt.Errorf("gemini generate content: %w", err)
	}

	out := responseText(resp)
	if out == "" {
		return "", fmt.Errorf("no content in gemini response")
	}
	return out, nil
}

func (a *geminiAnalyzer) Close() error {
	return a.client.Close()
}

func responseText(resp *genai.GenerateContentResponse) string {
	var b strings.Builder
	if resp == nil {
		return ""
	}
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				b.WriteString(string(text))
			}
		}
		break
	}
	return b.String()
}
