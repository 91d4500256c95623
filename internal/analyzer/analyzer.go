package analyzer

import (
	"context"
	"errors"
	"fmt"

	"github.com/BerylCAtieno/forensic-docs-api/internal/config"
	"github.com/BerylCAtieno/forensic-docs-api/internal/utils"
)

const systemPrompt = "You are a medical record formatter."

// maxInputChars caps the OCR text sent in a single request.
const maxInputChars = 60000

var ErrUnavailable = errors.New("analyzer unavailable")

// Analyzer turns OCR text into a formatted record.
type Analyzer interface {
	Analyze(ctx context.Context, text string) (string, error)
	Name() string
}

// New builds the analyzer selected by cfg.AnalyzerProvider, wrapped with a
// rate limiter and a circuit breaker. It returns nil when analysis is disabled.
func New(ctx context.Context, cfg *config.Config, logger *utils.Logger) (Analyzer, error) {
	var base Analyzer
	switch cfg.AnalyzerProvider {
	case "none", "":
		return nil, nil
	case "openai":
		base = NewOpenAIAnalyzer(cfg.AIAPIBaseURL, cfg.AIAPIKey, cfg.AIModel, logger)
	case "gemini":
		g, err := NewGeminiAnalyzer(ctx, cfg.GeminiAPIKey, cfg.AIModel, logger)
		if err != nil {
			return nil, err
		}
		base = g
	default:
		return nil, fmt.Errorf("unknown analyzer provider %q", cfg.AnalyzerProvider)
	}

	logger.Info("Analyzer initialized", "provider", base.Name(), "rpm", cfg.AnalyzerRPM)
	return NewResilient(base, cfg.AnalyzerRPM, logger), nil
}

func buildPrompt(text string) string {
	if len(text) > maxInputChars {
		text = text[:maxInputChars]
	}
	return fmt.Sprintf("based on the scanned ocr text, form a human readable person medical record in two column\n\nOCR Text:\n%s", text)
}
