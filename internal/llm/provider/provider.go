// Package provider builds the configured llm.Completer.
package provider

import (
	"context"
	"log/slog"

	"github.com/joseph-ayodele/wine-ingest/internal/common"
	"github.com/joseph-ayodele/wine-ingest/internal/llm"
	"github.com/joseph-ayodele/wine-ingest/internal/llm/gemini"
	"github.com/joseph-ayodele/wine-ingest/internal/llm/openai"
)

const (
	OpenAI = "openai"
	Gemini = "gemini"
)

// New returns the completer selected by cfg.Provider.
func New(ctx context.Context, cfg common.LLMConfig, logger *slog.Logger) (llm.Completer, error) {
	switch cfg.Provider {
	case Gemini:
		return gemini.NewClient(ctx, gemini.Config{
			APIKey:       cfg.GeminiAPIKey,
			ModelCheap:   cfg.GeminiModelTargeted,
			ModelCapable: cfg.GeminiModelExtract,
			Temperature:  cfg.Temperature,
			Timeout:      cfg.Timeout,
			Interval:     cfg.RequestsInterval,
		}, logger)
	case OpenAI, "":
		return openai.NewClient(openai.Config{
			APIKey:       cfg.APIKey,
			BaseURL:      cfg.BaseURL,
			ModelCheap:   cfg.ModelTargeted,
			ModelCapable: cfg.ModelExtract,
			Temperature:  cfg.Temperature,
			Timeout:      cfg.Timeout,
			Interval:     cfg.RequestsInterval,
		}, logger), nil
	default:
		return nil, common.InvalidArgumentErrorf("unknown llm provider %q", cfg.Provider)
	}
}
