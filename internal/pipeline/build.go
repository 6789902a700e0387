package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/joseph-ayodele/wine-ingest/internal/common"
	"github.com/joseph-ayodele/wine-ingest/internal/core/decision"
	"github.com/joseph-ayodele/wine-ingest/internal/extract"
	"github.com/joseph-ayodele/wine-ingest/internal/extraction"
	"github.com/joseph-ayodele/wine-ingest/internal/llm"
	"github.com/joseph-ayodele/wine-ingest/internal/llm/provider"
	"github.com/joseph-ayodele/wine-ingest/internal/normalize"
	"github.com/joseph-ayodele/wine-ingest/internal/ocr"
	"github.com/joseph-ayodele/wine-ingest/internal/tabular"
	"github.com/joseph-ayodele/wine-ingest/internal/targeted"
)

// Build wires a Processor from configuration. Without an API key for the
// selected provider the LLM stages are disabled and only deterministic parsing
// (plus OCR) runs.
func Build(ctx context.Context, cfg *common.Config, logger *slog.Logger) (*Processor, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	dict, err := loadDictionary(cfg.DictionaryPath)
	if err != nil {
		return nil, err
	}
	norm := normalize.New(dict, cfg.Pipeline.HeaderConfidenceThreshold, logger)
	engine := decision.NewEngine(decision.Thresholds{
		SchemaScore: cfg.Pipeline.SchemaScoreThreshold,
		ValidRows:   cfg.Pipeline.ValidRowsThreshold,
	})
	parser := tabular.NewParser(norm, engine, logger)

	var completer llm.Completer
	if cfg.Pipeline.TargetedEnabled || cfg.Pipeline.ExtractionEnabled {
		if err := cfg.RequireLLM(); err != nil {
			logger.Warn("pipeline.llm.disabled", "provider", cfg.LLM.Provider, "reason", err.Error())
		} else {
			completer, err = provider.New(ctx, cfg.LLM, logger)
			if err != nil {
				return nil, fmt.Errorf("llm provider %s: %w", cfg.LLM.Provider, err)
			}
		}
	}

	var assistant *targeted.Assistant
	var extractor *extraction.Extractor
	if completer != nil {
		assistant = targeted.NewAssistant(completer, parser, norm, engine, targeted.ConfigFrom(cfg), logger)
		extractor = extraction.NewExtractor(completer, norm, engine, extraction.ConfigFrom(cfg), logger)
	}

	var text extract.TextExtractor
	if cfg.Pipeline.OCREnabled {
		ocrx := ocr.NewExtractor(ocr.ConfigFrom(cfg.OCR), ocr.ExecRunner{Logger: logger}, logger)
		text = extract.NewOCRAdapter(ocrx, logger)
	}

	logger.Info("pipeline.ready",
		"llm_provider", cfg.LLM.Provider,
		"llm_enabled", completer != nil,
		"targeted_enabled", cfg.Pipeline.TargetedEnabled && completer != nil,
		"extraction_enabled", cfg.Pipeline.ExtractionEnabled && completer != nil,
		"ocr_enabled", text != nil,
	)
	return NewProcessor(parser, assistant, extractor, text, engine, logger), nil
}

func loadDictionary(path string) (*normalize.Dictionary, error) {
	dict, err := normalize.LoadDictionary(path)
	if err != nil {
		return nil, fmt.Errorf("dictionary %s: %w", path, err)
	}
	return dict, nil
}
