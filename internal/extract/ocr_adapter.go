package extract

import (
	"context"
	"log/slog"

	"github.com/joseph-ayodele/wine-ingest/internal/ocr"
)

// OCRAdapter exposes an ocr.Extractor as a TextExtractor.
type OCRAdapter struct {
	e      *ocr.Extractor
	logger *slog.Logger
}

func NewOCRAdapter(e *ocr.Extractor, logger *slog.Logger) *OCRAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &OCRAdapter{e: e, logger: logger}
}

func (a *OCRAdapter) Extract(ctx context.Context, content []byte, ext string) (TextExtractionResult, error) {
	r, err := a.e.Extract(ctx, content, ext)
	if len(r.Warnings) > 0 {
		a.logger.Warn("extract.ocr.warnings", "ext", ext, "method", r.Method, "warnings", r.Warnings)
	}
	return TextExtractionResult{
		Text:       r.Text,
		Pages:      r.Pages,
		Method:     r.Method,
		Language:   r.Language,
		Duration:   r.Duration,
		Warnings:   r.Warnings,
		Confidence: r.Confidence,
	}, err
}
