// Package extract holds the document-to-text contract the pipeline's OCR bridge
// depends on.
package extract

import (
	"context"
	"time"
)

// TextExtractor turns a document (PDF or image bytes) into text.
type TextExtractor interface {
	Extract(ctx context.Context, content []byte, ext string) (TextExtractionResult, error)
}

type TextExtractionResult struct {
	Text       string
	Pages      []string
	Method     string // "pdf-text" | "pdf-ocr" | "image-ocr"
	Language   string
	Duration   time.Duration
	Warnings   []string
	Confidence float64
}
