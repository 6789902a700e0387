// Command runocr prints what the OCR stage extracts from one PDF or image.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/joseph-ayodele/wine-ingest/internal/common"
	"github.com/joseph-ayodele/wine-ingest/internal/extract"
	"github.com/joseph-ayodele/wine-ingest/internal/ocr"
)

func main() {
	cfg := common.LoadConfig()
	logger := common.NewLogger(os.Stderr, cfg.LogFormat, cfg.LogLevel)
	slog.SetDefault(logger)

	if len(os.Args) != 2 {
		logger.Error("usage", "cmd", "runocr <file.pdf|file.jpg|file.png>")
		os.Exit(2)
	}
	path := os.Args[1]
	content, err := os.ReadFile(path)
	if err != nil {
		logger.Error("read file", "path", path, "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	// Build OCR extractor and adapt it to TextExtractor.
	ocrx := ocr.NewExtractor(ocr.ConfigFrom(cfg.OCR), ocr.ExecRunner{Logger: logger}, logger)
	textExtractor := extract.NewOCRAdapter(ocrx, logger)

	start := time.Now()
	res, err := textExtractor.Extract(ctx, content, filepath.Ext(path))
	dur := time.Since(start)
	if err != nil {
		logger.Error("text extraction failed",
			"path", path, "kind", common.KindOf(err), "error", err, "duration_ms", dur.Milliseconds())
		os.Exit(1)
	}

	logger.Info("text extraction OK",
		"method", res.Method,
		"pages", len(res.Pages),
		"bytes", len(res.Text),
		"confidence", res.Confidence,
		"warnings", len(res.Warnings),
		"duration_ms", dur.Milliseconds(),
	)
	fmt.Println(res.Text)
}
