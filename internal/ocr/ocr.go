// Package ocr turns PDFs and images into text with external binaries: tesseract,
// pdftoppm and optionally pdftotext.
package ocr

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joseph-ayodele/wine-ingest/constants"
	"github.com/joseph-ayodele/wine-ingest/internal/common"
)

// PageBreak separates page texts in Result.Text.
const PageBreak = "\n\f\n"

type Config struct {
	Pdftotext string // binary name or absolute path; if empty -> "pdftotext"
	Pdftoppm  string // binary name or absolute path; if empty -> "pdftoppm"
	Tesseract string // binary name or absolute path; if empty -> "tesseract"

	TesseractLang string // default "ita+eng"
	DPI           int    // rasterization DPI for scanned PDFs, default 300
	MaxPages      int    // 0 = no limit

	TessdataDir   string
	TSVConfidence bool // run tesseract a second time in TSV mode for word confidences
	UseTextLayer  bool // try pdftotext before rasterizing

	PSM int // e.g., 6 is good for uniform block of text

	Timeout time.Duration
}

// ConfigFrom maps the application OCR settings.
func ConfigFrom(c common.OCRConfig) Config {
	return Config{
		Pdftotext:     c.PdftotextBin,
		Pdftoppm:      c.PdftoppmBin,
		Tesseract:     c.TesseractBin,
		TesseractLang: c.Language,
		DPI:           c.DPI,
		MaxPages:      c.MaxPages,
		TessdataDir:   c.TessdataDir,
		TSVConfidence: c.TSVConfidence,
		UseTextLayer:  c.UseTextLayer,
		Timeout:       c.Timeout,
	}
}

type Result struct {
	Text       string
	Pages      []string
	Method     string // "pdf-text" | "pdf-ocr" | "image-ocr"
	Language   string
	Duration   time.Duration
	Warnings   []string
	Confidence float64 // heuristic, reported only

	wordConfidence float64 // mean tesseract word confidence, 0 when not measured
}

type Extractor struct {
	cfg    Config
	runner Runner
	logger *slog.Logger
}

func NewExtractor(cfg Config, runner Runner, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Pdftotext == "" {
		cfg.Pdftotext = "pdftotext"
	}
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.TesseractLang == "" {
		cfg.TesseractLang = "ita+eng"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 300
	}
	if runner == nil {
		runner = ExecRunner{Logger: logger}
	}
	return &Extractor{cfg: cfg, runner: runner, logger: logger}
}

// Extract OCRs content according to its extension. A document that yields no text
// at all fails with OCRFailure.
func (e *Extractor) Extract(ctx context.Context, content []byte, ext string) (Result, error) {
	start := time.Now()
	ext = constants.NormalizeExt(ext)
	if constants.KindForExt(ext) != constants.Document {
		return Result{}, common.NewKindError(common.KindUnsupportedFormat, fmt.Sprintf("ocr: unsupported extension %q", ext), nil)
	}
	parent := ctx
	ctx, cancel := common.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	tmpDir, err := os.MkdirTemp("", "wine-ocr-*")
	if err != nil {
		return Result{}, common.NewKindError(common.KindOCRFailure, "ocr: temp dir", err)
	}
	defer func(path string) {
		if err := os.RemoveAll(path); err != nil {
			e.logger.Warn("ocr.tempdir.remove_failed", "path", path, "error", err)
		}
	}(tmpDir)

	in := filepath.Join(tmpDir, "input."+ext)
	if err := os.WriteFile(in, content, 0o600); err != nil {
		return Result{}, common.NewKindError(common.KindOCRFailure, "ocr: write input", err)
	}

	var res Result
	if ext == "pdf" {
		res, err = e.extractPDF(ctx, in, tmpDir)
	} else {
		res, err = e.extractImage(ctx, in)
	}
	res.Duration = time.Since(start)
	res.Language = e.cfg.TesseractLang
	if perr := parent.Err(); perr != nil {
		return res, perr
	}
	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		// Own timeout: keep what was recognized before the deadline.
		res.Warnings = append(res.Warnings, "ocr timed out after "+e.cfg.Timeout.String())
		if len(res.Pages) == 0 {
			return res, common.NewKindError(common.KindOCRFailure,
				fmt.Sprintf("ocr: %s: timed out after %s with no text", ext, e.cfg.Timeout), nil)
		}
		e.logger.Warn("ocr.extract.partial",
			"correlation_id", common.CorrelationIDFromContext(parent),
			"ext", ext,
			"pages", len(res.Pages),
			"timeout", e.cfg.Timeout)
		res.Text = strings.Join(res.Pages, PageBreak)
		err = nil
	}
	if err != nil {
		return res, common.NewKindError(common.KindOCRFailure, "ocr: "+ext, err)
	}
	if res.Text == "" {
		return res, common.NewKindError(common.KindOCRFailure, "ocr: no text recognized", nil)
	}
	res.Confidence = blendConfidence(res.wordConfidence, heuristicConfidence(res.Text))

	e.logger.Info("ocr.extract.ok",
		"correlation_id", common.CorrelationIDFromContext(ctx),
		"ext", ext,
		"method", res.Method,
		"pages", len(res.Pages),
		"text_len", len(res.Text),
		"confidence", res.Confidence,
		"warnings", len(res.Warnings),
		"elapsed_ms", res.Duration.Milliseconds(),
	)
	return res, nil
}
