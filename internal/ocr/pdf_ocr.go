package ocr

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// minTextLayerChars is how much a PDF text layer must hold before rasterizing is skipped.
const minTextLayerChars = 40

func (e *Extractor) extractPDF(ctx context.Context, path, tmpDir string) (Result, error) {
	var warns []string
	if e.cfg.UseTextLayer {
		pages, err := e.pdfToText(ctx, path)
		switch {
		case err != nil:
			warns = append(warns, err.Error())
		case len(strings.Join(pages, "")) >= minTextLayerChars:
			return Result{
				Text:   strings.Join(pages, PageBreak),
				Pages:  pages,
				Method: "pdf-text",
			}, nil
		default:
			e.logger.Debug("ocr.pdf.text_layer_empty", "chars", len(strings.Join(pages, "")))
		}
	}

	pages, w, err := e.pdfToOCR(ctx, path, tmpDir)
	warns = append(warns, w...)
	res := Result{Pages: pages, Method: "pdf-ocr", Warnings: warns}
	if err != nil {
		return res, err
	}
	res.Text = strings.Join(pages, PageBreak)
	return res, nil
}

// pdfToText reads the embedded text layer; pdftotext separates pages with \f.
func (e *Extractor) pdfToText(ctx context.Context, path string) ([]string, error) {
	out, _, err := e.runner.Run(ctx, e.cfg.Pdftotext, "-layout", "-enc", "UTF-8", "-eol", "unix", path, "-")
	if err != nil {
		return nil, fmt.Errorf("pdftotext: %w", err)
	}
	var pages []string
	for _, p := range strings.Split(string(out), "\f") {
		if p = CleanText(p); p != "" {
			pages = append(pages, p)
		}
	}
	return pages, nil
}

func (e *Extractor) pdfToOCR(ctx context.Context, path, tmpDir string) ([]string, []string, error) {
	prefix := filepath.Join(tmpDir, "page")
	// pdftoppm -r 300 -png <in.pdf> <tmp/page>
	_, errb, err := e.runner.Run(ctx, e.cfg.Pdftoppm, "-r", strconv.Itoa(e.cfg.DPI), "-png", path, prefix)
	if err != nil {
		return nil, []string{strings.TrimSpace(string(errb))}, fmt.Errorf("pdftoppm: %w", err)
	}

	images, _ := filepath.Glob(prefix + "-*.png")
	if len(images) == 0 {
		return nil, nil, errors.New("pdftoppm produced no images")
	}
	sortByPageNumber(images)
	if e.cfg.MaxPages > 0 && len(images) > e.cfg.MaxPages {
		e.logger.Warn("ocr.pdf.pages_capped", "pages", len(images), "max_pages", e.cfg.MaxPages)
		images = images[:e.cfg.MaxPages]
	}

	var pages, warns []string
	for i, img := range images {
		if err := ctx.Err(); err != nil {
			return pages, warns, err
		}
		txt, w, err := e.tesseractOCR(ctx, img)
		warns = append(warns, w...)
		if err != nil {
			warns = append(warns, fmt.Sprintf("page %d: %v", i+1, err))
			continue
		}
		if txt != "" {
			pages = append(pages, txt)
		}
	}
	return pages, warns, ctx.Err()
}

// sortByPageNumber orders page-N.png by N; pdftoppm zero-pads only when the
// document has 10+ pages, so a plain string sort is not enough.
func sortByPageNumber(paths []string) {
	num := func(p string) int {
		base := strings.TrimSuffix(filepath.Base(p), ".png")
		n, _ := strconv.Atoi(base[strings.LastIndex(base, "-")+1:])
		return n
	}
	sort.SliceStable(paths, func(i, j int) bool { return num(paths[i]) < num(paths[j]) })
}
