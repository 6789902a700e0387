// Package export renders pipeline results as an XLSX report.
package export

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/wine-ingest/internal/entity"
)

const (
	SheetWines = "Wines"
	SheetRuns  = "Runs"
)

var wineHeaders = []string{
	"File",
	"Name",
	"Winery",
	"Vintage",
	"Qty",
	"Price",
	"Type",
	"Grape Variety",
	"Region",
	"Country",
	"Classification",
	"Alcohol %",
	"Supplier",
	"Cost Price",
	"Source Stage",
	"Source Row",
	"Name Revisions",
}

var runHeaders = []string{
	"File",
	"Correlation ID",
	"Decision",
	"Stage Used",
	"Stages Attempted",
	"Records",
	"Schema Score",
	"Valid Rows",
	"Rows Rejected",
	"Rejection Reasons",
	"Error Kind",
	"Error",
	"Elapsed (s)",
}

// Service produces XLSX bytes for a batch of pipeline results.
type Service struct {
	logger *slog.Logger
}

func NewService(logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{logger: logger}
}

// ReportXLSX returns a workbook with one row per saved wine on the Wines sheet and
// one row per processed file on the Runs sheet.
func (s *Service) ReportXLSX(ctx context.Context, results []entity.PipelineResult) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()

	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			s.logger.Warn("export.xlsx.close_failed", "error", err)
		}
	}()
	if err := f.SetSheetName("Sheet1", SheetWines); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(SheetRuns); err != nil {
		return nil, err
	}
	f.SetActiveSheet(0)

	writeRow(f, SheetWines, 1, toAny(wineHeaders))
	writeRow(f, SheetRuns, 1, toAny(runHeaders))

	wineRow, wines := 2, 0
	for i, res := range results {
		for _, w := range res.Records {
			writeRow(f, SheetWines, wineRow, wineCells(res.FileName, w))
			wineRow++
			wines++
		}
		writeRow(f, SheetRuns, i+2, runCells(res))
	}

	_ = f.SetColWidth(SheetWines, "A", "A", 28) // file
	_ = f.SetColWidth(SheetWines, "B", "C", 32) // name, winery
	_ = f.SetColWidth(SheetWines, "H", "K", 20)
	_ = f.SetColWidth(SheetWines, "Q", "Q", 40)
	_ = f.SetColWidth(SheetRuns, "A", "B", 36)
	_ = f.SetColWidth(SheetRuns, "E", "E", 48)
	_ = f.SetColWidth(SheetRuns, "L", "L", 60)
	for _, sheet := range []string{SheetWines, SheetRuns} {
		_ = f.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"files", len(results),
		"wines", wines,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func writeRow(f *excelize.File, sheet string, row int, values []any) {
	cell, _ := excelize.CoordinatesToCellName(1, row)
	_ = f.SetSheetRow(sheet, cell, &values)
}

func wineCells(file string, w entity.WineRecord) []any {
	return []any{
		file,
		w.Name,
		w.Winery,
		optInt(w.Vintage),
		w.Qty,
		optFloat(w.Price),
		string(w.Type),
		w.GrapeVariety,
		w.Region,
		w.Country,
		w.Classification,
		optFloat(w.AlcoholContent),
		w.Supplier,
		optFloat(w.CostPrice),
		w.SourceStage,
		w.SourceRow,
		revisions(w.Revisions),
	}
}

func runCells(res entity.PipelineResult) []any {
	return []any{
		res.FileName,
		res.CorrelationID,
		string(res.Decision),
		res.StageUsed,
		strings.Join(res.StagesAttempted, " > "),
		len(res.Records),
		res.Metrics.SchemaScore,
		res.Metrics.ValidRows,
		res.Metrics.RowsRejected,
		reasons(res.Metrics.RejectionReasons),
		res.ErrorKind,
		truncate(res.Error, 300),
		res.ElapsedSeconds,
	}
}

func revisions(revs []entity.Revision) string {
	parts := make([]string, 0, len(revs))
	for _, r := range revs {
		if r.Field == entity.FieldName {
			parts = append(parts, fmt.Sprintf("%s (%s)", r.Value, r.Stage))
		}
	}
	return strings.Join(parts, "; ")
}

func reasons(m map[string]int) string {
	if len(m) == 0 {
		return ""
	}
	var b strings.Builder
	for _, k := range sortedKeys(m) {
		if b.Len() > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s=%d", k, m[k])
	}
	return b.String()
}

func optInt(p *int) any {
	if p == nil {
		return ""
	}
	return *p
}

func optFloat(p *float64) any {
	if p == nil {
		return ""
	}
	return *p
}

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
