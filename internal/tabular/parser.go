package tabular

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joseph-ayodele/wine-ingest/constants"
	"github.com/joseph-ayodele/wine-ingest/internal/common"
	"github.com/joseph-ayodele/wine-ingest/internal/core/decision"
	"github.com/joseph-ayodele/wine-ingest/internal/entity"
	"github.com/joseph-ayodele/wine-ingest/internal/normalize"
	"github.com/joseph-ayodele/wine-ingest/internal/validation"
)

// headerScanRows bounds how far down the header row is searched for.
const headerScanRows = 10

// Result is everything Stage 1 (and Stage 2 after a re-run) hands to the orchestrator.
type Result struct {
	Table      *entity.RawTable
	Mapping    *entity.HeaderMapping
	Candidates []entity.CandidateRecord
	Valid      []entity.WineRecord
	Rejected   []entity.Rejection
	Metrics    entity.Metrics
	Decision   constants.Decision
}

// Parser is the deterministic Stage 1. It makes no network calls.
type Parser struct {
	norm   *normalize.Normalizer
	engine *decision.Engine
	logger *slog.Logger
}

func NewParser(norm *normalize.Normalizer, engine *decision.Engine, logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Parser{norm: norm, engine: engine, logger: logger}
}

// Parse reads content as a table, maps headers, normalizes and validates rows.
// A file that yields no data rows fails with ParseFailure.
func (p *Parser) Parse(ctx context.Context, content []byte, ext string) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()

	table, err := p.ReadTable(content, ext)
	if err != nil {
		return nil, common.NewKindError(common.KindParseFailure, "read table", err)
	}
	if len(table.Rows) == 0 {
		return nil, common.NewKindError(common.KindParseFailure, "table has no data rows", nil)
	}

	mapping := p.norm.MapHeaders(table.Header)
	res := p.Evaluate(table, mapping, decision.Stage1, constants.StageTabular)
	res.Metrics.ElapsedSeconds = time.Since(start).Seconds()

	p.logger.Info("tabular.parse.ok",
		append([]any{
			"correlation_id", common.CorrelationIDFromContext(ctx),
			"encoding", table.Encoding,
			"delimiter", string(table.Delimiter),
			"sheet", table.SheetName,
			"columns", table.Width(),
			"mapped", len(mapping.Columns),
			"decision", res.Decision,
		}, res.Metrics.LogAttrs()...)...)
	return res, nil
}

// Evaluate builds candidates from table rows through mapping, validates them and
// asks the engine for the decision of the given stage. Stage 2 re-runs it after
// revising the mapping.
func (p *Parser) Evaluate(table *entity.RawTable, mapping *entity.HeaderMapping, stage decision.State, stageName string) *Result {
	cands, repeats := p.Candidates(table, mapping, stageName)
	res := Assess(p.engine, stage, stageName, mapping, cands)
	res.Table = table
	res.Metrics.RowsSkipped = table.SkippedRows + repeats
	return res
}

// Candidates re-derives normalized candidates; repeated header rows are skipped
// and counted.
func (p *Parser) Candidates(table *entity.RawTable, mapping *entity.HeaderMapping, stageName string) ([]entity.CandidateRecord, int) {
	cands := make([]entity.CandidateRecord, 0, len(table.Rows))
	repeats := 0
	for i, row := range table.Rows {
		if p.norm.LooksLikeHeader(row, mapping) {
			repeats++
			continue
		}
		rowNum := i + 1
		if i < len(table.RowNumbers) {
			rowNum = table.RowNumbers[i]
		}
		cands = append(cands, p.norm.FromRow(row, mapping, rowNum, stageName))
	}
	return cands, repeats
}

// Assess validates candidates and computes the stage metrics and decision.
func Assess(engine *decision.Engine, stage decision.State, stageName string, mapping *entity.HeaderMapping, cands []entity.CandidateRecord) *Result {
	valid, rejected, stats := validation.ValidateBatch(cands)
	m := entity.Metrics{Stage: stageName, SchemaScore: decision.SchemaScore(mapping)}
	stats.Apply(&m)
	m.ValidRows = decision.ValidRowsRatio(stats.Valid, stats.Total)
	return &Result{
		Mapping:    mapping,
		Candidates: cands,
		Valid:      valid,
		Rejected:   rejected,
		Metrics:    m,
		Decision:   engine.Decide(stage, m),
	}
}

// ReadTable decodes content into a RawTable with the header row located.
func (p *Parser) ReadTable(content []byte, ext string) (*entity.RawTable, error) {
	ext = constants.NormalizeExt(ext)
	table := &entity.RawTable{}

	var rows [][]string
	var lines []int
	switch {
	case constants.IsSpreadsheetExt(ext):
		wb, sheet, err := readWorkbook(content)
		if err == nil {
			rows, table.SheetName, table.Encoding = wb, sheet, "xlsx"
			for i := range rows {
				lines = append(lines, i+1)
			}
			break
		}
		if ext == "xlsx" {
			return nil, err
		}
		p.logger.Debug("tabular.xls.not_workbook", "err", err)
		rows, lines, err = p.readText(content, ext, table)
		if err != nil {
			return nil, err
		}
	default:
		var err error
		rows, lines, err = p.readText(content, ext, table)
		if err != nil {
			return nil, err
		}
	}

	var kept [][]string
	var keptLines []int
	for i, r := range rows {
		if blankRow(r) {
			continue
		}
		kept = append(kept, r)
		keptLines = append(keptLines, lines[i])
	}
	if len(kept) == 0 {
		return nil, fmt.Errorf("no rows")
	}

	h := p.headerIndex(kept)
	table.Header = trimCells(kept[h])
	table.Rows = kept[h+1:]
	table.RowNumbers = keptLines[h+1:]
	return table, nil
}

func (p *Parser) readText(content []byte, ext string, table *entity.RawTable) ([][]string, []int, error) {
	text, enc := decodeText(content)
	delim := '\t'
	if ext != "tsv" {
		delim = sniffDelimiter(text)
	}
	rows, lines, skipped, err := readDelimited(text, delim)
	if err != nil {
		return nil, nil, err
	}
	table.Encoding, table.Delimiter, table.SkippedRows = enc, delim, skipped
	return rows, lines, nil
}

// headerIndex picks, among the first rows, the one with the most header matches.
// Title rows above the real header are common in exported price lists.
func (p *Parser) headerIndex(rows [][]string) int {
	best, bestHits := 0, 0
	for i := 0; i < len(rows) && i < headerScanRows; i++ {
		hits := 0
		for _, cell := range rows[i] {
			if m, ok := p.norm.ScoreHeader(cell); ok && m.Score >= p.norm.HeaderThreshold() {
				hits++
			}
		}
		if hits > bestHits {
			best, bestHits = i, hits
		}
	}
	return best
}

func trimCells(r []string) []string {
	out := make([]string, len(r))
	for i, c := range r {
		out[i] = strings.TrimSpace(c)
	}
	return out
}
