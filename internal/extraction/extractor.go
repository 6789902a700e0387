// Package extraction is Stage 3: capable-tier LLM extraction over linearized text,
// used when the tabular stages could not produce a trustworthy result and for
// documents and OCR output.
package extraction

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/wine-ingest/constants"
	"github.com/joseph-ayodele/wine-ingest/internal/common"
	"github.com/joseph-ayodele/wine-ingest/internal/core/decision"
	"github.com/joseph-ayodele/wine-ingest/internal/dedup"
	"github.com/joseph-ayodele/wine-ingest/internal/entity"
	"github.com/joseph-ayodele/wine-ingest/internal/llm"
	"github.com/joseph-ayodele/wine-ingest/internal/normalize"
	"github.com/joseph-ayodele/wine-ingest/internal/validation"
)

type Config struct {
	Enabled        bool
	ChunkSize      int
	ChunkOverlap   int
	MaxTextBytes   int
	MaxRetries     int
	MaxConcurrency int
	MaxTokens      int
}

// ConfigFrom reads the Stage 3 settings out of the application config.
func ConfigFrom(cfg *common.Config) Config {
	return Config{
		Enabled:        cfg.Pipeline.ExtractionEnabled,
		ChunkSize:      cfg.Pipeline.ChunkSizeBytes,
		ChunkOverlap:   cfg.Pipeline.ChunkOverlapBytes,
		MaxTextBytes:   cfg.Pipeline.MaxTextBytes,
		MaxRetries:     cfg.Pipeline.MaxRetries,
		MaxConcurrency: cfg.Pipeline.ClampedConcurrency(),
		MaxTokens:      cfg.LLM.MaxTokensStage3,
	}
}

// Result is the outcome of one extraction run.
type Result struct {
	Candidates []entity.CandidateRecord
	Valid      []entity.WineRecord
	Rejected   []entity.Rejection
	Metrics    entity.Metrics
	Decision   constants.Decision
}

type Extractor struct {
	llm    llm.Completer
	norm   *normalize.Normalizer
	engine *decision.Engine
	cfg    Config
	logger *slog.Logger
}

func NewExtractor(completer llm.Completer, norm *normalize.Normalizer, engine *decision.Engine, cfg Config, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 40 * 1024
	}
	if cfg.ChunkOverlap < 0 || cfg.ChunkOverlap >= cfg.ChunkSize {
		cfg.ChunkOverlap = 0
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = 1
	}
	return &Extractor{llm: completer, norm: norm, engine: engine, cfg: cfg, logger: logger}
}

// Enabled reports whether Stage 3 may run at all.
func (e *Extractor) Enabled() bool {
	return e.cfg.Enabled && e.llm != nil
}

type chunkOutcome struct {
	records []entity.CandidateRecord
	calls   int
	failed  bool
}

// Extract runs the capable tier over text chunk by chunk and returns the merged,
// validated records. The decision is save with at least one valid record, else
// error together with a NoValidRecords (or LLMCallFailure when no chunk could be
// read at all) error. Cancellation returns only the context error.
func (e *Extractor) Extract(ctx context.Context, text string) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !e.Enabled() {
		return nil, common.ErrStageDisabled
	}
	start := time.Now()
	cid := common.CorrelationIDFromContext(ctx)

	originalLen := len(text)
	text, truncated := Truncate(text, e.cfg.MaxTextBytes)
	if truncated {
		e.logger.Warn("extraction.text.truncated",
			"correlation_id", cid, "original_bytes", originalLen, "kept_bytes", len(text))
	}

	chunks := SplitChunks(text, e.cfg.ChunkSize, e.cfg.ChunkOverlap)
	outcomes := make([]chunkOutcome, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.MaxConcurrency)
	for i, chunk := range chunks {
		g.Go(func() error {
			out, err := e.extractChunk(gctx, chunk, i, len(chunks))
			outcomes[i] = out
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	m := entity.Metrics{
		Stage:               constants.StageExtraction,
		Chunks:              len(chunks),
		TextExtractedLength: len(text),
	}
	perChunk := make([][]entity.CandidateRecord, len(outcomes))
	for i, o := range outcomes {
		perChunk[i] = o.records
		m.LLMCalls += o.calls
		if o.failed {
			m.ChunksFailed++
		}
	}
	merged, echoes := dedup.MergeChunks(perChunk)
	for i := range merged {
		merged[i].SourceRow = i + 1
	}

	valid, rejected, stats := validation.ValidateBatch(merged)
	stats.Apply(&m)
	valid = dedup.Deduplicate(valid)
	m.ValidRows = decision.ValidRowsRatio(stats.Valid, stats.Total)
	m.SchemaScore = fieldCoverage(valid)
	m.ElapsedSeconds = time.Since(start).Seconds()

	res := &Result{
		Candidates: merged,
		Valid:      valid,
		Rejected:   rejected,
		Metrics:    m,
		Decision:   e.engine.Decide(decision.Stage3, m),
	}

	e.logger.Info("extraction.done",
		append([]any{
			"correlation_id", cid,
			"truncated", truncated,
			"overlap_echoes", echoes,
			"records_after_dedup", len(valid),
			"decision", res.Decision,
		}, m.LogAttrs()...)...)

	if res.Decision == constants.DecisionError {
		if len(chunks) > 0 && m.ChunksFailed == len(chunks) {
			return res, common.NewKindError(common.KindLLMCallFailure, "no chunk could be extracted", nil)
		}
		return res, common.NewKindError(common.KindNoValidRecords, "extraction produced no valid records", nil)
	}
	return res, nil
}

// extractChunk asks for the records of one chunk, retrying with a reinforced prompt
// when the call fails or the answer cannot be parsed. A chunk that never parses
// contributes no records.
func (e *Extractor) extractChunk(ctx context.Context, chunk string, idx, total int) (chunkOutcome, error) {
	out := chunkOutcome{}
	cid := common.CorrelationIDFromContext(ctx)
	for attempt := 0; attempt <= e.cfg.MaxRetries; attempt++ {
		sys, user := llm.BuildExtractionPrompt(chunk, idx, total, attempt)
		out.calls++
		content, err := e.llm.Complete(ctx, llm.Request{
			Tier:       llm.TierCapable,
			System:     sys,
			User:       user,
			MaxTokens:  e.cfg.MaxTokens,
			JSONObject: true,
			Purpose:    "extraction",
		})
		if err != nil {
			if ctx.Err() != nil {
				return out, ctx.Err()
			}
			e.logger.Warn("extraction.chunk.llm_failed",
				"correlation_id", cid, "chunk", idx, "attempt", attempt, "error", err)
			continue
		}
		raws, err := llm.ParseRecords(content, e.logger)
		if err != nil {
			e.logger.Warn("extraction.chunk.malformed",
				"correlation_id", cid, "chunk", idx, "attempt", attempt, "error", err)
			continue
		}
		out.records = e.candidates(raws)
		e.logger.Debug("extraction.chunk.ok",
			"correlation_id", cid, "chunk", idx, "attempt", attempt, "records", len(out.records))
		return out, nil
	}
	out.failed = true
	return out, nil
}

func (e *Extractor) candidates(raws []map[entity.Field]string) []entity.CandidateRecord {
	out := make([]entity.CandidateRecord, 0, len(raws))
	for _, raw := range raws {
		c := entity.CandidateRecord{Raw: raw, SourceStage: constants.StageExtraction}
		e.norm.Normalize(&c)
		if c.IsEmpty() {
			continue
		}
		out = append(out, c)
	}
	return out
}

// fieldCoverage is the share of required fields that at least one record carries,
// the extraction counterpart of the header schema score.
func fieldCoverage(records []entity.WineRecord) float64 {
	if len(records) == 0 {
		return 0
	}
	seen := 0
	for _, f := range entity.RequiredFields {
		for i := range records {
			if hasField(&records[i], f) {
				seen++
				break
			}
		}
	}
	return float64(seen) / float64(len(entity.RequiredFields))
}

func hasField(w *entity.WineRecord, f entity.Field) bool {
	switch f {
	case entity.FieldVintage:
		return w.Vintage != nil
	case entity.FieldQty:
		return w.Qty > 0
	case entity.FieldPrice:
		return w.Price != nil
	default:
		return w.Text(f) != ""
	}
}
