// Package targeted is Stage 2: cheap-tier LLM help scoped to what Stage 1 could not
// resolve, unmapped header columns and broken rows. It never touches rows Stage 1
// already got right.
package targeted

import (
	"context"
	"log/slog"
	"maps"
	"time"

	"github.com/joseph-ayodele/wine-ingest/constants"
	"github.com/joseph-ayodele/wine-ingest/internal/common"
	"github.com/joseph-ayodele/wine-ingest/internal/core/decision"
	"github.com/joseph-ayodele/wine-ingest/internal/entity"
	"github.com/joseph-ayodele/wine-ingest/internal/llm"
	"github.com/joseph-ayodele/wine-ingest/internal/normalize"
	"github.com/joseph-ayodele/wine-ingest/internal/tabular"
)

type Config struct {
	Enabled         bool
	HeaderThreshold float64
	BatchSize       int
	MaxTokens       int
	MaxConcurrency  int
	HeaderSamples   int
}

// ConfigFrom reads the Stage 2 settings out of the application config.
func ConfigFrom(cfg *common.Config) Config {
	return Config{
		Enabled:         cfg.Pipeline.TargetedEnabled,
		HeaderThreshold: cfg.Pipeline.HeaderConfidenceThreshold,
		BatchSize:       cfg.Pipeline.BatchSizeAmbiguousRows,
		MaxTokens:       cfg.LLM.MaxTokensStage2,
		MaxConcurrency:  cfg.Pipeline.ClampedConcurrency(),
		HeaderSamples:   cfg.Pipeline.HeaderSamples,
	}
}

type Assistant struct {
	llm    llm.Completer
	parser *tabular.Parser
	norm   *normalize.Normalizer
	engine *decision.Engine
	cfg    Config
	logger *slog.Logger
}

func NewAssistant(completer llm.Completer, parser *tabular.Parser, norm *normalize.Normalizer, engine *decision.Engine, cfg Config, logger *slog.Logger) *Assistant {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 20
	}
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = 1
	}
	if cfg.HeaderSamples <= 0 {
		cfg.HeaderSamples = 5
	}
	if cfg.HeaderThreshold <= 0 {
		cfg.HeaderThreshold = 0.75
	}
	return &Assistant{llm: completer, parser: parser, norm: norm, engine: engine, cfg: cfg, logger: logger}
}

// Assist runs Stage 2 over Stage 1's result and returns a fresh result with decision
// save or escalate_to_stage3. LLM failures degrade to no improvement; only
// cancellation is returned as an error.
func (a *Assistant) Assist(ctx context.Context, prev *tabular.Result) (*tabular.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()
	cid := common.CorrelationIDFromContext(ctx)

	if !a.cfg.Enabled || a.llm == nil {
		a.logger.Info("targeted.disabled", "correlation_id", cid)
		res := *prev
		res.Metrics = carryMetrics(prev.Metrics)
		res.Decision = constants.DecisionEscalateToStage3
		return &res, nil
	}

	mapping := prev.Mapping.Clone()
	calls := 0
	added, called, err := a.disambiguateHeaders(ctx, prev.Table, mapping)
	if err != nil {
		return nil, err
	}
	if called {
		calls++
	}

	// rows keep their Stage 1 origin unless a repair touches them
	cands, repeats := a.parser.Candidates(prev.Table, mapping, constants.StageTabular)

	rep, err := a.repairRows(ctx, cands)
	if err != nil {
		return nil, err
	}

	res := tabular.Assess(a.engine, decision.Stage2, constants.StageTargeted, mapping, cands)
	res.Table = prev.Table
	res.Metrics.RowsSkipped = prev.Table.SkippedRows + repeats
	res.Metrics.RowsFixed = rep.fixed
	res.Metrics.Chunks = rep.batches
	res.Metrics.ChunksFailed = rep.failed
	res.Metrics.LLMCalls = calls + rep.batches
	res.Metrics.ElapsedSeconds = time.Since(start).Seconds()

	a.logger.Info("targeted.done",
		append([]any{
			"correlation_id", cid,
			"columns_added", added,
			"decision", res.Decision,
		}, res.Metrics.LogAttrs()...)...)
	return res, nil
}

// carryMetrics restates Stage 1 quality under the Stage 2 name when no repair ran.
func carryMetrics(m entity.Metrics) entity.Metrics {
	return entity.Metrics{
		Stage:            constants.StageTargeted,
		SchemaScore:      m.SchemaScore,
		ValidRows:        m.ValidRows,
		RowsTotal:        m.RowsTotal,
		RowsValid:        m.RowsValid,
		RowsRejected:     m.RowsRejected,
		RowsSkipped:      m.RowsSkipped,
		RejectionReasons: maps.Clone(m.RejectionReasons),
	}
}
