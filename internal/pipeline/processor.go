// Package pipeline runs one file through the escalation machine: Stage 1 tabular
// parse, Stage 2 targeted assist, Stage 3 full extraction and the Stage 4 OCR
// bridge, merging and deduplicating whatever the accepted stage produced.
package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/wine-ingest/constants"
	"github.com/joseph-ayodele/wine-ingest/internal/common"
	"github.com/joseph-ayodele/wine-ingest/internal/core/decision"
	"github.com/joseph-ayodele/wine-ingest/internal/entity"
	"github.com/joseph-ayodele/wine-ingest/internal/extract"
	"github.com/joseph-ayodele/wine-ingest/internal/extraction"
	"github.com/joseph-ayodele/wine-ingest/internal/tabular"
	"github.com/joseph-ayodele/wine-ingest/internal/targeted"
)

// Processor coordinates the stages. It keeps no per-file state, so one instance
// serves concurrent invocations.
type Processor struct {
	parser    *tabular.Parser
	assistant *targeted.Assistant
	extractor *extraction.Extractor
	ocr       extract.TextExtractor
	engine    *decision.Engine
	logger    *slog.Logger
}

// NewProcessor wires the stages. A nil assistant passes Stage 2 through, a nil
// extractor disables Stage 3 and a nil ocr fails documents.
func NewProcessor(
	parser *tabular.Parser,
	assistant *targeted.Assistant,
	extractor *extraction.Extractor,
	ocr extract.TextExtractor,
	engine *decision.Engine,
	logger *slog.Logger,
) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	if engine == nil {
		engine = decision.NewEngine(decision.DefaultThresholds())
	}
	return &Processor{
		parser:    parser,
		assistant: assistant,
		extractor: extractor,
		ocr:       ocr,
		engine:    engine,
		logger:    logger,
	}
}

// run is the state of one invocation. Data only flows forward through it.
type run struct {
	content []byte
	ext     string

	tab     *tabular.Result // Stage 1 result, replaced by Stage 2's once it ran
	text    string          // Stage 3 input when there is no table
	lastErr error           // failure an earlier stage absorbed by escalating

	records   []entity.WineRecord
	metrics   entity.Metrics
	stageUsed string

	res entity.PipelineResult
}

func (r *run) accept(records []entity.WineRecord, m entity.Metrics, stage string) {
	r.records = records
	r.metrics = m
	r.stageUsed = stage
}

type outcome struct {
	decision constants.Decision
	metrics  entity.Metrics
	err      error
}

// ProcessFile runs content through the stages its extension routes it to and
// always returns a result; failures are reported through Decision and ErrorKind.
// An empty correlationID gets a fresh one.
func (p *Processor) ProcessFile(ctx context.Context, content []byte, fileName, declaredExt, correlationID string) entity.PipelineResult {
	start := time.Now()
	if correlationID == "" {
		correlationID = uuid.NewString()
	}
	ctx = common.WithCorrelationID(ctx, correlationID)

	r := &run{
		content: content,
		res: entity.PipelineResult{
			CorrelationID:   correlationID,
			FileName:        fileName,
			StagesAttempted: []string{},
		},
	}

	kind, ext, err := Route(content, fileName, declaredExt)
	r.ext = ext
	r.res.Ext = ext

	state := decision.Failed
	if err == nil {
		state = decision.Initial(kind)
		p.logger.Info("pipeline.start",
			"correlation_id", correlationID, "file_name", fileName, "ext", ext,
			"kind", kind.String(), "bytes", len(content))
	}

	for !state.Terminal() {
		if cerr := ctx.Err(); cerr != nil {
			err = cerr
			state = decision.Failed
			break
		}
		out := p.runStage(ctx, state, r)
		next, terr := decision.Next(state, out.decision)
		if terr != nil {
			p.logger.Error("pipeline.transition.invalid",
				"correlation_id", correlationID, "stage", state.String(), "decision", out.decision, "error", terr)
			out.err = common.WrapError(terr, "escalation")
		}
		if next == decision.Failed {
			err = out.err
		}
		state = next
	}

	return p.finish(ctx, r, state, err, start)
}

func (p *Processor) runStage(ctx context.Context, state decision.State, r *run) outcome {
	start := time.Now()
	ctx = common.WithStage(ctx, state.String())

	var out outcome
	switch state {
	case decision.Stage1:
		out = p.tabularStage(ctx, r)
	case decision.Stage2:
		out = p.targetedStage(ctx, r)
	case decision.Stage3:
		out = p.extractionStage(ctx, r)
	case decision.Stage4:
		out = p.ocrStage(ctx, r)
	default:
		out = outcome{decision: constants.DecisionError, err: common.NewKindError(common.KindInternal, "unknown stage "+state.String(), nil)}
	}
	if out.metrics.Stage == "" {
		out.metrics.Stage = state.String()
	}
	if out.metrics.ElapsedSeconds == 0 {
		out.metrics.ElapsedSeconds = time.Since(start).Seconds()
	}

	r.res.StagesAttempted = append(r.res.StagesAttempted, state.String())
	r.res.StageMetrics = append(r.res.StageMetrics, out.metrics)

	attrs := []any{
		"correlation_id", common.CorrelationIDFromContext(ctx),
		"file_name", r.res.FileName,
		"ext", r.ext,
		"stage", state.String(),
		"decision", out.decision,
		"elapsed_seconds", out.metrics.ElapsedSeconds,
	}
	if out.err != nil {
		attrs = append(attrs, "error_kind", common.KindOf(out.err), "error", out.err)
	}
	p.logger.Info("pipeline.stage.done", append(attrs, out.metrics.LogAttrs()...)...)
	return out
}

func (p *Processor) finish(ctx context.Context, r *run, state decision.State, err error, start time.Time) entity.PipelineResult {
	res := r.res
	res.ElapsedSeconds = time.Since(start).Seconds()

	if state == decision.Accepted {
		res.Decision = constants.DecisionSave
		res.Records = r.records
		res.Metrics = r.metrics
		res.StageUsed = r.stageUsed
		p.logger.Info("pipeline.done",
			append([]any{
				"correlation_id", res.CorrelationID,
				"file_name", res.FileName,
				"ext", res.Ext,
				"decision", res.Decision,
				"stage", res.StageUsed,
				"stages_attempted", res.StagesAttempted,
				"records", len(res.Records),
				"elapsed_seconds", res.ElapsedSeconds,
			}, res.Metrics.LogAttrs()...)...)
		return res
	}

	if err == nil {
		err = common.NewKindError(common.KindNoValidRecords, "no stage produced records", nil)
	}
	if ctx.Err() != nil && common.KindOf(err) != common.KindCanceled {
		err = common.WrapError(ctx.Err(), err.Error())
	}
	res.Decision = constants.DecisionError
	res.Records = nil
	res.ErrorKind = string(common.KindOf(err))
	res.Error = err.Error()
	if n := len(res.StageMetrics); n > 0 {
		res.Metrics = res.StageMetrics[n-1]
		res.StageUsed = res.StagesAttempted[n-1]
	}
	p.logger.Error("pipeline.done",
		append([]any{
			"correlation_id", res.CorrelationID,
			"file_name", res.FileName,
			"ext", res.Ext,
			"decision", res.Decision,
			"stage", res.StageUsed,
			"stages_attempted", res.StagesAttempted,
			"error_kind", res.ErrorKind,
			"error", res.Error,
			"elapsed_seconds", res.ElapsedSeconds,
		}, res.Metrics.LogAttrs()...)...)
	return res
}
