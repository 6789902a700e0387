package pipeline

import (
	"context"
	"errors"

	"github.com/joseph-ayodele/wine-ingest/constants"
	"github.com/joseph-ayodele/wine-ingest/internal/common"
	"github.com/joseph-ayodele/wine-ingest/internal/core/decision"
	"github.com/joseph-ayodele/wine-ingest/internal/dedup"
	"github.com/joseph-ayodele/wine-ingest/internal/entity"
	"github.com/joseph-ayodele/wine-ingest/internal/extraction"
	"github.com/joseph-ayodele/wine-ingest/internal/tabular"
)

func failed(m entity.Metrics, err error) outcome {
	return outcome{decision: constants.DecisionError, metrics: m, err: err}
}

// tabularStage is Stage 1. Delimited text that yields no rows is still handed to
// Stage 3 as raw text; a workbook without rows fails here.
func (p *Processor) tabularStage(ctx context.Context, r *run) outcome {
	res, err := p.parser.Parse(ctx, r.content, r.ext)
	if err != nil {
		m := entity.Metrics{Stage: constants.StageTabular}
		if common.KindOf(err) != common.KindParseFailure || constants.IsSpreadsheetExt(r.ext) {
			return failed(m, err)
		}
		p.logger.Info("pipeline.tabular.no_rows",
			"correlation_id", common.CorrelationIDFromContext(ctx), "error", err)
		r.lastErr = err
		r.text = tabular.DecodeText(r.content)
		return outcome{decision: constants.DecisionEscalateToStage3, metrics: m}
	}
	r.tab = res
	if res.Decision == constants.DecisionSave {
		r.accept(dedup.Deduplicate(res.Valid), res.Metrics, constants.StageTabular)
	}
	return outcome{decision: res.Decision, metrics: res.Metrics}
}

func (p *Processor) targetedStage(ctx context.Context, r *run) outcome {
	if p.assistant == nil {
		return outcome{decision: constants.DecisionEscalateToStage3, metrics: entity.Metrics{Stage: constants.StageTargeted}}
	}
	res, err := p.assistant.Assist(ctx, r.tab)
	if err != nil {
		return failed(entity.Metrics{Stage: constants.StageTargeted}, err)
	}
	r.tab = res
	if res.Decision == constants.DecisionSave {
		r.accept(dedup.Deduplicate(res.Valid), res.Metrics, constants.StageTargeted)
	}
	return outcome{decision: res.Decision, metrics: res.Metrics}
}

// extractionStage is Stage 3. After a tabular stage the valid records it already
// had are combined with the extracted ones; if extraction fails they are saved on
// their own under the fallback stage name.
func (p *Processor) extractionStage(ctx context.Context, r *run) outcome {
	text := r.text
	var earlier []entity.WineRecord
	if r.tab != nil {
		text = r.tab.Table.Linearize()
		earlier = r.tab.Valid
	}

	m := entity.Metrics{Stage: constants.StageExtraction}
	var res *extraction.Result
	err := common.ErrStageDisabled
	if p.extractor != nil {
		res, err = p.extractor.Extract(ctx, text)
	}
	if res != nil {
		m = res.Metrics
	}
	if common.KindOf(err) == common.KindCanceled {
		return failed(m, err)
	}

	if err == nil && res.Decision == constants.DecisionSave {
		records := res.Valid
		if len(earlier) > 0 {
			records = dedup.CombineStages(earlier, res.Valid)
		}
		r.accept(records, m, constants.StageExtraction)
		return outcome{decision: constants.DecisionSave, metrics: m}
	}

	switch {
	case errors.Is(err, common.ErrStageDisabled):
		kind := common.KindNoValidRecords
		if r.lastErr != nil {
			kind = common.KindOf(r.lastErr)
		}
		p.logger.Info("pipeline.extraction.disabled", "correlation_id", common.CorrelationIDFromContext(ctx))
		err = common.NewKindError(kind, "extraction disabled", common.ErrStageDisabled)
	case err == nil:
		err = common.NewKindError(common.KindNoValidRecords, "extraction produced no valid records", nil)
	}

	if len(earlier) > 0 {
		p.logger.Warn("pipeline.fallback_previous",
			"correlation_id", common.CorrelationIDFromContext(ctx),
			"records", len(earlier),
			"error_kind", common.KindOf(err),
			"error", err)
		r.accept(dedup.Deduplicate(earlier), r.tab.Metrics, constants.StageFallbackPrevious)
		return outcome{decision: constants.DecisionSave, metrics: m, err: err}
	}
	return failed(m, err)
}

// ocrStage is Stage 4, the bridge from documents to Stage 3 text.
func (p *Processor) ocrStage(ctx context.Context, r *run) outcome {
	m := entity.Metrics{Stage: constants.StageOCR}
	if p.ocr == nil {
		return failed(m, common.NewKindError(common.KindOCRFailure, "ocr disabled", common.ErrStageDisabled))
	}
	tr, err := p.ocr.Extract(ctx, r.content, r.ext)
	m.PagesProcessed = len(tr.Pages)
	m.OCRConfidence = tr.Confidence
	m.ElapsedSeconds = tr.Duration.Seconds()
	if err != nil {
		return failed(m, err)
	}
	m.TextExtractedLength = len(tr.Text)

	d := p.engine.Decide(decision.Stage4, m)
	if d != constants.DecisionEscalateToStage3 {
		return failed(m, common.NewKindError(common.KindOCRFailure, "no text recognized", nil))
	}
	r.text = tr.Text
	return outcome{decision: d, metrics: m}
}
