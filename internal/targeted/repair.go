package targeted

import (
	"context"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/wine-ingest/constants"
	"github.com/joseph-ayodele/wine-ingest/internal/common"
	"github.com/joseph-ayodele/wine-ingest/internal/entity"
	"github.com/joseph-ayodele/wine-ingest/internal/llm"
	"github.com/joseph-ayodele/wine-ingest/internal/normalize"
	"github.com/joseph-ayodele/wine-ingest/internal/validation"
)

// field each coercion issue or rejection reason points at
var problemField = map[string]entity.Field{
	normalize.IssueVintageUnparsed:    entity.FieldVintage,
	normalize.IssueQtyUnparsed:        entity.FieldQty,
	normalize.IssuePriceUnparsed:      entity.FieldPrice,
	normalize.IssueCostPriceUnparsed:  entity.FieldCostPrice,
	normalize.IssueAlcoholUnparsed:    entity.FieldAlcohol,
	normalize.IssueWineryNumeric:      entity.FieldWinery,
	normalize.IssueNameFromCategory:   entity.FieldName,
	validation.ReasonMissingName:      entity.FieldName,
	validation.ReasonInvalidVintage:   entity.FieldVintage,
	validation.ReasonInvalidQuantity:  entity.FieldQty,
	validation.ReasonInvalidPrice:     entity.FieldPrice,
	validation.ReasonInvalidCostPrice: entity.FieldCostPrice,
	validation.ReasonInvalidType:      entity.FieldType,
	validation.ReasonInvalidAlcohol:   entity.FieldAlcohol,
}

type repairStats struct {
	batches int
	failed  int
	fixed   int
}

type batchOutcome struct {
	failed bool
	fixed  int
}

// repairRows sends rejected or issue-bearing candidates to the cheap tier in
// batches and applies corrections in place. Each batch owns a disjoint set of
// candidates, so batches run concurrently without locking.
func (a *Assistant) repairRows(ctx context.Context, cands []entity.CandidateRecord) (repairStats, error) {
	var targets []int
	for i := range cands {
		if validation.Check(&cands[i]) != "" || cands[i].HasIssues() {
			targets = append(targets, i)
		}
	}
	if len(targets) == 0 {
		return repairStats{}, nil
	}

	var batches [][]int
	for len(targets) > 0 {
		n := min(a.cfg.BatchSize, len(targets))
		batches = append(batches, targets[:n])
		targets = targets[n:]
	}

	outcomes := make([]batchOutcome, len(batches))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.cfg.MaxConcurrency)
	for b, idx := range batches {
		g.Go(func() error {
			out, err := a.repairBatch(gctx, cands, idx, b)
			outcomes[b] = out
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return repairStats{}, err
	}

	st := repairStats{batches: len(batches)}
	for _, o := range outcomes {
		if o.failed {
			st.failed++
		}
		st.fixed += o.fixed
	}
	return st, nil
}

// repairBatch only returns an error on cancellation; anything else marks the batch
// failed and leaves its rows untouched.
func (a *Assistant) repairBatch(ctx context.Context, cands []entity.CandidateRecord, idx []int, batch int) (batchOutcome, error) {
	rows := make([]llm.RepairRow, len(idx))
	for i, ci := range idx {
		rows[i] = repairRow(&cands[ci])
	}

	sys, user := llm.BuildRepairPrompt(rows)
	content, err := a.llm.Complete(ctx, llm.Request{
		Tier:       llm.TierCheap,
		System:     sys,
		User:       user,
		MaxTokens:  a.cfg.MaxTokens,
		JSONObject: true,
		Purpose:    "row_repair",
	})
	cid := common.CorrelationIDFromContext(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return batchOutcome{}, ctx.Err()
		}
		a.logger.Warn("targeted.repair.llm_failed", "correlation_id", cid, "batch", batch, "error", err)
		return batchOutcome{failed: true}, nil
	}
	fixes, err := llm.ParseRows(content, a.logger)
	if err != nil {
		a.logger.Warn("targeted.repair.malformed", "correlation_id", cid, "batch", batch, "error", err)
		return batchOutcome{failed: true}, nil
	}
	if len(fixes) != len(idx) {
		a.logger.Warn("targeted.repair.length_mismatch",
			"correlation_id", cid, "batch", batch, "sent", len(idx), "received", len(fixes))
		return batchOutcome{failed: true}, nil
	}

	out := batchOutcome{}
	for i, ci := range idx {
		if a.applyFix(&cands[ci], fixes[i]) {
			out.fixed++
		}
	}
	a.logger.Debug("targeted.repair.batch_done", "correlation_id", cid, "batch", batch, "rows", len(idx), "fixed", out.fixed)
	return out, nil
}

func repairRow(c *entity.CandidateRecord) llm.RepairRow {
	row := llm.RepairRow{Values: make(map[string]string, len(c.Raw))}
	for f, v := range c.Raw {
		if v = strings.TrimSpace(v); v != "" {
			row.Values[string(f)] = v
		}
	}
	if r := validation.Check(c); r != "" {
		row.Problems = append(row.Problems, r)
	}
	row.Problems = append(row.Problems, c.Issues...)
	return row
}

// applyFix writes corrected raw values for fields that are unset or flagged, then
// re-normalizes. A replaced name whose folded form changes is kept as a revision.
func (a *Assistant) applyFix(c *entity.CandidateRecord, fix map[entity.Field]string) bool {
	flagged := map[entity.Field]bool{}
	if r := validation.Check(c); r != "" {
		flagged[problemField[r]] = true
	}
	for _, is := range c.Issues {
		if f, ok := problemField[is]; ok {
			flagged[f] = true
		}
	}

	changed := false
	for f, v := range fix {
		v = strings.TrimSpace(v)
		if v == "" || !(flagged[f] || isUnset(c, f)) {
			continue
		}
		if strings.TrimSpace(c.Raw[f]) == v {
			continue
		}
		if f == entity.FieldName && c.Name != "" && normalize.Fold(c.Name) != normalize.Fold(v) {
			c.Revisions = append(c.Revisions, entity.Revision{Field: entity.FieldName, Value: c.Name, Stage: c.SourceStage})
		}
		if c.Raw == nil {
			c.Raw = map[entity.Field]string{}
		}
		c.Raw[f] = v
		changed = true
	}
	if !changed {
		return false
	}
	a.norm.Normalize(c)
	c.SourceStage = constants.StageTargeted
	return true
}

func isUnset(c *entity.CandidateRecord, f entity.Field) bool {
	switch f {
	case entity.FieldVintage:
		return c.Vintage == nil
	case entity.FieldQty:
		return c.Qty == nil
	case entity.FieldPrice:
		return c.Price == nil
	case entity.FieldCostPrice:
		return c.CostPrice == nil
	case entity.FieldAlcohol:
		return c.AlcoholContent == nil
	default:
		return c.Text(f) == ""
	}
}
