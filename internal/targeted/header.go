package targeted

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/joseph-ayodele/wine-ingest/internal/common"
	"github.com/joseph-ayodele/wine-ingest/internal/entity"
	"github.com/joseph-ayodele/wine-ingest/internal/llm"
)

const maxSampleRunes = 60

// disambiguateHeaders asks the cheap tier to map columns the dictionary left
// unmapped. Suggestions are merged only into fields that are still free and only
// when their confidence reaches the header threshold.
func (a *Assistant) disambiguateHeaders(ctx context.Context, table *entity.RawTable, mapping *entity.HeaderMapping) (added int, called bool, err error) {
	free := freeFields(mapping)
	cols := a.headerColumns(table, mapping)
	if len(free) == 0 || len(cols) == 0 {
		return 0, false, nil
	}

	sys, user := llm.BuildHeaderPrompt(cols, free)
	content, err := a.llm.Complete(ctx, llm.Request{
		Tier:       llm.TierCheap,
		System:     sys,
		User:       user,
		MaxTokens:  a.cfg.MaxTokens,
		JSONObject: true,
		Purpose:    "header_mapping",
	})
	if err != nil {
		if ctx.Err() != nil {
			return 0, true, ctx.Err()
		}
		a.logger.Warn("targeted.headers.llm_failed",
			"correlation_id", common.CorrelationIDFromContext(ctx), "error", err)
		return 0, true, nil
	}
	suggestions, err := llm.ParseMappings(content, a.logger)
	if err != nil {
		a.logger.Warn("targeted.headers.malformed",
			"correlation_id", common.CorrelationIDFromContext(ctx), "error", err)
		return 0, true, nil
	}

	offered := make(map[int]string, len(cols))
	for _, c := range cols {
		offered[c.Column] = c.Label
	}
	for _, s := range suggestions {
		label, ok := offered[s.Column]
		if !ok {
			continue
		}
		f, ok := entity.ParseField(s.Field)
		if !ok {
			continue
		}
		if s.Confidence < a.cfg.HeaderThreshold {
			a.logger.Debug("targeted.headers.low_confidence",
				"column", s.Column, "label", label, "field", f, "confidence", s.Confidence)
			continue
		}
		err := mapping.Add(entity.ColumnMapping{
			Column:     s.Column,
			Label:      label,
			Field:      f,
			Confidence: s.Confidence,
			Origin:     entity.OriginLLM,
		})
		if err != nil {
			a.logger.Debug("targeted.headers.conflict", "column", s.Column, "field", f, "error", err)
			continue
		}
		added++
		a.logger.Info("targeted.headers.mapped",
			"correlation_id", common.CorrelationIDFromContext(ctx),
			"column", s.Column, "label", label, "field", f, "confidence", s.Confidence)
	}
	return added, true, nil
}

// headerColumns lists unmapped columns that carry a label or any data, with up to
// HeaderSamples distinct sample values each.
func (a *Assistant) headerColumns(table *entity.RawTable, mapping *entity.HeaderMapping) []llm.HeaderColumn {
	var out []llm.HeaderColumn
	for _, col := range mapping.Unmapped(table.Width()) {
		hc := llm.HeaderColumn{Column: col}
		if col < len(table.Header) {
			hc.Label = table.Header[col]
		}
		seen := map[string]bool{}
		for r := range table.Rows {
			v := strings.TrimSpace(table.Cell(r, col))
			if v == "" || seen[v] {
				continue
			}
			seen[v] = true
			hc.Samples = append(hc.Samples, truncate(v, maxSampleRunes))
			if len(hc.Samples) >= a.cfg.HeaderSamples {
				break
			}
		}
		if hc.Label == "" && len(hc.Samples) == 0 {
			continue
		}
		out = append(out, hc)
	}
	return out
}

func freeFields(mapping *entity.HeaderMapping) []entity.Field {
	var out []entity.Field
	for _, f := range entity.AllFields {
		if !mapping.Has(f) {
			out = append(out, f)
		}
	}
	return out
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}
