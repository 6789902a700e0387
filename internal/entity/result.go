package entity

import (
	"github.com/joseph-ayodele/wine-ingest/constants"
)

// PipelineResult is the outcome of one ProcessFile invocation.
type PipelineResult struct {
	CorrelationID   string             `json:"correlation_id"`
	FileName        string             `json:"file_name"`
	Ext             string             `json:"ext"`
	Records         []WineRecord       `json:"records"`
	Metrics         Metrics            `json:"metrics"`
	Decision        constants.Decision `json:"decision"`
	StageUsed       string             `json:"stage_used"`
	StagesAttempted []string           `json:"stages_attempted"`
	StageMetrics    []Metrics          `json:"stage_metrics,omitempty"`
	ErrorKind       string             `json:"error_kind,omitempty"`
	Error           string             `json:"error,omitempty"`
	ElapsedSeconds  float64            `json:"elapsed_seconds"`
}

// Saved reports whether the run produced records for storage.
func (r PipelineResult) Saved() bool {
	return r.Decision == constants.DecisionSave
}

// Totals combines every stage's metrics additively.
func (r PipelineResult) Totals() Metrics {
	var total Metrics
	for _, m := range r.StageMetrics {
		total = total.Combine(m)
	}
	return total
}
