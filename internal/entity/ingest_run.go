package entity

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/wine-ingest/constants"
)

// IngestRun is the audit row persisted for every pipeline invocation.
type IngestRun struct {
	ID              uuid.UUID       `json:"id"`
	CorrelationID   string          `json:"correlation_id"`
	FileName        string          `json:"file_name"`
	FileExt         string          `json:"file_ext"`
	ContentHash     []byte          `json:"content_hash,omitempty"`
	StartedAt       time.Time       `json:"started_at"`
	FinishedAt      time.Time       `json:"finished_at"`
	Decision        string          `json:"decision"`
	StageUsed       string          `json:"stage_used"`
	StagesAttempted []string        `json:"stages_attempted"`
	RecordCount     int             `json:"record_count"`
	SchemaScore     float64         `json:"schema_score"`
	ValidRows       float64         `json:"valid_rows"`
	ErrorKind       *string         `json:"error_kind,omitempty"`
	ErrorMessage    *string         `json:"error_message,omitempty"`
	MetricsJSON     json.RawMessage `json:"metrics_json,omitempty"`
	RecordsJSON     json.RawMessage `json:"records_json,omitempty"`
}

// NewIngestRun builds the audit row for a finished result.
func NewIngestRun(res PipelineResult, hash []byte, started time.Time) (IngestRun, error) {
	metrics, err := json.Marshal(res.StageMetrics)
	if err != nil {
		return IngestRun{}, err
	}
	records, err := json.Marshal(res.Records)
	if err != nil {
		return IngestRun{}, err
	}
	run := IngestRun{
		ID:              uuid.New(),
		CorrelationID:   res.CorrelationID,
		FileName:        res.FileName,
		FileExt:         res.Ext,
		ContentHash:     hash,
		StartedAt:       started.UTC(),
		FinishedAt:      started.Add(time.Duration(res.ElapsedSeconds * float64(time.Second))).UTC(),
		Decision:        string(res.Decision),
		StageUsed:       res.StageUsed,
		StagesAttempted: res.StagesAttempted,
		RecordCount:     len(res.Records),
		SchemaScore:     res.Metrics.SchemaScore,
		ValidRows:       res.Metrics.ValidRows,
		MetricsJSON:     metrics,
		RecordsJSON:     records,
	}
	if res.ErrorKind != "" {
		kind, msg := res.ErrorKind, res.Error
		run.ErrorKind = &kind
		run.ErrorMessage = &msg
	}
	return run, nil
}

// Result rebuilds the pipeline result a stored run was made from. Per-stage
// metrics and records come back from their JSON columns.
func (r IngestRun) Result() (PipelineResult, error) {
	res := PipelineResult{
		CorrelationID:   r.CorrelationID,
		FileName:        r.FileName,
		Ext:             r.FileExt,
		Decision:        constants.Decision(r.Decision),
		StageUsed:       r.StageUsed,
		StagesAttempted: r.StagesAttempted,
		ElapsedSeconds:  r.FinishedAt.Sub(r.StartedAt).Seconds(),
	}
	if len(r.MetricsJSON) > 0 {
		if err := json.Unmarshal(r.MetricsJSON, &res.StageMetrics); err != nil {
			return res, fmt.Errorf("metrics_json: %w", err)
		}
	}
	if len(r.RecordsJSON) > 0 {
		if err := json.Unmarshal(r.RecordsJSON, &res.Records); err != nil {
			return res, fmt.Errorf("records_json: %w", err)
		}
	}
	if n := len(res.StageMetrics); n > 0 {
		res.Metrics = res.StageMetrics[n-1]
	}
	res.Metrics.SchemaScore = r.SchemaScore
	res.Metrics.ValidRows = r.ValidRows
	if r.ErrorKind != nil {
		res.ErrorKind = *r.ErrorKind
	}
	if r.ErrorMessage != nil {
		res.Error = *r.ErrorMessage
	}
	return res, nil
}
