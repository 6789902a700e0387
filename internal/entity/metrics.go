package entity

import "sort"

// Metrics describes the quality of one stage's output. A fresh value is built per
// stage; Combine only serves final reporting.
type Metrics struct {
	Stage               string         `json:"stage,omitempty"`
	SchemaScore         float64        `json:"schema_score"`
	ValidRows           float64        `json:"valid_rows"`
	RowsTotal           int            `json:"rows_total"`
	RowsValid           int            `json:"rows_valid"`
	RowsRejected        int            `json:"rows_rejected"`
	RowsFixed           int            `json:"rows_fixed"`
	RowsSkipped         int            `json:"rows_skipped,omitempty"`
	Chunks              int            `json:"chunks,omitempty"`
	ChunksFailed        int            `json:"chunks_failed,omitempty"`
	LLMCalls            int            `json:"llm_calls,omitempty"`
	TextExtractedLength int            `json:"text_extracted_length,omitempty"`
	PagesProcessed      int            `json:"pages_processed,omitempty"`
	OCRConfidence       float64        `json:"ocr_confidence,omitempty"`
	RejectionReasons    map[string]int `json:"rejection_reasons,omitempty"`
	ElapsedSeconds      float64        `json:"elapsed_seconds"`
}

// AddRejection bumps the histogram bucket for reason.
func (m *Metrics) AddRejection(reason string) {
	if m.RejectionReasons == nil {
		m.RejectionReasons = map[string]int{}
	}
	m.RejectionReasons[reason]++
}

// Combine adds counters of o to m. Scores are taken from o, the later stage.
func (m Metrics) Combine(o Metrics) Metrics {
	out := m
	out.Stage = o.Stage
	out.SchemaScore = o.SchemaScore
	out.ValidRows = o.ValidRows
	out.RowsTotal += o.RowsTotal
	out.RowsValid += o.RowsValid
	out.RowsRejected += o.RowsRejected
	out.RowsFixed += o.RowsFixed
	out.RowsSkipped += o.RowsSkipped
	out.Chunks += o.Chunks
	out.ChunksFailed += o.ChunksFailed
	out.LLMCalls += o.LLMCalls
	out.TextExtractedLength += o.TextExtractedLength
	out.PagesProcessed += o.PagesProcessed
	if o.OCRConfidence > 0 {
		out.OCRConfidence = o.OCRConfidence
	}
	out.ElapsedSeconds += o.ElapsedSeconds
	if len(m.RejectionReasons)+len(o.RejectionReasons) > 0 {
		out.RejectionReasons = make(map[string]int, len(m.RejectionReasons)+len(o.RejectionReasons))
		for k, v := range m.RejectionReasons {
			out.RejectionReasons[k] += v
		}
		for k, v := range o.RejectionReasons {
			out.RejectionReasons[k] += v
		}
	}
	return out
}

// LogAttrs flattens the metrics into slog key/value pairs.
func (m Metrics) LogAttrs() []any {
	attrs := []any{
		"schema_score", m.SchemaScore,
		"valid_rows", m.ValidRows,
		"rows_total", m.RowsTotal,
		"rows_valid", m.RowsValid,
		"rows_rejected", m.RowsRejected,
		"rows_fixed", m.RowsFixed,
	}
	if m.Chunks > 0 {
		attrs = append(attrs, "chunks", m.Chunks, "chunks_failed", m.ChunksFailed)
	}
	if m.LLMCalls > 0 {
		attrs = append(attrs, "llm_calls", m.LLMCalls)
	}
	if m.TextExtractedLength > 0 {
		attrs = append(attrs, "text_extracted_length", m.TextExtractedLength)
	}
	if m.PagesProcessed > 0 {
		attrs = append(attrs, "pages_processed", m.PagesProcessed, "ocr_confidence", m.OCRConfidence)
	}
	if len(m.RejectionReasons) > 0 {
		keys := make([]string, 0, len(m.RejectionReasons))
		for k := range m.RejectionReasons {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			attrs = append(attrs, "rejected."+k, m.RejectionReasons[k])
		}
	}
	return attrs
}
