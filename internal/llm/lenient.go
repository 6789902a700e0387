package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/joseph-ayodele/wine-ingest/internal/entity"
)

// ErrMalformedResponse marks a response that could not be coerced into the expected
// document. Stages retry or degrade on it.
var ErrMalformedResponse = errors.New("malformed llm response")

// ParseDocument validates content against schema strictly first, then after a lenient
// sanitize. The returned bytes always match the schema.
func ParseDocument(content, key string, schema map[string]any, logger *slog.Logger) ([]byte, error) {
	if logger == nil {
		logger = slog.Default()
	}
	raw := []byte(CleanJSON(content))
	if err := ValidateJSONAgainstSchema(key, schema, raw); err == nil {
		return raw, nil
	}

	cleaned, dropped, err := NormalizeAndSanitizeJSON(raw, key, logger)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}
	if err := ValidateJSONAgainstSchema(key, schema, cleaned); err != nil {
		logger.Error("llm.response.schema_validation_failed", "key", key, "error", err, "content_len", len(content))
		return nil, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}
	logger.Warn("llm.response.lenient_sanitize_applied", "key", key, "dropped", len(dropped))
	return cleaned, nil
}

// ParseRecords decodes an extraction response into raw field maps.
func ParseRecords(content string, logger *slog.Logger) ([]map[entity.Field]string, error) {
	return parseRecordList(content, KeyRecords, BuildRecordsSchema(), logger)
}

// ParseRows decodes a row repair response. Positions are kept: the i-th map answers
// the i-th row sent.
func ParseRows(content string, logger *slog.Logger) ([]map[entity.Field]string, error) {
	return parseRecordList(content, KeyRows, BuildRowsSchema(), logger)
}

// ParseMappings decodes a header disambiguation response.
func ParseMappings(content string, logger *slog.Logger) ([]ColumnSuggestion, error) {
	doc, err := ParseDocument(content, KeyMappings, BuildMappingsSchema(), logger)
	if err != nil {
		return nil, err
	}
	var out struct {
		Mappings []ColumnSuggestion `json:"mappings"`
	}
	if err := json.Unmarshal(doc, &out); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}
	return out.Mappings, nil
}

func parseRecordList(content, key string, schema map[string]any, logger *slog.Logger) ([]map[entity.Field]string, error) {
	doc, err := ParseDocument(content, key, schema, logger)
	if err != nil {
		return nil, err
	}
	var out map[string][]map[string]any
	if err := json.Unmarshal(doc, &out); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}
	items := out[key]
	recs := make([]map[entity.Field]string, 0, len(items))
	for _, it := range items {
		recs = append(recs, ToRaw(it))
	}
	return recs, nil
}

// ToRaw converts a decoded JSON record into raw cell text keyed by canonical field,
// the same shape a table row produces.
func ToRaw(obj map[string]any) map[entity.Field]string {
	raw := make(map[entity.Field]string, len(obj))
	for k, v := range obj {
		f, ok := entity.ParseField(k)
		if !ok {
			continue
		}
		switch t := v.(type) {
		case string:
			raw[f] = t
		case float64:
			raw[f] = strconv.FormatFloat(t, 'f', -1, 64)
		}
	}
	return raw
}
