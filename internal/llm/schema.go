package llm

import "github.com/joseph-ayodele/wine-ingest/internal/entity"

// Document keys of the three response shapes.
const (
	KeyRecords  = "records"
	KeyMappings = "mappings"
	KeyRows     = "rows"
)

// BuildRecordsSchema describes {"records":[...]} where every record is a flat object of
// canonical fields. Values may be strings or numbers; the normalizer coerces them.
func BuildRecordsSchema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []string{KeyRecords},
		"properties": map[string]any{
			KeyRecords: map[string]any{
				"type":  "array",
				"items": recordProp(),
			},
		},
	}
}

// BuildRowsSchema describes {"rows":[...]}, the row repair response.
func BuildRowsSchema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []string{KeyRows},
		"properties": map[string]any{
			KeyRows: map[string]any{
				"type":  "array",
				"items": recordProp(),
			},
		},
	}
}

// BuildMappingsSchema describes {"mappings":[{"column","field","confidence"}]}.
func BuildMappingsSchema() map[string]any {
	fields := make([]any, 0, len(entity.AllFields))
	for _, f := range entity.AllFields {
		fields = append(fields, string(f))
	}
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []string{KeyMappings},
		"properties": map[string]any{
			KeyMappings: map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":                 "object",
					"additionalProperties": false,
					"required":             []string{"column", "field"},
					"properties": map[string]any{
						"column":     map[string]any{"type": "integer", "minimum": 0},
						"field":      map[string]any{"type": "string", "enum": fields},
						"confidence": map[string]any{"type": "number", "minimum": 0.0, "maximum": 1.0},
					},
				},
			},
		},
	}
}

func recordProp() map[string]any {
	props := make(map[string]any, len(entity.AllFields))
	for _, f := range entity.AllFields {
		props[string(f)] = scalarProp()
	}
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           props,
	}
}

func scalarProp() map[string]any {
	return map[string]any{"type": []string{"string", "number", "null"}}
}
