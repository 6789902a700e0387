package llm

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/joseph-ayodele/wine-ingest/internal/entity"
)

// alternative array keys models use instead of the one asked for
var documentAliases = []string{"wines", "items", "data", "results", "inventory", "mapping"}

// CleanJSON strips markdown fences and any prose around the outermost JSON value.
func CleanJSON(content string) string {
	s := strings.TrimSpace(content)
	if strings.HasPrefix(s, "```") {
		if nl := strings.IndexByte(s, '\n'); nl >= 0 {
			s = s[nl+1:]
		} else {
			s = strings.TrimPrefix(s, "```")
		}
		s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "```"))
	}
	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return s
	}
	closer := byte('}')
	if s[start] == '[' {
		closer = ']'
	}
	end := strings.LastIndexByte(s, closer)
	if end < start {
		return s[start:]
	}
	return s[start : end+1]
}

// NormalizeAndSanitizeJSON coerces a model response into the {key: [...]} document shape
// - wraps a bare array, or a single record object, under key
// - renames common alternative array keys to key
// - renames field aliases (producer -> winery) and drops unknown keys
// - drops null/empty values and non-scalar values
//
// Row documents keep a placeholder {} for non-object items so the row count is preserved.
func NormalizeAndSanitizeJSON(raw []byte, key string, logger *slog.Logger) ([]byte, []string, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, nil, fmt.Errorf("sanitize: decode: %w", err)
	}

	dropped := make([]string, 0, 8)
	var doc map[string]any
	switch t := v.(type) {
	case []any:
		doc = map[string]any{key: t}
		dropped = append(dropped, "(bare array)")
	case map[string]any:
		doc = t
	default:
		return nil, nil, fmt.Errorf("sanitize: unexpected top-level %T", v)
	}

	if _, ok := doc[key]; !ok {
		for _, alias := range documentAliases {
			if arr, ok := doc[alias].([]any); ok {
				doc = map[string]any{key: arr}
				dropped = append(dropped, alias+"->"+key)
				break
			}
		}
	}
	if _, ok := doc[key]; !ok && key != KeyMappings {
		if _, hasName := doc[string(entity.FieldName)]; hasName {
			doc = map[string]any{key: []any{doc}}
			dropped = append(dropped, "(single record)")
		}
	}
	for k := range doc {
		if k != key {
			delete(doc, k)
			dropped = append(dropped, k+"(unknown)")
		}
	}

	items, ok := doc[key].([]any)
	if !ok {
		items = []any{}
		dropped = append(dropped, key+"(type)")
	}

	out := make([]any, 0, len(items))
	for i, it := range items {
		obj, ok := it.(map[string]any)
		if !ok {
			dropped = append(dropped, fmt.Sprintf("%s[%d](type)", key, i))
			if key == KeyRows {
				out = append(out, map[string]any{})
			}
			continue
		}
		if key == KeyMappings {
			if m, ok := sanitizeMapping(obj); ok {
				out = append(out, m)
			} else {
				dropped = append(dropped, fmt.Sprintf("%s[%d]", key, i))
			}
			continue
		}
		out = append(out, sanitizeRecord(obj, func(d string) {
			dropped = append(dropped, fmt.Sprintf("%s[%d].%s", key, i, d))
		}))
	}
	doc[key] = out

	b, err := json.Marshal(doc)
	if err != nil {
		return nil, dropped, fmt.Errorf("sanitize: encode: %w", err)
	}
	if len(dropped) > 0 {
		logger.Warn("llm.response.normalize_sanitize", "key", key, "dropped", dropped)
	}
	return b, dropped, nil
}

func sanitizeRecord(obj map[string]any, drop func(string)) map[string]any {
	rec := make(map[string]any, len(obj))
	for k, val := range obj {
		f, ok := entity.ParseField(strings.ToLower(strings.TrimSpace(k)))
		if !ok {
			drop(k + "(unknown)")
			continue
		}
		switch t := val.(type) {
		case nil:
			drop(k + "(null)")
		case string:
			s := strings.TrimSpace(t)
			if s == "" || strings.EqualFold(s, "null") {
				drop(k + "(empty)")
				continue
			}
			rec[string(f)] = s
		case float64:
			rec[string(f)] = t
		default:
			drop(k + "(type)")
		}
	}
	return rec
}

func sanitizeMapping(obj map[string]any) (map[string]any, bool) {
	col, ok := asInt(obj["column"])
	if !ok || col < 0 {
		return nil, false
	}
	name, _ := obj["field"].(string)
	f, ok := entity.ParseField(strings.ToLower(strings.TrimSpace(name)))
	if !ok {
		return nil, false
	}
	m := map[string]any{"column": col, "field": string(f)}
	if c, ok := asFloat(obj["confidence"]); ok {
		m["confidence"] = min(max(c, 0), 1)
	}
	return m, true
}

func asInt(v any) (int, bool) {
	switch t := v.(type) {
	case float64:
		return int(t), t == float64(int(t))
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(t))
		return n, err == nil
	}
	return 0, false
}

func asFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	}
	return 0, false
}
