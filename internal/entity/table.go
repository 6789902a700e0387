package entity

import (
	"fmt"
	"sort"
	"strings"
)

// RawTable is the cell grid Stage 1 read from a tabular file. It is never mutated
// after the parser returns it.
type RawTable struct {
	Header      []string
	Rows        [][]string
	RowNumbers  []int
	Encoding    string
	Delimiter   rune
	SheetName   string
	SkippedRows int
}

// Width is the widest row or header.
func (t *RawTable) Width() int {
	w := len(t.Header)
	for _, r := range t.Rows {
		if len(r) > w {
			w = len(r)
		}
	}
	return w
}

// Cell returns the trimmed cell or "" when the row is short.
func (t *RawTable) Cell(row, col int) string {
	if row < 0 || row >= len(t.Rows) || col < 0 || col >= len(t.Rows[row]) {
		return ""
	}
	return strings.TrimSpace(t.Rows[row][col])
}

// Linearize renders header and rows as " | " joined lines.
func (t *RawTable) Linearize() string {
	var b strings.Builder
	if len(t.Header) > 0 {
		b.WriteString(strings.Join(t.Header, " | "))
		b.WriteByte('\n')
	}
	for _, r := range t.Rows {
		b.WriteString(strings.Join(r, " | "))
		b.WriteByte('\n')
	}
	return b.String()
}

// MappingOrigin tells where a column mapping came from.
type MappingOrigin string

const (
	OriginDictionary MappingOrigin = "dictionary"
	OriginLLM        MappingOrigin = "llm"
)

// ColumnMapping binds one input column to a canonical field.
type ColumnMapping struct {
	Column     int           `json:"column"`
	Label      string        `json:"label"`
	Field      Field         `json:"field"`
	Confidence float64       `json:"confidence"`
	Origin     MappingOrigin `json:"origin"`
}

// HeaderMapping holds the column bindings of a table. A field is bound to at most
// one column, and a column to at most one field.
type HeaderMapping struct {
	Columns []ColumnMapping `json:"columns"`
}

// FieldFor returns the field bound to column col.
func (m *HeaderMapping) FieldFor(col int) (Field, bool) {
	for _, c := range m.Columns {
		if c.Column == col {
			return c.Field, true
		}
	}
	return "", false
}

// ColumnFor returns the mapping bound to field f.
func (m *HeaderMapping) ColumnFor(f Field) (ColumnMapping, bool) {
	for _, c := range m.Columns {
		if c.Field == f {
			return c, true
		}
	}
	return ColumnMapping{}, false
}

func (m *HeaderMapping) Has(f Field) bool {
	_, ok := m.ColumnFor(f)
	return ok
}

// Add binds a column. It fails when the field or the column is already taken.
func (m *HeaderMapping) Add(cm ColumnMapping) error {
	if m.Has(cm.Field) {
		return fmt.Errorf("field %q already mapped", cm.Field)
	}
	if _, ok := m.FieldFor(cm.Column); ok {
		return fmt.Errorf("column %d already mapped", cm.Column)
	}
	m.Columns = append(m.Columns, cm)
	sort.Slice(m.Columns, func(i, j int) bool { return m.Columns[i].Column < m.Columns[j].Column })
	return nil
}

// MappedRequired counts required fields that have a column.
func (m *HeaderMapping) MappedRequired() int {
	n := 0
	for _, f := range RequiredFields {
		if m.Has(f) {
			n++
		}
	}
	return n
}

// Unmapped lists columns in [0, width) without a binding.
func (m *HeaderMapping) Unmapped(width int) []int {
	var out []int
	for col := 0; col < width; col++ {
		if _, ok := m.FieldFor(col); !ok {
			out = append(out, col)
		}
	}
	return out
}

// Clone returns an independent copy.
func (m *HeaderMapping) Clone() *HeaderMapping {
	if m == nil {
		return &HeaderMapping{}
	}
	return &HeaderMapping{Columns: append([]ColumnMapping(nil), m.Columns...)}
}
