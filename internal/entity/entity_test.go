package entity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/wine-ingest/constants"
)

func TestHeaderMapping_AddIsOneToOne(t *testing.T) {
	m := &HeaderMapping{}
	require.NoError(t, m.Add(ColumnMapping{Column: 2, Field: FieldPrice, Confidence: 0.9}))
	require.NoError(t, m.Add(ColumnMapping{Column: 0, Field: FieldName, Confidence: 1}))

	assert.Error(t, m.Add(ColumnMapping{Column: 3, Field: FieldName}), "field reused")
	assert.Error(t, m.Add(ColumnMapping{Column: 2, Field: FieldQty}), "column reused")

	assert.Equal(t, 0, m.Columns[0].Column, "kept in column order")
	assert.Equal(t, 2, m.MappedRequired())
	assert.Equal(t, []int{1, 3}, m.Unmapped(4))

	clone := m.Clone()
	require.NoError(t, clone.Add(ColumnMapping{Column: 1, Field: FieldQty}))
	assert.False(t, m.Has(FieldQty))
}

func TestRawTable_Linearize(t *testing.T) {
	tbl := &RawTable{
		Header: []string{"Nome", "Annata"},
		Rows:   [][]string{{"Barolo", "2016"}, {"Soave"}},
	}
	assert.Equal(t, "Nome | Annata\nBarolo | 2016\nSoave\n", tbl.Linearize())
	assert.Equal(t, "", tbl.Cell(1, 1))
	assert.Equal(t, 2, tbl.Width())
}

func TestMetrics_Combine(t *testing.T) {
	a := Metrics{Stage: constants.StageTabular, SchemaScore: 0.5, RowsTotal: 10, RowsValid: 4}
	a.AddRejection("missing_name")
	b := Metrics{Stage: constants.StageExtraction, SchemaScore: 1, RowsTotal: 6, RowsValid: 6, Chunks: 2}
	b.AddRejection("missing_name")
	b.AddRejection("invalid_price")

	total := a.Combine(b)

	assert.Equal(t, constants.StageExtraction, total.Stage)
	assert.Equal(t, 1.0, total.SchemaScore)
	assert.Equal(t, 16, total.RowsTotal)
	assert.Equal(t, 10, total.RowsValid)
	assert.Equal(t, map[string]int{"missing_name": 2, "invalid_price": 1}, total.RejectionReasons)
	assert.Equal(t, 1, a.RejectionReasons["missing_name"], "inputs untouched")
}

func TestCandidateRecord_CloneIsDeep(t *testing.T) {
	qty := 3
	c := CandidateRecord{Name: "Barolo", Qty: &qty, Raw: map[Field]string{FieldName: "Barolo"}}
	clone := c.Clone()
	*clone.Qty = 9
	clone.Raw[FieldName] = "x"

	assert.Equal(t, 3, *c.Qty)
	assert.Equal(t, "Barolo", c.Raw[FieldName])
}

func TestNewIngestRun(t *testing.T) {
	started := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	res := PipelineResult{
		CorrelationID:   "abc",
		FileName:        "cantina.csv",
		Decision:        constants.DecisionError,
		StagesAttempted: []string{constants.StageTabular},
		ErrorKind:       "NoValidRecords",
		Error:           "nothing",
		ElapsedSeconds:  1.5,
	}

	run, err := NewIngestRun(res, []byte{1}, started)
	require.NoError(t, err)

	assert.Equal(t, "error", run.Decision)
	require.NotNil(t, run.ErrorKind)
	assert.Equal(t, "NoValidRecords", *run.ErrorKind)
	assert.Equal(t, started.Add(1500*time.Millisecond), run.FinishedAt)
}

func TestIngestRun_Result(t *testing.T) {
	vintage := 2018
	res := PipelineResult{
		CorrelationID:   "abc",
		FileName:        "cantina.csv",
		Ext:             "csv",
		Decision:        constants.DecisionSave,
		StageUsed:       constants.StageTabular,
		StagesAttempted: []string{constants.StageTabular},
		Records:         []WineRecord{{Name: "Barolo", Vintage: &vintage, Qty: 3}},
		Metrics:         Metrics{Stage: constants.StageTabular, SchemaScore: 0.9, ValidRows: 1},
		StageMetrics:    []Metrics{{Stage: constants.StageTabular, SchemaScore: 0.9, ValidRows: 1, RowsTotal: 1}},
		ElapsedSeconds:  2,
	}
	run, err := NewIngestRun(res, nil, time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	back, err := run.Result()
	require.NoError(t, err)
	assert.Equal(t, res.Records, back.Records)
	assert.Equal(t, res.StageMetrics, back.StageMetrics)
	assert.Equal(t, constants.DecisionSave, back.Decision)
	assert.InDelta(t, 2, back.ElapsedSeconds, 1e-9)
	assert.InDelta(t, 0.9, back.Metrics.SchemaScore, 1e-9)
	assert.Empty(t, back.ErrorKind)
}
