package export

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/wine-ingest/constants"
	"github.com/joseph-ayodele/wine-ingest/internal/entity"
)

func TestReportXLSX(t *testing.T) {
	vintage := 2016
	price := 45.5
	results := []entity.PipelineResult{
		{
			FileName:        "cantina.csv",
			CorrelationID:   "cid-1",
			Decision:        constants.DecisionSave,
			StageUsed:       constants.StageTargeted,
			StagesAttempted: []string{constants.StageTabular, constants.StageTargeted},
			Records: []entity.WineRecord{
				{
					Name: "Barolo", Winery: "Vietti", Vintage: &vintage, Qty: 6, Price: &price,
					Type: constants.Red, SourceStage: constants.StageTabular, SourceRow: 2,
					Revisions: []entity.Revision{{Field: entity.FieldName, Value: "Barollo", Stage: constants.StageTabular}},
				},
				{Name: "Soave", Qty: 0, SourceStage: constants.StageTabular, SourceRow: 3},
			},
			Metrics: entity.Metrics{SchemaScore: 1, ValidRows: 0.67, RowsRejected: 1, RejectionReasons: map[string]int{"missing_name": 1}},
		},
		{
			FileName:        "wines.zip",
			Decision:        constants.DecisionError,
			StagesAttempted: []string{},
			ErrorKind:       "UnsupportedFormat",
			Error:           "UnsupportedFormat: unsupported extension \"zip\"",
		},
	}

	data, err := NewService(nil).ReportXLSX(context.Background(), results)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	wines, err := f.GetRows(SheetWines)
	require.NoError(t, err)
	require.Len(t, wines, 3)
	assert.Equal(t, wineHeaders, wines[0])
	assert.Equal(t, []string{"cantina.csv", "Barolo", "Vietti", "2016", "6", "45.5", "Red"}, wines[1][:7])
	assert.Equal(t, "Barollo (csv_excel_parse)", wines[1][16])
	assert.Equal(t, "", wines[2][3], "unset vintage stays blank")

	runs, err := f.GetRows(SheetRuns)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, runHeaders, runs[0])
	assert.Equal(t, "csv_excel_parse > ia_targeted", runs[1][4])
	assert.Equal(t, "2", runs[1][5])
	assert.Equal(t, "missing_name=1", runs[1][9])
	assert.Equal(t, "error", runs[2][2])
	assert.Equal(t, "UnsupportedFormat", runs[2][10])
}

func TestReportXLSX_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewService(nil).ReportXLSX(ctx, nil)
	assert.ErrorIs(t, err, context.Canceled)
}
