package pipeline

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/wine-ingest/constants"
	"github.com/joseph-ayodele/wine-ingest/internal/common"
)

func TestBuild_DeterministicOnly(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("LLM_PROVIDER", "openai")
	t.Setenv("OCR_ENABLED", "false")
	t.Setenv("DICTIONARY_PATH", "")
	cfg := common.LoadConfig()

	p, err := Build(context.Background(), cfg, nil)
	require.NoError(t, err)
	assert.Nil(t, p.assistant)
	assert.Nil(t, p.extractor)
	assert.Nil(t, p.ocr)

	csv := "Nome,Produttore,Annata,Quantità,Prezzo,Tipo\n" +
		"Barolo,Vietti,2016,6,45,Rosso\n" +
		"Soave,Pieropan,2020,12,15,Bianco\n"
	res := p.ProcessFile(context.Background(), []byte(csv), "cantina.csv", "", "")
	assert.Equal(t, constants.DecisionSave, res.Decision)
	assert.Equal(t, constants.StageTabular, res.StageUsed)

	res = p.ProcessFile(context.Background(), []byte("%PDF-1.4"), "scan.pdf", "", "")
	assert.Equal(t, constants.DecisionError, res.Decision)
	assert.Equal(t, string(common.KindOCRFailure), res.ErrorKind)
}

func TestBuild_Errors(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("SCHEMA_SCORE_TH", "1.5")
	_, err := Build(context.Background(), common.LoadConfig(), nil)
	assert.Error(t, err, "invalid thresholds")

	t.Setenv("SCHEMA_SCORE_TH", "0.7")
	missing := filepath.Join(t.TempDir(), "missing.yaml")
	t.Setenv("DICTIONARY_PATH", missing)
	_, err = Build(context.Background(), common.LoadConfig(), nil)
	assert.ErrorContains(t, err, "missing.yaml")
}
