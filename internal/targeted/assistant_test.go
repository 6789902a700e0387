package targeted

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/wine-ingest/constants"
	"github.com/joseph-ayodele/wine-ingest/internal/core/decision"
	"github.com/joseph-ayodele/wine-ingest/internal/entity"
	"github.com/joseph-ayodele/wine-ingest/internal/llm"
	"github.com/joseph-ayodele/wine-ingest/internal/normalize"
	"github.com/joseph-ayodele/wine-ingest/internal/tabular"
)

type fakeLLM struct {
	mu      sync.Mutex
	calls   map[string]int
	respond func(req llm.Request) (string, error)
}

func (f *fakeLLM) Complete(_ context.Context, req llm.Request) (string, error) {
	f.mu.Lock()
	if f.calls == nil {
		f.calls = map[string]int{}
	}
	f.calls[req.Purpose]++
	f.mu.Unlock()
	return f.respond(req)
}

type fixture struct {
	parser *tabular.Parser
	norm   *normalize.Normalizer
	engine *decision.Engine
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	dict, err := normalize.DefaultDictionary()
	require.NoError(t, err)
	norm := normalize.New(dict, 0.75, nil)
	engine := decision.NewEngine(decision.DefaultThresholds())
	return fixture{parser: tabular.NewParser(norm, engine, nil), norm: norm, engine: engine}
}

func (f fixture) stage1(t *testing.T, csv string) *tabular.Result {
	t.Helper()
	res, err := f.parser.Parse(context.Background(), []byte(csv), "csv")
	require.NoError(t, err)
	return res
}

func (f fixture) assistant(c llm.Completer, cfg Config) *Assistant {
	return NewAssistant(c, f.parser, f.norm, f.engine, cfg, nil)
}

func enabled() Config {
	return Config{Enabled: true, HeaderThreshold: 0.75, BatchSize: 20, MaxTokens: 1500, MaxConcurrency: 2, HeaderSamples: 5}
}

func TestAssist_HeaderDisambiguation(t *testing.T) {
	f := newFixture(t)
	prev := f.stage1(t, "Vino;zzz;kkk;Prezzo\nBarolo;Vietti;2016;45\nSoave;Pieropan;2020;15\n")
	require.Equal(t, constants.DecisionEscalateToStage2, prev.Decision)

	fake := &fakeLLM{respond: func(req llm.Request) (string, error) {
		assert.Equal(t, llm.TierCheap, req.Tier)
		assert.Contains(t, req.User, "Vietti")
		return `{"mappings":[
			{"column":1,"field":"winery","confidence":0.9},
			{"column":2,"field":"vintage","confidence":0.6},
			{"column":3,"field":"name","confidence":0.99}
		]}`, nil
	}}

	res, err := f.assistant(fake, enabled()).Assist(context.Background(), prev)
	require.NoError(t, err)

	cm, ok := res.Mapping.ColumnFor(entity.FieldWinery)
	require.True(t, ok)
	assert.Equal(t, 1, cm.Column)
	assert.Equal(t, entity.OriginLLM, cm.Origin)
	assert.False(t, res.Mapping.Has(entity.FieldVintage), "below threshold")
	name, _ := res.Mapping.ColumnFor(entity.FieldName)
	assert.Equal(t, 0, name.Column, "taken fields are never reassigned")

	assert.False(t, prev.Mapping.Has(entity.FieldWinery), "stage 1 mapping untouched")
	assert.Equal(t, "Vietti", res.Candidates[0].Winery)
	assert.Equal(t, constants.StageTabular, res.Candidates[0].SourceStage)
	assert.InDelta(t, 0.5, res.Metrics.SchemaScore, 1e-9)
	assert.Equal(t, constants.DecisionEscalateToStage3, res.Decision)
	assert.Equal(t, 1, res.Metrics.LLMCalls)
	assert.Equal(t, map[string]int{"header_mapping": 1}, fake.calls)
}

func TestAssist_RowRepair(t *testing.T) {
	f := newFixture(t)
	prev := f.stage1(t, strings.Join([]string{
		"Nome;Produttore;Annata;Quantità;Prezzo;Tipo",
		"Barolo;Vietti;2016;6;45;Rosso",
		";Pieropan;2020;12;15;Bianco",
		"Rossi;Tenuta X;duemila;3;20;",
		"Gavi;La Scolca;2019;x;18;Bianco",
	}, "\n"))

	fake := &fakeLLM{respond: func(req llm.Request) (string, error) {
		switch {
		case strings.Contains(req.User, "Pieropan"):
			return `{"rows":[{"name":"Soave Classico"},{"name":"Bandol Rosso","vintage":"2000"}]}`, nil
		case strings.Contains(req.User, "La Scolca"):
			return `{"rows":[{"qty":"6"},{"qty":"7"}]}`, nil
		}
		return "", errors.New("unexpected batch")
	}}
	cfg := enabled()
	cfg.BatchSize = 2

	res, err := f.assistant(fake, cfg).Assist(context.Background(), prev)
	require.NoError(t, err)
	require.Len(t, res.Candidates, 4)

	assert.Equal(t, "Barolo", res.Candidates[0].Name)
	assert.Equal(t, constants.StageTabular, res.Candidates[0].SourceStage)

	soave := res.Candidates[1]
	assert.Equal(t, "Soave Classico", soave.Name)
	assert.Equal(t, constants.StageTargeted, soave.SourceStage)
	assert.Empty(t, soave.Revisions, "no previous name to keep")

	bandol := res.Candidates[2]
	assert.Equal(t, "Bandol Rosso", bandol.Name)
	require.NotNil(t, bandol.Vintage)
	assert.Equal(t, 2000, *bandol.Vintage)
	assert.Equal(t, []entity.Revision{{Field: entity.FieldName, Value: "Tenuta X", Stage: constants.StageTabular}}, bandol.Revisions)

	gavi := res.Candidates[3]
	assert.Nil(t, gavi.Qty, "mismatched batch is a no-op")
	assert.Equal(t, []string{normalize.IssueQtyUnparsed}, gavi.Issues)

	assert.Equal(t, 2, res.Metrics.Chunks)
	assert.Equal(t, 1, res.Metrics.ChunksFailed)
	assert.Equal(t, 2, res.Metrics.RowsFixed)
	assert.Equal(t, 2, res.Metrics.LLMCalls)
	assert.Equal(t, 4, res.Metrics.RowsValid)
	assert.Equal(t, constants.DecisionSave, res.Decision)
	assert.Equal(t, map[string]int{"row_repair": 2}, fake.calls)
}

func TestAssist_FailuresDegradeToNoOp(t *testing.T) {
	f := newFixture(t)
	prev := f.stage1(t, "Vino;zzz;Prezzo\nBarolo;Vietti;45\n;Pieropan;15\nGavi;x;-\n")

	fake := &fakeLLM{respond: func(llm.Request) (string, error) {
		return "", errors.New("provider down")
	}}
	res, err := f.assistant(fake, enabled()).Assist(context.Background(), prev)
	require.NoError(t, err)

	assert.Equal(t, prev.Metrics.ValidRows, res.Metrics.ValidRows)
	assert.Equal(t, prev.Metrics.SchemaScore, res.Metrics.SchemaScore)
	assert.Equal(t, len(prev.Valid), len(res.Valid))
	assert.Equal(t, constants.DecisionEscalateToStage3, res.Decision)
	assert.Equal(t, res.Metrics.Chunks, res.Metrics.ChunksFailed)
	assert.Zero(t, res.Metrics.RowsFixed)
}

func TestAssist_Disabled(t *testing.T) {
	f := newFixture(t)
	prev := f.stage1(t, "Vino;Prezzo\nBarolo;45\n")

	fake := &fakeLLM{respond: func(llm.Request) (string, error) {
		t.Fatal("no call expected")
		return "", nil
	}}
	cfg := enabled()
	cfg.Enabled = false

	res, err := f.assistant(fake, cfg).Assist(context.Background(), prev)
	require.NoError(t, err)
	assert.Equal(t, constants.DecisionEscalateToStage3, res.Decision)
	assert.Equal(t, constants.StageTargeted, res.Metrics.Stage)
	assert.Equal(t, prev.Metrics.RowsTotal, res.Metrics.RowsTotal)
	assert.Equal(t, prev.Metrics.RowsValid, res.Metrics.RowsValid)
	assert.Equal(t, prev.Metrics.SchemaScore, res.Metrics.SchemaScore)
	assert.Equal(t, prev.Metrics.ValidRows, res.Metrics.ValidRows)
	assert.Zero(t, res.Metrics.LLMCalls)
	assert.Empty(t, fake.calls)
}

func TestAssist_Canceled(t *testing.T) {
	f := newFixture(t)
	prev := f.stage1(t, "Vino;zzz\nBarolo;Vietti\n")

	ctx, cancel := context.WithCancel(context.Background())
	fake := &fakeLLM{respond: func(llm.Request) (string, error) {
		cancel()
		return "", context.Canceled
	}}

	_, err := f.assistant(fake, enabled()).Assist(ctx, prev)
	assert.ErrorIs(t, err, context.Canceled)
}
