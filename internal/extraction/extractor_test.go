package extraction

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/wine-ingest/constants"
	"github.com/joseph-ayodele/wine-ingest/internal/common"
	"github.com/joseph-ayodele/wine-ingest/internal/core/decision"
	"github.com/joseph-ayodele/wine-ingest/internal/llm"
	"github.com/joseph-ayodele/wine-ingest/internal/normalize"
)

// tableModel answers like a model that reads every " | " line of the chunk as a wine.
func tableModel(_ context.Context, req llm.Request) (string, error) {
	var recs []map[string]string
	for _, line := range strings.Split(req.User, "\n") {
		parts := strings.Split(line, " | ")
		if len(parts) < 4 {
			continue
		}
		recs = append(recs, map[string]string{"name": parts[0], "winery": parts[1], "vintage": parts[2], "qty": parts[3]})
	}
	b, _ := json.Marshal(map[string]any{"records": recs})
	return string(b), nil
}

func newExtractor(t *testing.T, c llm.Completer, cfg Config) *Extractor {
	t.Helper()
	dict, err := normalize.DefaultDictionary()
	require.NoError(t, err)
	return NewExtractor(c, normalize.New(dict, 0.75, nil), decision.NewEngine(decision.DefaultThresholds()), cfg, nil)
}

func baseConfig() Config {
	return Config{Enabled: true, ChunkSize: 40 * 1024, ChunkOverlap: 1000, MaxTextBytes: 80 * 1024, MaxRetries: 2, MaxConcurrency: 4, MaxTokens: 4000}
}

func TestSplitChunks(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 10; i++ {
		b.WriteString("line ")
		b.WriteByte(byte('0' + i))
		b.WriteByte('\n')
	}
	text := b.String()

	chunks := SplitChunks(text, 30, 10)
	assert.Equal(t, []string{
		"line 0\nline 1\nline 2\nline 3\n",
		"line 3\nline 4\nline 5\nline 6\n",
		"line 6\nline 7\nline 8\nline 9\n",
	}, chunks)
	for _, c := range chunks {
		assert.LessOrEqual(t, len(c), 30)
	}

	assert.Equal(t, []string{text}, SplitChunks(text, 1000, 10))
	assert.Nil(t, SplitChunks("", 30, 10))

	noOverlap := SplitChunks(text, 30, 0)
	assert.Equal(t, text, strings.Join(noOverlap, ""))
}

func TestSplitChunks_LongLine(t *testing.T) {
	text := strings.Repeat("é", 20) // 40 bytes, no newline
	chunks := SplitChunks(text, 15, 5)
	assert.Equal(t, text, strings.Join(chunks, ""))
	for _, c := range chunks {
		assert.True(t, len(c) <= 15)
		assert.True(t, strings.HasPrefix(c, "é"), "cut on rune boundary")
	}
}

func TestTruncate(t *testing.T) {
	got, cut := Truncate("aaaa\nbbbb\ncccc\n", 12)
	assert.True(t, cut)
	assert.Equal(t, "aaaa\nbbbb\n", got)

	got, cut = Truncate("ééé", 3)
	assert.True(t, cut)
	assert.Equal(t, "é", got)

	got, cut = Truncate("short", 100)
	assert.False(t, cut)
	assert.Equal(t, "short", got)
}

func TestExtract_ChunksMergedWithoutEchoes(t *testing.T) {
	text := "ROSSI\nBarolo | Vietti | 2016 | 6\nBrunello | Biondi | 2015 | 3\nBIANCHI\nSoave | Pieropan | 2020 | 12\n"
	cfg := baseConfig()
	cfg.ChunkSize, cfg.ChunkOverlap = 64, 40
	chunks := SplitChunks(text, 64, 40)
	require.Greater(t, len(chunks), 1)

	res, err := newExtractor(t, llm.CompleterFunc(tableModel), cfg).Extract(context.Background(), text)
	require.NoError(t, err)

	var names []string
	for _, w := range res.Valid {
		names = append(names, w.Name)
	}
	assert.Equal(t, []string{"Barolo", "Brunello", "Soave"}, names)
	assert.Equal(t, 3, res.Metrics.RowsTotal)
	assert.Equal(t, len(chunks), res.Metrics.Chunks)
	assert.Equal(t, len(chunks), res.Metrics.LLMCalls)
	assert.Zero(t, res.Metrics.ChunksFailed)
	assert.Equal(t, len(text), res.Metrics.TextExtractedLength)
	assert.Equal(t, constants.StageExtraction, res.Valid[0].SourceStage)
	assert.Equal(t, constants.DecisionSave, res.Decision)
}

func TestExtract_DuplicatesSummed(t *testing.T) {
	fake := llm.CompleterFunc(func(context.Context, llm.Request) (string, error) {
		return `{"records":[{"name":"Barolo","winery":"Vietti","vintage":2016,"qty":6},{"name":"barolo","winery":"VIETTI","vintage":"2016","qty":"4"}]}`, nil
	})
	res, err := newExtractor(t, fake, baseConfig()).Extract(context.Background(), "Barolo Vietti 2016 x6\nBarolo Vietti 2016 x4\n")
	require.NoError(t, err)
	require.Len(t, res.Valid, 1)
	assert.Equal(t, 10, res.Valid[0].Qty)
}

func TestExtract_RetryWithReinforcedPrompt(t *testing.T) {
	var mu sync.Mutex
	var systems []string
	fake := llm.CompleterFunc(func(_ context.Context, req llm.Request) (string, error) {
		mu.Lock()
		defer mu.Unlock()
		systems = append(systems, req.System)
		assert.Equal(t, llm.TierCapable, req.Tier)
		if len(systems) == 1 {
			return "Sure! Here are the wines you asked for.", nil
		}
		return "```json\n{\"records\":[{\"name\":\"Gavi\",\"price\":\"12,50\"}]}\n```", nil
	})

	res, err := newExtractor(t, fake, baseConfig()).Extract(context.Background(), "Gavi 12,50\n")
	require.NoError(t, err)
	require.Len(t, systems, 2)
	assert.NotContains(t, systems[0], "previous answer")
	assert.Contains(t, systems[1], "previous answer")
	assert.Equal(t, 2, res.Metrics.LLMCalls)
	assert.Zero(t, res.Metrics.ChunksFailed)
	require.Len(t, res.Valid, 1)
	require.NotNil(t, res.Valid[0].Price)
	assert.InDelta(t, 12.5, *res.Valid[0].Price, 1e-9)
}

func TestExtract_Failures(t *testing.T) {
	tests := []struct {
		name     string
		respond  func() (string, error)
		wantKind common.ErrorKind
		calls    int
	}{
		{
			name:     "provider always failing",
			respond:  func() (string, error) { return "", errors.New("503") },
			wantKind: common.KindLLMCallFailure,
			calls:    3,
		},
		{
			name:     "records without names",
			respond:  func() (string, error) { return `{"records":[{"price":12},{"vintage":2019}]}`, nil },
			wantKind: common.KindNoValidRecords,
			calls:    1,
		},
		{
			name:     "empty record list",
			respond:  func() (string, error) { return `{"records":[]}`, nil },
			wantKind: common.KindNoValidRecords,
			calls:    1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := llm.CompleterFunc(func(context.Context, llm.Request) (string, error) { return tt.respond() })
			res, err := newExtractor(t, fake, baseConfig()).Extract(context.Background(), "qualcosa\n")
			require.Error(t, err)
			assert.Equal(t, tt.wantKind, common.KindOf(err))
			require.NotNil(t, res)
			assert.Equal(t, constants.DecisionError, res.Decision)
			assert.Equal(t, tt.calls, res.Metrics.LLMCalls)
			assert.Empty(t, res.Valid)
		})
	}
}

func TestExtract_Truncates(t *testing.T) {
	var seen int
	var mu sync.Mutex
	fake := llm.CompleterFunc(func(_ context.Context, req llm.Request) (string, error) {
		mu.Lock()
		seen++
		mu.Unlock()
		return `{"records":[{"name":"Barolo"}]}`, nil
	})
	cfg := baseConfig()
	cfg.MaxTextBytes = 100
	cfg.ChunkSize = 60
	cfg.ChunkOverlap = 0

	res, err := newExtractor(t, fake, cfg).Extract(context.Background(), strings.Repeat("Barolo | 2016\n", 50))
	require.NoError(t, err)
	assert.LessOrEqual(t, res.Metrics.TextExtractedLength, 100)
	assert.Equal(t, 2, seen)
}

func TestExtract_DisabledAndCanceled(t *testing.T) {
	cfg := baseConfig()
	cfg.Enabled = false
	_, err := newExtractor(t, llm.CompleterFunc(tableModel), cfg).Extract(context.Background(), "x")
	assert.ErrorIs(t, err, common.ErrStageDisabled)

	ctx, cancel := context.WithCancel(context.Background())
	fake := llm.CompleterFunc(func(context.Context, llm.Request) (string, error) {
		cancel()
		return "", context.Canceled
	})
	_, err = newExtractor(t, fake, baseConfig()).Extract(ctx, "Barolo\n")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, common.KindCanceled, common.KindOf(err))
}
