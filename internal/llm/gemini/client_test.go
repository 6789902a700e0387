package gemini

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/joseph-ayodele/wine-ingest/internal/common"
	"github.com/joseph-ayodele/wine-ingest/internal/llm"
)

type fakeModels struct {
	model  string
	config *genai.GenerateContentConfig
	user   string
	text   string
	err    error
}

func (f *fakeModels) GenerateContent(_ context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.model, f.config = model, config
	if len(contents) > 0 && len(contents[0].Parts) > 0 {
		f.user = contents[0].Parts[0].Text
	}
	if f.err != nil {
		return nil, f.err
	}
	return &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
		Content: genai.NewContentFromText(f.text, genai.RoleModel),
	}}}, nil
}

func TestClient_ModelPerTier(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		tier llm.Tier
		want string
	}{
		{"default cheap", Config{}, llm.TierCheap, "gemini-2.5-flash"},
		{"default capable", Config{}, llm.TierCapable, "gemini-2.5-pro"},
		{"configured cheap", Config{ModelCheap: "flash-lite"}, llm.TierCheap, "flash-lite"},
		{"configured capable", Config{ModelCapable: "pro-exp"}, llm.TierCapable, "pro-exp"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeModels{text: "{}"}
			c := newClient(tt.cfg, fake, nil)

			_, err := c.Complete(context.Background(), llm.Request{Tier: tt.tier, User: "u"})
			require.NoError(t, err)
			assert.Equal(t, tt.want, fake.model)
			assert.Equal(t, tt.want, c.Model(tt.tier))
		})
	}
}

func TestClient_Complete(t *testing.T) {
	fake := &fakeModels{text: " {\"records\":[]} "}
	c := newClient(Config{Temperature: 0.1}, fake, nil)

	out, err := c.Complete(context.Background(), llm.Request{
		Tier:       llm.TierCapable,
		System:     "sys",
		User:       "Barolo | Vietti",
		MaxTokens:  4000,
		JSONObject: true,
	})
	require.NoError(t, err)
	assert.Equal(t, `{"records":[]}`, out)

	require.NotNil(t, fake.config)
	assert.Equal(t, "application/json", fake.config.ResponseMIMEType)
	assert.EqualValues(t, 4000, fake.config.MaxOutputTokens)
	require.NotNil(t, fake.config.SystemInstruction)
	assert.Equal(t, "sys", fake.config.SystemInstruction.Parts[0].Text)
	assert.Equal(t, "Barolo | Vietti", fake.user)
}

func TestClient_Complete_Failures(t *testing.T) {
	tests := []struct {
		name string
		fake *fakeModels
	}{
		{"api error", &fakeModels{err: errors.New("429 quota")}},
		{"empty text", &fakeModels{text: "  "}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newClient(Config{}, tt.fake, nil).Complete(context.Background(), llm.Request{User: "u"})
			require.Error(t, err)
			assert.Equal(t, common.KindLLMCallFailure, common.KindOf(err))
		})
	}
}

func TestNewClient_RequiresKey(t *testing.T) {
	_, err := NewClient(context.Background(), Config{}, nil)
	assert.Error(t, err)
}
