package llm

import "context"

// Tier selects a model class. Stage 2 uses the cheap tier, Stage 3 the capable one.
type Tier string

const (
	TierCheap   Tier = "cheap"
	TierCapable Tier = "capable"
)

// Request is one chat completion.
type Request struct {
	Tier       Tier
	System     string
	User       string
	MaxTokens  int
	JSONObject bool   // ask the provider for a JSON object response
	Purpose    string // log label: header_mapping, row_repair, extraction
}

// Completer is the only surface stages see of an LLM provider. Implementations
// must be safe for concurrent use.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// CompleterFunc adapts a function to Completer.
type CompleterFunc func(ctx context.Context, req Request) (string, error)

func (f CompleterFunc) Complete(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

// HeaderColumn is an unmapped column offered to the header disambiguation prompt.
type HeaderColumn struct {
	Column  int      `json:"column"`
	Label   string   `json:"label"`
	Samples []string `json:"samples"`
}

// ColumnSuggestion is one mapping proposed by the model.
type ColumnSuggestion struct {
	Column     int     `json:"column"`
	Field      string  `json:"field"`
	Confidence float64 `json:"confidence"`
}

// RepairRow is one row offered for repair, with its current raw values and the
// problems seen so far.
type RepairRow struct {
	Values   map[string]string `json:"values"`
	Problems []string          `json:"problems,omitempty"`
}
