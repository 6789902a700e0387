// Package gemini implements llm.Completer on the Gemini API.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/joseph-ayodele/wine-ingest/internal/common"
	"github.com/joseph-ayodele/wine-ingest/internal/llm"
)

type Config struct {
	APIKey       string
	ModelCheap   string
	ModelCapable string
	Temperature  float32
	Timeout      time.Duration
	Interval     time.Duration
}

// generator is the part of *genai.Models the client calls.
type generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

type Client struct {
	cfg     Config
	models  generator
	limiter *rate.Limiter
	log     *slog.Logger
}

var _ llm.Completer = (*Client)(nil)

func NewClient(ctx context.Context, cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, common.InvalidArgumentError("gemini api key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return newClient(cfg, client.Models, logger), nil
}

func newClient(cfg Config, models generator, logger *slog.Logger) *Client {
	if cfg.ModelCheap == "" {
		cfg.ModelCheap = "gemini-2.5-flash"
	}
	if cfg.ModelCapable == "" {
		cfg.ModelCapable = "gemini-2.5-pro"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	limit := rate.Inf
	if cfg.Interval > 0 {
		limit = rate.Every(cfg.Interval)
	}
	return &Client{cfg: cfg, models: models, limiter: rate.NewLimiter(limit, 1), log: logger}
}

func (c *Client) Model(tier llm.Tier) string {
	if tier == llm.TierCapable {
		return c.cfg.ModelCapable
	}
	return c.cfg.ModelCheap
}

// Complete implements llm.Completer with a single GenerateContent call.
func (c *Client) Complete(ctx context.Context, req llm.Request) (string, error) {
	rid := uuid.New().String()
	model := c.Model(req.Tier)

	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()
	start := time.Now()

	temp := c.cfg.Temperature
	gc := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: req.System}}},
		Temperature:       &temp,
	}
	if req.MaxTokens > 0 {
		gc.MaxOutputTokens = int32(req.MaxTokens)
	}
	if req.JSONObject {
		gc.ResponseMIMEType = "application/json"
	}
	contents := []*genai.Content{{
		Role:  "user",
		Parts: []*genai.Part{{Text: req.User}},
	}}

	c.log.Info("llm.complete.start",
		"req_id", rid, "purpose", req.Purpose, "tier", req.Tier, "model", model,
		"correlation_id", common.CorrelationIDFromContext(ctx), "stage", common.StageFromContext(ctx))

	resp, err := c.models.GenerateContent(ctx, model, contents, gc)
	if err != nil {
		c.log.Error("llm.complete.http_error",
			"req_id", rid, "purpose", req.Purpose, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds())
		return "", common.NewKindError(common.KindLLMCallFailure, "gemini request failed", err)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", common.NewKindError(common.KindLLMCallFailure, "empty gemini response", errors.New("no text"))
	}

	c.log.Info("llm.complete.ok",
		"req_id", rid, "purpose", req.Purpose, "model", model,
		"elapsed_ms", time.Since(start).Milliseconds())
	return text, nil
}
