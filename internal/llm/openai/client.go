package openai

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/wine-ingest/internal/common"
	"github.com/joseph-ayodele/wine-ingest/internal/llm"
)

var _ llm.Completer = (*Client)(nil)

// Model returns the model serving a tier.
func (c *Client) Model(tier llm.Tier) string {
	if tier == llm.TierCapable {
		return c.cfg.ModelCapable
	}
	return c.cfg.ModelCheap
}

// Complete implements llm.Completer over chat/completions.
func (c *Client) Complete(ctx context.Context, req llm.Request) (string, error) {
	rid := uuid.New().String()
	model := c.Model(req.Tier)

	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}
	start := time.Now()

	c.log.Info("llm.complete.start",
		"req_id", rid,
		"purpose", req.Purpose,
		"tier", req.Tier,
		"model", model,
		"max_tokens", req.MaxTokens,
		"prompt_len", len(req.System)+len(req.User),
		"correlation_id", common.CorrelationIDFromContext(ctx),
		"stage", common.StageFromContext(ctx),
	)

	body := map[string]any{
		"model":       model,
		"temperature": c.cfg.Temperature,
		"messages": []map[string]any{
			{"role": "system", "content": req.System},
			{"role": "user", "content": req.User},
		},
	}
	if req.MaxTokens > 0 {
		body["max_tokens"] = req.MaxTokens
	}
	if req.JSONObject {
		body["response_format"] = map[string]any{"type": "json_object"}
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	headers := map[string]string{"Authorization": "Bearer " + c.cfg.APIKey}
	raw, err := llm.SendJSON(ctx, c.http, endpoint, body, headers, c.log)
	if err != nil {
		c.log.Error("llm.complete.http_error",
			"req_id", rid, "purpose", req.Purpose, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return "", common.NewKindError(common.KindLLMCallFailure, "openai request failed", err)
	}

	var cc struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
			FinishReason string `json:"finish_reason"`
		} `json:"choices"`
		Usage struct {
			PromptTokens     int `json:"prompt_tokens"`
			CompletionTokens int `json:"completion_tokens"`
		} `json:"usage"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		c.log.Error("llm.complete.decode_error",
			"req_id", rid, "error", err, "raw_bytes", len(raw),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return "", common.NewKindError(common.KindLLMCallFailure, "decode openai response", err)
	}
	if len(cc.Choices) == 0 || strings.TrimSpace(cc.Choices[0].Message.Content) == "" {
		c.log.Error("llm.complete.no_choices",
			"req_id", rid, "raw_bytes", len(raw),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return "", common.NewKindError(common.KindLLMCallFailure, "empty openai response", errors.New("no choices"))
	}

	c.log.Info("llm.complete.ok",
		"req_id", rid,
		"purpose", req.Purpose,
		"model", model,
		"finish_reason", cc.Choices[0].FinishReason,
		"prompt_tokens", cc.Usage.PromptTokens,
		"completion_tokens", cc.Usage.CompletionTokens,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return strings.TrimSpace(cc.Choices[0].Message.Content), nil
}
