// Package llm generates narration scripts with an OpenAI-compatible chat
// API, a primary model with bounded retries, and a cheaper fallback model
// attempted only when the primary keeps failing transiently.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"regexp"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/wallyrebel/sportshorts/internal/domain"
	"github.com/wallyrebel/sportshorts/internal/ports"
	"github.com/wallyrebel/sportshorts/internal/retry"
)

const (
	minWords = 35
	maxWords = 95

	promptTitleLimit   = 350
	promptSummaryLimit = 1600
)

// completionClient is the slice of the OpenAI client the generator uses;
// tests substitute a fake.
type completionClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Config tunes the primary/fallback model tiers.
type Config struct {
	PrimaryModel       string
	FallbackModel      string
	PrimaryTimeoutSec  int
	FallbackTimeoutSec int
	MaxRetries         int
}

// ScriptGenerator implements ports.ScriptGenerator.
type ScriptGenerator struct {
	client completionClient
	cfg    Config
	logger *slog.Logger
	sleep  func(time.Duration)
}

var _ ports.ScriptGenerator = (*ScriptGenerator)(nil)

// Option customizes the generator.
type Option func(*ScriptGenerator)

// WithCompletionClient overrides the API client (used by tests).
func WithCompletionClient(client completionClient) Option {
	return func(g *ScriptGenerator) {
		if client != nil {
			g.client = client
		}
	}
}

// WithSleeper overrides how retry backoff waits are performed.
func WithSleeper(sleep func(time.Duration)) Option {
	return func(g *ScriptGenerator) {
		g.sleep = sleep
	}
}

// NewScriptGenerator builds a generator from an API key and tier config.
func NewScriptGenerator(apiKey string, cfg Config, logger *slog.Logger, opts ...Option) *ScriptGenerator {
	if cfg.PrimaryModel == "" {
		cfg.PrimaryModel = "gpt-5-mini"
	}
	if cfg.FallbackModel == "" {
		cfg.FallbackModel = "gpt-4.1-nano"
	}
	if cfg.PrimaryTimeoutSec <= 0 {
		cfg.PrimaryTimeoutSec = 20
	}
	if cfg.FallbackTimeoutSec <= 0 {
		cfg.FallbackTimeoutSec = 15
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}

	gen := &ScriptGenerator{
		client: openai.NewClient(apiKey),
		cfg:    cfg,
		logger: logger,
	}
	for _, opt := range opts {
		opt(gen)
	}
	return gen
}

// Generate produces a narration script for the item, falling back to the
// secondary model only when the primary's final failure is transient.
func (g *ScriptGenerator) Generate(ctx context.Context, item domain.Item) (domain.Script, error) {
	prompt := buildPrompt(item)

	primary := retry.Policy{MaxAttempts: g.cfg.MaxRetries, BaseDelay: time.Second, Sleep: g.sleep}
	secondary := primary

	script, err := retry.DoWithFallback(ctx, primary, secondary, isRetryable,
		func(ctx context.Context) (domain.Script, error) {
			return g.complete(ctx, g.cfg.PrimaryModel, g.cfg.PrimaryTimeoutSec, prompt)
		},
		func(ctx context.Context) (domain.Script, error) {
			g.warn("primary narration model failed, using fallback",
				"item_id", item.ItemID, "fallback_model", g.cfg.FallbackModel)
			return g.complete(ctx, g.cfg.FallbackModel, g.cfg.FallbackTimeoutSec, prompt)
		})
	if err != nil {
		return domain.Script{}, fmt.Errorf("generate script for %s: %w", item.ItemID, err)
	}
	return script, nil
}

func (g *ScriptGenerator) complete(ctx context.Context, model string, timeoutSec int, prompt string) (domain.Script, error) {
	callCtx, cancel := context.WithTimeout(ctx, time.Duration(timeoutSec)*time.Second)
	defer cancel()

	resp, err := g.client.CreateChatCompletion(callCtx, openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return domain.Script{}, err
	}
	if len(resp.Choices) == 0 {
		return domain.Script{}, errors.New("no response choices")
	}

	payload, err := parseModelJSON(resp.Choices[0].Message.Content)
	if err != nil {
		return domain.Script{}, fmt.Errorf("parse model output: %w", err)
	}
	return normalizeScript(payload, model)
}

func buildPrompt(item domain.Item) string {
	title := truncate(item.Title, promptTitleLimit)
	summary := truncate(item.Summary, promptSummaryLimit)
	return fmt.Sprintf(`You are writing short voiceover scripts for vertical sports videos.
You MUST use only facts present in the feed fields below. Do not invent details.
If details are limited, keep wording general and clearly avoid specifics not present.

Output strict JSON with this exact shape:
{
  "narration_text": "35-95 words, spoken style, no hashtags, no emojis, no weird symbols",
  "on_screen_hook": "optional, max 8 words"
}

Feed title:
%s

Feed summary:
%s
`, title, summary)
}

func truncate(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	return text[:limit]
}

type scriptPayload struct {
	NarrationText string `json:"narration_text"`
	OnScreenHook  string `json:"on_screen_hook"`
}

var (
	fenceExpr     = regexp.MustCompile("(?s)^```(?:json)?\\s*|\\s*```$")
	jsonBlockExpr = regexp.MustCompile(`(?s)\{.*\}`)
	spaceExpr     = regexp.MustCompile(`\s+`)
)

// parseModelJSON tolerates fenced or prose-wrapped JSON in model output.
func parseModelJSON(text string) (scriptPayload, error) {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		text = fenceExpr.ReplaceAllString(text, "")
	}

	var payload scriptPayload
	if err := json.Unmarshal([]byte(text), &payload); err == nil {
		return payload, nil
	}

	block := jsonBlockExpr.FindString(text)
	if block == "" {
		return scriptPayload{}, fmt.Errorf("no JSON object in model output: %.80s", text)
	}
	if err := json.Unmarshal([]byte(block), &payload); err != nil {
		return scriptPayload{}, fmt.Errorf("decode model JSON: %w", err)
	}
	return payload, nil
}

// normalizeScript enforces the word bounds: over-long narrations are cut at
// the limit, short ones padded once, and anything still too short is an
// error rather than a low-quality clip.
func normalizeScript(payload scriptPayload, model string) (domain.Script, error) {
	narration := spaceExpr.ReplaceAllString(strings.TrimSpace(payload.NarrationText), " ")
	narration = strings.ReplaceAll(narration, "#", "")

	words := strings.Fields(narration)
	if len(words) > maxWords {
		narration = strings.TrimRight(strings.Join(words[:maxWords], " "), ".,;:!?") + "."
	} else if len(words) < minWords {
		narration = strings.TrimSpace(narration + " This update is based on the feed item details currently available.")
		words = strings.Fields(narration)
		if len(words) > maxWords {
			narration = strings.TrimRight(strings.Join(words[:maxWords], " "), ".,;:!?") + "."
		}
	}

	if len(strings.Fields(narration)) < minWords {
		return domain.Script{}, errors.New("narration too short after normalization")
	}

	return domain.Script{
		NarrationText: narration,
		OnScreenHook:  "",
		ModelUsed:     model,
	}, nil
}

// isRetryable classifies API failures: rate limits, timeouts, and 5xx are
// transient; client errors are not.
func isRetryable(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return retry.TransientHTTPStatus(apiErr.HTTPStatusCode)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

func (g *ScriptGenerator) warn(msg string, args ...any) {
	if g.logger != nil {
		g.logger.Warn(msg, args...)
	}
}
