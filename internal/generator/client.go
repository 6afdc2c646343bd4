// Package generator wraps the OpenRouter chat-completion backend behind a
// model fallback chain and a daily request budget.
package generator

import (
	"context"
	"errors"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"market-insights/internal/common/config"
	apperrors "market-insights/internal/common/errors"
	"market-insights/internal/common/logger"
	"market-insights/internal/common/metrics"
	"market-insights/internal/engine/usage"
)

// Response carries the generated text plus the model that produced it.
type Response struct {
	Content string
	Model   string
	TookMs  int64
}

// Client talks to an OpenAI-compatible completion endpoint. It walks the
// default model and then each fallback in order, returning the first model
// that answers.
type Client struct {
	api     *openai.Client
	models  []string
	timeout time.Duration
	counter *usage.Counter
	logger  logger.Logger
}

// headerTransport injects the attribution headers OpenRouter expects on
// every request.
type headerTransport struct {
	base    http.RoundTripper
	referer string
	title   string
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.referer != "" {
		req.Header.Set("HTTP-Referer", t.referer)
	}
	if t.title != "" {
		req.Header.Set("X-Title", t.title)
	}
	return t.base.RoundTrip(req)
}

// NewClient creates a generator Client from configuration.
func NewClient(cfg config.GeneratorConfig, counter *usage.Counter, log logger.Logger) *Client {
	apiConfig := openai.DefaultConfig(cfg.APIKey)
	apiConfig.BaseURL = cfg.BaseURL
	apiConfig.HTTPClient = &http.Client{
		Timeout: cfg.Timeout,
		Transport: &headerTransport{
			base:    http.DefaultTransport,
			referer: cfg.HTTPReferer,
			title:   cfg.AppTitle,
		},
	}

	chain := append([]string{cfg.DefaultModel}, cfg.FallbackModels...)
	return &Client{
		api:     openai.NewClientWithConfig(apiConfig),
		models:  chain,
		timeout: cfg.Timeout,
		counter: counter,
		logger:  log,
	}
}

// Generate produces a completion for the prompts. The daily budget is
// checked before any network call and consumed only on success.
func (c *Client) Generate(ctx context.Context, systemPrompt, userPrompt string) (*Response, error) {
	if !c.counter.Allow() {
		return nil, apperrors.NewDailyLimitExceededError(c.counter.Current(), c.counter.Limit())
	}

	var lastErr error
	for _, model := range c.models {
		start := time.Now()
		resp, err := c.complete(ctx, model, systemPrompt, userPrompt)
		if err != nil {
			status := "error"
			if errors.Is(err, context.DeadlineExceeded) {
				status = "timeout"
				lastErr = apperrors.NewGeneratorTimeoutError(model)
			} else {
				lastErr = err
			}
			metrics.GeneratorCalls.WithLabelValues(model, status).Inc()
			c.logger.WithError(err).Warn("generator model failed, trying next", map[string]interface{}{
				"model": model,
			})
			continue
		}

		metrics.GeneratorCalls.WithLabelValues(model, "success").Inc()
		used := c.counter.Increment()
		c.logger.Debug("generator call succeeded", map[string]interface{}{
			"model":       model,
			"daily_used":  used,
			"daily_limit": c.counter.Limit(),
		})
		return &Response{
			Content: resp,
			Model:   model,
			TookMs:  time.Since(start).Milliseconds(),
		}, nil
	}

	if lastErr == nil {
		lastErr = errors.New("no generator models configured")
	}
	return nil, apperrors.NewGeneratorUnavailableError(lastErr)
}

func (c *Client) complete(ctx context.Context, model, systemPrompt, userPrompt string) (string, error) {
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
