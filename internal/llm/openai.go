package llm

import (
	"context"
	"errors"
	"net/http"
	"time"

	sdk "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"docchat/internal/domain"
)

// Generator produces grounded answers through the OpenAI chat
// completions API with a configured model and sampling temperature.
type Generator struct {
	client      *sdk.Client
	model       string
	temperature float32
	maxRetries  int
	logger      *zap.Logger
}

// Config configures the chat completions client.
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	MaxRetries  int
	Timeout     time.Duration
}

// New creates a chat completions generator.
func New(cfg Config, logger *zap.Logger) (*Generator, error) {
	if cfg.APIKey == "" {
		return nil, domain.NewError(domain.KindConfiguration,
			"generation client requires an API key", nil).
			WithHint("export OPENAI_API_KEY or put it in a .env file")
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	clientCfg := sdk.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	clientCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	return &Generator{
		client:      sdk.NewClientWithConfig(clientCfg),
		model:       cfg.Model,
		temperature: float32(cfg.Temperature),
		maxRetries:  cfg.MaxRetries,
		logger:      logger,
	}, nil
}

// Generate sends the rendered prompt as a single user message and
// returns the model's text response. Transient failures are retried
// with backoff; everything is wrapped as a generation-service error so
// callers can tell generation failures from retrieval failures.
func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	req := sdk.ChatCompletionRequest{
		Model:       g.model,
		Temperature: g.temperature,
		Messages: []sdk.ChatCompletionMessage{
			{Role: sdk.ChatMessageRoleUser, Content: prompt},
		},
	}
	var lastErr error
	for attempt := 0; attempt <= g.maxRetries; attempt++ {
		resp, err := g.client.CreateChatCompletion(ctx, req)
		if err == nil {
			if len(resp.Choices) == 0 {
				return "", domain.NewError(domain.KindGenerationService,
					"model returned no choices", nil)
			}
			return resp.Choices[0].Message.Content, nil
		}
		lastErr = err
		if !transient(err) || attempt == g.maxRetries {
			break
		}
		delay := retryDelay(attempt)
		g.logger.Warn("generation request failed, retrying",
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", delay),
			zap.Error(err))
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return "", wrap(ctx.Err())
		}
	}
	return "", wrap(lastErr)
}

func wrap(err error) error {
	de := domain.NewError(domain.KindGenerationService, "answer generation failed", err)
	if transient(err) {
		de.MarkTransient()
		return de.WithHint("the language model service is busy or unreachable; try again in a moment")
	}
	var apiErr *sdk.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return de.WithHint("check that your API key is valid and has not expired")
		case http.StatusNotFound:
			return de.WithHint("check that the configured LLM model name exists")
		}
	}
	return de
}

func transient(err error) bool {
	var apiErr *sdk.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests || apiErr.HTTPStatusCode >= 500
	}
	var reqErr *sdk.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == http.StatusTooManyRequests || reqErr.HTTPStatusCode >= 500
	}
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return false
}

func retryDelay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	// exponential backoff capped at 5s; the shift is clamped so large
	// attempt counts cannot overflow the duration
	if attempt > 5 {
		attempt = 5
	}
	base := 200 * time.Millisecond
	d := base << attempt
	if d > 5*time.Second {
		d = 5 * time.Second
	}
	return d
}
