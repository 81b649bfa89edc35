package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	sdk "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"docchat/internal/domain"
)

// Embedder requests embedding vectors from an OpenAI-compatible API.
// Texts are embedded in configurable batches and results always map
// back to the input order.
type Embedder struct {
	client     *sdk.Client
	model      string
	batchSize  int
	maxRetries int
	dimension  int
	logger     *zap.Logger
}

// Config configures the embeddings client.
type Config struct {
	APIKey     string
	BaseURL    string
	Model      string
	BatchSize  int
	MaxRetries int
	Timeout    time.Duration
}

// New creates an embeddings client. The API key must already be
// validated by the configuration layer.
func New(cfg Config, logger *zap.Logger) (*Embedder, error) {
	if cfg.APIKey == "" {
		return nil, domain.NewError(domain.KindConfiguration,
			"embeddings client requires an API key", nil).
			WithHint("export OPENAI_API_KEY or put it in a .env file")
	}
	if cfg.Model == "" {
		cfg.Model = "text-embedding-3-small"
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 32
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
	return &Embedder{
		client:     sdk.NewClientWithConfig(clientCfg),
		model:      cfg.Model,
		batchSize:  cfg.BatchSize,
		maxRetries: cfg.MaxRetries,
		logger:     logger,
	}, nil
}

// Name returns the identifier of this embedder implementation.
func (e *Embedder) Name() string { return "openai" }

// Prepare is a no-op for remote embedding; the dimension is learned
// from the first response.
func (e *Embedder) Prepare(ctx context.Context, corpus []string) error { return nil }

// Dimension returns the dimensionality of the produced vectors, or 0
// before the first successful call.
func (e *Embedder) Dimension() int { return e.dimension }

// Embed returns the embedding vector for a single text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float64, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch embeds texts in request batches, preserving order so
// vectors map back to the correct inputs.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	out := make([][]float64, len(texts))
	for lo := 0; lo < len(texts); lo += e.batchSize {
		hi := lo + e.batchSize
		if hi > len(texts) {
			hi = len(texts)
		}
		resp, err := e.createWithRetry(ctx, texts[lo:hi])
		if err != nil {
			return nil, err
		}
		if len(resp.Data) != hi-lo {
			return nil, domain.NewError(domain.KindEmbeddingService,
				fmt.Sprintf("expected %d embeddings, got %d", hi-lo, len(resp.Data)), nil)
		}
		for _, item := range resp.Data {
			if item.Index < 0 || item.Index >= hi-lo {
				return nil, domain.NewError(domain.KindEmbeddingService,
					fmt.Sprintf("embedding index %d out of range", item.Index), nil)
			}
			vec := make([]float64, len(item.Embedding))
			for i, v := range item.Embedding {
				vec[i] = float64(v)
			}
			out[lo+item.Index] = vec
		}
	}
	if e.dimension == 0 && len(out) > 0 {
		e.dimension = len(out[0])
	}
	return out, nil
}

func (e *Embedder) createWithRetry(ctx context.Context, batch []string) (sdk.EmbeddingResponse, error) {
	req := sdk.EmbeddingRequest{
		Model: sdk.EmbeddingModel(e.model),
		Input: batch,
	}
	var lastErr error
	for attempt := 0; attempt <= e.maxRetries; attempt++ {
		resp, err := e.client.CreateEmbeddings(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !transient(err) || attempt == e.maxRetries {
			break
		}
		delay := retryDelay(attempt)
		e.logger.Warn("embedding request failed, retrying",
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", delay),
			zap.Error(err))
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return sdk.EmbeddingResponse{}, wrap(ctx.Err())
		}
	}
	return sdk.EmbeddingResponse{}, wrap(lastErr)
}

// wrap categorizes an SDK failure as an embedding-service error with a
// hint matched to the likely cause.
func wrap(err error) error {
	de := domain.NewError(domain.KindEmbeddingService, "embedding request failed", err)
	if transient(err) {
		de.MarkTransient()
		return de.WithHint("the embedding service is busy or unreachable; try again in a moment")
	}
	var apiErr *sdk.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return de.WithHint("check that your API key is valid and has not expired")
		case http.StatusNotFound:
			return de.WithHint("check that the configured embedding model name exists")
		}
	}
	return de
}

// transient reports whether err is worth retrying: rate limits, server
// errors, and transport-level failures such as timeouts.
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
