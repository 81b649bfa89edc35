package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"docchat/internal/domain"
)

func completionResponse(text string) map[string]any {
	return map[string]any{
		"id":     "chatcmpl-test",
		"object": "chat.completion",
		"choices": []map[string]any{
			{
				"index":         0,
				"message":       map[string]any{"role": "assistant", "content": text},
				"finish_reason": "stop",
			},
		},
	}
}

func newTestGenerator(t *testing.T, url string, maxRetries int) *Generator {
	t.Helper()
	g, err := New(Config{
		APIKey:      "test-key",
		BaseURL:     url + "/v1",
		Model:       "gpt-4o-mini",
		Temperature: 0.3,
		MaxRetries:  maxRetries,
	}, zap.NewNop())
	require.NoError(t, err)
	return g
}

func TestNew_RequiresAPIKey(t *testing.T) {
	_, err := New(Config{}, zap.NewNop())
	require.Error(t, err)
	assert.True(t, domain.IsConfiguration(err))
}

func TestGenerate_ReturnsModelText(t *testing.T) {
	var gotModel string
	var gotPrompt string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		gotModel = req.Model
		require.Len(t, req.Messages, 1)
		gotPrompt = req.Messages[0].Content
		json.NewEncoder(w).Encode(completionResponse("a list is an ordered collection"))
	}))
	defer srv.Close()

	g := newTestGenerator(t, srv.URL, 0)
	answer, err := g.Generate(context.Background(), "QUESTION: what is a list?")
	require.NoError(t, err)

	assert.Equal(t, "a list is an ordered collection", answer)
	assert.Equal(t, "gpt-4o-mini", gotModel)
	assert.Equal(t, "QUESTION: what is a list?", gotPrompt)
}

func TestGenerate_RetriesServerErrorThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			fmt.Fprint(w, `{"error":{"message":"upstream error"}}`)
			return
		}
		json.NewEncoder(w).Encode(completionResponse("recovered"))
	}))
	defer srv.Close()

	g := newTestGenerator(t, srv.URL, 2)
	answer, err := g.Generate(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "recovered", answer)
	assert.Equal(t, int32(2), calls.Load())
}

func TestRetryDelay_GrowsAndStaysCapped(t *testing.T) {
	assert.Equal(t, 200*time.Millisecond, retryDelay(0))
	assert.Equal(t, 400*time.Millisecond, retryDelay(1))
	assert.Equal(t, 5*time.Second, retryDelay(10))
	// Very high attempt counts must not overflow into zero or negative
	// delays.
	assert.Equal(t, 5*time.Second, retryDelay(64))
	assert.Equal(t, 200*time.Millisecond, retryDelay(-3))
}

func TestGenerate_QuotaFailureIsGenerationError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":{"message":"invalid api key"}}`)
	}))
	defer srv.Close()

	g := newTestGenerator(t, srv.URL, 2)
	_, err := g.Generate(context.Background(), "hello")
	require.Error(t, err)
	assert.True(t, domain.IsGenerationService(err))
	assert.False(t, domain.IsEmbeddingService(err), "generation failures must stay distinct from embedding failures")
	assert.False(t, domain.IsTransient(err))
}
