package tfidf

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docchat/internal/domain"
)

var corpus = []string{
	"functions group reusable code into named blocks",
	"lists hold ordered sequences of values",
	"dictionaries map keys to values for fast lookup",
}

func TestEmbed_RequiresPrepare(t *testing.T) {
	e := New()
	_, err := e.Embed(context.Background(), "anything")
	require.Error(t, err)
	assert.True(t, domain.IsEmbeddingService(err))
}

func TestPrepare_EmptyCorpus(t *testing.T) {
	err := New().Prepare(context.Background(), nil)
	require.Error(t, err)
	assert.True(t, domain.IsEmbeddingService(err))
}

func TestEmbed_VectorsAreNormalizedAndDeterministic(t *testing.T) {
	e := New()
	require.NoError(t, e.Prepare(context.Background(), corpus))
	require.Greater(t, e.Dimension(), 0)

	v1, err := e.Embed(context.Background(), "ordered lists of values")
	require.NoError(t, err)
	v2, err := e.Embed(context.Background(), "ordered lists of values")
	require.NoError(t, err)
	assert.Equal(t, v1, v2)

	norm := 0.0
	for _, x := range v1 {
		norm += x * x
	}
	assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-9)
}

func TestEmbed_UnknownTokensYieldZeroVector(t *testing.T) {
	e := New()
	require.NoError(t, e.Prepare(context.Background(), corpus))

	vec, err := e.Embed(context.Background(), "zzz qqq xxx")
	require.NoError(t, err)
	for _, x := range vec {
		assert.Zero(t, x)
	}
}

func TestEmbedBatch_PreservesOrder(t *testing.T) {
	e := New()
	require.NoError(t, e.Prepare(context.Background(), corpus))

	vecs, err := e.EmbedBatch(context.Background(), []string{"lists of values", "dictionaries map keys"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)
	assert.NotEqual(t, vecs[0], vecs[1])
}
