package local

import (
	"math"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docchat/internal/domain"
)

func chunk(id string) domain.Chunk {
	return domain.Chunk{ChunkID: id, Text: "text-" + id, Source: "doc.txt"}
}

// vectorAtDistance builds a 2D unit vector whose cosine distance from
// the query (1,0) is exactly d.
func vectorAtDistance(d float64) []float64 {
	theta := math.Acos(1 - d)
	return []float64{math.Cos(theta), math.Sin(theta)}
}

func TestOpen_NeverIngestedVsCorrupt(t *testing.T) {
	dir := t.TempDir()

	_, err := Open(dir)
	require.Error(t, err)
	assert.True(t, domain.IsStoreUnavailable(err))
	assert.Contains(t, err.Error(), "never been ingested")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.gob"), []byte("not a gob"), 0o644))
	_, err = Open(dir)
	require.Error(t, err)
	assert.True(t, domain.IsStoreUnavailable(err))
	assert.Contains(t, err.Error(), "corrupt")
}

func TestCreateUpsertReopen(t *testing.T) {
	dir := t.TempDir()
	store, err := Create(dir)
	require.NoError(t, err)
	require.NoError(t, store.Init(2))

	chunks := []domain.Chunk{chunk("1"), chunk("2")}
	vectors := [][]float64{{1, 0}, {0, 1}}
	require.NoError(t, store.Upsert(chunks, vectors))
	assert.Equal(t, 2, store.Count())
	assert.True(t, Exists(dir))

	reopened, err := Open(dir)
	require.NoError(t, err)
	assert.Equal(t, 2, reopened.Count())

	results, err := reopened.Search([]float64{0.9, 0.1}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "1", results[0].Chunk.ChunkID)
}

// The retrieval ordering contract: stored distances
// [0.05, 0.82, 0.08, 0.91, 0.06] with K=3 return the chunks at
// distances 0.05, 0.06, 0.08 in ascending order.
func TestSearch_TopKAscendingDistance(t *testing.T) {
	store, err := Create(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.Init(2))

	distances := []float64{0.05, 0.82, 0.08, 0.91, 0.06}
	var chunks []domain.Chunk
	var vectors [][]float64
	for i, d := range distances {
		chunks = append(chunks, chunk(strconv.Itoa(i)))
		vectors = append(vectors, vectorAtDistance(d))
	}
	require.NoError(t, store.Upsert(chunks, vectors))

	results, err := store.Search([]float64{1, 0}, 3)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, "0", results[0].Chunk.ChunkID)
	assert.Equal(t, "4", results[1].Chunk.ChunkID)
	assert.Equal(t, "2", results[2].Chunk.ChunkID)
	assert.InDelta(t, 0.05, results[0].Distance, 1e-9)
	assert.InDelta(t, 0.06, results[1].Distance, 1e-9)
	assert.InDelta(t, 0.08, results[2].Distance, 1e-9)
}

func TestSearch_EmptyStoreReturnsNoResults(t *testing.T) {
	store, err := Create(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.Init(2))

	results, err := store.Search([]float64{1, 0}, 3)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearch_TopKLargerThanStore(t *testing.T) {
	store, err := Create(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.Init(2))
	require.NoError(t, store.Upsert(
		[]domain.Chunk{chunk("1"), chunk("2")},
		[][]float64{{1, 0}, {0, 1}},
	))

	results, err := store.Search([]float64{1, 0}, 10)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestUpsert_DimensionMismatch(t *testing.T) {
	store, err := Create(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.Init(2))

	err = store.Upsert([]domain.Chunk{chunk("1")}, [][]float64{{1, 0, 0}})
	require.Error(t, err)
}

func TestClear_PersistsEmptyStore(t *testing.T) {
	dir := t.TempDir()
	store, err := Create(dir)
	require.NoError(t, err)
	require.NoError(t, store.Init(2))
	require.NoError(t, store.Upsert([]domain.Chunk{chunk("1")}, [][]float64{{1, 0}}))
	require.NoError(t, store.Clear())

	reopened, err := Open(dir)
	require.NoError(t, err)
	assert.Equal(t, 0, reopened.Count())
}

func TestInit_RejectsDimensionChangeOnNonEmptyStore(t *testing.T) {
	store, err := Create(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.Init(2))
	require.NoError(t, store.Upsert([]domain.Chunk{chunk("1")}, [][]float64{{1, 0}}))

	err = store.Init(3)
	require.Error(t, err)
	assert.True(t, domain.IsStoreUnavailable(err))
}
