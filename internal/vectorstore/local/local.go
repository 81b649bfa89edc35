package local

import (
	"encoding/gob"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"docchat/internal/domain"
)

// snapshotFile is the on-disk layout of the store inside its
// directory. Callers treat the directory as an opaque handle.
const snapshotFile = "index.gob"

// snapshot is the gob-serialized state of the store.
type snapshot struct {
	Dimension int
	Chunks    []domain.Chunk
	Vectors   [][]float64
}

// Store is a brute-force cosine-distance vector store persisted as a
// gob snapshot in a directory. Vectors are L2-normalized on upsert so
// search reduces to dot products.
type Store struct {
	mu        sync.RWMutex
	dir       string
	dimension int
	chunks    []domain.Chunk
	vectors   [][]float64
}

// Create starts an empty store backed by dir, creating it if needed.
func Create(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, domain.NewError(domain.KindStoreUnavailable,
			fmt.Sprintf("cannot create store directory %s", dir), err).
			WithHint("check that the store path is writable")
	}
	return &Store{dir: dir}, nil
}

// Open loads an existing store from dir. A missing snapshot means the
// store was never ingested; an unreadable one means it is corrupt.
// The two carry the same kind but distinct messages and hints.
func Open(dir string) (*Store, error) {
	path := filepath.Join(dir, snapshotFile)
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, domain.NewError(domain.KindStoreUnavailable,
				fmt.Sprintf("vector store at %s has never been ingested", dir), err).
				WithHint("run ingestion first to build the vector store")
		}
		return nil, domain.NewError(domain.KindStoreUnavailable,
			fmt.Sprintf("cannot open vector store at %s", dir), err).
			WithHint("check the store directory permissions")
	}
	defer f.Close()

	var snap snapshot
	if err := gob.NewDecoder(f).Decode(&snap); err != nil {
		return nil, domain.NewError(domain.KindStoreUnavailable,
			fmt.Sprintf("vector store at %s is corrupt", dir), err).
			WithHint("delete the store directory and re-ingest the documents")
	}
	if len(snap.Chunks) != len(snap.Vectors) {
		return nil, domain.NewError(domain.KindStoreUnavailable,
			fmt.Sprintf("vector store at %s is corrupt", dir), nil).
			WithHint("delete the store directory and re-ingest the documents")
	}
	return &Store{
		dir:       dir,
		dimension: snap.Dimension,
		chunks:    snap.Chunks,
		vectors:   snap.Vectors,
	}, nil
}

// Exists reports whether dir already holds a store snapshot.
func Exists(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, snapshotFile))
	return err == nil
}

// Init fixes the vector dimension. Reinitializing a non-empty store
// with a different dimension is rejected; re-ingest instead.
func (s *Store) Init(dimension int) error {
	if dimension <= 0 {
		return errors.New("invalid dimension")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dimension != 0 && s.dimension != dimension && len(s.vectors) > 0 {
		return domain.NewError(domain.KindStoreUnavailable,
			fmt.Sprintf("store dimension %d does not match embedder dimension %d", s.dimension, dimension), nil).
			WithHint("re-ingest the documents after changing the embedding model")
	}
	s.dimension = dimension
	return nil
}

// Upsert appends chunk/vector pairs and persists the snapshot.
func (s *Store) Upsert(chunks []domain.Chunk, vectors [][]float64) error {
	if len(chunks) != len(vectors) {
		return errors.New("chunks and vectors length mismatch")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range vectors {
		if len(v) != s.dimension {
			return fmt.Errorf("vector dimension %d does not match store dimension %d", len(v), s.dimension)
		}
	}
	for i := range chunks {
		s.chunks = append(s.chunks, chunks[i])
		s.vectors = append(s.vectors, normalize(vectors[i]))
	}
	return s.save()
}

// Search returns the topK nearest chunks by cosine distance, ordered
// from most to least similar. An empty store yields empty results, not
// an error; that case is distinct from a store that cannot be opened.
func (s *Store) Search(vector []float64, topK int) ([]domain.SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if topK < 1 {
		return nil, errors.New("topK must be at least 1")
	}
	if len(s.vectors) == 0 {
		return nil, nil
	}
	if len(vector) != s.dimension {
		return nil, fmt.Errorf("query dimension %d does not match store dimension %d", len(vector), s.dimension)
	}
	query := normalize(vector)
	results := make([]domain.SearchResult, len(s.vectors))
	for i := range s.vectors {
		results[i] = domain.SearchResult{
			Chunk:    s.chunks[i],
			Distance: 1 - dot(s.vectors[i], query),
		}
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Distance < results[j].Distance })
	if topK > len(results) {
		topK = len(results)
	}
	return results[:topK], nil
}

// Count returns the number of stored chunks.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks)
}

// Clear drops all chunks and persists the empty snapshot.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks = nil
	s.vectors = nil
	return s.save()
}

// save writes the snapshot to a temp file and renames it into place so
// a crash mid-write never leaves a truncated snapshot behind.
func (s *Store) save() error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(s.dir, "index-*.tmp")
	if err != nil {
		return err
	}
	snap := snapshot{Dimension: s.dimension, Chunks: s.chunks, Vectors: s.vectors}
	if err := gob.NewEncoder(tmp).Encode(&snap); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), filepath.Join(s.dir, snapshotFile))
}

func normalize(v []float64) []float64 {
	norm := 0.0
	for _, x := range v {
		norm += x * x
	}
	norm = math.Sqrt(norm)
	out := make([]float64, len(v))
	if norm == 0 {
		return out
	}
	for i, x := range v {
		out[i] = x / norm
	}
	return out
}

func dot(a, b []float64) float64 {
	sum := 0.0
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}
