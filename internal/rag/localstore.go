package rag

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// indexFileName is the single payload file written inside the index directory.
const indexFileName = "index.json"

// LocalStore implements VectorStore as a flat-file index persisted under a
// directory. Vectors are assumed L2-normalized, so cosine similarity reduces
// to a dot product. The whole index is held in memory after the first read;
// it is small enough for a personal document corpus.
//
// The payload is stamped with the embedding model identity and the stamp is
// validated on first read, so an index built with one embedding model fails
// fast when opened with another instead of degrading silently.
type LocalStore struct {
	// dir is the index directory. The index exists iff dir/index.json exists.
	dir string

	// model is the embedding model identity expected by this process.
	// Empty disables the stamp check.
	model string

	// mu guards data and loaded.
	mu sync.RWMutex

	// loaded is true once the payload has been read from disk.
	loaded bool

	// data is the in-memory copy of the persisted payload.
	data indexPayload
}

// indexPayload is the JSON document persisted at dir/index.json.
type indexPayload struct {
	// Model is the embedding model identity the vectors were computed with.
	Model string `json:"model"`
	// Dimension is the embedding vector length.
	Dimension int `json:"dimension"`
	// BuiltAt is when the index was written.
	BuiltAt time.Time `json:"built_at"`
	// Documents holds the indexed chunks.
	Documents []Document `json:"documents"`
	// Embeddings is parallel to Documents.
	Embeddings [][]float32 `json:"embeddings"`
}

// NewLocalStore constructs a LocalStore rooted at dir. model is the embedding
// model identity used to stamp new indexes and validate existing ones; pass
// an empty string to skip validation.
func NewLocalStore(dir, model string) (*LocalStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("localstore: index directory must not be empty")
	}
	return &LocalStore{dir: dir, model: model}, nil
}

// Exists reports whether a built index is present on disk.
func (s *LocalStore) Exists(_ context.Context) (bool, error) {
	_, err := os.Stat(filepath.Join(s.dir, indexFileName))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, fmt.Errorf("localstore: stat index: %w", err)
}

// Reset removes the index directory entirely. The next Upsert starts from an
// empty payload, so a rebuild never carries residue from a prior index.
func (s *LocalStore) Reset(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.RemoveAll(s.dir); err != nil {
		return fmt.Errorf("localstore: reset %s: %w", s.dir, err)
	}
	s.data = indexPayload{Model: s.model}
	s.loaded = true
	return nil
}

// Upsert appends docs and their embeddings to the payload and persists the
// whole index atomically (write to a temp file, then rename). Readers only
// ever observe a complete index file.
func (s *LocalStore) Upsert(ctx context.Context, docs []Document, embeddings [][]float32) error {
	if len(docs) != len(embeddings) {
		return fmt.Errorf("localstore: %d documents but %d embeddings", len(docs), len(embeddings))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.loadLocked(ctx); err != nil {
		return err
	}

	for i := range docs {
		if s.data.Dimension == 0 {
			s.data.Dimension = len(embeddings[i])
		}
		if len(embeddings[i]) != s.data.Dimension {
			return fmt.Errorf("localstore: embedding dimension %d does not match index dimension %d",
				len(embeddings[i]), s.data.Dimension)
		}
	}

	s.data.Documents = append(s.data.Documents, docs...)
	s.data.Embeddings = append(s.data.Embeddings, embeddings...)
	s.data.BuiltAt = time.Now().UTC()

	return s.persistLocked()
}

// Search performs a brute-force dot-product scan over the index and returns
// the top-k documents scoring at or above minScore, descending by score.
func (s *LocalStore) Search(ctx context.Context, queryEmbedding []float32, topK int, minScore float32) ([]Document, error) {
	s.mu.Lock()
	if err := s.loadLocked(ctx); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.mu.Unlock()

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.data.Dimension > 0 && len(queryEmbedding) != s.data.Dimension {
		return nil, fmt.Errorf("localstore: query dimension %d does not match index dimension %d",
			len(queryEmbedding), s.data.Dimension)
	}

	results := make([]Document, 0, len(s.data.Documents))
	for i := range s.data.Documents {
		score := dot(queryEmbedding, s.data.Embeddings[i])
		if score < minScore {
			continue
		}
		doc := s.data.Documents[i]
		doc.Score = score
		results = append(results, doc)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if topK > 0 && len(results) > topK {
		results = results[:topK]
	}

	return results, nil
}

// Close is a no-op; the store holds no external resources.
func (s *LocalStore) Close() error { return nil }

// Count returns the number of indexed chunks.
func (s *LocalStore) Count(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loadLocked(ctx); err != nil {
		return 0, err
	}
	return len(s.data.Documents), nil
}

// loadLocked reads the payload from disk on first use. A missing index file
// is not an error — the store starts empty. Callers must hold mu.
func (s *LocalStore) loadLocked(_ context.Context) error {
	if s.loaded {
		return nil
	}

	raw, err := os.ReadFile(filepath.Join(s.dir, indexFileName))
	if os.IsNotExist(err) {
		s.data = indexPayload{Model: s.model}
		s.loaded = true
		return nil
	}
	if err != nil {
		return fmt.Errorf("localstore: read index: %w", err)
	}

	var payload indexPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return fmt.Errorf("localstore: parse index: %w", err)
	}

	if s.model != "" && payload.Model != "" && payload.Model != s.model {
		return fmt.Errorf("localstore: index at %s was built with embedding model %q but this process uses %q — rebuild the index",
			s.dir, payload.Model, s.model)
	}

	s.data = payload
	s.loaded = true
	return nil
}

// persistLocked writes the payload to a temp file in the index directory and
// renames it into place. Callers must hold mu.
func (s *LocalStore) persistLocked() error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("localstore: create %s: %w", s.dir, err)
	}

	raw, err := json.Marshal(s.data)
	if err != nil {
		return fmt.Errorf("localstore: marshal index: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, indexFileName+".tmp-*")
	if err != nil {
		return fmt.Errorf("localstore: create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("localstore: write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("localstore: close temp file: %w", err)
	}

	if err := os.Rename(tmpName, filepath.Join(s.dir, indexFileName)); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("localstore: rename index into place: %w", err)
	}
	return nil
}

// dot computes the dot product of two vectors. For L2-normalized vectors this
// equals their cosine similarity. Mismatched lengths score zero over the
// missing tail.
func dot(a, b []float32) float32 {
	n := min(len(a), len(b))
	var sum float32
	for i := range n {
		sum += a[i] * b[i]
	}
	return sum
}
