package config

import (
	"fmt"
	"os"
	"strconv"
)

// Pipeline is the consolidated, typed view of everything the RAG pipeline
// needs: index location, chunking geometry, retrieval policy, and generation
// tuning. It is resolved once from the environment (after the YAML bridge has
// run) and passed explicitly to the pipeline constructor — no package pulls
// these values from the environment on its own.
type Pipeline struct {
	// IndexBackend selects the vector store: "local" or "qdrant".
	IndexBackend string

	// DataDir is the source corpus directory.
	DataDir string

	// IndexDir is the local index directory.
	IndexDir string

	// LockFile is the index build coordination marker path.
	LockFile string

	// ChunkSize is the chunk window length in runes.
	ChunkSize int

	// ChunkOverlap is the rune overlap between adjacent chunks.
	ChunkOverlap int

	// TopK is the maximum number of excerpts per retrieval.
	TopK int

	// MinScore is the similarity threshold for retrieval.
	MinScore float32

	// Temperature is the generation temperature.
	Temperature float32

	// MaxTokens caps generated answer length.
	MaxTokens int
}

// PipelineFromEnv resolves the pipeline configuration from environment
// variables, applying defaults for anything unset, and validates it.
func PipelineFromEnv() (*Pipeline, error) {
	p := &Pipeline{
		IndexBackend: envOrDefault("INDEX_BACKEND", "local"),
		DataDir:      envOrDefault("DATA_DIR", "data/extended"),
		IndexDir:     envOrDefault("INDEX_DIR", "vectorstores/extended"),
		LockFile:     envOrDefault("INDEX_LOCK_FILE", "vectorstore.lock"),
		ChunkSize:    envInt("CHUNK_SIZE", 400),
		ChunkOverlap: envInt("CHUNK_OVERLAP", 50),
		TopK:         envInt("RETRIEVAL_TOP_K", 3),
		MinScore:     envFloat32("RETRIEVAL_MIN_SCORE", 0.45),
		Temperature:  envFloat32("MODEL_TEMPERATURE", 0.3),
		MaxTokens:    envInt("MODEL_MAX_TOKENS", 1024),
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Validate rejects configurations that would make the pipeline misbehave
// rather than fail: a chunk overlap at or above the window size loops
// forever, a zero K retrieves nothing, an out-of-range threshold silently
// disables filtering.
func (p *Pipeline) Validate() error {
	if p.IndexBackend != "local" && p.IndexBackend != "qdrant" {
		return fmt.Errorf("config: INDEX_BACKEND must be local or qdrant, got %q", p.IndexBackend)
	}
	if p.ChunkSize <= 0 {
		return fmt.Errorf("config: CHUNK_SIZE must be positive, got %d", p.ChunkSize)
	}
	if p.ChunkOverlap <= 0 || p.ChunkOverlap >= p.ChunkSize {
		return fmt.Errorf("config: CHUNK_OVERLAP must satisfy 0 < overlap < CHUNK_SIZE, got %d (size %d)",
			p.ChunkOverlap, p.ChunkSize)
	}
	if p.TopK <= 0 {
		return fmt.Errorf("config: RETRIEVAL_TOP_K must be positive, got %d", p.TopK)
	}
	if p.MinScore < 0 || p.MinScore > 1 {
		return fmt.Errorf("config: RETRIEVAL_MIN_SCORE must be in [0,1], got %g", p.MinScore)
	}
	if p.Temperature < 0 || p.Temperature > 2 {
		return fmt.Errorf("config: MODEL_TEMPERATURE must be in [0,2], got %g", p.Temperature)
	}
	if p.MaxTokens <= 0 {
		return fmt.Errorf("config: MODEL_MAX_TOKENS must be positive, got %d", p.MaxTokens)
	}
	return nil
}

// envOrDefault returns the value of the named environment variable, or
// fallback if the variable is unset or empty.
func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// envInt returns the integer value of the named environment variable, or
// fallback if the variable is unset, empty, or not parseable.
func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

// envFloat32 returns the float32 value of the named environment variable, or
// fallback if the variable is unset, empty, or not parseable.
func envFloat32(key string, fallback float32) float32 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 32); err == nil {
			return float32(f)
		}
	}
	return fallback
}
