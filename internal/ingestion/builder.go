// Package ingestion implements the vector index build pipeline: it loads a
// corpus directory of paginated text documents, splits each page into
// overlapping chunks, embeds every chunk, and persists the result as a fresh
// index — destructively replacing any prior index at the same location.
// The pipeline is invoked by the `profilebot index` CLI command and by the
// index lifecycle guard on first use.
package ingestion

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"strconv"

	"github.com/tebatto/profilebot/internal/rag"
)

// ErrIngestion marks failures caused by the source corpus: a missing or
// unreadable directory, or an unreadable document. Matched with errors.Is.
var ErrIngestion = errors.New("ingestion failed")

// embedBatchSize bounds the number of chunks sent to the embedding provider
// per request.
const embedBatchSize = 64

// Config holds the chunking parameters for the index builder.
type Config struct {
	// ChunkSize is the chunk window length in runes. Defaults to 400 if zero.
	ChunkSize int

	// ChunkOverlap is the number of runes shared between adjacent chunks.
	// Defaults to 50 if zero or out of range.
	ChunkOverlap int
}

// Builder orchestrates the load → chunk → embed → persist flow for one
// corpus directory into one vector store.
type Builder struct {
	// embedder converts text chunks into dense vector embeddings.
	embedder rag.Embedder

	// store persists the embedded chunks.
	store rag.VectorStore

	// cfg holds the resolved chunking configuration.
	cfg *Config
}

// NewBuilder constructs a Builder from the provided dependencies and config.
func NewBuilder(embedder rag.Embedder, store rag.VectorStore, cfg *Config) (*Builder, error) {
	if embedder == nil {
		return nil, fmt.Errorf("ingestion: embedder must not be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("ingestion: store must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 400
	}
	if cfg.ChunkOverlap <= 0 || cfg.ChunkOverlap >= cfg.ChunkSize {
		cfg.ChunkOverlap = 50
	}

	return &Builder{
		embedder: embedder,
		store:    store,
		cfg:      cfg,
	}, nil
}

// Build runs the full pipeline for sourceDir. Any prior index in the store is
// destroyed before the new one is written — the operation is a full replace,
// never an incremental merge, and the reset happens strictly before the first
// write so no partially-built index is ever retrievable.
//
// An empty corpus is not an error: it produces a valid index with zero
// chunks. Progress is reported via the optional progress callback.
func (b *Builder) Build(ctx context.Context, sourceDir string, progress func(msg string)) error {
	if progress == nil {
		progress = func(string) {}
	}

	pages, err := LoadPages(sourceDir)
	if err != nil {
		return err
	}
	progress(fmt.Sprintf("loaded %d pages from %s", len(pages), sourceDir))

	docs := b.chunkPages(pages)
	progress(fmt.Sprintf("split into %d chunks", len(docs)))

	embeddings, err := b.embedAll(ctx, docs)
	if err != nil {
		return err
	}

	// Destroy the old index only after every chunk embedded successfully, so
	// an embedding failure leaves the previous index intact.
	if err := b.store.Reset(ctx); err != nil {
		return fmt.Errorf("ingestion: resetting index: %w", err)
	}
	if err := b.store.Upsert(ctx, docs, embeddings); err != nil {
		return fmt.Errorf("ingestion: writing index: %w", err)
	}

	progress(fmt.Sprintf("index built: %d chunks", len(docs)))
	return nil
}

// chunkPages converts loaded pages into indexable documents with
// deterministic IDs and per-chunk metadata.
func (b *Builder) chunkPages(pages []Page) []rag.Document {
	var docs []rag.Document
	for _, page := range pages {
		for i, chunk := range splitChunks(page.Text, b.cfg.ChunkSize, b.cfg.ChunkOverlap) {
			docs = append(docs, rag.Document{
				ID:      chunkID(page.Source, page.Number, i),
				Content: chunk,
				Source:  page.Source,
				Page:    page.Number,
				Metadata: map[string]string{
					"chunk_index": strconv.Itoa(i),
				},
			})
		}
	}
	return docs
}

// embedAll embeds every document in batches. The returned slice is parallel
// to docs.
func (b *Builder) embedAll(ctx context.Context, docs []rag.Document) ([][]float32, error) {
	embeddings := make([][]float32, 0, len(docs))
	for start := 0; start < len(docs); start += embedBatchSize {
		end := min(start+embedBatchSize, len(docs))

		texts := make([]string, 0, end-start)
		for _, doc := range docs[start:end] {
			texts = append(texts, doc.Content)
		}

		batch, err := b.embedder.Embed(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("ingestion: embedding chunks %d-%d: %w", start, end-1, err)
		}
		embeddings = append(embeddings, batch...)
	}
	return embeddings, nil
}

// chunkID generates a deterministic ID for a chunk from its source document,
// page number, and position.
func chunkID(source string, page, index int) string {
	h := sha256.Sum256(fmt.Appendf(nil, "%s#%d#%d", source, page, index))
	return fmt.Sprintf("%x", h[:16])
}
