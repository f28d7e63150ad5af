// Package rag defines the interfaces for the retrieval side of the answer
// pipeline: text embedding, vector storage, and similarity retrieval.
// Concrete implementations (local flat-file index, Qdrant) satisfy these
// interfaces so the answer layer never depends on a specific backend.
package rag

import (
	"context"
)

// Document represents a single indexed chunk of a source document.
type Document struct {
	// ID is the unique identifier for this chunk.
	ID string

	// Content is the raw text content of the chunk.
	Content string

	// Source is the file path of the document the chunk was cut from.
	Source string

	// Page is the 1-based page number within the source document.
	Page int

	// Metadata holds arbitrary key-value pairs (chunk index, corpus name, etc.).
	Metadata map[string]string

	// Score is the cosine similarity assigned during retrieval (0.0–1.0).
	// Zero value means the score was not computed.
	Score float32
}

// VectorStore is the interface for persisting and searching chunk embeddings.
// Implementations must be safe to call from multiple goroutines.
type VectorStore interface {
	// Exists reports whether the store already holds a built index. A store
	// that exists but is empty still reports true — presence, not content.
	Exists(ctx context.Context) (bool, error)

	// Reset destroys all previously indexed data. Index builds call Reset
	// before the first Upsert so a rebuild is a full destructive replace,
	// never an incremental merge.
	Reset(ctx context.Context) error

	// Upsert stores a batch of documents with their pre-computed embeddings.
	// The embeddings slice must be parallel to docs — embeddings[i] is the
	// vector for docs[i].
	Upsert(ctx context.Context, docs []Document, embeddings [][]float32) error

	// Search returns the top-k most similar documents for the query embedding,
	// descending by score, excluding any result scoring below minScore.
	// An empty result is valid and signals "no relevant context".
	Search(ctx context.Context, queryEmbedding []float32, topK int, minScore float32) ([]Document, error)

	// Count returns the number of indexed chunks. A store that does not
	// exist yet counts zero.
	Count(ctx context.Context) (int, error)

	// Close releases any resources held by the store.
	Close() error
}

// Embedder is the interface for converting text into dense vector embeddings.
// Implementations must be safe to call from multiple goroutines.
type Embedder interface {
	// Embed converts a batch of texts into their corresponding embeddings.
	// The returned slice is parallel to the input slice.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Retriever fetches the chunks most relevant to a question. It combines
// embedding and vector search; implementations must be safe for concurrent
// use. The index and the query must share one embedding-model identity —
// a mismatch degrades silently, so it is treated as a deployment invariant
// rather than a detectable error.
type Retriever interface {
	// Retrieve returns the relevant documents for the query, at most the
	// configured top-k, every one scoring at or above the configured
	// threshold. Zero documents is a normal outcome, not an error.
	Retrieve(ctx context.Context, query string) ([]Document, error)
}
