package rag

import (
	"context"
	"fmt"
)

// Default retrieval policy. Chunks scoring below the threshold are never
// surfaced, even when fewer than topK clear it.
const (
	DefaultTopK     = 3
	DefaultMinScore = 0.45
)

// ThresholdRetriever implements Retriever by combining an Embedder and a
// VectorStore. It embeds the query at retrieval time and delegates similarity
// search to the store, enforcing the top-k and minimum-score policy.
type ThresholdRetriever struct {
	// embedder converts query text to a dense vector.
	embedder Embedder

	// store performs the vector similarity search.
	store VectorStore

	// topK is the maximum number of results per retrieval.
	topK int

	// minScore is the minimum cosine similarity a result must reach.
	minScore float32
}

// NewThresholdRetriever constructs a ThresholdRetriever from the given
// Embedder and VectorStore. topK defaults to DefaultTopK when <= 0; minScore
// defaults to DefaultMinScore when negative. Zero is a valid threshold and
// disables score filtering entirely.
func NewThresholdRetriever(embedder Embedder, store VectorStore, topK int, minScore float32) (*ThresholdRetriever, error) {
	if embedder == nil {
		return nil, fmt.Errorf("rag: embedder must not be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("rag: store must not be nil")
	}
	if topK <= 0 {
		topK = DefaultTopK
	}
	if minScore < 0 {
		minScore = DefaultMinScore
	}
	return &ThresholdRetriever{
		embedder: embedder,
		store:    store,
		topK:     topK,
		minScore: minScore,
	}, nil
}

// Retrieve embeds the query and returns the most similar documents that clear
// the score threshold, at most topK of them, descending by score. Read-only;
// an empty slice is a valid result.
func (r *ThresholdRetriever) Retrieve(ctx context.Context, query string) ([]Document, error) {
	embeddings, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("rag: embedding query failed: %w", err)
	}
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("rag: embedder returned empty result for query")
	}

	docs, err := r.store.Search(ctx, embeddings[0], r.topK, r.minScore)
	if err != nil {
		return nil, fmt.Errorf("rag: vector search failed: %w", err)
	}

	return docs, nil
}
