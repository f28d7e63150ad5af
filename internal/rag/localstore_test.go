package rag

import (
	"context"
	"path/filepath"
	"testing"
)

// newTestStore opens a LocalStore rooted in a fresh temp directory.
func newTestStore(t *testing.T, model string) *LocalStore {
	t.Helper()
	s, err := NewLocalStore(filepath.Join(t.TempDir(), "index"), model)
	if err != nil {
		t.Fatalf("new local store: %v", err)
	}
	return s
}

func Test_LocalStore_ExistsOnlyAfterUpsert(t *testing.T) {
	t.Parallel()
	s := newTestStore(t, "test-model")
	ctx := context.Background()

	exists, err := s.Exists(ctx)
	if err != nil {
		t.Fatalf("exists: %v", err)
	}
	if exists {
		t.Error("fresh store should not exist")
	}

	docs := []Document{{ID: "a", Content: "alpha", Source: "cv.txt"}}
	if err := s.Upsert(ctx, docs, [][]float32{{1, 0}}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	exists, err = s.Exists(ctx)
	if err != nil {
		t.Fatalf("exists: %v", err)
	}
	if !exists {
		t.Error("store should exist after upsert")
	}
}

func Test_LocalStore_SearchThresholdAndOrder(t *testing.T) {
	t.Parallel()
	s := newTestStore(t, "")
	ctx := context.Background()

	docs := []Document{
		{ID: "hi", Content: "high"},
		{ID: "mid", Content: "middle"},
		{ID: "lo", Content: "low"},
	}
	embeddings := [][]float32{
		{1, 0},     // score 1.0 against query
		{0.7, 0.7}, // score 0.7
		{0, 1},     // score 0.0 — below threshold
	}
	if err := s.Upsert(ctx, docs, embeddings); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	results, err := s.Search(ctx, []float32{1, 0}, 3, 0.45)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("want 2 results, got %d", len(results))
	}
	if results[0].ID != "hi" || results[1].ID != "mid" {
		t.Errorf("want [hi mid], got [%s %s]", results[0].ID, results[1].ID)
	}
	for _, r := range results {
		if r.Score < 0.45 {
			t.Errorf("result %s scored %v, below threshold", r.ID, r.Score)
		}
	}
}

func Test_LocalStore_SearchTopKCap(t *testing.T) {
	t.Parallel()
	s := newTestStore(t, "")
	ctx := context.Background()

	var docs []Document
	var embeddings [][]float32
	for i := range 10 {
		docs = append(docs, Document{ID: string(rune('a' + i))})
		embeddings = append(embeddings, []float32{1, 0})
	}
	if err := s.Upsert(ctx, docs, embeddings); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	results, err := s.Search(ctx, []float32{1, 0}, 3, 0.45)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 3 {
		t.Errorf("want 3 results, got %d", len(results))
	}
}

func Test_LocalStore_ResetLeavesNoResidue(t *testing.T) {
	t.Parallel()
	s := newTestStore(t, "")
	ctx := context.Background()

	old := []Document{{ID: "old", Content: "stale chunk"}}
	if err := s.Upsert(ctx, old, [][]float32{{1, 0}}); err != nil {
		t.Fatalf("upsert old: %v", err)
	}

	if err := s.Reset(ctx); err != nil {
		t.Fatalf("reset: %v", err)
	}

	fresh := []Document{{ID: "new", Content: "fresh chunk"}}
	if err := s.Upsert(ctx, fresh, [][]float32{{1, 0}}); err != nil {
		t.Fatalf("upsert new: %v", err)
	}

	results, err := s.Search(ctx, []float32{1, 0}, 10, 0)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 1 || results[0].ID != "new" {
		t.Errorf("want only the fresh chunk, got %v", results)
	}
}

func Test_LocalStore_PersistsAcrossReopen(t *testing.T) {
	t.Parallel()
	dir := filepath.Join(t.TempDir(), "index")
	ctx := context.Background()

	s1, err := NewLocalStore(dir, "test-model")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	docs := []Document{{ID: "a", Content: "persisted", Source: "cv.txt", Page: 2}}
	if err := s1.Upsert(ctx, docs, [][]float32{{1, 0}}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	s2, err := NewLocalStore(dir, "test-model")
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	results, err := s2.Search(ctx, []float32{1, 0}, 5, 0)
	if err != nil {
		t.Fatalf("search after reopen: %v", err)
	}
	if len(results) != 1 || results[0].Content != "persisted" || results[0].Page != 2 {
		t.Errorf("reopened index lost data: %v", results)
	}
}

func Test_LocalStore_ModelStampMismatchFailsFast(t *testing.T) {
	t.Parallel()
	dir := filepath.Join(t.TempDir(), "index")
	ctx := context.Background()

	s1, err := NewLocalStore(dir, "model-a")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if err := s1.Upsert(ctx, []Document{{ID: "a"}}, [][]float32{{1}}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	s2, err := NewLocalStore(dir, "model-b")
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	if _, err := s2.Search(ctx, []float32{1}, 1, 0); err == nil {
		t.Fatal("want model stamp mismatch error, got nil")
	}
}

func Test_LocalStore_DimensionMismatchRejected(t *testing.T) {
	t.Parallel()
	s := newTestStore(t, "")
	ctx := context.Background()

	if err := s.Upsert(ctx, []Document{{ID: "a"}}, [][]float32{{1, 0}}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	err := s.Upsert(ctx, []Document{{ID: "b"}}, [][]float32{{1, 0, 0}})
	if err == nil {
		t.Fatal("want dimension mismatch error, got nil")
	}
}

func Test_LocalStore_CountTracksUpserts(t *testing.T) {
	t.Parallel()
	s := newTestStore(t, "")
	ctx := context.Background()

	n, err := s.Count(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 0 {
		t.Errorf("fresh store: want 0 chunks, got %d", n)
	}

	docs := []Document{{ID: "a"}, {ID: "b"}, {ID: "c"}}
	if err := s.Upsert(ctx, docs, [][]float32{{1}, {0}, {1}}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	n, err = s.Count(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 3 {
		t.Errorf("want 3 chunks, got %d", n)
	}
}
