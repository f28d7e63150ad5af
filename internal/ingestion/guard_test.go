package ingestion

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func newTestGuard(t *testing.T, store *recordingStore, embedder *stubEmbedder) (*Guard, string) {
	t.Helper()
	dataDir := writeCorpus(t, map[string]string{"cv.txt": "profile content"})
	lockPath := filepath.Join(t.TempDir(), "vectorstore.lock")

	b, err := NewBuilder(embedder, store, nil)
	if err != nil {
		t.Fatal(err)
	}
	return NewGuard(store, b, dataDir, lockPath, nil), lockPath
}

func Test_Guard_BuildsWhenIndexMissing(t *testing.T) {
	t.Parallel()

	store := &recordingStore{}
	g, lockPath := newTestGuard(t, store, &stubEmbedder{})

	if err := g.EnsureIndex(context.Background()); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if store.upserts != 1 {
		t.Errorf("want 1 build, got %d upserts", store.upserts)
	}
	if _, err := os.Stat(lockPath); !os.IsNotExist(err) {
		t.Error("lock marker left behind after successful build")
	}
}

func Test_Guard_SkipsWhenIndexExists(t *testing.T) {
	t.Parallel()

	store := &recordingStore{exists: true}
	g, _ := newTestGuard(t, store, &stubEmbedder{})

	if err := g.EnsureIndex(context.Background()); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if store.resets != 0 || store.upserts != 0 {
		t.Errorf("existing index must not be touched: resets=%d upserts=%d",
			store.resets, store.upserts)
	}
}

func Test_Guard_SkipsWithoutBlockingWhenMarkerHeld(t *testing.T) {
	t.Parallel()

	store := &recordingStore{}
	g, lockPath := newTestGuard(t, store, &stubEmbedder{})

	// Another process claims the marker.
	if err := os.WriteFile(lockPath, []byte("pid=999\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := g.EnsureIndex(context.Background()); err != nil {
		t.Fatalf("contention is a logged skip, not an error: %v", err)
	}
	if store.upserts != 0 {
		t.Error("contender must not build")
	}
	// The contender must not remove a marker it does not own.
	if _, err := os.Stat(lockPath); err != nil {
		t.Error("foreign lock marker was removed")
	}
}

func Test_Guard_RemovesMarkerWhenBuildFails(t *testing.T) {
	t.Parallel()

	store := &recordingStore{}
	g, lockPath := newTestGuard(t, store, &stubEmbedder{failAfter: 1})

	if err := g.EnsureIndex(context.Background()); err == nil {
		t.Fatal("want build failure, got nil")
	}
	if _, err := os.Stat(lockPath); !os.IsNotExist(err) {
		t.Error("lock marker must be removed even when the build fails")
	}
}

func Test_ClaimBuildLock_HeldMarkerRefused(t *testing.T) {
	t.Parallel()

	lockPath := filepath.Join(t.TempDir(), "vectorstore.lock")

	release, err := ClaimBuildLock(lockPath)
	if err != nil {
		t.Fatalf("first claim: %v", err)
	}

	if _, err := ClaimBuildLock(lockPath); !errors.Is(err, ErrLockHeld) {
		t.Fatalf("second claim: want ErrLockHeld, got %v", err)
	}

	release()
	if _, err := os.Stat(lockPath); !os.IsNotExist(err) {
		t.Error("release must remove the marker")
	}

	// A released marker can be claimed again.
	release2, err := ClaimBuildLock(lockPath)
	if err != nil {
		t.Fatalf("reclaim after release: %v", err)
	}
	release2()
}
