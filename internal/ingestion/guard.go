package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/tebatto/profilebot/internal/rag"
)

// ErrLockHeld is returned by ClaimBuildLock when the marker already exists:
// another build is in flight, or a crashed one left a stale marker behind.
var ErrLockHeld = errors.New("ingestion: index build lock held")

// Guard coordinates index builds across processes sharing one index
// directory. It is advisory: a lock marker file signals an in-flight build,
// and contenders skip rather than wait. Stale markers left by a crashed
// process must be removed by the operator (or by `profilebot index --force`).
type Guard struct {
	store    rag.VectorStore
	builder  *Builder
	dataDir  string
	lockPath string
	log      *slog.Logger
}

// NewGuard wires a Guard over the given store and builder. lockPath is the
// marker file location; its parent directory is created on demand.
func NewGuard(store rag.VectorStore, builder *Builder, dataDir, lockPath string, log *slog.Logger) *Guard {
	if log == nil {
		log = slog.Default()
	}
	return &Guard{
		store:    store,
		builder:  builder,
		dataDir:  dataDir,
		lockPath: lockPath,
		log:      log,
	}
}

// EnsureIndex makes sure a usable index exists, building one if needed.
//
// Exactly one of three things happens:
//   - the index already exists: return immediately, nothing is touched;
//   - another build is in flight (marker present): skip without blocking —
//     logged, nil error, the caller proceeds and retries on its next start;
//   - otherwise: claim the marker, build, and remove the marker on every exit
//     path, success or failure.
//
// The marker check is advisory: two processes that both miss the marker will
// both build, and the last writer wins. In-process duplicates are already
// suppressed by the caller constructing the pipeline exactly once.
func (g *Guard) EnsureIndex(ctx context.Context) error {
	exists, err := g.store.Exists(ctx)
	if err != nil {
		return fmt.Errorf("ingestion: checking index: %w", err)
	}
	if exists {
		return nil
	}

	claimed, err := g.claimLock()
	if err != nil {
		return err
	}
	if !claimed {
		g.log.Warn("index build already in progress, skipping",
			slog.String("lock", g.lockPath))
		return nil
	}
	defer g.releaseLock()

	g.log.Info("index missing, building",
		slog.String("data_dir", g.dataDir),
		slog.String("lock", g.lockPath))

	return g.builder.Build(ctx, g.dataDir, func(msg string) {
		g.log.Info(msg)
	})
}

// claimLock atomically creates the marker file. Returns false without error
// when the marker already exists (someone else is building).
func (g *Guard) claimLock() (bool, error) {
	release, err := ClaimBuildLock(g.lockPath)
	if errors.Is(err, ErrLockHeld) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	// Guard manages release itself so a failed build still clears the marker.
	_ = release
	return true, nil
}

// ClaimBuildLock atomically creates the build marker at lockPath, creating
// the parent directory on demand. On success it returns a release function
// that removes the marker; when the marker is already present it returns
// ErrLockHeld.
func ClaimBuildLock(lockPath string) (func(), error) {
	if err := os.MkdirAll(filepath.Dir(lockPath), 0o755); err != nil {
		return nil, fmt.Errorf("ingestion: preparing lock directory: %w", err)
	}

	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrLockHeld, lockPath)
		}
		return nil, fmt.Errorf("ingestion: creating lock marker: %w", err)
	}
	fmt.Fprintf(f, "pid=%d\n", os.Getpid())
	f.Close()

	return func() {
		_ = os.Remove(lockPath)
	}, nil
}

// releaseLock removes the marker. A removal failure is logged, not returned:
// the build outcome matters more than the marker, and a stale marker is
// visible and recoverable.
func (g *Guard) releaseLock() {
	if err := os.Remove(g.lockPath); err != nil && !os.IsNotExist(err) {
		g.log.Error("failed to remove index lock marker",
			slog.String("lock", g.lockPath),
			slog.String("error", err.Error()))
	}
}
