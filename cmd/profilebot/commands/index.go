package commands

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/tebatto/profilebot/internal/embedder"
	"github.com/tebatto/profilebot/internal/ingestion"
	"github.com/tebatto/profilebot/internal/logging"
	"github.com/tebatto/profilebot/internal/rag"
)

// NewIndexCmd constructs the `profilebot index` command, which rebuilds a
// corpus index from scratch. The rebuild is destructive: the existing index
// is replaced only after every chunk has embedded successfully.
func NewIndexCmd() *cobra.Command {
	var corpus string
	var dataDir string
	var indexDir string
	var force bool

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Build a profile corpus index",
		Long: `Index a corpus of profile documents into the vector store.

Each named corpus has its own source and index location: documents are read
from data/<corpus> and the index is written to vectorstores/<corpus>.
Use --data-dir and --index-dir to override both locations explicitly.

The rebuild is a full replace. The old index is kept until every chunk has
been embedded, so a failed run never leaves a partial index behind.

A build lock marker guards against concurrent builds. If a crashed build
left a stale marker behind, --force removes it and builds anyway.

Examples:
  profilebot index
  profilebot index --corpus core
  profilebot index --force
  profilebot index --data-dir ./docs --index-dir ./vectorstores/docs`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()

			if dataDir == "" {
				dataDir = filepath.Join("data", corpus)
			}
			if indexDir == "" {
				indexDir = filepath.Join("vectorstores", corpus)
			}

			lockPath := getEnvOrDefault("INDEX_LOCK_FILE", "vectorstore.lock")
			if force {
				if err := os.Remove(lockPath); err != nil && !os.IsNotExist(err) {
					return fmt.Errorf("index: removing stale lock marker: %w", err)
				}
			}
			release, err := ingestion.ClaimBuildLock(lockPath)
			if err != nil {
				if errors.Is(err, ingestion.ErrLockHeld) {
					return fmt.Errorf("index: a build is already in progress (or a crashed one left %s behind) — re-run with --force to override", lockPath)
				}
				return fmt.Errorf("index: %w", err)
			}
			defer release()

			if err := embedder.Validate(log); err != nil {
				return fmt.Errorf("index: %w", err)
			}
			emb, err := embedder.NewFromEnv()
			if err != nil {
				return fmt.Errorf("index: failed to initialise embedder: %w", err)
			}
			log.Info("embedder initialised", slog.String("model", embedder.ModelIdentity()))

			store, err := openIndexStore(indexDir)
			if err != nil {
				return fmt.Errorf("index: %w", err)
			}
			defer store.Close()

			builder, err := ingestion.NewBuilder(emb, store, &ingestion.Config{
				ChunkSize:    getEnvInt("CHUNK_SIZE", 400),
				ChunkOverlap: getEnvInt("CHUNK_OVERLAP", 50),
			})
			if err != nil {
				return fmt.Errorf("index: %w", err)
			}

			log.Info("indexing corpus",
				slog.String("corpus", corpus),
				slog.String("data_dir", dataDir),
				slog.String("index_dir", indexDir),
			)

			if err := builder.Build(ctx, dataDir, func(msg string) {
				log.Info(msg)
			}); err != nil {
				return fmt.Errorf("index: build failed: %w", err)
			}

			log.Info("index complete", slog.String("corpus", corpus))
			return nil
		},
	}

	cmd.Flags().StringVar(&corpus, "corpus", "extended", "Corpus name (core, extended)")
	cmd.Flags().StringVar(&dataDir, "data-dir", "", "Source document directory (default: data/<corpus>)")
	cmd.Flags().StringVar(&indexDir, "index-dir", "", "Index output directory (default: vectorstores/<corpus>)")
	cmd.Flags().BoolVar(&force, "force", false, "Remove a stale build lock marker before building")

	return cmd
}

// openIndexStore opens the vector store the index command writes to. The
// backend follows INDEX_BACKEND. The qdrant collection default matches the
// serving pipeline's, so an index built here is the one `serve` reads;
// multi-corpus setups point QDRANT_COLLECTION at separate collections.
func openIndexStore(indexDir string) (rag.VectorStore, error) {
	if getEnvOrDefault("INDEX_BACKEND", "local") != "qdrant" {
		return rag.NewLocalStore(indexDir, embedder.ModelIdentity())
	}

	collection := os.Getenv("QDRANT_COLLECTION")
	if collection == "" {
		collection = "profilebot"
	}
	return rag.NewQdrantStore(&rag.QdrantConfig{
		Host:       getEnvOrDefault("QDRANT_HOST", "localhost"),
		Port:       getEnvInt("QDRANT_PORT", 6334),
		Collection: collection,
		VectorSize: uint64(embedder.DefaultDimensions(embedder.ResolveBackend())),
		APIKey:     os.Getenv("QDRANT_API_KEY"),
		UseTLS:     os.Getenv("QDRANT_TLS") == "true",
	})
}

// getEnvOrDefault returns the env var value or a fallback when unset.
func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvInt returns the env var parsed as int, or a fallback when unset or
// unparseable.
func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
