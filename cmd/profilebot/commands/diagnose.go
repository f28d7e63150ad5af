package commands

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tebatto/profilebot/internal/embedder"
	"github.com/tebatto/profilebot/internal/logging"
	"github.com/tebatto/profilebot/internal/rag"
)

// sampleExcerptRunes caps how much of each sampled chunk is printed.
const sampleExcerptRunes = 200

// NewDiagnoseCmd constructs the `profilebot diagnose` command, which
// inspects a built vector index: backend, chunk count, embedding model
// stamp, and a sample similarity search.
func NewDiagnoseCmd() *cobra.Command {
	var corpus string
	var indexDir string
	var query string
	var top int

	cmd := &cobra.Command{
		Use:   "diagnose",
		Short: "Inspect the vector index",
		Long: `Inspect a built vector index and print what the retriever would see.

Reports the index backend, location, chunk count, and the embedding model
the process would query with, then runs an unfiltered similarity search so
you can eyeball what the index actually contains.

Examples:
  profilebot diagnose
  profilebot diagnose --corpus core
  profilebot diagnose --query "work experience" --top 3`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()

			if indexDir == "" {
				indexDir = filepath.Join("vectorstores", corpus)
			}

			if err := embedder.Validate(log); err != nil {
				return fmt.Errorf("diagnose: %w", err)
			}
			emb, err := embedder.NewFromEnv()
			if err != nil {
				return fmt.Errorf("diagnose: failed to initialise embedder: %w", err)
			}

			store, err := openIndexStore(indexDir)
			if err != nil {
				return fmt.Errorf("diagnose: %w", err)
			}
			defer store.Close()

			backend := getEnvOrDefault("INDEX_BACKEND", "local")
			location := indexDir
			if backend == "qdrant" {
				location = getEnvOrDefault("QDRANT_HOST", "localhost")
			}

			// Zero threshold: show everything the search surfaces, even
			// results the serving retriever would filter out.
			retriever, err := rag.NewThresholdRetriever(emb, store, top, 0)
			if err != nil {
				return fmt.Errorf("diagnose: %w", err)
			}

			return diagnoseIndex(ctx, cmd.OutOrStdout(), store, retriever,
				backend, location, embedder.ModelIdentity(), query)
		},
	}

	cmd.Flags().StringVar(&corpus, "corpus", "extended", "Corpus name (core, extended)")
	cmd.Flags().StringVar(&indexDir, "index-dir", "", "Index directory to inspect (default: vectorstores/<corpus>)")
	cmd.Flags().StringVarP(&query, "query", "q", "What does this profile contain?", "Query for the sample similarity search (empty to skip)")
	cmd.Flags().IntVarP(&top, "top", "t", 5, "Number of sample results to print")

	return cmd
}

// diagnoseIndex writes the index report: presence, chunk count, model
// stamp, and — when the index exists and a query is given — a sample
// search with scores and sources.
func diagnoseIndex(ctx context.Context, w io.Writer, store rag.VectorStore, retriever rag.Retriever, backend, location, model, query string) error {
	fmt.Fprintf(w, "backend:  %s\n", backend)
	fmt.Fprintf(w, "location: %s\n", location)
	fmt.Fprintf(w, "model:    %s\n", model)

	exists, err := store.Exists(ctx)
	if err != nil {
		return fmt.Errorf("diagnose: checking index: %w", err)
	}
	if !exists {
		fmt.Fprintln(w, "index:    missing — run `profilebot index` to build it")
		return nil
	}

	count, err := store.Count(ctx)
	if err != nil {
		return fmt.Errorf("diagnose: counting chunks: %w", err)
	}
	fmt.Fprintf(w, "chunks:   %d\n", count)

	if query == "" {
		return nil
	}

	docs, err := retriever.Retrieve(ctx, query)
	if err != nil {
		return fmt.Errorf("diagnose: sample search: %w", err)
	}

	fmt.Fprintf(w, "\nsample results for %q:\n", query)
	if len(docs) == 0 {
		fmt.Fprintln(w, "  (none)")
		return nil
	}
	for i, doc := range docs {
		fmt.Fprintf(w, "--- result %d  score=%.3f  %s (page %d) ---\n",
			i+1, doc.Score, doc.Source, doc.Page)
		fmt.Fprintln(w, sampleExcerpt(doc.Content))
	}
	return nil
}

// sampleExcerpt flattens a chunk to one line capped at sampleExcerptRunes.
func sampleExcerpt(content string) string {
	flat := strings.Join(strings.Fields(content), " ")
	runes := []rune(flat)
	if len(runes) > sampleExcerptRunes {
		return string(runes[:sampleExcerptRunes]) + "…"
	}
	return flat
}
