// Package service assembles the question-answering pipeline and exposes the
// single operation both front ends share: Ask. A Pipeline is built once per
// process — construction opens the vector store, ensures the index exists,
// and dials the model providers — and is safe for concurrent use afterwards.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/cloudwego/eino/components/model"

	"github.com/tebatto/profilebot/internal/answer"
	"github.com/tebatto/profilebot/internal/config"
	"github.com/tebatto/profilebot/internal/embedder"
	"github.com/tebatto/profilebot/internal/ingestion"
	"github.com/tebatto/profilebot/internal/provider"
	"github.com/tebatto/profilebot/internal/rag"
)

// maxSources caps the number of source entries attached to an answer.
const maxSources = 4

// maxExcerptRunes caps the length of each source excerpt.
const maxExcerptRunes = 300

// Source is one provenance entry attached to an answer: the origin document
// and a prefix of the chunk that grounded the answer.
type Source struct {
	// Source is the document path relative to the corpus root.
	Source string `json:"source"`

	// Content is a prefix of the retrieved chunk, at most 300 runes.
	Content string `json:"content"`
}

// Answer is the result of one question: the synthesized text and the
// excerpts it was grounded in, in retrieval order.
type Answer struct {
	Text    string   `json:"answer"`
	Sources []Source `json:"sources"`
}

// Generator produces a grounded answer from a question and its retrieved
// context.
type Generator interface {
	Synthesize(ctx context.Context, question string, docs []rag.Document) (string, error)
}

// Pipeline bundles the retriever and synthesizer behind the Ask operation.
// All fields are set at construction and never mutated, so one Pipeline
// serves concurrent callers.
type Pipeline struct {
	retriever rag.Retriever
	generator Generator
	store     rag.VectorStore
	log       *slog.Logger

	// embedder and chatModel are retained by Build so callers can wire
	// health probes against the live components. Nil when the pipeline is
	// assembled from parts via NewPipeline.
	embedder  rag.Embedder
	chatModel model.ToolCallingChatModel
}

// Store returns the pipeline's vector store, or nil.
func (p *Pipeline) Store() rag.VectorStore { return p.store }

// Embedder returns the embedder Build constructed, or nil.
func (p *Pipeline) Embedder() rag.Embedder { return p.embedder }

// ChatModel returns the chat model Build constructed, or nil.
func (p *Pipeline) ChatModel() model.ToolCallingChatModel { return p.chatModel }

// NewPipeline wires a Pipeline from already-constructed parts. Production
// code goes through Build; tests inject fakes here.
func NewPipeline(retriever rag.Retriever, generator Generator, store rag.VectorStore, log *slog.Logger) (*Pipeline, error) {
	if retriever == nil {
		return nil, fmt.Errorf("service: retriever must not be nil")
	}
	if generator == nil {
		return nil, fmt.Errorf("service: generator must not be nil")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Pipeline{
		retriever: retriever,
		generator: generator,
		store:     store,
		log:       log,
	}, nil
}

// Build constructs the full production pipeline from the given configuration:
// embedder, vector store, index lifecycle guard, retriever, chat model,
// synthesizer — in that order, failing fast on the first broken dependency.
func Build(ctx context.Context, cfg *config.Pipeline, log *slog.Logger) (*Pipeline, error) {
	if log == nil {
		log = slog.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if err := embedder.Validate(log); err != nil {
		return nil, err
	}
	emb, err := embedder.NewFromEnv()
	if err != nil {
		return nil, fmt.Errorf("service: building embedder: %w", err)
	}

	store, err := openStore(cfg)
	if err != nil {
		return nil, err
	}

	builder, err := ingestion.NewBuilder(emb, store, &ingestion.Config{
		ChunkSize:    cfg.ChunkSize,
		ChunkOverlap: cfg.ChunkOverlap,
	})
	if err != nil {
		return nil, err
	}
	guard := ingestion.NewGuard(store, builder, cfg.DataDir, cfg.LockFile, log)
	if err := guard.EnsureIndex(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("service: ensuring index: %w", err)
	}

	retriever, err := rag.NewThresholdRetriever(emb, store, cfg.TopK, cfg.MinScore)
	if err != nil {
		store.Close()
		return nil, err
	}

	chatModel, err := provider.NewFromEnv(ctx)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("service: building chat model: %w", err)
	}
	synth, err := answer.NewSynthesizer(chatModel)
	if err != nil {
		store.Close()
		return nil, err
	}

	log.Info("pipeline ready",
		slog.String("index_backend", cfg.IndexBackend),
		slog.String("index_dir", cfg.IndexDir),
		slog.Int("top_k", cfg.TopK),
	)

	pipe, err := NewPipeline(retriever, synth, store, log)
	if err != nil {
		store.Close()
		return nil, err
	}
	pipe.embedder = emb
	pipe.chatModel = chatModel
	return pipe, nil
}

// openStore opens the vector store named by the configuration.
func openStore(cfg *config.Pipeline) (rag.VectorStore, error) {
	switch cfg.IndexBackend {
	case "qdrant":
		port := 6334
		if v := os.Getenv("QDRANT_PORT"); v != "" {
			if p, err := strconv.Atoi(v); err == nil {
				port = p
			}
		}
		collection := os.Getenv("QDRANT_COLLECTION")
		if collection == "" {
			collection = "profilebot"
		}
		store, err := rag.NewQdrantStore(&rag.QdrantConfig{
			Host:       os.Getenv("QDRANT_HOST"),
			Port:       port,
			Collection: collection,
			VectorSize: uint64(embedder.DefaultDimensions(embedder.ResolveBackend())),
			APIKey:     os.Getenv("QDRANT_API_KEY"),
			UseTLS:     os.Getenv("QDRANT_TLS") == "true",
		})
		if err != nil {
			return nil, fmt.Errorf("service: opening qdrant store: %w", err)
		}
		return store, nil
	default:
		store, err := rag.NewLocalStore(cfg.IndexDir, embedder.ModelIdentity())
		if err != nil {
			return nil, fmt.Errorf("service: opening local store: %w", err)
		}
		return store, nil
	}
}

// Ask answers one question: retrieve relevant excerpts, synthesize a grounded
// answer, and attach provenance. An empty retrieval still produces a
// well-formed Answer with no sources.
func (p *Pipeline) Ask(ctx context.Context, question string) (Answer, error) {
	docs, err := p.retriever.Retrieve(ctx, question)
	if err != nil {
		return Answer{}, fmt.Errorf("service: retrieval: %w", err)
	}

	text, err := p.generator.Synthesize(ctx, question, docs)
	if err != nil {
		return Answer{}, err
	}

	return Answer{Text: text, Sources: buildSources(docs)}, nil
}

// Close releases the pipeline's vector store.
func (p *Pipeline) Close() error {
	if p.store == nil {
		return nil
	}
	return p.store.Close()
}

// buildSources converts retrieved documents into provenance entries: at most
// maxSources, each excerpt a prefix of its chunk capped at maxExcerptRunes,
// in retrieval order.
func buildSources(docs []rag.Document) []Source {
	sources := make([]Source, 0, min(len(docs), maxSources))
	for _, doc := range docs {
		if len(sources) == maxSources {
			break
		}
		sources = append(sources, Source{
			Source:  doc.Source,
			Content: truncateRunes(doc.Content, maxExcerptRunes),
		})
	}
	return sources
}

// truncateRunes returns at most n leading runes of s.
func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
