package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/tebatto/profilebot/internal/rag"
)

// fakeRetriever returns a fixed document list.
type fakeRetriever struct {
	docs []rag.Document
	err  error
}

func (r *fakeRetriever) Retrieve(context.Context, string) ([]rag.Document, error) {
	return r.docs, r.err
}

// fakeGenerator echoes a canned answer and records what it received.
type fakeGenerator struct {
	reply string
	err   error
	docs  []rag.Document
}

func (g *fakeGenerator) Synthesize(_ context.Context, _ string, docs []rag.Document) (string, error) {
	g.docs = docs
	if g.err != nil {
		return "", g.err
	}
	return g.reply, nil
}

func docsWithContent(contents ...string) []rag.Document {
	docs := make([]rag.Document, len(contents))
	for i, c := range contents {
		docs[i] = rag.Document{Content: c, Source: "cv.txt", Page: i + 1}
	}
	return docs
}

func Test_Ask_AnswerCarriesSourcesInRetrievalOrder(t *testing.T) {
	t.Parallel()

	p, err := NewPipeline(
		&fakeRetriever{docs: docsWithContent("first chunk", "second chunk")},
		&fakeGenerator{reply: "the answer"},
		nil, nil,
	)
	if err != nil {
		t.Fatal(err)
	}

	got, err := p.Ask(context.Background(), "question")
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if got.Text != "the answer" {
		t.Errorf("text: %q", got.Text)
	}
	if len(got.Sources) != 2 {
		t.Fatalf("want 2 sources, got %d", len(got.Sources))
	}
	if got.Sources[0].Content != "first chunk" || got.Sources[1].Content != "second chunk" {
		t.Errorf("sources out of retrieval order: %+v", got.Sources)
	}
}

func Test_Ask_SourcesCappedAtFour(t *testing.T) {
	t.Parallel()

	p, err := NewPipeline(
		&fakeRetriever{docs: docsWithContent("a", "b", "c", "d", "e", "f")},
		&fakeGenerator{reply: "x"},
		nil, nil,
	)
	if err != nil {
		t.Fatal(err)
	}

	got, err := p.Ask(context.Background(), "question")
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Sources) != 4 {
		t.Errorf("want at most 4 sources, got %d", len(got.Sources))
	}
}

func Test_Ask_ExcerptIsBoundedChunkPrefix(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("é", 500)
	p, err := NewPipeline(
		&fakeRetriever{docs: docsWithContent(long)},
		&fakeGenerator{reply: "x"},
		nil, nil,
	)
	if err != nil {
		t.Fatal(err)
	}

	got, err := p.Ask(context.Background(), "question")
	if err != nil {
		t.Fatal(err)
	}
	excerpt := []rune(got.Sources[0].Content)
	if len(excerpt) != 300 {
		t.Errorf("want 300-rune excerpt, got %d", len(excerpt))
	}
	if !strings.HasPrefix(long, got.Sources[0].Content) {
		t.Error("excerpt is not a prefix of the chunk")
	}
}

func Test_Ask_EmptyRetrievalIsWellFormed(t *testing.T) {
	t.Parallel()

	p, err := NewPipeline(
		&fakeRetriever{},
		&fakeGenerator{reply: "nothing known"},
		nil, nil,
	)
	if err != nil {
		t.Fatal(err)
	}

	got, err := p.Ask(context.Background(), "question")
	if err != nil {
		t.Fatal(err)
	}
	if got.Text != "nothing known" {
		t.Errorf("text: %q", got.Text)
	}
	if len(got.Sources) != 0 {
		t.Errorf("want no sources, got %d", len(got.Sources))
	}
}

func Test_Ask_GeneratorErrorPropagates(t *testing.T) {
	t.Parallel()

	genErr := errors.New("model down")
	p, err := NewPipeline(
		&fakeRetriever{docs: docsWithContent("a")},
		&fakeGenerator{err: genErr},
		nil, nil,
	)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := p.Ask(context.Background(), "question"); !errors.Is(err, genErr) {
		t.Fatalf("want generator error, got %v", err)
	}
}

func Test_Lazy_ConstructsExactlyOnce(t *testing.T) {
	t.Parallel()

	var builds int
	lazy := NewLazy(func(context.Context) (*Pipeline, error) {
		builds++
		return NewPipeline(&fakeRetriever{}, &fakeGenerator{reply: "ok"}, nil, nil)
	})

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := lazy.Ask(context.Background(), "q"); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	if builds != 1 {
		t.Errorf("want exactly 1 construction, got %d", builds)
	}
}

func Test_Lazy_ConstructionErrorIsSticky(t *testing.T) {
	t.Parallel()

	buildErr := errors.New("no api key")
	var builds int
	lazy := NewLazy(func(context.Context) (*Pipeline, error) {
		builds++
		return nil, buildErr
	})

	for range 3 {
		if _, err := lazy.Get(context.Background()); !errors.Is(err, buildErr) {
			t.Fatalf("want sticky build error, got %v", err)
		}
	}
	if builds != 1 {
		t.Errorf("failed constructor must not be retried, got %d builds", builds)
	}
}
