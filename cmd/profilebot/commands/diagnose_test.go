package commands

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/tebatto/profilebot/internal/rag"
)

// fakeIndexStore is a canned VectorStore for the diagnosis report.
type fakeIndexStore struct {
	exists bool
	count  int
}

func (f *fakeIndexStore) Exists(context.Context) (bool, error) { return f.exists, nil }
func (f *fakeIndexStore) Reset(context.Context) error          { return nil }
func (f *fakeIndexStore) Upsert(context.Context, []rag.Document, [][]float32) error {
	return nil
}
func (f *fakeIndexStore) Search(context.Context, []float32, int, float32) ([]rag.Document, error) {
	return nil, nil
}
func (f *fakeIndexStore) Count(context.Context) (int, error) { return f.count, nil }
func (f *fakeIndexStore) Close() error                       { return nil }

// fakeSampleRetriever returns canned sample documents.
type fakeSampleRetriever struct {
	docs []rag.Document
}

func (f *fakeSampleRetriever) Retrieve(context.Context, string) ([]rag.Document, error) {
	return f.docs, nil
}

func TestDiagnoseIndex_ReportsCountAndSample(t *testing.T) {
	t.Parallel()

	store := &fakeIndexStore{exists: true, count: 42}
	retriever := &fakeSampleRetriever{docs: []rag.Document{
		{Content: "Worked on distributed systems in Go.", Source: "cv.txt", Page: 2, Score: 0.81},
	}}

	var buf bytes.Buffer
	err := diagnoseIndex(context.Background(), &buf, store, retriever,
		"local", "vectorstores/extended", "openai/text-embedding-3-small", "experience")
	if err != nil {
		t.Fatalf("diagnose: %v", err)
	}

	out := buf.String()
	for _, want := range []string{
		"backend:  local",
		"location: vectorstores/extended",
		"model:    openai/text-embedding-3-small",
		"chunks:   42",
		"score=0.810",
		"cv.txt (page 2)",
		"distributed systems in Go",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q:\n%s", want, out)
		}
	}
}

func TestDiagnoseIndex_MissingIndex(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	err := diagnoseIndex(context.Background(), &buf, &fakeIndexStore{}, &fakeSampleRetriever{},
		"local", "vectorstores/extended", "m", "q")
	if err != nil {
		t.Fatalf("diagnose: %v", err)
	}
	if !strings.Contains(buf.String(), "missing") {
		t.Errorf("missing index must be reported, got:\n%s", buf.String())
	}
}

func TestDiagnoseIndex_EmptyQuerySkipsSample(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	err := diagnoseIndex(context.Background(), &buf, &fakeIndexStore{exists: true, count: 7},
		&fakeSampleRetriever{}, "local", "dir", "m", "")
	if err != nil {
		t.Fatalf("diagnose: %v", err)
	}
	if strings.Contains(buf.String(), "sample results") {
		t.Errorf("empty query must skip the sample search, got:\n%s", buf.String())
	}
}

func TestSampleExcerpt_FlattensAndCaps(t *testing.T) {
	t.Parallel()

	if got := sampleExcerpt("line one\nline  two"); got != "line one line two" {
		t.Errorf("whitespace not flattened: %q", got)
	}

	long := strings.Repeat("é", sampleExcerptRunes+10)
	got := sampleExcerpt(long)
	if want := sampleExcerptRunes + 1; len([]rune(got)) != want {
		t.Errorf("want %d runes including ellipsis, got %d", want, len([]rune(got)))
	}
}
