package ingestion

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Page is one page of a source document, the unit handed to the chunker.
// Plain documents are a single page; paginated documents separate pages with
// form-feed characters.
type Page struct {
	// Source is the document path relative to the corpus root.
	Source string

	// Number is the 1-based page number within the document.
	Number int

	// Text is the raw page text.
	Text string
}

// documentExtensions lists the file extensions loaded from a corpus
// directory. Everything else (binaries, dotfiles, the index itself) is
// skipped silently.
var documentExtensions = map[string]bool{
	".txt":  true,
	".text": true,
	".md":   true,
}

// LoadPages walks sourceDir and returns every page of every readable
// document, in deterministic walk order. An empty or document-free directory
// returns an empty slice — only a missing or unreadable directory, or an
// unreadable document, is an error (wrapping ErrIngestion).
func LoadPages(sourceDir string) ([]Page, error) {
	info, err := os.Stat(sourceDir)
	if err != nil {
		return nil, fmt.Errorf("%w: source directory %s: %v", ErrIngestion, sourceDir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrIngestion, sourceDir)
	}

	var pages []Page
	walkErr := filepath.WalkDir(sourceDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("%w: walking %s: %v", ErrIngestion, path, err)
		}
		if d.IsDir() {
			return nil
		}
		if !documentExtensions[strings.ToLower(filepath.Ext(d.Name()))] {
			return nil
		}

		raw, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("%w: reading %s: %v", ErrIngestion, path, err)
		}

		rel, err := filepath.Rel(sourceDir, path)
		if err != nil {
			rel = path
		}

		pages = append(pages, splitPages(rel, string(raw))...)
		return nil
	})
	if walkErr != nil {
		return nil, walkErr
	}

	return pages, nil
}

// splitPages cuts a document into pages on form-feed boundaries. Documents
// without form feeds yield a single page numbered 1. Blank pages are dropped.
func splitPages(source, text string) []Page {
	parts := strings.Split(text, "\f")

	pages := make([]Page, 0, len(parts))
	number := 0
	for _, part := range parts {
		number++
		if strings.TrimSpace(part) == "" {
			continue
		}
		pages = append(pages, Page{
			Source: source,
			Number: number,
			Text:   part,
		})
	}
	return pages
}
