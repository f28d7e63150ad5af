package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_NoFile(t *testing.T) {
	t.Parallel()

	log := slog.Default()
	path, err := Load("/nonexistent/path/config.yaml", log)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if path != "" {
		t.Errorf("expected empty path, got %q", path)
	}
}

func TestLoad_ValidFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	content := []byte(`
model:
  provider: mistral
  max_tokens: 1024
  temperature: 0.3
  mistral:
    model: mistral-large-latest
embedding:
  provider: mistral
  model: mistral-embed
index:
  backend: local
  data_dir: data/core
  index_dir: vectorstores/core
  chunk_size: 400
  chunk_overlap: 50
retrieval:
  top_k: 3
  min_score: 0.45
logging:
  level: debug
  format: text
`)

	if err := os.WriteFile(cfgPath, content, 0o644); err != nil {
		t.Fatal(err)
	}

	// Clear env vars that the YAML should set.
	envKeys := []string{
		"MODEL_PROVIDER", "MODEL_MAX_TOKENS", "MODEL_TEMPERATURE",
		"MISTRAL_MODEL", "EMBEDDING_PROVIDER", "EMBEDDING_MODEL",
		"INDEX_BACKEND", "DATA_DIR", "INDEX_DIR",
		"CHUNK_SIZE", "CHUNK_OVERLAP", "RETRIEVAL_TOP_K", "RETRIEVAL_MIN_SCORE",
		"LOG_LEVEL", "LOG_FORMAT",
	}
	for _, k := range envKeys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}

	log := slog.Default()
	loaded, err := Load(cfgPath, log)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded != cfgPath {
		t.Errorf("loaded path: got %q, want %q", loaded, cfgPath)
	}

	checks := map[string]string{
		"MODEL_PROVIDER":      "mistral",
		"MODEL_MAX_TOKENS":    "1024",
		"MODEL_TEMPERATURE":   "0.3",
		"MISTRAL_MODEL":       "mistral-large-latest",
		"EMBEDDING_PROVIDER":  "mistral",
		"EMBEDDING_MODEL":     "mistral-embed",
		"INDEX_BACKEND":       "local",
		"DATA_DIR":            "data/core",
		"INDEX_DIR":           "vectorstores/core",
		"CHUNK_SIZE":          "400",
		"CHUNK_OVERLAP":       "50",
		"RETRIEVAL_TOP_K":     "3",
		"RETRIEVAL_MIN_SCORE": "0.45",
		"LOG_LEVEL":           "debug",
		"LOG_FORMAT":          "text",
	}
	for k, want := range checks {
		got := os.Getenv(k)
		if got != want {
			t.Errorf("%s: got %q, want %q", k, got, want)
		}
	}
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	content := []byte(`
model:
  provider: ollama
`)
	if err := os.WriteFile(cfgPath, content, 0o644); err != nil {
		t.Fatal(err)
	}

	// Set env var BEFORE loading — it should NOT be overwritten.
	t.Setenv("MODEL_PROVIDER", "mistral")

	log := slog.Default()
	_, err := Load(cfgPath, log)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if got := os.Getenv("MODEL_PROVIDER"); got != "mistral" {
		t.Errorf("MODEL_PROVIDER: expected env override %q, got %q", "mistral", got)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	if err := os.WriteFile(cfgPath, []byte("{{invalid yaml"), 0o644); err != nil {
		t.Fatal(err)
	}

	log := slog.Default()
	_, err := Load(cfgPath, log)
	if err == nil {
		t.Fatal("expected error for invalid YAML")
	}
}

func TestFloat32Str(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   float32
		want string
	}{
		{0.0, ""},
		{0.3, "0.3"},
		{0.45, "0.45"},
		{1.0, "1"},
	}
	for _, tt := range tests {
		if got := float32Str(tt.in); got != tt.want {
			t.Errorf("float32Str(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestPipelineFromEnv_Defaults(t *testing.T) {
	for _, k := range []string{
		"INDEX_BACKEND", "DATA_DIR", "INDEX_DIR", "INDEX_LOCK_FILE",
		"CHUNK_SIZE", "CHUNK_OVERLAP", "RETRIEVAL_TOP_K", "RETRIEVAL_MIN_SCORE",
		"MODEL_TEMPERATURE", "MODEL_MAX_TOKENS",
	} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}

	p, err := PipelineFromEnv()
	if err != nil {
		t.Fatalf("PipelineFromEnv: %v", err)
	}
	if p.IndexBackend != "local" || p.DataDir != "data/extended" ||
		p.IndexDir != "vectorstores/extended" || p.LockFile != "vectorstore.lock" {
		t.Errorf("wrong location defaults: %+v", p)
	}
	if p.ChunkSize != 400 || p.ChunkOverlap != 50 {
		t.Errorf("wrong chunking defaults: size=%d overlap=%d", p.ChunkSize, p.ChunkOverlap)
	}
	if p.TopK != 3 || p.MinScore != 0.45 {
		t.Errorf("wrong retrieval defaults: k=%d min=%g", p.TopK, p.MinScore)
	}
	if p.Temperature != 0.3 || p.MaxTokens != 1024 {
		t.Errorf("wrong tuning defaults: temp=%g max=%d", p.Temperature, p.MaxTokens)
	}
}

func TestPipelineValidate(t *testing.T) {
	t.Parallel()

	valid := Pipeline{
		IndexBackend: "local", DataDir: "d", IndexDir: "i", LockFile: "l",
		ChunkSize: 400, ChunkOverlap: 50,
		TopK: 3, MinScore: 0.45, Temperature: 0.3, MaxTokens: 1024,
	}

	tests := []struct {
		name    string
		mutate  func(*Pipeline)
		wantErr bool
	}{
		{"valid", func(*Pipeline) {}, false},
		{"bad backend", func(p *Pipeline) { p.IndexBackend = "redis" }, true},
		{"zero chunk size", func(p *Pipeline) { p.ChunkSize = 0 }, true},
		{"overlap equals size", func(p *Pipeline) { p.ChunkOverlap = 400 }, true},
		{"zero overlap", func(p *Pipeline) { p.ChunkOverlap = 0 }, true},
		{"zero top k", func(p *Pipeline) { p.TopK = 0 }, true},
		{"threshold above one", func(p *Pipeline) { p.MinScore = 1.5 }, true},
		{"negative threshold", func(p *Pipeline) { p.MinScore = -0.1 }, true},
		{"temperature out of range", func(p *Pipeline) { p.Temperature = 2.5 }, true},
		{"zero max tokens", func(p *Pipeline) { p.MaxTokens = 0 }, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			p := valid
			tc.mutate(&p)
			err := p.Validate()
			if tc.wantErr && err == nil {
				t.Fatal("expected error, got nil")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}
