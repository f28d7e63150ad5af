package embedder

import (
	"log/slog"
	"testing"
)

// clearEmbedderEnv unsets every env var the factory consults so each test
// starts from a clean slate. t.Setenv with "" is enough — the factory treats
// empty as unset.
func clearEmbedderEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"MODEL_PROVIDER", "EMBEDDING_PROVIDER", "EMBEDDING_MODEL",
		"EMBEDDING_API_KEY", "EMBEDDING_ENDPOINT", "EMBEDDING_DIMENSIONS",
		"MISTRAL_API_KEY", "OPENAI_API_KEY",
		"AZURE_OPENAI_API_KEY", "AZURE_OPENAI_ENDPOINT", "OLLAMA_HOST",
	} {
		t.Setenv(key, "")
	}
}

func Test_Factory_DefaultsToMistral(t *testing.T) {
	clearEmbedderEnv(t)
	t.Setenv("MISTRAL_API_KEY", "test-key")

	emb, err := NewFromEnv()
	if err != nil {
		t.Fatalf("new from env: %v", err)
	}
	if _, ok := emb.(*OpenAIEmbedder); !ok {
		t.Errorf("want *OpenAIEmbedder for mistral backend, got %T", emb)
	}
}

func Test_Factory_MistralRequiresKey(t *testing.T) {
	clearEmbedderEnv(t)

	if _, err := NewFromEnv(); err == nil {
		t.Fatal("want error when MISTRAL_API_KEY is unset, got nil")
	}
}

func Test_Factory_EmbeddingProviderOverridesModelProvider(t *testing.T) {
	clearEmbedderEnv(t)
	t.Setenv("MODEL_PROVIDER", "mistral")
	t.Setenv("EMBEDDING_PROVIDER", "ollama")

	emb, err := NewFromEnv()
	if err != nil {
		t.Fatalf("new from env: %v", err)
	}
	if _, ok := emb.(*OllamaEmbedder); !ok {
		t.Errorf("want *OllamaEmbedder, got %T", emb)
	}
}

func Test_Factory_UnknownBackendRejected(t *testing.T) {
	clearEmbedderEnv(t)
	t.Setenv("EMBEDDING_PROVIDER", "carrier-pigeon")

	if _, err := NewFromEnv(); err == nil {
		t.Fatal("want error for unknown backend, got nil")
	}
}

func Test_DefaultDimensions_PerBackend(t *testing.T) {
	clearEmbedderEnv(t)

	cases := []struct {
		backend string
		want    int
	}{
		{"mistral", 1024},
		{"openai", 1536},
		{"azure", 1536},
		{"ollama", 768},
	}
	for _, tc := range cases {
		if got := DefaultDimensions(tc.backend); got != tc.want {
			t.Errorf("%s: want %d, got %d", tc.backend, tc.want, got)
		}
	}
}

func Test_DefaultDimensions_EnvOverrideWins(t *testing.T) {
	clearEmbedderEnv(t)
	t.Setenv("EMBEDDING_DIMENSIONS", "512")

	if got := DefaultDimensions("mistral"); got != 512 {
		t.Errorf("want 512, got %d", got)
	}
}

func Test_ModelIdentity_CombinesBackendAndModel(t *testing.T) {
	clearEmbedderEnv(t)
	t.Setenv("EMBEDDING_PROVIDER", "mistral")

	if got := ModelIdentity(); got != "mistral/mistral-embed" {
		t.Errorf("want mistral/mistral-embed, got %q", got)
	}

	t.Setenv("EMBEDDING_MODEL", "custom-embed")
	if got := ModelIdentity(); got != "mistral/custom-embed" {
		t.Errorf("want mistral/custom-embed, got %q", got)
	}
}

func Test_Validate_MissingKeyFails(t *testing.T) {
	clearEmbedderEnv(t)
	t.Setenv("EMBEDDING_PROVIDER", "openai")

	if err := Validate(slog.Default()); err == nil {
		t.Fatal("want error for openai backend with no key, got nil")
	}
}

func Test_Validate_OllamaNeedsNothing(t *testing.T) {
	clearEmbedderEnv(t)
	t.Setenv("EMBEDDING_PROVIDER", "ollama")

	if err := Validate(slog.Default()); err != nil {
		t.Fatalf("ollama should validate without config: %v", err)
	}
}
