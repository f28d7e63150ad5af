// Package provider selects and constructs the LLM chat backend at runtime.
// Supported backends: Mistral (default), OpenAI, Azure OpenAI, Ollama,
// Google Gemini, and Volcano Ark.
package provider

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/model"
)

// Backend enumerates the supported LLM inference providers.
type Backend string

const (
	// BackendMistral selects the Mistral AI platform (la Plateforme).
	BackendMistral Backend = "mistral"
	// BackendOpenAI selects the OpenAI API.
	BackendOpenAI Backend = "openai"
	// BackendAzure selects Azure OpenAI Service.
	BackendAzure Backend = "azure"
	// BackendOllama selects a locally running Ollama instance.
	BackendOllama Backend = "ollama"
	// BackendGemini selects Google Gemini via AI Studio.
	BackendGemini Backend = "gemini"
	// BackendArk selects Volcano Engine Ark.
	BackendArk Backend = "ark"
)

// ProviderMistral holds Mistral-specific configuration.
type ProviderMistral struct {
	// APIKey authenticates against the Mistral platform.
	APIKey string
	// Model is the chat model name (e.g. "mistral-large-latest").
	Model string
	// BaseURL overrides the default API endpoint. Useful for proxies.
	BaseURL string
}

// ProviderOpenAI holds OpenAI-specific configuration.
type ProviderOpenAI struct {
	APIKey string
	Model  string
}

// ProviderAzureOpenAI holds Azure OpenAI Service configuration.
type ProviderAzureOpenAI struct {
	APIKey     string
	Endpoint   string
	Deployment string
	APIVersion string
}

// ProviderOllama holds configuration for a local Ollama instance.
type ProviderOllama struct {
	Host  string
	Model string
}

// ProviderGemini holds Google Gemini configuration.
type ProviderGemini struct {
	APIKey string
	Model  string
}

// ProviderArk holds Volcano Engine Ark configuration.
type ProviderArk struct {
	APIKey  string
	Model   string
	BaseURL string
}

// SharedTuning holds generation parameters applied regardless of backend.
type SharedTuning struct {
	// MaxTokens caps the number of tokens the model may generate per response.
	MaxTokens int

	// Temperature controls response randomness (0.0–1.0).
	Temperature float32
}

// Config holds all provider-level configuration resolved from environment
// variables or explicit caller-supplied values. Only the section matching
// Backend is consulted.
type Config struct {
	// Backend identifies which inference provider to use.
	Backend Backend

	Mistral     ProviderMistral
	OpenAI      ProviderOpenAI
	AzureOpenAI ProviderAzureOpenAI
	Ollama      ProviderOllama
	Gemini      ProviderGemini
	Ark         ProviderArk

	Tuning SharedTuning
}

// Validate checks that the section selected by Backend carries everything its
// constructor needs, naming the missing environment variable so the operator
// knows exactly what to set.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendMistral:
		if c.Mistral.APIKey == "" {
			return fmt.Errorf("provider: MISTRAL_API_KEY is required for mistral backend")
		}
		if c.Mistral.Model == "" {
			return fmt.Errorf("provider: MISTRAL_MODEL must not be empty")
		}
	case BackendOpenAI:
		if c.OpenAI.APIKey == "" {
			return fmt.Errorf("provider: OPENAI_API_KEY is required for openai backend")
		}
		if c.OpenAI.Model == "" {
			return fmt.Errorf("provider: OPENAI_MODEL must not be empty")
		}
	case BackendAzure:
		if c.AzureOpenAI.APIKey == "" {
			return fmt.Errorf("provider: AZURE_OPENAI_API_KEY is required for azure backend")
		}
		if c.AzureOpenAI.Endpoint == "" {
			return fmt.Errorf("provider: AZURE_OPENAI_ENDPOINT is required for azure backend")
		}
		if c.AzureOpenAI.Deployment == "" {
			return fmt.Errorf("provider: AZURE_OPENAI_DEPLOYMENT is required for azure backend")
		}
	case BackendOllama:
		if c.Ollama.Model == "" {
			return fmt.Errorf("provider: OLLAMA_MODEL must not be empty")
		}
	case BackendGemini:
		if c.Gemini.APIKey == "" {
			return fmt.Errorf("provider: GOOGLE_API_KEY is required for gemini backend")
		}
		if c.Gemini.Model == "" {
			return fmt.Errorf("provider: GEMINI_MODEL must not be empty")
		}
	case BackendArk:
		if c.Ark.APIKey == "" {
			return fmt.Errorf("provider: ARK_API_KEY is required for ark backend")
		}
		if c.Ark.Model == "" {
			return fmt.Errorf("provider: ARK_MODEL must not be empty")
		}
	default:
		return fmt.Errorf("provider: unknown backend %q — valid values: mistral, openai, azure, ollama, gemini, ark", c.Backend)
	}
	return nil
}

// Factory is the interface for constructing a ChatModel from a Config.
// Implementations must be safe to call from multiple goroutines.
type Factory interface {
	// New constructs and returns a ready-to-use ChatModel for the given config.
	New(ctx context.Context, cfg *Config) (model.ToolCallingChatModel, error)
}
