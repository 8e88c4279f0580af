// Package embedding provides embedding providers for the vector index.
//
// Supported providers:
//   - ollama (default): Local embeddings via Ollama. No API keys, fully private.
//   - openai: OpenAI text-embedding-3-small/large. Requires an API key.
//   - openai-compatible: Any server exposing OpenAI-compatible /v1/embeddings
//     (llama.cpp, vLLM, LM Studio, etc.). API key optional.
//
// The query layer only ever embeds queries — document embeddings belong to
// the engine daemon — but providers expose both so the vectors stay in the
// same space as the daemon's index.
package embedding

import (
	"fmt"
	"math"
)

// Provider generates embedding vectors from text. All providers must produce
// vectors of consistent dimensionality within a single index.
type Provider interface {
	// GetEmbedding returns an embedding vector for the given text.
	// The purpose should be "document" for indexing or "query" for search.
	GetEmbedding(text string, purpose string) ([]float32, error)

	// GetDocumentEmbedding returns an embedding optimized for document storage.
	GetDocumentEmbedding(text string) ([]float32, error)

	// GetQueryEmbedding returns an embedding optimized for search queries.
	GetQueryEmbedding(text string) ([]float32, error)

	// Name returns the provider identifier (e.g., "ollama", "openai").
	Name() string

	// Model returns the embedding model name.
	Model() string

	// Dimensions returns the embedding vector dimensionality.
	Dimensions() int
}

// ProviderConfig holds embedding provider settings.
type ProviderConfig struct {
	Provider   string // "ollama" (default), "openai", "openai-compatible"
	Model      string // model name (provider-specific defaults if empty)
	APIKey     string // API key (required for cloud providers)
	BaseURL    string // base URL (provider-specific defaults if empty)
	Dimensions int    // vector dimensions (0 = provider default)
}

// NewProvider creates an embedding provider from the given config.
// Returns an error if the provider is unknown or misconfigured.
func NewProvider(cfg ProviderConfig) (Provider, error) {
	switch cfg.Provider {
	case "", "ollama":
		return newOllamaProvider(cfg)
	case "openai", "openai-compatible":
		return newOpenAIProvider(cfg)
	default:
		return nil, fmt.Errorf("unknown embedding provider: %q (supported: ollama, openai, openai-compatible)", cfg.Provider)
	}
}

// validateEmbedding checks that a returned embedding vector is valid:
// correct dimensionality (if expectedDims > 0) and not all zeros.
func validateEmbedding(vec []float32, expectedDims int) error {
	if expectedDims > 0 && len(vec) != expectedDims {
		return fmt.Errorf("embedding dimension mismatch: expected %d, got %d", expectedDims, len(vec))
	}
	allZero := true
	for _, v := range vec {
		if math.Float32bits(v) != 0 {
			allZero = false
			break
		}
	}
	if allZero {
		return fmt.Errorf("embedding is all zeros (provider error)")
	}
	return nil
}
