package embedding

import (
	"testing"
)

// countingProvider records how many times each method hits the backend.
type countingProvider struct {
	queryCalls int
	docCalls   int
}

func (c *countingProvider) GetEmbedding(text, purpose string) ([]float32, error) {
	if purpose == "query" {
		return c.GetQueryEmbedding(text)
	}
	return c.GetDocumentEmbedding(text)
}

func (c *countingProvider) GetDocumentEmbedding(string) ([]float32, error) {
	c.docCalls++
	return []float32{1, 2, 3}, nil
}

func (c *countingProvider) GetQueryEmbedding(string) ([]float32, error) {
	c.queryCalls++
	return []float32{1, 2, 3}, nil
}

func (c *countingProvider) Name() string    { return "counting" }
func (c *countingProvider) Model() string   { return "counting-model" }
func (c *countingProvider) Dimensions() int { return 3 }

func TestCacheHit(t *testing.T) {
	inner := &countingProvider{}
	p, err := WithCache(inner, 8)
	if err != nil {
		t.Fatalf("WithCache: %v", err)
	}

	for i := 0; i < 3; i++ {
		vec, err := p.GetQueryEmbedding("same query")
		if err != nil {
			t.Fatalf("GetQueryEmbedding: %v", err)
		}
		if len(vec) != 3 {
			t.Fatalf("unexpected vector %v", vec)
		}
	}
	if inner.queryCalls != 1 {
		t.Errorf("expected 1 backend call for repeated query, got %d", inner.queryCalls)
	}

	if _, err := p.GetQueryEmbedding("different query"); err != nil {
		t.Fatal(err)
	}
	if inner.queryCalls != 2 {
		t.Errorf("expected cache miss for new query, got %d calls", inner.queryCalls)
	}
}

func TestCacheEviction(t *testing.T) {
	inner := &countingProvider{}
	p, err := WithCache(inner, 2)
	if err != nil {
		t.Fatalf("WithCache: %v", err)
	}

	for _, q := range []string{"a", "b", "c", "a"} {
		if _, err := p.GetQueryEmbedding(q); err != nil {
			t.Fatal(err)
		}
	}
	// "a" was evicted by "c" in a 2-entry LRU, so it misses again.
	if inner.queryCalls != 4 {
		t.Errorf("expected 4 backend calls with eviction, got %d", inner.queryCalls)
	}
}

func TestCacheSkipsDocuments(t *testing.T) {
	inner := &countingProvider{}
	p, err := WithCache(inner, 8)
	if err != nil {
		t.Fatalf("WithCache: %v", err)
	}

	for i := 0; i < 2; i++ {
		if _, err := p.GetDocumentEmbedding("doc"); err != nil {
			t.Fatal(err)
		}
	}
	if inner.docCalls != 2 {
		t.Errorf("document embeddings must bypass the cache, got %d calls", inner.docCalls)
	}
}

func TestCacheRoutesEmbeddingPurpose(t *testing.T) {
	inner := &countingProvider{}
	p, err := WithCache(inner, 8)
	if err != nil {
		t.Fatalf("WithCache: %v", err)
	}

	if _, err := p.GetEmbedding("q", "query"); err != nil {
		t.Fatal(err)
	}
	if _, err := p.GetEmbedding("q", "query"); err != nil {
		t.Fatal(err)
	}
	if inner.queryCalls != 1 {
		t.Errorf("query-purpose GetEmbedding should use the cache, got %d calls", inner.queryCalls)
	}
}

func TestNewProviderSelection(t *testing.T) {
	p, err := NewProvider(ProviderConfig{})
	if err != nil {
		t.Fatalf("default provider: %v", err)
	}
	if p.Name() != "ollama" {
		t.Errorf("default provider = %q, want ollama", p.Name())
	}

	if _, err := NewProvider(ProviderConfig{Provider: "weird"}); err == nil {
		t.Error("expected error for unknown provider")
	}
}
