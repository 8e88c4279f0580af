package embedding

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

const defaultCacheSize = 256

// CachingProvider wraps a Provider with an LRU cache over query embeddings.
// Assistants tend to re-issue the same search and predict queries within a
// session; caching avoids a round trip to the embedding daemon each time.
// Document embeddings are never cached — the query layer doesn't produce them.
type CachingProvider struct {
	inner Provider
	cache *lru.Cache[string, []float32]
}

// WithCache wraps the provider with a query-embedding LRU of the given size.
// A size <= 0 uses the default.
func WithCache(inner Provider, size int) (*CachingProvider, error) {
	if size <= 0 {
		size = defaultCacheSize
	}
	cache, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, err
	}
	return &CachingProvider{inner: inner, cache: cache}, nil
}

func (p *CachingProvider) Name() string    { return p.inner.Name() }
func (p *CachingProvider) Model() string   { return p.inner.Model() }
func (p *CachingProvider) Dimensions() int { return p.inner.Dimensions() }

func (p *CachingProvider) GetEmbedding(text, purpose string) ([]float32, error) {
	if purpose == "query" {
		return p.GetQueryEmbedding(text)
	}
	return p.inner.GetEmbedding(text, purpose)
}

func (p *CachingProvider) GetDocumentEmbedding(text string) ([]float32, error) {
	return p.inner.GetDocumentEmbedding(text)
}

func (p *CachingProvider) GetQueryEmbedding(text string) ([]float32, error) {
	if vec, ok := p.cache.Get(text); ok {
		return vec, nil
	}
	vec, err := p.inner.GetQueryEmbedding(text)
	if err != nil {
		return nil, err
	}
	p.cache.Add(text, vec)
	return vec, nil
}
