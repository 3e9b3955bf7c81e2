// Package cached wraps an Embedder with a ristretto read-through cache,
// so re-ingested or repeated text does not hit the remote model again.
package cached

import (
	"context"
	"fmt"

	"github.com/dgraph-io/ristretto"

	"github.com/daybook-ai/memengine/memory"
)

// DefaultMaxEntries bounds the number of cached embeddings.
const DefaultMaxEntries = 4096

// Embedder is a caching decorator around another memory.Embedder.
type Embedder struct {
	inner memory.Embedder
	cache *ristretto.Cache
}

// New wraps inner with a cache holding up to maxEntries embeddings.
func New(inner memory.Embedder, maxEntries int64) (*Embedder, error) {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: maxEntries * 10,
		MaxCost:     maxEntries,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("create embedding cache: %w", err)
	}
	return &Embedder{inner: inner, cache: cache}, nil
}

// Embed returns the cached vector for text, calling through on a miss.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if v, ok := e.cache.Get(text); ok {
		if vec, ok := v.([]float32); ok {
			return vec, nil
		}
	}
	vec, err := e.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	e.cache.Set(text, vec, 1)
	return vec, nil
}

// EmbedBatch serves cache hits locally and delegates the misses to the
// inner embedder in one batch, preserving input order.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	var missing []string
	var missingIdx []int
	for i, t := range texts {
		if v, ok := e.cache.Get(t); ok {
			if vec, ok := v.([]float32); ok {
				vectors[i] = vec
				continue
			}
		}
		missing = append(missing, t)
		missingIdx = append(missingIdx, i)
	}
	if len(missing) == 0 {
		return vectors, nil
	}
	fetched, err := e.inner.EmbedBatch(ctx, missing)
	if err != nil {
		return nil, err
	}
	for j, vec := range fetched {
		vectors[missingIdx[j]] = vec
		e.cache.Set(missing[j], vec, 1)
	}
	return vectors, nil
}

// Dimensions returns the inner embedder's vector size.
func (e *Embedder) Dimensions() int { return e.inner.Dimensions() }

// Wait blocks until buffered cache writes are applied.
func (e *Embedder) Wait() {
	e.cache.Wait()
}

// Close releases cache resources.
func (e *Embedder) Close() {
	e.cache.Close()
}
