// Package mock provides a deterministic offline embedder for tests and
// local development without API keys.
package mock

import (
	"context"
	"hash/fnv"
	"math"
)

// DefaultDimensions matches the default remote embedding model size used
// in tests.
const DefaultDimensions = 8

// Embedder generates deterministic pseudo-embeddings from a text hash.
// Identical text always yields an identical unit vector, so similarity
// ranking is stable, though not semantically meaningful.
type Embedder struct {
	dims int
}

// New creates a mock embedder with the given dimensions.
func New(dims int) *Embedder {
	if dims <= 0 {
		dims = DefaultDimensions
	}
	return &Embedder{dims: dims}
}

// Embed hashes the text into a deterministic unit vector.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	h := fnv.New64a()
	h.Write([]byte(text))
	state := h.Sum64()

	vec := make([]float32, e.dims)
	for i := range vec {
		// LCG walk from the hash seed.
		state = state*6364136223846793005 + 1442695040888963407
		vec[i] = float32(int64(state)) / float32(math.MaxInt64)
	}
	normalize(vec)
	return vec, nil
}

// EmbedBatch embeds each text in order.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := e.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		vectors[i] = v
	}
	return vectors, nil
}

// Dimensions returns the embedding vector size.
func (e *Embedder) Dimensions() int { return e.dims }

func normalize(vec []float32) {
	var norm float32
	for _, v := range vec {
		norm += v * v
	}
	if norm == 0 {
		return
	}
	inv := 1 / float32(math.Sqrt(float64(norm)))
	for i := range vec {
		vec[i] *= inv
	}
}
