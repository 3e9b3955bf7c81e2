package cached_test

import (
	"context"
	"sync"
	"testing"

	"github.com/daybook-ai/memengine/memory/embedder/cached"
)

// countingEmbedder counts calls and returns a fixed vector per text length.
type countingEmbedder struct {
	mu           sync.Mutex
	singleCalls  int
	batchedTexts int
}

func (e *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	e.singleCalls++
	e.mu.Unlock()
	return []float32{float32(len(text)), 1}, nil
}

func (e *countingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	e.batchedTexts += len(texts)
	e.mu.Unlock()
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t)), 1}
	}
	return out, nil
}

func (e *countingEmbedder) Dimensions() int { return 2 }

func TestEmbed_CacheHitSkipsInner(t *testing.T) {
	inner := &countingEmbedder{}
	e, err := cached.New(inner, 100)
	if err != nil {
		t.Fatalf("Failed to create cached embedder: %v", err)
	}
	defer e.Close()
	ctx := context.Background()

	if _, err := e.Embed(ctx, "hello"); err != nil {
		t.Fatalf("Failed to embed: %v", err)
	}
	// ristretto applies Set asynchronously.
	e.Wait()

	if _, err := e.Embed(ctx, "hello"); err != nil {
		t.Fatalf("Failed to embed: %v", err)
	}
	if inner.singleCalls > 1 {
		t.Errorf("Expected at most 1 inner call after cache warm, got %d", inner.singleCalls)
	}
}

func TestEmbedBatch_OnlyMissesDelegated(t *testing.T) {
	inner := &countingEmbedder{}
	e, err := cached.New(inner, 100)
	if err != nil {
		t.Fatalf("Failed to create cached embedder: %v", err)
	}
	defer e.Close()
	ctx := context.Background()

	if _, err := e.Embed(ctx, "cached"); err != nil {
		t.Fatalf("Failed to warm cache: %v", err)
	}
	e.Wait()

	vectors, err := e.EmbedBatch(ctx, []string{"cached", "fresh one", "fresh two"})
	if err != nil {
		t.Fatalf("Failed to embed batch: %v", err)
	}
	if len(vectors) != 3 {
		t.Fatalf("Expected 3 vectors, got %d", len(vectors))
	}
	for i, v := range vectors {
		if v == nil {
			t.Errorf("Vector %d is nil; batch result not filled in order", i)
		}
	}
	if inner.batchedTexts > 2 {
		t.Errorf("Expected at most 2 texts delegated to inner batch, got %d", inner.batchedTexts)
	}
}

func TestDimensions_Delegates(t *testing.T) {
	e, err := cached.New(&countingEmbedder{}, 10)
	if err != nil {
		t.Fatalf("Failed to create cached embedder: %v", err)
	}
	defer e.Close()
	if e.Dimensions() != 2 {
		t.Errorf("Expected dimensions 2, got %d", e.Dimensions())
	}
}
