package memory_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/daybook-ai/memengine/memory"
)

// queryRecordingStore captures the SimilarityQuery it receives.
type queryRecordingStore struct {
	fakeStore
	mu   sync.Mutex
	last memory.SimilarityQuery
}

func (s *queryRecordingStore) QuerySimilar(ctx context.Context, q memory.SimilarityQuery) ([]memory.ScoredChunk, error) {
	s.mu.Lock()
	s.last = q
	s.mu.Unlock()
	return nil, nil
}

func TestRetriever_AppliesDefaults(t *testing.T) {
	store := &queryRecordingStore{}
	r := memory.NewRetriever(store, &fakeEmbedder{})

	_, err := r.Search(context.Background(), memory.SearchRequest{
		OwnerID:  "user1",
		Category: memory.CategoryWork,
		Query:    "quarterly goals",
	})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if store.last.TopK != memory.DefaultTopK {
		t.Errorf("Expected default top-k %d, got %d", memory.DefaultTopK, store.last.TopK)
	}
	if store.last.Threshold != memory.DefaultThreshold {
		t.Errorf("Expected default threshold %v, got %v", memory.DefaultThreshold, store.last.Threshold)
	}
}

func TestRetriever_ExplicitZeroThreshold(t *testing.T) {
	store := &queryRecordingStore{}
	r := memory.NewRetriever(store, &fakeEmbedder{})

	zero := 0.0
	_, err := r.Search(context.Background(), memory.SearchRequest{
		OwnerID:   "user1",
		Category:  memory.CategoryWork,
		Query:     "anything",
		Threshold: &zero,
	})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if store.last.Threshold != 0 {
		t.Errorf("Explicit zero threshold must not be replaced by the default, got %v", store.last.Threshold)
	}
}

func TestRetriever_Validation(t *testing.T) {
	r := memory.NewRetriever(&queryRecordingStore{}, &fakeEmbedder{})
	ctx := context.Background()

	cases := []struct {
		name string
		req  memory.SearchRequest
	}{
		{"missing owner", memory.SearchRequest{Category: memory.CategoryWork, Query: "q"}},
		{"empty query", memory.SearchRequest{OwnerID: "u", Category: memory.CategoryWork, Query: "  "}},
		{"bad category", memory.SearchRequest{OwnerID: "u", Category: "emails", Query: "q"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := r.Search(ctx, tc.req)
			var verr *memory.ValidationError
			if !errors.As(err, &verr) {
				t.Errorf("Expected ValidationError, got %v", err)
			}
		})
	}
}
