package memory_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/daybook-ai/memengine/memory"
)

// fakeStore is an in-memory Store that records every insert.
type fakeStore struct {
	mu     sync.Mutex
	chunks []*memory.Chunk
}

func (s *fakeStore) Insert(ctx context.Context, chunk *memory.Chunk) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks = append(s.chunks, chunk)
	return chunk.ID, nil
}

func (s *fakeStore) InsertBatch(ctx context.Context, chunks []*memory.Chunk) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, len(chunks))
	for i, c := range chunks {
		s.chunks = append(s.chunks, c)
		ids[i] = c.ID
	}
	return ids, nil
}

func (s *fakeStore) QuerySimilar(ctx context.Context, q memory.SimilarityQuery) ([]memory.ScoredChunk, error) {
	return nil, nil
}

func (s *fakeStore) Close() error { return nil }

func (s *fakeStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.chunks)
}

// fakeEmbedder returns fixed-size vectors and can fail on chosen texts.
type fakeEmbedder struct {
	mu       sync.Mutex
	calls    int
	failText string
}

func (e *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()
	if e.failText != "" && strings.Contains(text, e.failText) {
		return nil, &memory.ExternalServiceError{Service: "embedding", Err: errors.New("boom")}
	}
	return []float32{1, 0, 0, 0}, nil
}

func (e *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := e.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (e *fakeEmbedder) Dimensions() int { return 4 }

func (e *fakeEmbedder) callCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

// fakeCategorizer returns a fixed classification or a fixed error.
type fakeCategorizer struct {
	cls memory.Classification
	err error
}

func (c *fakeCategorizer) Categorize(ctx context.Context, content string) (memory.Classification, error) {
	if c.err != nil {
		return memory.Classification{}, c.err
	}
	return c.cls, nil
}

func TestPipeline_FinanceEndToEnd(t *testing.T) {
	store := &fakeStore{}
	embedder := &fakeEmbedder{}
	categorizer := &fakeCategorizer{cls: memory.Classification{
		Summary:  "Paid rent and renewed insurance.",
		Category: memory.CategoryFinance,
	}}
	p := memory.NewPipeline(store, embedder, categorizer)

	text := "Paid rent $1200 on the 1st. Renewed car insurance for $800/year."
	report, err := p.IngestText(context.Background(), "user1", text, memory.SourceNote)
	if err != nil {
		t.Fatalf("Failed to ingest: %v", err)
	}

	// Short text, no entities: summary chunk + whole-content chunk.
	if store.count() != 2 {
		t.Fatalf("Expected exactly 2 stored chunks, got %d", store.count())
	}
	if len(report.StoredIDs) != 2 {
		t.Errorf("Expected 2 stored IDs in report, got %d", len(report.StoredIDs))
	}
	for _, chunk := range store.chunks {
		if chunk.Category != memory.CategoryFinance {
			t.Errorf("Expected finance category, got %q", chunk.Category)
		}
		if chunk.SourceType != memory.SourceNote {
			t.Errorf("Expected note source type, got %q", chunk.SourceType)
		}
	}
}

func TestPipeline_EntityChunkStored(t *testing.T) {
	store := &fakeStore{}
	categorizer := &fakeCategorizer{cls: memory.Classification{
		Summary:            "Quarterly planning notes.",
		EntitiesOrInsights: []string{"Q3 roadmap", "hiring freeze"},
		Category:           memory.CategoryWork,
	}}
	p := memory.NewPipeline(store, &fakeEmbedder{}, categorizer)

	_, err := p.IngestText(context.Background(), "user1", "Discussed the Q3 roadmap.", memory.SourceNote)
	if err != nil {
		t.Fatalf("Failed to ingest: %v", err)
	}

	// Summary + entity chunk + whole-content chunk.
	if store.count() != 3 {
		t.Fatalf("Expected 3 stored chunks, got %d", store.count())
	}
	foundEntity := false
	for _, chunk := range store.chunks {
		if strings.HasPrefix(chunk.Content, "Key points:") {
			foundEntity = true
			if !strings.Contains(chunk.Content, "Q3 roadmap") {
				t.Errorf("Entity chunk missing entities: %q", chunk.Content)
			}
		}
	}
	if !foundEntity {
		t.Error("Expected an entity chunk to be stored")
	}
}

func TestPipeline_EmptyContentNoRemoteCall(t *testing.T) {
	store := &fakeStore{}
	embedder := &fakeEmbedder{}
	p := memory.NewPipeline(store, embedder, &fakeCategorizer{})

	_, err := p.IngestText(context.Background(), "user1", "   \n\t ", memory.SourceNote)
	var verr *memory.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Expected ValidationError, got %v", err)
	}
	if embedder.callCount() != 0 {
		t.Errorf("Expected no embedding calls for empty content, got %d", embedder.callCount())
	}
	if store.count() != 0 {
		t.Errorf("Expected no stored chunks, got %d", store.count())
	}
}

func TestPipeline_CategorizerFailureFallsBack(t *testing.T) {
	store := &fakeStore{}
	categorizer := &fakeCategorizer{err: &memory.ExternalServiceError{
		Service: "classification", Err: errors.New("rate limited"),
	}}
	p := memory.NewPipeline(store, &fakeEmbedder{}, categorizer)

	text := "Some note that could not be classified."
	report, err := p.IngestText(context.Background(), "user1", text, memory.SourceNote)
	if err != nil {
		t.Fatalf("Categorizer failure must not abort ingestion: %v", err)
	}
	if !report.Degraded {
		t.Error("Expected degraded report after categorizer failure")
	}
	if report.Category != memory.CategoryGeneral {
		t.Errorf("Expected fallback category general, got %q", report.Category)
	}
	if report.Summary != text {
		t.Errorf("Expected fallback summary to be the content prefix, got %q", report.Summary)
	}
	if store.count() == 0 {
		t.Error("Expected chunks stored despite categorizer failure")
	}
}

func TestPipeline_EmbeddingFailureIsolated(t *testing.T) {
	store := &fakeStore{}
	embedder := &fakeEmbedder{failText: "Key points:"}
	categorizer := &fakeCategorizer{cls: memory.Classification{
		Summary:            "A summary.",
		EntitiesOrInsights: []string{"entity"},
		Category:           memory.CategoryGeneral,
	}}
	p := memory.NewPipeline(store, embedder, categorizer)

	report, err := p.IngestText(context.Background(), "user1", "Some content here.", memory.SourceNote)
	if err != nil {
		t.Fatalf("Per-chunk embedding failure must not abort ingestion: %v", err)
	}
	if report.Dropped != 1 {
		t.Errorf("Expected 1 dropped chunk, got %d", report.Dropped)
	}
	// Summary and content chunks survive; only the entity chunk dropped.
	if store.count() != 2 {
		t.Errorf("Expected 2 stored chunks, got %d", store.count())
	}
}

func TestPipeline_DuplicateIngestionDoubles(t *testing.T) {
	store := &fakeStore{}
	categorizer := &fakeCategorizer{cls: memory.Classification{
		Summary:  "A summary.",
		Category: memory.CategoryGeneral,
	}}
	p := memory.NewPipeline(store, &fakeEmbedder{}, categorizer)

	text := "The same document, ingested twice."
	ctx := context.Background()
	if _, err := p.IngestText(ctx, "user1", text, memory.SourceNote); err != nil {
		t.Fatalf("First ingest failed: %v", err)
	}
	first := store.count()
	if _, err := p.IngestText(ctx, "user1", text, memory.SourceNote); err != nil {
		t.Fatalf("Second ingest failed: %v", err)
	}

	// Ingestion is intentionally not idempotent: re-running doubles rows.
	if store.count() != 2*first {
		t.Errorf("Expected %d chunks after double ingestion, got %d", 2*first, store.count())
	}
}

func TestPipeline_InvalidSourceType(t *testing.T) {
	p := memory.NewPipeline(&fakeStore{}, &fakeEmbedder{}, &fakeCategorizer{})
	_, err := p.IngestText(context.Background(), "user1", "text", memory.SourceType("email"))
	var verr *memory.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Expected ValidationError for unknown source type, got %v", err)
	}
}

func TestFallbackClassification_TruncatesSummary(t *testing.T) {
	long := strings.Repeat("x", 600)
	cls := memory.FallbackClassification(long)
	if cls.Category != memory.CategoryGeneral {
		t.Errorf("Expected general category, got %q", cls.Category)
	}
	if len(cls.Summary) != memory.DefaultFallbackSummaryChars {
		t.Errorf("Expected summary of %d chars, got %d", memory.DefaultFallbackSummaryChars, len(cls.Summary))
	}
}
