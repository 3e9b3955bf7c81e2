package memory

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Category is the fixed classification taxonomy applied to every chunk.
type Category string

const (
	CategoryFinance Category = "finance"
	CategoryWork    Category = "work"
	CategoryHealth  Category = "health"
	CategoryGeneral Category = "general"
)

// Categories lists the taxonomy in canonical order.
var Categories = []Category{CategoryFinance, CategoryWork, CategoryHealth, CategoryGeneral}

// ParseCategory validates a category value. Anything outside the taxonomy
// is rejected.
func ParseCategory(s string) (Category, error) {
	switch c := Category(strings.ToLower(strings.TrimSpace(s))); c {
	case CategoryFinance, CategoryWork, CategoryHealth, CategoryGeneral:
		return c, nil
	default:
		return "", &ValidationError{Field: "category", Reason: fmt.Sprintf("unknown category %q", s)}
	}
}

// SourceType identifies the kind of document a chunk came from. It is
// provenance only, never an enforced foreign key.
type SourceType string

const (
	SourceChat      SourceType = "chat"
	SourceNote      SourceType = "note"
	SourceRecording SourceType = "recording"
)

// ParseSourceType validates a source type value.
func ParseSourceType(s string) (SourceType, error) {
	switch st := SourceType(strings.ToLower(strings.TrimSpace(s))); st {
	case SourceChat, SourceNote, SourceRecording:
		return st, nil
	default:
		return "", &ValidationError{Field: "source_type", Reason: fmt.Sprintf("unknown source type %q", s)}
	}
}

// TagResourceType identifies the resource a tag suggestion is for.
type TagResourceType string

const (
	TagResourceNote      TagResourceType = "note"
	TagResourceRecording TagResourceType = "recording"
	TagResourceTask      TagResourceType = "task"
)

// ParseTagResourceType validates a tag resource type value.
func ParseTagResourceType(s string) (TagResourceType, error) {
	switch rt := TagResourceType(strings.ToLower(strings.TrimSpace(s))); rt {
	case TagResourceNote, TagResourceRecording, TagResourceTask:
		return rt, nil
	default:
		return "", &ValidationError{Field: "resource_type", Reason: fmt.Sprintf("unknown resource type %q", s)}
	}
}

// Chunk is the atomic retrievable unit: one stored, embedded, categorized
// piece of text. Chunks are created once and never mutated.
type Chunk struct {
	ID         string     `json:"id"`
	OwnerID    string     `json:"owner_id"`
	Content    string     `json:"content"`
	Category   Category   `json:"category"`
	SourceType SourceType `json:"source_type"`
	Embedding  []float32  `json:"-"`
	CreatedAt  time.Time  `json:"created_at"`
}

// NewChunk creates a chunk with a fresh ID and creation timestamp.
func NewChunk(ownerID, content string, category Category, source SourceType, embedding []float32) *Chunk {
	return &Chunk{
		ID:         uuid.NewString(),
		OwnerID:    ownerID,
		Content:    content,
		Category:   category,
		SourceType: source,
		Embedding:  embedding,
		CreatedAt:  time.Now().UTC(),
	}
}

// Validate checks the fields required before a chunk may be stored.
func (c *Chunk) Validate() error {
	if c.OwnerID == "" {
		return &ValidationError{Field: "owner_id", Reason: "required"}
	}
	if strings.TrimSpace(c.Content) == "" {
		return &ValidationError{Field: "content", Reason: "empty"}
	}
	if _, err := ParseCategory(string(c.Category)); err != nil {
		return err
	}
	if _, err := ParseSourceType(string(c.SourceType)); err != nil {
		return err
	}
	if len(c.Embedding) == 0 {
		return &ValidationError{Field: "embedding", Reason: "missing"}
	}
	return nil
}

// ScoredChunk is a query result: a stored chunk plus its cosine
// similarity to the query embedding.
type ScoredChunk struct {
	ID         string     `json:"id"`
	Content    string     `json:"content"`
	Category   Category   `json:"category"`
	SourceType SourceType `json:"source_type"`
	CreatedAt  time.Time  `json:"created_at"`
	Similarity float64    `json:"similarity"`
}

// SimilarityQuery scopes a nearest-neighbor query to one owner and
// category.
type SimilarityQuery struct {
	OwnerID   string
	Category  Category
	Embedding []float32
	TopK      int
	Threshold float64
}

// Store is the vector storage backend. Rows are append-only from this
// interface's perspective; deletion happens only as part of account data
// removal, outside this contract.
//
// Implementations: chromem (in-process), sqlite (durable).
type Store interface {
	// Insert persists one chunk and returns its ID.
	Insert(ctx context.Context, chunk *Chunk) (string, error)

	// InsertBatch persists chunks in one round trip. The returned IDs
	// correspond 1:1, in order, with the input.
	InsertBatch(ctx context.Context, chunks []*Chunk) ([]string, error)

	// QuerySimilar returns chunks matching the query's owner and category
	// with cosine similarity >= Threshold, sorted by similarity descending
	// (ties broken by CreatedAt descending), truncated to TopK.
	QuerySimilar(ctx context.Context, q SimilarityQuery) ([]ScoredChunk, error)

	// Close releases resources.
	Close() error
}

// Embedder converts text to fixed-dimension vectors. Remote failures are
// returned as *ExternalServiceError; retry policy belongs to the caller.
type Embedder interface {
	// Embed converts a single text to an embedding vector.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch embeds several texts, order-preserving.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding vector size.
	Dimensions() int
}

// Classification is the output of the categorization step.
type Classification struct {
	Summary            string   `json:"summary"`
	EntitiesOrInsights []string `json:"entities_or_insights"`
	Category           Category `json:"category"`
}

// Categorizer classifies content into the fixed taxonomy and produces a
// summary plus key entities/insights. Implementations call a remote
// model; callers apply the deterministic fallback on error.
type Categorizer interface {
	Categorize(ctx context.Context, content string) (Classification, error)
}

// TagSuggestion is one proposed free-form tag.
type TagSuggestion struct {
	Name       string  `json:"name"`
	Color      string  `json:"color"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

// TagRequest asks for tag suggestions for a piece of content. ExistingTags
// biases the suggester away from near-duplicates of tags the caller
// already has.
type TagRequest struct {
	Content      string
	ResourceType TagResourceType
	ExistingTags []string
}

// TagSuggester proposes 3-5 free-form tags for content. On remote failure
// callers surface an empty list, never partial suggestions.
type TagSuggester interface {
	SuggestTags(ctx context.Context, req TagRequest) ([]TagSuggestion, error)
}

// CosineSimilarity computes the cosine similarity of two vectors. Vectors
// of mismatched or zero length score 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
