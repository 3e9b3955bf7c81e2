package memory

import (
	"context"
	"strings"

	"go.uber.org/zap"
)

// Retrieval defaults.
const (
	DefaultTopK      = 5
	DefaultThreshold = 0.5
)

// SearchRequest is a free-text similarity query scoped to one owner and
// category. TopK <= 0 uses DefaultTopK; a nil Threshold uses
// DefaultThreshold (zero is a valid explicit threshold).
type SearchRequest struct {
	OwnerID   string
	Category  Category
	Query     string
	TopK      int
	Threshold *float64
}

// RetrieverOption configures a Retriever.
type RetrieverOption func(*Retriever)

// WithRetrieverLogger sets the retriever logger.
func WithRetrieverLogger(l *zap.Logger) RetrieverOption {
	return func(r *Retriever) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithSearchDefaults overrides the default top-k and threshold.
func WithSearchDefaults(topK int, threshold float64) RetrieverOption {
	return func(r *Retriever) {
		if topK > 0 {
			r.topK = topK
		}
		r.threshold = threshold
	}
}

// Retriever embeds free-text queries and returns ranked chunks from the
// store, unmodified, for downstream context assembly.
type Retriever struct {
	store     Store
	embedder  Embedder
	topK      int
	threshold float64
	logger    *zap.Logger
}

// NewRetriever creates a retrieval service over the given backends.
func NewRetriever(store Store, embedder Embedder, opts ...RetrieverOption) *Retriever {
	r := &Retriever{
		store:     store,
		embedder:  embedder,
		topK:      DefaultTopK,
		threshold: DefaultThreshold,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Search embeds the query and returns chunks ranked by cosine similarity.
// Deterministic given deterministic embeddings: ties are broken by
// CreatedAt descending in the store.
func (r *Retriever) Search(ctx context.Context, req SearchRequest) ([]ScoredChunk, error) {
	if req.OwnerID == "" {
		return nil, &ValidationError{Field: "owner_id", Reason: "required"}
	}
	if strings.TrimSpace(req.Query) == "" {
		return nil, &ValidationError{Field: "query", Reason: "empty"}
	}
	if _, err := ParseCategory(string(req.Category)); err != nil {
		return nil, err
	}

	topK := req.TopK
	if topK <= 0 {
		topK = r.topK
	}
	threshold := r.threshold
	if req.Threshold != nil {
		threshold = *req.Threshold
	}

	embedding, err := r.embedder.Embed(ctx, req.Query)
	if err != nil {
		return nil, err
	}

	results, err := r.store.QuerySimilar(ctx, SimilarityQuery{
		OwnerID:   req.OwnerID,
		Category:  req.Category,
		Embedding: embedding,
		TopK:      topK,
		Threshold: threshold,
	})
	if err != nil {
		return nil, err
	}
	r.logger.Debug("search completed",
		zap.String("owner_id", req.OwnerID),
		zap.String("category", string(req.Category)),
		zap.Int("results", len(results)))
	return results, nil
}
