// Package chromem implements the memory store on chromem-go, a pure Go
// embedded vector database. Each owner gets its own collection for
// namespace isolation.
package chromem

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	chromem "github.com/philippgille/chromem-go"
	"go.uber.org/zap"

	"github.com/daybook-ai/memengine/memory"
)

// Store is a chromem-go backed memory.Store.
type Store struct {
	db          *chromem.DB
	dims        int
	collections map[string]*chromem.Collection
	mu          sync.RWMutex
	logger      *zap.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the store logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates an in-process chromem store. All embeddings must have the
// given dimension.
func New(dims int, opts ...Option) (*Store, error) {
	if dims <= 0 {
		return nil, fmt.Errorf("invalid embedding dimension %d", dims)
	}
	s := &Store{
		db:          chromem.NewDB(),
		dims:        dims,
		collections: make(map[string]*chromem.Collection),
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// collection returns the owner's collection, creating it on first use.
func (s *Store) collection(ownerID string) (*chromem.Collection, error) {
	s.mu.RLock()
	col, ok := s.collections[ownerID]
	s.mu.RUnlock()
	if ok {
		return col, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if col, ok := s.collections[ownerID]; ok {
		return col, nil
	}

	// Embeddings are provided by the caller; no embedding func and the
	// default cosine distance.
	col, err := s.db.CreateCollection(fmt.Sprintf("owner_%s", ownerID), nil, nil)
	if err != nil {
		return nil, &memory.StorageError{Op: "create collection", Err: err}
	}
	s.collections[ownerID] = col
	return col, nil
}

// Insert persists one chunk.
func (s *Store) Insert(ctx context.Context, chunk *memory.Chunk) (string, error) {
	if err := s.validate(chunk); err != nil {
		return "", err
	}
	col, err := s.collection(chunk.OwnerID)
	if err != nil {
		return "", err
	}
	if err := col.AddDocument(ctx, toDocument(chunk)); err != nil {
		return "", &memory.StorageError{Op: "insert", Err: err}
	}
	return chunk.ID, nil
}

// InsertBatch persists chunks grouped per owner collection. The returned
// IDs are 1:1, in order, with the input.
func (s *Store) InsertBatch(ctx context.Context, chunks []*memory.Chunk) ([]string, error) {
	byOwner := make(map[string][]chromem.Document)
	ids := make([]string, len(chunks))
	for i, chunk := range chunks {
		if err := s.validate(chunk); err != nil {
			return nil, err
		}
		byOwner[chunk.OwnerID] = append(byOwner[chunk.OwnerID], toDocument(chunk))
		ids[i] = chunk.ID
	}
	for ownerID, docs := range byOwner {
		col, err := s.collection(ownerID)
		if err != nil {
			return nil, err
		}
		if err := col.AddDocuments(ctx, docs, 4); err != nil {
			return nil, &memory.StorageError{Op: "insert batch", Err: err}
		}
	}
	return ids, nil
}

// QuerySimilar returns chunks for the query's owner and category with
// cosine similarity >= Threshold, ranked by similarity then recency.
func (s *Store) QuerySimilar(ctx context.Context, q memory.SimilarityQuery) ([]memory.ScoredChunk, error) {
	if len(q.Embedding) != s.dims {
		return nil, &memory.DimensionError{Want: s.dims, Got: len(q.Embedding)}
	}
	topK := q.TopK
	if topK <= 0 {
		topK = memory.DefaultTopK
	}

	col, err := s.collection(q.OwnerID)
	if err != nil {
		return nil, err
	}
	where := map[string]string{"category": string(q.Category)}

	// chromem rejects nResults larger than the matching document count,
	// so over-fetch for the recency tie-break and shrink until it accepts.
	var results []chromem.Result
	for n := topK * 4; n >= 1; n-- {
		results, err = col.QueryEmbedding(ctx, q.Embedding, n, where, nil)
		if err == nil {
			break
		}
		if !isInsufficientDocsError(err) {
			return nil, &memory.StorageError{Op: "query", Err: err}
		}
		if n == 1 {
			return nil, nil
		}
	}

	var scored []memory.ScoredChunk
	for _, res := range results {
		sim := float64(res.Similarity)
		if sim < q.Threshold {
			continue
		}
		createdAt, _ := time.Parse(time.RFC3339Nano, res.Metadata["created_at"])
		scored = append(scored, memory.ScoredChunk{
			ID:         res.ID,
			Content:    res.Content,
			Category:   memory.Category(res.Metadata["category"]),
			SourceType: memory.SourceType(res.Metadata["source_type"]),
			CreatedAt:  createdAt,
			Similarity: sim,
		})
	}
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Similarity != scored[j].Similarity {
			return scored[i].Similarity > scored[j].Similarity
		}
		return scored[i].CreatedAt.After(scored[j].CreatedAt)
	})
	if len(scored) > topK {
		scored = scored[:topK]
	}
	s.logger.Debug("similarity query",
		zap.String("owner_id", q.OwnerID),
		zap.String("category", string(q.Category)),
		zap.Int("results", len(scored)))
	return scored, nil
}

// Close is a no-op; chromem keeps everything in memory.
func (s *Store) Close() error { return nil }

func (s *Store) validate(chunk *memory.Chunk) error {
	if err := chunk.Validate(); err != nil {
		return err
	}
	if len(chunk.Embedding) != s.dims {
		return &memory.DimensionError{Want: s.dims, Got: len(chunk.Embedding)}
	}
	return nil
}

func toDocument(chunk *memory.Chunk) chromem.Document {
	return chromem.Document{
		ID:        chunk.ID,
		Content:   chunk.Content,
		Embedding: chunk.Embedding,
		Metadata: map[string]string{
			"owner_id":    chunk.OwnerID,
			"category":    string(chunk.Category),
			"source_type": string(chunk.SourceType),
			"created_at":  chunk.CreatedAt.Format(time.RFC3339Nano),
		},
	}
}

// isInsufficientDocsError reports whether err means the collection holds
// fewer documents than requested.
func isInsufficientDocsError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "nResults must be") || strings.Contains(msg, "number of documents")
}
