// Package sqlite implements the memory store on SQLite for durable,
// single-binary deployments. Similarity is brute-force cosine over the
// owner+category slice, which stays fast at personal-app scale.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	_ "modernc.org/sqlite"

	"github.com/daybook-ai/memengine/memory"
)

// Store is a SQLite backed memory.Store.
type Store struct {
	db   *sql.DB
	dims int
}

// New opens or creates the database at path. All embeddings must have
// the given dimension.
func New(path string, dims int) (*Store, error) {
	if dims <= 0 {
		return nil, fmt.Errorf("invalid embedding dimension %d", dims)
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	s := &Store{db: db, dims: dims}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS memory_chunks (
		id          TEXT PRIMARY KEY,
		owner_id    TEXT NOT NULL,
		content     TEXT NOT NULL,
		category    TEXT NOT NULL,
		source_type TEXT NOT NULL,
		embedding   BLOB NOT NULL,
		created_at  TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_chunks_owner_category ON memory_chunks(owner_id, category);
	CREATE INDEX IF NOT EXISTS idx_chunks_created ON memory_chunks(created_at DESC);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Insert persists one chunk.
func (s *Store) Insert(ctx context.Context, chunk *memory.Chunk) (string, error) {
	if err := s.validate(chunk); err != nil {
		return "", err
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO memory_chunks (id, owner_id, content, category, source_type, embedding, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		chunk.ID, chunk.OwnerID, chunk.Content, string(chunk.Category), string(chunk.SourceType),
		encodeEmbedding(chunk.Embedding), chunk.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return "", &memory.StorageError{Op: "insert", Err: err}
	}
	return chunk.ID, nil
}

// InsertBatch persists chunks in one transaction. The returned IDs are
// 1:1, in order, with the input.
func (s *Store) InsertBatch(ctx context.Context, chunks []*memory.Chunk) ([]string, error) {
	for _, chunk := range chunks {
		if err := s.validate(chunk); err != nil {
			return nil, err
		}
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, &memory.StorageError{Op: "insert batch", Err: err}
	}
	defer tx.Rollback()

	ids := make([]string, len(chunks))
	for i, chunk := range chunks {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO memory_chunks (id, owner_id, content, category, source_type, embedding, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			chunk.ID, chunk.OwnerID, chunk.Content, string(chunk.Category), string(chunk.SourceType),
			encodeEmbedding(chunk.Embedding), chunk.CreatedAt.UTC().Format(time.RFC3339Nano))
		if err != nil {
			return nil, &memory.StorageError{Op: "insert batch", Err: err}
		}
		ids[i] = chunk.ID
	}
	if err := tx.Commit(); err != nil {
		return nil, &memory.StorageError{Op: "insert batch", Err: err}
	}
	return ids, nil
}

// QuerySimilar scans the owner+category slice and ranks by cosine
// similarity, ties broken by recency.
func (s *Store) QuerySimilar(ctx context.Context, q memory.SimilarityQuery) ([]memory.ScoredChunk, error) {
	if len(q.Embedding) != s.dims {
		return nil, &memory.DimensionError{Want: s.dims, Got: len(q.Embedding)}
	}
	topK := q.TopK
	if topK <= 0 {
		topK = memory.DefaultTopK
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, content, source_type, embedding, created_at
		 FROM memory_chunks WHERE owner_id = ? AND category = ?`,
		q.OwnerID, string(q.Category))
	if err != nil {
		return nil, &memory.StorageError{Op: "query", Err: err}
	}
	defer rows.Close()

	var scored []memory.ScoredChunk
	for rows.Next() {
		var id, content, sourceType, createdAt string
		var blob []byte
		if err := rows.Scan(&id, &content, &sourceType, &blob, &createdAt); err != nil {
			return nil, &memory.StorageError{Op: "query", Err: err}
		}
		sim := memory.CosineSimilarity(q.Embedding, decodeEmbedding(blob))
		if sim < q.Threshold {
			continue
		}
		ts, _ := time.Parse(time.RFC3339Nano, createdAt)
		scored = append(scored, memory.ScoredChunk{
			ID:         id,
			Content:    content,
			Category:   q.Category,
			SourceType: memory.SourceType(sourceType),
			CreatedAt:  ts,
			Similarity: sim,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, &memory.StorageError{Op: "query", Err: err}
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
	return scored, nil
}

// Count returns the number of stored chunks, for status reporting.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM memory_chunks`).Scan(&n)
	if err != nil {
		return 0, &memory.StorageError{Op: "count", Err: err}
	}
	return n, nil
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) validate(chunk *memory.Chunk) error {
	if err := chunk.Validate(); err != nil {
		return err
	}
	if len(chunk.Embedding) != s.dims {
		return &memory.DimensionError{Want: s.dims, Got: len(chunk.Embedding)}
	}
	return nil
}

// encodeEmbedding packs a vector as little-endian float32 bits.
func encodeEmbedding(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(x))
	}
	return buf
}

func decodeEmbedding(buf []byte) []float32 {
	v := make([]float32, len(buf)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return v
}
