// Package ingest runs memory ingestion as a detached background
// operation. Callers enqueue a document and return immediately; a worker
// pool drains the queue, retrying transient failures. Ingestion failure
// is never surfaced to the caller that triggered it.
package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/daybook-ai/memengine/doctree"
	"github.com/daybook-ai/memengine/memory"
)

// Config tunes the worker pool.
type Config struct {
	// Workers is the number of concurrent ingestion workers. Default 4.
	Workers int

	// QueueSize bounds pending jobs. Default 256.
	QueueSize int

	// JobTimeout bounds one ingestion attempt. Default 2m.
	JobTimeout time.Duration

	// MaxAttempts bounds retries per job. Default 3.
	MaxAttempts int

	// RetryBackoff is the base delay between attempts, scaled linearly
	// by attempt number. Default 2s.
	RetryBackoff time.Duration
}

func (c *Config) applyDefaults() {
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 256
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = 2 * time.Minute
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = 2 * time.Second
	}
}

// Job is one queued ingestion request.
type Job struct {
	ID         string
	OwnerID    string
	SourceType memory.SourceType
	Text       string
	EnqueuedAt time.Time

	key string
}

// Stats is a point-in-time snapshot of queue counters.
type Stats struct {
	Enqueued  int64 `json:"enqueued"`
	Coalesced int64 `json:"coalesced"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
	Pending   int   `json:"pending"`
}

// ErrQueueFull is returned when the queue cannot accept another job.
var ErrQueueFull = errors.New("ingestion queue is full")

// Queue is a bounded background ingestion queue over a worker pool.
type Queue struct {
	pipeline *memory.Pipeline
	cfg      Config
	logger   *zap.Logger

	jobs chan *Job

	mu       sync.Mutex
	inflight map[string]string // content key -> job ID

	wg      sync.WaitGroup
	started atomic.Bool
	stopped atomic.Bool

	enqueued  atomic.Int64
	coalesced atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64
}

// NewQueue creates a queue draining into the given pipeline.
func NewQueue(pipeline *memory.Pipeline, cfg Config, logger *zap.Logger) *Queue {
	cfg.applyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Queue{
		pipeline: pipeline,
		cfg:      cfg,
		logger:   logger,
		jobs:     make(chan *Job, cfg.QueueSize),
		inflight: make(map[string]string),
	}
}

// Start launches the worker pool. Workers stop when ctx is canceled or
// Stop is called.
func (q *Queue) Start(ctx context.Context) {
	if !q.started.CompareAndSwap(false, true) {
		return
	}
	for i := 0; i < q.cfg.Workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx, i)
	}
	q.logger.Info("ingestion queue started",
		zap.Int("workers", q.cfg.Workers),
		zap.Int("queue_size", q.cfg.QueueSize))
}

// Stop closes the queue and waits for in-flight jobs to finish.
func (q *Queue) Stop() {
	if !q.stopped.CompareAndSwap(false, true) {
		return
	}
	close(q.jobs)
	q.wg.Wait()
	q.logger.Info("ingestion queue stopped")
}

// Enqueue schedules text for ingestion and returns the job ID without
// waiting for the result. A duplicate of a job still in flight coalesces
// onto that job's ID; once a job completes, re-submitting the same
// content schedules a fresh run and stores duplicate chunks.
func (q *Queue) Enqueue(ownerID string, source memory.SourceType, text string) (string, error) {
	if ownerID == "" {
		return "", &memory.ValidationError{Field: "owner_id", Reason: "required"}
	}
	if _, err := memory.ParseSourceType(string(source)); err != nil {
		return "", err
	}
	if text == "" {
		return "", &memory.ValidationError{Field: "content", Reason: "empty"}
	}
	if q.stopped.Load() {
		return "", errors.New("ingestion queue is stopped")
	}

	key := contentKey(ownerID, source, text)

	q.mu.Lock()
	if existing, ok := q.inflight[key]; ok {
		q.mu.Unlock()
		q.coalesced.Add(1)
		return existing, nil
	}
	job := &Job{
		ID:         ulid.Make().String(),
		OwnerID:    ownerID,
		SourceType: source,
		Text:       text,
		EnqueuedAt: time.Now().UTC(),
		key:        key,
	}
	q.inflight[key] = job.ID
	q.mu.Unlock()

	select {
	case q.jobs <- job:
		q.enqueued.Add(1)
		return job.ID, nil
	default:
		q.mu.Lock()
		delete(q.inflight, key)
		q.mu.Unlock()
		return "", ErrQueueFull
	}
}

// EnqueueDocument extracts text from a structured document and enqueues
// it. An empty document is a ValidationError, rejected before queueing.
func (q *Queue) EnqueueDocument(ownerID string, source memory.SourceType, doc *doctree.Node) (string, error) {
	return q.Enqueue(ownerID, source, doctree.Extract(doc))
}

// Stats returns current queue counters.
func (q *Queue) Stats() Stats {
	return Stats{
		Enqueued:  q.enqueued.Load(),
		Coalesced: q.coalesced.Load(),
		Completed: q.completed.Load(),
		Failed:    q.failed.Load(),
		Pending:   len(q.jobs),
	}
}

func (q *Queue) worker(ctx context.Context, id int) {
	defer q.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-q.jobs:
			if !ok {
				return
			}
			q.process(ctx, job)
		}
	}
}

// process runs one job with per-attempt timeouts and linear backoff.
// Validation errors are dropped immediately; other failures retry up to
// MaxAttempts. The content key is released only after the job finishes,
// so in-flight duplicates coalesce but later re-ingestion runs again.
func (q *Queue) process(ctx context.Context, job *Job) {
	defer func() {
		q.mu.Lock()
		delete(q.inflight, job.key)
		q.mu.Unlock()
	}()

	var lastErr error
	for attempt := 1; attempt <= q.cfg.MaxAttempts; attempt++ {
		jctx, cancel := context.WithTimeout(ctx, q.cfg.JobTimeout)
		report, err := q.pipeline.IngestText(jctx, job.OwnerID, job.Text, job.SourceType)
		cancel()

		if err == nil {
			q.completed.Add(1)
			q.logger.Info("ingestion job completed",
				zap.String("job_id", job.ID),
				zap.String("owner_id", job.OwnerID),
				zap.Int("chunks", len(report.StoredIDs)),
				zap.Int("dropped", report.Dropped),
				zap.Int("attempt", attempt))
			return
		}

		var verr *memory.ValidationError
		if errors.As(err, &verr) {
			q.failed.Add(1)
			q.logger.Warn("ingestion job dropped",
				zap.String("job_id", job.ID), zap.Error(err))
			return
		}

		lastErr = err
		q.logger.Warn("ingestion attempt failed",
			zap.String("job_id", job.ID),
			zap.Int("attempt", attempt),
			zap.Error(err))
		if attempt < q.cfg.MaxAttempts {
			select {
			case <-ctx.Done():
				return
			case <-time.After(q.cfg.RetryBackoff * time.Duration(attempt)):
			}
		}
	}

	q.failed.Add(1)
	q.logger.Error("ingestion job failed",
		zap.String("job_id", job.ID),
		zap.String("owner_id", job.OwnerID),
		zap.Error(lastErr))
}

// contentKey identifies a document for in-flight coalescing.
func contentKey(ownerID string, source memory.SourceType, text string) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%s", ownerID, source, text)))
	return hex.EncodeToString(sum[:])
}
