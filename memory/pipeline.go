package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/daybook-ai/memengine/doctree"
)

// DefaultFallbackSummaryChars bounds the fallback summary taken from the
// content prefix when categorization fails.
const DefaultFallbackSummaryChars = 500

// DefaultEmbedConcurrency bounds the embedding fan-out per ingestion run.
const DefaultEmbedConcurrency = 8

// FallbackClassification is the deterministic degraded-mode classification:
// category "general" with the content prefix as summary. It never fails.
func FallbackClassification(content string) Classification {
	return Classification{
		Summary:  truncateRunes(strings.TrimSpace(content), DefaultFallbackSummaryChars),
		Category: CategoryGeneral,
	}
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithChunker overrides the default chunker.
func WithChunker(c *Chunker) PipelineOption {
	return func(p *Pipeline) { p.chunker = c }
}

// WithEmbedConcurrency bounds the number of concurrent embedding calls.
func WithEmbedConcurrency(n int) PipelineOption {
	return func(p *Pipeline) {
		if n > 0 {
			p.concurrency = n
		}
	}
}

// WithPipelineLogger sets the pipeline logger.
func WithPipelineLogger(l *zap.Logger) PipelineOption {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// Pipeline orchestrates ingestion of one source document: extract,
// categorize, chunk, embed, store. Every run is best-effort: a failed
// categorization degrades to the deterministic fallback and a failed
// embedding drops only the affected chunk.
type Pipeline struct {
	store       Store
	embedder    Embedder
	categorizer Categorizer
	chunker     *Chunker
	concurrency int
	logger      *zap.Logger
}

// NewPipeline creates an ingestion pipeline over the given backends.
func NewPipeline(store Store, embedder Embedder, categorizer Categorizer, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		store:       store,
		embedder:    embedder,
		categorizer: categorizer,
		chunker:     NewChunker(DefaultMaxChunkLength),
		concurrency: DefaultEmbedConcurrency,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// IngestReport describes the outcome of one ingestion run.
type IngestReport struct {
	OwnerID    string     `json:"owner_id"`
	SourceType SourceType `json:"source_type"`
	Category   Category   `json:"category"`
	Summary    string     `json:"summary"`
	StoredIDs  []string   `json:"stored_ids"`
	Dropped    int        `json:"dropped"`
	Degraded   bool       `json:"degraded"`
}

// Ingest extracts text from a structured document and ingests it.
func (p *Pipeline) Ingest(ctx context.Context, ownerID string, doc *doctree.Node, source SourceType) (*IngestReport, error) {
	return p.IngestText(ctx, ownerID, doctree.Extract(doc), source)
}

// IngestText categorizes, chunks, embeds and stores the given text for an
// owner. Empty or whitespace content is a ValidationError and aborts
// before any remote call. Re-ingesting the same text stores duplicate
// chunks; the store is append-only and ingestion is not idempotent.
func (p *Pipeline) IngestText(ctx context.Context, ownerID, text string, source SourceType) (*IngestReport, error) {
	if ownerID == "" {
		return nil, &ValidationError{Field: "owner_id", Reason: "required"}
	}
	if _, err := ParseSourceType(string(source)); err != nil {
		return nil, err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, &ValidationError{Field: "content", Reason: "empty"}
	}

	cls, err := p.categorizer.Categorize(ctx, text)
	degraded := false
	if err != nil {
		p.logger.Warn("categorization failed, using fallback",
			zap.String("owner_id", ownerID), zap.Error(err))
		cls = FallbackClassification(text)
		degraded = true
	}
	if _, err := ParseCategory(string(cls.Category)); err != nil {
		cls.Category = CategoryGeneral
	}

	texts := p.chunkTexts(text, cls)
	vectors, errs := p.embedAll(ctx, texts)

	report := &IngestReport{
		OwnerID:    ownerID,
		SourceType: source,
		Category:   cls.Category,
		Summary:    cls.Summary,
		Degraded:   degraded,
	}

	var chunks []*Chunk
	for i := range texts {
		if errs[i] != nil {
			report.Dropped++
			p.logger.Warn("embedding failed, dropping chunk",
				zap.String("owner_id", ownerID), zap.Int("chunk", i), zap.Error(errs[i]))
			continue
		}
		chunks = append(chunks, NewChunk(ownerID, texts[i], cls.Category, source, vectors[i]))
	}
	if len(chunks) == 0 {
		return report, nil
	}

	ids, err := p.store.InsertBatch(ctx, chunks)
	if err != nil {
		return report, err
	}
	report.StoredIDs = ids
	p.logger.Info("ingested document",
		zap.String("owner_id", ownerID),
		zap.String("category", string(cls.Category)),
		zap.String("source_type", string(source)),
		zap.Int("chunks", len(ids)),
		zap.Int("dropped", report.Dropped))
	return report, nil
}

// chunkTexts assembles the texts to store: a summary chunk, an entity
// chunk when entities/insights are present, and the content chunks. The
// summary and raw-content chunks commonly overlap; the redundancy is
// intentional, it improves recall under different phrasings.
func (p *Pipeline) chunkTexts(text string, cls Classification) []string {
	var texts []string
	if s := strings.TrimSpace(cls.Summary); s != "" {
		texts = append(texts, s)
	}
	if len(cls.EntitiesOrInsights) > 0 {
		texts = append(texts, entityChunkText(cls))
	}
	if len(text) <= p.chunker.MaxLength() {
		// Fast path: the whole document fits in one chunk.
		texts = append(texts, text)
	} else {
		texts = append(texts, p.chunker.Chunk(text)...)
	}
	return texts
}

// embedAll fans out embedding calls with bounded concurrency. Results and
// errors are index-aligned with the input; a failed call affects only its
// own slot.
func (p *Pipeline) embedAll(ctx context.Context, texts []string) ([][]float32, []error) {
	vectors := make([][]float32, len(texts))
	errs := make([]error, len(texts))
	sem := make(chan struct{}, p.concurrency)
	var wg sync.WaitGroup
	for i, t := range texts {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, t string) {
			defer wg.Done()
			defer func() { <-sem }()
			vectors[i], errs[i] = p.embedder.Embed(ctx, t)
		}(i, t)
	}
	wg.Wait()
	return vectors, errs
}

func entityChunkText(cls Classification) string {
	return fmt.Sprintf("Key points: %s. %s",
		strings.Join(cls.EntitiesOrInsights, ", "), cls.Summary)
}

// truncateRunes truncates s to at most max runes.
func truncateRunes(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
