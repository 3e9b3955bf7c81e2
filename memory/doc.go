// Package memory implements the ingestion and retrieval core of the
// engine: categorized, embedded text chunks scoped to an owner.
//
// The memory system turns arbitrary user content (notes, recording
// transcripts, chat turns) into retrievable chunks and answers free-text
// queries by vector similarity. Chunks are append-only and namespaced by
// OwnerID.
//
// Architecture:
//   - Store: vector storage backend (chromem-go in-process, SQLite durable)
//   - Embedder: text-to-vector conversion (OpenAI API, cached, or mock)
//   - Categorizer: remote classification into the fixed category taxonomy
//   - Pipeline: orchestrates extract -> categorize -> chunk -> embed -> store
//   - Retriever: embeds a query and returns ranked chunks
//
// Remote failures degrade rather than abort: categorization falls back to
// a deterministic classification, and an embedding failure drops only the
// affected chunk.
package memory
