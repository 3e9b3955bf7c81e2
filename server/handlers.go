package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/daybook-ai/memengine/doctree"
	"github.com/daybook-ai/memengine/memory"
)

type ingestRequest struct {
	OwnerID    string          `json:"owner_id"`
	SourceType string          `json:"source_type"`
	Content    string          `json:"content,omitempty"`
	Document   json.RawMessage `json:"document,omitempty"`
}

// handleIngest accepts a document for background ingestion and responds
// immediately with the job ID. Ingestion failures never reach this
// caller; the queue logs and retries on its own.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	text := req.Content
	if text == "" && len(req.Document) > 0 {
		text = doctree.Extract(doctree.Parse(req.Document))
	}

	jobID, err := s.queue.Enqueue(req.OwnerID, memory.SourceType(req.SourceType), text)
	if err != nil {
		var verr *memory.ValidationError
		if errors.As(err, &verr) {
			s.respondError(w, http.StatusBadRequest, verr.Error())
			return
		}
		s.logger.Error("enqueue failed", zap.Error(err))
		s.respondError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	s.respondJSON(w, http.StatusAccepted, map[string]string{"job_id": jobID, "status": "queued"})
}

type searchRequest struct {
	OwnerID   string   `json:"owner_id"`
	Category  string   `json:"category"`
	Query     string   `json:"query"`
	TopK      int      `json:"top_k,omitempty"`
	Threshold *float64 `json:"threshold,omitempty"`
}

type searchResult struct {
	ID         string    `json:"id"`
	Content    string    `json:"content"`
	Category   string    `json:"category"`
	SourceType string    `json:"source_type"`
	CreatedAt  time.Time `json:"created_at"`
	Similarity float64   `json:"similarity"`
}

// handleSearch runs a similarity search. Storage failures degrade to an
// empty result set rather than an error response.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	results, err := s.retriever.Search(r.Context(), memory.SearchRequest{
		OwnerID:   req.OwnerID,
		Category:  memory.Category(req.Category),
		Query:     req.Query,
		TopK:      req.TopK,
		Threshold: req.Threshold,
	})
	if err != nil {
		var verr *memory.ValidationError
		if errors.As(err, &verr) {
			s.respondError(w, http.StatusBadRequest, verr.Error())
			return
		}
		var serr *memory.StorageError
		if errors.As(err, &serr) {
			s.logger.Error("search storage failure", zap.Error(err))
			s.respondJSON(w, http.StatusOK, map[string]any{"results": []searchResult{}})
			return
		}
		s.logger.Error("search failed", zap.Error(err))
		s.respondError(w, http.StatusBadGateway, err.Error())
		return
	}

	out := make([]searchResult, 0, len(results))
	for _, res := range results {
		out = append(out, searchResult{
			ID:         res.ID,
			Content:    res.Content,
			Category:   string(res.Category),
			SourceType: string(res.SourceType),
			CreatedAt:  res.CreatedAt,
			Similarity: res.Similarity,
		})
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"results": out})
}

type suggestTagsRequest struct {
	Content      string   `json:"content"`
	ResourceType string   `json:"resource_type"`
	ExistingTags []string `json:"existing_tags,omitempty"`
}

// handleSuggestTags proposes tags for content. Remote failures degrade
// to an empty suggestion list, never partial output.
func (s *Server) handleSuggestTags(w http.ResponseWriter, r *http.Request) {
	if s.suggester == nil {
		s.respondError(w, http.StatusNotImplemented, "tag suggestion not configured")
		return
	}
	var req suggestTagsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	suggestions, err := s.suggester.SuggestTags(r.Context(), memory.TagRequest{
		Content:      req.Content,
		ResourceType: memory.TagResourceType(req.ResourceType),
		ExistingTags: req.ExistingTags,
	})
	if err != nil {
		var verr *memory.ValidationError
		if errors.As(err, &verr) {
			s.respondError(w, http.StatusBadRequest, verr.Error())
			return
		}
		s.logger.Warn("tag suggestion failed, returning empty list", zap.Error(err))
		suggestions = nil
	}
	if suggestions == nil {
		suggestions = []memory.TagSuggestion{}
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"suggestions": suggestions})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	stats := s.queue.Stats()
	resp := map[string]any{
		"queue": stats,
		"config": map[string]any{
			"store_type":           s.config.Store.Type,
			"embedding_model":      s.config.Embedding.Model,
			"embedding_dimensions": s.config.Embedding.Dimensions,
			"max_chunk_length":     s.config.Chunker.MaxChunkLength,
			"retrieval_top_k":      s.config.Retrieval.TopK,
			"retrieval_threshold":  s.config.Retrieval.Threshold,
		},
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
