package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/convoflow-ai/convoflow/internal/api"
	"github.com/convoflow-ai/convoflow/internal/domain"
	"github.com/convoflow-ai/convoflow/internal/service"
)

type SearchService interface {
	Search(ctx context.Context, input service.SearchInput) (*service.SearchOutput, error)
}

type SearchHandler struct {
	svc SearchService
}

func NewSearchHandler(svc SearchService) *SearchHandler {
	return &SearchHandler{svc: svc}
}

type SearchRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

type SearchResultResponse struct {
	ID          string  `json:"id"`
	Score       float32 `json:"score"`
	DocumentID  int64   `json:"document_id"`
	Title       string  `json:"title"`
	Content     string  `json:"content"`
	ChunkIndex  int     `json:"chunk_index"`
	TotalChunks int     `json:"total_chunks"`
	Relevance   string  `json:"relevance"`
}

type SearchResponse struct {
	Results      []*SearchResultResponse `json:"results"`
	TotalResults int                     `json:"total_results"`
	SearchMethod string                  `json:"search_method"`
}

func searchResultToResponse(r *domain.SearchResult) *SearchResultResponse {
	return &SearchResultResponse{
		ID:          r.ID,
		Score:       r.Score,
		DocumentID:  r.DocumentID,
		Title:       r.Title,
		Content:     r.Content,
		ChunkIndex:  r.ChunkIndex,
		TotalChunks: r.TotalChunks,
		Relevance:   string(r.Relevance),
	}
}

func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	botID, err := parseID(chi.URLParam(r, "botID"))
	if err != nil {
		api.Error(w, http.StatusBadRequest, "invalid bot id")
		return
	}

	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Query == "" {
		api.Error(w, http.StatusBadRequest, "query is required")
		return
	}

	out, err := h.svc.Search(r.Context(), service.SearchInput{
		BotID: botID,
		Query: req.Query,
		Limit: req.Limit,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	results := make([]*SearchResultResponse, 0, len(out.Results))
	for _, res := range out.Results {
		results = append(results, searchResultToResponse(res))
	}

	api.Success(w, http.StatusOK, &SearchResponse{
		Results:      results,
		TotalResults: out.TotalResults,
		SearchMethod: string(out.SearchMethod),
	})
}
