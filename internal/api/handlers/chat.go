package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/convoflow-ai/convoflow/internal/api"
	"github.com/convoflow-ai/convoflow/internal/service"
)

type ChatService interface {
	Chat(ctx context.Context, input service.ChatInput) (*service.ChatOutput, error)
}

type ChatHandler struct {
	svc ChatService
}

func NewChatHandler(svc ChatService) *ChatHandler {
	return &ChatHandler{svc: svc}
}

type ChatRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversation_id"`
}

type ChatResponse struct {
	Reply          string                  `json:"reply"`
	ConversationID string                  `json:"conversation_id"`
	SearchMethod   string                  `json:"search_method"`
	Sources        []*SearchResultResponse `json:"sources"`
}

func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	botID, err := parseID(chi.URLParam(r, "botID"))
	if err != nil {
		api.Error(w, http.StatusBadRequest, "invalid bot id")
		return
	}

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Message == "" {
		api.Error(w, http.StatusBadRequest, "message is required")
		return
	}

	out, err := h.svc.Chat(r.Context(), service.ChatInput{
		BotID:          botID,
		ConversationID: req.ConversationID,
		Message:        req.Message,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	sources := make([]*SearchResultResponse, 0, len(out.Sources))
	for _, res := range out.Sources {
		sources = append(sources, searchResultToResponse(res))
	}

	api.Success(w, http.StatusOK, &ChatResponse{
		Reply:          out.Reply,
		ConversationID: out.ConversationID,
		SearchMethod:   string(out.SearchMethod),
		Sources:        sources,
	})
}
