package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/convoflow-ai/convoflow/internal/api"
	"github.com/convoflow-ai/convoflow/internal/domain"
	"github.com/convoflow-ai/convoflow/internal/service"
)

type BotService interface {
	Create(ctx context.Context, input service.CreateBotInput) (*domain.Bot, error)
	GetByID(ctx context.Context, id int64) (*domain.Bot, error)
	List(ctx context.Context) ([]*domain.Bot, error)
	Update(ctx context.Context, input service.UpdateBotInput) (*domain.Bot, error)
	Delete(ctx context.Context, id int64) error
}

type BotHandler struct {
	svc BotService
}

func NewBotHandler(svc BotService) *BotHandler {
	return &BotHandler{svc: svc}
}

type CreateBotRequest struct {
	Name         string  `json:"name"`
	Model        string  `json:"model"`
	SystemPrompt string  `json:"system_prompt"`
	Temperature  float32 `json:"temperature"`
}

type UpdateBotRequest struct {
	Name         string  `json:"name"`
	Model        string  `json:"model"`
	SystemPrompt string  `json:"system_prompt"`
	Temperature  float32 `json:"temperature"`
}

type BotResponse struct {
	ID           int64   `json:"id"`
	Name         string  `json:"name"`
	Model        string  `json:"model"`
	SystemPrompt string  `json:"system_prompt"`
	Temperature  float32 `json:"temperature"`
	CreatedAt    string  `json:"created_at"`
	UpdatedAt    string  `json:"updated_at"`
}

func botToResponse(b *domain.Bot) *BotResponse {
	return &BotResponse{
		ID:           b.ID,
		Name:         b.Name,
		Model:        b.Model,
		SystemPrompt: b.SystemPrompt,
		Temperature:  b.Temperature,
		CreatedAt:    b.CreatedAt.Format(time.RFC3339),
		UpdatedAt:    b.UpdatedAt.Format(time.RFC3339),
	}
}

func (h *BotHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateBotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Name == "" {
		api.Error(w, http.StatusBadRequest, "name is required")
		return
	}

	bot, err := h.svc.Create(r.Context(), service.CreateBotInput{
		Name:         req.Name,
		Model:        req.Model,
		SystemPrompt: req.SystemPrompt,
		Temperature:  req.Temperature,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, botToResponse(bot))
}

func (h *BotHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "botID"))
	if err != nil {
		api.Error(w, http.StatusBadRequest, "invalid bot id")
		return
	}

	bot, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, botToResponse(bot))
}

func (h *BotHandler) List(w http.ResponseWriter, r *http.Request) {
	bots, err := h.svc.List(r.Context())
	if err != nil {
		api.HandleError(w, err)
		return
	}

	responses := make([]*BotResponse, 0, len(bots))
	for _, b := range bots {
		responses = append(responses, botToResponse(b))
	}
	api.Success(w, http.StatusOK, responses)
}

func (h *BotHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "botID"))
	if err != nil {
		api.Error(w, http.StatusBadRequest, "invalid bot id")
		return
	}

	var req UpdateBotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	bot, err := h.svc.Update(r.Context(), service.UpdateBotInput{
		BotID:        id,
		Name:         req.Name,
		Model:        req.Model,
		SystemPrompt: req.SystemPrompt,
		Temperature:  req.Temperature,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, botToResponse(bot))
}

func (h *BotHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "botID"))
	if err != nil {
		api.Error(w, http.StatusBadRequest, "invalid bot id")
		return
	}

	if err := h.svc.Delete(r.Context(), id); err != nil {
		api.HandleError(w, err)
		return
	}

	api.JSON(w, http.StatusNoContent, nil)
}

func parseID(raw string) (int64, error) {
	return strconv.ParseInt(raw, 10, 64)
}
