package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/convoflow-ai/convoflow/internal/api"
	"github.com/convoflow-ai/convoflow/internal/domain"
	"github.com/convoflow-ai/convoflow/internal/service"
)

const maxUploadMemory = 10 << 20 // 10 MiB held in memory during multipart parse

type DocumentService interface {
	Create(ctx context.Context, input service.CreateDocumentInput) (*domain.Document, error)
	GetByID(ctx context.Context, id int64) (*domain.Document, error)
	Reindex(ctx context.Context, documentID int64) (*domain.IndexJob, error)
	Delete(ctx context.Context, id int64) error
	ListDocuments(ctx context.Context, input service.ListDocumentsInput) (*service.ListDocumentsOutput, error)
}

// FileStore persists uploaded document files.
type FileStore interface {
	Store(ctx context.Context, fileRef string, data []byte) (string, error)
	Delete(ctx context.Context, fileRef string) error
}

type DocumentHandler struct {
	svc   DocumentService
	store FileStore
}

func NewDocumentHandler(svc DocumentService, store FileStore) *DocumentHandler {
	return &DocumentHandler{svc: svc, store: store}
}

type CreateDocumentRequest struct {
	Title    string `json:"title"`
	FileType string `json:"file_type"`
	Content  string `json:"content"`
}

type DocumentResponse struct {
	ID           int64  `json:"id"`
	BotID        int64  `json:"bot_id"`
	Title        string `json:"title"`
	FileType     string `json:"file_type"`
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message,omitempty"`
	WordCount    int    `json:"word_count"`
	CharCount    int    `json:"char_count"`
	CreatedAt    string `json:"created_at"`
	UpdatedAt    string `json:"updated_at"`
}

type ListDocumentsResponse struct {
	Items   []*DocumentResponse `json:"items"`
	Cursor  string              `json:"cursor,omitempty"`
	HasMore bool                `json:"has_more"`
}

type IndexJobResponse struct {
	ID         string `json:"id"`
	DocumentID int64  `json:"document_id"`
	Status     string `json:"status"`
}

func documentToResponse(d *domain.Document) *DocumentResponse {
	return &DocumentResponse{
		ID:           d.ID,
		BotID:        d.BotID,
		Title:        d.Title,
		FileType:     string(d.FileType),
		Status:       string(d.Status),
		ErrorMessage: d.ErrorMessage,
		WordCount:    d.WordCount,
		CharCount:    d.CharCount,
		CreatedAt:    d.CreatedAt.Format(time.RFC3339),
		UpdatedAt:    d.UpdatedAt.Format(time.RFC3339),
	}
}

// Create registers a document for a bot. Multipart requests carry the source
// file; JSON requests carry inline text content.
func (h *DocumentHandler) Create(w http.ResponseWriter, r *http.Request) {
	botID, err := parseID(chi.URLParam(r, "botID"))
	if err != nil {
		api.Error(w, http.StatusBadRequest, "invalid bot id")
		return
	}

	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "multipart/form-data") {
		h.createFromUpload(w, r, botID)
		return
	}
	h.createFromJSON(w, r, botID)
}

func (h *DocumentHandler) createFromUpload(w http.ResponseWriter, r *http.Request, botID int64) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		api.Error(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		api.Error(w, http.StatusBadRequest, "failed to read uploaded file")
		return
	}

	declared := header.Header.Get("Content-Type")
	if ext := filepath.Ext(header.Filename); ext != "" {
		declared = ext
	}
	fileType, ok := domain.DetectFileType(declared)
	if !ok {
		api.HandleError(w, domain.ErrUnsupportedFormat)
		return
	}

	title := r.FormValue("title")
	if title == "" {
		title = header.Filename
	}

	fileRef := uuid.NewString() + strings.ToLower(filepath.Ext(header.Filename))
	if _, err := h.store.Store(r.Context(), fileRef, data); err != nil {
		api.HandleError(w, err)
		return
	}

	doc, err := h.svc.Create(r.Context(), service.CreateDocumentInput{
		BotID:    botID,
		Title:    title,
		FileRef:  fileRef,
		FileType: fileType,
	})
	if err != nil {
		// The document row never existed, so the stored file is an orphan.
		_ = h.store.Delete(r.Context(), fileRef)
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, documentToResponse(doc))
}

func (h *DocumentHandler) createFromJSON(w http.ResponseWriter, r *http.Request, botID int64) {
	var req CreateDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Title == "" {
		api.Error(w, http.StatusBadRequest, "title is required")
		return
	}
	if req.Content == "" {
		api.Error(w, http.StatusBadRequest, "content is required")
		return
	}

	fileType := domain.FileTypeText
	if req.FileType != "" {
		var ok bool
		fileType, ok = domain.DetectFileType(req.FileType)
		if !ok {
			api.HandleError(w, domain.ErrUnsupportedFormat)
			return
		}
	}

	doc, err := h.svc.Create(r.Context(), service.CreateDocumentInput{
		BotID:    botID,
		Title:    req.Title,
		FileType: fileType,
		Content:  req.Content,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, documentToResponse(doc))
}

func (h *DocumentHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "documentID"))
	if err != nil {
		api.Error(w, http.StatusBadRequest, "invalid document id")
		return
	}

	doc, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, documentToResponse(doc))
}

func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	botID, err := parseID(chi.URLParam(r, "botID"))
	if err != nil {
		api.Error(w, http.StatusBadRequest, "invalid bot id")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, _ = strconv.Atoi(raw)
	}

	out, err := h.svc.ListDocuments(r.Context(), service.ListDocumentsInput{
		BotID:  botID,
		Cursor: r.URL.Query().Get("cursor"),
		Limit:  limit,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	items := make([]*DocumentResponse, 0, len(out.Items))
	for _, d := range out.Items {
		items = append(items, documentToResponse(d))
	}

	api.Success(w, http.StatusOK, &ListDocumentsResponse{
		Items:   items,
		Cursor:  out.Cursor,
		HasMore: out.HasMore,
	})
}

func (h *DocumentHandler) Reindex(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "documentID"))
	if err != nil {
		api.Error(w, http.StatusBadRequest, "invalid document id")
		return
	}

	job, err := h.svc.Reindex(r.Context(), id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusAccepted, &IndexJobResponse{
		ID:         job.ID,
		DocumentID: job.DocumentID,
		Status:     string(job.Status),
	})
}

func (h *DocumentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "documentID"))
	if err != nil {
		api.Error(w, http.StatusBadRequest, "invalid document id")
		return
	}

	doc, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	if err := h.svc.Delete(r.Context(), id); err != nil {
		api.HandleError(w, err)
		return
	}

	if doc.HasSource() {
		_ = h.store.Delete(r.Context(), doc.FileRef)
	}

	api.JSON(w, http.StatusNoContent, nil)
}
