package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/convoflow-ai/convoflow/internal/domain"
	"github.com/convoflow-ai/convoflow/internal/pagination"
	"github.com/convoflow-ai/convoflow/internal/telemetry"
)

// DocumentRepositoryInterface defines the repository interface for document persistence
type DocumentRepositoryInterface interface {
	Create(ctx context.Context, d *domain.Document) error
	GetByID(ctx context.Context, id int64) (*domain.Document, error)
	ListIndexedByBot(ctx context.Context, botID int64) ([]*domain.Document, error)
	ListByBotWithCursor(ctx context.Context, botID int64, cursor *pagination.Cursor, limit int) (*DocumentPageResult, error)
	Delete(ctx context.Context, id int64) error
}

type DocumentPageResult struct {
	Items      []*domain.Document
	NextCursor string
	HasMore    bool
}

// IndexJobRepositoryInterface defines the repository interface for index job persistence
type IndexJobRepositoryInterface interface {
	Create(ctx context.Context, job *domain.IndexJob) error
}

// VectorCleaner removes a document's vectors when the document goes away.
type VectorCleaner interface {
	DeleteByDocument(ctx context.Context, documentID int64) error
}

// UUIDGenerator defines interface for UUID generation (for testing)
type UUIDGenerator interface {
	NewString() string
}

// DefaultUUIDGenerator is the default UUID generator using google/uuid
type DefaultUUIDGenerator struct{}

// NewString generates a new UUID string
func (g *DefaultUUIDGenerator) NewString() string {
	return uuid.NewString()
}

// DocumentService handles business logic for bot documents
type DocumentService struct {
	documentRepo DocumentRepositoryInterface
	jobRepo      IndexJobRepositoryInterface
	vectors      VectorCleaner
	uuidGen      UUIDGenerator
}

// NewDocumentService creates a new DocumentService instance
func NewDocumentService(
	documentRepo DocumentRepositoryInterface,
	jobRepo IndexJobRepositoryInterface,
	vectors VectorCleaner,
) *DocumentService {
	return &DocumentService{
		documentRepo: documentRepo,
		jobRepo:      jobRepo,
		vectors:      vectors,
		uuidGen:      &DefaultUUIDGenerator{},
	}
}

// NewDocumentServiceWithUUIDGen creates a new DocumentService with custom UUID generator (for testing)
func NewDocumentServiceWithUUIDGen(
	documentRepo DocumentRepositoryInterface,
	jobRepo IndexJobRepositoryInterface,
	vectors VectorCleaner,
	uuidGen UUIDGenerator,
) *DocumentService {
	return &DocumentService{
		documentRepo: documentRepo,
		jobRepo:      jobRepo,
		vectors:      vectors,
		uuidGen:      uuidGen,
	}
}

// CreateDocumentInput represents the input for registering a document
type CreateDocumentInput struct {
	BotID    int64
	Title    string
	FileRef  string
	FileType domain.FileType
	Content  string
}

type ListDocumentsInput struct {
	BotID  int64
	Cursor string
	Limit  int
}

type ListDocumentsOutput struct {
	Items   []*domain.Document
	Cursor  string
	HasMore bool
}

// Create registers a document in status uploaded and queues an index job for it.
func (s *DocumentService) Create(ctx context.Context, input CreateDocumentInput) (*domain.Document, error) {
	ctx, span := telemetry.StartSpan(ctx, "DocumentService.Create", telemetry.SpanAttributes{
		BotID:     input.BotID,
		Operation: "create",
	})
	defer span.End()

	now := time.Now().UTC()

	doc := &domain.Document{
		BotID:     input.BotID,
		Title:     input.Title,
		FileRef:   input.FileRef,
		FileType:  input.FileType,
		Status:    domain.DocumentStatusUploaded,
		Content:   input.Content,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := domain.ValidateDocument(doc); err != nil {
		return nil, err
	}

	if err := s.documentRepo.Create(ctx, doc); err != nil {
		return nil, err
	}

	job := &domain.IndexJob{
		ID:         s.uuidGen.NewString(),
		DocumentID: doc.ID,
		Status:     domain.IndexJobStatusPending,
		CreatedAt:  now,
	}
	if err := s.jobRepo.Create(ctx, job); err != nil {
		return nil, err
	}

	return doc, nil
}

// GetByID retrieves a document by ID
func (s *DocumentService) GetByID(ctx context.Context, id int64) (*domain.Document, error) {
	return s.documentRepo.GetByID(ctx, id)
}

// Reindex queues a fresh index job for an existing document.
func (s *DocumentService) Reindex(ctx context.Context, documentID int64) (*domain.IndexJob, error) {
	ctx, span := telemetry.StartSpan(ctx, "DocumentService.Reindex", telemetry.SpanAttributes{
		DocumentID: documentID,
		Operation:  "reindex",
	})
	defer span.End()

	if _, err := s.documentRepo.GetByID(ctx, documentID); err != nil {
		return nil, err
	}

	job := &domain.IndexJob{
		ID:         s.uuidGen.NewString(),
		DocumentID: documentID,
		Status:     domain.IndexJobStatusPending,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.jobRepo.Create(ctx, job); err != nil {
		return nil, err
	}
	return job, nil
}

// Delete removes a document's vectors first, then the document row, so a
// half-finished delete can never leave orphaned vectors answering searches.
func (s *DocumentService) Delete(ctx context.Context, id int64) error {
	ctx, span := telemetry.StartSpan(ctx, "DocumentService.Delete", telemetry.SpanAttributes{
		DocumentID: id,
		Operation:  "delete",
	})
	defer span.End()

	if _, err := s.documentRepo.GetByID(ctx, id); err != nil {
		return err
	}

	if err := s.vectors.DeleteByDocument(ctx, id); err != nil {
		return err
	}

	return s.documentRepo.Delete(ctx, id)
}

func (s *DocumentService) ListDocuments(ctx context.Context, input ListDocumentsInput) (*ListDocumentsOutput, error) {
	ctx, span := telemetry.StartSpan(ctx, "DocumentService.ListDocuments", telemetry.SpanAttributes{
		BotID:     input.BotID,
		Operation: "list",
	})
	defer span.End()

	cursor, _ := pagination.DecodeCursor(input.Cursor)
	limit := input.Limit
	if limit <= 0 {
		limit = 20
	}

	result, err := s.documentRepo.ListByBotWithCursor(ctx, input.BotID, cursor, limit)
	if err != nil {
		return nil, err
	}

	return &ListDocumentsOutput{
		Items:   result.Items,
		Cursor:  result.NextCursor,
		HasMore: result.HasMore,
	}, nil
}
