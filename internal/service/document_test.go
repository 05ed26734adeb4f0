package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/convoflow-ai/convoflow/internal/domain"
	"github.com/convoflow-ai/convoflow/internal/pagination"
)

// MockDocumentRepository is a mock implementation of DocumentRepositoryInterface
type MockDocumentRepository struct {
	mock.Mock
}

func (m *MockDocumentRepository) Create(ctx context.Context, d *domain.Document) error {
	args := m.Called(ctx, d)
	return args.Error(0)
}

func (m *MockDocumentRepository) GetByID(ctx context.Context, id int64) (*domain.Document, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Document), args.Error(1)
}

func (m *MockDocumentRepository) ListIndexedByBot(ctx context.Context, botID int64) ([]*domain.Document, error) {
	args := m.Called(ctx, botID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Document), args.Error(1)
}

func (m *MockDocumentRepository) ListByBotWithCursor(ctx context.Context, botID int64, cursor *pagination.Cursor, limit int) (*DocumentPageResult, error) {
	args := m.Called(ctx, botID, cursor, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*DocumentPageResult), args.Error(1)
}

func (m *MockDocumentRepository) Delete(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockIndexJobRepository is a mock implementation of IndexJobRepositoryInterface
type MockIndexJobRepository struct {
	mock.Mock
}

func (m *MockIndexJobRepository) Create(ctx context.Context, job *domain.IndexJob) error {
	args := m.Called(ctx, job)
	return args.Error(0)
}

// MockVectorCleaner is a mock implementation of VectorCleaner
type MockVectorCleaner struct {
	mock.Mock
}

func (m *MockVectorCleaner) DeleteByDocument(ctx context.Context, documentID int64) error {
	args := m.Called(ctx, documentID)
	return args.Error(0)
}

// MockUUIDGenerator is a mock implementation of UUIDGenerator
type MockUUIDGenerator struct {
	mock.Mock
}

func (m *MockUUIDGenerator) NewString() string {
	args := m.Called()
	return args.String(0)
}

func TestDocumentService_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("creates the document and queues an index job", func(t *testing.T) {
		mockRepo := new(MockDocumentRepository)
		mockJobs := new(MockIndexJobRepository)
		mockUUID := new(MockUUIDGenerator)

		mockUUID.On("NewString").Return("job-uuid-1")
		mockRepo.On("Create", mock.Anything, mock.MatchedBy(func(d *domain.Document) bool {
			return d.BotID == 1 && d.Title == "Handbook" && d.Status == domain.DocumentStatusUploaded
		})).Run(func(args mock.Arguments) {
			args.Get(1).(*domain.Document).ID = 42
		}).Return(nil)
		mockJobs.On("Create", mock.Anything, mock.MatchedBy(func(j *domain.IndexJob) bool {
			return j.ID == "job-uuid-1" && j.DocumentID == 42 && j.Status == domain.IndexJobStatusPending
		})).Return(nil)

		svc := NewDocumentServiceWithUUIDGen(mockRepo, mockJobs, new(MockVectorCleaner), mockUUID)
		doc, err := svc.Create(ctx, CreateDocumentInput{
			BotID:    1,
			Title:    "Handbook",
			FileRef:  "handbook.txt",
			FileType: domain.FileTypeText,
		})

		require.NoError(t, err)
		assert.Equal(t, int64(42), doc.ID)
		mockJobs.AssertExpectations(t)
	})

	t.Run("rejects a document without a title", func(t *testing.T) {
		svc := NewDocumentService(new(MockDocumentRepository), new(MockIndexJobRepository), new(MockVectorCleaner))
		_, err := svc.Create(ctx, CreateDocumentInput{BotID: 1, FileType: domain.FileTypeText, Content: "text"})

		require.Error(t, err)
		var domainErr *domain.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, domain.ErrCodeValidation, domainErr.Code)
	})

	t.Run("rejects an unsupported file type", func(t *testing.T) {
		svc := NewDocumentService(new(MockDocumentRepository), new(MockIndexJobRepository), new(MockVectorCleaner))
		_, err := svc.Create(ctx, CreateDocumentInput{BotID: 1, Title: "x", FileRef: "x.exe", FileType: domain.FileType("exe")})

		assert.ErrorIs(t, err, domain.ErrInvalidFileType)
	})
}

func TestDocumentService_Reindex(t *testing.T) {
	ctx := context.Background()

	t.Run("queues a fresh job for an existing document", func(t *testing.T) {
		mockRepo := new(MockDocumentRepository)
		mockJobs := new(MockIndexJobRepository)
		mockUUID := new(MockUUIDGenerator)

		mockUUID.On("NewString").Return("job-uuid-2")
		mockRepo.On("GetByID", mock.Anything, int64(7)).Return(&domain.Document{ID: 7}, nil)
		mockJobs.On("Create", mock.Anything, mock.MatchedBy(func(j *domain.IndexJob) bool {
			return j.DocumentID == 7 && j.Status == domain.IndexJobStatusPending
		})).Return(nil)

		svc := NewDocumentServiceWithUUIDGen(mockRepo, mockJobs, new(MockVectorCleaner), mockUUID)
		job, err := svc.Reindex(ctx, 7)

		require.NoError(t, err)
		assert.Equal(t, "job-uuid-2", job.ID)
	})

	t.Run("propagates not found", func(t *testing.T) {
		mockRepo := new(MockDocumentRepository)
		mockRepo.On("GetByID", mock.Anything, int64(99)).Return(nil, domain.ErrDocumentNotFound)

		svc := NewDocumentService(mockRepo, new(MockIndexJobRepository), new(MockVectorCleaner))
		_, err := svc.Reindex(ctx, 99)

		assert.ErrorIs(t, err, domain.ErrDocumentNotFound)
	})
}

func TestDocumentService_Delete(t *testing.T) {
	ctx := context.Background()

	t.Run("removes vectors before the document row", func(t *testing.T) {
		mockRepo := new(MockDocumentRepository)
		mockVectors := new(MockVectorCleaner)

		var order []string
		mockRepo.On("GetByID", mock.Anything, int64(3)).Return(&domain.Document{ID: 3}, nil)
		mockVectors.On("DeleteByDocument", mock.Anything, int64(3)).Run(func(mock.Arguments) {
			order = append(order, "vectors")
		}).Return(nil)
		mockRepo.On("Delete", mock.Anything, int64(3)).Run(func(mock.Arguments) {
			order = append(order, "document")
		}).Return(nil)

		svc := NewDocumentService(mockRepo, new(MockIndexJobRepository), mockVectors)
		require.NoError(t, svc.Delete(ctx, 3))
		assert.Equal(t, []string{"vectors", "document"}, order)
	})

	t.Run("keeps the document when vector cleanup fails", func(t *testing.T) {
		mockRepo := new(MockDocumentRepository)
		mockVectors := new(MockVectorCleaner)

		mockRepo.On("GetByID", mock.Anything, int64(3)).Return(&domain.Document{ID: 3}, nil)
		mockVectors.On("DeleteByDocument", mock.Anything, int64(3)).Return(errors.New("index down"))

		svc := NewDocumentService(mockRepo, new(MockIndexJobRepository), mockVectors)
		err := svc.Delete(ctx, 3)

		require.Error(t, err)
		mockRepo.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
	})
}

func TestDocumentService_ListDocuments(t *testing.T) {
	ctx := context.Background()

	t.Run("applies the default limit", func(t *testing.T) {
		mockRepo := new(MockDocumentRepository)
		mockRepo.On("ListByBotWithCursor", mock.Anything, int64(1), (*pagination.Cursor)(nil), 20).
			Return(&DocumentPageResult{Items: []*domain.Document{{ID: 1}}, HasMore: false}, nil)

		svc := NewDocumentService(mockRepo, new(MockIndexJobRepository), new(MockVectorCleaner))
		out, err := svc.ListDocuments(ctx, ListDocumentsInput{BotID: 1})

		require.NoError(t, err)
		assert.Len(t, out.Items, 1)
		assert.False(t, out.HasMore)
	})

	t.Run("passes a decoded cursor through", func(t *testing.T) {
		mockRepo := new(MockDocumentRepository)
		mockRepo.On("ListByBotWithCursor", mock.Anything, int64(1), mock.MatchedBy(func(c *pagination.Cursor) bool {
			return c != nil && c.LastID == 10
		}), 5).Return(&DocumentPageResult{HasMore: true, NextCursor: "next"}, nil)

		encoded := pagination.EncodeCursor(10, time.Now().UTC())
		svc := NewDocumentService(mockRepo, new(MockIndexJobRepository), new(MockVectorCleaner))
		out, err := svc.ListDocuments(ctx, ListDocumentsInput{BotID: 1, Cursor: encoded, Limit: 5})

		require.NoError(t, err)
		assert.True(t, out.HasMore)
		assert.Equal(t, "next", out.Cursor)
	})
}
