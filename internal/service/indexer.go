package service

import (
	"context"
	"log"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/convoflow-ai/convoflow/internal/domain"
	"github.com/convoflow-ai/convoflow/internal/extract"
	"github.com/convoflow-ai/convoflow/internal/telemetry"
)

// SourceStore fetches raw document bytes by file reference.
type SourceStore interface {
	Fetch(ctx context.Context, fileRef string) ([]byte, error)
}

// EmbeddingClient defines the interface for generating embeddings
type EmbeddingClient interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
}

// IndexerDocumentRepository defines the repository interface for indexing operations
type IndexerDocumentRepository interface {
	GetByID(ctx context.Context, id int64) (*domain.Document, error)
	MarkIndexed(ctx context.Context, id int64, content string, wordCount, charCount int) error
	MarkError(ctx context.Context, id int64, message string) error
}

// VectorIndexWriter replaces the full chunk set for a document atomically.
type VectorIndexWriter interface {
	ReplaceDocumentChunks(ctx context.Context, documentID int64, records []domain.VectorRecord) error
}

// DocumentLocker serializes indexing runs for the same document.
type DocumentLocker interface {
	WithLock(ctx context.Context, documentID int64, fn func(ctx context.Context) error) error
}

// IndexerService turns a stored document into searchable vectors: fetch the
// source, extract text, chunk, embed each chunk, and replace the document's
// chunk set in the vector index.
type IndexerService struct {
	docs      IndexerDocumentRepository
	source    SourceStore
	embedding EmbeddingClient
	vectors   VectorIndexWriter
	locker    DocumentLocker
	chunkCfg  ChunkConfig
}

// NewIndexerService creates a new IndexerService instance
func NewIndexerService(
	docs IndexerDocumentRepository,
	source SourceStore,
	embedding EmbeddingClient,
	vectors VectorIndexWriter,
	locker DocumentLocker,
) *IndexerService {
	return &IndexerService{
		docs:      docs,
		source:    source,
		embedding: embedding,
		vectors:   vectors,
		locker:    locker,
		chunkCfg:  DefaultChunkConfig(),
	}
}

// WithChunkConfig overrides the default chunking parameters.
func (s *IndexerService) WithChunkConfig(cfg ChunkConfig) *IndexerService {
	s.chunkCfg = cfg
	return s
}

// IndexResult reports what one indexing run produced. Stored is false when
// the chunks were not written to the vector index (no embedding client).
type IndexResult struct {
	ChunkCount int
	Stored     bool
}

// IndexDocument runs the full indexing pipeline for one document under the
// per-document lock. Extraction, source, and embedding failures are terminal:
// the document is marked error and no vectors are written. A vector index
// write failure after the status update is surfaced to the caller but does
// not roll the status back; re-running the job repairs the index because the
// chunk replacement is a delete-then-insert.
func (s *IndexerService) IndexDocument(ctx context.Context, documentID int64) (*IndexResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "IndexerService.IndexDocument", telemetry.SpanAttributes{
		DocumentID: documentID,
		Operation:  "index",
	})
	defer span.End()

	var result *IndexResult
	err := s.locker.WithLock(ctx, documentID, func(ctx context.Context) error {
		var err error
		result, err = s.indexLocked(ctx, documentID)
		return err
	})
	if err != nil {
		span.SetError(err)
		return nil, err
	}
	return result, nil
}

func (s *IndexerService) indexLocked(ctx context.Context, documentID int64) (*IndexResult, error) {
	doc, err := s.docs.GetByID(ctx, documentID)
	if err != nil {
		return nil, err
	}

	text, wordCount, charCount, err := s.loadText(ctx, doc)
	if err != nil {
		s.markTerminal(ctx, documentID, err)
		return nil, err
	}

	chunks := splitChunks(text, s.chunkCfg)
	if len(chunks) == 0 {
		err := domain.NewDomainError(domain.ErrCodeExtractionFailed, "document produced no text")
		s.markTerminal(ctx, documentID, err)
		return nil, err
	}

	// Without an embedding client the document still becomes searchable via
	// the lexical fallback: persist the text and clear any vectors a previous
	// run wrote, so stale chunks cannot outlive the content they came from.
	if s.embedding == nil {
		if err := s.docs.MarkIndexed(ctx, documentID, text, wordCount, charCount); err != nil {
			return nil, err
		}
		if err := s.vectors.ReplaceDocumentChunks(ctx, documentID, nil); err != nil {
			wrapped := domain.NewDomainErrorWithCause(domain.ErrCodeVectorWrite, "vector index write failed", err)
			telemetry.CaptureError(ctx, wrapped)
			log.Printf("Document %d marked indexed but stale vector cleanup failed: %v", documentID, err)
			return nil, wrapped
		}
		return &IndexResult{ChunkCount: len(chunks), Stored: false}, nil
	}

	now := time.Now().UTC()
	records := make([]domain.VectorRecord, 0, len(chunks))
	for _, chunk := range chunks {
		embedding, err := s.embedding.GenerateEmbedding(ctx, chunk.Text)
		if err != nil {
			wrapped := domain.NewDomainErrorWithCause(domain.ErrCodeEmbedding, "embedding provider unavailable", err)
			s.markTerminal(ctx, documentID, wrapped)
			return nil, wrapped
		}
		docID := doc.ID
		records = append(records, domain.VectorRecord{
			BotID:       doc.BotID,
			DocumentID:  &docID,
			Title:       doc.Title,
			ChunkIndex:  chunk.Index,
			TotalChunks: len(chunks),
			Content:     chunk.Text,
			Embedding:   embedding,
			CreatedAt:   now,
		})
	}

	if err := s.docs.MarkIndexed(ctx, documentID, text, wordCount, charCount); err != nil {
		return nil, err
	}

	if err := s.vectors.ReplaceDocumentChunks(ctx, documentID, records); err != nil {
		wrapped := domain.NewDomainErrorWithCause(domain.ErrCodeVectorWrite, "vector index write failed", err)
		telemetry.CaptureError(ctx, wrapped)
		log.Printf("Document %d marked indexed but vector write failed: %v", documentID, err)
		return nil, wrapped
	}

	return &IndexResult{ChunkCount: len(chunks), Stored: true}, nil
}

// loadText resolves the document's text. Text already on the document (inline
// uploads, or the extracted text from a prior run) is reused as-is; only
// documents without it go through fetch and extraction.
func (s *IndexerService) loadText(ctx context.Context, doc *domain.Document) (string, int, int, error) {
	if text := doc.Content; strings.TrimSpace(text) != "" {
		return text, len(strings.Fields(text)), utf8.RuneCountInString(text), nil
	}

	if doc.FileRef != "" {
		data, err := s.source.Fetch(ctx, doc.FileRef)
		if err != nil {
			return "", 0, 0, domain.NewDomainErrorWithCause(domain.ErrCodeSourceMissing, "document source could not be read", err)
		}
		result, err := extract.Extract(data, doc.FileType)
		if err != nil {
			return "", 0, 0, err
		}
		return result.Text, result.WordCount, result.CharacterCount, nil
	}

	return "", 0, 0, domain.ErrSourceMissing
}

// markTerminal records a terminal indexing failure on the document. The
// original error is what matters to the caller, so a failed status write is
// only logged.
func (s *IndexerService) markTerminal(ctx context.Context, documentID int64, cause error) {
	if err := s.docs.MarkError(ctx, documentID, cause.Error()); err != nil {
		log.Printf("Failed to mark document %d as errored: %v", documentID, err)
	}
}
