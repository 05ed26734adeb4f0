package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/convoflow-ai/convoflow/internal/domain"
	"github.com/convoflow-ai/convoflow/internal/pagination"
	"github.com/convoflow-ai/convoflow/internal/service"
)

type DocumentRepository struct {
	db dbtx
}

func NewDocumentRepository(pool *pgxpool.Pool) *DocumentRepository {
	return &DocumentRepository{db: pool}
}

func NewDocumentRepositoryWithTx(tx pgx.Tx) *DocumentRepository {
	return &DocumentRepository{db: tx}
}

func (r *DocumentRepository) Create(ctx context.Context, d *domain.Document) error {
	return r.db.QueryRow(ctx,
		`INSERT INTO documents (bot_id, title, file_ref, file_type, status, content, word_count, char_count, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING id`,
		d.BotID, d.Title, nullableString(d.FileRef), d.FileType, d.Status, nullableString(d.Content),
		d.WordCount, d.CharCount, d.CreatedAt, d.UpdatedAt,
	).Scan(&d.ID)
}

func (r *DocumentRepository) GetByID(ctx context.Context, id int64) (*domain.Document, error) {
	var d domain.Document
	var fileRef, content, errMsg *string
	err := r.db.QueryRow(ctx,
		`SELECT id, bot_id, title, file_ref, file_type, status, content, error_message, word_count, char_count, created_at, updated_at
		 FROM documents WHERE id = $1`,
		id,
	).Scan(&d.ID, &d.BotID, &d.Title, &fileRef, &d.FileType, &d.Status, &content, &errMsg, &d.WordCount, &d.CharCount, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrDocumentNotFound
		}
		return nil, err
	}
	if fileRef != nil {
		d.FileRef = *fileRef
	}
	if content != nil {
		d.Content = *content
	}
	if errMsg != nil {
		d.ErrorMessage = *errMsg
	}
	return &d, nil
}

// ListIndexedByBot returns all documents for a bot whose status is indexed,
// oldest first. Used by the lexical fallback path.
func (r *DocumentRepository) ListIndexedByBot(ctx context.Context, botID int64) ([]*domain.Document, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, bot_id, title, file_ref, file_type, status, content, error_message, word_count, char_count, created_at, updated_at
		 FROM documents WHERE bot_id = $1 AND status = $2 ORDER BY id ASC`,
		botID, domain.DocumentStatusIndexed,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanDocumentRows(rows)
}

func (r *DocumentRepository) ListByBotWithCursor(ctx context.Context, botID int64, cursor *pagination.Cursor, limit int) (*service.DocumentPageResult, error) {
	if limit <= 0 {
		limit = 20
	}

	var rows pgx.Rows
	var err error

	if cursor != nil {
		rows, err = r.db.Query(ctx,
			`SELECT id, bot_id, title, file_ref, file_type, status, content, error_message, word_count, char_count, created_at, updated_at
			 FROM documents
			 WHERE bot_id = $1 AND (updated_at, id) < ($2, $3)
			 ORDER BY updated_at DESC, id DESC
			 LIMIT $4`,
			botID, cursor.Timestamp, cursor.LastID, limit+1,
		)
	} else {
		rows, err = r.db.Query(ctx,
			`SELECT id, bot_id, title, file_ref, file_type, status, content, error_message, word_count, char_count, created_at, updated_at
			 FROM documents
			 WHERE bot_id = $1
			 ORDER BY updated_at DESC, id DESC
			 LIMIT $2`,
			botID, limit+1,
		)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items, err := scanDocumentRows(rows)
	if err != nil {
		return nil, err
	}

	hasMore := len(items) > limit
	if hasMore {
		items = items[:limit]
	}

	var nextCursor string
	if hasMore && len(items) > 0 {
		lastItem := items[len(items)-1]
		nextCursor = pagination.EncodeCursor(lastItem.ID, lastItem.UpdatedAt)
	}

	return &service.DocumentPageResult{
		Items:      items,
		NextCursor: nextCursor,
		HasMore:    hasMore,
	}, nil
}

// MarkIndexed persists extracted text and counts and flips status to indexed,
// clearing any previous error message.
func (r *DocumentRepository) MarkIndexed(ctx context.Context, id int64, content string, wordCount, charCount int) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE documents
		 SET status = $1, content = $2, word_count = $3, char_count = $4, error_message = NULL, updated_at = $5
		 WHERE id = $6`,
		domain.DocumentStatusIndexed, content, wordCount, charCount, time.Now().UTC(), id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}

// MarkError records a terminal indexing failure for the document.
func (r *DocumentRepository) MarkError(ctx context.Context, id int64, message string) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE documents SET status = $1, error_message = $2, updated_at = $3 WHERE id = $4`,
		domain.DocumentStatusError, message, time.Now().UTC(), id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}

func (r *DocumentRepository) Delete(ctx context.Context, id int64) error {
	cmdTag, err := r.db.Exec(ctx,
		`DELETE FROM documents WHERE id = $1`,
		id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}

func scanDocumentRows(rows pgx.Rows) ([]*domain.Document, error) {
	var results []*domain.Document
	for rows.Next() {
		var d domain.Document
		var fileRef, content, errMsg *string
		if err := rows.Scan(&d.ID, &d.BotID, &d.Title, &fileRef, &d.FileType, &d.Status, &content, &errMsg, &d.WordCount, &d.CharCount, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, err
		}
		if fileRef != nil {
			d.FileRef = *fileRef
		}
		if content != nil {
			d.Content = *content
		}
		if errMsg != nil {
			d.ErrorMessage = *errMsg
		}
		results = append(results, &d)
	}
	return results, rows.Err()
}
