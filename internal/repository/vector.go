package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/convoflow-ai/convoflow/internal/domain"
)

// VectorRepository persists embeddings and answers nearest-neighbor queries
// over the shared vector index. Document chunks and conversation turns live
// in the same table; every query here filters to exactly one record family.
type VectorRepository struct {
	pool *pgxpool.Pool
}

func NewVectorRepository(pool *pgxpool.Pool) *VectorRepository {
	return &VectorRepository{pool: pool}
}

// ReplaceDocumentChunks deletes all existing vectors for a document and
// inserts the new chunk set in one transaction, so re-indexing can never
// leave stale chunks behind and readers never see a mixed set.
func (r *VectorRepository) ReplaceDocumentChunks(ctx context.Context, documentID int64, records []domain.VectorRecord) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM vector_records WHERE document_id = $1`, documentID); err != nil {
		return err
	}

	for _, rec := range records {
		id := rec.ID
		if id == "" {
			id = uuid.NewString()
		}
		createdAt := rec.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}
		_, err := tx.Exec(ctx,
			`INSERT INTO vector_records
				(id, bot_id, document_id, title, chunk_index, total_chunks, content, embedding, created_at)
			 VALUES
				($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			id,
			rec.BotID,
			documentID,
			rec.Title,
			rec.ChunkIndex,
			rec.TotalChunks,
			rec.Content,
			pgvector.NewVector(rec.Embedding),
			createdAt,
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// DeleteByDocument removes every vector whose metadata references the document.
func (r *VectorRepository) DeleteByDocument(ctx context.Context, documentID int64) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM vector_records WHERE document_id = $1`, documentID)
	return err
}

// CountByDocument reports how many vectors are stored for a document.
func (r *VectorRepository) CountByDocument(ctx context.Context, documentID int64) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM vector_records WHERE document_id = $1`,
		documentID,
	).Scan(&count)
	return count, err
}

// SearchDocumentChunks runs a nearest-neighbor query over the document family
// for one bot. Cosine distance is mapped into a [0,1] similarity score.
func (r *VectorRepository) SearchDocumentChunks(ctx context.Context, embedding []float32, botID int64, limit int) ([]*domain.SearchResult, error) {
	if limit <= 0 {
		limit = 5
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, document_id, title, chunk_index, total_chunks, content,
		        1.0 / (1.0 + (embedding <=> $1)) AS score
		 FROM vector_records
		 WHERE bot_id = $2 AND document_id IS NOT NULL
		 ORDER BY embedding <=> $1
		 LIMIT $3`,
		pgvector.NewVector(embedding), botID, limit,
	)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeVectorQuery, "vector index query failed", err)
	}
	defer rows.Close()

	results := make([]*domain.SearchResult, 0, limit)
	for rows.Next() {
		var result domain.SearchResult
		if err := rows.Scan(&result.ID, &result.DocumentID, &result.Title, &result.ChunkIndex, &result.TotalChunks, &result.Content, &result.Score); err != nil {
			return nil, err
		}
		result.Relevance = domain.RelevanceForScore(result.Score)
		results = append(results, &result)
	}
	return results, rows.Err()
}

// SearchConversationTurns runs the same nearest-neighbor query over the
// conversation family for one bot.
func (r *VectorRepository) SearchConversationTurns(ctx context.Context, embedding []float32, botID int64, limit int) ([]*domain.ConversationHit, error) {
	if limit <= 0 {
		limit = 5
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, conversation_id, role, content,
		        1.0 / (1.0 + (embedding <=> $1)) AS score
		 FROM vector_records
		 WHERE bot_id = $2 AND conversation_id IS NOT NULL
		 ORDER BY embedding <=> $1
		 LIMIT $3`,
		pgvector.NewVector(embedding), botID, limit,
	)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeVectorQuery, "vector index query failed", err)
	}
	defer rows.Close()

	results := make([]*domain.ConversationHit, 0, limit)
	for rows.Next() {
		var hit domain.ConversationHit
		var role *string
		if err := rows.Scan(&hit.ID, &hit.ConversationID, &role, &hit.Content, &hit.Score); err != nil {
			return nil, err
		}
		if role != nil {
			hit.Role = *role
		}
		hit.Relevance = domain.RelevanceForScore(hit.Score)
		results = append(results, &hit)
	}
	return results, rows.Err()
}

// InsertConversationTurn writes a single conversation-memory vector.
func (r *VectorRepository) InsertConversationTurn(ctx context.Context, turn *domain.ConversationTurn, embedding []float32) error {
	id := turn.ID
	if id == "" {
		id = uuid.NewString()
	}
	createdAt := turn.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := r.pool.Exec(ctx,
		`INSERT INTO vector_records
			(id, bot_id, conversation_id, role, content, embedding, created_at)
		 VALUES
			($1, $2, $3, $4, $5, $6, $7)`,
		id, turn.BotID, turn.ConversationID, turn.Role, turn.Content, pgvector.NewVector(embedding), createdAt,
	)
	if err != nil {
		return domain.NewDomainErrorWithCause(domain.ErrCodeVectorWrite, "vector index write failed", err)
	}
	return nil
}
