//go:build integration

package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/convoflow-ai/convoflow/internal/domain"
	"github.com/convoflow-ai/convoflow/internal/pagination"
	"github.com/convoflow-ai/convoflow/internal/testutil"
)

func setupTestDB(t *testing.T) (context.Context, *pgxpool.Pool) {
	t.Helper()
	ctx := context.Background()

	container := testutil.NewPostgresContainer(ctx, t)
	pool := testutil.NewTestPool(ctx, t, container, "../../migrations")

	t.Cleanup(func() {
		pool.Close()
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	return ctx, pool
}

func createTestBot(ctx context.Context, t *testing.T, pool *pgxpool.Pool) *domain.Bot {
	t.Helper()
	now := time.Now().UTC()
	bot := &domain.Bot{
		Name:        "support",
		Model:       "gpt-4o-mini",
		Temperature: 0.2,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	require.NoError(t, NewBotRepository(pool).Create(ctx, bot))
	return bot
}

func createTestDocument(ctx context.Context, t *testing.T, pool *pgxpool.Pool, botID int64, title string) *domain.Document {
	t.Helper()
	now := time.Now().UTC()
	doc := &domain.Document{
		BotID:     botID,
		Title:     title,
		FileRef:   title + ".txt",
		FileType:  domain.FileTypeText,
		Status:    domain.DocumentStatusUploaded,
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, NewDocumentRepository(pool).Create(ctx, doc))
	return doc
}

// testEmbedding builds a deterministic 1536-dim vector dominated by one axis,
// so cosine distance between different seeds is predictable.
func testEmbedding(axis int) []float32 {
	v := make([]float32, 1536)
	v[axis%1536] = 1.0
	return v
}

func TestDocumentRepository_Integration(t *testing.T) {
	ctx, pool := setupTestDB(t)
	bot := createTestBot(ctx, t, pool)
	repo := NewDocumentRepository(pool)

	t.Run("create and get round trip", func(t *testing.T) {
		doc := createTestDocument(ctx, t, pool, bot.ID, "handbook")

		got, err := repo.GetByID(ctx, doc.ID)
		require.NoError(t, err)
		assert.Equal(t, "handbook", got.Title)
		assert.Equal(t, "handbook.txt", got.FileRef)
		assert.Equal(t, domain.DocumentStatusUploaded, got.Status)
	})

	t.Run("get missing document", func(t *testing.T) {
		_, err := repo.GetByID(ctx, 999999)
		assert.ErrorIs(t, err, domain.ErrDocumentNotFound)
	})

	t.Run("mark indexed stores content and clears errors", func(t *testing.T) {
		doc := createTestDocument(ctx, t, pool, bot.ID, "benefits")
		require.NoError(t, repo.MarkError(ctx, doc.ID, "first attempt failed"))
		require.NoError(t, repo.MarkIndexed(ctx, doc.ID, "Dental is covered.", 3, 18))

		got, err := repo.GetByID(ctx, doc.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.DocumentStatusIndexed, got.Status)
		assert.Equal(t, "Dental is covered.", got.Content)
		assert.Equal(t, 3, got.WordCount)
		assert.Equal(t, 18, got.CharCount)
		assert.Empty(t, got.ErrorMessage)
	})

	t.Run("list indexed filters by status", func(t *testing.T) {
		lexBot := createTestBot(ctx, t, pool)
		indexed := createTestDocument(ctx, t, pool, lexBot.ID, "indexed-doc")
		createTestDocument(ctx, t, pool, lexBot.ID, "uploaded-doc")
		require.NoError(t, repo.MarkIndexed(ctx, indexed.ID, "content here", 2, 12))

		docs, err := repo.ListIndexedByBot(ctx, lexBot.ID)
		require.NoError(t, err)
		require.Len(t, docs, 1)
		assert.Equal(t, indexed.ID, docs[0].ID)
	})

	t.Run("cursor pagination walks the full set without duplicates", func(t *testing.T) {
		pageBot := createTestBot(ctx, t, pool)
		for i := 0; i < 5; i++ {
			createTestDocument(ctx, t, pool, pageBot.ID, "page-doc")
			time.Sleep(5 * time.Millisecond)
		}

		seen := map[int64]bool{}
		var cursor *pagination.Cursor
		pages := 0
		for {
			page, err := repo.ListByBotWithCursor(ctx, pageBot.ID, cursor, 2)
			require.NoError(t, err)
			for _, d := range page.Items {
				assert.False(t, seen[d.ID], "document %d returned twice", d.ID)
				seen[d.ID] = true
			}
			pages++
			if !page.HasMore {
				break
			}
			cursor, err = pagination.DecodeCursor(page.NextCursor)
			require.NoError(t, err)
		}
		assert.Len(t, seen, 5)
		assert.Equal(t, 3, pages)
	})

	t.Run("delete removes the row", func(t *testing.T) {
		doc := createTestDocument(ctx, t, pool, bot.ID, "doomed")
		require.NoError(t, repo.Delete(ctx, doc.ID))

		_, err := repo.GetByID(ctx, doc.ID)
		assert.ErrorIs(t, err, domain.ErrDocumentNotFound)
		assert.ErrorIs(t, repo.Delete(ctx, doc.ID), domain.ErrDocumentNotFound)
	})
}

func TestVectorRepository_Integration(t *testing.T) {
	ctx, pool := setupTestDB(t)
	bot := createTestBot(ctx, t, pool)
	repo := NewVectorRepository(pool)

	chunkRecords := func(doc *domain.Document, contents ...string) []domain.VectorRecord {
		records := make([]domain.VectorRecord, len(contents))
		for i, content := range contents {
			records[i] = domain.VectorRecord{
				BotID:       bot.ID,
				DocumentID:  &doc.ID,
				Title:       doc.Title,
				ChunkIndex:  i,
				TotalChunks: len(contents),
				Content:     content,
				Embedding:   testEmbedding(i),
			}
		}
		return records
	}

	t.Run("replace is idempotent across re-index runs", func(t *testing.T) {
		doc := createTestDocument(ctx, t, pool, bot.ID, "replace-me")

		require.NoError(t, repo.ReplaceDocumentChunks(ctx, doc.ID, chunkRecords(doc, "one", "two", "three")))
		count, err := repo.CountByDocument(ctx, doc.ID)
		require.NoError(t, err)
		assert.Equal(t, 3, count)

		require.NoError(t, repo.ReplaceDocumentChunks(ctx, doc.ID, chunkRecords(doc, "fresh one", "fresh two")))
		count, err = repo.CountByDocument(ctx, doc.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, count)
	})

	t.Run("document search only sees the document family", func(t *testing.T) {
		searchBot := createTestBot(ctx, t, pool)
		doc := createTestDocument(ctx, t, pool, searchBot.ID, "families")
		searchRepo := NewVectorRepository(pool)

		require.NoError(t, searchRepo.ReplaceDocumentChunks(ctx, doc.ID, []domain.VectorRecord{{
			BotID:       searchBot.ID,
			DocumentID:  &doc.ID,
			Title:       doc.Title,
			TotalChunks: 1,
			Content:     "document chunk text",
			Embedding:   testEmbedding(0),
		}}))
		require.NoError(t, searchRepo.InsertConversationTurn(ctx, &domain.ConversationTurn{
			ID:             uuid.NewString(),
			BotID:          searchBot.ID,
			ConversationID: "conv-1",
			Role:           "user",
			Content:        "conversation turn text",
		}, testEmbedding(0)))

		docHits, err := searchRepo.SearchDocumentChunks(ctx, testEmbedding(0), searchBot.ID, 10)
		require.NoError(t, err)
		require.Len(t, docHits, 1)
		assert.Equal(t, "document chunk text", docHits[0].Content)
		assert.Equal(t, doc.ID, docHits[0].DocumentID)
		assert.Equal(t, domain.RelevanceHigh, docHits[0].Relevance)

		convHits, err := searchRepo.SearchConversationTurns(ctx, testEmbedding(0), searchBot.ID, 10)
		require.NoError(t, err)
		require.Len(t, convHits, 1)
		assert.Equal(t, "conversation turn text", convHits[0].Content)
		assert.Equal(t, "conv-1", convHits[0].ConversationID)
		assert.Equal(t, "user", convHits[0].Role)
	})

	t.Run("search never crosses bot boundaries", func(t *testing.T) {
		otherBot := createTestBot(ctx, t, pool)
		hits, err := repo.SearchDocumentChunks(ctx, testEmbedding(0), otherBot.ID, 10)
		require.NoError(t, err)
		assert.Empty(t, hits)
	})

	t.Run("nearest chunk ranks first", func(t *testing.T) {
		rankBot := createTestBot(ctx, t, pool)
		doc := createTestDocument(ctx, t, pool, rankBot.ID, "ranked")

		require.NoError(t, repo.ReplaceDocumentChunks(ctx, doc.ID, []domain.VectorRecord{
			{BotID: rankBot.ID, DocumentID: &doc.ID, ChunkIndex: 0, TotalChunks: 2, Content: "far", Embedding: testEmbedding(7)},
			{BotID: rankBot.ID, DocumentID: &doc.ID, ChunkIndex: 1, TotalChunks: 2, Content: "near", Embedding: testEmbedding(0)},
		}))

		hits, err := repo.SearchDocumentChunks(ctx, testEmbedding(0), rankBot.ID, 2)
		require.NoError(t, err)
		require.Len(t, hits, 2)
		assert.Equal(t, "near", hits[0].Content)
		assert.Greater(t, hits[0].Score, hits[1].Score)
	})

	t.Run("delete by document clears only that document", func(t *testing.T) {
		keep := createTestDocument(ctx, t, pool, bot.ID, "keep")
		drop := createTestDocument(ctx, t, pool, bot.ID, "drop")
		require.NoError(t, repo.ReplaceDocumentChunks(ctx, keep.ID, chunkRecords(keep, "kept chunk")))
		require.NoError(t, repo.ReplaceDocumentChunks(ctx, drop.ID, chunkRecords(drop, "dropped chunk")))

		require.NoError(t, repo.DeleteByDocument(ctx, drop.ID))

		count, err := repo.CountByDocument(ctx, drop.ID)
		require.NoError(t, err)
		assert.Zero(t, count)
		count, err = repo.CountByDocument(ctx, keep.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})
}

func TestIndexJobRepository_Integration(t *testing.T) {
	ctx, pool := setupTestDB(t)
	bot := createTestBot(ctx, t, pool)
	repo := NewIndexJobRepository(pool)

	queueJob := func(documentID int64) *domain.IndexJob {
		job := &domain.IndexJob{
			ID:         uuid.NewString(),
			DocumentID: documentID,
			Status:     domain.IndexJobStatusPending,
			CreatedAt:  time.Now().UTC(),
		}
		require.NoError(t, repo.Create(ctx, job))
		return job
	}

	t.Run("claim moves jobs to processing", func(t *testing.T) {
		doc := createTestDocument(ctx, t, pool, bot.ID, "claim-one")
		job := queueJob(doc.ID)

		claimed, err := repo.ClaimPending(ctx, 10)
		require.NoError(t, err)
		require.Len(t, claimed, 1)
		assert.Equal(t, job.ID, claimed[0].ID)
		assert.Equal(t, domain.IndexJobStatusProcessing, claimed[0].Status)

		again, err := repo.ClaimPending(ctx, 10)
		require.NoError(t, err)
		assert.Empty(t, again)
	})

	t.Run("claims at most one job per document", func(t *testing.T) {
		doc := createTestDocument(ctx, t, pool, bot.ID, "claim-dup")
		first := queueJob(doc.ID)
		time.Sleep(5 * time.Millisecond)
		second := queueJob(doc.ID)

		claimed, err := repo.ClaimPending(ctx, 10)
		require.NoError(t, err)
		require.Len(t, claimed, 1)
		assert.Equal(t, first.ID, claimed[0].ID)

		// The duplicate stays pending and surfaces on the next poll.
		claimed, err = repo.ClaimPending(ctx, 10)
		require.NoError(t, err)
		require.Len(t, claimed, 1)
		assert.Equal(t, second.ID, claimed[0].ID)
	})

	t.Run("completed jobs get a processed timestamp", func(t *testing.T) {
		doc := createTestDocument(ctx, t, pool, bot.ID, "complete-me")
		job := queueJob(doc.ID)

		require.NoError(t, repo.UpdateStatus(ctx, job.ID, domain.IndexJobStatusCompleted, ""))

		got, err := repo.GetByID(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.IndexJobStatusCompleted, got.Status)
		require.NotNil(t, got.ProcessedAt)
	})

	t.Run("requeued jobs keep their retry count", func(t *testing.T) {
		doc := createTestDocument(ctx, t, pool, bot.ID, "retry-me")
		job := queueJob(doc.ID)

		require.NoError(t, repo.IncrementRetries(ctx, job.ID))
		require.NoError(t, repo.UpdateStatus(ctx, job.ID, domain.IndexJobStatusPending, "retry 1: connection refused"))

		got, err := repo.GetByID(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, got.Retries)
		assert.Equal(t, domain.IndexJobStatusPending, got.Status)
		assert.Nil(t, got.ProcessedAt)
	})

	t.Run("unknown job ids are reported", func(t *testing.T) {
		missing := uuid.NewString()
		assert.ErrorIs(t, repo.UpdateStatus(ctx, missing, domain.IndexJobStatusFailed, "x"), domain.ErrIndexJobNotFound)
		assert.ErrorIs(t, repo.IncrementRetries(ctx, missing), domain.ErrIndexJobNotFound)
		_, err := repo.GetByID(ctx, missing)
		assert.ErrorIs(t, err, domain.ErrIndexJobNotFound)
	})
}

func TestIndexLocker_Integration(t *testing.T) {
	ctx, pool := setupTestDB(t)
	locker := NewIndexLocker(pool)

	t.Run("second acquire on the same document is rejected", func(t *testing.T) {
		lock, err := locker.Acquire(ctx, 1)
		require.NoError(t, err)
		defer lock.Release(ctx)

		_, err = locker.Acquire(ctx, 1)
		assert.ErrorIs(t, err, domain.ErrIndexingInProgress)
	})

	t.Run("different documents do not contend", func(t *testing.T) {
		lock, err := locker.Acquire(ctx, 2)
		require.NoError(t, err)
		defer lock.Release(ctx)

		other, err := locker.Acquire(ctx, 3)
		require.NoError(t, err)
		other.Release(ctx)
	})

	t.Run("release makes the lock available again", func(t *testing.T) {
		lock, err := locker.Acquire(ctx, 4)
		require.NoError(t, err)
		lock.Release(ctx)

		again, err := locker.Acquire(ctx, 4)
		require.NoError(t, err)
		again.Release(ctx)
	})
}
