package jobs

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/convoflow-ai/convoflow/internal/domain"
	"github.com/convoflow-ai/convoflow/internal/service"
)

const (
	// MaxRetries is the maximum number of attempts for a retryable job
	MaxRetries = 3

	// claimBatchSize bounds how many jobs one poll picks up
	claimBatchSize = 10
)

// IndexJobQueue defines the interface for claiming and resolving index jobs
type IndexJobQueue interface {
	// ClaimPending claims up to limit pending jobs, at most one per document
	ClaimPending(ctx context.Context, limit int) ([]*domain.IndexJob, error)

	// UpdateStatus updates the status of an index job
	UpdateStatus(ctx context.Context, jobID string, status domain.IndexJobStatus, errMsg string) error

	// IncrementRetries increments the retry count for a job
	IncrementRetries(ctx context.Context, jobID string) error
}

// DocumentIndexer defines the interface for running the indexing pipeline
type DocumentIndexer interface {
	IndexDocument(ctx context.Context, documentID int64) (*service.IndexResult, error)
}

// IndexWorker processes document index jobs
type IndexWorker struct {
	queue   IndexJobQueue
	indexer DocumentIndexer
}

// NewIndexWorker creates a new IndexWorker instance
func NewIndexWorker(queue IndexJobQueue, indexer DocumentIndexer) *IndexWorker {
	return &IndexWorker{
		queue:   queue,
		indexer: indexer,
	}
}

// ProcessJobs implements the JobProcessor interface
func (w *IndexWorker) ProcessJobs(ctx context.Context) error {
	jobs, err := w.queue.ClaimPending(ctx, claimBatchSize)
	if err != nil {
		return fmt.Errorf("failed to claim pending jobs: %w", err)
	}

	if len(jobs) == 0 {
		return nil
	}

	log.Printf("Processing %d pending index jobs", len(jobs))

	for _, job := range jobs {
		if err := w.processJob(ctx, job); err != nil {
			log.Printf("Error processing job %s: %v", job.ID, err)
		}
	}

	return nil
}

func (w *IndexWorker) processJob(ctx context.Context, job *domain.IndexJob) error {
	log.Printf("Processing job %s for document %d", job.ID, job.DocumentID)

	result, err := w.indexer.IndexDocument(ctx, job.DocumentID)
	if err != nil {
		return w.handleJobFailure(ctx, job, err)
	}

	if err := w.queue.UpdateStatus(ctx, job.ID, domain.IndexJobStatusCompleted, ""); err != nil {
		return fmt.Errorf("failed to update job status to completed: %w", err)
	}

	log.Printf("Job %s completed: %d chunks, vectors stored=%t", job.ID, result.ChunkCount, result.Stored)
	return nil
}

// handleJobFailure fails terminal errors immediately and requeues retryable
// ones with a retry cap. The indexer has already marked the document errored
// for terminal failures, so retrying would only repeat the same outcome.
func (w *IndexWorker) handleJobFailure(ctx context.Context, job *domain.IndexJob, jobErr error) error {
	log.Printf("Job %s failed: %v", job.ID, jobErr)

	if isTerminalIndexError(jobErr) {
		if err := w.queue.UpdateStatus(ctx, job.ID, domain.IndexJobStatusFailed, jobErr.Error()); err != nil {
			return fmt.Errorf("failed to update job status to failed: %w", err)
		}
		return nil
	}

	if err := w.queue.IncrementRetries(ctx, job.ID); err != nil {
		return fmt.Errorf("failed to increment retries: %w", err)
	}

	if job.Retries+1 >= MaxRetries {
		log.Printf("Job %s exceeded max retries (%d), marking as failed", job.ID, MaxRetries)
		errMsg := fmt.Sprintf("max retries exceeded: %v", jobErr)
		if err := w.queue.UpdateStatus(ctx, job.ID, domain.IndexJobStatusFailed, errMsg); err != nil {
			return fmt.Errorf("failed to update job status to failed: %w", err)
		}
		return nil
	}

	log.Printf("Job %s will be retried (attempt %d/%d)", job.ID, job.Retries+1, MaxRetries)
	errMsg := fmt.Sprintf("retry %d: %v", job.Retries+1, jobErr)
	if err := w.queue.UpdateStatus(ctx, job.ID, domain.IndexJobStatusPending, errMsg); err != nil {
		return fmt.Errorf("failed to reset job status to pending: %w", err)
	}

	return nil
}

// isTerminalIndexError reports whether re-running the job could possibly
// succeed. Bad input stays bad; transient infrastructure errors do not.
func isTerminalIndexError(err error) bool {
	var domainErr *domain.DomainError
	if !errors.As(err, &domainErr) {
		return false
	}
	switch domainErr.Code {
	case domain.ErrCodeUnsupportedFormat,
		domain.ErrCodeExtractionFailed,
		domain.ErrCodeSourceMissing,
		domain.ErrCodeEmbedding,
		domain.ErrCodeValidation,
		domain.ErrCodeNotFound:
		return true
	}
	return false
}
