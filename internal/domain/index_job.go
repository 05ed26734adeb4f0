package domain

import "time"

// IndexJobStatus represents the status of an index job
type IndexJobStatus string

const (
	IndexJobStatusPending    IndexJobStatus = "pending"
	IndexJobStatusProcessing IndexJobStatus = "processing"
	IndexJobStatusCompleted  IndexJobStatus = "completed"
	IndexJobStatusFailed     IndexJobStatus = "failed"
)

// IndexJob represents a queued document indexing request. The single-claimer
// job queue is what serializes concurrent re-index requests for one document.
type IndexJob struct {
	ID          string
	DocumentID  int64
	Status      IndexJobStatus
	Retries     int
	Error       string
	CreatedAt   time.Time
	ProcessedAt *time.Time
}

// ValidateIndexJob validates an IndexJob instance
func ValidateIndexJob(j *IndexJob) error {
	if j == nil {
		return NewDomainError(ErrCodeValidation, "index job cannot be nil")
	}
	if j.ID == "" {
		return NewDomainError(ErrCodeValidation, "index job ID is required")
	}
	if j.DocumentID <= 0 {
		return NewDomainError(ErrCodeValidation, "index job DocumentID is required")
	}
	if !isValidIndexJobStatus(j.Status) {
		return NewDomainError(ErrCodeValidation, "index job Status is invalid")
	}
	return nil
}

func isValidIndexJobStatus(s IndexJobStatus) bool {
	switch s {
	case IndexJobStatusPending, IndexJobStatusProcessing, IndexJobStatusCompleted, IndexJobStatusFailed:
		return true
	}
	return false
}
