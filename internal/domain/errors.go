package domain

import "fmt"

// DomainError represents a domain-specific error
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new DomainError
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     nil,
	}
}

// NewDomainErrorWithCause creates a new DomainError with an underlying cause
func NewDomainErrorWithCause(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common domain error codes
const (
	ErrCodeValidation        = "VALIDATION_ERROR"
	ErrCodeNotFound          = "NOT_FOUND"
	ErrCodeConflict          = "CONFLICT"
	ErrCodeUnsupportedFormat = "UNSUPPORTED_FORMAT"
	ErrCodeExtractionFailed  = "EXTRACTION_FAILED"
	ErrCodeSourceMissing     = "SOURCE_MISSING"
	ErrCodeEmbedding         = "EMBEDDING_PROVIDER_UNAVAILABLE"
	ErrCodeVectorWrite       = "VECTOR_INDEX_WRITE_FAILED"
	ErrCodeVectorQuery       = "VECTOR_INDEX_QUERY_FAILED"
	ErrCodeInternalError     = "INTERNAL_ERROR"
)

// Validation errors
var (
	ErrInvalidDocumentStatus = NewDomainError(ErrCodeValidation, "invalid document status")
	ErrInvalidFileType       = NewDomainError(ErrCodeValidation, "invalid file type")
	ErrMissingRequiredField  = NewDomainError(ErrCodeValidation, "missing required field")
)

// Not found errors
var (
	ErrDocumentNotFound = NewDomainError(ErrCodeNotFound, "document not found")
	ErrBotNotFound      = NewDomainError(ErrCodeNotFound, "bot not found")
	ErrIndexJobNotFound = NewDomainError(ErrCodeNotFound, "index job not found")
)

// Ingestion errors
var (
	ErrUnsupportedFormat = NewDomainError(ErrCodeUnsupportedFormat, "unsupported document format")
	ErrExtractionFailed  = NewDomainError(ErrCodeExtractionFailed, "failed to extract document text")
	ErrSourceMissing     = NewDomainError(ErrCodeSourceMissing, "document has no file reference and no inline content")
)

// Provider and index errors
var (
	ErrEmbeddingUnavailable = NewDomainError(ErrCodeEmbedding, "embedding provider unavailable")
	ErrVectorWriteFailed    = NewDomainError(ErrCodeVectorWrite, "vector index write failed")
	ErrVectorQueryFailed    = NewDomainError(ErrCodeVectorQuery, "vector index query failed")
)

// Concurrency errors
var (
	// ErrIndexingInProgress is returned when another indexing run holds the
	// per-document lock. Callers may retry later.
	ErrIndexingInProgress = NewDomainError(ErrCodeConflict, "document is already being indexed")
)
