package domain

import (
	"path"
	"strings"
	"time"
)

// FileType represents the declared format of an uploaded document
type FileType string

const (
	FileTypePDF      FileType = "pdf"
	FileTypeText     FileType = "txt"
	FileTypeMarkdown FileType = "md"
	FileTypeDocx     FileType = "docx"
)

// DocumentStatus represents the indexing lifecycle of a document
type DocumentStatus string

const (
	DocumentStatusUploaded DocumentStatus = "uploaded"
	DocumentStatusIndexed  DocumentStatus = "indexed"
	DocumentStatusError    DocumentStatus = "error"
)

// Document represents a knowledge document owned by a bot. Content holds the
// extracted plain text once indexing has run; FileRef points at the raw
// uploaded file when the text was not supplied inline.
type Document struct {
	ID           int64
	BotID        int64
	Title        string
	FileRef      string
	FileType     FileType
	Status       DocumentStatus
	Content      string
	ErrorMessage string
	WordCount    int
	CharCount    int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// HasSource reports whether the document has anything to index from.
func (d *Document) HasSource() bool {
	return strings.TrimSpace(d.Content) != "" || d.FileRef != ""
}

// ValidateDocument validates a Document instance
func ValidateDocument(d *Document) error {
	if d == nil {
		return NewDomainError(ErrCodeValidation, "document cannot be nil")
	}
	if d.BotID <= 0 {
		return NewDomainError(ErrCodeValidation, "document BotID is required")
	}
	if d.Title == "" {
		return NewDomainError(ErrCodeValidation, "document Title is required")
	}
	if !isValidFileType(d.FileType) {
		return ErrInvalidFileType
	}
	if !isValidDocumentStatus(d.Status) {
		return ErrInvalidDocumentStatus
	}
	return nil
}

// DetectFileType maps a declared type, MIME type, or file name to a FileType.
// Returns false when the format is not one we can extract.
func DetectFileType(declared string) (FileType, bool) {
	value := strings.ToLower(strings.TrimSpace(declared))
	if ft, ok := matchFileType(value); ok {
		return ft, true
	}
	if ext := strings.TrimPrefix(path.Ext(value), "."); ext != "" {
		return matchFileType(ext)
	}
	return "", false
}

func matchFileType(value string) (FileType, bool) {
	switch value {
	case "pdf", "application/pdf":
		return FileTypePDF, true
	case "txt", "text", "text/plain":
		return FileTypeText, true
	case "md", "markdown", "text/markdown":
		return FileTypeMarkdown, true
	case "docx", "application/vnd.openxmlformats-officedocument.wordprocessingml.document":
		return FileTypeDocx, true
	}
	return "", false
}

func isValidFileType(t FileType) bool {
	switch t {
	case FileTypePDF, FileTypeText, FileTypeMarkdown, FileTypeDocx:
		return true
	}
	return false
}

func isValidDocumentStatus(s DocumentStatus) bool {
	switch s {
	case DocumentStatusUploaded, DocumentStatusIndexed, DocumentStatusError:
		return true
	}
	return false
}
