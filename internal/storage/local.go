package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/convoflow-ai/convoflow/internal/domain"
)

// LocalStore serves document files from a directory on disk. File references
// are paths relative to the root; anything escaping the root is rejected.
type LocalStore struct {
	root string
}

// NewLocalStore creates a LocalStore rooted at dir, creating it if needed.
func NewLocalStore(dir string) (*LocalStore, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve storage root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage root: %w", err)
	}
	return &LocalStore{root: abs}, nil
}

// Fetch reads the bytes of a stored document.
func (s *LocalStore) Fetch(ctx context.Context, fileRef string) ([]byte, error) {
	path, err := s.resolve(fileRef)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeSourceMissing, "stored file could not be read", err)
	}
	return data, nil
}

// Store writes document bytes under the given reference and returns the
// reference back for persistence.
func (s *LocalStore) Store(ctx context.Context, fileRef string, data []byte) (string, error) {
	path, err := s.resolve(fileRef)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("failed to create storage directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	return fileRef, nil
}

// Delete removes a stored file. A missing file is not an error; the caller
// only cares that the reference no longer resolves.
func (s *LocalStore) Delete(ctx context.Context, fileRef string) error {
	path, err := s.resolve(fileRef)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

// resolve joins the reference onto the root and verifies the result stays
// inside it.
func (s *LocalStore) resolve(fileRef string) (string, error) {
	if strings.TrimSpace(fileRef) == "" {
		return "", domain.ErrSourceMissing
	}
	path := filepath.Join(s.root, filepath.FromSlash(fileRef))
	cleaned := filepath.Clean(path)
	if cleaned != s.root && !strings.HasPrefix(cleaned, s.root+string(filepath.Separator)) {
		return "", domain.NewDomainError(domain.ErrCodeValidation, "file reference escapes storage root")
	}
	return cleaned, nil
}
