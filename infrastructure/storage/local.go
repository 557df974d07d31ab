package storage

import (
	"context"
	"os"

	pkgerrors "github.com/Skryldev/cpr-lab/pkg/errors"
)

// LocalStorage implements ports.SourceProvider for the local filesystem
type LocalStorage struct {
	// MaxSize rejects files larger than this many bytes; 0 means no limit
	MaxSize int64
}

// NewLocalStorage creates a new local source provider
func NewLocalStorage() *LocalStorage {
	return &LocalStorage{}
}

// ReadFile reads a whole container into memory
func (s *LocalStorage) ReadFile(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.MaxSize > 0 {
		size, err := s.Size(ctx, path)
		if err != nil {
			return nil, pkgerrors.NewIOError(path, "failed to stat container", err)
		}
		if size > s.MaxSize {
			return nil, pkgerrors.NewValidationError("size", size, "container exceeds the configured size limit")
		}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, pkgerrors.NewIOError(path, "failed to read container", err)
	}
	return data, nil
}

// Exists checks if a file exists
func (s *LocalStorage) Exists(_ context.Context, path string) (bool, error) {
	_, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Size returns file size in bytes
func (s *LocalStorage) Size(_ context.Context, path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}
