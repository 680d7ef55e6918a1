package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	apperrors "github.com/heap-snapshot/pkg/errors"
)

// LocalStorage serves dumps from a directory.
type LocalStorage struct {
	fs       afero.Fs
	basePath string
}

// NewLocalStorage creates a LocalStorage rooted at basePath on fs.
func NewLocalStorage(fs afero.Fs, basePath string) (*LocalStorage, error) {
	if basePath == "" {
		basePath = "."
	}
	info, err := fs.Stat(basePath)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeStorageError, "dump directory is not accessible", err)
	}
	if !info.IsDir() {
		return nil, apperrors.Newf(apperrors.CodeStorageError, "%s is not a directory", basePath)
	}
	return &LocalStorage{fs: fs, basePath: basePath}, nil
}

// Fetch returns the path of key. Absolute keys are used as they are.
func (s *LocalStorage) Fetch(ctx context.Context, key string) (string, error) {
	if err := canceled(ctx); err != nil {
		return "", err
	}

	fullPath := s.getFullPath(key)
	info, err := s.fs.Stat(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", apperrors.Newf(apperrors.CodeNotFound, "dump not found: %s", key)
		}
		return "", apperrors.Wrap(apperrors.CodeStorageError, "failed to stat dump", err)
	}
	if info.IsDir() {
		return "", apperrors.Newf(apperrors.CodeInvalidInput, "%s is a directory", key)
	}
	return fullPath, nil
}

// Download opens key for reading.
func (s *LocalStorage) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := canceled(ctx); err != nil {
		return nil, err
	}

	file, err := s.fs.Open(s.getFullPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperrors.Newf(apperrors.CodeNotFound, "dump not found: %s", key)
		}
		return nil, apperrors.Wrap(apperrors.CodeStorageError, "failed to open dump", err)
	}
	return file, nil
}

// Exists checks if an object exists at the specified key.
func (s *LocalStorage) Exists(ctx context.Context, key string) (bool, error) {
	if err := canceled(ctx); err != nil {
		return false, err
	}

	exists, err := afero.Exists(s.fs, s.getFullPath(key))
	if err != nil {
		return false, apperrors.Wrap(apperrors.CodeStorageError, "failed to check dump existence", err)
	}
	return exists, nil
}

// GetURL returns the file path for local storage.
func (s *LocalStorage) GetURL(key string) string {
	return s.getFullPath(key)
}

// GetBasePath returns the base path for the local storage.
func (s *LocalStorage) GetBasePath() string {
	return s.basePath
}

func (s *LocalStorage) getFullPath(key string) string {
	if filepath.IsAbs(key) {
		return key
	}
	return filepath.Join(s.basePath, strings.TrimPrefix(key, "/"))
}
