package pba

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/island-mesh/island/internal/errors"
	"github.com/island-mesh/island/internal/safe"
)

// FileStorage keeps uploaded files flat in one directory.
type FileStorage struct {
	dir     string
	maxSize int64
	logger  zerolog.Logger
}

// NewFileStorage creates dir if needed.
func NewFileStorage(dir string, maxSize int64, logger zerolog.Logger) (*FileStorage, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}
	return &FileStorage{
		dir:     dir,
		maxSize: maxSize,
		logger:  logger,
	}, nil
}

func (s *FileStorage) path(op, name string) (string, error) {
	clean := safe.Filename(name)
	if clean == "" {
		return "", errors.InvalidValue(op, "%q is not a usable file name", name)
	}
	return filepath.Join(s.dir, clean), nil
}

// Save stores r under a sanitised version of name and returns that name.
func (s *FileStorage) Save(name string, r io.Reader) (string, error) {
	path, err := s.path("pba.Save", name)
	if err != nil {
		return "", err
	}
	if err := safe.WriteFile(path, r, &safe.Options{MaxSize: s.maxSize}, s.logger); err != nil {
		return "", fmt.Errorf("failed to save %s: %w", filepath.Base(path), err)
	}
	return filepath.Base(path), nil
}

// Open returns the stored file. A missing file fails with NotFound.
func (s *FileStorage) Open(name string) (*os.File, error) {
	path, err := s.path("pba.Open", name)
	if err != nil {
		return nil, err
	}
	f, err := safe.OpenFile(path, &safe.Options{MaxSize: s.maxSize})
	if os.IsNotExist(err) {
		return nil, errors.NotFound("pba.Open", "failed to open file %s: no such file", filepath.Base(path))
	}
	if err != nil {
		return nil, errors.E(errors.KindNotFound, "pba.Open", fmt.Sprintf("failed to open file %s", filepath.Base(path)), err)
	}
	return f, nil
}

// Delete removes the stored file. Deleting a missing file is not an error.
func (s *FileStorage) Delete(name string) error {
	path, err := s.path("pba.Delete", name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete %s: %w", filepath.Base(path), err)
	}
	return nil
}
