// Package pba manages the custom post-breach action files users upload for
// agents to run: one file for Linux targets and one for Windows targets.
package pba

import (
	"context"
	"io"
	"os"
	"sync"

	"github.com/rs/zerolog"

	"github.com/island-mesh/island/internal/errors"
	"github.com/island-mesh/island/internal/safe"
)

// FileType selects the target operating system of a PBA file.
type FileType string

const (
	LinuxFile   FileType = "PBAlinux"
	WindowsFile FileType = "PBAwindows"
)

// ParseFileType fails with InvalidValue for anything but the two known types.
func ParseFileType(s string) (FileType, error) {
	switch FileType(s) {
	case LinuxFile, WindowsFile:
		return FileType(s), nil
	}
	return "", errors.InvalidValue("pba.ParseFileType", "unsupported file type %q", s)
}

// storedName keeps each type's files apart on disk so the two types may use
// the same file name.
func storedName(ft FileType, name string) string {
	return string(ft) + "_" + name
}

// Service tracks which stored file is the current PBA for each type.
type Service struct {
	storage *FileStorage
	logger  zerolog.Logger

	mu    sync.RWMutex
	names map[FileType]string
}

// NewService creates a PBA service over storage.
func NewService(storage *FileStorage, logger zerolog.Logger) *Service {
	return &Service{
		storage: storage,
		logger:  logger.With().Str("component", "pba").Logger(),
		names:   make(map[FileType]string),
	}
}

// Filename returns the configured file name for fileType, "" if none.
func (s *Service) Filename(fileType FileType) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.names[fileType]
}

// Upload stores r as the PBA file for fileType and returns the stored name.
func (s *Service) Upload(_ context.Context, fileType string, filename string, r io.Reader) (string, error) {
	ft, err := ParseFileType(fileType)
	if err != nil {
		return "", err
	}

	name := safe.Filename(filename)
	if name == "" {
		return "", errors.InvalidValue("pba.Upload", "%q is not a usable file name", filename)
	}
	if _, err := s.storage.Save(storedName(ft, name), r); err != nil {
		return "", err
	}

	s.mu.Lock()
	previous := s.names[ft]
	s.names[ft] = name
	s.mu.Unlock()

	if previous != "" && previous != name {
		if err := s.storage.Delete(storedName(ft, previous)); err != nil {
			s.logger.Warn().Err(err).Str("file", previous).Msg("Failed to delete replaced PBA file")
		}
	}

	s.logger.Info().Str("type", string(ft)).Str("file", name).Msg("PBA file uploaded")
	return name, nil
}

// Open returns the PBA file for fileType. No configured or missing file fails with NotFound.
func (s *Service) Open(_ context.Context, fileType string) (*os.File, string, error) {
	ft, err := ParseFileType(fileType)
	if err != nil {
		return nil, "", err
	}

	name := s.Filename(ft)
	if name == "" {
		err := errors.NotFound("pba.Open", "failed to open file: no %s file uploaded", ft)
		s.logger.Error().Err(err).Msg("Failed to open PBA file")
		return nil, "", err
	}

	f, err := s.storage.Open(storedName(ft, name))
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to open PBA file")
		return nil, "", err
	}
	return f, name, nil
}

// Delete removes the PBA file for fileType, if any.
func (s *Service) Delete(_ context.Context, fileType string) error {
	ft, err := ParseFileType(fileType)
	if err != nil {
		return err
	}

	s.mu.Lock()
	name := s.names[ft]
	delete(s.names, ft)
	s.mu.Unlock()

	if name == "" {
		return nil
	}
	return s.storage.Delete(storedName(ft, name))
}

// OnResetAgentConfiguration removes both PBA files.
func (s *Service) OnResetAgentConfiguration(ctx context.Context, _ any) error {
	for _, ft := range []FileType{LinuxFile, WindowsFile} {
		if err := s.Delete(ctx, string(ft)); err != nil {
			return err
		}
	}
	return nil
}
