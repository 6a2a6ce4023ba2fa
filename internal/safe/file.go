// Package safe holds file helpers that refuse symlinks, oversized files and
// path tricks in user-supplied names.
package safe

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/rs/zerolog"
)

// DefaultMaxFileSize is the default maximum file size for safe file operations (1MB).
const DefaultMaxFileSize = 1 << 20

// Options configures OpenFile and WriteFile.
type Options struct {
	// MaxSize is the maximum allowed file size in bytes. Zero means DefaultMaxFileSize.
	MaxSize int64
	// Perm is the permission mode for written files. Zero means 0600.
	Perm os.FileMode
}

func (o *Options) maxSize() int64 {
	if o == nil || o.MaxSize == 0 {
		return DefaultMaxFileSize
	}
	return o.MaxSize
}

func (o *Options) perm() os.FileMode {
	if o == nil || o.Perm == 0 {
		return 0o600
	}
	return o.Perm
}

var (
	unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9_.-]`)
	windowsDeviceNames  = map[string]bool{
		"CON": true, "PRN": true, "AUX": true, "NUL": true,
		"COM1": true, "COM2": true, "COM3": true, "COM4": true,
		"LPT1": true, "LPT2": true, "LPT3": true,
	}
)

// Filename reduces a user-supplied name to a flat file name made of ASCII
// letters, digits, '_', '.' and '-'. It can return "" for names with nothing usable.
func Filename(name string) string {
	for _, sep := range []string{"/", `\`} {
		name = strings.ReplaceAll(name, sep, " ")
	}
	name = strings.Join(strings.Fields(name), "_")
	name = unsafeFilenameChars.ReplaceAllString(name, "")
	name = strings.Trim(name, "._")

	base, _, _ := strings.Cut(name, ".")
	if windowsDeviceNames[strings.ToUpper(base)] {
		name = "_" + name
	}
	return name
}

// OpenFile opens a regular file for reading. Symlinks, directories and files
// larger than the size limit are refused.
func OpenFile(path string, opts *Options) (*os.File, error) {
	clean := filepath.Clean(path)

	info, err := os.Lstat(clean)
	if err != nil {
		return nil, err
	}
	if info.Mode()&os.ModeSymlink != 0 {
		return nil, fmt.Errorf("file %q is a symlink, which is not allowed", path)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("path %q is not a regular file", path)
	}
	if info.Size() > opts.maxSize() {
		return nil, fmt.Errorf("file exceeds maximum allowed size of %d bytes", opts.maxSize())
	}

	// #nosec G304 - path validated above
	return os.Open(clean)
}

// WriteFile streams r into path through a temporary file in the same
// directory, so readers never see a partial file. Input beyond the size limit
// fails the write and leaves any existing file untouched.
func WriteFile(path string, r io.Reader, opts *Options, logger zerolog.Logger) (err error) {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			RemoveFile(tmp, logger)
		}
	}()

	limit := opts.maxSize()
	n, err := io.Copy(tmp, io.LimitReader(r, limit+1))
	if err != nil {
		Close(tmp, logger, "failed to close temp file")
		return err
	}
	if n > limit {
		Close(tmp, logger, "failed to close temp file")
		return fmt.Errorf("file exceeds maximum allowed size of %d bytes", limit)
	}
	if err = tmp.Chmod(opts.perm()); err != nil {
		Close(tmp, logger, "failed to close temp file")
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// Close closes gracefully a Closer interface, handling and logging the error.
func Close(c io.Closer, logger zerolog.Logger, msg string) {
	if err := c.Close(); err != nil {
		logger.Error().Err(err).Msg(msg)
	}
}

// RemoveFile removes gracefully a file, handling and logging the error.
func RemoveFile(f *os.File, logger zerolog.Logger) {
	if f == nil {
		return
	}
	if err := os.Remove(f.Name()); err != nil && !os.IsNotExist(err) {
		logger.Error().Err(err).Msg("failed to remove file")
	}
}
