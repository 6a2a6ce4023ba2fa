package safe

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"payload.sh", "payload.sh"},
		{"../../etc/passwd", "etc_passwd"},
		{`C:\Users\admin\run me.ps1`, "C_Users_admin_run_me.ps1"},
		{"my cool file.bat", "my_cool_file.bat"},
		{"..", ""},
		{"...hidden", "hidden"},
		{"ünïcödé.exe", "ncd.exe"},
		{"CON.txt", "_CON.txt"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Filename(tt.in))
		})
	}
}

func TestOpenFile(t *testing.T) {
	dir := t.TempDir()
	regular := filepath.Join(dir, "pba.sh")
	require.NoError(t, os.WriteFile(regular, []byte("echo hi"), 0o600))

	t.Run("regular file", func(t *testing.T) {
		f, err := OpenFile(regular, nil)
		require.NoError(t, err)
		defer func() { _ = f.Close() }()
		b, err := io.ReadAll(f)
		require.NoError(t, err)
		assert.Equal(t, "echo hi", string(b))
	})

	t.Run("symlink refused", func(t *testing.T) {
		link := filepath.Join(dir, "link.sh")
		require.NoError(t, os.Symlink(regular, link))
		_, err := OpenFile(link, nil)
		assert.ErrorContains(t, err, "symlink")
	})

	t.Run("directory refused", func(t *testing.T) {
		_, err := OpenFile(dir, nil)
		assert.ErrorContains(t, err, "not a regular file")
	})

	t.Run("too large", func(t *testing.T) {
		_, err := OpenFile(regular, &Options{MaxSize: 3})
		assert.ErrorContains(t, err, "maximum allowed size")
	})

	t.Run("missing", func(t *testing.T) {
		_, err := OpenFile(filepath.Join(dir, "nope"), nil)
		assert.True(t, os.IsNotExist(err))
	})
}

func TestWriteFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "upload.bin")
	logger := zerolog.Nop()

	require.NoError(t, WriteFile(path, strings.NewReader("first"), nil, logger))
	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "first", string(got))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	err = WriteFile(path, strings.NewReader("way too long"), &Options{MaxSize: 4}, logger)
	assert.ErrorContains(t, err, "maximum allowed size")

	got, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "first", string(got), "failed write must keep the old file")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must be cleaned up")
}
