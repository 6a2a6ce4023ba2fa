package plugins

import (
	"archive/tar"
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/island-mesh/island/internal/errors"
	"github.com/island-mesh/island/internal/island/models"
)

type member struct {
	name string
	data string
}

func buildArchive(t *testing.T, members ...member) []byte {
	t.Helper()
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	for _, m := range members {
		require.NoError(t, tw.WriteHeader(&tar.Header{
			Name:     m.name,
			Mode:     0o644,
			Size:     int64(len(m.data)),
			Typeflag: tar.TypeReg,
		}))
		_, err := tw.Write([]byte(m.data))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	return buf.Bytes()
}

const sshManifest = `
name: SSH
plugin_type: Exploiter
version: 1.0.10
title: SSH Exploiter
description: Attempts brute-force attacks against SSH
supported_operating_systems: [linux, windows]
safe: true
`

func sshArchive(t *testing.T) []byte {
	return buildArchive(t,
		member{"manifest.yaml", sshManifest},
		member{"config-schema.json", `{"type": "object", "properties": {"timeout": {"type": "number"}}}`},
		member{"source.tar", "shared"},
		member{"./source-windows.tar", "windows build"},
	)
}

func TestParseArchive(t *testing.T) {
	plugins, err := ParseArchive(sshArchive(t))
	require.NoError(t, err)
	require.Len(t, plugins, 2)

	linux, windows := plugins[0], plugins[1]
	assert.Equal(t, models.OSLinux, linux.HostOperatingSystem)
	assert.Equal(t, models.OSWindows, windows.HostOperatingSystem)
	assert.Equal(t, []byte("shared"), linux.SourceArchive)
	assert.Equal(t, []byte("windows build"), windows.SourceArchive)

	assert.Equal(t, "SSH", linux.Manifest.Name)
	assert.Equal(t, models.PluginExploiter, linux.Manifest.PluginType)
	assert.Equal(t, "1.0.10", linux.Manifest.Version)
	assert.True(t, linux.Manifest.Safe)
	assert.Equal(t, "object", linux.ConfigSchema["type"])
}

func TestParseArchive_OnlySupportedPlatforms(t *testing.T) {
	archive := buildArchive(t,
		member{"manifest.yaml", "name: Zerologon\nplugin_type: Exploiter\nversion: 1.0.0\nsupported_operating_systems: [windows]\n"},
		member{"source-windows.tar", "win"},
	)

	plugins, err := ParseArchive(archive)
	require.NoError(t, err)
	require.Len(t, plugins, 1)
	assert.Equal(t, models.OSWindows, plugins[0].HostOperatingSystem)
	assert.Empty(t, plugins[0].ConfigSchema)
}

func TestParseArchive_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		archive func(t *testing.T) []byte
	}{
		{
			name:    "not a tar",
			archive: func(*testing.T) []byte { return []byte("definitely not a tar archive, but long enough to need a header block") },
		},
		{
			name: "missing manifest",
			archive: func(t *testing.T) []byte {
				return buildArchive(t, member{"source.tar", "x"})
			},
		},
		{
			name: "unparsable manifest",
			archive: func(t *testing.T) []byte {
				return buildArchive(t, member{"manifest.yaml", "name: [oops"}, member{"source.tar", "x"})
			},
		},
		{
			name: "unknown plugin type",
			archive: func(t *testing.T) []byte {
				return buildArchive(t,
					member{"manifest.yaml", "name: SSH\nplugin_type: Scanner\nversion: 1.0.0\nsupported_operating_systems: [linux]\n"},
					member{"source.tar", "x"})
			},
		},
		{
			name: "unknown operating system",
			archive: func(t *testing.T) []byte {
				return buildArchive(t,
					member{"manifest.yaml", "name: SSH\nplugin_type: Exploiter\nversion: 1.0.0\nsupported_operating_systems: [plan9]\n"},
					member{"source.tar", "x"})
			},
		},
		{
			name: "name with a path separator",
			archive: func(t *testing.T) []byte {
				return buildArchive(t,
					member{"manifest.yaml", "name: ../SSH\nplugin_type: Exploiter\nversion: 1.0.0\nsupported_operating_systems: [linux]\n"},
					member{"source.tar", "x"})
			},
		},
		{
			name: "missing version",
			archive: func(t *testing.T) []byte {
				return buildArchive(t,
					member{"manifest.yaml", "name: SSH\nplugin_type: Exploiter\nsupported_operating_systems: [linux]\n"},
					member{"source.tar", "x"})
			},
		},
		{
			name: "missing source for a supported platform",
			archive: func(t *testing.T) []byte {
				return buildArchive(t, member{"manifest.yaml", sshManifest}, member{"source-linux.tar", "x"})
			},
		},
		{
			name: "unparsable config schema",
			archive: func(t *testing.T) []byte {
				return buildArchive(t,
					member{"manifest.yaml", sshManifest},
					member{"config-schema.json", "{"},
					member{"source.tar", "x"})
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseArchive(tt.archive(t))
			require.Error(t, err)
			assert.Equal(t, errors.KindMalformedInput, errors.KindOf(err))
			assert.Contains(t, errors.Message(err), "invalid plugin archive")
		})
	}
}
