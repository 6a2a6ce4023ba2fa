package plugins

import (
	"archive/tar"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/island-mesh/island/internal/errors"
	"github.com/island-mesh/island/internal/island/models"
)

// Members of a plugin archive. A plugin ships either one source.tar for every
// supported platform or a source-<os>.tar per platform; the specific file wins.
const (
	manifestMember     = "manifest.yaml"
	configSchemaMember = "config-schema.json"
	sharedSourceMember = "source.tar"
)

// MaxArchiveSize caps a plugin archive and each of its members.
const MaxArchiveSize = 64 << 20

func invalidArchive(format string, args ...any) error {
	return errors.E(errors.KindMalformedInput, "plugins.ParseArchive",
		"invalid plugin archive: "+fmt.Sprintf(format, args...), nil)
}

// ParseArchive reads a plugin archive into one AgentPlugin per supported
// operating system, in models.OperatingSystems order.
func ParseArchive(archive []byte) ([]models.AgentPlugin, error) {
	var (
		manifest     *models.AgentPluginManifest
		configSchema = map[string]any{}
		sources      = map[string][]byte{}
	)

	tr := tar.NewReader(bytes.NewReader(archive))
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, invalidArchive("%v", err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}

		data, err := io.ReadAll(io.LimitReader(tr, MaxArchiveSize+1))
		if err != nil {
			return nil, invalidArchive("%s: %v", hdr.Name, err)
		}
		if len(data) > MaxArchiveSize {
			return nil, invalidArchive("%s exceeds %d bytes", hdr.Name, MaxArchiveSize)
		}

		switch name := strings.TrimPrefix(path.Clean(hdr.Name), "./"); {
		case name == manifestMember:
			var m models.AgentPluginManifest
			if err := yaml.Unmarshal(data, &m); err != nil {
				return nil, invalidArchive("manifest: %v", err)
			}
			manifest = &m
		case name == configSchemaMember:
			if err := json.Unmarshal(data, &configSchema); err != nil {
				return nil, invalidArchive("config schema: %v", err)
			}
		case name == sharedSourceMember:
			sources[""] = data
		case strings.HasPrefix(name, "source-") && strings.HasSuffix(name, ".tar"):
			sources[strings.TrimSuffix(strings.TrimPrefix(name, "source-"), ".tar")] = data
		}
	}

	if manifest == nil {
		return nil, invalidArchive("missing %s", manifestMember)
	}
	if err := validateManifest(*manifest); err != nil {
		return nil, err
	}

	var out []models.AgentPlugin
	for _, os := range models.OperatingSystems {
		if !manifest.Supports(os) {
			continue
		}
		source, ok := sources[string(os)]
		if !ok {
			source, ok = sources[""]
		}
		if !ok {
			return nil, invalidArchive("no source archive for %s", os)
		}
		out = append(out, models.AgentPlugin{
			Manifest:            *manifest,
			ConfigSchema:        configSchema,
			SourceArchive:       source,
			HostOperatingSystem: os,
		})
	}
	return out, nil
}

func validateManifest(m models.AgentPluginManifest) error {
	if m.Name == "" || strings.ContainsAny(m.Name, `/\ `) {
		return invalidArchive("manifest: plugin name %q is not valid", m.Name)
	}
	if _, err := models.ParseAgentPluginType(string(m.PluginType)); err != nil {
		return invalidArchive("manifest: %v", err)
	}
	if m.Version == "" {
		return invalidArchive("manifest: version is required")
	}
	if len(m.SupportedOperatingSystems) == 0 {
		return invalidArchive("manifest: no supported operating systems")
	}
	for _, os := range m.SupportedOperatingSystems {
		if _, err := models.ParseOperatingSystem(string(os)); err != nil {
			return invalidArchive("manifest: %v", err)
		}
	}
	return nil
}
