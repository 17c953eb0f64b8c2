package document

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Manifest file names, checked in order.
const (
	ManifestYAML = "project.yaml"
	ManifestTOML = "project.toml"
)

// Manifest lists a project's documents in the order they should be read.
type Manifest struct {
	Project   string          `yaml:"project" toml:"project"`
	Documents []ManifestEntry `yaml:"documents" toml:"documents"`
}

// ManifestEntry describes one document file relative to the project directory.
type ManifestEntry struct {
	Type      string    `yaml:"type" toml:"type"`
	Path      string    `yaml:"path" toml:"path"`
	Version   string    `yaml:"version,omitempty" toml:"version,omitempty"`
	CreatedAt time.Time `yaml:"created_at,omitempty" toml:"created_at,omitempty"`
}

// LoadManifest reads the manifest in dir. It returns nil, nil when the
// directory has no manifest.
func LoadManifest(dir string) (*Manifest, error) {
	for _, name := range []string{ManifestYAML, ManifestTOML} {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", name, err)
		}
		m, err := ParseManifest(name, data)
		if err != nil {
			return nil, err
		}
		return m, nil
	}
	return nil, nil
}

// ParseManifest decodes manifest data; the format follows the file extension.
func ParseManifest(name string, data []byte) (*Manifest, error) {
	var m Manifest
	switch filepath.Ext(name) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", name, err)
		}
	case ".toml":
		if err := toml.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", name, err)
		}
	default:
		return nil, fmt.Errorf("unsupported manifest format %q", name)
	}
	for i, d := range m.Documents {
		if d.Path == "" {
			return nil, fmt.Errorf("parsing %s: document %d has no path", name, i+1)
		}
	}
	return &m, nil
}

// WriteManifest stores m as YAML in dir.
func WriteManifest(dir string, m *Manifest) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("encoding manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, ManifestYAML), data, 0o644); err != nil {
		return fmt.Errorf("writing manifest: %w", err)
	}
	return nil
}
