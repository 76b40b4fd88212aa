// Package source loads the snapshots listed in a run manifest into immutable
// SourceRows. Each loader knows one on-disk shape; everything downstream only
// sees player.SourceRow.
package source

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// Snapshot kinds.
const (
	KindCSV    = "csv"
	KindLegacy = "legacy"
)

// ErrUnknownKind is returned for a manifest entry whose kind has no loader.
var ErrUnknownKind = errors.New("unknown snapshot kind")

// Spec describes one snapshot in the manifest. The position of the entry in
// the manifest is its pass number.
type Spec struct {
	Name            string            `toml:"name"`
	Path            string            `toml:"path"`
	Kind            string            `toml:"kind"`
	Manual          bool              `toml:"manual"`
	Delimiter       string            `toml:"delimiter"`
	TimestampColumn string            `toml:"timestamp_column"`
	Columns         map[string]string `toml:"columns"`
}

// Manifest is the ordered list of snapshots for one run.
//
//	[[snapshot]]
//	name = "bulk"
//	path = "exports/players.csv"
//	kind = "csv"
type Manifest struct {
	Snapshots []Spec `toml:"snapshot"`
}

// LoadManifest reads a manifest file. Relative snapshot paths are resolved
// against the manifest's directory.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	return ParseManifest(data, filepath.Dir(path))
}

// ParseManifest decodes and validates a manifest.
func ParseManifest(data []byte, baseDir string) (*Manifest, error) {
	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	if len(m.Snapshots) == 0 {
		return nil, fmt.Errorf("manifest lists no snapshots")
	}

	seen := make(map[string]bool, len(m.Snapshots))
	for i := range m.Snapshots {
		s := &m.Snapshots[i]
		s.Name = strings.TrimSpace(s.Name)
		s.Kind = strings.ToLower(strings.TrimSpace(s.Kind))
		if s.Kind == "" {
			s.Kind = kindFromPath(s.Path)
		}
		if s.Name == "" {
			s.Name = strings.TrimSuffix(filepath.Base(s.Path), filepath.Ext(s.Path))
		}
		if s.Path == "" {
			return nil, fmt.Errorf("snapshot %d (%s): path is required", i, s.Name)
		}
		if seen[s.Name] {
			return nil, fmt.Errorf("snapshot %d: duplicate name %q", i, s.Name)
		}
		seen[s.Name] = true
		if s.Kind != KindCSV && s.Kind != KindLegacy {
			return nil, fmt.Errorf("snapshot %q: %w %q", s.Name, ErrUnknownKind, s.Kind)
		}
		if len([]rune(s.Delimiter)) > 1 {
			return nil, fmt.Errorf("snapshot %q: delimiter must be a single character", s.Name)
		}
		if !filepath.IsAbs(s.Path) && baseDir != "" {
			s.Path = filepath.Join(baseDir, s.Path)
		}
	}
	return &m, nil
}

func kindFromPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".db", ".sqlite", ".sqlite3":
		return KindLegacy
	default:
		return KindCSV
	}
}
