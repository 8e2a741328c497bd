package source

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Manifest lists paths to load at startup.
//
//	sources:
//	  - path: data/sales.csv
//	  - path: exports/2024.zip
//	    name: archive_2024
type Manifest struct {
	Sources []ManifestEntry `yaml:"sources"`
}

// ManifestEntry is one path in a manifest. Name, if set, overrides the
// dataset name of a single-file source.
type ManifestEntry struct {
	Path string `yaml:"path"`
	Name string `yaml:"name,omitempty"`
}

// ReadManifest parses a YAML manifest. Relative paths are resolved against
// the manifest's directory.
func ReadManifest(file string) (*Manifest, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", file, err)
	}

	dir := filepath.Dir(file)
	var errs []error
	for i := range m.Sources {
		e := &m.Sources[i]
		if e.Path == "" {
			errs = append(errs, fmt.Errorf("sources[%d]: missing path", i))
			continue
		}
		if !filepath.IsAbs(e.Path) {
			e.Path = filepath.Join(dir, e.Path)
		}
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("manifest %s: %w", file, errors.Join(errs...))
	}

	return &m, nil
}
