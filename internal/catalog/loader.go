package catalog

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/opensource-finance/covenant/internal/domain"
	"gopkg.in/yaml.v3"
)

// patternFile is the on-disk layout. A file holds either a "patterns" list
// or a single pattern at the top level.
type patternFile struct {
	Version  string      `yaml:"version"`
	Patterns []yaml.Node `yaml:"patterns"`
}

// Parse decodes YAML pattern definitions. Patterns default to enabled.
func Parse(data []byte) ([]domain.RiskPattern, error) {
	var file patternFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing pattern file: %w", err)
	}

	if len(file.Patterns) == 0 {
		if len(bytes.TrimSpace(data)) == 0 {
			return nil, nil
		}
		p := domain.RiskPattern{Enabled: true}
		if err := yaml.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("parsing pattern: %w", err)
		}
		if p.ID == "" {
			return nil, nil
		}
		if p.Version == "" {
			p.Version = file.Version
		}
		return []domain.RiskPattern{p}, nil
	}

	out := make([]domain.RiskPattern, 0, len(file.Patterns))
	for i := range file.Patterns {
		p := domain.RiskPattern{Enabled: true, Version: file.Version}
		if err := file.Patterns[i].Decode(&p); err != nil {
			return nil, fmt.Errorf("parsing pattern %d: %w", i, err)
		}
		out = append(out, p)
	}
	return out, nil
}

// LoadFile reads the patterns defined in a YAML file.
func LoadFile(path string) ([]domain.RiskPattern, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	patterns, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return patterns, nil
}

// LoadDir reads every *.yaml and *.yml file in dir in lexical order.
// A missing directory yields no patterns.
func LoadDir(dir string) ([]domain.RiskPattern, error) {
	if dir == "" {
		return nil, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading pattern directory %s: %w", dir, err)
	}

	var out []domain.RiskPattern
	for _, entry := range entries {
		if entry.IsDir() || !isPatternFile(entry.Name()) {
			continue
		}
		patterns, err := LoadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		out = append(out, patterns...)
	}
	return out, nil
}

// Marshal encodes patterns in the file layout read by Parse.
func Marshal(version string, patterns []domain.RiskPattern) ([]byte, error) {
	doc := struct {
		Version  string               `yaml:"version,omitempty"`
		Patterns []domain.RiskPattern `yaml:"patterns"`
	}{Version: version, Patterns: patterns}
	return yaml.Marshal(doc)
}

func isPatternFile(name string) bool {
	return strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml")
}
