package rules

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadFile parses one YAML rule pack. The source name defaults to the file name.
func LoadFile(path string) (Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Source{}, fmt.Errorf("read rule file %s: %w", path, err)
	}
	var src Source
	if err := yaml.Unmarshal(data, &src); err != nil {
		return Source{}, fmt.Errorf("parse rule file %s: %w", path, err)
	}
	if strings.TrimSpace(src.Name) == "" {
		src.Name = filepath.Base(path)
	}
	return src, nil
}

// LoadDir parses every *.yaml / *.yml file in dir, sorted by name. A missing
// directory yields no sources.
func LoadDir(dir string) ([]Source, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read rules dir: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".yaml", ".yml":
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	sources := make([]Source, 0, len(names))
	for _, name := range names {
		src, err := LoadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		sources = append(sources, src)
	}
	return sources, nil
}

// LoadWithBuiltins compiles the builtin pack plus any custom packs in dir.
func LoadWithBuiltins(dir string) (*Registry, error) {
	custom, err := LoadDir(dir)
	if err != nil {
		return nil, err
	}
	return Load(append([]Source{Builtins()}, custom...)...)
}
