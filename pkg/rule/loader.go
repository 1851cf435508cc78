package rule

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

// Loader handles loading pattern sets from YAML files.
type Loader struct {
	fs fs.FS // nil reads from the OS filesystem
}

// NewLoader creates a loader that reads from the OS filesystem.
func NewLoader() *Loader {
	return &Loader{}
}

// NewLoaderWithFS creates a loader with a custom filesystem.
func NewLoaderWithFS(fsys fs.FS) *Loader {
	return &Loader{
		fs: fsys,
	}
}

// Load parses a pattern set from YAML bytes and validates it.
func (l *Loader) Load(data []byte) ([]*Rule, error) {
	var file yamlSetFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if len(file.Patterns) == 0 {
		return nil, fmt.Errorf("no patterns found in YAML")
	}

	rules := make([]*Rule, 0, len(file.Patterns))
	for _, yr := range file.Patterns {
		rules = append(rules, convertYAMLRule(yr))
	}

	if err := ValidateSet(rules); err != nil {
		return nil, err
	}
	return rules, nil
}

// LoadFile loads a pattern set from a YAML file path.
func (l *Loader) LoadFile(path string) ([]*Rule, error) {
	data, err := l.readFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", path, err)
	}
	rules, err := l.Load(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rules, nil
}

// LoadDir loads every .yml and .yaml file under dir, in path order, and
// validates the combined set.
func (l *Loader) LoadDir(dir string) ([]*Rule, error) {
	fsys, root := l.fs, dir
	if fsys == nil {
		fsys, root = os.DirFS(dir), "."
	}

	var paths []string
	err := fs.WalkDir(fsys, root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if ext := filepath.Ext(path); ext == ".yml" || ext == ".yaml" {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	var rules []*Rule
	for _, path := range paths {
		data, err := fs.ReadFile(fsys, path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}

		var file yamlSetFile
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
		for _, yr := range file.Patterns {
			rules = append(rules, convertYAMLRule(yr))
		}
	}

	if len(rules) == 0 {
		return nil, fmt.Errorf("no patterns found in %s", dir)
	}
	if err := ValidateSet(rules); err != nil {
		return nil, err
	}
	return rules, nil
}

func (l *Loader) readFile(path string) ([]byte, error) {
	if l.fs == nil {
		return os.ReadFile(path)
	}
	return fs.ReadFile(l.fs, path)
}

func convertYAMLRule(yr yamlRule) *Rule {
	r := &Rule{
		Name:             yr.Name,
		Pattern:          yr.Pattern,
		Flags:            yr.Flags,
		Description:      yr.Description,
		Examples:         yr.Examples,
		NegativeExamples: yr.NegativeExamples,
	}
	if yr.ID != nil {
		r.ID = *yr.ID
		r.HasID = true
	}
	return r
}
