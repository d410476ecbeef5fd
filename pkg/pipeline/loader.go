package pipeline

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"slices"

	"gopkg.in/yaml.v3"
)

// LoadFromFile reads and validates one pipeline file.
func LoadFromFile(path string) (Pipeline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Pipeline{}, err
	}
	p, err := Parse(data)
	if err != nil {
		return p, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

// Parse decodes a pipeline document and checks that its operators build.
func Parse(data []byte) (Pipeline, error) {
	var p Pipeline

	if len(data) == 0 {
		return p, fmt.Errorf("empty pipeline file")
	}
	if err := yaml.Unmarshal(data, &p); err != nil {
		return p, err
	}

	if p.Name == "" {
		return p, fmt.Errorf("pipeline name is required")
	}
	if len(p.Operators) == 0 {
		return p, fmt.Errorf("pipeline %q has no operators", p.Name)
	}
	if _, err := p.Build(); err != nil {
		return p, err
	}
	if !p.StrictOrder {
		log.Printf("[Pipeline] %s: strict_order is off, operator order is trusted", p.Name)
	}
	return p, nil
}

// LoadDir loads every *.yaml and *.yml file in dir, sorted by file name.
// Pipeline names must be unique across the directory.
func LoadDir(dir string) ([]Pipeline, error) {
	var files []string
	for _, pattern := range []string{"*.yaml", "*.yml"} {
		m, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, err
		}
		files = append(files, m...)
	}
	slices.Sort(files)

	seen := map[string]string{}
	out := make([]Pipeline, 0, len(files))
	for _, f := range files {
		p, err := LoadFromFile(f)
		if err != nil {
			return nil, err
		}
		if prev, dup := seen[p.Name]; dup {
			return nil, fmt.Errorf("pipeline %q defined in both %s and %s", p.Name, prev, f)
		}
		seen[p.Name] = f
		out = append(out, p)
	}
	return out, nil
}

// Find returns the pipeline with the given name.
func Find(pipelines []Pipeline, name string) (Pipeline, bool) {
	for _, p := range pipelines {
		if p.Name == name {
			return p, true
		}
	}
	return Pipeline{}, false
}
