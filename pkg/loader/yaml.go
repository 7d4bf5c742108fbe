package loader

import (
	"gopkg.in/yaml.v3"
)

// YAMLLoader loads .yml and .yaml files.
type YAMLLoader struct{}

// NewYAMLLoader creates a YAML loader.
func NewYAMLLoader() *YAMLLoader {
	return &YAMLLoader{}
}

// Name returns "yaml".
func (l *YAMLLoader) Name() string { return "yaml" }

// Supports reports whether path has a YAML extension.
func (l *YAMLLoader) Supports(path string) bool {
	return hasExt(path, ".yml", ".yaml")
}

// LoadFile reads and decodes a YAML document.
func (l *YAMLLoader) LoadFile(path string) (map[string]any, error) {
	data, err := readFile(path)
	if err != nil {
		return nil, err
	}

	var v any
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, parseError(path, err)
	}
	return toDocument(path, v)
}
