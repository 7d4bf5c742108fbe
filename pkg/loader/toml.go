package loader

import (
	"github.com/pelletier/go-toml/v2"
)

// TOMLLoader loads .toml files. Date and time values become RFC 3339 strings.
type TOMLLoader struct{}

// NewTOMLLoader creates a TOML loader.
func NewTOMLLoader() *TOMLLoader {
	return &TOMLLoader{}
}

// Name returns "toml".
func (l *TOMLLoader) Name() string { return "toml" }

// Supports reports whether path has a TOML extension.
func (l *TOMLLoader) Supports(path string) bool {
	return hasExt(path, ".toml")
}

// LoadFile reads and decodes a TOML document.
func (l *TOMLLoader) LoadFile(path string) (map[string]any, error) {
	data, err := readFile(path)
	if err != nil {
		return nil, err
	}

	var v map[string]any
	if err := toml.Unmarshal(data, &v); err != nil {
		return nil, parseError(path, err)
	}
	if v == nil {
		return map[string]any{}, nil
	}
	return toDocument(path, v)
}
