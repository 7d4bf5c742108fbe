package loader

import (
	"bytes"

	jsoniter "github.com/json-iterator/go"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// JSONLoader loads .json files. Numbers are decoded exactly, so integers
// stay integers.
type JSONLoader struct{}

// NewJSONLoader creates a JSON loader.
func NewJSONLoader() *JSONLoader {
	return &JSONLoader{}
}

// Name returns "json".
func (l *JSONLoader) Name() string { return "json" }

// Supports reports whether path has a JSON extension.
func (l *JSONLoader) Supports(path string) bool {
	return hasExt(path, ".json")
}

// LoadFile reads and decodes a JSON document.
func (l *JSONLoader) LoadFile(path string) (map[string]any, error) {
	data, err := readFile(path)
	if err != nil {
		return nil, err
	}
	v, err := decodeJSON(data)
	if err != nil {
		return nil, parseError(path, err)
	}
	return toDocument(path, v)
}

func decodeJSON(data []byte) (any, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	dec := jsonAPI.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}
