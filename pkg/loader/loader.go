package loader

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/openfroyo/syringe/pkg/engine"
)

// readFile reads path, classifying failures as loader errors.
func readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, engine.NewLoaderError(path, "file does not exist", nil).WithCode(engine.CodeFileNotFound)
		}
		return nil, engine.NewLoaderError(path, "failed to read file", err)
	}
	return data, nil
}

// toDocument checks that a decoded value is a mapping and normalizes it.
// An empty file decodes to an empty document.
func toDocument(path string, v any) (map[string]any, error) {
	if v == nil {
		return map[string]any{}, nil
	}
	doc, ok := engine.NormalizeValue(v).(map[string]any)
	if !ok {
		return nil, engine.NewLoaderError(path, fmt.Sprintf("top level must be a mapping, got %T", v), nil).
			WithCode(engine.CodeParseFailed)
	}
	return doc, nil
}

func parseError(path string, err error) error {
	return engine.NewLoaderError(path, "failed to parse file", err).WithCode(engine.CodeParseFailed)
}

func hasExt(path string, exts ...string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range exts {
		if ext == e {
			return true
		}
	}
	return false
}
