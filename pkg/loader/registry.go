package loader

import (
	"fmt"
	"strings"

	"github.com/openfroyo/syringe/pkg/engine"
)

// Registry dispatches files to the first loader that supports them. A
// Registry is itself an engine.Loader.
type Registry struct {
	loaders []engine.Loader
}

// NewRegistry creates a registry over the given loaders, consulted in order.
func NewRegistry(loaders ...engine.Loader) *Registry {
	return &Registry{loaders: loaders}
}

// DefaultRegistry returns a registry with the YAML, JSON, TOML, CUE and
// Starlark loaders.
func DefaultRegistry() *Registry {
	return NewRegistry(NewYAMLLoader(), NewJSONLoader(), NewTOMLLoader(), NewCUELoader(), NewStarlarkLoader(0))
}

// Register appends a loader.
func (r *Registry) Register(l engine.Loader) {
	r.loaders = append(r.loaders, l)
}

// Name returns the names of the registered loaders.
func (r *Registry) Name() string {
	names := make([]string, len(r.loaders))
	for i, l := range r.loaders {
		names[i] = l.Name()
	}
	return strings.Join(names, ",")
}

// Supports reports whether any registered loader handles path.
func (r *Registry) Supports(path string) bool {
	return r.find(path) != nil
}

// LoadFile loads path with the first supporting loader.
func (r *Registry) LoadFile(path string) (map[string]any, error) {
	l := r.find(path)
	if l == nil {
		return nil, engine.NewLoaderError(path, fmt.Sprintf("no loader supports this file (have %s)", r.Name()), nil).
			WithCode(engine.CodeUnsupportedFormat)
	}
	return l.LoadFile(path)
}

func (r *Registry) find(path string) engine.Loader {
	for _, l := range r.loaders {
		if l.Supports(path) {
			return l
		}
	}
	return nil
}
