package config

import (
	"fmt"

	"github.com/openfroyo/syringe/pkg/engine"
	"github.com/openfroyo/syringe/pkg/token"
)

// Merge weights. Lower weights are folded first, so higher weights win.
const (
	// WeightNamespaced applies to keys a namespaced file declares without a
	// namespace; they are qualified with the file's namespace.
	WeightNamespaced = 1

	// WeightExplicit applies to keys a namespaced file declares with an
	// explicit namespace, deliberately overriding another file's entries.
	WeightExplicit = 5

	// WeightRoot applies to every key of a file loaded without a namespace.
	WeightRoot = 10
)

// Entry is one namespaced key of a file together with its merge weight.
type Entry[T any] struct {
	Name   string
	Weight int
	Value  T
}

// FileUnit is a single loaded configuration file. It is immutable after
// construction.
type FileUnit struct {
	filename   string
	namespace  Namespace
	raw        map[string]any
	imports    []string
	inherit    string
	parameters map[string]any
	services   map[string]map[string]any
	extensions map[string]any
}

// NewFileUnit wraps a decoded document. The top-level sections are checked
// for shape; key validity is checked by Validate.
func NewFileUnit(filename string, doc map[string]any, namespace string) (*FileUnit, error) {
	f := &FileUnit{
		filename:   filename,
		namespace:  Namespace(namespace),
		raw:        doc,
		parameters: map[string]any{},
		services:   map[string]map[string]any{},
		extensions: map[string]any{},
	}
	if err := f.parse(); err != nil {
		if e, ok := err.(*engine.Error); ok && e.File == "" {
			e.File = filename
		}
		return nil, err
	}
	return f, nil
}

func (f *FileUnit) parse() error {
	if v, ok := f.raw["imports"]; ok && v != nil {
		switch imports := v.(type) {
		case string:
			f.imports = []string{imports}
		case []any:
			for i, item := range imports {
				s, ok := item.(string)
				if !ok {
					return engine.NewConfigError("import %d must be a filename, got %T", i, item).WithCode(engine.CodeInvalidShape)
				}
				f.imports = append(f.imports, s)
			}
		default:
			return engine.NewConfigError("imports must be a list of filenames, got %T", v).WithCode(engine.CodeInvalidShape)
		}
	}

	if v, ok := f.raw["inherit"]; ok && v != nil {
		s, ok := v.(string)
		if !ok {
			return engine.NewConfigError("inherit must be a filename, got %T", v).WithCode(engine.CodeInvalidShape)
		}
		f.inherit = s
	}

	if v, ok := f.raw["parameters"]; ok && v != nil {
		params, ok := v.(map[string]any)
		if !ok {
			return engine.NewConfigError("parameters must be a mapping, got %T", v).WithCode(engine.CodeInvalidShape)
		}
		f.parameters = params
	}

	if v, ok := f.raw["services"]; ok && v != nil {
		services, ok := v.(map[string]any)
		if !ok {
			return engine.NewConfigError("services must be a mapping, got %T", v).WithCode(engine.CodeInvalidShape)
		}
		for name, def := range services {
			switch d := def.(type) {
			case map[string]any:
				f.services[name] = d
			case nil:
				f.services[name] = map[string]any{}
			default:
				return engine.NewConfigError("service %q must be a mapping, got %T", name, def).WithCode(engine.CodeInvalidShape)
			}
		}
	}

	if v, ok := f.raw["extensions"]; ok && v != nil {
		extensions, ok := v.(map[string]any)
		if !ok {
			return engine.NewConfigError("extensions must be a mapping, got %T", v).WithCode(engine.CodeInvalidShape)
		}
		f.extensions = extensions
	}
	return nil
}

// Filename returns the resolved path of the file.
func (f *FileUnit) Filename() string { return f.filename }

// Namespace returns the file's namespace, or "" for a root file.
func (f *FileUnit) Namespace() string { return string(f.namespace) }

// IsNamespaced reports whether the file was loaded under a namespace.
func (f *FileUnit) IsNamespaced() bool { return f.namespace != "" }

// Imports returns the raw import filenames.
func (f *FileUnit) Imports() []string { return append([]string(nil), f.imports...) }

// Inherit returns the raw inherit filename, or "".
func (f *FileUnit) Inherit() string { return f.inherit }

// Validate checks top-level keys, service keys and per-service producer rules.
func (f *FileUnit) Validate() error {
	for _, key := range sortedKeys(f.raw) {
		if _, ok := acceptedKeys[key]; !ok {
			return engine.NewConfigError("invalid key %q. Keys must be one of imports, parameters, services, inherit, extensions", key).
				WithCode(engine.CodeInvalidKey).
				WithFile(f.filename)
		}
	}

	for _, name := range sortedKeys(f.services) {
		raw := f.services[name]
		for _, key := range sortedKeys(raw) {
			if _, ok := acceptedServiceKeys[key]; !ok {
				return engine.NewConfigError("invalid service key %q in service %q", key, name).
					WithCode(engine.CodeInvalidKey).
					WithFile(f.filename)
			}
		}
		def, err := DecodeService(name, raw)
		if err != nil {
			return withFile(engine.Wrapf(err, "service %q", name), f.filename)
		}
		if err := ValidateService(name, def); err != nil {
			return withFile(err, f.filename)
		}
	}

	for _, name := range sortedKeys(f.extensions) {
		if _, err := DecodeCalls(f.extensions[name]); err != nil {
			return withFile(engine.Wrapf(err, "extension %q", name), f.filename)
		}
	}
	return nil
}

// Weight returns the merge weight of key as declared in this file.
func (f *FileUnit) Weight(key string) int {
	if !f.IsNamespaced() {
		return WeightRoot
	}
	if token.IsNamespaced(key) {
		return WeightExplicit
	}
	return WeightNamespaced
}

// NamespacedParameters returns the file's parameters with qualified keys and
// references, ordered by key.
func (f *FileUnit) NamespacedParameters() []Entry[any] {
	entries := make([]Entry[any], 0, len(f.parameters))
	for _, key := range sortedKeys(f.parameters) {
		entries = append(entries, Entry[any]{
			Name:   f.namespace.Qualify(key),
			Weight: f.Weight(key),
			Value:  f.namespace.Apply(f.parameters[key]),
		})
	}
	return entries
}

// NamespacedServices returns the file's typed service definitions with
// qualified names and references, ordered by name.
func (f *FileUnit) NamespacedServices() ([]Entry[engine.ServiceDef], error) {
	entries := make([]Entry[engine.ServiceDef], 0, len(f.services))
	for _, name := range sortedKeys(f.services) {
		raw := f.namespace.Apply(f.services[name]).(map[string]any)
		def, err := DecodeService(name, raw)
		if err != nil {
			return nil, withFile(engine.Wrapf(err, "service %q", name), f.filename)
		}
		entries = append(entries, Entry[engine.ServiceDef]{
			Name:   f.namespace.Qualify(name),
			Weight: f.Weight(name),
			Value:  def,
		})
	}
	return entries, nil
}

// NamespacedExtensions returns the file's extension call lists with qualified
// target names and references, ordered by target.
func (f *FileUnit) NamespacedExtensions() ([]Entry[[]engine.MethodCall], error) {
	entries := make([]Entry[[]engine.MethodCall], 0, len(f.extensions))
	for _, name := range sortedKeys(f.extensions) {
		calls, err := DecodeCalls(f.namespace.Apply(f.extensions[name]))
		if err != nil {
			return nil, withFile(engine.Wrapf(err, "extension %q", name), f.filename)
		}
		entries = append(entries, Entry[[]engine.MethodCall]{
			Name:   f.namespace.Qualify(name),
			Weight: f.Weight(name),
			Value:  calls,
		})
	}
	return entries, nil
}

// String returns a short description for logs.
func (f *FileUnit) String() string {
	if f.IsNamespaced() {
		return fmt.Sprintf("%s (namespace %s)", f.filename, f.namespace)
	}
	return f.filename
}

func withFile(err error, filename string) error {
	if e, ok := err.(*engine.Error); ok && e.File == "" {
		c := *e
		c.File = filename
		return &c
	}
	return err
}
