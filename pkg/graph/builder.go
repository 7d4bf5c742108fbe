package graph

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/rs/zerolog"

	"github.com/openfroyo/syringe/pkg/config"
	"github.com/openfroyo/syringe/pkg/engine"
)

const (
	// DefaultVendorDir is the directory name that marks third-party code.
	DefaultVendorDir = "vendor"

	// DefaultMaxDepth bounds the length of an import chain.
	DefaultMaxDepth = 64
)

// FileRequest names a file to load and the namespace to load it under.
type FileRequest struct {
	Path      string
	Namespace string
}

// Builder walks imports and inherit chains and returns the ordered list of
// file units to merge.
type Builder struct {
	loader    engine.Loader
	schemas   *config.SchemaRegistry
	vendorDir string
	maxDepth  int
	logger    zerolog.Logger
}

// Option configures a Builder.
type Option func(*Builder)

// WithSchemas enables strict validation of every raw document.
func WithSchemas(sr *config.SchemaRegistry) Option {
	return func(b *Builder) { b.schemas = sr }
}

// WithVendorDir sets the directory name that starts vendor isolation.
func WithVendorDir(name string) Option {
	return func(b *Builder) { b.vendorDir = name }
}

// WithMaxDepth bounds the length of an import chain.
func WithMaxDepth(n int) Option {
	return func(b *Builder) { b.maxDepth = n }
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(b *Builder) { b.logger = l }
}

// NewBuilder creates a file graph builder reading files through loader.
func NewBuilder(loader engine.Loader, opts ...Option) *Builder {
	b := &Builder{
		loader:    loader,
		vendorDir: DefaultVendorDir,
		maxDepth:  DefaultMaxDepth,
		logger:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.logger = b.logger.With().Str("component", "graph").Logger()
	return b
}

// BuildFileList resolves files against searchPaths and returns them together
// with everything they inherit and import, depth first. Each file's inherited
// content comes before it and its imports come after it. A file reached by
// several import paths appears once per path. Imports are loaded under the
// importing file's namespace. Once a resolved path lies inside a vendor
// directory, lookups below it stop consulting the caller's search paths.
func (b *Builder) BuildFileList(ctx context.Context, files []FileRequest, searchPaths []string, inVendor bool) ([]*config.FileUnit, error) {
	return b.build(ctx, files, searchPaths, inVendor, nil)
}

func (b *Builder) build(ctx context.Context, files []FileRequest, searchPaths []string, inVendor bool, chain []string) ([]*config.FileUnit, error) {
	var units []*config.FileUnit

	for _, req := range files {
		resolved, err := b.findConfigFile(req.Path, searchPaths)
		if err != nil {
			return nil, err
		}

		if i := slices.Index(chain, resolved); i >= 0 {
			cycle := append(slices.Clone(chain[i:]), resolved)
			return nil, engine.NewConfigError("circular import: %s", strings.Join(cycle, " -> ")).
				WithCode(engine.CodeCircularReference).
				WithFile(resolved)
		}
		if len(chain) >= b.maxDepth {
			return nil, engine.NewRecursionError("import chain exceeds %d files", b.maxDepth).WithFile(resolved)
		}

		unit, err := b.loadUnit(ctx, resolved, req.Namespace)
		if err != nil {
			return nil, err
		}

		fileInVendor := inVendor
		var internal []string
		if !fileInVendor && b.isVendored(resolved) {
			fileInVendor = true
			b.logger.Debug().Str("file", resolved).Msg("entering vendor boundary")
		} else {
			internal = slices.Clone(searchPaths)
		}
		internal = append(internal, filepath.Dir(resolved))
		next := append(slices.Clone(chain), resolved)

		if inherit := unit.Inherit(); inherit != "" {
			parents, err := b.build(ctx, []FileRequest{{Path: inherit, Namespace: req.Namespace}}, internal, fileInVendor, next)
			if err != nil {
				return nil, err
			}
			units = append(units, parents...)
		}

		units = append(units, unit)

		if imports := unit.Imports(); len(imports) > 0 {
			reqs := make([]FileRequest, len(imports))
			for i, imp := range imports {
				reqs[i] = FileRequest{Path: imp, Namespace: req.Namespace}
			}
			children, err := b.build(ctx, reqs, internal, fileInVendor, next)
			if err != nil {
				return nil, err
			}
			units = append(units, children...)
		}
	}

	return units, nil
}

func (b *Builder) loadUnit(ctx context.Context, filename, namespace string) (*config.FileUnit, error) {
	doc, err := b.loader.LoadFile(filename)
	if err != nil {
		if engine.KindOf(err) == "" {
			return nil, engine.NewLoaderError(filename, "failed to load file", err)
		}
		return nil, err
	}

	if b.schemas != nil {
		if err := b.schemas.ValidateDocument(ctx, filename, doc); err != nil {
			return nil, err
		}
	}

	unit, err := config.NewFileUnit(filename, doc, namespace)
	if err != nil {
		return nil, err
	}
	if err := unit.Validate(); err != nil {
		return nil, err
	}

	b.logger.Debug().
		Str("file", filename).
		Str("namespace", namespace).
		Msg("loaded configuration file")
	return unit, nil
}

// findConfigFile looks file up in searchPaths, most recently added first.
// Absolute paths are used as they are.
func (b *Builder) findConfigFile(file string, searchPaths []string) (string, error) {
	if filepath.IsAbs(file) {
		if isFile(file) {
			return canonical(file), nil
		}
	} else {
		for i := len(searchPaths) - 1; i >= 0; i-- {
			candidate := filepath.Join(searchPaths[i], file)
			if isFile(candidate) {
				return canonical(candidate), nil
			}
		}
	}

	return "", engine.NewLoaderError(file, "config file does not exist in any of the configured paths ["+strings.Join(searchPaths, ", ")+"]", nil).
		WithCode(engine.CodeFileNotFound)
}

func (b *Builder) isVendored(path string) bool {
	if b.vendorDir == "" {
		return false
	}
	for _, seg := range strings.Split(filepath.ToSlash(path), "/") {
		if seg == b.vendorDir {
			return true
		}
	}
	return false
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular()
}

// canonical returns an absolute, symlink-free path when it can.
func canonical(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return abs
	}
	return resolved
}
