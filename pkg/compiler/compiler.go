package compiler

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/openfroyo/syringe/pkg/aggregate"
	"github.com/openfroyo/syringe/pkg/config"
	"github.com/openfroyo/syringe/pkg/engine"
	"github.com/openfroyo/syringe/pkg/graph"
	"github.com/openfroyo/syringe/pkg/loader"
	"github.com/openfroyo/syringe/pkg/resolver"
	"github.com/openfroyo/syringe/pkg/state"
)

const tracerName = "github.com/openfroyo/syringe/pkg/compiler"

// Compiler turns a Request into a CompiledConfig.
type Compiler struct {
	loader          engine.Loader
	env             engine.Environment
	constants       engine.Constants
	schemas         *config.SchemaRegistry
	inspector       state.FileInspector
	policy          state.Policy
	vendorDir       string
	maxImportDepth  int
	maxParamDepth   int
	maxExtendsDepth int
	allowUnsetEnv   bool
	tracer          trace.Tracer
	logger          zerolog.Logger
}

// Option configures a Compiler.
type Option func(*Compiler)

// WithLoader sets the file loader. The default reads YAML, JSON, TOML and CUE.
func WithLoader(l engine.Loader) Option {
	return func(c *Compiler) { c.loader = l }
}

// WithEnvironment sets the environment variable source.
func WithEnvironment(env engine.Environment) Option {
	return func(c *Compiler) { c.env = env }
}

// WithConstants sets the host constant source.
func WithConstants(constants engine.Constants) Option {
	return func(c *Compiler) { c.constants = constants }
}

// WithSchemas validates every raw document against the registry's CUE
// file schema.
func WithSchemas(sr *config.SchemaRegistry) Option {
	return func(c *Compiler) { c.schemas = sr }
}

// WithFileInspector sets how source file state is recorded.
func WithFileInspector(i state.FileInspector) Option {
	return func(c *Compiler) { c.inspector = i }
}

// WithPolicy sets the file comparison policy recorded in the state.
func WithPolicy(p state.Policy) Option {
	return func(c *Compiler) { c.policy = p }
}

// WithVendorDir sets the directory name that starts vendor isolation. An
// empty name disables it.
func WithVendorDir(name string) Option {
	return func(c *Compiler) { c.vendorDir = name }
}

// WithMaxImportDepth bounds the length of an import chain.
func WithMaxImportDepth(n int) Option {
	return func(c *Compiler) { c.maxImportDepth = n }
}

// WithMaxParameterDepth bounds the nesting of parameter references.
func WithMaxParameterDepth(n int) Option {
	return func(c *Compiler) { c.maxParamDepth = n }
}

// WithMaxExtendsDepth bounds the length of an extends chain.
func WithMaxExtendsDepth(n int) Option {
	return func(c *Compiler) { c.maxExtendsDepth = n }
}

// WithAllowUnsetEnv resolves unset environment variables to "".
func WithAllowUnsetEnv(allow bool) Option {
	return func(c *Compiler) { c.allowUnsetEnv = allow }
}

// WithTracer sets the tracer. The default uses the global provider.
func WithTracer(t trace.Tracer) Option {
	return func(c *Compiler) { c.tracer = t }
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Compiler) { c.logger = l }
}

// New creates a compiler.
func New(opts ...Option) *Compiler {
	c := &Compiler{
		loader:          loader.DefaultRegistry(),
		env:             resolver.OSEnvironment{},
		constants:       resolver.MapConstants{},
		inspector:       state.OSInspector{},
		policy:          state.PolicyContentHash,
		vendorDir:       graph.DefaultVendorDir,
		maxImportDepth:  graph.DefaultMaxDepth,
		maxParamDepth:   resolver.DefaultMaxDepth,
		maxExtendsDepth: DefaultMaxExtendsDepth,
		logger:          zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.tracer == nil {
		c.tracer = otel.Tracer(tracerName)
	}
	return c
}

// Environment returns the environment source compilation reads.
func (c *Compiler) Environment() engine.Environment { return c.env }

// Constants returns the constant source compilation reads.
func (c *Compiler) Constants() engine.Constants { return c.constants }

// FileInspector returns the inspector used to record file state.
func (c *Compiler) FileInspector() state.FileInspector { return c.inspector }

// Compile loads, merges and resolves the request's files. Nothing is
// returned unless every step succeeds.
func (c *Compiler) Compile(ctx context.Context, req Request) (*CompiledConfig, error) {
	ctx, span := c.tracer.Start(ctx, "syringe.compile", trace.WithAttributes(
		attribute.Int("syringe.files", len(req.Files)),
		attribute.Int("syringe.search_paths", len(req.SearchPaths)),
	))
	defer span.End()

	cfg, err := c.compile(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(
		attribute.Int("syringe.services", len(cfg.Services)),
		attribute.Int("syringe.parameters", len(cfg.Parameters)),
	)
	span.SetStatus(codes.Ok, "compiled")
	return cfg, nil
}

func (c *Compiler) compile(ctx context.Context, req Request) (*CompiledConfig, error) {
	start := time.Now()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	units, err := c.load(ctx, req)
	if err != nil {
		return nil, err
	}

	_, mergeSpan := c.tracer.Start(ctx, "syringe.merge")
	agg := aggregate.New(aggregate.WithLogger(c.logger))
	for _, unit := range units {
		if err := agg.AddFileConfig(unit); err != nil {
			mergeSpan.End()
			return nil, err
		}
	}
	mergeSpan.End()

	_, buildSpan := c.tracer.Start(ctx, "syringe.build")
	builder := NewCompiledConfigBuilder(
		WithBuilderMaxExtendsDepth(c.maxExtendsDepth),
		WithBuilderLogger(c.logger),
		WithResolverOptions(
			resolver.WithEnvironment(c.env),
			resolver.WithConstants(c.constants),
			resolver.WithMaxDepth(c.maxParamDepth),
			resolver.WithAllowUnsetEnv(c.allowUnsetEnv),
		),
	)
	cfg, err := builder.Build(agg, req.parameters())
	buildSpan.End()
	if err != nil {
		return nil, err
	}

	cfg.Files = agg.Files()
	snapshot, err := state.Capture(c.inspector, c.policy, cfg.Files, cfg.State.Env, cfg.State.Constants)
	if err != nil {
		return nil, err
	}
	cfg.State = snapshot

	c.logger.Info().
		Int("files", len(cfg.Files)).
		Int("services", len(cfg.Services)).
		Int("parameters", len(cfg.Parameters)).
		Dur("duration", time.Since(start)).
		Msg("compiled configuration")
	return cfg, nil
}

func (c *Compiler) load(ctx context.Context, req Request) ([]*config.FileUnit, error) {
	ctx, span := c.tracer.Start(ctx, "syringe.load")
	defer span.End()

	opts := []graph.Option{
		graph.WithVendorDir(c.vendorDir),
		graph.WithMaxDepth(c.maxImportDepth),
		graph.WithLogger(c.logger),
	}
	if c.schemas != nil {
		opts = append(opts, graph.WithSchemas(c.schemas))
	}

	files := make([]graph.FileRequest, len(req.Files))
	for i, f := range req.Files {
		files[i] = graph.FileRequest{Path: f.Path, Namespace: f.Namespace}
	}

	searchPaths := req.SearchPaths
	if len(searchPaths) == 0 {
		searchPaths = []string{"."}
		if req.AppDir != "" {
			searchPaths = []string{req.AppDir}
		}
	}

	units, err := graph.NewBuilder(c.loader, opts...).BuildFileList(ctx, files, searchPaths, false)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("syringe.loaded_files", len(units)))
	return units, nil
}
