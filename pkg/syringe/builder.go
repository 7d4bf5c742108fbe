package syringe

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog"

	"github.com/openfroyo/syringe/pkg/compiler"
	"github.com/openfroyo/syringe/pkg/engine"
	"github.com/openfroyo/syringe/pkg/stores"
	"github.com/openfroyo/syringe/pkg/telemetry"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Options carries the collaborators of a Builder.
type Options struct {
	// Compiler options, applied after the telemetry-derived tracer and
	// logger so callers can override them.
	Compiler []compiler.Option

	// Store caches compiled configurations and records runs. Nil disables
	// caching.
	Store stores.Store

	// ValidateCache checks a cached entry's files, environment and constants
	// before serving it. Without it a cached entry is served as is.
	ValidateCache bool

	// Telemetry receives spans, metrics and events. Nil records nothing.
	Telemetry *telemetry.Telemetry

	// Logger is handed to the compiler and watchers. Defaults to the
	// telemetry logger. Store warnings go to the compile-scoped logger
	// carried by the request context.
	Logger *zerolog.Logger
}

// Result is a compiled configuration and how it was obtained.
type Result struct {
	Config   *compiler.CompiledConfig
	CacheKey string
	RunID    string
	CacheHit bool
}

// Builder serves compile requests, consulting the cache first.
type Builder struct {
	compiler      *compiler.Compiler
	store         stores.Store
	validateCache bool
	tel           *telemetry.Telemetry
	logger        zerolog.Logger
}

// New creates a Builder.
func New(opts Options) *Builder {
	tel := opts.Telemetry
	if tel == nil {
		tel = telemetry.Nop()
	}
	logger := tel.Logger.Zerolog()
	if opts.Logger != nil {
		logger = *opts.Logger
	}

	compilerOpts := append([]compiler.Option{
		compiler.WithTracer(tel.Tracer.Tracer()),
		compiler.WithLogger(logger),
	}, opts.Compiler...)

	return &Builder{
		compiler:      compiler.New(compilerOpts...),
		store:         opts.Store,
		validateCache: opts.ValidateCache,
		tel:           tel,
		logger:        logger.With().Str("component", "syringe").Logger(),
	}
}

// Compiler returns the underlying compiler.
func (b *Builder) Compiler() *compiler.Compiler {
	return b.compiler
}

// Build returns the compiled configuration for req. A valid cached entry is
// served without reading any source file; otherwise the request is compiled
// and the result cached. Store failures degrade to an uncached compile.
func (b *Builder) Build(ctx context.Context, req compiler.Request) (*Result, error) {
	return b.run(ctx, req, b.validateCache)
}

func (b *Builder) run(ctx context.Context, req compiler.Request, validate bool) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	key, err := req.CacheKey()
	if err != nil {
		return nil, err
	}

	res := &Result{CacheKey: key, RunID: uuid.NewString()}
	op := b.tel.StartCompile(ctx, res.RunID, key, len(req.Files))
	ctx = op.Ctx

	b.startRun(ctx, res)
	res.Config, res.CacheHit, err = b.build(ctx, op, req, key, validate)
	b.completeRun(ctx, res, err)

	stats := telemetry.CompileResult{CacheHit: res.CacheHit}
	if res.Config != nil {
		stats.Files = len(res.Config.Files)
		stats.Services = len(res.Config.Services)
	}
	op.End(stats, err)
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (b *Builder) build(ctx context.Context, op *telemetry.CompileOperation, req compiler.Request, key string, validate bool) (*compiler.CompiledConfig, bool, error) {
	if b.store != nil {
		cfg, result, reason := b.lookup(ctx, key, validate)
		op.CacheLookup(result, reason)
		if result == telemetry.CacheHit {
			if err := b.store.RecordHit(ctx, key); err != nil {
				telemetry.FromContext(ctx).WithError(err).Warn("failed to record cache hit")
			}
			return cfg, true, nil
		}
	}

	cfg, err := b.compiler.Compile(ctx, req)
	if err != nil {
		return nil, false, err
	}

	if b.store != nil {
		if err := b.save(ctx, key, req.AppDir, cfg); err != nil {
			telemetry.FromContext(ctx).WithError(err).Warn("failed to cache compiled configuration")
		}
	}
	return cfg, false, nil
}

// lookup returns the cached configuration and the lookup result.
func (b *Builder) lookup(ctx context.Context, key string, validate bool) (*compiler.CompiledConfig, string, string) {
	rec, err := b.store.GetCompiled(ctx, key)
	if errors.Is(err, stores.ErrNotFound) {
		return nil, telemetry.CacheMiss, ""
	}
	if err != nil {
		telemetry.FromContext(ctx).WithError(err).Warn("failed to read compile cache")
		return nil, telemetry.CacheMiss, ""
	}

	cfg, err := compiler.Decode([]byte(rec.Data))
	if err != nil {
		return nil, telemetry.CacheInvalid, fmt.Sprintf("undecodable entry: %v", err)
	}

	if validate {
		ok, reason := cfg.State.Check(b.compiler.Environment(), b.compiler.Constants(), b.compiler.FileInspector())
		if !ok {
			return nil, telemetry.CacheInvalid, reason
		}
	}
	return cfg, telemetry.CacheHit, ""
}

func (b *Builder) save(ctx context.Context, key, appDir string, cfg *compiler.CompiledConfig) error {
	data, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode compiled configuration: %w", err)
	}
	return b.store.PutCompiled(ctx, &stores.CompiledRecord{
		Key:        key,
		AppDir:     appDir,
		Files:      cfg.Files,
		Services:   len(cfg.Services),
		Parameters: len(cfg.Parameters),
		Data:       string(data),
	})
}

func (b *Builder) startRun(ctx context.Context, res *Result) {
	if b.store == nil {
		return
	}
	err := b.store.CreateRun(ctx, &stores.Run{
		ID:        res.RunID,
		CacheKey:  res.CacheKey,
		Status:    stores.RunStatusRunning,
		StartedAt: time.Now().UTC(),
	})
	if err != nil {
		telemetry.FromContext(ctx).WithError(err).Warn("failed to record compile run")
	}
}

func (b *Builder) completeRun(ctx context.Context, res *Result, buildErr error) {
	if b.store == nil {
		return
	}
	status := stores.RunStatusCompleted
	var errMsg, errKind *string
	if buildErr != nil {
		status = stores.RunStatusFailed
		msg := buildErr.Error()
		kind := string(engine.KindOf(buildErr))
		errMsg, errKind = &msg, &kind
	}
	// The run is closed even when the request context was cancelled.
	if err := b.store.CompleteRun(context.WithoutCancel(ctx), res.RunID, status, res.CacheHit, errMsg, errKind); err != nil {
		telemetry.FromContext(ctx).WithError(err).Warn("failed to complete compile run")
	}
}
