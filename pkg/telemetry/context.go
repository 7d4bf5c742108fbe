package telemetry

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/openfroyo/syringe/pkg/engine"
)

// Telemetry bundles logging, tracing, metrics and events.
type Telemetry struct {
	Logger  *Logger
	Tracer  *Tracer
	Metrics *Metrics
	Events  *EventPublisher
	Config  *Config
}

// NewTelemetry creates a telemetry instance from configuration.
func NewTelemetry(cfg *Config) (*Telemetry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger, err := NewLogger(cfg.Logging)
	if err != nil {
		return nil, err
	}

	tracer, err := NewTracer(cfg.Tracing, cfg.ServiceName, cfg.ServiceVersion, cfg.Environment)
	if err != nil {
		return nil, err
	}

	metrics, err := NewMetrics(cfg.Metrics)
	if err != nil {
		return nil, err
	}

	events, err := NewEventPublisher(cfg.Events)
	if err != nil {
		return nil, err
	}

	return &Telemetry{
		Logger:  logger,
		Tracer:  tracer,
		Metrics: metrics,
		Events:  events,
		Config:  cfg,
	}, nil
}

// Nop returns telemetry that records nothing.
func Nop() *Telemetry {
	cfg := DefaultConfig()
	cfg.Metrics.Enabled = false
	cfg.Events.Enabled = false
	events, _ := NewEventPublisher(cfg.Events)
	return &Telemetry{
		Logger:  &Logger{zlog: zerolog.Nop(), config: cfg.Logging},
		Tracer:  &Tracer{tracer: noop.NewTracerProvider().Tracer(cfg.ServiceName), config: cfg.Tracing},
		Metrics: &Metrics{config: cfg.Metrics},
		Events:  events,
		Config:  cfg,
	}
}

// Shutdown stops events, the tracer and the metrics server, in that order.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if err := t.Events.Shutdown(ctx); err != nil {
		return err
	}
	if err := t.Tracer.Shutdown(ctx); err != nil {
		return err
	}
	return t.Metrics.Shutdown(ctx)
}

// Flush forces pending spans to be exported.
func (t *Telemetry) Flush(ctx context.Context) error {
	return t.Tracer.ForceFlush(ctx)
}

// StartMetricsServer starts the metrics HTTP server if an address is set.
func (t *Telemetry) StartMetricsServer(errc chan<- error) {
	t.Metrics.StartMetricsServer(errc)
}

// CompileResult summarizes a finished compile request.
type CompileResult struct {
	Files    int
	Services int
	CacheHit bool
}

// CompileOperation instruments a single compile request end to end.
type CompileOperation struct {
	Ctx    context.Context
	Span   trace.Span
	Logger *Logger

	id       string
	cacheKey string
	cache    string
	timer    *Timer
	tel      *Telemetry
}

// StartCompile opens a span, marks the compile active, publishes the
// started event and returns a logger carrying the compile ID and cache key.
func (t *Telemetry) StartCompile(ctx context.Context, compileID, cacheKey string, files int) *CompileOperation {
	spanCtx, span := t.Tracer.StartCompileSpan(ctx, compileID, cacheKey)
	logger := t.Logger.WithCompileID(compileID).WithCacheKey(shortKey(cacheKey))
	if id := TraceID(spanCtx); id != "" {
		logger = logger.WithField("trace_id", id)
	}

	t.Metrics.RecordCompileStarted()
	_ = t.Events.PublishCompileStarted(compileID, cacheKey, files)

	return &CompileOperation{
		Ctx:      logger.WithContext(spanCtx),
		Span:     span,
		Logger:   logger,
		id:       compileID,
		cacheKey: cacheKey,
		cache:    CacheBypass,
		timer:    NewTimer(),
		tel:      t,
	}
}

// ID returns the compile run ID.
func (op *CompileOperation) ID() string {
	return op.id
}

// CacheLookup records the result of consulting the cache.
func (op *CompileOperation) CacheLookup(result, reason string) {
	op.cache = result
	op.Span.SetAttributes(AttrCacheResult.String(result))
	op.tel.Metrics.RecordCacheLookup(result)
	_ = op.tel.Events.PublishCacheLookup(op.id, op.cacheKey, result, reason)

	switch result {
	case CacheInvalid:
		op.Logger.zlog.Info().Str("reason", reason).Msg("cached configuration is stale")
	default:
		op.Logger.zlog.Info().Str("result", result).Msg("cache lookup")
	}
}

// End closes the operation, recording the outcome on every channel.
func (op *CompileOperation) End(res CompileResult, err error) {
	defer op.Span.End()
	duration := op.timer.Duration()

	if err != nil {
		kind, code := string(engine.KindOf(err)), engine.CodeOf(err)
		op.Span.SetAttributes(AttrErrorKind.String(kind), AttrErrorCode.String(code))
		RecordError(op.Span, err)
		op.tel.Metrics.RecordError(kind, code)
		op.tel.Metrics.RecordCompileCompleted("failed", op.cache, duration)
		_ = op.tel.Events.PublishCompileFailed(op.id, op.cacheKey, err)
		if !errors.Is(err, context.Canceled) {
			op.Logger.zlog.Error().Err(err).Dur("duration", duration).Msg("compile failed")
		}
		return
	}

	RecordSuccess(op.Span)
	op.tel.Metrics.RecordCompileCompleted("completed", op.cache, duration)
	op.tel.Metrics.SetCompiledSize(res.Files, res.Services)
	_ = op.tel.Events.PublishCompileCompleted(op.id, op.cacheKey, res.Services, res.CacheHit, duration)
	op.Logger.zlog.Debug().
		Int("files", res.Files).
		Int("services", res.Services).
		Bool("cache_hit", res.CacheHit).
		Dur("duration", duration).
		Msg("compile request finished")
}

func shortKey(key string) string {
	if len(key) > 12 {
		return key[:12]
	}
	return key
}
