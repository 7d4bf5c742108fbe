package telemetry

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Cache lookup results.
const (
	CacheHit     = "hit"
	CacheMiss    = "miss"
	CacheInvalid = "invalid"
	CacheBypass  = "bypass"
)

// Metrics provides Prometheus metrics for compilation.
type Metrics struct {
	config MetricsConfig

	compiles        *prometheus.CounterVec
	compileDuration *prometheus.HistogramVec
	cacheLookups    *prometheus.CounterVec
	errorsByKind    *prometheus.CounterVec
	errorsByCode    *prometheus.CounterVec
	recompiles      prometheus.Counter

	filesLoaded   prometheus.Gauge
	servicesBuilt prometheus.Gauge
	activeCompile prometheus.Gauge

	registry *prometheus.Registry
	server   *http.Server
}

// NewMetrics creates a metrics collector with its own registry.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		return &Metrics{config: cfg}, nil
	}

	namespace := cfg.Namespace
	buckets := cfg.DefaultHistogramBuckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	registry := prometheus.NewRegistry()
	m := &Metrics{
		config:   cfg,
		registry: registry,

		compiles: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "compiles_total",
				Help:      "Total number of compile requests by outcome",
			},
			[]string{"status"},
		),
		compileDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "compile_duration_seconds",
				Help:      "Duration of compile requests in seconds",
				Buckets:   buckets,
			},
			[]string{"cache"},
		),
		cacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_lookups_total",
				Help:      "Total number of compiled config cache lookups by result",
			},
			[]string{"result"},
		),
		errorsByKind: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_by_kind_total",
				Help:      "Total number of compile errors by kind",
			},
			[]string{"kind"},
		),
		errorsByCode: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_by_code_total",
				Help:      "Total number of compile errors by code",
			},
			[]string{"code"},
		),
		recompiles: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "watch_recompiles_total",
				Help:      "Total number of recompiles triggered by file changes",
			},
		),
		filesLoaded: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "files_loaded",
				Help:      "Number of source files in the last compiled configuration",
			},
		),
		servicesBuilt: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "services",
				Help:      "Number of services in the last compiled configuration",
			},
		),
		activeCompile: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_compiles",
				Help:      "Current number of compiles in progress",
			},
		),
	}

	registry.MustRegister(
		m.compiles,
		m.compileDuration,
		m.cacheLookups,
		m.errorsByKind,
		m.errorsByCode,
		m.recompiles,
		m.filesLoaded,
		m.servicesBuilt,
		m.activeCompile,
	)

	return m, nil
}

// RecordCompileStarted marks a compile as in progress.
func (m *Metrics) RecordCompileStarted() {
	if m.activeCompile == nil {
		return
	}
	m.activeCompile.Inc()
}

// RecordCompileCompleted records the outcome of a compile request. cache is
// the lookup result that led to it.
func (m *Metrics) RecordCompileCompleted(status, cache string, duration time.Duration) {
	if m.compiles == nil {
		return
	}
	m.compiles.WithLabelValues(status).Inc()
	m.compileDuration.WithLabelValues(cache).Observe(duration.Seconds())
	m.activeCompile.Dec()
}

// RecordCacheLookup counts a cache lookup result.
func (m *Metrics) RecordCacheLookup(result string) {
	if m.cacheLookups == nil {
		return
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

// SetCompiledSize records the size of the last compiled configuration.
func (m *Metrics) SetCompiledSize(files, services int) {
	if m.filesLoaded == nil {
		return
	}
	m.filesLoaded.Set(float64(files))
	m.servicesBuilt.Set(float64(services))
}

// RecordError records an error by kind and optionally by code.
func (m *Metrics) RecordError(kind, code string) {
	if m.errorsByKind == nil {
		return
	}
	if kind == "" {
		kind = "unknown"
	}
	m.errorsByKind.WithLabelValues(kind).Inc()
	if code != "" {
		m.errorsByCode.WithLabelValues(code).Inc()
	}
}

// RecordRecompile counts a watch-triggered recompile.
func (m *Metrics) RecordRecompile() {
	if m.recompiles == nil {
		return
	}
	m.recompiles.Inc()
}

// Registry returns the registry the metrics are registered with, or nil when
// metrics are disabled.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Timer measures the duration of an operation.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Duration returns the elapsed time since the timer was created.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// StartMetricsServer serves metrics on the configured address. It does
// nothing when metrics are disabled or no address is set. errc receives
// the server's terminal error, if any.
func (m *Metrics) StartMetricsServer(errc chan<- error) {
	if !m.config.Enabled || m.config.ListenAddress == "" {
		return
	}

	mux := http.NewServeMux()
	mux.Handle(m.config.Path, m.Handler())

	m.server = &http.Server{
		Addr:              m.config.ListenAddress,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := m.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) && errc != nil {
			errc <- err
		}
	}()
}

// Shutdown stops the metrics server if it is running.
func (m *Metrics) Shutdown(ctx context.Context) error {
	if m.server == nil {
		return nil
	}
	return m.server.Shutdown(ctx)
}
