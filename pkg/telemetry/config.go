package telemetry

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config contains the telemetry configuration for syringe.
type Config struct {
	// ServiceName is the name reported in traces and metrics.
	ServiceName string `validate:"required"`

	// ServiceVersion is the version of the binary.
	ServiceVersion string `validate:"required"`

	// Environment names the deployment environment (development, production).
	Environment string

	// Logging contains logging configuration.
	Logging LoggingConfig

	// Tracing contains tracing configuration.
	Tracing TracingConfig

	// Metrics contains metrics configuration.
	Metrics MetricsConfig

	// Events contains compile event publishing configuration.
	Events EventsConfig
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	// Level sets the minimum log level (trace, debug, info, warn, error, fatal).
	Level string `validate:"oneof=trace debug info warn error fatal"`

	// Format specifies the log format (console, json).
	Format string `validate:"oneof=console json"`

	// Output specifies where logs are written (stdout, stderr, file path).
	Output string

	// EnableCaller adds file:line caller information to logs.
	EnableCaller bool

	// TimeFormat specifies the timestamp format (unix, unixms, rfc3339).
	TimeFormat string
}

// TracingConfig configures OpenTelemetry tracing.
type TracingConfig struct {
	// Enabled controls whether spans are exported.
	Enabled bool

	// Exporter specifies the span exporter (otlp, stdout, none).
	Exporter string `validate:"omitempty,oneof=otlp stdout none"`

	// Endpoint is the OTLP gRPC collector address.
	Endpoint string

	// SamplingRate is the trace sampling rate (0.0 to 1.0).
	SamplingRate float64 `validate:"gte=0,lte=1"`

	// MaxExportBatchSize is the maximum batch size for export.
	MaxExportBatchSize int

	// ExportTimeout is the timeout for span export.
	ExportTimeout time.Duration

	// Headers are additional headers for the OTLP exporter.
	Headers map[string]string

	// Insecure disables TLS for the exporter connection.
	Insecure bool
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	// Enabled controls whether metrics are collected.
	Enabled bool

	// ListenAddress is the address for the metrics HTTP endpoint.
	ListenAddress string

	// Path is the HTTP path for metrics.
	Path string

	// Namespace is the metrics name prefix.
	Namespace string

	// DefaultHistogramBuckets are the latency buckets in seconds.
	DefaultHistogramBuckets []float64
}

// EventsConfig configures compile event publishing.
type EventsConfig struct {
	// Enabled controls whether events are published.
	Enabled bool

	// BufferSize is the size of the async event buffer.
	BufferSize int

	// FlushInterval is how often a partial batch is delivered in async mode.
	FlushInterval time.Duration

	// MaxBatchSize is the number of events delivered together in async mode.
	MaxBatchSize int

	// EnableAsync delivers events from a background goroutine.
	EnableAsync bool
}

// DefaultConfig returns the configuration used by the CLI. Logs go to
// stderr so compiled output on stdout stays clean. Tracing and the metrics
// endpoint are off until asked for.
func DefaultConfig() *Config {
	return &Config{
		ServiceName:    "syringe",
		ServiceVersion: "dev",
		Environment:    "development",
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "console",
			Output:     "stderr",
			TimeFormat: "rfc3339",
		},
		Tracing: TracingConfig{
			Enabled:            false,
			Exporter:           "none",
			SamplingRate:       1.0,
			MaxExportBatchSize: 512,
			ExportTimeout:      30 * time.Second,
			Headers:            make(map[string]string),
			Insecure:           true,
		},
		Metrics: MetricsConfig{
			Enabled:       true,
			ListenAddress: "",
			Path:          "/metrics",
			Namespace:     "syringe",
			DefaultHistogramBuckets: []float64{
				0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0,
			},
		},
		Events: EventsConfig{
			Enabled:       true,
			BufferSize:    256,
			FlushInterval: time.Second,
			MaxBatchSize:  32,
			EnableAsync:   false,
		},
	}
}

// ProductionConfig returns a configuration for long-running watchers
// shipping telemetry to a collector.
func ProductionConfig() *Config {
	cfg := DefaultConfig()
	cfg.Environment = "production"
	cfg.Logging.Format = "json"
	cfg.Logging.TimeFormat = "unixms"
	cfg.Tracing.Enabled = true
	cfg.Tracing.Exporter = "otlp"
	cfg.Tracing.Endpoint = "localhost:4317"
	cfg.Tracing.SamplingRate = 0.1
	cfg.Tracing.Insecure = false
	cfg.Events.EnableAsync = true
	return cfg
}

// DevelopmentConfig returns a verbose configuration that prints spans.
func DevelopmentConfig() *Config {
	cfg := DefaultConfig()
	cfg.Logging.Level = "debug"
	cfg.Logging.EnableCaller = true
	cfg.Tracing.Enabled = true
	cfg.Tracing.Exporter = "stdout"
	return cfg
}

var configValidator = validator.New()

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if err := configValidator.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			return describeFieldError(fieldErrs[0])
		}
		return err
	}

	if c.Tracing.Enabled && c.Tracing.Exporter == "otlp" && c.Tracing.Endpoint == "" {
		return fmt.Errorf("trace endpoint is required for the otlp exporter")
	}
	if c.Events.Enabled && c.Events.EnableAsync && c.Events.BufferSize <= 0 {
		return fmt.Errorf("event buffer size must be positive, got: %d", c.Events.BufferSize)
	}

	return nil
}

func describeFieldError(fe validator.FieldError) error {
	switch fe.StructNamespace() {
	case "Config.ServiceName":
		return fmt.Errorf("service name is required")
	case "Config.ServiceVersion":
		return fmt.Errorf("service version is required")
	case "Config.Logging.Level":
		return fmt.Errorf("invalid log level: %v", fe.Value())
	case "Config.Logging.Format":
		return fmt.Errorf("invalid log format: %v (must be 'console' or 'json')", fe.Value())
	case "Config.Tracing.Exporter":
		return fmt.Errorf("invalid trace exporter: %v", fe.Value())
	case "Config.Tracing.SamplingRate":
		return fmt.Errorf("trace sampling rate must be between 0 and 1, got: %v", fe.Value())
	default:
		return fmt.Errorf("invalid telemetry config: %s failed %q", fe.StructNamespace(), fe.Tag())
	}
}
