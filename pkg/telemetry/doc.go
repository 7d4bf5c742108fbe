// Package telemetry provides observability for compile requests.
//
// It combines structured logging (zerolog), tracing (OpenTelemetry),
// metrics (Prometheus) and compile events into a single Telemetry value.
//
// # Usage
//
//	cfg := telemetry.DefaultConfig()
//	cfg.Metrics.ListenAddress = ":9090"
//
//	tel, err := telemetry.NewTelemetry(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer tel.Shutdown(context.Background())
//	tel.StartMetricsServer(nil)
//
// A compile request is instrumented with a CompileOperation:
//
//	op := tel.StartCompile(ctx, id, key, len(req.Files))
//	op.CacheLookup(telemetry.CacheMiss, "")
//	cfg, err := compile(op.Ctx)
//	op.End(telemetry.CompileResult{Services: len(cfg.Services)}, err)
//
// # Logging
//
// Logs go to stderr by default so compiled output written to stdout stays
// machine readable. Field helpers add compile_id, cache_key, file and
// service fields:
//
//	logger := tel.Logger.WithCompileID(id).WithFile("config/app.yml")
//	logger.Debug("loaded")
//
// # Tracing
//
// Tracing is disabled by default. The stdout exporter prints spans to
// stderr; the otlp exporter ships them over gRPC. Span names:
//
//   - syringe.run: a compile request including the cache lookup
//   - syringe.compile: a full compilation
//   - syringe.load, syringe.merge, syringe.build: compilation phases
//
// # Metrics
//
// Metrics are registered on a private registry under the syringe namespace:
//
//   - syringe_compiles_total{status}: compile requests by outcome
//   - syringe_compile_duration_seconds{cache}: request latency by cache result
//   - syringe_cache_lookups_total{result}: hit, miss, invalid or bypass
//   - syringe_errors_by_kind_total{kind}, syringe_errors_by_code_total{code}
//   - syringe_watch_recompiles_total: recompiles triggered by file changes
//   - syringe_files_loaded, syringe_services: size of the last result
//   - syringe_active_compiles: requests in progress
//
// # Events
//
// EventPublisher fans compile.started, compile.completed, compile.failed,
// cache.hit, cache.miss, cache.invalid and files.changed events out to
// subscribers. Delivery is synchronous unless EnableAsync is set.
package telemetry
