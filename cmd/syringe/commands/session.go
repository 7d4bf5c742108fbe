package commands

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"gopkg.in/yaml.v3"

	"github.com/openfroyo/syringe/pkg/compiler"
	"github.com/openfroyo/syringe/pkg/config"
	"github.com/openfroyo/syringe/pkg/engine"
	"github.com/openfroyo/syringe/pkg/resolver"
	"github.com/openfroyo/syringe/pkg/state"
	"github.com/openfroyo/syringe/pkg/stores"
	"github.com/openfroyo/syringe/pkg/syringe"
	"github.com/openfroyo/syringe/pkg/telemetry"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// globalOptions holds the persistent flags shared by every command.
type globalOptions struct {
	version       string
	appDir        string
	paths         []string
	files         []string
	params        []string
	consts        []string
	envFiles      []string
	allowUnsetEnv bool
	policy        string
	cachePath     string
	validateCache bool
	strict        bool
	logLevel      string
	metricsAddr   string
	trace         string
	otlpEndpoint  string
	noColor       bool
}

// request builds the compile request from flags and positional files.
func (o *globalOptions) request(args []string) (compiler.Request, error) {
	appDir, err := filepath.Abs(o.appDir)
	if err != nil {
		return compiler.Request{}, fmt.Errorf("invalid app dir: %w", err)
	}

	params, err := parseAssignments("--param", o.params)
	if err != nil {
		return compiler.Request{}, err
	}

	req := compiler.Request{
		AppDir:      appDir,
		SearchPaths: o.paths,
		Parameters:  params,
	}
	for _, f := range append(append([]string(nil), o.files...), args...) {
		req.Files = append(req.Files, compiler.ParseFileSpec(f))
	}
	if len(req.Files) == 0 {
		return compiler.Request{}, fmt.Errorf("no configuration files given; pass them as arguments or with --file")
	}
	return req, nil
}

// compilerOptions turns the flags into compiler options.
func (o *globalOptions) compilerOptions() ([]compiler.Option, error) {
	constants, err := parseAssignments("--const", o.consts)
	if err != nil {
		return nil, err
	}

	var env engine.Environment = resolver.OSEnvironment{}
	if len(o.envFiles) > 0 {
		dotenv, err := resolver.LoadDotenv(o.envFiles...)
		if err != nil {
			return nil, err
		}
		env = resolver.LayeredEnvironment{dotenv, resolver.OSEnvironment{}}
	}

	policy := state.Policy(o.policy)
	if policy != state.PolicyContentHash && policy != state.PolicyLegacy {
		return nil, fmt.Errorf("invalid --policy %q (must be content-hash or legacy)", o.policy)
	}

	opts := []compiler.Option{
		compiler.WithEnvironment(env),
		compiler.WithConstants(resolver.MapConstants(constants)),
		compiler.WithAllowUnsetEnv(o.allowUnsetEnv),
		compiler.WithPolicy(policy),
	}
	if o.strict {
		opts = append(opts, compiler.WithSchemas(config.NewSchemaRegistry()))
	}
	return opts, nil
}

// telemetryConfig turns the flags into a telemetry configuration.
func (o *globalOptions) telemetryConfig() *telemetry.Config {
	cfg := telemetry.DefaultConfig()
	if o.version != "" {
		cfg.ServiceVersion = o.version
	}
	cfg.Logging.Level = o.logLevel
	cfg.Metrics.ListenAddress = o.metricsAddr
	cfg.Tracing.Exporter = o.trace
	cfg.Tracing.Enabled = o.trace != "" && o.trace != "none"
	cfg.Tracing.Endpoint = o.otlpEndpoint
	return cfg
}

// session is everything a command needs to serve compile requests.
type session struct {
	tel     *telemetry.Telemetry
	store   stores.Store
	builder *syringe.Builder
}

// open creates the session. The cache is only opened when useCache is set
// and --cache names a database.
func (o *globalOptions) open(ctx context.Context, useCache bool) (*session, error) {
	compilerOpts, err := o.compilerOptions()
	if err != nil {
		return nil, err
	}

	tel, err := telemetry.NewTelemetry(o.telemetryConfig())
	if err != nil {
		return nil, err
	}
	s := &session{tel: tel}

	if useCache && o.cachePath != "" {
		store, err := openStore(ctx, o.cachePath)
		if err != nil {
			s.close()
			return nil, err
		}
		s.store = store
	}

	if o.metricsAddr != "" {
		errc := make(chan error, 1)
		tel.StartMetricsServer(errc)
		go func() {
			if err := <-errc; err != nil {
				tel.Logger.WithError(err).Error("metrics server failed")
			}
		}()
	}
	s.builder = syringe.New(syringe.Options{
		Compiler:      compilerOpts,
		Store:         s.store,
		ValidateCache: o.validateCache,
		Telemetry:     tel,
	})
	return s, nil
}

func (s *session) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if s.store != nil {
		_ = s.store.Close()
	}
	_ = s.tel.Shutdown(ctx)
}

func openStore(ctx context.Context, path string) (stores.Store, error) {
	store, err := stores.NewSQLiteStore(stores.Config{Path: path})
	if err != nil {
		return nil, err
	}
	if err := store.Init(ctx); err != nil {
		return nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}
	return store, nil
}

// parseAssignments parses NAME=value pairs. Values are decoded as YAML
// scalars so numbers and booleans keep their type.
func parseAssignments(flag string, pairs []string) (map[string]any, error) {
	out := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		name, raw, ok := strings.Cut(pair, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid %s %q (expected NAME=value)", flag, pair)
		}
		out[name] = parseScalar(raw)
	}
	return out, nil
}

func parseScalar(raw string) any {
	var v any
	if err := yaml.Unmarshal([]byte(raw), &v); err != nil || v == nil {
		return raw
	}
	switch v.(type) {
	case string, bool, int, float64:
		return v
	default:
		// Collections stay literal strings.
		return raw
	}
}

// writeConfig renders a compiled configuration.
func writeConfig(w io.Writer, cfg *compiler.CompiledConfig, format string) error {
	switch format {
	case "json", "":
		data, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode configuration: %w", err)
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(cfg); err != nil {
			return fmt.Errorf("failed to encode configuration: %w", err)
		}
		return enc.Close()
	default:
		return fmt.Errorf("unsupported format %q (must be json or yaml)", format)
	}
}
