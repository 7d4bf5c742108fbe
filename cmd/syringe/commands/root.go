package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	return newRootCommand(version, commit, buildDate).ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	opts := &globalOptions{version: version}

	rootCmd := &cobra.Command{
		Use:   "syringe",
		Short: "Syringe - service container configuration compiler",
		Long: `Syringe compiles declarative service container configuration into a single
fully resolved definition set.

Features:
  - YAML, JSON, TOML, CUE and Starlark configuration files
  - Namespaced imports with weighted, order-stable merging
  - %parameter%, $ENV$ and ^CONSTANT^ substitution
  - Abstract services, aliases, extensions and tags
  - Persistent compile cache invalidated by file, env and constant changes
  - Rego policy checks over the compiled result`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			configureColors(opts.noColor)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.appDir, "app-dir", ".", "application directory, exposed as %app.dir%")
	flags.StringArrayVarP(&opts.paths, "path", "p", nil, "search path for configuration files (repeatable)")
	flags.StringArrayVarP(&opts.files, "file", "f", nil, "configuration file, ns=file sets a namespace (repeatable)")
	flags.StringArrayVarP(&opts.params, "param", "P", nil, "parameter override key=value (repeatable)")
	flags.StringArrayVar(&opts.consts, "const", nil, "host constant NAME=value (repeatable)")
	flags.StringArrayVar(&opts.envFiles, "env-file", nil, ".env file layered over the process environment (repeatable)")
	flags.BoolVar(&opts.allowUnsetEnv, "allow-unset-env", false, "resolve unset environment variables to an empty string")
	flags.StringVar(&opts.policy, "policy", "content-hash", "file change policy: content-hash or legacy")
	flags.StringVar(&opts.cachePath, "cache", "", "SQLite compile cache path")
	flags.BoolVar(&opts.validateCache, "validate-cache", false, "check cached entries against files, env and constants")
	flags.BoolVar(&opts.strict, "strict", false, "validate raw files against the CUE file schema")
	flags.StringVar(&opts.logLevel, "log-level", envOr("LOG_LEVEL", "info"), "log level: debug, info, warn, error")
	flags.StringVar(&opts.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	flags.StringVar(&opts.trace, "trace", "none", "trace exporter: stdout, otlp or none")
	flags.BoolVar(&opts.noColor, "no-color", false, "disable colored output")
	flags.StringVar(&opts.otlpEndpoint, "otlp-endpoint", envOr("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"), "OTLP gRPC collector address")

	rootCmd.AddCommand(newCompileCommand(opts))
	rootCmd.AddCommand(newValidateCommand(opts))
	rootCmd.AddCommand(newLintCommand(opts))
	rootCmd.AddCommand(newWatchCommand(opts))
	rootCmd.AddCommand(newCacheCommand(opts))
	rootCmd.AddCommand(newVersionCommand(version, commit, buildDate))

	return rootCmd
}

func newVersionCommand(version, commit, buildDate string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "syringe %s\ncommit: %s\nbuilt: %s\n", version, commit, buildDate)
			return nil
		},
	}
}

func envOr(name, fallback string) string {
	if v, ok := os.LookupEnv(name); ok && v != "" {
		return v
	}
	return fallback
}
