package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newCompileCommand(opts *globalOptions) *cobra.Command {
	var (
		format string
		output string
	)

	cmd := &cobra.Command{
		Use:   "compile [files...]",
		Short: "Compile configuration files",
		Long: `Compile configuration files into a single resolved definition set.

This command:
  - Resolves files, inherit chains and imports along the search paths
  - Merges parameters and services by weight
  - Expands abstract services, aliases and extensions
  - Substitutes parameters, environment variables and constants
  - Serves and refreshes the compile cache when --cache is set`,
		Example: `  # Compile a file relative to the app dir
  syringe compile services.yml

  # Namespace a library's services and override a parameter
  syringe compile -f app.yml -f mailer=vendor/mailer/services.yml -P debug=true

  # Use a validated cache and write YAML
  syringe compile app.yml --cache .syringe.db --validate-cache --format yaml -o compiled.yml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := opts.request(args)
			if err != nil {
				return err
			}

			s, err := opts.open(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer s.close()

			res, err := s.builder.Build(cmd.Context(), req)
			if err != nil {
				return err
			}
			s.tel.Logger.WithCompileID(res.RunID).Infof("compiled %d service(s), cache hit: %v", len(res.Config.Services), res.CacheHit)

			if output == "" {
				return writeConfig(cmd.OutOrStdout(), res.Config, format)
			}
			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("failed to create output file: %w", err)
			}
			if err := writeConfig(f, res.Config, format); err != nil {
				_ = f.Close()
				return err
			}
			return f.Close()
		},
	}

	cmd.Flags().StringVar(&format, "format", "json", "output format: json or yaml")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to this file instead of stdout")

	return cmd
}
