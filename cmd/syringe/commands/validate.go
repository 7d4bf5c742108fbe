package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newValidateCommand(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [files...]",
		Short: "Check that configuration files compile",
		Long: `Compile configuration files without using the cache and report whether
they are valid. Add --strict to also check every raw file against the CUE
file schema.`,
		Example: `  syringe validate services.yml --strict`,
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := opts.request(args)
			if err != nil {
				return err
			}

			s, err := opts.open(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer s.close()

			res, err := s.builder.Build(cmd.Context(), req)
			if err != nil {
				return err
			}

			cfg := res.Config
			fmt.Fprintf(cmd.OutOrStdout(), "%s %d file(s), %d service(s), %d alias(es), %d parameter(s), %d tag(s)\n",
				green("configuration is valid:"), len(cfg.Files), len(cfg.Services), len(cfg.Aliases), len(cfg.Parameters), len(cfg.Tags))
			return nil
		},
	}

	return cmd
}
