package commands

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/openfroyo/syringe/pkg/policy"
)

func newLintCommand(opts *globalOptions) *cobra.Command {
	var (
		rules   []string
		disable []string
		format  string
	)

	cmd := &cobra.Command{
		Use:   "lint [files...]",
		Short: "Check a compiled configuration against Rego policies",
		Long: `Compile configuration files and evaluate the result against the built-in
policies and any Rego policies given with --rules.

Built-in policies:
  - unresolved-service: references must name a defined service or alias
  - unknown-tag: injected tags should have at least one service
  - self-reference: a service cannot be constructed from itself
  - service-naming: names should not contain whitespace or start with a sigil

The command fails when any violation has error severity.`,
		Example: `  syringe lint services.yml --rules policies/ --disable service-naming`,
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

			eng, err := policy.NewEngine(cmd.Context(), s.tel.Logger.Zerolog())
			if err != nil {
				return err
			}
			if len(rules) > 0 {
				if err := eng.LoadPolicies(cmd.Context(), rules); err != nil {
					return err
				}
			}
			for _, name := range disable {
				if err := eng.DisablePolicy(name); err != nil {
					return err
				}
			}

			res, err := s.builder.Build(cmd.Context(), req)
			if err != nil {
				return err
			}

			result, err := eng.Evaluate(cmd.Context(), res.Config)
			if err != nil {
				return err
			}
			logger := s.tel.Logger.NewComponentLogger("lint").WithCompileID(res.RunID)
			for _, w := range result.Warnings {
				logger.Warn(w)
			}
			for _, v := range result.Violations {
				logger.WithService(v.Service).WithField("policy", v.Policy).Debug(v.Message)
			}

			if err := writeLintResult(cmd.OutOrStdout(), result, format); err != nil {
				return err
			}
			if !result.Allowed {
				return fmt.Errorf("policy check failed with %d error(s)", result.Count(policy.SeverityError))
			}
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&rules, "rules", nil, "Rego policy file or directory (repeatable)")
	cmd.Flags().StringArrayVar(&disable, "disable", nil, "policy to skip (repeatable)")
	cmd.Flags().StringVar(&format, "format", "text", "output format: text or json")

	return cmd
}

func writeLintResult(w io.Writer, result *policy.Result, format string) error {
	switch format {
	case "json":
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode result: %w", err)
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	case "text", "":
	default:
		return fmt.Errorf("unsupported format %q (must be text or json)", format)
	}

	if len(result.Violations) > 0 {
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "SEVERITY\tPOLICY\tSERVICE\tMESSAGE")
		for _, v := range result.Violations {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", severityColor(v.Severity), v.Policy, v.Service, v.Message)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}

	summary := fmt.Sprintf("%d policies evaluated: %d error(s), %d warning(s), %d info",
		len(result.EvaluatedPolicies), result.Count(policy.SeverityError),
		result.Count(policy.SeverityWarning), result.Count(policy.SeverityInfo))
	if result.Allowed {
		summary = green(summary)
	} else {
		summary = red(summary)
	}
	_, err := fmt.Fprintln(w, summary)
	return err
}
