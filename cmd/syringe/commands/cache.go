package commands

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/openfroyo/syringe/pkg/compiler"
	"github.com/openfroyo/syringe/pkg/stores"
)

func newCacheCommand(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and manage the compile cache",
		Long: `Inspect and manage the SQLite compile cache named by --cache.

Subcommands:
  - list: cached configurations
  - show: one cached configuration
  - runs: recent compile runs
  - clear: delete every cached configuration`,
	}

	cmd.AddCommand(newCacheListCommand(opts))
	cmd.AddCommand(newCacheShowCommand(opts))
	cmd.AddCommand(newCacheRunsCommand(opts))
	cmd.AddCommand(newCacheClearCommand(opts))

	return cmd
}

func (o *globalOptions) withStore(cmd *cobra.Command, fn func(stores.Store) error) error {
	if o.cachePath == "" {
		return errors.New("--cache is required")
	}
	store, err := openStore(cmd.Context(), o.cachePath)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(store)
}

func newCacheListCommand(opts *globalOptions) *cobra.Command {
	var limit, offset int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List cached configurations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withStore(cmd, func(store stores.Store) error {
				records, err := store.ListCompiled(cmd.Context(), limit, offset)
				if err != nil {
					return err
				}
				return printRecords(cmd.OutOrStdout(), records)
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 50, "maximum number of entries")
	cmd.Flags().IntVar(&offset, "offset", 0, "entries to skip")

	return cmd
}

func newCacheShowCommand(opts *globalOptions) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "show <key>",
		Short: "Print a cached configuration",
		Long:  `Print a cached configuration. The key may be abbreviated to any unique prefix.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withStore(cmd, func(store stores.Store) error {
				rec, err := findRecord(cmd, store, args[0])
				if err != nil {
					return err
				}
				cfg, err := compiler.Decode([]byte(rec.Data))
				if err != nil {
					return fmt.Errorf("cached entry %s is undecodable: %w", shortKey(rec.Key), err)
				}
				return writeConfig(cmd.OutOrStdout(), cfg, format)
			})
		},
	}

	cmd.Flags().StringVar(&format, "format", "json", "output format: json or yaml")

	return cmd
}

func newCacheRunsCommand(opts *globalOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recent compile runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withStore(cmd, func(store stores.Store) error {
				runs, err := store.ListRuns(cmd.Context(), limit, 0)
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tKEY\tSTATUS\tCACHE HIT\tDURATION\tSTARTED\tERROR")
				for _, run := range runs {
					errMsg := ""
					if run.Error != nil {
						errMsg = *run.Error
					}
					fmt.Fprintf(tw, "%s\t%s\t%s\t%v\t%s\t%s\t%s\n",
						run.ID, shortKey(run.CacheKey), statusColor(run.Status), run.CacheHit,
						run.Duration().Round(time.Millisecond), run.StartedAt.Format(time.RFC3339), errMsg)
				}
				return tw.Flush()
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of runs")

	return cmd
}

func newCacheClearCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete every cached configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withStore(cmd, func(store stores.Store) error {
				n, err := store.ClearCompiled(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "cleared %d cached configuration(s)\n", n)
				return nil
			})
		},
	}
}

// findRecord looks a record up by full key or unique prefix.
func findRecord(cmd *cobra.Command, store stores.Store, key string) (*stores.CompiledRecord, error) {
	rec, err := store.GetCompiled(cmd.Context(), key)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, stores.ErrNotFound) {
		return nil, err
	}

	var match *stores.CompiledRecord
	const page = 100
	for offset := 0; ; offset += page {
		records, err := store.ListCompiled(cmd.Context(), page, offset)
		if err != nil {
			return nil, err
		}
		for _, r := range records {
			if !strings.HasPrefix(r.Key, key) {
				continue
			}
			if match != nil {
				return nil, fmt.Errorf("key prefix %q is ambiguous", key)
			}
			match = r
		}
		if len(records) < page {
			break
		}
	}
	if match == nil {
		return nil, fmt.Errorf("no cached configuration with key %q", key)
	}
	return match, nil
}

func printRecords(w io.Writer, records []*stores.CompiledRecord) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KEY\tSERVICES\tPARAMETERS\tFILES\tHITS\tUPDATED\tAPP DIR")
	for _, r := range records {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%s\t%s\n",
			shortKey(r.Key), r.Services, r.Parameters, len(r.Files), r.Hits,
			r.UpdatedAt.Format(time.RFC3339), r.AppDir)
	}
	return tw.Flush()
}

func shortKey(key string) string {
	if len(key) > 12 {
		return key[:12]
	}
	return key
}
