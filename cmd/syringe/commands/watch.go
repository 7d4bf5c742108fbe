package commands

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/openfroyo/syringe/pkg/syringe"
	"github.com/openfroyo/syringe/pkg/telemetry"
)

func newWatchCommand(opts *globalOptions) *cobra.Command {
	var (
		format      string
		output      string
		debounce    time.Duration
		events      bool
		eventsLevel string
		eventTypes  []string
	)

	cmd := &cobra.Command{
		Use:   "watch [files...]",
		Short: "Recompile whenever a configuration file changes",
		Long: `Compile configuration files, then watch every file that took part in the
compile and recompile when one changes. Each successful compile rewrites
--output when it is set. With --events, compile and cache events are
streamed to stderr as JSON lines. Stops on interrupt.`,
		Example: `  syringe watch services.yml -o compiled.json --cache .syringe.db`,
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

			logger := s.tel.Logger.NewComponentLogger("watch")
			if events {
				stderr := cmd.ErrOrStderr()
				filter := telemetry.FilterByLevel(eventsLevel)
				if len(eventTypes) > 0 {
					byLevel, byType := filter, telemetry.FilterByType(eventTypes...)
					filter = func(event telemetry.Event) bool { return byLevel(event) && byType(event) }
				}
				s.tel.Events.Subscribe(func(event telemetry.Event) {
					line, err := json.Marshal(event)
					if err != nil {
						return
					}
					fmt.Fprintln(stderr, string(line))
				}, filter)
			}
			w := s.builder.NewWatcher(req, syringe.WithDebounce(debounce))
			return w.Run(cmd.Context(), func(res *syringe.Result, err error) {
				if err != nil {
					logger.WithError(err).Error("compile failed")
					return
				}
				logger.WithCompileID(res.RunID).Infof("compiled %d service(s)", len(res.Config.Services))

				var buf bytes.Buffer
				if err := writeConfig(&buf, res.Config, format); err != nil {
					logger.WithError(err).Error("failed to render configuration")
					return
				}
				if output == "" {
					fmt.Fprint(cmd.OutOrStdout(), buf.String())
					return
				}
				if err := os.WriteFile(output, buf.Bytes(), 0o644); err != nil {
					logger.WithError(err).Error("failed to write configuration")
				}
			})
		},
	}

	cmd.Flags().StringVar(&format, "format", "json", "output format: json or yaml")
	cmd.Flags().StringVarP(&output, "output", "o", "", "rewrite this file after every compile")
	cmd.Flags().BoolVar(&events, "events", false, "stream compile events to stderr as JSON lines")
	cmd.Flags().StringVar(&eventsLevel, "events-level", telemetry.EventLevelInfo, "minimum event level: info, warning or error")
	cmd.Flags().StringArrayVar(&eventTypes, "event-type", nil, "only stream events of this type, e.g. cache.hit (repeatable)")
	cmd.Flags().DurationVar(&debounce, "debounce", syringe.DefaultDebounce, "wait for changes to settle this long")

	return cmd
}
