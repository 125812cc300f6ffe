package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"secscan/internal/config"
	"secscan/internal/progress"
	"secscan/internal/schedule"
)

func newScheduleCmd(a *app) *cobra.Command {
	f := &scanFlags{}
	var (
		interval  time.Duration
		immediate bool
	)
	cmd := &cobra.Command{
		Use:   "schedule [path]",
		Short: "Scan path on a fixed interval",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := targetRoot(args)
			if err != nil {
				return err
			}
			overrides, err := f.overrides(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("interval") {
				overrides.ScheduleInterval = interval.String()
			}
			s, err := a.settings(overrides)
			if err != nil {
				return err
			}
			sink := progress.MultiSink{progress.NewPlainSink(a.stderr), progress.NewZapSink(a.log)}
			o, err := a.buildOrchestrator(root, s, sink, !f.noStore)
			if err != nil {
				return err
			}

			r := &schedule.Runner{
				Scanner:   o,
				Interval:  s.ScheduleInterval,
				Immediate: immediate,
				Sink:      sink,
				Logger:    a.log,
				OnResult:  a.printOutcome,
			}
			fmt.Fprintf(a.stderr, "scanning %s every %s (ctrl-c to stop)\n", root, s.ScheduleInterval)
			return r.Start(cmd.Context())
		},
	}
	f.register(cmd)
	cmd.Flags().DurationVar(&interval, "interval", config.DefaultScheduleInterval, "Time between scans")
	cmd.Flags().BoolVar(&immediate, "immediate", true, "Run the first scan right away")
	return cmd
}
