package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"secscan/internal/model"
	"secscan/internal/progress"
	"secscan/internal/report"
	"secscan/internal/scan"
	"secscan/internal/watch"
)

func newWatchCmd(a *app) *cobra.Command {
	f := &scanFlags{}
	var debounce time.Duration
	cmd := &cobra.Command{
		Use:   "watch [path]",
		Short: "Rescan whenever files under path change",
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
			s, err := a.settings(overrides)
			if err != nil {
				return err
			}
			sink := progress.MultiSink{progress.NewPlainSink(a.stderr), progress.NewZapSink(a.log)}
			o, err := a.buildOrchestrator(root, s, sink, !f.noStore)
			if err != nil {
				return err
			}

			w, err := watch.New(o, watch.Options{
				Root:      root,
				Debounce:  debounce,
				SkipPaths: []string{reportDir(root, s.ReportPath)},
				Sink:      sink,
				Logger:    a.log,
				OnResult:  a.printOutcome,
			})
			if err != nil {
				return err
			}

			a.printOutcome(o.Run(cmd.Context()))
			fmt.Fprintf(a.stderr, "watching %s (ctrl-c to stop)\n", root)
			return w.Run(cmd.Context())
		},
	}
	f.register(cmd)
	cmd.Flags().DurationVar(&debounce, "debounce", watch.DefaultDebounce, "Quiet period before a change triggers a scan")
	return cmd
}

// printOutcome is the result callback of long-running modes. Failures are
// logged and the loop keeps going.
func (a *app) printOutcome(res model.ScanResult, err error) {
	var storeErr *report.StorageError
	switch {
	case err == nil:
	case errors.As(err, &storeErr):
		a.log.Warn("report not persisted", zap.Error(err))
	case errors.Is(err, scan.ErrCancelled):
		return
	default:
		a.log.Error("scan failed", zap.Error(err))
		fmt.Fprintf(a.stderr, "scan failed: %v\n", err)
		return
	}
	grade, _ := report.Grade(res)
	fmt.Fprintf(a.stdout, "%s %s score=%d grade=%s findings=%d critical=%d high=%d\n",
		res.Timestamp.UTC().Format(time.RFC3339), res.CompletionStatus, res.SecurityScore, grade,
		res.Summary.Total, res.Summary.Critical, res.Summary.High)
}
