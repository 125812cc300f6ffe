package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"secscan/internal/config"
	"secscan/internal/model"
	"secscan/internal/progress"
	"secscan/internal/report"
	"secscan/internal/safefile"
	"secscan/internal/tui"
)

const summaryFindingLimit = 20

// ErrThresholdExceeded is returned when --fail-on matched at least one finding.
var ErrThresholdExceeded = errors.New("findings at or above the failure threshold")

type scanCmdFlags struct {
	scanFlags
	format string
	output string
	failOn string
	tui    bool
	noTUI  bool
}

func newScanCmd(a *app) *cobra.Command {
	f := &scanCmdFlags{}
	cmd := &cobra.Command{
		Use:   "scan [path]",
		Short: "Run all enabled sub-scans once and write a signed report",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runScan(cmd, args, f)
		},
	}
	f.register(cmd)
	cmd.Flags().StringVar(&f.format, "format", "text", "Output format: text|json|markdown|sarif")
	cmd.Flags().StringVarP(&f.output, "output", "o", "", "Write output to a file instead of stdout")
	cmd.Flags().StringVar(&f.failOn, "fail-on", "", "Exit non-zero when a finding has this severity or worse")
	cmd.Flags().BoolVar(&f.tui, "tui", false, "Force the interactive progress view")
	cmd.Flags().BoolVar(&f.noTUI, "no-tui", false, "Disable the interactive progress view")
	return cmd
}

func (a *app) runScan(cmd *cobra.Command, args []string, f *scanCmdFlags) error {
	if err := validFormat(f.format); err != nil {
		return err
	}
	var threshold model.Severity
	if f.failOn != "" {
		sev, ok := model.ParseSeverity(f.failOn)
		if !ok {
			return fmt.Errorf("invalid --fail-on severity %q", f.failOn)
		}
		threshold = sev
	}
	if f.tui && f.noTUI {
		return usageError("--tui and --no-tui are mutually exclusive")
	}

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

	useTUI := f.tui || (!f.noTUI && a.stdout == os.Stdout && interactive())
	var res model.ScanResult
	var reportPath string
	var runErr error
	if useTUI {
		res, reportPath, runErr = a.scanWithTUI(cmd, root, s, !f.noStore)
	} else {
		sink := progress.MultiSink{progress.NewPlainSink(a.stderr), progress.NewZapSink(a.log)}
		o, err := a.buildOrchestrator(root, s, sink, !f.noStore)
		if err != nil {
			return err
		}
		res, runErr = o.Run(cmd.Context())
		reportPath = o.Session().ReportPath
	}

	var storeErr *report.StorageError
	switch {
	case runErr == nil:
	case errors.As(runErr, &storeErr):
		a.log.Warn("report not persisted", zap.Error(runErr))
		fmt.Fprintf(a.stderr, "warning: %v\n", runErr)
	default:
		return runErr
	}

	if err := a.writeResult(res, reportPath, f.format, f.output); err != nil {
		return err
	}
	if threshold != "" && exceeds(res, threshold) {
		return fmt.Errorf("%w (%s)", ErrThresholdExceeded, threshold)
	}
	return nil
}

func (a *app) scanWithTUI(cmd *cobra.Command, root string, s config.Settings, store bool) (model.ScanResult, string, error) {
	events := make(chan progress.Event, 256)
	sink := progress.MultiSink{progress.NewChannelSink(events), progress.NewZapSink(a.log)}
	o, err := a.buildOrchestrator(root, s, sink, store)
	if err != nil {
		return model.ScanResult{}, "", err
	}

	type outcome struct {
		res model.ScanResult
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		defer close(events)
		res, err := o.Run(cmd.Context())
		done <- outcome{res, err}
	}()

	if err := tui.Run(tui.Options{Events: events}); err != nil {
		a.log.Warn("progress view failed", zap.Error(err))
		for range events {
		}
	}
	out := <-done
	return out.res, o.Session().ReportPath, out.err
}

func interactive() bool {
	return isatty.IsTerminal(os.Stdout.Fd()) && isatty.IsTerminal(os.Stderr.Fd()) && isatty.IsTerminal(os.Stdin.Fd())
}

func validFormat(format string) error {
	switch format {
	case "text", "json", "markdown", "sarif":
		return nil
	default:
		return fmt.Errorf("unsupported format %q (want text|json|markdown|sarif)", format)
	}
}

func renderResult(res model.ScanResult, reportPath, format string) ([]byte, error) {
	switch format {
	case "json":
		b, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("marshal report: %w", err)
		}
		return append(b, '\n'), nil
	case "markdown":
		return []byte(report.RenderMarkdown(res)), nil
	case "sarif":
		b, err := report.MarshalSARIF(res)
		if err != nil {
			return nil, err
		}
		return append(b, '\n'), nil
	default:
		var b strings.Builder
		b.WriteString(report.RenderSummary(res, summaryFindingLimit))
		if reportPath != "" {
			fmt.Fprintf(&b, "\nReport:   %s\n", reportPath)
		}
		return []byte(b.String()), nil
	}
}

func (a *app) writeResult(res model.ScanResult, reportPath, format, output string) error {
	b, err := renderResult(res, reportPath, format)
	if err != nil {
		return err
	}
	if output == "" {
		_, err := a.stdout.Write(b)
		return err
	}
	if err := safefile.WriteFileAtomic(output, b, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", output, err)
	}
	fmt.Fprintf(a.stderr, "wrote %s\n", output)
	return nil
}

// exceeds reports whether any active finding is at or above threshold.
func exceeds(res model.ScanResult, threshold model.Severity) bool {
	for _, sev := range model.Severities {
		if sev.Rank() >= threshold.Rank() && res.Summary.Count(sev) > 0 {
			return true
		}
	}
	return false
}
