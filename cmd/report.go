package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"secscan/internal/config"
	"secscan/internal/diff"
	"secscan/internal/model"
	"secscan/internal/report"
	"secscan/internal/safefile"
)

func newReportCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Work with stored scan reports",
	}
	cmd.AddCommand(newReportVerifyCmd(a), newReportShowCmd(a), newReportDiffCmd(a), newReportBadgeCmd(a))
	return cmd
}

func newReportVerifyCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "verify <file>...",
		Short: "Check report signatures",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			var failed int
			for _, path := range args {
				res, err := report.Load(path)
				switch {
				case err == nil:
					fmt.Fprintf(a.stdout, "ok       %s %s\n", path, res.Signature)
				case errors.Is(err, report.ErrSignatureMismatch), errors.Is(err, report.ErrUnsigned):
					failed++
					fmt.Fprintf(a.stdout, "INVALID  %s: %v\n", path, err)
				default:
					return err
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d report(s) failed verification", failed, len(args))
			}
			return nil
		},
	}
}

func newReportShowCmd(a *app) *cobra.Command {
	var (
		format string
		root   string
	)
	cmd := &cobra.Command{
		Use:   "show [file]",
		Short: "Render a stored report; defaults to the latest one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			if err := validFormat(format); err != nil {
				return err
			}
			var (
				res  model.ScanResult
				path string
				err  error
			)
			if len(args) == 1 {
				path = args[0]
				res, err = report.Load(path)
			} else {
				res, path, err = a.latest(root)
			}
			if errors.Is(err, report.ErrSignatureMismatch) {
				fmt.Fprintf(a.stderr, "warning: %s: %v\n", path, err)
			} else if err != nil {
				return err
			}
			return a.writeResult(res, path, format, "")
		},
	}
	cmd.Flags().StringVar(&format, "format", "text", "Output format: text|json|markdown|sarif")
	cmd.Flags().StringVar(&root, "root", ".", "Scanned root whose report directory is read")
	return cmd
}

func newReportDiffCmd(a *app) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "diff <baseline> <current>",
		Short: "Compare two reports by finding identity",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			base, err := loadVerified(args[0])
			if err != nil {
				return err
			}
			cur, err := loadVerified(args[1])
			if err != nil {
				return err
			}
			d := diff.Compare(base, cur)

			if format == "json" {
				b, err := json.MarshalIndent(d, "", "  ")
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(a.stdout, string(b))
				return err
			}
			fmt.Fprintf(a.stdout, "%s -> %s\n", d.BaselineID, d.CurrentID)
			fmt.Fprintf(a.stdout, "score %d -> %d (%+d)\n", d.Summary.ScoreBefore, d.Summary.ScoreAfter, d.ScoreDelta())
			fmt.Fprintf(a.stdout, "new=%d fixed=%d unchanged=%d\n", d.Summary.NewCount, d.Summary.FixedCount, d.Summary.UnchangedCount)
			printDiffSection(a, "+", d.New)
			printDiffSection(a, "-", d.Fixed)
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "text", "Output format: text|json")
	return cmd
}

func newReportBadgeCmd(a *app) *cobra.Command {
	var (
		format string
		style  string
		label  string
		output string
		root   string
	)
	cmd := &cobra.Command{
		Use:   "badge [file]",
		Short: "Render a grade badge for a report; defaults to the latest one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			var (
				res model.ScanResult
				err error
			)
			if len(args) == 1 {
				res, err = loadVerified(args[0])
			} else {
				res, _, err = a.latest(root)
			}
			if err != nil {
				return err
			}

			var b []byte
			switch format {
			case "svg":
				b = []byte(report.BadgeSVG(label, res, report.ParseBadgeStyle(style)))
			case "shields":
				if b, err = report.ShieldsJSON(label, res); err != nil {
					return err
				}
				b = append(b, '\n')
			default:
				return fmt.Errorf("unsupported badge format %q (want svg|shields)", format)
			}
			if output == "" {
				_, err := a.stdout.Write(b)
				return err
			}
			if err := safefile.WriteFileAtomic(output, b, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", output, err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "svg", "Badge format: svg|shields")
	cmd.Flags().StringVar(&style, "style", "flat", "SVG style: flat|flat-square")
	cmd.Flags().StringVar(&label, "label", "security", "Left-hand badge text")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write the badge to a file")
	cmd.Flags().StringVar(&root, "root", ".", "Scanned root whose report directory is read")
	return cmd
}

func printDiffSection(a *app, mark string, findings []model.Finding) {
	for _, f := range findings {
		loc := f.Locator
		if f.Line > 0 {
			loc = fmt.Sprintf("%s:%d", loc, f.Line)
		}
		fmt.Fprintf(a.stdout, "%s %-8s %s %s\n", mark, strings.ToUpper(string(f.Severity)), f.RuleID, loc)
	}
}

// loadVerified loads path and fails on a missing or mismatched signature.
func loadVerified(path string) (model.ScanResult, error) {
	res, err := report.Load(path)
	if err != nil {
		return model.ScanResult{}, fmt.Errorf("%s: %w", path, err)
	}
	return res, nil
}

func (a *app) latest(root string) (model.ScanResult, string, error) {
	s, err := a.settings(config.Config{})
	if err != nil {
		return model.ScanResult{}, "", err
	}
	abs, err := targetRoot([]string{root})
	if err != nil {
		return model.ScanResult{}, "", err
	}
	res, path, err := report.NewStore(reportDir(abs, s.ReportPath)).Latest()
	if errors.Is(err, os.ErrNotExist) {
		return model.ScanResult{}, "", fmt.Errorf("no reports under %s", reportDir(abs, s.ReportPath))
	}
	return res, path, err
}
