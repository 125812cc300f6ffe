package cmd

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"secscan/internal/advisory"
	"secscan/internal/config"
	"secscan/internal/enumerate"
	"secscan/internal/model"
	"secscan/internal/progress"
	"secscan/internal/report"
	"secscan/internal/rules"
	"secscan/internal/scan"
	"secscan/internal/suppress"
)

// scanFlags are shared by scan, watch and schedule. Only flags the user
// set override config file values.
type scanFlags struct {
	workers      int
	batchSize    int
	timeout      time.Duration
	reportDir    string
	rulesDir     string
	advisories   string
	suppressions string
	only         []string
	extensions   []string
	noStore      bool
}

func (f *scanFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.IntVar(&f.workers, "workers", scan.DefaultWorkers, "Concurrent matchers per batch")
	fs.IntVar(&f.batchSize, "batch-size", scan.DefaultBatchSize, "Resources per batch")
	fs.DurationVar(&f.timeout, "timeout", scan.DefaultSubScanTimeout, "Deadline for each sub-scan")
	fs.StringVar(&f.reportDir, "report-dir", "", "Report directory, relative to the scanned root (default reports/security)")
	fs.StringVar(&f.rulesDir, "rules-dir", "", "Directory of additional YAML rule packs")
	fs.StringVar(&f.advisories, "advisories", "", "YAML advisory file merged with the builtin advisories")
	fs.StringVar(&f.suppressions, "suppressions", "", "Suppressions file (default <root>/.secscan/suppressions.yaml)")
	fs.StringSliceVar(&f.only, "only", nil, "Run only these sub-scans: dependencies,code,configuration,endpoints")
	fs.StringSliceVar(&f.extensions, "extensions", nil, "Source file extensions to scan")
	fs.BoolVar(&f.noStore, "no-store", false, "Do not persist the signed report")
}

func (f *scanFlags) overrides(cmd *cobra.Command) (config.Config, error) {
	var c config.Config
	changed := cmd.Flags().Changed
	if changed("workers") {
		c.Workers = &f.workers
	}
	if changed("batch-size") {
		c.BatchSize = &f.batchSize
	}
	if changed("timeout") {
		c.SubScanTimeout = f.timeout.String()
	}
	if changed("report-dir") {
		c.ReportPath = f.reportDir
	}
	if changed("rules-dir") {
		c.RulesDir = f.rulesDir
	}
	if changed("advisories") {
		c.AdvisoriesFile = f.advisories
	}
	if changed("suppressions") {
		c.SuppressionsFile = f.suppressions
	}
	if changed("extensions") {
		c.FileExtensions = f.extensions
	}
	if changed("only") {
		toggles := map[model.ScanCategory]*bool{
			model.ScanDependencies:  new(bool),
			model.ScanCode:          new(bool),
			model.ScanConfiguration: new(bool),
			model.ScanEndpoints:     new(bool),
		}
		for _, name := range f.only {
			on, ok := toggles[model.ScanCategory(strings.TrimSpace(name))]
			if !ok {
				return config.Config{}, fmt.Errorf("unknown sub-scan %q", name)
			}
			*on = true
		}
		c.ScanDependencies = toggles[model.ScanDependencies]
		c.ScanCode = toggles[model.ScanCode]
		c.ScanConfigurations = toggles[model.ScanConfiguration]
		c.ScanEndpoints = toggles[model.ScanEndpoints]
	}
	return c, nil
}

// reportDir resolves the report directory against the scanned root.
func reportDir(root, p string) string {
	if p == "" {
		p = report.DefaultDir
	}
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(root, p)
}

func targetRoot(args []string) (string, error) {
	root := "."
	if len(args) > 0 {
		root = args[0]
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolve scan root: %w", err)
	}
	return abs, nil
}

// buildOrchestrator wires the rule registry, advisory oracle, suppressions
// and report store for one scan root.
func (a *app) buildOrchestrator(root string, s config.Settings, sink progress.Sink, store bool) (*scan.Orchestrator, error) {
	reg, err := rules.LoadWithBuiltins(s.RulesDir)
	if err != nil {
		return nil, fmt.Errorf("load rules: %w", err)
	}
	oracle, err := advisory.WithFile(s.AdvisoriesFile)
	if err != nil {
		return nil, fmt.Errorf("load advisories: %w", err)
	}
	supPath := s.SuppressionsFile
	if supPath == "" {
		supPath = suppress.DefaultPath(root)
	}
	sups, err := suppress.Load(supPath)
	if err != nil {
		return nil, fmt.Errorf("load suppressions %s: %w", supPath, err)
	}

	opts := scan.Options{
		Root:       root,
		Categories: s.Categories,
		Enumerate: enumerate.Options{
			Extensions:   s.FileExtensions,
			ExcludeDirs:  s.ExcludeDirs,
			MaxFileBytes: s.MaxFileBytes,
		},
		Workers:        s.Workers,
		BatchSize:      s.BatchSize,
		SubScanTimeout: s.SubScanTimeout,
		Registry:       reg,
		Oracle:         oracle,
		Weights:        &s.Weights,
		Suppressions:   sups,
		Sink:           sink,
		Logger:         a.log,
	}
	if store {
		opts.Store = report.NewStore(reportDir(root, s.ReportPath))
	}
	return scan.New(opts)
}
