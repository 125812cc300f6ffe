package config

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"secscan/internal/aggregate"
	"secscan/internal/model"
	"secscan/internal/report"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	if err := os.MkdirAll(dir, 0o700); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, FileName)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_NoFiles(t *testing.T) {
	t.Setenv("HOME", filepath.Join(t.TempDir(), "home"))
	restoreWD := setWorkingDir(t, t.TempDir())
	defer restoreWD()

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load with no files: %v", err)
	}
	if cfg.Workers != nil || cfg.ReportPath != "" {
		t.Fatalf("expected empty config, got %+v", cfg)
	}
}

func TestLoad_LocalOverridesGlobal(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	repoRoot := t.TempDir()
	restoreWD := setWorkingDir(t, repoRoot)
	defer restoreWD()

	writeConfig(t, filepath.Join(home, DirName), "workers: 2\nreportPath: /var/reports\nscanEndpoints: false\n")
	writeConfig(t, filepath.Join(repoRoot, DirName), "workers: 8\nscoring:\n  critical: 40\n")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Workers == nil || *cfg.Workers != 8 {
		t.Fatalf("expected local workers 8, got %v", cfg.Workers)
	}
	if cfg.ReportPath != "/var/reports" {
		t.Fatalf("expected global reportPath to survive, got %q", cfg.ReportPath)
	}
	if cfg.ScanEndpoints == nil || *cfg.ScanEndpoints {
		t.Fatal("expected global scanEndpoints=false to survive")
	}
	if cfg.Scoring.Critical == nil || *cfg.Scoring.Critical != 40 {
		t.Fatalf("expected local scoring override, got %+v", cfg.Scoring)
	}
}

func TestLoad_ExplicitFileWins(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	repoRoot := t.TempDir()
	restoreWD := setWorkingDir(t, repoRoot)
	defer restoreWD()

	writeConfig(t, filepath.Join(repoRoot, DirName), "batchSize: 50\n")
	explicit := writeConfig(t, t.TempDir(), "batchSize: 10\n")

	cfg, err := Load(explicit)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.BatchSize == nil || *cfg.BatchSize != 10 {
		t.Fatalf("expected explicit batchSize 10, got %v", cfg.BatchSize)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected a missing explicit config to be an error")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	restoreWD := setWorkingDir(t, t.TempDir())
	defer restoreWD()

	writeConfig(t, filepath.Join(home, DirName), "{{invalid yaml")
	if _, err := Load(""); err == nil {
		t.Fatal("expected error for invalid YAML")
	}
}

func TestLoad_EmptyFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	restoreWD := setWorkingDir(t, t.TempDir())
	defer restoreWD()

	writeConfig(t, filepath.Join(home, DirName), "")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load with empty file: %v", err)
	}
	if cfg.Workers != nil {
		t.Fatalf("expected empty config from empty file, got %+v", cfg)
	}
}

func TestMerge_NilPointersSafe(t *testing.T) {
	workers := 3
	a := Config{Workers: &workers, ReportPath: "base"}
	result := Merge(a, Config{})
	if result.ReportPath != "base" || result.Workers == nil || *result.Workers != 3 {
		t.Fatalf("merge should not override with unset values, got %+v", result)
	}

	off := false
	result = Merge(a, Config{ScanCode: &off, ExcludeDirectories: []string{}})
	if result.ScanCode == nil || *result.ScanCode {
		t.Fatal("expected explicit false to override")
	}
	if result.ExcludeDirectories == nil || len(result.ExcludeDirectories) != 0 {
		t.Fatal("expected an explicit empty exclude list to override")
	}
}

func TestResolveDefaults(t *testing.T) {
	s, err := Config{}.Resolve()
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !slices.Equal(s.Categories, model.ScanCategories) {
		t.Fatalf("expected all sub-scans enabled, got %v", s.Categories)
	}
	if s.ReportPath != report.DefaultDir || s.Workers != 4 || s.BatchSize != 100 {
		t.Fatalf("unexpected defaults: %+v", s)
	}
	if s.SubScanTimeout != 2*time.Minute || s.ScheduleInterval != time.Hour {
		t.Fatalf("unexpected duration defaults: %s %s", s.SubScanTimeout, s.ScheduleInterval)
	}
	if s.Weights != aggregate.DefaultWeights() {
		t.Fatalf("unexpected weights %+v", s.Weights)
	}
}

func TestResolveOverrides(t *testing.T) {
	off := false
	medium := 2
	cfg := Config{
		ScanEndpoints:    &off,
		ScanCode:         &off,
		SubScanTimeout:   "30s",
		ScheduleInterval: "15m",
		FileExtensions:   []string{".py"},
		Scoring:          Scoring{Medium: &medium},
	}
	s, err := cfg.Resolve()
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	want := []model.ScanCategory{model.ScanDependencies, model.ScanConfiguration}
	if !slices.Equal(s.Categories, want) {
		t.Fatalf("expected %v, got %v", want, s.Categories)
	}
	if s.SubScanTimeout != 30*time.Second || s.ScheduleInterval != 15*time.Minute {
		t.Fatalf("unexpected durations %s %s", s.SubScanTimeout, s.ScheduleInterval)
	}
	if s.Weights.Medium != 2 || s.Weights.Critical != 30 {
		t.Fatalf("expected partial scoring override, got %+v", s.Weights)
	}
	if !slices.Equal(s.FileExtensions, []string{".py"}) {
		t.Fatalf("unexpected extensions %v", s.FileExtensions)
	}
}

func TestValidateReportsAllProblems(t *testing.T) {
	zero, neg, off := 0, -5, false
	cfg := Config{
		Workers:            &zero,
		BatchSize:          &neg,
		SubScanTimeout:     "soon",
		ScheduleInterval:   "-1h",
		Scoring:            Scoring{High: &neg},
		ScanCode:           &off,
		ScanDependencies:   &off,
		ScanConfigurations: &off,
		ScanEndpoints:      &off,
	}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation errors")
	}
	for _, want := range []string{"workers", "batchSize", "subScanTimeout", "scheduleInterval", "scoring.high", "at least one"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("expected error to mention %q, got %v", want, err)
		}
	}
	if _, err := cfg.Resolve(); err == nil {
		t.Fatal("expected Resolve to reject invalid config")
	}
}

func setWorkingDir(t *testing.T, path string) func() {
	t.Helper()
	oldWD, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(path); err != nil {
		t.Fatalf("chdir %s: %v", path, err)
	}
	return func() {
		if err := os.Chdir(oldWD); err != nil {
			t.Fatalf("restore cwd: %v", err)
		}
	}
}
