package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"secscan/internal/diff"
	"secscan/internal/model"
	"secscan/internal/report"
)

func runCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	var stdout, stderr bytes.Buffer
	root := newRootCmd(&stdout, &stderr)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func writeFixture(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"src/app.js":   "const express = require('express');\nconst out = eval(userInput);\n",
		"package.json": "{\n  \"name\": \"shop\",\n  \"dependencies\": {\n    \"lodash\": \"4.17.15\"\n  }\n}\n",
	}
	for name, content := range files {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func storedReports(t *testing.T, root string) []report.Entry {
	t.Helper()
	list, err := report.NewStore(filepath.Join(root, report.DefaultDir)).List()
	if err != nil {
		t.Fatalf("list reports: %v", err)
	}
	return list
}

func TestScanJSONWritesSignedReport(t *testing.T) {
	root := writeFixture(t)
	out, errOut, err := runCLI(t, "scan", root, "--no-tui", "--format", "json")
	if err != nil {
		t.Fatalf("scan: %v\nstderr: %s", err, errOut)
	}

	var res model.ScanResult
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("parse output: %v\n%s", err, out)
	}
	if res.Summary.Critical < 2 {
		t.Fatalf("expected eval and lodash criticals, got %+v", res.Summary)
	}
	if err := report.Verify(res); err != nil {
		t.Fatalf("expected signed output: %v", err)
	}
	if !strings.Contains(errOut, "report written to") {
		t.Fatalf("expected progress lines on stderr, got %q", errOut)
	}

	list := storedReports(t, root)
	if len(list) != 1 {
		t.Fatalf("expected one stored report, got %d", len(list))
	}
	stored, err := report.Load(list[0].Path)
	if err != nil || stored.Signature != res.Signature {
		t.Fatalf("stored report differs from output: %v", err)
	}
}

func TestScanNoStoreLeavesNoReport(t *testing.T) {
	root := writeFixture(t)
	out, _, err := runCLI(t, "scan", root, "--no-tui", "--no-store")
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if !strings.Contains(out, "Security Scan") || strings.Contains(out, "Report:") {
		t.Fatalf("unexpected text output:\n%s", out)
	}
	if _, err := os.Stat(filepath.Join(root, "reports")); !os.IsNotExist(err) {
		t.Fatalf("expected no report directory, got %v", err)
	}
}

func TestScanFailOn(t *testing.T) {
	root := writeFixture(t)
	_, _, err := runCLI(t, "scan", root, "--no-tui", "--no-store", "--fail-on", "high")
	if !errors.Is(err, ErrThresholdExceeded) {
		t.Fatalf("expected threshold error, got %v", err)
	}

	clean := t.TempDir()
	if err := os.WriteFile(filepath.Join(clean, "main.go"), []byte("package main\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, _, err := runCLI(t, "scan", clean, "--no-tui", "--no-store", "--fail-on", "low"); err != nil {
		t.Fatalf("expected clean tree to pass, got %v", err)
	}
}

func TestScanOnlySelectsSubScans(t *testing.T) {
	root := writeFixture(t)
	out, _, err := runCLI(t, "scan", root, "--no-tui", "--no-store", "--format", "json", "--only", "code")
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	var res model.ScanResult
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatal(err)
	}
	if len(res.Categories) != 1 || res.Categories[0].Category != model.ScanCode {
		t.Fatalf("expected only the code sub-scan, got %+v", res.Categories)
	}
	for _, f := range res.Findings {
		if f.Category == model.CategoryVulnerability {
			t.Fatalf("dependency finding leaked into code-only scan: %+v", f)
		}
	}
}

func TestScanRejectsBadFlags(t *testing.T) {
	root := writeFixture(t)
	for _, args := range [][]string{
		{"scan", root, "--format", "xml"},
		{"scan", root, "--fail-on", "urgent"},
		{"scan", root, "--only", "network"},
		{"scan", root, "--workers", "0"},
		{"scan", root, "--tui", "--no-tui"},
	} {
		if _, _, err := runCLI(t, args...); err == nil {
			t.Fatalf("expected %v to fail", args)
		}
	}
}

func TestScanExplicitConfigMustExist(t *testing.T) {
	root := writeFixture(t)
	_, _, err := runCLI(t, "--config", filepath.Join(root, "missing.yaml"), "scan", root, "--no-tui")
	if err == nil {
		t.Fatal("expected missing explicit config to fail")
	}
}

func TestScanOutputFile(t *testing.T) {
	root := writeFixture(t)
	dest := filepath.Join(t.TempDir(), "scan.sarif")
	out, _, err := runCLI(t, "scan", root, "--no-tui", "--no-store", "--format", "sarif", "-o", dest)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if out != "" {
		t.Fatalf("expected nothing on stdout, got %q", out)
	}
	raw, err := os.ReadFile(dest)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(raw), `"version": "2.1.0"`) {
		t.Fatalf("expected sarif document, got %s", raw)
	}
}

func TestReportVerifyShowAndDiff(t *testing.T) {
	root := writeFixture(t)
	if _, _, err := runCLI(t, "scan", root, "--no-tui"); err != nil {
		t.Fatalf("first scan: %v", err)
	}
	if err := os.WriteFile(filepath.Join(root, "src", "app.js"), []byte("const out = JSON.parse(userInput);\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, _, err := runCLI(t, "scan", root, "--no-tui"); err != nil {
		t.Fatalf("second scan: %v", err)
	}
	list := storedReports(t, root)
	if len(list) != 2 {
		t.Fatalf("expected two reports, got %d", len(list))
	}
	base, cur := list[0].Path, list[1].Path

	out, _, err := runCLI(t, "report", "verify", base, cur)
	if err != nil || strings.Count(out, "ok ") != 2 {
		t.Fatalf("verify: %v\n%s", err, out)
	}

	out, _, err = runCLI(t, "report", "diff", base, cur, "--format", "json")
	if err != nil {
		t.Fatalf("diff: %v", err)
	}
	var d diff.DiffReport
	if err := json.Unmarshal([]byte(out), &d); err != nil {
		t.Fatal(err)
	}
	fixedEval := false
	for _, f := range d.Fixed {
		fixedEval = fixedEval || f.RuleID == "code-eval-injection"
	}
	if !fixedEval {
		t.Fatalf("expected eval finding fixed, got %+v", d.Fixed)
	}
	if d.Summary.NewCount != 0 || d.ScoreDelta() <= 0 {
		t.Fatalf("expected improvement without new findings, got %+v", d.Summary)
	}

	out, _, err = runCLI(t, "report", "show", "--root", root, "--format", "markdown")
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	if !strings.Contains(out, "# Security Scan Report") || strings.Contains(out, "eval()") {
		t.Fatalf("expected latest report rendered, got:\n%s", out)
	}

	raw, _ := os.ReadFile(cur)
	var res model.ScanResult
	if err := json.Unmarshal(raw, &res); err != nil {
		t.Fatal(err)
	}
	res.SecurityScore = 100
	tampered, _ := json.Marshal(res)
	forged := filepath.Join(t.TempDir(), "forged.json")
	if err := os.WriteFile(forged, tampered, 0o600); err != nil {
		t.Fatal(err)
	}
	out, _, err = runCLI(t, "report", "verify", forged)
	if err == nil || !strings.Contains(out, "INVALID") {
		t.Fatalf("expected forged report to fail verification, got %v\n%s", err, out)
	}
	if _, _, err := runCLI(t, "report", "diff", base, forged); !errors.Is(err, report.ErrSignatureMismatch) {
		t.Fatalf("expected diff to refuse a forged report, got %v", err)
	}
}

func TestReportBadge(t *testing.T) {
	root := writeFixture(t)
	if _, _, err := runCLI(t, "scan", root, "--no-tui"); err != nil {
		t.Fatalf("scan: %v", err)
	}
	out, _, err := runCLI(t, "report", "badge", "--root", root)
	if err != nil || !strings.HasPrefix(out, "<svg") {
		t.Fatalf("expected svg badge, got %v\n%s", err, out)
	}
	out, _, err = runCLI(t, "report", "badge", "--root", root, "--format", "shields")
	if err != nil || !strings.Contains(out, `"schemaVersion": 1`) {
		t.Fatalf("expected shields document, got %v\n%s", err, out)
	}
}

func TestReportShowEmptyStore(t *testing.T) {
	_, _, err := runCLI(t, "report", "show", "--root", t.TempDir())
	if err == nil || !strings.Contains(err.Error(), "no reports") {
		t.Fatalf("expected no reports error, got %v", err)
	}
}

func TestRulesListAndValidate(t *testing.T) {
	out, _, err := runCLI(t, "rules", "list", "--kind", "source-file")
	if err != nil {
		t.Fatalf("rules list: %v", err)
	}
	if !strings.Contains(out, "SEVERITY") || !strings.Contains(out, "code-eval-injection") || strings.Contains(out, "dep-unpinned-version") {
		t.Fatalf("unexpected rules list:\n%s", out)
	}

	dir := t.TempDir()
	good := "api_version: secscan/v1\nname: team\nrules:\n  - id: team-no-debugger\n    title: Debugger statement\n    pattern: 'debugger;'\n    targets: [source-file]\n    category: configuration\n    severity: low\n"
	if err := os.WriteFile(filepath.Join(dir, "team.yaml"), []byte(good), 0o600); err != nil {
		t.Fatal(err)
	}
	out, _, err = runCLI(t, "rules", "validate", dir)
	if err != nil || !strings.Contains(out, "ok: 1 rules from 1 file(s)") {
		t.Fatalf("validate good pack: %v\n%s", err, out)
	}

	bad := "api_version: secscan/v1\nname: broken\nrules:\n  - id: broken-regex\n    title: Broken\n    pattern: '('\n    targets: [source-file]\n    category: injection\n    severity: high\n"
	if err := os.WriteFile(filepath.Join(dir, "broken.yaml"), []byte(bad), 0o600); err != nil {
		t.Fatal(err)
	}
	_, errOut, err := runCLI(t, "rules", "validate", dir)
	if err == nil || !strings.Contains(errOut, "broken-regex") {
		t.Fatalf("expected broken rule reported, got %v\n%s", err, errOut)
	}
}

func TestVersion(t *testing.T) {
	out, _, err := runCLI(t, "version")
	if err != nil || !strings.HasPrefix(out, "secscan dev") {
		t.Fatalf("unexpected version output %q %v", out, err)
	}
}
