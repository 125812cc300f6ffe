package report

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"secscan/internal/model"
)

var ts = time.Date(2026, time.June, 1, 9, 30, 0, 123000000, time.UTC)

func sampleResult() model.ScanResult {
	return model.ScanResult{
		ID:        "scan-1",
		Kind:      "security-scan",
		Target:    "/srv/shop",
		Timestamp: ts,
		Findings: []model.Finding{
			{
				ID: "F-1", RuleID: "code-eval-injection", Severity: model.SeverityCritical,
				Category: model.CategoryInjection, Message: "Dynamic code evaluation with eval()",
				Locator: "src/app.js", Path: "src/app.js", Line: 2, CWE: "CWE-95",
				Confidence: model.ConfidenceHigh, DetectionMethod: "signature:regex",
				Evidence: "const out = eval(userInput);", Remediation: "Remove eval().", Timestamp: ts,
			},
			{
				ID: "F-2", RuleID: "CVE-2021-23337", Severity: model.SeverityCritical,
				Category: model.CategoryVulnerability, Message: "lodash@4.17.15: Command injection via template",
				Locator: "package.json#lodash@4.17.15", Path: "package.json", Line: 4,
				Confidence: model.ConfidenceHigh, DetectionMethod: "advisory", Timestamp: ts,
			},
		},
		Summary:          model.Summary{Critical: 2, Total: 2},
		SecurityScore:    40,
		CompletionStatus: model.StatusComplete,
		Categories: []model.CategoryStatus{
			{Category: model.ScanDependencies, Status: model.StatusComplete, Scanned: 1, FindingCount: 1},
			{Category: model.ScanCode, Status: model.StatusComplete, Scanned: 1, FindingCount: 1},
		},
	}
}

func TestSignAndVerify(t *testing.T) {
	signed, err := Sign(sampleResult())
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if !strings.HasPrefix(signed.Signature, "sha256:") || len(signed.Signature) != len("sha256:")+64 {
		t.Fatalf("unexpected signature format %q", signed.Signature)
	}
	if err := Verify(signed); err != nil {
		t.Fatalf("expected valid signature: %v", err)
	}

	again, _ := Sign(sampleResult())
	if again.Signature != signed.Signature {
		t.Fatal("signing must be deterministic")
	}
}

func TestVerifyDetectsTampering(t *testing.T) {
	signed, _ := Sign(sampleResult())

	tampered := signed
	tampered.SecurityScore = 100
	if !errors.Is(Verify(tampered), ErrSignatureMismatch) {
		t.Fatal("expected score tampering to be detected")
	}

	tampered = signed
	tampered.Findings = append([]model.Finding(nil), signed.Findings...)
	tampered.Findings[0].Severity = model.SeverityLow
	if !errors.Is(Verify(tampered), ErrSignatureMismatch) {
		t.Fatal("expected finding tampering to be detected")
	}

	tampered = signed
	tampered.Findings = signed.Findings[:1]
	if !errors.Is(Verify(tampered), ErrSignatureMismatch) {
		t.Fatal("expected finding removal to be detected")
	}

	if !errors.Is(Verify(sampleResult()), ErrUnsigned) {
		t.Fatal("expected unsigned result to be rejected")
	}
}

func TestSignatureSurvivesJSONRoundTrip(t *testing.T) {
	signed, _ := Sign(sampleResult())
	b, err := json.MarshalIndent(signed, "", "  ")
	if err != nil {
		t.Fatal(err)
	}
	var back model.ScanResult
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatal(err)
	}
	if err := Verify(back); err != nil {
		t.Fatalf("expected round-tripped report to verify: %v", err)
	}
}

func TestCanonicalNormalisesTimestampsToUTC(t *testing.T) {
	want, err := Canonical(sampleResult())
	if err != nil {
		t.Fatal(err)
	}

	zone := time.FixedZone("UTC+2", 2*60*60)
	shifted := sampleResult()
	shifted.Timestamp = ts.In(zone)
	for i := range shifted.Findings {
		shifted.Findings[i].Timestamp = ts.In(zone)
	}
	got, err := Canonical(shifted)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(want) {
		t.Fatalf("canonical form depends on time zone:\n%s\n%s", got, want)
	}
	if shifted.Findings[0].Timestamp.Location() != zone {
		t.Fatal("canonicalising must not modify the caller's findings")
	}

	signed, err := Sign(shifted)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	plain, _ := Sign(sampleResult())
	if signed.Signature != plain.Signature {
		t.Fatal("signature must not depend on time zone")
	}
	if err := Verify(signed); err != nil {
		t.Fatalf("expected valid signature: %v", err)
	}
}

func TestFileName(t *testing.T) {
	got := FileName("security-scan", ts)
	if got != "security-scan-2026-06-01T09-30-00.123Z.json" {
		t.Fatalf("unexpected file name %q", got)
	}
	local := ts.In(time.FixedZone("UTC+2", 2*3600))
	if FileName("security-scan", local) != got {
		t.Fatal("file names must use UTC")
	}
	kind, at, ok := parseFileName(got)
	if !ok || kind != "security-scan" || !at.Equal(ts) {
		t.Fatalf("expected parse to reverse FileName, got %q %v %v", kind, at, ok)
	}
	if _, _, ok := parseFileName("notes.json"); ok {
		t.Fatal("expected foreign file name to be rejected")
	}
}

func TestStorePersistLoadAndList(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "reports", "security"))
	signed, _ := Sign(sampleResult())

	path, err := store.Persist(signed)
	if err != nil {
		t.Fatalf("persist: %v", err)
	}
	if filepath.Base(path) != FileName(signed.Kind, signed.Timestamp) {
		t.Fatalf("unexpected path %s", path)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("expected 0600, got %v", info.Mode().Perm())
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Signature != signed.Signature || len(loaded.Findings) != 2 {
		t.Fatalf("unexpected loaded report: %+v", loaded)
	}

	var se *StorageError
	if _, err := store.Persist(signed); !errors.As(err, &se) {
		t.Fatalf("expected StorageError on overwrite, got %v", err)
	}

	later := sampleResult()
	later.ID = "scan-2"
	later.Timestamp = ts.Add(time.Hour)
	later, _ = Sign(later)
	if _, err := store.Persist(later); err != nil {
		t.Fatalf("persist later: %v", err)
	}
	if err := os.WriteFile(filepath.Join(store.Dir, "README.json"), []byte("{}"), 0o600); err != nil {
		t.Fatal(err)
	}

	list, err := store.List()
	if err != nil || len(list) != 2 {
		t.Fatalf("expected 2 reports, got %d %v", len(list), err)
	}
	latest, _, err := store.Latest()
	if err != nil || latest.ID != "scan-2" {
		t.Fatalf("expected scan-2 as latest, got %q %v", latest.ID, err)
	}
}

func TestStoreRejectsUnsigned(t *testing.T) {
	store := NewStore(t.TempDir())
	var se *StorageError
	if _, err := store.Persist(sampleResult()); !errors.As(err, &se) || !errors.Is(err, ErrUnsigned) {
		t.Fatalf("expected unsigned StorageError, got %v", err)
	}
}

func TestStoreUnwritableDirIsStorageError(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	if err := os.WriteFile(blocker, []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}
	signed, _ := Sign(sampleResult())
	_, err := NewStore(filepath.Join(blocker, "reports")).Persist(signed)
	var se *StorageError
	if !errors.As(err, &se) {
		t.Fatalf("expected StorageError, got %v", err)
	}
}

func TestLoadReportsTampering(t *testing.T) {
	store := NewStore(t.TempDir())
	signed, _ := Sign(sampleResult())
	path, err := store.Persist(signed)
	if err != nil {
		t.Fatal(err)
	}
	raw, _ := os.ReadFile(path)
	raw = []byte(strings.Replace(string(raw), `"securityScore": 40`, `"securityScore": 90`, 1))
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		t.Fatal(err)
	}
	res, err := Load(path)
	if !errors.Is(err, ErrSignatureMismatch) {
		t.Fatalf("expected mismatch, got %v", err)
	}
	if res.SecurityScore != 90 {
		t.Fatal("tampered report should still be returned for display")
	}
}

func TestLatestEmptyStore(t *testing.T) {
	_, _, err := NewStore(filepath.Join(t.TempDir(), "none")).Latest()
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected not-exist, got %v", err)
	}
}

func TestGrade(t *testing.T) {
	tests := []struct {
		name  string
		sum   model.Summary
		score int
		want  string
	}{
		{"clean", model.Summary{}, 100, "A+"},
		{"one low", model.Summary{Low: 1, Total: 1}, 99, "A"},
		{"some medium", model.Summary{Medium: 4, Total: 4}, 80, "B"},
		{"highs", model.Summary{High: 4, Total: 4}, 60, "C"},
		{"one critical", model.Summary{Critical: 1, Total: 1}, 70, "D"},
		{"critical with low score", model.Summary{Critical: 2, High: 2, Total: 4}, 20, "F"},
		{"many critical", model.Summary{Critical: 4, Total: 4}, 0, "F"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, _ := Grade(model.ScanResult{Summary: tc.sum, SecurityScore: tc.score})
			if got != tc.want {
				t.Fatalf("Grade() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestRenderMarkdown(t *testing.T) {
	signed, _ := Sign(sampleResult())
	out := RenderMarkdown(signed)
	for _, want := range []string{
		"# Security Scan Report",
		"- Security score: **40/100** (grade D)",
		"| dependencies | complete | 1 | 0 | 1 | 0 ms |",
		"### [CRITICAL] Dynamic code evaluation with eval()",
		"- Location: `src/app.js` line 2",
		"- Evidence: `const out = eval(userInput);`",
		signed.Signature,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected markdown to contain %q\n%s", want, out)
		}
	}

	empty := RenderMarkdown(model.ScanResult{ID: "x", SecurityScore: 100})
	if !strings.Contains(empty, "No findings.") {
		t.Fatalf("expected empty report text, got %s", empty)
	}
}

func TestWriteSARIF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scan.sarif")
	if err := WriteSARIF(path, sampleResult()); err != nil {
		t.Fatalf("write sarif: %v", err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var log sarifLog
	if err := json.Unmarshal(raw, &log); err != nil {
		t.Fatalf("parse sarif: %v", err)
	}
	if log.Version != "2.1.0" || len(log.Runs) != 1 {
		t.Fatalf("unexpected sarif envelope: %+v", log)
	}
	run := log.Runs[0]
	if len(run.Tool.Driver.Rules) != 2 || len(run.Results) != 2 {
		t.Fatalf("expected 2 rules and 2 results, got %d and %d", len(run.Tool.Driver.Rules), len(run.Results))
	}
	first := run.Results[0]
	if first.Level != "error" || first.Locations[0].PhysicalLocation.Region.StartLine != 2 {
		t.Fatalf("unexpected first result: %+v", first)
	}
	if first.PartialFingerprints["secscanKey/v1"] != "code-eval-injection|src/app.js|2" {
		t.Fatalf("unexpected fingerprint: %v", first.PartialFingerprints)
	}
}

func TestRenderSummary(t *testing.T) {
	out := RenderSummary(sampleResult(), 1)
	for _, want := range []string{"scan-1", "40/100", "code-eval-injection", "... 1 more"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected summary to contain %q\n%s", want, out)
		}
	}
}

func TestBadges(t *testing.T) {
	res := sampleResult()
	svg := BadgeSVG("security", res, ParseBadgeStyle("flat-square"))
	for _, want := range []string{`rx="0"`, "#fe7d37", "D 40/100", `aria-label="security: D 40/100"`} {
		if !strings.Contains(svg, want) {
			t.Fatalf("expected svg to contain %q\n%s", want, svg)
		}
	}
	if !strings.Contains(BadgeSVG("a<b", res, BadgeFlat), "a&lt;b") {
		t.Fatal("expected label to be escaped")
	}

	res.CompletionStatus = model.StatusFailed
	b, err := ShieldsJSON("security", res)
	if err != nil {
		t.Fatal(err)
	}
	var doc map[string]any
	if err := json.Unmarshal(b, &doc); err != nil {
		t.Fatal(err)
	}
	if doc["message"] != "D 40/100 (incomplete)" || doc["color"] != "orange" || doc["schemaVersion"] != float64(1) {
		t.Fatalf("unexpected shields document: %v", doc)
	}
}
