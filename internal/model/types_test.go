package model

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestFindingJSONOmitsOptionalFields(t *testing.T) {
	base := Finding{
		ID:              "F-1",
		RuleID:          "code-eval-injection",
		Severity:        SeverityCritical,
		Category:        CategoryInjection,
		Message:         "Dynamic code evaluation",
		Locator:         "src/app.js",
		Confidence:      ConfidenceHigh,
		DetectionMethod: "signature:regex",
	}

	payload, err := json.Marshal(base)
	if err != nil {
		t.Fatalf("marshal finding: %v", err)
	}
	jsonStr := string(payload)
	for _, want := range []string{
		`"id":"F-1"`,
		`"ruleId":"code-eval-injection"`,
		`"severity":"critical"`,
		`"category":"injection"`,
		`"locator":"src/app.js"`,
		`"timestamp":"0001-01-01T00:00:00Z"`,
	} {
		if !strings.Contains(jsonStr, want) {
			t.Fatalf("expected JSON to include %s, got %s", want, jsonStr)
		}
	}
	for _, omitted := range []string{`"line":`, `"cwe":`, `"remediation":`, `"evidence":`} {
		if strings.Contains(jsonStr, omitted) {
			t.Fatalf("expected JSON to omit %s, got %s", omitted, jsonStr)
		}
	}

	optional := base
	optional.Line = 12
	optional.CWE = "CWE-95"
	optional.Timestamp = time.Date(2026, time.January, 2, 3, 4, 5, 0, time.UTC)
	payload, err = json.Marshal(optional)
	if err != nil {
		t.Fatalf("marshal optional finding: %v", err)
	}
	for _, want := range []string{`"line":12`, `"cwe":"CWE-95"`, `"timestamp":"2026-01-02T03:04:05Z"`} {
		if !strings.Contains(string(payload), want) {
			t.Fatalf("expected JSON to include %s, got %s", want, payload)
		}
	}
}

func TestScanResultTopLevelKeys(t *testing.T) {
	payload, err := json.Marshal(ScanResult{ID: "scan-1", Kind: "full"})
	if err != nil {
		t.Fatalf("marshal scan result: %v", err)
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(payload, &raw); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, key := range []string{"id", "timestamp", "duration", "findings", "metrics", "summary", "securityScore", "completionStatus", "signature"} {
		if _, ok := raw[key]; !ok {
			t.Fatalf("expected top-level key %q in %s", key, payload)
		}
	}
	var summary map[string]int
	if err := json.Unmarshal(raw["summary"], &summary); err != nil {
		t.Fatalf("unmarshal summary: %v", err)
	}
	for _, key := range []string{"critical", "high", "medium", "low", "info", "total"} {
		if _, ok := summary[key]; !ok {
			t.Fatalf("expected summary key %q", key)
		}
	}
}

func TestSeverityRankOrdering(t *testing.T) {
	for i := 1; i < len(Severities); i++ {
		if Severities[i-1].Rank() <= Severities[i].Rank() {
			t.Fatalf("expected %s to outrank %s", Severities[i-1], Severities[i])
		}
	}
	if Severity("bogus").Valid() {
		t.Fatal("expected unknown severity to be invalid")
	}
	if sev, ok := ParseSeverity(" Moderate "); !ok || sev != SeverityMedium {
		t.Fatalf("expected moderate alias to map to medium, got %q ok=%v", sev, ok)
	}
}

func TestSummaryAddTracksTotal(t *testing.T) {
	var s Summary
	for _, sev := range []Severity{SeverityCritical, SeverityHigh, SeverityHigh, SeverityInfo, Severity("unknown")} {
		s.Add(sev)
	}
	if s.Total != 5 {
		t.Fatalf("expected total 5, got %d", s.Total)
	}
	if s.Critical+s.High+s.Medium+s.Low+s.Info != s.Total {
		t.Fatalf("bucket counts do not add up to total: %+v", s)
	}
	if s.Count(SeverityHigh) != 2 {
		t.Fatalf("expected 2 high, got %d", s.Count(SeverityHigh))
	}
}

func TestCompletionStatusWorse(t *testing.T) {
	tests := []struct {
		a, b, want CompletionStatus
	}{
		{StatusComplete, StatusComplete, StatusComplete},
		{StatusComplete, StatusPartial, StatusPartial},
		{StatusPartial, StatusComplete, StatusPartial},
		{StatusPartial, StatusFailed, StatusFailed},
		{StatusFailed, StatusComplete, StatusFailed},
	}
	for _, tt := range tests {
		if got := tt.a.Worse(tt.b); got != tt.want {
			t.Errorf("%s.Worse(%s) = %s, want %s", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestLocatorString(t *testing.T) {
	tests := []struct {
		name string
		loc  Locator
		want string
	}{
		{"file", Locator{Path: "src/app.js", Line: 3}, "src/app.js"},
		{"route", Locator{Path: "app.py", Line: 9, Method: "POST", Route: "/contact"}, "POST /contact (app.py)"},
		{"route without method", Locator{Path: "app.js", Route: "/x"}, "ANY /x (app.js)"},
		{"dependency", Locator{Path: "package.json", Name: "lodash", Version: "4.17.15"}, "package.json#lodash@4.17.15"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.loc.String(); got != tt.want {
				t.Fatalf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestResourceContentLoadsOnce(t *testing.T) {
	calls := 0
	res := NewResource(KindSourceFile, Locator{Path: "a.js"}, func() ([]byte, error) {
		calls++
		return []byte("x"), nil
	})
	for i := 0; i < 3; i++ {
		if _, err := res.Content(); err != nil {
			t.Fatalf("content: %v", err)
		}
	}
	if calls != 1 {
		t.Fatalf("expected loader to run once, ran %d times", calls)
	}

	failing := NewResource(KindSourceFile, Locator{Path: "b.js"}, func() ([]byte, error) {
		return nil, errors.New("permission denied")
	})
	if _, err := failing.Content(); err == nil {
		t.Fatal("expected load error to surface")
	}
}
