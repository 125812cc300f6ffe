package tui

import (
	"strings"
	"testing"
	"time"

	"secscan/internal/progress"
)

var at = time.Date(2026, time.June, 1, 9, 30, 0, 0, time.UTC)

func TestApplyEventTracksSubScans(t *testing.T) {
	m := newModel(nil)
	m.applyEvent(progress.Event{Type: progress.EventScanStarted, At: at, ScanID: "scan-1"})
	m.applyEvent(progress.Event{Type: progress.EventSubScanStarted, At: at, Category: "endpoints"})
	m.applyEvent(progress.Event{Type: progress.EventSubScanStarted, At: at, Category: "code"})
	m.applyEvent(progress.Event{Type: progress.EventBatchDone, At: at, Category: "code", Scanned: 100, FindingCount: 3})

	if got := m.subScans["code"]; got.Status != "running" || got.Scanned != 100 || got.FindingCount != 3 {
		t.Fatalf("unexpected code state: %+v", got)
	}
	if order := m.orderedSubScans(); len(order) != 2 || order[0] != "code" || order[1] != "endpoints" {
		t.Fatalf("expected report order, got %v", order)
	}

	m.applyEvent(progress.Event{Type: progress.EventSubScanFinished, At: at, Category: "code", Status: "failed", Scanned: 120, FindingCount: 4, Error: "timed out"})
	if got := m.subScans["code"]; got.Status != "failed" || got.Error != "timed out" || got.Scanned != 120 {
		t.Fatalf("unexpected finished state: %+v", got)
	}
	if m.done {
		t.Fatal("scan should not be done before scan_finished")
	}

	m.applyEvent(progress.Event{Type: progress.EventScanFinished, At: at.Add(3 * time.Second), Status: "failed", FindingCount: 4, CriticalCount: 1, Score: 55})
	if !m.done || m.scanStatus != "failed" || m.score != 55 || m.critical != 1 {
		t.Fatalf("unexpected final model: %+v", m)
	}
	if m.elapsedString() != "3s" {
		t.Fatalf("expected 3s elapsed, got %s", m.elapsedString())
	}
}

func TestEventLogIsBounded(t *testing.T) {
	m := newModel(nil)
	for range 20 {
		m.applyEvent(progress.Event{Type: progress.EventScanWarning, At: at, Message: "skipped"})
	}
	if len(m.logLines) != maxLogLines {
		t.Fatalf("expected %d lines, got %d", maxLogLines, len(m.logLines))
	}
}

func TestViewShowsSubScanRows(t *testing.T) {
	m := newModel(nil)
	m.applyEvent(progress.Event{Type: progress.EventScanStarted, At: at, ScanID: "scan-1"})
	m.applyEvent(progress.Event{Type: progress.EventSubScanFinished, At: at, Category: "dependencies", Status: "complete", Scanned: 7})
	m.applyEvent(progress.Event{Type: progress.EventReportPersisted, At: at, Path: "reports/security/x.json"})

	view := m.View()
	for _, want := range []string{"scan-1", "dependencies", "complete", "reports/security/x.json"} {
		if !strings.Contains(view, want) {
			t.Fatalf("expected view to contain %q\n%s", want, view)
		}
	}
}
