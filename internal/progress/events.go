package progress

import "time"

type EventType string

const (
	EventScanStarted     EventType = "scan_started"
	EventScanWarning     EventType = "scan_warning"
	EventScanFinished    EventType = "scan_finished"
	EventScanSkipped     EventType = "scan_skipped"
	EventSubScanStarted  EventType = "subscan_started"
	EventBatchDone       EventType = "batch_done"
	EventSubScanFinished EventType = "subscan_finished"
	EventReportPersisted EventType = "report_persisted"
)

type Event struct {
	Type          EventType `json:"type"`
	At            time.Time `json:"at"`
	ScanID        string    `json:"scan_id,omitempty"`
	Category      string    `json:"category,omitempty"`
	Status        string    `json:"status,omitempty"`
	Message       string    `json:"message,omitempty"`
	Error         string    `json:"error,omitempty"`
	Path          string    `json:"path,omitempty"`
	Scanned       int       `json:"scanned,omitempty"`
	FindingCount  int       `json:"finding_count,omitempty"`
	CriticalCount int       `json:"critical_count,omitempty"`
	HighCount     int       `json:"high_count,omitempty"`
	Score         int       `json:"score,omitempty"`
	DurationMS    int64     `json:"duration_ms,omitempty"`
}
