package progress

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

type Sink interface {
	Emit(Event)
}

type SinkFunc func(Event)

func (f SinkFunc) Emit(e Event) {
	f(e)
}

type NoopSink struct{}

func (NoopSink) Emit(Event) {}

type ChannelSink struct {
	ch chan<- Event
}

func NewChannelSink(ch chan<- Event) *ChannelSink {
	return &ChannelSink{ch: ch}
}

func (s *ChannelSink) Emit(e Event) {
	if s == nil || s.ch == nil {
		return
	}
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	select {
	case s.ch <- e:
	default:
		// Drop on backpressure so a slow UI never blocks a sub-scan.
	}
}

// MultiSink fans one event out to several sinks in order.
type MultiSink []Sink

func (m MultiSink) Emit(e Event) {
	for _, s := range m {
		if s != nil {
			s.Emit(e)
		}
	}
}

// ZapSink records events as structured log entries. Warnings and failed
// sub-scans log at warn level, everything else at debug.
type ZapSink struct {
	log *zap.Logger
}

func NewZapSink(log *zap.Logger) *ZapSink {
	if log == nil {
		log = zap.NewNop()
	}
	return &ZapSink{log: log}
}

func (s *ZapSink) Emit(e Event) {
	if s == nil {
		return
	}
	fields := []zap.Field{zap.String("event", string(e.Type))}
	if e.ScanID != "" {
		fields = append(fields, zap.String("scan_id", e.ScanID))
	}
	if e.Category != "" {
		fields = append(fields, zap.String("category", e.Category))
	}
	if e.Status != "" {
		fields = append(fields, zap.String("status", e.Status))
	}
	if e.Path != "" {
		fields = append(fields, zap.String("path", e.Path))
	}
	if e.Scanned > 0 {
		fields = append(fields, zap.Int("scanned", e.Scanned))
	}
	if e.FindingCount > 0 {
		fields = append(fields, zap.Int("findings", e.FindingCount))
	}
	if e.DurationMS > 0 {
		fields = append(fields, zap.Int64("duration_ms", e.DurationMS))
	}
	if e.Error != "" {
		fields = append(fields, zap.String("error", e.Error))
	}

	msg := e.Message
	if msg == "" {
		msg = string(e.Type)
	}
	switch {
	case e.Type == EventScanWarning, e.Type == EventScanSkipped, e.Status == "failed":
		s.log.Warn(msg, fields...)
	case e.Type == EventScanFinished:
		s.log.Info(msg, fields...)
	default:
		s.log.Debug(msg, fields...)
	}
}

type PlainSink struct {
	w  io.Writer
	mu sync.Mutex
}

func NewPlainSink(w io.Writer) *PlainSink {
	return &PlainSink{w: w}
}

func (s *PlainSink) Emit(e Event) {
	if s == nil || s.w == nil {
		return
	}
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}

	line := formatPlain(e)
	if line == "" {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, _ = fmt.Fprintln(s.w, line)
}

func formatPlain(e Event) string {
	ts := e.At.Format("15:04:05")
	withErr := func(line string) string {
		if msg := strings.TrimSpace(e.Error); msg != "" {
			line += " error=" + msg
		}
		return line
	}
	switch e.Type {
	case EventScanStarted:
		return fmt.Sprintf("[%s] scan %s started", ts, e.ScanID)
	case EventScanWarning:
		msg := strings.TrimSpace(e.Message)
		if msg == "" {
			msg = strings.TrimSpace(e.Error)
		}
		return fmt.Sprintf("[%s] warning: %s", ts, msg)
	case EventScanSkipped:
		return fmt.Sprintf("[%s] scan skipped: %s", ts, strings.TrimSpace(e.Message))
	case EventSubScanStarted:
		return fmt.Sprintf("[%s] %s started", ts, e.Category)
	case EventBatchDone:
		return fmt.Sprintf("[%s] %s scanned=%d findings=%d", ts, e.Category, e.Scanned, e.FindingCount)
	case EventSubScanFinished:
		return withErr(fmt.Sprintf("[%s] %s finished status=%s scanned=%d findings=%d duration=%dms",
			ts, e.Category, e.Status, e.Scanned, e.FindingCount, e.DurationMS))
	case EventReportPersisted:
		return fmt.Sprintf("[%s] report written to %s", ts, e.Path)
	case EventScanFinished:
		return withErr(fmt.Sprintf("[%s] scan %s finished status=%s score=%d findings=%d critical=%d high=%d duration=%dms",
			ts, e.ScanID, e.Status, e.Score, e.FindingCount, e.CriticalCount, e.HighCount, e.DurationMS))
	default:
		return ""
	}
}
