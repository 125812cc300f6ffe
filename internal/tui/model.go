package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"secscan/internal/model"
	"secscan/internal/progress"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	helpStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("229"))
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	runningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("45"))
	idleStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
)

const maxLogLines = 12

type subScanState struct {
	Category     string
	Status       string
	Scanned      int
	FindingCount int
	DurationMS   int64
	StartedAt    time.Time
	Error        string
}

type eventMsg struct {
	event progress.Event
	ok    bool
}

type uiModel struct {
	events <-chan progress.Event

	scanID     string
	scanStatus string
	scanError  string
	startedAt  time.Time
	finishedAt time.Time
	findings   int
	critical   int
	high       int
	score      int
	reportPath string

	showDetails bool
	done        bool

	subScans map[string]subScanState

	logLines []string
	tick     int
}

func newModel(events <-chan progress.Event) uiModel {
	return uiModel{
		events:      events,
		scanStatus:  "running",
		subScans:    make(map[string]subScanState),
		showDetails: true,
		logLines:    make([]string, 0, maxLogLines),
	}
}

func waitForEvent(ch <-chan progress.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-ch
		return eventMsg{event: ev, ok: ok}
	}
}

type tickMsg time.Time

func nextTick() tea.Cmd {
	return tea.Tick(250*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m uiModel) Init() tea.Cmd {
	return tea.Batch(waitForEvent(m.events), nextTick())
}

func (m uiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "d":
			m.showDetails = !m.showDetails
		case "q", "ctrl+c":
			if m.done {
				return m, tea.Quit
			}
		}
		return m, nil
	case eventMsg:
		if !msg.ok {
			m.done = true
			return m, tea.Quit
		}
		m.applyEvent(msg.event)
		return m, waitForEvent(m.events)
	case tickMsg:
		m.tick++
		if m.done {
			return m, nil
		}
		return m, nextTick()
	default:
		return m, nil
	}
}

func (m uiModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Security Scan"))
	b.WriteString("\n")
	if m.scanStatus == "running" {
		fmt.Fprintf(&b, "Active: %s\n", runningStyle.Render(m.frame(0)))
	}
	fmt.Fprintf(&b, "Scan: %s\n", valueOrDash(m.scanID))
	fmt.Fprintf(&b, "Status: %s\n", styleStatus(m.scanStatus).Render(strings.ToUpper(valueOrDash(m.scanStatus))))
	if m.done {
		fmt.Fprintf(&b, "Score: %d/100\n", m.score)
	}
	fmt.Fprintf(&b, "Findings: %d (critical=%d, high=%d)\n", m.findings, m.critical, m.high)
	fmt.Fprintf(&b, "Elapsed: %s\n", m.elapsedString())
	if m.reportPath != "" {
		fmt.Fprintf(&b, "Report: %s\n", m.reportPath)
	}
	b.WriteString("\n")

	b.WriteString(headerStyle.Render(fmt.Sprintf("%-15s %-11s %-8s %-9s %-10s", "Sub-scan", "Status", "Scanned", "Findings", "Duration")))
	b.WriteString("\n")
	for idx, cat := range m.orderedSubScans() {
		s := m.subScans[cat]
		status := firstNonEmpty(s.Status, "pending")
		display := status
		if status == "running" {
			display = "running " + m.frame(idx+1)
		}
		line := fmt.Sprintf("%-15s %-11s %-8d %-9d %-10s", cat, display, s.Scanned, s.FindingCount, durationString(m.durationMS(s, status)))
		b.WriteString(styleStatus(status).Render(line))
		b.WriteString("\n")
	}

	if m.showDetails {
		b.WriteString("\n")
		b.WriteString(headerStyle.Render("Recent Events"))
		b.WriteString("\n")
		if len(m.logLines) == 0 {
			b.WriteString(idleStyle.Render("No events yet."))
			b.WriteString("\n")
		}
		for _, line := range m.logLines {
			b.WriteString(line)
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	if m.done {
		b.WriteString(helpStyle.Render("Press q to close"))
	} else {
		b.WriteString(helpStyle.Render("d toggle details"))
	}
	b.WriteString("\n")
	return b.String()
}

func (m *uiModel) applyEvent(e progress.Event) {
	switch e.Type {
	case progress.EventScanStarted:
		m.scanID = e.ScanID
		m.scanStatus = "running"
		if !e.At.IsZero() {
			m.startedAt = e.At
		}
		m.appendEventLine(e, fmt.Sprintf("scan started (%s)", valueOrDash(e.ScanID)))
	case progress.EventScanWarning:
		m.appendEventLine(e, "warning: "+firstNonEmpty(e.Message, e.Error))
	case progress.EventSubScanStarted:
		s := m.ensureSubScan(e.Category)
		s.Status = "running"
		if !e.At.IsZero() {
			s.StartedAt = e.At
		}
		m.subScans[e.Category] = s
		m.appendEventLine(e, e.Category+" started")
	case progress.EventBatchDone:
		s := m.ensureSubScan(e.Category)
		s.Scanned = e.Scanned
		s.FindingCount = e.FindingCount
		m.subScans[e.Category] = s
	case progress.EventSubScanFinished:
		s := m.ensureSubScan(e.Category)
		s.Status = firstNonEmpty(e.Status, s.Status)
		s.Scanned = e.Scanned
		s.FindingCount = e.FindingCount
		s.DurationMS = e.DurationMS
		s.Error = firstNonEmpty(e.Error, s.Error)
		m.subScans[e.Category] = s
		msg := fmt.Sprintf("%s finished status=%s scanned=%d findings=%d", e.Category, firstNonEmpty(e.Status, "unknown"), e.Scanned, e.FindingCount)
		if s.Error != "" {
			msg += " error=" + s.Error
		}
		m.appendEventLine(e, msg)
	case progress.EventReportPersisted:
		m.reportPath = e.Path
		m.appendEventLine(e, "report written to "+e.Path)
	case progress.EventScanFinished:
		m.scanStatus = firstNonEmpty(e.Status, string(model.StatusComplete))
		m.scanError = strings.TrimSpace(e.Error)
		m.findings = e.FindingCount
		m.critical = e.CriticalCount
		m.high = e.HighCount
		m.score = e.Score
		if !e.At.IsZero() {
			m.finishedAt = e.At
		}
		m.done = true
		msg := fmt.Sprintf("scan finished status=%s score=%d findings=%d", m.scanStatus, e.Score, e.FindingCount)
		if m.scanError != "" {
			msg += " error=" + m.scanError
		}
		m.appendEventLine(e, msg)
	}
}

func (m *uiModel) ensureSubScan(cat string) subScanState {
	s, ok := m.subScans[cat]
	if !ok {
		s = subScanState{Category: cat, Status: "pending"}
	}
	return s
}

// orderedSubScans lists known categories in report order, then any others
// seen in events.
func (m uiModel) orderedSubScans() []string {
	var out []string
	seen := map[string]bool{}
	for _, c := range model.ScanCategories {
		if _, ok := m.subScans[string(c)]; ok {
			out = append(out, string(c))
			seen[string(c)] = true
		}
	}
	for c := range m.subScans {
		if !seen[c] {
			out = append(out, c)
		}
	}
	return out
}

func (m uiModel) elapsedString() string {
	if m.startedAt.IsZero() {
		return "0s"
	}
	end := time.Now().UTC()
	if !m.finishedAt.IsZero() {
		end = m.finishedAt
	}
	return end.Sub(m.startedAt).Round(time.Second).String()
}

func (m *uiModel) appendEventLine(e progress.Event, text string) {
	ts := e.At
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	m.logLines = append(m.logLines, fmt.Sprintf("[%s] %s", ts.Format("15:04:05"), strings.TrimSpace(text)))
	if len(m.logLines) > maxLogLines {
		m.logLines = m.logLines[len(m.logLines)-maxLogLines:]
	}
}

func (m uiModel) durationMS(s subScanState, status string) int64 {
	if status == "running" && !s.StartedAt.IsZero() {
		return time.Since(s.StartedAt).Milliseconds()
	}
	return s.DurationMS
}

func (m uiModel) frame(offset int) string {
	frames := []string{"-", "\\", "|", "/"}
	return frames[(m.tick+offset)%len(frames)]
}

func durationString(ms int64) string {
	if ms <= 0 {
		return "0s"
	}
	return (time.Duration(ms) * time.Millisecond).Round(time.Millisecond).String()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v != "" {
			return v
		}
	}
	return ""
}

func valueOrDash(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return "-"
	}
	return v
}

func styleStatus(status string) lipgloss.Style {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case string(model.StatusComplete):
		return okStyle
	case string(model.StatusPartial):
		return warnStyle
	case string(model.StatusFailed):
		return errorStyle
	case "running":
		return runningStyle
	default:
		return idleStyle
	}
}
