package report

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"secscan/internal/model"
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	headerStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("229"))
	mutedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	criticalStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	highStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	mediumStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	lowStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("45"))
	okStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
)

// RenderSummary is the human summary printed after a scan. limit caps the
// number of findings listed; zero lists none.
func RenderSummary(res model.ScanResult, limit int) string {
	var b strings.Builder
	grade, _ := Grade(res)

	b.WriteString(titleStyle.Render("Security Scan"))
	b.WriteString("\n")
	fmt.Fprintf(&b, "Scan:     %s\n", res.ID)
	fmt.Fprintf(&b, "Status:   %s\n", statusStyle(res.CompletionStatus).Render(strings.ToUpper(string(res.CompletionStatus))))
	fmt.Fprintf(&b, "Score:    %d/100 (%s)\n", res.SecurityScore, grade)
	fmt.Fprintf(&b, "Findings: %s %s %s %s %s\n",
		criticalStyle.Render(fmt.Sprintf("critical=%d", res.Summary.Critical)),
		highStyle.Render(fmt.Sprintf("high=%d", res.Summary.High)),
		mediumStyle.Render(fmt.Sprintf("medium=%d", res.Summary.Medium)),
		lowStyle.Render(fmt.Sprintf("low=%d", res.Summary.Low)),
		mutedStyle.Render(fmt.Sprintf("info=%d", res.Summary.Info)),
	)
	fmt.Fprintf(&b, "Duration: %d ms\n", res.DurationMS)

	if len(res.Categories) > 0 {
		b.WriteString("\n")
		b.WriteString(headerStyle.Render(fmt.Sprintf("%-15s %-9s %-8s %-8s %-9s", "Sub-scan", "Status", "Scanned", "Skipped", "Findings")))
		b.WriteString("\n")
		for _, c := range res.Categories {
			line := fmt.Sprintf("%-15s %-9s %-8d %-8d %-9d", c.Category, c.Status, c.Scanned, c.Skipped, c.FindingCount)
			b.WriteString(statusStyle(c.Status).Render(line))
			if c.Error != "" {
				b.WriteString(mutedStyle.Render("  " + sanitizeInline(c.Error)))
			}
			b.WriteString("\n")
		}
	}

	if limit > 0 && len(res.Findings) > 0 {
		b.WriteString("\n")
		for i, f := range res.Findings {
			if i == limit {
				fmt.Fprintf(&b, "%s\n", mutedStyle.Render(fmt.Sprintf("... %d more", len(res.Findings)-limit)))
				break
			}
			loc := f.Locator
			if f.Line > 0 {
				loc = fmt.Sprintf("%s:%d", loc, f.Line)
			}
			fmt.Fprintf(&b, "%s %s %s\n",
				severityStyle(f.Severity).Render(fmt.Sprintf("%-8s", strings.ToUpper(string(f.Severity)))),
				f.RuleID,
				mutedStyle.Render(loc))
		}
	}
	return b.String()
}

func statusStyle(s model.CompletionStatus) lipgloss.Style {
	switch s {
	case model.StatusComplete:
		return okStyle
	case model.StatusPartial:
		return mediumStyle
	default:
		return criticalStyle
	}
}

func severityStyle(s model.Severity) lipgloss.Style {
	switch s {
	case model.SeverityCritical:
		return criticalStyle
	case model.SeverityHigh:
		return highStyle
	case model.SeverityMedium:
		return mediumStyle
	case model.SeverityLow:
		return lowStyle
	default:
		return mutedStyle
	}
}
