package report

import (
	"bytes"
	"fmt"
	"strings"

	"secscan/internal/model"
	"secscan/internal/redact"
	"secscan/internal/safefile"
)

func WriteMarkdown(path string, res model.ScanResult) error {
	if err := safefile.WriteFileAtomic(path, []byte(RenderMarkdown(res)), filePerm); err != nil {
		return fmt.Errorf("write markdown report: %w", err)
	}
	return nil
}

func RenderMarkdown(res model.ScanResult) string {
	var b bytes.Buffer
	grade, _ := Grade(res)

	b.WriteString("# Security Scan Report\n\n")
	b.WriteString("## Summary\n\n")
	fmt.Fprintf(&b, "- Scan ID: `%s`\n", res.ID)
	if res.Target != "" {
		fmt.Fprintf(&b, "- Target: `%s`\n", sanitizeInline(res.Target))
	}
	fmt.Fprintf(&b, "- Started: `%s`\n", res.Timestamp.UTC().Format(fileTimeLayout))
	fmt.Fprintf(&b, "- Duration: `%d ms`\n", res.DurationMS)
	fmt.Fprintf(&b, "- Status: **%s**\n", res.CompletionStatus)
	fmt.Fprintf(&b, "- Security score: **%d/100** (grade %s)\n", res.SecurityScore, grade)
	fmt.Fprintf(&b, "- Findings: **%d** (critical=%d, high=%d, medium=%d, low=%d, info=%d)\n",
		res.Summary.Total, res.Summary.Critical, res.Summary.High, res.Summary.Medium, res.Summary.Low, res.Summary.Info)
	fmt.Fprintf(&b, "- Scanned: files=%d, dependencies=%d, config=%d, endpoints=%d, skipped=%d\n",
		res.Metrics.FilesScanned, res.Metrics.DependenciesScanned, res.Metrics.ConfigFilesScanned,
		res.Metrics.EndpointsScanned, res.Metrics.EntriesSkipped)
	if res.Metrics.Suppressed > 0 {
		fmt.Fprintf(&b, "- Suppressed: %d\n", res.Metrics.Suppressed)
	}
	if res.Signature != "" {
		fmt.Fprintf(&b, "- Signature: `%s`\n", res.Signature)
	}
	b.WriteString("\n")

	if len(res.Categories) > 0 {
		b.WriteString("## Sub-scans\n\n")
		b.WriteString("| Category | Status | Scanned | Skipped | Findings | Duration |\n")
		b.WriteString("|---|---|---|---|---|---|\n")
		for _, c := range res.Categories {
			status := string(c.Status)
			if c.Error != "" {
				status += " (" + sanitizeInline(redact.Text(c.Error)) + ")"
			}
			fmt.Fprintf(&b, "| %s | %s | %d | %d | %d | %d ms |\n",
				c.Category, escapeCell(status), c.Scanned, c.Skipped, c.FindingCount, c.DurationMS)
		}
		b.WriteString("\n")
	}

	b.WriteString("## Findings\n\n")
	if len(res.Findings) == 0 {
		b.WriteString("No findings.\n")
		return b.String()
	}
	for _, f := range res.Findings {
		fmt.Fprintf(&b, "### [%s] %s\n\n", strings.ToUpper(string(f.Severity)), sanitizeInline(f.Message))
		fmt.Fprintf(&b, "- Rule: `%s`\n", f.RuleID)
		fmt.Fprintf(&b, "- Location: `%s`", sanitizeInline(f.Locator))
		if f.Line > 0 {
			fmt.Fprintf(&b, " line %d", f.Line)
		}
		b.WriteString("\n")
		fmt.Fprintf(&b, "- Category: `%s`, confidence `%s`\n", f.Category, f.Confidence)
		if f.CWE != "" {
			fmt.Fprintf(&b, "- CWE: %s\n", f.CWE)
		}
		if f.Evidence != "" {
			fmt.Fprintf(&b, "- Evidence: `%s`\n", strings.ReplaceAll(sanitizeInline(redact.Text(f.Evidence)), "`", "'"))
		}
		if f.Remediation != "" {
			fmt.Fprintf(&b, "- Remediation: %s\n", sanitizeInline(f.Remediation))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func sanitizeInline(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) > 300 {
		return s[:300] + "..."
	}
	return s
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", "\\|")
}
