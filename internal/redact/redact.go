// Package redact masks credentials before evidence is written to reports or logs.
package redact

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	privateKeyBlock = regexp.MustCompile(`-----BEGIN [A-Z0-9 ]*PRIVATE KEY-----[\s\S]*?-----END [A-Z0-9 ]*PRIVATE KEY-----`)
	bearer          = regexp.MustCompile(`(?i)\bBearer\s+[A-Za-z0-9._~+/=-]{8,}`)
	assignment      = regexp.MustCompile(`(?i)\b([A-Za-z0-9_]*(?:api[_-]?key|secret|token|password|passwd|pwd))\b(["']?\s*[:=]\s*)(["']?)([^\s"'` + "`" + `,;]{8,})(["']?)`)
	urlCredentials  = regexp.MustCompile(`(?i)\b([a-z][a-z0-9+.-]*://[^/\s:@]+):([^@\s/]+)@`)
	awsAccessKey    = regexp.MustCompile(`\b(A3T|AKIA|ASIA|AGPA|AIDA|ANPA|ANVA|AROA|AIPA)[0-9A-Z]{16}\b`)
	githubToken     = regexp.MustCompile(`\bgh[pousr]_[A-Za-z0-9]{20,}\b`)
	slackToken      = regexp.MustCompile(`\bxox[abposr]-[A-Za-z0-9-]{10,}\b`)
)

// Text masks common secret and token patterns.
func Text(in string) string {
	out := in
	out = privateKeyBlock.ReplaceAllString(out, "[REDACTED PRIVATE KEY]")
	out = bearer.ReplaceAllString(out, "Bearer [REDACTED]")
	out = urlCredentials.ReplaceAllString(out, "${1}:[REDACTED]@")
	out = assignment.ReplaceAllString(out, `${1}${2}${3}[REDACTED]${5}`)
	out = awsAccessKey.ReplaceAllString(out, "[REDACTED_AWS_ACCESS_KEY]")
	out = githubToken.ReplaceAllString(out, "[REDACTED_GITHUB_TOKEN]")
	out = slackToken.ReplaceAllString(out, "[REDACTED_SLACK_TOKEN]")
	return out
}

func Strings(in []string) []string {
	if len(in) == 0 {
		return in
	}
	out := make([]string, 0, len(in))
	for _, item := range in {
		out = append(out, Text(item))
	}
	return out
}

// Evidence turns one matched line into a report-safe snippet: trimmed,
// redacted and cut to at most limit runes.
func Evidence(line string, limit int) string {
	s := Text(strings.TrimSpace(line))
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit]) + "..."
}
