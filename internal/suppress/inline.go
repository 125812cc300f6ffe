package suppress

import (
	"bytes"
	"strings"
)

const marker = "secscan:ignore"

var commentPrefixes = []string{"//", "#", "--", "/*", "<!--", "*", "{/*"}

// ParseComment extracts a directive from one line. The marker must sit inside
// a comment, either on its own line or trailing code.
func ParseComment(line string) (Directive, bool) {
	lower := strings.ToLower(line)
	idx := strings.Index(lower, marker)
	if idx < 0 {
		return Directive{}, false
	}
	if !commentBefore(line[:idx]) {
		return Directive{}, false
	}

	rest := line[idx+len(marker):]
	rest = strings.TrimSpace(rest)
	for _, closer := range []string{"*/}", "*/", "-->"} {
		rest = strings.TrimSpace(strings.TrimSuffix(rest, closer))
	}
	if rest == "" {
		return Directive{}, false
	}

	var d Directive
	if id, reason, ok := strings.Cut(rest, " -- "); ok {
		d.RuleID = strings.TrimSpace(id)
		d.Reason = strings.TrimSpace(reason)
	} else {
		d.RuleID = strings.TrimSpace(rest)
	}
	d.RuleID = strings.ToLower(d.RuleID)
	if d.RuleID == "" || d.RuleID == "*" || strings.ContainsAny(d.RuleID, " \t") {
		return Directive{}, false
	}
	return d, true
}

func commentBefore(prefix string) bool {
	for _, p := range commentPrefixes {
		if strings.Contains(prefix, p) {
			return true
		}
	}
	return false
}

// Directives returns every directive in content with 1-based line numbers.
func Directives(content []byte) []Directive {
	if !bytes.Contains(bytes.ToLower(content), []byte(marker)) {
		return nil
	}
	var out []Directive
	for i, line := range bytes.Split(content, []byte("\n")) {
		if d, ok := ParseComment(string(line)); ok {
			d.Line = i + 1
			out = append(out, d)
		}
	}
	return out
}

// Covers reports whether a directive for ruleID sits on line or the line
// directly above it.
func Covers(directives []Directive, ruleID string, line int) bool {
	for _, d := range directives {
		if d.RuleID != ruleID {
			continue
		}
		if d.Line == line || d.Line == line-1 {
			return true
		}
	}
	return false
}
