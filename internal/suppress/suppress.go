package suppress

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"secscan/internal/model"
)

// DefaultPath is the conventional suppressions file under a scan root.
func DefaultPath(root string) string {
	return filepath.Join(root, ".secscan", "suppressions.yaml")
}

// Load parses a suppressions file. A missing or empty file yields no rules.
func Load(p string) ([]Rule, error) {
	data, err := os.ReadFile(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	if strings.TrimSpace(string(data)) == "" {
		return nil, nil
	}
	var sf suppressionsFile
	if err := yaml.Unmarshal(data, &sf); err != nil {
		return nil, fmt.Errorf("parse suppressions %s: %w", p, err)
	}
	for i, r := range sf.Suppressions {
		if strings.TrimSpace(r.Reason) == "" {
			return nil, fmt.Errorf("suppression %d: reason is required", i+1)
		}
		if r.empty() {
			return nil, fmt.Errorf("suppression %d: at least one of rule, path, category, severity is required", i+1)
		}
		if r.RuleID == "*" {
			return nil, fmt.Errorf("suppression %d: wildcard rule is not allowed", i+1)
		}
		if r.Expires != "" {
			if _, err := time.Parse(expiresLayout, r.Expires); err != nil {
				return nil, fmt.Errorf("suppression %d: expires must be YYYY-MM-DD", i+1)
			}
		}
	}
	return sf.Suppressions, nil
}

// Apply partitions findings into active and suppressed. Expired rules are
// skipped.
func Apply(findings []model.Finding, rules []Rule, now time.Time) (active, suppressed []model.Finding) {
	if len(rules) == 0 {
		return findings, nil
	}
	active = make([]model.Finding, 0, len(findings))
	for _, f := range findings {
		if Matches(f, rules, now) {
			suppressed = append(suppressed, f)
			continue
		}
		active = append(active, f)
	}
	return active, suppressed
}

// Matches reports whether any live rule covers f.
func Matches(f model.Finding, rules []Rule, now time.Time) bool {
	for _, r := range rules {
		if r.empty() || r.IsExpired(now) {
			continue
		}
		if r.RuleID != "" && !matchGlob(r.RuleID, f.RuleID) {
			continue
		}
		if r.Path != "" && !matchGlob(r.Path, f.Path) {
			continue
		}
		if r.Category != "" && !strings.EqualFold(r.Category, string(f.Category)) {
			continue
		}
		if r.Severity != "" && !strings.EqualFold(r.Severity, string(f.Severity)) {
			continue
		}
		return true
	}
	return false
}

// matchGlob is a case-insensitive path.Match where "**" spans directories.
func matchGlob(pattern, value string) bool {
	pattern = strings.ToLower(strings.TrimSpace(pattern))
	value = strings.ToLower(filepath.ToSlash(strings.TrimSpace(value)))
	if value == "" {
		return false
	}
	before, after, found := strings.Cut(pattern, "**")
	if !found {
		ok, _ := path.Match(pattern, value)
		return ok
	}
	if !strings.HasPrefix(value, before) {
		return false
	}
	rest := value[len(before):]
	after = strings.TrimPrefix(after, "/")
	if after == "" {
		return true
	}
	for i := 0; i <= len(rest); i++ {
		if i > 0 && rest[i-1] != '/' {
			continue
		}
		if matchGlob(after, rest[i:]) {
			return true
		}
	}
	return false
}
