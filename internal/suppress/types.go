package suppress

import "time"

const expiresLayout = "2006-01-02"

// Rule is one entry of .secscan/suppressions.yaml. Every non-empty field must
// match for the rule to apply.
type Rule struct {
	RuleID   string `yaml:"rule,omitempty" json:"rule,omitempty"`
	Path     string `yaml:"path,omitempty" json:"path,omitempty"`
	Category string `yaml:"category,omitempty" json:"category,omitempty"`
	Severity string `yaml:"severity,omitempty" json:"severity,omitempty"`

	Reason  string `yaml:"reason" json:"reason"`
	Author  string `yaml:"author,omitempty" json:"author,omitempty"`
	Expires string `yaml:"expires,omitempty" json:"expires,omitempty"`
}

// IsExpired reports whether Expires is set and has passed. An unparseable
// date never expires; Load rejects those.
func (r Rule) IsExpired(now time.Time) bool {
	if r.Expires == "" {
		return false
	}
	t, err := time.Parse(expiresLayout, r.Expires)
	if err != nil {
		return false
	}
	return now.After(t)
}

func (r Rule) empty() bool {
	return r.RuleID == "" && r.Path == "" && r.Category == "" && r.Severity == ""
}

// Directive is a `secscan:ignore <rule-id> [-- reason]` comment.
type Directive struct {
	RuleID string
	Reason string
	Line   int
}

type suppressionsFile struct {
	Suppressions []Rule `yaml:"suppressions"`
}
