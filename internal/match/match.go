package match

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"secscan/internal/advisory"
	"secscan/internal/model"
	"secscan/internal/redact"
	"secscan/internal/rules"
	"secscan/internal/suppress"
)

const evidenceLimit = 200

// Matcher turns one resource plus its applicable rules into findings. It must
// be safe for concurrent use.
type Matcher interface {
	Apply(res *model.Resource, set []rules.Rule) ([]model.Finding, error)
}

// ResourceError means a resource's content could not be loaded.
type ResourceError struct {
	Locator string
	Err     error
}

func (e *ResourceError) Error() string {
	return fmt.Sprintf("load %s: %v", e.Locator, e.Err)
}

func (e *ResourceError) Unwrap() error { return e.Err }

// Signature is the default Matcher: every rule predicate runs over the whole
// resource, then the first matching line is located for evidence. A rule
// yields at most one finding per resource.
type Signature struct {
	now    func() time.Time
	newID  func() string
	inline bool
}

type Option func(*Signature)

func WithClock(now func() time.Time) Option {
	return func(s *Signature) { s.now = now }
}

func WithIDs(newID func() string) Option {
	return func(s *Signature) { s.newID = newID }
}

// WithoutInlineSuppression ignores secscan:ignore comments.
func WithoutInlineSuppression() Option {
	return func(s *Signature) { s.inline = false }
}

func New(opts ...Option) *Signature {
	s := &Signature{
		now:    func() time.Time { return time.Now().UTC() },
		newID:  uuid.NewString,
		inline: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Signature) Apply(res *model.Resource, set []rules.Rule) ([]model.Finding, error) {
	content, err := res.Content()
	if err != nil {
		return nil, &ResourceError{Locator: res.Locator.String(), Err: err}
	}

	var (
		out        []model.Finding
		lines      [][]byte
		directives []suppress.Directive
		split      bool
	)
	for _, rule := range set {
		if !rule.AppliesTo(res.Kind) || rule.Matcher == nil {
			continue
		}
		if !rule.Matcher.Match(content) {
			continue
		}
		if !split {
			lines = bytes.Split(content, []byte("\n"))
			if s.inline {
				directives = suppress.Directives(content)
			}
			split = true
		}

		found, silenced := false, false
		for i, line := range lines {
			if !rule.Matcher.MatchLine(line) {
				continue
			}
			if suppress.Covers(directives, rule.ID, i+1) {
				silenced = true
				continue
			}
			out = append(out, s.finding(res, rule, i, string(line)))
			found = true
			break
		}
		if !found && !silenced {
			// The predicate matched across lines; report the resource itself.
			out = append(out, s.finding(res, rule, -1, ""))
		}
	}
	return out, nil
}

func (s *Signature) finding(res *model.Resource, rule rules.Rule, idx int, line string) model.Finding {
	f := model.Finding{
		ID:              s.newID(),
		RuleID:          rule.ID,
		Severity:        rule.Severity,
		Category:        rule.Category,
		Message:         rule.Title,
		Locator:         res.Locator.String(),
		Path:            res.Locator.Path,
		Line:            res.Locator.Line,
		CWE:             rule.CWE,
		Confidence:      rule.Confidence,
		DetectionMethod: "signature:" + string(rule.Method),
		Remediation:     rule.Remediation,
		Timestamp:       s.now(),
	}
	if idx >= 0 {
		f.Line = absoluteLine(res.Locator.Line, idx)
		f.Evidence = redact.Evidence(line, evidenceLimit)
	}
	return f
}

// absoluteLine maps a 0-based index within the content onto the source file.
// Resources without a base line are whole files.
func absoluteLine(base, idx int) int {
	if base <= 0 {
		return idx + 1
	}
	return base + idx
}

// Advisories reports every known advisory affecting a dependency entry.
func (s *Signature) Advisories(ctx context.Context, oracle advisory.Oracle, res *model.Resource) ([]model.Finding, error) {
	if oracle == nil || res.Kind != model.KindDependencyEntry {
		return nil, nil
	}
	loc := res.Locator
	advs, err := oracle.Lookup(ctx, loc.Ecosystem, loc.Name, loc.Version)
	if err != nil {
		return nil, fmt.Errorf("advisory lookup %s: %w", loc.String(), err)
	}
	out := make([]model.Finding, 0, len(advs))
	for _, a := range advs {
		out = append(out, s.fromAdvisory(res, a))
	}
	return out, nil
}

func (s *Signature) fromAdvisory(res *model.Resource, a advisory.Advisory) model.Finding {
	loc := res.Locator
	remediation := a.Remediation
	if remediation == "" {
		remediation = fmt.Sprintf("Upgrade %s to %s or later.", a.Package, a.Fixed)
	}
	content, _ := res.Content()
	return model.Finding{
		ID:              s.newID(),
		RuleID:          a.ID,
		Severity:        a.Severity,
		Category:        model.CategoryVulnerability,
		Message:         fmt.Sprintf("%s@%s: %s", loc.Name, loc.Version, a.Title),
		Locator:         loc.String(),
		Path:            loc.Path,
		Line:            loc.Line,
		CWE:             a.CWE,
		Confidence:      model.ConfidenceHigh,
		DetectionMethod: "advisory",
		Remediation:     remediation,
		Evidence:        redact.Evidence(string(content), evidenceLimit),
		Timestamp:       s.now(),
	}
}
