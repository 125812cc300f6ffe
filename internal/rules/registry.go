package rules

import (
	"fmt"
	"regexp"
	"slices"
	"strings"

	"secscan/internal/model"
)

var idPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_.-]{1,63}$`)

// Registry is built once by Load and is read-only afterwards, so it is safe
// to share across goroutines without locking.
type Registry struct {
	rules  []Rule
	byKind map[model.ResourceKind][]Rule
}

// Load compiles every spec from every source. A single invalid rule fails the
// whole load with a *RuleCompileError listing all problems found.
func Load(sources ...Source) (*Registry, error) {
	var problems []Problem
	seen := make(map[string]string)
	reg := &Registry{byKind: make(map[model.ResourceKind][]Rule)}

	for _, src := range sources {
		name := strings.TrimSpace(src.Name)
		if name == "" {
			name = "unnamed"
		}
		if v := strings.TrimSpace(src.APIVersion); v != "" && v != APIVersion {
			problems = append(problems, Problem{Source: name, Reason: fmt.Sprintf("api_version must be %q", APIVersion)})
			continue
		}
		for _, spec := range src.Rules {
			rule, errs := compileSpec(name, spec)
			if prev, dup := seen[rule.ID]; dup && rule.ID != "" {
				errs = append(errs, fmt.Sprintf("duplicate id (already defined in %s)", prev))
			}
			if len(errs) > 0 {
				for _, reason := range errs {
					problems = append(problems, Problem{Source: name, RuleID: spec.ID, Reason: reason})
				}
				continue
			}
			seen[rule.ID] = name
			reg.rules = append(reg.rules, rule)
		}
	}

	if len(problems) > 0 {
		return nil, &RuleCompileError{Problems: problems}
	}
	for _, rule := range reg.rules {
		for _, kind := range rule.Kinds {
			reg.byKind[kind] = append(reg.byKind[kind], rule)
		}
	}
	return reg, nil
}

// RulesFor returns the rules targeting kind in declaration order.
func (r *Registry) RulesFor(kind model.ResourceKind) []Rule {
	if r == nil {
		return nil
	}
	return slices.Clone(r.byKind[kind])
}

func (r *Registry) All() []Rule {
	if r == nil {
		return nil
	}
	return slices.Clone(r.rules)
}

func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.rules)
}

func compileSpec(source string, spec Spec) (Rule, []string) {
	var errs []string
	rule := Rule{
		ID:          strings.ToLower(strings.TrimSpace(spec.ID)),
		Title:       strings.TrimSpace(spec.Title),
		Source:      source,
		CWE:         strings.TrimSpace(spec.CWE),
		Remediation: strings.TrimSpace(spec.Remediation),
	}

	if rule.ID == "" {
		errs = append(errs, "id is required")
	} else if !idPattern.MatchString(rule.ID) {
		errs = append(errs, "id must match "+idPattern.String())
	}
	if rule.Title == "" {
		rule.Title = fmt.Sprintf("Signature %s matched", rule.ID)
	}

	if len(spec.Targets) == 0 {
		errs = append(errs, "targets must list at least one resource kind")
	}
	for _, t := range spec.Targets {
		kind := model.ResourceKind(strings.ToLower(strings.TrimSpace(t)))
		if !kind.Valid() {
			errs = append(errs, fmt.Sprintf("unknown target %q", t))
			continue
		}
		rule.Kinds = append(rule.Kinds, kind)
	}

	rule.Category = model.Category(strings.ToLower(strings.TrimSpace(spec.Category)))
	if !rule.Category.Valid() {
		errs = append(errs, fmt.Sprintf("unknown category %q", spec.Category))
	}
	sev, ok := model.ParseSeverity(spec.Severity)
	if !ok {
		errs = append(errs, fmt.Sprintf("severity must be critical|high|medium|low|info, got %q", spec.Severity))
	}
	rule.Severity = sev

	rule.Confidence = model.ConfidenceMedium
	if c := strings.TrimSpace(spec.Confidence); c != "" {
		rule.Confidence = model.Confidence(strings.ToLower(c))
		if !rule.Confidence.Valid() {
			errs = append(errs, fmt.Sprintf("confidence must be low|medium|high, got %q", spec.Confidence))
		}
	}

	if strings.TrimSpace(spec.Pattern) == "" {
		errs = append(errs, "pattern is required")
		return rule, errs
	}
	kind := spec.Kind
	if kind == "" {
		kind = PatternRegex
	}
	rule.Method = kind
	switch kind {
	case PatternRegex:
		pred, err := NewRegexPredicate(spec.Pattern, spec.Unless, spec.CaseSensitive)
		if err != nil {
			errs = append(errs, fmt.Sprintf("pattern does not compile: %v", err))
		} else {
			rule.Matcher = pred
		}
	case PatternContains:
		if spec.Unless != "" {
			errs = append(errs, "unless is only supported for regex rules")
		}
		rule.Matcher = NewContainsPredicate(spec.Pattern, spec.CaseSensitive)
	default:
		errs = append(errs, fmt.Sprintf("kind must be regex|contains, got %q", spec.Kind))
	}
	return rule, errs
}
