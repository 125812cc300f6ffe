package rules

import (
	"fmt"
	"strings"

	"secscan/internal/model"
)

const APIVersion = "secscan/v1"

type PatternKind string

const (
	PatternRegex    PatternKind = "regex"
	PatternContains PatternKind = "contains"
)

// Spec is the declarative (YAML or Go literal) form of a rule.
type Spec struct {
	ID            string      `yaml:"id" json:"id"`
	Title         string      `yaml:"title" json:"title"`
	Kind          PatternKind `yaml:"kind,omitempty" json:"kind,omitempty"`
	Pattern       string      `yaml:"pattern" json:"pattern"`
	Unless        string      `yaml:"unless,omitempty" json:"unless,omitempty"`
	CaseSensitive bool        `yaml:"case_sensitive,omitempty" json:"case_sensitive,omitempty"`
	Targets       []string    `yaml:"targets" json:"targets"`
	Category      string      `yaml:"category" json:"category"`
	Severity      string      `yaml:"severity" json:"severity"`
	Confidence    string      `yaml:"confidence,omitempty" json:"confidence,omitempty"`
	CWE           string      `yaml:"cwe,omitempty" json:"cwe,omitempty"`
	Remediation   string      `yaml:"remediation,omitempty" json:"remediation,omitempty"`
}

// Source is a named set of rule specs, e.g. the builtin pack or one YAML file.
type Source struct {
	APIVersion string `yaml:"api_version" json:"api_version"`
	Name       string `yaml:"name" json:"name"`
	Rules      []Spec `yaml:"rules" json:"rules"`
}

// Rule is a compiled, immutable signature.
type Rule struct {
	ID          string
	Title       string
	Source      string
	Method      PatternKind
	Matcher     Predicate
	Kinds       []model.ResourceKind
	Category    model.Category
	Severity    model.Severity
	Confidence  model.Confidence
	CWE         string
	Remediation string
}

func (r Rule) AppliesTo(kind model.ResourceKind) bool {
	for _, k := range r.Kinds {
		if k == kind {
			return true
		}
	}
	return false
}

type Problem struct {
	Source string
	RuleID string
	Reason string
}

func (p Problem) String() string {
	id := p.RuleID
	if id == "" {
		id = "<unnamed>"
	}
	return fmt.Sprintf("%s: rule %s: %s", p.Source, id, p.Reason)
}

// RuleCompileError reports every problem found while loading a rule set.
// Any problem rejects the whole load.
type RuleCompileError struct {
	Problems []Problem
}

func (e *RuleCompileError) Error() string {
	parts := make([]string, 0, len(e.Problems))
	for _, p := range e.Problems {
		parts = append(parts, p.String())
	}
	return "compile rules: " + strings.Join(parts, "; ")
}
