package rules

import (
	"bytes"
	"regexp"
)

// Predicate decides whether content carries a signature. Match runs over a
// whole resource; MatchLine is used afterwards to locate the first matching
// line, so a predicate with a document-level exclusion only applies the
// positive half per line. Alternative analyzers plug in here.
type Predicate interface {
	Match(content []byte) bool
	MatchLine(line []byte) bool
}

type RegexPredicate struct {
	include *regexp.Regexp
	exclude *regexp.Regexp
}

func NewRegexPredicate(pattern, unless string, caseSensitive bool) (*RegexPredicate, error) {
	include, err := compile(pattern, caseSensitive)
	if err != nil {
		return nil, err
	}
	p := &RegexPredicate{include: include}
	if unless != "" {
		exclude, err := compile(unless, caseSensitive)
		if err != nil {
			return nil, err
		}
		p.exclude = exclude
	}
	return p, nil
}

func compile(pattern string, caseSensitive bool) (*regexp.Regexp, error) {
	if !caseSensitive {
		pattern = "(?i)" + pattern
	}
	return regexp.Compile(pattern)
}

func (p *RegexPredicate) Match(content []byte) bool {
	if !p.include.Match(content) {
		return false
	}
	return p.exclude == nil || !p.exclude.Match(content)
}

func (p *RegexPredicate) MatchLine(line []byte) bool {
	return p.include.Match(line)
}

type ContainsPredicate struct {
	needle        []byte
	caseSensitive bool
}

func NewContainsPredicate(needle string, caseSensitive bool) *ContainsPredicate {
	n := []byte(needle)
	if !caseSensitive {
		n = bytes.ToLower(n)
	}
	return &ContainsPredicate{needle: n, caseSensitive: caseSensitive}
}

func (p *ContainsPredicate) Match(content []byte) bool {
	if p.caseSensitive {
		return bytes.Contains(content, p.needle)
	}
	return bytes.Contains(bytes.ToLower(content), p.needle)
}

func (p *ContainsPredicate) MatchLine(line []byte) bool {
	return p.Match(line)
}
