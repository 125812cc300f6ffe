package enumerate

import (
	"bufio"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// IgnoreRules is a compiled .secscanignore file. A nil *IgnoreRules ignores
// nothing.
type IgnoreRules struct {
	patterns []ignorePattern
}

type ignorePattern struct {
	negated bool
	dirOnly bool
	re      *regexp.Regexp
}

// LoadIgnore reads <root>/.secscanignore. A missing file yields nil rules.
func LoadIgnore(root string) (*IgnoreRules, error) {
	f, err := os.Open(filepath.Join(root, IgnoreFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer func() { _ = f.Close() }()

	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return ParseIgnore(lines), nil
}

// ParseIgnore compiles gitignore-style lines. Lines that do not compile are
// dropped.
func ParseIgnore(lines []string) *IgnoreRules {
	rules := &IgnoreRules{}
	for _, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		var p ignorePattern
		if rest, ok := strings.CutPrefix(line, "!"); ok {
			p.negated = true
			line = rest
		}
		if rest, ok := strings.CutSuffix(line, "/"); ok {
			p.dirOnly = true
			line = rest
		}
		line = strings.TrimPrefix(line, "/")
		re, err := regexp.Compile(globPattern(line))
		if err != nil {
			continue
		}
		p.re = re
		rules.patterns = append(rules.patterns, p)
	}
	return rules
}

// ShouldIgnore applies patterns in order; the last match wins.
func (r *IgnoreRules) ShouldIgnore(rel string, isDir bool) bool {
	if r == nil {
		return false
	}
	rel = filepath.ToSlash(strings.TrimSpace(rel))
	if rel == "" {
		return false
	}
	ignored := false
	for _, p := range r.patterns {
		if p.dirOnly && !isDir {
			continue
		}
		if p.re.MatchString(rel) {
			ignored = !p.negated
		}
	}
	return ignored
}

func globPattern(glob string) string {
	var b strings.Builder
	b.WriteString("^")
	if !strings.Contains(glob, "/") {
		b.WriteString("(?:.*/)?")
	}
	r := []rune(glob)
	for i := 0; i < len(r); i++ {
		switch r[i] {
		case '*':
			switch {
			case i+2 < len(r) && r[i+1] == '*' && r[i+2] == '/':
				b.WriteString("(?:.*/)?")
				i += 2
			case i+1 < len(r) && r[i+1] == '*':
				b.WriteString(".*")
				i++
			default:
				b.WriteString("[^/]*")
			}
		case '?':
			b.WriteString("[^/]")
		default:
			b.WriteString(regexp.QuoteMeta(string(r[i])))
		}
	}
	b.WriteString("$")
	return b.String()
}
