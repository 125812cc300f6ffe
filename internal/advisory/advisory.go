// Package advisory maps declared dependency versions to known vulnerabilities.
package advisory

import (
	"context"
	"strings"

	"secscan/internal/model"
)

type Advisory struct {
	ID          string         `json:"id" yaml:"id"`
	Ecosystem   string         `json:"ecosystem" yaml:"ecosystem"`
	Package     string         `json:"package" yaml:"package"`
	Title       string         `json:"title" yaml:"title"`
	Severity    model.Severity `json:"severity" yaml:"severity"`
	CWE         string         `json:"cwe,omitempty" yaml:"cwe,omitempty"`
	Introduced  string         `json:"introduced,omitempty" yaml:"introduced,omitempty"`
	Fixed       string         `json:"fixed" yaml:"fixed"`
	Remediation string         `json:"remediation,omitempty" yaml:"remediation,omitempty"`
}

// Affects reports whether version falls in [Introduced, Fixed).
func (a Advisory) Affects(version string) bool {
	v, ok := ParseVersion(version)
	if !ok {
		return false
	}
	if a.Introduced != "" {
		intro, ok := ParseVersion(a.Introduced)
		if ok && v.Compare(intro) < 0 {
			return false
		}
	}
	fixed, ok := ParseVersion(a.Fixed)
	if !ok {
		return true
	}
	return v.Compare(fixed) < 0
}

// Oracle answers which advisories affect one dependency. Implementations must
// be safe for concurrent use.
type Oracle interface {
	Lookup(ctx context.Context, ecosystem, name, version string) ([]Advisory, error)
}

// StaticOracle serves a fixed advisory table from memory.
type StaticOracle struct {
	byPackage map[string][]Advisory
}

func NewStaticOracle(advisories []Advisory) *StaticOracle {
	o := &StaticOracle{byPackage: make(map[string][]Advisory, len(advisories))}
	for _, a := range advisories {
		k := packageKey(a.Ecosystem, a.Package)
		o.byPackage[k] = append(o.byPackage[k], a)
	}
	return o
}

func (o *StaticOracle) Lookup(ctx context.Context, ecosystem, name, version string) ([]Advisory, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []Advisory
	for _, a := range o.byPackage[packageKey(ecosystem, name)] {
		if a.Affects(version) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (o *StaticOracle) Len() int {
	n := 0
	for _, list := range o.byPackage {
		n += len(list)
	}
	return n
}

func packageKey(ecosystem, name string) string {
	name = strings.TrimSpace(name)
	if ecosystem != "go" {
		name = strings.ToLower(name)
	}
	return strings.ToLower(strings.TrimSpace(ecosystem)) + "/" + name
}
