package advisory

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"secscan/internal/model"
)

var builtinAdvisories = []Advisory{
	{ID: "CVE-2021-23337", Ecosystem: "npm", Package: "lodash", Title: "Command injection via template", Severity: model.SeverityCritical, CWE: "CWE-94", Fixed: "4.17.21"},
	{ID: "CVE-2020-8203", Ecosystem: "npm", Package: "lodash", Title: "Prototype pollution in zipObjectDeep", Severity: model.SeverityHigh, CWE: "CWE-1321", Fixed: "4.17.19"},
	{ID: "CVE-2021-44906", Ecosystem: "npm", Package: "minimist", Title: "Prototype pollution", Severity: model.SeverityCritical, CWE: "CWE-1321", Fixed: "1.2.6"},
	{ID: "CVE-2020-28168", Ecosystem: "npm", Package: "axios", Title: "Server-side request forgery via redirect", Severity: model.SeverityHigh, CWE: "CWE-918", Fixed: "0.21.1"},
	{ID: "CVE-2023-45857", Ecosystem: "npm", Package: "axios", Title: "XSRF-TOKEN leaked to third-party hosts", Severity: model.SeverityMedium, CWE: "CWE-352", Introduced: "0.8.1", Fixed: "1.6.0"},
	{ID: "CVE-2022-24999", Ecosystem: "npm", Package: "express", Title: "Prototype pollution through qs", Severity: model.SeverityHigh, CWE: "CWE-1321", Fixed: "4.17.3"},
	{ID: "CVE-2022-23529", Ecosystem: "npm", Package: "jsonwebtoken", Title: "Insecure key handling in verify", Severity: model.SeverityHigh, CWE: "CWE-20", Fixed: "9.0.0"},
	{ID: "CVE-2021-23369", Ecosystem: "npm", Package: "handlebars", Title: "Remote code execution when compiling untrusted templates", Severity: model.SeverityCritical, CWE: "CWE-94", Fixed: "4.7.7"},
	{ID: "CVE-2022-0235", Ecosystem: "npm", Package: "node-fetch", Title: "Cookie header forwarded to untrusted sites", Severity: model.SeverityHigh, CWE: "CWE-601", Fixed: "2.6.7"},
	{ID: "CVE-2021-3807", Ecosystem: "npm", Package: "ansi-regex", Title: "Regular expression denial of service", Severity: model.SeverityHigh, CWE: "CWE-1333", Introduced: "3.0.0", Fixed: "5.0.1"},
	{ID: "CVE-2023-30861", Ecosystem: "pypi", Package: "flask", Title: "Session cookie disclosed through caching proxies", Severity: model.SeverityHigh, CWE: "CWE-539", Fixed: "2.2.5"},
	{ID: "CVE-2024-22195", Ecosystem: "pypi", Package: "jinja2", Title: "XSS via the xmlattr filter", Severity: model.SeverityMedium, CWE: "CWE-79", Fixed: "3.1.3"},
	{ID: "CVE-2023-32681", Ecosystem: "pypi", Package: "requests", Title: "Proxy-Authorization header leaked on redirect", Severity: model.SeverityMedium, CWE: "CWE-200", Introduced: "2.3.0", Fixed: "2.31.0"},
	{ID: "CVE-2023-25577", Ecosystem: "pypi", Package: "werkzeug", Title: "Unbounded multipart form parsing", Severity: model.SeverityHigh, CWE: "CWE-770", Fixed: "2.2.3"},
	{ID: "CVE-2023-48795", Ecosystem: "go", Package: "golang.org/x/crypto", Title: "SSH prefix truncation (Terrapin)", Severity: model.SeverityMedium, CWE: "CWE-354", Fixed: "0.17.0"},
	{ID: "CVE-2023-39325", Ecosystem: "go", Package: "golang.org/x/net", Title: "HTTP/2 rapid reset", Severity: model.SeverityHigh, CWE: "CWE-400", Fixed: "0.17.0"},
}

// Builtin returns an oracle over the bundled advisory table.
func Builtin() *StaticOracle {
	return NewStaticOracle(builtinAdvisories)
}

type advisoryFile struct {
	Advisories []Advisory `yaml:"advisories"`
}

// LoadFile reads extra advisories from a YAML file.
func LoadFile(path string) ([]Advisory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read advisories: %w", err)
	}
	var f advisoryFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse advisories %s: %w", path, err)
	}
	for i, a := range f.Advisories {
		if a.ID == "" || a.Package == "" || a.Ecosystem == "" {
			return nil, fmt.Errorf("advisory %d in %s: id, ecosystem and package are required", i, path)
		}
		sev, ok := model.ParseSeverity(string(a.Severity))
		if !ok {
			return nil, fmt.Errorf("advisory %s: invalid severity %q", a.ID, a.Severity)
		}
		f.Advisories[i].Severity = sev
	}
	return f.Advisories, nil
}

// WithFile builds an oracle over the bundled table plus the advisories in
// path. An empty path yields the bundled table only.
func WithFile(path string) (*StaticOracle, error) {
	if path == "" {
		return Builtin(), nil
	}
	extra, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	all := append(append([]Advisory(nil), builtinAdvisories...), extra...)
	return NewStaticOracle(all), nil
}
