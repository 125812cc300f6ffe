package enumerate

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"secscan/internal/model"
)

const (
	EcosystemNPM  = "npm"
	EcosystemPyPI = "pypi"
	EcosystemGo   = "go"
)

// ManifestError reports a manifest that exists but cannot be parsed.
type ManifestError struct {
	Path string
	Err  error
}

func (e *ManifestError) Error() string {
	return fmt.Sprintf("parse manifest %s: %v", e.Path, e.Err)
}

func (e *ManifestError) Unwrap() error { return e.Err }

type manifestReader struct {
	name  string
	parse func(rel string, data []byte) ([]*model.Resource, error)
}

var manifestReaders = []manifestReader{
	{name: "package.json", parse: parsePackageJSON},
	{name: "requirements.txt", parse: parseRequirements},
	{name: "go.mod", parse: parseGoMod},
}

// Dependencies reads the declared dependencies of every known manifest at
// root. Entries from readable manifests are returned even when another
// manifest fails; the failures are joined into the error.
func Dependencies(root string) ([]*model.Resource, error) {
	var (
		out  []*model.Resource
		errs []error
	)
	for _, reader := range manifestReaders {
		path := filepath.Join(root, reader.name)
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			errs = append(errs, &ManifestError{Path: reader.name, Err: err})
			continue
		}
		entries, err := reader.parse(reader.name, data)
		if err != nil {
			errs = append(errs, &ManifestError{Path: reader.name, Err: err})
			continue
		}
		out = append(out, entries...)
	}
	return out, errors.Join(errs...)
}

func dependencyResource(rel string, line int, ecosystem, name, spec string) *model.Resource {
	loc := model.Locator{
		Path:      rel,
		Line:      line,
		Name:      name,
		Version:   spec,
		Ecosystem: ecosystem,
	}
	content := strconv.Quote(name) + ": " + strconv.Quote(spec)
	return model.StaticResource(model.KindDependencyEntry, loc, []byte(content))
}

func parsePackageJSON(rel string, data []byte) ([]*model.Resource, error) {
	var pkg struct {
		Dependencies    map[string]string `json:"dependencies"`
		DevDependencies map[string]string `json:"devDependencies"`
	}
	if err := json.Unmarshal(data, &pkg); err != nil {
		return nil, err
	}
	lines := strings.Split(string(data), "\n")
	var out []*model.Resource
	for _, section := range []struct {
		key  string
		deps map[string]string
	}{
		{"dependencies", pkg.Dependencies},
		{"devDependencies", pkg.DevDependencies},
	} {
		start := lineOf(lines, 0, strconv.Quote(section.key))
		for _, name := range sortedKeys(section.deps) {
			line := lineOf(lines, max(start-1, 0), strconv.Quote(name))
			out = append(out, dependencyResource(rel, line, EcosystemNPM, name, section.deps[name]))
		}
	}
	return out, nil
}

var requirementLine = regexp.MustCompile(`^([A-Za-z0-9][A-Za-z0-9._-]*)(\[[^\]]*\])?\s*(.*)$`)

func parseRequirements(rel string, data []byte) ([]*model.Resource, error) {
	var (
		out []*model.Resource
		bad []string
	)
	sc := bufio.NewScanner(bytes.NewReader(data))
	for n := 1; sc.Scan(); n++ {
		line := sc.Text()
		if i := strings.Index(line, " #"); i >= 0 {
			line = line[:i]
		}
		if i := strings.Index(line, ";"); i >= 0 {
			line = line[:i]
		}
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "-") {
			continue
		}
		m := requirementLine.FindStringSubmatch(line)
		if m == nil {
			bad = append(bad, fmt.Sprintf("line %d", n))
			continue
		}
		name := strings.ToLower(m[1])
		spec := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(m[3]), "@"))
		if spec == "" {
			spec = "*"
		}
		out = append(out, dependencyResource(rel, n, EcosystemPyPI, name, spec))
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(bad) > 0 {
		return out, fmt.Errorf("unrecognized requirement at %s", strings.Join(bad, ", "))
	}
	return out, nil
}

func parseGoMod(rel string, data []byte) ([]*model.Resource, error) {
	var out []*model.Resource
	inBlock := false
	sc := bufio.NewScanner(bytes.NewReader(data))
	for n := 1; sc.Scan(); n++ {
		line := sc.Text()
		if i := strings.Index(line, "//"); i >= 0 {
			line = line[:i]
		}
		line = strings.TrimSpace(line)
		switch {
		case line == "":
			continue
		case inBlock && line == ")":
			inBlock = false
			continue
		case line == "require (":
			inBlock = true
			continue
		case strings.HasPrefix(line, "require "):
			line = strings.TrimSpace(strings.TrimPrefix(line, "require "))
		case !inBlock:
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 2 {
			return nil, fmt.Errorf("malformed require at line %d", n)
		}
		out = append(out, dependencyResource(rel, n, EcosystemGo, fields[0], fields[1]))
	}
	if inBlock {
		return nil, errors.New("unterminated require block")
	}
	return out, sc.Err()
}

// lineOf returns the 1-based line of the first occurrence of needle at or
// after index from, or 0.
func lineOf(lines []string, from int, needle string) int {
	for i := from; i < len(lines); i++ {
		if strings.Contains(lines[i], needle) {
			return i + 1
		}
	}
	return 0
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
