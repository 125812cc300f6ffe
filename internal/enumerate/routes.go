package enumerate

import (
	"bytes"
	"context"
	"iter"
	"regexp"
	"strings"

	"secscan/internal/model"
)

// routeContextLines is how many lines after a registration belong to the
// route's content, so handler guards and validation are visible to rules.
const routeContextLines = 6

type routePattern struct {
	re *regexp.Regexp
	// extract returns (methods, path) from submatches.
	extract func(m []string) ([]string, string)
}

var routePatterns = []routePattern{
	{
		// Express / Koa style: app.get('/x', ...), router.post("/x", ...)
		re: regexp.MustCompile(`\b(?:app|router|server|api|route[rs]?)\.(get|post|put|patch|delete|all|use)\s*\(\s*['"\x60]([^'"\x60]+)['"\x60]`),
		extract: func(m []string) ([]string, string) {
			return []string{expressMethod(m[1])}, m[2]
		},
	},
	{
		// Flask: @app.route('/x', methods=['GET', 'POST'])
		re: regexp.MustCompile(`@\w+\.route\(\s*['"]([^'"]+)['"](?:[^)\n]*methods\s*=\s*[\[(]([^\])]*)[\])])?`),
		extract: func(m []string) ([]string, string) {
			methods := splitMethods(m[2])
			if len(methods) == 0 {
				methods = []string{"GET"}
			}
			return methods, m[1]
		},
	},
	{
		// FastAPI / Flask 2 shorthands: @app.post('/x')
		re: regexp.MustCompile(`@\w+\.(get|post|put|patch|delete)\(\s*['"]([^'"]+)['"]`),
		extract: func(m []string) ([]string, string) {
			return []string{strings.ToUpper(m[1])}, m[2]
		},
	},
	{
		// net/http: mux.HandleFunc("POST /x", h)
		re: regexp.MustCompile(`\.Handle(?:Func)?\(\s*"(?:([A-Z]+)\s+)?(/[^"]*)"`),
		extract: func(m []string) ([]string, string) {
			if m[1] == "" {
				return []string{"ANY"}, m[2]
			}
			return []string{m[1]}, m[2]
		},
	},
	{
		// gin / echo: r.POST("/x", h)
		re: regexp.MustCompile(`\.(GET|POST|PUT|PATCH|DELETE|Any)\(\s*"(/[^"]*)"`),
		extract: func(m []string) ([]string, string) {
			return []string{expressMethod(m[1])}, m[2]
		},
	},
}

// Routes lazily yields one resource per (method, path) registration found in
// source files under root.
func Routes(ctx context.Context, root string, opts Options) (iter.Seq[*model.Resource], *Stats) {
	stats := newStats()
	seq := func(yield func(*model.Resource) bool) {
		files, fileStats := Files(ctx, root, opts)
		defer stats.absorb(fileStats)
		for file := range files {
			content, err := file.Content()
			if err != nil {
				stats.entryErr(&EntryError{Path: file.Locator.Path, Op: "read", Err: err})
				continue
			}
			for _, route := range ExtractRoutes(file.Locator.Path, content) {
				stats.Enumerated++
				if !yield(route) {
					return
				}
			}
		}
	}
	return seq, stats
}

// ExtractRoutes finds route registrations in one file's content.
func ExtractRoutes(path string, content []byte) []*model.Resource {
	lines := bytes.Split(content, []byte("\n"))
	var out []*model.Resource
	for i, line := range lines {
		for _, p := range routePatterns {
			m := p.re.FindSubmatch(line)
			if m == nil {
				continue
			}
			groups := make([]string, len(m))
			for g := range m {
				groups[g] = string(m[g])
			}
			methods, route := p.extract(groups)
			snippet := bytes.Join(lines[i:contextEnd(lines, i)], []byte("\n"))
			for _, method := range methods {
				loc := model.Locator{Path: path, Line: i + 1, Method: method, Route: route}
				out = append(out, model.StaticResource(model.KindAPIRoute, loc, snippet))
			}
			break
		}
	}
	return out
}

// contextEnd stops a route's snippet before the next registration so one
// handler's body is never attributed to another route.
func contextEnd(lines [][]byte, start int) int {
	limit := min(len(lines), start+1+routeContextLines)
	for j := start + 1; j < limit; j++ {
		if isRegistration(lines[j]) {
			return j
		}
	}
	return limit
}

func isRegistration(line []byte) bool {
	for _, p := range routePatterns {
		if p.re.Match(line) {
			return true
		}
	}
	return false
}

func (s *Stats) absorb(other *Stats) {
	s.Skipped += other.Skipped
	for reason, n := range other.SkippedBy {
		s.SkippedBy[reason] += n
	}
	for _, err := range other.Errs {
		if len(s.Errs) < maxRecordedErrors {
			s.Errs = append(s.Errs, err)
		}
	}
	if s.RootErr == nil {
		s.RootErr = other.RootErr
	}
}

func expressMethod(m string) string {
	switch strings.ToLower(m) {
	case "all", "use", "any":
		return "ANY"
	default:
		return strings.ToUpper(m)
	}
}

func splitMethods(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.Trim(strings.TrimSpace(part), `'"`)
		if part != "" {
			out = append(out, strings.ToUpper(part))
		}
	}
	return out
}
