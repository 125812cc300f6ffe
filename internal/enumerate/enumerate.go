package enumerate

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"strings"

	"secscan/internal/model"
)

// DefaultExtensions are the source extensions scanned when none are configured.
var DefaultExtensions = []string{
	".js", ".jsx", ".mjs", ".cjs", ".ts", ".tsx",
	".py", ".go", ".rb", ".php", ".java", ".html",
}

// DefaultExcludeDirs are build output and dependency caches.
var DefaultExcludeDirs = []string{
	"node_modules", "dist", "build", ".git", "vendor", "coverage",
	".next", "target", "__pycache__", ".venv", "venv",
}

const (
	DefaultMaxFileBytes int64 = 2 * 1024 * 1024
	IgnoreFileName            = ".secscanignore"
	maxRecordedErrors         = 20
)

type Options struct {
	Extensions   []string
	ExcludeDirs  []string
	MaxFileBytes int64
	Ignore       *IgnoreRules
}

func (o Options) withDefaults() Options {
	if len(o.Extensions) == 0 {
		o.Extensions = DefaultExtensions
	}
	if o.ExcludeDirs == nil {
		o.ExcludeDirs = DefaultExcludeDirs
	}
	if o.MaxFileBytes <= 0 {
		o.MaxFileBytes = DefaultMaxFileBytes
	}
	return o
}

// EntryError is a non-fatal failure on one directory entry.
type EntryError struct {
	Path string
	Op   string
	Err  error
}

func (e *EntryError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *EntryError) Unwrap() error { return e.Err }

// Stats is filled in while a sequence is consumed. Read it only after the
// iteration has finished.
type Stats struct {
	Enumerated int
	Skipped    int
	SkippedBy  map[string]int
	Errs       []error
	RootErr    error
}

func newStats() *Stats {
	return &Stats{SkippedBy: map[string]int{}}
}

func (s *Stats) skip(reason string) {
	s.Skipped++
	s.SkippedBy[reason]++
}

func (s *Stats) entryErr(err *EntryError) {
	s.skip("unreadable")
	if len(s.Errs) < maxRecordedErrors {
		s.Errs = append(s.Errs, err)
	}
}

// Err reports the error that stopped the traversal, if any. Per-entry errors
// never do.
func (s *Stats) Err() error {
	return s.RootErr
}

// Files lazily yields source files under root. Each call walks afresh.
func Files(ctx context.Context, root string, opts Options) (iter.Seq[*model.Resource], *Stats) {
	opts = opts.withDefaults()
	exts := toSet(opts.Extensions, normalizeExt)
	return walk(ctx, root, opts, model.KindSourceFile, func(name string) bool {
		_, ok := exts[normalizeExt(filepath.Ext(name))]
		return ok
	})
}

// ConfigFiles lazily yields configuration files under root.
func ConfigFiles(ctx context.Context, root string, opts Options) (iter.Seq[*model.Resource], *Stats) {
	return walk(ctx, root, opts.withDefaults(), model.KindConfigFile, IsConfigFile)
}

var configNames = map[string]struct{}{
	"dockerfile": {}, "docker-compose.yml": {}, "docker-compose.yaml": {}, "compose.yml": {}, "compose.yaml": {},
	".env": {}, ".npmrc": {}, ".htaccess": {}, "nginx.conf": {},
	"config.json": {}, "settings.json": {}, "firebase.json": {}, "vercel.json": {}, "netlify.toml": {},
}

var configExts = map[string]struct{}{
	".yaml": {}, ".yml": {}, ".toml": {}, ".ini": {}, ".cfg": {}, ".conf": {}, ".properties": {}, ".env": {},
}

// IsConfigFile reports whether a base name looks like deployment or
// application configuration.
func IsConfigFile(name string) bool {
	lower := strings.ToLower(name)
	if _, ok := configNames[lower]; ok {
		return true
	}
	if strings.HasPrefix(lower, ".env.") || strings.HasPrefix(lower, "dockerfile.") {
		return true
	}
	if strings.HasSuffix(lower, ".config.json") || (strings.HasPrefix(lower, "appsettings") && strings.HasSuffix(lower, ".json")) {
		return true
	}
	_, ok := configExts[filepath.Ext(lower)]
	return ok
}

func walk(ctx context.Context, root string, opts Options, kind model.ResourceKind, include func(name string) bool) (iter.Seq[*model.Resource], *Stats) {
	stats := newStats()
	excluded := toSet(opts.ExcludeDirs, strings.ToLower)

	seq := func(yield func(*model.Resource) bool) {
		rootAbs, err := filepath.Abs(root)
		if err != nil {
			stats.RootErr = fmt.Errorf("resolve root: %w", err)
			return
		}
		st, err := os.Stat(rootAbs)
		if err != nil {
			stats.RootErr = fmt.Errorf("stat root: %w", err)
			return
		}
		if !st.IsDir() {
			stats.RootErr = fmt.Errorf("root %s is not a directory", root)
			return
		}

		walkErr := filepath.WalkDir(rootAbs, func(path string, d fs.DirEntry, entryErr error) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if entryErr != nil {
				if path == rootAbs {
					return entryErr
				}
				stats.entryErr(&EntryError{Path: path, Op: "read", Err: entryErr})
				if d != nil && d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if path == rootAbs {
				return nil
			}

			rel, err := filepath.Rel(rootAbs, path)
			if err != nil {
				return err
			}
			rel = filepath.ToSlash(rel)

			if d.Type()&fs.ModeSymlink != 0 {
				stats.skip("symlink")
				return nil
			}
			if d.IsDir() {
				if _, skip := excluded[strings.ToLower(d.Name())]; skip {
					return filepath.SkipDir
				}
				if opts.Ignore.ShouldIgnore(rel, true) {
					stats.skip("ignored")
					return filepath.SkipDir
				}
				return nil
			}
			if !include(d.Name()) {
				return nil
			}
			if opts.Ignore.ShouldIgnore(rel, false) {
				stats.skip("ignored")
				return nil
			}

			info, err := d.Info()
			if err != nil {
				stats.entryErr(&EntryError{Path: rel, Op: "stat", Err: err})
				return nil
			}
			if !info.Mode().IsRegular() {
				stats.skip("non_regular")
				return nil
			}
			if info.Size() > opts.MaxFileBytes {
				stats.skip("too_large")
				return nil
			}

			stats.Enumerated++
			abs := path
			res := model.NewResource(kind, model.Locator{Path: rel}, func() ([]byte, error) {
				return os.ReadFile(abs)
			})
			if !yield(res) {
				return filepath.SkipAll
			}
			return nil
		})
		if walkErr != nil {
			stats.RootErr = walkErr
		}
	}
	return seq, stats
}

// IsCancelled reports whether err came from the traversal's context.
func IsCancelled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func toSet(values []string, norm func(string) string) map[string]struct{} {
	out := make(map[string]struct{}, len(values))
	for _, v := range values {
		v = norm(strings.TrimSpace(v))
		if v == "" {
			continue
		}
		out[v] = struct{}{}
	}
	return out
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}
