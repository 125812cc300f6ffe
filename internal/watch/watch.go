// Package watch rescans a tree when files under it change.
package watch

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"secscan/internal/model"
	"secscan/internal/progress"
	"secscan/internal/scan"
)

const DefaultDebounce = 300 * time.Millisecond

type Scanner interface {
	Run(ctx context.Context) (model.ScanResult, error)
}

type Options struct {
	Root     string
	Debounce time.Duration
	// SkipNames are directory names never watched, such as .git.
	SkipNames []string
	// SkipPaths are absolute directories never watched, such as the
	// report directory.
	SkipPaths []string
	Sink      progress.Sink
	Logger    *zap.Logger
	OnResult  func(model.ScanResult, error)
}

type Watcher struct {
	opts    Options
	root    string
	scanner Scanner
	fw      *fsnotify.Watcher
	skip    map[string]struct{}

	// mu guards running and pending together so a queued rescan is never
	// dropped between the last check and clearing running.
	mu      sync.Mutex
	running bool
	pending bool
	wg      sync.WaitGroup
}

// New registers every directory under opts.Root. Events are only consumed
// once Run is called.
func New(scanner Scanner, opts Options) (*Watcher, error) {
	if scanner == nil {
		return nil, errors.New("watch: scanner is required")
	}
	root, err := filepath.Abs(opts.Root)
	if err != nil {
		return nil, err
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.Sink == nil {
		opts.Sink = progress.NoopSink{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	skip := map[string]struct{}{".git": {}, ".secscan": {}}
	for _, name := range opts.SkipNames {
		skip[strings.ToLower(name)] = struct{}{}
	}
	for i, p := range opts.SkipPaths {
		if abs, err := filepath.Abs(p); err == nil {
			opts.SkipPaths[i] = abs
		}
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{opts: opts, root: root, scanner: scanner, fw: fw, skip: skip}
	if err := w.addRecursive(root); err != nil {
		_ = fw.Close()
		return nil, err
	}
	return w, nil
}

// Run consumes change events until ctx is done. Bursts of changes are
// collapsed into one scan after the debounce interval. A change arriving
// while a scan runs schedules exactly one follow-up scan.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.wg.Wait()
	defer func() { _ = w.fw.Close() }()

	timer := time.NewTimer(w.opts.Debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.fw.Events:
			if !ok {
				return nil
			}
			if w.ignored(ev.Name) {
				continue
			}
			if ev.Has(fsnotify.Create) {
				if st, err := os.Stat(ev.Name); err == nil && st.IsDir() {
					if err := w.addRecursive(ev.Name); err != nil {
						w.opts.Logger.Warn("watch new directory", zap.String("path", ev.Name), zap.Error(err))
					}
				}
			}
			timer.Reset(w.opts.Debounce)
		case <-timer.C:
			w.wg.Add(1)
			go func() {
				defer w.wg.Done()
				w.trigger(ctx)
			}()
		case err, ok := <-w.fw.Errors:
			if !ok {
				return nil
			}
			w.opts.Logger.Warn("watch error", zap.Error(err))
			w.opts.Sink.Emit(progress.Event{Type: progress.EventScanWarning, Error: err.Error()})
		}
	}
}

func (w *Watcher) trigger(ctx context.Context) {
	w.mu.Lock()
	if w.running {
		w.pending = true
		w.mu.Unlock()
		w.opts.Sink.Emit(progress.Event{Type: progress.EventScanSkipped, Message: "scan in progress, rescan queued"})
		return
	}
	w.running = true
	w.mu.Unlock()

	for {
		w.mu.Lock()
		w.pending = false
		w.mu.Unlock()

		res, err := w.scanner.Run(ctx)
		if errors.Is(err, scan.ErrScanInProgress) {
			w.opts.Sink.Emit(progress.Event{Type: progress.EventScanSkipped, Message: err.Error()})
		} else if w.opts.OnResult != nil {
			w.opts.OnResult(res, err)
		}

		w.mu.Lock()
		if ctx.Err() != nil || !w.pending {
			w.running = false
			w.mu.Unlock()
			return
		}
		w.mu.Unlock()
	}
}

func (w *Watcher) addRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.root && w.ignored(path) {
			return filepath.SkipDir
		}
		return w.fw.Add(path)
	})
}

// ignored reports whether path lies inside a skipped directory.
func (w *Watcher) ignored(path string) bool {
	for _, p := range w.opts.SkipPaths {
		if path == p || strings.HasPrefix(path, p+string(filepath.Separator)) {
			return true
		}
	}
	rel, err := filepath.Rel(w.root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return false
	}
	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		if _, ok := w.skip[strings.ToLower(part)]; ok {
			return true
		}
	}
	return false
}
