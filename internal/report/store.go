package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"secscan/internal/model"
	"secscan/internal/safefile"
)

const (
	DefaultDir = "reports/security"
	// fileTimeLayout is RFC 3339 with milliseconds; ':' is replaced so the
	// name is portable.
	fileTimeLayout = "2006-01-02T15:04:05.000Z07:00"
	dirPerm        = 0o700
	filePerm       = 0o600
)

// StorageError wraps a failure to persist or read a report. The scan result
// itself stays valid.
type StorageError struct {
	Op   string
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("report %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Store keeps signed results as one JSON file each under Dir.
type Store struct {
	Dir string
}

func NewStore(dir string) *Store {
	if strings.TrimSpace(dir) == "" {
		dir = DefaultDir
	}
	return &Store{Dir: dir}
}

// FileName is "<kind>-<timestamp>.json" with the UTC start time.
func FileName(kind string, ts time.Time) string {
	if kind == "" {
		kind = "security-scan"
	}
	stamp := strings.ReplaceAll(ts.UTC().Format(fileTimeLayout), ":", "-")
	return kind + "-" + stamp + ".json"
}

// Persist writes a signed result. Reports are write-once: an existing file
// with the same name is never replaced.
func (s *Store) Persist(res model.ScanResult) (string, error) {
	if res.Signature == "" {
		return "", &StorageError{Op: "persist", Path: s.Dir, Err: ErrUnsigned}
	}
	dir, err := safefile.EnsureDir(s.Dir, dirPerm)
	if err != nil {
		return "", &StorageError{Op: "persist", Path: s.Dir, Err: err}
	}
	path := filepath.Join(dir, FileName(res.Kind, res.Timestamp))
	b, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return "", &StorageError{Op: "persist", Path: path, Err: err}
	}
	if err := safefile.WriteFileOnce(path, b, filePerm); err != nil {
		return "", &StorageError{Op: "persist", Path: path, Err: err}
	}
	return path, nil
}

// Load reads one report file and checks its signature. A tampered report is
// returned together with ErrSignatureMismatch so callers can still show it.
func Load(path string) (model.ScanResult, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return model.ScanResult{}, &StorageError{Op: "load", Path: path, Err: err}
	}
	var res model.ScanResult
	if err := json.Unmarshal(b, &res); err != nil {
		return model.ScanResult{}, &StorageError{Op: "load", Path: path, Err: err}
	}
	return res, Verify(res)
}

type Entry struct {
	Path string
	Kind string
	At   time.Time
}

// List returns stored reports, oldest first. Files that do not follow the
// naming scheme are ignored.
func (s *Store) List() ([]Entry, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, &StorageError{Op: "list", Path: s.Dir, Err: err}
	}
	var out []Entry
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		kind, at, ok := parseFileName(e.Name())
		if !ok {
			continue
		}
		out = append(out, Entry{Path: filepath.Join(s.Dir, e.Name()), Kind: kind, At: at})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].At.Equal(out[j].At) {
			return out[i].At.Before(out[j].At)
		}
		return out[i].Path < out[j].Path
	})
	return out, nil
}

// Latest loads the most recent report, or os.ErrNotExist when there is none.
func (s *Store) Latest() (model.ScanResult, string, error) {
	list, err := s.List()
	if err != nil {
		return model.ScanResult{}, "", err
	}
	if len(list) == 0 {
		return model.ScanResult{}, "", &StorageError{Op: "latest", Path: s.Dir, Err: os.ErrNotExist}
	}
	last := list[len(list)-1]
	res, err := Load(last.Path)
	return res, last.Path, err
}

// parseFileName reverses FileName. The timestamp is the fixed-width tail.
func parseFileName(name string) (string, time.Time, bool) {
	base := strings.TrimSuffix(name, ".json")
	// 2006-01-02T15-04-05.000Z
	const stampLen = len("2006-01-02T15-04-05.000Z")
	if len(base) < stampLen+2 || base[len(base)-stampLen-1] != '-' {
		return "", time.Time{}, false
	}
	kind := base[:len(base)-stampLen-1]
	stamp := base[len(base)-stampLen:]
	date, clock, ok := strings.Cut(stamp, "T")
	if !ok {
		return "", time.Time{}, false
	}
	at, err := time.Parse(fileTimeLayout, date+"T"+strings.ReplaceAll(clock, "-", ":"))
	if err != nil {
		return "", time.Time{}, false
	}
	return kind, at, true
}
