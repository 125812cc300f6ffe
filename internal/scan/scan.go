// Package scan runs the four sub-scans of a security scan and turns their
// output into one signed result.
package scan

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"secscan/internal/advisory"
	"secscan/internal/aggregate"
	"secscan/internal/enumerate"
	"secscan/internal/match"
	"secscan/internal/model"
	"secscan/internal/progress"
	"secscan/internal/report"
	"secscan/internal/rules"
	"secscan/internal/suppress"
)

const (
	DefaultKind           = "security-scan"
	DefaultWorkers        = 4
	DefaultBatchSize      = 100
	DefaultSubScanTimeout = 2 * time.Minute
)

var (
	// ErrScanInProgress is returned when Run is called while another run on
	// the same orchestrator has not finished. Nothing is queued.
	ErrScanInProgress = errors.New("scan already in progress")
	// ErrCancelled is returned when the context ended before any sub-scan
	// finished. No result is produced or persisted.
	ErrCancelled = errors.New("scan cancelled")
)

// SubScanError records why one sub-scan failed. Siblings are unaffected.
type SubScanError struct {
	Category model.ScanCategory
	Err      error
}

func (e *SubScanError) Error() string {
	return fmt.Sprintf("%s sub-scan: %v", e.Category, e.Err)
}

func (e *SubScanError) Unwrap() error { return e.Err }

type State string

const (
	StateIdle      State = "idle"
	StateScanning  State = "scanning"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

// Session describes the current or most recent run.
type Session struct {
	State      State
	ScanID     string
	StartedAt  time.Time
	FinishedAt time.Time
	Reason     string
	ReportPath string
	Runs       int
}

type Options struct {
	Root string
	Kind string
	// Categories selects the sub-scans to run. Nil runs all four.
	Categories     []model.ScanCategory
	Enumerate      enumerate.Options
	Workers        int
	BatchSize      int
	SubScanTimeout time.Duration

	Registry     *rules.Registry
	Matcher      match.Matcher
	Oracle       advisory.Oracle
	// Weights overrides the score deductions. Nil uses the defaults; a zero
	// value disables deductions.
	Weights      *aggregate.Weights
	Suppressions []suppress.Rule
	// Store persists signed results. Nil keeps results in memory only.
	Store *report.Store

	Sink   progress.Sink
	Logger *zap.Logger
	Now    func() time.Time
	NewID  func() string
}

// advisoryMatcher is implemented by matchers that can check dependency
// entries against an advisory oracle.
type advisoryMatcher interface {
	Advisories(ctx context.Context, oracle advisory.Oracle, res *model.Resource) ([]model.Finding, error)
}

type Orchestrator struct {
	opts Options
	root string
	log  *zap.Logger

	mu      sync.Mutex
	session Session
}

func New(opts Options) (*Orchestrator, error) {
	if strings.TrimSpace(opts.Root) == "" {
		return nil, errors.New("scan root is required")
	}
	root, err := filepath.Abs(opts.Root)
	if err != nil {
		return nil, fmt.Errorf("resolve scan root: %w", err)
	}
	st, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("scan root: %w", err)
	}
	if !st.IsDir() {
		return nil, fmt.Errorf("scan root %s is not a directory", opts.Root)
	}

	if opts.Kind == "" {
		opts.Kind = DefaultKind
	}
	if opts.Categories == nil {
		opts.Categories = model.ScanCategories
	}
	for _, c := range opts.Categories {
		if !slices.Contains(model.ScanCategories, c) {
			return nil, fmt.Errorf("unknown scan category %q", c)
		}
	}
	if opts.Workers < 1 {
		opts.Workers = DefaultWorkers
	}
	if opts.BatchSize < 1 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.SubScanTimeout <= 0 {
		opts.SubScanTimeout = DefaultSubScanTimeout
	}
	if opts.Registry == nil {
		reg, err := rules.Load(rules.Builtins())
		if err != nil {
			return nil, err
		}
		opts.Registry = reg
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	if opts.Matcher == nil {
		opts.Matcher = match.New(match.WithClock(opts.Now), match.WithIDs(opts.NewID))
	}
	if opts.Oracle == nil {
		opts.Oracle = advisory.Builtin()
	}
	w := aggregate.DefaultWeights()
	if opts.Weights != nil {
		w = *opts.Weights
	}
	opts.Weights = &w
	if opts.Enumerate.Ignore == nil {
		ignore, err := enumerate.LoadIgnore(root)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", enumerate.IgnoreFileName, err)
		}
		opts.Enumerate.Ignore = ignore
	}
	if opts.Sink == nil {
		opts.Sink = progress.NoopSink{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	return &Orchestrator{
		opts:    opts,
		root:    root,
		log:     opts.Logger.With(zap.String("root", root)),
		session: Session{State: StateIdle},
	}, nil
}

// Session returns a snapshot of the current or last run.
func (o *Orchestrator) Session() Session {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.session
}

func (o *Orchestrator) Root() string { return o.root }

// Run performs one scan. A storage failure after signing returns the valid
// result together with a *report.StorageError.
func (o *Orchestrator) Run(ctx context.Context) (model.ScanResult, error) {
	scanID := o.opts.NewID()
	started := o.opts.Now()
	if err := o.begin(scanID, started); err != nil {
		return model.ScanResult{}, err
	}

	state, reason, reportPath := StateFailed, "aborted", ""
	defer func() {
		o.end(state, reason, reportPath)
	}()

	o.emit(progress.Event{Type: progress.EventScanStarted, ScanID: scanID, Message: o.root})
	o.log.Debug("scan started", zap.String("scan_id", scanID), zap.Int("subscans", len(o.opts.Categories)))

	subs := o.runSubScans(ctx, scanID)

	if ctxErr := ctx.Err(); ctxErr != nil {
		reason = "cancelled"
		if !anyFinished(subs) {
			o.emit(progress.Event{Type: progress.EventScanFinished, ScanID: scanID, Status: string(model.StatusFailed), Error: ctxErr.Error()})
			return model.ScanResult{}, fmt.Errorf("%w: %w", ErrCancelled, ctxErr)
		}
	}

	res := aggregate.Aggregate(aggregate.Input{
		ScanID:       scanID,
		Kind:         o.opts.Kind,
		Target:       o.root,
		StartedAt:    started,
		Duration:     o.opts.Now().Sub(started),
		SubScans:     subs,
		Weights:      *o.opts.Weights,
		Suppressions: o.opts.Suppressions,
	})
	if reason == "cancelled" {
		res.CompletionStatus = model.StatusFailed
	}
	signed, err := report.Sign(res)
	if err != nil {
		return model.ScanResult{}, err
	}

	if res.CompletionStatus == model.StatusFailed {
		if reason != "cancelled" {
			reason = "sub-scan failure"
		}
	} else {
		state, reason = StateCompleted, ""
	}

	var storeErr error
	if o.opts.Store != nil {
		path, err := o.opts.Store.Persist(signed)
		if err != nil {
			storeErr = err
			o.log.Warn("persist report", zap.String("scan_id", scanID), zap.Error(err))
			o.emit(progress.Event{Type: progress.EventScanWarning, ScanID: scanID, Error: err.Error()})
		} else {
			reportPath = path
			o.emit(progress.Event{Type: progress.EventReportPersisted, ScanID: scanID, Path: path})
		}
	}

	o.emit(progress.Event{
		Type:          progress.EventScanFinished,
		ScanID:        scanID,
		Status:        string(signed.CompletionStatus),
		FindingCount:  signed.Summary.Total,
		CriticalCount: signed.Summary.Critical,
		HighCount:     signed.Summary.High,
		Score:         signed.SecurityScore,
		DurationMS:    signed.DurationMS,
	})
	return signed, storeErr
}

func (o *Orchestrator) begin(scanID string, started time.Time) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.session.State == StateScanning {
		return ErrScanInProgress
	}
	o.session = Session{
		State:     StateScanning,
		ScanID:    scanID,
		StartedAt: started,
		Runs:      o.session.Runs + 1,
	}
	return nil
}

func (o *Orchestrator) end(state State, reason, reportPath string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.session.State = state
	o.session.Reason = reason
	o.session.ReportPath = reportPath
	o.session.FinishedAt = o.opts.Now()
}

func (o *Orchestrator) emit(e progress.Event) {
	if e.At.IsZero() {
		e.At = o.opts.Now()
	}
	o.opts.Sink.Emit(e)
}

func anyFinished(subs []model.SubScanResult) bool {
	for _, s := range subs {
		if s.Status != model.StatusFailed {
			return true
		}
	}
	return false
}
