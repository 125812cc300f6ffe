package scan

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"runtime/debug"
	"slices"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"secscan/internal/enumerate"
	"secscan/internal/model"
	"secscan/internal/progress"
	"secscan/internal/redact"
)

// collector is the private buffer of one sub-scan.
type collector struct {
	mu       sync.Mutex
	findings []model.Finding
	scanned  int
	skipped  int
}

func (c *collector) add(findings []model.Finding) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.findings = append(c.findings, findings...)
	c.scanned++
}

func (c *collector) skip(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.skipped += n
}

func (c *collector) counts() (scanned, found int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.scanned, len(c.findings)
}

type resourceFunc func(ctx context.Context, res *model.Resource) ([]model.Finding, error)

// runSubScans starts every enabled sub-scan and waits for all of them. The
// returned slice follows the configured category order.
func (o *Orchestrator) runSubScans(ctx context.Context, scanID string) []model.SubScanResult {
	out := make([]model.SubScanResult, len(o.opts.Categories))
	var wg sync.WaitGroup
	for i, cat := range o.opts.Categories {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out[i] = o.runSubScan(ctx, scanID, cat)
		}()
	}
	wg.Wait()
	return out
}

func (o *Orchestrator) runSubScan(parent context.Context, scanID string, cat model.ScanCategory) model.SubScanResult {
	res := model.SubScanResult{Category: cat, StartedAt: o.opts.Now()}
	o.emit(progress.Event{Type: progress.EventSubScanStarted, ScanID: scanID, Category: string(cat)})

	ctx, cancel := context.WithTimeout(parent, o.opts.SubScanTimeout)
	defer cancel()

	c := &collector{}
	err := o.guard(cat, func() error {
		if err := ctx.Err(); err != nil {
			return err
		}
		return o.subScanFunc(cat)(ctx, scanID, c)
	})
	if err != nil && errors.Is(err, context.DeadlineExceeded) && parent.Err() == nil {
		err = fmt.Errorf("timed out after %s: %w", o.opts.SubScanTimeout, err)
	}

	res.Findings = c.findings
	res.Scanned = c.scanned
	res.Skipped = c.skipped
	res.CompletedAt = o.opts.Now()
	switch {
	case err != nil:
		res.Status = model.StatusFailed
		subErr := &SubScanError{Category: cat, Err: err}
		res.Error = redact.Text(subErr.Error())
		o.log.Warn("sub-scan failed",
			zap.String("scan_id", scanID),
			zap.String("category", string(cat)),
			zap.Int("findings_kept", len(res.Findings)),
			zap.Error(subErr))
	case res.Skipped > 0:
		res.Status = model.StatusPartial
	default:
		res.Status = model.StatusComplete
	}

	o.emit(progress.Event{
		Type:         progress.EventSubScanFinished,
		ScanID:       scanID,
		Category:     string(cat),
		Status:       string(res.Status),
		Scanned:      res.Scanned,
		FindingCount: len(res.Findings),
		DurationMS:   res.CompletedAt.Sub(res.StartedAt).Milliseconds(),
		Error:        res.Error,
	})
	return res
}

// guard runs fn and converts a panic into an error.
func (o *Orchestrator) guard(cat model.ScanCategory, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			o.log.Error("sub-scan panicked",
				zap.String("category", string(cat)),
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()))
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}

func (o *Orchestrator) subScanFunc(cat model.ScanCategory) func(context.Context, string, *collector) error {
	switch cat {
	case model.ScanDependencies:
		return o.scanDependencies
	case model.ScanCode:
		return o.walkScan(enumerate.Files, model.KindSourceFile)
	case model.ScanConfiguration:
		return o.walkScan(enumerate.ConfigFiles, model.KindConfigFile)
	case model.ScanEndpoints:
		return o.walkScan(enumerate.Routes, model.KindAPIRoute)
	default:
		return func(context.Context, string, *collector) error {
			return fmt.Errorf("unknown scan category %q", cat)
		}
	}
}

type enumerator func(ctx context.Context, root string, opts enumerate.Options) (iter.Seq[*model.Resource], *enumerate.Stats)

// walkScan matches the rules for kind against every resource the
// enumerator yields.
func (o *Orchestrator) walkScan(enum enumerator, kind model.ResourceKind) func(context.Context, string, *collector) error {
	return func(ctx context.Context, scanID string, c *collector) error {
		set := o.opts.Registry.RulesFor(kind)
		seq, stats := enum(ctx, o.root, o.opts.Enumerate)
		err := o.consume(ctx, scanID, categoryFor(kind), seq, c, func(_ context.Context, res *model.Resource) ([]model.Finding, error) {
			return o.opts.Matcher.Apply(res, set)
		})

		c.skip(stats.Skipped)
		for _, entryErr := range stats.Errs {
			o.log.Debug("entry skipped", zap.String("kind", string(kind)), zap.Error(entryErr))
		}
		if err != nil {
			return err
		}
		return stats.Err()
	}
}

func (o *Orchestrator) scanDependencies(ctx context.Context, scanID string, c *collector) error {
	entries, manifestErr := enumerate.Dependencies(o.root)
	set := o.opts.Registry.RulesFor(model.KindDependencyEntry)
	adv, _ := o.opts.Matcher.(advisoryMatcher)

	err := o.consume(ctx, scanID, model.ScanDependencies, slices.Values(entries), c, func(ctx context.Context, res *model.Resource) ([]model.Finding, error) {
		findings, err := o.opts.Matcher.Apply(res, set)
		if err != nil {
			return nil, err
		}
		if adv == nil {
			return findings, nil
		}
		vulns, err := adv.Advisories(ctx, o.opts.Oracle, res)
		if err != nil {
			if enumerate.IsCancelled(err) {
				return nil, err
			}
			// Signature findings stand; the entry counts as skipped for
			// the advisory check only.
			o.log.Warn("advisory lookup failed", zap.String("locator", res.Locator.String()), zap.Error(err))
			c.skip(1)
			return findings, nil
		}
		return append(findings, vulns...), nil
	})
	if err != nil {
		return err
	}
	return manifestErr
}

// consume pulls the sequence in fixed-size batches. Each batch is matched
// with bounded fan-out and fully awaited before the next one is pulled.
func (o *Orchestrator) consume(ctx context.Context, scanID string, cat model.ScanCategory, seq iter.Seq[*model.Resource], c *collector, fn resourceFunc) error {
	for batch := range batches(seq, o.opts.BatchSize) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := o.runBatch(ctx, batch, c, fn); err != nil {
			return err
		}
		scanned, found := c.counts()
		o.emit(progress.Event{
			Type:         progress.EventBatchDone,
			ScanID:       scanID,
			Category:     string(cat),
			Scanned:      scanned,
			FindingCount: found,
		})
	}
	return ctx.Err()
}

func (o *Orchestrator) runBatch(ctx context.Context, batch []*model.Resource, c *collector, fn resourceFunc) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.opts.Workers)
	for _, res := range batch {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					o.log.Error("matcher panicked",
						zap.String("locator", res.Locator.String()),
						zap.Any("panic", r),
						zap.ByteString("stack", debug.Stack()))
					err = fmt.Errorf("panic matching %s: %v", res.Locator.String(), r)
				}
			}()
			if err := gctx.Err(); err != nil {
				return err
			}
			findings, err := fn(gctx, res)
			if err != nil {
				if enumerate.IsCancelled(err) {
					return err
				}
				o.log.Debug("resource skipped", zap.String("locator", res.Locator.String()), zap.Error(err))
				c.skip(1)
				return nil
			}
			c.add(findings)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// batches groups a sequence into slices of at most size elements. The
// underlying sequence is advanced only as batches are requested.
func batches[T any](seq iter.Seq[T], size int) iter.Seq[[]T] {
	return func(yield func([]T) bool) {
		batch := make([]T, 0, size)
		for v := range seq {
			batch = append(batch, v)
			if len(batch) < size {
				continue
			}
			if !yield(batch) {
				return
			}
			batch = make([]T, 0, size)
		}
		if len(batch) > 0 {
			yield(batch)
		}
	}
}

func categoryFor(kind model.ResourceKind) model.ScanCategory {
	switch kind {
	case model.KindSourceFile:
		return model.ScanCode
	case model.KindConfigFile:
		return model.ScanConfiguration
	case model.KindAPIRoute:
		return model.ScanEndpoints
	default:
		return model.ScanDependencies
	}
}
