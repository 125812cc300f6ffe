// Package aggregate merges sub-scan buffers into one deterministic ScanResult.
package aggregate

import (
	"sort"
	"time"

	"secscan/internal/model"
	"secscan/internal/suppress"
)

// Weights are the score deductions per finding of each severity.
type Weights struct {
	Critical int `yaml:"critical" json:"critical"`
	High     int `yaml:"high" json:"high"`
	Medium   int `yaml:"medium" json:"medium"`
	Low      int `yaml:"low" json:"low"`
}

func DefaultWeights() Weights {
	return Weights{Critical: 30, High: 10, Medium: 5, Low: 1}
}

// Score is 100 minus the weighted finding counts, floored at 0. Info
// findings never lower the score.
func Score(s model.Summary, w Weights) int {
	score := 100 - (s.Critical*w.Critical + s.High*w.High + s.Medium*w.Medium + s.Low*w.Low)
	return max(score, 0)
}

type Input struct {
	ScanID       string
	Kind         string
	Target       string
	StartedAt    time.Time
	Duration     time.Duration
	SubScans     []model.SubScanResult
	Weights      Weights
	Suppressions []suppress.Rule
}

// Aggregate is pure: the same input always yields the same result, whatever
// order the sub-scans or their findings arrived in. Signature is left empty.
func Aggregate(in Input) model.ScanResult {
	subs := append([]model.SubScanResult(nil), in.SubScans...)
	sort.SliceStable(subs, func(i, j int) bool {
		return categoryOrder(subs[i].Category) < categoryOrder(subs[j].Category)
	})

	var all []model.Finding
	origin := make(map[string]model.ScanCategory)
	for _, sub := range subs {
		all = append(all, sub.Findings...)
		for _, f := range sub.Findings {
			origin[f.ID] = sub.Category
		}
	}
	all, suppressed := suppress.Apply(all, in.Suppressions, in.StartedAt)
	findings := Dedup(all)

	res := model.ScanResult{
		ID:               in.ScanID,
		Kind:             in.Kind,
		Target:           in.Target,
		Timestamp:        in.StartedAt.UTC(),
		DurationMS:       in.Duration.Milliseconds(),
		Findings:         findings,
		CompletionStatus: model.StatusComplete,
		Categories:       make([]model.CategoryStatus, 0, len(subs)),
	}
	for _, f := range findings {
		res.Summary.Add(f.Severity)
	}
	res.SecurityScore = Score(res.Summary, in.Weights)
	res.Metrics.Suppressed = len(suppressed)

	kept := make(map[model.ScanCategory]int)
	for _, f := range findings {
		kept[origin[f.ID]]++
	}
	for _, sub := range subs {
		switch sub.Category {
		case model.ScanCode:
			res.Metrics.FilesScanned += sub.Scanned
		case model.ScanDependencies:
			res.Metrics.DependenciesScanned += sub.Scanned
		case model.ScanConfiguration:
			res.Metrics.ConfigFilesScanned += sub.Scanned
		case model.ScanEndpoints:
			res.Metrics.EndpointsScanned += sub.Scanned
		}
		res.Metrics.EntriesSkipped += sub.Skipped

		status := sub.Status
		if status == "" {
			status = model.StatusComplete
		}
		res.CompletionStatus = res.CompletionStatus.Worse(status)
		res.Categories = append(res.Categories, model.CategoryStatus{
			Category:     sub.Category,
			Status:       status,
			Scanned:      sub.Scanned,
			Skipped:      sub.Skipped,
			FindingCount: kept[sub.Category],
			DurationMS:   sub.CompletedAt.Sub(sub.StartedAt).Milliseconds(),
			Error:        sub.Error,
		})
	}
	return res
}

// Dedup sorts findings into report order and keeps the first of each
// (rule, locator, line) key. The result is never nil.
func Dedup(findings []model.Finding) []model.Finding {
	sorted := append([]model.Finding(nil), findings...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return Less(sorted[i], sorted[j])
	})
	out := make([]model.Finding, 0, len(sorted))
	seen := make(map[string]struct{}, len(sorted))
	for _, f := range sorted {
		k := f.Key()
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, f)
	}
	return out
}

// Less is the report order: severity descending, then locator, line, rule,
// timestamp and ID so that equal keys still sort the same every run.
func Less(a, b model.Finding) bool {
	if ra, rb := a.Severity.Rank(), b.Severity.Rank(); ra != rb {
		return ra > rb
	}
	if a.Locator != b.Locator {
		return a.Locator < b.Locator
	}
	if a.Line != b.Line {
		return a.Line < b.Line
	}
	if a.RuleID != b.RuleID {
		return a.RuleID < b.RuleID
	}
	if !a.Timestamp.Equal(b.Timestamp) {
		return a.Timestamp.Before(b.Timestamp)
	}
	return a.ID < b.ID
}

func categoryOrder(c model.ScanCategory) int {
	for i, known := range model.ScanCategories {
		if c == known {
			return i
		}
	}
	return len(model.ScanCategories)
}
