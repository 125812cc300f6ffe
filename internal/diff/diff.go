package diff

import (
	"sort"
	"strings"

	"secscan/internal/aggregate"
	"secscan/internal/model"
)

// DiffSummary holds aggregate counts for a baseline comparison.
type DiffSummary struct {
	NewCount       int `json:"new_count"`
	FixedCount     int `json:"fixed_count"`
	UnchangedCount int `json:"unchanged_count"`
	ScoreBefore    int `json:"score_before"`
	ScoreAfter     int `json:"score_after"`
}

// DiffReport is the result of comparing a current scan against a baseline.
type DiffReport struct {
	BaselineID string          `json:"baseline_id"`
	CurrentID  string          `json:"current_id"`
	New        []model.Finding `json:"new"`
	Fixed      []model.Finding `json:"fixed"`
	Unchanged  []model.Finding `json:"unchanged"`
	Summary    DiffSummary     `json:"summary"`
}

func (d DiffReport) ScoreDelta() int {
	return d.Summary.ScoreAfter - d.Summary.ScoreBefore
}

// Compare produces a DiffReport identifying new, fixed, and unchanged findings
// relative to a baseline scan. Findings are matched by rule, resource and
// evidence rather than line, so code moving within a file is not churn.
func Compare(baseline, current model.ScanResult) DiffReport {
	baseKeys := make(map[string]model.Finding, len(baseline.Findings))
	for _, f := range baseline.Findings {
		baseKeys[findingKey(f)] = f
	}

	currKeys := make(map[string]model.Finding, len(current.Findings))
	for _, f := range current.Findings {
		currKeys[findingKey(f)] = f
	}

	newFindings, fixed, unchanged := []model.Finding{}, []model.Finding{}, []model.Finding{}

	for key, f := range currKeys {
		if _, inBase := baseKeys[key]; inBase {
			unchanged = append(unchanged, f)
		} else {
			newFindings = append(newFindings, f)
		}
	}

	for key, f := range baseKeys {
		if _, inCurr := currKeys[key]; !inCurr {
			fixed = append(fixed, f)
		}
	}

	sortFindings(newFindings)
	sortFindings(fixed)
	sortFindings(unchanged)

	return DiffReport{
		BaselineID: baseline.ID,
		CurrentID:  current.ID,
		New:        newFindings,
		Fixed:      fixed,
		Unchanged:  unchanged,
		Summary: DiffSummary{
			NewCount:       len(newFindings),
			FixedCount:     len(fixed),
			UnchangedCount: len(unchanged),
			ScoreBefore:    baseline.SecurityScore,
			ScoreAfter:     current.SecurityScore,
		},
	}
}

func findingKey(f model.Finding) string {
	evidence := strings.ToLower(strings.Join(strings.Fields(f.Evidence), " "))
	if len(evidence) > 200 {
		evidence = evidence[:200]
	}
	return f.RuleID + "|" + f.Locator + "|" + evidence
}

func sortFindings(findings []model.Finding) {
	sort.SliceStable(findings, func(i, j int) bool {
		return aggregate.Less(findings[i], findings[j])
	})
}
