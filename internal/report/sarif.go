package report

import (
	"encoding/json"
	"fmt"

	"secscan/internal/model"
	"secscan/internal/redact"
	"secscan/internal/safefile"
	"secscan/internal/version"
)

// SARIF v2.1.0, the subset code-scanning dashboards read.

type sarifLog struct {
	Version string     `json:"version"`
	Schema  string     `json:"$schema"`
	Runs    []sarifRun `json:"runs"`
}

type sarifRun struct {
	Tool    sarifTool     `json:"tool"`
	Results []sarifResult `json:"results"`
}

type sarifTool struct {
	Driver sarifDriver `json:"driver"`
}

type sarifDriver struct {
	Name    string      `json:"name"`
	Version string      `json:"version"`
	Rules   []sarifRule `json:"rules,omitempty"`
}

type sarifRule struct {
	ID               string              `json:"id"`
	Name             string              `json:"name,omitempty"`
	ShortDescription sarifMessage        `json:"shortDescription"`
	Help             *sarifMessage       `json:"help,omitempty"`
	DefaultConfig    *sarifDefaultConfig `json:"defaultConfiguration,omitempty"`
	Properties       *sarifRuleProps     `json:"properties,omitempty"`
}

type sarifRuleProps struct {
	Tags []string `json:"tags,omitempty"`
}

type sarifDefaultConfig struct {
	Level string `json:"level"`
}

type sarifResult struct {
	RuleID              string            `json:"ruleId"`
	Level               string            `json:"level"`
	Message             sarifMessage      `json:"message"`
	Locations           []sarifLocation   `json:"locations,omitempty"`
	PartialFingerprints map[string]string `json:"partialFingerprints,omitempty"`
	Properties          *sarifProperties  `json:"properties,omitempty"`
}

type sarifMessage struct {
	Text string `json:"text"`
}

type sarifLocation struct {
	PhysicalLocation sarifPhysicalLocation `json:"physicalLocation"`
}

type sarifPhysicalLocation struct {
	ArtifactLocation sarifArtifactLocation `json:"artifactLocation"`
	Region           *sarifRegion          `json:"region,omitempty"`
}

type sarifArtifactLocation struct {
	URI string `json:"uri"`
}

type sarifRegion struct {
	StartLine int `json:"startLine"`
}

type sarifProperties struct {
	Severity   string `json:"severity,omitempty"`
	Category   string `json:"category,omitempty"`
	Confidence string `json:"confidence,omitempty"`
	Detection  string `json:"detectionMethod,omitempty"`
}

func MarshalSARIF(res model.ScanResult) ([]byte, error) {
	b, err := json.MarshalIndent(buildSARIF(res), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal sarif report: %w", err)
	}
	return b, nil
}

func WriteSARIF(path string, res model.ScanResult) error {
	b, err := MarshalSARIF(res)
	if err != nil {
		return err
	}
	if err := safefile.WriteFileAtomic(path, b, filePerm); err != nil {
		return fmt.Errorf("write sarif report: %w", err)
	}
	return nil
}

func buildSARIF(res model.ScanResult) sarifLog {
	ruleIndex := map[string]int{}
	rules := []sarifRule{}
	results := []sarifResult{}

	for _, f := range res.Findings {
		level := sarifLevel(f.Severity)
		if _, seen := ruleIndex[f.RuleID]; !seen {
			ruleIndex[f.RuleID] = len(rules)
			rule := sarifRule{
				ID:               f.RuleID,
				Name:             f.RuleID,
				ShortDescription: sarifMessage{Text: f.Message},
				DefaultConfig:    &sarifDefaultConfig{Level: level},
			}
			if f.Remediation != "" {
				rule.Help = &sarifMessage{Text: f.Remediation}
			}
			tags := []string{"security", string(f.Category)}
			if f.CWE != "" {
				tags = append(tags, f.CWE)
			}
			rule.Properties = &sarifRuleProps{Tags: tags}
			rules = append(rules, rule)
		}

		text := f.Message
		if f.Evidence != "" {
			text += ": " + redact.Text(f.Evidence)
		}

		var locations []sarifLocation
		if f.Path != "" {
			loc := sarifLocation{PhysicalLocation: sarifPhysicalLocation{
				ArtifactLocation: sarifArtifactLocation{URI: f.Path},
			}}
			if f.Line > 0 {
				loc.PhysicalLocation.Region = &sarifRegion{StartLine: f.Line}
			}
			locations = append(locations, loc)
		}

		results = append(results, sarifResult{
			RuleID:              f.RuleID,
			Level:               level,
			Message:             sarifMessage{Text: text},
			Locations:           locations,
			PartialFingerprints: map[string]string{"secscanKey/v1": f.Key()},
			Properties: &sarifProperties{
				Severity:   string(f.Severity),
				Category:   string(f.Category),
				Confidence: string(f.Confidence),
				Detection:  f.DetectionMethod,
			},
		})
	}

	return sarifLog{
		Version: "2.1.0",
		Schema:  "https://raw.githubusercontent.com/oasis-tcs/sarif-spec/main/sarif-2.1/schema/sarif-schema-2.1.0.json",
		Runs: []sarifRun{{
			Tool: sarifTool{
				Driver: sarifDriver{
					Name:    "secscan",
					Version: version.Version,
					Rules:   rules,
				},
			},
			Results: results,
		}},
	}
}

func sarifLevel(sev model.Severity) string {
	switch sev {
	case model.SeverityCritical, model.SeverityHigh:
		return "error"
	case model.SeverityMedium:
		return "warning"
	default:
		return "note"
	}
}
