package model

import (
	"fmt"
	"strings"
	"time"
)

type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
	SeverityInfo     Severity = "info"
)

// Severities lists every severity from most to least severe.
var Severities = []Severity{SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow, SeverityInfo}

// Rank orders severities; unknown values rank below info.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	case SeverityInfo:
		return 0
	default:
		return -1
	}
}

func (s Severity) Valid() bool {
	return s.Rank() >= 0
}

// ParseSeverity accepts the canonical names plus "moderate" as an alias of medium.
func ParseSeverity(s string) (Severity, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "moderate" {
		return SeverityMedium, true
	}
	sev := Severity(s)
	return sev, sev.Valid()
}

type Category string

const (
	CategoryInjection        Category = "injection"
	CategorySensitiveData    Category = "sensitive-data"
	CategoryCryptographic    Category = "cryptographic"
	CategoryAuthentication   Category = "authentication"
	CategoryValidation       Category = "validation"
	CategoryConfiguration    Category = "configuration"
	CategorySupplyChain      Category = "supply-chain"
	CategoryObfuscation      Category = "obfuscation"
	CategoryDataExfiltration Category = "data-exfiltration"
	CategoryVulnerability    Category = "vulnerability"
)

var Categories = []Category{
	CategoryInjection,
	CategorySensitiveData,
	CategoryCryptographic,
	CategoryAuthentication,
	CategoryValidation,
	CategoryConfiguration,
	CategorySupplyChain,
	CategoryObfuscation,
	CategoryDataExfiltration,
	CategoryVulnerability,
}

func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

type Confidence string

const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

func (c Confidence) Valid() bool {
	switch c {
	case ConfidenceLow, ConfidenceMedium, ConfidenceHigh:
		return true
	default:
		return false
	}
}

type ResourceKind string

const (
	KindSourceFile      ResourceKind = "source-file"
	KindDependencyEntry ResourceKind = "dependency-manifest-entry"
	KindConfigFile      ResourceKind = "config-file"
	KindAPIRoute        ResourceKind = "api-route"
)

var ResourceKinds = []ResourceKind{KindSourceFile, KindDependencyEntry, KindConfigFile, KindAPIRoute}

func (k ResourceKind) Valid() bool {
	switch k {
	case KindSourceFile, KindDependencyEntry, KindConfigFile, KindAPIRoute:
		return true
	default:
		return false
	}
}

// ScanCategory names one of the four sub-scans.
type ScanCategory string

const (
	ScanDependencies  ScanCategory = "dependencies"
	ScanCode          ScanCategory = "code"
	ScanConfiguration ScanCategory = "configuration"
	ScanEndpoints     ScanCategory = "endpoints"
)

var ScanCategories = []ScanCategory{ScanDependencies, ScanCode, ScanConfiguration, ScanEndpoints}

type CompletionStatus string

const (
	StatusComplete CompletionStatus = "complete"
	StatusPartial  CompletionStatus = "partial"
	StatusFailed   CompletionStatus = "failed"
)

// Worse returns the more degraded of two statuses.
func (s CompletionStatus) Worse(other CompletionStatus) CompletionStatus {
	if statusWeight(other) > statusWeight(s) {
		return other
	}
	return s
}

func statusWeight(s CompletionStatus) int {
	switch s {
	case StatusFailed:
		return 2
	case StatusPartial:
		return 1
	default:
		return 0
	}
}

// Locator identifies where a resource lives. Route and dependency fields are
// only populated for their resource kinds.
type Locator struct {
	Path      string `json:"path"`
	Line      int    `json:"line,omitempty"`
	Method    string `json:"method,omitempty"`
	Route     string `json:"route,omitempty"`
	Name      string `json:"name,omitempty"`
	Version   string `json:"version,omitempty"`
	Ecosystem string `json:"ecosystem,omitempty"`
}

func (l Locator) String() string {
	switch {
	case l.Route != "":
		method := l.Method
		if method == "" {
			method = "ANY"
		}
		return fmt.Sprintf("%s %s (%s)", method, l.Route, l.Path)
	case l.Name != "":
		if l.Version == "" {
			return fmt.Sprintf("%s#%s", l.Path, l.Name)
		}
		return fmt.Sprintf("%s#%s@%s", l.Path, l.Name, l.Version)
	default:
		return l.Path
	}
}

type Finding struct {
	ID              string     `json:"id"`
	RuleID          string     `json:"ruleId"`
	Severity        Severity   `json:"severity"`
	Category        Category   `json:"category"`
	Message         string     `json:"message"`
	Locator         string     `json:"locator"`
	Path            string     `json:"path,omitempty"`
	Line            int        `json:"line,omitempty"`
	CWE             string     `json:"cwe,omitempty"`
	Confidence      Confidence `json:"confidence"`
	DetectionMethod string     `json:"detectionMethod"`
	Remediation     string     `json:"remediation,omitempty"`
	Evidence        string     `json:"evidence,omitempty"`
	Timestamp       time.Time  `json:"timestamp"`
}

// Key is the deduplication identity of a finding: one per (rule, resource, line).
func (f Finding) Key() string {
	return fmt.Sprintf("%s|%s|%d", f.RuleID, f.Locator, f.Line)
}

type Summary struct {
	Critical int `json:"critical"`
	High     int `json:"high"`
	Medium   int `json:"medium"`
	Low      int `json:"low"`
	Info     int `json:"info"`
	Total    int `json:"total"`
}

func (s *Summary) Add(sev Severity) {
	switch sev {
	case SeverityCritical:
		s.Critical++
	case SeverityHigh:
		s.High++
	case SeverityMedium:
		s.Medium++
	case SeverityLow:
		s.Low++
	default:
		s.Info++
	}
	s.Total++
}

func (s Summary) Count(sev Severity) int {
	switch sev {
	case SeverityCritical:
		return s.Critical
	case SeverityHigh:
		return s.High
	case SeverityMedium:
		return s.Medium
	case SeverityLow:
		return s.Low
	case SeverityInfo:
		return s.Info
	default:
		return 0
	}
}

type Metrics struct {
	FilesScanned        int `json:"filesScanned"`
	DependenciesScanned int `json:"dependenciesScanned"`
	ConfigFilesScanned  int `json:"configFilesScanned"`
	EndpointsScanned    int `json:"endpointsScanned"`
	EntriesSkipped      int `json:"entriesSkipped"`
	Suppressed          int `json:"suppressed,omitempty"`
}

// SubScanResult is the private buffer one sub-scan fills; the aggregator
// merges them at the join point.
type SubScanResult struct {
	Category    ScanCategory     `json:"category"`
	Status      CompletionStatus `json:"status"`
	Findings    []Finding        `json:"-"`
	Scanned     int              `json:"scanned"`
	Skipped     int              `json:"skipped"`
	StartedAt   time.Time        `json:"startedAt"`
	CompletedAt time.Time        `json:"completedAt"`
	Error       string           `json:"error,omitempty"`
}

// CategoryStatus is the published per-sub-scan outcome inside a ScanResult.
type CategoryStatus struct {
	Category     ScanCategory     `json:"category"`
	Status       CompletionStatus `json:"status"`
	Scanned      int              `json:"scanned"`
	Skipped      int              `json:"skipped"`
	FindingCount int              `json:"findingCount"`
	DurationMS   int64            `json:"durationMs"`
	Error        string           `json:"error,omitempty"`
}

// ScanResult is write-once: it is never mutated after Signature is set.
type ScanResult struct {
	ID               string           `json:"id"`
	Kind             string           `json:"kind"`
	Target           string           `json:"target,omitempty"`
	Timestamp        time.Time        `json:"timestamp"`
	DurationMS       int64            `json:"duration"`
	Findings         []Finding        `json:"findings"`
	Metrics          Metrics          `json:"metrics"`
	Summary          Summary          `json:"summary"`
	SecurityScore    int              `json:"securityScore"`
	CompletionStatus CompletionStatus `json:"completionStatus"`
	Categories       []CategoryStatus `json:"categories,omitempty"`
	Signature        string           `json:"signature"`
}
