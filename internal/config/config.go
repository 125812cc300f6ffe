package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"secscan/internal/aggregate"
	"secscan/internal/enumerate"
	"secscan/internal/model"
	"secscan/internal/report"
	"secscan/internal/scan"
)

const (
	DirName                 = ".secscan"
	FileName                = "config.yaml"
	DefaultScheduleInterval = time.Hour
	maxWorkers              = 64
	maxBatchSize            = 10000
)

// Config mirrors the YAML keys. Nil and empty values mean "not set".
type Config struct {
	ScanCode           *bool    `yaml:"scanCode,omitempty"`
	ScanDependencies   *bool    `yaml:"scanDependencies,omitempty"`
	ScanConfigurations *bool    `yaml:"scanConfigurations,omitempty"`
	ScanEndpoints      *bool    `yaml:"scanEndpoints,omitempty"`
	FileExtensions     []string `yaml:"fileExtensions,omitempty"`
	ExcludeDirectories []string `yaml:"excludeDirectories,omitempty"`
	ReportPath         string   `yaml:"reportPath,omitempty"`
	Workers            *int     `yaml:"workers,omitempty"`
	BatchSize          *int     `yaml:"batchSize,omitempty"`
	SubScanTimeout     string   `yaml:"subScanTimeout,omitempty"`
	MaxFileBytes       *int64   `yaml:"maxFileBytes,omitempty"`
	RulesDir           string   `yaml:"rulesDir,omitempty"`
	AdvisoriesFile     string   `yaml:"advisoriesFile,omitempty"`
	SuppressionsFile   string   `yaml:"suppressionsFile,omitempty"`
	ScheduleInterval   string   `yaml:"scheduleInterval,omitempty"`
	Scoring            Scoring  `yaml:"scoring,omitempty"`
	Debug              *bool    `yaml:"debug,omitempty"`
}

// Scoring overrides individual severity weights.
type Scoring struct {
	Critical *int `yaml:"critical,omitempty"`
	High     *int `yaml:"high,omitempty"`
	Medium   *int `yaml:"medium,omitempty"`
	Low      *int `yaml:"low,omitempty"`
}

// Settings is a Config with every default applied.
type Settings struct {
	Categories       []model.ScanCategory
	FileExtensions   []string
	ExcludeDirs      []string
	ReportPath       string
	Workers          int
	BatchSize        int
	SubScanTimeout   time.Duration
	MaxFileBytes     int64
	RulesDir         string
	AdvisoriesFile   string
	SuppressionsFile string
	ScheduleInterval time.Duration
	Weights          aggregate.Weights
	Debug            bool
}

// Load reads config from layered sources:
//  1. ~/.secscan/config.yaml (global)
//  2. ./.secscan/config.yaml (repo-local, takes precedence)
//  3. explicit, when non-empty; it must exist
//
// Missing layer files are silently ignored.
func Load(explicit string) (Config, error) {
	home, _ := os.UserHomeDir()
	cwd, _ := os.Getwd()

	var merged Config
	for _, layer := range []struct{ name, path string }{
		{"global", joinIf(home, DirName, FileName)},
		{"local", joinIf(cwd, DirName, FileName)},
	} {
		if layer.path == "" {
			continue
		}
		cfg, err := loadFile(layer.path)
		if err != nil {
			return Config{}, fmt.Errorf("load %s config %s: %w", layer.name, layer.path, err)
		}
		merged = Merge(merged, cfg)
	}

	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return Config{}, fmt.Errorf("load config %s: %w", explicit, err)
		}
		cfg, err := loadFile(explicit)
		if err != nil {
			return Config{}, fmt.Errorf("load config %s: %w", explicit, err)
		}
		merged = Merge(merged, cfg)
	}
	return merged, nil
}

func joinIf(base string, elem ...string) string {
	if base == "" {
		return ""
	}
	return filepath.Join(append([]string{base}, elem...)...)
}

func loadFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Config{}, nil
		}
		return Config{}, err
	}
	data = []byte(strings.TrimSpace(string(data)))
	if len(data) == 0 {
		return Config{}, nil
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// Merge applies overrides from b onto a. Set fields in b win.
func Merge(a, b Config) Config {
	pick(&a.ScanCode, b.ScanCode)
	pick(&a.ScanDependencies, b.ScanDependencies)
	pick(&a.ScanConfigurations, b.ScanConfigurations)
	pick(&a.ScanEndpoints, b.ScanEndpoints)
	pick(&a.Workers, b.Workers)
	pick(&a.BatchSize, b.BatchSize)
	pick(&a.MaxFileBytes, b.MaxFileBytes)
	pick(&a.Debug, b.Debug)
	pick(&a.Scoring.Critical, b.Scoring.Critical)
	pick(&a.Scoring.High, b.Scoring.High)
	pick(&a.Scoring.Medium, b.Scoring.Medium)
	pick(&a.Scoring.Low, b.Scoring.Low)
	if b.FileExtensions != nil {
		a.FileExtensions = b.FileExtensions
	}
	if b.ExcludeDirectories != nil {
		a.ExcludeDirectories = b.ExcludeDirectories
	}
	if b.ReportPath != "" {
		a.ReportPath = b.ReportPath
	}
	if b.SubScanTimeout != "" {
		a.SubScanTimeout = b.SubScanTimeout
	}
	if b.RulesDir != "" {
		a.RulesDir = b.RulesDir
	}
	if b.AdvisoriesFile != "" {
		a.AdvisoriesFile = b.AdvisoriesFile
	}
	if b.SuppressionsFile != "" {
		a.SuppressionsFile = b.SuppressionsFile
	}
	if b.ScheduleInterval != "" {
		a.ScheduleInterval = b.ScheduleInterval
	}
	return a
}

func pick[T any](dst **T, src *T) {
	if src != nil {
		*dst = src
	}
}

// Validate reports every invalid value at once.
func (c Config) Validate() error {
	var errs []error
	if c.Workers != nil && (*c.Workers < 1 || *c.Workers > maxWorkers) {
		errs = append(errs, fmt.Errorf("workers must be between 1 and %d, got %d", maxWorkers, *c.Workers))
	}
	if c.BatchSize != nil && (*c.BatchSize < 1 || *c.BatchSize > maxBatchSize) {
		errs = append(errs, fmt.Errorf("batchSize must be between 1 and %d, got %d", maxBatchSize, *c.BatchSize))
	}
	if c.MaxFileBytes != nil && *c.MaxFileBytes < 1 {
		errs = append(errs, fmt.Errorf("maxFileBytes must be positive, got %d", *c.MaxFileBytes))
	}
	if _, err := parsePositiveDuration("subScanTimeout", c.SubScanTimeout); err != nil {
		errs = append(errs, err)
	}
	if _, err := parsePositiveDuration("scheduleInterval", c.ScheduleInterval); err != nil {
		errs = append(errs, err)
	}
	for _, w := range []struct {
		name string
		v    *int
	}{
		{"critical", c.Scoring.Critical}, {"high", c.Scoring.High},
		{"medium", c.Scoring.Medium}, {"low", c.Scoring.Low},
	} {
		if w.v != nil && *w.v < 0 {
			errs = append(errs, fmt.Errorf("scoring.%s must not be negative, got %d", w.name, *w.v))
		}
	}
	for _, ext := range c.FileExtensions {
		if strings.TrimSpace(ext) == "" {
			errs = append(errs, errors.New("fileExtensions must not contain empty entries"))
			break
		}
	}
	if !enabled(c.ScanCode) && !enabled(c.ScanDependencies) && !enabled(c.ScanConfigurations) && !enabled(c.ScanEndpoints) {
		errs = append(errs, errors.New("at least one of scanCode, scanDependencies, scanConfigurations, scanEndpoints must be enabled"))
	}
	return errors.Join(errs...)
}

// Resolve validates c and fills in defaults.
func (c Config) Resolve() (Settings, error) {
	if err := c.Validate(); err != nil {
		return Settings{}, err
	}
	s := Settings{
		FileExtensions:   c.FileExtensions,
		ExcludeDirs:      c.ExcludeDirectories,
		ReportPath:       orDefault(c.ReportPath, report.DefaultDir),
		Workers:          deref(c.Workers, scan.DefaultWorkers),
		BatchSize:        deref(c.BatchSize, scan.DefaultBatchSize),
		MaxFileBytes:     deref(c.MaxFileBytes, enumerate.DefaultMaxFileBytes),
		RulesDir:         c.RulesDir,
		AdvisoriesFile:   c.AdvisoriesFile,
		SuppressionsFile: c.SuppressionsFile,
		Debug:            deref(c.Debug, false),
	}
	if len(s.FileExtensions) == 0 {
		s.FileExtensions = enumerate.DefaultExtensions
	}
	if s.ExcludeDirs == nil {
		s.ExcludeDirs = enumerate.DefaultExcludeDirs
	}
	s.SubScanTimeout, _ = parsePositiveDuration("subScanTimeout", c.SubScanTimeout)
	if s.SubScanTimeout == 0 {
		s.SubScanTimeout = scan.DefaultSubScanTimeout
	}
	s.ScheduleInterval, _ = parsePositiveDuration("scheduleInterval", c.ScheduleInterval)
	if s.ScheduleInterval == 0 {
		s.ScheduleInterval = DefaultScheduleInterval
	}

	def := aggregate.DefaultWeights()
	s.Weights = aggregate.Weights{
		Critical: deref(c.Scoring.Critical, def.Critical),
		High:     deref(c.Scoring.High, def.High),
		Medium:   deref(c.Scoring.Medium, def.Medium),
		Low:      deref(c.Scoring.Low, def.Low),
	}

	for _, cat := range []struct {
		on  *bool
		cat model.ScanCategory
	}{
		{c.ScanDependencies, model.ScanDependencies},
		{c.ScanCode, model.ScanCode},
		{c.ScanConfigurations, model.ScanConfiguration},
		{c.ScanEndpoints, model.ScanEndpoints},
	} {
		if enabled(cat.on) {
			s.Categories = append(s.Categories, cat.cat)
		}
	}
	return s, nil
}

// enabled treats an unset toggle as on.
func enabled(b *bool) bool {
	return b == nil || *b
}

func deref[T any](p *T, def T) T {
	if p == nil {
		return def
	}
	return *p
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

func parsePositiveDuration(key, raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %s", key, raw)
	}
	return d, nil
}
