// Package doctor provides preflight checks for an anonymizer deployment.
// Used by `presidio doctor` before putting a node into service.
package doctor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/prokopidis/presidio/internal/config"
	"github.com/prokopidis/presidio/internal/detector"
	"github.com/prokopidis/presidio/internal/task"
)

// CheckResult is a single doctor check outcome.
type CheckResult struct {
	Name    string `json:"name"`
	Status  string `json:"status"` // pass, warn, fail
	Message string `json:"message"`
	Fix     string `json:"fix,omitempty"`
}

// Summary tallies pass/warn/fail counts.
type Summary struct {
	Pass int `json:"pass"`
	Warn int `json:"warn"`
	Fail int `json:"fail"`
}

// Report is the complete doctor output. Status is the worst of all checks.
type Report struct {
	Status  string        `json:"status"`
	Checks  []CheckResult `json:"checks"`
	Summary Summary       `json:"summary"`
}

// Run executes all checks and returns a report.
func Run(ctx context.Context) *Report {
	report := &Report{}

	cfg, err := config.Load()
	if err != nil {
		report.Checks = append(report.Checks, CheckResult{
			Name: "config_load", Status: "fail",
			Message: fmt.Sprintf("cannot load config: %v", err),
			Fix:     "check PRESIDIO_* env vars and presidio.config.yaml",
		})
	} else {
		report.Checks = append(report.Checks, checkDataDir(cfg))
		report.Checks = append(report.Checks, checkRecognizers(cfg))
		report.Checks = append(report.Checks, checkEntityCoverage(cfg))
		report.Checks = append(report.Checks, checkTaskDB(ctx, cfg))
	}

	for _, c := range report.Checks {
		switch c.Status {
		case "pass":
			report.Summary.Pass++
		case "warn":
			report.Summary.Warn++
		case "fail":
			report.Summary.Fail++
		}
	}

	report.Status = "pass"
	if report.Summary.Warn > 0 {
		report.Status = "warn"
	}
	if report.Summary.Fail > 0 {
		report.Status = "fail"
	}
	return report
}

func checkDataDir(cfg *config.Config) CheckResult {
	if err := cfg.EnsureDataDir(); err != nil {
		return CheckResult{
			Name: "data_dir_writable", Status: "fail",
			Message: fmt.Sprintf("%s — %v", cfg.DataDir, err),
			Fix:     "ensure the directory exists and is writable",
		}
	}
	testFile := filepath.Join(cfg.DataDir, ".doctor-write-test")
	if err := os.WriteFile(testFile, []byte("ok"), 0o600); err != nil {
		return CheckResult{
			Name: "data_dir_writable", Status: "fail",
			Message: fmt.Sprintf("%s not writable — %v", cfg.DataDir, err),
		}
	}
	_ = os.Remove(testFile)
	return CheckResult{
		Name: "data_dir_writable", Status: "pass",
		Message: fmt.Sprintf("%s (writable)", cfg.DataDir),
	}
}

// checkRecognizers compiles the full recognizer set, including the global
// pattern file when one is configured, so a bad regex fails here instead of
// on the first request.
func checkRecognizers(cfg *config.Config) CheckResult {
	opts := []detector.Option{}
	if cfg.PatternFile != "" {
		if _, err := os.Stat(cfg.PatternFile); err != nil {
			return CheckResult{
				Name: "recognizers_compile", Status: "warn",
				Message: fmt.Sprintf("pattern file %s not readable: %v", cfg.PatternFile, err),
				Fix:     "fix pattern_file or remove it from the config",
			}
		}
		opts = append(opts, detector.WithPatternFile(cfg.PatternFile))
	}
	if _, err := detector.New(opts...); err != nil {
		return CheckResult{
			Name: "recognizers_compile", Status: "fail",
			Message: err.Error(),
			Fix:     "fix the offending regex in the recognizer YAML",
		}
	}
	return CheckResult{
		Name: "recognizers_compile", Status: "pass",
		Message: "all recognizer patterns compile",
	}
}

// checkEntityCoverage warns about configured entity types no recognizer can
// produce. They are not errors: an external NER detector may contribute them.
func checkEntityCoverage(cfg *config.Config) CheckResult {
	recs, err := detector.DefaultRecognizers()
	if err != nil {
		return CheckResult{
			Name: "entity_coverage", Status: "fail",
			Message: fmt.Sprintf("loading default recognizers: %v", err),
		}
	}
	covered := make(map[string]bool, len(recs))
	for _, r := range recs {
		covered[r.SupportedEntity] = true
	}

	var uncovered []string
	for _, e := range cfg.Entities {
		if !covered[e] {
			uncovered = append(uncovered, e)
		}
	}
	if len(uncovered) > 0 {
		return CheckResult{
			Name: "entity_coverage", Status: "warn",
			Message: fmt.Sprintf("no built-in recognizer for: %v", uncovered),
			Fix:     "add recognizers via pattern_file or rely on an external detector",
		}
	}
	return CheckResult{
		Name: "entity_coverage", Status: "pass",
		Message: fmt.Sprintf("all %d configured entity types have recognizers", len(cfg.Entities)),
	}
}

func checkTaskDB(ctx context.Context, cfg *config.Config) CheckResult {
	store, err := task.NewStore(cfg.TaskDBPath())
	if err != nil {
		return CheckResult{
			Name: "task_db", Status: "fail",
			Message: fmt.Sprintf("%s — %v", cfg.TaskDBPath(), err),
			Fix:     "check data directory permissions or remove a corrupt tasks.db",
		}
	}
	defer store.Close()

	// a not-found answer proves the schema is queryable
	if _, err := store.Get(ctx, "doctor-probe"); err != nil && !errors.Is(err, task.ErrTaskNotFound) {
		return CheckResult{
			Name: "task_db", Status: "fail",
			Message: fmt.Sprintf("querying %s: %v", cfg.TaskDBPath(), err),
		}
	}
	return CheckResult{
		Name: "task_db", Status: "pass",
		Message: fmt.Sprintf("%s (schema ok)", cfg.TaskDBPath()),
	}
}
