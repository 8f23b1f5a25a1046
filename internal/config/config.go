// Package config holds operator-level configuration for an anonymizer
// deployment: data directory, detector tuning, task queue sizing, and rate
// limits. Set via env vars (PRESIDIO_*) or presidio.config.yaml.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Viper keys. Each maps to an env var with the PRESIDIO_ prefix
// (e.g. "task_workers" → PRESIDIO_TASK_WORKERS) and to a YAML field in
// presidio.config.yaml.
const (
	KeyDataDir      = "data_dir"
	KeyEntities     = "entities"
	KeyPatternFile  = "pattern_file"
	KeyMinScore     = "min_score"
	KeyReversible   = "reversible"
	KeyTaskWorkers  = "task_workers"
	KeyTaskBuffer   = "task_buffer"
	KeyResultTTL    = "result_ttl"
	KeyGlobalRPM    = "global_rpm"
	KeyPerCallerRPM = "per_caller_rpm"
)

const (
	DefaultTaskWorkers  = 4
	DefaultTaskBuffer   = 64
	DefaultResultTTL    = 24 * time.Hour
	DefaultGlobalRPM    = 300
	DefaultPerCallerRPM = 60
)

// DefaultEntities is the entity set anonymized when none is configured,
// matching the recognizers shipped in the embedded pattern file plus the
// NER-produced types an external detector may contribute.
var DefaultEntities = []string{
	"PERSON", "LOCATION", "IBAN_CODE", "CREDIT_CARD", "PHONE_NUMBER", "EMAIL_ADDRESS",
}

// Config holds resolved operator-level configuration for one process.
type Config struct {
	DataDir      string        // Base directory for all state (~/.presidio)
	Entities     []string      // Entity types to anonymize
	PatternFile  string        // Optional global recognizer YAML overrides
	MinScore     float64       // Detector minimum confidence (0 = default)
	Reversible   bool          // Emit entity mappings for deanonymization
	TaskWorkers  int           // Queue worker count
	TaskBuffer   int           // Queue job buffer size
	ResultTTL    time.Duration // Retention for finished task results
	GlobalRPM    int           // Total requests/minute across callers
	PerCallerRPM int           // Requests/minute per remote caller
}

// TaskDBPath returns the full path to the task result SQLite database.
func (c *Config) TaskDBPath() string {
	return filepath.Join(c.DataDir, "tasks.db")
}

// EnsureDataDir creates the data directory if it doesn't exist.
func (c *Config) EnsureDataDir() error {
	return os.MkdirAll(c.DataDir, 0o700)
}

func init() {
	viper.SetEnvPrefix("PRESIDIO")
	viper.AutomaticEnv()
	viper.SetDefault(KeyTaskWorkers, DefaultTaskWorkers)
	viper.SetDefault(KeyTaskBuffer, DefaultTaskBuffer)
	viper.SetDefault(KeyResultTTL, DefaultResultTTL)
	viper.SetDefault(KeyGlobalRPM, DefaultGlobalRPM)
	viper.SetDefault(KeyPerCallerRPM, DefaultPerCallerRPM)
}

// Load reads configuration from Viper (which merges env vars, config file,
// and defaults) and returns a validated Config.
func Load() (*Config, error) {
	cfg := &Config{
		DataDir:      resolveDataDir(),
		Entities:     viper.GetStringSlice(KeyEntities),
		PatternFile:  viper.GetString(KeyPatternFile),
		MinScore:     viper.GetFloat64(KeyMinScore),
		Reversible:   viper.GetBool(KeyReversible),
		TaskWorkers:  viper.GetInt(KeyTaskWorkers),
		TaskBuffer:   viper.GetInt(KeyTaskBuffer),
		ResultTTL:    viper.GetDuration(KeyResultTTL),
		GlobalRPM:    viper.GetInt(KeyGlobalRPM),
		PerCallerRPM: viper.GetInt(KeyPerCallerRPM),
	}

	if len(cfg.Entities) == 0 {
		cfg.Entities = DefaultEntities
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func resolveDataDir() string {
	if dir := viper.GetString(KeyDataDir); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".presidio"
	}
	return filepath.Join(home, ".presidio")
}

func (c *Config) validate() error {
	if c.TaskWorkers <= 0 {
		return fmt.Errorf("task_workers must be positive")
	}
	if c.TaskBuffer <= 0 {
		return fmt.Errorf("task_buffer must be positive")
	}
	if c.ResultTTL <= 0 {
		return fmt.Errorf("result_ttl must be positive")
	}
	if c.MinScore < 0 || c.MinScore > 1 {
		return fmt.Errorf("min_score must be within [0, 1]")
	}
	if c.GlobalRPM <= 0 || c.PerCallerRPM <= 0 {
		return fmt.Errorf("rate limits must be positive")
	}
	return nil
}
