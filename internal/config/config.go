// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults.
// - Load layers a YAML file and environment variables over the defaults.
// - Errors are wrapped with this package's sentinel kinds.
package config

import (
	"fmt"
	"runtime"
	"strings"
)

// Review policies for columns the header resolver could not settle.
const (
	ReviewPrompt = "prompt"
	ReviewAccept = "accept"
	ReviewSkip   = "skip"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFile, when set, receives a copy of the log output.
	LogFile string `koanf:"log_file"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// SchemaPath points to a YAML schema; empty selects the embedded default.
	SchemaPath string `koanf:"schema_path"`

	// StorePath is the SQLite file holding saved mappings and run history.
	StorePath string `koanf:"store_path"`

	// OutputDir receives converted and invalid workbooks.
	OutputDir string `koanf:"output_dir"`

	// UploadDir receives files posted to the HTTP API.
	UploadDir string `koanf:"upload_dir"`

	// DatetimeLayouts are Go time layouts tried in order for datetime fields.
	// Empty keeps the built-in list.
	DatetimeLayouts []string `koanf:"datetime_layouts"`

	// AcceptThreshold is the fuzzy score at or above which a header is auto-accepted.
	AcceptThreshold float64 `koanf:"accept_threshold"`

	// ReviewThreshold is the fuzzy score at or above which a header is offered for review.
	ReviewThreshold float64 `koanf:"review_threshold"`

	// ReviewPolicy decides pending headers: prompt, accept or skip.
	ReviewPolicy string `koanf:"review_policy"`

	// QueueSize bounds the in-memory run queue.
	QueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of run workers.
	WorkerCount int `koanf:"worker_count"`

	// DedupeSize sets the number of upload fingerprints remembered.
	DedupeSize int `koanf:"dedupe_size"`

	// MaxUploadMB caps the size of an uploaded file.
	MaxUploadMB int `koanf:"max_upload_mb"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:        "info",
		Addr:            ":9080",
		StorePath:       "idnorm.db",
		OutputDir:       "converts",
		UploadDir:       "uploads",
		AcceptThreshold: 80,
		ReviewThreshold: 50,
		ReviewPolicy:    ReviewPrompt,
		QueueSize:       64,
		WorkerCount:     runtime.NumCPU(),
		DedupeSize:      1024,
		MaxUploadMB:     32,
	}
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.AcceptThreshold <= 0 || c.AcceptThreshold > 100:
		return fmt.Errorf("%w: accept_threshold must be in (0, 100]", ErrInvalidConfig)
	case c.ReviewThreshold < 0 || c.ReviewThreshold > c.AcceptThreshold:
		return fmt.Errorf("%w: review_threshold must be in [0, accept_threshold]", ErrInvalidConfig)
	case c.WorkerCount <= 0:
		return fmt.Errorf("%w: worker_count must be positive", ErrInvalidConfig)
	case c.QueueSize <= 0:
		return fmt.Errorf("%w: queue_size must be positive", ErrInvalidConfig)
	case c.MaxUploadMB <= 0:
		return fmt.Errorf("%w: max_upload_mb must be positive", ErrInvalidConfig)
	}
	switch strings.ToLower(c.ReviewPolicy) {
	case ReviewPrompt, ReviewAccept, ReviewSkip:
	default:
		return fmt.Errorf("%w: unknown review_policy %q", ErrInvalidConfig, c.ReviewPolicy)
	}
	return nil
}
