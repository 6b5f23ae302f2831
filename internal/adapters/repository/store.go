// Package repository persists saved header mappings and run history.
package repository

import (
	"context"
	"time"

	"github.com/safer-strategy/data-transformation-tool/internal/domain/model"
)

// RunStatus is the lifecycle state of a run.
type RunStatus string

// Run statuses.
const (
	RunQueued  RunStatus = "queued"
	RunRunning RunStatus = "running"
	RunDone    RunStatus = "done"
	RunFailed  RunStatus = "failed"
)

// Output file kinds.
const (
	FileConverted = "converted"
	FileInvalid   = "invalid"
)

// Run is one entry of the run history.
type Run struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Fingerprint string            `json:"fingerprint,omitempty"`
	Status      RunStatus         `json:"status"`
	Error       string            `json:"error,omitempty"`
	Report      *model.RunReport  `json:"report,omitempty"`
	Files       map[string]string `json:"files,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// Store provides read/write access to saved mappings and runs.
type Store interface {
	// Mapping returns the saved mapping of table for a header fingerprint.
	// Returns ErrNotFound if none was saved. Skipped columns map to "".
	Mapping(ctx context.Context, table, fingerprint string) (map[string]string, error)
	// SaveMapping stores or replaces the mapping of table for fingerprint.
	SaveMapping(ctx context.Context, table, fingerprint string, mapping map[string]string) error
	// DeleteMappings forgets every saved mapping and returns how many there were.
	DeleteMappings(ctx context.Context) (int64, error)

	// SaveRun inserts or replaces a run.
	SaveRun(ctx context.Context, run *Run) error
	// Run returns a run by ID. Returns ErrNotFound if the run is unknown.
	Run(ctx context.Context, id string) (*Run, error)
	// Runs returns up to limit runs, newest first.
	Runs(ctx context.Context, limit int) ([]*Run, error)
	// Count returns the number of recorded runs.
	Count(ctx context.Context) (int, error)

	Close() error
}
