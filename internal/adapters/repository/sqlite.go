package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"

	"github.com/safer-strategy/data-transformation-tool/pkg/metrics"
)

const (
	defaultBusyTimeout = 5 * time.Second
	defaultJournalMode = "WAL"
	timeLayout         = "2006-01-02T15:04:05.000000000Z07:00" // fixed width so text order is time order
	maxRunsLimit       = 1000
)

// SQLiteStore implements Store on a single SQLite file.
type SQLiteStore struct {
	db          *sql.DB
	busyTimeout time.Duration
	now         func() time.Time
}

// OpenSQLite opens (creating if needed) the store at path and applies
// pending migrations.
func OpenSQLite(ctx context.Context, path string, opts ...Option) (*SQLiteStore, error) {
	s := &SQLiteStore{busyTimeout: defaultBusyTimeout, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", s.dsn(path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection serializes writers; the workload is a handful of rows per run.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	s.db = db
	return s, nil
}

func (s *SQLiteStore) dsn(path string) string {
	params := url.Values{}
	params.Set("_journal_mode", defaultJournalMode)
	params.Set("_busy_timeout", strconv.FormatInt(s.busyTimeout.Milliseconds(), 10))
	params.Set("_foreign_keys", "on")
	params.Set("_txlock", "immediate")
	return path + "?" + params.Encode()
}

// migrate executes all pending goose migrations.
func migrate(db *sql.DB) error {
	goose.SetBaseFS(embedMigrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("goose set dialect: %w", err)
	}

	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}

	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func observe(op string, start time.Time) {
	metrics.RecordStoreLatency(op, float64(time.Since(start).Milliseconds()))
}

// Mapping implements Store.
func (s *SQLiteStore) Mapping(ctx context.Context, table, fingerprint string) (map[string]string, error) {
	defer observe("mapping", time.Now())

	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT mapping FROM saved_mappings WHERE table_name = ? AND fingerprint = ?`,
		table, fingerprint,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: mapping %s/%s", ErrNotFound, table, fingerprint)
	}
	if err != nil {
		return nil, fmt.Errorf("query mapping: %w", err)
	}

	// Skipped columns are stored as null.
	var stored map[string]*string
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		return nil, fmt.Errorf("decode mapping: %w", err)
	}
	out := make(map[string]string, len(stored))
	for col, f := range stored {
		if f != nil {
			out[col] = *f
		} else {
			out[col] = ""
		}
	}
	return out, nil
}

// SaveMapping implements Store.
func (s *SQLiteStore) SaveMapping(ctx context.Context, table, fingerprint string, mapping map[string]string) error {
	defer observe("save_mapping", time.Now())

	stored := make(map[string]*string, len(mapping))
	for col, f := range mapping {
		if f == "" {
			stored[col] = nil
			continue
		}
		stored[col] = &f
	}
	raw, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("encode mapping: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO saved_mappings (table_name, fingerprint, mapping, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (table_name, fingerprint) DO UPDATE SET mapping = excluded.mapping, updated_at = excluded.updated_at`,
		table, fingerprint, string(raw), s.now().UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("save mapping: %w", err)
	}
	return nil
}

// DeleteMappings implements Store.
func (s *SQLiteStore) DeleteMappings(ctx context.Context) (int64, error) {
	defer observe("delete_mappings", time.Now())

	res, err := s.db.ExecContext(ctx, `DELETE FROM saved_mappings`)
	if err != nil {
		return 0, fmt.Errorf("delete mappings: %w", err)
	}
	return res.RowsAffected()
}

// SaveRun implements Store. CreatedAt is kept from the first save.
func (s *SQLiteStore) SaveRun(ctx context.Context, run *Run) error {
	defer observe("save_run", time.Now())

	if run == nil || run.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidRun)
	}
	now := s.now().UTC()
	if run.CreatedAt.IsZero() {
		run.CreatedAt = now
	}
	run.UpdatedAt = now

	report, err := nullJSON(run.Report)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	files, err := nullJSON(run.Files)
	if err != nil {
		return fmt.Errorf("encode files: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (id, name, fingerprint, status, error, report, files, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
		   name = excluded.name,
		   fingerprint = excluded.fingerprint,
		   status = excluded.status,
		   error = excluded.error,
		   report = excluded.report,
		   files = excluded.files,
		   updated_at = excluded.updated_at`,
		run.ID, run.Name, run.Fingerprint, string(run.Status), run.Error, report, files,
		run.CreatedAt.UTC().Format(timeLayout), run.UpdatedAt.Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("save run: %w", err)
	}
	return nil
}

// Run implements Store.
func (s *SQLiteStore) Run(ctx context.Context, id string) (*Run, error) {
	defer observe("run", time.Now())

	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: run %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return run, nil
}

// Runs implements Store.
func (s *SQLiteStore) Runs(ctx context.Context, limit int) ([]*Run, error) {
	defer observe("runs", time.Now())

	if limit <= 0 || limit > maxRunsLimit {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLimit, limit)
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return out, nil
}

// Count implements Store.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count runs: %w", err)
	}
	return n, nil
}

const runColumns = `id, name, fingerprint, status, error, report, files, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*Run, error) {
	var (
		run                  Run
		status               string
		report, files        sql.NullString
		createdAt, updatedAt string
	)
	if err := row.Scan(&run.ID, &run.Name, &run.Fingerprint, &status, &run.Error, &report, &files, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan run: %w", err)
	}
	run.Status = RunStatus(status)
	if report.Valid {
		if err := json.Unmarshal([]byte(report.String), &run.Report); err != nil {
			return nil, fmt.Errorf("decode report of run %s: %w", run.ID, err)
		}
	}
	if files.Valid {
		if err := json.Unmarshal([]byte(files.String), &run.Files); err != nil {
			return nil, fmt.Errorf("decode files of run %s: %w", run.ID, err)
		}
	}
	var err error
	if run.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at of run %s: %w", run.ID, err)
	}
	if run.UpdatedAt, err = time.Parse(timeLayout, updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at of run %s: %w", run.ID, err)
	}
	return &run, nil
}

// nullJSON encodes v, storing nil maps and pointers as NULL.
func nullJSON(v any) (sql.NullString, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	if string(raw) == "null" {
		return sql.NullString{}, nil
	}
	return sql.NullString{String: string(raw), Valid: true}, nil
}
