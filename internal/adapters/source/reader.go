// Package source reads input files into raw tables. A CSV file is one table
// named after the file; a workbook holds one table per sheet.
package source

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/safer-strategy/data-transformation-tool/internal/domain/model"
	"github.com/safer-strategy/data-transformation-tool/pkg/logger"
)

// Supported file extensions.
const (
	ExtCSV  = ".csv"
	ExtXLSX = ".xlsx"
)

// Option configures a Reader.
type Option func(*Reader)

// WithParallelism bounds how many files of a directory are read at once.
func WithParallelism(n int) Option {
	return func(r *Reader) {
		if n > 0 {
			r.parallelism = n
		}
	}
}

// WithLogger sets the reader logger.
func WithLogger(l logger.Logger) Option {
	return func(r *Reader) {
		if l != nil {
			r.logger = l
		}
	}
}

// Reader loads datasets from files and directories.
type Reader struct {
	parallelism int
	logger      logger.Logger
}

// NewReader creates a Reader.
func NewReader(opts ...Option) *Reader {
	r := &Reader{parallelism: runtime.NumCPU(), logger: logger.Nop()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Supported reports whether path has a readable extension.
func Supported(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ExtCSV, ExtXLSX:
		return !strings.HasPrefix(filepath.Base(path), "~$")
	default:
		return false
	}
}

// Stem returns the file name without directory and extension.
func Stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Read loads path, which may be a file or a directory.
func (r *Reader) Read(ctx context.Context, path string) (*model.Dataset, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat input: %w", err)
	}
	if info.IsDir() {
		return r.ReadDir(ctx, path)
	}
	return r.ReadFile(ctx, path)
}

// ReadFile loads one CSV or XLSX file. The dataset is named after the file stem.
func (r *Reader) ReadFile(ctx context.Context, path string) (*model.Dataset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	defer f.Close()

	ds, err := ReadStream(path, f)
	if err != nil {
		return nil, err
	}
	r.logger.Info(ctx, "input read",
		logger.String("path", path),
		logger.Int("tables", len(ds.Tables)),
		logger.Int("warnings", len(ds.Warnings)),
	)
	return ds, nil
}

// ReadStream reads a file body; name decides the format and table naming.
func ReadStream(name string, body io.Reader) (*model.Dataset, error) {
	ds := &model.Dataset{Name: Stem(name)}
	switch strings.ToLower(filepath.Ext(name)) {
	case ExtCSV:
		table, warnings, err := ReadCSV(Stem(name), body)
		if err != nil {
			return nil, err
		}
		table.Source = name
		ds.Tables = []*model.RawTable{table}
		ds.Warnings = warnings
	case ExtXLSX:
		tables, warnings, err := ReadXLSX(body)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		for _, t := range tables {
			t.Source = name
		}
		ds.Tables = tables
		ds.Warnings = warnings
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, name)
	}
	return ds, nil
}

// ReadDir loads every supported file of dir (not recursive) into one
// dataset named after the directory. Files are read in parallel and merged
// in name order. Unreadable files are listed as dataset failures.
func (r *Reader) ReadDir(ctx context.Context, dir string) (*model.Dataset, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list input directory: %w", err)
	}
	var paths []string
	for _, e := range entries {
		if !e.IsDir() && Supported(e.Name()) {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoInput, dir)
	}

	results := make([]*model.Dataset, len(paths))
	failures := make([]error, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.parallelism)
	for i, p := range paths {
		g.Go(func() error {
			ds, err := r.ReadFile(gctx, p)
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				failures[i] = err
				return nil
			}
			results[i] = ds
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := &model.Dataset{Name: filepath.Base(filepath.Clean(dir))}
	for i, ds := range results {
		if failures[i] != nil {
			r.logger.Warn(ctx, "input unreadable", logger.String("path", paths[i]), logger.Error(failures[i]))
			out.Failures = append(out.Failures, model.SourceFailure{
				Name:   filepath.Base(paths[i]),
				Source: paths[i],
				Err:    failures[i],
			})
			continue
		}
		out.Tables = append(out.Tables, ds.Tables...)
		out.Warnings = append(out.Warnings, ds.Warnings...)
	}
	if len(out.Tables) == 0 {
		if len(out.Failures) > 0 {
			return nil, out.Failures[0].Err
		}
		return nil, fmt.Errorf("%w in %s", ErrNoInput, dir)
	}
	return out, nil
}
