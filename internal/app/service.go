// Package service runs the normalization pipeline for the command line and
// for uploaded files, wiring the store, the job queue and the worker pool.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"

	jobqueue "github.com/safer-strategy/data-transformation-tool/internal/adapters/mq/queue"
	workerpool "github.com/safer-strategy/data-transformation-tool/internal/adapters/mq/worker"
	"github.com/safer-strategy/data-transformation-tool/internal/adapters/repository"
	"github.com/safer-strategy/data-transformation-tool/internal/adapters/review"
	"github.com/safer-strategy/data-transformation-tool/internal/adapters/sink"
	"github.com/safer-strategy/data-transformation-tool/internal/adapters/source"
	"github.com/safer-strategy/data-transformation-tool/internal/config"
	"github.com/safer-strategy/data-transformation-tool/internal/domain/dedupe"
	"github.com/safer-strategy/data-transformation-tool/internal/domain/headers"
	"github.com/safer-strategy/data-transformation-tool/internal/domain/model"
	"github.com/safer-strategy/data-transformation-tool/pkg/logger"
	"github.com/safer-strategy/data-transformation-tool/pkg/metrics"
)

const defaultRunsLimit = 50

// Service owns the collaborators around the pipeline.
type Service struct {
	mu sync.RWMutex

	// Core components
	pipeline   *Pipeline
	store      repository.Store
	reader     *source.Reader
	writer     *sink.Writer
	deduper    dedupe.Deduper
	jobQueue   *jobqueue.InMemoryQueue
	workerPool *workerpool.Pool

	// Configuration
	workerCount  int
	queueSize    int
	dedupeSize   int
	outputDir    string
	uploadDir    string
	reviewPolicy string

	// State
	started bool

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of worker goroutines.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the maximum number of queued runs.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets how many upload fingerprints are remembered.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithOutputDir sets where output workbooks are written.
func WithOutputDir(dir string) Option {
	return func(s *Service) {
		if dir != "" {
			s.outputDir = dir
		}
	}
}

// WithUploadDir sets where uploaded files are kept.
func WithUploadDir(dir string) Option {
	return func(s *Service) {
		if dir != "" {
			s.uploadDir = dir
		}
	}
}

// WithReviewPolicy sets how queued runs settle pending headers.
func WithReviewPolicy(policy string) Option {
	return func(s *Service) {
		if policy != "" {
			s.reviewPolicy = policy
		}
	}
}

// WithReader sets the input reader.
func WithReader(r *source.Reader) Option {
	return func(s *Service) {
		if r != nil {
			s.reader = r
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a Service. store may be nil, in which case mappings and
// runs are not persisted and queued runs cannot be looked up.
func New(pipeline *Pipeline, store repository.Store, opts ...Option) *Service {
	s := &Service{
		pipeline:     pipeline,
		store:        store,
		workerCount:  runtime.NumCPU(),
		queueSize:    64,
		dedupeSize:   1024,
		outputDir:    "converts",
		uploadDir:    "uploads",
		reviewPolicy: config.ReviewSkip,
		logger:       logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.reader == nil {
		s.reader = source.NewReader(source.WithLogger(s.logger.Named("source")))
	}
	s.writer = sink.NewWriter(s.outputDir, sink.WithLogger(s.logger.Named("sink")))
	return s
}

// Start creates the job queue and starts the worker pool.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.store == nil {
		return fmt.Errorf("%w: a store is required to accept uploads", ErrNotStarted)
	}
	if err := os.MkdirAll(s.uploadDir, 0o755); err != nil {
		return fmt.Errorf("create upload directory: %w", err)
	}

	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.jobQueue = jobqueue.NewInMemoryQueue(
		jobqueue.WithCapacity(s.queueSize),
		jobqueue.WithBufferSize(s.queueSize),
	)
	s.workerPool = workerpool.NewPool(s.workerCount, s.jobQueue, s, s.logger)
	s.workerPool.Start(ctx)

	s.started = true
	s.logger.Info(ctx, "normalization service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
		logger.String("reviewPolicy", s.reviewPolicy),
	)
	return nil
}

// Stop closes the queue and waits for running jobs.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	s.logger.Info(context.Background(), "stopping normalization service...")
	if s.workerPool != nil {
		_ = s.workerPool.Shutdown(context.Background())
	}
	s.started = false
	s.logger.Info(context.Background(), "normalization service stopped")
}

// Outcome is the result of one normalization with its output files.
type Outcome struct {
	Result *model.Result
	Files  map[string]string
}

// NormalizeOptions tune one call of Normalize.
type NormalizeOptions struct {
	// RunID overrides the generated run ID.
	RunID string
	// Fresh ignores saved mappings.
	Fresh bool
	// OutputDir overrides the service output directory.
	OutputDir string
}

// Normalize runs the pipeline over ds, seeded with saved mappings, writes
// the output workbooks and records the mappings it used.
func (s *Service) Normalize(ctx context.Context, ds *model.Dataset, reviewer headers.Reviewer, opts NormalizeOptions) (*Outcome, error) {
	seeds := Seeds{}
	if !opts.Fresh {
		seeds = s.seeds(ctx, ds)
	}

	result, err := s.pipeline.Run(ctx, ds, seeds, reviewer)
	if err != nil {
		return nil, err
	}
	if opts.RunID != "" {
		result.Report.ID = opts.RunID
	}

	writer := s.writer
	if opts.OutputDir != "" {
		writer = sink.NewWriter(opts.OutputDir, sink.WithLogger(s.logger.Named("sink")))
	}
	files, err := writer.Write(ctx, ds.Name, result.Partitions)
	if err != nil {
		return nil, fmt.Errorf("write output: %w", err)
	}

	s.saveMappings(ctx, result.Report)
	return &Outcome{Result: result, Files: files}, nil
}

// seeds loads saved mappings for the known tables of ds.
func (s *Service) seeds(ctx context.Context, ds *model.Dataset) Seeds {
	seeds := Seeds{}
	if s.store == nil {
		return seeds
	}
	for _, raw := range ds.Tables {
		table, ok := s.pipeline.Registry().Table(raw.Name)
		if !ok {
			continue
		}
		if _, done := seeds[table.Name]; done {
			continue
		}
		m, err := s.store.Mapping(ctx, table.Name, headers.Fingerprint(raw.Columns))
		if err != nil {
			if !errors.Is(err, repository.ErrNotFound) {
				s.logger.Warn(ctx, "saved mapping unavailable", logger.String("table", table.Name), logger.Error(err))
			}
			continue
		}
		seeds[table.Name] = m
	}
	return seeds
}

func (s *Service) saveMappings(ctx context.Context, report *model.RunReport) {
	if s.store == nil {
		return
	}
	for _, tr := range report.Tables {
		if tr.Status != model.StatusNormalized || tr.Mapping == nil {
			continue
		}
		if err := s.store.SaveMapping(ctx, tr.Table, tr.Fingerprint, tr.Mapping); err != nil {
			metrics.RecordErrorByComponent("service", "save_mapping")
			s.logger.Warn(ctx, "mapping not saved", logger.String("table", tr.Table), logger.Error(err))
		}
	}
}

// Record stores a finished command-line run in the run history.
func (s *Service) Record(ctx context.Context, name string, out *Outcome) error {
	if s.store == nil {
		return nil
	}
	report := out.Result.Report
	return s.store.SaveRun(ctx, &repository.Run{
		ID:        report.ID,
		Name:      name,
		Status:    repository.RunDone,
		Report:    report,
		Files:     out.Files,
		CreatedAt: report.StartedAt,
	})
}

// Submit stores an uploaded file and queues it for normalization. An upload
// whose content matches an earlier one returns that run with duplicate set.
func (s *Service) Submit(ctx context.Context, name string, body io.Reader) (*repository.Run, bool, error) {
	s.mu.RLock()
	started := s.started
	s.mu.RUnlock()
	if !started {
		return nil, false, ErrNotStarted
	}
	if !source.Supported(name) {
		return nil, false, fmt.Errorf("%w: %s", source.ErrUnsupported, name)
	}

	runID := uuid.NewString()
	path := filepath.Join(s.uploadDir, runID+filepath.Ext(name))
	fingerprint, err := saveUpload(path, body)
	if err != nil {
		return nil, false, err
	}

	if owner, seen := s.deduper.Claim(ctx, fingerprint, runID); seen {
		_ = os.Remove(path)
		run, err := s.store.Run(ctx, owner)
		if err != nil {
			return nil, true, err
		}
		s.logger.Info(ctx, "duplicate upload", logger.String("name", name), logger.String("run", owner))
		return run, true, nil
	}

	run := &repository.Run{ID: runID, Name: name, Fingerprint: fingerprint, Status: repository.RunQueued}
	if err := s.store.SaveRun(ctx, run); err != nil {
		s.deduper.Release(ctx, fingerprint)
		_ = os.Remove(path)
		return nil, false, err
	}

	job := model.Job{RunID: runID, Name: name, Path: path, Fingerprint: fingerprint, SubmittedAt: time.Now().UTC()}
	if !s.jobQueue.Enqueue(ctx, job) {
		s.deduper.Release(ctx, fingerprint)
		_ = os.Remove(path)
		cause := ErrQueueFull
		if s.jobQueue.IsClosed() {
			cause = jobqueue.ErrClosed
		}
		run.Status = repository.RunFailed
		run.Error = cause.Error()
		if err := s.store.SaveRun(ctx, run); err != nil {
			s.logger.Warn(ctx, "run state not saved", logger.String("run", runID), logger.Error(err))
		}
		return nil, false, cause
	}

	s.logger.Info(ctx, "upload queued", logger.String("run", runID), logger.String("name", name))
	return run, false, nil
}

// saveUpload writes body to path and returns its content fingerprint.
func saveUpload(path string, body io.Reader) (string, error) {
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("store upload: %w", err)
	}
	fingerprint, err := dedupe.Fingerprint(io.TeeReader(body, f))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("store upload: %w", err)
	}
	return fingerprint, nil
}

// Process runs a queued job. It implements worker.Processor.
func (s *Service) Process(ctx context.Context, job model.Job) error {
	run, err := s.store.Run(ctx, job.RunID)
	if err != nil {
		return err
	}
	run.Status = repository.RunRunning
	if err := s.store.SaveRun(ctx, run); err != nil {
		return err
	}

	out, err := s.process(ctx, job)
	if err != nil {
		run.Status = repository.RunFailed
		run.Error = err.Error()
		// Let the same content be submitted again after a failure.
		s.deduper.Release(ctx, job.Fingerprint)
	} else {
		run.Status = repository.RunDone
		run.Report = out.Result.Report
		run.Files = out.Files
	}
	if serr := s.store.SaveRun(ctx, run); serr != nil {
		return errors.Join(err, serr)
	}
	return err
}

func (s *Service) process(ctx context.Context, job model.Job) (*Outcome, error) {
	f, err := os.Open(job.Path)
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()

	// The upload is stored under the run ID; tables and outputs take the original name.
	ds, err := source.ReadStream(job.Name, f)
	if err != nil {
		return nil, err
	}
	for _, t := range ds.Tables {
		t.Source = job.Name
	}
	return s.Normalize(ctx, ds, review.ForPolicy(s.reviewPolicy), NormalizeOptions{
		RunID:     job.RunID,
		OutputDir: filepath.Join(s.outputDir, job.RunID),
	})
}

// Run returns a run by ID.
func (s *Service) Run(ctx context.Context, id string) (*repository.Run, error) {
	if s.store == nil {
		return nil, ErrRunNotFound
	}
	run, err := s.store.Run(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return run, err
}

// Runs returns the most recent runs, newest first. limit <= 0 uses a default.
func (s *Service) Runs(ctx context.Context, limit int) ([]*repository.Run, error) {
	if s.store == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = defaultRunsLimit
	}
	return s.store.Runs(ctx, limit)
}

// File returns the path of an output workbook of a finished run.
func (s *Service) File(ctx context.Context, id, kind string) (string, error) {
	run, err := s.Run(ctx, id)
	if err != nil {
		return "", err
	}
	path, ok := run.Files[kind]
	if !ok {
		return "", fmt.Errorf("%w: no %s file for run %s", ErrRunNotFound, kind, id)
	}
	return path, nil
}

// ResetMappings forgets all saved mappings.
func (s *Service) ResetMappings(ctx context.Context) (int64, error) {
	if s.store == nil {
		return 0, nil
	}
	return s.store.DeleteMappings(ctx)
}

// Reader returns the input reader.
func (s *Service) Reader() *source.Reader { return s.reader }

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats(ctx context.Context) map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]any{
		"started":      s.started,
		"workerCount":  s.workerCount,
		"queueSize":    s.queueSize,
		"dedupeSize":   s.dedupeSize,
		"reviewPolicy": s.reviewPolicy,
	}

	if s.started {
		stats["queueLength"] = s.jobQueue.Len(ctx)
		stats["fingerprints"] = s.deduper.Size()
		stats["processed"] = s.workerPool.Processed()
	}
	if s.store != nil {
		if n, err := s.store.Count(ctx); err == nil {
			stats["totalRuns"] = n
		}
	}
	return stats
}
