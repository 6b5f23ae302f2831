package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/safer-strategy/data-transformation-tool/internal/adapters/repository"
	service "github.com/safer-strategy/data-transformation-tool/internal/app"
	"github.com/safer-strategy/data-transformation-tool/internal/config"
	"github.com/safer-strategy/data-transformation-tool/internal/domain/coerce"
	"github.com/safer-strategy/data-transformation-tool/internal/domain/headers"
	"github.com/safer-strategy/data-transformation-tool/internal/domain/schema"
	"github.com/safer-strategy/data-transformation-tool/internal/domain/scoring"
	"github.com/safer-strategy/data-transformation-tool/pkg/logger"
)

// app holds what a subcommand needs, built from configuration.
type app struct {
	cfg      *config.Config
	log      logger.Logger
	registry *schema.Registry
	store    *repository.SQLiteStore
	svc      *service.Service
}

// setup loads configuration, initializes logging to stderr and builds the
// schema registry. withStore also opens the SQLite store and the service.
func setup(ctx context.Context, cmd *cobra.Command, flags *globalFlags, withStore bool, opts ...service.Option) (*app, error) {
	cfg, err := config.Load(ctx)
	if err != nil {
		return nil, err
	}
	if flags.schema != "" {
		cfg.SchemaPath = flags.schema
	}
	if flags.store != "" {
		cfg.StorePath = flags.store
	}

	var logOpts []logger.Option
	logOpts = append(logOpts, logger.WithWriter(cmd.ErrOrStderr()))
	if cfg.LogFile != "" {
		logOpts = append(logOpts, logger.WithFile(cfg.LogFile))
	}
	if err := logger.Init(logOpts...); err != nil {
		return nil, err
	}
	level := cfg.LogLevel
	if flags.logLevel != "" {
		level = flags.logLevel
	}
	log := logger.Get()
	if err := logger.SetLevelString(level); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", level), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	registry, err := loadSchema(cfg.SchemaPath)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, log: log, registry: registry}
	if !withStore {
		return a, nil
	}

	store, err := repository.OpenSQLite(ctx, cfg.StorePath)
	if err != nil {
		return nil, err
	}
	a.store = store

	pipeline := service.NewPipeline(registry,
		service.WithResolver(headers.New(headers.WithScorer(
			scoring.NewLevenshteinScorer(scoring.WithThresholds(cfg.AcceptThreshold, cfg.ReviewThreshold)),
		))),
		service.WithCoercer(coerce.New(coerce.WithLayouts(cfg.DatetimeLayouts))),
		service.WithPipelineLogger(log.Named("pipeline")),
	)
	a.svc = service.New(pipeline, store, append([]service.Option{
		service.WithLogger(log),
		service.WithOutputDir(cfg.OutputDir),
		service.WithUploadDir(cfg.UploadDir),
		service.WithWorkerCount(cfg.WorkerCount),
		service.WithQueueSize(cfg.QueueSize),
		service.WithDedupeSize(cfg.DedupeSize),
		service.WithReviewPolicy(cfg.ReviewPolicy),
	}, opts...)...)
	return a, nil
}

func (a *app) close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn(context.Background(), "closing store", logger.Error(err))
		}
	}
	_ = logger.Sync()
}

func loadSchema(path string) (*schema.Registry, error) {
	if path == "" {
		return schema.Default()
	}
	return schema.LoadFile(path)
}

func printf(w io.Writer, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}

// stdinFile returns the command input as a file when it is one.
func stdinFile(cmd *cobra.Command) *os.File {
	if f, ok := cmd.InOrStdin().(*os.File); ok {
		return f
	}
	return nil
}
