package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/safer-strategy/data-transformation-tool/internal/domain/coerce"
	"github.com/safer-strategy/data-transformation-tool/internal/domain/derive"
	"github.com/safer-strategy/data-transformation-tool/internal/domain/headers"
	"github.com/safer-strategy/data-transformation-tool/internal/domain/identity"
	"github.com/safer-strategy/data-transformation-tool/internal/domain/model"
	"github.com/safer-strategy/data-transformation-tool/internal/domain/schema"
	"github.com/safer-strategy/data-transformation-tool/internal/domain/validate"
	"github.com/safer-strategy/data-transformation-tool/pkg/logger"
	"github.com/safer-strategy/data-transformation-tool/pkg/metrics"
)

const sampleSize = 3

// Seeds holds previously accepted mappings keyed by table name.
type Seeds map[string]headers.Mapping

// Pipeline normalizes a dataset against a schema registry. A Pipeline holds
// no per-run state and may be shared.
type Pipeline struct {
	registry *schema.Registry
	resolver *headers.Resolver
	coercer  *coerce.Coercer
	logger   logger.Logger
	now      func() time.Time
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithResolver sets the header resolver.
func WithResolver(r *headers.Resolver) PipelineOption {
	return func(p *Pipeline) {
		if r != nil {
			p.resolver = r
		}
	}
}

// WithCoercer sets the value coercer.
func WithCoercer(c *coerce.Coercer) PipelineOption {
	return func(p *Pipeline) {
		if c != nil {
			p.coercer = c
		}
	}
}

// WithPipelineLogger sets the pipeline logger.
func WithPipelineLogger(l logger.Logger) PipelineOption {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithClock overrides the time source used for run reports.
func WithClock(now func() time.Time) PipelineOption {
	return func(p *Pipeline) {
		if now != nil {
			p.now = now
		}
	}
}

// NewPipeline creates a Pipeline for registry.
func NewPipeline(registry *schema.Registry, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		registry: registry,
		resolver: headers.New(),
		coercer:  coerce.New(),
		logger:   logger.Nop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Registry returns the schema registry the pipeline normalizes against.
func (p *Pipeline) Registry() *schema.Registry { return p.registry }

// Run normalizes every known table of ds. Entity tables are processed and
// indexed before any relationship table, each group in dataset order.
// Unknown and empty tables are skipped with a warning. A structural error
// fails only its own table. Run returns an error only when ctx is done.
func (p *Pipeline) Run(ctx context.Context, ds *model.Dataset, seeds Seeds, reviewer headers.Reviewer) (*model.Result, error) {
	if reviewer == nil {
		reviewer = headers.SkipAll
	}
	report := &model.RunReport{
		ID:        uuid.NewString(),
		Dataset:   ds.Name,
		StartedAt: p.now().UTC(),
		Warnings:  append([]string(nil), ds.Warnings...),
	}
	result := &model.Result{Report: report}
	start := time.Now()

	for _, f := range ds.Failures {
		report.Tables = append(report.Tables, model.TableReport{
			Table:  f.Name,
			Source: f.Source,
			Status: model.StatusFailed,
			Reason: fmt.Errorf("%w: %w", ErrStructural, f.Err).Error(),
		})
		metrics.RecordTable(string(model.StatusFailed))
		p.logger.Error(ctx, "input unreadable", logger.String("source", f.Source), logger.Error(f.Err))
	}

	var entities, relationships []*model.RawTable
	known := make(map[*model.RawTable]*schema.Table, len(ds.Tables))
	for _, raw := range ds.Tables {
		table, ok := p.registry.Table(raw.Name)
		if !ok {
			report.Warnings = append(report.Warnings, fmt.Sprintf("unexpected table %q skipped", raw.Name))
			report.Tables = append(report.Tables, model.TableReport{
				Table:  raw.Name,
				Source: raw.Source,
				Status: model.StatusSkipped,
				Rows:   len(raw.Rows),
				Reason: ErrUnknownTable.Error(),
			})
			metrics.RecordTable(string(model.StatusSkipped))
			p.logger.Warn(ctx, "unexpected table skipped", logger.String("table", raw.Name), logger.String("source", raw.Source))
			continue
		}
		known[raw] = table
		if table.IsEntity() {
			entities = append(entities, raw)
		} else {
			relationships = append(relationships, raw)
		}
	}

	indexes := identity.NewRegistry()
	done := make(map[string]bool)
	for _, raw := range append(entities, relationships...) {
		if err := ctx.Err(); err != nil {
			metrics.RecordRun("canceled", time.Since(start))
			return nil, err
		}
		table := known[raw]
		tr := model.TableReport{Table: table.Name, Source: raw.Source, Rows: len(raw.Rows)}

		if len(raw.Rows) == 0 {
			tr.Status = model.StatusSkipped
			tr.Reason = "no rows"
			report.Warnings = append(report.Warnings, fmt.Sprintf("table %q has no rows", table.Name))
			report.Tables = append(report.Tables, tr)
			metrics.RecordTable(string(tr.Status))
			p.logger.Warn(ctx, "empty table skipped", logger.String("table", table.Name))
			continue
		}

		var part *model.Partition
		var err error
		if done[table.Name] {
			err = fmt.Errorf("%w: %w: %s", ErrStructural, ErrDuplicateTable, table.Name)
		} else {
			part, err = p.Table(ctx, table, raw, seeds[table.Name], reviewer, indexes, &tr)
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				metrics.RecordRun("canceled", time.Since(start))
				return nil, ctxErr
			}
			tr.Status = model.StatusFailed
			tr.Reason = err.Error()
			report.Tables = append(report.Tables, tr)
			metrics.RecordTable(string(tr.Status))
			p.logger.Error(ctx, "table failed", logger.String("table", table.Name), logger.Error(err))
			continue
		}
		done[table.Name] = true
		tr.Status = model.StatusNormalized
		report.Tables = append(report.Tables, tr)
		result.Partitions = append(result.Partitions, part)
		metrics.RecordTable(string(tr.Status))
	}

	report.FinishedAt = p.now().UTC()
	outcome := "ok"
	if report.Failed() {
		outcome = "partial"
	}
	metrics.RecordRun(outcome, time.Since(start))
	valid, invalid := report.Totals()
	p.logger.Info(ctx, "run finished",
		logger.String("run", report.ID),
		logger.String("dataset", ds.Name),
		logger.Int("valid", valid),
		logger.Int("invalid", invalid),
		logger.Int("warnings", len(report.Warnings)),
	)
	return result, nil
}

// Table normalizes one raw table. Entity tables are indexed into indexes
// after normalization; relationship tables are resolved against it and
// rejected with ErrEntityNotIndexed when a referenced entity is missing.
// tr, when non-nil, receives the table's counts and mapping.
func (p *Pipeline) Table(
	ctx context.Context,
	table *schema.Table,
	raw *model.RawTable,
	seed headers.Mapping,
	reviewer headers.Reviewer,
	indexes *identity.Registry,
	tr *model.TableReport,
) (*model.Partition, error) {
	if tr == nil {
		tr = &model.TableReport{Table: table.Name, Source: raw.Source, Rows: len(raw.Rows)}
	}
	if !table.IsEntity() {
		if missing := indexes.Missing(table); len(missing) > 0 {
			return nil, fmt.Errorf("%w: %w: %s needs %v", ErrStructural, ErrEntityNotIndexed, table.Name, missing)
		}
	}

	mapping, err := p.mapping(ctx, table, raw, seed, reviewer)
	if err != nil {
		return nil, err
	}
	tr.Fingerprint = headers.Fingerprint(raw.Columns)
	tr.Mapping = mapping

	records := make([]*model.Record, 0, len(raw.Rows))
	for i, row := range raw.Rows {
		rec, failed := p.coercer.Record(table, mapping, raw.Columns, row, i)
		for _, f := range failed {
			metrics.RecordCoercionFailure(f)
			p.logger.Debug(ctx, "value not coercible",
				logger.String("table", table.Name),
				logger.Int("row", i),
				logger.String("field", f),
			)
		}
		records = append(records, rec)
	}

	if assigned := derive.Table(table, records); len(assigned) > 0 {
		p.logger.Debug(ctx, "derived fields", logger.String("table", table.Name), logger.Any("counts", assigned))
	}

	if table.IsEntity() {
		ix, err := identity.Build(table, records)
		if err != nil && !errors.Is(err, identity.ErrNoIdentity) {
			return nil, fmt.Errorf("%w: %w", ErrStructural, err)
		}
		if ix != nil && !indexes.Add(ix) {
			return nil, fmt.Errorf("%w: %w: %s", ErrStructural, ErrDuplicateTable, table.Name)
		}
	} else {
		orphans, err := indexes.Resolve(table, records)
		if err != nil {
			return nil, fmt.Errorf("%w: %w: %w", ErrStructural, ErrEntityNotIndexed, err)
		}
		tr.Orphans = orphans
		for range orphans {
			metrics.RecordOrphanReference(table.Name)
		}
	}

	part := validate.Partition(table, records)
	tr.Valid = len(part.Valid)
	tr.Invalid = len(part.Invalid)
	tr.Violations = validate.Summary(part)
	metrics.RecordRecords(table.Name, "valid", tr.Valid)
	metrics.RecordRecords(table.Name, "invalid", tr.Invalid)

	p.logger.Info(ctx, "table normalized",
		logger.String("table", table.Name),
		logger.Int("rows", len(records)),
		logger.Int("valid", tr.Valid),
		logger.Int("invalid", tr.Invalid),
		logger.Int("orphans", tr.Orphans),
	)
	return part, nil
}

// mapping prefers a seed that still covers the columns exactly, and
// otherwise resolves the headers and hands pending columns to reviewer.
func (p *Pipeline) mapping(ctx context.Context, table *schema.Table, raw *model.RawTable, seed headers.Mapping, reviewer headers.Reviewer) (headers.Mapping, error) {
	if seed != nil {
		res, err := p.resolver.Seeded(table, raw.Columns, seed)
		if err == nil {
			for range res.Matches {
				metrics.RecordHeaderResolution(string(headers.SourceSeed))
			}
			p.logger.Debug(ctx, "using saved mapping", logger.String("table", table.Name))
			return res.Mapping(), nil
		}
		p.logger.Warn(ctx, "saved mapping ignored", logger.String("table", table.Name), logger.Error(err))
	}

	res := p.resolver.Resolve(table, raw.Columns)
	for _, m := range res.Matches {
		metrics.RecordHeaderResolution(string(m.Source))
	}
	if res.Done() {
		return res.Mapping(), nil
	}

	for i := range res.Pending {
		metrics.RecordHeaderResolution(string(res.Pending[i].Tier))
		res.Pending[i].Samples = raw.Sample(res.Pending[i].Column, sampleSize)
	}
	dispositions, err := reviewer.Review(ctx, res)
	if err != nil {
		return nil, fmt.Errorf("review %s: %w", table.Name, err)
	}
	mapping, err := res.Apply(dispositions)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStructural, err)
	}
	for _, pend := range res.Pending {
		decision := "skip"
		if mapping[pend.Column] != "" {
			decision = "assign"
		}
		metrics.RecordReviewDisposition(decision)
	}
	return mapping, nil
}
