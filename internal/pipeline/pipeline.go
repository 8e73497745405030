package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/era5-etl/internal/domain"
	"github.com/couchcryptid/era5-etl/internal/observability"
)

// Stage names used in errors, logs and the stage_duration_seconds label.
const (
	StageExtract   = "extract"
	StageTransform = "transform"
	StageLoad      = "load"
	StageFlatten   = "flatten"
	StageMerge     = "merge"
)

// Extractor reads the raw dataset for one year.
type Extractor interface {
	Extract(ctx context.Context, year int) (*domain.Dataset, error)
}

// Transformer converts a raw yearly dataset into the processed dataset.
type Transformer interface {
	Transform(ctx context.Context, year int, ds *domain.Dataset) (*domain.Dataset, error)
}

// YearLoader persists a processed yearly dataset.
type YearLoader interface {
	LoadYear(ctx context.Context, year int, ds *domain.Dataset) error
}

// MergeLoader persists the merged table of all years.
type MergeLoader interface {
	LoadMerged(ctx context.Context, t *domain.Table) error
}

// StageError reports the year and stage at which a run failed. Year is zero
// for the merge stage.
type StageError struct {
	Year  int
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	if e.Year == 0 {
		return fmt.Sprintf("%s: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("year %d: %s: %v", e.Year, e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Pipeline orchestrates the per-year extract-transform-load run followed by
// the merge of all years.
type Pipeline struct {
	extractor   Extractor
	transformer Transformer
	yearLoader  YearLoader
	mergeLoader MergeLoader
	years       []int
	logger      *slog.Logger
	metrics     *observability.Metrics
	clock       clockwork.Clock
	ready       atomic.Bool
}

// New creates a Pipeline over years with the given stages and observability.
func New(e Extractor, t Transformer, yl YearLoader, ml MergeLoader, years []int, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	return &Pipeline{
		extractor:   e,
		transformer: t,
		yearLoader:  yl,
		mergeLoader: ml,
		years:       years,
		logger:      logger,
		metrics:     metrics,
		clock:       clockwork.NewRealClock(),
	}
}

// WithClock replaces the clock used to time stages.
func (p *Pipeline) WithClock(c clockwork.Clock) *Pipeline {
	p.clock = c
	return p
}

// Ready reports whether at least one processed year has been written.
func (p *Pipeline) Ready() bool {
	return p.ready.Load()
}

// CheckReadiness returns nil once a processed year has been written, or an
// error describing why the service is not yet ready.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not written any processed year yet")
	}
	return nil
}

// Run processes every year in order and writes the merged table. The first
// failure aborts the run and is returned as a *StageError.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("pipeline started", "years", p.years)
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	tables := make([]*domain.Table, 0, len(p.years))
	for _, year := range p.years {
		t, err := p.processYear(ctx, year)
		if err != nil {
			p.logger.Error("pipeline failed", "error", err)
			return err
		}
		tables = append(tables, t)
	}

	if err := p.merge(ctx, tables); err != nil {
		p.logger.Error("pipeline failed", "error", err)
		return err
	}

	p.metrics.LastSuccess.Set(float64(p.clock.Now().Unix()))
	p.logger.Info("pipeline finished", "years", len(p.years))
	return nil
}

// processYear runs extract, transform, load and flatten for one year.
func (p *Pipeline) processYear(ctx context.Context, year int) (*domain.Table, error) {
	var (
		raw, processed *domain.Dataset
		table          *domain.Table
	)

	err := p.stage(ctx, year, StageExtract, func() (err error) {
		raw, err = p.extractor.Extract(ctx, year)
		return err
	})
	if err != nil {
		return nil, err
	}

	err = p.stage(ctx, year, StageTransform, func() (err error) {
		processed, err = p.transformer.Transform(ctx, year, raw)
		return err
	})
	if err != nil {
		return nil, err
	}

	err = p.stage(ctx, year, StageLoad, func() error {
		return p.yearLoader.LoadYear(ctx, year, processed)
	})
	if err != nil {
		return nil, err
	}
	p.metrics.YearsProcessed.Inc()
	p.ready.Store(true)

	err = p.stage(ctx, year, StageFlatten, func() (err error) {
		table, err = domain.Flatten(processed, year)
		return err
	})
	if err != nil {
		return nil, err
	}
	p.metrics.RowsFlattened.Add(float64(table.Len()))
	p.logger.Info("year processed", "year", year, "rows", table.Len())
	return table, nil
}

func (p *Pipeline) merge(ctx context.Context, tables []*domain.Table) error {
	return p.stage(ctx, 0, StageMerge, func() error {
		merged, err := domain.Concat(tables...)
		if err != nil {
			return err
		}
		if err := p.mergeLoader.LoadMerged(ctx, merged); err != nil {
			return err
		}
		p.metrics.RowsMerged.Set(float64(merged.Len()))
		return nil
	})
}

// stage runs fn after checking ctx, records its duration and wraps its error.
func (p *Pipeline) stage(ctx context.Context, year int, name string, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return &StageError{Year: year, Stage: name, Err: err}
	}
	start := p.clock.Now()
	err := fn()
	p.metrics.StageDuration.WithLabelValues(name).Observe(p.clock.Since(start).Seconds())
	if err != nil {
		return &StageError{Year: year, Stage: name, Err: err}
	}
	return nil
}
