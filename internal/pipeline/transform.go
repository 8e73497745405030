package pipeline

import (
	"context"
	"log/slog"

	"github.com/couchcryptid/era5-etl/internal/domain"
	"github.com/couchcryptid/era5-etl/internal/observability"
)

// ERA5Transformer implements Transformer: it derives wind speed, relative
// humidity and vapor pressure deficit, then keeps the retained variables.
type ERA5Transformer struct {
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewTransformer creates an ERA5Transformer.
func NewTransformer(logger *slog.Logger, metrics *observability.Metrics) *ERA5Transformer {
	return &ERA5Transformer{
		logger:  logger,
		metrics: metrics,
	}
}

func (t *ERA5Transformer) Transform(_ context.Context, year int, ds *domain.Dataset) (*domain.Dataset, error) {
	if err := domain.Derive(ds); err != nil {
		return nil, err
	}

	out, err := ds.Select(domain.RetainedVariables...)
	if err != nil {
		return nil, err
	}
	if _, err := out.CommonDims(domain.RetainedVariables...); err != nil {
		return nil, err
	}

	for _, v := range out.Vars {
		t.logger.Debug("variable summary", append([]any{"year", year}, domain.Summarize(v).LogAttrs()...)...)
	}

	// rh is not clamped; supersaturated cells are reported only.
	if rh, ok := out.Var(domain.VarRH); ok {
		if n := domain.CountAbove(rh, 100); n > 0 {
			t.metrics.Supersaturated.Add(float64(n))
			t.logger.Info("relative humidity above 100%", "year", year, "cells", n)
		}
	}
	return out, nil
}
