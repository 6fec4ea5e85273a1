// Package pipeline orchestrates one report run: fetch observations, compute
// metrics, build the report bundle, and fan out to the renderers. A run is
// single-threaded, one-shot, and idempotent given the same input snapshot.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/couchcryptid/covid-state-metrics/internal/domain"
	"github.com/couchcryptid/covid-state-metrics/internal/observability"
	"github.com/couchcryptid/covid-state-metrics/internal/report"
)

// ObservationSource fetches the full observation snapshot. The call is
// synchronous and one-shot; a failure aborts the run.
type ObservationSource interface {
	FetchObservations(ctx context.Context) ([]domain.Observation, error)
}

// Renderer materializes a report bundle into output files.
type Renderer interface {
	Name() string
	Render(ctx context.Context, b *report.Bundle) error
}

// Pipeline wires the stages of a report run together.
type Pipeline struct {
	source     ObservationSource
	population domain.PopulationSource
	renderers  []Renderer
	logger     *slog.Logger
	metrics    *observability.Metrics
	opts       report.Options
	done       atomic.Bool
}

// New creates a Pipeline with the given stages and observability.
func New(source ObservationSource, population domain.PopulationSource, renderers []Renderer, logger *slog.Logger, metrics *observability.Metrics, opts report.Options) *Pipeline {
	return &Pipeline{
		source:     source,
		population: population,
		renderers:  renderers,
		logger:     logger,
		metrics:    metrics,
		opts:       opts,
	}
}

// CheckReadiness returns nil once the run has completed, for the debug
// listener's /readyz endpoint.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.done.Load() {
		return errors.New("report run has not completed yet")
	}
	return nil
}

// Run executes fetch → compute → report → render once. Fetch, population
// table, and renderer failures are fatal; unmatched population join keys are
// flagged in the bundle instead.
func (p *Pipeline) Run(ctx context.Context) error {
	runID := uuid.NewString()
	logger := p.logger.With("run_id", runID)
	logger.Info("report run started", "focus_state", p.opts.FocusState)

	if err := p.run(ctx, runID, logger); err != nil {
		p.metrics.RunsTotal.WithLabelValues("error").Inc()
		return err
	}

	p.metrics.RunsTotal.WithLabelValues("success").Inc()
	p.done.Store(true)
	logger.Info("report run finished")
	return nil
}

func (p *Pipeline) run(ctx context.Context, runID string, logger *slog.Logger) error {
	observations, err := timed(p.metrics, "fetch", func() ([]domain.Observation, error) {
		return p.source.FetchObservations(ctx)
	})
	if err != nil {
		return fmt.Errorf("fetch observations: %w", err)
	}

	p.metrics.RowsFetched.Set(float64(len(observations)))
	p.metrics.StatesObserved.Set(float64(countStates(observations)))
	logger.Info("observations fetched", "rows", len(observations), "states", countStates(observations))

	rows, _ := timed(p.metrics, "compute", func() ([]domain.MetricRow, error) {
		return domain.ComputeMetrics(observations), nil
	})

	population := &instrumentedPopulation{inner: p.population, lookups: p.metrics.PopulationLookups}
	bundle, err := timed(p.metrics, "report", func() (*report.Bundle, error) {
		return report.Build(ctx, runID, rows, population, logger, p.opts)
	})
	if err != nil {
		return fmt.Errorf("build report: %w", err)
	}

	p.metrics.AnomaliesDetected.Set(float64(len(bundle.Anomalies)))
	logger.Info("report built",
		"monthly_points", len(bundle.MonthlyFocus),
		"anomalies", len(bundle.Anomalies),
		"states_ranked", len(bundle.StateRanks),
	)

	_, err = timed(p.metrics, "render", func() (struct{}, error) {
		for _, r := range p.renderers {
			if err := r.Render(ctx, bundle); err != nil {
				return struct{}{}, fmt.Errorf("renderer %s: %w", r.Name(), err)
			}
			p.metrics.RendersCompleted.WithLabelValues(r.Name()).Inc()
			logger.Info("renderer finished", "renderer", r.Name())
		}
		return struct{}{}, nil
	})
	return err
}

// timed runs fn and records its duration under the given stage label.
func timed[T any](m *observability.Metrics, stage string, fn func() (T, error)) (T, error) {
	start := time.Now()
	v, err := fn()
	m.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
	return v, err
}

func countStates(rows []domain.Observation) int {
	states := make(map[string]struct{}, 64)
	for _, r := range rows {
		states[r.State] = struct{}{}
	}
	return len(states)
}

// instrumentedPopulation counts lookup outcomes without changing semantics.
type instrumentedPopulation struct {
	inner   domain.PopulationSource
	lookups *prometheus.CounterVec
}

func (s *instrumentedPopulation) Population(ctx context.Context, state string) (int64, error) {
	population, err := s.inner.Population(ctx, state)
	switch {
	case errors.Is(err, domain.ErrStateNotFound):
		s.lookups.WithLabelValues("missing").Inc()
	case err == nil:
		s.lookups.WithLabelValues("found").Inc()
	}
	return population, err
}
