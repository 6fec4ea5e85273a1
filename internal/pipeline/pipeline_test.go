package pipeline_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/covid-state-metrics/internal/domain"
	"github.com/couchcryptid/covid-state-metrics/internal/observability"
	"github.com/couchcryptid/covid-state-metrics/internal/pipeline"
	"github.com/couchcryptid/covid-state-metrics/internal/report"
)

// --- mocks ---

type mockSource struct {
	rows []domain.Observation
	err  error
}

func (m *mockSource) FetchObservations(_ context.Context) ([]domain.Observation, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.rows, nil
}

type mockPopulation struct {
	table map[string]int64
}

func (m *mockPopulation) Population(_ context.Context, state string) (int64, error) {
	p, ok := m.table[state]
	if !ok {
		return 0, domain.ErrStateNotFound
	}
	return p, nil
}

type mockRenderer struct {
	name    string
	err     error
	bundles []*report.Bundle
}

func (m *mockRenderer) Name() string { return m.name }

func (m *mockRenderer) Render(_ context.Context, b *report.Bundle) error {
	if m.err != nil {
		return m.err
	}
	m.bundles = append(m.bundles, b)
	return nil
}

// --- helpers ---

func testObservations() []domain.Observation {
	start := domain.DateUTC(2020, time.March, 1)
	rows := make([]domain.Observation, 0, 8)
	for i, c := range []int64{10, 60, 90, 150} {
		rows = append(rows, domain.Observation{State: "New York", Date: start.AddDate(0, 0, i), ConfirmedCases: c, Deaths: c / 10})
	}
	for i, c := range []int64{5, 25, 30, 70} {
		rows = append(rows, domain.Observation{State: "Texas", Date: start.AddDate(0, 0, i), ConfirmedCases: c, Deaths: c / 10})
	}
	return rows
}

func newPipeline(src *mockSource, pop *mockPopulation, renderers ...pipeline.Renderer) *pipeline.Pipeline {
	return pipeline.New(src, pop, renderers, slog.Default(), observability.NewMetricsForTesting(),
		report.Options{FocusState: "New York", AnomalyThreshold: 3, ClampCorrections: true})
}

// --- tests ---

func TestPipeline_Run_HappyPath(t *testing.T) {
	src := &mockSource{rows: testObservations()}
	pop := &mockPopulation{table: map[string]int64{"New York": 19_000_000, "Texas": 29_000_000}}
	rnd := &mockRenderer{name: "plotly"}

	p := newPipeline(src, pop, rnd)

	require.Error(t, p.CheckReadiness(context.Background()))
	require.NoError(t, p.Run(context.Background()))
	require.NoError(t, p.CheckReadiness(context.Background()))

	require.Len(t, rnd.bundles, 1)
	b := rnd.bundles[0]
	assert.NotEmpty(t, b.RunID)
	assert.Equal(t, "New York", b.FocusState)
	assert.Len(t, b.FocusTimeline, 4)
	assert.Len(t, b.StateRanks, 2)
}

func TestPipeline_Run_FetchErrorAborts(t *testing.T) {
	src := &mockSource{err: errors.New("warehouse unavailable")}
	rnd := &mockRenderer{name: "plotly"}

	p := newPipeline(src, &mockPopulation{}, rnd)

	err := p.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fetch observations")
	assert.Contains(t, err.Error(), "warehouse unavailable")
	assert.Empty(t, rnd.bundles)
	assert.Error(t, p.CheckReadiness(context.Background()))
}

func TestPipeline_Run_RendererErrorAborts(t *testing.T) {
	src := &mockSource{rows: testObservations()}
	pop := &mockPopulation{table: map[string]int64{"New York": 19_000_000, "Texas": 29_000_000}}
	good := &mockRenderer{name: "plotly"}
	bad := &mockRenderer{name: "workbook", err: errors.New("disk full")}

	p := newPipeline(src, pop, good, bad)

	err := p.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "renderer workbook")
	// The first renderer already ran; the failure surfaces afterwards.
	assert.Len(t, good.bundles, 1)
}

func TestPipeline_Run_EmptySnapshot(t *testing.T) {
	src := &mockSource{}
	rnd := &mockRenderer{name: "plotly"}

	p := newPipeline(src, &mockPopulation{}, rnd)

	require.NoError(t, p.Run(context.Background()))
	require.Len(t, rnd.bundles, 1)
	assert.Empty(t, rnd.bundles[0].StateRanks)
	assert.Empty(t, rnd.bundles[0].MonthlyFocus)
}

func TestPipeline_Run_MissingPopulationDoesNotAbort(t *testing.T) {
	src := &mockSource{rows: testObservations()}
	pop := &mockPopulation{table: map[string]int64{"New York": 19_000_000}} // Texas missing
	rnd := &mockRenderer{name: "plotly"}

	p := newPipeline(src, pop, rnd)

	require.NoError(t, p.Run(context.Background()))
	require.Len(t, rnd.bundles, 1)

	for _, rank := range rnd.bundles[0].StateRanks {
		if rank.State == "Texas" {
			assert.True(t, rank.PopulationMissing)
			assert.Nil(t, rank.PerCapita)
		}
	}
}

func TestPipeline_Run_DistinctRunIDs(t *testing.T) {
	pop := &mockPopulation{table: map[string]int64{"New York": 19_000_000, "Texas": 29_000_000}}
	rnd := &mockRenderer{name: "plotly"}

	first := newPipeline(&mockSource{rows: testObservations()}, pop, rnd)
	second := newPipeline(&mockSource{rows: testObservations()}, pop, rnd)

	require.NoError(t, first.Run(context.Background()))
	require.NoError(t, second.Run(context.Background()))

	require.Len(t, rnd.bundles, 2)
	assert.NotEqual(t, rnd.bundles[0].RunID, rnd.bundles[1].RunID)
}
