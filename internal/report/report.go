// Package report turns metric-augmented rows into chart-ready tabular
// summaries: monthly aggregates for a focus state, z-score timelines with
// anomalies, per-state rankings with per-capita variants, and per-state
// descriptive statistics.
package report

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/montanaflynn/stats"

	"github.com/couchcryptid/covid-state-metrics/internal/domain"
)

// Options controls reporting behavior.
type Options struct {
	// FocusState selects the state for the monthly timeline and the anomaly
	// scan, e.g. "New York".
	FocusState string

	// AnomalyThreshold marks a row anomalous when the absolute delta z-score
	// exceeds it. Zero disables the scan.
	AnomalyThreshold float64

	// ClampCorrections clamps negative day-over-day deltas to zero before the
	// monthly roll-up, treating upstream corrections as no new cases/deaths
	// on that day.
	ClampCorrections bool
}

// MonthlyAggregate sums daily deltas within one calendar month.
type MonthlyAggregate struct {
	Month          time.Time // first day of the month, UTC
	ConfirmedCases int64
	Deaths         int64
}

// TimelinePoint is one date of the focus state's delta z-score series.
type TimelinePoint struct {
	Date    time.Time
	CasesZ  *float64
	DeathsZ *float64
}

// Anomaly is a focus-state row whose delta z-score crossed the threshold.
type Anomaly struct {
	Date   time.Time
	Metric string // "confirmed_cases_day" or "deaths_day"
	Delta  int64
	Score  float64
}

// StateRank ranks one state by its highest monthly confirmed cases, with the
// population join applied. PopulationMissing marks states absent from the
// lookup; their rows are kept with a nil per-capita value.
type StateRank struct {
	State                        string
	HighestMonthlyConfirmedCases int64
	Population                   int64
	PopulationMissing            bool
	PerCapita                    *float64
}

// StateSummary describes one state's daily confirmed case distribution.
type StateSummary struct {
	State        string
	Observations int
	Mean         float64
	StdDev       float64
	Min          float64
	Max          float64
	Median       float64
	Q25          float64
	Q75          float64
}

// Bundle is everything the renderers need for one run.
type Bundle struct {
	RunID       string
	GeneratedAt time.Time
	FocusState  string

	MonthlyFocus   []MonthlyAggregate
	FocusTimeline  []TimelinePoint
	Anomalies      []Anomaly
	StateRanks     []StateRank // by raw count, descending
	PerCapitaRanks []StateRank // by per-capita value, descending; missing last
	Summaries      []StateSummary
}

// Build joins population figures into the metric rows and assembles every
// summary table. States missing from the population source are flagged and
// kept; any other population error aborts the build.
func Build(ctx context.Context, runID string, rows []domain.MetricRow, pop domain.PopulationSource, logger *slog.Logger, opts Options) (*Bundle, error) {
	b := &Bundle{
		RunID:       runID,
		GeneratedAt: domain.Now(),
		FocusState:  opts.FocusState,
	}

	focus := filterState(rows, opts.FocusState)
	b.MonthlyFocus = monthlyAggregates(focus, opts.ClampCorrections)
	b.FocusTimeline = timeline(focus)
	b.Anomalies = findAnomalies(focus, opts.AnomalyThreshold)
	b.Summaries = summaries(rows, opts.ClampCorrections)

	ranks, err := rankStates(ctx, rows, pop, logger)
	if err != nil {
		return nil, err
	}
	b.StateRanks = ranks
	b.PerCapitaRanks = perCapitaOrder(ranks)

	return b, nil
}

func filterState(rows []domain.MetricRow, state string) []domain.MetricRow {
	out := make([]domain.MetricRow, 0)
	for _, r := range rows {
		if r.State == state {
			out = append(out, r)
		}
	}
	return out
}

// monthlyAggregates sums daily deltas per calendar month. Rows are assumed
// sorted by date (ComputeMetrics output order).
func monthlyAggregates(rows []domain.MetricRow, clamp bool) []MonthlyAggregate {
	out := make([]MonthlyAggregate, 0)
	for _, r := range rows {
		month := domain.DateUTC(r.Date.Year(), r.Date.Month(), 1)
		if len(out) == 0 || !out[len(out)-1].Month.Equal(month) {
			out = append(out, MonthlyAggregate{Month: month})
		}
		agg := &out[len(out)-1]
		agg.ConfirmedCases += deltaValue(r.ConfirmedCasesDay, clamp)
		agg.Deaths += deltaValue(r.DeathsDay, clamp)
	}
	return out
}

// deltaValue treats a nil delta (a state's first date) as zero for
// aggregation and optionally clamps corrections.
func deltaValue(d *int64, clamp bool) int64 {
	if d == nil {
		return 0
	}
	if clamp && *d < 0 {
		return 0
	}
	return *d
}

func timeline(rows []domain.MetricRow) []TimelinePoint {
	out := make([]TimelinePoint, len(rows))
	for i, r := range rows {
		out[i] = TimelinePoint{Date: r.Date, CasesZ: r.ConfirmedCasesDayZScore, DeathsZ: r.DeathsDayZScore}
	}
	return out
}

func findAnomalies(rows []domain.MetricRow, threshold float64) []Anomaly {
	if threshold <= 0 {
		return nil
	}
	out := make([]Anomaly, 0)
	for _, r := range rows {
		if z := r.ConfirmedCasesDayZScore; z != nil && (*z > threshold || *z < -threshold) {
			out = append(out, Anomaly{Date: r.Date, Metric: "confirmed_cases_day", Delta: *r.ConfirmedCasesDay, Score: *z})
		}
		if z := r.DeathsDayZScore; z != nil && (*z > threshold || *z < -threshold) {
			out = append(out, Anomaly{Date: r.Date, Metric: "deaths_day", Delta: *r.DeathsDay, Score: *z})
		}
	}
	return out
}

// rankStates reduces rows to one entry per state (the all-time highest
// monthly confirmed cases) and joins the population table.
func rankStates(ctx context.Context, rows []domain.MetricRow, pop domain.PopulationSource, logger *slog.Logger) ([]StateRank, error) {
	highest := make(map[string]int64)
	for _, r := range rows {
		if r.HighestMonthlyConfirmedCases > highest[r.State] {
			highest[r.State] = r.HighestMonthlyConfirmedCases
		}
	}

	out := make([]StateRank, 0, len(highest))
	for state, count := range highest {
		rank := StateRank{State: state, HighestMonthlyConfirmedCases: count}

		population, err := pop.Population(ctx, state)
		switch {
		case errors.Is(err, domain.ErrStateNotFound):
			rank.PopulationMissing = true
			logger.Warn("state missing from population table, keeping with nil per-capita",
				"state", state)
		case err != nil:
			return nil, fmt.Errorf("population lookup for %q: %w", state, err)
		case population > 0:
			rank.Population = population
			perCapita := float64(count) / float64(population)
			rank.PerCapita = &perCapita
		default:
			rank.PopulationMissing = true
		}

		out = append(out, rank)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].HighestMonthlyConfirmedCases != out[j].HighestMonthlyConfirmedCases {
			return out[i].HighestMonthlyConfirmedCases > out[j].HighestMonthlyConfirmedCases
		}
		return out[i].State < out[j].State
	})
	return out, nil
}

// perCapitaOrder reorders ranks by per-capita value descending, placing
// flagged states (nil per-capita) at the end.
func perCapitaOrder(ranks []StateRank) []StateRank {
	out := make([]StateRank, len(ranks))
	copy(out, ranks)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].PerCapita, out[j].PerCapita
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return *a > *b
		}
	})
	return out
}

// summaries computes descriptive statistics of each state's daily confirmed
// cases. States with no defined deltas (single observation) are skipped.
func summaries(rows []domain.MetricRow, clamp bool) []StateSummary {
	deltas := make(map[string][]float64)
	for _, r := range rows {
		if r.ConfirmedCasesDay == nil {
			continue
		}
		deltas[r.State] = append(deltas[r.State], float64(deltaValue(r.ConfirmedCasesDay, clamp)))
	}

	states := make([]string, 0, len(deltas))
	for state := range deltas {
		states = append(states, state)
	}
	sort.Strings(states)

	out := make([]StateSummary, 0, len(states))
	for _, state := range states {
		data := deltas[state]
		mean, _ := stats.Mean(data)
		stdDev, _ := stats.StandardDeviation(data)
		minV, _ := stats.Min(data)
		maxV, _ := stats.Max(data)
		median, _ := stats.Median(data)
		q25, _ := stats.Percentile(data, 25)
		q75, _ := stats.Percentile(data, 75)

		out = append(out, StateSummary{
			State:        state,
			Observations: len(data),
			Mean:         mean,
			StdDev:       stdDev,
			Min:          minV,
			Max:          maxV,
			Median:       median,
			Q25:          q25,
			Q75:          q75,
		})
	}
	return out
}
