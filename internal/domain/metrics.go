package domain

import (
	"time"

	"gonum.org/v1/gonum/stat"
)

// ComputeMetrics derives every metric for the given observations and returns
// one MetricRow per input row, ordered by state then date. The input slice is
// not mutated. Empty input returns an empty (non-nil) slice.
func ComputeMetrics(rows []Observation) []MetricRow {
	sorted := make([]Observation, len(rows))
	copy(sorted, rows)
	SortObservations(sorted)

	out := make([]MetricRow, len(sorted))
	computedAt := clock.Now()
	for i, o := range sorted {
		out[i] = MetricRow{Observation: o, ComputedAt: computedAt}
	}

	applyGlobalZScore(out)
	applyMonthlyMax(out)

	for start := 0; start < len(out); {
		end := start
		for end < len(out) && out[end].State == out[start].State {
			end++
		}
		computeStateMetrics(out[start:end])
		start = end
	}

	return out
}

// computeStateMetrics fills the per-state metrics for one state's rows, which
// must be contiguous and sorted by date ascending.
func computeStateMetrics(rows []MetricRow) {
	cumulative := make([]float64, len(rows))
	for i, r := range rows {
		cumulative[i] = float64(r.ConfirmedCases)
	}
	for i, z := range zScores(cumulative) {
		rows[i].ConfirmedCasesStateZScore = z
	}

	// LAG re-expressed as an index-shifted lookup within the sorted series.
	for i := 1; i < len(rows); i++ {
		caseDelta := rows[i].ConfirmedCases - rows[i-1].ConfirmedCases
		deathDelta := rows[i].Deaths - rows[i-1].Deaths
		rows[i].ConfirmedCasesDay = &caseDelta
		rows[i].DeathsDay = &deathDelta
	}

	applyDeltaZScores(rows, func(r MetricRow) *int64 { return r.ConfirmedCasesDay },
		func(r *MetricRow, z *float64) { r.ConfirmedCasesDayZScore = z })
	applyDeltaZScores(rows, func(r MetricRow) *int64 { return r.DeathsDay },
		func(r *MetricRow, z *float64) { r.DeathsDayZScore = z })

	for i := range rows {
		rows[i].ConfirmedCasesPerDeath = safeRatio(rows[i].ConfirmedCases, rows[i].Deaths)
	}
}

// applyDeltaZScores normalizes a delta series within one state. Nil deltas
// (each state's first date) are excluded from the mean/stddev and stay nil.
func applyDeltaZScores(rows []MetricRow, get func(MetricRow) *int64, set func(*MetricRow, *float64)) {
	defined := make([]float64, 0, len(rows))
	for _, r := range rows {
		if d := get(r); d != nil {
			defined = append(defined, float64(*d))
		}
	}

	mean, std, ok := meanStdDev(defined)
	if !ok {
		return
	}
	for i := range rows {
		if d := get(rows[i]); d != nil {
			z := (float64(*d) - mean) / std
			set(&rows[i], &z)
		}
	}
}

// applyGlobalZScore normalizes cumulative confirmed cases against the
// dataset-wide mean and stddev.
func applyGlobalZScore(rows []MetricRow) {
	values := make([]float64, len(rows))
	for i, r := range rows {
		values[i] = float64(r.ConfirmedCases)
	}
	for i, z := range zScores(values) {
		rows[i].ConfirmedCasesZScore = z
	}
}

// applyMonthlyMax broadcasts the (state, year, month) maximum of cumulative
// confirmed cases to every row of the group.
func applyMonthlyMax(rows []MetricRow) {
	maxima := make(map[monthKey]int64, len(rows)/28+1)
	for _, r := range rows {
		key := monthKeyOf(r.Observation)
		if r.ConfirmedCases > maxima[key] {
			maxima[key] = r.ConfirmedCases
		}
	}
	for i := range rows {
		rows[i].HighestMonthlyConfirmedCases = maxima[monthKeyOf(rows[i].Observation)]
	}
}

// MonthlyMaxima returns the deduplicated per-(state, year, month) maxima of
// cumulative confirmed cases, one row per group, ordered by state then month.
func MonthlyMaxima(rows []Observation) []MonthlyMax {
	sorted := make([]Observation, len(rows))
	copy(sorted, rows)
	SortObservations(sorted)

	out := make([]MonthlyMax, 0)
	for _, o := range sorted {
		year, month := o.Date.Year(), int(o.Date.Month())
		n := len(out)
		if n > 0 && out[n-1].State == o.State && out[n-1].Year == year && out[n-1].Month == month {
			if o.ConfirmedCases > out[n-1].HighestMonthlyConfirmedCases {
				out[n-1].HighestMonthlyConfirmedCases = o.ConfirmedCases
			}
			continue
		}
		out = append(out, MonthlyMax{
			State:                        o.State,
			Year:                         year,
			Month:                        month,
			HighestMonthlyConfirmedCases: o.ConfirmedCases,
		})
	}
	return out
}

// zScores normalizes a series against its own mean and sample stddev.
// Every element is nil when the stddev is zero or undefined (len < 2).
func zScores(values []float64) []*float64 {
	out := make([]*float64, len(values))
	mean, std, ok := meanStdDev(values)
	if !ok {
		return out
	}
	for i, v := range values {
		z := (v - mean) / std
		out[i] = &z
	}
	return out
}

// meanStdDev returns the mean and sample standard deviation of values.
// ok is false when fewer than two values exist or the stddev is zero.
func meanStdDev(values []float64) (mean, std float64, ok bool) {
	if len(values) < 2 {
		return 0, 0, false
	}
	mean = stat.Mean(values, nil)
	std = stat.StdDev(values, nil)
	if std == 0 {
		return mean, 0, false
	}
	return mean, std, true
}

// safeRatio divides cumulative cases by cumulative deaths, nil when deaths
// are zero.
func safeRatio(cases, deaths int64) *float64 {
	if deaths == 0 {
		return nil
	}
	r := float64(cases) / float64(deaths)
	return &r
}

// DateUTC builds a UTC-midnight date, the canonical Observation.Date form.
func DateUTC(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
