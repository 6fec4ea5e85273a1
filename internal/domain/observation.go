package domain

import (
	"sort"
	"time"
)

// Observation is one raw row of the us_states dataset: cumulative confirmed
// cases and deaths for a state as of a calendar date (UTC midnight).
type Observation struct {
	State          string    `json:"state_name" db:"state_name"`
	Date           time.Time `json:"date" db:"date"`
	ConfirmedCases int64     `json:"confirmed_cases" db:"confirmed_cases"`
	Deaths         int64     `json:"deaths" db:"deaths"`
}

// MetricRow is an Observation plus every derived metric. Pointer fields are
// nil where the metric is undefined (first date of a state, zero stddev,
// zero deaths).
type MetricRow struct {
	Observation

	ConfirmedCasesDay *int64 `json:"confirmed_cases_day"`
	DeathsDay         *int64 `json:"deaths_day"`

	ConfirmedCasesZScore      *float64 `json:"confirmed_cases_zscore"`
	ConfirmedCasesStateZScore *float64 `json:"confirmed_cases_state_zscore"`
	ConfirmedCasesDayZScore   *float64 `json:"confirmed_cases_day_zscore"`
	DeathsDayZScore           *float64 `json:"deaths_day_zscore"`

	HighestMonthlyConfirmedCases int64    `json:"highest_monthly_confirmed_cases"`
	ConfirmedCasesPerDeath       *float64 `json:"confirmed_cases_per_death"`

	ComputedAt time.Time `json:"computed_at"`
}

// MonthlyMax is the deduplicated per-(state, year, month) aggregate: one row
// per group instead of the broadcast form on MetricRow.
type MonthlyMax struct {
	State                        string `json:"state_name"`
	Year                         int    `json:"year"`
	Month                        int    `json:"month"`
	HighestMonthlyConfirmedCases int64  `json:"highest_monthly_confirmed_cases"`
}

// SortObservations orders rows by state name, then date ascending. Cross-state
// order carries no meaning; sorting by state first just makes runs over the
// same snapshot deterministic.
func SortObservations(rows []Observation) {
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].State != rows[j].State {
			return rows[i].State < rows[j].State
		}
		return rows[i].Date.Before(rows[j].Date)
	})
}

// monthKey identifies a (state, year, month) group.
type monthKey struct {
	state string
	year  int
	month time.Month
}

func monthKeyOf(o Observation) monthKey {
	return monthKey{state: o.State, year: o.Date.Year(), month: o.Date.Month()}
}
