// Package domain models per-state COVID-19 case and death time series and the
// derived metrics computed over them.
//
// # Data Source
//
// Observations originate from the New York Times COVID-19 us_states dataset
// (mirrored in public data warehouses as covid19_nyt.us_states). Each row
// carries a state name, a calendar date, and cumulative confirmed case and
// death counts as of that date. The key (state, date) is unique; within a
// state, rows are ordered by date ascending.
//
// # Cumulative Counts and Corrections
//
// Counts are cumulative running totals, so they are non-decreasing in
// principle. In practice upstream data corrections occasionally lower a
// cumulative count, which makes the day-over-day delta negative. Deltas are
// computed and reported as-is here; clamping corrections to zero is a
// reporting-stage decision, not a property of the series.
//
// # Derived Metrics
//
// All derived fields are pure functions of the full per-state series and
// never mutate their source rows:
//
//	confirmed_cases_day   cumulative value minus the previous date's value
//	                      within the same state; nil on a state's first date.
//	deaths_day            analogous.
//	z-scores              (value - mean) / sample stddev, scoped either to the
//	                      whole dataset or to the row's state. Nil when the
//	                      stddev is zero or fewer than two values exist, so a
//	                      constant series or a single-observation state never
//	                      divides by zero.
//	monthly max           max cumulative confirmed cases within the row's
//	                      (state, year, month), broadcast to every row of the
//	                      group. SQL's OVER (PARTITION BY ...) expressed as
//	                      group-by-then-broadcast; MonthlyMaxima returns the
//	                      deduplicated one-row-per-group form.
//	cases per death       elementwise quotient; nil when deaths are zero.
//
// Empty input produces empty output, never an error.
package domain
