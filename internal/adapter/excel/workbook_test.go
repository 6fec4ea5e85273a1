package excel

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/couchcryptid/covid-state-metrics/internal/domain"
	"github.com/couchcryptid/covid-state-metrics/internal/report"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fptr(v float64) *float64 { return &v }

func testBundle() *report.Bundle {
	return &report.Bundle{
		RunID:      "run-1",
		FocusState: "New York",
		MonthlyFocus: []report.MonthlyAggregate{
			{Month: domain.DateUTC(2020, time.March, 1), ConfirmedCases: 100, Deaths: 12},
			{Month: domain.DateUTC(2020, time.April, 1), ConfirmedCases: 900, Deaths: 80},
		},
		FocusTimeline: []report.TimelinePoint{
			{Date: domain.DateUTC(2020, time.March, 1)},
			{Date: domain.DateUTC(2020, time.March, 2), CasesZ: fptr(1.5), DeathsZ: fptr(-0.5)},
		},
		Anomalies: []report.Anomaly{
			{Date: domain.DateUTC(2020, time.March, 2), Metric: "confirmed_cases_day", Delta: 5000, Score: 3.6},
		},
		StateRanks: []report.StateRank{
			{State: "New York", HighestMonthlyConfirmedCases: 900, Population: 19_000_000, PerCapita: fptr(900.0 / 19_000_000)},
			{State: "Guam", HighestMonthlyConfirmedCases: 20, PopulationMissing: true},
		},
		Summaries: []report.StateSummary{
			{State: "New York", Observations: 30, Mean: 20, StdDev: 5, Min: 10, Q25: 16, Median: 20, Q75: 24, Max: 30},
		},
	}
}

func renderAndOpen(t *testing.T, b *report.Bundle) *excelize.File {
	t.Helper()
	dir := t.TempDir()
	r := NewRenderer(dir, discardLogger())
	require.NoError(t, r.Render(context.Background(), b))

	f, err := excelize.OpenFile(filepath.Join(dir, WorkbookFile))
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })
	return f
}

func TestRenderer_Render_WritesAllSheets(t *testing.T) {
	f := renderAndOpen(t, testBundle())

	assert.ElementsMatch(t, []string{
		sheetMonthly, sheetTimeline, sheetAnomalies, sheetRanks, sheetSummaries,
	}, f.GetSheetList())
}

func TestRenderer_Render_MonthlyValues(t *testing.T) {
	f := renderAndOpen(t, testBundle())

	month, err := f.GetCellValue(sheetMonthly, "A2")
	require.NoError(t, err)
	assert.Equal(t, "2020-03", month)

	deaths, err := f.GetCellValue(sheetMonthly, "C3")
	require.NoError(t, err)
	assert.Equal(t, "80", deaths)
}

func TestRenderer_Render_NilZScoreLeavesCellEmpty(t *testing.T) {
	f := renderAndOpen(t, testBundle())

	// First timeline point has no z-scores.
	z, err := f.GetCellValue(sheetTimeline, "B2")
	require.NoError(t, err)
	assert.Empty(t, z)

	z, err = f.GetCellValue(sheetTimeline, "B3")
	require.NoError(t, err)
	assert.Equal(t, "1.5", z)
}

func TestRenderer_Render_MissingPopulationFlagged(t *testing.T) {
	f := renderAndOpen(t, testBundle())

	state, err := f.GetCellValue(sheetRanks, "A3")
	require.NoError(t, err)
	assert.Equal(t, "Guam", state)

	population, err := f.GetCellValue(sheetRanks, "C3")
	require.NoError(t, err)
	assert.Empty(t, population)

	flag, err := f.GetCellValue(sheetRanks, "E3")
	require.NoError(t, err)
	assert.Equal(t, "TRUE", flag)
}

func TestRenderer_Render_AnomalyRow(t *testing.T) {
	f := renderAndOpen(t, testBundle())

	metric, err := f.GetCellValue(sheetAnomalies, "B2")
	require.NoError(t, err)
	assert.Equal(t, "confirmed_cases_day", metric)

	delta, err := f.GetCellValue(sheetAnomalies, "C2")
	require.NoError(t, err)
	assert.Equal(t, "5000", delta)
}

func TestRenderer_Render_EmptyBundle(t *testing.T) {
	f := renderAndOpen(t, &report.Bundle{FocusState: "New York"})

	// All sheets exist with a header row and nothing else.
	rows, err := f.GetRows(sheetRanks)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "state_name", rows[0][0])
}

func TestRenderer_Name(t *testing.T) {
	assert.Equal(t, "workbook", NewRenderer(t.TempDir(), discardLogger()).Name())
}
