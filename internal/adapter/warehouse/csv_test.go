package warehouse

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/covid-state-metrics/internal/domain"
)

func writeSnapshot(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "us_states.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestCSVSource_FetchObservations(t *testing.T) {
	path := writeSnapshot(t, `date,state_name,confirmed_cases,deaths
2020-03-01,New York,10,0
2020-03-02,New York,15,1
2020-03-01,Texas,5,0
`)

	rows, err := NewCSVSource(path).FetchObservations(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, domain.Observation{
		State:          "New York",
		Date:           domain.DateUTC(2020, time.March, 1),
		ConfirmedCases: 10,
		Deaths:         0,
	}, rows[0])
	assert.Equal(t, "Texas", rows[2].State)
}

func TestCSVSource_ColumnOrderIrrelevant(t *testing.T) {
	path := writeSnapshot(t, `deaths,confirmed_cases,state_name,date
2,40,Ohio,2020-04-01
`)

	rows, err := NewCSVSource(path).FetchObservations(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(40), rows[0].ConfirmedCases)
	assert.Equal(t, int64(2), rows[0].Deaths)
	assert.Equal(t, "Ohio", rows[0].State)
}

func TestCSVSource_MissingFile(t *testing.T) {
	_, err := NewCSVSource(filepath.Join(t.TempDir(), "nope.csv")).FetchObservations(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open snapshot")
}

func TestCSVSource_MissingColumn(t *testing.T) {
	path := writeSnapshot(t, `date,state_name,confirmed_cases
2020-03-01,New York,10
`)

	_, err := NewCSVSource(path).FetchObservations(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), `missing column "deaths"`)
}

func TestCSVSource_MalformedRowNamesLine(t *testing.T) {
	path := writeSnapshot(t, `date,state_name,confirmed_cases,deaths
2020-03-01,New York,10,0
2020-03-02,New York,not-a-number,1
`)

	_, err := NewCSVSource(path).FetchObservations(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 3")
	assert.Contains(t, err.Error(), "confirmed_cases")
}

func TestCSVSource_BadDate(t *testing.T) {
	path := writeSnapshot(t, `date,state_name,confirmed_cases,deaths
03/01/2020,New York,10,0
`)

	_, err := NewCSVSource(path).FetchObservations(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse date")
}

func TestCSVSource_EmptyState(t *testing.T) {
	path := writeSnapshot(t, `date,state_name,confirmed_cases,deaths
2020-03-01,,10,0
`)

	_, err := NewCSVSource(path).FetchObservations(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "state_name")
}

func TestCSVSource_HeaderOnly(t *testing.T) {
	path := writeSnapshot(t, "date,state_name,confirmed_cases,deaths\n")

	rows, err := NewCSVSource(path).FetchObservations(context.Background())
	require.NoError(t, err)
	assert.Empty(t, rows)
}
