package warehouse

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/couchcryptid/covid-state-metrics/internal/domain"
)

// csv column headers, matching the warehouse schema.
const (
	colDate           = "date"
	colStateName      = "state_name"
	colConfirmedCases = "confirmed_cases"
	colDeaths         = "deaths"
)

// CSVSource reads an observation snapshot from a local CSV file with a
// header row of {date, state_name, confirmed_cases, deaths} in any order.
type CSVSource struct {
	path string
}

// NewCSVSource creates a source reading the given file.
func NewCSVSource(path string) *CSVSource {
	return &CSVSource{path: path}
}

// FetchObservations parses the whole file. Any malformed row aborts with an
// error naming its line number.
func (s *CSVSource) FetchObservations(ctx context.Context) ([]domain.Observation, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("open snapshot: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("snapshot %s has no header row", s.path)
	}

	colIdx := map[string]int{}
	for i, h := range records[0] {
		colIdx[h] = i
	}
	for _, col := range []string{colDate, colStateName, colConfirmedCases, colDeaths} {
		if _, ok := colIdx[col]; !ok {
			return nil, fmt.Errorf("snapshot %s missing column %q", s.path, col)
		}
	}

	rows := make([]domain.Observation, 0, len(records)-1)
	for i, record := range records[1:] {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		obs, err := parseRecord(record, colIdx)
		if err != nil {
			return nil, fmt.Errorf("snapshot %s line %d: %w", s.path, i+2, err)
		}
		rows = append(rows, obs)
	}
	return rows, nil
}

func parseRecord(record []string, colIdx map[string]int) (domain.Observation, error) {
	get := func(col string) string {
		idx := colIdx[col]
		if idx >= len(record) {
			return ""
		}
		return record[idx]
	}

	date, err := time.ParseInLocation("2006-01-02", get(colDate), time.UTC)
	if err != nil {
		return domain.Observation{}, fmt.Errorf("parse date: %w", err)
	}

	cases, err := strconv.ParseInt(get(colConfirmedCases), 10, 64)
	if err != nil {
		return domain.Observation{}, fmt.Errorf("parse confirmed_cases: %w", err)
	}

	deaths, err := strconv.ParseInt(get(colDeaths), 10, 64)
	if err != nil {
		return domain.Observation{}, fmt.Errorf("parse deaths: %w", err)
	}

	state := get(colStateName)
	if state == "" {
		return domain.Observation{}, fmt.Errorf("empty state_name")
	}

	return domain.Observation{
		State:          state,
		Date:           date,
		ConfirmedCases: cases,
		Deaths:         deaths,
	}, nil
}
