// Package warehouse provides observation snapshot sources: a Postgres
// warehouse table and a local CSV file, both yielding the same
// {date, state_name, confirmed_cases, deaths} shape.
package warehouse

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // postgres driver

	"github.com/couchcryptid/covid-state-metrics/internal/domain"
)

// PostgresSource fetches the full observation snapshot from a warehouse
// table with a single one-shot query. No retries; a failure aborts the run.
type PostgresSource struct {
	db     *sqlx.DB
	table  string
	logger *slog.Logger
}

// Open connects to the warehouse and verifies the connection.
func Open(databaseURL string) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect warehouse: %w", err)
	}
	return db, nil
}

// NewPostgresSource creates a source reading from the given table. The table
// name comes from configuration, not user input.
func NewPostgresSource(db *sqlx.DB, table string, logger *slog.Logger) *PostgresSource {
	return &PostgresSource{db: db, table: table, logger: logger}
}

// FetchObservations reads every row of the table. Ordering is left to
// ComputeMetrics, which sorts its own copy.
func (s *PostgresSource) FetchObservations(ctx context.Context) ([]domain.Observation, error) {
	query := fmt.Sprintf(
		`SELECT state_name, date, confirmed_cases, deaths FROM %s`, s.table)

	var rows []domain.Observation
	if err := s.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("query %s: %w", s.table, err)
	}

	s.logger.Debug("warehouse snapshot fetched", "table", s.table, "rows", len(rows))
	return rows, nil
}
