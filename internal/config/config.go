package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Source names for observation snapshots.
const (
	SourceCSV      = "csv"
	SourcePostgres = "postgres"
)

// Config holds all run settings, populated from environment variables.
type Config struct {
	Source         string // "csv" or "postgres"
	CSVPath        string
	DatabaseURL    string
	WarehouseTable string

	PopulationAPIURL  string
	PopulationTimeout time.Duration

	OutputDir        string
	FocusState       string
	AnomalyThreshold float64
	ClampCorrections bool
	ChartsEnabled    bool
	WorkbookEnabled  bool

	DebugAddr       string // empty disables the debug HTTP listener
	ShutdownTimeout time.Duration
	LogLevel        string
	LogFormat       string
}

// Load reads configuration from environment variables, applying defaults
// where unset.
func Load() (*Config, error) {
	popTimeout, err := parseDuration("POPULATION_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}

	shutdownTimeout, err := parseDuration("SHUTDOWN_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}

	threshold, err := parseAnomalyThreshold()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Source:         envOrDefault("SOURCE", SourceCSV),
		CSVPath:        envOrDefault("CSV_PATH", "data/us_states.csv"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		WarehouseTable: envOrDefault("WAREHOUSE_TABLE", "us_states"),

		PopulationAPIURL:  envOrDefault("POPULATION_API_URL", "https://datausa.io/api/data"),
		PopulationTimeout: popTimeout,

		OutputDir:        envOrDefault("OUTPUT_DIR", "out"),
		FocusState:       envOrDefault("FOCUS_STATE", "New York"),
		AnomalyThreshold: threshold,
		ClampCorrections: envBool("CLAMP_CORRECTIONS", true),
		ChartsEnabled:    envBool("CHARTS_ENABLED", true),
		WorkbookEnabled:  envBool("WORKBOOK_ENABLED", true),

		DebugAddr:       os.Getenv("DEBUG_ADDR"),
		ShutdownTimeout: shutdownTimeout,
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "json"),
	}

	switch cfg.Source {
	case SourceCSV:
		if cfg.CSVPath == "" {
			return nil, errors.New("CSV_PATH is required when SOURCE is csv")
		}
	case SourcePostgres:
		if cfg.DatabaseURL == "" {
			return nil, errors.New("DATABASE_URL is required when SOURCE is postgres")
		}
		if cfg.WarehouseTable == "" {
			return nil, errors.New("WAREHOUSE_TABLE is required when SOURCE is postgres")
		}
	default:
		return nil, fmt.Errorf("invalid SOURCE %q: must be csv or postgres", cfg.Source)
	}

	if cfg.PopulationAPIURL == "" {
		return nil, errors.New("POPULATION_API_URL is required")
	}
	if cfg.OutputDir == "" {
		return nil, errors.New("OUTPUT_DIR is required")
	}
	if cfg.FocusState == "" {
		return nil, errors.New("FOCUS_STATE is required")
	}
	if !cfg.ChartsEnabled && !cfg.WorkbookEnabled {
		return nil, errors.New("at least one of CHARTS_ENABLED and WORKBOOK_ENABLED must be true")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v == "true" || v == "1"
}

func parseDuration(key, fallback string) (time.Duration, error) {
	d, err := time.ParseDuration(envOrDefault(key, fallback))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

// parseAnomalyThreshold reads ANOMALY_THRESHOLD. Zero disables the scan;
// negative values are rejected.
func parseAnomalyThreshold() (float64, error) {
	s := os.Getenv("ANOMALY_THRESHOLD")
	if s == "" {
		return 3.0, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 {
		return 0, errors.New("invalid ANOMALY_THRESHOLD")
	}
	return v, nil
}
