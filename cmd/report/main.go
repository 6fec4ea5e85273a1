package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/covid-state-metrics/internal/adapter/chart"
	"github.com/couchcryptid/covid-state-metrics/internal/adapter/datausa"
	"github.com/couchcryptid/covid-state-metrics/internal/adapter/excel"
	httpadapter "github.com/couchcryptid/covid-state-metrics/internal/adapter/http"
	"github.com/couchcryptid/covid-state-metrics/internal/adapter/warehouse"
	"github.com/couchcryptid/covid-state-metrics/internal/config"
	"github.com/couchcryptid/covid-state-metrics/internal/observability"
	"github.com/couchcryptid/covid-state-metrics/internal/pipeline"
	"github.com/couchcryptid/covid-state-metrics/internal/report"
)

func main() {
	// Local development convenience; absence of a .env file is fine.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	source, cleanup, err := newSource(cfg, logger)
	if err != nil {
		logger.Error("failed to open observation source", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	population := datausa.NewClient(cfg.PopulationAPIURL, cfg.PopulationTimeout, logger)

	var renderers []pipeline.Renderer
	if cfg.ChartsEnabled {
		renderers = append(renderers, chart.NewRenderer(cfg.OutputDir, logger))
	}
	if cfg.WorkbookEnabled {
		renderers = append(renderers, excel.NewRenderer(cfg.OutputDir, logger))
	}

	p := pipeline.New(source, population, renderers, logger, metrics, report.Options{
		FocusState:       cfg.FocusState,
		AnomalyThreshold: cfg.AnomalyThreshold,
		ClampCorrections: cfg.ClampCorrections,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, p, logger); err != nil {
		logger.Error("report run failed", "error", err)
		os.Exit(1)
	}
}

// run executes the one-shot pipeline, with the debug listener alongside it
// when DEBUG_ADDR is set.
func run(ctx context.Context, cfg *config.Config, p *pipeline.Pipeline, logger *slog.Logger) error {
	if cfg.DebugAddr == "" {
		return p.Run(ctx)
	}

	srv := httpadapter.NewServer(cfg.DebugAddr, p, logger)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("debug listener shutdown error", "error", err)
			}
		}()
		if err := p.Run(ctx); err != nil {
			return err
		}
		// Keep serving /metrics and /readyz until interrupted.
		logger.Info("run complete, debug listener still serving", "addr", cfg.DebugAddr)
		<-ctx.Done()
		return nil
	})
	return g.Wait()
}

func newSource(cfg *config.Config, logger *slog.Logger) (pipeline.ObservationSource, func(), error) {
	switch cfg.Source {
	case config.SourcePostgres:
		db, err := warehouse.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("reading observations from warehouse", "table", cfg.WarehouseTable)
		return warehouse.NewPostgresSource(db, cfg.WarehouseTable, logger), func() { db.Close() }, nil
	default:
		logger.Info("reading observations from snapshot", "path", cfg.CSVPath)
		return warehouse.NewCSVSource(cfg.CSVPath), func() {}, nil
	}
}
