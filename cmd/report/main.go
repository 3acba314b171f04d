// Package main is the entrypoint for the standalone report refresher.
//
// It reads the full staged dataset back from Postgres, recomputes the KPI
// report and derived tables, and rewrites the CSV report files. This lets
// an analyst refresh reports from previously loaded data without
// re-fetching from the upstream API.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"airwatch/internal/analyze"
	"airwatch/internal/config"
	"airwatch/internal/db"
	"airwatch/internal/report"
	"airwatch/internal/types"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stderr, nil)).Error("configuration failed", "error", err)
		os.Exit(1)
	}

	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		lvl = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})).
		With("run_id", uuid.New().String())

	if err := run(context.Background(), cfg, logger); err != nil {
		logger.Error("report refresh failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	pool, err := pgxpool.New(ctx, cfg.Database.URL.Unmask())
	if err != nil {
		return err
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		return err
	}

	repo := db.NewMeasurementRepository(pool, cfg.Database.Table)
	records, err := repo.SelectAll(ctx)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return types.NewAppError(types.ErrCodeNoData, "staged table is empty; run the pipeline first", nil)
	}
	logger.Info("staged rows loaded", "rows", len(records))

	result := analyze.Aggregate(records)

	writer, err := report.NewWriter(cfg.Report.OutDir, logger)
	if err != nil {
		return err
	}
	if err := writer.WriteAll(result, records); err != nil {
		return err
	}

	logger.Info("reports refreshed", "out_dir", cfg.Report.OutDir)
	return nil
}
