// Package main is the entrypoint for the airwatch ETL pipeline.
//
// The pipeline is a batch, run-to-completion job executed once per
// invocation: it fetches hourly air-quality measurements for the
// configured city set, derives per-hour severity and risk labels, loads
// the staged rows into Postgres, and writes summary KPIs and per-city
// tables for downstream reporting.
//
// This file handles dependency wiring and stage sequencing; all business
// logic lives in the internal packages. Per-location failures degrade
// gracefully to partial results. Only configuration errors and the
// complete absence of usable data exit non-zero.
package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"airwatch/internal/analyze"
	"airwatch/internal/config"
	"airwatch/internal/db"
	"airwatch/internal/extract"
	"airwatch/internal/load"
	"airwatch/internal/metrics"
	"airwatch/internal/report"
	"airwatch/internal/sink"
	"airwatch/internal/transform"
	"airwatch/internal/types"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stderr, nil)).Error("configuration failed", "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.LogLevel).With("run_id", uuid.New().String())

	if err := run(context.Background(), cfg, logger); err != nil {
		logger.Error("pipeline failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	started := time.Now()
	logger.Info("pipeline starting", "environment", cfg.Environment)

	locations, err := cfg.API.Locations()
	if err != nil {
		return err
	}

	// Storage is a startup requirement: verify connectivity before any
	// network activity against the upstream API.
	pool, err := newPool(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer pool.Close()

	repo := db.NewMeasurementRepository(pool, cfg.Database.Table)
	if err := repo.EnsureSchema(ctx); err != nil {
		return err
	}

	rawSink, err := newRawSink(ctx, cfg, logger)
	if err != nil {
		return err
	}

	publisher, err := newPublisher(ctx, cfg, logger)
	if err != nil {
		return err
	}

	client := extract.NewClient(cfg.API.BaseURL, cfg.API.MaxRetries, cfg.API.Timeout)
	fetcher := extract.NewFetcher(extract.FetcherConfig{
		Client:      client,
		Sink:        rawSink,
		Locations:   locations,
		Delay:       cfg.API.SleepBetweenCalls,
		Concurrency: cfg.API.Concurrency,
		Logger:      logger,
	})

	// Stage 1: extract.
	results := fetcher.FetchAll(ctx)
	succeeded := 0
	for _, res := range results {
		if res.Success {
			succeeded++
		}
	}
	logger.Info("extraction complete",
		"locations", len(results),
		"succeeded", succeeded,
		"failed", len(results)-succeeded,
	)

	// Stage 2: transform.
	records := transform.FlattenAll(results, logger)
	logger.Info("transformation complete", "rows", len(records))

	stats := metrics.RunStats{
		LocationsFetched: succeeded,
		LocationsFailed:  len(results) - succeeded,
		RowsStaged:       len(records),
	}

	if len(records) == 0 {
		publishStats(ctx, publisher, stats, logger)
		return noUsableData(results)
	}

	// Stage 3: load.
	loader := load.NewLoader(repo, cfg.Database.BatchSize, logger)
	inserted, failedBatches := loader.Load(ctx, records)
	stats.RowsInserted = inserted
	stats.BatchesFailed = failedBatches

	// Stage 4: aggregate and report.
	result := analyze.Aggregate(records)
	writer, err := report.NewWriter(cfg.Report.OutDir, logger)
	if err != nil {
		return err
	}
	if err := writer.WriteAll(result, records); err != nil {
		return err
	}

	publishStats(ctx, publisher, stats, logger)

	logger.Info("pipeline complete",
		"duration", time.Since(started).Round(time.Millisecond).String(),
		"rows_staged", len(records),
		"rows_inserted", inserted,
		"failed_batches", failedBatches,
	)
	return nil
}

// noUsableData builds the run-level failure raised when zero records
// survive transformation, carrying each location's last error for the
// operator.
func noUsableData(results []types.FetchResult) error {
	details := make(map[string]any, len(results))
	for _, res := range results {
		if !res.Success {
			details[res.Location.Name] = res.Err
		}
	}
	return types.NewAppError(types.ErrCodeNoData, "no usable data from any location", nil).
		WithDetails(details)
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}

func newPool(ctx context.Context, dbCfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(dbCfg.URL.Unmask())
	if err != nil {
		return nil, err
	}
	poolCfg.MaxConns = int32(dbCfg.MaxConns)
	poolCfg.MaxConnLifetime = dbCfg.MaxConnLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, err
	}
	pingCtx, cancel := context.WithTimeout(ctx, dbCfg.AcquireTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

// newRawSink selects the raw-payload archive: S3 when a bucket is
// configured, local files otherwise.
func newRawSink(ctx context.Context, cfg *config.Config, logger *slog.Logger) (sink.RawSink, error) {
	if cfg.Archive.Bucket == "" {
		return sink.NewFileSink(cfg.Archive.RawDir)
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
	if err != nil {
		return nil, err
	}
	s3Client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.AWS.EndpointURL != "" {
			o.BaseEndpoint = &cfg.AWS.EndpointURL
		}
	})
	logger.Info("raw payloads archiving to S3", "bucket", cfg.Archive.Bucket)
	return sink.NewS3Sink(s3Client, cfg.Archive.Bucket, cfg.Archive.Prefix)
}

func newPublisher(ctx context.Context, cfg *config.Config, logger *slog.Logger) (metrics.Publisher, error) {
	if !cfg.Observability.EnableMetrics {
		return metrics.NoopPublisher{}, nil
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
	if err != nil {
		return nil, err
	}
	return metrics.NewCloudWatchPublisher(
		cloudwatch.NewFromConfig(awsCfg),
		cfg.Observability.MetricNamespace,
		logger,
	), nil
}

func publishStats(ctx context.Context, publisher metrics.Publisher, stats metrics.RunStats, logger *slog.Logger) {
	if err := publisher.PublishRunStats(ctx, stats); err != nil {
		logger.Warn("failed to publish run stats", "error", err)
	}
}
