// Package load implements the load stage: chunking the staged dataset into
// fixed-size batches and inserting them into the tabular storage backend.
// Insert failures are per-batch: the failing batch is logged with one
// representative row and the run continues with the next batch. There is
// no transactional rollback across batches and no automatic retry.
package load

import (
	"context"
	"log/slog"

	"airwatch/internal/db"
	"airwatch/internal/types"
)

// DefaultBatchSize is the reference insert batch size.
const DefaultBatchSize = 200

// RowInserter abstracts the repository's batch insert for testability.
// Production code uses *db.MeasurementRepository.
type RowInserter interface {
	InsertRows(ctx context.Context, rows []types.HourlyRecord) error
}

// Loader batches staged rows into the storage backend.
type Loader struct {
	repo      RowInserter
	batchSize int
	logger    *slog.Logger
}

// NewLoader creates a Loader. batchSize values <= 0 select
// DefaultBatchSize.
func NewLoader(repo RowInserter, batchSize int, logger *slog.Logger) *Loader {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{repo: repo, batchSize: batchSize, logger: logger}
}

// Load inserts the rows in batches and returns the number of rows inserted
// and the number of batches that failed. A failed batch is logged with one
// example row; it never aborts the remaining batches.
func (l *Loader) Load(ctx context.Context, rows []types.HourlyRecord) (inserted int, failedBatches int) {
	total := len(rows)
	for start := 0; start < total; start += l.batchSize {
		end := start + l.batchSize
		if end > total {
			end = total
		}
		batch := rows[start:end]

		if err := l.repo.InsertRows(ctx, batch); err != nil {
			failedBatches++
			l.logger.Error("batch insert failed",
				"rows_from", start,
				"rows_to", end,
				"error", err,
				"example_row", db.ExampleRow(&batch[0]),
			)
			continue
		}

		inserted += len(batch)
		l.logger.Info("batch inserted", "rows_from", start, "rows_to", end)
	}

	l.logger.Info("load complete",
		"total_rows", total,
		"inserted", inserted,
		"failed_batches", failedBatches,
	)
	return inserted, failedBatches
}
