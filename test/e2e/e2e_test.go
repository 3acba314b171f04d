//go:build e2e

// Package e2e contains integration tests that exercise the storage path of
// the pipeline (Loader -> MeasurementRepository -> PostgreSQL) against a
// real database.
//
// The tests require a local PostgreSQL to be reachable via E2E_DATABASE_URL
// (or the docker compose default). Run with:
//
//	go test -v -tags e2e -timeout 60s ./test/e2e/
//
// The suite is gated behind the "e2e" build tag and is NOT included in the
// standard `go test ./...` invocation. When the database is down TestMain
// skips all tests instead of failing, so the command is safe to run anywhere.
package e2e

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"testing"
	"time"

	"airwatch/internal/load"
	"airwatch/internal/transform"
	"airwatch/internal/types"
)

// env is the shared test environment initialized in TestMain.
var env *TestEnv

func TestMain(m *testing.M) {
	cfg := DefaultTestConfig()

	var err error
	env, err = NewTestEnv(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "e2e environment not ready, skipping all tests: %v\n", err)
		// Exit 0 so CI without a local stack is not marked failed.
		os.Exit(0)
	}

	// os.Exit does not run deferred functions; close explicitly.
	code := m.Run()
	env.Close()
	os.Exit(code)
}

func stagedRecords(n int) []types.HourlyRecord {
	records := make([]types.HourlyRecord, 0, n)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		ts := base.Add(time.Duration(i) * time.Hour)
		pm25 := float64(10 + i%300)
		rec := types.HourlyRecord{
			City:      "Delhi",
			Timestamp: &ts,
			PM25:      &pm25,
		}
		rec.AQICategory = transform.ClassifyAQI(rec.PM25)
		rec.SeverityScore = transform.Severity(&rec)
		rec.RiskFlag = transform.ClassifyRisk(rec.SeverityScore)
		records = append(records, rec)
	}
	return records
}

// TestStorageRoundTrip inserts staged rows through the Loader's batching
// path and reads them back, verifying the derived fields survive storage
// intact.
func TestStorageRoundTrip(t *testing.T) {
	env.CleanupTestData(t)

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	loader := load.NewLoader(env.Repo, 100, logger)

	records := stagedRecords(250)
	inserted, failed := loader.Load(context.Background(), records)
	if failed != 0 {
		t.Fatalf("expected no failed batches, got %d", failed)
	}
	if inserted != len(records) {
		t.Fatalf("expected %d rows inserted, got %d", len(records), inserted)
	}

	readBack, err := env.Repo.SelectAll(context.Background())
	if err != nil {
		t.Fatalf("reading staged rows back: %v", err)
	}
	if len(readBack) != len(records) {
		t.Fatalf("expected %d rows read back, got %d", len(records), len(readBack))
	}

	for i := range readBack {
		if err := transform.Recompute(&readBack[i]); err != nil {
			t.Fatalf("row %d derived fields corrupted by storage: %v", i, err)
		}
	}
}

// TestNullableColumns verifies that rows with absent timestamps and
// pollutants survive the insert/select cycle with their NULLs intact.
func TestNullableColumns(t *testing.T) {
	env.CleanupTestData(t)

	pm10 := 42.0
	records := []types.HourlyRecord{
		{City: "Mumbai", PM10: &pm10, AQICategory: types.AQIGood, SeverityScore: 126, RiskFlag: types.RiskLow},
	}
	if err := env.Repo.InsertRows(context.Background(), records); err != nil {
		t.Fatalf("inserting nullable row: %v", err)
	}

	readBack, err := env.Repo.SelectAll(context.Background())
	if err != nil {
		t.Fatalf("reading back: %v", err)
	}
	if len(readBack) != 1 {
		t.Fatalf("expected 1 row, got %d", len(readBack))
	}

	rec := readBack[0]
	if rec.Timestamp != nil {
		t.Fatal("expected NULL timestamp to read back as nil")
	}
	if rec.PM25 != nil {
		t.Fatal("expected NULL pm2_5 to read back as nil")
	}
	if rec.PM10 == nil || *rec.PM10 != pm10 {
		t.Fatalf("expected pm10 %v, got %v", pm10, rec.PM10)
	}
}
