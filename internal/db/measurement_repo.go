package db

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/jackc/pgx/v5"

	"airwatch/internal/types"
)

// DefaultTableName is the staged-data table used when none is configured.
const DefaultTableName = "air_quality_data"

// measurementColumns is the column list for staged rows, in insert order.
const measurementColumns = `city, time, hour, pm10, pm2_5, carbon_monoxide,
	nitrogen_dioxide, sulphur_dioxide, ozone, uv_index, aqi_category,
	severity_score, risk_flag`

// MeasurementRepository provides access to the staged air-quality table.
type MeasurementRepository struct {
	db    DBTX
	table string
}

// NewMeasurementRepository creates a repository over the given connection
// (pool or transaction) and table name. An empty table name selects
// DefaultTableName.
func NewMeasurementRepository(db DBTX, table string) *MeasurementRepository {
	if table == "" {
		table = DefaultTableName
	}
	return &MeasurementRepository{db: db, table: table}
}

// EnsureSchema creates the staged-data table if it does not exist. The
// schema mirrors the staged row shape: nullable pollutant columns, a
// nullable timestamp (unparsable upstream time entries), and the three
// derived label columns.
func (r *MeasurementRepository) EnsureSchema(ctx context.Context) error {
	ddl := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id               BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
			city             TEXT NOT NULL,
			time             TIMESTAMPTZ,
			hour             SMALLINT,
			pm10             DOUBLE PRECISION,
			pm2_5            DOUBLE PRECISION,
			carbon_monoxide  DOUBLE PRECISION,
			nitrogen_dioxide DOUBLE PRECISION,
			sulphur_dioxide  DOUBLE PRECISION,
			ozone            DOUBLE PRECISION,
			uv_index         DOUBLE PRECISION,
			aqi_category     TEXT,
			severity_score   DOUBLE PRECISION,
			risk_flag        TEXT,
			inserted_at      TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, r.table)
	if _, err := r.db.Exec(ctx, ddl); err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to ensure staged table", err)
	}

	idx := fmt.Sprintf(
		`CREATE INDEX IF NOT EXISTS idx_%s_city_time ON %s (city, time)`,
		r.table, r.table)
	if _, err := r.db.Exec(ctx, idx); err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to ensure staged table index", err)
	}
	return nil
}

// InsertRows inserts one batch of staged rows using a single pgx batch
// round trip. NaN and Infinity values are substituted with NULL before
// insertion since non-finite numerics are not representable in every
// storage backend. The caller owns chunking and per-batch failure policy.
func (r *MeasurementRepository) InsertRows(ctx context.Context, rows []types.HourlyRecord) error {
	if len(rows) == 0 {
		return nil
	}

	sql := fmt.Sprintf(
		`INSERT INTO %s (%s) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		r.table, measurementColumns)

	batch := &pgx.Batch{}
	for i := range rows {
		batch.Queue(sql, insertArgs(&rows[i])...)
	}

	results := r.db.SendBatch(ctx, batch)
	defer results.Close()

	for range rows {
		if _, err := results.Exec(); err != nil {
			return types.NewAppError(types.ErrCodeStorageInsert, "batch insert failed", err)
		}
	}
	return nil
}

// SelectAll reads the full staged table back, ordered by city then time so
// downstream aggregation sees a deterministic sequence.
func (r *MeasurementRepository) SelectAll(ctx context.Context) ([]types.HourlyRecord, error) {
	sql := fmt.Sprintf(
		`SELECT %s FROM %s ORDER BY city, time NULLS LAST, id`,
		measurementColumns, r.table)

	rows, err := r.db.Query(ctx, sql)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query staged rows", err)
	}
	defer rows.Close()

	var records []types.HourlyRecord
	for rows.Next() {
		var rec types.HourlyRecord
		var hour *int16
		var aqi, risk *string
		var severity *float64
		if err := rows.Scan(
			&rec.City, &rec.Timestamp, &hour,
			&rec.PM10, &rec.PM25, &rec.CarbonMonoxide,
			&rec.NitrogenDioxide, &rec.SulphurDioxide, &rec.Ozone,
			&rec.UVIndex, &aqi, &severity, &risk,
		); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan staged row", err)
		}
		if aqi != nil {
			rec.AQICategory = types.AQICategory(*aqi)
		}
		if risk != nil {
			rec.RiskFlag = types.RiskFlag(*risk)
		}
		if severity != nil {
			rec.SeverityScore = *severity
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating staged rows", err)
	}
	return records, nil
}

// insertArgs maps a record to the positional insert arguments, applying
// non-finite substitution to every numeric column.
func insertArgs(rec *types.HourlyRecord) []any {
	var hour any
	if h, ok := rec.Hour(); ok {
		hour = int16(h)
	}

	var ts any
	if rec.Timestamp != nil {
		ts = rec.Timestamp.UTC()
	}

	return []any{
		rec.City,
		ts,
		hour,
		SanitizeFloat(rec.PM10),
		SanitizeFloat(rec.PM25),
		SanitizeFloat(rec.CarbonMonoxide),
		SanitizeFloat(rec.NitrogenDioxide),
		SanitizeFloat(rec.SulphurDioxide),
		SanitizeFloat(rec.Ozone),
		SanitizeFloat(rec.UVIndex),
		string(rec.AQICategory),
		sanitizeValue(rec.SeverityScore),
		string(rec.RiskFlag),
	}
}

// SanitizeFloat converts an optional float to a driver value, substituting
// NULL for absent, NaN, and Infinity values.
func SanitizeFloat(v *float64) any {
	if v == nil {
		return nil
	}
	return sanitizeValue(*v)
}

// sanitizeValue substitutes NULL for non-finite values.
func sanitizeValue(v float64) any {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return v
}

// ExampleRow renders a compact representation of a record for insert
// failure logs, where one representative offending row is reported.
func ExampleRow(rec *types.HourlyRecord) map[string]any {
	ts := ""
	if rec.Timestamp != nil {
		ts = rec.Timestamp.UTC().Format(time.RFC3339)
	}
	return map[string]any{
		"city":           rec.City,
		"time":           ts,
		"pm2_5":          SanitizeFloat(rec.PM25),
		"severity_score": rec.SeverityScore,
		"risk_flag":      string(rec.RiskFlag),
	}
}
