package report

import (
	"encoding/csv"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"airwatch/internal/analyze"
	"airwatch/internal/types"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func f(v float64) *float64 { return &v }

func readCSV(t *testing.T, dir, name string) [][]string {
	t.Helper()
	file, err := os.Open(filepath.Join(dir, name))
	require.NoError(t, err)
	defer file.Close()
	rows, err := csv.NewReader(file).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestWriteSummary(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir, testLogger())
	require.NoError(t, err)

	kpis := types.KpiReport{
		CityHighestAvgPM25:  &types.CityAverage{City: "Delhi", Average: 101.5},
		CityHighestSeverity: &types.CityAverage{City: "Kolkata", Average: 420},
		WorstHourAvgPM25:    &types.HourAverage{Hour: 6, Average: 130.25},
		RiskPercentage: map[string]float64{
			"Low Risk":  66.67,
			"High Risk": 33.33,
		},
	}
	require.NoError(t, w.WriteSummary(kpis))

	rows := readCSV(t, dir, SummaryFile)
	require.Len(t, rows, 6)
	assert.Equal(t, []string{"metric", "value", "detail"}, rows[0])
	assert.Equal(t, []string{"city_highest_avg_pm2_5", "Delhi", "101.5"}, rows[1])
	assert.Equal(t, []string{"city_highest_severity_score", "Kolkata", "420"}, rows[2])
	assert.Equal(t, []string{"worst_hour_by_avg_pm2_5", "6", "130.25"}, rows[3])
	// Risk buckets in sorted order.
	assert.Equal(t, []string{"risk_percentage", "High Risk", "33.33"}, rows[4])
	assert.Equal(t, []string{"risk_percentage", "Low Risk", "66.67"}, rows[5])
}

func TestWriteSummaryEmptyKPIs(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir, testLogger())
	require.NoError(t, err)

	require.NoError(t, w.WriteSummary(types.KpiReport{}))
	rows := readCSV(t, dir, SummaryFile)
	require.Len(t, rows, 1, "header only")
}

func TestWriteCityRisk(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir, testLogger())
	require.NoError(t, err)

	dist := []types.CityRiskRow{
		{City: "Delhi", Risk: "High Risk", Count: 2, Percent: 40},
		{City: "Delhi", Risk: "Low Risk", Count: 3, Percent: 60},
	}
	require.NoError(t, w.WriteCityRisk(dist))

	rows := readCSV(t, dir, CityRiskFile)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"city", "risk_flag", "count", "percent"}, rows[0])
	assert.Equal(t, []string{"Delhi", "High Risk", "2", "40"}, rows[1])
	assert.Equal(t, []string{"Delhi", "Low Risk", "3", "60"}, rows[2])
}

func TestWriteTrends(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir, testLogger())
	require.NoError(t, err)

	ts := time.Date(2024, 1, 1, 5, 0, 0, 0, time.UTC)
	trends := []types.TrendRow{
		{City: "Delhi", Timestamp: &ts, PM25: f(60.5), Ozone: f(12)},
		{City: "Delhi", PM10: f(80)},
	}
	require.NoError(t, w.WriteTrends(trends))

	rows := readCSV(t, dir, TrendsFile)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"city", "time", "pm2_5", "pm10", "ozone"}, rows[0])
	assert.Equal(t, []string{"Delhi", "2024-01-01 05:00:00", "60.5", "", "12"}, rows[1])
	assert.Equal(t, []string{"Delhi", "", "", "80", ""}, rows[2])
}

func TestWriteProcessed(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir, testLogger())
	require.NoError(t, err)

	ts := time.Date(2024, 1, 1, 23, 0, 0, 0, time.UTC)
	records := []types.HourlyRecord{
		{
			City:          "Delhi",
			Timestamp:     &ts,
			PM25:          f(60),
			AQICategory:   types.AQIModerate,
			SeverityScore: 300,
			RiskFlag:      types.RiskModerate,
		},
		{City: "Mumbai", PM10: f(5), AQICategory: types.AQIGood, SeverityScore: 15, RiskFlag: types.RiskLow},
	}
	require.NoError(t, w.WriteProcessed(records))

	rows := readCSV(t, dir, ProcessedFile)
	require.Len(t, rows, 3)
	assert.Equal(t, "city", rows[0][0])

	first := rows[1]
	assert.Equal(t, "Delhi", first[0])
	assert.Equal(t, "2024-01-01 23:00:00", first[1])
	assert.Equal(t, "23", first[2])
	assert.Equal(t, "60", first[4])
	assert.Equal(t, "Moderate", first[10])
	assert.Equal(t, "300", first[11])
	assert.Equal(t, "Moderate Risk", first[12])

	second := rows[2]
	assert.Equal(t, "", second[1], "undefined time blank")
	assert.Equal(t, "", second[2], "undefined hour blank")
}

func TestWriteAll(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir, testLogger())
	require.NoError(t, err)

	records := []types.HourlyRecord{
		{City: "Delhi", PM25: f(10), AQICategory: types.AQIGood, SeverityScore: 50, RiskFlag: types.RiskLow},
	}
	require.NoError(t, w.WriteAll(analyze.Aggregate(records), records))

	for _, name := range []string{SummaryFile, CityRiskFile, TrendsFile, ProcessedFile} {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.NoError(t, err, name)
	}
}
