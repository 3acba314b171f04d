// Package report writes the aggregation outputs to CSV files for
// downstream consumption: the KPI summary, the per-city risk distribution,
// the long-format pollutant trend table, and a convenience dump of the
// full staged dataset. Layout is presentation detail; the numbers come
// straight from the analyze package.
package report

import (
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"airwatch/internal/analyze"
	"airwatch/internal/types"
)

// Output file names under the report directory.
const (
	SummaryFile   = "summary_metrics.csv"
	CityRiskFile  = "city_risk_distribution.csv"
	TrendsFile    = "pollution_trends.csv"
	ProcessedFile = "air_quality_processed_main.csv"
)

// Writer renders aggregation results as CSV files under a fixed output
// directory.
type Writer struct {
	outDir string
	logger *slog.Logger
}

// NewWriter creates a report writer rooted at outDir, creating the
// directory if necessary.
func NewWriter(outDir string, logger *slog.Logger) (*Writer, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating report dir %s: %w", outDir, err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{outDir: outDir, logger: logger}, nil
}

// WriteAll writes every report file for one aggregation result plus the
// full record collection. Each file is written independently; the first
// failure is returned but does not roll back files already written.
func (w *Writer) WriteAll(result analyze.Result, records []types.HourlyRecord) error {
	if err := w.WriteSummary(result.KPIs); err != nil {
		return err
	}
	if err := w.WriteCityRisk(result.CityRisk); err != nil {
		return err
	}
	if err := w.WriteTrends(result.Trends); err != nil {
		return err
	}
	return w.WriteProcessed(records)
}

// WriteSummary writes the KPI table as (metric, value, detail) rows,
// mirroring the long-standing summary format: ranking KPIs put the winning
// city/hour in value and the mean in detail; risk percentages emit one row
// per bucket.
func (w *Writer) WriteSummary(kpis types.KpiReport) error {
	rows := [][]string{{"metric", "value", "detail"}}

	if kpi := kpis.CityHighestAvgPM25; kpi != nil {
		rows = append(rows, []string{"city_highest_avg_pm2_5", kpi.City, formatFloat(kpi.Average)})
	}
	if kpi := kpis.CityHighestSeverity; kpi != nil {
		rows = append(rows, []string{"city_highest_severity_score", kpi.City, formatFloat(kpi.Average)})
	}
	if kpi := kpis.WorstHourAvgPM25; kpi != nil {
		rows = append(rows, []string{"worst_hour_by_avg_pm2_5", strconv.Itoa(kpi.Hour), formatFloat(kpi.Average)})
	}
	if len(kpis.RiskPercentage) > 0 {
		buckets := make([]string, 0, len(kpis.RiskPercentage))
		for bucket := range kpis.RiskPercentage {
			buckets = append(buckets, bucket)
		}
		sort.Strings(buckets)
		for _, bucket := range buckets {
			rows = append(rows, []string{"risk_percentage", bucket, formatFloat(kpis.RiskPercentage[bucket])})
		}
	}

	return w.writeFile(SummaryFile, rows)
}

// WriteCityRisk writes the per-city risk distribution.
func (w *Writer) WriteCityRisk(dist []types.CityRiskRow) error {
	rows := [][]string{{"city", "risk_flag", "count", "percent"}}
	for _, r := range dist {
		rows = append(rows, []string{r.City, r.Risk, strconv.Itoa(r.Count), formatFloat(r.Percent)})
	}
	return w.writeFile(CityRiskFile, rows)
}

// WriteTrends writes the long-format pollutant trend table.
func (w *Writer) WriteTrends(trends []types.TrendRow) error {
	rows := [][]string{{"city", "time", "pm2_5", "pm10", "ozone"}}
	for _, t := range trends {
		rows = append(rows, []string{
			t.City,
			formatTime(t.Timestamp),
			formatOptional(t.PM25),
			formatOptional(t.PM10),
			formatOptional(t.Ozone),
		})
	}
	return w.writeFile(TrendsFile, rows)
}

// WriteProcessed dumps the full staged dataset.
func (w *Writer) WriteProcessed(records []types.HourlyRecord) error {
	rows := [][]string{{
		"city", "time", "hour", "pm10", "pm2_5", "carbon_monoxide",
		"nitrogen_dioxide", "sulphur_dioxide", "ozone", "uv_index",
		"aqi_category", "severity_score", "risk_flag",
	}}
	for i := range records {
		r := &records[i]
		hour := ""
		if h, ok := r.Hour(); ok {
			hour = strconv.Itoa(h)
		}
		rows = append(rows, []string{
			r.City,
			formatTime(r.Timestamp),
			hour,
			formatOptional(r.PM10),
			formatOptional(r.PM25),
			formatOptional(r.CarbonMonoxide),
			formatOptional(r.NitrogenDioxide),
			formatOptional(r.SulphurDioxide),
			formatOptional(r.Ozone),
			formatOptional(r.UVIndex),
			string(r.AQICategory),
			formatFloat(r.SeverityScore),
			string(r.RiskFlag),
		})
	}
	return w.writeFile(ProcessedFile, rows)
}

func (w *Writer) writeFile(name string, rows [][]string) error {
	path := filepath.Join(w.outDir, name)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flushing %s: %w", path, err)
	}

	w.logger.Info("report written", "file", path, "rows", len(rows)-1)
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatOptional(v *float64) string {
	if v == nil {
		return ""
	}
	return formatFloat(*v)
}

func formatTime(ts *time.Time) string {
	if ts == nil {
		return ""
	}
	return ts.UTC().Format("2006-01-02 15:04:05")
}
