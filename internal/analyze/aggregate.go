// Package analyze computes the run-level KPIs and derived tables from the
// full staged record collection. Aggregation is a pure function of its
// input: no I/O, no clock reads, and deterministic output for a given
// record set.
//
// Tie-breaks are deterministic: grouping keys (city names, hours) are
// ranked in sorted order and the first maximum wins, so equal means always
// resolve the same way regardless of input ordering.
package analyze

import (
	"math"
	"sort"

	"airwatch/internal/types"
)

// Result bundles the three aggregation outputs.
type Result struct {
	KPIs     types.KpiReport
	CityRisk []types.CityRiskRow
	Trends   []types.TrendRow
}

// Aggregate computes the KPI report, the per-city risk distribution, and
// the long-format pollutant trend table over the given records.
//
// Empty input yields empty outputs; it is the caller's decision whether
// "no data" is a run-level failure.
func Aggregate(records []types.HourlyRecord) Result {
	return Result{
		KPIs:     ComputeKPIs(records),
		CityRisk: CityRiskDistribution(records),
		Trends:   PollutionTrends(records),
	}
}

// ComputeKPIs derives the four summary statistics:
//
//   - city_highest_avg_pm2_5: city with the highest mean PM2.5, absent
//     values ignored; cities with no PM2.5 values at all are skipped.
//   - city_highest_severity_score: same pattern over severity score.
//   - risk_percentage: share of each risk bucket (plus "Unknown" for
//     absent flags) of the total record count, rounded to 2 decimals per
//     bucket. Buckets are rounded independently and need not sum to
//     exactly 100.
//   - worst_hour_by_avg_pm2_5: hour-of-day (0-23) with the highest mean
//     PM2.5; records with an undefined hour are excluded here only.
func ComputeKPIs(records []types.HourlyRecord) types.KpiReport {
	if len(records) == 0 {
		return types.KpiReport{}
	}

	kpis := types.KpiReport{
		CityHighestAvgPM25: topCityBy(records, func(r *types.HourlyRecord) (float64, bool) {
			if r.PM25 == nil {
				return 0, false
			}
			return *r.PM25, true
		}),
		CityHighestSeverity: topCityBy(records, func(r *types.HourlyRecord) (float64, bool) {
			return r.SeverityScore, true
		}),
		RiskPercentage: riskPercentages(records),
	}

	if worst := worstHour(records); worst != nil {
		kpis.WorstHourAvgPM25 = worst
	}

	return kpis
}

// topCityBy groups records by city, averages the extracted value over the
// records where it is present, and returns the city with the highest mean.
// Cities contributing no values are skipped entirely. Ties resolve to the
// first city in name order.
func topCityBy(records []types.HourlyRecord, value func(*types.HourlyRecord) (float64, bool)) *types.CityAverage {
	sums := make(map[string]float64)
	counts := make(map[string]int)
	for i := range records {
		v, ok := value(&records[i])
		if !ok {
			continue
		}
		sums[records[i].City] += v
		counts[records[i].City]++
	}
	if len(counts) == 0 {
		return nil
	}

	cities := make([]string, 0, len(counts))
	for city := range counts {
		cities = append(cities, city)
	}
	sort.Strings(cities)

	best := types.CityAverage{City: cities[0], Average: sums[cities[0]] / float64(counts[cities[0]])}
	for _, city := range cities[1:] {
		mean := sums[city] / float64(counts[city])
		if mean > best.Average {
			best = types.CityAverage{City: city, Average: mean}
		}
	}
	return &best
}

// riskPercentages counts each risk bucket, including an explicit "Unknown"
// bucket for absent flags, as a percentage of the total record count.
func riskPercentages(records []types.HourlyRecord) map[string]float64 {
	counts := make(map[string]int)
	for i := range records {
		bucket := string(records[i].RiskFlag)
		if bucket == "" {
			bucket = types.RiskUnknown
		}
		counts[bucket]++
	}

	total := float64(len(records))
	pct := make(map[string]float64, len(counts))
	for bucket, n := range counts {
		pct[bucket] = Round2(float64(n) / total * 100)
	}
	return pct
}

// worstHour groups records by hour-of-day and returns the hour with the
// highest mean PM2.5. Records with an undefined hour or absent PM2.5 are
// excluded. Ties resolve to the earliest hour.
func worstHour(records []types.HourlyRecord) *types.HourAverage {
	var sums, counts [24]float64
	seen := false
	for i := range records {
		hour, ok := records[i].Hour()
		if !ok || records[i].PM25 == nil {
			continue
		}
		sums[hour] += *records[i].PM25
		counts[hour]++
		seen = true
	}
	if !seen {
		return nil
	}

	best := types.HourAverage{Hour: -1}
	for h := 0; h < 24; h++ {
		if counts[h] == 0 {
			continue
		}
		mean := sums[h] / counts[h]
		if best.Hour < 0 || mean > best.Average {
			best = types.HourAverage{Hour: h, Average: mean}
		}
	}
	return &best
}

// CityRiskDistribution returns, for every (city, risk flag) pair observed,
// the record count and the percentage that count represents of the city's
// total record count, rounded to 2 decimals. Rows are ordered by city then
// risk bucket for stable output.
func CityRiskDistribution(records []types.HourlyRecord) []types.CityRiskRow {
	if len(records) == 0 {
		return nil
	}

	type key struct {
		city string
		risk string
	}
	counts := make(map[key]int)
	cityTotals := make(map[string]int)
	for i := range records {
		risk := string(records[i].RiskFlag)
		if risk == "" {
			risk = types.RiskUnknown
		}
		counts[key{records[i].City, risk}]++
		cityTotals[records[i].City]++
	}

	rows := make([]types.CityRiskRow, 0, len(counts))
	for k, n := range counts {
		rows = append(rows, types.CityRiskRow{
			City:    k.city,
			Risk:    k.risk,
			Count:   n,
			Percent: Round2(float64(n) / float64(cityTotals[k.city]) * 100),
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].City != rows[j].City {
			return rows[i].City < rows[j].City
		}
		return rows[i].Risk < rows[j].Risk
	})
	return rows
}

// PollutionTrends returns the long-format (city, timestamp, pm2_5, pm10,
// ozone) table. Rows where all three trend pollutants are absent are
// excluded; a row with at least one of the three present is retained even
// if every other pollutant is absent. Input ordering is preserved.
func PollutionTrends(records []types.HourlyRecord) []types.TrendRow {
	var rows []types.TrendRow
	for i := range records {
		r := &records[i]
		if r.PM25 == nil && r.PM10 == nil && r.Ozone == nil {
			continue
		}
		rows = append(rows, types.TrendRow{
			City:      r.City,
			Timestamp: r.Timestamp,
			PM25:      r.PM25,
			PM10:      r.PM10,
			Ozone:     r.Ozone,
		})
	}
	return rows
}

// Round2 rounds to exactly 2 decimal places, half away from zero.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
