// Package transform converts one location's raw hourly-array payload into
// staged per-hour records, computing the derived AQI category, severity
// score, and risk flag for each row.
//
// The hourly section of a payload contains parallel arrays (time plus one
// array per pollutant) that are nominally the same length but may be ragged
// due to upstream inconsistency. The transform right-pads every array with
// absent markers up to the maximum observed length before zipping into
// rows, so data loss within a location is only ever size-for-size padding,
// never silent truncation.
package transform

import (
	"fmt"
	"log/slog"
	"math"
	"time"

	"airwatch/internal/types"
)

// timeLayouts are the accepted timestamp formats, tried in order. The
// remote API returns minute-resolution ISO-8601 ("2024-01-01T05:00");
// second-resolution and zoned variants are accepted for robustness.
var timeLayouts = []string{
	"2006-01-02T15:04",
	"2006-01-02T15:04:05",
	time.RFC3339,
}

// Severity formula weights. The score is a weighted linear combination of
// the six pollutant concentrations, with absent values contributing zero.
const (
	weightPM25  = 5
	weightPM10  = 3
	weightNO2   = 4
	weightSO2   = 4
	weightCO    = 2
	weightOzone = 3
)

// AQI category breakpoints on PM2.5 and risk breakpoints on severity score.
const (
	aqiGoodMax          = 50
	aqiModerateMax      = 100
	aqiUnhealthyMax     = 200
	aqiVeryUnhealthyMax = 300

	riskModerateMin = 200
	riskHighMin     = 400
)

// ClassifyAQI maps a PM2.5 concentration to its five-level AQI category.
// A missing PM2.5 is classified as 0, i.e. Good.
func ClassifyAQI(pm25 *float64) types.AQICategory {
	v := 0.0
	if pm25 != nil {
		v = *pm25
	}
	switch {
	case v <= aqiGoodMax:
		return types.AQIGood
	case v <= aqiModerateMax:
		return types.AQIModerate
	case v <= aqiUnhealthyMax:
		return types.AQIUnhealthy
	case v <= aqiVeryUnhealthyMax:
		return types.AQIVeryUnhealthy
	default:
		return types.AQIHazardous
	}
}

// Severity computes the weighted pollution severity score for one record.
// Absent pollutants contribute zero; they are never a reason to drop the
// row.
func Severity(r *types.HourlyRecord) float64 {
	return orZero(r.PM25)*weightPM25 +
		orZero(r.PM10)*weightPM10 +
		orZero(r.NitrogenDioxide)*weightNO2 +
		orZero(r.SulphurDioxide)*weightSO2 +
		orZero(r.CarbonMonoxide)*weightCO +
		orZero(r.Ozone)*weightOzone
}

// ClassifyRisk maps a severity score to its three-level risk flag.
func ClassifyRisk(severity float64) types.RiskFlag {
	switch {
	case severity > riskHighMin:
		return types.RiskHigh
	case severity > riskModerateMin:
		return types.RiskModerate
	default:
		return types.RiskLow
	}
}

// Flatten converts one location's payload into a sequence of staged hourly
// records, possibly empty.
//
// An empty payload or one without an hourly section yields an empty slice
// and a logged "no data" condition; it is not an error. Rows survive with
// partial data: a row is dropped only when all six pollutant fields are
// simultaneously absent. Unparsable time entries leave the row's timestamp
// undefined without dropping the row.
func Flatten(loc types.Location, payload *types.HourlyPayload, logger *slog.Logger) []types.HourlyRecord {
	if logger == nil {
		logger = slog.Default()
	}

	if payload == nil || payload.Hourly == nil {
		logger.Warn("no hourly data for location", "city", loc.Name)
		return nil
	}

	city := payload.City
	if city == "" {
		city = loc.Name
	}

	h := payload.Hourly
	maxLen := maxLength(
		len(h.Time),
		len(h.PM10),
		len(h.PM25),
		len(h.CarbonMonoxide),
		len(h.NitrogenDioxide),
		len(h.SulphurDioxide),
		len(h.Ozone),
		len(h.UVIndex),
	)
	if maxLen == 0 {
		logger.Warn("hourly section is empty", "city", loc.Name)
		return nil
	}

	records := make([]types.HourlyRecord, 0, maxLen)
	droppedEmpty := 0
	badTimestamps := 0

	for i := 0; i < maxLen; i++ {
		rec := types.HourlyRecord{
			City:            city,
			PM10:            valueAt(h.PM10, i),
			PM25:            valueAt(h.PM25, i),
			CarbonMonoxide:  valueAt(h.CarbonMonoxide, i),
			NitrogenDioxide: valueAt(h.NitrogenDioxide, i),
			SulphurDioxide:  valueAt(h.SulphurDioxide, i),
			Ozone:           valueAt(h.Ozone, i),
			UVIndex:         valueAt(h.UVIndex, i),
		}

		if ts, ok := parseTime(h.Time, i); ok {
			rec.Timestamp = &ts
		} else if i < len(h.Time) && h.Time[i] != nil {
			badTimestamps++
		}

		if allAbsent(rec.Pollutants()) {
			droppedEmpty++
			continue
		}

		rec.AQICategory = ClassifyAQI(rec.PM25)
		rec.SeverityScore = Severity(&rec)
		rec.RiskFlag = ClassifyRisk(rec.SeverityScore)
		records = append(records, rec)
	}

	logger.Info("flattened hourly payload",
		"city", city,
		"rows", len(records),
		"padded_length", maxLen,
		"dropped_empty", droppedEmpty,
		"bad_timestamps", badTimestamps,
	)

	return records
}

// FlattenAll transforms every successful fetch result and concatenates the
// rows into one dataset. Per-location failures have already been filtered
// out by the Fetcher; locations with no data contribute zero rows and the
// run continues.
func FlattenAll(results []types.FetchResult, logger *slog.Logger) []types.HourlyRecord {
	if logger == nil {
		logger = slog.Default()
	}

	var all []types.HourlyRecord
	for _, res := range results {
		if !res.Success {
			logger.Warn("skipping failed location",
				"city", res.Location.Name,
				"error", res.Err,
				"attempts", res.Attempts,
			)
			continue
		}
		all = append(all, Flatten(res.Location, res.Payload, logger)...)
	}
	return all
}

// parseTime parses the i-th time entry, trying each accepted layout.
// Out-of-range indices, null entries, and unparsable strings all report
// false; the row itself survives with an undefined hour.
func parseTime(times []*string, i int) (time.Time, bool) {
	if i >= len(times) || times[i] == nil {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if ts, err := time.Parse(layout, *times[i]); err == nil {
			return ts.UTC(), true
		}
	}
	return time.Time{}, false
}

// valueAt returns the i-th element of a possibly short pollutant array,
// padding with nil past the end.
func valueAt(arr []*float64, i int) *float64 {
	if i >= len(arr) || arr[i] == nil {
		return nil
	}
	v := *arr[i]
	return &v
}

func allAbsent(values []*float64) bool {
	for _, v := range values {
		if v != nil {
			return false
		}
	}
	return true
}

func maxLength(lengths ...int) int {
	max := 0
	for _, l := range lengths {
		if l > max {
			max = l
		}
	}
	return max
}

func orZero(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

// Recompute re-derives the three derived fields from a record's pollutant
// values and reports whether they match the stored values. Used to verify
// staged rows read back from storage.
func Recompute(r *types.HourlyRecord) error {
	if got := Severity(r); math.Abs(got-r.SeverityScore) > 1e-9 {
		return fmt.Errorf("severity mismatch: stored %v, recomputed %v", r.SeverityScore, got)
	}
	if got := ClassifyAQI(r.PM25); got != r.AQICategory {
		return fmt.Errorf("aqi category mismatch: stored %s, recomputed %s", r.AQICategory, got)
	}
	if got := ClassifyRisk(r.SeverityScore); got != r.RiskFlag {
		return fmt.Errorf("risk flag mismatch: stored %s, recomputed %s", r.RiskFlag, got)
	}
	return nil
}
