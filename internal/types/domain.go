// Package types defines the shared domain model for the airwatch pipeline:
// fetch targets, staged hourly records, derived labels, aggregation outputs,
// and the application error taxonomy.
package types

import "time"

// Location is a named city with fixed geographic coordinates used as a
// fetch target. The working set is defined at process start and never
// mutated during a run.
type Location struct {
	Name string  `json:"name"`
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
}

// DefaultLocations is the reference deployment's fixed city set. It is used
// when no explicit city list is configured.
var DefaultLocations = []Location{
	{Name: "Delhi", Lat: 28.7041, Lon: 77.1025},
	{Name: "Mumbai", Lat: 19.0760, Lon: 72.8777},
	{Name: "Bengaluru", Lat: 12.9716, Lon: 77.5946},
	{Name: "Hyderabad", Lat: 17.3850, Lon: 78.4867},
	{Name: "Kolkata", Lat: 22.5726, Lon: 88.3639},
}

// FetchResult records the outcome of fetching one location in one run.
// Exactly one of Payload or Err is meaningful, selected by Success.
// It is created by the Fetcher and never mutated afterward.
type FetchResult struct {
	Location Location
	Success  bool
	Payload  *HourlyPayload
	RawPath  string // storage handle from the raw sink, empty if persistence failed
	Err      string // last error message after exhausting retries
	Attempts int
}

// AQICategory is the five-level air-quality label derived from PM2.5 alone.
type AQICategory string

const (
	AQIGood          AQICategory = "Good"
	AQIModerate      AQICategory = "Moderate"
	AQIUnhealthy     AQICategory = "Unhealthy"
	AQIVeryUnhealthy AQICategory = "Very Unhealthy"
	AQIHazardous     AQICategory = "Hazardous"
)

// RiskFlag is the three-level label derived by thresholding severity score.
type RiskFlag string

const (
	RiskLow      RiskFlag = "Low Risk"
	RiskModerate RiskFlag = "Moderate Risk"
	RiskHigh     RiskFlag = "High Risk"
)

// RiskUnknown is the bucket name used in aggregation for records whose risk
// flag is absent. It is not a valid RiskFlag value on a record.
const RiskUnknown = "Unknown"

// HourlyRecord is one staged row: a single (city, hour) observation with
// its six pollutant concentrations, UV index, and derived labels. Pollutant
// fields are nil when the upstream series had no value for that hour.
// Records are created by the Transformer and immutable afterward.
type HourlyRecord struct {
	City            string      `json:"city"`
	Timestamp       *time.Time  `json:"time"`
	PM10            *float64    `json:"pm10"`
	PM25            *float64    `json:"pm2_5"`
	CarbonMonoxide  *float64    `json:"carbon_monoxide"`
	NitrogenDioxide *float64    `json:"nitrogen_dioxide"`
	SulphurDioxide  *float64    `json:"sulphur_dioxide"`
	Ozone           *float64    `json:"ozone"`
	UVIndex         *float64    `json:"uv_index"`
	AQICategory     AQICategory `json:"aqi_category"`
	SeverityScore   float64     `json:"severity_score"`
	RiskFlag        RiskFlag    `json:"risk_flag"`
}

// Hour returns the hour-of-day (0-23) for this record. The second return
// value is false when the timestamp could not be parsed upstream, in which
// case the record is excluded from hour-based aggregation only.
func (r *HourlyRecord) Hour() (int, bool) {
	if r.Timestamp == nil {
		return 0, false
	}
	return r.Timestamp.Hour(), true
}

// Pollutants returns the six pollutant fields in severity-formula order.
// UV index is intentionally not included; it never counts toward the
// all-absent drop rule.
func (r *HourlyRecord) Pollutants() []*float64 {
	return []*float64{r.PM25, r.PM10, r.NitrogenDioxide, r.SulphurDioxide, r.CarbonMonoxide, r.Ozone}
}

// CityAverage pairs a city with a mean value for ranking KPIs.
type CityAverage struct {
	City    string  `json:"city"`
	Average float64 `json:"average"`
}

// HourAverage pairs an hour-of-day with a mean value.
type HourAverage struct {
	Hour    int     `json:"hour"`
	Average float64 `json:"average"`
}

// KpiReport holds the run-level summary statistics. It has no identity or
// history: it is recomputed fresh from the current record collection on
// every run. Pointer fields are nil when the corresponding KPI could not
// be computed (no qualifying records).
type KpiReport struct {
	CityHighestAvgPM25  *CityAverage       `json:"city_highest_avg_pm2_5,omitempty"`
	CityHighestSeverity *CityAverage       `json:"city_highest_severity_score,omitempty"`
	RiskPercentage      map[string]float64 `json:"risk_percentage,omitempty"`
	WorstHourAvgPM25    *HourAverage       `json:"worst_hour_by_avg_pm2_5,omitempty"`
}

// Empty reports whether no KPI could be computed (zero-record input).
func (k KpiReport) Empty() bool {
	return k.CityHighestAvgPM25 == nil &&
		k.CityHighestSeverity == nil &&
		len(k.RiskPercentage) == 0 &&
		k.WorstHourAvgPM25 == nil
}

// CityRiskRow is one entry of the per-city risk distribution: the count of
// records carrying a risk bucket and the percentage that count represents
// of the city's total record count.
type CityRiskRow struct {
	City    string  `json:"city"`
	Risk    string  `json:"risk_flag"`
	Count   int     `json:"count"`
	Percent float64 `json:"percent"`
}

// TrendRow is one long-format pollutant trend entry. Only the three trend
// pollutants are carried; a row exists only if at least one of them is
// present.
type TrendRow struct {
	City      string     `json:"city"`
	Timestamp *time.Time `json:"time"`
	PM25      *float64   `json:"pm2_5"`
	PM10      *float64   `json:"pm10"`
	Ozone     *float64   `json:"ozone"`
}
