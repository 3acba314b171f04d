// Package config defines the configuration structure for the airwatch
// pipeline. Configuration is loaded once at process start and is immutable
// thereafter. It follows 12-Factor principles by strictly separating code
// from configuration: every option is environment-supplied, with a .env
// file as a local-development convenience.
//
// Missing required values or invalid formats abort the run before any
// network activity (fail fast).
package config

import (
	"encoding/json"
	"fmt"
	"time"

	"airwatch/internal/types"
)

// SecretString is an alias for types.SecretString, the redacted secret type
// used for credentials to prevent accidental logging.
type SecretString = types.SecretString

// Config is the top-level configuration for the airwatch pipeline. It is
// populated once during startup and never modified. Sub-components receive
// only the specific subsets they require.
type Config struct {
	Environment string `envconfig:"APP_ENV" default:"local" validate:"oneof=local dev staging prod"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`

	API           APIConfig
	Database      DatabaseConfig
	Archive       ArchiveConfig
	Report        ReportConfig
	AWS           AWSConfig
	Observability ObservabilityConfig
}

// APIConfig holds the remote air-quality endpoint and fetch-stage tuning.
type APIConfig struct {
	BaseURL string `envconfig:"AQI_API_BASE" default:"https://air-quality-api.open-meteo.com/v1/air-quality" validate:"required,url"`

	// MaxRetries bounds the number of attempts per location. Attempt k
	// sleeps 2^(k-1) seconds before the next attempt on failure.
	MaxRetries int `envconfig:"MAX_RETRIES" default:"3" validate:"min=1,max=10"`

	// Timeout bounds each individual HTTP attempt.
	Timeout time.Duration `envconfig:"FETCH_TIMEOUT" default:"10s" validate:"min=1s"`

	// SleepBetweenCalls is the inter-location delay. It is a rate-limit
	// courtesy, not a correctness requirement, and only applies when
	// Concurrency is 1.
	SleepBetweenCalls time.Duration `envconfig:"SLEEP_BETWEEN_CALLS" default:"500ms"`

	// Concurrency is the fetch worker-pool size. The default of 1 fetches
	// locations strictly in sequence.
	Concurrency int `envconfig:"FETCH_CONCURRENCY" default:"1" validate:"min=1,max=16"`

	// CitiesJSON optionally overrides the built-in city set. Format:
	// [{"name":"Delhi","lat":28.7041,"lon":77.1025}, ...]
	CitiesJSON string `envconfig:"CITIES_JSON" validate:"omitempty,json"`
}

// Locations returns the configured fetch targets, falling back to the
// reference city set when CITIES_JSON is unset.
func (c APIConfig) Locations() ([]types.Location, error) {
	if c.CitiesJSON == "" {
		return types.DefaultLocations, nil
	}
	var locs []types.Location
	if err := json.Unmarshal([]byte(c.CitiesJSON), &locs); err != nil {
		return nil, fmt.Errorf("parsing CITIES_JSON: %w", err)
	}
	if len(locs) == 0 {
		return nil, fmt.Errorf("CITIES_JSON must contain at least one location")
	}
	for _, loc := range locs {
		if loc.Name == "" {
			return nil, fmt.Errorf("CITIES_JSON entry missing name")
		}
	}
	return locs, nil
}

// DatabaseConfig holds storage backend connection and load-stage tuning.
// Absence of credentials is a startup-fatal condition.
type DatabaseConfig struct {
	URL SecretString `envconfig:"DATABASE_URL" validate:"required"`

	Table     string `envconfig:"STORAGE_TABLE" default:"air_quality_data"`
	BatchSize int    `envconfig:"INSERT_BATCH_SIZE" default:"200" validate:"min=1"`

	// Pool tuning
	MaxConns        int           `envconfig:"DB_MAX_CONNS" default:"4"`
	MaxConnLifetime time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
	AcquireTimeout  time.Duration `envconfig:"DB_ACQUIRE_TIMEOUT" default:"2s"`
}

// ArchiveConfig holds raw-payload sink settings. When Bucket is set, raw
// payloads are compressed and archived to S3; otherwise they are written
// under RawDir. Archive failures never fail a fetch.
type ArchiveConfig struct {
	RawDir string `envconfig:"RAW_DIR" default:"data/raw"`
	Bucket string `envconfig:"RAW_BUCKET"`
	Prefix string `envconfig:"RAW_PREFIX" default:"raw"`
}

// ReportConfig holds reporting sink settings.
type ReportConfig struct {
	OutDir string `envconfig:"PROCESSED_DIR" default:"data/processed"`
}

// AWSConfig holds regional configuration for the optional AWS-backed sinks.
type AWSConfig struct {
	Region string `envconfig:"AWS_REGION" default:"us-east-1"`
	// LocalStack/MinIO support (empty in prod)
	EndpointURL string `envconfig:"AWS_ENDPOINT_URL"`
}

// ObservabilityConfig holds metric publishing settings.
type ObservabilityConfig struct {
	MetricNamespace string `envconfig:"METRIC_NAMESPACE" default:"Airwatch"`
	EnableMetrics   bool   `envconfig:"ENABLE_METRICS" default:"false"`
}

// ConfigErrorType categorizes configuration loading failures to aid
// debugging.
type ConfigErrorType string

const (
	// ErrValidation indicates the configuration failed struct validation
	// rules (including missing required credentials).
	ErrValidation ConfigErrorType = "VALIDATION_FAILED"
	// ErrParsing indicates a failure when parsing environment variable
	// values into their target types.
	ErrParsing ConfigErrorType = "PARSING_FAILED"
)
