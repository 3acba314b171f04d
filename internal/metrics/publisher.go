// Package metrics publishes per-run pipeline statistics. Publishing is
// best-effort: failures are logged by callers and never affect the run
// outcome.
package metrics

import (
	"context"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

// RunStats summarizes one pipeline run for observability.
type RunStats struct {
	LocationsFetched int
	LocationsFailed  int
	RowsStaged       int
	RowsInserted     int
	BatchesFailed    int
}

// Publisher emits run statistics to a metrics backend.
type Publisher interface {
	PublishRunStats(ctx context.Context, stats RunStats) error
}

// CloudWatchClient abstracts the CloudWatch PutMetricData operation for
// testability.
type CloudWatchClient interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// Metric names emitted per run.
const (
	MetricLocationsFetched = "LocationsFetched"
	MetricLocationsFailed  = "LocationsFailed"
	MetricRowsStaged       = "RowsStaged"
	MetricRowsInserted     = "RowsInserted"
	MetricBatchesFailed    = "InsertBatchesFailed"
)

// CloudWatchPublisher implements Publisher by emitting metrics to AWS
// CloudWatch under a configured namespace.
type CloudWatchPublisher struct {
	client    CloudWatchClient
	namespace string
	logger    *slog.Logger
}

// Compile-time assertion.
var _ Publisher = (*CloudWatchPublisher)(nil)

// NewCloudWatchPublisher creates a publisher writing to the given
// namespace.
func NewCloudWatchPublisher(client CloudWatchClient, namespace string, logger *slog.Logger) *CloudWatchPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &CloudWatchPublisher{client: client, namespace: namespace, logger: logger}
}

// PublishRunStats emits all run counters in a single PutMetricData call.
func (p *CloudWatchPublisher) PublishRunStats(ctx context.Context, stats RunStats) error {
	datum := func(name string, value int) cwtypes.MetricDatum {
		return cwtypes.MetricDatum{
			MetricName: aws.String(name),
			Value:      aws.Float64(float64(value)),
			Unit:       cwtypes.StandardUnitCount,
		}
	}

	input := &cloudwatch.PutMetricDataInput{
		Namespace: aws.String(p.namespace),
		MetricData: []cwtypes.MetricDatum{
			datum(MetricLocationsFetched, stats.LocationsFetched),
			datum(MetricLocationsFailed, stats.LocationsFailed),
			datum(MetricRowsStaged, stats.RowsStaged),
			datum(MetricRowsInserted, stats.RowsInserted),
			datum(MetricBatchesFailed, stats.BatchesFailed),
		},
	}

	if _, err := p.client.PutMetricData(ctx, input); err != nil {
		return err
	}

	p.logger.Debug("run stats published", "namespace", p.namespace)
	return nil
}

// NoopPublisher discards run statistics. Used when metrics are disabled.
type NoopPublisher struct{}

// PublishRunStats implements Publisher.
func (NoopPublisher) PublishRunStats(context.Context, RunStats) error { return nil }
