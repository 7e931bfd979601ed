package core

import (
	"context"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"aquaview/internal/types"
)

// Metric names emitted to CloudWatch.
const (
	MetricAPIRequestCount = "ApiRequestCount"
	MetricAPILatency      = "ApiLatency"
	MetricPollDuration    = "PollDuration"
	MetricPollErrorCount  = "PollErrorCount"
	MetricAckResolution   = "AckResolution"
	MetricAckLatency      = "AckLatency"
)

// Dimension names.
const (
	DimMethod   = "Method"
	DimEndpoint = "Endpoint"
	DimStatus   = "Status"
	DimResource = "Resource"
	DimResult   = "Result"
)

// putMetricTimeout bounds each PutMetricData call. Metric emission must never
// stall a poll tick or a mutation resolution.
const putMetricTimeout = 2 * time.Second

// CloudWatchClient abstracts the CloudWatch PutMetricData operation for
// testability.
type CloudWatchClient interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// CloudWatchMetrics emits service telemetry to AWS CloudWatch. It implements
// the request collector used by the HTTP chassis plus the poll and mutation
// observers, so one instance covers all three surfaces.
//
// Metrics emitted:
//   - ApiRequestCount / ApiLatency: Dims {Method, Endpoint, Status}
//   - PollDuration / PollErrorCount: Dims {Resource}
//   - AckResolution / AckLatency: Dims {Result}
//
// Emission failures are logged and swallowed; telemetry never disturbs the
// data path.
type CloudWatchMetrics struct {
	client    CloudWatchClient
	namespace string
	logger    *slog.Logger
}

var _ MetricsCollector = (*CloudWatchMetrics)(nil)

// NewCloudWatchMetrics creates a collector publishing to the given namespace.
func NewCloudWatchMetrics(client CloudWatchClient, namespace string, logger *slog.Logger) *CloudWatchMetrics {
	return &CloudWatchMetrics{
		client:    client,
		namespace: namespace,
		logger:    logger,
	}
}

// RecordRequest emits request count and latency metrics for one API call.
func (m *CloudWatchMetrics) RecordRequest(method, endpoint, status string, duration time.Duration) {
	dims := []cwtypes.Dimension{
		{Name: aws.String(DimMethod), Value: aws.String(method)},
		{Name: aws.String(DimEndpoint), Value: aws.String(endpoint)},
		{Name: aws.String(DimStatus), Value: aws.String(status)},
	}

	m.put(MetricAPIRequestCount, []cwtypes.MetricDatum{
		{
			MetricName: aws.String(MetricAPIRequestCount),
			Value:      aws.Float64(1),
			Unit:       cwtypes.StandardUnitCount,
			Dimensions: dims,
		},
		{
			MetricName: aws.String(MetricAPILatency),
			Value:      aws.Float64(float64(duration.Milliseconds())),
			Unit:       cwtypes.StandardUnitMilliseconds,
			Dimensions: dims,
		},
	})
}

// ObservePoll emits the duration of a settled fetch and, on failure, an
// error count for the resource. Superseded fetches are never reported here;
// the poller only observes fetches whose results were committed or rejected
// terminally.
func (m *CloudWatchMetrics) ObservePoll(resource string, err error, elapsed time.Duration) {
	dims := []cwtypes.Dimension{
		{Name: aws.String(DimResource), Value: aws.String(resource)},
	}

	data := []cwtypes.MetricDatum{
		{
			MetricName: aws.String(MetricPollDuration),
			Value:      aws.Float64(float64(elapsed.Milliseconds())),
			Unit:       cwtypes.StandardUnitMilliseconds,
			Dimensions: dims,
		},
	}
	if err != nil {
		data = append(data, cwtypes.MetricDatum{
			MetricName: aws.String(MetricPollErrorCount),
			Value:      aws.Float64(1),
			Unit:       cwtypes.StandardUnitCount,
			Dimensions: dims,
		})
	}

	m.put(MetricPollDuration, data)
}

// ObserveAck emits the terminal state and latency of an acknowledge mutation.
func (m *CloudWatchMetrics) ObserveAck(state types.MutationState, elapsed time.Duration) {
	dims := []cwtypes.Dimension{
		{Name: aws.String(DimResult), Value: aws.String(string(state))},
	}

	m.put(MetricAckResolution, []cwtypes.MetricDatum{
		{
			MetricName: aws.String(MetricAckResolution),
			Value:      aws.Float64(1),
			Unit:       cwtypes.StandardUnitCount,
			Dimensions: dims,
		},
		{
			MetricName: aws.String(MetricAckLatency),
			Value:      aws.Float64(float64(elapsed.Milliseconds())),
			Unit:       cwtypes.StandardUnitMilliseconds,
			Dimensions: dims,
		},
	})
}

func (m *CloudWatchMetrics) put(name string, data []cwtypes.MetricDatum) {
	ctx, cancel := context.WithTimeout(context.Background(), putMetricTimeout)
	defer cancel()

	_, err := m.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace:  aws.String(m.namespace),
		MetricData: data,
	})
	if err != nil {
		m.logger.Error("failed to emit metric",
			"metric", name,
			"error", err,
		)
	}
}
