package core

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"buildnotify/internal/types"
)

// CloudWatchClient abstracts the CloudWatch PutMetricData operation for testability.
type CloudWatchClient interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// CloudWatchNotificationMetrics implements NotificationMetrics by emitting
// metrics to AWS CloudWatch.
//
// Metrics emitted:
//   - NotificationProcessed: Dims {State, Result} -- once per message
//   - NotificationLatency: Dims {State} -- end-to-end processing time
//   - EnrichmentFailure: Dims {Call} -- every swallowed Builds API failure
//   - DeliveryAttempt: Dims {Result} -- every webhook POST
//   - BuildEventQueueLag: No dims -- time between enqueue and processing start
type CloudWatchNotificationMetrics struct {
	client    CloudWatchClient
	namespace string
	logger    types.Logger
}

// Compile-time assertion that CloudWatchNotificationMetrics implements NotificationMetrics.
var _ NotificationMetrics = (*CloudWatchNotificationMetrics)(nil)

// NewCloudWatchNotificationMetrics creates a new CloudWatchNotificationMetrics
// that publishes to types.MetricNamespace.
func NewCloudWatchNotificationMetrics(client CloudWatchClient, logger types.Logger) *CloudWatchNotificationMetrics {
	return &CloudWatchNotificationMetrics{
		client:    client,
		namespace: types.MetricNamespace,
		logger:    logger,
	}
}

// RecordProcessed emits a NotificationProcessed count with State and Result dimensions.
func (m *CloudWatchNotificationMetrics) RecordProcessed(ctx context.Context, state types.BuildState, result MetricResult) {
	m.put(ctx, cwtypes.MetricDatum{
		MetricName: aws.String(types.MetricNotificationProcessed),
		Value:      aws.Float64(1),
		Unit:       cwtypes.StandardUnitCount,
		Dimensions: []cwtypes.Dimension{
			dimension(types.DimState, string(state)),
			dimension(types.DimResult, string(result)),
		},
	}, "state", string(state), "result", string(result))
}

// RecordLatency emits the processing latency in milliseconds with the State dimension.
func (m *CloudWatchNotificationMetrics) RecordLatency(ctx context.Context, state types.BuildState, duration time.Duration) {
	m.put(ctx, cwtypes.MetricDatum{
		MetricName: aws.String(types.MetricNotificationLatency),
		Value:      aws.Float64(float64(duration.Milliseconds())),
		Unit:       cwtypes.StandardUnitMilliseconds,
		Dimensions: []cwtypes.Dimension{
			dimension(types.DimState, string(state)),
		},
	}, "state", string(state), "duration_ms", duration.Milliseconds())
}

// RecordEnrichmentFailure counts a Builds API call that failed and was
// degraded to "no data".
func (m *CloudWatchNotificationMetrics) RecordEnrichmentFailure(ctx context.Context, call string) {
	m.put(ctx, cwtypes.MetricDatum{
		MetricName: aws.String(types.MetricEnrichmentFailure),
		Value:      aws.Float64(1),
		Unit:       cwtypes.StandardUnitCount,
		Dimensions: []cwtypes.Dimension{
			dimension(types.DimCall, call),
		},
	}, "call", call)
}

// RecordDelivery emits a DeliveryAttempt count with the Result dimension.
func (m *CloudWatchNotificationMetrics) RecordDelivery(ctx context.Context, result MetricResult) {
	m.put(ctx, cwtypes.MetricDatum{
		MetricName: aws.String(types.MetricDeliveryAttempt),
		Value:      aws.Float64(1),
		Unit:       cwtypes.StandardUnitCount,
		Dimensions: []cwtypes.Dimension{
			dimension(types.DimResult, string(result)),
		},
	}, "result", string(result))
}

// RecordQueueLag emits a metric tracking the time between SQS message
// enqueue and worker processing start.
func (m *CloudWatchNotificationMetrics) RecordQueueLag(ctx context.Context, lag time.Duration) {
	m.put(ctx, cwtypes.MetricDatum{
		MetricName: aws.String(types.MetricQueueLag),
		Value:      aws.Float64(float64(lag.Milliseconds())),
		Unit:       cwtypes.StandardUnitMilliseconds,
	}, "lag_ms", lag.Milliseconds())
}

// put publishes one datum. Failures are logged and swallowed.
func (m *CloudWatchNotificationMetrics) put(ctx context.Context, datum cwtypes.MetricDatum, logFields ...any) {
	input := &cloudwatch.PutMetricDataInput{
		Namespace:  aws.String(m.namespace),
		MetricData: []cwtypes.MetricDatum{datum},
	}

	if _, err := m.client.PutMetricData(ctx, input); err != nil {
		fields := append([]any{"error", err.Error(), "metric", aws.ToString(datum.MetricName)}, logFields...)
		m.logger.Error("failed to record metric", fields...)
	}
}

func dimension(name, value string) cwtypes.Dimension {
	return cwtypes.Dimension{Name: aws.String(name), Value: aws.String(value)}
}
