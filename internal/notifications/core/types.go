// Package core holds the observability contract shared by the notification
// pipeline: which outcomes are counted and how they are published.
package core

import (
	"context"
	"time"

	"buildnotify/internal/types"
)

// MetricResult categorizes a per-message or per-delivery outcome.
type MetricResult string

const (
	// MetricDelivered: the sink accepted the notification.
	MetricDelivered MetricResult = "delivered"
	// MetricFailed: formatting or delivery failed; the message was still acked.
	MetricFailed MetricResult = "failed"
	// MetricDropped: the event was malformed and dropped.
	MetricDropped MetricResult = "dropped"
	// MetricSkipped: no webhook is configured; the message was acked unprocessed.
	MetricSkipped MetricResult = "skipped"
)

// NotificationMetrics abstracts CloudWatch/telemetry operations for the
// notification pipeline. Implementations must never fail the caller.
type NotificationMetrics interface {
	RecordProcessed(ctx context.Context, state types.BuildState, result MetricResult)
	RecordLatency(ctx context.Context, state types.BuildState, duration time.Duration)
	RecordEnrichmentFailure(ctx context.Context, call string)
	RecordDelivery(ctx context.Context, result MetricResult)
	RecordQueueLag(ctx context.Context, lag time.Duration)
}

// NopMetrics discards all metrics. Used for local runs and in tests.
type NopMetrics struct{}

var _ NotificationMetrics = NopMetrics{}

func (NopMetrics) RecordProcessed(context.Context, types.BuildState, MetricResult) {}
func (NopMetrics) RecordLatency(context.Context, types.BuildState, time.Duration)  {}
func (NopMetrics) RecordEnrichmentFailure(context.Context, string)                 {}
func (NopMetrics) RecordDelivery(context.Context, MetricResult)                    {}
func (NopMetrics) RecordQueueLag(context.Context, time.Duration)                   {}
