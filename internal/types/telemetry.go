package types

// Telemetry metric names for CloudWatch.
// All components MUST use these constants.
const (
	// Metric Names
	MetricNotificationProcessed = "NotificationProcessed"
	MetricNotificationLatency   = "NotificationLatency"
	MetricEnrichmentFailure     = "EnrichmentFailure"
	MetricDeliveryAttempt       = "DeliveryAttempt"
	MetricQueueLag              = "BuildEventQueueLag"

	// Dimension Keys
	DimState  = "State"
	DimResult = "Result"
	DimCall   = "Call"

	// Metric Namespace
	MetricNamespace = "BuildNotify"
)
