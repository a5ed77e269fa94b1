// Package main is the entrypoint for the Notify Worker Lambda function.
//
// The Notify Worker consumes Workers Builds events from the build-events SQS
// queue (Lambda event source mapping) and posts one Slack notification per
// event.
//
// Cold Start (main):
//  1. Load configuration (env, .env, SSM parameters).
//  2. Initialize structured logger.
//  3. Initialize CloudWatch metrics when enabled.
//  4. Wire the notification pipeline.
//  5. Register handler and call lambda.Start.
//
// Every record in a batch is reported as processed: the handler never returns
// batch item failures, so SQS never redelivers an event.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"

	"buildnotify/internal/config"
	"buildnotify/internal/logging"
	"buildnotify/internal/notifications/core"
	"buildnotify/internal/types"
	"buildnotify/internal/worker"
)

// BatchProcessor runs a batch through the pipeline.
type BatchProcessor interface {
	ProcessBatch(ctx context.Context, msgs []worker.Message) worker.BatchResult
}

// Handler holds the dependencies for the notify worker Lambda handler.
type Handler struct {
	processor BatchProcessor
	logger    types.Logger
}

// Handle processes one SQS batch. It always returns an empty failure list.
func (h *Handler) Handle(ctx context.Context, event events.SQSEvent) (events.SQSEventResponse, error) {
	msgs := make([]worker.Message, 0, len(event.Records))
	for _, record := range event.Records {
		msgs = append(msgs, toMessage(record))
	}

	result := h.processor.ProcessBatch(ctx, msgs)
	if result.Received != len(result.Acked) {
		h.logger.Error("batch result does not account for every message",
			"received", result.Received,
			"acked", len(result.Acked),
		)
	}
	return events.SQSEventResponse{}, nil
}

func toMessage(record events.SQSMessage) worker.Message {
	msg := worker.Message{
		ID:   record.MessageId,
		Body: []byte(record.Body),
	}
	if ts, ok := record.Attributes["SentTimestamp"]; ok {
		msg.SentAt, _ = worker.ParseSentTimestamp(ts)
	}
	return msg
}

func main() {
	cfg, err := config.LoadConfig(config.NewSecretProvider(
		os.Getenv("APP_ENV"),
		os.Getenv("AWS_REGION"),
		os.Getenv("AWS_ENDPOINT_URL"),
	))
	if err != nil {
		fmt.Fprintf(os.Stderr, "notify-worker: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewAdapter(logging.New(os.Stdout, cfg.LogLevel, cfg.Service))
	logger.Info("Notify Worker Lambda initializing (cold start)",
		"environment", cfg.Environment,
		"version", cfg.Build.Version,
	)

	metrics, err := newMetrics(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize metrics", "error", err.Error())
		os.Exit(1)
	}

	handler := &Handler{
		processor: worker.NewFromConfig(cfg, metrics, logger),
		logger:    logger,
	}

	logger.Info("Notify Worker Lambda initialized",
		"webhook_configured", cfg.Webhook.Configured(),
		"enrichment_enabled", cfg.BuildsAPI.Enabled(),
		"metrics_enabled", cfg.Observability.MetricsEnabled,
	)

	lambda.Start(handler.Handle)
}

// newMetrics returns CloudWatch metrics, or the no-op recorder when metrics
// are disabled.
func newMetrics(ctx context.Context, cfg *config.Config, logger types.Logger) (core.NotificationMetrics, error) {
	if !cfg.Observability.MetricsEnabled {
		return core.NopMetrics{}, nil
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	client := cloudwatch.NewFromConfig(awsCfg, func(o *cloudwatch.Options) {
		if cfg.AWS.EndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.AWS.EndpointURL)
		}
	})
	return core.NewCloudWatchNotificationMetrics(client, logger), nil
}
