// Package main is the entrypoint for the Notify Poller, a long-running
// process that long-polls the build-events queue for deployments without the
// Lambda event source mapping (containers, LocalStack).
//
// Messages are deleted after their batch is processed, whatever the
// per-message outcome. SIGINT/SIGTERM stop polling after the in-flight batch.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"buildnotify/internal/config"
	"buildnotify/internal/logging"
	"buildnotify/internal/notifications/core"
	"buildnotify/internal/queue"
	"buildnotify/internal/types"
	"buildnotify/internal/worker"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "notify-poller: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig(config.NewSecretProvider(
		os.Getenv("APP_ENV"),
		os.Getenv("AWS_REGION"),
		os.Getenv("AWS_ENDPOINT_URL"),
	))
	if err != nil {
		return err
	}
	if cfg.AWS.BuildEventsQueue == "" {
		return errors.New("SQS_BUILD_EVENTS is required")
	}

	logger := logging.NewAdapter(logging.New(os.Stdout, cfg.LogLevel, cfg.Service))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
	if err != nil {
		return fmt.Errorf("load AWS config: %w", err)
	}

	sqsClient := sqs.NewFromConfig(awsCfg, func(o *sqs.Options) {
		if cfg.AWS.EndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.AWS.EndpointURL)
		}
	})

	var metrics core.NotificationMetrics = core.NopMetrics{}
	if cfg.Observability.MetricsEnabled {
		cwClient := cloudwatch.NewFromConfig(awsCfg, func(o *cloudwatch.Options) {
			if cfg.AWS.EndpointURL != "" {
				o.BaseEndpoint = aws.String(cfg.AWS.EndpointURL)
			}
		})
		metrics = core.NewCloudWatchNotificationMetrics(cwClient, logger)
	}

	consumer := newConsumer(cfg, sqsClient, worker.NewFromConfig(cfg, metrics, logger), logger)
	return consumer.Run(ctx)
}

func newConsumer(cfg *config.Config, client queue.SQSReceiver, processor queue.BatchProcessor, logger types.Logger) *queue.Consumer {
	return queue.NewConsumer(client, queue.ConsumerConfig{
		QueueURL:        cfg.AWS.BuildEventsQueue,
		WaitTimeSeconds: cfg.AWS.WaitTimeSeconds,
		MaxMessages:     cfg.AWS.MaxMessages,
	}, processor, logger)
}
