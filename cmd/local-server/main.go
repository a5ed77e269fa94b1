// Package main runs the local replay server: POST a Workers Builds event to
// /v1/build-events and it is formatted and delivered to the configured Slack
// webhook immediately, or queued with ?enqueue=true when SQS_BUILD_EVENTS is
// set.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"buildnotify/internal/config"
	"buildnotify/internal/logging"
	"buildnotify/internal/notifications/core"
	"buildnotify/internal/queue"
	"buildnotify/internal/server"
	"buildnotify/internal/worker"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "local-server: %v\n", err)
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

	slogger := logging.New(os.Stdout, cfg.LogLevel, cfg.Service)
	logger := logging.NewAdapter(slogger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	publisher, err := newPublisher(ctx, cfg)
	if err != nil {
		return err
	}

	processor := worker.NewFromConfig(cfg, core.NopMetrics{}, logger)
	srv, err := server.NewServer(cfg, processor, publisher, slogger)
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              net.JoinHostPort("", cfg.Server.Port),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("local server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down local server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

// newPublisher returns nil when no queue is configured, which disables
// ?enqueue=true.
func newPublisher(ctx context.Context, cfg *config.Config) (*queue.Publisher, error) {
	if cfg.AWS.BuildEventsQueue == "" {
		return nil, nil
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	client := sqs.NewFromConfig(awsCfg, func(o *sqs.Options) {
		if cfg.AWS.EndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.AWS.EndpointURL)
		}
	})
	return queue.NewPublisher(client, cfg.AWS.BuildEventsQueue), nil
}
