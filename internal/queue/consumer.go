// Package queue connects the notification pipeline to an SQS queue of build
// events: a long-poll Consumer for deployments that do not use the Lambda
// event source mapping, and a Publisher used to replay events.
package queue

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqsTypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"buildnotify/internal/types"
	"buildnotify/internal/worker"
)

// sqsMaxBatch is the SQS limit for ReceiveMessage and DeleteMessageBatch.
const sqsMaxBatch = 10

// Defaults for ConsumerConfig.
const (
	DefaultWaitTimeSeconds = 20
	DefaultErrorBackoff    = 5 * time.Second
	deleteTimeout          = 10 * time.Second
)

// SQSReceiver is the subset of the SQS client the Consumer uses.
type SQSReceiver interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessageBatch(ctx context.Context, params *sqs.DeleteMessageBatchInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageBatchOutput, error)
}

// BatchProcessor runs one batch through the pipeline.
type BatchProcessor interface {
	ProcessBatch(ctx context.Context, msgs []worker.Message) worker.BatchResult
}

// ConsumerConfig configures a Consumer.
type ConsumerConfig struct {
	QueueURL        string
	WaitTimeSeconds int32
	MaxMessages     int32
	ErrorBackoff    time.Duration
}

// Consumer long-polls a queue and hands each batch to the processor. Every
// received message is deleted after its batch is processed, whatever the
// per-message outcome.
type Consumer struct {
	client    SQSReceiver
	cfg       ConsumerConfig
	processor BatchProcessor
	logger    types.Logger
	sleep     func(ctx context.Context, d time.Duration) error
}

// NewConsumer creates a Consumer. Out-of-range config values select the
// defaults; a zero WaitTimeSeconds means short polling.
func NewConsumer(client SQSReceiver, cfg ConsumerConfig, processor BatchProcessor, logger types.Logger) *Consumer {
	if cfg.WaitTimeSeconds < 0 || cfg.WaitTimeSeconds > 20 {
		cfg.WaitTimeSeconds = DefaultWaitTimeSeconds
	}
	if cfg.MaxMessages <= 0 || cfg.MaxMessages > sqsMaxBatch {
		cfg.MaxMessages = sqsMaxBatch
	}
	if cfg.ErrorBackoff <= 0 {
		cfg.ErrorBackoff = DefaultErrorBackoff
	}
	if logger == nil {
		logger = types.NopLogger{}
	}
	return &Consumer{
		client:    client,
		cfg:       cfg,
		processor: processor,
		logger:    logger,
		sleep:     sleepContext,
	}
}

// Run polls until ctx is cancelled. Receive errors are logged and retried
// after ErrorBackoff. It returns nil on cancellation.
func (c *Consumer) Run(ctx context.Context) error {
	c.logger.Info("queue consumer started",
		"queue_url", c.cfg.QueueURL,
		"wait_time_seconds", c.cfg.WaitTimeSeconds,
		"max_messages", c.cfg.MaxMessages,
	)
	for {
		if ctx.Err() != nil {
			c.logger.Info("queue consumer stopped")
			return nil
		}
		if _, err := c.PollOnce(ctx); err != nil {
			if ctx.Err() != nil {
				continue
			}
			c.logger.Error("queue receive failed", "error", err.Error())
			_ = c.sleep(ctx, c.cfg.ErrorBackoff)
		}
	}
}

// PollOnce receives at most one batch, processes it and deletes every
// received message. It returns the number of messages received.
func (c *Consumer) PollOnce(ctx context.Context) (int, error) {
	out, err := c.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:                    aws.String(c.cfg.QueueURL),
		MaxNumberOfMessages:         c.cfg.MaxMessages,
		WaitTimeSeconds:             c.cfg.WaitTimeSeconds,
		MessageSystemAttributeNames: []sqsTypes.MessageSystemAttributeName{sqsTypes.MessageSystemAttributeNameSentTimestamp},
	})
	if err != nil {
		return 0, fmt.Errorf("queue: receive from %s: %w", c.cfg.QueueURL, err)
	}
	if len(out.Messages) == 0 {
		return 0, nil
	}

	msgs := make([]worker.Message, 0, len(out.Messages))
	for _, m := range out.Messages {
		msgs = append(msgs, FromSQSMessage(m))
	}

	result := c.processor.ProcessBatch(ctx, msgs)

	// Acknowledge even when ctx was cancelled mid-batch: the work is done and
	// redelivery would duplicate notifications.
	delCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), deleteTimeout)
	defer cancel()
	if err := c.deleteAll(delCtx, out.Messages); err != nil {
		c.logger.Error("failed to acknowledge messages", "error", err.Error(), "messages", len(out.Messages))
	}

	c.logger.Info("queue batch acknowledged",
		"received", len(out.Messages),
		"delivered", result.Delivered,
		"dropped", result.Dropped,
		"delivery_failed", result.DeliveryFailed,
	)
	return len(out.Messages), nil
}

// ErrPartialDelete reports receipt handles SQS refused to delete.
var ErrPartialDelete = errors.New("queue: some messages could not be deleted")

func (c *Consumer) deleteAll(ctx context.Context, messages []sqsTypes.Message) error {
	var failed int
	for start := 0; start < len(messages); start += sqsMaxBatch {
		end := min(start+sqsMaxBatch, len(messages))

		entries := make([]sqsTypes.DeleteMessageBatchRequestEntry, 0, end-start)
		for i, m := range messages[start:end] {
			entries = append(entries, sqsTypes.DeleteMessageBatchRequestEntry{
				Id:            aws.String(strconv.Itoa(start + i)),
				ReceiptHandle: m.ReceiptHandle,
			})
		}

		out, err := c.client.DeleteMessageBatch(ctx, &sqs.DeleteMessageBatchInput{
			QueueUrl: aws.String(c.cfg.QueueURL),
			Entries:  entries,
		})
		if err != nil {
			return fmt.Errorf("queue: delete batch: %w", err)
		}
		for _, f := range out.Failed {
			c.logger.Warn("message delete failed",
				"entry_id", aws.ToString(f.Id),
				"code", aws.ToString(f.Code),
				"message", aws.ToString(f.Message),
			)
		}
		failed += len(out.Failed)
	}
	if failed > 0 {
		return fmt.Errorf("%w: %d", ErrPartialDelete, failed)
	}
	return nil
}

// FromSQSMessage converts a received SQS message.
func FromSQSMessage(m sqsTypes.Message) worker.Message {
	msg := worker.Message{
		ID:   aws.ToString(m.MessageId),
		Body: []byte(aws.ToString(m.Body)),
	}
	if ts, ok := m.Attributes[string(sqsTypes.MessageSystemAttributeNameSentTimestamp)]; ok {
		msg.SentAt, _ = worker.ParseSentTimestamp(ts)
	}
	return msg
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
