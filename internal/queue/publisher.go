package queue

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

// SQSSender abstracts the SQS SendMessage API for testing.
type SQSSender interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// ErrQueueNotConfigured is returned by Publish when no queue URL is set.
var ErrQueueNotConfigured = errors.New("queue: build events queue URL not configured")

// Publisher enqueues raw build event documents, used to replay events
// through the deployed pipeline.
type Publisher struct {
	client   SQSSender
	queueURL string
}

// NewPublisher creates a Publisher for queueURL.
func NewPublisher(client SQSSender, queueURL string) *Publisher {
	return &Publisher{client: client, queueURL: queueURL}
}

// Configured reports whether Publish can succeed.
func (p *Publisher) Configured() bool {
	return p != nil && p.client != nil && p.queueURL != ""
}

// Publish sends body as one message and returns the SQS message id. The
// body is sent verbatim; the consumer validates it.
func (p *Publisher) Publish(ctx context.Context, body []byte) (string, error) {
	if !p.Configured() {
		return "", ErrQueueNotConfigured
	}
	out, err := p.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(p.queueURL),
		MessageBody: aws.String(string(body)),
	})
	if err != nil {
		return "", fmt.Errorf("queue: send to %s: %w", p.queueURL, err)
	}
	return aws.ToString(out.MessageId), nil
}
