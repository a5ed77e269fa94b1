package worker

import (
	"strconv"
	"strings"
	"time"

	"buildnotify/internal/types"
)

// Message is one queued build event, independent of the transport that
// delivered it.
type Message struct {
	ID   string
	Body []byte

	// SentAt is when the queue accepted the message; zero when unknown.
	SentAt time.Time
}

// Outcome is what happened to one message.
type Outcome string

const (
	OutcomeDelivered      Outcome = "delivered"
	OutcomeDeliveryFailed Outcome = "delivery_failed"
	OutcomeDropped        Outcome = "dropped"
	OutcomeSkipped        Outcome = "skipped"
	OutcomePanicked       Outcome = "panicked"
)

// MessageResult is the outcome of one message. Err is informational: the
// message is acknowledged regardless.
type MessageResult struct {
	MessageID string
	TraceID   string
	State     types.BuildState
	Outcome   Outcome
	Err       error
}

// BatchResult counts outcomes over a batch. Acked lists every message id in
// processing order; it always has Received entries.
type BatchResult struct {
	Received       int
	Delivered      int
	DeliveryFailed int
	Dropped        int
	Skipped        int
	Panicked       int

	Acked   []string
	Results []MessageResult
}

func (b *BatchResult) add(r MessageResult) {
	switch r.Outcome {
	case OutcomeDelivered:
		b.Delivered++
	case OutcomeDeliveryFailed:
		b.DeliveryFailed++
	case OutcomeDropped:
		b.Dropped++
	case OutcomeSkipped:
		b.Skipped++
	case OutcomePanicked:
		b.Panicked++
	}
	b.Acked = append(b.Acked, r.MessageID)
	b.Results = append(b.Results, r)
}

// ParseSentTimestamp parses the SQS SentTimestamp attribute (milliseconds
// since the epoch).
func ParseSentTimestamp(ms string) (time.Time, bool) {
	millis, err := strconv.ParseInt(strings.TrimSpace(ms), 10, 64)
	if err != nil || millis <= 0 {
		return time.Time{}, false
	}
	return time.UnixMilli(millis).UTC(), true
}
