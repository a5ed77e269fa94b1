package main

import (
	"context"
	"testing"
	"time"

	"github.com/aws/aws-lambda-go/events"

	"buildnotify/internal/config"
	"buildnotify/internal/notifications/core"
	"buildnotify/internal/types"
	"buildnotify/internal/worker"
)

// mockProcessor records the batch it receives.
type mockProcessor struct {
	got    []worker.Message
	result *worker.BatchResult
}

func (m *mockProcessor) ProcessBatch(_ context.Context, msgs []worker.Message) worker.BatchResult {
	m.got = msgs
	if m.result != nil {
		return *m.result
	}
	r := worker.BatchResult{Received: len(msgs)}
	for _, msg := range msgs {
		r.Acked = append(r.Acked, msg.ID)
	}
	return r
}

func TestHandle_ConvertsRecordsAndNeverReportsFailures(t *testing.T) {
	proc := &mockProcessor{}
	h := &Handler{processor: proc, logger: types.NopLogger{}}

	event := events.SQSEvent{Records: []events.SQSMessage{
		{
			MessageId:  "msg-1",
			Body:       `{"type":"build.failed"}`,
			Attributes: map[string]string{"SentTimestamp": "1746093600000"},
		},
		{MessageId: "msg-2", Body: `not json`},
	}}

	resp, err := h.Handle(context.Background(), event)
	if err != nil {
		t.Fatalf("Handle returned error: %v", err)
	}
	if len(resp.BatchItemFailures) != 0 {
		t.Errorf("BatchItemFailures = %v, want none", resp.BatchItemFailures)
	}

	if len(proc.got) != 2 {
		t.Fatalf("processor got %d messages, want 2", len(proc.got))
	}
	if proc.got[0].ID != "msg-1" || string(proc.got[0].Body) != `{"type":"build.failed"}` {
		t.Errorf("first message = %+v", proc.got[0])
	}
	want := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	if !proc.got[0].SentAt.Equal(want) {
		t.Errorf("SentAt = %v, want %v", proc.got[0].SentAt, want)
	}
	if !proc.got[1].SentAt.IsZero() {
		t.Errorf("SentAt without attribute = %v, want zero", proc.got[1].SentAt)
	}
}

func TestHandle_EmptyBatch(t *testing.T) {
	proc := &mockProcessor{}
	h := &Handler{processor: proc, logger: types.NopLogger{}}

	resp, err := h.Handle(context.Background(), events.SQSEvent{})
	if err != nil {
		t.Fatalf("Handle returned error: %v", err)
	}
	if len(resp.BatchItemFailures) != 0 {
		t.Errorf("BatchItemFailures = %v, want none", resp.BatchItemFailures)
	}
}

func TestHandle_MismatchedResultStillSucceeds(t *testing.T) {
	proc := &mockProcessor{result: &worker.BatchResult{Received: 2, Acked: []string{"msg-1"}}}
	h := &Handler{processor: proc, logger: types.NopLogger{}}

	resp, err := h.Handle(context.Background(), events.SQSEvent{Records: []events.SQSMessage{
		{MessageId: "msg-1"}, {MessageId: "msg-2"},
	}})
	if err != nil || len(resp.BatchItemFailures) != 0 {
		t.Fatalf("Handle = (%v, %v), want no failures", resp, err)
	}
}

func TestNewMetrics_DisabledIsNop(t *testing.T) {
	cfg := &config.Config{Observability: config.ObservabilityConfig{MetricsEnabled: false}}

	m, err := newMetrics(context.Background(), cfg, types.NopLogger{})
	if err != nil {
		t.Fatalf("newMetrics: %v", err)
	}
	if _, ok := m.(core.NopMetrics); !ok {
		t.Errorf("metrics = %T, want core.NopMetrics", m)
	}
}
