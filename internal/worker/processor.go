// Package worker runs the per-message notification pipeline over a batch of
// queued build events:
//
//	decode -> validate -> normalize -> enrich -> extract -> format -> deliver
//
// Every message is acknowledged whatever its outcome. A malformed event, an
// enrichment failure, a rejected delivery and even a panic are logged and
// counted, and the message is still considered done. Redelivering an event
// cannot fix it and risks a duplicate notification, so the pipeline makes at
// most one delivery attempt per event.
package worker

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/google/uuid"

	"buildnotify/internal/builds"
	"buildnotify/internal/enrichment"
	"buildnotify/internal/notifications/core"
	"buildnotify/internal/notifications/webhook"
	"buildnotify/internal/types"
)

// Enricher fetches the state-dependent enrichment data. It never fails.
type Enricher interface {
	Enrich(ctx context.Context, state types.BuildState, target enrichment.Target) types.EnrichmentResult
}

// Extractor turns a log transcript into an error snippet and optional hint.
type Extractor interface {
	Summarize(logs []string) (snippet, hint string)
}

// Formatter renders the notification document.
type Formatter interface {
	Format(ev *types.BuildEvent, state types.BuildState, enrichment types.EnrichmentResult, errInfo types.ErrorSummary) webhook.SlackPayload
}

// Sink delivers one notification document.
type Sink interface {
	Configured() bool
	Deliver(ctx context.Context, payload webhook.SlackPayload) (*webhook.DeliveryResult, error)
}

// Deps holds the Processor collaborators. Metrics, Logger, Clock and
// NewTraceID are optional.
type Deps struct {
	Enricher   Enricher
	Extractor  Extractor
	Formatter  Formatter
	Sink       Sink
	Metrics    core.NotificationMetrics
	Logger     types.Logger
	Clock      types.Clock
	NewTraceID func() string
}

// Processor runs the pipeline. It holds no per-message state and may be
// reused across batches.
type Processor struct {
	enricher   Enricher
	extractor  Extractor
	formatter  Formatter
	sink       Sink
	metrics    core.NotificationMetrics
	logger     types.Logger
	clock      types.Clock
	newTraceID func() string
}

// NewProcessor creates a Processor from deps.
func NewProcessor(deps Deps) *Processor {
	p := &Processor{
		enricher:   deps.Enricher,
		extractor:  deps.Extractor,
		formatter:  deps.Formatter,
		sink:       deps.Sink,
		metrics:    deps.Metrics,
		logger:     deps.Logger,
		clock:      deps.Clock,
		newTraceID: deps.NewTraceID,
	}
	if p.metrics == nil {
		p.metrics = core.NopMetrics{}
	}
	if p.logger == nil {
		p.logger = types.NopLogger{}
	}
	if p.clock == nil {
		p.clock = types.RealClock{}
	}
	if p.newTraceID == nil {
		p.newTraceID = uuid.NewString
	}
	return p
}

// ProcessBatch handles msgs sequentially, in order. Without a configured sink
// the batch is acknowledged unprocessed with a single warning.
func (p *Processor) ProcessBatch(ctx context.Context, msgs []Message) BatchResult {
	result := BatchResult{Received: len(msgs)}
	if len(msgs) == 0 {
		return result
	}

	if p.sink == nil || !p.sink.Configured() {
		p.logger.Warn("webhook URL not configured, acknowledging batch without processing",
			"messages", len(msgs),
		)
		for _, msg := range msgs {
			p.metrics.RecordProcessed(ctx, types.BuildUnknown, core.MetricSkipped)
			result.add(MessageResult{MessageID: msg.ID, State: types.BuildUnknown, Outcome: OutcomeSkipped})
		}
		return result
	}

	for _, msg := range msgs {
		result.add(p.ProcessMessage(ctx, msg))
	}

	p.logger.Info("batch processed",
		"received", result.Received,
		"delivered", result.Delivered,
		"delivery_failed", result.DeliveryFailed,
		"dropped", result.Dropped,
		"panicked", result.Panicked,
	)
	return result
}

// ProcessMessage runs one message through the pipeline. It recovers panics
// and always returns a result; the message is acknowledged either way.
func (p *Processor) ProcessMessage(ctx context.Context, msg Message) (res MessageResult) {
	start := p.clock.Now()
	traceID := p.newTraceID()
	logger := p.logger.With("message_id", msg.ID, "trace_id", traceID)

	ctx = types.WithTraceID(ctx, traceID)
	ctx = types.WithLogger(ctx, logger)

	res = MessageResult{MessageID: msg.ID, TraceID: traceID, State: types.BuildUnknown}

	defer func() {
		if r := recover(); r != nil {
			logger.Error("panic while processing message",
				"panic", fmt.Sprint(r),
				"stack", string(debug.Stack()),
			)
			p.metrics.RecordProcessed(ctx, res.State, core.MetricFailed)
			res.Outcome = OutcomePanicked
			res.Err = types.NewAppError(types.ErrCodeInternalUnexpected, "panic while processing message", fmt.Errorf("%v", r))
		}
	}()

	if !msg.SentAt.IsZero() {
		if lag := start.Sub(msg.SentAt); lag >= 0 {
			p.metrics.RecordQueueLag(ctx, lag)
		}
	}

	ev, err := types.DecodeBuildEvent(msg.Body)
	if err != nil {
		logger.Warn("dropping malformed build event",
			"error_code", string(types.CodeOf(err)),
			"error", err.Error(),
		)
		p.metrics.RecordProcessed(ctx, types.BuildUnknown, core.MetricDropped)
		res.Outcome = OutcomeDropped
		res.Err = err
		return res
	}

	state := builds.Normalize(ev)
	res.State = state
	workerName := builds.WorkerName(ev)

	logger = logger.With(
		"build_uuid", ev.BuildUUID(),
		"account_id", ev.AccountID(),
		"event_type", ev.Type,
		"state", string(state),
		"worker_name", workerName,
	)
	ctx = types.WithLogger(ctx, logger)

	enriched := p.enricher.Enrich(ctx, state, enrichment.Target{
		AccountID:  ev.AccountID(),
		BuildUUID:  ev.BuildUUID(),
		WorkerName: workerName,
	})

	var summary types.ErrorSummary
	if state == types.BuildFailed {
		summary.Snippet, summary.Hint = p.extractor.Summarize(enriched.Logs)
	}

	payload := p.formatter.Format(ev, state, enriched, summary)

	delivery, err := p.sink.Deliver(ctx, payload)
	elapsed := p.clock.Now().Sub(start)
	p.metrics.RecordLatency(ctx, state, elapsed)

	if err != nil {
		logger.Error("webhook delivery failed",
			"error_code", string(types.CodeOf(err)),
			"error", err.Error(),
			"duration_ms", elapsed.Milliseconds(),
		)
		p.metrics.RecordDelivery(ctx, core.MetricFailed)
		p.metrics.RecordProcessed(ctx, state, core.MetricFailed)
		res.Outcome = OutcomeDeliveryFailed
		res.Err = err
		return res
	}

	logger.Info("notification delivered",
		"status_code", delivery.StatusCode,
		"provider_message_id", delivery.ProviderMessageID,
		"log_lines", len(enriched.Logs),
		"duration_ms", elapsed.Milliseconds(),
	)
	p.metrics.RecordDelivery(ctx, core.MetricDelivered)
	p.metrics.RecordProcessed(ctx, state, core.MetricDelivered)
	res.Outcome = OutcomeDelivered
	return res
}
