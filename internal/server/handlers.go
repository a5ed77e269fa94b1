package server

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5/middleware"

	"buildnotify/internal/types"
	"buildnotify/internal/worker"
)

// maxEventBodySize caps a posted build event document.
const maxEventBodySize = 1 << 20

// ReplayResponse summarizes one event run through the pipeline.
type ReplayResponse struct {
	MessageID string       `json:"message_id"`
	TraceID   string       `json:"trace_id,omitempty"`
	State     string       `json:"state"`
	Outcome   string       `json:"outcome"`
	Error     *ErrorDetail `json:"error,omitempty"`
}

// EnqueueResponse is returned when an event is queued instead of replayed.
type EnqueueResponse struct {
	MessageID string `json:"message_id"`
	Queued    bool   `json:"queued"`
}

// HealthResponse reports which optional integrations are wired.
type HealthResponse struct {
	Status            string `json:"status"`
	Environment       string `json:"environment"`
	Version           string `json:"version"`
	WebhookConfigured bool   `json:"webhook_configured"`
	EnrichmentEnabled bool   `json:"enrichment_enabled"`
	QueueConfigured   bool   `json:"queue_configured"`
}

// HandleHealth serves GET /healthz.
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	JSON(w, r, http.StatusOK, HealthResponse{
		Status:            "ok",
		Environment:       s.Config.Environment,
		Version:           s.Config.Build.Version,
		WebhookConfigured: s.Config.Webhook.Configured(),
		EnrichmentEnabled: s.Config.BuildsAPI.Enabled(),
		QueueConfigured:   s.Publisher != nil && s.Publisher.Configured(),
	})
}

// HandleBuildEvent serves POST /v1/build-events. The body is one raw build
// event document. With ?enqueue=true the event is sent to the build-events
// queue; otherwise it runs through the pipeline synchronously and the
// response summarizes the outcome.
func (s *Server) HandleBuildEvent(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxEventBodySize))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			Error(w, r, types.NewAppError(errCodeBodyTooLarge, "request body must not exceed 1MB", err))
			return
		}
		Error(w, r, types.NewAppError(types.ErrCodeValidationMalformedEvent, "failed to read request body", err))
		return
	}
	if len(body) == 0 {
		Error(w, r, types.NewAppError(errCodeEmptyBody, "request body must not be empty", nil))
		return
	}

	if enqueue, _ := strconv.ParseBool(r.URL.Query().Get("enqueue")); enqueue {
		s.enqueue(w, r, body)
		return
	}

	id := middleware.GetReqID(r.Context())
	if id == "" {
		id = "local"
	}
	result := s.Processor.ProcessBatch(r.Context(), []worker.Message{{ID: id, Body: body}})
	if len(result.Results) == 0 {
		Error(w, r, types.NewAppError(types.ErrCodeInternalUnexpected, "pipeline returned no result", nil))
		return
	}
	res := result.Results[0]

	resp := ReplayResponse{
		MessageID: res.MessageID,
		TraceID:   res.TraceID,
		State:     string(res.State),
		Outcome:   string(res.Outcome),
	}
	if res.Err != nil {
		resp.Error = &ErrorDetail{
			Code:    string(types.CodeOf(res.Err)),
			Message: res.Err.Error(),
		}
	}
	JSON(w, r, replayStatus(res), resp)
}

func (s *Server) enqueue(w http.ResponseWriter, r *http.Request, body []byte) {
	if s.Publisher == nil || !s.Publisher.Configured() {
		Error(w, r, types.NewAppError(errCodeQueueUnavailable, "SQS_BUILD_EVENTS is not configured", nil))
		return
	}
	id, err := s.Publisher.Publish(r.Context(), body)
	if err != nil {
		s.Logger.Error("failed to enqueue build event", "error", err.Error())
		Error(w, r, types.NewAppError(errCodeQueueUnavailable, "failed to enqueue build event", err))
		return
	}
	JSON(w, r, http.StatusAccepted, EnqueueResponse{MessageID: id, Queued: true})
}

func replayStatus(res worker.MessageResult) int {
	switch res.Outcome {
	case worker.OutcomeDelivered, worker.OutcomeSkipped:
		return http.StatusOK
	case worker.OutcomeDropped:
		return http.StatusUnprocessableEntity
	case worker.OutcomeDeliveryFailed:
		return statusFor(types.CodeOf(res.Err))
	}
	return http.StatusInternalServerError
}
