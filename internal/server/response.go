package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"buildnotify/internal/types"
)

// APIErrorResponse is the envelope for error responses.
type APIErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail is the structured error returned to clients.
type ErrorDetail struct {
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	RequestID string         `json:"request_id,omitempty"`
}

// Error codes local to the replay API.
const (
	errCodeBodyTooLarge     types.ErrorCode = "validation_body_too_large"
	errCodeEmptyBody        types.ErrorCode = "validation_empty_body"
	errCodeQueueUnavailable types.ErrorCode = "upstream_queue_unavailable"
)

// JSON writes data with the given status. A marshal failure becomes a 500.
func JSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	body, err := json.Marshal(data)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(APIErrorResponse{Error: ErrorDetail{
			Code:      string(types.ErrCodeInternalUnexpected),
			Message:   "failed to marshal response",
			RequestID: middleware.GetReqID(r.Context()),
		}})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// Error writes err as a structured error response. Only AppError messages
// reach the client; any other error becomes a generic 500.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	requestID := middleware.GetReqID(r.Context())

	var appErr *types.AppError
	if errors.As(err, &appErr) {
		JSON(w, r, statusFor(appErr.Code), APIErrorResponse{Error: ErrorDetail{
			Code:      string(appErr.Code),
			Message:   appErr.Message,
			Details:   appErr.Details,
			RequestID: requestID,
		}})
		return
	}

	JSON(w, r, http.StatusInternalServerError, APIErrorResponse{Error: ErrorDetail{
		Code:      string(types.ErrCodeInternalUnexpected),
		Message:   "an unexpected error occurred",
		RequestID: requestID,
	}})
}

func statusFor(code types.ErrorCode) int {
	switch code {
	case errCodeBodyTooLarge:
		return http.StatusRequestEntityTooLarge
	case errCodeQueueUnavailable, types.ErrCodeDeliveryNotConfigured:
		return http.StatusServiceUnavailable
	case types.ErrCodeUpstreamTimeout:
		return http.StatusGatewayTimeout
	}
	switch code.Category() {
	case "validation":
		return http.StatusBadRequest
	case "upstream", "delivery":
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
