// Package webhook renders build notifications as Slack Block Kit messages and
// delivers them to an incoming-webhook endpoint.
//
// Delivery is a single POST. Failures (network errors, non-2xx statuses and
// Slack's HTTP 200 "soft failures") are returned to the caller, which logs
// them; nothing in this package retries.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"buildnotify/internal/types"
)

// ErrDeliveryRejected is wrapped by Deliver when the sink answered but did
// not accept the message.
var ErrDeliveryRejected = errors.New("webhook delivery rejected")

// maxResponseBodyRead limits how much of a response body we read for error
// messages and provider message ID extraction.
const maxResponseBodyRead = 4096

// DefaultDeliveryTimeout bounds one webhook POST.
const DefaultDeliveryTimeout = 10 * time.Second

// DeliveryResult describes an accepted delivery.
type DeliveryResult struct {
	StatusCode        int
	ProviderMessageID string
}

// Sink posts notification documents to a Slack-compatible incoming webhook.
// The destination URL is a credential and is never logged.
type Sink struct {
	url        types.SecretString
	httpClient *http.Client
	timeout    time.Duration
	userAgent  string
	clock      types.Clock
}

// NewSink creates a Sink for the given webhook URL.
func NewSink(webhookURL types.SecretString, timeout time.Duration, userAgent string) *Sink {
	if timeout <= 0 {
		timeout = DefaultDeliveryTimeout
	}
	return NewSinkWithClient(webhookURL, &http.Client{Timeout: timeout}, timeout, userAgent)
}

// NewSinkWithClient creates a Sink with a caller-supplied HTTP client. This
// constructor exists for tests against httptest servers.
func NewSinkWithClient(webhookURL types.SecretString, httpClient *http.Client, timeout time.Duration, userAgent string) *Sink {
	if timeout <= 0 {
		timeout = DefaultDeliveryTimeout
	}
	return &Sink{
		url:        webhookURL,
		httpClient: httpClient,
		timeout:    timeout,
		userAgent:  userAgent,
		clock:      types.RealClock{},
	}
}

// SetClock overrides the clock for testing.
func (s *Sink) SetClock(c types.Clock) {
	s.clock = c
}

// Configured reports whether a destination URL is set.
func (s *Sink) Configured() bool {
	return s != nil && !s.url.IsEmpty()
}

// Deliver POSTs payload once under the sink's timeout.
//
// Response handling:
//   - 2xx: validate Slack's response body, return the result
//   - anything else: wrap ErrDeliveryRejected with the status and body
//   - network errors and timeouts: an upstream AppError
func (s *Sink) Deliver(ctx context.Context, payload SlackPayload) (*DeliveryResult, error) {
	if !s.Configured() {
		return nil, types.NewAppError(types.ErrCodeDeliveryNotConfigured, "webhook URL is not configured", nil)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to encode payload", err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url.Unmask(), bytes.NewReader(body))
	if err != nil {
		// The URL itself is not included: it carries the webhook credential.
		return nil, types.NewAppError(types.ErrCodeDeliveryNotConfigured, "webhook URL is invalid", nil)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.userAgent != "" {
		req.Header.Set("User-Agent", s.userAgent)
	}
	if traceID := types.GetTraceID(ctx); traceID != "" {
		req.Header.Set("X-B3-TraceId", traceID)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			return nil, types.NewAppError(types.ErrCodeUpstreamTimeout, "webhook POST exceeded its deadline", stripURL(err))
		}
		return nil, types.NewAppError(types.ErrCodeUpstreamUnavailable, "webhook POST failed", stripURL(err))
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodyRead))

	if err := ValidateResponse(resp.StatusCode, respBody); err != nil {
		return nil, types.NewAppError(types.ErrCodeDeliveryRejected, "webhook did not accept the notification", err).
			WithDetails(map[string]any{"status_code": resp.StatusCode})
	}

	return &DeliveryResult{
		StatusCode:        resp.StatusCode,
		ProviderMessageID: s.extractProviderMessageID(resp),
	}, nil
}

// ValidateResponse checks the status and Slack's "soft failure" pattern where
// the endpoint returns HTTP 200 but the body reports an error ("ok": false or
// a plain text error code). Every failure wraps ErrDeliveryRejected.
func ValidateResponse(statusCode int, body []byte) error {
	if statusCode < 200 || statusCode >= 300 {
		return fmt.Errorf("%w: status %d: %s", ErrDeliveryRejected, statusCode, truncateBody(body))
	}

	bodyStr := strings.TrimSpace(string(body))

	// Slack incoming webhooks return "ok" as plain text on success.
	if bodyStr == "ok" || bodyStr == "" {
		return nil
	}

	var resp struct {
		OK    *bool  `json:"ok"`
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &resp); err == nil {
		if resp.OK != nil && !*resp.OK {
			errMsg := resp.Error
			if errMsg == "" {
				errMsg = "unknown error"
			}
			return fmt.Errorf("%w: slack API error: %s", ErrDeliveryRejected, errMsg)
		}
		return nil
	}

	knownErrors := []string{
		"no_text",
		"invalid_blocks",
		"invalid_payload",
		"channel_not_found",
		"channel_is_archived",
		"no_service",
		"action_prohibited",
		"too_many_attachments",
	}
	for _, known := range knownErrors {
		if bodyStr == known {
			return fmt.Errorf("%w: slack API error: %s", ErrDeliveryRejected, bodyStr)
		}
	}

	return nil
}

// extractProviderMessageID returns Slack's request id, a generic request id
// header, or a synthetic id.
func (s *Sink) extractProviderMessageID(resp *http.Response) string {
	if reqID := resp.Header.Get("X-Slack-Req-Id"); reqID != "" {
		return reqID
	}
	if reqID := resp.Header.Get("X-Request-Id"); reqID != "" {
		return reqID
	}
	return generateSyntheticID(resp.StatusCode, s.clock.Now())
}

// generateSyntheticID creates a traceable reference when no upstream provider
// ID is available in response headers.
//
// Format: webhook-{status}-{unix}-{uuid_short}
func generateSyntheticID(statusCode int, now time.Time) string {
	return fmt.Sprintf("webhook-%d-%d-%s",
		statusCode,
		now.Unix(),
		uuid.New().String()[:8],
	)
}

// stripURL drops the request URL from *url.Error values so the webhook
// credential cannot reach the logs.
func stripURL(err error) error {
	var ue *url.Error
	if errors.As(err, &ue) && ue.Err != nil {
		return ue.Err
	}
	return err
}

func isTimeout(err error) bool {
	var ue *url.Error
	return errors.As(err, &ue) && ue.Timeout()
}
