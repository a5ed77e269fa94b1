package external

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

	"github.com/klauspost/compress/gzhttp"

	"buildnotify/internal/types"
)

// DefaultBuildsAPIBaseURL is the public API root of the CI provider.
const DefaultBuildsAPIBaseURL = "https://api.cloudflare.com/client/v4"

// maxResponseBody bounds how much of one API response is read. Log pages are
// the largest payloads and stay well below this.
const maxResponseBody = 8 << 20

// Operation names used in FetchError and in logs/metrics.
const (
	OpGetBuild     = "get_build"
	OpGetSubdomain = "get_workers_subdomain"
	OpGetLogPage   = "get_build_logs"
)

// FetchError is returned by every BuildsClient call that fails: transport
// errors, timeouts, non-2xx statuses, non-JSON bodies and JSON envelopes that
// report success=false. Enrichment callers catch it at the call site.
type FetchError struct {
	Op         string
	StatusCode int
	Err        error
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *FetchError) Unwrap() error {
	return e.Err
}

// BuildsClientConfig configures NewBuildsClient.
type BuildsClientConfig struct {
	BaseURL     string
	Token       types.SecretString
	CallTimeout time.Duration
	UserAgent   string
	RetryPolicy RetryPolicy
}

// BuildsClient talks to the Workers Builds REST API.
type BuildsClient struct {
	base        *BaseClient
	baseURL     string
	token       types.SecretString
	callTimeout time.Duration
}

var _ BuildsAPI = (*BuildsClient)(nil)

// NewBuildsClient creates a client whose transport negotiates gzip (log pages
// compress well) and whose calls each run under CallTimeout.
func NewBuildsClient(cfg BuildsClientConfig, opts ...BaseClientOption) *BuildsClient {
	timeout := cfg.CallTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	httpClient := &http.Client{
		Timeout:   timeout,
		Transport: gzhttp.Transport(http.DefaultTransport),
	}
	return NewBuildsClientWithHTTP(cfg, httpClient, opts...)
}

// NewBuildsClientWithHTTP creates a BuildsClient with a caller-supplied HTTP
// client. This constructor exists for tests against httptest servers.
func NewBuildsClientWithHTTP(cfg BuildsClientConfig, httpClient *http.Client, opts ...BaseClientOption) *BuildsClient {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBuildsAPIBaseURL
	}
	timeout := cfg.CallTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	policy := cfg.RetryPolicy
	if policy == (RetryPolicy{}) {
		policy = DefaultRetryPolicy()
	}
	return &BuildsClient{
		base:        NewBaseClient(httpClient, "builds-api", policy, cfg.UserAgent, opts...),
		baseURL:     baseURL,
		token:       cfg.Token,
		callTimeout: timeout,
	}
}

// GetBuild fetches build details, including the preview URL when one exists.
func (c *BuildsClient) GetBuild(ctx context.Context, accountID, buildUUID string) (*BuildDetails, error) {
	path := fmt.Sprintf("/accounts/%s/builds/builds/%s", url.PathEscape(accountID), url.PathEscape(buildUUID))

	var out BuildDetails
	if err := c.getJSON(ctx, OpGetBuild, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetWorkersSubdomain fetches the account's workers.dev subdomain.
func (c *BuildsClient) GetWorkersSubdomain(ctx context.Context, accountID string) (string, error) {
	path := fmt.Sprintf("/accounts/%s/workers/subdomain", url.PathEscape(accountID))

	var out WorkersSubdomain
	if err := c.getJSON(ctx, OpGetSubdomain, path, nil, &out); err != nil {
		return "", err
	}
	return strings.TrimSpace(out.Subdomain), nil
}

// GetLogPage fetches one page of a build's log transcript. An empty cursor
// requests the first page.
func (c *BuildsClient) GetLogPage(ctx context.Context, accountID, buildUUID, cursor string) (*LogPage, error) {
	path := fmt.Sprintf("/accounts/%s/builds/builds/%s/logs", url.PathEscape(accountID), url.PathEscape(buildUUID))

	var query url.Values
	if cursor != "" {
		query = url.Values{"cursor": []string{cursor}}
	}

	var out LogPage
	if err := c.getJSON(ctx, OpGetLogPage, path, query, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// getJSON performs one GET under the per-call deadline and decodes the
// {success, errors, result} envelope into result.
func (c *BuildsClient) getJSON(ctx context.Context, op, path string, query url.Values, result any) error {
	ctx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return &FetchError{Op: op, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Authorization", "Bearer "+c.token.Unmask())
	req.Header.Set("Accept", "application/json")

	resp, err := c.base.Do(req)
	if err != nil {
		return &FetchError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return &FetchError{Op: op, StatusCode: resp.StatusCode, Err: c.readError(ctx, err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &FetchError{
			Op:         op,
			StatusCode: resp.StatusCode,
			Err: types.NewAppError(types.ErrCodeUpstreamBadResponse,
				fmt.Sprintf("unexpected status: %s", snippet(body)), nil),
		}
	}

	env := envelope{Result: result}
	if err := json.Unmarshal(body, &env); err != nil {
		return &FetchError{
			Op:         op,
			StatusCode: resp.StatusCode,
			Err:        types.NewAppError(types.ErrCodeUpstreamBadResponse, "response is not JSON", err),
		}
	}
	if env.Success != nil && !*env.Success {
		return &FetchError{
			Op:         op,
			StatusCode: resp.StatusCode,
			Err:        types.NewAppError(types.ErrCodeUpstreamBadResponse, "API reported failure: "+env.errorText(), nil),
		}
	}

	return nil
}

func (c *BuildsClient) readError(ctx context.Context, err error) error {
	if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) {
		return types.NewAppError(types.ErrCodeUpstreamTimeout, "reading response exceeded its deadline", err)
	}
	return types.NewAppError(types.ErrCodeUpstreamBadResponse, "reading response failed", err)
}

// envelope is the common response wrapper of the API.
type envelope struct {
	Success *bool        `json:"success"`
	Errors  []APIMessage `json:"errors"`
	Result  any          `json:"result"`
}

func (e envelope) errorText() string {
	if len(e.Errors) == 0 {
		return "no error details"
	}
	parts := make([]string, 0, len(e.Errors))
	for _, m := range e.Errors {
		if m.Code != 0 {
			parts = append(parts, fmt.Sprintf("%d %s", m.Code, m.Message))
		} else {
			parts = append(parts, m.Message)
		}
	}
	return strings.Join(parts, "; ")
}

// APIMessage is one entry of the envelope's errors array.
type APIMessage struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// BuildDetails is the subset of the build resource used for enrichment.
type BuildDetails struct {
	BuildUUID    string  `json:"build_uuid"`
	Status       string  `json:"status"`
	BuildOutcome *string `json:"build_outcome"`
	PreviewURL   string  `json:"preview_url"`
}

// WorkersSubdomain is the account's workers.dev subdomain resource.
type WorkersSubdomain struct {
	Subdomain string `json:"subdomain"`
}

// LogPage is one cursor page of a build log transcript.
type LogPage struct {
	Lines     []LogLine `json:"lines"`
	Truncated bool      `json:"truncated"`
	Cursor    string    `json:"cursor"`
}

// LogLine is a [lineNumber, text] pair. The first element is kept verbatim
// because providers have sent both numbers and timestamps there.
type LogLine struct {
	Number json.RawMessage
	Text   string
}

// UnmarshalJSON accepts [number, "text"], ["text"] and bare "text" forms.
func (l *LogLine) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &l.Text)
	}

	var parts []json.RawMessage
	if err := json.Unmarshal(data, &parts); err != nil {
		return fmt.Errorf("log line: %w", err)
	}
	switch len(parts) {
	case 0:
		return nil
	case 1:
		return l.textFrom(parts[0])
	default:
		l.Number = parts[0]
		return l.textFrom(parts[1])
	}
}

func (l *LogLine) textFrom(raw json.RawMessage) error {
	if err := json.Unmarshal(raw, &l.Text); err != nil {
		l.Text = string(raw)
	}
	return nil
}

func snippet(body []byte) string {
	const max = 256
	s := strings.TrimSpace(string(body))
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
