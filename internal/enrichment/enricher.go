// Package enrichment fetches out-of-band data for a classified build event:
// the deployment URL of a successful build and the full log transcript of a
// failed one. Enrichment is best effort. Every Builds API failure is logged
// and counted at the call site and then degrades to "no data".
package enrichment

import (
	"context"
	"errors"
	"strings"

	"buildnotify/internal/builds"
	"buildnotify/internal/external"
	"buildnotify/internal/types"
)

// DefaultMaxLogPages bounds log pagination when the API keeps reporting
// truncated pages.
const DefaultMaxLogPages = 50

// ErrPageLimit is returned by FetchAllLogs when MaxLogPages pages were read
// and the API still reported more.
var ErrPageLimit = errors.New("log page limit reached")

// FailureRecorder receives one call per swallowed Builds API failure.
type FailureRecorder interface {
	RecordEnrichmentFailure(ctx context.Context, call string)
}

// Target identifies the build to enrich.
type Target struct {
	AccountID  string
	BuildUUID  string
	WorkerName string
}

// Enricher performs the state-dependent Builds API calls. A nil API disables
// enrichment: Enrich then returns the zero result without doing anything.
type Enricher struct {
	api         external.BuildsAPI
	logger      types.Logger
	metrics     FailureRecorder
	maxLogPages int
}

// New creates an Enricher. api may be nil (no API token configured), and
// metrics may be nil. maxLogPages <= 0 selects DefaultMaxLogPages.
func New(api external.BuildsAPI, logger types.Logger, metrics FailureRecorder, maxLogPages int) *Enricher {
	if logger == nil {
		logger = types.NopLogger{}
	}
	if metrics == nil {
		metrics = nopRecorder{}
	}
	if maxLogPages <= 0 {
		maxLogPages = DefaultMaxLogPages
	}
	return &Enricher{
		api:         api,
		logger:      logger,
		metrics:     metrics,
		maxLogPages: maxLogPages,
	}
}

// Enabled reports whether Enrich will make API calls.
func (e *Enricher) Enabled() bool {
	return e != nil && e.api != nil
}

// Enrich returns the enrichment data for state. It never fails.
//   - succeeded: preview URL from the build details, else a live URL from the
//     account subdomain (at most two calls).
//   - failed: the complete log transcript.
//   - canceled, unknown: nothing.
func (e *Enricher) Enrich(ctx context.Context, state types.BuildState, target Target) types.EnrichmentResult {
	var result types.EnrichmentResult
	if !e.Enabled() {
		return result
	}
	if strings.TrimSpace(target.AccountID) == "" || strings.TrimSpace(target.BuildUUID) == "" {
		e.log(ctx).Warn("skipping enrichment: event has no account or build id",
			"state", string(state))
		return result
	}

	switch state {
	case types.BuildSucceeded:
		result.PreviewURL, result.LiveURL = e.deployURLs(ctx, target)
	case types.BuildFailed:
		logs, err := e.FetchAllLogs(ctx, target.AccountID, target.BuildUUID)
		switch {
		case errors.Is(err, ErrPageLimit):
			e.log(ctx).Warn("log pagination stopped at page limit",
				"max_pages", e.maxLogPages,
				"lines", len(logs),
			)
		case err != nil:
			e.fail(ctx, err)
			logs = nil
		}
		result.Logs = logs
	}
	return result
}

// deployURLs asks for the preview URL first and only looks up the subdomain
// when the build has none.
func (e *Enricher) deployURLs(ctx context.Context, target Target) (preview, live string) {
	build, err := e.api.GetBuild(ctx, target.AccountID, target.BuildUUID)
	switch {
	case err != nil:
		e.fail(ctx, err)
	case build != nil && strings.TrimSpace(build.PreviewURL) != "":
		return strings.TrimSpace(build.PreviewURL), ""
	}

	workerName := strings.TrimSpace(target.WorkerName)
	if workerName == "" {
		workerName = builds.DefaultWorkerName
	}

	subdomain, err := e.api.GetWorkersSubdomain(ctx, target.AccountID)
	if err != nil {
		e.fail(ctx, err)
		return "", ""
	}
	return "", builds.LiveURL(workerName, subdomain)
}

// FetchAllLogs follows cursor pagination until a page is not truncated or
// carries no cursor. A cursor that was already requested also ends the
// stream, so a cycling API cannot replay pages. Any page error discards the lines read so far. Reaching
// the page limit returns ErrPageLimit together with the lines read so far.
func (e *Enricher) FetchAllLogs(ctx context.Context, accountID, buildUUID string) ([]string, error) {
	var lines []string
	cursor := ""
	requested := make(map[string]struct{}, e.maxLogPages)

	for page := 0; page < e.maxLogPages; page++ {
		requested[cursor] = struct{}{}
		resp, err := e.api.GetLogPage(ctx, accountID, buildUUID, cursor)
		if err != nil {
			return nil, err
		}
		for _, l := range resp.Lines {
			lines = append(lines, l.Text)
		}

		next := strings.TrimSpace(resp.Cursor)
		if !resp.Truncated || next == "" {
			return lines, nil
		}
		if _, seen := requested[next]; seen {
			return lines, nil
		}
		cursor = next
	}

	return lines, ErrPageLimit
}

// fail logs and counts one swallowed enrichment failure.
func (e *Enricher) fail(ctx context.Context, err error) {
	op, status := "", 0
	var fe *external.FetchError
	if errors.As(err, &fe) {
		op, status = fe.Op, fe.StatusCode
	}
	e.log(ctx).Warn("enrichment call failed",
		"op", op,
		"status_code", status,
		"error_code", string(types.CodeOf(err)),
		"error", err.Error(),
	)
	e.metrics.RecordEnrichmentFailure(ctx, op)
}

func (e *Enricher) log(ctx context.Context) types.Logger {
	return types.LoggerFromContext(ctx, e.logger)
}

type nopRecorder struct{}

func (nopRecorder) RecordEnrichmentFailure(context.Context, string) {}
