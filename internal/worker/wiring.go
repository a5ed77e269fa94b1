package worker

import (
	"buildnotify/internal/builds"
	"buildnotify/internal/config"
	"buildnotify/internal/enrichment"
	"buildnotify/internal/external"
	"buildnotify/internal/logscan"
	"buildnotify/internal/notifications/core"
	"buildnotify/internal/notifications/webhook"
	"buildnotify/internal/types"
)

// NewFromConfig wires the production pipeline. A missing API token disables
// enrichment; a missing webhook URL makes every batch short-circuit.
func NewFromConfig(cfg *config.Config, metrics core.NotificationMetrics, logger types.Logger) *Processor {
	if logger == nil {
		logger = types.NopLogger{}
	}
	if metrics == nil {
		metrics = core.NopMetrics{}
	}

	// The interface must stay untyped nil when there is no token, otherwise
	// the enricher would see a non-nil API.
	var api external.BuildsAPI
	if cfg.BuildsAPI.Enabled() {
		policy := external.DefaultRetryPolicy()
		policy.MaxRetries = cfg.BuildsAPI.MaxRetries
		api = external.NewBuildsClient(external.BuildsClientConfig{
			BaseURL:     cfg.BuildsAPI.BaseURL,
			Token:       cfg.BuildsAPI.Token,
			CallTimeout: cfg.BuildsAPI.CallTimeout,
			UserAgent:   cfg.Build.UserAgent(),
			RetryPolicy: policy,
		})
	} else {
		logger.Warn("BUILDS_API_TOKEN not configured, enrichment disabled")
	}

	resolver := builds.NewURLResolver(cfg.Links.DashboardBaseURL, cfg.Links.GitHubBaseURL, cfg.Links.GitLabBaseURL)
	branches := builds.NewBranchClassifier(cfg.Notify.ProductionBranches, cfg.Notify.AbsentBranchIsProduction)

	return NewProcessor(Deps{
		Enricher:  enrichment.New(api, logger, metrics, cfg.Notify.MaxLogPages),
		Extractor: logscan.New(cfg.Notify.ErrorSnippetMaxLength),
		Formatter: webhook.NewBuildFormatter(resolver, branches),
		Sink:      webhook.NewSink(cfg.Webhook.URL, cfg.Webhook.Timeout, cfg.Webhook.UserAgent),
		Metrics:   metrics,
		Logger:    logger,
	})
}
