// Package config defines the configuration structure for the build
// notification worker. Configuration is loaded once at process initialization
// (Lambda cold start) and is immutable thereafter.
//
// Values are resolved via a priority chain:
//
//	OS Environment (Highest) -> Dotenv File -> AWS SSM Parameter Store (Lowest)
//
// An invalid value causes the process to exit on startup. The two secrets are
// optional: without WEBHOOK_URL batches are acknowledged unprocessed, and
// without BUILDS_API_TOKEN enrichment is disabled.
package config

import (
	"strings"
	"time"

	"buildnotify/internal/types"
)

// SecretString is an alias for types.SecretString, the redacted secret type used
// throughout configuration to prevent accidental logging of sensitive values.
type SecretString = types.SecretString

// Config is the top-level configuration struct. Sub-components receive only
// the specific config subsets they require.
type Config struct {
	// System Metadata
	Environment string `envconfig:"APP_ENV" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"OTEL_SERVICE_NAME" default:"buildnotify"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`

	// Domain Configurations
	Webhook       WebhookConfig
	BuildsAPI     BuildsAPIConfig
	Links         LinksConfig
	Notify        NotifyConfig
	AWS           AWSConfig
	Server        ServerConfig
	Observability ObservabilityConfig

	// Build Metadata (Injected via ldflags, not Env)
	Build BuildInfo
}

// WebhookConfig holds settings for the outbound Slack webhook.
type WebhookConfig struct {
	URL       SecretString  `envconfig:"WEBHOOK_URL"`
	UserAgent string        `envconfig:"WEBHOOK_USER_AGENT" default:"BuildNotify/1.0"`
	Timeout   time.Duration `envconfig:"WEBHOOK_TIMEOUT" default:"10s"`
}

// Configured reports whether a destination URL is set.
func (c WebhookConfig) Configured() bool {
	return !c.URL.IsEmpty()
}

// BuildsAPIConfig holds settings for the Workers Builds API used by enrichment.
type BuildsAPIConfig struct {
	BaseURL     string        `envconfig:"BUILDS_API_BASE_URL" default:"https://api.cloudflare.com/client/v4" validate:"required,url"`
	Token       SecretString  `envconfig:"BUILDS_API_TOKEN"`
	CallTimeout time.Duration `envconfig:"BUILDS_API_TIMEOUT" default:"10s"`
	MaxRetries  int           `envconfig:"BUILDS_API_MAX_RETRIES" default:"0" validate:"min=0,max=5"`
}

// Enabled reports whether an API token is configured.
func (c BuildsAPIConfig) Enabled() bool {
	return !c.Token.IsEmpty()
}

// LinksConfig holds the base URLs used for link templating.
type LinksConfig struct {
	DashboardBaseURL string `envconfig:"DASHBOARD_BASE_URL" default:"https://dash.cloudflare.com" validate:"required,url"`
	GitHubBaseURL    string `envconfig:"GITHUB_BASE_URL" default:"https://github.com" validate:"required,url"`
	GitLabBaseURL    string `envconfig:"GITLAB_BASE_URL" default:"https://gitlab.com" validate:"required,url"`
}

// NotifyConfig holds the pipeline tuning knobs.
type NotifyConfig struct {
	MaxLogPages              int      `envconfig:"MAX_LOG_PAGES" default:"50" validate:"min=1,max=500"`
	ErrorSnippetMaxLength    int      `envconfig:"ERROR_SNIPPET_MAX_LENGTH" default:"900" validate:"min=200,max=3000"`
	ProductionBranches       []string `envconfig:"PRODUCTION_BRANCHES" default:"main,master,production,prod"`
	AbsentBranchIsProduction bool     `envconfig:"ABSENT_BRANCH_IS_PRODUCTION" default:"true"`
}

// AWSConfig holds AWS resource identifiers and regional configuration.
type AWSConfig struct {
	Region string `envconfig:"AWS_REGION" default:"us-east-1"`

	// Only the poller reads the queue directly; the Lambda host receives
	// messages from the event source mapping.
	BuildEventsQueue string `envconfig:"SQS_BUILD_EVENTS" validate:"omitempty,url"`
	WaitTimeSeconds  int32  `envconfig:"SQS_WAIT_TIME_SECONDS" default:"20" validate:"min=0,max=20"`
	MaxMessages      int32  `envconfig:"SQS_MAX_MESSAGES" default:"10" validate:"min=1,max=10"`

	// LocalStack Support (Empty in Prod)
	EndpointURL string `envconfig:"AWS_ENDPOINT_URL"`
}

// ServerConfig holds the local replay server settings.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8080"`
}

// ObservabilityConfig holds telemetry settings.
type ObservabilityConfig struct {
	MetricsEnabled bool `envconfig:"METRICS_ENABLED" default:"true"`
}

// BuildInfo holds build-time metadata injected via ldflags.
// These values are NOT populated from environment variables.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// UserAgent returns the User-Agent for outbound API calls.
func (b BuildInfo) UserAgent() string {
	v := strings.TrimSpace(b.Version)
	if v == "" {
		v = "dev"
	}
	return "buildnotify/" + v
}

// ConfigErrorType categorizes configuration loading failures to aid debugging.
type ConfigErrorType string

const (
	// ErrSSMResolution indicates a failure when fetching secrets from AWS SSM.
	ErrSSMResolution ConfigErrorType = "SSM_FAILURE"
	// ErrValidation indicates the configuration failed struct validation rules.
	ErrValidation ConfigErrorType = "VALIDATION_FAILED"
	// ErrParsing indicates a failure when parsing environment variable values
	// into their target types.
	ErrParsing ConfigErrorType = "PARSING_FAILED"
)
