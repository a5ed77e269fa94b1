package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

// testSecretProvider is a configurable mock for testing SSM resolution.
type testSecretProvider struct {
	values     map[string]string
	err        error
	calledWith []string
	callCount  int
}

func (p *testSecretProvider) GetParametersBatch(_ context.Context, keys []string) (map[string]string, error) {
	p.callCount++
	p.calledWith = append(p.calledWith, keys...)
	if p.err != nil {
		return nil, p.err
	}
	result := make(map[string]string)
	for _, k := range keys {
		if v, ok := p.values[k]; ok {
			result[k] = v
		}
	}
	return result, nil
}

// configKeys lists every variable the loader reads.
var configKeys = []string{
	"APP_ENV", "OTEL_SERVICE_NAME", "LOG_LEVEL",
	"WEBHOOK_URL", "WEBHOOK_USER_AGENT", "WEBHOOK_TIMEOUT",
	"BUILDS_API_BASE_URL", "BUILDS_API_TOKEN", "BUILDS_API_TIMEOUT", "BUILDS_API_MAX_RETRIES",
	"DASHBOARD_BASE_URL", "GITHUB_BASE_URL", "GITLAB_BASE_URL",
	"MAX_LOG_PAGES", "ERROR_SNIPPET_MAX_LENGTH", "PRODUCTION_BRANCHES", "ABSENT_BRANCH_IS_PRODUCTION",
	"AWS_REGION", "SQS_BUILD_EVENTS", "SQS_WAIT_TIME_SECONDS", "SQS_MAX_MESSAGES", "AWS_ENDPOINT_URL",
	"PORT", "METRICS_ENABLED",
	"WEBHOOK_URL_SSM_PARAM", "BUILDS_API_TOKEN_SSM_PARAM",
}

// unsetEnv removes key for the duration of the test. t.Setenv registers the
// cleanup that restores the original value, including values written later by
// godotenv or the SSM loader.
func unsetEnv(t *testing.T, key string) {
	t.Helper()
	t.Setenv(key, "")
	if err := os.Unsetenv(key); err != nil {
		t.Fatalf("unset %s: %v", key, err)
	}
}

// cleanEnv unsets every config variable and selects the local environment.
func cleanEnv(t *testing.T) {
	t.Helper()
	for _, k := range configKeys {
		unsetEnv(t, k)
	}
	t.Setenv("APP_ENV", "local")
}

func TestLoadConfigLocalDefaults(t *testing.T) {
	cleanEnv(t)

	cfg, err := LoadConfig(nil)
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}

	if cfg.Environment != "local" {
		t.Errorf("Environment = %q, want local", cfg.Environment)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info", cfg.LogLevel)
	}
	if cfg.Webhook.Configured() {
		t.Error("Webhook.Configured() = true without WEBHOOK_URL")
	}
	if cfg.Webhook.Timeout != 10*time.Second {
		t.Errorf("Webhook.Timeout = %v, want 10s", cfg.Webhook.Timeout)
	}
	if cfg.BuildsAPI.Enabled() {
		t.Error("BuildsAPI.Enabled() = true without BUILDS_API_TOKEN")
	}
	if cfg.BuildsAPI.BaseURL != "https://api.cloudflare.com/client/v4" {
		t.Errorf("BuildsAPI.BaseURL = %q", cfg.BuildsAPI.BaseURL)
	}
	if cfg.BuildsAPI.CallTimeout != 10*time.Second {
		t.Errorf("BuildsAPI.CallTimeout = %v, want 10s", cfg.BuildsAPI.CallTimeout)
	}
	if cfg.BuildsAPI.MaxRetries != 0 {
		t.Errorf("BuildsAPI.MaxRetries = %d, want 0", cfg.BuildsAPI.MaxRetries)
	}
	if cfg.Links.DashboardBaseURL != "https://dash.cloudflare.com" {
		t.Errorf("Links.DashboardBaseURL = %q", cfg.Links.DashboardBaseURL)
	}
	if cfg.Notify.MaxLogPages != 50 {
		t.Errorf("Notify.MaxLogPages = %d, want 50", cfg.Notify.MaxLogPages)
	}
	if cfg.Notify.ErrorSnippetMaxLength != 900 {
		t.Errorf("Notify.ErrorSnippetMaxLength = %d, want 900", cfg.Notify.ErrorSnippetMaxLength)
	}
	wantBranches := []string{"main", "master", "production", "prod"}
	if !reflect.DeepEqual(cfg.Notify.ProductionBranches, wantBranches) {
		t.Errorf("Notify.ProductionBranches = %v, want %v", cfg.Notify.ProductionBranches, wantBranches)
	}
	if !cfg.Notify.AbsentBranchIsProduction {
		t.Error("Notify.AbsentBranchIsProduction = false, want true")
	}
	if cfg.AWS.WaitTimeSeconds != 20 || cfg.AWS.MaxMessages != 10 {
		t.Errorf("AWS poll settings = %d/%d, want 20/10", cfg.AWS.WaitTimeSeconds, cfg.AWS.MaxMessages)
	}
	if cfg.Server.Port != "8080" {
		t.Errorf("Server.Port = %q, want 8080", cfg.Server.Port)
	}
	if !cfg.Observability.MetricsEnabled {
		t.Error("Observability.MetricsEnabled = false, want true")
	}
	if cfg.Build.Version != "dev" {
		t.Errorf("Build.Version = %q, want dev", cfg.Build.Version)
	}
}

func TestLoadConfigSetsUTC(t *testing.T) {
	cleanEnv(t)

	original := time.Local
	t.Cleanup(func() { time.Local = original })
	time.Local = time.FixedZone("EST", -5*3600)

	if _, err := LoadConfig(nil); err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if time.Local != time.UTC {
		t.Errorf("time.Local = %v, want UTC", time.Local)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	cleanEnv(t)
	t.Setenv("LOG_LEVEL", " DEBUG ")
	t.Setenv("WEBHOOK_URL", "https://hooks.slack.com/services/T0/B0/xyz")
	t.Setenv("WEBHOOK_TIMEOUT", "3s")
	t.Setenv("BUILDS_API_TOKEN", "api-token")
	t.Setenv("BUILDS_API_TIMEOUT", "1500ms")
	t.Setenv("MAX_LOG_PAGES", "7")
	t.Setenv("ERROR_SNIPPET_MAX_LENGTH", "1500")
	t.Setenv("PRODUCTION_BRANCHES", " main , release ,")
	t.Setenv("ABSENT_BRANCH_IS_PRODUCTION", "false")
	t.Setenv("SQS_BUILD_EVENTS", "https://sqs.us-east-1.amazonaws.com/123/build-events")

	cfg, err := LoadConfig(nil)
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}

	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
	}
	if !cfg.Webhook.Configured() {
		t.Error("Webhook.Configured() = false")
	}
	if cfg.Webhook.URL.Unmask() != "https://hooks.slack.com/services/T0/B0/xyz" {
		t.Errorf("Webhook.URL.Unmask() = %q", cfg.Webhook.URL.Unmask())
	}
	if cfg.Webhook.Timeout != 3*time.Second {
		t.Errorf("Webhook.Timeout = %v, want 3s", cfg.Webhook.Timeout)
	}
	if !cfg.BuildsAPI.Enabled() {
		t.Error("BuildsAPI.Enabled() = false")
	}
	if cfg.BuildsAPI.CallTimeout != 1500*time.Millisecond {
		t.Errorf("BuildsAPI.CallTimeout = %v, want 1.5s", cfg.BuildsAPI.CallTimeout)
	}
	if cfg.Notify.MaxLogPages != 7 {
		t.Errorf("Notify.MaxLogPages = %d, want 7", cfg.Notify.MaxLogPages)
	}
	if cfg.Notify.ErrorSnippetMaxLength != 1500 {
		t.Errorf("Notify.ErrorSnippetMaxLength = %d, want 1500", cfg.Notify.ErrorSnippetMaxLength)
	}
	if want := []string{"main", "release"}; !reflect.DeepEqual(cfg.Notify.ProductionBranches, want) {
		t.Errorf("Notify.ProductionBranches = %v, want %v", cfg.Notify.ProductionBranches, want)
	}
	if cfg.Notify.AbsentBranchIsProduction {
		t.Error("Notify.AbsentBranchIsProduction = true, want false")
	}
	if cfg.AWS.BuildEventsQueue == "" {
		t.Error("AWS.BuildEventsQueue is empty")
	}
}

func TestLoadConfigSecretsAreRedacted(t *testing.T) {
	cleanEnv(t)
	t.Setenv("WEBHOOK_URL", "https://hooks.slack.com/services/T0/B0/very-secret")
	t.Setenv("BUILDS_API_TOKEN", "token-very-secret")

	cfg, err := LoadConfig(nil)
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}

	dump := fmt.Sprintf("%v %+v", cfg.Webhook, cfg.BuildsAPI)
	if strings.Contains(dump, "very-secret") {
		t.Errorf("formatted config leaks a secret: %s", dump)
	}
}

func TestLoadConfigValidationFailures(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"missing app env", "APP_ENV", ""},
		{"unknown app env", "APP_ENV", "qa"},
		{"unknown log level", "LOG_LEVEL", "verbose"},
		{"snippet length below range", "ERROR_SNIPPET_MAX_LENGTH", "100"},
		{"snippet length above range", "ERROR_SNIPPET_MAX_LENGTH", "5000"},
		{"zero log pages", "MAX_LOG_PAGES", "0"},
		{"too many retries", "BUILDS_API_MAX_RETRIES", "9"},
		{"bad api base", "BUILDS_API_BASE_URL", "not a url"},
		{"bad dashboard base", "DASHBOARD_BASE_URL", "dash"},
		{"bad queue url", "SQS_BUILD_EVENTS", "queue"},
		{"wait time above limit", "SQS_WAIT_TIME_SECONDS", "30"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cleanEnv(t)
			if tt.value == "" {
				unsetEnv(t, tt.key)
			} else {
				t.Setenv(tt.key, tt.value)
			}

			_, err := LoadConfig(nil)
			if err == nil {
				t.Fatal("expected validation error, got nil")
			}
			var cfgErr *ConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("error type = %T, want *ConfigError", err)
			}
			if cfgErr.Type != ErrValidation {
				t.Errorf("ConfigError.Type = %q, want %q", cfgErr.Type, ErrValidation)
			}
		})
	}
}

func TestLoadConfigInvalidWebhookURLDoesNotLeak(t *testing.T) {
	cleanEnv(t)
	t.Setenv("WEBHOOK_URL", "hooks-secret-value")

	_, err := LoadConfig(nil)
	if err == nil {
		t.Fatal("expected validation error, got nil")
	}
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) || cfgErr.Type != ErrValidation {
		t.Fatalf("err = %v, want validation ConfigError", err)
	}
	if strings.Contains(err.Error(), "hooks-secret-value") {
		t.Errorf("error leaks the webhook URL: %v", err)
	}
}

func TestLoadConfigParsingFailure(t *testing.T) {
	cleanEnv(t)
	t.Setenv("MAX_LOG_PAGES", "many")

	_, err := LoadConfig(nil)
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("error type = %T, want *ConfigError", err)
	}
	if cfgErr.Type != ErrParsing {
		t.Errorf("ConfigError.Type = %q, want %q", cfgErr.Type, ErrParsing)
	}
}

func TestLoadConfigSSMResolution(t *testing.T) {
	cleanEnv(t)
	t.Setenv("APP_ENV", "dev")
	t.Setenv("WEBHOOK_URL_SSM_PARAM", "/dev/buildnotify/webhook-url")
	t.Setenv("BUILDS_API_TOKEN_SSM_PARAM", "/dev/buildnotify/api-token")

	provider := &testSecretProvider{values: map[string]string{
		"/dev/buildnotify/webhook-url": "https://hooks.slack.com/services/T0/B0/from-ssm",
		"/dev/buildnotify/api-token":   "token-from-ssm",
	}}

	cfg, err := LoadConfig(provider)
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}

	if provider.callCount != 1 {
		t.Errorf("provider called %d times, want 1", provider.callCount)
	}
	wantKeys := []string{"/dev/buildnotify/api-token", "/dev/buildnotify/webhook-url"}
	if !reflect.DeepEqual(provider.calledWith, wantKeys) {
		t.Errorf("provider called with %v, want %v", provider.calledWith, wantKeys)
	}
	if cfg.Webhook.URL.Unmask() != "https://hooks.slack.com/services/T0/B0/from-ssm" {
		t.Errorf("Webhook.URL = %q", cfg.Webhook.URL.Unmask())
	}
	if cfg.BuildsAPI.Token.Unmask() != "token-from-ssm" {
		t.Errorf("BuildsAPI.Token = %q", cfg.BuildsAPI.Token.Unmask())
	}
}

func TestLoadConfigSSMSkippedForLocal(t *testing.T) {
	cleanEnv(t)
	t.Setenv("WEBHOOK_URL_SSM_PARAM", "/dev/buildnotify/webhook-url")

	provider := &testSecretProvider{values: map[string]string{
		"/dev/buildnotify/webhook-url": "https://hooks.slack.com/services/T0/B0/from-ssm",
	}}

	cfg, err := LoadConfig(provider)
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if provider.callCount != 0 {
		t.Errorf("provider called %d times in local mode, want 0", provider.callCount)
	}
	if cfg.Webhook.Configured() {
		t.Error("Webhook configured from SSM in local mode")
	}
}

func TestLoadConfigDirectEnvWinsOverSSM(t *testing.T) {
	cleanEnv(t)
	t.Setenv("APP_ENV", "prod")
	t.Setenv("BUILDS_API_TOKEN", "direct-token")
	t.Setenv("BUILDS_API_TOKEN_SSM_PARAM", "/prod/buildnotify/api-token")

	provider := &testSecretProvider{values: map[string]string{
		"/prod/buildnotify/api-token": "ssm-token",
	}}

	cfg, err := LoadConfig(provider)
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if provider.callCount != 0 {
		t.Errorf("provider called %d times, want 0", provider.callCount)
	}
	if cfg.BuildsAPI.Token.Unmask() != "direct-token" {
		t.Errorf("BuildsAPI.Token = %q, want direct-token", cfg.BuildsAPI.Token.Unmask())
	}
}

func TestLoadConfigSSMFailures(t *testing.T) {
	providerErr := errors.New("throttled")

	tests := []struct {
		name        string
		provider    SecretProvider
		wantWrapped error
		wantMessage string
	}{
		{"nil provider", nil, nil, "WEBHOOK_URL"},
		{"provider error", &testSecretProvider{err: providerErr}, providerErr, "failed to resolve 1 SSM parameters"},
		{"parameter missing", &testSecretProvider{values: map[string]string{}}, nil, "SSM parameters not found for: WEBHOOK_URL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cleanEnv(t)
			t.Setenv("APP_ENV", "staging")
			t.Setenv("WEBHOOK_URL_SSM_PARAM", "/staging/buildnotify/webhook-url")

			_, err := LoadConfig(tt.provider)
			var cfgErr *ConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("error = %v, want *ConfigError", err)
			}
			if cfgErr.Type != ErrSSMResolution {
				t.Errorf("ConfigError.Type = %q, want %q", cfgErr.Type, ErrSSMResolution)
			}
			if !strings.Contains(err.Error(), tt.wantMessage) {
				t.Errorf("error %q does not contain %q", err.Error(), tt.wantMessage)
			}
			if tt.wantWrapped != nil && !errors.Is(err, tt.wantWrapped) {
				t.Errorf("error does not wrap %v", tt.wantWrapped)
			}
		})
	}
}

func TestLoadConfigNilProviderNonLocalWithoutPointers(t *testing.T) {
	cleanEnv(t)
	t.Setenv("APP_ENV", "prod")

	if _, err := LoadConfig(nil); err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
}

func TestLoadConfigDotenvFile(t *testing.T) {
	cleanEnv(t)
	t.Setenv("MAX_LOG_PAGES", "12")

	dir := t.TempDir()
	dotenv := "BUILDS_API_TOKEN=dotenv-token\nMAX_LOG_PAGES=3\nPRODUCTION_BRANCHES=trunk\n"
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte(dotenv), 0o600); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	t.Chdir(dir)

	cfg, err := LoadConfig(nil)
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}

	if cfg.BuildsAPI.Token.Unmask() != "dotenv-token" {
		t.Errorf("BuildsAPI.Token = %q, want value from .env", cfg.BuildsAPI.Token.Unmask())
	}
	if cfg.Notify.MaxLogPages != 12 {
		t.Errorf("Notify.MaxLogPages = %d, want environment value 12 over .env", cfg.Notify.MaxLogPages)
	}
	if want := []string{"trunk"}; !reflect.DeepEqual(cfg.Notify.ProductionBranches, want) {
		t.Errorf("Notify.ProductionBranches = %v, want %v", cfg.Notify.ProductionBranches, want)
	}
}

// TestResolveSSMParamsIsolated drives resolveSSMParams against a private
// environment map.
func TestResolveSSMParamsIsolated(t *testing.T) {
	env := map[string]string{
		"WEBHOOK_URL_SSM_PARAM":      "/p/webhook",
		"BUILDS_API_TOKEN_SSM_PARAM": "/p/token",
		"EMPTY_SSM_PARAM":            "",
		"ALREADY_SET_SSM_PARAM":      "/p/already",
		"ALREADY_SET":                "keep",
		"UNRELATED":                  "x",
	}
	deps := loaderDeps{
		lookupEnv: func(k string) (string, bool) { v, ok := env[k]; return v, ok },
		setEnv:    func(k, v string) error { env[k] = v; return nil },
		environ: func() []string {
			out := make([]string, 0, len(env))
			for k, v := range env {
				out = append(out, k+"="+v)
			}
			return out
		},
	}
	provider := &testSecretProvider{values: map[string]string{
		"/p/webhook": "https://hooks.example.com/x",
		"/p/token":   "tok",
	}}

	if err := resolveSSMParams(provider, deps); err != nil {
		t.Fatalf("resolveSSMParams returned error: %v", err)
	}

	if want := []string{"/p/token", "/p/webhook"}; !reflect.DeepEqual(provider.calledWith, want) {
		t.Errorf("provider called with %v, want %v", provider.calledWith, want)
	}
	if env["WEBHOOK_URL"] != "https://hooks.example.com/x" {
		t.Errorf("WEBHOOK_URL = %q", env["WEBHOOK_URL"])
	}
	if env["BUILDS_API_TOKEN"] != "tok" {
		t.Errorf("BUILDS_API_TOKEN = %q", env["BUILDS_API_TOKEN"])
	}
	if env["ALREADY_SET"] != "keep" {
		t.Errorf("ALREADY_SET = %q, want keep", env["ALREADY_SET"])
	}
	if _, ok := env["EMPTY"]; ok {
		t.Error("EMPTY was set from an empty SSM path")
	}
}

func TestResolveSSMParamsSetEnvFailure(t *testing.T) {
	setErr := errors.New("read-only environment")
	deps := loaderDeps{
		lookupEnv: func(string) (string, bool) { return "", false },
		setEnv:    func(string, string) error { return setErr },
		environ:   func() []string { return []string{"WEBHOOK_URL_SSM_PARAM=/p/webhook"} },
	}
	provider := &testSecretProvider{values: map[string]string{"/p/webhook": "https://hooks.example.com/x"}}

	err := resolveSSMParams(provider, deps)
	if !errors.Is(err, setErr) {
		t.Fatalf("err = %v, want wrapped %v", err, setErr)
	}
}

func TestConfigError(t *testing.T) {
	inner := errors.New("boom")

	withInner := &ConfigError{Type: ErrParsing, Message: "bad value", Err: inner}
	if got, want := withInner.Error(), "[PARSING_FAILED] bad value: boom"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !errors.Is(withInner, inner) {
		t.Error("errors.Is did not find the wrapped error")
	}

	bare := &ConfigError{Type: ErrValidation, Message: "invalid"}
	if got, want := bare.Error(), "[VALIDATION_FAILED] invalid"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if bare.Unwrap() != nil {
		t.Error("Unwrap() on a bare ConfigError should be nil")
	}
}
