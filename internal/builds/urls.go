package builds

import (
	"fmt"
	"net/url"
	"strings"

	"buildnotify/internal/types"
)

// DefaultWorkerName is used when neither the event source nor the trigger
// metadata names the worker.
const DefaultWorkerName = "worker"

// Default base URLs for link templating.
const (
	DefaultDashboardBaseURL = "https://dash.cloudflare.com"
	DefaultGitHubBaseURL    = "https://github.com"
	DefaultGitLabBaseURL    = "https://gitlab.com"
)

// Source-control provider identifiers as they appear in trigger metadata.
const (
	ProviderGitHub = "github"
	ProviderGitLab = "gitlab"
)

// URLResolver derives dashboard, commit and live URLs by string templating.
// It never performs network calls and returns "" rather than guessing when an
// identifier is missing.
type URLResolver struct {
	DashboardBaseURL string
	GitHubBaseURL    string
	GitLabBaseURL    string
}

// NewURLResolver returns a resolver, substituting defaults for blank bases.
func NewURLResolver(dashboardBase, githubBase, gitlabBase string) URLResolver {
	return URLResolver{
		DashboardBaseURL: orDefault(dashboardBase, DefaultDashboardBaseURL),
		GitHubBaseURL:    orDefault(githubBase, DefaultGitHubBaseURL),
		GitLabBaseURL:    orDefault(gitlabBase, DefaultGitLabBaseURL),
	}
}

// WorkerName resolves the worker name: source.workerName, then
// buildTriggerMetadata.repoName, then DefaultWorkerName.
func WorkerName(ev *types.BuildEvent) string {
	if ev != nil {
		if name := strings.TrimSpace(ev.Source.WorkerName); name != "" {
			return name
		}
		if repo := strings.TrimSpace(ev.Trigger().RepoName); repo != "" {
			return repo
		}
	}
	return DefaultWorkerName
}

// DashboardURL links to the build page in the provider dashboard.
// Requires accountID and buildUUID.
func (r URLResolver) DashboardURL(accountID, workerName, buildUUID string) string {
	accountID = strings.TrimSpace(accountID)
	buildUUID = strings.TrimSpace(buildUUID)
	if accountID == "" || buildUUID == "" {
		return ""
	}
	if strings.TrimSpace(workerName) == "" {
		workerName = DefaultWorkerName
	}
	return fmt.Sprintf("%s/%s/workers/services/view/%s/production/builds/%s",
		strings.TrimRight(orDefault(r.DashboardBaseURL, DefaultDashboardBaseURL), "/"),
		url.PathEscape(accountID),
		url.PathEscape(workerName),
		url.PathEscape(buildUUID),
	)
}

// CommitURL links to the commit on the source-control provider. It requires
// repoName, commitHash and providerAccountName; unknown providers yield "".
func (r URLResolver) CommitURL(meta types.TriggerMetadata) string {
	repo := strings.TrimSpace(meta.RepoName)
	hash := strings.TrimSpace(meta.CommitHash)
	account := strings.TrimSpace(meta.ProviderAccountName)
	if repo == "" || hash == "" || account == "" {
		return ""
	}

	switch strings.ToLower(strings.TrimSpace(meta.ProviderType)) {
	case ProviderGitHub:
		return fmt.Sprintf("%s/%s/%s/commit/%s",
			strings.TrimRight(orDefault(r.GitHubBaseURL, DefaultGitHubBaseURL), "/"),
			url.PathEscape(account), url.PathEscape(repo), url.PathEscape(hash))
	case ProviderGitLab:
		return fmt.Sprintf("%s/%s/%s/-/commit/%s",
			strings.TrimRight(orDefault(r.GitLabBaseURL, DefaultGitLabBaseURL), "/"),
			url.PathEscape(account), url.PathEscape(repo), url.PathEscape(hash))
	default:
		return ""
	}
}

// LiveURL builds the workers.dev address of a deployed worker.
func LiveURL(workerName, subdomain string) string {
	workerName = strings.TrimSpace(workerName)
	subdomain = strings.TrimSpace(subdomain)
	if workerName == "" || subdomain == "" {
		return ""
	}
	return fmt.Sprintf("https://%s.%s.workers.dev", workerName, subdomain)
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
