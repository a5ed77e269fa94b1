package external

import "context"

// BuildsAPI is the subset of the Workers Builds REST API used for enrichment.
// Every method returns *FetchError on failure.
type BuildsAPI interface {
	// GetBuild fetches build details. PreviewURL is empty when the build has
	// no preview deployment.
	GetBuild(ctx context.Context, accountID, buildUUID string) (*BuildDetails, error)

	// GetWorkersSubdomain returns the account's workers.dev subdomain.
	GetWorkersSubdomain(ctx context.Context, accountID string) (string, error)

	// GetLogPage returns one page of log lines. An empty cursor requests the
	// first page.
	GetLogPage(ctx context.Context, accountID, buildUUID, cursor string) (*LogPage, error)
}
