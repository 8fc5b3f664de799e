package driven

import (
	"context"

	"github.com/jonmartin721/devwatch-github-sub000/internal/domain/model"
)

// GitHubClient defines the driven port for interacting with the GitHub API.
// Adapters map HTTP failures to the error kinds in the github adapter package
// (authentication, rate limit, access denied, not found, network).
type GitHubClient interface {
	// FetchRepository returns repository metadata including the latest
	// release, or nil release if the repository has none.
	FetchRepository(ctx context.Context, fullName string) (*model.RepoRef, error)

	// FetchPullRequests returns the most recent pull requests as activity
	// items, newest first, at most limit items.
	FetchPullRequests(ctx context.Context, fullName string, limit int) ([]model.ActivityItem, error)

	// FetchIssues returns the most recent issues as activity items, newest
	// first, at most limit items. Pull requests surfaced by the issues API
	// are excluded.
	FetchIssues(ctx context.Context, fullName string, limit int) ([]model.ActivityItem, error)

	// FetchReleases returns the most recent releases as activity items,
	// newest first, at most limit items.
	FetchReleases(ctx context.Context, fullName string, limit int) ([]model.ActivityItem, error)

	// SearchRepositories searches GitHub for repositories matching query.
	SearchRepositories(ctx context.Context, query string, limit int) ([]model.RepoRef, error)

	// ValidateToken verifies the client's token and returns the
	// authenticated username on success.
	ValidateToken(ctx context.Context) (username string, err error)
}
