// Package github implements the GitHubClient port using the go-github library.
package github

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/gofri/go-github-ratelimit/v2/github_ratelimit"
	gh "github.com/google/go-github/v82/github"
	"github.com/gregjones/httpcache"

	"github.com/jonmartin721/devwatch-github-sub000/internal/domain/model"
	"github.com/jonmartin721/devwatch-github-sub000/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.GitHubClient = (*Client)(nil)

// Client implements the driven.GitHubClient port using the go-github library.
type Client struct {
	gh *gh.Client
}

// NewClient creates a new GitHub API client with the following transport stack:
//  1. httpcache (ETag-based conditional request caching)
//  2. go-github-ratelimit (secondary rate limit middleware, sleeps on 429)
//  3. go-github (GitHub REST API client with PAT auth)
func NewClient(token string) *Client {
	cacheTransport := httpcache.NewMemoryCacheTransport()
	rateLimitClient := github_ratelimit.NewClient(cacheTransport)
	client := gh.NewClient(rateLimitClient).WithAuthToken(token)

	return &Client{gh: client}
}

// NewClientWithHTTPClient creates a Client with a custom http.Client and base URL.
// This constructor is intended for testing, allowing injection of an httptest server.
func NewClientWithHTTPClient(httpClient *http.Client, baseURL string) (*Client, error) {
	client := gh.NewClient(httpClient)

	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	client.BaseURL = u

	return &Client{gh: client}, nil
}

// FetchRepository retrieves repository metadata including the latest release.
// A repository without releases yields a nil LatestRelease, not an error.
func (c *Client) FetchRepository(ctx context.Context, fullName string) (*model.RepoRef, error) {
	owner, name, err := model.SplitFullName(fullName)
	if err != nil {
		return nil, err
	}

	repo, resp, err := c.gh.Repositories.Get(ctx, owner, name)
	if err != nil {
		return nil, fmt.Errorf("fetching repository %s: %w", fullName, mapError(err))
	}

	logRateLimit(resp, fullName, 0, 1)

	ref := &model.RepoRef{
		FullName:    repo.GetFullName(),
		Owner:       repo.GetOwner().GetLogin(),
		Name:        repo.GetName(),
		Description: repo.GetDescription(),
		Language:    repo.GetLanguage(),
		Stars:       repo.GetStargazersCount(),
		Forks:       repo.GetForksCount(),
		UpdatedAt:   repo.GetUpdatedAt().Time,
	}

	release, _, err := c.gh.Repositories.GetLatestRelease(ctx, owner, name)
	if err != nil {
		// No releases is the common case, not a failure.
		if mapped := mapError(err); !errors.Is(mapped, ErrNotFound) {
			return nil, fmt.Errorf("fetching latest release for %s: %w", fullName, mapped)
		}
		return ref, nil
	}

	ref.LatestRelease = &model.Release{
		Version:     release.GetTagName(),
		PublishedAt: release.GetPublishedAt().Time,
	}

	return ref, nil
}

// FetchPullRequests retrieves the most recent pull requests as activity items,
// newest first.
func (c *Client) FetchPullRequests(ctx context.Context, fullName string, limit int) ([]model.ActivityItem, error) {
	owner, name, err := model.SplitFullName(fullName)
	if err != nil {
		return nil, err
	}

	opts := &gh.PullRequestListOptions{
		State:       "all",
		Sort:        "created",
		Direction:   "desc",
		ListOptions: gh.ListOptions{PerPage: limit},
	}

	prs, resp, err := c.gh.PullRequests.List(ctx, owner, name, opts)
	if err != nil {
		return nil, fmt.Errorf("listing pull requests for %s: %w", fullName, mapError(err))
	}

	logRateLimit(resp, fullName+"/pulls", 0, len(prs))

	items := make([]model.ActivityItem, 0, len(prs))
	for _, pr := range prs {
		items = append(items, model.ActivityItem{
			ID:           model.ActivityID(model.ActivityTypePR, fullName, pr.GetID()),
			Type:         model.ActivityTypePR,
			Repo:         fullName,
			Title:        pr.GetTitle(),
			URL:          pr.GetHTMLURL(),
			CreatedAt:    pr.GetCreatedAt().Time,
			Author:       pr.GetUser().GetLogin(),
			AuthorAvatar: pr.GetUser().GetAvatarURL(),
		})
	}

	return items, nil
}

// FetchIssues retrieves the most recent issues as activity items, newest
// first. The issues API also surfaces pull requests; those are skipped.
func (c *Client) FetchIssues(ctx context.Context, fullName string, limit int) ([]model.ActivityItem, error) {
	owner, name, err := model.SplitFullName(fullName)
	if err != nil {
		return nil, err
	}

	opts := &gh.IssueListByRepoOptions{
		State:       "all",
		Sort:        "created",
		Direction:   "desc",
		ListOptions: gh.ListOptions{PerPage: limit},
	}

	issues, resp, err := c.gh.Issues.ListByRepo(ctx, owner, name, opts)
	if err != nil {
		return nil, fmt.Errorf("listing issues for %s: %w", fullName, mapError(err))
	}

	logRateLimit(resp, fullName+"/issues", 0, len(issues))

	items := make([]model.ActivityItem, 0, len(issues))
	for _, issue := range issues {
		if issue.IsPullRequest() {
			continue
		}
		items = append(items, model.ActivityItem{
			ID:           model.ActivityID(model.ActivityTypeIssue, fullName, issue.GetID()),
			Type:         model.ActivityTypeIssue,
			Repo:         fullName,
			Title:        issue.GetTitle(),
			URL:          issue.GetHTMLURL(),
			CreatedAt:    issue.GetCreatedAt().Time,
			Author:       issue.GetUser().GetLogin(),
			AuthorAvatar: issue.GetUser().GetAvatarURL(),
		})
	}

	return items, nil
}

// FetchReleases retrieves the most recent releases as activity items, newest first.
func (c *Client) FetchReleases(ctx context.Context, fullName string, limit int) ([]model.ActivityItem, error) {
	owner, name, err := model.SplitFullName(fullName)
	if err != nil {
		return nil, err
	}

	opts := &gh.ListOptions{PerPage: limit}

	releases, resp, err := c.gh.Repositories.ListReleases(ctx, owner, name, opts)
	if err != nil {
		return nil, fmt.Errorf("listing releases for %s: %w", fullName, mapError(err))
	}

	logRateLimit(resp, fullName+"/releases", 0, len(releases))

	items := make([]model.ActivityItem, 0, len(releases))
	for _, release := range releases {
		title := release.GetName()
		if title == "" {
			title = release.GetTagName()
		}
		items = append(items, model.ActivityItem{
			ID:           model.ActivityID(model.ActivityTypeRelease, fullName, release.GetID()),
			Type:         model.ActivityTypeRelease,
			Repo:         fullName,
			Title:        title,
			URL:          release.GetHTMLURL(),
			CreatedAt:    release.GetPublishedAt().Time,
			Author:       release.GetAuthor().GetLogin(),
			AuthorAvatar: release.GetAuthor().GetAvatarURL(),
		})
	}

	return items, nil
}

// SearchRepositories searches GitHub for repositories matching query.
func (c *Client) SearchRepositories(ctx context.Context, query string, limit int) ([]model.RepoRef, error) {
	opts := &gh.SearchOptions{
		ListOptions: gh.ListOptions{PerPage: limit},
	}

	result, resp, err := c.gh.Search.Repositories(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("searching repositories for %q: %w", query, mapError(err))
	}

	logRateLimit(resp, "search", 0, len(result.Repositories))

	refs := make([]model.RepoRef, 0, len(result.Repositories))
	for _, repo := range result.Repositories {
		refs = append(refs, model.RepoRef{
			FullName:    repo.GetFullName(),
			Owner:       repo.GetOwner().GetLogin(),
			Name:        repo.GetName(),
			Description: repo.GetDescription(),
			Language:    repo.GetLanguage(),
			Stars:       repo.GetStargazersCount(),
			Forks:       repo.GetForksCount(),
			UpdatedAt:   repo.GetUpdatedAt().Time,
		})
	}

	return refs, nil
}

// ValidateToken verifies the client's token and returns the authenticated
// username on success.
func (c *Client) ValidateToken(ctx context.Context) (string, error) {
	user, _, err := c.gh.Users.Get(ctx, "")
	if err != nil {
		return "", fmt.Errorf("validating token: %w", mapError(err))
	}
	return user.GetLogin(), nil
}

// logRateLimit logs the GitHub API rate limit status after each call.
func logRateLimit(resp *gh.Response, endpoint string, page, count int) {
	if resp == nil {
		return
	}

	slog.Debug("github api call",
		"endpoint", endpoint,
		"page", page,
		"count", count,
		"rate_remaining", resp.Rate.Remaining,
		"rate_limit", resp.Rate.Limit,
	)

	if resp.Rate.Remaining < 100 {
		slog.Warn("github rate limit low",
			"remaining", resp.Rate.Remaining,
			"reset_in", time.Until(resp.Rate.Reset.Time).Round(time.Second),
		)
	}
}
