package github_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ghAdapter "github.com/jonmartin721/devwatch-github-sub000/internal/adapter/driven/github"
	"github.com/jonmartin721/devwatch-github-sub000/internal/domain/model"
)

// newTestClient creates a Client backed by the given httptest handler.
func newTestClient(t *testing.T, handler http.Handler) *ghAdapter.Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := ghAdapter.NewClientWithHTTPClient(server.Client(), server.URL+"/")
	require.NoError(t, err)

	return client
}

type userJSON struct {
	Login     string `json:"login"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

func TestFetchRepository_MapsMetadataAndLatestRelease(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /repos/facebook/react", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"full_name":        "facebook/react",
			"name":             "react",
			"owner":            userJSON{Login: "facebook"},
			"description":      "A JS library",
			"language":         "JavaScript",
			"stargazers_count": 200000,
			"forks_count":      40000,
			"updated_at":       "2026-02-01T12:00:00Z",
		})
	})
	mux.HandleFunc("GET /repos/facebook/react/releases/latest", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"tag_name":     "v19.0.0",
			"published_at": "2026-01-20T00:00:00Z",
		})
	})

	client := newTestClient(t, mux)
	ref, err := client.FetchRepository(context.Background(), "facebook/react")

	require.NoError(t, err)
	assert.Equal(t, "facebook/react", ref.FullName)
	assert.Equal(t, "facebook", ref.Owner)
	assert.Equal(t, "react", ref.Name)
	assert.Equal(t, "A JS library", ref.Description)
	assert.Equal(t, "JavaScript", ref.Language)
	assert.Equal(t, 200000, ref.Stars)
	assert.Equal(t, 40000, ref.Forks)
	require.NotNil(t, ref.LatestRelease)
	assert.Equal(t, "v19.0.0", ref.LatestRelease.Version)
	assert.Equal(t, time.Date(2026, 1, 20, 0, 0, 0, 0, time.UTC), ref.LatestRelease.PublishedAt)
}

func TestFetchRepository_NoReleases(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /repos/owner/repo", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"full_name": "owner/repo",
			"name":      "repo",
			"owner":     userJSON{Login: "owner"},
		})
	})
	mux.HandleFunc("GET /repos/owner/repo/releases/latest", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"Not Found"}`, http.StatusNotFound)
	})

	client := newTestClient(t, mux)
	ref, err := client.FetchRepository(context.Background(), "owner/repo")

	require.NoError(t, err, "missing latest release is not a failure")
	assert.Nil(t, ref.LatestRelease)
}

func TestFetchRepository_InvalidName(t *testing.T) {
	client := newTestClient(t, http.NewServeMux())

	_, err := client.FetchRepository(context.Background(), "not-a-repo")
	require.ErrorIs(t, err, model.ErrInvalidFullName)
}

func TestFetchRepository_NotFound(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"Not Found"}`, http.StatusNotFound)
	})

	client := newTestClient(t, handler)
	_, err := client.FetchRepository(context.Background(), "ghost/missing")

	require.ErrorIs(t, err, ghAdapter.ErrNotFound)
}

func TestFetchRepository_Unauthorized(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"Bad credentials"}`, http.StatusUnauthorized)
	})

	client := newTestClient(t, handler)
	_, err := client.FetchRepository(context.Background(), "owner/repo")

	require.ErrorIs(t, err, ghAdapter.ErrAuthentication)
}

func TestFetchRepository_RateLimited(t *testing.T) {
	reset := time.Now().Add(30 * time.Minute).Unix()
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Ratelimit-Limit", "60")
		w.Header().Set("X-Ratelimit-Remaining", "0")
		w.Header().Set("X-Ratelimit-Reset", strconv.FormatInt(reset, 10))
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"message":"API rate limit exceeded"}`))
	})

	client := newTestClient(t, handler)
	_, err := client.FetchRepository(context.Background(), "owner/repo")

	require.Error(t, err)
	var rateErr *ghAdapter.RateLimitError
	require.ErrorAs(t, err, &rateErr, "rate-limited 403 must be distinguishable from access denied")
	assert.Equal(t, 0, rateErr.Remaining)
	assert.False(t, rateErr.ResetAt.IsZero())
}

func TestFetchRepository_AccessDenied(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"Must have admin rights"}`, http.StatusForbidden)
	})

	client := newTestClient(t, handler)
	_, err := client.FetchRepository(context.Background(), "owner/private")

	require.ErrorIs(t, err, ghAdapter.ErrAccessDenied)

	var rateErr *ghAdapter.RateLimitError
	assert.False(t, errors.As(err, &rateErr), "plain 403 must not classify as rate limit")
}

func TestFetchPullRequests_MapsToActivityItems(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /repos/owner/repo/pulls", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode([]map[string]any{
			{
				"id":         9001,
				"number":     42,
				"title":      "Add feature X",
				"html_url":   "https://github.com/owner/repo/pull/42",
				"created_at": "2026-02-03T00:00:00Z",
				"user":       userJSON{Login: "alice", AvatarURL: "https://avatars.test/alice"},
			},
			{
				"id":         9000,
				"number":     41,
				"title":      "Fix bug Y",
				"html_url":   "https://github.com/owner/repo/pull/41",
				"created_at": "2026-02-01T00:00:00Z",
				"user":       userJSON{Login: "bob"},
			},
		})
	})

	client := newTestClient(t, mux)
	items, err := client.FetchPullRequests(context.Background(), "owner/repo", 30)

	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Equal(t, "pr-owner/repo-9001", items[0].ID)
	assert.Equal(t, model.ActivityTypePR, items[0].Type)
	assert.Equal(t, "owner/repo", items[0].Repo)
	assert.Equal(t, "Add feature X", items[0].Title)
	assert.Equal(t, "alice", items[0].Author)
	assert.Equal(t, "https://avatars.test/alice", items[0].AuthorAvatar)
	assert.Equal(t, "pr-owner/repo-9000", items[1].ID)
}

func TestFetchIssues_SkipsPullRequests(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /repos/owner/repo/issues", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode([]map[string]any{
			{
				"id":         100,
				"number":     7,
				"title":      "Crash on startup",
				"html_url":   "https://github.com/owner/repo/issues/7",
				"created_at": "2026-02-03T00:00:00Z",
				"user":       userJSON{Login: "carol"},
			},
			{
				"id":           101,
				"number":       8,
				"title":        "A PR in issue clothing",
				"html_url":     "https://github.com/owner/repo/pull/8",
				"created_at":   "2026-02-02T00:00:00Z",
				"user":         userJSON{Login: "dave"},
				"pull_request": map[string]any{"url": "https://api.github.com/repos/owner/repo/pulls/8"},
			},
		})
	})

	client := newTestClient(t, mux)
	items, err := client.FetchIssues(context.Background(), "owner/repo", 30)

	require.NoError(t, err)
	require.Len(t, items, 1, "the issues API surfaces PRs; they must be skipped")
	assert.Equal(t, "issue-owner/repo-100", items[0].ID)
	assert.Equal(t, model.ActivityTypeIssue, items[0].Type)
	assert.Equal(t, "Crash on startup", items[0].Title)
}

func TestFetchReleases_FallsBackToTagName(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /repos/owner/repo/releases", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode([]map[string]any{
			{
				"id":           555,
				"name":         "Big Release",
				"tag_name":     "v2.0.0",
				"html_url":     "https://github.com/owner/repo/releases/v2.0.0",
				"published_at": "2026-02-01T00:00:00Z",
				"author":       userJSON{Login: "erin"},
			},
			{
				"id":           554,
				"name":         "",
				"tag_name":     "v1.9.9",
				"html_url":     "https://github.com/owner/repo/releases/v1.9.9",
				"published_at": "2026-01-01T00:00:00Z",
				"author":       userJSON{Login: "erin"},
			},
		})
	})

	client := newTestClient(t, mux)
	items, err := client.FetchReleases(context.Background(), "owner/repo", 30)

	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "Big Release", items[0].Title)
	assert.Equal(t, "v1.9.9", items[1].Title, "unnamed releases fall back to the tag")
	assert.Equal(t, model.ActivityTypeRelease, items[0].Type)
	assert.Equal(t, "release-owner/repo-555", items[0].ID)
}

func TestSearchRepositories(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /search/repositories", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "react", r.URL.Query().Get("q"))
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"total_count": 1,
			"items": []map[string]any{
				{
					"full_name":        "facebook/react",
					"name":             "react",
					"owner":            userJSON{Login: "facebook"},
					"stargazers_count": 200000,
				},
			},
		})
	})

	client := newTestClient(t, mux)
	refs, err := client.SearchRepositories(context.Background(), "react", 10)

	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, "facebook/react", refs[0].FullName)
	assert.Equal(t, 200000, refs[0].Stars)
}

func TestValidateToken(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /user", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(userJSON{Login: "octocat"})
	})

	client := newTestClient(t, mux)
	username, err := client.ValidateToken(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "octocat", username)
}

func TestValidateToken_BadCredentials(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"Bad credentials"}`, http.StatusUnauthorized)
	})

	client := newTestClient(t, handler)
	_, err := client.ValidateToken(context.Background())

	require.ErrorIs(t, err, ghAdapter.ErrAuthentication)
}
