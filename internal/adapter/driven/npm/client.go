// Package npm implements the RegistryClient port against the npm registry.
package npm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jonmartin721/devwatch-github-sub000/internal/domain/model"
	"github.com/jonmartin721/devwatch-github-sub000/internal/domain/port/driven"
)

const defaultBaseURL = "https://registry.npmjs.org"

// Compile-time interface satisfaction check.
var _ driven.RegistryClient = (*Client)(nil)

// Client implements the driven.RegistryClient port against the public npm
// registry. No authentication is required for package metadata.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// NewClient creates a registry client against registry.npmjs.org.
func NewClient() *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    defaultBaseURL,
	}
}

// NewClientWithBaseURL creates a registry client against the given base URL.
// Intended for testing with an httptest server.
func NewClientWithBaseURL(httpClient *http.Client, baseURL string) *Client {
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
	}
}

// packageMetadata is the subset of the registry document we read.
type packageMetadata struct {
	Repository repositoryField `json:"repository"`
}

// repositoryField tolerates both shapes the registry serves: an object
// {"type", "url"} or a bare URL string in older package documents.
type repositoryField struct {
	URL string
}

func (f *repositoryField) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, `"`) {
		return json.Unmarshal(data, &f.URL)
	}

	var obj struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	f.URL = obj.URL
	return nil
}

// ResolveRepository returns the "owner/name" of the GitHub repository declared
// by the given npm package.
func (c *Client) ResolveRepository(ctx context.Context, pkg string) (string, error) {
	if pkg == "" {
		return "", fmt.Errorf("resolve package: empty package name")
	}

	// Scoped packages (@scope/name) must keep the slash encoded.
	endpoint := c.baseURL + "/" + url.PathEscape(pkg)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("resolve package %q: %w", pkg, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("resolve package %q: %w", pkg, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return "", fmt.Errorf("resolve package %q: %w", pkg, driven.ErrPackageNotFound)
	case resp.StatusCode != http.StatusOK:
		return "", fmt.Errorf("resolve package %q: unexpected status %d", pkg, resp.StatusCode)
	}

	var meta packageMetadata
	if err := json.NewDecoder(resp.Body).Decode(&meta); err != nil {
		return "", fmt.Errorf("resolve package %q: decode metadata: %w", pkg, err)
	}

	fullName, ok := githubFullName(meta.Repository.URL)
	if !ok {
		return "", fmt.Errorf("resolve package %q: %w", pkg, driven.ErrNoRepository)
	}

	return fullName, nil
}

// githubFullName extracts "owner/name" from a repository URL as published on
// the registry, e.g. "git+https://github.com/owner/name.git",
// "git://github.com/owner/name.git", or "github:owner/name".
func githubFullName(repoURL string) (string, bool) {
	if repoURL == "" {
		return "", false
	}

	if rest, ok := strings.CutPrefix(repoURL, "github:"); ok {
		if model.ValidateFullName(rest) {
			return rest, true
		}
		return "", false
	}

	cleaned := strings.TrimPrefix(repoURL, "git+")
	cleaned = strings.TrimSuffix(cleaned, ".git")

	u, err := url.Parse(cleaned)
	if err != nil || !strings.EqualFold(strings.TrimPrefix(u.Host, "www."), "github.com") {
		return "", false
	}

	fullName := strings.Trim(u.Path, "/")
	if !model.ValidateFullName(fullName) {
		return "", false
	}
	return fullName, true
}
