package application

import (
	"sync"

	"github.com/jonmartin721/devwatch-github-sub000/internal/domain/port/driven"
)

// GitHubClientProvider enables runtime hot-swap of the GitHub client. It
// holds a mutex-protected reference to the current driven.GitHubClient and
// the authenticated username, so a credential update takes effect without
// restarting the daemon.
type GitHubClientProvider struct {
	mu       sync.RWMutex
	client   driven.GitHubClient
	username string
}

// NewGitHubClientProvider creates a provider with the given initial client
// and username. client may be nil when no credentials are available at
// startup.
func NewGitHubClientProvider(client driven.GitHubClient, username string) *GitHubClientProvider {
	return &GitHubClientProvider{
		client:   client,
		username: username,
	}
}

// Get returns the current GitHub client, or nil when no credentials are
// configured.
func (p *GitHubClientProvider) Get() driven.GitHubClient {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.client
}

// Username returns the username the current client authenticated as.
func (p *GitHubClientProvider) Username() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.username
}

// Replace swaps in a new client and username after a credential change. The
// next Get or Username call observes the new values.
func (p *GitHubClientProvider) Replace(client driven.GitHubClient, username string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.client = client
	p.username = username
}

// HasClient reports whether a non-nil client is currently held.
func (p *GitHubClientProvider) HasClient() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.client != nil
}
