package application

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/jonmartin721/devwatch-github-sub000/internal/domain/model"
	"github.com/jonmartin721/devwatch-github-sub000/internal/domain/port/driven"
)

// fakeSettingStore is an in-memory SettingStore that records calls and can be
// told to fail.
type fakeSettingStore struct {
	mu       sync.Mutex
	data     map[driven.Partition]map[string]json.RawMessage
	getCalls int
	setCalls int
	setErr   error
	getErr   error
}

func newFakeSettingStore() *fakeSettingStore {
	return &fakeSettingStore{
		data: map[driven.Partition]map[string]json.RawMessage{
			driven.PartitionSync:  {},
			driven.PartitionLocal: {},
		},
	}
}

func (f *fakeSettingStore) Get(ctx context.Context, p driven.Partition, key string) (json.RawMessage, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, false, f.getErr
	}
	f.getCalls++
	raw, ok := f.data[p][key]
	return raw, ok, nil
}

func (f *fakeSettingStore) GetMany(ctx context.Context, p driven.Partition, keys []string) (map[string]json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	f.getCalls++
	out := make(map[string]json.RawMessage)
	for _, key := range keys {
		if raw, ok := f.data[p][key]; ok {
			out[key] = raw
		}
	}
	return out, nil
}

func (f *fakeSettingStore) Set(ctx context.Context, p driven.Partition, key string, value json.RawMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setErr != nil {
		return f.setErr
	}
	f.setCalls++
	f.data[p][key] = value
	return nil
}

// seed stores a marshaled value directly, bypassing the store.
func (f *fakeSettingStore) seed(p driven.Partition, key string, v any) {
	raw, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[p][key] = raw
}

// storedKeys returns the keys currently present in a partition.
func (f *fakeSettingStore) storedKeys(p driven.Partition) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	keys := make([]string, 0, len(f.data[p]))
	for k := range f.data[p] {
		keys = append(keys, k)
	}
	return keys
}

// fakeGitHubClient returns canned responses per repository.
type fakeGitHubClient struct {
	mu       sync.Mutex
	repos    map[string]*model.RepoRef
	prs      map[string][]model.ActivityItem
	issues   map[string][]model.ActivityItem
	releases map[string][]model.ActivityItem
	username string
	err      error
	fetched  []string
}

func newFakeGitHubClient() *fakeGitHubClient {
	return &fakeGitHubClient{
		repos:    map[string]*model.RepoRef{},
		prs:      map[string][]model.ActivityItem{},
		issues:   map[string][]model.ActivityItem{},
		releases: map[string][]model.ActivityItem{},
		username: "octocat",
	}
}

func (f *fakeGitHubClient) FetchRepository(ctx context.Context, fullName string) (*model.RepoRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.fetched = append(f.fetched, fullName)
	if ref, ok := f.repos[fullName]; ok {
		copied := *ref
		return &copied, nil
	}
	return nil, fmt.Errorf("repository %s: not found", fullName)
}

// fetchCount reports how many repository metadata fetches have happened.
func (f *fakeGitHubClient) fetchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.fetched)
}

func (f *fakeGitHubClient) FetchPullRequests(ctx context.Context, fullName string, limit int) ([]model.ActivityItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.prs[fullName], nil
}

func (f *fakeGitHubClient) FetchIssues(ctx context.Context, fullName string, limit int) ([]model.ActivityItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.issues[fullName], nil
}

func (f *fakeGitHubClient) FetchReleases(ctx context.Context, fullName string, limit int) ([]model.ActivityItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.releases[fullName], nil
}

func (f *fakeGitHubClient) SearchRepositories(ctx context.Context, query string, limit int) ([]model.RepoRef, error) {
	return nil, nil
}

func (f *fakeGitHubClient) ValidateToken(ctx context.Context) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.username, nil
}

// fakeRegistryClient resolves package names from a fixed map.
type fakeRegistryClient struct {
	packages map[string]string
}

func (f *fakeRegistryClient) ResolveRepository(ctx context.Context, pkg string) (string, error) {
	if fullName, ok := f.packages[pkg]; ok {
		return fullName, nil
	}
	return "", driven.ErrPackageNotFound
}

// activityAt builds a minimal feed item for tests.
func activityAt(id string, t model.ActivityType, repo string, createdAt time.Time) model.ActivityItem {
	return model.ActivityItem{
		ID:        id,
		Type:      t,
		Repo:      repo,
		Title:     "item " + id,
		CreatedAt: createdAt,
	}
}
