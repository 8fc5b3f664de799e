package application

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jonmartin721/devwatch-github-sub000/internal/domain/model"
	"github.com/jonmartin721/devwatch-github-sub000/internal/domain/port/driven"
)

// maxWatchedRepos bounds the watched list. Enforced here, not by the store.
const maxWatchedRepos = 50

var (
	// ErrAlreadyWatched indicates the repository is already on the watched list.
	ErrAlreadyWatched = errors.New("repository already watched")

	// ErrNotWatched indicates the repository is not on the watched list.
	ErrNotWatched = errors.New("repository not watched")

	// ErrWatchLimitReached indicates the watched list is at capacity.
	ErrWatchLimitReached = fmt.Errorf("watched repository limit of %d reached", maxWatchedRepos)

	// ErrNoCredentials indicates no GitHub client is configured.
	ErrNoCredentials = errors.New("github credentials not configured")
)

// WatchService manages the watched repository list: adding by name or npm
// package, removal with cascading cleanup, and the mute/pin/snooze flags.
type WatchService struct {
	store    *Store
	provider *GitHubClientProvider
	registry driven.RegistryClient
	now      func() time.Time
}

// NewWatchService creates a WatchService. registry may be nil when npm
// resolution is not wired; AddPackage then fails with ErrNoRepository.
func NewWatchService(store *Store, provider *GitHubClientProvider, registry driven.RegistryClient) *WatchService {
	return &WatchService{
		store:    store,
		provider: provider,
		registry: registry,
		now:      time.Now,
	}
}

// AddRepository validates fullName, fetches its metadata from GitHub, and
// appends it to the watched list with an AddedAt stamp. Duplicates and the
// watch limit are rejected before any network call.
func (s *WatchService) AddRepository(ctx context.Context, fullName string) (*model.RepoRef, error) {
	if !model.ValidateFullName(fullName) {
		return nil, fmt.Errorf("adding %q: %w", fullName, model.ErrInvalidFullName)
	}

	state := s.store.Snapshot()
	candidate := model.RepoRef{FullName: fullName}
	for _, watched := range state.WatchedRepos {
		if watched.Same(candidate) {
			return nil, fmt.Errorf("adding %s: %w", fullName, ErrAlreadyWatched)
		}
	}
	if len(state.WatchedRepos) >= maxWatchedRepos {
		return nil, fmt.Errorf("adding %s: %w", fullName, ErrWatchLimitReached)
	}

	client := s.provider.Get()
	if client == nil {
		return nil, fmt.Errorf("adding %s: %w", fullName, ErrNoCredentials)
	}

	ref, err := client.FetchRepository(ctx, fullName)
	if err != nil {
		return nil, fmt.Errorf("adding %s: %w", fullName, err)
	}
	ref.AddedAt = s.now()

	if err := s.store.AddWatchedRepo(ctx, *ref); err != nil {
		return nil, fmt.Errorf("adding %s: %w", fullName, err)
	}

	slog.Info("repository watched", "repo", ref.FullName)
	return ref, nil
}

// AddPackage resolves an npm package to its GitHub repository and watches it.
func (s *WatchService) AddPackage(ctx context.Context, pkg string) (*model.RepoRef, error) {
	if s.registry == nil {
		return nil, fmt.Errorf("adding package %q: %w", pkg, driven.ErrNoRepository)
	}

	fullName, err := s.registry.ResolveRepository(ctx, pkg)
	if err != nil {
		return nil, fmt.Errorf("adding package %q: %w", pkg, err)
	}

	return s.AddRepository(ctx, fullName)
}

// RemoveRepository drops the repository from the watched list and then cleans
// up everything that referenced it: its activities, the read markers for
// those activities, and its mute/pin/snooze membership. Cleanup is
// best-effort; a cleanup failure is logged but never reverses the removal.
func (s *WatchService) RemoveRepository(ctx context.Context, fullName string) error {
	state := s.store.Snapshot()
	if !slices.ContainsFunc(state.WatchedRepos, func(r model.RepoRef) bool {
		return r.FullName == fullName
	}) {
		return fmt.Errorf("removing %s: %w", fullName, ErrNotWatched)
	}

	if err := s.store.RemoveWatchedRepo(ctx, fullName); err != nil {
		return fmt.Errorf("removing %s: %w", fullName, err)
	}

	if err := s.cleanupRepo(ctx, fullName); err != nil {
		slog.Error("cleanup after repository removal failed", "repo", fullName, "error", err)
	}

	slog.Info("repository unwatched", "repo", fullName)
	return nil
}

// cleanupRepo removes the repository's traces from the feed and the flag lists.
func (s *WatchService) cleanupRepo(ctx context.Context, fullName string) error {
	return s.store.Update(ctx, func(state *State) {
		removedIDs := make(map[string]struct{})
		kept := make([]model.ActivityItem, 0, len(state.AllActivities))
		for _, item := range state.AllActivities {
			if item.Repo == fullName {
				removedIDs[item.ID] = struct{}{}
				continue
			}
			kept = append(kept, item)
		}
		state.AllActivities = kept

		state.ReadItems = slices.DeleteFunc(slices.Clone(state.ReadItems), func(id string) bool {
			_, removed := removedIDs[id]
			return removed
		})

		state.MutedRepos = removeString(state.MutedRepos, fullName)
		state.PinnedRepos = removeString(state.PinnedRepos, fullName)
		state.SnoozedRepos = slices.DeleteFunc(slices.Clone(state.SnoozedRepos), func(sn model.Snooze) bool {
			return sn.Repo == fullName
		})
	})
}

// Mute permanently suppresses notifications for the repository. Idempotent.
func (s *WatchService) Mute(ctx context.Context, fullName string) error {
	return s.store.Update(ctx, func(state *State) {
		if !slices.Contains(state.MutedRepos, fullName) {
			state.MutedRepos = append(slices.Clone(state.MutedRepos), fullName)
		}
	})
}

// Unmute lifts a mute. Idempotent.
func (s *WatchService) Unmute(ctx context.Context, fullName string) error {
	return s.store.Update(ctx, func(state *State) {
		state.MutedRepos = removeString(state.MutedRepos, fullName)
	})
}

// Pin marks the repository as pinned. Idempotent.
func (s *WatchService) Pin(ctx context.Context, fullName string) error {
	return s.store.Update(ctx, func(state *State) {
		if !slices.Contains(state.PinnedRepos, fullName) {
			state.PinnedRepos = append(slices.Clone(state.PinnedRepos), fullName)
		}
	})
}

// Unpin removes a pin. Idempotent.
func (s *WatchService) Unpin(ctx context.Context, fullName string) error {
	return s.store.Update(ctx, func(state *State) {
		state.PinnedRepos = removeString(state.PinnedRepos, fullName)
	})
}

// Snooze suppresses notifications for the repository until now+d, replacing
// any existing snooze for the same repository.
func (s *WatchService) Snooze(ctx context.Context, fullName string, d time.Duration) error {
	if d <= 0 {
		return fmt.Errorf("snoozing %s: duration must be positive", fullName)
	}

	expiresAt := s.now().Add(d)
	return s.store.Update(ctx, func(state *State) {
		snoozed := slices.DeleteFunc(slices.Clone(state.SnoozedRepos), func(sn model.Snooze) bool {
			return sn.Repo == fullName
		})
		state.SnoozedRepos = append(snoozed, model.Snooze{Repo: fullName, ExpiresAt: expiresAt})
	})
}

// Unsnooze lifts a snooze before it expires. Idempotent.
func (s *WatchService) Unsnooze(ctx context.Context, fullName string) error {
	return s.store.Update(ctx, func(state *State) {
		state.SnoozedRepos = slices.DeleteFunc(slices.Clone(state.SnoozedRepos), func(sn model.Snooze) bool {
			return sn.Repo == fullName
		})
	})
}

// PruneSnoozes drops expired snooze entries.
func (s *WatchService) PruneSnoozes(ctx context.Context) error {
	now := s.now()
	return s.store.Update(ctx, func(state *State) {
		state.SnoozedRepos = model.PruneSnoozes(state.SnoozedRepos, now)
	})
}

// watchList is the YAML document shape for import and export.
type watchList struct {
	Repos []string `yaml:"repos"`
}

// ImportWatchList reads a YAML watch list and adds each repository. Entries
// that are already watched or fail to resolve are logged and skipped; the
// import continues. Returns the number of repositories added.
func (s *WatchService) ImportWatchList(ctx context.Context, r io.Reader) (int, error) {
	var list watchList
	if err := yaml.NewDecoder(r).Decode(&list); err != nil {
		return 0, fmt.Errorf("decoding watch list: %w", err)
	}

	var added int
	for _, fullName := range list.Repos {
		if _, err := s.AddRepository(ctx, fullName); err != nil {
			if errors.Is(err, ErrAlreadyWatched) {
				continue
			}
			slog.Warn("skipping watch list entry", "repo", fullName, "error", err)
			continue
		}
		added++
	}

	return added, nil
}

// ExportWatchList writes the watched repository names as a YAML document.
func (s *WatchService) ExportWatchList(w io.Writer) error {
	state := s.store.Snapshot()

	list := watchList{Repos: make([]string, 0, len(state.WatchedRepos))}
	for _, ref := range state.WatchedRepos {
		list.Repos = append(list.Repos, ref.FullName)
	}

	enc := yaml.NewEncoder(w)
	defer enc.Close()
	if err := enc.Encode(list); err != nil {
		return fmt.Errorf("encoding watch list: %w", err)
	}
	return nil
}

func removeString(list []string, s string) []string {
	return slices.DeleteFunc(slices.Clone(list), func(v string) bool { return v == s })
}
