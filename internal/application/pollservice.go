package application

import (
	"context"
	"log/slog"
	"slices"
	"time"

	"github.com/jonmartin721/devwatch-github-sub000/internal/domain/model"
	"github.com/jonmartin721/devwatch-github-sub000/internal/domain/port/driven"
)

// fetchLimit is how many items of each type are requested per repository per
// cycle. New items are deduplicated against the feed, so a modest window is
// enough once polling is steady.
const fetchLimit = 20

// PollService periodically fetches activity for every watched repository and
// feeds new items into the store.
type PollService struct {
	store      *Store
	provider   *GitHubClientProvider
	interval   time.Duration
	now        func() time.Time
	refreshCh  chan chan error
	intervalCh chan struct{}
}

// NewPollService creates a PollService. The stored checkInterval preference
// governs the polling cadence; interval is the fallback used when the
// preference is unset.
func NewPollService(store *Store, provider *GitHubClientProvider, interval time.Duration) *PollService {
	return &PollService{
		store:      store,
		provider:   provider,
		interval:   interval,
		now:        time.Now,
		refreshCh:  make(chan chan error),
		intervalCh: make(chan struct{}, 1),
	}
}

// tickInterval returns the effective poll interval: the checkInterval
// preference (minutes) when positive, otherwise the constructed fallback.
func (s *PollService) tickInterval() time.Duration {
	if minutes := s.store.Snapshot().CheckInterval; minutes > 0 {
		return time.Duration(minutes) * time.Minute
	}
	return s.interval
}

// Start begins the polling loop. It runs an immediate poll, then polls on the
// effective interval, and services manual refresh requests in between. A
// checkInterval preference change resets the ticker mid-flight. Start blocks
// until the context is canceled.
func (s *PollService) Start(ctx context.Context) {
	unsubscribe := s.store.Subscribe(func(State) {
		select {
		case s.intervalCh <- struct{}{}:
		default:
		}
	}, "checkInterval")
	defer unsubscribe()

	if err := s.pollAll(ctx); err != nil {
		slog.Error("initial poll failed", "error", err)
	}

	ticker := time.NewTicker(s.tickInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("poll service stopped")
			return
		case <-ticker.C:
			if err := s.pollAll(ctx); err != nil {
				slog.Error("poll cycle failed", "error", err)
			}
		case <-s.intervalCh:
			interval := s.tickInterval()
			ticker.Reset(interval)
			slog.Info("poll interval updated", "interval", interval)
		case done := <-s.refreshCh:
			done <- s.pollAll(ctx)
		}
	}
}

// Refresh triggers a poll cycle immediately, bypassing the interval. It
// blocks until the cycle completes or the context is canceled.
func (s *PollService) Refresh(ctx context.Context) error {
	done := make(chan error, 1)

	select {
	case s.refreshCh <- done:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// pollAll runs one poll cycle: prune expired snoozes, then fetch activity for
// every watched repository that is not muted or snoozed. Per-repo failures
// are logged and the cycle continues.
func (s *PollService) pollAll(ctx context.Context) error {
	client := s.provider.Get()
	if client == nil {
		slog.Debug("skipping poll, no github credentials configured")
		return nil
	}

	start := s.now()

	if err := s.store.Update(ctx, func(state *State) {
		state.SnoozedRepos = model.PruneSnoozes(state.SnoozedRepos, start)
	}); err != nil {
		return err
	}

	state := s.store.Snapshot()
	excluded := model.ComputeExclusions(state.MutedRepos, state.SnoozedRepos, start)

	var polled, skipped, pollErrors int
	for _, repo := range state.WatchedRepos {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if _, ok := excluded[repo.FullName]; ok {
			skipped++
			continue
		}

		polled++
		if err := s.pollRepo(ctx, client, repo, state.Notifications); err != nil {
			slog.Error("repo poll failed", "repo", repo.FullName, "error", err)
			pollErrors++
		}
	}

	slog.Info("poll cycle complete",
		"polled", polled,
		"skipped", skipped,
		"errors", pollErrors,
		"duration", time.Since(start).Round(time.Millisecond),
	)

	return nil
}

// pollRepo fetches the enabled activity types for one repository, appends
// items not already in the feed, and refreshes the repository's metadata.
func (s *PollService) pollRepo(ctx context.Context, client driven.GitHubClient, repo model.RepoRef, toggles model.TypeToggles) error {
	var fetched []model.ActivityItem

	if toggles.PRs {
		prs, err := client.FetchPullRequests(ctx, repo.FullName, fetchLimit)
		if err != nil {
			return err
		}
		fetched = append(fetched, prs...)
	}

	if toggles.Issues {
		issues, err := client.FetchIssues(ctx, repo.FullName, fetchLimit)
		if err != nil {
			return err
		}
		fetched = append(fetched, issues...)
	}

	if toggles.Releases {
		releases, err := client.FetchReleases(ctx, repo.FullName, fetchLimit)
		if err != nil {
			return err
		}
		fetched = append(fetched, releases...)
	}

	// The three listings are each newest-first; the merged batch must be too,
	// since the feed relies on insertion order.
	slices.SortStableFunc(fetched, func(a, b model.ActivityItem) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})

	state := s.store.Snapshot()
	existing := make(map[string]struct{}, len(state.AllActivities))
	for _, item := range state.AllActivities {
		existing[item.ID] = struct{}{}
	}

	fresh := make([]model.ActivityItem, 0, len(fetched))
	for _, item := range fetched {
		if _, ok := existing[item.ID]; !ok {
			fresh = append(fresh, item)
		}
	}

	if err := s.store.AddActivities(ctx, fresh); err != nil {
		return err
	}

	if err := s.refreshMetadata(ctx, client, repo); err != nil {
		slog.Warn("metadata refresh failed", "repo", repo.FullName, "error", err)
	}

	slog.Debug("repo polled", "repo", repo.FullName, "fetched", len(fetched), "new", len(fresh))
	return nil
}

// refreshMetadata re-fetches the repository record and updates the watched
// entry, preserving the original AddedAt stamp.
func (s *PollService) refreshMetadata(ctx context.Context, client driven.GitHubClient, repo model.RepoRef) error {
	updated, err := client.FetchRepository(ctx, repo.FullName)
	if err != nil {
		return err
	}

	return s.store.Update(ctx, func(state *State) {
		watched := slices.Clone(state.WatchedRepos)
		for i, existing := range watched {
			if existing.Same(repo) {
				updated.AddedAt = existing.AddedAt
				watched[i] = *updated
				break
			}
		}
		state.WatchedRepos = watched
	})
}
