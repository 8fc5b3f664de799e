package application

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/jonmartin721/devwatch-github-sub000/internal/domain/model"
	"github.com/jonmartin721/devwatch-github-sub000/internal/domain/port/driven"
)

const defaultActivityCap = 2000

// Stats summarizes the feed for the dashboard header.
type Stats struct {
	TotalActivities     int        `json:"totalActivities"`
	ReadActivities      int        `json:"readActivities"`
	UnreadActivities    int        `json:"unreadActivities"`
	WatchedRepositories int        `json:"watchedRepositories"`
	LastActivity        *time.Time `json:"lastActivity"`
}

// Store is the single source of truth for domain and view state. All reads
// and writes go through it; persisted fields are routed to the setting store
// per the schema, and subscribers are notified after each committed update.
type Store struct {
	settings    driven.SettingStore
	now         func() time.Time
	activityCap int

	mu          sync.RWMutex
	initialized bool
	state       State
	subscribers []subscription
	nextSubID   int
}

type subscription struct {
	id     int
	fields []string
	fn     func(State)
}

// StoreOption configures a Store at construction time.
type StoreOption func(*Store)

// WithActivityCap overrides the maximum number of activities retained by
// AddActivities.
func WithActivityCap(n int) StoreOption {
	return func(s *Store) { s.activityCap = n }
}

// WithClock overrides the store's time source. Intended for tests.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) { s.now = now }
}

// NewStore creates an uninitialized Store backed by the given setting store.
// Initialize must be called before the store serves meaningful state.
func NewStore(settings driven.SettingStore, opts ...StoreOption) *Store {
	s := &Store{
		settings:    settings,
		now:         time.Now,
		activityCap: defaultActivityCap,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Initialize loads every persisted field from both partitions, substituting
// defaults for absent keys. It is idempotent: after the first successful call
// subsequent calls are no-ops. Storage failures propagate and leave the store
// uninitialized. A stored value that no longer decodes is discarded in favor
// of the field default, so one corrupt key cannot wedge startup.
func (s *Store) Initialize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.initialized {
		return nil
	}

	state := defaultState()

	for _, partition := range []driven.Partition{driven.PartitionSync, driven.PartitionLocal} {
		raws, err := s.settings.GetMany(ctx, partition, partitionKeys(partition))
		if err != nil {
			return fmt.Errorf("loading %s settings: %w", partition, err)
		}

		for _, field := range schema {
			if field.partition != partition {
				continue
			}
			raw, ok := raws[field.storageKey]
			if !ok {
				continue
			}

			// Decode into a scratch copy so a failed unmarshal cannot
			// leave the field half-written.
			scratch := defaultState()
			if err := json.Unmarshal(raw, field.ptr(&scratch)); err != nil {
				slog.Warn("discarding undecodable setting",
					"partition", partition,
					"key", field.storageKey,
					"error", err,
				)
				continue
			}
			field.copyValue(&state, &scratch)
		}
	}

	s.state = state
	s.initialized = true
	return nil
}

// Initialized reports whether Initialize has completed successfully.
func (s *Store) Initialized() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.initialized
}

// Snapshot returns a copy of the current state. Before initialization it
// returns the zero State. Slice fields share backing arrays with the store;
// callers must treat them as read-only.
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.initialized {
		return State{}
	}
	return s.state
}

// UpdateOption adjusts how a single Update call behaves.
type UpdateOption func(*updateConfig)

type updateConfig struct {
	persist bool
	notify  bool
}

// WithoutPersist commits the update in memory only, skipping storage writes.
// Used for transient view-state changes.
func WithoutPersist() UpdateOption {
	return func(c *updateConfig) { c.persist = false }
}

// WithoutNotify suppresses subscriber notification for this update. Used for
// silent internal bookkeeping.
func WithoutNotify() UpdateOption {
	return func(c *updateConfig) { c.notify = false }
}

// Update applies fn to the current state under the store lock, giving it a
// consistent prior snapshot to derive the next state from. Changed persisted
// fields are then written to their partitions while the lock is still held,
// so storage write order matches commit order; a storage failure propagates
// to the caller and suppresses notification, but the in-memory commit stands.
// Updaters must replace slice fields rather than mutate them in place, since
// change detection compares the previous and next snapshots. Before
// initialization Update is a no-op.
func (s *Store) Update(ctx context.Context, fn func(*State), opts ...UpdateOption) error {
	cfg := updateConfig{persist: true, notify: true}
	for _, opt := range opts {
		opt(&cfg)
	}

	s.mu.Lock()

	if !s.initialized {
		s.mu.Unlock()
		return nil
	}

	prev := s.state
	next := prev
	fn(&next)
	s.state = next

	var changed []string
	for _, field := range schema {
		if field.changed(&prev, &next) {
			changed = append(changed, field.name)
		}
	}

	subs := slices.Clone(s.subscribers)

	var persistErr error
	if cfg.persist {
		persistErr = s.persistFields(ctx, &next, changed)
	}
	s.mu.Unlock()

	if persistErr != nil {
		return persistErr
	}

	if cfg.notify {
		notifySubscribers(subs, next, changed)
	}

	return nil
}

// persistFields writes each changed persisted field to its partition.
func (s *Store) persistFields(ctx context.Context, state *State, changed []string) error {
	for _, name := range changed {
		field := schemaByName[name]
		if !field.persisted() {
			continue
		}

		raw, err := json.Marshal(field.ptr(state))
		if err != nil {
			return fmt.Errorf("encoding %s: %w", field.name, err)
		}
		if err := s.settings.Set(ctx, field.partition, field.storageKey, raw); err != nil {
			return fmt.Errorf("persisting %s: %w", field.name, err)
		}
	}
	return nil
}

// notifySubscribers invokes each subscriber whose watched fields overlap the
// changed set (selector-less subscribers always fire). A panic in one
// subscriber is logged and must not starve the rest.
func notifySubscribers(subs []subscription, state State, changed []string) {
	for _, sub := range subs {
		if len(sub.fields) > 0 && !overlaps(sub.fields, changed) {
			continue
		}

		func() {
			defer func() {
				if r := recover(); r != nil {
					slog.Error("store subscriber panicked", "panic", r)
				}
			}()
			sub.fn(state)
		}()
	}
}

func overlaps(watched, changed []string) bool {
	for _, w := range watched {
		if slices.Contains(changed, w) {
			return true
		}
	}
	return false
}

// Subscribe registers fn to run after every notifying update. If fields are
// given, fn runs only when at least one of them changed. The returned
// function removes the subscription; calling it more than once is harmless.
func (s *Store) Subscribe(fn func(State), fields ...string) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextSubID++
	id := s.nextSubID
	s.subscribers = append(s.subscribers, subscription{id: id, fields: fields, fn: fn})

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.subscribers = slices.DeleteFunc(s.subscribers, func(sub subscription) bool {
			return sub.id == id
		})
	}
}

// Reset restores the named fields to their defaults, or every field when none
// are named. Unknown field names are rejected before any state changes.
func (s *Store) Reset(ctx context.Context, fields ...string) error {
	specs := schema
	if len(fields) > 0 {
		specs = make([]fieldSpec, 0, len(fields))
		for _, name := range fields {
			field, ok := schemaByName[name]
			if !ok {
				return fmt.Errorf("reset: unknown field %q", name)
			}
			specs = append(specs, field)
		}
	}

	defaults := defaultState()
	return s.Update(ctx, func(state *State) {
		for _, field := range specs {
			field.copyValue(state, &defaults)
		}
	})
}

// AddActivities prepends items to the feed (input is assumed newest-first)
// and truncates the combined list at the store's activity cap.
func (s *Store) AddActivities(ctx context.Context, items []model.ActivityItem) error {
	if len(items) == 0 {
		return nil
	}

	return s.Update(ctx, func(state *State) {
		merged := make([]model.ActivityItem, 0, len(items)+len(state.AllActivities))
		merged = append(merged, items...)
		merged = append(merged, state.AllActivities...)
		if len(merged) > s.activityCap {
			merged = merged[:s.activityCap]
		}
		state.AllActivities = merged
	})
}

// MarkAsRead unions the given activity IDs into the read set.
func (s *Store) MarkAsRead(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}

	return s.Update(ctx, func(state *State) {
		read := slices.Clone(state.ReadItems)
		for _, id := range ids {
			if !slices.Contains(read, id) {
				read = append(read, id)
			}
		}
		state.ReadItems = read
	})
}

// AddWatchedRepo appends ref to the watched list. Adding a repository that is
// already watched is a no-op.
func (s *Store) AddWatchedRepo(ctx context.Context, ref model.RepoRef) error {
	return s.Update(ctx, func(state *State) {
		for _, watched := range state.WatchedRepos {
			if watched.Same(ref) {
				return
			}
		}
		state.WatchedRepos = append(slices.Clone(state.WatchedRepos), ref)
	})
}

// RemoveWatchedRepo removes the repository with the given full name from the
// watched list. Removing an absent repository is a no-op.
func (s *Store) RemoveWatchedRepo(ctx context.Context, fullName string) error {
	return s.Update(ctx, func(state *State) {
		state.WatchedRepos = slices.DeleteFunc(slices.Clone(state.WatchedRepos), func(r model.RepoRef) bool {
			return r.FullName == fullName
		})
	})
}

// FilteredActivities derives the visible feed from the current state by
// composing, in order: the type filter, the read/archive split (the archive
// view shows exactly the read items; the default view shows the unread rest),
// the optional expiry-hours cutoff, and a case-insensitive substring search
// over title and repository name. Input order is preserved, never re-sorted.
func (s *Store) FilteredActivities() []model.ActivityItem {
	s.mu.RLock()
	initialized := s.initialized
	state := s.state
	s.mu.RUnlock()

	if !initialized {
		return nil
	}

	read := make(map[string]struct{}, len(state.ReadItems))
	for _, id := range state.ReadItems {
		read[id] = struct{}{}
	}

	var cutoff time.Time
	if state.ItemExpiryHours > 0 {
		cutoff = s.now().Add(-time.Duration(state.ItemExpiryHours) * time.Hour)
	}

	query := strings.ToLower(state.SearchQuery)

	out := make([]model.ActivityItem, 0, len(state.AllActivities))
	for _, item := range state.AllActivities {
		if state.CurrentFilter != model.FilterAll && string(item.Type) != state.CurrentFilter {
			continue
		}

		_, isRead := read[item.ID]
		if isRead != state.ShowArchive {
			continue
		}

		if !cutoff.IsZero() && item.CreatedAt.Before(cutoff) {
			continue
		}

		if query != "" &&
			!strings.Contains(strings.ToLower(item.Title), query) &&
			!strings.Contains(strings.ToLower(item.Repo), query) {
			continue
		}

		out = append(out, item)
	}

	return out
}

// GetStats summarizes the feed. LastActivity is the creation time of the
// first (newest) activity, nil when the feed is empty. Unread is derived by
// set membership against the read markers, so orphaned markers left by
// removed repositories do not skew the count.
func (s *Store) GetStats() Stats {
	s.mu.RLock()
	initialized := s.initialized
	state := s.state
	s.mu.RUnlock()

	if !initialized {
		return Stats{}
	}

	read := make(map[string]struct{}, len(state.ReadItems))
	for _, id := range state.ReadItems {
		read[id] = struct{}{}
	}

	var readCount int
	for _, item := range state.AllActivities {
		if _, ok := read[item.ID]; ok {
			readCount++
		}
	}

	stats := Stats{
		TotalActivities:     len(state.AllActivities),
		ReadActivities:      readCount,
		UnreadActivities:    len(state.AllActivities) - readCount,
		WatchedRepositories: len(state.WatchedRepos),
	}

	if len(state.AllActivities) > 0 {
		last := state.AllActivities[0].CreatedAt
		stats.LastActivity = &last
	}

	return stats
}
