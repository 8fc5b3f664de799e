// Package application contains the central state store and the use-case
// services built on top of it.
package application

import (
	"reflect"

	"github.com/jonmartin721/devwatch-github-sub000/internal/domain/model"
	"github.com/jonmartin721/devwatch-github-sub000/internal/domain/port/driven"
)

// State is the full store snapshot. Persisted fields are routed individually
// to a storage partition per the schema below; the remaining fields are
// per-process view state and never written to storage.
type State struct {
	// Persisted, sync partition.
	WatchedRepos  []model.RepoRef   `json:"watchedRepos"`
	MutedRepos    []string          `json:"mutedRepos"`
	PinnedRepos   []string          `json:"pinnedRepos"`
	SnoozedRepos  []model.Snooze    `json:"snoozedRepos"`
	Filters       model.TypeToggles `json:"filters"`
	Notifications model.TypeToggles `json:"notifications"`
	CheckInterval int               `json:"checkInterval"` // minutes
	Theme         model.Theme       `json:"theme"`

	// Persisted, local partition.
	AllActivities []model.ActivityItem `json:"allActivities"`
	ReadItems     []string             `json:"readItems"`

	// Transient view state.
	CurrentFilter   string `json:"currentFilter"`
	SearchQuery     string `json:"searchQuery"`
	ShowArchive     bool   `json:"showArchive"`
	ItemExpiryHours int    `json:"itemExpiryHours"` // 0 disables expiry filtering
	IsLoading       bool   `json:"isLoading"`
	LastError       string `json:"lastError"`
}

// defaultState returns the state every field is restored to when nothing is
// persisted yet.
func defaultState() State {
	return State{
		WatchedRepos:  []model.RepoRef{},
		MutedRepos:    []string{},
		PinnedRepos:   []string{},
		SnoozedRepos:  []model.Snooze{},
		Filters:       model.DefaultToggles(),
		Notifications: model.DefaultToggles(),
		CheckInterval: 5,
		Theme:         model.ThemeSystem,
		AllActivities: []model.ActivityItem{},
		ReadItems:     []string{},
		CurrentFilter: model.FilterAll,
	}
}

// fieldSpec describes one State field: its public name, where it persists
// (empty partition means transient), the storage key it persists under, and a
// pointer accessor used for loading, saving, change detection, and reset.
type fieldSpec struct {
	name       string
	partition  driven.Partition
	storageKey string
	ptr        func(s *State) any
}

func (f fieldSpec) persisted() bool {
	return f.partition != ""
}

// changed reports whether the field's value differs between two snapshots.
func (f fieldSpec) changed(prev, next *State) bool {
	return !reflect.DeepEqual(f.ptr(prev), f.ptr(next))
}

// copyValue copies the field's value from src into dst.
func (f fieldSpec) copyValue(dst, src *State) {
	reflect.ValueOf(f.ptr(dst)).Elem().Set(reflect.ValueOf(f.ptr(src)).Elem())
}

// schema is the static classification table routing each field to its
// partition. AllActivities keeps its historical storage key "activities".
var schema = []fieldSpec{
	{name: "watchedRepos", partition: driven.PartitionSync, storageKey: "watchedRepos", ptr: func(s *State) any { return &s.WatchedRepos }},
	{name: "mutedRepos", partition: driven.PartitionSync, storageKey: "mutedRepos", ptr: func(s *State) any { return &s.MutedRepos }},
	{name: "pinnedRepos", partition: driven.PartitionSync, storageKey: "pinnedRepos", ptr: func(s *State) any { return &s.PinnedRepos }},
	{name: "snoozedRepos", partition: driven.PartitionSync, storageKey: "snoozedRepos", ptr: func(s *State) any { return &s.SnoozedRepos }},
	{name: "filters", partition: driven.PartitionSync, storageKey: "filters", ptr: func(s *State) any { return &s.Filters }},
	{name: "notifications", partition: driven.PartitionSync, storageKey: "notifications", ptr: func(s *State) any { return &s.Notifications }},
	{name: "checkInterval", partition: driven.PartitionSync, storageKey: "checkInterval", ptr: func(s *State) any { return &s.CheckInterval }},
	{name: "theme", partition: driven.PartitionSync, storageKey: "theme", ptr: func(s *State) any { return &s.Theme }},
	{name: "allActivities", partition: driven.PartitionLocal, storageKey: "activities", ptr: func(s *State) any { return &s.AllActivities }},
	{name: "readItems", partition: driven.PartitionLocal, storageKey: "readItems", ptr: func(s *State) any { return &s.ReadItems }},
	{name: "currentFilter", ptr: func(s *State) any { return &s.CurrentFilter }},
	{name: "searchQuery", ptr: func(s *State) any { return &s.SearchQuery }},
	{name: "showArchive", ptr: func(s *State) any { return &s.ShowArchive }},
	{name: "itemExpiryHours", ptr: func(s *State) any { return &s.ItemExpiryHours }},
	{name: "isLoading", ptr: func(s *State) any { return &s.IsLoading }},
	{name: "lastError", ptr: func(s *State) any { return &s.LastError }},
}

var schemaByName = func() map[string]fieldSpec {
	m := make(map[string]fieldSpec, len(schema))
	for _, f := range schema {
		m[f.name] = f
	}
	return m
}()

// partitionKeys returns the storage keys of every persisted field in the
// given partition.
func partitionKeys(p driven.Partition) []string {
	var keys []string
	for _, f := range schema {
		if f.partition == p {
			keys = append(keys, f.storageKey)
		}
	}
	return keys
}
