// Package model contains the domain types shared by all layers.
package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// ErrInvalidFullName indicates a repository identifier that is not of the
// form "owner/name".
var ErrInvalidFullName = errors.New("invalid repository name: expected owner/name")

// Release describes the latest published release of a repository.
type Release struct {
	Version     string    `json:"version"`
	PublishedAt time.Time `json:"publishedAt"`
}

// RepoRef is the canonical reference to a watched GitHub repository.
// FullName ("owner/name") is the identity key; comparisons are case-sensitive.
// Earlier storage revisions persisted a bare "owner/name" string instead of an
// object — UnmarshalJSON accepts both, so normalization happens exactly once,
// at the storage boundary.
type RepoRef struct {
	FullName      string    `json:"fullName"`
	Owner         string    `json:"owner,omitempty"`
	Name          string    `json:"name,omitempty"`
	Description   string    `json:"description,omitempty"`
	Language      string    `json:"language,omitempty"`
	Stars         int       `json:"stars"`
	Forks         int       `json:"forks"`
	UpdatedAt     time.Time `json:"updatedAt"`
	LatestRelease *Release  `json:"latestRelease,omitempty"`
	AddedAt       time.Time `json:"addedAt"`
}

// ValidateFullName reports whether s is of the form "owner/name": exactly one
// slash separating two non-empty segments.
func ValidateFullName(s string) bool {
	owner, name, ok := strings.Cut(s, "/")
	return ok && owner != "" && name != "" && !strings.Contains(name, "/")
}

// SplitFullName splits "owner/name" into its two components.
func SplitFullName(fullName string) (owner, name string, err error) {
	if !ValidateFullName(fullName) {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidFullName, fullName)
	}
	owner, name, _ = strings.Cut(fullName, "/")
	return owner, name, nil
}

// Normalize returns a copy of r with Owner and Name populated, preferring
// explicit fields over segments derived from FullName.
func (r RepoRef) Normalize() RepoRef {
	if r.Owner != "" && r.Name != "" {
		return r
	}
	owner, name, ok := strings.Cut(r.FullName, "/")
	if !ok {
		return r
	}
	if r.Owner == "" {
		r.Owner = owner
	}
	if r.Name == "" {
		r.Name = name
	}
	return r
}

// Same reports whether two references identify the same repository.
func (r RepoRef) Same(other RepoRef) bool {
	return r.FullName == other.FullName
}

// UnmarshalJSON decodes either the canonical object form or the legacy bare
// "owner/name" string form.
func (r *RepoRef) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, `"`) {
		var fullName string
		if err := json.Unmarshal(data, &fullName); err != nil {
			return err
		}
		*r = RepoRef{FullName: fullName}.Normalize()
		return nil
	}

	type alias RepoRef
	var decoded alias
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}
	*r = RepoRef(decoded).Normalize()
	return nil
}

// DedupeRefs removes duplicate references by FullName. The first occurrence
// wins and is kept as-is; input order is preserved and the input is not mutated.
func DedupeRefs(refs []RepoRef) []RepoRef {
	seen := make(map[string]struct{}, len(refs))
	out := make([]RepoRef, 0, len(refs))
	for _, ref := range refs {
		if _, ok := seen[ref.FullName]; ok {
			continue
		}
		seen[ref.FullName] = struct{}{}
		out = append(out, ref)
	}
	return out
}

// SortRefsByName returns a new slice sorted by FullName using locale-aware
// collation. The input is not mutated.
func SortRefsByName(refs []RepoRef) []RepoRef {
	out := slices.Clone(refs)
	c := collate.New(language.Und)
	slices.SortStableFunc(out, func(a, b RepoRef) int {
		return c.CompareString(a.FullName, b.FullName)
	})
	return out
}
