package model

import (
	"fmt"
	"time"
)

// ActivityType classifies an activity item.
type ActivityType string

const (
	ActivityTypePR      ActivityType = "pr"
	ActivityTypeIssue   ActivityType = "issue"
	ActivityTypeRelease ActivityType = "release"
)

// Valid reports whether t is a known activity type.
func (t ActivityType) Valid() bool {
	switch t {
	case ActivityTypePR, ActivityTypeIssue, ActivityTypeRelease:
		return true
	}
	return false
}

// ActivityItem is a single pull request, issue, or release event surfaced in
// the feed.
type ActivityItem struct {
	ID           string       `json:"id"`
	Type         ActivityType `json:"type"`
	Repo         string       `json:"repo"`
	Title        string       `json:"title"`
	URL          string       `json:"url"`
	CreatedAt    time.Time    `json:"createdAt"`
	Author       string       `json:"author"`
	AuthorAvatar string       `json:"authorAvatar,omitempty"`
}

// ActivityID composes a globally unique activity identifier. The repository
// name is part of the key so that numbers colliding across repositories
// (issue #1 in two repos) still produce distinct IDs.
func ActivityID(t ActivityType, repo string, uid int64) string {
	return fmt.Sprintf("%s-%s-%d", t, repo, uid)
}
