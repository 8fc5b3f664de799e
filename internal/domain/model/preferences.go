package model

// TypeToggles enables or disables handling per activity type. Used both for
// the feed type filters and for the per-type notification preferences.
type TypeToggles struct {
	PRs      bool `json:"prs"`
	Issues   bool `json:"issues"`
	Releases bool `json:"releases"`
}

// Enabled reports whether the toggle for the given activity type is on.
func (t TypeToggles) Enabled(kind ActivityType) bool {
	switch kind {
	case ActivityTypePR:
		return t.PRs
	case ActivityTypeIssue:
		return t.Issues
	case ActivityTypeRelease:
		return t.Releases
	}
	return false
}

// DefaultToggles returns the default toggle set: everything enabled.
func DefaultToggles() TypeToggles {
	return TypeToggles{PRs: true, Issues: true, Releases: true}
}

// Theme is the UI color scheme preference.
type Theme string

const (
	ThemeLight  Theme = "light"
	ThemeDark   Theme = "dark"
	ThemeSystem Theme = "system"
)

// Valid reports whether t is a known theme.
func (t Theme) Valid() bool {
	switch t {
	case ThemeLight, ThemeDark, ThemeSystem:
		return true
	}
	return false
}

// FilterAll is the feed type filter value that shows every activity type.
const FilterAll = "all"
