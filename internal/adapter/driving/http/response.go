package httphandler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/jonmartin721/devwatch-github-sub000/internal/domain/model"
)

// writeJSON marshals v to JSON and writes it to the response with the given
// status code. If marshaling fails, a 500 error is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// errorResponse is the standard error response body.
type errorResponse struct {
	Error string `json:"error"`
}

// AddRepoRequest is the JSON body for the add repository endpoint. Exactly
// one of FullName or Package must be set; Package is resolved through the npm
// registry.
type AddRepoRequest struct {
	FullName string `json:"fullName"`
	Package  string `json:"package"`
}

// MarkReadRequest is the JSON body for the mark-as-read endpoint.
type MarkReadRequest struct {
	IDs []string `json:"ids"`
}

// SnoozeRequest is the JSON body for the snooze endpoint.
type SnoozeRequest struct {
	Hours float64 `json:"hours"`
}

// ViewRequest is the JSON body for view-state updates. Absent fields are left
// unchanged.
type ViewRequest struct {
	CurrentFilter   *string `json:"currentFilter"`
	SearchQuery     *string `json:"searchQuery"`
	ShowArchive     *bool   `json:"showArchive"`
	ItemExpiryHours *int    `json:"itemExpiryHours"`
}

// PreferencesResponse is the JSON representation of the persisted preferences.
type PreferencesResponse struct {
	Filters       model.TypeToggles `json:"filters"`
	Notifications model.TypeToggles `json:"notifications"`
	CheckInterval int               `json:"checkInterval"`
	Theme         model.Theme       `json:"theme"`
}

// PreferencesRequest is the JSON body for preference updates. Absent fields
// are left unchanged.
type PreferencesRequest struct {
	Filters       *model.TypeToggles `json:"filters"`
	Notifications *model.TypeToggles `json:"notifications"`
	CheckInterval *int               `json:"checkInterval"`
	Theme         *model.Theme       `json:"theme"`
}

// CredentialRequest is the JSON body for setting the GitHub token.
type CredentialRequest struct {
	Token string `json:"token"`
}

// CredentialResponse reports the outcome of a credential update.
type CredentialResponse struct {
	Username string `json:"username"`
}

// RepoResponse is the JSON representation of a watched repository, including
// its mute/pin/snooze flags. The repository fields are flattened by hand:
// embedding model.RepoRef would promote its legacy-aware UnmarshalJSON and
// drop the flag fields on decode.
type RepoResponse struct {
	FullName      string         `json:"fullName"`
	Owner         string         `json:"owner,omitempty"`
	Name          string         `json:"name,omitempty"`
	Description   string         `json:"description,omitempty"`
	Language      string         `json:"language,omitempty"`
	Stars         int            `json:"stars"`
	Forks         int            `json:"forks"`
	UpdatedAt     time.Time      `json:"updatedAt"`
	LatestRelease *model.Release `json:"latestRelease,omitempty"`
	AddedAt       time.Time      `json:"addedAt"`

	Muted        bool       `json:"muted"`
	Pinned       bool       `json:"pinned"`
	SnoozedUntil *time.Time `json:"snoozedUntil,omitempty"`
}

// newRepoResponse flattens a repository reference into the response shape.
func newRepoResponse(ref model.RepoRef) RepoResponse {
	return RepoResponse{
		FullName:      ref.FullName,
		Owner:         ref.Owner,
		Name:          ref.Name,
		Description:   ref.Description,
		Language:      ref.Language,
		Stars:         ref.Stars,
		Forks:         ref.Forks,
		UpdatedAt:     ref.UpdatedAt,
		LatestRelease: ref.LatestRelease,
		AddedAt:       ref.AddedAt,
	}
}

// HealthResponse is the JSON representation of the health check endpoint.
type HealthResponse struct {
	Status string `json:"status"`
	Time   string `json:"time"`
}
