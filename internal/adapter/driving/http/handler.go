// Package httphandler is the HTTP driving adapter serving the REST API used
// by the popup and options surfaces.
package httphandler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/jonmartin721/devwatch-github-sub000/internal/adapter/driven/github"
	"github.com/jonmartin721/devwatch-github-sub000/internal/application"
	"github.com/jonmartin721/devwatch-github-sub000/internal/domain/model"
	"github.com/jonmartin721/devwatch-github-sub000/internal/domain/port/driven"
)

// Handler is the HTTP driving adapter.
type Handler struct {
	store       *application.Store
	watchSvc    *application.WatchService
	pollSvc     *application.PollService
	provider    *application.GitHubClientProvider
	credentials driven.CredentialStore
	newClient   func(token string) driven.GitHubClient
	logger      *slog.Logger
}

// NewHandler creates a Handler with all required dependencies. newClient
// builds a GitHub client for a freshly validated token; it is injected so
// tests can substitute a fake.
func NewHandler(
	store *application.Store,
	watchSvc *application.WatchService,
	pollSvc *application.PollService,
	provider *application.GitHubClientProvider,
	credentials driven.CredentialStore,
	newClient func(token string) driven.GitHubClient,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		store:       store,
		watchSvc:    watchSvc,
		pollSvc:     pollSvc,
		provider:    provider,
		credentials: credentials,
		newClient:   newClient,
		logger:      logger,
	}
}

// NewServeMux creates an http.Handler with all routes registered and wrapped
// with logging and recovery middleware.
func NewServeMux(h *Handler, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/activities", h.ListActivities)
	mux.HandleFunc("POST /api/v1/activities/read", h.MarkRead)
	mux.HandleFunc("GET /api/v1/stats", h.GetStats)
	mux.HandleFunc("PUT /api/v1/view", h.UpdateView)

	mux.HandleFunc("GET /api/v1/repos", h.ListRepos)
	mux.HandleFunc("POST /api/v1/repos", h.AddRepo)
	mux.HandleFunc("DELETE /api/v1/repos/{owner}/{repo}", h.RemoveRepo)
	mux.HandleFunc("POST /api/v1/repos/{owner}/{repo}/mute", h.repoAction(h.watchSvc.Mute))
	mux.HandleFunc("POST /api/v1/repos/{owner}/{repo}/unmute", h.repoAction(h.watchSvc.Unmute))
	mux.HandleFunc("POST /api/v1/repos/{owner}/{repo}/pin", h.repoAction(h.watchSvc.Pin))
	mux.HandleFunc("POST /api/v1/repos/{owner}/{repo}/unpin", h.repoAction(h.watchSvc.Unpin))
	mux.HandleFunc("POST /api/v1/repos/{owner}/{repo}/snooze", h.SnoozeRepo)
	mux.HandleFunc("POST /api/v1/repos/{owner}/{repo}/unsnooze", h.repoAction(h.watchSvc.Unsnooze))
	mux.HandleFunc("GET /api/v1/repos/export", h.ExportRepos)
	mux.HandleFunc("POST /api/v1/repos/import", h.ImportRepos)

	mux.HandleFunc("GET /api/v1/search", h.SearchRepos)
	mux.HandleFunc("GET /api/v1/preferences", h.GetPreferences)
	mux.HandleFunc("PUT /api/v1/preferences", h.UpdatePreferences)
	mux.HandleFunc("PUT /api/v1/credentials/github", h.SetCredential)
	mux.HandleFunc("DELETE /api/v1/credentials/github", h.ClearCredential)
	mux.HandleFunc("POST /api/v1/refresh", h.Refresh)
	mux.HandleFunc("GET /api/v1/health", h.Health)

	// Recovery innermost so panics are caught before logging.
	wrapped := recoveryMiddleware(logger, mux)
	wrapped = loggingMiddleware(logger, wrapped)

	return wrapped
}

// ListActivities returns the feed as filtered by the current view state.
func (h *Handler) ListActivities(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.store.FilteredActivities())
}

// MarkRead unions the given activity IDs into the read set.
func (h *Handler) MarkRead(w http.ResponseWriter, r *http.Request) {
	var req MarkReadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.store.MarkAsRead(r.Context(), req.IDs...); err != nil {
		h.logger.Error("mark as read failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetStats returns feed summary statistics.
func (h *Handler) GetStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.store.GetStats())
}

// UpdateView applies a partial view-state update. View fields are transient,
// so this never touches storage.
func (h *Handler) UpdateView(w http.ResponseWriter, r *http.Request) {
	var req ViewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.CurrentFilter != nil {
		filter := *req.CurrentFilter
		if filter != model.FilterAll && !model.ActivityType(filter).Valid() {
			writeError(w, http.StatusBadRequest, "unknown activity filter")
			return
		}
	}
	if req.ItemExpiryHours != nil && *req.ItemExpiryHours < 0 {
		writeError(w, http.StatusBadRequest, "itemExpiryHours must not be negative")
		return
	}

	err := h.store.Update(r.Context(), func(state *application.State) {
		if req.CurrentFilter != nil {
			state.CurrentFilter = *req.CurrentFilter
		}
		if req.SearchQuery != nil {
			state.SearchQuery = *req.SearchQuery
		}
		if req.ShowArchive != nil {
			state.ShowArchive = *req.ShowArchive
		}
		if req.ItemExpiryHours != nil {
			state.ItemExpiryHours = *req.ItemExpiryHours
		}
	})
	if err != nil {
		h.logger.Error("view update failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListRepos returns the watched repositories with their mute/pin/snooze flags.
func (h *Handler) ListRepos(w http.ResponseWriter, _ *http.Request) {
	state := h.store.Snapshot()

	muted := make(map[string]struct{}, len(state.MutedRepos))
	for _, name := range state.MutedRepos {
		muted[name] = struct{}{}
	}
	pinned := make(map[string]struct{}, len(state.PinnedRepos))
	for _, name := range state.PinnedRepos {
		pinned[name] = struct{}{}
	}
	snoozedUntil := make(map[string]time.Time, len(state.SnoozedRepos))
	for _, sn := range state.SnoozedRepos {
		snoozedUntil[sn.Repo] = sn.ExpiresAt
	}

	resp := make([]RepoResponse, 0, len(state.WatchedRepos))
	for _, ref := range state.WatchedRepos {
		repo := newRepoResponse(ref)
		_, repo.Muted = muted[ref.FullName]
		_, repo.Pinned = pinned[ref.FullName]
		if until, ok := snoozedUntil[ref.FullName]; ok {
			repo.SnoozedUntil = &until
		}
		resp = append(resp, repo)
	}

	writeJSON(w, http.StatusOK, resp)
}

// AddRepo watches a repository by full name, or by npm package name when the
// package field is set instead.
func (h *Handler) AddRepo(w http.ResponseWriter, r *http.Request) {
	var req AddRepoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var (
		ref *model.RepoRef
		err error
	)
	switch {
	case req.FullName != "" && req.Package != "":
		writeError(w, http.StatusBadRequest, "set either fullName or package, not both")
		return
	case req.Package != "":
		ref, err = h.watchSvc.AddPackage(r.Context(), req.Package)
	case req.FullName != "":
		ref, err = h.watchSvc.AddRepository(r.Context(), req.FullName)
	default:
		writeError(w, http.StatusBadRequest, "fullName or package is required")
		return
	}
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, ref)
}

// RemoveRepo unwatches a repository.
func (h *Handler) RemoveRepo(w http.ResponseWriter, r *http.Request) {
	fullName := r.PathValue("owner") + "/" + r.PathValue("repo")

	if err := h.watchSvc.RemoveRepository(r.Context(), fullName); err != nil {
		h.writeDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// repoAction adapts a per-repository watch service method into a handler.
func (h *Handler) repoAction(action func(ctx context.Context, fullName string) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fullName := r.PathValue("owner") + "/" + r.PathValue("repo")

		if err := action(r.Context(), fullName); err != nil {
			h.writeDomainError(w, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

// SnoozeRepo snoozes a repository for the requested number of hours.
func (h *Handler) SnoozeRepo(w http.ResponseWriter, r *http.Request) {
	fullName := r.PathValue("owner") + "/" + r.PathValue("repo")

	var req SnoozeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Hours <= 0 {
		writeError(w, http.StatusBadRequest, "hours must be positive")
		return
	}

	d := time.Duration(req.Hours * float64(time.Hour))
	if err := h.watchSvc.Snooze(r.Context(), fullName, d); err != nil {
		h.writeDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ExportRepos writes the watch list as a YAML document.
func (h *Handler) ExportRepos(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	if err := h.watchSvc.ExportWatchList(w); err != nil {
		h.logger.Error("watch list export failed", "error", err)
	}
}

// ImportRepos reads a YAML watch list from the request body and adds each
// repository, skipping entries that are already watched or fail to resolve.
func (h *Handler) ImportRepos(w http.ResponseWriter, r *http.Request) {
	added, err := h.watchSvc.ImportWatchList(r.Context(), r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid watch list document")
		return
	}

	writeJSON(w, http.StatusOK, map[string]int{"added": added})
}

// SearchRepos searches GitHub for repositories matching the q parameter.
func (h *Handler) SearchRepos(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		writeError(w, http.StatusBadRequest, "q parameter is required")
		return
	}

	client := h.provider.Get()
	if client == nil {
		h.writeDomainError(w, application.ErrNoCredentials)
		return
	}

	refs, err := client.SearchRepositories(r.Context(), query, 20)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, refs)
}

// GetPreferences returns the persisted preferences.
func (h *Handler) GetPreferences(w http.ResponseWriter, _ *http.Request) {
	state := h.store.Snapshot()
	writeJSON(w, http.StatusOK, PreferencesResponse{
		Filters:       state.Filters,
		Notifications: state.Notifications,
		CheckInterval: state.CheckInterval,
		Theme:         state.Theme,
	})
}

// UpdatePreferences applies a partial preference update.
func (h *Handler) UpdatePreferences(w http.ResponseWriter, r *http.Request) {
	var req PreferencesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Theme != nil && !req.Theme.Valid() {
		writeError(w, http.StatusBadRequest, "unknown theme")
		return
	}
	if req.CheckInterval != nil && *req.CheckInterval <= 0 {
		writeError(w, http.StatusBadRequest, "checkInterval must be positive")
		return
	}

	err := h.store.Update(r.Context(), func(state *application.State) {
		if req.Filters != nil {
			state.Filters = *req.Filters
		}
		if req.Notifications != nil {
			state.Notifications = *req.Notifications
		}
		if req.CheckInterval != nil {
			state.CheckInterval = *req.CheckInterval
		}
		if req.Theme != nil {
			state.Theme = *req.Theme
		}
	})
	if err != nil {
		h.logger.Error("preferences update failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// SetCredential validates the supplied token against GitHub, stores it
// encrypted, and hot-swaps the active client.
func (h *Handler) SetCredential(w http.ResponseWriter, r *http.Request) {
	var req CredentialRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Token == "" {
		writeError(w, http.StatusBadRequest, "token is required")
		return
	}

	client := h.newClient(req.Token)
	username, err := client.ValidateToken(r.Context())
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	if err := h.credentials.SetToken(r.Context(), req.Token); err != nil {
		if errors.Is(err, driven.ErrEncryptionKeyNotSet) {
			writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		h.logger.Error("storing token failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.provider.Replace(client, username)
	writeJSON(w, http.StatusOK, CredentialResponse{Username: username})
}

// ClearCredential removes the stored token and drops the active client.
func (h *Handler) ClearCredential(w http.ResponseWriter, r *http.Request) {
	if err := h.credentials.ClearToken(r.Context()); err != nil {
		h.logger.Error("clearing token failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.provider.Replace(nil, "")
	w.WriteHeader(http.StatusNoContent)
}

// Refresh runs a poll cycle immediately and returns when it completes.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	if h.pollSvc == nil {
		writeError(w, http.StatusServiceUnavailable, "polling is not running")
		return
	}

	if err := h.pollSvc.Refresh(r.Context()); err != nil {
		h.logger.Error("manual refresh failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Health returns a simple health check response.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
		Time:   time.Now().UTC().Format(time.RFC3339),
	})
}

// writeDomainError maps domain and upstream error kinds to HTTP statuses.
func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	var rateErr *github.RateLimitError

	switch {
	case errors.Is(err, model.ErrInvalidFullName):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, application.ErrAlreadyWatched),
		errors.Is(err, application.ErrWatchLimitReached):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, application.ErrNotWatched),
		errors.Is(err, github.ErrNotFound),
		errors.Is(err, driven.ErrPackageNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, driven.ErrNoRepository):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, application.ErrNoCredentials),
		errors.Is(err, github.ErrAuthentication):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, github.ErrAccessDenied):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.As(err, &rateErr):
		w.Header().Set("Retry-After", rateErr.ResetAt.UTC().Format(http.TimeFormat))
		writeError(w, http.StatusTooManyRequests, err.Error())
	default:
		h.logger.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
