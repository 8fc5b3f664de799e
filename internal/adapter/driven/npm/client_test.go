package npm_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonmartin721/devwatch-github-sub000/internal/adapter/driven/npm"
	"github.com/jonmartin721/devwatch-github-sub000/internal/domain/port/driven"
)

func newTestClient(t *testing.T, handler http.Handler) *npm.Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return npm.NewClientWithBaseURL(server.Client(), server.URL)
}

func TestResolveRepository_ObjectForm(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/react", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"name":"react","repository":{"type":"git","url":"git+https://github.com/facebook/react.git"}}`))
	})

	client := newTestClient(t, handler)
	fullName, err := client.ResolveRepository(context.Background(), "react")

	require.NoError(t, err)
	assert.Equal(t, "facebook/react", fullName)
}

func TestResolveRepository_StringForm(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"name":"left-pad","repository":"git://github.com/stevemao/left-pad.git"}`))
	})

	client := newTestClient(t, handler)
	fullName, err := client.ResolveRepository(context.Background(), "left-pad")

	require.NoError(t, err)
	assert.Equal(t, "stevemao/left-pad", fullName)
}

func TestResolveRepository_GitHubShorthand(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"repository":"github:lodash/lodash"}`))
	})

	client := newTestClient(t, handler)
	fullName, err := client.ResolveRepository(context.Background(), "lodash")

	require.NoError(t, err)
	assert.Equal(t, "lodash/lodash", fullName)
}

func TestResolveRepository_ScopedPackageKeepsSlashEncoded(t *testing.T) {
	var gotPath string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"repository":{"url":"https://github.com/types/node.git"}}`))
	})

	client := newTestClient(t, handler)
	_, err := client.ResolveRepository(context.Background(), "@types/node")

	require.NoError(t, err)
	assert.Equal(t, "/@types%2Fnode", gotPath)
}

func TestResolveRepository_PackageNotFound(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"Not found"}`, http.StatusNotFound)
	})

	client := newTestClient(t, handler)
	_, err := client.ResolveRepository(context.Background(), "no-such-package")

	require.ErrorIs(t, err, driven.ErrPackageNotFound)
}

func TestResolveRepository_NonGitHubRepository(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"repository":{"url":"https://gitlab.com/group/project.git"}}`))
	})

	client := newTestClient(t, handler)
	_, err := client.ResolveRepository(context.Background(), "gitlab-thing")

	require.ErrorIs(t, err, driven.ErrNoRepository)
}

func TestResolveRepository_NoRepositoryField(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"name":"orphan"}`))
	})

	client := newTestClient(t, handler)
	_, err := client.ResolveRepository(context.Background(), "orphan")

	require.ErrorIs(t, err, driven.ErrNoRepository)
}
