package api

import (
	"context"
	"encoding/json/v2"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelfsyncapp/shelfsync-server/internal/cache"
	"github.com/shelfsyncapp/shelfsync-server/internal/catalog"
	"github.com/shelfsyncapp/shelfsync-server/internal/docstore"
	"github.com/shelfsyncapp/shelfsync-server/internal/errors"
	"github.com/shelfsyncapp/shelfsync-server/internal/http/response"
	"github.com/shelfsyncapp/shelfsync-server/internal/localstore"
	"github.com/shelfsyncapp/shelfsync-server/internal/logger"
	"github.com/shelfsyncapp/shelfsync-server/internal/notify"
	"github.com/shelfsyncapp/shelfsync-server/internal/sync"
)

type fakeCatalog struct {
	result *catalog.SearchResult
	err    error
}

func (f *fakeCatalog) Search(_ context.Context, query string, limit, offset int) (*catalog.SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, errors.Validation("search query cannot be empty")
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func (f *fakeCatalog) Subject(_ context.Context, slug string, limit int) (*catalog.SubjectList, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &catalog.SubjectList{
		Name:       slug,
		TotalCount: len(f.result.Records),
		Records:    f.result.Records,
	}, nil
}

func newTestServer(t *testing.T) (*Server, *sync.Session) {
	t.Helper()

	log := logger.Discard()
	local, err := localstore.Open(t.TempDir(), log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = local.Close() })

	sess, err := sync.NewSession("usr-test", local, docstore.NewMemory(log), cache.NewManager(log), &notify.Recorder{}, log)
	require.NoError(t, err)
	t.Cleanup(sess.Stop)
	require.NoError(t, sess.Start(context.Background()))

	cat := &fakeCatalog{result: &catalog.SearchResult{
		TotalCount: 1,
		Records:    []catalog.Record{{ID: "OL1W", Title: "Dune"}},
	}}
	return NewServer(sess, cat, log), sess
}

func doRequest(t *testing.T, srv *Server, method, path, body string) (*httptest.ResponseRecorder, response.Envelope) {
	t.Helper()

	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	var envelope response.Envelope
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	}
	return w, envelope
}

func TestHealthCheck(t *testing.T) {
	srv, _ := newTestServer(t)

	w, envelope := doRequest(t, srv, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, envelope.Success)
}

func TestSyncStatus(t *testing.T) {
	srv, _ := newTestServer(t)

	w, envelope := doRequest(t, srv, http.MethodGet, "/api/v1/sync/status", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.True(t, envelope.Success)

	status, ok := envelope.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "synced", status["state"])
	assert.Equal(t, true, status["online"])
	assert.NotNil(t, status["last_sync_time"])
}

func TestForceResync(t *testing.T) {
	srv, _ := newTestServer(t)

	w, envelope := doRequest(t, srv, http.MethodPost, "/api/v1/sync/resync", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, envelope.Success)
}

func TestSetOnlineRoundTrip(t *testing.T) {
	srv, sess := newTestServer(t)

	w, envelope := doRequest(t, srv, http.MethodPost, "/api/v1/sync/online", `{"online": false}`)
	require.Equal(t, http.StatusOK, w.Code)

	status, ok := envelope.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "offline-pending", status["state"])
	assert.Equal(t, true, status["pending_sync"])

	w, envelope = doRequest(t, srv, http.MethodPost, "/api/v1/sync/online", `{"online": true}`)
	require.Equal(t, http.StatusOK, w.Code)
	status, ok = envelope.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "synced", status["state"])
	assert.False(t, sess.Monitor().PendingSync())
}

func TestInvalidateCache(t *testing.T) {
	srv, sess := newTestServer(t)
	before := sess.Caches().Version()

	w, envelope := doRequest(t, srv, http.MethodPost, "/api/v1/cache/invalidate", `{"scope": "all"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, envelope.Success)
	assert.Greater(t, sess.Caches().Version(), before)
}

func TestInvalidateCacheUnknownScope(t *testing.T) {
	srv, _ := newTestServer(t)

	w, envelope := doRequest(t, srv, http.MethodPost, "/api/v1/cache/invalidate", `{"scope": "bogus"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, envelope.Success)
	assert.Equal(t, "VALIDATION", envelope.Code)
}

func TestInvalidateCacheMalformedBody(t *testing.T) {
	srv, _ := newTestServer(t)

	w, _ := doRequest(t, srv, http.MethodPost, "/api/v1/cache/invalidate", "{not json")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCatalogSearch(t *testing.T) {
	srv, _ := newTestServer(t)

	w, envelope := doRequest(t, srv, http.MethodGet, "/api/v1/catalog/search?q=dune&limit=10", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.True(t, envelope.Success)

	result, ok := envelope.Data.(map[string]any)
	require.True(t, ok)
	assert.EqualValues(t, 1, result["total_count"])
}

func TestCatalogList(t *testing.T) {
	srv, _ := newTestServer(t)

	w, envelope := doRequest(t, srv, http.MethodGet, "/api/v1/catalog/lists/science_fiction?limit=5", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.True(t, envelope.Success)

	list, ok := envelope.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "science_fiction", list["name"])
	assert.EqualValues(t, 1, list["total_count"])
}

func TestCatalogSearchEmptyQuery(t *testing.T) {
	srv, _ := newTestServer(t)

	w, envelope := doRequest(t, srv, http.MethodGet, "/api/v1/catalog/search", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, envelope.Success)
}
