package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lysyi3m/html-comb/app/database"
	"github.com/lysyi3m/html-comb/app/tasks"
)

const sampleFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel><title>Nieuws</title><link>https://example.com</link><description>x</description></channel></rss>
`

type testEnv struct {
	dir      string
	server   http.Handler
	feedRepo database.FeedRepository
	runRepo  database.RunRepository
}

func newTestEnv(t *testing.T, apiKey string) *testEnv {
	t.Helper()
	dir := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "nieuws.xml"), []byte(sampleFeed), 0644))

	statusFile := tasks.NewStatusFile(filepath.Join(dir, "feedstatus.json"))
	_, err := statusFile.Save([]tasks.Status{
		{Name: "nieuws", ItemCount: 7, Succeeded: true, Output: filepath.Join(dir, "nieuws.xml"), CheckedAt: time.Now()},
		{Name: "kapot", Succeeded: false, Error: "HTTP 500", CheckedAt: time.Now()},
	})
	require.NoError(t, err)

	db, err := database.NewConnection(filepath.Join(dir, "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	_, _, err = database.RunMigrations(db)
	require.NoError(t, err)

	feedRepo := database.NewFeedRepository(db)
	runRepo := database.NewRunRepository(db)

	handler := NewHandler(dir, statusFile, feedRepo, runRepo, "test")

	return &testEnv{
		dir:      dir,
		server:   NewServer(handler, apiKey),
		feedRepo: feedRepo,
		runRepo:  runRepo,
	}
}

func (e *testEnv) get(path string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	e.server.ServeHTTP(w, req)
	return w
}

func TestGetFeed(t *testing.T) {
	env := newTestEnv(t, "")

	w := env.get("/feeds/nieuws", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/rss+xml; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Equal(t, "nieuws", w.Header().Get("X-Feed-Name"))
	assert.Equal(t, "7", w.Header().Get("X-Feed-Items"))
	assert.Equal(t, sampleFeed, w.Body.String())

	w = env.get("/feeds/nieuws.xml", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestGetFeedMissing(t *testing.T) {
	env := newTestEnv(t, "")

	assert.Equal(t, http.StatusNotFound, env.get("/feeds/kapot", nil).Code)
	assert.Equal(t, http.StatusNotFound, env.get("/feeds/onbekend", nil).Code)
	assert.Equal(t, http.StatusBadRequest, env.get("/feeds/..", nil).Code)
}

func TestGetHealth(t *testing.T) {
	env := newTestEnv(t, "")

	w := env.get("/health", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "test", body["version"])
	assert.Equal(t, float64(2), body["tracked_feeds"])
	assert.Equal(t, float64(1), body["failed_feeds"])
	assert.Equal(t, float64(0), body["feeds"])
}

func TestAPIDisabledWithoutKey(t *testing.T) {
	env := newTestEnv(t, "")

	assert.Equal(t, http.StatusNotFound, env.get("/api/status", nil).Code)
}

func TestAPIRequiresKey(t *testing.T) {
	env := newTestEnv(t, "secret")

	assert.Equal(t, http.StatusUnauthorized, env.get("/api/status", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, env.get("/api/status", map[string]string{"X-API-Key": "wrong"}).Code)
	assert.Equal(t, http.StatusOK, env.get("/api/status", map[string]string{"Authorization": "Bearer secret"}).Code)
}

func TestAPIGetStatus(t *testing.T) {
	env := newTestEnv(t, "secret")

	w := env.get("/api/status", map[string]string{"X-API-Key": "secret"})
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Feeds []tasks.Status `json:"feeds"`
		Total int            `json:"total"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Total)
	require.Len(t, body.Feeds, 2)
	assert.Equal(t, "kapot", body.Feeds[0].Name)
	assert.Equal(t, "HTTP 500", body.Feeds[0].Error)
	assert.Equal(t, "nieuws", body.Feeds[1].Name)
	assert.NotNil(t, body.Feeds[1].LastSuccess)
}

func TestAPIGetStatusIncludesDatabaseRows(t *testing.T) {
	env := newTestEnv(t, "secret")
	headers := map[string]string{"X-API-Key": "secret"}

	checked := time.Now().UTC()
	require.NoError(t, env.feedRepo.UpsertFeedStatus(database.FeedStatus{
		Name: "nieuws", Title: "Nieuws", ItemCount: 7, Succeeded: true, CheckedAt: checked,
	}))
	require.NoError(t, env.feedRepo.UpsertFeedStatus(database.FeedStatus{
		Name: "kapot", Title: "Kapot", Error: "HTTP 500", CheckedAt: checked,
	}))

	w := env.get("/api/status", headers)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Database []map[string]interface{} `json:"database"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Database, 2)
	assert.Equal(t, "kapot", body.Database[0]["name"])
	assert.Equal(t, "HTTP 500", body.Database[0]["last_error"])
	assert.Nil(t, body.Database[0]["last_success_at"])
	assert.Equal(t, "nieuws", body.Database[1]["name"])
	assert.Equal(t, float64(7), body.Database[1]["item_count"])
}

func TestAPIGetFeedDetails(t *testing.T) {
	env := newTestEnv(t, "secret")
	headers := map[string]string{"X-API-Key": "secret"}

	started := time.Now().Add(-time.Minute).UTC()
	require.NoError(t, env.feedRepo.UpsertFeedStatus(database.FeedStatus{
		Name: "nieuws", Title: "Nieuws", ItemCount: 7, Succeeded: true, CheckedAt: started,
	}))
	require.NoError(t, env.runRepo.RecordRun(database.Run{
		ID: "run-1", FeedName: "nieuws", StartedAt: started, Duration: 2 * time.Second, ItemCount: 7, Succeeded: true,
	}))

	w := env.get("/api/feeds/nieuws", headers)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Name     string                   `json:"name"`
		Status   *tasks.Status            `json:"status"`
		Database map[string]interface{}   `json:"database"`
		Runs     []map[string]interface{} `json:"runs"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "nieuws", body.Name)
	require.NotNil(t, body.Status)
	assert.Equal(t, 7, body.Status.ItemCount)
	assert.Equal(t, "Nieuws", body.Database["title"])
	require.Len(t, body.Runs, 1)
	assert.Equal(t, "run-1", body.Runs[0]["id"])
	assert.Equal(t, "2s", body.Runs[0]["duration"])
}

func TestAPIGetFeedDetailsUnknown(t *testing.T) {
	dir := t.TempDir()
	handler := NewHandler(dir, tasks.NewStatusFile(filepath.Join(dir, "missing.json")), nil, nil, "test")
	server := NewServer(handler, "secret")

	req := httptest.NewRequest(http.MethodGet, "/api/feeds/onbekend", nil)
	req.Header.Set("X-API-Key", "secret")
	w := httptest.NewRecorder()
	server.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAPIGetFeedDetailsUnknownWithHistory(t *testing.T) {
	env := newTestEnv(t, "secret")
	headers := map[string]string{"X-API-Key": "secret"}

	w := env.get("/api/feeds/onbekend", headers)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"error":"Feed not found"}`, w.Body.String())

	// A feed with only a status entry is still known.
	w = env.get("/api/feeds/kapot", headers)
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Contains(t, body, "status")
	assert.NotContains(t, body, "database")
	assert.Equal(t, []interface{}{}, body["runs"])
}
