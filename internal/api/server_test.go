package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"scanstation/internal/config"
	"scanstation/internal/database"
	"scanstation/internal/history"
	"scanstation/internal/logging"
	"scanstation/internal/metrics"
	"scanstation/internal/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSyncer struct {
	result  models.SyncResult
	err     error
	syncing bool
	calls   int
}

func (s *fakeSyncer) Sync(ctx context.Context) (models.SyncResult, error) {
	s.calls++
	return s.result, s.err
}

func (s *fakeSyncer) Syncing() bool { return s.syncing }

func (s *fakeSyncer) LastPass() (models.SyncResult, time.Time, bool) {
	return s.result, time.Now().UTC(), s.calls > 0
}

type fakeIngestor struct {
	msg string
	err error
}

func (i *fakeIngestor) Process(ctx context.Context, barcode string) (string, error) {
	return i.msg, i.err
}

type fakeOnline struct {
	online bool
}

func (c *fakeOnline) Online() bool { return c.online }

type serverFixture struct {
	srv    *Server
	db     *database.DB
	syncer *fakeSyncer
	ingest *fakeIngestor
	conn   *fakeOnline
	hist   *history.MemoryStore
}

func setupServer(t *testing.T, cfg config.APIConfig) *serverFixture {
	t.Helper()
	db, err := database.NewDB(filepath.Join(t.TempDir(), "outbox.db"), 0, logging.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	f := &serverFixture{
		db:     db,
		syncer: &fakeSyncer{},
		ingest: &fakeIngestor{msg: "Jordan Lee checked in"},
		conn:   &fakeOnline{online: true},
		hist:   history.NewMemoryStore(models.HistoryLimit),
	}
	f.srv = NewServer(cfg, false, db, f.syncer, f.ingest, f.conn, f.hist, logging.Nop())
	return f
}

func openConfig() config.APIConfig {
	return config.APIConfig{Enabled: true, Port: 0}
}

func doRequest(f *serverFixture, method, path string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	f.srv.server.Handler.ServeHTTP(rec, req)
	return rec
}

func TestQueueEndpoints(t *testing.T) {
	f := setupServer(t, openConfig())
	ctx := context.Background()

	_, err := f.db.EnqueueCheckin(ctx, "A1")
	require.NoError(t, err)
	_, err = f.db.EnqueueCheckin(ctx, "B2")
	require.NoError(t, err)

	rec := doRequest(f, http.MethodGet, "/api/v1/queue", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var listResp struct {
		Records []models.QueuedCheckin `json:"records"`
		Count   int                    `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listResp))
	assert.Equal(t, 2, listResp.Count)
	require.Len(t, listResp.Records, 2)
	assert.Equal(t, "A1", listResp.Records[0].Barcode)

	rec = doRequest(f, http.MethodDelete, "/api/v1/queue", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var clearResp map[string]int
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &clearResp))
	assert.Equal(t, 2, clearResp["cleared"])

	count, err := f.db.CountQueued(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func outboxDepthValue(t *testing.T) float64 {
	t.Helper()
	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() == "scanstation_outbox_depth" {
			return mf.GetMetric()[0].GetGauge().GetValue()
		}
	}
	t.Fatal("scanstation_outbox_depth not registered")
	return 0
}

func TestClearAllResetsDepthGauge(t *testing.T) {
	metrics.Register()
	f := setupServer(t, openConfig())
	ctx := context.Background()

	_, err := f.db.EnqueueCheckin(ctx, "A1")
	require.NoError(t, err)
	metrics.SetOutboxDepth(1)

	rec := doRequest(f, http.MethodDelete, "/api/v1/queue", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0.0, outboxDepthValue(t))
}

func TestSyncNow(t *testing.T) {
	f := setupServer(t, openConfig())
	f.syncer.result = models.SyncResult{Success: 2, Failed: 1, Total: 3}

	rec := doRequest(f, http.MethodPost, "/api/v1/sync", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Message string            `json:"message"`
		Result  models.SyncResult `json:"result"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Synced 2 of 3 check-ins, 1 failed", resp.Message)
	assert.Equal(t, f.syncer.result, resp.Result)
	assert.Equal(t, 1, f.syncer.calls)

	// Partial failure lands in the feed too.
	entries, err := f.hist.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.False(t, entries[0].Success)
}

func TestSyncNowWhileOffline(t *testing.T) {
	f := setupServer(t, openConfig())
	f.conn.online = false

	rec := doRequest(f, http.MethodPost, "/api/v1/sync", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, 0, f.syncer.calls)
}

func TestManualScan(t *testing.T) {
	f := setupServer(t, openConfig())

	rec := doRequest(f, http.MethodPost, "/api/v1/scan", map[string]string{"barcode": "GYM-0001"})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Jordan Lee checked in", resp["message"])

	rec = doRequest(f, http.MethodPost, "/api/v1/scan", map[string]string{"barcode": "   "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStatus(t *testing.T) {
	f := setupServer(t, openConfig())
	f.syncer.syncing = true

	ctx := context.Background()
	_, err := f.db.EnqueueCheckin(ctx, "A1")
	require.NoError(t, err)

	rec := doRequest(f, http.MethodGet, "/api/v1/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, true, resp["online"])
	assert.Equal(t, true, resp["syncing"])
	assert.EqualValues(t, 1, resp["queued"])
}

func TestHistoryEndpoint(t *testing.T) {
	f := setupServer(t, openConfig())
	ctx := context.Background()

	require.NoError(t, f.hist.Append(ctx, models.ScanHistoryEntry{Label: "Jordan Lee checked in", Success: true}))

	rec := doRequest(f, http.MethodGet, "/api/v1/history", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Entries []models.ScanHistoryEntry `json:"entries"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Entries, 1)
	assert.Equal(t, "Jordan Lee checked in", resp.Entries[0].Label)
}

func TestHealthz(t *testing.T) {
	f := setupServer(t, openConfig())

	rec := doRequest(f, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMethodNotAllowed(t *testing.T) {
	f := setupServer(t, openConfig())

	rec := doRequest(f, http.MethodPut, "/api/v1/queue", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = doRequest(f, http.MethodGet, "/api/v1/sync", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
