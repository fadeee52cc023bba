package server_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lcalzada-xor/tagap/internal/adapters/web/server"
	"github.com/lcalzada-xor/tagap/internal/core/domain"
	"github.com/lcalzada-xor/tagap/internal/core/services/persistence"
	"github.com/lcalzada-xor/tagap/internal/core/services/registry"
	"github.com/lcalzada-xor/tagap/internal/core/services/stations"
)

type fakePipeline struct{ stats domain.PipelineStats }

func (f fakePipeline) Stats() domain.PipelineStats { return f.stats }

type fakeStorage struct {
	mu       sync.Mutex
	captures map[string]domain.Capture
	filter   domain.CaptureFilter
	events   []domain.StationEvent
	fail     bool
}

func (f *fakeStorage) SaveCapturesBatch(context.Context, []domain.Capture) error { return nil }

func (f *fakeStorage) GetCapture(_ context.Context, id string) (*domain.Capture, error) {
	c, ok := f.captures[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &c, nil
}

func (f *fakeStorage) ListCaptures(_ context.Context, filter domain.CaptureFilter) ([]domain.Capture, error) {
	f.mu.Lock()
	f.filter = filter
	f.mu.Unlock()
	if f.fail {
		return nil, errors.New("db down")
	}
	var out []domain.Capture
	for _, c := range f.captures {
		if filter.Device == 0 || c.Device == filter.Device {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeStorage) CaptureStats(context.Context) ([]domain.DeviceCaptureStats, error) {
	return []domain.DeviceCaptureStats{{Device: 1, Count: int64(len(f.captures)), AvgRSSI: -45}}, nil
}

func (f *fakeStorage) SaveStationEvent(context.Context, domain.StationEvent) error { return nil }

func (f *fakeStorage) ListStationEvents(context.Context, int) ([]domain.StationEvent, error) {
	return f.events, nil
}

func (f *fakeStorage) Close() error { return nil }

func quietLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func setupServer(t *testing.T, store *fakeStorage) (*server.Server, *stations.Service) {
	t.Helper()
	st := stations.NewService(quietLogger(), nil)
	deps := server.Deps{
		Directory: registry.NewDefault(),
		Pipeline:  fakePipeline{stats: domain.PipelineStats{Received: 10, Tagged: 4}},
		Stations:  st,
		Logger:    quietLogger(),
	}
	if store != nil {
		deps.Storage = store
	}
	return server.NewServer(":0", deps), st
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func sampleStore() *fakeStorage {
	ts := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	return &fakeStorage{captures: map[string]domain.Capture{
		"a": {ID: "a", Device: 1, RSSI: -41, Samples: []int{2, -2}, Timestamp: ts},
		"b": {ID: "b", Device: 2, RSSI: -60, Samples: []int{}, Timestamp: ts},
	}}
}

func TestServer_Devices(t *testing.T) {
	srv, _ := setupServer(t, nil)
	rec := get(t, srv.Handler(), "/api/devices")
	require.Equal(t, http.StatusOK, rec.Code)

	var got []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))

	want := []map[string]any{
		{"id": float64(1), "mac": "60:55:F9:F7:16:A8", "label": "Device 1", "oui": "60:55:F9"},
		{"id": float64(2), "mac": "60:55:F9:F7:21:90", "label": "Device 2", "oui": "60:55:F9"},
		{"id": float64(3), "mac": "60:55:F9:F7:2B:BC", "label": "Device 3", "oui": "60:55:F9"},
		{"id": float64(4), "mac": "60:55:F9:F7:16:BC", "label": "Device 4", "oui": "60:55:F9"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("devices mismatch (-want +got):\n%s", diff)
	}
}

func TestServer_Captures(t *testing.T) {
	store := sampleStore()
	srv, _ := setupServer(t, store)
	h := srv.Handler()

	rec := get(t, h, "/api/captures?device=1&limit=5000")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []domain.Capture
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "a", list[0].ID)
	assert.Equal(t, []int{2, -2}, list[0].Samples)
	assert.Equal(t, 1000, store.filter.Limit, "limit is capped")

	rec = get(t, h, "/api/captures/b")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"samples":[]`)

	assert.Equal(t, http.StatusNotFound, get(t, h, "/api/captures/missing").Code)
	assert.Equal(t, http.StatusBadRequest, get(t, h, "/api/captures?device=zero").Code)
	assert.Equal(t, http.StatusBadRequest, get(t, h, "/api/captures?since=yesterday").Code)

	store.fail = true
	assert.Equal(t, http.StatusInternalServerError, get(t, h, "/api/captures").Code)
}

func TestServer_WithoutPersistence(t *testing.T) {
	srv, _ := setupServer(t, nil)
	h := srv.Handler()

	assert.Equal(t, http.StatusServiceUnavailable, get(t, h, "/api/captures").Code)
	assert.Equal(t, http.StatusServiceUnavailable, get(t, h, "/api/captures/a").Code)
	assert.Equal(t, http.StatusServiceUnavailable, get(t, h, "/api/reports/captures.pdf").Code)

	rec := get(t, h, "/api/stations")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"connected":[]}`, rec.Body.String())
}

func TestServer_StationsAndStats(t *testing.T) {
	store := sampleStore()
	store.events = []domain.StationEvent{{Type: domain.StationJoined, Address: domain.MustParseHardwareAddress("60:55:F9:F7:16:A8"), AID: 1}}
	srv, st := setupServer(t, store)
	h := srv.Handler()

	st.HandleStationEvent(domain.StationEvent{
		Type:    domain.StationJoined,
		Address: domain.MustParseHardwareAddress("60:55:F9:F7:16:A8"),
		AID:     1,
	})

	rec := get(t, h, "/api/stations")
	require.Equal(t, http.StatusOK, rec.Code)
	var stationsResp struct {
		Connected []domain.Station      `json:"connected"`
		Events    []domain.StationEvent `json:"events"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stationsResp))
	require.Len(t, stationsResp.Connected, 1)
	assert.Equal(t, 1, stationsResp.Connected[0].AID)
	assert.Len(t, stationsResp.Events, 1)

	rec = get(t, h, "/api/stats")
	require.Equal(t, http.StatusOK, rec.Code)
	var stats struct {
		Pipeline domain.PipelineStats        `json:"pipeline"`
		Stations int                         `json:"stations"`
		Devices  []domain.DeviceCaptureStats `json:"devices"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, uint64(4), stats.Pipeline.Tagged)
	assert.Equal(t, 1, stats.Stations)
	require.Len(t, stats.Devices, 1)
	assert.Equal(t, int64(2), stats.Devices[0].Count)
}

func TestServer_CapturesPDF(t *testing.T) {
	srv, _ := setupServer(t, sampleStore())
	rec := get(t, srv.Handler(), "/api/reports/captures.pdf?limit=10")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "tagap-captures-")
	assert.True(t, strings.HasPrefix(rec.Body.String(), "%PDF-"))
}

func TestServer_HealthAndMetrics(t *testing.T) {
	srv, _ := setupServer(t, nil)
	h := srv.Handler()

	rec := get(t, h, "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	assert.Equal(t, http.StatusOK, get(t, h, "/metrics").Code)

	for _, tc := range []struct{ method, target string }{
		{http.MethodPost, "/api/devices"},
		{http.MethodDelete, "/api/captures/a"},
		{http.MethodPut, "/api/stats"},
		{http.MethodGet, "/api/config/persistence"},
	} {
		req := httptest.NewRequest(tc.method, tc.target, nil)
		rec = httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code, "%s %s", tc.method, tc.target)
	}

	assert.Equal(t, http.StatusNotFound, get(t, h, "/api/unknown").Code)
}

func post(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, target, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestServer_PersistenceToggle(t *testing.T) {
	store := sampleStore()
	pm := persistence.NewPersistenceManager(store, 10, quietLogger())
	srv := server.NewServer(":0", server.Deps{
		Directory:   registry.NewDefault(),
		Pipeline:    fakePipeline{},
		Stations:    stations.NewService(quietLogger(), nil),
		Storage:     store,
		Persistence: pm,
		Logger:      quietLogger(),
	})
	h := srv.Handler()

	rec := get(t, h, "/api/config")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"persistence_available":true,"persistence_enabled":true}`, rec.Body.String())

	rec = post(t, h, "/api/config/persistence?enabled=false")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"persistence_updated","enabled":false}`, rec.Body.String())
	assert.False(t, pm.IsEnabled())

	assert.Equal(t, http.StatusBadRequest, post(t, h, "/api/config/persistence?enabled=maybe").Code)
	assert.False(t, pm.IsEnabled())

	require.Equal(t, http.StatusOK, post(t, h, "/api/config/persistence?enabled=true").Code)
	assert.True(t, pm.IsEnabled())
}

func TestServer_PersistenceToggleWithoutDatabase(t *testing.T) {
	srv, _ := setupServer(t, nil)
	h := srv.Handler()

	rec := get(t, h, "/api/config")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"persistence_available":false,"persistence_enabled":false}`, rec.Body.String())

	assert.Equal(t, http.StatusServiceUnavailable, post(t, h, "/api/config/persistence?enabled=true").Code)
}

func TestServer_WebSocketFeed(t *testing.T) {
	srv, _ := setupServer(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	srv.WSManager.Start(ctx)

	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return srv.WSManager.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	srv.WSManager.Publish(domain.Capture{ID: "x", Device: 3, Samples: []int{7}})
	srv.WSManager.HandleStationEvent(domain.StationEvent{Type: domain.StationLeft, AID: 2})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg struct {
		Type    string          `json:"type"`
		Payload json.RawMessage `json:"payload"`
	}
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "capture", msg.Type)
	var c domain.Capture
	require.NoError(t, json.Unmarshal(msg.Payload, &c))
	assert.Equal(t, domain.DeviceID(3), c.Device)

	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "station", msg.Type)
}

func TestServer_WebSocketRejectsForeignOrigin(t *testing.T) {
	srv, _ := setupServer(t, nil)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	header := http.Header{"Origin": []string{"http://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.Error(t, err)
	if resp != nil {
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	}
}
