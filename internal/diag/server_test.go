package diag

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/openbms-io/supervisor/internal/model"
)

type fakePool struct {
	util map[string]WrapperUtilization
}

func (p *fakePool) Utilization() map[string]WrapperUtilization {
	return p.util
}

type fakeStore struct {
	status model.DeviceStatus
	err    error
}

func (s *fakeStore) GetDeviceStatus(ctx context.Context) (model.DeviceStatus, error) {
	return s.status, s.err
}

func newTestServer(t *testing.T, pool Pool, store StatusStore) *Server {
	t.Helper()
	s, err := New(Deps{Addr: "127.0.0.1:0", Version: "test", Pool: pool, Store: store})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	s.server.Handler = s.buildRouter()
	return s
}

func TestHealthzAlwaysReportsOK(t *testing.T) {
	s := newTestServer(t, nil, nil)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	s.server.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("expected status ok, got %v", body)
	}
}

func TestReadyzReportsReadyWhenBothLinksConnected(t *testing.T) {
	store := &fakeStore{status: model.DeviceStatus{
		MQTTConnectionStatus:   model.ConnectionConnected,
		BACnetConnectionStatus: model.ConnectionConnected,
		MonitoringStatus:       model.MonitoringActive,
	}}
	s := newTestServer(t, nil, store)
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec := httptest.NewRecorder()
	s.server.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp readyResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Ready {
		t.Error("expected ready=true")
	}
}

func TestReadyzReportsNotReadyOnDisconnectedLink(t *testing.T) {
	store := &fakeStore{status: model.DeviceStatus{
		MQTTConnectionStatus:   model.ConnectionConnected,
		BACnetConnectionStatus: model.ConnectionDisconnected,
	}}
	s := newTestServer(t, nil, store)
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec := httptest.NewRecorder()
	s.server.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestReadyzReportsNotReadyOnStoreError(t *testing.T) {
	store := &fakeStore{err: context.DeadlineExceeded}
	s := newTestServer(t, nil, store)
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec := httptest.NewRecorder()
	s.server.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestPoolReportsUtilizationFromPool(t *testing.T) {
	pool := &fakePool{util: map[string]WrapperUtilization{
		"r1": {ActiveOperations: 2, IsBusy: true, IP: "10.0.0.1", Port: 47808, Strategy: "round_robin"},
	}}
	s := newTestServer(t, pool, nil)
	req := httptest.NewRequest(http.MethodGet, "/pool", nil)
	rec := httptest.NewRecorder()
	s.server.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]WrapperUtilization
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["r1"].ActiveOperations != 2 || !body["r1"].IsBusy {
		t.Errorf("unexpected pool report: %+v", body)
	}
}

func TestStartAndCloseLifecycle(t *testing.T) {
	s, err := New(Deps{Addr: "127.0.0.1:0"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	time.Sleep(10 * time.Millisecond)
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}
