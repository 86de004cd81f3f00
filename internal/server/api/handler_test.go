package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"bustrack/internal/contracts"
	"bustrack/internal/domain/fleet"
	"bustrack/internal/domain/geo"
	"bustrack/internal/domain/trip"
	"bustrack/internal/domain/user"
	"bustrack/internal/jwt"
	"bustrack/internal/server/tracking"
	"bustrack/internal/server/ws"
)

// in-memory tracking ports, enough to run the full service behind the router

type memTrips struct {
	mu    sync.Mutex
	trips map[string]*trip.Session
}

func (r *memTrips) Create(_ context.Context, s *trip.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *s
	r.trips[s.ID] = &cp
	return nil
}

func (r *memTrips) Update(_ context.Context, s *trip.Session) error {
	return r.Create(context.Background(), s)
}

func (r *memTrips) ByID(_ context.Context, id string) (*trip.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.trips[id]; ok {
		cp := *s
		return &cp, nil
	}
	return nil, trip.ErrNoActiveTrip
}

func (r *memTrips) ActiveByBus(_ context.Context, busID string) (*trip.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.trips {
		if s.BusID == busID && s.Live() {
			cp := *s
			return &cp, nil
		}
	}
	return nil, trip.ErrNoActiveTrip
}

func (r *memTrips) ActiveByDriver(_ context.Context, driverID string) (*trip.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.trips {
		if s.DriverID == driverID && s.Live() {
			cp := *s
			return &cp, nil
		}
	}
	return nil, trip.ErrNoActiveTrip
}

func (r *memTrips) ListActive(_ context.Context) ([]*trip.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*trip.Session
	for _, s := range r.trips {
		if s.Live() {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

type memLocations struct{}

func (memLocations) SaveSample(context.Context, geo.Sample) error { return nil }

type memLatest struct {
	mu     sync.Mutex
	latest map[string]geo.Sample
}

func (s *memLatest) SetLatest(_ context.Context, sample geo.Sample) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest[sample.TripID] = sample
	return nil
}

func (s *memLatest) Latest(_ context.Context, tripID string) (geo.Sample, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sample, ok := s.latest[tripID]; ok {
		return sample, nil
	}
	return geo.Sample{}, trip.ErrNoActiveTrip
}

type memLock struct {
	mu    sync.Mutex
	locks map[string]string
}

func (l *memLock) Acquire(_ context.Context, busID, tripID string) (bool, string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if holder, ok := l.locks[busID]; ok {
		return false, holder, nil
	}
	l.locks[busID] = tripID
	return true, "", nil
}

func (l *memLock) Holder(_ context.Context, busID string) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.locks[busID], nil
}

func (l *memLock) Steal(_ context.Context, busID, tripID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.locks[busID] = tripID
	return nil
}

func (l *memLock) Release(_ context.Context, busID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.locks, busID)
	return nil
}

type discardFanout struct{}

func (discardFanout) PublishBusLocation(context.Context, contracts.BusLocationMessage) error {
	return nil
}

func (discardFanout) PublishTripEvent(context.Context, contracts.TripEventMessage) error {
	return nil
}

type nopBuses struct{}

func (nopBuses) ListActive(context.Context) ([]fleet.Bus, error) {
	return []fleet.Bus{{ID: "bus-7", PlateNumber: "01A777BC", Capacity: 40, Active: true}}, nil
}

type testServer struct {
	srv    *httptest.Server
	jwtMgr *jwt.Manager
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	hub := ws.NewHub(log)

	svc := tracking.NewService(tracking.ServiceDeps{
		Logger:    log,
		Trips:     &memTrips{trips: make(map[string]*trip.Session)},
		Locations: memLocations{},
		Latest:    &memLatest{latest: make(map[string]geo.Sample)},
		Locker:    &memLock{locks: make(map[string]string)},
		Fanout:    discardFanout{},
		Hub:       hub,
		IdleAfter: time.Hour,
	})
	t.Cleanup(svc.Close)

	jwtMgr := jwt.NewManager("api-test-secret-key-0123456789", time.Hour)
	wsh := ws.NewHandler(log, hub, jwtMgr, svc, nil)
	h := NewHandler(log, svc, nopBuses{}, wsh, jwtMgr)

	srv := httptest.NewServer(h.Router())
	t.Cleanup(srv.Close)
	return &testServer{srv: srv, jwtMgr: jwtMgr}
}

func (ts *testServer) token(t *testing.T, userID string, role user.Role) string {
	t.Helper()
	tkn, _, err := ts.jwtMgr.IssueUserToken(userID, role)
	if err != nil {
		t.Fatal(err)
	}
	return tkn
}

func (ts *testServer) do(t *testing.T, method, path, token string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req, err := http.NewRequest(method, ts.srv.URL+path, &buf)
	if err != nil {
		t.Fatal(err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })

	var decoded map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&decoded)
	return resp, decoded
}

func TestRouter_RequiresAuth(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)

	resp, _ := ts.do(t, http.MethodGet, "/driver/buses", "", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("no token status = %d, want 401", resp.StatusCode)
	}
}

func TestRouter_EnforcesRoles(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)

	parent := ts.token(t, "parent-1", user.RoleParent)
	resp, _ := ts.do(t, http.MethodPost, "/driver/start-trip", parent,
		map[string]any{"busId": "bus-7", "routeId": "route-1"})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("parent on driver route status = %d, want 403", resp.StatusCode)
	}

	driver := ts.token(t, "driver-1", user.RoleDriver)
	resp, _ = ts.do(t, http.MethodGet, "/admin/live-trips", driver, nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("driver on admin route status = %d, want 403", resp.StatusCode)
	}
}

func TestStartTrip_ConflictResponseNamesHoldingTrip(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)

	first := ts.token(t, "driver-1", user.RoleDriver)
	resp, body := ts.do(t, http.MethodPost, "/driver/start-trip", first,
		map[string]any{"busId": "bus-7", "routeId": "route-1"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("first start status = %d: %v", resp.StatusCode, body)
	}
	holdingTripID, _ := body["id"].(string)
	if holdingTripID == "" {
		t.Fatalf("start response missing trip id: %v", body)
	}

	second := ts.token(t, "driver-2", user.RoleDriver)
	resp, body = ts.do(t, http.MethodPost, "/driver/start-trip", second,
		map[string]any{"busId": "bus-7", "routeId": "route-2"})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("conflicting start status = %d, want 409", resp.StatusCode)
	}
	if body["activeTripId"] != holdingTripID {
		t.Fatalf("conflict body = %v, want activeTripId %q", body, holdingTripID)
	}
	if body["busId"] != "bus-7" {
		t.Fatalf("conflict body missing busId: %v", body)
	}
}

func TestStartTrip_ForceTakesOverBus(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)

	first := ts.token(t, "driver-1", user.RoleDriver)
	if resp, body := ts.do(t, http.MethodPost, "/driver/start-trip", first,
		map[string]any{"busId": "bus-7", "routeId": "route-1"}); resp.StatusCode != http.StatusCreated {
		t.Fatalf("first start: %d %v", resp.StatusCode, body)
	}

	second := ts.token(t, "driver-2", user.RoleDriver)
	resp, body := ts.do(t, http.MethodPost, "/driver/start-trip", second,
		map[string]any{"busId": "bus-7", "routeId": "route-2", "force": true})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("force start status = %d: %v", resp.StatusCode, body)
	}

	// the displaced driver no longer has an active trip
	resp, _ = ts.do(t, http.MethodGet, "/driver/active-trip", first, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("displaced driver active-trip status = %d, want 404", resp.StatusCode)
	}
}

func TestTrackingUpdate_RestFallbackRoundTrip(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)

	driver := ts.token(t, "driver-1", user.RoleDriver)
	resp, body := ts.do(t, http.MethodPost, "/driver/start-trip", driver,
		map[string]any{"busId": "bus-7", "routeId": "route-1"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("start: %d %v", resp.StatusCode, body)
	}
	tripID := body["id"].(string)

	resp, _ = ts.do(t, http.MethodPost, "/tracking/update", driver, map[string]any{
		"tripId": tripID, "busId": "bus-7", "driverId": "driver-1",
		"lat": 41.31, "lng": 69.28, "speed": 40, "heading": 90,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("tracking update status = %d", resp.StatusCode)
	}

	admin := ts.token(t, "admin-1", user.RoleAdmin)
	resp, body = ts.do(t, http.MethodGet, "/admin/trip-location/"+tripID, admin, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("trip-location status = %d: %v", resp.StatusCode, body)
	}
	if body["lat"] != 41.31 {
		t.Fatalf("latest sample = %v", body)
	}
}

func TestTrackingUpdate_RejectsAnotherDriversSample(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)

	driver := ts.token(t, "driver-1", user.RoleDriver)
	resp, body := ts.do(t, http.MethodPost, "/driver/start-trip", driver,
		map[string]any{"busId": "bus-7", "routeId": "route-1"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("start: %d %v", resp.StatusCode, body)
	}
	tripID := body["id"].(string)

	intruder := ts.token(t, "driver-2", user.RoleDriver)
	resp, _ = ts.do(t, http.MethodPost, "/tracking/update", intruder, map[string]any{
		"tripId": tripID, "busId": "bus-7", "driverId": "driver-1",
		"lat": 41.31, "lng": 69.28, "speed": 40, "heading": 90,
	})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("foreign sample status = %d, want 403", resp.StatusCode)
	}
}

func TestHealthAndBuses(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)

	resp, body := ts.do(t, http.MethodGet, "/health", "", nil)
	if resp.StatusCode != http.StatusOK || body["status"] != "ok" {
		t.Fatalf("health = %d %v", resp.StatusCode, body)
	}

	driver := ts.token(t, "driver-1", user.RoleDriver)
	resp, body = ts.do(t, http.MethodGet, "/driver/buses", driver, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("buses status = %d", resp.StatusCode)
	}
	buses, ok := body["buses"].([]any)
	if !ok || len(buses) != 1 {
		t.Fatalf("buses body = %v", body)
	}
}
