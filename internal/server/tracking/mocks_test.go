package tracking

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"bustrack/internal/contracts"
	"bustrack/internal/domain/geo"
	"bustrack/internal/domain/trip"
)

type mockTripRepo struct {
	mu                sync.Mutex
	trips             map[string]*trip.Session
	activeByDriverErr error
}

func newMockTripRepo() *mockTripRepo {
	return &mockTripRepo{trips: make(map[string]*trip.Session)}
}

func (r *mockTripRepo) Create(_ context.Context, s *trip.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *s
	r.trips[s.ID] = &cp
	return nil
}

func (r *mockTripRepo) Update(_ context.Context, s *trip.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *s
	r.trips[s.ID] = &cp
	return nil
}

func (r *mockTripRepo) ByID(_ context.Context, id string) (*trip.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.trips[id]; ok {
		cp := *s
		return &cp, nil
	}
	return nil, trip.ErrNoActiveTrip
}

func (r *mockTripRepo) ActiveByBus(_ context.Context, busID string) (*trip.Session, error) {
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

func (r *mockTripRepo) ActiveByDriver(_ context.Context, driverID string) (*trip.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.activeByDriverErr != nil {
		return nil, r.activeByDriverErr
	}
	for _, s := range r.trips {
		if s.DriverID == driverID && s.Live() {
			cp := *s
			return &cp, nil
		}
	}
	return nil, trip.ErrNoActiveTrip
}

func (r *mockTripRepo) ListActive(_ context.Context) ([]*trip.Session, error) {
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

func (r *mockTripRepo) get(id string) *trip.Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.trips[id]
}

type mockLocationRepo struct {
	mu       sync.Mutex
	samples  []geo.Sample
	failSave bool
}

func (r *mockLocationRepo) SaveSample(_ context.Context, s geo.Sample) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failSave {
		return context.DeadlineExceeded
	}
	r.samples = append(r.samples, s)
	return nil
}

func (r *mockLocationRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.samples)
}

type mockLatestStore struct {
	mu     sync.Mutex
	latest map[string]geo.Sample
}

func newMockLatestStore() *mockLatestStore {
	return &mockLatestStore{latest: make(map[string]geo.Sample)}
}

func (s *mockLatestStore) SetLatest(_ context.Context, sample geo.Sample) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest[sample.TripID] = sample
	return nil
}

func (s *mockLatestStore) Latest(_ context.Context, tripID string) (geo.Sample, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sample, ok := s.latest[tripID]; ok {
		return sample, nil
	}
	return geo.Sample{}, trip.ErrNoActiveTrip
}

type mockBusLock struct {
	mu    sync.Mutex
	locks map[string]string // busID -> tripID
}

func newMockBusLock() *mockBusLock {
	return &mockBusLock{locks: make(map[string]string)}
}

func (l *mockBusLock) Acquire(_ context.Context, busID, tripID string) (bool, string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if holder, ok := l.locks[busID]; ok {
		return false, holder, nil
	}
	l.locks[busID] = tripID
	return true, "", nil
}

func (l *mockBusLock) Holder(_ context.Context, busID string) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.locks[busID], nil
}

func (l *mockBusLock) Steal(_ context.Context, busID, tripID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.locks[busID] = tripID
	return nil
}

func (l *mockBusLock) Release(_ context.Context, busID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.locks, busID)
	return nil
}

type mockFanout struct {
	mu        sync.Mutex
	locations []contracts.BusLocationMessage
	events    []contracts.TripEventMessage
}

func (f *mockFanout) PublishBusLocation(_ context.Context, msg contracts.BusLocationMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.locations = append(f.locations, msg)
	return nil
}

func (f *mockFanout) PublishTripEvent(_ context.Context, msg contracts.TripEventMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, msg)
	return nil
}

func (f *mockFanout) eventNames() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var names []string
	for _, e := range f.events {
		names = append(names, e.Event)
	}
	return names
}

type mockHub struct {
	mu     sync.Mutex
	frames map[string][][]byte // room -> frames
}

func newMockHub() *mockHub {
	return &mockHub{frames: make(map[string][][]byte)}
}

func (h *mockHub) Broadcast(room string, frame []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.frames[room] = append(h.frames[room], frame)
}

func (h *mockHub) count(room string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.frames[room])
}

type testEnv struct {
	svc    *Service
	trips  *mockTripRepo
	locs   *mockLocationRepo
	latest *mockLatestStore
	locker *mockBusLock
	fanout *mockFanout
	hub    *mockHub
}

func newTestEnv(t *testing.T, idle time.Duration) *testEnv {
	t.Helper()
	if idle <= 0 {
		idle = time.Hour
	}
	env := &testEnv{
		trips:  newMockTripRepo(),
		locs:   &mockLocationRepo{},
		latest: newMockLatestStore(),
		locker: newMockBusLock(),
		fanout: &mockFanout{},
		hub:    newMockHub(),
	}
	env.svc = NewService(ServiceDeps{
		Logger:    slog.Default(),
		Trips:     env.trips,
		Locations: env.locs,
		Latest:    env.latest,
		Locker:    env.locker,
		Fanout:    env.fanout,
		Hub:       env.hub,
		IdleAfter: idle,
	})
	t.Cleanup(env.svc.Close)
	return env
}

func validUpdate(tripID, busID, driverID string) contracts.DriverLocationUpdate {
	return contracts.DriverLocationUpdate{
		TripID:   tripID,
		BusID:    busID,
		DriverID: driverID,
		Lat:      41.31,
		Lng:      69.28,
		Speed:    37,
		Heading:  180,
	}
}
