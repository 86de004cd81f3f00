package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Keys the foreground persists so a headless context can reconstruct
// enough identity to deliver a location without any in-memory state.
const (
	KeyActiveTripID   = "active_trip_id"
	KeyActiveBusID    = "active_bus_id"
	KeyActiveDriverID = "active_driver_id"
	KeyAuthToken      = "auth_token"
)

// ErrNoIdentity means the store does not hold a complete identity snapshot
// (no trip has been started, or it was cleared on trip end).
var ErrNoIdentity = errors.New("no persisted trip identity")

// Store is a small file-backed key-value store. It is the only channel
// between the foreground session and the background reporter; they share no
// memory.
type Store struct {
	mu   sync.Mutex
	path string
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

// Set writes one key. Read-modify-write under the lock; the file is
// replaced atomically so a crashed writer never leaves a torn snapshot.
func (st *Store) Set(key, value string) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	kv, err := st.load()
	if err != nil {
		return err
	}
	kv[key] = value
	return st.save(kv)
}

// Get reads one key; missing keys return "".
func (st *Store) Get(key string) (string, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	kv, err := st.load()
	if err != nil {
		return "", err
	}
	return kv[key], nil
}

// Delete removes one key.
func (st *Store) Delete(key string) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	kv, err := st.load()
	if err != nil {
		return err
	}
	delete(kv, key)
	return st.save(kv)
}

// IdentitySnapshot is the read-only view the background reporter operates
// from, refreshed by the foreground whenever a trip starts.
type IdentitySnapshot struct {
	TripID   string
	BusID    string
	DriverID string
	Token    string
}

// SaveIdentity persists the full snapshot in one write.
func (st *Store) SaveIdentity(id IdentitySnapshot) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	kv, err := st.load()
	if err != nil {
		return err
	}
	kv[KeyActiveTripID] = id.TripID
	kv[KeyActiveBusID] = id.BusID
	kv[KeyActiveDriverID] = id.DriverID
	kv[KeyAuthToken] = id.Token
	return st.save(kv)
}

// ClearIdentity removes the trip identity, keeping the auth token.
func (st *Store) ClearIdentity() error {
	st.mu.Lock()
	defer st.mu.Unlock()

	kv, err := st.load()
	if err != nil {
		return err
	}
	delete(kv, KeyActiveTripID)
	delete(kv, KeyActiveBusID)
	delete(kv, KeyActiveDriverID)
	return st.save(kv)
}

// Identity returns the current snapshot, or ErrNoIdentity when incomplete.
func (st *Store) Identity() (IdentitySnapshot, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	kv, err := st.load()
	if err != nil {
		return IdentitySnapshot{}, err
	}
	id := IdentitySnapshot{
		TripID:   kv[KeyActiveTripID],
		BusID:    kv[KeyActiveBusID],
		DriverID: kv[KeyActiveDriverID],
		Token:    kv[KeyAuthToken],
	}
	if id.TripID == "" || id.BusID == "" || id.DriverID == "" || id.Token == "" {
		return IdentitySnapshot{}, ErrNoIdentity
	}
	return id, nil
}

func (st *Store) load() (map[string]string, error) {
	data, err := os.ReadFile(st.path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read store: %w", err)
	}
	kv := map[string]string{}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &kv); err != nil {
			return nil, fmt.Errorf("decode store: %w", err)
		}
	}
	return kv, nil
}

func (st *Store) save(kv map[string]string) error {
	data, err := json.Marshal(kv)
	if err != nil {
		return err
	}
	tmp := st.path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(st.path), 0o700); err != nil {
		return err
	}
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, st.path)
}
