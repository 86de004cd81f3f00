package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"bustrack/internal/domain/geo"
	"bustrack/internal/domain/trip"

	"github.com/redis/go-redis/v9"
)

const (
	latestTTL   = 24 * time.Hour
	fleetGeoKey = "buses:locations"
)

// LatestStore keeps the newest sample per trip plus a fleet-wide geo index
// of bus positions.
type LatestStore struct {
	client *redis.Client
}

func NewLatestStore(client *redis.Client) *LatestStore {
	return &LatestStore{client: client}
}

func latestKey(tripID string) string {
	return fmt.Sprintf("trip:latest:%s", tripID)
}

// SetLatest overwrites the trip's newest sample and refreshes the geo index.
func (s *LatestStore) SetLatest(ctx context.Context, sample geo.Sample) error {
	body, err := json.Marshal(sample)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, latestKey(sample.TripID), body, latestTTL).Err(); err != nil {
		return err
	}
	return s.client.GeoAdd(ctx, fleetGeoKey, &redis.GeoLocation{
		Name:      sample.BusID,
		Longitude: sample.Lng,
		Latitude:  sample.Lat,
	}).Err()
}

// Latest returns the newest sample for tripID. A trip with no sample yet
// maps to ErrNoActiveTrip so callers can 404 it uniformly.
func (s *LatestStore) Latest(ctx context.Context, tripID string) (geo.Sample, error) {
	body, err := s.client.Get(ctx, latestKey(tripID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return geo.Sample{}, trip.ErrNoActiveTrip
	}
	if err != nil {
		return geo.Sample{}, err
	}
	var sample geo.Sample
	if err := json.Unmarshal(body, &sample); err != nil {
		return geo.Sample{}, err
	}
	return sample, nil
}

// RemoveBus drops a bus from the fleet geo index when its trip ends.
func (s *LatestStore) RemoveBus(ctx context.Context, busID string) error {
	return s.client.ZRem(ctx, fleetGeoKey, busID).Err()
}
