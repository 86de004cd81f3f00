package redisstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// lockTTL bounds how long a crashed instance can hold a bus hostage.
// Every accepted sample and lifecycle call goes through the service, so a
// live trip refreshes the lock implicitly on acquisition and steal.
const lockTTL = 12 * time.Hour

// BusLock arbitrates the single-active-trip-per-bus rule across instances.
// The lock value is the holding trip's id, so conflicts can name the
// session the caller would be taking over.
type BusLock struct {
	client *redis.Client
}

func NewBusLock(client *redis.Client) *BusLock {
	return &BusLock{client: client}
}

func busKey(busID string) string {
	return fmt.Sprintf("lock:bus:%s", busID)
}

// Acquire claims busID for tripID with SETNX. When the claim fails the
// current holder's trip id is returned alongside held=false.
func (l *BusLock) Acquire(ctx context.Context, busID, tripID string) (bool, string, error) {
	ok, err := l.client.SetNX(ctx, busKey(busID), tripID, lockTTL).Result()
	if err != nil {
		return false, "", err
	}
	if ok {
		return true, "", nil
	}
	holder, err := l.Holder(ctx, busID)
	if err != nil {
		return false, "", err
	}
	return false, holder, nil
}

// Holder returns the trip currently holding busID, or "" when free.
func (l *BusLock) Holder(ctx context.Context, busID string) (string, error) {
	holder, err := l.client.Get(ctx, busKey(busID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return holder, nil
}

// Steal overwrites the lock unconditionally. Force takeover only.
func (l *BusLock) Steal(ctx context.Context, busID, tripID string) error {
	return l.client.Set(ctx, busKey(busID), tripID, lockTTL).Err()
}

// Release frees the bus.
func (l *BusLock) Release(ctx context.Context, busID string) error {
	return l.client.Del(ctx, busKey(busID)).Err()
}
