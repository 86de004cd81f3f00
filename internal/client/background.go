package client

import (
	"context"
	"log/slog"
	"time"

	"bustrack/internal/domain/geo"
)

// Reporter is the headless delivery path: a separate execution context that
// receives its operating parameters exclusively through the persisted Store
// and talks to the backend over the REST fallback. It never touches the
// foreground Session.
type Reporter struct {
	store   *Store
	baseURL string
	policy  RetryPolicy
	log     *slog.Logger
}

func NewReporter(store *Store, baseURL string, policy RetryPolicy, log *slog.Logger) *Reporter {
	if log == nil {
		log = slog.Default()
	}
	return &Reporter{store: store, baseURL: baseURL, policy: policy, log: log}
}

// ReportOnce loads the identity snapshot and delivers a single position.
// speedMS is the raw GPS speed in m/s; conversion and validation follow the
// same rules as the foreground emission path.
func (r *Reporter) ReportOnce(ctx context.Context, lat, lng, speedMS, heading float64) error {
	id, err := r.store.Identity()
	if err != nil {
		r.log.Warn("reporter_no_identity", "error", err)
		return err
	}

	sample := geo.Sample{
		TripID:         id.TripID,
		BusID:          id.BusID,
		DriverID:       id.DriverID,
		Lat:            lat,
		Lng:            lng,
		SpeedKmh:       geo.SpeedKmhFromMS(speedMS),
		HeadingDegrees: geo.NormalizeHeading(heading),
		CapturedAt:     time.Now().UTC(),
	}

	fb := NewFallback(r.baseURL, id.Token, r.policy, r.log)
	return fb.Report(ctx, sample)
}
