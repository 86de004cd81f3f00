package driveragent

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"bustrack/internal/client"
	"bustrack/internal/domain/geo"
	"bustrack/internal/domain/user"
	"bustrack/internal/logger"
)

// AgentConfig is everything the driver agent needs to run a trip.
type AgentConfig struct {
	ServerURL string
	Token     string
	TripID    string
	BusID     string
	DriverID  string
	StorePath string
	Interval  time.Duration
}

// Run drives one simulated bus: it opens a tracking session, keeps the
// persisted identity fresh for the background reporter, and emits a GPS
// sample every interval until the context is cancelled.
func Run(ctx context.Context, cfg AgentConfig) error {
	log := logger.New("driver-agent")

	if cfg.TripID == "" || cfg.BusID == "" || cfg.DriverID == "" {
		return errors.New("trip, bus, and driver ids are all required")
	}

	store := client.NewStore(cfg.StorePath)
	if err := store.SaveIdentity(client.IdentitySnapshot{
		TripID:   cfg.TripID,
		BusID:    cfg.BusID,
		DriverID: cfg.DriverID,
		Token:    cfg.Token,
	}); err != nil {
		return fmt.Errorf("persist identity: %w", err)
	}

	sess, err := client.Open(ctx, client.Options{
		URL:    cfg.ServerURL,
		Token:  cfg.Token,
		Role:   user.RoleDriver,
		Logger: log,
	})
	if err != nil {
		return fmt.Errorf("open tracking session: %w", err)
	}
	defer sess.Close()

	stop := sess.OnStateChange(func(st client.State) {
		logger.Info(ctx, log, "session_state", "Tracking session state changed",
			"state", st.String(), "queued", sess.QueueLen())
	})
	defer stop()

	sess.JoinBus(cfg.BusID)
	sess.JoinTrip(cfg.TripID)

	sim := newGPSSim(cfg.BusID)
	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	logger.Info(ctx, log, "agent_started", "Driver agent emitting samples",
		"trip_id", cfg.TripID, "bus_id", cfg.BusID, "interval", cfg.Interval.String())

	for {
		select {
		case <-ctx.Done():
			logger.Info(ctx, log, "agent_stopped", "Driver agent shutting down",
				"queued", sess.QueueLen())
			return nil
		case <-ticker.C:
			lat, lng, speedMS, heading := sim.next()
			sent := sess.Emit(geo.Sample{
				TripID:         cfg.TripID,
				BusID:          cfg.BusID,
				DriverID:       cfg.DriverID,
				Lat:            lat,
				Lng:            lng,
				SpeedKmh:       geo.SpeedKmhFromMS(speedMS),
				HeadingDegrees: heading,
				CapturedAt:     time.Now().UTC(),
			})
			if !sent {
				logger.Warn(ctx, log, "sample_deferred", "Sample queued for reconnect",
					"queued", sess.QueueLen(), "state", sess.State().String())
			}
		}
	}
}

// gpsSim produces a plausible bus track: a slow random walk with smooth
// heading drift, seeded per bus so parallel agents diverge.
type gpsSim struct {
	rng     *rand.Rand
	lat     float64
	lng     float64
	heading float64
	speedMS float64
}

func newGPSSim(seedKey string) *gpsSim {
	var seed int64
	for _, c := range seedKey {
		seed = seed*31 + int64(c)
	}
	rng := rand.New(rand.NewSource(seed + time.Now().UnixNano()))
	return &gpsSim{
		rng:     rng,
		lat:     41.2995 + rng.Float64()*0.05,
		lng:     69.2401 + rng.Float64()*0.05,
		heading: rng.Float64() * 360,
		speedMS: 8,
	}
}

func (g *gpsSim) next() (lat, lng, speedMS, heading float64) {
	g.heading = geo.NormalizeHeading(g.heading + (g.rng.Float64()-0.5)*20)
	g.speedMS = math.Max(0, math.Min(22, g.speedMS+(g.rng.Float64()-0.5)*3))

	// ~1e-5 degrees per meter near the equator; close enough for a sim
	dist := g.speedMS * 1e-5
	rad := g.heading * math.Pi / 180
	g.lat += dist * math.Cos(rad)
	g.lng += dist * math.Sin(rad)

	return g.lat, g.lng, g.speedMS, g.heading
}
