package tracking

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"bustrack/internal/contracts"
	"bustrack/internal/domain/geo"
	"bustrack/internal/domain/trip"
	"bustrack/internal/server/ws"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// Metrics is the slice of instrumentation the service reports into.
type Metrics interface {
	IncLocationAccepted()
	IncLocationRejected()
	IncBusOffline()
}

type nopMetrics struct{}

func (nopMetrics) IncLocationAccepted() {}
func (nopMetrics) IncLocationRejected() {}
func (nopMetrics) IncBusOffline()       {}

// Service applies the tracking rules: who may report, where samples are
// stored, and which rooms hear about them.
type Service struct {
	logger     *slog.Logger
	trips      TripRepository
	locations  LocationRepository
	latest     LatestStore
	locker     BusLocker
	fanout     FanoutPublisher
	hub        Broadcaster
	watchdog   *Watchdog
	metrics    Metrics
	validate   *validator.Validate
	instanceID string
}

type ServiceDeps struct {
	Logger    *slog.Logger
	Trips     TripRepository
	Locations LocationRepository
	Latest    LatestStore
	Locker    BusLocker
	Fanout    FanoutPublisher
	Hub       Broadcaster
	Metrics   Metrics
	IdleAfter time.Duration
}

func NewService(d ServiceDeps) *Service {
	if d.Metrics == nil {
		d.Metrics = nopMetrics{}
	}
	s := &Service{
		logger:     d.Logger,
		trips:      d.Trips,
		locations:  d.Locations,
		latest:     d.Latest,
		locker:     d.Locker,
		fanout:     d.Fanout,
		hub:        d.Hub,
		metrics:    d.Metrics,
		validate:   validator.New(),
		instanceID: uuid.New().String(),
	}
	s.watchdog = NewWatchdog(d.IdleAfter, s.markOffline)
	return s
}

// AcceptLocation ingests one driver sample: authorization against the
// active trip, persistence, local broadcast, and cross-instance fanout.
func (s *Service) AcceptLocation(ctx context.Context, driverID string, upd contracts.DriverLocationUpdate) error {
	if err := s.validate.Struct(upd); err != nil {
		s.metrics.IncLocationRejected()
		return err
	}
	if upd.DriverID != driverID {
		s.metrics.IncLocationRejected()
		return trip.ErrDriverMismatch
	}

	sess, err := s.trips.ByID(ctx, upd.TripID)
	if err != nil {
		s.metrics.IncLocationRejected()
		return err
	}
	if sess.Status != trip.StatusActive || sess.BusID != upd.BusID {
		s.metrics.IncLocationRejected()
		return trip.ErrNoActiveTrip
	}
	if sess.DriverID != driverID {
		s.metrics.IncLocationRejected()
		return trip.ErrDriverMismatch
	}

	sample := geo.Sample{
		TripID:         upd.TripID,
		BusID:          upd.BusID,
		DriverID:       upd.DriverID,
		Lat:            upd.Lat,
		Lng:            upd.Lng,
		SpeedKmh:       upd.Speed,
		HeadingDegrees: geo.NormalizeHeading(upd.Heading),
		CapturedAt:     time.Now().UTC(),
	}
	if err := sample.Validate(); err != nil {
		s.metrics.IncLocationRejected()
		return err
	}

	if err := s.locations.SaveSample(ctx, sample); err != nil {
		// history write failure must not stall the realtime path
		s.logger.Error("save_sample_failed", "trip_id", sample.TripID, "error", err)
	}
	if err := s.latest.SetLatest(ctx, sample); err != nil {
		s.logger.Warn("set_latest_failed", "trip_id", sample.TripID, "error", err)
	}

	loc := contracts.BusLocation{
		TripID:  sample.TripID,
		BusID:   sample.BusID,
		Lat:     sample.Lat,
		Lng:     sample.Lng,
		Speed:   sample.SpeedKmh,
		Heading: sample.HeadingDegrees,
		Time:    sample.CapturedAt,
	}
	s.broadcastBusLocation(loc)

	if err := s.fanout.PublishBusLocation(ctx, contracts.BusLocationMessage{
		BusLocation: loc,
		DriverID:    sample.DriverID,
		Envelope:    s.envelope(),
	}); err != nil {
		s.logger.Warn("fanout_publish_failed", "trip_id", sample.TripID, "error", err)
	}

	s.watchdog.Touch(sample.TripID, sample.BusID)
	s.metrics.IncLocationAccepted()
	return nil
}

// RebroadcastLocation delivers a sibling instance's fanout message to the
// local rooms. Messages this instance produced are skipped; its own
// broadcast already happened inline.
func (s *Service) RebroadcastLocation(msg contracts.BusLocationMessage) {
	if msg.Producer == s.instanceID {
		return
	}
	s.broadcastBusLocation(msg.BusLocation)
}

// RebroadcastTripEvent does the same for busOffline / stopProgressed /
// attendanceMarked fanout messages.
func (s *Service) RebroadcastTripEvent(msg contracts.TripEventMessage) {
	if msg.Producer == s.instanceID {
		return
	}
	frame, err := contracts.NewFrame(msg.Event, json.RawMessage(msg.Payload))
	if err != nil {
		s.logger.Warn("rebroadcast_bad_payload", "event", msg.Event, "error", err)
		return
	}
	s.broadcastToTripRooms(msg.TripID, msg.BusID, frame)
}

// Latest returns the most recent accepted sample for a trip.
func (s *Service) Latest(ctx context.Context, tripID string) (geo.Sample, error) {
	return s.latest.Latest(ctx, tripID)
}

// ProgressStop pushes a stopProgressed event to the trip's observers.
func (s *Service) ProgressStop(ctx context.Context, driverID string, p contracts.StopProgressed) error {
	sess, err := s.trips.ByID(ctx, p.TripID)
	if err != nil {
		return err
	}
	if sess.DriverID != driverID {
		return trip.ErrDriverMismatch
	}
	if !sess.Live() {
		return trip.ErrTripEnded
	}
	return s.publishTripEvent(ctx, contracts.EventStopProgressed, sess.ID, sess.BusID, p)
}

// MarkAttendance pushes an attendanceMarked event to the trip's observers.
func (s *Service) MarkAttendance(ctx context.Context, driverID string, p contracts.AttendanceMarked) error {
	sess, err := s.trips.ByID(ctx, p.TripID)
	if err != nil {
		return err
	}
	if sess.DriverID != driverID {
		return trip.ErrDriverMismatch
	}
	if !sess.Live() {
		return trip.ErrTripEnded
	}
	return s.publishTripEvent(ctx, contracts.EventAttendanceMarked, sess.ID, sess.BusID, p)
}

// Close stops the idle watchdog.
func (s *Service) Close() {
	s.watchdog.Close()
}

func (s *Service) markOffline(tripID, busID string) {
	s.logger.Warn("trip_idle", "trip_id", tripID, "bus_id", busID)
	s.metrics.IncBusOffline()
	if err := s.publishTripEvent(context.Background(), contracts.EventBusOffline, tripID, busID,
		contracts.BusOffline{TripID: tripID}); err != nil {
		s.logger.Warn("bus_offline_publish_failed", "trip_id", tripID, "error", err)
	}
}

func (s *Service) publishTripEvent(ctx context.Context, event, tripID, busID string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	frame, err := contracts.NewFrame(event, json.RawMessage(body))
	if err != nil {
		return err
	}
	s.broadcastToTripRooms(tripID, busID, frame)
	return s.fanout.PublishTripEvent(ctx, contracts.TripEventMessage{
		Event:    event,
		TripID:   tripID,
		BusID:    busID,
		Payload:  body,
		Envelope: s.envelope(),
	})
}

func (s *Service) broadcastBusLocation(loc contracts.BusLocation) {
	frame, err := contracts.NewFrame(contracts.EventBusLocation, loc)
	if err != nil {
		s.logger.Error("frame_encode_failed", "error", err)
		return
	}
	s.broadcastToTripRooms(loc.TripID, loc.BusID, frame)
}

func (s *Service) broadcastToTripRooms(tripID, busID string, frame []byte) {
	if busID != "" {
		s.hub.Broadcast(ws.BusRoom(busID), frame)
	}
	if tripID != "" {
		s.hub.Broadcast(ws.TripRoom(tripID), frame)
	}
	s.hub.Broadcast(ws.AdminFleetRoom, frame)
}

func (s *Service) envelope() contracts.Envelope {
	return contracts.Envelope{
		CorrelationID: uuid.New().String(),
		Producer:      s.instanceID,
		SentAt:        time.Now().UTC(),
	}
}
