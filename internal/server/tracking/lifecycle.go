package tracking

import (
	"context"
	"errors"

	"bustrack/internal/contracts"
	"bustrack/internal/domain/trip"
)

// SelectBus checks a bus is free for the driver before the trip form is
// submitted. A locked bus surfaces the holding trip so the UI can offer
// force takeover up front.
func (s *Service) SelectBus(ctx context.Context, busID string) error {
	if busID == "" {
		return trip.ErrInvalidBusID
	}
	holder, err := s.locker.Holder(ctx, busID)
	if err != nil {
		return err
	}
	if holder != "" {
		return &trip.ConflictError{BusID: busID, ActiveTripID: holder}
	}
	return nil
}

// StartTrip opens a session for driverID on busID. The bus lock decides
// the winner when two drivers race for the same bus; the loser receives a
// ConflictError naming the holding trip. With force set, the holder's
// session is ended and the lock is stolen.
func (s *Service) StartTrip(ctx context.Context, driverID, busID, routeID string, force bool) (*trip.Session, error) {
	sess, err := trip.NewSession(busID, driverID, routeID)
	if err != nil {
		return nil, err
	}

	existing, err := s.trips.ActiveByDriver(ctx, driverID)
	if err != nil && !errors.Is(err, trip.ErrNoActiveTrip) {
		return nil, err
	}
	if existing != nil && existing.Live() {
		if existing.BusID == busID {
			return existing, nil
		}
		return nil, trip.ErrDriverBusy
	}

	if force {
		if err := s.endHolder(ctx, busID); err != nil {
			return nil, err
		}
		if err := s.locker.Steal(ctx, busID, sess.ID); err != nil {
			return nil, err
		}
	} else {
		held, holder, err := s.locker.Acquire(ctx, busID, sess.ID)
		if err != nil {
			return nil, err
		}
		if !held {
			return nil, &trip.ConflictError{BusID: busID, ActiveTripID: holder}
		}
	}

	if err := s.trips.Create(ctx, sess); err != nil {
		_ = s.locker.Release(ctx, busID)
		return nil, err
	}

	// arm the idle window from trip start, not from the first sample
	s.watchdog.Touch(sess.ID, busID)
	s.logger.Info("trip_started", "trip_id", sess.ID, "bus_id", busID, "driver_id", driverID, "force", force)
	return sess, nil
}

// PauseTrip suspends reporting. The bus lock is kept so nobody else can
// claim the bus mid-route.
func (s *Service) PauseTrip(ctx context.Context, driverID, tripID string) (*trip.Session, error) {
	sess, err := s.ownedTrip(ctx, driverID, tripID)
	if err != nil {
		return nil, err
	}
	if err := sess.Pause(); err != nil {
		return nil, err
	}
	if err := s.trips.Update(ctx, sess); err != nil {
		return nil, err
	}
	s.watchdog.Forget(sess.ID)
	s.logger.Info("trip_paused", "trip_id", sess.ID)
	return sess, nil
}

// ResumeTrip returns a paused session to active and re-arms the watchdog.
func (s *Service) ResumeTrip(ctx context.Context, driverID, tripID string) (*trip.Session, error) {
	sess, err := s.ownedTrip(ctx, driverID, tripID)
	if err != nil {
		return nil, err
	}
	if err := sess.Resume(); err != nil {
		return nil, err
	}
	if err := s.trips.Update(ctx, sess); err != nil {
		return nil, err
	}
	s.watchdog.Touch(sess.ID, sess.BusID)
	s.logger.Info("trip_resumed", "trip_id", sess.ID)
	return sess, nil
}

// EndTrip closes the session and releases the bus lock.
func (s *Service) EndTrip(ctx context.Context, driverID, tripID string) (*trip.Session, error) {
	sess, err := s.ownedTrip(ctx, driverID, tripID)
	if err != nil {
		return nil, err
	}
	if err := sess.End(); err != nil {
		return nil, err
	}
	if err := s.trips.Update(ctx, sess); err != nil {
		return nil, err
	}
	s.watchdog.Forget(sess.ID)
	if err := s.locker.Release(ctx, sess.BusID); err != nil {
		s.logger.Warn("lock_release_failed", "bus_id", sess.BusID, "error", err)
	}
	s.logger.Info("trip_ended", "trip_id", sess.ID, "bus_id", sess.BusID)
	return sess, nil
}

// ResetBus is the admin escape hatch for a stuck bus: the holding session,
// if any, is force-ended and the lock cleared. Subscribers get busOffline
// so stale markers disappear immediately.
func (s *Service) ResetBus(ctx context.Context, busID string) error {
	if busID == "" {
		return trip.ErrInvalidBusID
	}
	sess, err := s.trips.ActiveByBus(ctx, busID)
	if err != nil && !errors.Is(err, trip.ErrNoActiveTrip) {
		return err
	}
	if sess != nil && sess.Live() {
		if err := sess.End(); err == nil {
			if err := s.trips.Update(ctx, sess); err != nil {
				return err
			}
		}
		s.watchdog.Forget(sess.ID)
		if err := s.publishTripEvent(ctx, contracts.EventBusOffline, sess.ID, busID,
			contracts.BusOffline{TripID: sess.ID}); err != nil {
			s.logger.Warn("bus_offline_publish_failed", "trip_id", sess.ID, "error", err)
		}
	}
	if err := s.locker.Release(ctx, busID); err != nil {
		return err
	}
	s.logger.Info("bus_reset", "bus_id", busID)
	return nil
}

// ActiveForDriver finds the driver's live session, if any.
func (s *Service) ActiveForDriver(ctx context.Context, driverID string) (*trip.Session, error) {
	sess, err := s.trips.ActiveByDriver(ctx, driverID)
	if err != nil {
		return nil, err
	}
	if sess == nil || !sess.Live() {
		return nil, trip.ErrNoActiveTrip
	}
	return sess, nil
}

// ListActive returns every live session for the fleet view.
func (s *Service) ListActive(ctx context.Context) ([]*trip.Session, error) {
	return s.trips.ListActive(ctx)
}

func (s *Service) ownedTrip(ctx context.Context, driverID, tripID string) (*trip.Session, error) {
	sess, err := s.trips.ByID(ctx, tripID)
	if err != nil {
		return nil, err
	}
	if sess.DriverID != driverID {
		return nil, trip.ErrDriverMismatch
	}
	return sess, nil
}

func (s *Service) endHolder(ctx context.Context, busID string) error {
	sess, err := s.trips.ActiveByBus(ctx, busID)
	if err != nil {
		if errors.Is(err, trip.ErrNoActiveTrip) {
			return nil
		}
		return err
	}
	if sess == nil || !sess.Live() {
		return nil
	}
	if err := sess.End(); err != nil {
		return err
	}
	if err := s.trips.Update(ctx, sess); err != nil {
		return err
	}
	s.watchdog.Forget(sess.ID)
	s.logger.Warn("trip_force_ended", "trip_id", sess.ID, "bus_id", busID)
	return nil
}
