package postgres

import (
	"context"
	"errors"

	"bustrack/internal/domain/trip"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TripRepo persists trip sessions using pgx and plain SQL.
type TripRepo struct {
	pool *pgxpool.Pool
}

func NewTripRepo(pool *pgxpool.Pool) *TripRepo {
	return &TripRepo{pool: pool}
}

func (repo *TripRepo) Create(ctx context.Context, s *trip.Session) error {
	_, err := repo.pool.Exec(ctx, `
		INSERT INTO trips (id, bus_id, driver_id, route_id, status, started_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, s.ID, s.BusID, s.DriverID, s.RouteID, s.Status, s.StartedAt)
	return err
}

func (repo *TripRepo) Update(ctx context.Context, s *trip.Session) error {
	_, err := repo.pool.Exec(ctx, `
		UPDATE trips
		SET status = $1,
		    ended_at = $2
		WHERE id = $3
	`, s.Status, s.EndedAt, s.ID)
	return err
}

func (repo *TripRepo) ByID(ctx context.Context, id string) (*trip.Session, error) {
	return repo.queryOne(ctx, `
		SELECT id, bus_id, driver_id, route_id, status, started_at, ended_at
		FROM trips
		WHERE id = $1
	`, id)
}

func (repo *TripRepo) ActiveByBus(ctx context.Context, busID string) (*trip.Session, error) {
	return repo.queryOne(ctx, `
		SELECT id, bus_id, driver_id, route_id, status, started_at, ended_at
		FROM trips
		WHERE bus_id = $1 AND status IN ('ACTIVE', 'PAUSED')
		ORDER BY started_at DESC
		LIMIT 1
	`, busID)
}

func (repo *TripRepo) ActiveByDriver(ctx context.Context, driverID string) (*trip.Session, error) {
	return repo.queryOne(ctx, `
		SELECT id, bus_id, driver_id, route_id, status, started_at, ended_at
		FROM trips
		WHERE driver_id = $1 AND status IN ('ACTIVE', 'PAUSED')
		ORDER BY started_at DESC
		LIMIT 1
	`, driverID)
}

func (repo *TripRepo) ListActive(ctx context.Context) ([]*trip.Session, error) {
	rows, err := repo.pool.Query(ctx, `
		SELECT id, bus_id, driver_id, route_id, status, started_at, ended_at
		FROM trips
		WHERE status IN ('ACTIVE', 'PAUSED')
		ORDER BY started_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []*trip.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

func (repo *TripRepo) queryOne(ctx context.Context, sql string, arg any) (*trip.Session, error) {
	s, err := scanSession(repo.pool.QueryRow(ctx, sql, arg))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, trip.ErrNoActiveTrip
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*trip.Session, error) {
	var s trip.Session
	var status string
	if err := row.Scan(&s.ID, &s.BusID, &s.DriverID, &s.RouteID, &status, &s.StartedAt, &s.EndedAt); err != nil {
		return nil, err
	}
	parsed, err := trip.ParseStatus(status)
	if err != nil {
		return nil, err
	}
	s.Status = parsed
	return &s, nil
}
