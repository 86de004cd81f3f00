package postgres

import (
	"context"

	"bustrack/internal/domain/geo"

	"github.com/jackc/pgx/v5/pgxpool"
)

// LocationRepo appends trip location history rows.
type LocationRepo struct {
	pool *pgxpool.Pool
}

func NewLocationRepo(pool *pgxpool.Pool) *LocationRepo {
	return &LocationRepo{pool: pool}
}

func (repo *LocationRepo) SaveSample(ctx context.Context, sample geo.Sample) error {
	_, err := repo.pool.Exec(ctx, `
		INSERT INTO trip_locations (trip_id, bus_id, driver_id, lat, lng, speed_kmh, heading, captured_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		sample.TripID,
		sample.BusID,
		sample.DriverID,
		sample.Lat,
		sample.Lng,
		sample.SpeedKmh,
		sample.HeadingDegrees,
		sample.CapturedAt,
	)
	return err
}
