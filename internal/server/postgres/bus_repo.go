package postgres

import (
	"context"

	"bustrack/internal/domain/fleet"

	"github.com/jackc/pgx/v5/pgxpool"
)

// BusRepo reads the fleet catalog.
type BusRepo struct {
	pool *pgxpool.Pool
}

func NewBusRepo(pool *pgxpool.Pool) *BusRepo {
	return &BusRepo{pool: pool}
}

func (repo *BusRepo) ListActive(ctx context.Context) ([]fleet.Bus, error) {
	rows, err := repo.pool.Query(ctx, `
		SELECT id, plate_number, capacity, active
		FROM buses
		WHERE active = TRUE
		ORDER BY plate_number
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var buses []fleet.Bus
	for rows.Next() {
		var b fleet.Bus
		if err := rows.Scan(&b.ID, &b.PlateNumber, &b.Capacity, &b.Active); err != nil {
			return nil, err
		}
		buses = append(buses, b)
	}
	return buses, rows.Err()
}
