package store

import (
	"context"

	"github.com/tripwatch/tripwatch/internal/trip"
)

// Collector receives each closed trip exactly once.
type Collector interface {
	SaveTrip(ctx context.Context, t *trip.Trip) error
	RecentTrips(ctx context.Context, limit int) ([]trip.Trip, error)
	StoredTotalDistance(ctx context.Context) (float64, error)
	Close() error
}

// Repository defines the trip storage interface.
type Repository interface {
	Store(ctx context.Context, t *trip.Trip) error
	Recent(ctx context.Context, limit int) ([]trip.Trip, error)
	TotalDistance(ctx context.Context) (float64, error)
	Close() error
}
