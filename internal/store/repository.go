package store

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/tripwatch/tripwatch/internal/errors"
	"github.com/tripwatch/tripwatch/internal/logger"
	"github.com/tripwatch/tripwatch/internal/sanitize"
	"github.com/tripwatch/tripwatch/internal/trip"
)

type sqliteRepository struct {
	db *sql.DB
	mu sync.Mutex
}

func NewRepository(cfg Config) (Repository, error) {
	errFactory := errors.New()

	if cfg.DBPath == "" {
		return nil, errFactory.New(ErrInvalidDBPath)
	}

	logger.Debug().Msgf("Initializing trip repository at: %s", cfg.DBPath)

	// Ensure the directory exists
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), defaultDirPerm); err != nil {
		return nil, errFactory.Wrap(ErrStorageInit, err)
	}

	db, err := sql.Open("sqlite3", cfg.DBPath)
	if err != nil {
		return nil, errFactory.Wrap(ErrStorageInit, err)
	}

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, errFactory.Wrap(ErrStorageInit, err)
	}

	return &sqliteRepository{
		db: db,
	}, nil
}

func initSchema(db *sql.DB) error {
	errFactory := errors.New()

	_, err := db.Exec(`
        CREATE TABLE IF NOT EXISTS trips (
            id TEXT PRIMARY KEY,
            start_time INTEGER NOT NULL,
            end_time INTEGER NOT NULL,
            distance_meters REAL NOT NULL,
            is_synthetic INTEGER NOT NULL DEFAULT 0
        )
    `)
	if err != nil {
		return errFactory.Wrap(ErrSchemaInit, err)
	}

	return nil
}

func (r *sqliteRepository) Store(ctx context.Context, t *trip.Trip) error {
	errFactory := errors.New()

	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.ExecContext(ctx, `
        INSERT INTO trips (
            id, start_time, end_time, distance_meters, is_synthetic
        ) VALUES (?, ?, ?, ?, ?)
        ON CONFLICT(id) DO NOTHING
    `,
		t.ID.String(),
		t.StartTime.Unix(),
		t.EndTime.Unix(),
		sanitize.Distance(t.DistanceMeters),
		boolToInt(t.IsSynthetic),
	)
	if err != nil {
		return errFactory.Wrap(ErrSaveTrip, err)
	}

	return nil
}

func (r *sqliteRepository) Recent(ctx context.Context, limit int) ([]trip.Trip, error) {
	errFactory := errors.New()

	r.mu.Lock()
	defer r.mu.Unlock()

	rows, err := r.db.QueryContext(ctx, `
        SELECT id, start_time, end_time, distance_meters, is_synthetic
        FROM trips ORDER BY end_time DESC LIMIT ?
    `, limit)
	if err != nil {
		return nil, errFactory.Wrap(ErrQueryTrips, err)
	}
	defer rows.Close()

	var trips []trip.Trip
	for rows.Next() {
		var (
			id         string
			start, end int64
			distance   float64
			synthetic  int
		)
		if err := rows.Scan(&id, &start, &end, &distance, &synthetic); err != nil {
			return nil, errFactory.Wrap(ErrQueryTrips, err)
		}
		parsed, err := uuid.Parse(id)
		if err != nil {
			return nil, errFactory.Wrap(ErrQueryTrips, err)
		}
		trips = append(trips, trip.Trip{
			ID:             parsed,
			StartTime:      time.Unix(start, 0).UTC(),
			EndTime:        time.Unix(end, 0).UTC(),
			DistanceMeters: sanitize.Distance(distance),
			IsSynthetic:    synthetic != 0,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, errFactory.Wrap(ErrQueryTrips, err)
	}

	return trips, nil
}

func (r *sqliteRepository) TotalDistance(ctx context.Context) (float64, error) {
	errFactory := errors.New()

	r.mu.Lock()
	defer r.mu.Unlock()

	var total sql.NullFloat64
	err := r.db.QueryRowContext(ctx, `SELECT SUM(distance_meters) FROM trips`).Scan(&total)
	if err != nil {
		return 0, errFactory.Wrap(ErrQueryTrips, err)
	}

	return sanitize.Distance(total.Float64), nil
}

func (r *sqliteRepository) Close() error {
	errFactory := errors.New()

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.db.Close(); err != nil {
		return errFactory.Wrap(ErrStorageClose, err)
	}
	return nil
}
