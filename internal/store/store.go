package store

import (
	"context"

	"github.com/tripwatch/tripwatch/internal/errors"
	"github.com/tripwatch/tripwatch/internal/logger"
	"github.com/tripwatch/tripwatch/internal/trip"
)

type service struct {
	repo Repository
	cfg  Config
}

// No-op implementation used when persistence is disabled
type noopCollector struct{}

func NewService(cfg Config) (Collector, error) {
	errFactory := errors.New()

	if err := cfg.Validate(); err != nil {
		return nil, errFactory.Wrap(ErrInvalidConfig, err)
	}

	if !cfg.Enabled {
		logger.Debug().Msg("Trip persistence disabled, using no-op collector")
		return &noopCollector{}, nil
	}

	repo, err := NewRepository(cfg)
	if err != nil {
		return nil, err // Already wrapped with appropriate error
	}

	logger.Debug().Str("db_path", cfg.DBPath).Msg("Trip store initialized")

	return &service{
		repo: repo,
		cfg:  cfg,
	}, nil
}

func (s *service) SaveTrip(ctx context.Context, t *trip.Trip) error {
	errFactory := errors.New()

	if t == nil {
		return errFactory.New(ErrInvalidTrip)
	}

	select {
	case <-ctx.Done():
		return errFactory.Wrap(ErrOperationTimeout, ctx.Err())
	default:
		if err := s.repo.Store(ctx, t); err != nil {
			return errFactory.Wrap(ErrSaveTrip, err)
		}
	}

	return nil
}

func (s *service) RecentTrips(ctx context.Context, limit int) ([]trip.Trip, error) {
	return s.repo.Recent(ctx, limit)
}

func (s *service) StoredTotalDistance(ctx context.Context) (float64, error) {
	return s.repo.TotalDistance(ctx)
}

func (s *service) Close() error {
	errFactory := errors.New()

	if err := s.repo.Close(); err != nil {
		return errFactory.Wrap(ErrServiceShutdown, err)
	}
	return nil
}

func (*noopCollector) SaveTrip(_ context.Context, _ *trip.Trip) error {
	return nil
}

func (*noopCollector) RecentTrips(_ context.Context, _ int) ([]trip.Trip, error) {
	return nil, nil
}

func (*noopCollector) StoredTotalDistance(_ context.Context) (float64, error) {
	return 0, nil
}

func (*noopCollector) Close() error {
	return nil
}
