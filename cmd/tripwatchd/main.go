package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tripwatch/tripwatch/internal/config"
	"github.com/tripwatch/tripwatch/internal/location"
	"github.com/tripwatch/tripwatch/internal/logger"
	"github.com/tripwatch/tripwatch/internal/nmea"
	"github.com/tripwatch/tripwatch/internal/pid"
	"github.com/tripwatch/tripwatch/internal/store"
	"github.com/tripwatch/tripwatch/internal/tracker"
)

const statusInterval = 5 * time.Second

var (
	cfg *config.Config
	svc *tracker.Service
)

func init() {
	var err error
	cfg, err = config.Load()
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.Debug, cfg.Verbose, logger.IsService())
	logger.Debug().Msg("Config loaded")
}

func main() {
	if err := pid.Write(); err != nil {
		logger.Fatal().Err(err).Msg("failed to write pid file")
	}
	defer func() {
		if err := pid.Remove(); err != nil {
			logger.Error().Err(err).Msg("failed to remove pid file")
		}
	}()

	trips, err := store.NewService(store.Config{
		Enabled: cfg.Trips,
		DBPath:  cfg.TripsDB,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize trip store")
	}

	svc = tracker.New(cfg, trips)
	defer func() {
		if err := svc.Close(); err != nil {
			logger.Error().Err(err).Msg("error during shutdown")
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go handleSignals(cancel)

	src, closeSrc, err := openSource(ctx)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open fix source")
	}
	defer closeSrc()

	svc.StartTracking()
	svc.StartDiagnostics()

	if err := loop(ctx, src); err != nil {
		logger.Error().Err(err).Msg("error in main loop")
	}
	logger.Info().Msg("Exiting...")
}

// openSource opens the configured NMEA stream and starts its reader.
func openSource(ctx context.Context) (*nmea.Source, func(), error) {
	rc, err := nmea.Open(cfg.Source)
	if err != nil {
		return nil, nil, err
	}

	src := nmea.NewSource(rc)
	go func() {
		if err := src.Run(ctx); err != nil {
			logger.Error().Err(err).Msg("fix source terminated")
		}
	}()

	return src, func() { _ = rc.Close() }, nil
}

func loop(ctx context.Context, src *nmea.Source) error {
	ticker := time.NewTicker(statusInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case fix, ok := <-src.Fixes():
			if !ok {
				logger.Info().Msg("Fix source drained")

				return nil
			}
			svc.HandleFix(fix)
			logFix(fix)
		case <-ticker.C:
			logState(svc.LiveState())
		}
	}
}

func handleSignals(cancel context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
	logger.Info().Msg("Received termination signal.")
	cancel()
}

func logFix(fix location.Fix) {
	if !cfg.Debug {
		return
	}

	logger.Debug().
		Float64("latitude", fix.Latitude).
		Float64("longitude", fix.Longitude).
		Float64("speed", fix.Speed).
		Float64("accuracy", fix.HorizontalAccuracy).
		Time("timestamp", fix.Timestamp).
		Msg("")
}

func logState(state tracker.LiveState) {
	if cfg.Debug || cfg.Verbose {
		logger.Info().
			Bool("trip_active", state.IsTripActive).
			Float64("trip_distance", state.CurrentTripDistance).
			Float64("total_distance", state.TotalAccumulatedDistance).
			Bool("diagnostics", state.DiagnosticMode).
			Int("issues", state.IssueCount).
			Msg("")
	}
}
