// Package tracker composes the location processor, trip engine, motion
// classifier, diagnostic monitor and trip store into one explicitly owned
// service. Every control command of the daemon lives here.
package tracker

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tripwatch/tripwatch/internal/config"
	"github.com/tripwatch/tripwatch/internal/diag"
	"github.com/tripwatch/tripwatch/internal/location"
	"github.com/tripwatch/tripwatch/internal/logger"
	"github.com/tripwatch/tripwatch/internal/motion"
	"github.com/tripwatch/tripwatch/internal/sanitize"
	"github.com/tripwatch/tripwatch/internal/store"
	"github.com/tripwatch/tripwatch/internal/trip"
)

const (
	mphToMetersPerSecond = 0.44704
	saveTimeout          = 5 * time.Second
)

// LiveState is a sanitized read-only snapshot for display.
type LiveState struct {
	IsTripActive             bool
	CurrentTripDistance      float64
	TotalAccumulatedDistance float64
	DiagnosticMode           bool
	IssueCount               int
}

// Service owns one instance of every core component.
type Service struct {
	cfg *config.Config

	processor  *location.Processor
	engine     *trip.Engine
	classifier *motion.Classifier
	monitor    *diag.Monitor
	trips      store.Collector

	tracking atomic.Bool

	fixMu     sync.Mutex
	lastFixAt time.Time
}

func New(cfg *config.Config, trips store.Collector) *Service {
	s := &Service{
		cfg:   cfg,
		trips: trips,
	}

	s.processor = location.NewProcessor(location.Config{
		MaxStepMeters:     cfg.MaxStepMeters,
		MaxPlausibleSpeed: cfg.MaxPlausibleSpeed,
		WindowSize:        cfg.WindowSize,
		OnMovement: func(at time.Time, delta float64) {
			s.engine.OnMovement(at, delta)
		},
	})

	s.engine = trip.NewEngine(trip.Config{
		SpeedThreshold:         cfg.SpeedThresholdMPH * mphToMetersPerSecond,
		SpeedDetectionDuration: cfg.SpeedDetectionDuration,
		AutoStopDuration:       cfg.AutoStopDuration,
		Stream:                 s.processor,
		OnTripOpened: func(t trip.Trip) {
			logger.Info().Str("trip_id", t.ID.String()).Time("start", t.StartTime).Msg("Trip opened")
		},
		OnTripClosed: s.persistTrip,
	})

	s.classifier = motion.NewClassifier(motion.Config{
		OnChange: s.engine.HandleActivity,
	})

	s.monitor = diag.NewMonitor(diag.Config{
		Interval:  cfg.DiagInterval,
		Capacity:  cfg.DiagCapacity,
		GPSStatus: s.gpsStatus,
	})

	return s
}

// StartTracking opens the pipeline to fixes and activity events.
func (s *Service) StartTracking() {
	if s.tracking.Swap(true) {
		logger.Debug().Msg("StartTracking ignored: already tracking")

		return
	}
	logger.Info().Msg("Tracking started")
}

// StopTracking closes the pipeline. An open trip is force-closed rather
// than left unterminated.
func (s *Service) StopTracking() {
	if !s.tracking.Swap(false) {
		logger.Debug().Msg("StopTracking ignored: not tracking")

		return
	}
	s.engine.Stop()
	logger.Info().Msg("Tracking stopped")
}

// HandleFix ingests one raw position fix. Dropped while not tracking.
func (s *Service) HandleFix(fix location.Fix) {
	if !s.tracking.Load() {
		return
	}

	// Arrival time, not fix.Timestamp: replayed streams carry GPS time far
	// behind the wall clock.
	s.fixMu.Lock()
	s.lastFixAt = time.Now()
	s.fixMu.Unlock()

	s.processor.Ingest(fix)
	s.classifier.Observe(fix.Speed)
}

// HandleActivity delivers an externally produced motion classification,
// bypassing the built-in classifier.
func (s *Service) HandleActivity(a trip.Activity) {
	if !s.tracking.Load() {
		return
	}
	s.engine.HandleActivity(a)
}

// StartTrip is the manual trip-start override.
func (s *Service) StartTrip(synthetic bool) {
	s.engine.StartTrip(synthetic)
}

// StopTrip is the manual trip-stop override.
func (s *Service) StopTrip() {
	s.engine.StopTrip()
}

// ResetAccumulatedTotal zeroes both running totals.
func (s *Service) ResetAccumulatedTotal() {
	s.engine.ResetTotal()
	s.processor.ResetTotal()
	logger.Info().Msg("Accumulated total distance reset")
}

// StartDiagnostics starts the diagnostic monitor.
func (s *Service) StartDiagnostics() {
	s.monitor.Start()
}

// StopDiagnostics stops the diagnostic monitor.
func (s *Service) StopDiagnostics() {
	s.monitor.Stop()
}

// EmergencyCleanup clears all diagnostic buffers and the issue log.
func (s *Service) EmergencyCleanup() {
	s.monitor.EmergencyCleanup()
}

// Diagnostics exposes the monitor for data export.
func (s *Service) Diagnostics() *diag.Monitor {
	return s.monitor
}

// LiveState returns the sanitized display snapshot.
func (s *Service) LiveState() LiveState {
	return LiveState{
		IsTripActive:             s.engine.IsTripActive(),
		CurrentTripDistance:      sanitize.Distance(s.processor.TripDistance()),
		TotalAccumulatedDistance: sanitize.Distance(s.engine.AccumulatedTotal()),
		DiagnosticMode:           s.monitor.Running(),
		IssueCount:               s.monitor.IssueCount(),
	}
}

// Close tears the service down: trips closed, timers cancelled, samplers
// stopped, store flushed.
func (s *Service) Close() error {
	s.tracking.Store(false)
	s.engine.Stop()
	s.monitor.Stop()

	return s.trips.Close()
}

// persistTrip hands each closed trip to the store exactly once.
func (s *Service) persistTrip(t trip.Trip) {
	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()

	if err := s.trips.SaveTrip(ctx, &t); err != nil {
		logger.Error().Err(err).Str("trip_id", t.ID.String()).Msg("Failed to persist trip")

		return
	}
	logger.Debug().Str("trip_id", t.ID.String()).Msg("Trip persisted")
}

// gpsStatus reports fix-stream health to the diagnostic monitor. Fix age is
// measured from arrival, not from the fix's own timestamp.
func (s *Service) gpsStatus() (diag.GPSQualitySnapshot, bool) {
	fix, ok := s.processor.LastFix()
	if !ok {
		return diag.GPSQualitySnapshot{}, false
	}

	s.fixMu.Lock()
	arrived := s.lastFixAt
	s.fixMu.Unlock()

	var age float64
	if !arrived.IsZero() {
		age = time.Since(arrived).Seconds()
	}

	return diag.GPSQualitySnapshot{
		HorizontalAccuracy: sanitize.Distance(fix.HorizontalAccuracy),
		FixAgeSeconds:      sanitize.Distance(age),
		WindowFixes:        len(s.processor.Window()),
	}, true
}
