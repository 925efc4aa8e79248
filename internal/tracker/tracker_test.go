package tracker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tripwatch/tripwatch/internal/config"
	"github.com/tripwatch/tripwatch/internal/diag"
	"github.com/tripwatch/tripwatch/internal/location"
	"github.com/tripwatch/tripwatch/internal/trip"
)

type fakeCollector struct {
	mu     sync.Mutex
	saved  []trip.Trip
	closed bool
}

func (f *fakeCollector) SaveTrip(_ context.Context, t *trip.Trip) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, *t)

	return nil
}

func (f *fakeCollector) RecentTrips(_ context.Context, _ int) ([]trip.Trip, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]trip.Trip, len(f.saved))
	copy(out, f.saved)

	return out, nil
}

func (f *fakeCollector) StoredTotalDistance(_ context.Context) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var total float64
	for _, t := range f.saved {
		total += t.DistanceMeters
	}

	return total, nil
}

func (f *fakeCollector) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true

	return nil
}

func (f *fakeCollector) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.saved)
}

func (f *fakeCollector) at(i int) trip.Trip {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.saved[i]
}

func testConfig() *config.Config {
	return &config.Config{
		SpeedThresholdMPH:      5,
		SpeedDetectionDuration: 20 * time.Millisecond,
		AutoStopDuration:       50 * time.Millisecond,
		MaxStepMeters:          1000,
		MaxPlausibleSpeed:      200,
		WindowSize:             5,
		DiagInterval:           10 * time.Millisecond,
		DiagCapacity:           16,
	}
}

func newTestService(t *testing.T) (*Service, *fakeCollector) {
	t.Helper()
	trips := &fakeCollector{}
	svc := New(testConfig(), trips)
	t.Cleanup(func() { _ = svc.Close() })

	return svc, trips
}

func TestStartStopTrackingIdempotent(t *testing.T) {
	svc, _ := newTestService(t)

	svc.StartTracking()
	svc.StartTracking()
	svc.StopTracking()
	svc.StopTracking()

	assert.False(t, svc.LiveState().IsTripActive)
}

func TestHandleFixDroppedWhenNotTracking(t *testing.T) {
	svc, _ := newTestService(t)

	svc.HandleFix(location.Fix{Latitude: 37.0, Longitude: -122.0, Timestamp: time.Now()})

	_, ok := svc.processor.LastFix()
	assert.False(t, ok)
}

func TestManualTripPersistedOnce(t *testing.T) {
	svc, trips := newTestService(t)
	svc.StartTracking()

	svc.StartTrip(false)
	require.True(t, svc.LiveState().IsTripActive)

	svc.StopTrip()
	require.False(t, svc.LiveState().IsTripActive)

	require.Eventually(t, func() bool { return trips.count() == 1 },
		time.Second, 5*time.Millisecond)

	// Repeated stop is a no-op and must not write again.
	svc.StopTrip()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, trips.count())
}

func TestStopTrackingForceClosesTrip(t *testing.T) {
	svc, trips := newTestService(t)
	svc.StartTracking()
	svc.StartTrip(true)

	svc.StopTracking()

	require.Eventually(t, func() bool { return trips.count() == 1 },
		time.Second, 5*time.Millisecond)
	assert.True(t, trips.at(0).IsSynthetic)
}

func TestFixStreamOpensTrip(t *testing.T) {
	cfg := testConfig()
	cfg.AutoStopDuration = 10 * time.Second
	trips := &fakeCollector{}
	svc := New(cfg, trips)
	t.Cleanup(func() { _ = svc.Close() })
	svc.StartTracking()

	// A burst of fast fixes drives activity through the engine's candidate
	// window and opens a real trip.
	base := time.Now()
	lat := 37.0
	emit := func(i int) {
		svc.HandleFix(location.Fix{
			Latitude:  lat,
			Longitude: -122.0,
			Timestamp: base.Add(time.Duration(i) * time.Second),
			Speed:     20,
		})
		lat += 0.001
	}
	for i := 0; i < 12; i++ {
		emit(i)
		svc.HandleActivity(trip.ActivityAutomotive)
	}

	require.Eventually(t, func() bool { return svc.LiveState().IsTripActive },
		time.Second, 5*time.Millisecond)

	// Distance accumulated before the trip opened belongs to the total, not
	// the trip. Fresh movement after the open shows up in the trip figure.
	for i := 12; i < 15; i++ {
		emit(i)
	}
	assert.Greater(t, svc.LiveState().CurrentTripDistance, 0.0)
}

func TestFixAgeMeasuredFromArrival(t *testing.T) {
	svc, _ := newTestService(t)
	svc.StartTracking()

	// A replayed fix a day behind the wall clock just arrived; the stream
	// is healthy and must not look stale.
	svc.HandleFix(location.Fix{
		Latitude:  37.0,
		Longitude: -122.0,
		Timestamp: time.Now().Add(-24 * time.Hour),
	})

	svc.StartDiagnostics()
	require.Eventually(t, func() bool {
		return len(svc.Diagnostics().AllData().GPSQuality) > 0
	}, time.Second, 5*time.Millisecond)
	svc.StopDiagnostics()

	got := svc.Diagnostics().AllData().GPSQuality[0]
	assert.Less(t, got.FixAgeSeconds, 60.0)

	for _, issue := range svc.Diagnostics().Issues() {
		assert.NotEqual(t, diag.CategoryGPS, issue.Category)
	}
}

func TestLiveStateReflectsDiagnostics(t *testing.T) {
	svc, _ := newTestService(t)

	assert.False(t, svc.LiveState().DiagnosticMode)

	svc.StartDiagnostics()
	assert.True(t, svc.LiveState().DiagnosticMode)

	svc.StopDiagnostics()
	assert.False(t, svc.LiveState().DiagnosticMode)
}

func TestResetAccumulatedTotal(t *testing.T) {
	svc, _ := newTestService(t)
	svc.StartTracking()
	svc.StartTrip(false)
	svc.StopTrip()

	svc.ResetAccumulatedTotal()
	assert.Zero(t, svc.LiveState().TotalAccumulatedDistance)
}

func TestCloseFlushesStore(t *testing.T) {
	trips := &fakeCollector{}
	svc := New(testConfig(), trips)

	require.NoError(t, svc.Close())
	assert.True(t, trips.closed)
}
