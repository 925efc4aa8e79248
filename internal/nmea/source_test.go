package nmea_test

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tripwatch/tripwatch/internal/location"
	"github.com/tripwatch/tripwatch/internal/nmea"
)

// sentence appends a valid NMEA checksum to a body.
func sentence(body string) string {
	var sum byte
	for i := 0; i < len(body); i++ {
		sum ^= body[i]
	}

	return fmt.Sprintf("$%s*%02X", body, sum)
}

func collect(t *testing.T, input string) []location.Fix {
	t.Helper()

	src := nmea.NewSource(strings.NewReader(input))
	done := make(chan error, 1)
	go func() { done <- src.Run(context.Background()) }()

	var fixes []location.Fix
	for f := range src.Fixes() {
		fixes = append(fixes, f)
	}
	require.NoError(t, <-done)

	return fixes
}

func TestRMCProducesFix(t *testing.T) {
	input := sentence("GPRMC,120000,A,4807.038,N,01131.000,E,21.6,084.4,010625,,") + "\n"

	fixes := collect(t, input)
	require.Len(t, fixes, 1)

	f := fixes[0]
	assert.InDelta(t, 48.1173, f.Latitude, 0.001)
	assert.InDelta(t, 11.5167, f.Longitude, 0.001)
	assert.Equal(t, time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC), f.Timestamp)
	// 21.6 knots is about 11.1 m/s
	assert.InDelta(t, 11.1, f.Speed, 0.05)
	assert.InDelta(t, 84.4, f.Course, 1e-9)
}

func TestInvalidRMCSkipped(t *testing.T) {
	input := sentence("GPRMC,120000,V,4807.038,N,01131.000,E,21.6,084.4,010625,,") + "\n"

	assert.Empty(t, collect(t, input))
}

func TestMalformedLinesSkipped(t *testing.T) {
	input := strings.Join([]string{
		"garbage",
		"$GPRMC,broken*00",
		sentence("GPRMC,120001,A,4807.038,N,01131.000,E,0.0,084.4,010625,,"),
	}, "\n") + "\n"

	fixes := collect(t, input)
	assert.Len(t, fixes, 1)
}

func TestGGAEnrichesFollowingFix(t *testing.T) {
	input := strings.Join([]string{
		sentence("GPGGA,120000,4807.038,N,01131.000,E,1,08,0.9,545.4,M,46.9,M,,"),
		sentence("GPRMC,120000,A,4807.038,N,01131.000,E,21.6,084.4,010625,,"),
	}, "\n") + "\n"

	fixes := collect(t, input)
	require.Len(t, fixes, 1)
	assert.InDelta(t, 545.4, fixes[0].Altitude, 1e-9)
	assert.InDelta(t, 4.5, fixes[0].HorizontalAccuracy, 1e-9) // 0.9 HDOP * 5 m
}
