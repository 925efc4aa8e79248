// Package nmea adapts an NMEA 0183 sentence stream into position fixes.
// The stream itself (serial port, pipe, replay file) is opened by the
// caller; this package only parses.
package nmea

import (
	"bufio"
	"context"
	"io"
	"os"
	"strings"
	"time"

	gonmea "github.com/adrianmo/go-nmea"

	"github.com/tripwatch/tripwatch/internal/errors"
	"github.com/tripwatch/tripwatch/internal/location"
	"github.com/tripwatch/tripwatch/internal/logger"
)

const (
	knotsToMetersPerSecond = 0.514444

	// Horizontal accuracy estimate: HDOP times a typical user-equivalent
	// range error.
	uereMeters = 5.0
)

// Source turns RMC sentences into fixes, enriched with altitude and an
// HDOP-derived accuracy estimate from interleaved GGA sentences.
type Source struct {
	r     io.Reader
	fixes chan location.Fix

	lastAltitude float64
	lastAccuracy float64
}

func NewSource(r io.Reader) *Source {
	return &Source{
		r:     r,
		fixes: make(chan location.Fix, 16),
	}
}

// Fixes is the output channel; closed when Run returns.
func (s *Source) Fixes() <-chan location.Fix {
	return s.fixes
}

// Run reads the stream until EOF or cancellation. Malformed sentences are
// skipped; a broken reader is the only error.
func (s *Source) Run(ctx context.Context) error {
	errFactory := errors.New()
	defer close(s.fixes)

	scanner := bufio.NewScanner(s.r)
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" || !strings.HasPrefix(line, "$") {
			continue
		}

		sentence, err := gonmea.Parse(line)
		if err != nil {
			// Noisy receivers emit partial sentences; not worth a warning.
			logger.Debug().Err(err).Msg("Skipping unparseable NMEA sentence")
			continue
		}

		switch sentence.DataType() {
		case gonmea.TypeGGA:
			gga := sentence.(gonmea.GGA)
			s.lastAltitude = gga.Altitude
			s.lastAccuracy = gga.HDOP * uereMeters

		case gonmea.TypeRMC:
			rmc := sentence.(gonmea.RMC)
			fix, ok := s.fixFromRMC(rmc)
			if !ok {
				continue
			}
			select {
			case s.fixes <- fix:
			case <-ctx.Done():
				return nil
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return errFactory.Wrap(errors.ErrOpenSource, err)
	}

	return nil
}

func (s *Source) fixFromRMC(rmc gonmea.RMC) (location.Fix, bool) {
	if rmc.Validity != gonmea.ValidRMC {
		return location.Fix{}, false
	}

	ts := rmcTime(rmc)
	if ts.IsZero() {
		return location.Fix{}, false
	}

	return location.Fix{
		Latitude:           rmc.Latitude,
		Longitude:          rmc.Longitude,
		Timestamp:          ts,
		HorizontalAccuracy: s.lastAccuracy,
		Speed:              rmc.Speed * knotsToMetersPerSecond,
		Course:             rmc.Course,
		Altitude:           s.lastAltitude,
	}, true
}

func rmcTime(rmc gonmea.RMC) time.Time {
	if !rmc.Time.Valid || !rmc.Date.Valid {
		return time.Time{}
	}

	return time.Date(
		2000+rmc.Date.YY, time.Month(rmc.Date.MM), rmc.Date.DD,
		rmc.Time.Hour, rmc.Time.Minute, rmc.Time.Second,
		rmc.Time.Millisecond*int(time.Millisecond),
		time.UTC,
	)
}

// Open resolves the configured source path; "-" means stdin.
func Open(path string) (io.ReadCloser, error) {
	errFactory := errors.New()

	if path == "-" {
		return io.NopCloser(os.Stdin), nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, errFactory.Wrap(errors.ErrOpenSource, err)
	}

	return f, nil
}
