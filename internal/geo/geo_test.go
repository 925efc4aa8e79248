package geo_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tripwatch/tripwatch/internal/geo"
)

func TestDistanceMeters(t *testing.T) {
	// Jakarta to Bandung, roughly 115-120 km
	d := geo.DistanceMeters(-6.2, 106.816, -6.9175, 107.6191)
	assert.Greater(t, d, 100_000.0)
	assert.Less(t, d, 140_000.0)
}

func TestDistanceMetersSamePoint(t *testing.T) {
	assert.InDelta(t, 0, geo.DistanceMeters(51.5, -0.12, 51.5, -0.12), 0)
}

func TestDistanceMetersSmallStep(t *testing.T) {
	// 0.001 degrees of longitude at the equator is about 111 m
	d := geo.DistanceMeters(0, 0, 0, 0.001)
	assert.InDelta(t, 111.3, d, 1.0)
}

func TestDistanceMetersSymmetry(t *testing.T) {
	a := geo.DistanceMeters(59.33, 18.06, 57.7, 11.97)
	b := geo.DistanceMeters(57.7, 11.97, 59.33, 18.06)
	assert.InDelta(t, a, b, 1e-6)
}
