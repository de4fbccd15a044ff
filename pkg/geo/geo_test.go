package geo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDistanceKmKnownPairs(t *testing.T) {
	// London to Paris is roughly 343.5 km along the great circle.
	d := DistanceKm(51.5074, -0.1278, 48.8566, 2.3522)
	assert.InDelta(t, 343.5, d, 1.0)

	// one degree of latitude on the mean sphere
	assert.InDelta(t, 111.19, DistanceKm(0, 10, 1, 10), 0.01)
}

func TestDistanceKmZeroAndSymmetric(t *testing.T) {
	assert.Equal(t, 0.0, DistanceKm(12.97, 77.59, 12.97, 77.59))
	a := DistanceKm(12.97, 77.59, 28.61, 77.21)
	b := DistanceKm(28.61, 77.21, 12.97, 77.59)
	assert.InDelta(t, a, b, 1e-9)
}

func TestDistanceKmDoesNotSpecialCaseOrigin(t *testing.T) {
	d := DistanceKm(0, 0, 0, 1)
	assert.InDelta(t, 111.19, d, 0.01)
}

func TestNewPoint(t *testing.T) {
	lat, lng := 12.9716, 77.5946
	p := NewPoint(&lat, &lng)
	require.NotNil(t, p)
	assert.Equal(t, lat, p.Lat)

	zero := 0.0
	assert.Nil(t, NewPoint(&zero, &zero), "(0,0) is the unset sentinel")
	assert.Nil(t, NewPoint(nil, &lng))
	nan := math.NaN()
	assert.Nil(t, NewPoint(&nan, &lng))
	inf := math.Inf(1)
	assert.Nil(t, NewPoint(&lat, &inf))
}

func TestRound2(t *testing.T) {
	assert.Equal(t, 3.14, Round2(3.14159))
	assert.Equal(t, 2.0, Round2(1.999))
}
