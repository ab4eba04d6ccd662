package domain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

var (
	accra  = Coordinates{Lat: 5.6037, Lon: -0.1870}
	kumasi = Coordinates{Lat: 6.6885, Lon: -1.6244}
)

func TestHaversineKmAccraKumasi(t *testing.T) {
	d := HaversineKm(accra, kumasi)
	assert.InDelta(t, 200, d, 5)
	assert.InDelta(t, d, HaversineKm(kumasi, accra), 1e-9, "distance must be symmetric")
	assert.Zero(t, HaversineKm(accra, accra))
}

func TestDistanceToSegmentKm(t *testing.T) {
	a := Coordinates{Lat: 0, Lon: 0}
	b := Coordinates{Lat: 0, Lon: 1}

	t.Run("point on segment", func(t *testing.T) {
		assert.InDelta(t, 0, DistanceToSegmentKm(Coordinates{Lat: 0, Lon: 0.5}, a, b), 1e-6)
	})

	t.Run("perpendicular offset", func(t *testing.T) {
		// 0.01 degrees of latitude is ~1.11 km.
		d := DistanceToSegmentKm(Coordinates{Lat: 0.01, Lon: 0.5}, a, b)
		assert.InDelta(t, 1.112, d, 0.01)
	})

	t.Run("beyond the end clamps to endpoint", func(t *testing.T) {
		p := Coordinates{Lat: 0, Lon: 1.02}
		assert.InDelta(t, HaversineKm(p, b), DistanceToSegmentKm(p, a, b), 0.01)
	})

	t.Run("degenerate segment", func(t *testing.T) {
		p := Coordinates{Lat: 0.02, Lon: 0}
		assert.InDelta(t, HaversineKm(p, a), DistanceToSegmentKm(p, a, a), 1e-9)
	})
}

func TestDistanceToPolylineKm(t *testing.T) {
	assert.True(t, math.IsInf(DistanceToPolylineKm(accra, nil), 1))
	assert.InDelta(t, HaversineKm(accra, kumasi), DistanceToPolylineKm(accra, []Coordinates{kumasi}), 1e-9)

	line := []Coordinates{accra, kumasi}
	assert.InDelta(t, 0, DistanceToPolylineKm(accra, line), 1e-6)
	assert.InDelta(t, 0, DistanceToPolylineKm(kumasi, line), 1e-6)
}

func TestCentroid(t *testing.T) {
	c := Centroid([]Coordinates{{Lat: 1, Lon: 1}, {Lat: 3, Lon: 5}})
	assert.Equal(t, Coordinates{Lat: 2, Lon: 3}, c)
}
