package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEqualisationPointKmBeyond(t *testing.T) {
	eq := EqualisationPoint{RouteID: "ACC-KSI", KmThreshold: 150}

	assert.Zero(t, eq.KmBeyond(0))
	assert.Zero(t, eq.KmBeyond(150))
	assert.InDelta(t, 50, eq.KmBeyond(200), 1e-9)

	prev := 0.0
	for km := 0.0; km <= 400; km += 7.5 {
		got := eq.KmBeyond(km)
		assert.GreaterOrEqual(t, got, prev, "km beyond must not decrease at total=%v", km)
		assert.GreaterOrEqual(t, got, 0.0)
		if km <= eq.KmThreshold {
			assert.Zero(t, got)
		}
		prev = got
	}
}

func TestZoneContains(t *testing.T) {
	z := RestrictedZone{Name: "Tema Oil Refinery", Center: Coordinates{Lat: 5.6500, Lon: 0.0300}, RadiusMeters: 1000}
	assert.True(t, z.Contains(z.Center))
	assert.True(t, z.Contains(Coordinates{Lat: 5.6550, Lon: 0.0300}))
	assert.False(t, z.Contains(Coordinates{Lat: 5.6700, Lon: 0.0300}))
}
