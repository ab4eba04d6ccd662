package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTraceAppend(t *testing.T) {
	start := time.Date(2026, 3, 2, 6, 0, 0, 0, time.UTC)

	tr := NewTrace("run-1", PositionReport{VehicleID: "GT-1234-20", Latitude: accra.Lat, Longitude: accra.Lon, Timestamp: start})
	require.Len(t, tr.Reports, 1)
	assert.Zero(t, tr.TotalKm)

	tr.Append(PositionReport{VehicleID: "GT-1234-20", Latitude: kumasi.Lat, Longitude: kumasi.Lon, Timestamp: start.Add(3 * time.Hour)})

	assert.Len(t, tr.Reports, 2)
	assert.InDelta(t, HaversineKm(accra, kumasi), tr.TotalKm, 1e-9)
	assert.InDelta(t, tr.TotalKm/3, tr.AverageSpeedKmh, 1e-9)
	assert.InDelta(t, tr.TotalKm/3, tr.MaxSpeedKmh, 1e-9)
	assert.Equal(t, start, tr.StartTime)
	assert.Equal(t, start.Add(3*time.Hour), tr.EndTime)
}

func TestTraceSnapshotIsIndependent(t *testing.T) {
	start := time.Date(2026, 3, 2, 6, 0, 0, 0, time.UTC)
	tr := NewTrace("run-1", PositionReport{VehicleID: "v", Latitude: 1, Longitude: 1, Timestamp: start})

	snap := tr.Snapshot()
	tr.Append(PositionReport{VehicleID: "v", Latitude: 1.1, Longitude: 1, Timestamp: start.Add(time.Minute)})

	assert.Len(t, snap.Reports, 1)
	assert.Len(t, tr.Reports, 2)
}
