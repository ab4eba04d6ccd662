package services

import (
	"context"
	"fmt"
	"route-validation-service/internal/domain"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckCorridorZeroOffset(t *testing.T) {
	route := domain.PlannedRoute{
		RouteID: tripRoute,
		Waypoints: []domain.Coordinates{
			{Lat: 5.6698, Lon: -0.0166},
			{Lat: 5.6037, Lon: -0.1870},
			{Lat: 6.0800, Lon: -0.9000},
			{Lat: 6.6885, Lon: -1.6244},
		},
	}
	reports := make([]domain.PositionReport, len(route.Waypoints))
	for i, w := range route.Waypoints {
		reports[i] = at(w.Lat, w.Lon, time.Duration(i)*time.Hour)
	}

	assert.Empty(t, CheckCorridor(reports, route, DefaultThresholds()))
}

func TestCheckCorridorFlagsEveryPointOutside(t *testing.T) {
	reports := straightTrip(12, 5*time.Minute)
	reports[3].Longitude += 0.05 // about 5.5 km east
	reports[7].Longitude -= 0.01 // about 1.1 km west, inside the corridor

	devs := CheckCorridor(reports, tripRouteFor(12), DefaultThresholds())

	require.Len(t, devs, 1)
	assert.Equal(t, domain.DeviationRoute, devs[0].Type)
	assert.Equal(t, domain.SeverityMedium, devs[0].Severity)
	assert.Equal(t, "deviated beyond 2 km corridor", devs[0].Description)
	assert.Equal(t, reports[3].Coordinates(), devs[0].Location)
}

// stopTrip drives north, halts at a single spot for stopFor and drives on.
func stopTrip(stopFor time.Duration) ([]domain.PositionReport, domain.Coordinates) {
	stop := domain.Coordinates{Lat: tripLat0 + 2*tripLatStep, Lon: tripLon}
	reports := []domain.PositionReport{
		at(tripLat0, tripLon, 0),
		at(tripLat0+tripLatStep, tripLon, 5*time.Minute),
	}

	const samples = 5
	for i := 0; i < samples; i++ {
		jitter := float64(i%2) * 0.0001 // about 11 m
		reports = append(reports, at(stop.Lat+jitter, stop.Lon, 10*time.Minute+stopFor*time.Duration(i)/(samples-1)))
	}

	end := 10*time.Minute + stopFor
	reports = append(reports,
		at(tripLat0+3*tripLatStep, tripLon, end+5*time.Minute),
		at(tripLat0+4*tripLatStep, tripLon, end+10*time.Minute),
	)
	return reports, stop
}

func TestDetectStops(t *testing.T) {
	reports, stop := stopTrip(40 * time.Minute)

	stops := DetectStops(reports, DefaultThresholds())

	require.Len(t, stops, 1)
	assert.Equal(t, 2, stops[0].First)
	assert.Equal(t, 6, stops[0].Last)
	assert.Equal(t, 40*time.Minute, stops[0].Duration())
	assert.InDelta(t, stop.Lat, stops[0].Location.Lat, 0.0001)

	short, _ := stopTrip(8 * time.Minute)
	assert.Empty(t, DetectStops(short, DefaultThresholds()))
}

func newDeviationDetector(ref *fakeRegistry) *DeviationDetector {
	return &DeviationDetector{Ref: ref, Th: DefaultThresholds(), Timeout: time.Second, Log: zerolog.Nop()}
}

func TestDeviationDetectorStops(t *testing.T) {
	ctx := context.Background()
	route := domain.PlannedRoute{
		RouteID:   tripRoute,
		Waypoints: []domain.Coordinates{{Lat: tripLat0, Lon: tripLon}, {Lat: tripLat0 + 4*tripLatStep, Lon: tripLon}},
	}

	t.Run("unauthorized medium", func(t *testing.T) {
		reports, _ := stopTrip(40 * time.Minute)
		out, err := newDeviationDetector(newFakeRegistry()).Detect(ctx, reports, &route, tripRoute)
		require.NoError(t, err)

		require.Len(t, out.Deviations, 1)
		assert.Equal(t, domain.DeviationUnauthorizedStop, out.Deviations[0].Type)
		assert.Equal(t, domain.SeverityMedium, out.Deviations[0].Severity)
		assert.Equal(t, "unauthorized stop of 40 minutes", out.Deviations[0].Description)
		assert.Empty(t, out.Skipped)
	})

	t.Run("unauthorized high", func(t *testing.T) {
		reports, _ := stopTrip(150 * time.Minute)
		out, err := newDeviationDetector(newFakeRegistry()).Detect(ctx, reports, &route, tripRoute)
		require.NoError(t, err)

		require.Len(t, out.Deviations, 1)
		assert.Equal(t, domain.SeverityHigh, out.Deviations[0].Severity)
		assert.Equal(t, "unauthorized stop of 150 minutes", out.Deviations[0].Description)
	})

	t.Run("authorized", func(t *testing.T) {
		reports, stop := stopTrip(40 * time.Minute)
		ref := newFakeRegistry()
		ref.stops = []domain.AuthorizedStop{{ID: "S1", RouteID: tripRoute, Name: "Nsawam rest stop", Center: stop, RadiusMeters: 300}}

		out, err := newDeviationDetector(ref).Detect(ctx, reports, &route, tripRoute)
		require.NoError(t, err)
		assert.Empty(t, out.Deviations)
		assert.Equal(t, 1, ref.stopCalls)
	})

	t.Run("short stops are not looked up", func(t *testing.T) {
		reports, _ := stopTrip(20 * time.Minute)
		ref := newFakeRegistry()

		out, err := newDeviationDetector(ref).Detect(ctx, reports, &route, tripRoute)
		require.NoError(t, err)
		assert.Empty(t, out.Deviations)
		assert.Zero(t, ref.stopCalls)
	})

	t.Run("registry unavailable", func(t *testing.T) {
		reports, _ := stopTrip(40 * time.Minute)
		ref := newFakeRegistry()
		ref.stopErr = fmt.Errorf("%w: dial timeout", domain.ErrRegistryUnavailable)

		out, err := newDeviationDetector(ref).Detect(ctx, reports, &route, tripRoute)
		require.NoError(t, err)
		assert.Empty(t, out.Deviations)
		assert.Equal(t, []string{reasonStopsSkipped}, out.Skipped)
	})

	t.Run("cancelled", func(t *testing.T) {
		reports, _ := stopTrip(40 * time.Minute)
		ref := newFakeRegistry()
		ref.stopErr = context.Canceled

		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := newDeviationDetector(ref).Detect(cctx, reports, &route, tripRoute)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestDeviationDetectorWithoutRoute(t *testing.T) {
	routes := map[string]*domain.PlannedRoute{
		"nil":          nil,
		"no waypoints": {RouteID: tripRoute},
	}

	for name, route := range routes {
		t.Run(name, func(t *testing.T) {
			out, err := newDeviationDetector(newFakeRegistry()).Detect(context.Background(), straightTrip(12, 5*time.Minute), route, tripRoute)
			require.NoError(t, err)
			assert.Empty(t, out.Deviations)
			assert.Equal(t, []string{reasonCorridorSkipped}, out.Skipped)
		})
	}
}

func TestDetectSignalLossSingleGap(t *testing.T) {
	th := DefaultThresholds()
	reports := straightTrip(12, 5*time.Minute)
	for i := 6; i < len(reports); i++ {
		reports[i].Timestamp = reports[i].Timestamp.Add(15 * time.Minute)
	}

	anomalies := DetectAnomalies(reports, CalculateMetrics(reports, th), th)

	require.Len(t, anomalies, 1)
	assert.Equal(t, domain.AnomalyGPSSignalLoss, anomalies[0].Type)
	assert.InDelta(t, 0.9, anomalies[0].Confidence, 1e-9)
	assert.Equal(t, reports[5].Timestamp, anomalies[0].WindowStart)
	assert.Equal(t, reports[6].Timestamp, anomalies[0].WindowEnd)
	assert.Equal(t, "GPS signal lost for 20.0 minutes", anomalies[0].Description)
}

func TestDetectImpossibleSpeed(t *testing.T) {
	th := DefaultThresholds()
	reports := straightTrip(12, 5*time.Minute)
	// 5.56 km in two minutes is about 167 km/h.
	for i := 4; i < len(reports); i++ {
		reports[i].Timestamp = reports[i].Timestamp.Add(-3 * time.Minute)
	}

	anomalies := DetectImpossibleSpeed(reports, CalculateMetrics(reports, th).Segments, th)

	require.Len(t, anomalies, 1)
	assert.Equal(t, domain.AnomalyImpossibleSpeed, anomalies[0].Type)
	assert.InDelta(t, 0.8, anomalies[0].Confidence, 1e-9)
	assert.Equal(t, reports[3].Timestamp, anomalies[0].WindowStart)
}

func TestDetectBacktracking(t *testing.T) {
	reports := []domain.PositionReport{
		at(tripLat0, tripLon, 0),
		at(tripLat0+tripLatStep, tripLon, 5*time.Minute),
		at(tripLat0+2*tripLatStep, tripLon, 10*time.Minute),
		at(tripLat0+tripLatStep, tripLon, 15*time.Minute),
		at(tripLat0, tripLon, 20*time.Minute),
	}

	anomalies := DetectBacktracking(reports, DefaultThresholds())

	require.Len(t, anomalies, 2)
	for _, a := range anomalies {
		assert.Equal(t, domain.AnomalyBacktracking, a.Type)
		assert.InDelta(t, 0.7, a.Confidence, 1e-9)
		assert.Equal(t, "returned to previous location", a.Description)
	}
	assert.Equal(t, reports[1].Timestamp, anomalies[0].WindowStart)
	assert.Equal(t, reports[0].Timestamp, anomalies[1].WindowStart)

	assert.Empty(t, DetectBacktracking(straightTrip(12, 5*time.Minute), DefaultThresholds()))
}

func TestGeofenceChecker(t *testing.T) {
	ctx := context.Background()
	reports := straightTrip(12, 5*time.Minute)

	ref := newFakeRegistry()
	ref.zones = []domain.RestrictedZone{{
		ID:           "Z1",
		Name:         "Tema oil refinery",
		Center:       reports[3].Coordinates(),
		RadiusMeters: 1000,
	}}
	checker := &GeofenceChecker{Ref: ref, Timeout: time.Second, Log: zerolog.Nop()}

	out, err := checker.Check(ctx, reports)
	require.NoError(t, err)
	require.Len(t, out.Violations, 1)
	assert.Equal(t, "Tema oil refinery", out.Violations[0].ZoneName)
	assert.Equal(t, domain.DeviationUnauthorizedArea, out.Violations[0].ViolationType)
	assert.Equal(t, reports[3].Timestamp, out.Violations[0].Timestamp)
	require.Len(t, out.Deviations, 1)
	assert.Equal(t, domain.SeverityHigh, out.Deviations[0].Severity)
	assert.Equal(t, "entered restricted zone Tema oil refinery", out.Deviations[0].Description)

	ref.zoneErr = fmt.Errorf("%w: i/o timeout", domain.ErrRegistryUnavailable)
	out, err = checker.Check(ctx, reports)
	require.NoError(t, err)
	assert.Empty(t, out.Violations)
	assert.Empty(t, out.Deviations)
	assert.Equal(t, []string{reasonGeofenceSkipped}, out.Skipped)
}
