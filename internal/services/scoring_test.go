package services

import (
	"route-validation-service/internal/domain"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScore(t *testing.T) {
	cases := []struct {
		name       string
		deviations int
		anomalies  int
		want       float64
	}{
		{"clean", 0, 0, 0.9},
		{"mixed", 2, 3, 0.55},
		{"one of each", 1, 1, 0.75},
		{"clamped at zero", 12, 0, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.want, Score(tc.deviations, tc.anomalies), 1e-9)
		})
	}
}

func TestIsValid(t *testing.T) {
	medium := domain.RouteDeviation{Severity: domain.SeverityMedium}
	high := domain.RouteDeviation{Severity: domain.SeverityHigh}
	backtrack := domain.Anomaly{Confidence: 0.7}
	speed := domain.Anomaly{Confidence: 0.8}
	signal := domain.Anomaly{Confidence: 0.9}

	assert.True(t, IsValid(nil, nil))
	assert.True(t, IsValid([]domain.RouteDeviation{medium}, []domain.Anomaly{backtrack, speed}))
	assert.False(t, IsValid([]domain.RouteDeviation{medium, high}, nil))
	assert.False(t, IsValid(nil, []domain.Anomaly{signal}))
}

func TestAssembleMergesInDetectorOrder(t *testing.T) {
	th := DefaultThresholds()
	reports := straightTrip(12, 5*time.Minute)

	res := Assemble(Assembly{
		RunID:        tripRun,
		Reports:      reports,
		Metrics:      CalculateMetrics(reports, th),
		Equalisation: domain.EqualisationPoint{RouteID: tripRoute, KmThreshold: 1000},
		Outcomes: []detectorOutcome{
			{
				Deviations: []domain.RouteDeviation{{Severity: domain.SeverityMedium, Description: "d1"}},
				Skipped:    []string{reasonStopsSkipped},
			},
			{Anomalies: []domain.Anomaly{{Confidence: 0.7, Description: "a1"}}},
			{Deviations: []domain.RouteDeviation{{Severity: domain.SeverityMedium, Description: "d2"}}},
		},
		Th: th,
	})

	assert.Equal(t, []string{"d1", "d2", "a1", reasonStopsSkipped}, res.Reasons)
	assert.True(t, res.IsValid)
	assert.InDelta(t, 0.65, res.Confidence, 1e-9)
	assert.Zero(t, res.KmBeyondEqualisation)
	assert.NotNil(t, res.GeofenceViolations)
	assert.Len(t, res.EvidenceFileRefs, 2)
}

func TestAssembleCapsDegradedConfidence(t *testing.T) {
	th := DefaultThresholds()
	res := Assemble(Assembly{
		RunID:    tripRun,
		Outcomes: []detectorOutcome{{Skipped: []string{reasonGeofenceSkipped}}},
		Th:       th,
	})
	assert.InDelta(t, 0.7, res.Confidence, 1e-9)
	assert.Equal(t, []string{reasonGeofenceSkipped}, res.Reasons)
}

func TestRejected(t *testing.T) {
	gate := GateResult{Reasons: []string{"insufficient data"}}
	res := Rejected(tripRun, nil, gate, true)

	assert.False(t, res.IsValid)
	assert.Zero(t, res.Confidence)
	assert.Equal(t, gate.Reasons, res.Reasons)
	assert.True(t, res.Final)
	assert.Empty(t, res.Deviations)
}

func TestEvidenceRefsAreDeterministic(t *testing.T) {
	reports := straightTrip(12, 5*time.Minute)

	a := EvidenceRefs(tripRun, reports)
	b := EvidenceRefs(tripRun, straightTrip(12, 5*time.Minute))
	require.Len(t, a, 2)
	assert.Equal(t, a, b)
	assert.Regexp(t, `^evidence/RUN-001/[0-9a-f]{16}/trace-export\.json$`, a[0])
	assert.Regexp(t, `^evidence/RUN-001/[0-9a-f]{16}/route-comparison\.html$`, a[1])

	reports[4].Latitude += 0.001
	assert.NotEqual(t, a, EvidenceRefs(tripRun, reports))
}
