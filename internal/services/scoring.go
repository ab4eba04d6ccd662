package services

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"route-validation-service/internal/domain"
)

const (
	baseConfidence = 0.9

	deviationPenalty = 0.1
	anomalyPenalty   = 0.05

	// Anomalies more certain than this invalidate the run.
	invalidatingAnomalyConfidence = 0.8
)

// Score returns clamp(0.9 − 0.1×deviations − 0.05×anomalies, 0, 1) for a
// trace that passed the quality gate. Rejected traces score 0.
func Score(deviations, anomalies int) float64 {
	return clamp01(baseConfidence - deviationPenalty*float64(deviations) - anomalyPenalty*float64(anomalies))
}

// IsValid is true when no deviation is HIGH and no anomaly is more certain than 0.8.
func IsValid(deviations []domain.RouteDeviation, anomalies []domain.Anomaly) bool {
	for _, d := range deviations {
		if d.Severity == domain.SeverityHigh {
			return false
		}
	}
	for _, a := range anomalies {
		if a.Confidence > invalidatingAnomalyConfidence {
			return false
		}
	}
	return true
}

// Assembly is everything the assembler needs to build a verdict.
// Outcomes are given in detector order and merged in that order.
type Assembly struct {
	RunID        string
	Reports      []domain.PositionReport
	Metrics      RouteMetrics
	Equalisation domain.EqualisationPoint
	Outcomes     []detectorOutcome
	Th           Thresholds
	Final        bool
}

// Assemble merges detector findings into a ValidationResult.
// Reasons list deviation descriptions, then anomaly descriptions, then skipped checks.
func Assemble(a Assembly) *domain.ValidationResult {
	res := &domain.ValidationResult{
		DeliveryRunID:        a.RunID,
		KmBeyondEqualisation: a.Equalisation.KmBeyond(a.Metrics.TotalDistanceKm),
		TotalDistanceKm:      a.Metrics.TotalDistanceKm,
		AverageSpeedKmh:      a.Metrics.AverageSpeedKmh,
		MaxSpeedKmh:          a.Metrics.MaxSpeedKmh,
		Deviations:           []domain.RouteDeviation{},
		Anomalies:            []domain.Anomaly{},
		GeofenceViolations:   []domain.GeofenceViolation{},
		EvidenceFileRefs:     EvidenceRefs(a.RunID, a.Reports),
		Reasons:              []string{},
		Final:                a.Final,
	}

	var skipped []string
	for _, o := range a.Outcomes {
		res.Deviations = append(res.Deviations, o.Deviations...)
		res.Anomalies = append(res.Anomalies, o.Anomalies...)
		res.GeofenceViolations = append(res.GeofenceViolations, o.Violations...)
		skipped = append(skipped, o.Skipped...)
	}

	for _, d := range res.Deviations {
		res.Reasons = append(res.Reasons, d.Description)
	}
	for _, an := range res.Anomalies {
		res.Reasons = append(res.Reasons, an.Description)
	}
	res.Reasons = append(res.Reasons, skipped...)

	res.IsValid = IsValid(res.Deviations, res.Anomalies)
	res.Confidence = Score(len(res.Deviations), len(res.Anomalies))
	if len(skipped) > 0 {
		res.Confidence = math.Min(res.Confidence, a.Th.DegradedConfidenceCap)
	}

	return res
}

// Rejected builds the verdict for a sequence that failed the quality gate:
// invalid, zero confidence, and the gate reasons. No further analysis runs.
func Rejected(runID string, reports []domain.PositionReport, gate GateResult, final bool) *domain.ValidationResult {
	return &domain.ValidationResult{
		DeliveryRunID:      runID,
		IsValid:            false,
		Deviations:         []domain.RouteDeviation{},
		Anomalies:          []domain.Anomaly{},
		GeofenceViolations: []domain.GeofenceViolation{},
		EvidenceFileRefs:   EvidenceRefs(runID, reports),
		Reasons:            append([]string{}, gate.Reasons...),
		Confidence:         0,
		Final:              final,
	}
}

// EvidenceRefs names the supporting artefacts for a verdict. Generation is
// delegated; names are derived from the run and a digest of the reports so
// the same snapshot always yields the same references.
func EvidenceRefs(runID string, reports []domain.PositionReport) []string {
	digest := reportsDigest(reports)
	return []string{
		fmt.Sprintf("evidence/%s/%s/trace-export.json", runID, digest),
		fmt.Sprintf("evidence/%s/%s/route-comparison.html", runID, digest),
	}
}

func reportsDigest(reports []domain.PositionReport) string {
	h := sha256.New()
	var buf [8]byte
	for _, r := range reports {
		h.Write([]byte(r.VehicleID))
		for _, f := range []float64{r.Latitude, r.Longitude} {
			binary.BigEndian.PutUint64(buf[:], math.Float64bits(f))
			h.Write(buf[:])
		}
		binary.BigEndian.PutUint64(buf[:], uint64(r.Timestamp.UnixNano()))
		h.Write(buf[:])
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
