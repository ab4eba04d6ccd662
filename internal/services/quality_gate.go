package services

import (
	"fmt"
	"route-validation-service/internal/domain"
	"time"
)

type GateResult struct {
	Passed  bool
	Reasons []string
}

// CheckQuality rejects report sequences that are internally implausible.
//
// A sequence fails when it has fewer than th.MinReports reports, when any
// timestamp is not strictly after its predecessor, or when any consecutive
// pair implies a speed above th.CorruptSpeedKmh. That limit marks sensor or
// data corruption and is deliberately higher than the operational
// impossible-speed anomaly. Every violation is reported; nothing is sorted
// or repaired.
func CheckQuality(reports []domain.PositionReport, th Thresholds) GateResult {
	var reasons []string

	if len(reports) < th.MinReports {
		reasons = append(reasons, fmt.Sprintf(
			"insufficient data: %d position reports, at least %d required",
			len(reports), th.MinReports,
		))
	}

	for i := 1; i < len(reports); i++ {
		prev, cur := reports[i-1], reports[i]

		elapsed := cur.Timestamp.Sub(prev.Timestamp)
		if elapsed <= 0 {
			reasons = append(reasons, fmt.Sprintf(
				"non-chronological timestamp at report %d: %s is not after %s",
				i, cur.Timestamp.Format(time.RFC3339), prev.Timestamp.Format(time.RFC3339),
			))
			continue
		}

		km := domain.HaversineKm(prev.Coordinates(), cur.Coordinates())
		if speed := km / elapsed.Seconds() * 3600; speed > th.CorruptSpeedKmh {
			reasons = append(reasons, fmt.Sprintf(
				"corrupt data: implied speed %.1f km/h between reports %d and %d exceeds %.0f km/h",
				speed, i-1, i, th.CorruptSpeedKmh,
			))
		}
	}

	return GateResult{Passed: len(reasons) == 0, Reasons: reasons}
}
