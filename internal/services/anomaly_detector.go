package services

import (
	"fmt"
	"route-validation-service/internal/domain"
)

const (
	signalLossConfidence      = 0.9
	impossibleSpeedConfidence = 0.8
	backtrackingConfidence    = 0.7
)

// DetectSignalLoss flags every gap between consecutive reports longer than th.SignalLossGap.
func DetectSignalLoss(reports []domain.PositionReport, th Thresholds) []domain.Anomaly {
	var out []domain.Anomaly
	for i := 1; i < len(reports); i++ {
		gap := reports[i].Timestamp.Sub(reports[i-1].Timestamp)
		if gap > th.SignalLossGap {
			out = append(out, domain.Anomaly{
				Type:        domain.AnomalyGPSSignalLoss,
				WindowStart: reports[i-1].Timestamp,
				WindowEnd:   reports[i].Timestamp,
				Confidence:  signalLossConfidence,
				Description: fmt.Sprintf("GPS signal lost for %.1f minutes", gap.Minutes()),
			})
		}
	}
	return out
}

// DetectImpossibleSpeed flags segments faster than the operational limit of
// the vehicle class. Segments with undefined speed are ignored.
func DetectImpossibleSpeed(reports []domain.PositionReport, segments []Segment, th Thresholds) []domain.Anomaly {
	var out []domain.Anomaly
	for _, s := range segments {
		if !s.HasSpeed || s.SpeedKmh <= th.ImpossibleSpeedKmh {
			continue
		}
		out = append(out, domain.Anomaly{
			Type:        domain.AnomalyImpossibleSpeed,
			WindowStart: reports[s.From].Timestamp,
			WindowEnd:   reports[s.To].Timestamp,
			Confidence:  impossibleSpeedConfidence,
			Description: fmt.Sprintf("impossible speed of %.1f km/h", s.SpeedKmh),
		})
	}
	return out
}

// DetectBacktracking flags reports that return within th.BacktrackRadiusMeters
// of any earlier, non-adjacent report. Only the first match per report is kept.
//
// The scan is quadratic in the number of reports. Trip traces hold hundreds of
// reports, so callers with very long traces should downsample first.
func DetectBacktracking(reports []domain.PositionReport, th Thresholds) []domain.Anomaly {
	var out []domain.Anomaly
	for i := 2; i < len(reports); i++ {
		p := reports[i].Coordinates()
		for j := 0; j < i-1; j++ {
			if domain.HaversineMeters(p, reports[j].Coordinates()) > th.BacktrackRadiusMeters {
				continue
			}
			out = append(out, domain.Anomaly{
				Type:        domain.AnomalyBacktracking,
				WindowStart: reports[j].Timestamp,
				WindowEnd:   reports[i].Timestamp,
				Confidence:  backtrackingConfidence,
				Description: "returned to previous location",
			})
			break
		}
	}
	return out
}

// DetectAnomalies runs the three anomaly checks in a fixed order.
func DetectAnomalies(reports []domain.PositionReport, metrics RouteMetrics, th Thresholds) []domain.Anomaly {
	var out []domain.Anomaly
	out = append(out, DetectSignalLoss(reports, th)...)
	out = append(out, DetectImpossibleSpeed(reports, metrics.Segments, th)...)
	out = append(out, DetectBacktracking(reports, th)...)
	return out
}
