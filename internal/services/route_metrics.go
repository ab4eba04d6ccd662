package services

import (
	"route-validation-service/internal/domain"
	"time"

	"gonum.org/v1/gonum/floats"
)

// Segment describes travel between two consecutive reports.
// SpeedKmh is only meaningful when HasSpeed is true; zero-elapsed segments
// have an undefined speed rather than an infinite one.
type Segment struct {
	From       int
	To         int
	DistanceKm float64
	Elapsed    time.Duration
	SpeedKmh   float64
	HasSpeed   bool
}

type RouteMetrics struct {
	Segments        []Segment
	RawDistanceKm   float64
	TotalDistanceKm float64
	AverageSpeedKmh float64
	MaxSpeedKmh     float64
	Elapsed         time.Duration
}

// CalculateMetrics derives distance and speed figures from an ordered report sequence.
//
// Total distance is the haversine sum scaled by th.DistanceCompensation, a
// coarse constant for odometer and thermal drift rather than a physical model.
// Average speed is total distance over elapsed hours; maximum speed is the
// fastest defined segment speed.
func CalculateMetrics(reports []domain.PositionReport, th Thresholds) RouteMetrics {
	var m RouteMetrics
	if len(reports) < 2 {
		return m
	}

	m.Segments = make([]Segment, 0, len(reports)-1)
	distances := make([]float64, 0, len(reports)-1)
	speeds := make([]float64, 0, len(reports)-1)

	for i := 1; i < len(reports); i++ {
		prev, cur := reports[i-1], reports[i]

		seg := Segment{
			From:       i - 1,
			To:         i,
			DistanceKm: domain.HaversineKm(prev.Coordinates(), cur.Coordinates()),
			Elapsed:    cur.Timestamp.Sub(prev.Timestamp),
		}
		if seg.Elapsed > 0 {
			seg.SpeedKmh = seg.DistanceKm / seg.Elapsed.Seconds() * 3600
			seg.HasSpeed = true
			speeds = append(speeds, seg.SpeedKmh)
		}

		distances = append(distances, seg.DistanceKm)
		m.Segments = append(m.Segments, seg)
	}

	m.RawDistanceKm = floats.Sum(distances)
	m.TotalDistanceKm = m.RawDistanceKm * th.DistanceCompensation
	m.Elapsed = reports[len(reports)-1].Timestamp.Sub(reports[0].Timestamp)

	if len(speeds) > 0 {
		m.MaxSpeedKmh = floats.Max(speeds)
	}
	if hours := m.Elapsed.Hours(); hours > 0 {
		m.AverageSpeedKmh = m.TotalDistanceKm / hours
	}

	return m
}
