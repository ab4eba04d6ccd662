package services

import "time"

// Thresholds collects the numeric limits used by the validation pipeline
// and the real-time monitor.
type Thresholds struct {
	// Quality gate
	MinReports      int
	CorruptSpeedKmh float64

	// Fixed odometer/thermal drift compensation applied to total distance.
	DistanceCompensation float64

	// Deviation detector
	CorridorWidthKm   float64
	StopRadiusMeters  float64
	MinStopDuration   time.Duration
	StopCheckDuration time.Duration
	LongStopDuration  time.Duration

	// Anomaly detector
	SignalLossGap         time.Duration
	ImpossibleSpeedKmh    float64
	BacktrackRadiusMeters float64

	// Real-time monitor
	RealtimeSpeedKmh       float64
	StationaryWindow       int
	StationaryRadiusMeters float64

	// Confidence ceiling when a registry-backed check had to be skipped.
	DegradedConfidenceCap float64
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		MinReports:             10,
		CorruptSpeedKmh:        200,
		DistanceCompensation:   1.001,
		CorridorWidthKm:        2,
		StopRadiusMeters:       100,
		MinStopDuration:        10 * time.Minute,
		StopCheckDuration:      30 * time.Minute,
		LongStopDuration:       2 * time.Hour,
		SignalLossGap:          15 * time.Minute,
		ImpossibleSpeedKmh:     120,
		BacktrackRadiusMeters:  500,
		RealtimeSpeedKmh:       80,
		StationaryWindow:       10,
		StationaryRadiusMeters: 100,
		DegradedConfidenceCap:  0.7,
	}
}
