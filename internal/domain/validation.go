package domain

// The verdict for one delivery run, with its supporting evidence.
// Serialized as-is for the claims subsystem.
type ValidationResult struct {
	DeliveryRunID        string              `json:"deliveryRunId"`
	IsValid              bool                `json:"isValid"`
	KmBeyondEqualisation float64             `json:"kmBeyondEqualisation"`
	TotalDistanceKm      float64             `json:"totalDistanceKm"`
	AverageSpeedKmh      float64             `json:"averageSpeedKmh"`
	MaxSpeedKmh          float64             `json:"maxSpeedKmh"`
	Deviations           []RouteDeviation    `json:"deviations"`
	Anomalies            []Anomaly           `json:"anomalies"`
	GeofenceViolations   []GeofenceViolation `json:"geofenceViolations"`
	EvidenceFileRefs     []string            `json:"evidenceFileRefs"`
	Reasons              []string            `json:"reasons"`
	Confidence           float64             `json:"confidence"`

	// Final is set when the trace was closed at validation time.
	Final bool `json:"final"`
}

// HasHighSeverityDeviation reports whether any deviation is HIGH.
func (r *ValidationResult) HasHighSeverityDeviation() bool {
	for _, d := range r.Deviations {
		if d.Severity == SeverityHigh {
			return true
		}
	}
	return false
}
