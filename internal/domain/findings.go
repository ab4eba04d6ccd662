package domain

import "time"

type Severity string

const (
	SeverityLow    Severity = "LOW"
	SeverityMedium Severity = "MEDIUM"
	SeverityHigh   Severity = "HIGH"
)

type DeviationType string

const (
	DeviationUnauthorizedStop DeviationType = "UNAUTHORIZED_STOP"
	DeviationRoute            DeviationType = "ROUTE_DEVIATION"
	DeviationUnauthorizedArea DeviationType = "UNAUTHORIZED_AREA"
)

// A departure from the planned route, an unauthorized stop, or a restricted-zone entry.
type RouteDeviation struct {
	Type        DeviationType `json:"type"`
	Location    Coordinates   `json:"location"`
	Severity    Severity      `json:"severity"`
	Description string        `json:"description"`
}

type AnomalyType string

const (
	AnomalyGPSSignalLoss   AnomalyType = "GPS_SIGNAL_LOSS"
	AnomalyImpossibleSpeed AnomalyType = "IMPOSSIBLE_SPEED"
	AnomalyBacktracking    AnomalyType = "BACKTRACKING"
)

// A suspicious pattern in the report stream over [WindowStart, WindowEnd].
// Confidence is in [0,1].
type Anomaly struct {
	Type        AnomalyType `json:"type"`
	WindowStart time.Time   `json:"windowStart"`
	WindowEnd   time.Time   `json:"windowEnd"`
	Confidence  float64     `json:"confidence"`
	Description string      `json:"description"`
}

// A position found inside a restricted zone.
type GeofenceViolation struct {
	Location      Coordinates   `json:"location"`
	ZoneName      string        `json:"zoneName"`
	ViolationType DeviationType `json:"violationType"`
	Timestamp     time.Time     `json:"timestamp"`
}
