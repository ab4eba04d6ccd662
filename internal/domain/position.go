package domain

import "time"

// A single GPS fix reported by a vehicle. Immutable once recorded.
// SpeedKmh and AccuracyMeters are optional device readings.
type PositionReport struct {
	VehicleID      string    `json:"vehicleId"`
	Latitude       float64   `json:"latitude"`
	Longitude      float64   `json:"longitude"`
	Timestamp      time.Time `json:"timestamp"`
	SpeedKmh       *float64  `json:"speedKmh,omitempty"`
	AccuracyMeters *float64  `json:"accuracyMeters,omitempty"`
}

func (r PositionReport) Coordinates() Coordinates {
	return Coordinates{Lon: r.Longitude, Lat: r.Latitude}
}
