package dto

import (
	"errors"
	"fmt"
	"route-validation-service/internal/domain"
	"strings"
	"time"
)

// One inbound position report. Pointers distinguish missing fields from zero.
type TelemetryMessage struct {
	VehicleID      string   `json:"vehicleId"`
	Latitude       *float64 `json:"latitude"`
	Longitude      *float64 `json:"longitude"`
	Timestamp      string   `json:"timestamp"`
	SpeedKmh       *float64 `json:"speedKmh,omitempty"`
	AccuracyMeters *float64 `json:"accuracyMeters,omitempty"`
}

// A single message, or a batch under "reports".
type TelemetryRequest struct {
	TelemetryMessage
	Reports []TelemetryMessage `json:"reports,omitempty"`
}

type TelemetryResponse struct {
	Queued  int `json:"queued"`
	Dropped int `json:"dropped"`
}

// ErrMixedTelemetry rejects a body carrying a top-level report and a batch.
var ErrMixedTelemetry = errors.New("send either a single report or a reports batch, not both")

// Messages returns the batch, or the single message when no batch was sent.
func (r TelemetryRequest) Messages() ([]TelemetryMessage, error) {
	if len(r.Reports) == 0 {
		return []TelemetryMessage{r.TelemetryMessage}, nil
	}
	if !r.TelemetryMessage.isEmpty() {
		return nil, ErrMixedTelemetry
	}
	return r.Reports, nil
}

func (m TelemetryMessage) isEmpty() bool {
	return m.VehicleID == "" && m.Latitude == nil && m.Longitude == nil &&
		m.Timestamp == "" && m.SpeedKmh == nil && m.AccuracyMeters == nil
}

// ToReport validates m and converts it to a domain report with a UTC timestamp.
func (m TelemetryMessage) ToReport() (domain.PositionReport, error) {
	vehicle := strings.TrimSpace(m.VehicleID)
	if vehicle == "" {
		return domain.PositionReport{}, errors.New("vehicleId is required")
	}
	if m.Latitude == nil || *m.Latitude < -90 || *m.Latitude > 90 {
		return domain.PositionReport{}, errors.New("latitude must be between -90 and 90")
	}
	if m.Longitude == nil || *m.Longitude < -180 || *m.Longitude > 180 {
		return domain.PositionReport{}, errors.New("longitude must be between -180 and 180")
	}

	ts, err := time.Parse(time.RFC3339, strings.TrimSpace(m.Timestamp))
	if err != nil {
		return domain.PositionReport{}, fmt.Errorf("timestamp must be RFC3339: %w", err)
	}

	if m.SpeedKmh != nil && *m.SpeedKmh < 0 {
		return domain.PositionReport{}, errors.New("speedKmh must not be negative")
	}
	if m.AccuracyMeters != nil && *m.AccuracyMeters < 0 {
		return domain.PositionReport{}, errors.New("accuracyMeters must not be negative")
	}

	return domain.PositionReport{
		VehicleID:      vehicle,
		Latitude:       *m.Latitude,
		Longitude:      *m.Longitude,
		Timestamp:      ts.UTC(),
		SpeedKmh:       m.SpeedKmh,
		AccuracyMeters: m.AccuracyMeters,
	}, nil
}
