package domain

import "time"

// The append-only record of position reports for one delivery run.
//
// Reports are kept in arrival order. Aggregates are running values maintained
// by the trace store on every append; the authoritative figures come from a
// full validation. A closed trace is read-only.
type Trace struct {
	DeliveryRunID   string           `json:"deliveryRunId"`
	VehicleID       string           `json:"vehicleId"`
	StartTime       time.Time        `json:"startTime"`
	EndTime         time.Time        `json:"endTime"`
	Reports         []PositionReport `json:"reports"`
	TotalKm         float64          `json:"totalKm"`
	AverageSpeedKmh float64          `json:"averageSpeedKmh"`
	MaxSpeedKmh     float64          `json:"maxSpeedKmh"`
	Closed          bool             `json:"closed"`
}

// NewTrace opens a trace from its first report.
func NewTrace(runID string, first PositionReport) *Trace {
	return &Trace{
		DeliveryRunID: runID,
		VehicleID:     first.VehicleID,
		StartTime:     first.Timestamp,
		EndTime:       first.Timestamp,
		Reports:       []PositionReport{first},
	}
}

// Append adds r and updates the running aggregates. The caller is responsible
// for rejecting appends on closed traces.
func (t *Trace) Append(r PositionReport) {
	if n := len(t.Reports); n > 0 {
		prev := t.Reports[n-1]
		km := HaversineKm(prev.Coordinates(), r.Coordinates())
		t.TotalKm += km

		if secs := r.Timestamp.Sub(prev.Timestamp).Seconds(); secs > 0 {
			if v := km / secs * 3600; v > t.MaxSpeedKmh {
				t.MaxSpeedKmh = v
			}
		}
	} else {
		t.StartTime = r.Timestamp
	}

	t.Reports = append(t.Reports, r)
	t.EndTime = r.Timestamp

	if hours := t.EndTime.Sub(t.StartTime).Hours(); hours > 0 {
		t.AverageSpeedKmh = t.TotalKm / hours
	}
}

// Snapshot returns a deep copy safe to hand to concurrent readers.
func (t *Trace) Snapshot() *Trace {
	cp := *t
	cp.Reports = make([]PositionReport, len(t.Reports))
	copy(cp.Reports, t.Reports)
	return &cp
}
