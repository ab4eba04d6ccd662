package domain

import "time"

type AlertType string

const (
	AlertSpeedViolation      AlertType = "SPEED_VIOLATION"
	AlertGeofence            AlertType = "GEOFENCE_VIOLATION"
	AlertProlongedStationary AlertType = "PROLONGED_STATIONARY"
	AlertQueueOverflow       AlertType = "QUEUE_OVERFLOW"
	AlertStoreFailure        AlertType = "TRACE_STORE_FAILURE"
	AlertRegistryUnavailable AlertType = "REGISTRY_UNAVAILABLE"
	AlertReportRejected      AlertType = "REPORT_REJECTED"
)

// An advisory real-time event. Alerts never change a validation verdict.
type Alert struct {
	ID            string      `json:"id"`
	Type          AlertType   `json:"type"`
	VehicleID     string      `json:"vehicleId"`
	DeliveryRunID string      `json:"deliveryRunId,omitempty"`
	Location      Coordinates `json:"location"`
	Message       string      `json:"message"`
	RaisedAt      time.Time   `json:"raisedAt"`
}
