package domain

// Lifecycle of a delivery run. Transitions are owned by dispatch;
// this service only reads the status.
type RunStatus string

const (
	RunScheduled RunStatus = "SCHEDULED"
	RunInTransit RunStatus = "IN_TRANSIT"
	RunCompleted RunStatus = "COMPLETED"
	RunCancelled RunStatus = "CANCELLED"
)

func (s RunStatus) Valid() bool {
	switch s {
	case RunScheduled, RunInTransit, RunCompleted, RunCancelled:
		return true
	}
	return false
}

// One tracked trip of a bulk road vehicle along a planned route.
type DeliveryRun struct {
	ID        string    `json:"id"`
	VehicleID string    `json:"vehicleId"`
	RouteID   string    `json:"routeId"`
	Status    RunStatus `json:"status"`
}
