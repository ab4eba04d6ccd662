package ports

import (
	"context"
	"route-validation-service/internal/domain"
)

// Port: read access to the dispatch, route-planning, equalisation and geofence registries.
//
// Lookups of missing records return the matching domain.Err*NotFound error.
// Transport failures should wrap domain.ErrRegistryUnavailable so callers can degrade.
type ReferenceDataProvider interface {
	GetRun(ctx context.Context, runID string) (domain.DeliveryRun, error)
	// The IN_TRANSIT run currently assigned to a vehicle, or domain.ErrRunNotFound.
	FindActiveRun(ctx context.Context, vehicleID string) (domain.DeliveryRun, error)
	GetPlannedRoute(ctx context.Context, routeID string) (domain.PlannedRoute, error)
	GetEqualisationPoint(ctx context.Context, routeID string) (domain.EqualisationPoint, error)
	IsAuthorizedStop(ctx context.Context, location domain.Coordinates, routeID string) (bool, error)
	// Name of the restricted zone containing point, and whether one does.
	IsRestrictedArea(ctx context.Context, point domain.Coordinates) (string, bool, error)
}
