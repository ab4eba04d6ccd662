package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"route-validation-service/internal/domain"
	"route-validation-service/internal/platform/obs"

	"github.com/rs/zerolog"
)

// SQL-backed implementation of the ReferenceDataProvider port, reading the
// dispatch, planning, equalisation and geofence tables.
//
// Missing records return the matching domain not-found error. Any other
// database failure is reported as domain.ErrRegistryUnavailable.
type SQLReferenceData struct {
	DB     *sql.DB
	Driver string
	Log    zerolog.Logger
}

func NewSQLReferenceData(db *sql.DB, driver string, log zerolog.Logger) *SQLReferenceData {
	return &SQLReferenceData{DB: db, Driver: driver, Log: log}
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, domain.ErrRegistryUnavailable, err)
}

func (s *SQLReferenceData) GetRun(ctx context.Context, runID string) (domain.DeliveryRun, error) {
	return s.queryRun(ctx, "get run", `
	SELECT id, vehicle_id, route_id, status
	FROM delivery_runs
	WHERE id = ?;
	`, runID)
}

func (s *SQLReferenceData) FindActiveRun(ctx context.Context, vehicleID string) (domain.DeliveryRun, error) {
	return s.queryRun(ctx, "find active run", `
	SELECT id, vehicle_id, route_id, status
	FROM delivery_runs
	WHERE vehicle_id = ? AND status = 'IN_TRANSIT'
	ORDER BY id
	LIMIT 1;
	`, vehicleID)
}

func (s *SQLReferenceData) queryRun(ctx context.Context, op, query string, arg string) (domain.DeliveryRun, error) {
	if s.DB == nil {
		return domain.DeliveryRun{}, errors.New("sql reference data: DB is nil")
	}

	var (
		run    domain.DeliveryRun
		status string
	)
	err := s.DB.QueryRowContext(ctx, rebind(s.Driver, query), arg).
		Scan(&run.ID, &run.VehicleID, &run.RouteID, &status)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.DeliveryRun{}, fmt.Errorf("%s %q: %w", op, arg, domain.ErrRunNotFound)
	}
	if err != nil {
		return domain.DeliveryRun{}, unavailable(op, err)
	}

	run.Status = domain.RunStatus(status)
	if !run.Status.Valid() {
		return domain.DeliveryRun{}, fmt.Errorf("%s %q: unknown status %q", op, arg, status)
	}
	return run, nil
}

func (s *SQLReferenceData) GetPlannedRoute(ctx context.Context, routeID string) (_ domain.PlannedRoute, err error) {
	defer obs.Time(ctx, s.Log, "reference.GetPlannedRoute")(&err)

	if s.DB == nil {
		return domain.PlannedRoute{}, errors.New("sql reference data: DB is nil")
	}

	rows, err := s.DB.QueryContext(ctx, rebind(s.Driver, `
	SELECT lat, lon
	FROM planned_routes
	WHERE route_id = ?
	ORDER BY seq;
	`), routeID)
	if err != nil {
		return domain.PlannedRoute{}, unavailable("get planned route", err)
	}
	defer rows.Close()

	route := domain.PlannedRoute{RouteID: routeID}
	for rows.Next() {
		var c domain.Coordinates
		if err := rows.Scan(&c.Lat, &c.Lon); err != nil {
			return domain.PlannedRoute{}, fmt.Errorf("get planned route: scan row: %w", err)
		}
		route.Waypoints = append(route.Waypoints, c)
	}
	if err := rows.Err(); err != nil {
		return domain.PlannedRoute{}, unavailable("get planned route", err)
	}

	if len(route.Waypoints) == 0 {
		return domain.PlannedRoute{}, fmt.Errorf("get planned route %q: %w", routeID, domain.ErrRouteNotFound)
	}
	return route, nil
}

func (s *SQLReferenceData) GetEqualisationPoint(ctx context.Context, routeID string) (domain.EqualisationPoint, error) {
	if s.DB == nil {
		return domain.EqualisationPoint{}, errors.New("sql reference data: DB is nil")
	}

	eq := domain.EqualisationPoint{RouteID: routeID}
	err := s.DB.QueryRowContext(ctx, rebind(s.Driver, `
	SELECT km_threshold
	FROM equalisation_points
	WHERE route_id = ?;
	`), routeID).Scan(&eq.KmThreshold)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.EqualisationPoint{}, fmt.Errorf("get equalisation point %q: %w", routeID, domain.ErrEqualisationPointNotFound)
	}
	if err != nil {
		return domain.EqualisationPoint{}, unavailable("get equalisation point", err)
	}
	return eq, nil
}

// IsAuthorizedStop matches location against the stops of routeID and the
// stops that apply to every route.
func (s *SQLReferenceData) IsAuthorizedStop(ctx context.Context, location domain.Coordinates, routeID string) (bool, error) {
	if s.DB == nil {
		return false, errors.New("sql reference data: DB is nil")
	}

	rows, err := s.DB.QueryContext(ctx, rebind(s.Driver, `
	SELECT id, route_id, name, lat, lon, radius_meters
	FROM authorized_stops
	WHERE route_id = ? OR route_id = '';
	`), routeID)
	if err != nil {
		return false, unavailable("is authorized stop", err)
	}
	defer rows.Close()

	for rows.Next() {
		var st domain.AuthorizedStop
		if err := rows.Scan(&st.ID, &st.RouteID, &st.Name, &st.Center.Lat, &st.Center.Lon, &st.RadiusMeters); err != nil {
			return false, fmt.Errorf("is authorized stop: scan row: %w", err)
		}
		if st.Contains(location) {
			return true, nil
		}
	}
	if err := rows.Err(); err != nil {
		return false, unavailable("is authorized stop", err)
	}
	return false, nil
}

// IsRestrictedArea returns the name of the first zone, by ID, containing point.
func (s *SQLReferenceData) IsRestrictedArea(ctx context.Context, point domain.Coordinates) (string, bool, error) {
	zones, err := s.ListRestrictedZones(ctx)
	if err != nil {
		return "", false, err
	}
	for _, z := range zones {
		if z.Contains(point) {
			return z.Name, true, nil
		}
	}
	return "", false, nil
}

func (s *SQLReferenceData) ListRestrictedZones(ctx context.Context) ([]domain.RestrictedZone, error) {
	if s.DB == nil {
		return nil, errors.New("sql reference data: DB is nil")
	}

	rows, err := s.DB.QueryContext(ctx, `
	SELECT id, name, lat, lon, radius_meters
	FROM restricted_zones
	ORDER BY id;
	`)
	if err != nil {
		return nil, unavailable("list restricted zones", err)
	}
	defer rows.Close()

	zones := make([]domain.RestrictedZone, 0, 16)
	for rows.Next() {
		var z domain.RestrictedZone
		if err := rows.Scan(&z.ID, &z.Name, &z.Center.Lat, &z.Center.Lon, &z.RadiusMeters); err != nil {
			return nil, fmt.Errorf("list restricted zones: scan row: %w", err)
		}
		zones = append(zones, z)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("list restricted zones", err)
	}
	return zones, nil
}
