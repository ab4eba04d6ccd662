package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"route-validation-service/internal/domain"
	"slices"
	"strings"
)

// ReferenceSeed is the JSON layout accepted by SeedFromJSON.
type ReferenceSeed struct {
	Runs               []domain.DeliveryRun       `json:"runs"`
	Routes             []domain.PlannedRoute      `json:"routes"`
	EqualisationPoints []domain.EqualisationPoint `json:"equalisationPoints"`
	AuthorizedStops    []domain.AuthorizedStop    `json:"authorizedStops"`
	RestrictedZones    []domain.RestrictedZone    `json:"restrictedZones"`
}

// Populate the reference tables from a JSON file. Existing rows with the
// same keys are replaced.
func SeedFromJSON(ctx context.Context, db *sql.DB, driver, jsonPath string) error {
	data, err := LoadSeed(jsonPath)
	if err != nil {
		return err
	}
	return Seed(ctx, db, driver, data)
}

// LoadSeed reads a ReferenceSeed without touching the database.
func LoadSeed(jsonPath string) (ReferenceSeed, error) {
	bytes, err := os.ReadFile(jsonPath)
	if err != nil {
		return ReferenceSeed{}, fmt.Errorf("seed reference data: read %q: %w", jsonPath, err)
	}

	var data ReferenceSeed
	if err := json.Unmarshal(bytes, &data); err != nil {
		return ReferenceSeed{}, fmt.Errorf("seed reference data: parse json: %w", err)
	}
	return data, nil
}

// RouteIDs lists, sorted and once each, the routes whose planning data the
// seed writes.
func (d ReferenceSeed) RouteIDs() []string {
	ids := make([]string, 0, len(d.Routes)+len(d.EqualisationPoints))
	for _, rt := range d.Routes {
		ids = append(ids, rt.RouteID)
	}
	for _, eq := range d.EqualisationPoints {
		ids = append(ids, eq.RouteID)
	}
	slices.Sort(ids)
	return slices.Compact(ids)
}

func Seed(ctx context.Context, db *sql.DB, driver string, data ReferenceSeed) error {
	if db == nil {
		return errors.New("seed reference data: DB is nil")
	}
	if err := data.validate(); err != nil {
		return fmt.Errorf("seed reference data: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("seed reference data: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	exec := func(what, query string, args ...any) error {
		if _, err := tx.ExecContext(ctx, rebind(driver, query), args...); err != nil {
			return fmt.Errorf("seed reference data: %s: %w", what, err)
		}
		return nil
	}

	for _, r := range data.Runs {
		err := exec("insert run "+r.ID, `
		INSERT INTO delivery_runs (id, vehicle_id, route_id, status)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE
		SET vehicle_id = EXCLUDED.vehicle_id,
			route_id = EXCLUDED.route_id,
			status = EXCLUDED.status;
		`, r.ID, r.VehicleID, r.RouteID, string(r.Status))
		if err != nil {
			return err
		}
	}

	for _, rt := range data.Routes {
		if err := exec("clear route "+rt.RouteID, `DELETE FROM planned_routes WHERE route_id = ?;`, rt.RouteID); err != nil {
			return err
		}
		for i, w := range rt.Waypoints {
			err := exec(fmt.Sprintf("insert waypoint %d of %s", i, rt.RouteID), `
			INSERT INTO planned_routes (route_id, seq, lat, lon)
			VALUES (?, ?, ?, ?);
			`, rt.RouteID, i, w.Lat, w.Lon)
			if err != nil {
				return err
			}
		}
	}

	for _, eq := range data.EqualisationPoints {
		err := exec("insert equalisation point "+eq.RouteID, `
		INSERT INTO equalisation_points (route_id, km_threshold)
		VALUES (?, ?)
		ON CONFLICT (route_id) DO UPDATE
		SET km_threshold = EXCLUDED.km_threshold;
		`, eq.RouteID, eq.KmThreshold)
		if err != nil {
			return err
		}
	}

	for _, st := range data.AuthorizedStops {
		err := exec("insert authorized stop "+st.ID, `
		INSERT INTO authorized_stops (id, route_id, name, lat, lon, radius_meters)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE
		SET route_id = EXCLUDED.route_id,
			name = EXCLUDED.name,
			lat = EXCLUDED.lat,
			lon = EXCLUDED.lon,
			radius_meters = EXCLUDED.radius_meters;
		`, st.ID, st.RouteID, st.Name, st.Center.Lat, st.Center.Lon, st.RadiusMeters)
		if err != nil {
			return err
		}
	}

	for _, z := range data.RestrictedZones {
		err := exec("insert restricted zone "+z.ID, `
		INSERT INTO restricted_zones (id, name, lat, lon, radius_meters)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name,
			lat = EXCLUDED.lat,
			lon = EXCLUDED.lon,
			radius_meters = EXCLUDED.radius_meters;
		`, z.ID, z.Name, z.Center.Lat, z.Center.Lon, z.RadiusMeters)
		if err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("seed reference data: commit tx: %w", err)
	}
	return nil
}

func (d ReferenceSeed) validate() error {
	for i, r := range d.Runs {
		if strings.TrimSpace(r.ID) == "" || strings.TrimSpace(r.VehicleID) == "" || strings.TrimSpace(r.RouteID) == "" {
			return fmt.Errorf("run at index %d: id, vehicleId and routeId are required", i)
		}
		if !r.Status.Valid() {
			return fmt.Errorf("run %q: invalid status %q", r.ID, r.Status)
		}
	}
	for i, rt := range d.Routes {
		if strings.TrimSpace(rt.RouteID) == "" {
			return fmt.Errorf("route at index %d: routeId is required", i)
		}
		if len(rt.Waypoints) == 0 {
			return fmt.Errorf("route %q: at least one waypoint is required", rt.RouteID)
		}
	}
	for i, eq := range d.EqualisationPoints {
		if strings.TrimSpace(eq.RouteID) == "" || eq.KmThreshold < 0 {
			return fmt.Errorf("equalisation point at index %d: routeId and a non-negative kmThreshold are required", i)
		}
	}
	for i, st := range d.AuthorizedStops {
		if strings.TrimSpace(st.ID) == "" || st.RadiusMeters <= 0 {
			return fmt.Errorf("authorized stop at index %d: id and a positive radiusMeters are required", i)
		}
	}
	for i, z := range d.RestrictedZones {
		if strings.TrimSpace(z.ID) == "" || z.RadiusMeters <= 0 {
			return fmt.Errorf("restricted zone at index %d: id and a positive radiusMeters are required", i)
		}
	}
	return nil
}
