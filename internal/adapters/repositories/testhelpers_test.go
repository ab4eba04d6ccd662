package repositories

import (
	"context"
	"database/sql"
	"route-validation-service/internal/domain"
	"route-validation-service/internal/platform/db"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()

	conn, err := db.Open(db.DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	require.NoError(t, MigrateUp(conn, db.DriverSQLite, zerolog.Nop()))
	return conn
}

var t0 = time.Date(2026, 3, 2, 6, 0, 0, 0, time.UTC)

func report(vehicle string, lat, lon float64, offset time.Duration) domain.PositionReport {
	return domain.PositionReport{
		VehicleID: vehicle,
		Latitude:  lat,
		Longitude: lon,
		Timestamp: t0.Add(offset),
	}
}

func seedFixture(t *testing.T, conn *sql.DB) {
	t.Helper()

	err := Seed(context.Background(), conn, db.DriverSQLite, ReferenceSeed{
		Runs: []domain.DeliveryRun{
			{ID: "RUN-001", VehicleID: "GT-4411-19", RouteID: "TEMA-KUMASI", Status: domain.RunInTransit},
			{ID: "RUN-002", VehicleID: "GR-2020-21", RouteID: "TEMA-KUMASI", Status: domain.RunCompleted},
		},
		Routes: []domain.PlannedRoute{{
			RouteID: "TEMA-KUMASI",
			Waypoints: []domain.Coordinates{
				{Lat: 5.6698, Lon: -0.0166},
				{Lat: 5.6037, Lon: -0.1870},
				{Lat: 6.6885, Lon: -1.6244},
			},
		}},
		EqualisationPoints: []domain.EqualisationPoint{{RouteID: "TEMA-KUMASI", KmThreshold: 150}},
		AuthorizedStops: []domain.AuthorizedStop{
			{ID: "STOP-NKAWKAW", RouteID: "TEMA-KUMASI", Name: "Nkawkaw rest stop", Center: domain.Coordinates{Lat: 6.5510, Lon: -0.7660}, RadiusMeters: 300},
			{ID: "STOP-DEPOT", Name: "Kumasi depot", Center: domain.Coordinates{Lat: 6.7000, Lon: -1.6300}, RadiusMeters: 500},
		},
		RestrictedZones: []domain.RestrictedZone{
			{ID: "ZONE-1", Name: "Akosombo dam perimeter", Center: domain.Coordinates{Lat: 6.2990, Lon: 0.0590}, RadiusMeters: 1000},
		},
	})
	require.NoError(t, err)
}
