package services

import (
	"context"
	"fmt"
	"route-validation-service/internal/domain"
	"route-validation-service/internal/ports"
	"time"

	"github.com/rs/zerolog"
)

const reasonGeofenceSkipped = "geofence check skipped: registry unavailable"

// GeofenceChecker looks up every report in the restricted-zone registry.
type GeofenceChecker struct {
	Ref     ports.ReferenceDataProvider
	Timeout time.Duration
	Log     zerolog.Logger
}

// Check records a violation and a HIGH deviation for every report inside a
// restricted zone. If the registry fails, partial findings are discarded and
// the check is reported as skipped.
func (g *GeofenceChecker) Check(ctx context.Context, reports []domain.PositionReport) (detectorOutcome, error) {
	var out detectorOutcome

	for _, r := range reports {
		p := r.Coordinates()

		zone, restricted, err := g.lookup(ctx, p)
		if err != nil {
			if !isDegradable(ctx, err) {
				return detectorOutcome{}, fmt.Errorf("geofence checker: restricted area lookup: %w", err)
			}
			g.Log.Warn().Err(err).Msg("geofence registry unavailable; skipping geofence check")
			return detectorOutcome{Skipped: []string{reasonGeofenceSkipped}}, nil
		}
		if !restricted {
			continue
		}

		out.Violations = append(out.Violations, domain.GeofenceViolation{
			Location:      p,
			ZoneName:      zone,
			ViolationType: domain.DeviationUnauthorizedArea,
			Timestamp:     r.Timestamp,
		})
		out.Deviations = append(out.Deviations, domain.RouteDeviation{
			Type:        domain.DeviationUnauthorizedArea,
			Location:    p,
			Severity:    domain.SeverityHigh,
			Description: fmt.Sprintf("entered restricted zone %s", zone),
		})
	}

	return out, nil
}

func (g *GeofenceChecker) lookup(ctx context.Context, p domain.Coordinates) (string, bool, error) {
	callCtx, cancel := withRegistryTimeout(ctx, g.Timeout)
	defer cancel()
	return g.Ref.IsRestrictedArea(callCtx, p)
}
