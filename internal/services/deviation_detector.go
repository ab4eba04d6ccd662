package services

import (
	"context"
	"fmt"
	"route-validation-service/internal/domain"
	"route-validation-service/internal/ports"
	"time"

	"github.com/rs/zerolog"
)

const (
	reasonCorridorSkipped = "corridor check skipped: planned route unavailable"
	reasonStopsSkipped    = "authorized-stop check skipped: registry unavailable"
)

// Stop is a maximal run of reports, each within th.StopRadiusMeters of the
// previous one, lasting at least th.MinStopDuration.
type Stop struct {
	First    int
	Last     int
	Location domain.Coordinates
	Start    time.Time
	End      time.Time
}

func (s Stop) Duration() time.Duration { return s.End.Sub(s.Start) }

// detectorOutcome is what each concurrent detector hands to the assembler.
// Skipped lists reasons for checks that could not run; any skip caps confidence.
type detectorOutcome struct {
	Deviations []domain.RouteDeviation
	Anomalies  []domain.Anomaly
	Violations []domain.GeofenceViolation
	Skipped    []string
}

// DeviationDetector compares the actual path with the planned route and
// looks for stops the authorized-stop registry does not know about.
type DeviationDetector struct {
	Ref     ports.ReferenceDataProvider
	Th      Thresholds
	Timeout time.Duration
	Log     zerolog.Logger
}

// CheckCorridor flags every report farther than th.CorridorWidthKm from the
// planned polyline. This is the buffer-polygon containment test expressed as
// a point-to-polyline distance.
func CheckCorridor(reports []domain.PositionReport, route domain.PlannedRoute, th Thresholds) []domain.RouteDeviation {
	if len(route.Waypoints) == 0 {
		return nil
	}

	var out []domain.RouteDeviation
	for _, r := range reports {
		p := r.Coordinates()
		if domain.DistanceToPolylineKm(p, route.Waypoints) > th.CorridorWidthKm {
			out = append(out, domain.RouteDeviation{
				Type:        domain.DeviationRoute,
				Location:    p,
				Severity:    domain.SeverityMedium,
				Description: fmt.Sprintf("deviated beyond %g km corridor", th.CorridorWidthKm),
			})
		}
	}
	return out
}

// DetectStops finds stationary periods in an ordered report sequence.
func DetectStops(reports []domain.PositionReport, th Thresholds) []Stop {
	var stops []Stop

	for i := 0; i < len(reports); {
		j := i
		for j+1 < len(reports) &&
			domain.HaversineMeters(reports[j].Coordinates(), reports[j+1].Coordinates()) <= th.StopRadiusMeters {
			j++
		}

		if j > i {
			start, end := reports[i].Timestamp, reports[j].Timestamp
			if end.Sub(start) >= th.MinStopDuration {
				pts := make([]domain.Coordinates, 0, j-i+1)
				for k := i; k <= j; k++ {
					pts = append(pts, reports[k].Coordinates())
				}
				stops = append(stops, Stop{
					First:    i,
					Last:     j,
					Location: domain.Centroid(pts),
					Start:    start,
					End:      end,
				})
			}
		}
		i = j + 1
	}

	return stops
}

// Detect runs the corridor and unauthorized-stop checks.
// A nil or empty route means there is nothing to compare against; the
// corridor check is then skipped. Only a cancelled ctx produces an error.
func (d *DeviationDetector) Detect(
	ctx context.Context,
	reports []domain.PositionReport,
	route *domain.PlannedRoute,
	routeID string,
) (detectorOutcome, error) {
	var out detectorOutcome

	if route != nil && len(route.Waypoints) > 0 {
		out.Deviations = append(out.Deviations, CheckCorridor(reports, *route, d.Th)...)
	} else {
		out.Skipped = append(out.Skipped, reasonCorridorSkipped)
	}

	for _, s := range DetectStops(reports, d.Th) {
		dur := s.Duration()
		if dur <= d.Th.StopCheckDuration {
			continue
		}

		authorized, err := d.isAuthorized(ctx, s.Location, routeID)
		if err != nil {
			if !isDegradable(ctx, err) {
				return detectorOutcome{}, fmt.Errorf("deviation detector: authorized stop lookup: %w", err)
			}
			d.Log.Warn().Err(err).Str("route_id", routeID).Msg("authorized-stop registry unavailable; skipping stop checks")
			out.Skipped = append(out.Skipped, reasonStopsSkipped)
			break
		}
		if authorized {
			continue
		}

		severity := domain.SeverityMedium
		if dur > d.Th.LongStopDuration {
			severity = domain.SeverityHigh
		}
		out.Deviations = append(out.Deviations, domain.RouteDeviation{
			Type:        domain.DeviationUnauthorizedStop,
			Location:    s.Location,
			Severity:    severity,
			Description: fmt.Sprintf("unauthorized stop of %d minutes", int(dur.Minutes())),
		})
	}

	return out, nil
}

func (d *DeviationDetector) isAuthorized(ctx context.Context, loc domain.Coordinates, routeID string) (bool, error) {
	callCtx, cancel := withRegistryTimeout(ctx, d.Timeout)
	defer cancel()
	return d.Ref.IsAuthorizedStop(callCtx, loc, routeID)
}
