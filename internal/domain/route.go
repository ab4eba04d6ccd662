package domain

// Ordered reference waypoints for a route identifier.
// It is immutable planning data and contains no side effects.
type PlannedRoute struct {
	RouteID   string        `json:"routeId"`
	Waypoints []Coordinates `json:"waypoints"`
}

// Distance on a route beyond which additional travel counts toward a recovery claim.
type EqualisationPoint struct {
	RouteID     string  `json:"routeId"`
	KmThreshold float64 `json:"kmThreshold"`
}

// KmBeyond returns max(0, totalKm - KmThreshold).
func (e EqualisationPoint) KmBeyond(totalKm float64) float64 {
	if d := totalKm - e.KmThreshold; d > 0 {
		return d
	}
	return 0
}

// An authorized rest or depot stop. An empty RouteID applies to every route.
type AuthorizedStop struct {
	ID           string      `json:"id"`
	RouteID      string      `json:"routeId,omitempty"`
	Name         string      `json:"name"`
	Center       Coordinates `json:"center"`
	RadiusMeters float64     `json:"radiusMeters"`
}

// A circular zone vehicles must not enter.
type RestrictedZone struct {
	ID           string      `json:"id"`
	Name         string      `json:"name"`
	Center       Coordinates `json:"center"`
	RadiusMeters float64     `json:"radiusMeters"`
}

func (z RestrictedZone) Contains(p Coordinates) bool {
	return HaversineMeters(z.Center, p) <= z.RadiusMeters
}

func (s AuthorizedStop) Contains(p Coordinates) bool {
	return HaversineMeters(s.Center, p) <= s.RadiusMeters
}
