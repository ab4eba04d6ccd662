package domain

import "math"

const earthRadiusKm = 6371.0

// Immutable geographic coordinates (longitude, latitude) in WGS 84 degrees.
type Coordinates struct {
	Lon float64 `json:"longitude"`
	Lat float64 `json:"latitude"`
}

// HaversineKm returns the great-circle distance between a and b in kilometres.
func HaversineKm(a, b Coordinates) float64 {
	if a == b {
		return 0
	}

	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)

	return 2 * earthRadiusKm * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// HaversineMeters is HaversineKm scaled to metres.
func HaversineMeters(a, b Coordinates) float64 {
	return HaversineKm(a, b) * 1000
}

// DistanceToSegmentKm returns the shortest distance from p to the segment a-b.
//
// The segment is projected onto a local equirectangular plane centred on p,
// which is accurate to well under a metre for the corridor widths used here
// and keeps the containment test cheap.
func DistanceToSegmentKm(p, a, b Coordinates) float64 {
	if a == b {
		return HaversineKm(p, a)
	}

	cosLat := math.Cos(p.Lat * math.Pi / 180)
	toXY := func(c Coordinates) (float64, float64) {
		x := (c.Lon - p.Lon) * math.Pi / 180 * earthRadiusKm * cosLat
		y := (c.Lat - p.Lat) * math.Pi / 180 * earthRadiusKm
		return x, y
	}

	ax, ay := toXY(a)
	bx, by := toXY(b)
	dx, dy := bx-ax, by-ay

	// p sits at the origin; clamp its projection onto a-b.
	t := -(ax*dx + ay*dy) / (dx*dx + dy*dy)
	t = math.Max(0, math.Min(1, t))

	cx, cy := ax+t*dx, ay+t*dy
	return math.Hypot(cx, cy)
}

// DistanceToPolylineKm returns the shortest distance from p to any segment of line.
// An empty line yields +Inf.
func DistanceToPolylineKm(p Coordinates, line []Coordinates) float64 {
	switch len(line) {
	case 0:
		return math.Inf(1)
	case 1:
		return HaversineKm(p, line[0])
	}

	best := math.Inf(1)
	for i := 1; i < len(line); i++ {
		if d := DistanceToSegmentKm(p, line[i-1], line[i]); d < best {
			best = d
		}
	}
	return best
}

// Centroid returns the arithmetic mean of pts. Callers must pass at least one point.
func Centroid(pts []Coordinates) Coordinates {
	var c Coordinates
	for _, p := range pts {
		c.Lat += p.Lat
		c.Lon += p.Lon
	}
	n := float64(len(pts))
	return Coordinates{Lon: c.Lon / n, Lat: c.Lat / n}
}
