package geofence

import (
	"github.com/golang/geo/s2"

	"ride-service/internal/types"
)

// EarthRadiusMeters is Earth's mean radius.
const EarthRadiusMeters = 6371000.0

// Geofence is the closed service-area polygon. Vertices are immutable
// configuration; comparisons use native lat/lng units directly, which is
// acceptable only for small service areas.
type Geofence struct {
	vertices []types.Location
}

// New creates a geofence from an ordered vertex list. The polygon is treated
// as closed (last vertex connects back to the first).
func New(vertices []types.Location) *Geofence {
	v := make([]types.Location, len(vertices))
	copy(v, vertices)
	return &Geofence{vertices: v}
}

// Default is the built-in service area used when no polygon is configured.
func Default() *Geofence {
	return New([]types.Location{
		{Latitude: 30.2900, Longitude: -97.7500},
		{Latitude: 30.2900, Longitude: -97.7300},
		{Latitude: 30.2600, Longitude: -97.7300},
		{Latitude: 30.2600, Longitude: -97.7500},
	})
}

// Vertices returns a copy of the polygon.
func (g *Geofence) Vertices() []types.Location {
	v := make([]types.Location, len(g.vertices))
	copy(v, g.vertices)
	return v
}

// Contains reports whether the point lies inside the polygon, using ray
// casting: a horizontal ray from the point toggles parity each time it
// crosses an edge. A degenerate polygon (<3 vertices) contains nothing.
func (g *Geofence) Contains(p types.Location) bool {
	poly := g.vertices
	if len(poly) < 3 {
		return false
	}

	inside := false
	j := len(poly) - 1

	for i := 0; i < len(poly); i++ {
		if ((poly[i].Latitude > p.Latitude) != (poly[j].Latitude > p.Latitude)) &&
			(p.Longitude < (poly[j].Longitude-poly[i].Longitude)*(p.Latitude-poly[i].Latitude)/(poly[j].Latitude-poly[i].Latitude)+poly[i].Longitude) {
			inside = !inside
		}
		j = i
	}

	return inside
}

// Centroid returns the arithmetic centroid of the polygon vertices.
func (g *Geofence) Centroid() types.Location {
	if len(g.vertices) == 0 {
		return types.Location{}
	}
	var sumLat, sumLng float64
	for _, v := range g.vertices {
		sumLat += v.Latitude
		sumLng += v.Longitude
	}
	n := float64(len(g.vertices))
	return types.Location{Latitude: sumLat / n, Longitude: sumLng / n}
}

// CentroidDistanceMeters returns the great-circle distance from the point to
// the polygon centroid. Used for diagnostics when rejecting an out-of-area
// operation.
func (g *Geofence) CentroidDistanceMeters(p types.Location) float64 {
	c := g.Centroid()
	p1 := s2.LatLngFromDegrees(p.Latitude, p.Longitude)
	p2 := s2.LatLngFromDegrees(c.Latitude, c.Longitude)
	return p1.Distance(p2).Radians() * EarthRadiusMeters
}
