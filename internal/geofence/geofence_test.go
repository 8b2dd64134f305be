package geofence

import (
	"testing"

	"ride-service/internal/types"
)

func square() *Geofence {
	return New([]types.Location{
		{Latitude: 0, Longitude: 0},
		{Latitude: 0, Longitude: 10},
		{Latitude: 10, Longitude: 10},
		{Latitude: 10, Longitude: 0},
	})
}

func TestContainsInside(t *testing.T) {
	g := square()
	points := []types.Location{
		{Latitude: 5, Longitude: 5},
		{Latitude: 0.1, Longitude: 0.1},
		{Latitude: 9.9, Longitude: 9.9},
	}
	for _, p := range points {
		if !g.Contains(p) {
			t.Errorf("expected (%v, %v) inside", p.Latitude, p.Longitude)
		}
	}
}

func TestContainsOutside(t *testing.T) {
	g := square()
	points := []types.Location{
		{Latitude: -1, Longitude: 5},
		{Latitude: 5, Longitude: 11},
		{Latitude: 15, Longitude: 15},
		{Latitude: -5, Longitude: -5},
	}
	for _, p := range points {
		if g.Contains(p) {
			t.Errorf("expected (%v, %v) outside", p.Latitude, p.Longitude)
		}
	}
}

func TestContainsDegenerate(t *testing.T) {
	g := New([]types.Location{
		{Latitude: 0, Longitude: 0},
		{Latitude: 10, Longitude: 10},
	})
	if g.Contains(types.Location{Latitude: 5, Longitude: 5}) {
		t.Error("degenerate polygon must contain nothing")
	}
	if New(nil).Contains(types.Location{}) {
		t.Error("empty polygon must contain nothing")
	}
}

func TestContainsConcave(t *testing.T) {
	// L-shape: the notch at the top right is outside.
	g := New([]types.Location{
		{Latitude: 0, Longitude: 0},
		{Latitude: 0, Longitude: 10},
		{Latitude: 5, Longitude: 10},
		{Latitude: 5, Longitude: 5},
		{Latitude: 10, Longitude: 5},
		{Latitude: 10, Longitude: 0},
	})
	if !g.Contains(types.Location{Latitude: 2, Longitude: 8}) {
		t.Error("expected point in the wide arm inside")
	}
	if g.Contains(types.Location{Latitude: 8, Longitude: 8}) {
		t.Error("expected point in the notch outside")
	}
}

func TestDefaultContainsOwnCentroid(t *testing.T) {
	g := Default()
	if !g.Contains(g.Centroid()) {
		t.Error("default service area should contain its centroid")
	}
}

func TestCentroidDistanceMeters(t *testing.T) {
	g := square()
	// Centroid is (5,5); distance from centroid to itself is zero.
	if d := g.CentroidDistanceMeters(types.Location{Latitude: 5, Longitude: 5}); d > 1 {
		t.Errorf("expected ~0 distance at centroid, got %v", d)
	}
	// One degree of latitude is ~111 km.
	d := g.CentroidDistanceMeters(types.Location{Latitude: 6, Longitude: 5})
	if d < 100000 || d > 125000 {
		t.Errorf("unexpected distance for 1 degree of latitude: %v", d)
	}
}
