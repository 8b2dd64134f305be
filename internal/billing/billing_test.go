package billing

import (
	"math"
	"testing"
)

func TestCostAfterOneMinute(t *testing.T) {
	r := Defaults()
	got := r.Cost(60, false)
	want := 1.00 + (60.0/60.0)*0.15
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("Cost(60) = %v, want %v", got, want)
	}
}

func TestCostWithAddOn(t *testing.T) {
	r := Defaults()
	got := r.Cost(60, true)
	want := 1.00 + 0.15 + 1.00
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("Cost(60, addOn) = %v, want %v", got, want)
	}
}

func TestCostAtStart(t *testing.T) {
	r := Defaults()
	if got := r.Cost(0, false); math.Abs(got-1.00) > 1e-9 {
		t.Errorf("Cost(0) = %v, want unlock fee 1.00", got)
	}
}

func TestDistanceAfterOneMinute(t *testing.T) {
	r := Defaults()
	got := r.Distance(60)
	want := 60 * 0.00278
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("Distance(60) = %v, want %v", got, want)
	}
}

func TestBatteryAfterOneMinute(t *testing.T) {
	r := Defaults()
	got := r.Battery(60)
	want := 85 - 0.05*60
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("Battery(60) = %v, want %v", got, want)
	}
}

func TestBatteryFloorsAtZero(t *testing.T) {
	r := Defaults()
	// 85 / 0.05 = 1700s drains to exactly zero; anything beyond stays there.
	for _, tick := range []int64{1700, 1701, 100000} {
		if got := r.Battery(tick); got != 0 {
			t.Errorf("Battery(%d) = %v, want 0", tick, got)
		}
	}
}

func TestMonotonicity(t *testing.T) {
	r := Defaults()
	prevCost, prevDist, prevBatt := r.Cost(0, false), r.Distance(0), r.Battery(0)
	for tick := int64(1); tick <= 2000; tick++ {
		cost, dist, batt := r.Cost(tick, false), r.Distance(tick), r.Battery(tick)
		if cost < prevCost {
			t.Fatalf("cost decreased at t=%d: %v < %v", tick, cost, prevCost)
		}
		if dist < prevDist {
			t.Fatalf("distance decreased at t=%d: %v < %v", tick, dist, prevDist)
		}
		if batt > prevBatt {
			t.Fatalf("battery increased at t=%d: %v > %v", tick, batt, prevBatt)
		}
		if batt < 0 {
			t.Fatalf("battery below zero at t=%d: %v", tick, batt)
		}
		prevCost, prevDist, prevBatt = cost, dist, batt
	}
}
