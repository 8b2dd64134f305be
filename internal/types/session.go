package types

import (
	"time"

	"github.com/google/uuid"
)

// Peripheral is one discoverable bike as reported by the scan collaborator.
// Immutable once discovered; a re-advertisement supersedes it under the same ID.
type Peripheral struct {
	ID       string
	Name     string
	RSSI     int
	Services []string
}

// Location is one point-in-time coordinate from the location watcher.
type Location struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lng"`
}

// Session is the live record of one bike use from connect to disconnect.
// Owned by the ride system; all access goes through its mutex.
type Session struct {
	ID             string
	Peripheral     Peripheral
	StartedAt      time.Time
	ElapsedSeconds int64
	Cost           float64
	DistanceMiles  float64
	BatteryPercent float64
	AddOnPurchased bool
	AddOnActive    bool
}

// NewSession creates a session bound to a peripheral with default telemetry.
func NewSession(p Peripheral) Session {
	return Session{
		ID:         uuid.NewString(),
		Peripheral: p,
	}
}

// RideSummary is the immutable snapshot captured when a ride ends.
// Complete is false when the snapshot was forced by link loss.
type RideSummary struct {
	ID              string
	SessionID       string
	PeripheralID    string
	DurationSeconds int64
	DistanceMiles   float64
	Cost            float64
	Complete        bool
	EndedAt         time.Time
}
