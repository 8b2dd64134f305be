package fsm

import "github.com/librescoot/librefsm"

// Actions defines the interface for session state machine actions.
// RideSystem implements this interface to handle state entry/exit and to
// provide guards for conditional transitions.
type Actions interface {
	// State entry actions
	EnterConnecting(c *librefsm.Context) error
	EnterConnected(c *librefsm.Context) error
	EnterActivated(c *librefsm.Context) error
	EnterRiding(c *librefsm.Context) error
	EnterEnding(c *librefsm.Context) error
	EnterDisconnected(c *librefsm.Context) error

	// State exit actions
	ExitRiding(c *librefsm.Context) error

	// Guards for conditional transitions
	IsInsideServiceArea(c *librefsm.Context) bool // True when the last known location is inside the geofence

	// Transition actions
	OnConnectTimeout(c *librefsm.Context) error // Tear down the abandoned connection attempt
	OnLinkLost(c *librefsm.Context) error       // Snapshot a partial summary before the session resets
}
