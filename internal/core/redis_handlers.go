package core

import (
	"fmt"

	"ride-service/internal/fsm"
	"ride-service/internal/types"
)

// handleConnectRequest serves "connect <id> [name]". One peripheral at a
// time: an existing session is forced down before the new attempt.
func (v *RideSystem) handleConnectRequest(peripheralID, name string) error {
	current := v.getCurrentState()
	if current != types.StateDisconnected {
		v.logger.Infof("Connect requested while %s, tearing down current session", current)
		if err := v.machine.SetState(fsm.StateDisconnected); err != nil {
			return fmt.Errorf("failed to tear down current session: %w", err)
		}
	}

	loc, haveLoc := v.currentLocation()
	if !haveLoc || !v.fence.Contains(loc) {
		v.publishGeofenceViolation("connect", loc, haveLoc)
		return fmt.Errorf("connect to %s rejected: outside service area", peripheralID)
	}

	v.mu.Lock()
	v.pending = types.Peripheral{ID: peripheralID, Name: name}
	v.mu.Unlock()

	return v.sendEvent(fsm.EvConnectRequest)
}

// handleActivateRequest serves "activate": a manual retry of the activation
// step after a failed or geofence-blocked auto-activate.
func (v *RideSystem) handleActivateRequest() error {
	if current := v.getCurrentState(); current != types.StateConnected {
		return fmt.Errorf("cannot activate in state %s", current)
	}

	loc, haveLoc := v.currentLocation()
	if !haveLoc || !v.fence.Contains(loc) {
		v.publishGeofenceViolation("activation", loc, haveLoc)
		return fmt.Errorf("activate rejected: outside service area")
	}

	go v.autoActivate()
	return nil
}

// handleStartRequest serves "start": a manual nudge when the settle timer's
// Start command failed.
func (v *RideSystem) handleStartRequest() error {
	if current := v.getCurrentState(); current != types.StateActivated {
		return fmt.Errorf("cannot start ride in state %s", current)
	}

	go v.autoStart()
	return nil
}

// handleEndRequest serves "end".
func (v *RideSystem) handleEndRequest() error {
	current := v.getCurrentState()
	if current != types.StateRiding && current != types.StateActivated {
		return fmt.Errorf("cannot end ride in state %s", current)
	}

	return v.sendEvent(fsm.EvEndRequest)
}

// handleAddOnRequest serves "add-on". Purchase is per ride and sticky; a
// second purchase while the add-on is active is rejected, never
// double-charged.
func (v *RideSystem) handleAddOnRequest() error {
	v.mu.Lock()
	if v.state != types.StateRiding {
		state := v.state
		v.mu.Unlock()
		return fmt.Errorf("add-on requires an active ride, state is %s", state)
	}
	if v.session.AddOnActive {
		v.mu.Unlock()
		return fmt.Errorf("add-on already active")
	}

	v.session.AddOnPurchased = true
	v.session.AddOnActive = true
	v.session.Cost = v.rates.Cost(v.session.ElapsedSeconds, true)
	elapsed := v.session.ElapsedSeconds
	cost, dist, batt := v.session.Cost, v.session.DistanceMiles, v.session.BatteryPercent
	v.mu.Unlock()

	v.logger.Infof("Add-on purchased, cost now $%.2f", cost)

	if err := v.redis.PublishAddOnState(true, true); err != nil {
		v.logger.Warnf("Failed to publish add-on state: %v", err)
	}
	// Cost bumps immediately, not at the next tick.
	if err := v.redis.PublishTelemetry(elapsed, cost, dist, batt); err != nil {
		v.logger.Warnf("Failed to publish telemetry: %v", err)
	}
	return nil
}

// handleLocationUpdate records the latest rider coordinates for geofence
// decisions.
func (v *RideSystem) handleLocationUpdate(loc types.Location) error {
	v.mu.Lock()
	v.lastLocation = loc
	v.haveLocation = true
	v.mu.Unlock()
	return nil
}
