package core

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/librescoot/librefsm"

	"ride-service/internal/fsm"
	"ride-service/internal/types"
)

// Compile-time check that RideSystem provides every FSM hook.
var _ fsm.Actions = (*RideSystem)(nil)

// State IDs and session states share names on purpose; the conversion is a
// cast, not a table.
func stateIDToSessionState(id librefsm.StateID) types.SessionState {
	return types.SessionState(id)
}

func (v *RideSystem) initFSM(ctx context.Context) error {
	def := fsm.NewDefinition(v, v.cfg.ConnectTimeout())

	machine, err := def.Build()
	if err != nil {
		return fmt.Errorf("failed to build state machine: %w", err)
	}
	v.machine = machine

	v.machine.OnStateChange(func(from, to librefsm.StateID) {
		newState := stateIDToSessionState(to)

		v.mu.Lock()
		v.state = newState
		v.mu.Unlock()

		v.logger.Infof("Session state: %s -> %s", stateIDToSessionState(from), newState)
		if err := v.redis.PublishSessionState(newState); err != nil {
			v.logger.Errorf("Failed to publish session state: %v", err)
		}
	})

	if err := v.machine.Start(ctx); err != nil {
		return fmt.Errorf("failed to start state machine: %w", err)
	}

	v.logger.Infof("Session state machine started")
	return nil
}

func (v *RideSystem) getCurrentState() types.SessionState {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.state
}

func (v *RideSystem) sendEvent(eventID librefsm.EventID) error {
	if v.machine == nil {
		return fmt.Errorf("state machine not initialized")
	}
	if err := v.machine.SendSync(librefsm.Event{ID: eventID}); err != nil {
		v.logger.Debugf("Event %s not handled: %v", eventID, err)
		return err
	}
	return nil
}

// EnterConnecting starts one transport open attempt for the pending
// peripheral. The FSM's state timeout abandons an attempt that runs long.
func (v *RideSystem) EnterConnecting(c *librefsm.Context) error {
	v.mu.Lock()
	p := v.pending
	v.session = types.NewSession(p)
	octx, cancel := context.WithCancel(v.ctx)
	v.connectCancel = cancel
	v.mu.Unlock()

	v.logger.Infof("Connecting to peripheral %s", p.ID)
	go v.openConnection(octx, p)
	return nil
}

// EnterConnected re-checks the service area and kicks off activation.
// An out-of-area session stays connected; an explicit activate request can
// retry once the rider is back inside.
func (v *RideSystem) EnterConnected(c *librefsm.Context) error {
	v.mu.Lock()
	v.connectCancel = nil
	v.mu.Unlock()

	loc, ok := v.currentLocation()
	if !ok || !v.fence.Contains(loc) {
		v.publishGeofenceViolation("activation", loc, ok)
		return nil
	}

	go v.autoActivate()
	return nil
}

// EnterActivated arms the settle timer that issues Start.
func (v *RideSystem) EnterActivated(c *librefsm.Context) error {
	v.mu.Lock()
	if v.settleTimer != nil {
		v.settleTimer.Stop()
	}
	v.settleTimer = time.AfterFunc(v.cfg.SettleDelay(), v.autoStart)
	v.mu.Unlock()
	return nil
}

// EnterRiding resets the billing accumulators to their start-of-ride values
// and starts the telemetry tick.
func (v *RideSystem) EnterRiding(c *librefsm.Context) error {
	v.mu.Lock()
	v.session.StartedAt = time.Now()
	v.session.ElapsedSeconds = 0
	v.session.Cost = v.rates.Cost(0, false)
	v.session.DistanceMiles = 0
	v.session.BatteryPercent = v.rates.BatteryStart
	v.session.AddOnPurchased = false
	v.session.AddOnActive = false
	cost, batt := v.session.Cost, v.session.BatteryPercent
	v.stopTelemetryTickLocked()
	v.startTelemetryTickLocked()
	v.mu.Unlock()

	if err := v.redis.PublishAddOnState(false, false); err != nil {
		v.logger.Warnf("Failed to publish add-on state: %v", err)
	}
	if err := v.redis.PublishTelemetry(0, cost, 0, batt); err != nil {
		v.logger.Warnf("Failed to publish telemetry: %v", err)
	}
	return nil
}

// ExitRiding stops the tick; the session values freeze at their last
// computed state so the end-of-ride summary reflects them exactly.
func (v *RideSystem) ExitRiding(c *librefsm.Context) error {
	v.mu.Lock()
	v.stopTelemetryTickLocked()
	v.mu.Unlock()
	return nil
}

// EnterEnding snapshots the summary from the frozen session and runs the
// Stop/Deactivate sequence in the background.
func (v *RideSystem) EnterEnding(c *librefsm.Context) error {
	v.mu.RLock()
	sess := v.session
	v.mu.RUnlock()

	summary := types.RideSummary{
		ID:              uuid.NewString(),
		SessionID:       sess.ID,
		PeripheralID:    sess.Peripheral.ID,
		DurationSeconds: sess.ElapsedSeconds,
		DistanceMiles:   sess.DistanceMiles,
		Cost:            sess.Cost,
		Complete:        true,
		EndedAt:         time.Now(),
	}

	go v.runEndSequence(summary)
	return nil
}

// EnterDisconnected tears the session down to its zero state: timers
// stopped, connection closed, record cleared. Also runs on the initial
// transition, where everything is already nil.
func (v *RideSystem) EnterDisconnected(c *librefsm.Context) error {
	v.mu.Lock()
	if v.settleTimer != nil {
		v.settleTimer.Stop()
		v.settleTimer = nil
	}
	v.stopTelemetryTickLocked()
	if v.connectCancel != nil {
		v.connectCancel()
		v.connectCancel = nil
	}
	conn := v.conn
	v.conn = nil
	v.session = types.Session{}
	v.mu.Unlock()

	if conn != nil {
		v.tearingDown.Store(true)
		if err := conn.Close(); err != nil {
			v.logger.Warnf("Error closing connection: %v", err)
		}
		v.tearingDown.Store(false)
	}
	return nil
}

func (v *RideSystem) IsInsideServiceArea(c *librefsm.Context) bool {
	loc, ok := v.currentLocation()
	return ok && v.fence.Contains(loc)
}

func (v *RideSystem) OnConnectTimeout(c *librefsm.Context) error {
	v.logger.Warnf("Connection attempt timed out")
	if err := v.redis.PublishErrorEvent("connect-timeout", "connection attempt timed out"); err != nil {
		v.logger.Warnf("Failed to publish connect-timeout event: %v", err)
	}
	return nil
}

// OnLinkLost runs before EnterDisconnected wipes the session. If a ride was
// in progress the frozen values become a partial summary; the rider is
// charged for what was actually measured.
func (v *RideSystem) OnLinkLost(c *librefsm.Context) error {
	v.mu.RLock()
	sess := v.session
	v.mu.RUnlock()

	if sess.StartedAt.IsZero() {
		return nil
	}

	summary := types.RideSummary{
		ID:              uuid.NewString(),
		SessionID:       sess.ID,
		PeripheralID:    sess.Peripheral.ID,
		DurationSeconds: sess.ElapsedSeconds,
		DistanceMiles:   sess.DistanceMiles,
		Cost:            sess.Cost,
		Complete:        false,
		EndedAt:         time.Now(),
	}

	v.logger.Warnf("Link lost mid-ride, emitting partial summary ($%.2f)", sess.Cost)
	v.emitSummary(summary)
	return nil
}
