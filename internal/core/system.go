package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/librescoot/librefsm"
	"go.uber.org/atomic"

	"ride-service/internal/billing"
	"ride-service/internal/codec"
	"ride-service/internal/config"
	"ride-service/internal/fsm"
	"ride-service/internal/geofence"
	"ride-service/internal/logger"
	"ride-service/internal/messaging"
	"ride-service/internal/transport"
	"ride-service/internal/types"
)

// ErrCommandInFlight rejects a second command while one is pending on the
// connection; the ack-based protocol has no multiplexing.
var ErrCommandInFlight = errors.New("command already in flight")

// RideSystem owns the single bike session: transport, command path, state
// machine, telemetry tick and the Redis-facing surface.
type RideSystem struct {
	logger *logger.Logger
	cfg    config.Config
	rates  billing.Rates
	fence  *geofence.Geofence

	transport transport.Transport
	codec     *codec.Codec
	redis     MessagingClient
	machine   *librefsm.Machine

	ctx    context.Context
	cancel context.CancelFunc

	mu           sync.RWMutex
	state        types.SessionState
	session      types.Session
	pending      types.Peripheral
	conn         transport.Conn
	lastLocation types.Location
	haveLocation bool
	lastSummary  *types.RideSummary
	settleTimer  *time.Timer
	tickStop     chan struct{}

	connectCancel   context.CancelFunc
	commandInFlight atomic.Bool
	tearingDown     atomic.Bool
}

func NewRideSystem(t transport.Transport, redis MessagingClient, cfg config.Config, fence *geofence.Geofence, l *logger.Logger) *RideSystem {
	ctx, cancel := context.WithCancel(context.Background())
	return &RideSystem{
		logger: l.WithTag("ride"),
		cfg:    cfg,
		rates: billing.Rates{
			UnlockFee:          cfg.UnlockFee,
			PerMinuteRate:      cfg.PerMinuteRate,
			AddOnFee:           cfg.AddOnFee,
			MilesPerSecond:     cfg.MilesPerSecond,
			BatteryStart:       cfg.BatteryStart,
			BatteryDrainPerSec: cfg.BatteryDrainPerSec,
		},
		fence:     fence,
		transport: t,
		codec:     codec.New(cfg.CommandTimeout(), l),
		redis:     redis,
		ctx:       ctx,
		cancel:    cancel,
		state:     types.StateDisconnected,
	}
}

func (v *RideSystem) Start() error {
	v.logger.Infof("Starting ride system (transport: %s)", v.transport.Name())

	v.redis.SetCallbacks(messaging.Callbacks{
		ConnectCallback:  v.handleConnectRequest,
		ActivateCallback: v.handleActivateRequest,
		StartCallback:    v.handleStartRequest,
		EndRideCallback:  v.handleEndRequest,
		AddOnCallback:    v.handleAddOnRequest,
		LocationCallback: v.handleLocationUpdate,
	})

	if err := v.redis.Connect(); err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}

	if balance, err := v.redis.GetWalletBalance(); err != nil {
		v.logger.Warnf("Failed to read wallet balance: %v", err)
	} else {
		v.logger.Infof("Wallet balance: $%.2f", balance)
	}

	if err := v.initFSM(v.ctx); err != nil {
		return fmt.Errorf("failed to initialize state machine: %w", err)
	}

	if err := v.redis.PublishSessionState(types.StateDisconnected); err != nil {
		return fmt.Errorf("failed to publish initial state: %w", err)
	}

	if err := v.redis.StartListening(); err != nil {
		return fmt.Errorf("failed to start Redis listeners: %w", err)
	}

	v.logger.Infof("Ride system started")
	return nil
}

func (v *RideSystem) Shutdown() {
	v.logger.Infof("Shutting down ride system")

	v.mu.Lock()
	if v.settleTimer != nil {
		v.settleTimer.Stop()
		v.settleTimer = nil
	}
	v.stopTelemetryTickLocked()
	conn := v.conn
	v.conn = nil
	v.mu.Unlock()

	v.cancel()

	if conn != nil {
		v.tearingDown.Store(true)
		if err := conn.Close(); err != nil {
			v.logger.Warnf("Error closing connection during shutdown: %v", err)
		}
		v.tearingDown.Store(false)
	}

	if v.redis != nil {
		if err := v.redis.Close(); err != nil {
			v.logger.Warnf("Error closing Redis client: %v", err)
		}
	}
}

// sendCommand drives one command through the codec with the one-in-flight
// guard. A concurrent request is rejected, never interleaved.
func (v *RideSystem) sendCommand(cmd codec.Command) error {
	if !v.commandInFlight.CompareAndSwap(false, true) {
		return ErrCommandInFlight
	}
	defer v.commandInFlight.Store(false)

	v.mu.RLock()
	conn := v.conn
	v.mu.RUnlock()
	if conn == nil {
		return transport.ErrNotConnected
	}

	return v.codec.Send(v.ctx, conn, cmd)
}

// errorCategory maps a failure to its discrete UI notification category.
func errorCategory(err error) string {
	switch {
	case errors.Is(err, transport.ErrConnectTimeout):
		return "connect-timeout"
	case errors.Is(err, transport.ErrConnectRejected):
		return "connect-rejected"
	case errors.Is(err, transport.ErrNotConnected):
		return "not-connected"
	case errors.Is(err, transport.ErrWriteFailed):
		return "write-failed"
	default:
		return "transport-error"
	}
}

func (v *RideSystem) surfaceError(err error) {
	category := errorCategory(err)
	v.logger.Errorf("%s: %v", category, err)
	if pubErr := v.redis.PublishErrorEvent(category, err.Error()); pubErr != nil {
		v.logger.Warnf("Failed to publish error event: %v", pubErr)
	}
}

// openConnection runs the transport open for one connect attempt. The FSM's
// connecting-state timeout and the caller's teardown both abandon the
// attempt through the context; a late success is closed, never completed
// into a discarded session.
func (v *RideSystem) openConnection(ctx context.Context, p types.Peripheral) {
	conn, err := v.transport.Open(ctx, p.ID, transport.OpenOptions{
		RequestFrameSize: v.cfg.FrameSize,
		Timeout:          v.cfg.ConnectTimeout(),
	})
	if err != nil {
		v.surfaceError(err)
		v.sendEvent(fsm.EvConnectFailure)
		return
	}

	v.mu.Lock()
	stillConnecting := v.state == types.StateConnecting
	if stillConnecting {
		v.conn = conn
	}
	v.mu.Unlock()

	if !stillConnecting {
		v.logger.Warnf("Connect attempt to %s completed after abandonment, closing", p.ID)
		conn.Close()
		return
	}

	conn.OnDisconnected(v.handleDisconnected)

	if err := v.redis.SetSessionPeripheral(p); err != nil {
		v.logger.Warnf("Failed to publish session peripheral: %v", err)
	}

	v.sendEvent(fsm.EvConnectSuccess)
}

// handleDisconnected is the transport's one-shot link-drop notification.
func (v *RideSystem) handleDisconnected() {
	if v.tearingDown.Load() {
		return
	}
	// Connecting counts as live: the drop can land while the success event
	// is still queued behind the notification registration.
	state := v.getCurrentState()
	if !state.Active() && state != types.StateConnecting {
		return
	}

	v.logger.Warnf("Connection to bike lost")
	if err := v.redis.PublishErrorEvent("link-lost", "connection to bike lost"); err != nil {
		v.logger.Warnf("Failed to publish link-lost event: %v", err)
	}
	v.sendEvent(fsm.EvLinkLost)
}

// autoActivate issues the Activate command after a successful connect. On
// failure the session stays connected and the error is surfaced; the caller
// may retry with an explicit activate request.
func (v *RideSystem) autoActivate() {
	if v.getCurrentState() != types.StateConnected {
		return
	}
	if err := v.sendCommand(codec.Activate); err != nil {
		v.surfaceError(fmt.Errorf("activate failed: %w", err))
		return
	}
	v.sendEvent(fsm.EvActivateAcked)
}

// autoStart issues the Start command once the settle delay has elapsed.
func (v *RideSystem) autoStart() {
	if v.getCurrentState() != types.StateActivated {
		return
	}
	if err := v.sendCommand(codec.Start); err != nil {
		v.surfaceError(fmt.Errorf("start failed: %w", err))
		return
	}
	v.sendEvent(fsm.EvStartAcked)
}

// runEndSequence sends Stop then Deactivate. A failure still forces the
// session to disconnected; a bike must never be left unreturnable because of
// a protocol hiccup.
func (v *RideSystem) runEndSequence(summary types.RideSummary) {
	for _, cmd := range []codec.Command{codec.Stop, codec.Deactivate} {
		if err := v.sendCommand(cmd); err != nil {
			v.logger.Errorf("End sequence %s failed: %v", cmd, err)
			v.surfaceError(err)
			v.sendEvent(fsm.EvEndFailed)
			return
		}
	}

	v.emitSummary(summary)
	v.sendEvent(fsm.EvEndComplete)
}

// emitSummary publishes a ride summary and settles its cost against the
// wallet balance.
func (v *RideSystem) emitSummary(s types.RideSummary) {
	v.mu.Lock()
	v.lastSummary = &s
	v.mu.Unlock()

	if err := v.redis.PublishRideSummary(s); err != nil {
		v.logger.Warnf("Failed to publish ride summary: %v", err)
	}

	balance, err := v.redis.SettleRideCost(s.Cost)
	if err != nil {
		v.logger.Warnf("Failed to settle ride cost: %v", err)
		return
	}
	v.logger.Infof("Ride %s settled: $%.2f charged, wallet balance $%.2f", s.ID, s.Cost, balance)
}

// tick recomputes the derived telemetry from elapsed whole seconds. Runs
// only while riding; the mutex keeps it exclusive with state transitions so
// a tick never observes a torn session record.
func (v *RideSystem) tick() {
	v.mu.Lock()
	if v.state != types.StateRiding || v.session.StartedAt.IsZero() {
		v.mu.Unlock()
		return
	}
	elapsed := int64(time.Since(v.session.StartedAt) / time.Second)
	v.session.ElapsedSeconds = elapsed
	v.session.Cost = v.rates.Cost(elapsed, v.session.AddOnPurchased)
	v.session.DistanceMiles = v.rates.Distance(elapsed)
	v.session.BatteryPercent = v.rates.Battery(elapsed)
	cost, dist, batt := v.session.Cost, v.session.DistanceMiles, v.session.BatteryPercent
	v.mu.Unlock()

	if err := v.redis.PublishTelemetry(elapsed, cost, dist, batt); err != nil {
		v.logger.Warnf("Failed to publish telemetry: %v", err)
	}
}

func (v *RideSystem) startTelemetryTickLocked() {
	stop := make(chan struct{})
	v.tickStop = stop
	go v.runTelemetryTick(stop)
}

func (v *RideSystem) stopTelemetryTickLocked() {
	if v.tickStop != nil {
		close(v.tickStop)
		v.tickStop = nil
	}
}

func (v *RideSystem) runTelemetryTick(stop chan struct{}) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			v.tick()
		}
	}
}

func (v *RideSystem) currentLocation() (types.Location, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.lastLocation, v.haveLocation
}

// publishGeofenceViolation surfaces an out-of-area rejection. Nothing is
// sent to the transport for these.
func (v *RideSystem) publishGeofenceViolation(operation string, loc types.Location, haveLoc bool) {
	msg := fmt.Sprintf("%s rejected: no known location", operation)
	if haveLoc {
		msg = fmt.Sprintf("%s rejected: outside service area (%.0f m from area center)",
			operation, v.fence.CentroidDistanceMeters(loc))
	}
	v.logger.Warnf("%s", msg)
	if err := v.redis.PublishErrorEvent("geofence-violation", msg); err != nil {
		v.logger.Warnf("Failed to publish geofence violation: %v", err)
	}
}

// LastSummary returns the most recent ride summary, if any.
func (v *RideSystem) LastSummary() *types.RideSummary {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.lastSummary == nil {
		return nil
	}
	s := *v.lastSummary
	return &s
}
