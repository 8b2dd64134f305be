package fsm

import (
	"time"

	"github.com/librescoot/librefsm"
)

// DefaultConnectTimeout bounds a connection attempt when no override is
// configured.
const DefaultConnectTimeout = 10 * time.Second

// NewDefinition creates the session FSM definition. The actions parameter
// provides the implementation for state entry/exit and guards;
// connectTimeout bounds the connecting state.
func NewDefinition(actions Actions, connectTimeout time.Duration) *librefsm.Definition {
	if connectTimeout <= 0 {
		connectTimeout = DefaultConnectTimeout
	}

	return librefsm.NewDefinition().
		State(StateDisconnected,
			librefsm.WithOnEnter(actions.EnterDisconnected),
		).
		State(StateConnecting,
			librefsm.WithTimeout(connectTimeout, EvConnectTimeout),
			librefsm.WithOnEnter(actions.EnterConnecting),
		).
		State(StateConnected,
			librefsm.WithOnEnter(actions.EnterConnected),
		).
		State(StateActivated,
			librefsm.WithOnEnter(actions.EnterActivated),
		).
		State(StateRiding,
			librefsm.WithOnEnter(actions.EnterRiding),
			librefsm.WithOnExit(actions.ExitRiding),
		).
		State(StateEnding,
			librefsm.WithOnEnter(actions.EnterEnding),
		).

		// === Transitions ===

		// Connecting requires service-area membership; rejected locally,
		// nothing reaches the transport.
		Transition(StateDisconnected, EvConnectRequest, StateConnecting,
			librefsm.WithGuard(actions.IsInsideServiceArea),
		).
		Transition(StateConnecting, EvConnectSuccess, StateConnected).
		Transition(StateConnecting, EvConnectFailure, StateDisconnected).
		Transition(StateConnecting, EvConnectTimeout, StateDisconnected,
			librefsm.WithAction(actions.OnConnectTimeout),
		).

		// Activation/start auto-chain: acks drive the forward transitions,
		// the commands themselves are issued from the entry actions.
		Transition(StateConnected, EvActivateAcked, StateActivated).
		Transition(StateActivated, EvStartAcked, StateRiding).

		// End sequence. Valid from activated as well so manual-control
		// callers that intercept the auto-chain can still return the bike.
		Transition(StateRiding, EvEndRequest, StateEnding).
		Transition(StateActivated, EvEndRequest, StateEnding).
		Transition(StateEnding, EvEndComplete, StateDisconnected).
		Transition(StateEnding, EvEndFailed, StateDisconnected).

		// Link drop from any connected state forces disconnected; the
		// transition action snapshots a partial summary while the session
		// record is still intact.
		Transition(StateConnecting, EvLinkLost, StateDisconnected).
		Transition(StateConnected, EvLinkLost, StateDisconnected,
			librefsm.WithAction(actions.OnLinkLost),
		).
		Transition(StateActivated, EvLinkLost, StateDisconnected,
			librefsm.WithAction(actions.OnLinkLost),
		).
		Transition(StateRiding, EvLinkLost, StateDisconnected,
			librefsm.WithAction(actions.OnLinkLost),
		).
		Transition(StateEnding, EvLinkLost, StateDisconnected,
			librefsm.WithAction(actions.OnLinkLost),
		).

		// Initial state
		Initial(StateDisconnected)
}
