package fsm

import "github.com/librescoot/librefsm"

// Session states
const (
	StateDisconnected librefsm.StateID = "disconnected"
	StateConnecting   librefsm.StateID = "connecting"
	StateConnected    librefsm.StateID = "connected"
	StateActivated    librefsm.StateID = "activated"
	StateRiding       librefsm.StateID = "riding"
	StateEnding       librefsm.StateID = "ending"
)

// Session events
const (
	// External requests (from Redis)
	EvConnectRequest librefsm.EventID = "connect-request"
	EvEndRequest     librefsm.EventID = "end-request"

	// Transport outcomes
	EvConnectSuccess librefsm.EventID = "connect-success"
	EvConnectFailure librefsm.EventID = "connect-failure"
	EvConnectTimeout librefsm.EventID = "connect-timeout"
	EvLinkLost       librefsm.EventID = "link-lost"

	// Command acknowledgements
	EvActivateAcked librefsm.EventID = "activate-acked"
	EvStartAcked    librefsm.EventID = "start-acked"
	EvEndComplete   librefsm.EventID = "end-complete"
	EvEndFailed     librefsm.EventID = "end-failed"
)
