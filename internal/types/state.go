package types

type SessionState string

const (
	StateDisconnected SessionState = "disconnected"
	StateConnecting   SessionState = "connecting"
	StateConnected    SessionState = "connected"
	StateActivated    SessionState = "activated"
	StateRiding       SessionState = "riding"
	StateEnding       SessionState = "ending"
)

// Active reports whether the state holds an open connection to a bike.
func (s SessionState) Active() bool {
	switch s {
	case StateConnected, StateActivated, StateRiding, StateEnding:
		return true
	}
	return false
}
