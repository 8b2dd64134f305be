package transport

import (
	"context"
	"errors"
	"time"
)

// Ack is the first byte of a well-formed peripheral acknowledgement.
const Ack byte = 0x06

// Transport errors. Callers match with errors.Is; wrapping preserves the
// category across layers.
var (
	ErrConnectTimeout  = errors.New("connect timeout")
	ErrConnectRejected = errors.New("connect rejected")
	ErrNotConnected    = errors.New("not connected")
	ErrWriteFailed     = errors.New("write failed")
)

// OpenOptions bound a connection attempt.
type OpenOptions struct {
	RequestFrameSize int
	Timeout          time.Duration
}

// Conn is one open byte channel to a peripheral. Owned exclusively by the
// ride system; created on successful Open, destroyed on Close or link loss.
type Conn interface {
	PeripheralID() string
	// FrameSize is the negotiated frame size for this connection.
	FrameSize() int
	// Write sends one frame and returns the peripheral's acknowledgement
	// bytes. Fails with ErrNotConnected after the link has dropped and
	// ErrWriteFailed when the channel fails mid-write.
	Write(ctx context.Context, data []byte) ([]byte, error)
	Close() error
	// OnDisconnected registers a notification fired when the link drops for
	// any reason, explicit Close included. It fires at most once per Conn.
	OnDisconnected(fn func())
}

// Transport opens connections to bike peripherals. The simulated variant
// implements the same contract as the BLE one so the rest of the stack runs
// without hardware.
type Transport interface {
	Name() string
	Open(ctx context.Context, peripheralID string, opts OpenOptions) (Conn, error)
}
