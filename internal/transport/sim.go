package transport

import (
	"context"
	"sync"
	"time"

	"go.uber.org/atomic"

	"ride-service/internal/logger"
)

// SimTransport is the development-mode peripheral: same contract as the BLE
// adapter, injected latency, always acknowledges.
type SimTransport struct {
	latency time.Duration
	log     *logger.Logger

	mu   sync.Mutex
	conn *SimConn
}

func NewSimTransport(latency time.Duration, log *logger.Logger) *SimTransport {
	return &SimTransport{
		latency: latency,
		log:     log.WithTag("sim"),
	}
}

func (t *SimTransport) Name() string { return "sim" }

func (t *SimTransport) Open(ctx context.Context, peripheralID string, opts OpenOptions) (Conn, error) {
	t.log.Debugf("Opening simulated connection to %s", peripheralID)

	select {
	case <-time.After(t.latency):
	case <-ctx.Done():
		return nil, ErrConnectTimeout
	}

	frameSize := opts.RequestFrameSize
	if frameSize <= 0 {
		frameSize = 23
	}

	conn := &SimConn{
		peripheralID: peripheralID,
		frameSize:    frameSize,
		latency:      t.latency,
		log:          t.log,
	}

	t.mu.Lock()
	t.conn = conn
	t.mu.Unlock()

	t.log.Infof("Simulated connection to %s open (frame size %d)", peripheralID, frameSize)
	return conn, nil
}

// ActiveConn returns the most recently opened connection. Test hook for
// driving link-loss scenarios.
func (t *SimTransport) ActiveConn() *SimConn {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conn
}

// SimConn is one simulated peripheral link.
type SimConn struct {
	peripheralID string
	frameSize    int
	latency      time.Duration
	log          *logger.Logger

	closed       atomic.Bool
	notifyOnce   sync.Once
	mu           sync.Mutex
	onDisconnect func()
}

func (c *SimConn) PeripheralID() string { return c.peripheralID }
func (c *SimConn) FrameSize() int       { return c.frameSize }

func (c *SimConn) Write(ctx context.Context, data []byte) ([]byte, error) {
	if c.closed.Load() {
		return nil, ErrNotConnected
	}

	select {
	case <-time.After(c.latency):
	case <-ctx.Done():
		return nil, ErrWriteFailed
	}

	if c.closed.Load() {
		return nil, ErrNotConnected
	}

	// The simulated bike acks every frame, echoing the opcode.
	resp := []byte{Ack}
	if len(data) > 0 {
		resp = append(resp, data[0])
	}
	c.log.Debugf("Simulated write to %s: % X -> % X", c.peripheralID, data, resp)
	return resp, nil
}

func (c *SimConn) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	c.log.Debugf("Simulated connection to %s closed", c.peripheralID)
	c.fireDisconnect()
	return nil
}

// DropLink simulates radio loss or a peripheral reset.
func (c *SimConn) DropLink() {
	if c.closed.Swap(true) {
		return
	}
	c.log.Infof("Simulated link to %s dropped", c.peripheralID)
	c.fireDisconnect()
}

func (c *SimConn) OnDisconnected(fn func()) {
	c.mu.Lock()
	alreadyClosed := c.closed.Load()
	if !alreadyClosed {
		c.onDisconnect = fn
	}
	c.mu.Unlock()

	// Registration after the link already dropped still gets its one shot.
	if alreadyClosed {
		c.notifyOnce.Do(fn)
	}
}

func (c *SimConn) fireDisconnect() {
	c.mu.Lock()
	fn := c.onDisconnect
	c.mu.Unlock()
	if fn != nil {
		c.notifyOnce.Do(fn)
	}
}
