//go:build linux

package transport

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-ble/ble"
	"github.com/go-ble/ble/linux"
	"go.uber.org/atomic"

	"ride-service/internal/logger"
)

// Bike GATT service: Nordic UART style, commands written to RX, acks
// notified on TX.
const (
	BikeServiceUUID = "6e400001-b5a3-f393-e0a9-e50e24dcca9e"
	BikeWriteUUID   = "6e400002-b5a3-f393-e0a9-e50e24dcca9e"
	BikeNotifyUUID  = "6e400003-b5a3-f393-e0a9-e50e24dcca9e"
)

// BLETransport opens real peripheral links through the host HCI device.
type BLETransport struct {
	log *logger.Logger

	initOnce sync.Once
	initErr  error
}

func NewBLETransport(log *logger.Logger) *BLETransport {
	return &BLETransport{log: log.WithTag("ble")}
}

func (t *BLETransport) Name() string { return "ble" }

func (t *BLETransport) ensureDevice() error {
	t.initOnce.Do(func() {
		d, err := linux.NewDevice()
		if err != nil {
			t.initErr = fmt.Errorf("failed to open HCI device: %w", err)
			return
		}
		ble.SetDefaultDevice(d)
	})
	return t.initErr
}

func (t *BLETransport) Open(ctx context.Context, peripheralID string, opts OpenOptions) (Conn, error) {
	if err := t.ensureDevice(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectRejected, err)
	}

	cctx := ctx
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		cctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	t.log.Infof("Connecting to peripheral %s", peripheralID)
	cln, err := ble.Connect(cctx, func(a ble.Advertisement) bool {
		return strings.EqualFold(a.Addr().String(), peripheralID)
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %s", ErrConnectTimeout, peripheralID)
		}
		return nil, fmt.Errorf("%w: %v", ErrConnectRejected, err)
	}

	frameSize := 23
	if opts.RequestFrameSize > 0 {
		if mtu, err := cln.ExchangeMTU(opts.RequestFrameSize); err != nil {
			t.log.Warnf("MTU exchange failed, staying at default: %v", err)
		} else {
			frameSize = mtu
		}
	}

	profile, err := cln.DiscoverProfile(true)
	if err != nil {
		cln.CancelConnection()
		return nil, fmt.Errorf("%w: profile discovery failed: %v", ErrConnectRejected, err)
	}

	writeChar := profile.FindCharacteristic(ble.NewCharacteristic(ble.MustParse(BikeWriteUUID)))
	notifyChar := profile.FindCharacteristic(ble.NewCharacteristic(ble.MustParse(BikeNotifyUUID)))
	if writeChar == nil || notifyChar == nil {
		cln.CancelConnection()
		return nil, fmt.Errorf("%w: peripheral missing bike service characteristics", ErrConnectRejected)
	}

	conn := &bleConn{
		peripheralID: peripheralID,
		frameSize:    frameSize,
		client:       cln,
		writeChar:    writeChar,
		acks:         make(chan []byte, 1),
		log:          t.log,
	}

	if err := cln.Subscribe(notifyChar, false, conn.handleNotification); err != nil {
		cln.CancelConnection()
		return nil, fmt.Errorf("%w: notify subscription failed: %v", ErrConnectRejected, err)
	}

	go conn.watchLink()

	t.log.Infof("Connected to %s (frame size %d)", peripheralID, frameSize)
	return conn, nil
}

type bleConn struct {
	peripheralID string
	frameSize    int
	client       ble.Client
	writeChar    *ble.Characteristic
	acks         chan []byte
	log          *logger.Logger

	closed       atomic.Bool
	notifyOnce   sync.Once
	mu           sync.Mutex
	onDisconnect func()
}

func (c *bleConn) PeripheralID() string { return c.peripheralID }
func (c *bleConn) FrameSize() int       { return c.frameSize }

func (c *bleConn) handleNotification(data []byte) {
	buf := make([]byte, len(data))
	copy(buf, data)
	select {
	case c.acks <- buf:
	default:
		c.log.Warnf("Dropping unsolicited notification from %s: % X", c.peripheralID, buf)
	}
}

func (c *bleConn) Write(ctx context.Context, data []byte) ([]byte, error) {
	if c.closed.Load() {
		return nil, ErrNotConnected
	}

	// Drain any stale ack before issuing the next frame.
	select {
	case <-c.acks:
	default:
	}

	if err := c.client.WriteCharacteristic(c.writeChar, data, false); err != nil {
		if c.closed.Load() {
			return nil, ErrNotConnected
		}
		return nil, fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}

	select {
	case ack := <-c.acks:
		return ack, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: no acknowledgement before deadline", ErrWriteFailed)
	case <-c.client.Disconnected():
		return nil, ErrNotConnected
	}
}

func (c *bleConn) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	err := c.client.CancelConnection()
	c.fireDisconnect()
	return err
}

// watchLink turns the client's disconnect channel into the one-shot callback.
func (c *bleConn) watchLink() {
	<-c.client.Disconnected()
	c.closed.Store(true)
	c.log.Infof("Link to %s dropped", c.peripheralID)
	c.fireDisconnect()
}

func (c *bleConn) OnDisconnected(fn func()) {
	c.mu.Lock()
	alreadyClosed := c.closed.Load()
	if !alreadyClosed {
		c.onDisconnect = fn
	}
	c.mu.Unlock()

	if alreadyClosed {
		c.notifyOnce.Do(fn)
	}
}

func (c *bleConn) fireDisconnect() {
	c.mu.Lock()
	fn := c.onDisconnect
	c.mu.Unlock()
	if fn != nil {
		c.notifyOnce.Do(fn)
	}
}
