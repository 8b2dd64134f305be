package transport

import (
	"context"
	"errors"
	"testing"
	"time"

	"ride-service/internal/logger"
)

func newTestSim() *SimTransport {
	return NewSimTransport(time.Millisecond, logger.NewLogger(nil, logger.LogLevelError))
}

func TestSimOpenAndWrite(t *testing.T) {
	sim := newTestSim()

	conn, err := sim.Open(context.Background(), "bike-1", OpenOptions{RequestFrameSize: 185})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if conn.PeripheralID() != "bike-1" {
		t.Errorf("wrong peripheral id: %s", conn.PeripheralID())
	}
	if conn.FrameSize() != 185 {
		t.Errorf("expected requested frame size, got %d", conn.FrameSize())
	}

	resp, err := conn.Write(context.Background(), []byte{'A'})
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if len(resp) != 2 || resp[0] != Ack || resp[1] != 'A' {
		t.Errorf("unexpected ack frame: % X", resp)
	}
}

func TestSimOpenTimeout(t *testing.T) {
	sim := NewSimTransport(time.Second, logger.NewLogger(nil, logger.LogLevelError))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()

	_, err := sim.Open(ctx, "bike-1", OpenOptions{})
	if !errors.Is(err, ErrConnectTimeout) {
		t.Errorf("expected ErrConnectTimeout, got %v", err)
	}
}

func TestSimWriteAfterClose(t *testing.T) {
	sim := newTestSim()
	conn, err := sim.Open(context.Background(), "bike-1", OpenOptions{})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := conn.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if _, err := conn.Write(context.Background(), []byte{'S'}); !errors.Is(err, ErrNotConnected) {
		t.Errorf("expected ErrNotConnected, got %v", err)
	}
}

func TestSimDisconnectFiresOnce(t *testing.T) {
	sim := newTestSim()
	conn, err := sim.Open(context.Background(), "bike-1", OpenOptions{})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	fired := 0
	conn.OnDisconnected(func() { fired++ })

	sc := conn.(*SimConn)
	sc.DropLink()
	sc.DropLink()
	if err := conn.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if fired != 1 {
		t.Errorf("disconnect callback fired %d times, want exactly 1", fired)
	}
}

func TestSimDisconnectAfterRegistrationLate(t *testing.T) {
	sim := newTestSim()
	conn, err := sim.Open(context.Background(), "bike-1", OpenOptions{})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	conn.(*SimConn).DropLink()

	fired := 0
	conn.OnDisconnected(func() { fired++ })
	if fired != 1 {
		t.Errorf("late registration should still observe the drop, fired=%d", fired)
	}
}

func TestSimDefaultFrameSize(t *testing.T) {
	sim := newTestSim()
	conn, err := sim.Open(context.Background(), "bike-1", OpenOptions{})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if conn.FrameSize() != 23 {
		t.Errorf("expected BLE default frame size 23, got %d", conn.FrameSize())
	}
}
