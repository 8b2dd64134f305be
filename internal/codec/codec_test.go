package codec

import (
	"context"
	"errors"
	"testing"
	"time"

	"ride-service/internal/logger"
	"ride-service/internal/transport"
)

// fakeConn scripts one Write response.
type fakeConn struct {
	resp    []byte
	err     error
	written [][]byte
}

func (f *fakeConn) PeripheralID() string { return "bike-1" }
func (f *fakeConn) FrameSize() int       { return 23 }
func (f *fakeConn) Close() error         { return nil }
func (f *fakeConn) OnDisconnected(func()) {}

func (f *fakeConn) Write(ctx context.Context, data []byte) ([]byte, error) {
	buf := make([]byte, len(data))
	copy(buf, data)
	f.written = append(f.written, buf)
	return f.resp, f.err
}

func newTestCodec() *Codec {
	return New(time.Second, logger.NewLogger(nil, logger.LogLevelError))
}

func TestEncodeCommandCodes(t *testing.T) {
	cases := []struct {
		cmd  Command
		code byte
	}{
		{Activate, 'A'},
		{Start, 'S'},
		{Stop, 'T'},
		{Deactivate, 'D'},
	}
	for _, c := range cases {
		frame, err := Encode(c.cmd)
		if err != nil {
			t.Fatalf("Encode(%s) failed: %v", c.cmd, err)
		}
		if len(frame) != 1 || frame[0] != c.code {
			t.Errorf("Encode(%s) = % X, want %c", c.cmd, frame, c.code)
		}
	}
}

func TestEncodeUnknownCommand(t *testing.T) {
	if _, err := Encode(Command(42)); err == nil {
		t.Error("expected error for unknown command")
	}
}

func TestSendAcknowledged(t *testing.T) {
	conn := &fakeConn{resp: []byte{transport.Ack, 'A'}}

	if err := newTestCodec().Send(context.Background(), conn, Activate); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if len(conn.written) != 1 || conn.written[0][0] != 'A' {
		t.Errorf("unexpected frames written: %v", conn.written)
	}
}

func TestSendBadAck(t *testing.T) {
	conn := &fakeConn{resp: []byte{0x15}}

	err := newTestCodec().Send(context.Background(), conn, Start)
	if !errors.Is(err, ErrTransport) {
		t.Errorf("expected ErrTransport for NAK, got %v", err)
	}
}

func TestSendEmptyAck(t *testing.T) {
	conn := &fakeConn{resp: nil}

	err := newTestCodec().Send(context.Background(), conn, Stop)
	if !errors.Is(err, ErrTransport) {
		t.Errorf("expected ErrTransport for empty response, got %v", err)
	}
}

func TestSendNotConnectedPassesThrough(t *testing.T) {
	conn := &fakeConn{err: transport.ErrNotConnected}

	err := newTestCodec().Send(context.Background(), conn, Deactivate)
	if !errors.Is(err, transport.ErrNotConnected) {
		t.Errorf("expected ErrNotConnected untouched, got %v", err)
	}
	if errors.Is(err, ErrTransport) {
		t.Error("ErrNotConnected must not be reclassified as ErrTransport")
	}
}

func TestSendWriteFailureBecomesTransportError(t *testing.T) {
	conn := &fakeConn{err: transport.ErrWriteFailed}

	err := newTestCodec().Send(context.Background(), conn, Stop)
	if !errors.Is(err, ErrTransport) {
		t.Errorf("expected ErrTransport for write failure, got %v", err)
	}
}
