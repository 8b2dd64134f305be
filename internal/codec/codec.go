package codec

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ride-service/internal/logger"
	"ride-service/internal/transport"
)

// Command is the closed set of bike commands. Keeping it a tagged variant
// rather than free-form strings makes the codec/state-machine pairing
// exhaustively checkable.
type Command int

const (
	Activate Command = iota
	Start
	Stop
	Deactivate
)

// Single-byte command codes on the wire.
const (
	codeActivate   byte = 'A'
	codeStart      byte = 'S'
	codeStop       byte = 'T'
	codeDeactivate byte = 'D'
)

// ErrTransport is the codec-level failure category: the transport accepted
// the operation but the peripheral did not acknowledge it, or the channel
// failed mid-write.
var ErrTransport = errors.New("transport error")

var errUnknownCommand = errors.New("unknown command")

func (c Command) String() string {
	switch c {
	case Activate:
		return "activate"
	case Start:
		return "start"
	case Stop:
		return "stop"
	case Deactivate:
		return "deactivate"
	}
	return fmt.Sprintf("command(%d)", int(c))
}

// Encode turns a command into its wire frame.
func Encode(cmd Command) ([]byte, error) {
	switch cmd {
	case Activate:
		return []byte{codeActivate}, nil
	case Start:
		return []byte{codeStart}, nil
	case Stop:
		return []byte{codeStop}, nil
	case Deactivate:
		return []byte{codeDeactivate}, nil
	}
	return nil, fmt.Errorf("%w: %d", errUnknownCommand, int(cmd))
}

// Codec frames commands and validates acknowledgements. It performs no
// retries; a failed send propagates to the caller unchanged and retry policy
// stays a state-machine decision.
type Codec struct {
	timeout time.Duration
	log     *logger.Logger
}

// New creates a codec with the given per-send timeout. A zero timeout
// disables the bound.
func New(timeout time.Duration, log *logger.Logger) *Codec {
	return &Codec{
		timeout: timeout,
		log:     log.WithTag("codec"),
	}
}

// Send encodes the command, writes it through the connection and validates
// the acknowledgement frame. ErrNotConnected passes through untouched; every
// other failure, a missed send deadline included, is ErrTransport.
func (c *Codec) Send(ctx context.Context, conn transport.Conn, cmd Command) error {
	frame, err := Encode(cmd)
	if err != nil {
		return err
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	c.log.Debugf("Sending %s (% X)", cmd, frame)
	resp, err := conn.Write(ctx, frame)
	if err != nil {
		if errors.Is(err, transport.ErrNotConnected) {
			return err
		}
		return fmt.Errorf("%w: %s: %w", ErrTransport, cmd, err)
	}

	if len(resp) == 0 || resp[0] != transport.Ack {
		return fmt.Errorf("%w: %s not acknowledged (response % X)", ErrTransport, cmd, resp)
	}

	c.log.Debugf("%s acknowledged", cmd)
	return nil
}
