//go:build !linux

package transport

import (
	"context"
	"fmt"

	"ride-service/internal/logger"
)

// The BLE adapter needs the Linux HCI stack. This stub keeps the type
// referenceable on other platforms; Open always fails so the caller falls
// back to the simulated transport.
type BLETransport struct {
	log *logger.Logger
}

func NewBLETransport(log *logger.Logger) *BLETransport {
	return &BLETransport{log: log.WithTag("ble")}
}

func (t *BLETransport) Name() string { return "ble" }

func (t *BLETransport) Open(ctx context.Context, peripheralID string, opts OpenOptions) (Conn, error) {
	return nil, fmt.Errorf("%w: BLE transport unavailable on this platform", ErrConnectRejected)
}
