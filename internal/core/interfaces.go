package core

import (
	"ride-service/internal/messaging"
	"ride-service/internal/types"
)

// MessagingClient defines the interface for Redis messaging operations needed
// by RideSystem
type MessagingClient interface {
	SetCallbacks(callbacks messaging.Callbacks)
	Connect() error
	StartListening() error
	Close() error

	// Session surface
	PublishSessionState(state types.SessionState) error
	SetSessionPeripheral(p types.Peripheral) error
	PublishTelemetry(elapsed int64, cost, distance, battery float64) error
	PublishAddOnState(purchased, active bool) error
	PublishRideSummary(s types.RideSummary) error

	// Error events
	PublishErrorEvent(category, message string) error

	// Wallet
	GetWalletBalance() (float64, error)
	SettleRideCost(amount float64) (float64, error)
}
