package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"

	"ride-service/internal/types"
)

// Config carries everything the ride system reads from the environment.
// Pricing and telemetry rates default to the production values; they are
// configuration, not contracts.
type Config struct {
	RedisHost string `mapstructure:"REDIS_HOST"`
	RedisPort int    `mapstructure:"REDIS_PORT"`

	// Transport selects the peripheral link: "sim" or "ble".
	Transport       string `mapstructure:"RIDE_TRANSPORT"`
	SimLatencyMs    int    `mapstructure:"RIDE_SIM_LATENCY_MS"`
	FrameSize       int    `mapstructure:"RIDE_FRAME_SIZE"`
	ConnectTimeoutS int    `mapstructure:"RIDE_CONNECT_TIMEOUT_S"`
	CommandTimeoutS int    `mapstructure:"RIDE_COMMAND_TIMEOUT_S"`
	SettleDelayMs   int    `mapstructure:"RIDE_SETTLE_DELAY_MS"`

	UnlockFee          float64 `mapstructure:"RIDE_UNLOCK_FEE"`
	PerMinuteRate      float64 `mapstructure:"RIDE_PER_MINUTE_RATE"`
	AddOnFee           float64 `mapstructure:"RIDE_ADDON_FEE"`
	MilesPerSecond     float64 `mapstructure:"RIDE_MILES_PER_SECOND"`
	BatteryStart       float64 `mapstructure:"RIDE_BATTERY_START"`
	BatteryDrainPerSec float64 `mapstructure:"RIDE_BATTERY_DRAIN_PER_SEC"`

	// GeofenceFile points at a JSON polygon; empty means the built-in area.
	GeofenceFile string `mapstructure:"RIDE_GEOFENCE_FILE"`
}

func Load() Config {
	viper.AutomaticEnv()
	viper.SetDefault("REDIS_HOST", "127.0.0.1")
	viper.SetDefault("REDIS_PORT", 6379)
	viper.SetDefault("RIDE_TRANSPORT", "sim")
	viper.SetDefault("RIDE_SIM_LATENCY_MS", 150)
	viper.SetDefault("RIDE_FRAME_SIZE", 185)
	viper.SetDefault("RIDE_CONNECT_TIMEOUT_S", 10)
	viper.SetDefault("RIDE_COMMAND_TIMEOUT_S", 5)
	viper.SetDefault("RIDE_SETTLE_DELAY_MS", 1500)
	viper.SetDefault("RIDE_UNLOCK_FEE", 1.00)
	viper.SetDefault("RIDE_PER_MINUTE_RATE", 0.15)
	viper.SetDefault("RIDE_ADDON_FEE", 1.00)
	viper.SetDefault("RIDE_MILES_PER_SECOND", 0.00278)
	viper.SetDefault("RIDE_BATTERY_START", 85)
	viper.SetDefault("RIDE_BATTERY_DRAIN_PER_SEC", 0.05)
	viper.SetDefault("RIDE_GEOFENCE_FILE", "")

	var cfg Config
	_ = viper.Unmarshal(&cfg)
	return cfg
}

func (c Config) ConnectTimeout() time.Duration {
	return time.Duration(c.ConnectTimeoutS) * time.Second
}

func (c Config) CommandTimeout() time.Duration {
	return time.Duration(c.CommandTimeoutS) * time.Second
}

func (c Config) SettleDelay() time.Duration {
	return time.Duration(c.SettleDelayMs) * time.Millisecond
}

func (c Config) SimLatency() time.Duration {
	return time.Duration(c.SimLatencyMs) * time.Millisecond
}

// geofenceFile is the on-disk polygon format: an ordered vertex list.
type geofenceFile struct {
	Vertices []types.Location `json:"vertices"`
}

// LoadGeofence reads the service-area polygon from the configured file.
// Returns nil when no file is configured so the caller can fall back to the
// built-in area.
func (c Config) LoadGeofence() ([]types.Location, error) {
	if c.GeofenceFile == "" {
		return nil, nil
	}
	raw, err := os.ReadFile(c.GeofenceFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read geofence file: %w", err)
	}
	var gf geofenceFile
	if err := json.Unmarshal(raw, &gf); err != nil {
		return nil, fmt.Errorf("failed to parse geofence file: %w", err)
	}
	if len(gf.Vertices) < 3 {
		return nil, fmt.Errorf("geofence polygon needs at least 3 vertices, got %d", len(gf.Vertices))
	}
	return gf.Vertices, nil
}
