package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"ride-service/internal/logger"
	"ride-service/internal/types"
)

// Redis keys and channels making up the UI-facing surface.
const (
	keySession      = "session"
	keyWallet       = "wallet"
	keyRideSummary  = "ride-summary"
	chSession       = "session"
	chRideSummary   = "ride-summary"
	chSessionError  = "session:error"
	chLocation      = "location"
	listSessionCmds = "bike:session"
	listRideCmds    = "bike:ride"
)

type Callbacks struct {
	ConnectCallback  func(peripheralID, name string) error // "connect <id> [name]"
	ActivateCallback func() error                          // "activate"
	StartCallback    func() error                          // "start"
	EndRideCallback  func() error                          // "end"
	AddOnCallback    func() error                          // "add-on"
	LocationCallback func(types.Location) error            // JSON {"lat":..,"lng":..}
}

type RedisClient struct {
	client    *redis.Client
	callbacks Callbacks
	logger    *logger.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

func NewRedisClient(host string, port int, l *logger.Logger) *RedisClient {
	ctx, cancel := context.WithCancel(context.Background())
	return &RedisClient{
		client: redis.NewClient(&redis.Options{
			Addr: fmt.Sprintf("%s:%d", host, port),
			DB:   0,
		}),
		logger: l.WithTag("redis"),
		ctx:    ctx,
		cancel: cancel,
	}
}

// SetCallbacks must be called before StartListening.
func (r *RedisClient) SetCallbacks(callbacks Callbacks) {
	r.callbacks = callbacks
}

func (r *RedisClient) Connect() error {
	r.logger.Infof("Attempting to connect to Redis at %s", r.client.Options().Addr)

	if err := r.client.Ping(r.ctx).Err(); err != nil {
		return fmt.Errorf("Redis connection failed: %w", err)
	}
	r.logger.Infof("Successfully connected to Redis")
	return nil
}

// StartListening starts all Redis listeners after system initialization is
// complete.
func (r *RedisClient) StartListening() error {
	r.logger.Infof("Starting Redis listeners")

	pubsub := r.client.Subscribe(r.ctx, chLocation)
	r.wg.Add(1)
	go r.locationListener(pubsub)

	r.wg.Add(2)
	go r.listCommandListener(listSessionCmds, r.handleSessionCommand)
	go r.listCommandListener(listRideCmds, r.handleRideCommand)

	return nil
}

// isCanceled matches the shutdown cancellation whether go-redis returns it
// bare or wrapped.
func isCanceled(err error) bool {
	return errors.Is(err, context.Canceled)
}

func (r *RedisClient) listCommandListener(key string, handler func(string) error) {
	defer r.wg.Done()
	r.logger.Infof("Starting list command listener for %s", key)

	for {
		select {
		case <-r.ctx.Done():
			r.logger.Infof("Context cancelled, exiting %s listener", key)
			return
		default:
			// BRPOP with a short timeout so context cancellation is observed
			result, err := r.client.BRPop(r.ctx, 5*time.Second, key).Result()
			if err != nil {
				if err == redis.Nil {
					continue
				}
				if isCanceled(err) {
					r.logger.Infof("Context cancelled, exiting %s listener", key)
					return
				}
				r.logger.Infof("Error reading from %s list: %v", key, err)
				continue
			}

			if len(result) >= 2 { // BRPOP returns [key, value]
				value := result[1]
				r.logger.Debugf("Received command from %s: %s", key, value)
				if err := handler(value); err != nil {
					r.logger.Warnf("Error handling %s command: %v", key, err)
				}
			}
		}
	}
}

func (r *RedisClient) handleSessionCommand(value string) error {
	fields := strings.Fields(value)
	if len(fields) == 0 {
		return fmt.Errorf("empty session command")
	}

	switch fields[0] {
	case "connect":
		if r.callbacks.ConnectCallback == nil {
			return nil
		}
		if len(fields) < 2 {
			return fmt.Errorf("connect command missing peripheral id")
		}
		name := ""
		if len(fields) > 2 {
			name = strings.Join(fields[2:], " ")
		}
		return r.callbacks.ConnectCallback(fields[1], name)
	case "activate":
		if r.callbacks.ActivateCallback == nil {
			return nil
		}
		return r.callbacks.ActivateCallback()
	case "start":
		if r.callbacks.StartCallback == nil {
			return nil
		}
		return r.callbacks.StartCallback()
	case "end":
		if r.callbacks.EndRideCallback == nil {
			return nil
		}
		return r.callbacks.EndRideCallback()
	default:
		return fmt.Errorf("invalid session command: %s", value)
	}
}

func (r *RedisClient) handleRideCommand(value string) error {
	switch value {
	case "add-on":
		if r.callbacks.AddOnCallback == nil {
			return nil
		}
		return r.callbacks.AddOnCallback()
	default:
		return fmt.Errorf("invalid ride command: %s", value)
	}
}

// locationListener feeds periodic coordinate updates from the external
// location watcher into the core.
func (r *RedisClient) locationListener(pubsub *redis.PubSub) {
	defer r.wg.Done()
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-r.ctx.Done():
			r.logger.Infof("Context cancelled, exiting location listener")
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var loc types.Location
			if err := json.Unmarshal([]byte(msg.Payload), &loc); err != nil {
				r.logger.Warnf("Invalid location payload %q: %v", msg.Payload, err)
				continue
			}
			if r.callbacks.LocationCallback != nil {
				if err := r.callbacks.LocationCallback(loc); err != nil {
					r.logger.Warnf("Error handling location update: %v", err)
				}
			}
		}
	}
}

func (r *RedisClient) publishHashSet(hash, field string, value interface{}, channel, payload string) error {
	if err := r.client.HSet(r.ctx, hash, field, value).Err(); err != nil {
		return fmt.Errorf("failed to set %s.%s: %w", hash, field, err)
	}
	if err := r.client.Publish(r.ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish %s: %w", channel, err)
	}
	return nil
}

func (r *RedisClient) PublishSessionState(state types.SessionState) error {
	return r.publishHashSet(keySession, "state", string(state), chSession, "state")
}

func (r *RedisClient) SetSessionPeripheral(p types.Peripheral) error {
	if err := r.client.HSet(r.ctx, keySession,
		"peripheral-id", p.ID,
		"peripheral-name", p.Name,
	).Err(); err != nil {
		return fmt.Errorf("failed to set session peripheral: %w", err)
	}
	return r.client.Publish(r.ctx, chSession, "peripheral").Err()
}

// PublishTelemetry pushes one tick of derived values for the UI.
func (r *RedisClient) PublishTelemetry(elapsed int64, cost, distance, battery float64) error {
	if err := r.client.HSet(r.ctx, keySession,
		"duration", strconv.FormatInt(elapsed, 10),
		"cost", strconv.FormatFloat(cost, 'f', 2, 64),
		"distance", strconv.FormatFloat(distance, 'f', 4, 64),
		"battery", strconv.FormatFloat(battery, 'f', 1, 64),
	).Err(); err != nil {
		return fmt.Errorf("failed to set telemetry: %w", err)
	}
	return r.client.Publish(r.ctx, chSession, "telemetry").Err()
}

func (r *RedisClient) PublishAddOnState(purchased, active bool) error {
	if err := r.client.HSet(r.ctx, keySession,
		"addon-purchased", strconv.FormatBool(purchased),
		"addon-active", strconv.FormatBool(active),
	).Err(); err != nil {
		return fmt.Errorf("failed to set add-on state: %w", err)
	}
	return r.client.Publish(r.ctx, chSession, "add-on").Err()
}

func (r *RedisClient) PublishRideSummary(s types.RideSummary) error {
	if err := r.client.HSet(r.ctx, keyRideSummary,
		"id", s.ID,
		"session-id", s.SessionID,
		"peripheral-id", s.PeripheralID,
		"duration", strconv.FormatInt(s.DurationSeconds, 10),
		"distance", strconv.FormatFloat(s.DistanceMiles, 'f', 4, 64),
		"cost", strconv.FormatFloat(s.Cost, 'f', 2, 64),
		"complete", strconv.FormatBool(s.Complete),
		"ended-at", s.EndedAt.UTC().Format(time.RFC3339),
	).Err(); err != nil {
		return fmt.Errorf("failed to set ride summary: %w", err)
	}
	return r.client.Publish(r.ctx, chRideSummary, s.ID).Err()
}

// PublishErrorEvent surfaces one discrete failure to the UI. Category names
// follow the session error taxonomy (connect-timeout, connect-rejected,
// not-connected, write-failed, transport-error, link-lost,
// geofence-violation).
func (r *RedisClient) PublishErrorEvent(category, message string) error {
	payload, err := json.Marshal(map[string]string{
		"category":  category,
		"message":   message,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("failed to encode error event: %w", err)
	}
	return r.client.Publish(r.ctx, chSessionError, string(payload)).Err()
}

// GetWalletBalance reads the rider's balance; a missing key is zero.
func (r *RedisClient) GetWalletBalance() (float64, error) {
	val, err := r.client.HGet(r.ctx, keyWallet, "balance").Result()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get wallet balance: %w", err)
	}
	balance, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid wallet balance %q: %w", val, err)
	}
	return balance, nil
}

// SettleRideCost deducts a finished ride's cost from the wallet balance and
// returns the new balance. The balance may go negative; collections are not
// this service's concern.
func (r *RedisClient) SettleRideCost(amount float64) (float64, error) {
	balance, err := r.client.HIncrByFloat(r.ctx, keyWallet, "balance", -amount).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to settle ride cost: %w", err)
	}
	if err := r.client.Publish(r.ctx, chSession, "wallet").Err(); err != nil {
		return balance, fmt.Errorf("failed to publish wallet change: %w", err)
	}
	return balance, nil
}

func (r *RedisClient) Close() error {
	r.cancel()
	r.wg.Wait()
	return r.client.Close()
}
