package messaging

import (
	"context"
	"fmt"
	"testing"

	"github.com/redis/go-redis/v9"

	"ride-service/internal/logger"
)

func newTestClient() *RedisClient {
	return NewRedisClient("127.0.0.1", 6379, logger.NewLogger(nil, logger.LogLevelError))
}

func TestIsCanceledMatchesWrapped(t *testing.T) {
	if !isCanceled(context.Canceled) {
		t.Error("Expected bare context.Canceled to match")
	}
	if !isCanceled(fmt.Errorf("brpop: %w", context.Canceled)) {
		t.Error("Expected wrapped context.Canceled to match")
	}
	if isCanceled(redis.Nil) {
		t.Error("redis.Nil must not read as cancellation")
	}
	if isCanceled(fmt.Errorf("connection refused")) {
		t.Error("An ordinary error must not read as cancellation")
	}
}

func TestHandleSessionCommandConnect(t *testing.T) {
	r := newTestClient()
	var gotID, gotName string
	r.SetCallbacks(Callbacks{
		ConnectCallback: func(id, name string) error {
			gotID, gotName = id, name
			return nil
		},
	})

	if err := r.handleSessionCommand("connect AA:BB:CC Bike One"); err != nil {
		t.Fatalf("handleSessionCommand failed: %v", err)
	}
	if gotID != "AA:BB:CC" {
		t.Errorf("Expected peripheral AA:BB:CC, got %s", gotID)
	}
	if gotName != "Bike One" {
		t.Errorf("Expected name %q, got %q", "Bike One", gotName)
	}
}

func TestHandleSessionCommandConnectMissingID(t *testing.T) {
	r := newTestClient()
	r.SetCallbacks(Callbacks{
		ConnectCallback: func(id, name string) error { return nil },
	})

	if err := r.handleSessionCommand("connect"); err == nil {
		t.Error("Expected error for connect without a peripheral id")
	}
}

func TestHandleSessionCommandDispatch(t *testing.T) {
	r := newTestClient()
	calls := map[string]int{}
	r.SetCallbacks(Callbacks{
		ActivateCallback: func() error { calls["activate"]++; return nil },
		StartCallback:    func() error { calls["start"]++; return nil },
		EndRideCallback:  func() error { calls["end"]++; return nil },
	})

	for _, cmd := range []string{"activate", "start", "end"} {
		if err := r.handleSessionCommand(cmd); err != nil {
			t.Fatalf("handleSessionCommand(%q) failed: %v", cmd, err)
		}
		if calls[cmd] != 1 {
			t.Errorf("Expected %s callback invoked once, got %d", cmd, calls[cmd])
		}
	}
}

func TestHandleSessionCommandInvalid(t *testing.T) {
	r := newTestClient()

	if err := r.handleSessionCommand("explode"); err == nil {
		t.Error("Expected error for unknown session command")
	}
	if err := r.handleSessionCommand(""); err == nil {
		t.Error("Expected error for empty session command")
	}
}

func TestHandleRideCommandAddOn(t *testing.T) {
	r := newTestClient()
	called := 0
	r.SetCallbacks(Callbacks{
		AddOnCallback: func() error { called++; return nil },
	})

	if err := r.handleRideCommand("add-on"); err != nil {
		t.Fatalf("handleRideCommand failed: %v", err)
	}
	if called != 1 {
		t.Errorf("Expected add-on callback invoked once, got %d", called)
	}
	if err := r.handleRideCommand("nitro"); err == nil {
		t.Error("Expected error for unknown ride command")
	}
}

func TestCallbacksUnsetAreIgnored(t *testing.T) {
	r := newTestClient()

	if err := r.handleSessionCommand("end"); err != nil {
		t.Errorf("Unset callback should be ignored, got %v", err)
	}
	if err := r.handleRideCommand("add-on"); err != nil {
		t.Errorf("Unset callback should be ignored, got %v", err)
	}
}
