package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"ride-service/internal/config"
	"ride-service/internal/core"
	"ride-service/internal/geofence"
	"ride-service/internal/logger"
	"ride-service/internal/messaging"
	"ride-service/internal/transport"
)

func main() {
	// Service log level
	var serviceLogLevel int
	flag.IntVar(&serviceLogLevel, "log", 3, "Service log level (0=NONE, 1=ERROR, 2=WARN, 3=INFO, 4=DEBUG)")

	flag.Parse()

	// Local overrides; a missing .env is fine
	_ = godotenv.Load()

	// Create standard logger with appropriate format
	var stdLogger *log.Logger
	if os.Getenv("INVOCATION_ID") != "" {
		// Running under systemd, use minimal format
		stdLogger = log.New(os.Stdout, "", 0)
	} else {
		// Running interactively, use timestamps
		stdLogger = log.New(os.Stdout, "", log.LstdFlags|log.Lmicroseconds|log.Lmsgprefix)
	}

	// Create leveled logger
	l := logger.NewLogger(stdLogger, logger.LogLevel(serviceLogLevel))

	l.Infof("Starting ride service...")

	cfg := config.Load()

	fence := geofence.Default()
	if vertices, err := cfg.LoadGeofence(); err != nil {
		l.Fatalf("Failed to load geofence: %v", err)
	} else if vertices != nil {
		fence = geofence.New(vertices)
	}

	var t transport.Transport
	switch cfg.Transport {
	case "ble":
		t = transport.NewBLETransport(l)
	case "sim", "":
		t = transport.NewSimTransport(cfg.SimLatency(), l)
	default:
		l.Fatalf("Unknown transport %q (want sim or ble)", cfg.Transport)
	}

	redis := messaging.NewRedisClient(cfg.RedisHost, cfg.RedisPort, l)

	system := core.NewRideSystem(t, redis, cfg, fence, l)
	if err := system.Start(); err != nil {
		l.Fatalf("Failed to start system: %v", err)
	}

	l.Infof("System started successfully")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	l.Infof("Received signal %v, shutting down...", sig)
	system.Shutdown()
	l.Infof("Shutdown complete")
}
