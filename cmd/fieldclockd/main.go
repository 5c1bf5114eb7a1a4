package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/fieldclock/fieldclock/pkg/api"
	"github.com/fieldclock/fieldclock/pkg/attendance"
	"github.com/fieldclock/fieldclock/pkg/config"
	"github.com/fieldclock/fieldclock/pkg/geocode"
	"github.com/fieldclock/fieldclock/pkg/geofence"
	"github.com/fieldclock/fieldclock/pkg/gps"
	"github.com/fieldclock/fieldclock/pkg/logx"
	"github.com/fieldclock/fieldclock/pkg/mqtt"
	"github.com/fieldclock/fieldclock/pkg/pidfile"
	"github.com/fieldclock/fieldclock/pkg/telem"
)

var (
	logLevel = flag.String("log-level", "", "Override log level (trace|debug|info|warn|error)")
	pidPath  = flag.String("pid-file", "", "Override PID file path")
	version  = flag.Bool("version", false, "Show version information")
)

const (
	AppName    = "fieldclockd"
	AppVersion = "1.0.0"
)

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("%s version %s\n", AppName, AppVersion)
		os.Exit(0)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	if *pidPath != "" {
		cfg.PIDPath = *pidPath
	}

	logger := logx.NewLogger(cfg.LogLevel, AppName)

	pidFile := pidfile.New(cfg.PIDPath)
	if err := pidFile.Create(); err != nil {
		logger.Error("failed to create PID file", "error", err, "path", cfg.PIDPath)
		os.Exit(1)
	}
	defer func() {
		if err := pidFile.Remove(); err != nil {
			logger.Error("failed to remove PID file", "error", err)
		}
	}()

	logger.Info("starting fieldclock daemon",
		"version", AppVersion,
		"pid", os.Getpid(),
		"kiosk_mode", cfg.KioskMode)

	registry := prometheus.NewRegistry()
	metrics := telem.New(registry)

	areaStore, err := geofence.OpenStore(cfg.AreaDBPath, logger.WithComponent("geofence"))
	if err != nil {
		logger.Error("failed to open area store", "error", err, "path", cfg.AreaDBPath)
		os.Exit(1)
	}
	defer areaStore.Close()

	attendanceStore, err := attendance.OpenStore(cfg.AttendanceDBPath, logger.WithComponent("attendance"))
	if err != nil {
		logger.Error("failed to open attendance store", "error", err, "path", cfg.AttendanceDBPath)
		os.Exit(1)
	}
	defer attendanceStore.Close()

	publisher := mqtt.NewClient(&mqtt.Config{
		Broker:      cfg.MQTTBroker,
		Port:        cfg.MQTTPort,
		ClientID:    AppName,
		Username:    cfg.MQTTUsername,
		Password:    cfg.MQTTPassword,
		TopicPrefix: cfg.MQTTTopicPrefix,
		QoS:         1,
		Enabled:     cfg.MQTTEnabled,
	}, logger.WithComponent("mqtt"))
	if err := publisher.Connect(); err != nil {
		// Broker outages must not block clock-ins; events are best-effort.
		logger.Warn("mqtt connect failed, continuing without publishing", "error", err)
	}
	defer publisher.Close()

	var engine *gps.Engine
	if cfg.KioskMode {
		provider := gps.NewGpsdProvider(cfg.GpsdAddr, logger.WithComponent("gpsd"))
		engine = gps.NewEngine(provider, logger.WithComponent("gps"), metrics)
	}

	var geocoder *geocode.Reverse
	if cfg.GoogleAPIKey != "" {
		geocoder, err = geocode.NewReverse(cfg.GoogleAPIKey, logger.WithComponent("geocode"))
		if err != nil {
			logger.Warn("reverse geocoder unavailable", "error", err)
		}
	}

	validator := gps.NewValidator(logger.WithComponent("validator"), metrics)
	containment := geofence.NewEngine(logger.WithComponent("geofence"), metrics)

	service, err := attendance.NewService(attendance.Config{
		Engine:               engine,
		Validator:            validator,
		Containment:          containment,
		Index:                geofence.NewIndex(),
		AreaStore:            areaStore,
		Store:                attendanceStore,
		Publisher:            publisher,
		Geocoder:             geocoder,
		Logger:               logger.WithComponent("attendance"),
		Metrics:              metrics,
		AdminToleranceMeters: cfg.AdminToleranceMeters,
	})
	if err != nil {
		logger.Error("failed to start attendance service", "error", err)
		os.Exit(1)
	}

	server := api.NewServer(api.Config{
		Host:      cfg.HTTPHost,
		Port:      cfg.HTTPPort,
		Service:   service,
		Validator: validator,
		Engine:    engine,
		Registry:  registry,
		Logger:    logger.WithComponent("api"),
	})

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-errCh:
		if err != nil {
			logger.Error("http server failed", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown failed", "error", err)
	}

	logger.Info("fieldclock daemon stopped")
}
