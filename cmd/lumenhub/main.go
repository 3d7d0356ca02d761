// LumenHub Core - control hub for networked smart lights.
//
// Devices hold a WebSocket open to the hub to announce themselves and
// report servo telemetry. Commands arrive over HTTP (and optionally MQTT)
// and are delivered on that socket, or by one direct HTTP request to the
// device when it has no live session.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/lumenhub-core/internal/api"
	"github.com/nerrad567/lumenhub-core/internal/command"
	"github.com/nerrad567/lumenhub-core/internal/device"
	"github.com/nerrad567/lumenhub-core/internal/infrastructure/config"
	"github.com/nerrad567/lumenhub-core/internal/infrastructure/database"
	"github.com/nerrad567/lumenhub-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/lumenhub-core/internal/infrastructure/logging"
	"github.com/nerrad567/lumenhub-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/lumenhub-core/internal/protocol"
	"github.com/nerrad567/lumenhub-core/internal/session"
	"github.com/nerrad567/lumenhub-core/migrations"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var err error
	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		err = runMigrate(ctx, os.Args[2:], os.Stdout)
	} else {
		err = run(ctx)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run wires the hub together and blocks until ctx is cancelled or a
// component fails. It is separated from main for testability.
func run(ctx context.Context) error { //nolint:gocognit,gocyclo // startup sequence: each optional component adds a branch
	log := logging.Default()
	log.Info("starting LumenHub Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log = logging.New(cfg.Logging, version)
	log.Info("configuration loaded", "path", configPath, "hub_id", cfg.Hub.ID)

	// Device directory
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()

	if migrateErr := database.NewMigrator(db, migrations.FS, ".").Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}

	registry := device.NewRegistry(device.NewSQLiteRepository(db.DB))
	registry.SetLogger(log.Component("device"))
	if refreshErr := registry.RefreshCache(ctx); refreshErr != nil {
		return fmt.Errorf("loading device directory: %w", refreshErr)
	}
	log.Info("device directory ready", "path", cfg.Database.Path, "devices", registry.Count())

	// Sessions, frames and commands
	runtime := session.New()

	validator, err := protocol.NewValidator()
	if err != nil {
		return fmt.Errorf("compiling frame schemas: %w", err)
	}

	router := command.NewRouter(registry, runtime, command.NewClient(cfg.Dispatch.FallbackTimeout()))
	router.SetLogger(log.Component("command"))

	events := newHubEvents(runtime, log.Component("events"))
	checks := map[string]api.HealthCheck{
		"database": db.HealthCheck,
		"mqtt":     nil,
		"influxdb": nil,
	}

	// MQTT (optional)
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetLogger(log.Component("mqtt"))
		mqttClient.SetOnConnect(func() { log.Info("MQTT connected") })
		mqttClient.SetOnDisconnect(func(err error) { log.Warn("MQTT disconnected", "error", err) })

		events.publisher = mqttClient
		checks["mqtt"] = mqttClient.HealthCheck
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)
	} else {
		log.Info("MQTT disabled")
	}

	// InfluxDB (optional)
	if cfg.InfluxDB.Enabled {
		influxClient, influxErr := influxdb.Connect(cfg.InfluxDB)
		if influxErr != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", influxErr)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})

		events.metrics = influxClient
		checks["influxdb"] = influxClient.HealthCheck
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "org", cfg.InfluxDB.Org, "bucket", cfg.InfluxDB.Bucket)
	} else {
		log.Info("InfluxDB disabled")
	}

	router.SetObserver(events)

	srv, err := api.New(api.Deps{
		Config:    cfg.API,
		WS:        cfg.WebSocket,
		Dispatch:  cfg.Dispatch,
		Logger:    log.Component("api"),
		Registry:  registry,
		Runtime:   runtime,
		Router:    router,
		Validator: validator,
		Observer:  events,
		Checks:    checks,
		Version:   version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if startErr := srv.Start(gctx); startErr != nil {
			return fmt.Errorf("starting API server: %w", startErr)
		}
		log.Info("LumenHub Core started", "address", srv.Addr())
		<-gctx.Done()
		return srv.Close()
	})

	if mqttClient != nil {
		g.Go(func() error {
			return runCommandIngress(gctx, mqttClient, router, events, log.Component("ingress"))
		})
	}

	err = g.Wait()
	log.Info("shutting down LumenHub Core")
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// getConfigPath returns the configuration file path.
// Checks LUMENHUB_CONFIG environment variable first, then uses default.
func getConfigPath() string {
	if path := os.Getenv(config.EnvPrefix + "CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
