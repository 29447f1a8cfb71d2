// Gray Logic Field I/O Core
//
// fieldcore owns the live field values of every registered driver and serves
// them to polling clients. It wires together:
//   - the driver registry and its field stores
//   - SQLite persistence of last values, change history and trigger events
//   - optional InfluxDB export of numeric field values
//   - optional MQTT publication of trigger events and field write commands
//   - the HTTP API and WebSocket event stream
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/nerrad567/gray-logic-fieldio/migrations"

	"github.com/nerrad567/gray-logic-fieldio/internal/api"
	"github.com/nerrad567/gray-logic-fieldio/internal/driver"
	"github.com/nerrad567/gray-logic-fieldio/internal/events"
	"github.com/nerrad567/gray-logic-fieldio/internal/field"
	"github.com/nerrad567/gray-logic-fieldio/internal/fieldio"
	"github.com/nerrad567/gray-logic-fieldio/internal/history"
	"github.com/nerrad567/gray-logic-fieldio/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-fieldio/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-fieldio/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-fieldio/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-fieldio/internal/infrastructure/mqtt"
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

// pruneInterval is how often old field history is deleted.
const pruneInterval = time.Hour

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the application logic, separated from main for testability. It
// returns nil on a clean shutdown.
func run(ctx context.Context) error { //nolint:gocognit,gocyclo // linear startup sequence
	log := logging.Default()
	log.Info("starting Gray Logic field I/O core",
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
	log.Info("configuration loaded",
		"path", configPath,
		"site", cfg.Site.ID,
		"level", cfg.Logging.Level,
	)

	// Database
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
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database ready", "path", cfg.Database.Path)

	checks := map[string]api.HealthChecker{"database": db}

	// InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
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
		checks["influxdb"] = influxClient
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	} else {
		log.Info("InfluxDB disabled")
	}

	// History recorder
	repo := history.NewSQLiteRepository(db.DB)
	recorder := history.NewRecorder(repo, cfg.FieldIO.HistoryQueue)
	recorder.SetLogger(log.Component("history"))
	if influxClient != nil {
		recorder.SetMetrics(influxClient)
	}
	if startErr := recorder.Start(ctx); startErr != nil {
		return fmt.Errorf("starting history recorder: %w", startErr)
	}
	defer recorder.Stop()

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
		checks["mqtt"] = mqttClient
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)
	} else {
		log.Info("MQTT disabled")
	}

	// Trigger event distribution
	hub := api.NewHub(cfg.WebSocket, log.Component("websocket"))
	go hub.Run(ctx)

	dispatcher := events.NewDispatcher(cfg.FieldIO.EventQueue)
	dispatcher.SetLogger(log.Component("events"))
	dispatcher.SetAppender(history.NewEventLog(db.DB))
	dispatcher.SetBroadcaster(hub)
	if mqttClient != nil {
		topics := mqtt.Topics{}
		dispatcher.SetPublisher(mqttClient, func(ev field.TriggerEvent) string {
			return topics.FieldTrigger(ev.Moniker)
		})
	}
	if startErr := dispatcher.Start(ctx); startErr != nil {
		return fmt.Errorf("starting event dispatcher: %w", startErr)
	}
	defer dispatcher.Stop()

	// Driver registry
	registry := driver.NewRegistry()
	registry.SetLogger(log.Component("driver"))
	registry.SetRestorer(repo)
	registry.SetObserver(recorder)
	registry.SetEventSink(dispatcher)
	if declErr := registry.DeclareAll(ctx, cfg.Drivers); declErr != nil {
		return fmt.Errorf("declaring drivers: %w", declErr)
	}
	stats := registry.Stats()
	log.Info("driver registry ready", "drivers", stats.Drivers, "fields", stats.Fields, "restored", stats.Fields-stats.NoValue)

	fieldServer := fieldio.NewServer(registry)
	fieldServer.SetLogger(log.Component("fieldio"))
	fieldServer.SetMaxPollFields(cfg.FieldIO.MaxPollFields)

	// Field writes commanded over MQTT
	if mqttClient != nil {
		topics := mqtt.Topics{}
		commands := events.NewCommandHandler(registry, topics.ParseFieldSet)
		commands.SetLogger(log.Component("commands"))
		//nolint:gosec // QoS is validated to 0..2 by config.Validate
		if subErr := mqttClient.Subscribe(topics.AllFieldSets(), byte(cfg.MQTT.QoS), commands.Handle); subErr != nil {
			return fmt.Errorf("subscribing to field commands: %w", subErr)
		}
	}

	// HTTP API
	server, err := api.New(api.Deps{
		Config:   cfg.API,
		WS:       cfg.WebSocket,
		Security: cfg.Security,
		Logger:   log.Component("api"),
		Registry: registry,
		FieldIO:  fieldServer,
		Values:   repo,
		Events:   history.NewEventLog(db.DB),
		Checks:   checks,
		Queues:   map[string]api.DropCounter{"history": recorder, "events": dispatcher, "websocket": hub},
		Hub:      hub,
		Version:  version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if startErr := server.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	if retention := cfg.GetHistoryRetention(); retention > 0 {
		go pruneHistory(ctx, repo, retention, log)
	}

	if err := healthCheck(ctx, checks); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	// Deferred calls run in reverse: API, dispatcher, MQTT, recorder,
	// InfluxDB, database.
	log.Info("shutdown signal received, cleaning up")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses GRAYLOGIC_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("GRAYLOGIC_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies every configured infrastructure connection.
func healthCheck(ctx context.Context, checks map[string]api.HealthChecker) error {
	for name, c := range checks {
		if err := c.HealthCheck(ctx); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

// historyPruner deletes field history older than a retention window.
type historyPruner interface {
	Prune(ctx context.Context, olderThan time.Duration) (int64, error)
}

// pruneHistory prunes once at startup and then every pruneInterval until
// ctx is cancelled.
func pruneHistory(ctx context.Context, repo historyPruner, retention time.Duration, log *logging.Logger) {
	prune := func() {
		n, err := repo.Prune(ctx, retention)
		if err != nil {
			if ctx.Err() == nil {
				log.Error("pruning field history failed", "error", err)
			}
			return
		}
		if n > 0 {
			log.Info("field history pruned", "rows", n, "retention", retention)
		}
	}

	prune()
	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			prune()
		}
	}
}
