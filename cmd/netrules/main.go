// NetRules Core - Network Rule State Bridge
//
// This is the main entry point for the NetRules Core application.
// NetRules Core connects a UniFi-style network controller to home
// automation platforms:
//   - Adaptive polling of the controller's rule collections
//   - Semantic change detection with synthetic child entities
//   - MQTT change events, WebSocket push, and a REST API
//   - Change-event history in SQLite
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/nerrad567/netrules-core/migrations"

	"github.com/nerrad567/netrules-core/internal/api"
	"github.com/nerrad567/netrules-core/internal/controller"
	"github.com/nerrad567/netrules-core/internal/coordinator"
	"github.com/nerrad567/netrules-core/internal/events"
	"github.com/nerrad567/netrules-core/internal/history"
	"github.com/nerrad567/netrules-core/internal/infrastructure/config"
	"github.com/nerrad567/netrules-core/internal/infrastructure/database"
	"github.com/nerrad567/netrules-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/netrules-core/internal/infrastructure/logging"
	"github.com/nerrad567/netrules-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/netrules-core/internal/poll"
	"github.com/nerrad567/netrules-core/internal/rules"
	"github.com/nerrad567/netrules-core/internal/trigger"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error { //nolint:gocognit,gocyclo // Linear startup wiring; splitting hurts readability
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting NetRules Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open database
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
	log.Info("database connected", "path", cfg.Database.Path)

	// Run migrations
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Change-event history
	historyRepo := history.NewSQLiteRepository(db.DB)

	// Controller session
	ctrl, err := controller.New(controller.Config{
		URL:       cfg.Controller.URL,
		Site:      cfg.Controller.Site,
		Username:  cfg.Controller.Username,
		Password:  cfg.Controller.Password,
		Timeout:   cfg.ControllerTimeout(),
		VerifySSL: cfg.Controller.VerifySSL,
	})
	if err != nil {
		return fmt.Errorf("creating controller client: %w", err)
	}
	ctrl.SetLogger(log)

	// An unreachable controller at startup is not fatal: the first failing
	// fetch triggers re-login and the coordinator serves cached data.
	if loginErr := ctrl.Login(ctx); loginErr != nil {
		log.Warn("initial controller login failed, will retry on first cycle", "error", loginErr)
	} else {
		log.Info("controller session established",
			"url", cfg.Controller.URL,
			"site", cfg.Controller.Site,
		)
	}

	// Connect to MQTT broker (optional)
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
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)

		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})
	} else {
		log.Info("MQTT disabled")
	}

	// Connect to InfluxDB (optional)
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
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)

		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
	} else {
		log.Info("InfluxDB disabled")
	}

	// In-process trigger registry for embedded automations
	triggers := trigger.NewRegistry()
	triggers.SetLogger(log)

	// Change dispatch fan-out: history always records; MQTT events and the
	// WebSocket push join when their backends are available. The WebSocket
	// dispatcher binds to the hub lazily, after the API server starts.
	var wsDispatcher rules.Dispatcher
	dispatchers := rules.MultiDispatcher{
		history.NewRecorder(historyRepo),
		triggers,
		rules.DispatcherFunc(func(ctx context.Context, change rules.Change) error {
			if wsDispatcher == nil {
				return nil
			}
			return wsDispatcher.Dispatch(ctx, change)
		}),
	}
	if mqttClient != nil {
		dispatchers = append(dispatchers, events.NewPublisher(mqttClient, byte(cfg.MQTT.QoS)))
	}

	detector := rules.NewDetector(dispatchers)
	detector.SetLogger(log)

	// Adaptive polling controller
	poller := poll.New(poll.Config{
		BaseInterval:      cfg.PollBaseInterval(),
		ActiveInterval:    cfg.PollActiveInterval(),
		RealtimeInterval:  cfg.PollRealtimeInterval(),
		ActivityTimeout:   cfg.PollActivityTimeout(),
		RealtimeHold:      cfg.PollRealtimeHold(),
		Debounce:          cfg.PollDebounce(),
		OptimisticTimeout: cfg.PollOptimisticTimeout(),
	})

	coordOpts := []coordinator.Option{
		coordinator.WithLogger(log),
	}
	if influxClient != nil {
		coordOpts = append(coordOpts, coordinator.WithMetrics(influxClient))
	}
	coord := coordinator.New(ctrl, ctrl, ctrl, detector, poller, coordOpts...)
	defer coord.Close()

	// Start the API server
	srv, err := api.New(api.Deps{
		Config:      cfg.API,
		WS:          cfg.WebSocket,
		Security:    cfg.Security,
		Logger:      log,
		Coordinator: coord,
		History:     historyRepo,
		Version:     version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if startErr := srv.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		log.Info("stopping API server")
		if closeErr := srv.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()
	wsDispatcher = srv.ChangeDispatcher()
	log.Info("API server started", "host", cfg.API.Host, "port", cfg.API.Port)

	// External change signals and poll status over MQTT
	if mqttClient != nil {
		if subErr := subscribeRefreshSignals(mqttClient, coord, byte(cfg.MQTT.QoS), log); subErr != nil {
			return fmt.Errorf("subscribing to refresh signals: %w", subErr)
		}
		publishPollStatus(mqttClient, coord, byte(cfg.MQTT.QoS), log)
	}

	// Verify all connections are healthy
	if err := healthCheck(ctx, db, mqttClient, influxClient, srv); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	// Run the poll scheduler until shutdown
	coordDone := make(chan error, 1)
	go func() {
		coordDone <- coord.Run(ctx)
	}()

	log.Info("initialisation complete, polling controller",
		"base_interval", cfg.PollBaseInterval(),
	)

	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")

	// Wait for the in-flight cycle to finish before tearing down the
	// dispatchers it may still be using.
	<-coordDone

	log.Info("NetRules Core stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses NETRULES_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("NETRULES_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// subscribeRefreshSignals wires the MQTT refresh topic to the coordinator
// so external systems can request an immediate poll cycle.
func subscribeRefreshSignals(client *mqtt.Client, coord *coordinator.Coordinator, qos byte, log *logging.Logger) error {
	topic := mqtt.Topics{}.PollRefresh()
	return client.Subscribe(topic, qos, func(_ string, _ []byte) error {
		log.Debug("external refresh signal received", "topic", topic)
		coord.RegisterExternalChange(context.Background())
		return nil
	})
}

// publishPollStatus registers a lifecycle hook publishing the coordinator
// status after every successful cycle, retained so late subscribers see
// the latest state.
func publishPollStatus(client *mqtt.Client, coord *coordinator.Coordinator, qos byte, log *logging.Logger) {
	topic := mqtt.Topics{}.PollStatus()
	coord.SetLifecycle(coordinator.LifecycleFunc(func(_ map[rules.Kind][]rules.RawEntity) {
		payload, err := json.Marshal(coord.Status())
		if err != nil {
			return
		}
		if pubErr := client.Publish(topic, payload, qos, true); pubErr != nil {
			log.Debug("poll status publish failed", "error", pubErr)
		}
	}))
}

// healthCheck verifies all infrastructure connections are healthy.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - db: Database connection to check
//   - mqttClient: MQTT client to check (may be nil if disabled)
//   - influxClient: InfluxDB client to check (may be nil if disabled)
//   - srv: API server to check
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client, srv *api.Server) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	if err := srv.HealthCheck(ctx); err != nil {
		return fmt.Errorf("api: %w", err)
	}

	// Controller health is verified by the first poll cycle; an
	// unreachable controller degrades to cached data rather than failing
	// startup.

	return nil
}
