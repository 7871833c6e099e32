// ciotd is the device-side agent of the CIoT platform.
//
// It registers the device, keeps an MQTT session to the IoT broker and
// speaks the TSL request/response protocol: property and event uplinks,
// downlink property get/set, config push and upgrade notifications.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/nerrad567/ciot-device-core/internal/api"
	"github.com/nerrad567/ciot-device-core/internal/auth"
	"github.com/nerrad567/ciot-device-core/internal/configpush"
	"github.com/nerrad567/ciot-device-core/internal/infrastructure/config"
	"github.com/nerrad567/ciot-device-core/internal/infrastructure/database"
	"github.com/nerrad567/ciot-device-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/ciot-device-core/internal/infrastructure/logging"
	"github.com/nerrad567/ciot-device-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/ciot-device-core/internal/iot"
	"github.com/nerrad567/ciot-device-core/internal/transport"
	"github.com/nerrad567/ciot-device-core/migrations"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Default configuration file path
const defaultConfigPath = "configs/ciotd.yaml"

// connectTimeout bounds the first broker connection attempt.
const connectTimeout = 30 * time.Second

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the agent, separated from main for testability. It returns nil
// on a clean shutdown.
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting ciotd",
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
	log.Info("configuration loaded", "path", configPath, "level", cfg.Logging.Level)

	// Local database (optional)
	var db *database.DB
	if cfg.Database.Enabled {
		db, err = openDatabase(ctx, cfg.Database)
		if err != nil {
			return err
		}
		defer func() {
			log.Info("closing database")
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing database", "error", closeErr)
			}
		}()
		log.Info("database ready", "path", cfg.Database.Path)
	}

	// Message log sinks
	metrics := api.NewMetrics()
	sinks := transport.MultiSink{metrics}

	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(ctx, cfg.InfluxDB)
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
		sinks = append(sinks, influxClient)
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	} else {
		log.Info("InfluxDB disabled")
	}

	// Connection manager
	var deviceID string
	onState := func(connected bool) {
		metrics.SetConnected(connected)
		if influxClient != nil {
			influxClient.WriteConnectionState(deviceID, connected)
		}
	}

	manager, err := buildManager(cfg, db, sinks, onState, log)
	if err != nil {
		return err
	}

	identity, err := manager.Register(ctx)
	if err != nil {
		return fmt.Errorf("registering device: %w", err)
	}
	deviceID = identity.DeviceID
	log.Info("device registered", "product_key", identity.ProductKey, "device_id", identity.DeviceID)

	desc, err := manager.InitTransport(cfg.Broker.CACert)
	if err != nil {
		return fmt.Errorf("initialising transport: %w", err)
	}
	client := desc.Client

	var applier *configpush.Applier
	if db != nil {
		applier = configpush.NewApplier(configpush.NewSQLiteRepository(db.DB), client, nil, log.Component("configpush"))
	}
	if err := registerCallbacks(client, newShadow(), applier, log); err != nil {
		return fmt.Errorf("registering callbacks: %w", err)
	}

	connectCtx, cancelConnect := context.WithTimeout(ctx, connectTimeout)
	err = manager.ConnectAsync(connectCtx)
	cancelConnect()
	if err != nil {
		return fmt.Errorf("connecting to broker: %w", err)
	}
	defer disconnect(manager, cfg.Lifecycle.PreserveIdentity, log)

	postDeviceInfo(ctx, client, cfg.Device, applier, log)

	// Status API (optional)
	if cfg.API.Enabled {
		srv, err := api.New(api.Deps{
			Config:    cfg.API,
			Logger:    log.Component("api"),
			Status:    manager,
			Publisher: client,
			Metrics:   metrics,
			Version:   version,
		})
		if err != nil {
			return fmt.Errorf("creating API server: %w", err)
		}
		if err := srv.Start(ctx); err != nil {
			return fmt.Errorf("starting API server: %w", err)
		}
		defer func() {
			if closeErr := srv.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
		log.Info("status API listening", "address", cfg.APIAddr())
	}

	log.Info("initialisation complete, waiting for shutdown signal")
	heartbeat(ctx, client, cfg.Device, log)

	log.Info("shutdown signal received, cleaning up")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses CIOT_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("CIOT_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

func openDatabase(ctx context.Context, cfg config.DatabaseConfig) (*database.DB, error) {
	db, err := database.Open(ctx, database.Config{
		Path:        cfg.Path,
		WALMode:     cfg.WALMode,
		BusyTimeout: cfg.BusyTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Migrate(ctx, migrations.FS, "."); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return db, nil
}

// buildManager maps the agent config onto an iot.Builder.
func buildManager(cfg *config.Config, db *database.DB, sink transport.MessageLogSink, onState func(bool), log *logging.Logger) (*iot.Manager, error) {
	protocol, err := iot.ParseProtocol(cfg.Device.Protocol)
	if err != nil {
		return nil, err
	}

	rc := auth.RegisterConfig{
		URL:           cfg.Register.URL,
		ProductKey:    cfg.Register.ProductKey,
		ProductSecret: cfg.Register.ProductSecret,
		DeviceID:      cfg.Register.DeviceID,
		Identifiers:   cfg.Register.Identifiers,
	}

	var authenticator auth.Authenticator
	switch strings.ToLower(cfg.Register.Mode) {
	case "http":
		authenticator = auth.NewHTTPRegistrar(auth.WithLogger(log.Component("auth")))
	default:
		authenticator = auth.Static{DeviceSecret: cfg.Register.DeviceSecret}
	}
	if cfg.Register.Cache && db != nil {
		authenticator = auth.NewCached(authenticator, auth.NewSQLiteStore(db.DB), log.Component("auth"))
	}

	lc := iot.Lifecycle{
		DisconnectGrace: cfg.Lifecycle.DisconnectGrace,
		TeardownPoll:    cfg.Lifecycle.TeardownPoll,
		TeardownTimeout: cfg.Lifecycle.TeardownTimeout,
		RequestTimeout:  cfg.Lifecycle.RequestTimeout,
		Workers:         cfg.Lifecycle.Workers,
		KeepAlive:       cfg.Broker.KeepAlive,
		ReconnectMin:    cfg.Broker.ReconnectMin,
		ReconnectMax:    cfg.Broker.ReconnectMax,
	}

	m, err := iot.NewBuilder().
		WithBrokerURL(cfg.Broker.URL).
		WithPort(cfg.Broker.Port).
		WithDeviceName(cfg.Device.Name).
		WithProtocol(protocol).
		WithRegisterConfig(rc).
		WithAuthenticator(authenticator).
		WithDialer(mqtt.Dial).
		WithLifecycle(lc).
		WithLogger(log.Component("iot")).
		WithMessageLog(sink).
		WithConnectStateHandler(onState).
		Build()
	if err != nil {
		return nil, fmt.Errorf("building connection manager: %w", err)
	}
	return m, nil
}

// registerCallbacks installs the downlink handlers. applier may be nil.
func registerCallbacks(client *iot.Client, sh *shadow, applier *configpush.Applier, log *logging.Logger) error {
	if err := client.SetPropertySetCallback(sh.set); err != nil {
		return err
	}
	if err := client.SetPropertyGetCallback(sh.get); err != nil {
		return err
	}
	if applier != nil {
		if err := client.SetConfigCallback(applier.Handle); err != nil {
			return err
		}
	}
	return client.SetUpgradeCallback(func(versionCode string) error {
		log.Warn("upgrade requested but firmware updates are handled outside the agent",
			"version_code", versionCode)
		return nil
	})
}

// postDeviceInfo reports version, name and held config versions after
// connecting. Failures are logged; the heartbeat retries the version.
func postDeviceInfo(ctx context.Context, client *iot.Client, dev config.DeviceConfig, applier *configpush.Applier, log *logging.Logger) {
	if err := client.PostDeviceVersion(dev.Version); err != nil {
		log.Warn("posting device version failed", "error", err)
	}
	if err := client.PostDeviceName(dev.Name); err != nil {
		log.Warn("posting device name failed", "error", err)
	}
	if applier != nil {
		if err := applier.ReportVersions(ctx); err != nil {
			log.Warn("posting config versions failed", "error", err)
		}
	}
}

// heartbeat re-posts the device version until ctx is done.
func heartbeat(ctx context.Context, client *iot.Client, dev config.DeviceConfig, log *logging.Logger) {
	if dev.HeartbeatInterval <= 0 {
		<-ctx.Done()
		return
	}

	ticker := time.NewTicker(dev.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := client.PostDeviceVersion(dev.Version); err != nil && !errors.Is(err, iot.ErrNotConnected) {
				log.Warn("heartbeat failed", "error", err)
			}
		}
	}
}

// disconnect tears the session down on a fresh context, since the run
// context is already cancelled at shutdown.
func disconnect(m *iot.Manager, preserveIdentity bool, log *logging.Logger) {
	ctx := context.Background()
	var err error
	if preserveIdentity {
		err = m.DisconnectPreserveIdentity(ctx)
	} else {
		err = m.Disconnect(ctx)
	}
	if err != nil {
		log.Error("disconnect failed", "error", err, "state", m.State().String())
		return
	}
	log.Info("disconnected from broker")
}
