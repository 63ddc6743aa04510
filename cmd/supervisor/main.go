// Command supervisor is the on-premises BACnet/IP-to-MQTT building
// management system agent. It is the composition root: it
// owns process lifecycle only, wiring every component this module
// exports together in dependency order and tearing them down in
// reverse: signal.NotifyContext for shutdown, a version/commit/date
// ldflags trio, and a testable run(ctx) error separated from main.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/openbms-io/supervisor/internal/actor"
	"github.com/openbms-io/supervisor/internal/bacnet"
	"github.com/openbms-io/supervisor/internal/config"
	"github.com/openbms-io/supervisor/internal/diag"
	"github.com/openbms-io/supervisor/internal/dispatcher"
	"github.com/openbms-io/supervisor/internal/heartbeat"
	"github.com/openbms-io/supervisor/internal/logging"
	"github.com/openbms-io/supervisor/internal/model"
	"github.com/openbms-io/supervisor/internal/monitor"
	"github.com/openbms-io/supervisor/internal/mqtt"
	"github.com/openbms-io/supervisor/internal/paths"
	"github.com/openbms-io/supervisor/internal/pointstore"
	"github.com/openbms-io/supervisor/internal/systemmetrics"
	"github.com/openbms-io/supervisor/internal/topics"
	"github.com/openbms-io/supervisor/internal/tsdb"
	"github.com/openbms-io/supervisor/internal/uploader"
	"github.com/openbms-io/supervisor/internal/writer"
)

// Version information, set at build time via ldflags.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// defaultConfigPath is used when SUPERVISOR_CONFIG is unset: the config
// file alongside the rest of this device's state under the default data
// directory (internal/paths).
var defaultConfigPath = paths.New("").ConfigFile()

// startupGracePeriod bounds how long MQTT connect and DB migration may
// take before run gives up and returns an error rather than hanging
// forever on a misconfigured broker or disk.
const startupGracePeriod = 30 * time.Second

func main() {
	fmt.Printf("supervisor %s (%s) built %s\n", version, commit, date)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "supervisor: %v\n", err)
		os.Exit(1)
	}
}

// getConfigPath resolves the config file path: SUPERVISOR_CONFIG if
// set, else the config file under SUPERVISOR_DATA_DIR (internal/paths),
// else defaultConfigPath.
func getConfigPath() string {
	if p := os.Getenv("SUPERVISOR_CONFIG"); p != "" {
		return p
	}
	return paths.New(os.Getenv("SUPERVISOR_DATA_DIR")).ConfigFile()
}

// run wires and starts every component, blocks until ctx is cancelled,
// then tears everything down in reverse startup order. Returning an
// error (rather than calling os.Exit directly) keeps this testable.
func run(ctx context.Context) error {
	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := logging.New(cfg.Logging, version, cfg.Device.IoTDeviceID)
	logger.Info("starting supervisor", "version", version, "device_id", cfg.Device.IoTDeviceID)

	// Credentials are a second small file alongside the YAML config,
	// read once here and merged into the MQTT auth fields the YAML config didn't
	// already set. Absence is not fatal: a deployment may configure MQTT
	// auth directly in config.yaml instead.
	credsPath := paths.New(os.Getenv("SUPERVISOR_DATA_DIR")).CredentialsFile()
	if creds, err := config.LoadCredentials(credsPath); err != nil {
		logger.Warn("no credentials file loaded, using config.yaml MQTT auth as-is", "path", credsPath, "err", err)
	} else {
		if cfg.MQTT.Auth.Username == "" {
			cfg.MQTT.Auth.Username = creds.ClientID
		}
		if cfg.MQTT.Auth.Password == "" {
			cfg.MQTT.Auth.Password = creds.SecretKey
		}
	}

	// 1. Point store: the embedded database every other component reads
	// from or writes to.
	db, err := pointstore.Open(pointstore.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening point store: %w", err)
	}
	defer db.Close()

	migrateCtx, migrateCancel := context.WithTimeout(ctx, startupGracePeriod)
	err = db.Migrate(migrateCtx)
	migrateCancel()
	if err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	// 2. Topic schema, compiled once from device identity.
	schema, err := topics.Compile(topics.Identifiers{
		OrganizationID: cfg.Device.OrganizationID,
		SiteID:         cfg.Device.SiteID,
		IoTDeviceID:    cfg.Device.IoTDeviceID,
	})
	if err != nil {
		return fmt.Errorf("compiling topic schema: %w", err)
	}

	// 3. MQTT transport. Connect before anything that
	// publishes through it.
	mqttClient, err := mqtt.Connect(cfg.MQTT, schema)
	if err != nil {
		return fmt.Errorf("connecting to MQTT broker: %w", err)
	}
	mqttClient.SetLogger(logger)
	defer mqttClient.Close()

	// 4. BACnet reader pool. newUnimplementedClient is
	// the seam a production build swaps for a real BACnet/IP driver
	// (see bacnetclient.go); the pool itself works the same either way.
	pool := bacnet.NewPool(bacnet.Strategy(cfg.BACnet.Strategy))
	if err := pool.Initialize(ctx, toReaderConfigs(cfg.BACnet.Readers), newUnimplementedClient); err != nil {
		return fmt.Errorf("initializing BACnet reader pool: %w", err)
	}

	// 5. Command dispatcher: routes inbound MQTT commands to actor
	// inboxes and publishes outbound responses.
	registry := actor.NewRegistry(logger)
	disp := dispatcher.New(mqttClient, registry, schema, logger)

	// 6. Optional time-series mirrors for uploaded points. Neither is
	// required; a disabled or unreachable sink only loses mirrored
	// telemetry, never the upload itself.
	mirrors := connectMirrors(ctx, cfg, logger)
	for _, m := range mirrors {
		if closer, ok := m.(interface{ Close() error }); ok {
			defer closer.Close()
		}
	}

	// 7. Domain actors.
	mon := monitor.New(pool, db, disp, registry, logger, time.Duration(cfg.Monitor.CycleIntervalSeconds)*time.Second)
	wr := writer.New(pool, db, disp, registry, logger)
	up := uploader.New(db, disp, logger, uploader.Options{
		BatchSize:              cfg.Uploader.BatchSize,
		SerializedSizeThresholdBytes: cfg.Uploader.SerializedSizeThresholdBytes,
		PollInterval:            time.Duration(cfg.Uploader.PollIntervalSeconds) * time.Second,
		CleanupInterval:         time.Duration(cfg.Uploader.CleanupIntervalSeconds) * time.Second,
	}, mirrors...)
	hb := heartbeat.New(db, disp, heartbeat.Identity{
		OrganizationID: cfg.Device.OrganizationID,
		SiteID:         cfg.Device.SiteID,
		IoTDeviceID:    cfg.Device.IoTDeviceID,
	}, logger, 0)
	sm := systemmetrics.New(db, pool, disp, logger)

	registry.Register(model.ActorBACnet, mon.Handle)
	registry.Register(model.ActorBACnetWriter, wr.Handle)
	registry.Register(model.ActorUploader, up.Handle)
	registry.Register(model.ActorHeartbeat, hb.Handle)
	registry.Register(model.ActorSystemMetrics, sm.Handle)
	// ActorCleaner and ActorMQTT complete model.AllActorNames but own no
	// command in this dispatcher's routing table (see DESIGN.md's
	// internal/systemmetrics entry); registered so every actor name has
	// an inbox and drain loop
	registry.Register(model.ActorCleaner, func(_ context.Context, msg model.ActorMessage) {
		logger.Warn("received unexpected message addressed to CLEANER", "type", msg.MessageType)
		up.Cleanup(ctx)
	})
	registry.Register(model.ActorMQTT, func(_ context.Context, msg model.ActorMessage) {
		logger.Warn("received unexpected message addressed to MQTT", "type", msg.MessageType)
	})

	registry.Start(ctx)
	defer registry.Stop()

	for _, topic := range disp.RequestTopics() {
		t := topic
		if err := mqttClient.Subscribe(t, byte(cfg.MQTT.QoS), func(topic string, payload []byte) error {
			return disp.Dispatch(ctx, topic, payload)
		}); err != nil {
			return fmt.Errorf("subscribing to %s: %w", t, err)
		}
	}

	up.Start(ctx)
	defer up.Stop()

	hb.Start(ctx)
	defer hb.Stop()

	// 8. Diagnostics HTTP surface, loopback
	// only, last to start since it reports on everything above.
	var diagServer *diag.Server
	if cfg.Diag.Enabled {
		diagServer, err = diag.New(diag.Deps{
			Addr:    cfg.Diag.Addr,
			Logger:  logger,
			Pool:    poolAdapter{pool},
			Store:   db,
			Version: version,
		})
		if err != nil {
			return fmt.Errorf("constructing diagnostics server: %w", err)
		}
		if err := diagServer.Start(ctx); err != nil {
			return fmt.Errorf("starting diagnostics server: %w", err)
		}
		defer diagServer.Close()
	}

	logger.Info("supervisor ready, waiting for shutdown signal")
	<-ctx.Done()
	logger.Info("shutdown signal received, stopping")

	return nil
}

// toReaderConfigs adapts config.ReaderConfig (the YAML-facing shape) to
// bacnet.ReaderConfig (the pool's shape) — kept as a plain mapping
// rather than a shared type so internal/bacnet never depends on
// internal/config.
func toReaderConfigs(in []config.ReaderConfig) []bacnet.ReaderConfig {
	out := make([]bacnet.ReaderConfig, len(in))
	for i, r := range in {
		out[i] = bacnet.ReaderConfig{
			ID:                 r.ID,
			BindIP:             r.BindIP,
			SubnetPrefixLength: r.SubnetPrefixLength,
			DeviceInstance:     r.DeviceInstance,
			Port:               r.Port,
			BBMDAddress:        r.BBMDAddress,
			IsActive:           r.IsActive,
		}
	}
	return out
}

// poolAdapter narrows *bacnet.Pool down to diag.Pool's local
// WrapperUtilization type, converting field-for-field so internal/diag
// never imports internal/bacnet (see internal/diag's DESIGN.md entry).
type poolAdapter struct {
	pool *bacnet.Pool
}

func (a poolAdapter) Utilization() map[string]diag.WrapperUtilization {
	src := a.pool.Utilization()
	out := make(map[string]diag.WrapperUtilization, len(src))
	for id, u := range src {
		out[id] = diag.WrapperUtilization{
			ActiveOperations: u.ActiveOperations,
			IsBusy:           u.IsBusy,
			IP:               u.IP,
			Port:             u.Port,
			Strategy:         string(u.Strategy),
		}
	}
	return out
}

// connectMirrors connects whichever of the two optional time-series
// sinks are enabled in config, logging (not failing) any that cannot
// connect — neither is required for the supervisor to run.
func connectMirrors(ctx context.Context, cfg *config.Config, logger *logging.Logger) []uploader.Mirror {
	var mirrors []uploader.Mirror

	if cfg.TSDB.Enabled {
		connectCtx, cancel := context.WithTimeout(ctx, startupGracePeriod)
		vm, err := tsdb.ConnectVictoriaMetrics(connectCtx, cfg.TSDB)
		cancel()
		if err != nil {
			logger.Warn("VictoriaMetrics sink unavailable, continuing without it", "err", err)
		} else {
			vm.SetOnError(func(err error) { logger.Warn("VictoriaMetrics write error", "err", err) })
			mirrors = append(mirrors, vm)
		}
	}

	if cfg.InfluxDB.Enabled {
		connectCtx, cancel := context.WithTimeout(ctx, startupGracePeriod)
		influx, err := tsdb.ConnectInfluxDB(connectCtx, cfg.InfluxDB)
		cancel()
		if err != nil {
			logger.Warn("InfluxDB sink unavailable, continuing without it", "err", err)
		} else {
			influx.SetOnError(func(err error) { logger.Warn("InfluxDB write error", "err", err) })
			mirrors = append(mirrors, influx)
		}
	}

	return mirrors
}
