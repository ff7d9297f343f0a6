// GSM overlay input server.
//
// Reads gamepads, relays normalized button and axis events to every
// connected overlay over WebSocket, and answers tokenize/furigana requests
// through a supervised MeCab worker process.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/gsmoverlay/input-server/internal/api"
	"github.com/gsmoverlay/input-server/internal/audit"
	"github.com/gsmoverlay/input-server/internal/broadcast"
	"github.com/gsmoverlay/input-server/internal/gamepad"
	"github.com/gsmoverlay/input-server/internal/infrastructure/config"
	"github.com/gsmoverlay/input-server/internal/infrastructure/database"
	"github.com/gsmoverlay/input-server/internal/infrastructure/influxdb"
	"github.com/gsmoverlay/input-server/internal/infrastructure/logging"
	"github.com/gsmoverlay/input-server/internal/infrastructure/mqtt"
	"github.com/gsmoverlay/input-server/internal/input"
	"github.com/gsmoverlay/input-server/internal/mirror"
	"github.com/gsmoverlay/input-server/internal/worker"
	"github.com/gsmoverlay/input-server/migrations"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// configEnv names the config file when --config is not given.
const configEnv = "GSM_INPUT_CONFIG"

// auditSource is stored on every audit entry this process writes.
const auditSource = "inputserver"

// bootLogging is used until the config file has been read.
var bootLogging = config.LoggingConfig{Level: "info", Format: "json", Output: "stdout"}

// options are the command-line overrides.
type options struct {
	configPath string
	host       string
	port       int
	logLevel   string
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var opts options
	cmd := &cobra.Command{
		Use:           "inputserver",
		Short:         "Gamepad input relay for the GSM overlay",
		Long:          `Relays gamepad buttons and sticks to overlay clients over WebSocket and serves tokenize and furigana requests through a MeCab worker.`,
		Version:       fmt.Sprintf("%s (commit %s, built %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), opts)
		},
	}
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", os.Getenv(configEnv), "path to the YAML config file")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "debug, info, warn or error (overrides logging.level)")
	cmd.Flags().StringVar(&opts.host, "host", "", "listen host (overrides server.host)")
	cmd.Flags().IntVarP(&opts.port, "port", "p", 0, "listen port (overrides server.port)")
	cmd.AddCommand(newMigrateCmd(&opts))
	return cmd
}

// newMigrateCmd applies or rolls back the audit database schema without
// starting the server.
func newMigrateCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the audit database schema",
		Args:  cobra.NoArgs,
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return migrate(cmd, *opts, false)
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the most recent migration",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return migrate(cmd, *opts, true)
			},
		},
	)
	return cmd
}

// migrate runs one schema step and prints the versions left applied.
func migrate(cmd *cobra.Command, opts options, down bool) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if !cfg.Database.Enabled {
		return errors.New("database is disabled in config")
	}

	db, err := database.Open(cfg.Database)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close() //nolint:errcheck // read-only after the migration step

	ctx := cmd.Context()
	if down {
		err = db.MigrateDown(ctx, migrations.FS)
	} else {
		err = db.Migrate(ctx, migrations.FS)
	}
	if err != nil {
		return fmt.Errorf("migrating %s: %w", db.Path(), err)
	}

	applied, err := db.AppliedVersions(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %d migration(s) applied %v\n", db.Path(), len(applied), applied)
	return nil
}

// loadConfig reads the config file and applies the flag overrides.
func loadConfig(opts options) (*config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}
	if opts.host != "" {
		cfg.Server.Host = opts.host
	}
	if opts.port != 0 {
		cfg.Server.Port = opts.port
	}
	if opts.logLevel != "" {
		cfg.Logging.Level = opts.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating flags: %w", err)
	}
	return cfg, nil
}

// logStartup writes the first log line. The version is already a default
// attribute of log.
func logStartup(log *logging.Logger) {
	log.Info("starting input server",
		"commit", commit,
		"build_date", date,
	)
}

// run is the actual application logic, separated from main for testability.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//   - opts: Command-line options
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context, opts options) error { //nolint:gocognit,gocyclo // linear startup sequence
	log := logging.New(bootLogging, version)
	logStartup(log)

	cfg, err := loadConfig(opts)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log = logging.New(cfg.Logging, version)
	defer log.Close() //nolint:errcheck // nothing to report to at this point
	log.Info("configuration loaded", "path", opts.configPath, "level", cfg.Logging.Level)

	hub := broadcast.NewHub(cfg.Input.BroadcastCapacity)
	hub.SetLogger(log.With("component", "hub"))
	registry := gamepad.NewRegistry()

	source := openSource(cfg.Input, log)
	defer source.Close() //nolint:errcheck // best effort on shutdown

	padCfg := gamepad.Config{
		Deadzone:               cfg.Input.Deadzone,
		TriggerThreshold:       cfg.Input.TriggerThreshold,
		AxisEpsilon:            cfg.Input.AxisEpsilon,
		AxisMinInterval:        cfg.Input.AxisMinInterval,
		AxisHoldRepeatInterval: cfg.Input.AxisHoldRepeatInterval,
	}
	padLog := log.With("component", "gamepad")
	normalizer := gamepad.NewNormalizer(padCfg, registry)
	normalizer.SetLogger(padLog)
	poller := gamepad.NewPoller(source, normalizer, hub)
	poller.SetLogger(padLog)
	repeater := gamepad.NewRepeater(padCfg, registry, hub)
	repeater.SetLogger(padLog)

	// Optional sinks. Each one that cannot start is a warning; the relay
	// runs without it and GET /api/v1/health reports what is up.
	checks := make(map[string]api.HealthChecker)

	var (
		recorder  *audit.Recorder
		auditRepo audit.Repository
	)
	if cfg.Database.Enabled {
		if db, repo := openAudit(ctx, cfg.Database, log); db != nil {
			defer func() {
				if closeErr := db.Close(); closeErr != nil {
					log.Error("error closing database", "error", closeErr)
				}
			}()
			auditRepo = repo
			recorder = audit.NewRecorder(repo, auditSource)
			recorder.SetLogger(log.With("component", "audit"))
			checks["db"] = db
		}
	}

	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		if influxClient = connectInflux(cfg.InfluxDB, log); influxClient != nil {
			defer func() {
				log.Info("closing InfluxDB connection")
				if closeErr := influxClient.Close(); closeErr != nil {
					log.Error("error closing InfluxDB", "error", closeErr)
				}
			}()
			checks["influxdb"] = influxClient
		}
	}

	var mirrored *runningMirror
	if cfg.MQTT.Enabled {
		if mirrored = startMirror(cfg.MQTT, hub, log); mirrored != nil {
			defer mirrored.client.Close() //nolint:errcheck // publishes the offline status
			checks["mqtt"] = mirrored.client
		}
	}

	// Worker bridge
	var (
		bridge    *worker.Bridge
		apiWorker api.Worker
	)
	if cfg.Worker.Enabled {
		bridge = newBridge(cfg.Worker, recorder, log)
		if influxClient != nil {
			bridge.SetObserver(influxClient)
		}
		defer bridge.Close() //nolint:errcheck // kills the child; nothing to report
		apiWorker = bridge
	} else {
		log.Info("worker disabled, serving local fallbacks")
	}

	var lag api.LagObserver
	if influxClient != nil {
		lag = influxClient
	}

	deps := api.Deps{
		Config:    cfg.Server,
		WebSocket: cfg.WebSocket,
		Logger:    log.With("component", "api"),
		Hub:       hub,
		Registry:  registry,
		Worker:    apiWorker,
		Lag:       lag,
		Audit:     recorder,
		AuditRepo: auditRepo,
		Checks:    checks,
		Version:   version,
	}
	if mirrored != nil {
		deps.Mirror = mirrored.mirror
	}
	server, err := api.New(deps)
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}

	// The recorder outlives the main group so session_close entries
	// written during shutdown still land.
	recCtx, recCancel := context.WithCancel(context.Background())
	recDone := make(chan struct{})
	go func() {
		defer close(recDone)
		if recorder != nil {
			_ = recorder.Run(recCtx)
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return poller.Run(gctx) })
	g.Go(func() error { return repeater.Run(gctx) })

	if mirrored != nil {
		g.Go(func() error { return mirrored.mirror.Run(gctx) })
	}

	if bridge != nil && cfg.Worker.EagerStart {
		g.Go(func() error {
			if startErr := bridge.Start(gctx); startErr != nil && gctx.Err() == nil {
				log.Warn("worker not available at startup, will retry on first request", "error", startErr)
			}
			return nil
		})
	}

	log.Info("input server ready", "address", server.Addr().String())

	<-gctx.Done()
	log.Info("shutdown signal received, stopping...")

	if closeErr := server.Close(); closeErr != nil {
		log.Error("error stopping API server", "error", closeErr)
	}
	hub.Close()
	_ = source.Close()
	waitErr := g.Wait()

	recCancel()
	<-recDone

	log.Info("input server stopped")
	return waitErr
}

// openSource picks the gamepad backend. A joystick backend that cannot
// start, for any reason, degrades to no hardware so overlays can still
// connect.
func openSource(cfg config.InputConfig, log *logging.Logger) input.Source {
	if cfg.Backend == "none" {
		log.Info("gamepad input disabled")
		return input.NewFakeSource()
	}

	src, err := input.OpenJoystick(cfg.DeviceDir, log.With("component", "joystick"))
	if err != nil {
		log.Warn("joystick backend unavailable, running without gamepads", "dir", cfg.DeviceDir, "error", err)
		return input.NewFakeSource()
	}
	log.Info("joystick backend started", "dir", cfg.DeviceDir, "devices", len(src.Devices()))
	return src
}

// openAudit opens and migrates the audit database.
//
// Returns:
//   - *database.DB: nil when the database could not be opened or migrated
//   - *audit.SQLiteRepository: repository over the open database
func openAudit(ctx context.Context, cfg config.DatabaseConfig, log *logging.Logger) (*database.DB, *audit.SQLiteRepository) {
	db, err := database.Open(cfg)
	if err != nil {
		log.Warn("audit trail disabled", "path", cfg.Path, "error", err)
		return nil, nil
	}
	if err := db.Migrate(ctx, migrations.FS); err != nil {
		log.Warn("audit trail disabled", "path", cfg.Path, "error", fmt.Errorf("running migrations: %w", err))
		_ = db.Close()
		return nil, nil
	}
	log.Info("audit trail enabled", "path", cfg.Path)
	return db, audit.NewSQLiteRepository(db.DB)
}

// connectInflux connects the telemetry writer. An unreachable server is a
// warning and telemetry stays off.
func connectInflux(cfg config.InfluxDBConfig, log *logging.Logger) *influxdb.Client {
	influxLog := log.With("component", "influxdb")
	client, err := influxdb.Connect(cfg)
	if err != nil {
		influxLog.Warn("telemetry disabled", "url", cfg.URL, "error", err)
		return nil
	}
	client.SetLogger(influxLog)
	influxLog.Info("InfluxDB connected", "url", cfg.URL, "bucket", cfg.Bucket)
	return client
}

// newBridge builds the worker bridge with audit hooks.
func newBridge(cfg config.WorkerConfig, recorder *audit.Recorder, log *logging.Logger) *worker.Bridge {
	workerLog := log.With("component", "worker")
	bridge := worker.NewBridge(worker.Config{
		Script:         cfg.Script,
		Candidates:     worker.DefaultCandidates(cfg.Python),
		HealthTimeout:  cfg.HealthTimeout,
		RequestTimeout: cfg.RequestTimeout,
		OnSpawnAttempt: func(c worker.LaunchSpec) {
			workerLog.Debug("trying worker candidate", "candidate", c.String())
		},
		OnStart: func(c worker.LaunchSpec, pid int) {
			recorder.Record(audit.ActionWorkerSpawn, audit.EntityWorker, "",
				map[string]any{"candidate": c.String(), "pid": pid})
		},
		OnFailure: func(err error) {
			recorder.Record(audit.ActionWorkerFailure, audit.EntityWorker, "",
				map[string]any{"error": err.Error()})
		},
	})
	bridge.SetLogger(workerLog)
	return bridge
}

type runningMirror struct {
	client *mqtt.Client
	mirror *mirror.Mirror
}

// startMirror connects to the broker. A broker that is down at startup is
// a warning; the relay runs without the mirror.
func startMirror(cfg config.MQTTConfig, hub *broadcast.Hub, log *logging.Logger) *runningMirror {
	mqttLog := log.With("component", "mqtt")
	client, err := mqtt.Connect(cfg)
	if err != nil {
		mqttLog.Warn("MQTT mirror disabled", "error", err)
		return nil
	}
	client.SetLogger(mqttLog)
	m := mirror.New(hub, client)
	m.SetLogger(mqttLog)
	mqttLog.Info("MQTT mirror connected",
		"broker", fmt.Sprintf("%s:%d", cfg.Broker.Host, cfg.Broker.Port),
		"topic", client.Topics().AllEvents(),
	)
	return &runningMirror{client: client, mirror: m}
}
