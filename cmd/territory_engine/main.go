// Command territory_engine runs the territory control and influence engine.
// It reads commands from stdin, one per line, and answers each with a JSON
// line on stdout. Logs go to stderr and the session log file.
//
//	territory_engine [configDir]
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/Graylog2/go-gelf/gelf"
	"github.com/google/uuid"
	"github.com/sportsin/territory/internal/catalog"
	"github.com/sportsin/territory/internal/config"
	"github.com/sportsin/territory/internal/dispatcher"
	"github.com/sportsin/territory/internal/engine"
	"github.com/sportsin/territory/internal/handlers"
	"github.com/sportsin/territory/internal/influx"
	"github.com/sportsin/territory/internal/logging"
	"github.com/sportsin/territory/internal/monitor"
	intOtel "github.com/sportsin/territory/internal/otel"
	"github.com/sportsin/territory/internal/session"
	"github.com/sportsin/territory/internal/storage"
	"github.com/sportsin/territory/internal/worker"
	"github.com/sportsin/territory/pkg/core"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"golang.org/x/time/rate"
)

// module defs - BuildDate can be set at build time via ldflags
var (
	CurrentVersion string = "0.0.1"
	BuildDate      string = "unknown"

	AppName string = "territory_engine"
)

// file paths
var (
	// ConfigDir holds territory.cfg.json. It is the first argument, or the working directory.
	ConfigDir string

	// DataDir receives local databases. It is the config directory.
	DataDir string

	LogFilePath string
	LogFile     *os.File
)

// global variables
var (
	// SlogManager handles all slog-based logging
	SlogManager *logging.SlogManager

	// Logger is the slog logger (convenience reference)
	Logger *slog.Logger

	// OTelProvider handles OpenTelemetry
	OTelProvider *intOtel.Provider

	// GraylogWriter ships log lines as GELF messages when enabled
	GraylogWriter *gelf.Writer

	// Session carries the storage type and seed into every log record
	Session *session.Context

	SessionStartTime time.Time = time.Now()

	// Services
	storageBackend  storage.Backend
	territoryEngine *engine.Engine
	eventDispatcher *dispatcher.Dispatcher
	handlerService  *handlers.Service
	workerManager   *worker.Manager
	monitorService  *monitor.Service
	influxManager   *influx.Manager
	eventSink       *influx.Sink
)

func main() {
	ConfigDir = "."
	if len(os.Args) > 1 {
		ConfigDir = os.Args[1]
	}
	DataDir = ConfigDir

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		if Logger != nil {
			Logger.Error("Engine stopped with error", "error", err)
		}
		fmt.Fprintln(os.Stderr, err)
		shutdown()
		os.Exit(1)
	}
	shutdown()
}

func run(ctx context.Context) error {
	setupLogging()

	if err := initStorage(); err != nil {
		return err
	}
	initEvents(ctx)

	if err := initEngine(ctx); err != nil {
		return err
	}
	if err := initDispatcher(); err != nil {
		return err
	}
	startBackground(ctx)

	Logger.Info("Engine ready", "version", CurrentVersion, "commands", len(eventDispatcher.Commands()))
	return runCLI(ctx, os.Stdin, os.Stdout)
}

// logWriter is the session log file, or stderr before it exists.
func logWriter() io.Writer {
	if LogFile != nil {
		return LogFile
	}
	return os.Stderr
}

func setupLogging() {
	Session = session.NewContext(uuid.NewString(), SessionStartTime)

	// Initialize slog manager with initial config
	SlogManager = logging.NewSlogManager()
	SlogManager.Context = Session.LogAttrs
	SlogManager.Setup(os.Stderr, "info", nil)
	Logger = SlogManager.Logger()

	// load config
	if err := config.Load(ConfigDir); err != nil {
		Logger.Warn("Failed to load config, using defaults!", "error", err)
	} else {
		Logger.Info("Loaded config", "dir", ConfigDir)
	}

	logsDir := config.GetString("logsDir")
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		Logger.Error("Failed to create logs directory", "error", err, "path", logsDir)
	}

	LogFilePath = logging.LogFilePath(logsDir, AppName, SessionStartTime)

	// keep the previous log of the same second
	if _, err := os.Stat(LogFilePath); err == nil {
		os.Rename(LogFilePath, LogFilePath+".old")
	}

	var err error
	LogFile, err = os.OpenFile(LogFilePath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		Logger.Error("Failed to create/open log file!", "error", err, "path", LogFilePath)
		LogFile = nil
	}

	// Initialize OTel provider if enabled (after log file is created)
	otelCfg := config.GetOTelConfig()
	if otelCfg.Enabled {
		OTelProvider, err = intOtel.New(intOtel.Config{
			Version:      CurrentVersion,
			Enabled:      otelCfg.Enabled,
			ServiceName:  otelCfg.ServiceName,
			BatchTimeout: otelCfg.BatchTimeout,
			LogWriter:    logWriter(),
			Endpoint:     otelCfg.Endpoint,
			Insecure:     otelCfg.Insecure,
		})
		if err != nil {
			Logger.Error("Failed to initialize OTel provider", "error", err)
		} else if otelCfg.Endpoint != "" {
			Logger.Info("OTel provider initialized", "file", LogFilePath, "endpoint", otelCfg.Endpoint)
		} else {
			Logger.Info("OTel provider initialized", "file", LogFilePath)
		}
	}

	// Re-setup logging with file output and optional OTel
	var otelLogProvider *sdklog.LoggerProvider
	if OTelProvider != nil {
		otelLogProvider = OTelProvider.LoggerProvider()
	}
	writers := []io.Writer{os.Stderr}
	if LogFile != nil {
		writers = append(writers, LogFile)
	}
	graylogCfg := config.GetGraylogConfig()
	if graylogCfg.Enabled {
		GraylogWriter, err = logging.NewGraylogWriter(graylogCfg.Address)
		if err != nil {
			Logger.Error("Failed to connect to Graylog", "error", err, "address", graylogCfg.Address)
		} else {
			writers = append(writers, GraylogWriter)
		}
	}
	out := io.MultiWriter(writers...)
	SlogManager.Setup(out, config.GetString("logLevel"), otelLogProvider)
	Logger = SlogManager.Logger()
	slog.SetDefault(Logger)
	Logger.Info("Logging to file", "path", LogFilePath)
}

// initEvents connects the InfluxDB event sink. Without it engine events are dropped.
func initEvents(ctx context.Context) {
	influxCfg := config.GetInfluxConfig()
	backupPath := filepath.Join(DataDir, fmt.Sprintf("%s_%s.influx.gz", AppName, SessionStartTime.Format("20060102_150405")))

	influxManager = influx.NewManager(logging.NewZerolog(logWriter(), config.GetString("logLevel")), influxCfg, backupPath)
	if err := influxManager.Connect(ctx); err != nil {
		if !errors.Is(err, influx.ErrDisabled) {
			Logger.Error("Failed to set up InfluxDB", "error", err)
		}
		influxManager = nil
		return
	}
	eventSink = influx.NewSink(influxCfg.QueueLimit)
	Logger.Info("Event sink ready", "online", influxManager.IsValid, "queueLimit", influxCfg.QueueLimit)
}

func initEngine(ctx context.Context) error {
	var events core.EventSink
	if eventSink != nil {
		events = eventSink
	}

	var err error
	territoryEngine, err = engine.New(engine.Dependencies{
		Backend: storageBackend,
		Logger:  Logger,
		Events:  events,
	})
	if err != nil {
		return err
	}

	worldCfg := config.GetWorldConfig()
	world, err := catalog.LoadWorld(worldCfg.SeedPath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("loading world seed: %w", err)
		}
		Logger.Warn("No world seed found, starting from stored state", "path", worldCfg.SeedPath)
	} else {
		Session.SetSeedPath(worldCfg.SeedPath)
	}

	defs, err := loadPerkCatalog()
	if err != nil {
		return err
	}
	if err := territoryEngine.Seed(ctx, world, defs); err != nil {
		return fmt.Errorf("seeding world: %w", err)
	}

	return bootstrapCatalogs(ctx, worldCfg)
}

func loadPerkCatalog() ([]core.PerkDefinition, error) {
	perkCfg := config.GetPerkConfig()
	if perkCfg.CatalogPath == "" {
		return catalog.DefaultPerks(), nil
	}
	defs, err := catalog.LoadPerks(perkCfg.CatalogPath)
	if err != nil {
		return nil, fmt.Errorf("loading perk catalog: %w", err)
	}
	Logger.Info("Loaded perk catalog", "path", perkCfg.CatalogPath, "perks", len(defs))
	return defs, nil
}

// bootstrapCatalogs generates zones and routes when storage holds none yet.
func bootstrapCatalogs(ctx context.Context, worldCfg config.WorldConfig) error {
	registry := territoryEngine.Registry()
	points := territoryEngine.Points()
	if len(points) == 0 {
		return nil
	}

	if len(registry.Zones()) == 0 {
		zones, err := territoryEngine.BootstrapZones(ctx, points, worldCfg.ZoneRadiusKm, worldCfg.MinPointsPerZone)
		if err != nil {
			return fmt.Errorf("bootstrapping zones: %w", err)
		}
		Logger.Info("Zones bootstrapped", "zones", len(zones))
	}
	if len(registry.Routes()) == 0 {
		routes, err := territoryEngine.BootstrapRoutes(ctx, points, worldCfg.RouteMaxJumpKm, worldCfg.MinPointsPerRoute)
		if err != nil {
			return fmt.Errorf("bootstrapping routes: %w", err)
		}
		Logger.Info("Routes bootstrapped", "routes", len(routes))
	}
	return nil
}

func initDispatcher() error {
	var err error
	eventDispatcher, err = dispatcher.New(logging.NewDispatcherLogger(Logger))
	if err != nil {
		return fmt.Errorf("failed to create dispatcher: %w", err)
	}

	perkCfg := config.GetPerkConfig()
	handlerService = handlers.NewService(handlers.Dependencies{
		Engine:          territoryEngine,
		Logger:          Logger.With("component", "handlers"),
		Defaults:        config.GetWorldConfig(),
		ActivationRate:  rate.Limit(perkCfg.ActivationRate),
		ActivationBurst: perkCfg.ActivationBurst,
	})
	handlerService.Register(eventDispatcher)
	registerLifecycleHandlers(eventDispatcher)
	return nil
}

func startBackground(ctx context.Context) {
	var flusher worker.EventFlusher
	var flushInterval time.Duration
	if eventSink != nil {
		flusher = worker.FlushFunc(func() (int, error) {
			return eventSink.Flush(influxManager, 0)
		})
		flushInterval = config.GetInfluxConfig().FlushInterval
	}

	workerManager = worker.NewManager(worker.Dependencies{
		Perks:  territoryEngine,
		Events: flusher,
		Logger: Logger.With("component", "worker"),
	}, worker.Config{
		SweepInterval: config.GetPerkConfig().SweepInterval,
		FlushInterval: flushInterval,
	})
	workerManager.Start(ctx)

	monitorCfg := config.GetMonitorConfig()
	if monitorCfg.StatusFile == "" {
		return
	}
	deps := monitor.Dependencies{
		Territory:  territoryEngine.Registry(),
		Perks:      storageBackend,
		Logger:     Logger.With("component", "monitor"),
		StatusPath: monitorCfg.StatusFile,
		Interval:   monitorCfg.Interval,
	}
	if eventSink != nil {
		deps.Events = eventSink.Queue
	}
	monitorService = monitor.NewService(deps)
	if err := monitorService.Start(ctx); err != nil {
		Logger.Error("Failed to start status monitor", "error", err)
		monitorService = nil
	}
}

// shutdown stops everything started by run, newest first.
func shutdown() {
	if monitorService != nil {
		monitorService.Stop()
	}
	if workerManager != nil {
		workerManager.Stop()
	}
	if eventDispatcher != nil {
		eventDispatcher.Close()
	}
	if influxManager != nil {
		if err := influxManager.Close(); err != nil {
			Logger.Error("Failed to close InfluxDB", "error", err)
		}
	}
	if storageBackend != nil {
		if err := storageBackend.Close(); err != nil {
			Logger.Error("Failed to close storage backend", "error", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if SlogManager != nil {
		SlogManager.Flush(ctx)
	}
	if OTelProvider != nil {
		if err := OTelProvider.Shutdown(ctx); err != nil {
			fmt.Fprintln(os.Stderr, "failed to shut down OTel provider:", err)
		}
	}
	if GraylogWriter != nil {
		GraylogWriter.Close()
	}
	if LogFile != nil {
		LogFile.Close()
	}
}
