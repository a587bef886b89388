package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"

	"github.com/smazurov/camrig/cmd"
	"github.com/smazurov/camrig/internal/api"
	"github.com/smazurov/camrig/internal/config"
	"github.com/smazurov/camrig/internal/events"
	"github.com/smazurov/camrig/internal/logging"
	"github.com/smazurov/camrig/internal/metrics/collectors"
	"github.com/smazurov/camrig/internal/metrics/exporters"
	"github.com/smazurov/camrig/internal/monitoring"
	"github.com/smazurov/camrig/internal/systemd"
	"github.com/smazurov/camrig/pkg/linuxav/capture"
)

// Options for the CLI - flat structure with toml mapping.
type Options struct {
	Config string `help:"Path to configuration file" short:"c" default:"config.toml"`

	// Server settings
	Port string `help:"Port to listen on" short:"p" default:":8090" toml:"server.port" env:"SERVER_PORT"`

	// Device settings
	DeviceDir     string `help:"Directory holding the video nodes" default:"/dev" toml:"devices.dir" env:"DEVICES_DIR"`
	CaptureWidth  int    `help:"Requested capture width, 0 lets the driver pick" default:"0" toml:"capture.width" env:"CAPTURE_WIDTH"`
	CaptureHeight int    `help:"Requested capture height, 0 lets the driver pick" default:"0" toml:"capture.height" env:"CAPTURE_HEIGHT"`

	// Snapshot settings
	SnapshotDir      string        `help:"Directory for per-camera snapshots, empty keeps them in memory" default:"" toml:"snapshots.dir" env:"SNAPSHOTS_DIR"`
	SnapshotInterval time.Duration `help:"Minimum time between snapshot writes per camera" default:"5s" toml:"snapshots.interval" env:"SNAPSHOTS_INTERVAL"`

	// Metrics settings
	MetricsEnabled       bool          `help:"Expose Prometheus metrics on /metrics" default:"true" toml:"metrics.enabled" env:"METRICS_ENABLED"`
	MetricsNodesInterval time.Duration `help:"How often to count video nodes in sysfs" default:"10s" toml:"metrics.nodes_interval" env:"METRICS_NODES_INTERVAL"`

	// Auth settings
	AuthUsername string `help:"Basic auth username" default:"admin" toml:"auth.username" env:"AUTH_USERNAME"`
	AuthPassword string `help:"Basic auth password" default:"password" toml:"auth.password" env:"AUTH_PASSWORD"`

	// Logging settings
	LoggingLevel   string `help:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat  string `help:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
	LoggingHotplug string `help:"Hotplug logging level" default:"info" toml:"logging.hotplug" env:"LOGGING_HOTPLUG"`
	LoggingCapture string `help:"Capture logging level" default:"info" toml:"logging.capture" env:"LOGGING_CAPTURE"`
	LoggingMonitor string `help:"Camera monitor logging level" default:"info" toml:"logging.monitor" env:"LOGGING_MONITOR"`
	LoggingAPI     string `help:"API logging level" default:"info" toml:"logging.api" env:"LOGGING_API"`
}

func main() {
	var cli humacli.CLI
	cli = humacli.New(func(hooks humacli.Hooks, opts *Options) {
		// Flags set on the command line win over the file and environment.
		if loadErr := config.LoadConfig(opts, cli.Root()); loadErr != nil {
			slog.Warn("Failed to load config", "error", loadErr)
		}

		logging.Initialize(logging.Config{
			Level:  opts.LoggingLevel,
			Format: opts.LoggingFormat,
			Modules: map[string]string{
				logging.ModuleHotplug: opts.LoggingHotplug,
				logging.ModuleCapture: opts.LoggingCapture,
				logging.ModuleMonitor: opts.LoggingMonitor,
				logging.ModuleAPI:     opts.LoggingAPI,
				logging.ModuleHTTP:    opts.LoggingAPI,
			},
		})
		logger := logging.GetLogger(logging.ModuleMain)

		width, widthErr := config.Dimension("capture-width", opts.CaptureWidth)
		height, heightErr := config.Dimension("capture-height", opts.CaptureHeight)
		if sizeErr := errors.Join(widthErr, heightErr); sizeErr != nil {
			logger.Error("Invalid capture size", "error", sizeErr)
			os.Exit(1)
		}

		// Log levels follow the config file while running.
		levelWatcher := config.NewConfigWatcher(
			opts.Config,
			config.LoadLoggingConfigFile,
			logging.GetLogger(logging.ModuleConfig),
		)
		levelWatcher.OnReload(func(cfg logging.Config) {
			logging.UpdateLevels(cfg)
			logger.Info("Logging levels reloaded", "level", cfg.Level)
		})

		eventBus := events.New()
		snapshots := monitoring.NewSnapshotHandler(opts.SnapshotDir, opts.SnapshotInterval, eventBus)

		cameraMonitor, err := monitoring.NewCameraMonitor(monitoring.Options{
			DeviceDir: opts.DeviceDir,
			Capture:   capture.Config{Width: width, Height: height},
			Handler:   snapshots,
			EventBus:  eventBus,
		})
		if err != nil {
			logger.Error("Failed to create camera monitor", "error", err)
			os.Exit(1)
		}

		var nodeCollector *collectors.NodeCollector
		apiOpts := &api.Options{
			AuthUsername: opts.AuthUsername,
			AuthPassword: opts.AuthPassword,
			EventBus:     eventBus,
			Cameras:      cameraMonitor,
			Snapshots:    snapshots,
		}
		if opts.MetricsEnabled {
			apiOpts.PrometheusHandler = exporters.HTTPHandler()
			nodeCollector = collectors.NewNodeCollector("", opts.MetricsNodesInterval)
		}
		server := api.NewServer(apiOpts)

		notifier := systemd.NewNotifier(logger)
		eventBus.Subscribe(func(events.DeviceDiscoveryEvent) {
			notifier.Status("%d cameras capturing", len(cameraMonitor.Cameras()))
		})

		ctx, cancel := context.WithCancel(context.Background())

		hooks.OnStart(func() {
			if startErr := levelWatcher.Start(); startErr != nil {
				logger.Warn("Failed to start config watcher, log level reload disabled", "error", startErr)
			}
			if nodeCollector != nil {
				if startErr := nodeCollector.Start(ctx); startErr != nil {
					logger.Warn("Failed to start video node collector", "error", startErr)
				}
			}
			cameraMonitor.Start(ctx)
			notifier.Ready(ctx)

			logger.Info("Starting HTTP server", "port", opts.Port)
			if startErr := server.Start(opts.Port); startErr != nil {
				logger.Error("Failed to start HTTP server", "error", startErr)
				os.Exit(1)
			}
		})

		hooks.OnStop(func() {
			logger.Info("Shutting down server")
			notifier.Stopping()
			if stopErr := server.Stop(); stopErr != nil {
				logger.Error("Error stopping HTTP server", "error", stopErr)
			}

			cancel()
			cameraMonitor.Stop()
			if nodeCollector != nil {
				if stopErr := nodeCollector.Stop(); stopErr != nil {
					logger.Warn("Error stopping video node collector", "error", stopErr)
				}
			}
			if stopErr := levelWatcher.Stop(); stopErr != nil {
				logger.Warn("Error stopping config watcher", "error", stopErr)
			}
		})
	})

	cli.Root().Use = "camrig"
	cli.Root().Short = "Camera hotplug and capture service for V4L2 devices"

	cli.Root().AddCommand(cmd.CreateListCmd())
	cli.Root().AddCommand(cmd.CreateSnapshotCmd())
	cli.Root().AddCommand(cmd.CreateWatchCmd())

	cli.Run()
}
