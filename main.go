package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/smazurov/camsync/cmd"
	"github.com/smazurov/camsync/internal/api"
	"github.com/smazurov/camsync/internal/config"
	"github.com/smazurov/camsync/internal/events"
	"github.com/smazurov/camsync/internal/host"
	"github.com/smazurov/camsync/internal/logging"
	"github.com/smazurov/camsync/internal/metrics"
	"github.com/smazurov/camsync/internal/metrics/collectors"
	"github.com/smazurov/camsync/internal/metrics/exporters"
	"github.com/smazurov/camsync/internal/snapshot"
	"github.com/smazurov/camsync/internal/systemd"
	"github.com/smazurov/camsync/internal/version"
)

// Options for the CLI - flat structure with toml mapping.
type Options struct {
	Config string `help:"Path to configuration file" short:"c" default:"config.toml"`
	DotEnv string `help:"Environment file loaded before the configuration" default:".env"`

	// Server settings
	Port       string `help:"Port to listen on" short:"p" default:":8090" toml:"server.port" env:"SERVER_PORT"`
	CORSOrigin string `help:"Allowed CORS origin" default:"*" toml:"server.cors_origin" env:"SERVER_CORS_ORIGIN"`

	// Auth settings
	AuthUsername string `help:"Basic auth username" default:"admin" toml:"auth.username" env:"AUTH_USERNAME"`
	AuthPassword string `help:"Basic auth password" default:"password" toml:"auth.password" env:"AUTH_PASSWORD"`

	// Host settings
	HostInterval  time.Duration `help:"Pause between acquisition rounds (0 runs back to back)" default:"0s" toml:"host.interval" env:"HOST_INTERVAL"`
	HostMaxErrors int           `help:"Consecutive failed rounds before giving up (negative never gives up)" default:"10" toml:"host.max_errors" env:"HOST_MAX_ERRORS"`

	// Snapshot settings
	SnapshotDir     string `help:"Directory for saved frames (empty disables POST /api/snapshot)" default:"snapshots" toml:"snapshot.dir" env:"SNAPSHOT_DIR"`
	SnapshotFormat  string `help:"Saved frame format (jpg, png, bmp, tiff)" default:"jpg" toml:"snapshot.format" env:"SNAPSHOT_FORMAT"`
	SnapshotQuality int    `help:"JPEG quality" default:"90" toml:"snapshot.quality" env:"SNAPSHOT_QUALITY"`

	// Metrics settings
	MetricsEnabled             bool          `help:"Serve Prometheus metrics on /metrics" default:"true" toml:"metrics.enabled" env:"METRICS_ENABLED"`
	MetricsTemperatureInterval time.Duration `help:"Camera temperature poll interval" default:"10s" toml:"metrics.temperature_interval" env:"METRICS_TEMPERATURE_INTERVAL"`

	// Logging settings
	LoggingLevel    string `help:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat   string `help:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
	LoggingSession  string `help:"Device session logging level" default:"info" toml:"logging.session" env:"LOGGING_SESSION"`
	LoggingTrigger  string `help:"Trigger protocol logging level" default:"info" toml:"logging.trigger" env:"LOGGING_TRIGGER"`
	LoggingPipeline string `help:"Frame pipeline logging level" default:"info" toml:"logging.pipeline" env:"LOGGING_PIPELINE"`
	LoggingDecode   string `help:"Pixel decoder logging level" default:"info" toml:"logging.decode" env:"LOGGING_DECODE"`
	LoggingAPI      string `help:"API logging level" default:"info" toml:"logging.api" env:"LOGGING_API"`
	LoggingHTTP     string `help:"HTTP request logging level" default:"info" toml:"logging.http" env:"LOGGING_HTTP"`
	LoggingMetrics  string `help:"Metrics logging level" default:"info" toml:"logging.metrics" env:"LOGGING_METRICS"`
}

func main() {
	var cli humacli.CLI

	// Create Huma CLI. The callback also runs before subcommands, so it only
	// resolves configuration; the array is opened in OnStart.
	cli = humacli.New(func(hooks humacli.Hooks, opts *Options) {
		if envErr := config.LoadDotEnv(opts.DotEnv); envErr != nil {
			slog.Warn("Failed to load environment file", "error", envErr)
		}

		// Load configuration automatically; explicit flags win
		if loadErr := config.LoadConfig(opts, cli.Root()); loadErr != nil {
			slog.Warn("Failed to load config", "error", loadErr)
		}

		// Initialize logging system
		logging.Initialize(logging.Config{
			Level:  opts.LoggingLevel,
			Format: opts.LoggingFormat,
			Modules: map[string]string{
				"session":  opts.LoggingSession,
				"trigger":  opts.LoggingTrigger,
				"pipeline": opts.LoggingPipeline,
				"decode":   opts.LoggingDecode,
				"api":      opts.LoggingAPI,
				"http":     opts.LoggingHTTP,
				"metrics":  opts.LoggingMetrics,
			},
		})

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})

		hooks.OnStart(func() {
			defer close(done)
			if err := serve(ctx, opts); err != nil {
				logging.GetLogger("main").Error("camsync stopped", "error", err)
				os.Exit(1)
			}
		})

		hooks.OnStop(func() {
			cancel()
			<-done
		})
	})

	cli.Root().Use = "camsync"
	cli.Root().Short = "Synchronized industrial camera array"
	cli.Root().Version = version.String()

	cli.Root().AddCommand(cmd.CreateProbeCmd())
	cli.Root().AddCommand(cmd.CreateSnapshotCmd())

	// Run the CLI
	cli.Run()
}

// serve opens the camera array, runs acquisition rounds and serves the API
// until ctx is cancelled or acquisition fails.
func serve(ctx context.Context, opts *Options) error {
	logger := logging.GetLogger("main")
	logger.Info("Starting", "version", version.Get().Line())

	acqCfg, err := config.LoadAcquisition(opts.Config)
	if err != nil {
		return fmt.Errorf("invalid acquisition config: %w", err)
	}

	// Create event bus for in-process event handling. Subscribers go first
	// so they see the session-started event.
	eventBus := events.New()
	unsubscribeMetrics := metrics.Subscribe(eventBus)
	defer unsubscribeMetrics()
	stopLogForwarding := api.ForwardLogs(eventBus)
	defer stopLogForwarding()

	acq, err := cmd.OpenAcquisition(acqCfg, eventBus)
	if err != nil {
		return fmt.Errorf("failed to open camera array: %w", err)
	}
	status := acq.Session().Status()
	logger.Info("Camera array ready", "status", status.String())

	var saver *snapshot.Saver
	if opts.SnapshotDir != "" {
		format, fmtErr := snapshot.ParseFormat(opts.SnapshotFormat)
		if fmtErr == nil {
			saver, fmtErr = snapshot.New(snapshot.Options{
				Dir:     opts.SnapshotDir,
				Format:  format,
				Quality: opts.SnapshotQuality,
				Events:  eventBus,
			})
		}
		if fmtErr != nil {
			logger.Warn("Snapshots disabled", "error", fmtErr)
		}
	}

	apiOpts := &api.Options{
		AuthUsername: opts.AuthUsername,
		AuthPassword: opts.AuthPassword,
		CORSOrigin:   opts.CORSOrigin,
		Acquisition:  acq,
		Snapshots:    saver,
		EventBus:     eventBus,
	}
	var temperature *collectors.TemperatureCollector
	if opts.MetricsEnabled {
		apiOpts.PrometheusHandler = exporters.HTTPHandler()
		temperature = collectors.NewTemperatureCollector(acq.Session(), opts.MetricsTemperatureInterval)
		_ = temperature.Start(ctx)
	}
	server := api.NewServer(apiOpts)

	notifier := systemd.NewNotifier()
	runner := host.NewRunner(acq, host.Options{
		Interval:             opts.HostInterval,
		MaxConsecutiveErrors: opts.HostMaxErrors,
		AfterRound: func(uint64) {
			notifier.RoundCompleted(time.Now())
		},
		// The collector reads the cameras, so it stops before the
		// session is shut down.
		BeforeClose: func() {
			if temperature != nil {
				_ = temperature.Stop()
			}
		},
	})

	if watcher, watchErr := config.WatchLogging(ctx, opts.Config); watchErr != nil {
		logger.Warn("Logging hot reload disabled", "error", watchErr)
	} else {
		defer func() { _ = watcher.Stop() }()
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server", "port", opts.Port)
		if startErr := server.Start(opts.Port); startErr != nil && !errors.Is(startErr, http.ErrServerClosed) {
			serverErr <- startErr
			runner.Shutdown()
		}
		close(serverErr)
	}()

	notifier.Ready(status.String())

	// Run returns once ctx is cancelled, the server failed or too many
	// rounds failed in a row; the array is closed either way.
	runErr := runner.Run(ctx)

	notifier.Stopping()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if stopErr := server.Shutdown(shutdownCtx); stopErr != nil {
		// SSE streams hold connections open until the client leaves.
		_ = server.Stop()
	}

	return errors.Join(runErr, <-serverErr)
}
