// Package main is the entry point for the WebSocket relay.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/AltairaLabs/Omnia-sub008/internal/config"
	"github.com/AltairaLabs/Omnia-sub008/internal/health"
	"github.com/AltairaLabs/Omnia-sub008/internal/middleware"
	"github.com/AltairaLabs/Omnia-sub008/internal/observability"
	"github.com/AltairaLabs/Omnia-sub008/internal/relay"
)

// Version information (set at build time).
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

// cliFlags holds command line flags.
type cliFlags struct {
	configPath  string
	logLevel    string
	logFormat   string
	showVersion bool
}

func main() {
	flags := parseFlags()

	if flags.showVersion {
		printVersion()
		return
	}

	logger := initLogger(flags)
	defer func() { _ = logger.Sync() }()

	cfg := loadAndValidateConfig(flags.configPath, logger)
	app := initApplication(cfg, logger)

	runRelay(app, logger)
}

// parseFlags parses command line flags.
func parseFlags() cliFlags {
	configPath := flag.String("config", os.Getenv("RELAY_CONFIG_PATH"),
		"Path to configuration file (optional; environment defaults apply without one)")
	logLevel := flag.String("log-level", getEnvOrDefault("RELAY_LOG_LEVEL", "info"),
		"Log level (debug, info, warn, error)")
	logFormat := flag.String("log-format", getEnvOrDefault("RELAY_LOG_FORMAT", "json"),
		"Log format (json, console)")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	return cliFlags{
		configPath:  *configPath,
		logLevel:    *logLevel,
		logFormat:   *logFormat,
		showVersion: *showVersion,
	}
}

// printVersion prints version information and exits.
func printVersion() {
	fmt.Printf("relay version %s\n", version)
	fmt.Printf("  Build time: %s\n", buildTime)
	fmt.Printf("  Git commit: %s\n", gitCommit)
}

// initLogger initializes the logger.
func initLogger(flags cliFlags) observability.Logger {
	logger, err := observability.NewLogger(observability.LogConfig{
		Level:  flags.logLevel,
		Format: flags.logFormat,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	observability.SetGlobalLogger(logger)
	return logger
}

// loadAndValidateConfig loads and validates the configuration. Without
// a config file the RELAY_* environment variables and package defaults
// apply.
func loadAndValidateConfig(configPath string, logger observability.Logger) *config.RelayConfig {
	logger.Info("starting relay",
		observability.String("version", version),
		observability.String("config", configPath),
	)

	var cfg *config.RelayConfig
	if configPath == "" {
		cfg = config.Default()
	} else {
		loaded, err := config.Load(configPath)
		if err != nil {
			logger.Fatal("failed to load configuration", observability.Error(err))
		}
		cfg = loaded
	}

	if err := config.Validate(cfg); err != nil {
		logger.Fatal("invalid configuration", observability.Error(err))
	}

	logger.Info("configuration loaded",
		observability.Int("port", cfg.Server.Port),
		observability.String("service_domain", cfg.Upstream.ServiceDomain),
		observability.String("lsp_url", cfg.Upstream.LSPURL),
		observability.Duration("dial_timeout", cfg.Upstream.DialTimeout.Duration()),
	)

	return cfg
}

// application holds all application components.
type application struct {
	server  *relay.Server
	ops     *http.Server
	tracer  *observability.Tracer
	metrics *observability.Metrics
	checker *health.Checker
	config  *config.RelayConfig
}

// initApplication initializes all application components.
func initApplication(cfg *config.RelayConfig, logger observability.Logger) *application {
	metrics := observability.NewMetrics("relay")
	metrics.SetBuildInfo(version, gitCommit, float64(time.Now().Unix()))

	tracer := initTracer(cfg, logger)
	checker := health.NewChecker(version)

	sessionMetrics := relay.NewSessionMetrics(metrics.Registry())
	dispatcher := relay.NewDispatcher(cfg, logger, sessionMetrics, tracer)
	handler := buildMiddlewareChain(dispatcher, logger)

	server := relay.NewServer(relay.ServerConfig{
		Port:    cfg.Server.Port,
		Address: cfg.Server.Address,
	}, handler, logger)

	return &application{
		server:  server,
		ops:     buildOpsServer(cfg, metrics, checker),
		tracer:  tracer,
		metrics: metrics,
		checker: checker,
		config:  cfg,
	}
}

// initTracer initializes the tracer.
func initTracer(cfg *config.RelayConfig, logger observability.Logger) *observability.Tracer {
	tracerCfg := observability.TracerConfig{
		ServiceName:  "relay",
		Enabled:      cfg.Observability.Tracing.Enabled,
		SamplingRate: cfg.Observability.Tracing.SamplingRate,
		OTLPEndpoint: cfg.Observability.Tracing.OTLPEndpoint,
	}
	if cfg.Observability.Tracing.ServiceName != "" {
		tracerCfg.ServiceName = cfg.Observability.Tracing.ServiceName
	}

	tracer, err := observability.NewTracer(tracerCfg)
	if err != nil {
		logger.Fatal("failed to initialize tracer", observability.Error(err))
	}

	return tracer
}

// buildMiddlewareChain wraps the dispatcher in the listener middleware.
func buildMiddlewareChain(handler http.Handler, logger observability.Logger) http.Handler {
	h := handler
	h = middleware.Logging(logger)(h)
	h = middleware.RequestID()(h)
	h = middleware.Recovery(logger)(h)
	return h
}

// buildOpsServer assembles the gin engine serving metrics and health
// probes on the operations port.
func buildOpsServer(
	cfg *config.RelayConfig,
	metrics *observability.Metrics,
	checker *health.Checker,
) *http.Server {
	if !cfg.Observability.Metrics.Enabled {
		return nil
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	engine.GET(cfg.Observability.Metrics.Path, gin.WrapH(metrics.Handler()))
	checker.RegisterRoutes(engine)

	return &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Observability.Metrics.Port),
		Handler:           engine,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
	}
}

// runRelay starts the servers and blocks until shutdown.
func runRelay(app *application, logger observability.Logger) {
	if err := app.server.Start(); err != nil {
		logger.Fatal("failed to start relay server", observability.Error(err))
	}

	if app.ops != nil {
		logger.Info("starting ops server",
			observability.String("address", app.ops.Addr),
		)
		go func() {
			if err := app.ops.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("ops server error", observability.Error(err))
			}
		}()
	}

	waitForShutdown(app, logger)
}

// waitForShutdown waits for a signal and performs graceful shutdown.
func waitForShutdown(app *application, logger observability.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("received shutdown signal", observability.String("signal", sig.String()))

	shutdownCtx, cancel := context.WithTimeout(
		context.Background(),
		app.config.Server.ShutdownTimeout.Duration(),
	)
	defer cancel()

	if err := app.server.Stop(shutdownCtx); err != nil {
		logger.Error("failed to stop relay server gracefully", observability.Error(err))
	}

	if app.ops != nil {
		if err := app.ops.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to stop ops server gracefully", observability.Error(err))
		}
	}

	if err := app.tracer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown tracer", observability.Error(err))
	}

	logger.Info("relay stopped")
}
