// Package main is the entry point for the edge gateway.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nuruhealth/nurugw/internal/config"
	"github.com/nuruhealth/nurugw/internal/gateway"
	"github.com/nuruhealth/nurugw/internal/observability"
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

	cfg := loadConfig(flags.configPath, logger)
	run(cfg, logger)
}

// parseFlags parses command line flags.
func parseFlags() cliFlags {
	configPath := flag.String("config", getEnvOrDefault("GATEWAY_CONFIG_PATH", "configs/gateway.yaml"),
		"Path to configuration file")
	logLevel := flag.String("log-level", getEnvOrDefault("GATEWAY_LOG_LEVEL", "info"),
		"Log level (debug, info, warn, error)")
	logFormat := flag.String("log-format", getEnvOrDefault("GATEWAY_LOG_FORMAT", "json"),
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

// printVersion prints version information.
func printVersion() {
	fmt.Printf("nurugw version %s\n", version)
	fmt.Printf("  Build time: %s\n", buildTime)
	fmt.Printf("  Git commit: %s\n", gitCommit)
}

// initLogger initializes the logger from flags.
func initLogger(flags cliFlags) observability.Logger {
	logger, err := observability.NewLogger(config.LogConfig{
		Level:  flags.logLevel,
		Format: flags.logFormat,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	return logger
}

// loadConfig loads and validates the gateway configuration.
func loadConfig(configPath string, logger observability.Logger) *config.GatewayConfig {
	logger.Info("starting nurugw",
		observability.String("version", version),
		observability.String("config", configPath),
	)

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		logger.Fatal("failed to load configuration", observability.Error(err))
	}

	logger.Info("configuration loaded",
		observability.Int("upstreams", len(cfg.Upstreams)),
		observability.Int("publicPaths", len(cfg.Auth.PublicPaths)),
		observability.Bool("rateLimit", cfg.RateLimit.Enabled),
	)
	return cfg
}

// run assembles the gateway and serves until a shutdown signal.
func run(cfg *config.GatewayConfig, logger observability.Logger) {
	shutdownTracing, err := observability.InitTracing(cfg.Tracing, logger)
	if err != nil {
		logger.Fatal("failed to initialize tracing", observability.Error(err))
	}

	gw, err := gateway.New(cfg, logger)
	if err != nil {
		logger.Fatal("failed to build gateway", observability.Error(err))
	}

	server := gateway.NewServer(gw, cfg.Server, logger)
	metricsServer := observability.NewMetricsServer(cfg.Server.MetricsPort, logger)

	errCh := make(chan error, 2)
	go func() {
		if err := server.Start(context.Background()); err != nil {
			errCh <- err
		}
	}()
	go func() {
		if err := metricsServer.Start(); err != nil {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", observability.String("signal", sig.String()))
	case err := <-errCh:
		logger.Error("server failed", observability.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration())
	defer cancel()

	if err := server.Stop(ctx); err != nil {
		logger.Error("failed to stop HTTP server", observability.Error(err))
	}
	if err := metricsServer.Stop(ctx); err != nil {
		logger.Error("failed to stop metrics server", observability.Error(err))
	}
	if err := shutdownTracing(ctx); err != nil {
		logger.Error("failed to shut down tracing", observability.Error(err))
	}

	logger.Info("gateway stopped")
}

// getEnvOrDefault returns the environment variable value or a default.
func getEnvOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
