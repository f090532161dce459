package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chatterbox-im/chatterbox-server/internal/app"
	"github.com/chatterbox-im/chatterbox-server/internal/config"
	"github.com/chatterbox-im/chatterbox-server/internal/log"
)

func main() {
	var configPath string
	var addr string
	var logLevel string
	var readHeaderTimeout time.Duration
	var shutdownTimeout time.Duration
	flag.StringVar(&configPath, "config", "", "path to config file")
	flag.StringVar(&addr, "addr", "", "HTTP listen address (overrides config)")
	flag.StringVar(&logLevel, "log-level", "", "log level: trace, debug, info, warn, error")
	flag.DurationVar(&readHeaderTimeout, "read-header-timeout", 0, "HTTP read header timeout (overrides config)")
	flag.DurationVar(&shutdownTimeout, "shutdown-timeout", 0, "graceful shutdown timeout (overrides config)")
	flag.Parse()

	bootLogger := log.New("info")

	cfg, cfgPath, err := config.Load(bootLogger, configPath)
	if err != nil {
		bootLogger.Fatal().Err(err).Str("path", cfgPath).Msg("failed to load config")
	}
	if addr != "" {
		cfg.Addr = addr
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if readHeaderTimeout != 0 {
		cfg.ReadHeaderTimeout = readHeaderTimeout
	}
	if shutdownTimeout != 0 {
		cfg.ShutdownTimeout = shutdownTimeout
	}

	logger := log.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize application")
	}

	logger.Info().Str("addr", cfg.Addr).Msg("starting chatterbox server")
	if err := application.Run(ctx); err != nil {
		logger.Fatal().Err(err).Msg("server exited with error")
	}
	logger.Info().Msg("server stopped")
}
