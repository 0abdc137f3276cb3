package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/meridianhq/anthropic-bridge/internal/config"
	"github.com/meridianhq/anthropic-bridge/internal/httpapi"
	"github.com/meridianhq/anthropic-bridge/internal/logging"
	"github.com/meridianhq/anthropic-bridge/pkg/telemetry"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file (overrides BRIDGE_CONFIG_FILE)")
	flag.Parse()

	if *configPath != "" {
		os.Setenv("BRIDGE_CONFIG_FILE", *configPath)
	}

	cfg, err := config.Load(os.Getenv)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.InitGlobalTracerProvider(ctx, cfg.OTLPEndpoint, "anthropic-bridge")
	if err != nil {
		logger.Error("failed to initialize telemetry", "error", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.Error("tracer shutdown failed", "error", err)
		}
	}()

	server := httpapi.New(cfg, logger)

	go server.Sessions().RunCleanup(ctx, cfg.SessionCleanupInterval)

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	httpServer := &http.Server{
		Addr:    addr,
		Handler: server.Handler(),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", "error", err)
		}
	}()

	logger.Info("anthropic-bridge listening", "addr", addr, "wire_api", string(cfg.WireAPI), "big_model", cfg.BigModel)

	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server exited with error", "error", err)
		os.Exit(1)
	}
}
