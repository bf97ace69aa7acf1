package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"verichain/internal/app"
	"verichain/internal/platform/config"
	"verichain/internal/platform/logger"
)

// main reads configuration, assembles the process and blocks until SIGINT or
// SIGTERM. Business logic lives in the internal service packages.
func main() {
	log := logger.New()

	cfg, err := config.FromEnv()
	if err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("initializing verichain",
		"addr", cfg.Server.Addr,
		"environment", cfg.Server.Environment,
	)

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Error("startup failed", "error", err)
		os.Exit(1)
	}

	runErr := a.Run(ctx)

	closeCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := a.Close(closeCtx); err != nil {
		log.Error("shutdown cleanup failed", "error", err)
	}

	if runErr != nil {
		log.Error("server stopped with error", "error", runErr)
		os.Exit(1)
	}
	log.Info("server stopped")
}
