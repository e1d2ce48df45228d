package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/AdminConsole/backend/internal/infrastructure/config"
	"github.com/GriffinCanCode/AdminConsole/backend/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AdminConsole/backend/internal/infrastructure/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	// Flags override the environment
	port := flag.String("port", cfg.Server.Port, "Server port")
	modules := flag.String("modules", cfg.Modules.Root, "Module source directory")
	dev := flag.Bool("dev", cfg.Logging.Development, "Development mode (console logs, debug level)")
	flag.Parse()

	cfg.Server.Port = *port
	cfg.Modules.Root = *modules
	if *dev {
		cfg.Logging.Development = true
		cfg.Logging.Level = "debug"
	}

	logger, err := logging.New(logging.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}

	srv, err := server.NewServer(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to create server", zap.Error(err))
	}

	// Handle graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runErr := srv.Run(ctx)
	if err := srv.Close(); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}
	if runErr != nil {
		logger.Fatal("Server error", zap.Error(runErr))
	}
}
