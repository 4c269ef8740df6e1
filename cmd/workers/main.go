package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"carbon-scribe/project-portal/verification-backend/internal/config"
	"carbon-scribe/project-portal/verification-backend/internal/container"
	"carbon-scribe/project-portal/verification-backend/internal/logging"
)

// The worker runs deadline reminders, overdue checks and the recurring
// workload rebalance. With -once it drains the due jobs and exits.
func main() {
	configPath := flag.String("config", "config.json", "path to the JSON config file")
	envFile := flag.String("env", ".env", "path to an optional .env file")
	once := flag.Bool("once", false, "run the due jobs once and exit")
	flag.Parse()

	if err := config.LoadEnvFile(*envFile); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := container.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize application", zap.Error(err))
	}
	defer app.Shutdown(context.Background())

	if err := app.RegisterJobs(); err != nil {
		logger.Fatal("Failed to register jobs", zap.Error(err))
	}

	if *once {
		ran, err := app.Scheduler.RunDue(ctx)
		if err != nil {
			logger.Fatal("Failed to run due jobs", zap.Error(err))
		}
		logger.Info("Due jobs processed", zap.Int("count", ran))
		return
	}

	if !cfg.Scheduler.Enabled {
		logger.Warn("Scheduler disabled by configuration, nothing to do")
		return
	}
	if err := app.Scheduler.Start(ctx); err != nil {
		logger.Fatal("Failed to start scheduler", zap.Error(err))
	}
	logger.Info("Verification worker started", zap.Any("recurring", app.Scheduler.RecurringJobs()))

	<-ctx.Done()
	logger.Info("Shutdown signal received")
	app.Scheduler.Stop()
	logger.Info("Verification worker stopped")
}
