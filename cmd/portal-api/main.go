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

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"carbon-scribe/project-portal/verification-backend/internal/assignment"
	"carbon-scribe/project-portal/verification-backend/internal/auth"
	"carbon-scribe/project-portal/verification-backend/internal/config"
	"carbon-scribe/project-portal/verification-backend/internal/container"
	"carbon-scribe/project-portal/verification-backend/internal/httpx"
	"carbon-scribe/project-portal/verification-backend/internal/logging"
	"carbon-scribe/project-portal/verification-backend/internal/notifications"
	"carbon-scribe/project-portal/verification-backend/internal/verification"
)

func main() {
	configPath := flag.String("config", "config.json", "path to the JSON config file")
	envFile := flag.String("env", ".env", "path to an optional .env file")
	withScheduler := flag.Bool("scheduler", false, "also run the job scheduler in this process")
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

	if *withScheduler && cfg.Scheduler.Enabled {
		if err := app.RegisterJobs(); err != nil {
			logger.Fatal("Failed to register jobs", zap.Error(err))
		}
		if err := app.Scheduler.Start(ctx); err != nil {
			logger.Fatal("Failed to start scheduler", zap.Error(err))
		}
		defer app.Scheduler.Stop()
	}

	srv := &http.Server{
		Addr:         cfg.Server.GetServerAddr(),
		Handler:      newRouter(app),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()
	logger.Info("Server started", zap.String("addr", srv.Addr))

	<-ctx.Done()
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}
	logger.Info("Server exiting")
}

func newRouter(app *container.Container) *gin.Engine {
	gin.SetMode(app.Config.Server.Mode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(httpx.RequestID())
	router.Use(httpx.RequestLogger(app.Logger))
	router.Use(httpx.CORS(app.Config.Server.AllowedOrigins))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":      "healthy",
			"timestamp":   time.Now(),
			"connections": app.Sockets.GetConnectionCount(),
		})
	})

	api := router.Group("/api/v1")
	api.Use(app.Tokens.Middleware())
	{
		auth.NewHandler(app.Users, app.Logger).RegisterRoutes(api)
		verification.NewHandler(app.Workflow, app.Logger).RegisterRoutes(api)
		assignment.NewHandler(app.Assignment, app.Logger).RegisterRoutes(api)
		notifications.NewHandler(app.Notifications, app.Sockets, app.Logger).RegisterRoutes(api)
	}
	return router
}
