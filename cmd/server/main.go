package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/procurement-approvals/internal/config"
	"github.com/garyjia/procurement-approvals/internal/container"
	httpapi "github.com/garyjia/procurement-approvals/internal/interfaces/http"
	"github.com/garyjia/procurement-approvals/pkg/utils"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting procurement approval service",
		zap.String("database", cfg.Database.Driver),
		zap.String("storage", cfg.Storage.Backend),
		zap.Strings("notification_channels", cfg.Notification.Channels),
		zap.Int("port", cfg.Server.Port))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := container.NewContainer(cfg.ToContainerConfig(), logger)
	if err != nil {
		logger.Fatal("Failed to create container", zap.Error(err))
	}
	if err := app.Start(ctx); err != nil {
		logger.Fatal("Failed to start container", zap.Error(err))
	}

	services := app.Services()
	server := httpapi.NewServer(httpapi.ServerConfig{
		Host:           cfg.Server.Host,
		Port:           cfg.Server.Port,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Auth: httpapi.AuthConfig{
			JWTSecret:    cfg.Auth.JWTSecret,
			TenantHeader: cfg.Auth.TenantHeader,
			UserHeader:   cfg.Auth.UserHeader,
		},
	}, httpapi.Services{
		Requisitions: services.Requisitions,
		Items:        services.Items,
		Documents:    services.Documents,
	}, app.ServiceLogger())

	// Blocks until SIGINT/SIGTERM or a listener failure
	serveErr := server.Start(ctx)
	if serveErr != nil {
		logger.Error("HTTP server failed", zap.Error(serveErr))
	}

	logger.Info("Shutting down...")

	done := make(chan error, 1)
	go func() { done <- app.Close() }()
	select {
	case err := <-done:
		if err != nil {
			logger.Error("Container shutdown reported errors", zap.Error(err))
		}
	case <-time.After(30 * time.Second):
		logger.Error("Container shutdown timed out")
	}

	if serveErr != nil {
		logger.Sync()
		os.Exit(1)
	}
	logger.Info("Server exited successfully")
}
