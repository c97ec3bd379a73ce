package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BenMacKenzie/db-mlops/cmd/mlops_dashboard/server"
	"github.com/BenMacKenzie/db-mlops/internal/config"
	"github.com/BenMacKenzie/db-mlops/internal/databricks"
	"github.com/BenMacKenzie/db-mlops/internal/logging"
	"github.com/BenMacKenzie/db-mlops/internal/storage"
	"github.com/BenMacKenzie/db-mlops/internal/telemetry"
	"github.com/BenMacKenzie/db-mlops/internal/training"
	"github.com/BenMacKenzie/db-mlops/internal/validation"
	"github.com/spf13/pflag"
)

var (
	// Version can be set during the compilation
	Version string = "0.0.1"
	// Build is set during the compilation
	Build string
	// BuildDate is set during the compilation
	BuildDate string
)

func main() {
	localMode := pflag.Bool("local", false, "run in local mode, enables CORS for the allowed origins")
	pflag.Parse()

	logger, logShutdown, err := logging.NewLogger()
	if err != nil {
		// we do this as no point trying to continue
		startUpFailed(nil, err, "Failed to create service logger", logging.FallbackLogger())
	}

	serviceConfig, err := config.LoadConfig(logger, Version, Build, BuildDate)
	if err != nil {
		// we do this as no point trying to continue
		startUpFailed(nil, err, "Failed to create service config", logger)
	}
	if *localMode {
		serviceConfig.Service.LocalMode = true
	}
	if err := serviceConfig.Validate(); err != nil {
		startUpFailed(serviceConfig, err, "Invalid service config", logger)
	}

	otelShutdown, err := telemetry.Setup(context.Background(), serviceConfig.OTEL, Version, logger)
	if err != nil {
		startUpFailed(serviceConfig, err, "Failed to set up OpenTelemetry", logger)
	}

	// set up the validator
	validate, err := validation.NewValidator()
	if err != nil {
		// we do this as no point trying to continue
		startUpFailed(serviceConfig, err, "Failed to create validator", logger)
	}

	// set up the storage
	storage, err := storage.NewStorage(serviceConfig.Database, logger)
	if err != nil {
		// we do this as no point trying to continue
		startUpFailed(serviceConfig, err, "Failed to create storage", logger)
	}

	// set up the workspace clients
	transport, err := databricks.NewTransport(serviceConfig.Databricks, logger)
	if err != nil {
		startUpFailed(serviceConfig, err, "Failed to create the workspace transport", logger)
	}
	auditLogs := serviceConfig.OTEL != nil && serviceConfig.OTEL.IsEnabled() && serviceConfig.OTEL.AuditLogs
	trainingService, err := training.NewService(storage,
		databricks.NewJobRegistry(transport),
		databricks.NewRunTelemetry(transport, serviceConfig.Databricks.ExperimentPrefix),
		serviceConfig.Training,
		serviceConfig.Databricks.MaxRuns,
		telemetry.NewAuditor(auditLogs))
	if err != nil {
		startUpFailed(serviceConfig, err, "Failed to create the training service", logger)
	}

	srv, err := server.NewServer(logger, serviceConfig, storage, validate, trainingService)
	if err != nil {
		// we do this as no point trying to continue
		startUpFailed(serviceConfig, err, "Failed to create server", logger)
	}

	// log the start up details
	logger.Info("Server starting",
		"server_port", srv.GetPort(),
		"version", serviceConfig.Service.Version,
		"build", serviceConfig.Service.Build,
		"build_date", serviceConfig.Service.BuildDate,
		"local", serviceConfig.Service.LocalMode,
		"storage", storage.GetDatasourceName(),
		"workspace", transport.GetBaseURL(),
		"git_notebook", serviceConfig.Training.UsesGit(),
		"otel", serviceConfig.IsOTELEnabled(),
	)

	// Start server in a goroutine
	go func() {
		if err := srv.Start(); err != nil {
			if server.IsServerClosed(err) {
				logger.Info("Server closed gracefully")
				return
			}
			// we do this as no point trying to continue
			startUpFailed(serviceConfig, err, "Server failed to start", logger)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// Create a context with timeout for graceful shutdown
	waitForShutdown := 30 * time.Second
	ctx, cancel := context.WithTimeout(context.Background(), waitForShutdown)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", "error", err.Error(), "timeout", waitForShutdown)
	} else {
		logger.Info("Server shutdown gracefully")
	}

	// shutdown the storage once no request can use it
	if err := storage.Close(); err != nil {
		logger.Error("Failed to close storage", "error", err.Error())
	}
	if err := otelShutdown(ctx); err != nil {
		logger.Error("Failed to flush telemetry", "error", err.Error())
	}
	_ = logShutdown() // ignore the error
}

func startUpFailed(conf *config.Config, err error, msg string, logger *slog.Logger) {
	termErr := server.SetTerminationMessage(server.GetTerminationFile(conf, logger), fmt.Sprintf("%s: %s", msg, err.Error()), logger)
	if termErr != nil {
		logger.Error("Failed to set termination message", "message", msg, "error", termErr.Error())
		log.Println(termErr.Error())
	}
	log.Fatal(err)
}
