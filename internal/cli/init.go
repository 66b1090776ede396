// Package cli consolidates the initialization shared by cmd/pace and
// cmd/pace-worker.
package cli

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"pace/internal/amqp"
	"pace/internal/config"
	applog "pace/internal/log"
	"pace/internal/storage"
)

// SetupLogger initializes structured logging and installs it as the default.
func SetupLogger(component string) *applog.Logger {
	cfg := applog.DefaultConfig()
	cfg.Component = component
	logger := applog.New(cfg)
	applog.SetDefault(logger)
	return logger
}

// LoadEnvFile loads .env for local development. Missing files are fine.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration or exits on validation failure.
func LoadAndValidateConfig(logger *applog.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	return cfg
}

// InitStore opens the SQLite store or exits on failure.
func InitStore(logger *applog.Logger, dbPath string) *storage.Store {
	store, err := storage.NewStore(dbPath)
	if err != nil {
		logger.Error("Failed to initialize store", "error", err, "path", dbPath)
		os.Exit(1)
	}
	logger.Info("Store initialized", "path", dbPath)
	return store
}

// InitAMQP connects to the broker if one is configured, nil otherwise.
func InitAMQP(logger *applog.Logger, cfg *config.Config) *amqp.Client {
	if cfg.AMQPURL == "" {
		logger.Info("AMQP disabled - no AMQP_URL provided")
		return nil
	}
	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	slog.Info("AMQP client initialized", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	return client
}
