package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/cardio-cdss-server/internal/alerts"
	"github.com/cardio-cdss-server/internal/api"
	"github.com/cardio-cdss-server/internal/audit"
	"github.com/cardio-cdss-server/internal/calculator"
	"github.com/cardio-cdss-server/internal/config"
	"github.com/cardio-cdss-server/internal/database"
	"github.com/cardio-cdss-server/internal/domain"
	"github.com/cardio-cdss-server/internal/repository"
	"github.com/cardio-cdss-server/internal/service"
)

func main() {
	configManager, err := config.NewManager()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := configManager.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}
	cfg := configManager.GetConfig()

	logger := newLogger(cfg.Logging)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Calculator registry from the embedded (or overridden) definitions.
	registry, err := calculator.NewDefaultRegistry(cfg.Calculators.DefinitionsDir, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to build calculator registry")
	}
	for _, info := range registry.List() {
		logger.WithFields(logrus.Fields{
			"calculator_id": info.ID,
			"version":       info.Version,
		}).Info("Calculator registered")
	}

	// Audit storage.
	var store audit.Store
	var reader domain.AuditReader
	var db *database.DB

	switch cfg.Audit.Backend {
	case "postgres":
		dbConfig := database.Config{
			Host:        cfg.Database.Host,
			Port:        cfg.Database.Port,
			Database:    cfg.Database.Database,
			Username:    cfg.Database.Username,
			Password:    cfg.Database.Password,
			MaxConns:    cfg.Database.MaxConns,
			MinConns:    cfg.Database.MinConns,
			MaxConnLife: cfg.Database.ConnMaxLifetime,
			MaxConnIdle: cfg.Database.ConnMaxIdleTime,
			SSLMode:     cfg.Database.SSLMode,
		}

		if cfg.Database.AutoMigrate {
			runner, err := database.NewMigrationRunner(dbConfig.URL(), cfg.Database.MigrationsPath, logger)
			if err != nil {
				logger.WithError(err).Fatal("Failed to create migration runner")
			}
			if err := runner.Up(); err != nil {
				logger.WithError(err).Fatal("Failed to run migrations")
			}
			runner.Close()
		}

		db, err = database.NewConnection(ctx, dbConfig, logger)
		if err != nil {
			logger.WithError(err).Fatal("Failed to connect to database")
		}
		defer db.Close()

		store, err = audit.NewPostgresStoreFromURL(dbConfig.URL())
		if err != nil {
			logger.WithError(err).Fatal("Failed to open audit store")
		}
		reader = repository.NewAuditRepository(db.Pool, logger)

	case "sqlite":
		sqliteStore, err := audit.NewSQLiteStore(cfg.Audit.SQLitePath)
		if err != nil {
			logger.WithError(err).Fatal("Failed to open audit store")
		}
		store = sqliteStore
		reader = sqliteStore
	}

	resilientCfg := audit.DefaultResilientConfig()
	resilientCfg.Timeout = cfg.Audit.Timeout
	sink := audit.NewResilientStore(store, resilientCfg, logger)
	defer sink.Close()

	// Deduplication.
	var dedup service.DedupStore
	switch cfg.Dedup.Backend {
	case "redis":
		redisDedup, err := service.NewRedisDedupStore(cfg.Dedup.RedisURL, cfg.Dedup.TTL, logger)
		if err != nil {
			logger.WithError(err).Fatal("Failed to connect to redis")
		}
		defer redisDedup.Close()
		dedup = redisDedup
	case "memory":
		dedup = service.NewMemoryDedupStore(cfg.Dedup.MemorySize, cfg.Dedup.TTL)
	}

	hub := alerts.NewHub(logger)
	defer hub.Close()

	calcService, err := service.NewCalculationService(service.CalculationServiceConfig{
		Registry:     registry,
		Sink:         sink,
		Reader:       reader,
		Dedup:        dedup,
		Alerter:      hub,
		AuditTimeout: cfg.Audit.Timeout,
	}, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create calculation service")
	}

	server := api.NewServer(cfg, calcService, registry, reader, hub, logger)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, gracefully shutting down")
		cancel()
	}()

	if err := server.Start(ctx); err != nil {
		logger.WithError(err).Fatal("Server failed")
	}

	logger.Info("Server stopped")
}

func newLogger(cfg config.LoggingConfig) *logrus.Logger {
	logger := logrus.New()

	level, err := logrus.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if cfg.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	return logger
}
