package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"bookr/internal/catalog"
	"bookr/internal/config"
	"bookr/internal/storage"
	"bookr/internal/storage/ch"
	"bookr/internal/storage/pg"
	"bookr/internal/storage/stubs"
)

// historyStore is a rating history that owns a connection
type historyStore interface {
	catalog.RatingHistory
	Close() error
}

// App wires configuration, storage and the catalogue service together
type App struct {
	config  *config.Config
	logger  *zap.Logger
	db      storage.Storage
	history historyStore
	catalog *catalog.Service
}

// New loads configuration from the environment (and .env when present) and
// connects the configured stores
func New(ctx context.Context) (*App, error) {
	envErr := godotenv.Load()

	cfg, err := config.LoadFromEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := NewLogger(cfg.Dev)
	if err != nil {
		return nil, err
	}
	if envErr != nil {
		logger.Debug("No .env file found, using system environment variables")
	}

	return NewWithConfig(ctx, cfg, logger)
}

// NewWithConfig builds an App from an explicit configuration
func NewWithConfig(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	a := &App{config: cfg, logger: logger}

	if err := a.initDatabase(ctx); err != nil {
		return nil, err
	}
	if err := a.initHistory(ctx); err != nil {
		a.db.Close()
		return nil, err
	}

	// Avoid storing a typed nil in the interface
	var history catalog.RatingHistory
	if a.history != nil {
		history = a.history
	}
	a.catalog = catalog.NewService(a.db, history, logger.Named("catalog"))
	return a, nil
}

// NewLogger builds the production logger, or a development one when dev is set
func NewLogger(dev bool) (*zap.Logger, error) {
	var (
		logger *zap.Logger
		err    error
	)
	if dev {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return logger, nil
}

// initDatabase initializes the relational store
func (a *App) initDatabase(ctx context.Context) error {
	var db storage.Storage
	if a.config.UseMockDB {
		a.logger.Info("Using mock database")
		db = stubs.NewMockDB()
	} else {
		a.logger.Info("Connecting to Postgres")
		postgresDB, err := pg.NewPostgresDB(ctx, a.config.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to connect to Postgres: %w", err)
		}
		db = postgresDB
	}

	if err := db.Initialize(ctx); err != nil {
		db.Close()
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	a.db = db
	return nil
}

// initHistory connects the rating history when one is configured
func (a *App) initHistory(ctx context.Context) error {
	if !a.config.HistoryEnabled() {
		a.logger.Info("Rating history disabled")
		return nil
	}
	if a.config.UseMockDB {
		a.logger.Info("Using mock rating history")
		a.history = stubs.NewMockHistory()
		return nil
	}

	a.logger.Info("Connecting to ClickHouse",
		zap.String("host", a.config.ClickHouseHost),
		zap.Int("port", a.config.ClickHousePort),
		zap.String("database", a.config.ClickHouseDatabase),
		zap.String("user", a.config.ClickHouseUser),
		zap.Bool("tls", a.config.ClickHouseUseTLS),
	)
	clickhouseDB, err := ch.NewClickHouseDB(
		a.config.ClickHouseHost,
		a.config.ClickHousePort,
		a.config.ClickHouseDatabase,
		a.config.ClickHouseUser,
		a.config.ClickHousePassword,
		a.config.ClickHouseUseTLS,
	)
	if err != nil {
		return fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}
	if err := clickhouseDB.EnsureSchema(ctx); err != nil {
		clickhouseDB.Close()
		return err
	}

	a.history = clickhouseDB
	return nil
}

// Catalog returns the catalogue service
func (a *App) Catalog() *catalog.Service {
	return a.catalog
}

// Storage returns the relational store
func (a *App) Storage() storage.Storage {
	return a.db
}

// Logger returns the application logger
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Close releases every connection the App holds
func (a *App) Close() error {
	var errs []error
	if a.history != nil {
		if err := a.history.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close rating history: %w", err))
		}
	}
	if err := a.db.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close database: %w", err))
	}
	_ = a.logger.Sync()
	return errors.Join(errs...)
}
