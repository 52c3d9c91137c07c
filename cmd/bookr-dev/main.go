package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/clickhouse"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	"bookr/internal/app"
	"bookr/internal/migrate"
	"bookr/internal/migrations"
)

func main() {
	ctx := context.Background()

	logger, err := app.NewLogger(true)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("Starting Postgres testcontainer...")

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("bookr"),
		postgres.WithUsername("bookr"),
		postgres.WithPassword("devpassword"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		logger.Fatal("Failed to start Postgres container", zap.Error(err))
	}
	defer func() {
		logger.Info("Stopping Postgres container...")
		if err := pgContainer.Terminate(ctx); err != nil {
			logger.Error("Failed to terminate container", zap.Error(err))
		}
	}()

	databaseURL, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		logger.Fatal("Failed to get connection string", zap.Error(err))
	}

	if err := runMigrations(ctx, databaseURL, logger); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}

	os.Setenv("BOOKR_DATABASE_URL", databaseURL)
	os.Setenv("BOOKR_USE_MOCK_DB", "false")
	os.Setenv("BOOKR_DEV", "true")

	// Rating history is opt-in for development
	if os.Getenv("BOOKR_DEV_HISTORY") == "true" {
		logger.Info("Starting ClickHouse testcontainer...")
		chContainer, err := clickhouse.Run(ctx,
			"clickhouse/clickhouse-server:24.3.3.102-alpine",
			clickhouse.WithUsername("default"),
			clickhouse.WithPassword("devpassword"),
			clickhouse.WithDatabase("default"),
		)
		if err != nil {
			logger.Fatal("Failed to start ClickHouse container", zap.Error(err))
		}
		defer func() {
			logger.Info("Stopping ClickHouse container...")
			if err := chContainer.Terminate(ctx); err != nil {
				logger.Error("Failed to terminate container", zap.Error(err))
			}
		}()

		host, err := chContainer.Host(ctx)
		if err != nil {
			logger.Fatal("Failed to get container host", zap.Error(err))
		}
		port, err := chContainer.MappedPort(ctx, "9000/tcp")
		if err != nil {
			logger.Fatal("Failed to get container port", zap.Error(err))
		}

		os.Setenv("CLICKHOUSE_HOST", host)
		os.Setenv("CLICKHOUSE_PORT", port.Port())
		os.Setenv("CLICKHOUSE_DATABASE", "default")
		os.Setenv("CLICKHOUSE_USER", "default")
		os.Setenv("CLICKHOUSE_PASSWORD", "devpassword")
		os.Setenv("CLICKHOUSE_USE_TLS", "false")
		logger.Info("ClickHouse started", zap.String("host", host), zap.String("port", port.Port()))
	}

	csvPath := os.Getenv("BOOKR_DEV_CSV")
	if len(os.Args) > 1 {
		csvPath = os.Args[1]
	}
	if csvPath != "" {
		if err := importCSV(ctx, csvPath); err != nil {
			logger.Fatal("Failed to import catalogue", zap.String("path", csvPath), zap.Error(err))
		}
	}

	logger.Info("Development database ready", zap.String("database_url", databaseURL))
	fmt.Println()
	fmt.Printf("export BOOKR_DATABASE_URL=%q\n", databaseURL)
	if host := os.Getenv("CLICKHOUSE_HOST"); host != "" {
		fmt.Printf("export CLICKHOUSE_HOST=%q CLICKHOUSE_PORT=%q CLICKHOUSE_PASSWORD=devpassword\n", host, os.Getenv("CLICKHOUSE_PORT"))
	}
	fmt.Println()
	logger.Info("Press Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	logger.Info("Received shutdown signal")
}

func runMigrations(ctx context.Context, databaseURL string, logger *zap.Logger) error {
	db, err := migrate.OpenDB(ctx, databaseURL)
	if err != nil {
		return err
	}
	graph, err := migrations.Graph()
	if err != nil {
		return err
	}
	runner, err := migrate.NewRunner(db, graph, logger)
	if err != nil {
		return err
	}
	defer runner.Close()

	_, err = runner.Up(ctx)
	return err
}

func importCSV(ctx context.Context, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	application, err := app.New(ctx)
	if err != nil {
		return err
	}
	defer application.Close()

	_, err = application.Catalog().ImportCSV(ctx, f)
	return err
}
