package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"bookr/internal/app"
	"bookr/internal/migrate"
	"bookr/internal/migrations"
	"bookr/internal/models"
)

const usage = "Available commands: up, down, status, version, plan, check, apply <app.name>, sql <app.name>"

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found, using existing environment variables")
	}

	logger, err := app.NewLogger(os.Getenv("BOOKR_DEV") == "true")
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	// Get command from arguments (default to "up")
	command := "up"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	graph, err := migrations.Graph()
	if err != nil {
		logger.Fatal("Invalid migration graph", zap.Error(err))
	}

	// Commands that only inspect the graph do not need a database
	switch command {
	case "plan":
		if err := printPlan(graph); err != nil {
			logger.Fatal("Failed to plan migrations", zap.Error(err))
		}
		return
	case "check":
		want, err := models.NewRegistry()
		if err != nil {
			logger.Fatal("Invalid declared schema", zap.Error(err))
		}
		if err := migrate.Check(graph, want); err != nil {
			logger.Fatal("Schema check failed", zap.Error(err))
		}
		logger.Info("Migrations match the declared schema")
		return
	case "sql":
		key := keyArg(logger)
		if err := printSQL(graph, key); err != nil {
			logger.Fatal("Failed to render migration", zap.Error(err))
		}
		return
	}

	databaseURL := os.Getenv("BOOKR_DATABASE_URL")
	if databaseURL == "" {
		logger.Fatal("BOOKR_DATABASE_URL is required")
	}

	ctx := context.Background()
	db, err := migrate.OpenDB(ctx, databaseURL)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}

	runner, err := migrate.NewRunner(db, graph, logger)
	if err != nil {
		logger.Fatal("Failed to prepare migrations", zap.Error(err))
	}
	defer runner.Close()

	logger.Info("Running migrations", zap.String("command", command))
	switch command {
	case "up":
		applied, err := runner.Up(ctx)
		if err != nil {
			logger.Fatal("Failed to run migrations", zap.Error(err))
		}
		logger.Info("Migrations completed successfully", zap.Int("applied", len(applied)))
	case "down":
		key, err := runner.Down(ctx)
		if err != nil {
			logger.Fatal("Failed to rollback migration", zap.Error(err))
		}
		if key != (migrate.Key{}) {
			logger.Info("Rollback completed successfully", zap.Stringer("migration", key))
		}
	case "apply":
		key := keyArg(logger)
		if err := runner.Apply(ctx, key); err != nil {
			logger.Fatal("Failed to apply migration", zap.Error(err))
		}
	case "status":
		statuses, err := runner.Status(ctx)
		if err != nil {
			logger.Fatal("Failed to get migration status", zap.Error(err))
		}
		for _, s := range statuses {
			state := "pending"
			if s.Applied {
				state = "applied " + s.AppliedAt.Format("2006-01-02 15:04:05")
			}
			fmt.Printf("%4d  %-55s %s\n", s.Version, s.Key, state)
		}
	case "version":
		version, err := runner.Version(ctx)
		if err != nil {
			logger.Fatal("Failed to get version", zap.Error(err))
		}
		fmt.Printf("Current migration version: %d\n", version)
	default:
		logger.Fatal("Unknown command: " + command + ". " + usage)
	}
}

func keyArg(logger *zap.Logger) migrate.Key {
	if len(os.Args) < 3 {
		logger.Fatal("Usage: migrate " + os.Args[1] + " <app.name>")
	}
	key, err := migrate.ParseKey(os.Args[2])
	if err != nil {
		logger.Fatal("Invalid migration key", zap.Error(err))
	}
	return key
}

func printPlan(graph *migrate.Graph) error {
	plan, err := graph.Plan()
	if err != nil {
		return err
	}
	for _, m := range plan {
		deps := make([]string, len(m.Dependencies))
		for i, d := range m.Dependencies {
			deps[i] = d.String()
		}
		fmt.Printf("%4d  %s", m.Version, m.Key)
		if len(deps) > 0 {
			fmt.Printf("  (after %s)", strings.Join(deps, ", "))
		}
		fmt.Println()
		for _, op := range m.Operations {
			fmt.Printf("        - %s\n", op.Describe())
		}
	}
	return nil
}

func printSQL(graph *migrate.Graph, key migrate.Key) error {
	plan, err := graph.Plan()
	if err != nil {
		return err
	}
	steps, _, err := migrate.Compile(plan)
	if err != nil {
		return err
	}
	for _, step := range steps {
		if step.Migration.Key != key {
			continue
		}
		fmt.Printf("-- %s up\n", key)
		for _, stmt := range step.Up {
			fmt.Println(stmt + ";")
		}
		fmt.Printf("\n-- %s down\n", key)
		for _, stmt := range step.Down {
			fmt.Println(stmt + ";")
		}
		return nil
	}
	return fmt.Errorf("%w: %s", migrate.ErrUnknownMigration, key)
}
